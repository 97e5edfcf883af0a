// Copyright (c) 2023 The tlvmux Authors. All rights reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package netpoll wraps epoll for the event loop: descriptor registration,
// bounded waits and an eventfd used to hand tasks to the polling goroutine.
package netpoll

import (
	"os"
	"sync/atomic"
	"time"
	"unsafe"

	"golang.org/x/sys/unix"

	"github.com/tlvmux/tlvmux/pkg/errors"
	"github.com/tlvmux/tlvmux/pkg/logging"
)

// Poller represents a poller which is in charge of monitoring file-descriptors.
type Poller struct {
	fd             int    // epoll fd
	wfd            int    // wake fd
	wfdBuf         []byte // wfd buffer to read packet
	netpollWakeSig int32
	taskQueue      *taskQueue
}

// OpenPoller instantiates a poller.
func OpenPoller() (poller *Poller, err error) {
	poller = new(Poller)
	if poller.fd, err = unix.EpollCreate1(unix.EPOLL_CLOEXEC); err != nil {
		poller = nil
		err = os.NewSyscallError("epoll_create1", err)
		return
	}
	if poller.wfd, err = unix.Eventfd(0, unix.EFD_NONBLOCK|unix.EFD_CLOEXEC); err != nil {
		_ = unix.Close(poller.fd)
		poller = nil
		err = os.NewSyscallError("eventfd", err)
		return
	}
	poller.wfdBuf = make([]byte, 8)
	if err = poller.AddRead(poller.wfd, false); err != nil {
		_ = poller.Close()
		poller = nil
		return
	}
	poller.taskQueue = newTaskQueue()
	return
}

// Close closes the poller.
func (p *Poller) Close() error {
	if err := os.NewSyscallError("close", unix.Close(p.fd)); err != nil {
		return err
	}
	return os.NewSyscallError("close", unix.Close(p.wfd))
}

// Make the endianness of bytes compatible with more linux OSs under different processor-architectures,
// according to http://man7.org/linux/man-pages/man2/eventfd.2.html.
var (
	u uint64 = 1
	b        = (*(*[8]byte)(unsafe.Pointer(&u)))[:]
)

func (p *Poller) wakeup() (err error) {
	if atomic.CompareAndSwapInt32(&p.netpollWakeSig, 0, 1) {
		for _, err = unix.Write(p.wfd, b); err == unix.EINTR; _, err = unix.Write(p.wfd, b) {
		}
		// A full eventfd counter still wakes the poller.
		if err == unix.EAGAIN {
			err = nil
		}
	}
	return os.NewSyscallError("write", err)
}

// Trigger enqueues a task and wakes up the poller, which runs it on the
// polling goroutine. It is safe to call from any goroutine.
func (p *Poller) Trigger(fn TaskFunc, arg interface{}) error {
	task := GetTask()
	task.Run, task.Arg = fn, arg
	p.taskQueue.Enqueue(task)
	return p.wakeup()
}

// Polling blocks the current goroutine, waiting for network-events and
// dispatching them to callback. Each wait lasts at most timeout so that
// running is consulted regularly; Polling returns nil once running reports
// false, or the error when a callback or task returns errors.ErrServerShutdown.
func (p *Poller) Polling(timeout time.Duration, running func() bool, callback func(fd int, ev IOEvent) error) error {
	el := newEventList(InitPollEventsCap)
	var wakenUp bool

	msec := int(timeout / time.Millisecond)
	if msec <= 0 {
		msec = 1
	}
	for running() {
		n, err := unix.EpollWait(p.fd, el.events, msec)
		if n == 0 || (n < 0 && err == unix.EINTR) {
			continue
		} else if err != nil {
			logging.Errorf("error occurs in epoll: %v", os.NewSyscallError("epoll_wait", err))
			return err
		}

		for i := 0; i < n; i++ {
			ev := &el.events[i]
			if fd := int(ev.Fd); fd != p.wfd {
				switch err = callback(fd, ev.Events); err {
				case nil:
				case errors.ErrServerShutdown:
					return err
				default:
					logging.Warnf("error occurs in event-loop: %v", err)
				}
			} else { // poller is awaken to run tasks in queues.
				wakenUp = true
				_, _ = unix.Read(p.wfd, p.wfdBuf)
			}
		}

		if wakenUp {
			wakenUp = false
			for i := 0; i < MaxAsyncTasksAtOneTime; i++ {
				task := p.taskQueue.Dequeue()
				if task == nil {
					break
				}
				err = task.Run(task.Arg)
				PutTask(task)
				switch err {
				case nil:
				case errors.ErrServerShutdown:
					return err
				default:
					logging.Warnf("error occurs in poller task, %v", err)
				}
			}
			atomic.StoreInt32(&p.netpollWakeSig, 0)
			if !p.taskQueue.Empty() {
				_ = p.wakeup()
			}
		}

		if n == el.size {
			el.expand()
		} else if n < el.size>>1 {
			el.shrink()
		}
	}
	return nil
}

const (
	readEvents      = unix.EPOLLPRI | unix.EPOLLIN
	writeEvents     = unix.EPOLLOUT
	readWriteEvents = readEvents | writeEvents
)

func mode(events uint32, edgeTriggered bool) uint32 {
	if edgeTriggered {
		return events | unix.EPOLLET
	}
	return events
}

// AddRead registers the given file-descriptor with readable event to the poller.
func (p *Poller) AddRead(fd int, edgeTriggered bool) error {
	return os.NewSyscallError("epoll_ctl add",
		unix.EpollCtl(p.fd, unix.EPOLL_CTL_ADD, fd, &unix.EpollEvent{Fd: int32(fd), Events: mode(readEvents, edgeTriggered)}))
}

// ModRead renews the given file-descriptor with readable event in the poller.
func (p *Poller) ModRead(fd int, edgeTriggered bool) error {
	return os.NewSyscallError("epoll_ctl mod",
		unix.EpollCtl(p.fd, unix.EPOLL_CTL_MOD, fd, &unix.EpollEvent{Fd: int32(fd), Events: mode(readEvents, edgeTriggered)}))
}

// ModReadWrite renews the given file-descriptor with readable and writable events in the poller.
func (p *Poller) ModReadWrite(fd int, edgeTriggered bool) error {
	return os.NewSyscallError("epoll_ctl mod",
		unix.EpollCtl(p.fd, unix.EPOLL_CTL_MOD, fd, &unix.EpollEvent{Fd: int32(fd), Events: mode(readWriteEvents, edgeTriggered)}))
}

// Delete removes the given file-descriptor from the poller.
func (p *Poller) Delete(fd int) error {
	return os.NewSyscallError("epoll_ctl del", unix.EpollCtl(p.fd, unix.EPOLL_CTL_DEL, fd, nil))
}
