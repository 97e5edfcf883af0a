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

package tlvmux

import (
	"net"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sys/unix"

	"github.com/tlvmux/tlvmux/internal/netpoll"
	"github.com/tlvmux/tlvmux/internal/outbound"
	"github.com/tlvmux/tlvmux/internal/socket"
	"github.com/tlvmux/tlvmux/pkg/errors"
	"github.com/tlvmux/tlvmux/pkg/logging"
)

type listener struct {
	fd   int
	addr net.Addr
}

func (ln *listener) close() {
	if ln.fd >= 0 {
		logging.Error(os.NewSyscallError("close", unix.Close(ln.fd)))
		ln.fd = -1
	}
}

// server is one run of a Server, from Start to Stop.
type server struct {
	s        *Server
	opts     *Options
	logger   logging.Logger
	ln       *listener
	poller   *netpoll.Poller
	conns    *connStore
	outbound *outbound.Queue
	maxConns int
	buffer   []byte // read buffer of the event loop

	running  atomic.Bool
	done     chan struct{}
	wg       sync.WaitGroup
	stopOnce sync.Once
	stopErr  error
}

func newServer(s *Server, addr string, maxConns int) (svr *server, err error) {
	svr = &server{
		s:        s,
		opts:     s.opts,
		logger:   s.opts.Logger,
		conns:    newConnStore(),
		outbound: outbound.New(),
		maxConns: maxConns,
		buffer:   make([]byte, s.opts.ReadBufferCap),
		done:     make(chan struct{}),
	}

	var sockOpts []socket.Option
	if s.opts.ReusePort {
		sockOpts = append(sockOpts, socket.Option{SetSockopt: socket.SetReuseport, Opt: 1})
	}
	if s.opts.SocketRecvBuffer > 0 {
		sockOpts = append(sockOpts, socket.Option{SetSockopt: socket.SetRecvBuffer, Opt: s.opts.SocketRecvBuffer})
	}
	if s.opts.SocketSendBuffer > 0 {
		sockOpts = append(sockOpts, socket.Option{SetSockopt: socket.SetSendBuffer, Opt: s.opts.SocketSendBuffer})
	}

	svr.ln = &listener{fd: -1}
	if svr.ln.fd, svr.ln.addr, err = socket.TCPSocket("tcp", addr, sockOpts...); err != nil {
		return nil, err
	}
	defer func() {
		if err != nil {
			svr.ln.close()
		}
	}()

	if svr.poller, err = netpoll.OpenPoller(); err != nil {
		return nil, err
	}
	if err = svr.poller.AddRead(svr.ln.fd, true); err != nil {
		_ = svr.poller.Close()
		return nil, err
	}
	return svr, nil
}

func (svr *server) start() {
	svr.running.Store(true)
	svr.wg.Add(2)
	go svr.run()
	go svr.promote()
}

// stop flips the running flag, wakes the event loop and waits for both
// goroutines before releasing the listener and the poller.
func (svr *server) stop() error {
	svr.stopOnce.Do(func() {
		svr.running.Store(false)
		close(svr.done)
		if err := svr.poller.Trigger(func(interface{}) error { return errors.ErrServerShutdown }, nil); err != nil {
			svr.logger.Warnf("failed to wake the event loop: %v", err)
		}
		svr.wg.Wait()

		if err := svr.poller.Delete(svr.ln.fd); err != nil {
			svr.logger.Debugf("failed to deregister listener: %v", err)
		}
		svr.ln.close()
		svr.stopErr = svr.poller.Close()
		svr.outbound.ClearAll()
	})
	return svr.stopErr
}

func (svr *server) isRunning() bool {
	return svr.running.Load()
}

func (svr *server) addr() net.Addr {
	return svr.ln.addr
}

func (svr *server) countConnections() int {
	return svr.conns.len()
}

// send queues b for fd. Liveness is checked and the bytes are queued under the
// store read lock, so nothing can be queued for a handle after the event loop
// has forgotten it. The wake-up happens under the same lock: the loop forgets
// every connection before the poller is closed.
func (svr *server) send(fd int, b []byte) error {
	live := svr.conns.withLive(fd, func() {
		svr.outbound.Push(fd, b)
		if !svr.opts.WakeOnSend {
			return
		}
		if err := svr.poller.Trigger(svr.rearm, []int{fd}); err != nil {
			svr.logger.Warnf("failed to wake the event loop for fd=%d: %v", fd, err)
		}
	})
	if !live {
		return errors.ErrInvalidConn
	}
	svr.s.stats.messagesOut.Add(1)
	return nil
}

// promote periodically hands the handles with queued output to the event
// loop, which arms their write interest.
func (svr *server) promote() {
	defer svr.wg.Done()

	ticker := time.NewTicker(svr.opts.FlushInterval)
	defer ticker.Stop()

	for {
		select {
		case <-svr.done:
			return
		case <-ticker.C:
		}
		if !svr.running.Load() {
			return
		}
		fds := svr.outbound.Pending()
		if len(fds) == 0 {
			continue
		}
		if err := svr.poller.Trigger(svr.rearm, fds); err != nil {
			svr.logger.Warnf("failed to trigger output promotion: %v", err)
		}
	}
}
