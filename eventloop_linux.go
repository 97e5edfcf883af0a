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
	"fmt"
	"io"
	"os"
	"runtime"
	"time"

	"golang.org/x/sys/unix"

	"github.com/tlvmux/tlvmux/internal/netpoll"
	"github.com/tlvmux/tlvmux/internal/socket"
	"github.com/tlvmux/tlvmux/pkg/errors"
	"github.com/tlvmux/tlvmux/pkg/pool/bytebuffer"
)

// run is the event loop. It is the only goroutine that accepts, reads, writes,
// closes or changes readiness registrations.
func (svr *server) run() {
	defer svr.wg.Done()

	if svr.opts.LockOSThread {
		runtime.LockOSThread()
		defer runtime.UnlockOSThread()
	}

	err := svr.poller.Polling(svr.opts.PollTimeout, svr.running.Load, svr.handleEvent)
	if err != nil && err != errors.ErrServerShutdown {
		svr.logger.Errorf("event loop is exiting with error: %v", err)
	}
	svr.running.Store(false)

	for _, c := range svr.conns.snapshot() {
		_ = svr.closeConn(c, errors.ErrServerShutdown)
	}
}

func (svr *server) handleEvent(fd int, ev netpoll.IOEvent) error {
	if fd == svr.ln.fd {
		return svr.accept()
	}

	c := svr.conns.get(fd)
	if c == nil {
		return nil
	}

	if ev&netpoll.ErrEvents != 0 {
		return svr.closeConn(c, socketError(fd))
	}
	if ev&(unix.EPOLLIN|unix.EPOLLPRI) != 0 {
		if err := svr.read(c); err != nil || !c.opened {
			return err
		}
	}
	if ev&unix.EPOLLOUT != 0 {
		return svr.write(c)
	}
	return nil
}

func socketError(fd int) error {
	if errno, err := unix.GetsockoptInt(fd, unix.SOL_SOCKET, unix.SO_ERROR); err == nil && errno != 0 {
		return os.NewSyscallError("poll", unix.Errno(errno))
	}
	return io.EOF
}

// accept drains the listen backlog.
func (svr *server) accept() error {
	for {
		nfd, remoteAddr, err := socket.Accept(svr.ln.fd)
		if err != nil {
			switch err {
			case unix.EAGAIN:
				return nil
			case unix.EINTR, unix.ECONNABORTED:
				continue
			}
			return fmt.Errorf("%w: %w", errors.ErrAcceptSocket, os.NewSyscallError("accept4", err))
		}

		if svr.maxConns > 0 && svr.conns.len() >= svr.maxConns {
			_ = unix.Close(nfd)
			svr.s.stats.rejected.Add(1)
			svr.logger.Warnf("rejected connection from %v: %v (limit %d)", remoteAddr, errors.ErrTooManyConnections, svr.maxConns)
			continue
		}

		if svr.opts.TCPNoDelay == TCPNoDelay {
			svr.warnSockopt(socket.SetNoDelay(nfd, 1))
		}
		if svr.opts.TCPKeepAlive > 0 {
			svr.warnSockopt(socket.SetKeepAlivePeriod(nfd, ceilSeconds(svr.opts.TCPKeepAlive)))
		}
		if svr.opts.TCPLinger > 0 {
			svr.warnSockopt(socket.SetLinger(nfd, ceilSeconds(svr.opts.TCPLinger)))
		}

		// A recycled descriptor must not inherit output queued for its previous owner.
		svr.outbound.Clear(nfd)

		if err = svr.poller.AddRead(nfd, true); err != nil {
			_ = unix.Close(nfd)
			svr.logger.Warnf("failed to register connection from %v: %v", remoteAddr, err)
			continue
		}

		c := newConn(nfd, svr, socket.LocalAddr(nfd), remoteAddr)
		c.opened = true
		svr.conns.add(c)
		svr.s.stats.accepted.Add(1)
		svr.logger.Debugf("accepted connection fd=%d from %v", nfd, remoteAddr)

		if svr.s.handler.OnOpened(c) == Close {
			_ = svr.closeConn(c, nil)
		}
	}
}

// ceilSeconds converts d to the whole seconds socket options take, rounding up
// so that a positive duration never becomes 0.
func ceilSeconds(d time.Duration) int {
	return int((d + time.Second - 1) / time.Second)
}

func (svr *server) warnSockopt(err error) {
	if err != nil {
		svr.logger.Warnf("failed to set socket option: %v", err)
	}
}

// read drains the socket, decoding and dispatching every complete frame as
// soon as its bytes have arrived.
func (svr *server) read(c *conn) error {
	for {
		n, err := unix.Read(c.fd, svr.buffer)
		if err != nil {
			switch err {
			case unix.EAGAIN:
				return nil
			case unix.EINTR:
				continue
			}
			return svr.closeConn(c, os.NewSyscallError("read", err))
		}
		if n == 0 {
			return svr.closeConn(c, io.EOF)
		}
		svr.s.stats.bytesIn.Add(uint64(n))
		_, _ = c.inbound.Write(svr.buffer[:n])

		if err = svr.dispatch(c); err != nil || !c.opened {
			return err
		}
	}
}

func (svr *server) dispatch(c *conn) error {
	codec := svr.s.codec
	consumed := 0
	for c.opened {
		msg, n, err := codec.Decode(c.inbound.B[consumed:])
		if err == errors.ErrIncompletePacket {
			break
		}
		if err != nil {
			svr.logger.Warnf("closing connection fd=%d from %v: %v", c.fd, c.remoteAddr, err)
			return svr.closeConn(c, err)
		}
		consumed += n
		svr.s.stats.messagesIn.Add(1)

		if svr.s.handler.OnMessage(c, msg) == Close {
			return svr.closeConn(c, nil)
		}
	}
	if c.opened {
		bytebuffer.Discard(c.inbound, consumed)
	}
	return nil
}

// write flushes what is queued for c. On a short write the remainder goes back
// to the head of the queue and write interest stays armed.
func (svr *server) write(c *conn) error {
	buf, ok := svr.outbound.TakeAll(c.fd)
	if !ok {
		return svr.modRead(c)
	}
	defer bytebuffer.Put(buf)

	data := buf.B
	for len(data) > 0 {
		n, err := unix.Write(c.fd, data)
		if err != nil {
			switch err {
			case unix.EINTR:
				continue
			case unix.EAGAIN:
				svr.outbound.PushFront(c.fd, data)
				return svr.modReadWrite(c)
			}
			return svr.closeConn(c, os.NewSyscallError("write", err))
		}
		svr.s.stats.bytesOut.Add(uint64(n))
		data = data[n:]
	}

	if svr.outbound.HasPending(c.fd) {
		return svr.modReadWrite(c)
	}
	return svr.modRead(c)
}

func (svr *server) modRead(c *conn) error {
	if !c.writable {
		return nil
	}
	if err := svr.poller.ModRead(c.fd, true); err != nil {
		return svr.closeConn(c, err)
	}
	c.writable = false
	return nil
}

// modReadWrite re-arms write interest even when it is already set, which makes
// epoll report a writable socket again.
func (svr *server) modReadWrite(c *conn) error {
	if err := svr.poller.ModReadWrite(c.fd, true); err != nil {
		return svr.closeConn(c, err)
	}
	c.writable = true
	return nil
}

// rearm arms write interest for the given handles that are still live and
// not armed yet. It runs on the event loop as a poller task.
func (svr *server) rearm(arg interface{}) error {
	for _, fd := range arg.([]int) {
		c := svr.conns.get(fd)
		if c == nil || c.writable {
			continue
		}
		_ = svr.modReadWrite(c)
	}
	return nil
}

// closeConn tears c down: deregister, forget, drop queued output, close the
// descriptor, and report OnClosed last.
func (svr *server) closeConn(c *conn, err error) error {
	if !c.opened {
		return nil
	}

	if e := svr.poller.Delete(c.fd); e != nil {
		svr.logger.Debugf("failed to deregister fd=%d: %v", c.fd, e)
	}
	svr.conns.delete(c.fd)
	svr.outbound.Clear(c.fd)
	if e := unix.Close(c.fd); e != nil {
		svr.logger.Warnf("failed to close fd=%d: %v", c.fd, os.NewSyscallError("close", e))
	}
	c.release()
	svr.s.stats.closed.Add(1)
	svr.logger.Debugf("closed connection fd=%d from %v: %v", c.fd, c.remoteAddr, err)

	svr.s.handler.OnClosed(c, err)
	return nil
}
