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
	"sync"

	"github.com/tlvmux/tlvmux/pkg/pool/bytebuffer"
	"github.com/tlvmux/tlvmux/pkg/tlv"
)

type conn struct {
	fd         int
	svr        *server
	localAddr  net.Addr
	remoteAddr net.Addr
	inbound    *bytebuffer.ByteBuffer // touched by the event loop only
	writable   bool                   // write interest is armed
	opened     bool

	ctxMu sync.RWMutex
	ctx   interface{}
}

func newConn(fd int, svr *server, localAddr, remoteAddr net.Addr) *conn {
	return &conn{
		fd:         fd,
		svr:        svr,
		localAddr:  localAddr,
		remoteAddr: remoteAddr,
		inbound:    bytebuffer.Get(),
	}
}

func (c *conn) release() {
	bytebuffer.Put(c.inbound)
	c.inbound = nil
	c.opened = false
}

func (c *conn) Fd() int              { return c.fd }
func (c *conn) LocalAddr() net.Addr  { return c.localAddr }
func (c *conn) RemoteAddr() net.Addr { return c.remoteAddr }

func (c *conn) Context() interface{} {
	c.ctxMu.RLock()
	defer c.ctxMu.RUnlock()
	return c.ctx
}

func (c *conn) SetContext(ctx interface{}) {
	c.ctxMu.Lock()
	c.ctx = ctx
	c.ctxMu.Unlock()
}

func (c *conn) AsyncWrite(b []byte) error {
	return c.svr.s.SendMessage(c.fd, b)
}

func (c *conn) WriteMessage(msg tlv.Message) error {
	return c.AsyncWrite(c.svr.s.codec.Encode(msg))
}

// connStore maps handles to live connections. The event loop is its only
// writer; SendMessage reads it from any goroutine.
type connStore struct {
	mu    sync.RWMutex
	conns map[int]*conn
}

func newConnStore() *connStore {
	return &connStore{conns: make(map[int]*conn)}
}

func (cs *connStore) add(c *conn) {
	cs.mu.Lock()
	cs.conns[c.fd] = c
	cs.mu.Unlock()
}

func (cs *connStore) get(fd int) *conn {
	cs.mu.RLock()
	c := cs.conns[fd]
	cs.mu.RUnlock()
	return c
}

func (cs *connStore) delete(fd int) {
	cs.mu.Lock()
	delete(cs.conns, fd)
	cs.mu.Unlock()
}

func (cs *connStore) len() int {
	cs.mu.RLock()
	n := len(cs.conns)
	cs.mu.RUnlock()
	return n
}

// withLive runs fn under the read lock if fd is live, and reports whether it was.
func (cs *connStore) withLive(fd int, fn func()) bool {
	cs.mu.RLock()
	defer cs.mu.RUnlock()
	if _, ok := cs.conns[fd]; !ok {
		return false
	}
	fn()
	return true
}

func (cs *connStore) snapshot() []*conn {
	cs.mu.RLock()
	conns := make([]*conn, 0, len(cs.conns))
	for _, c := range cs.conns {
		conns = append(conns, c)
	}
	cs.mu.RUnlock()
	return conns
}
