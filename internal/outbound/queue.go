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

// Package outbound keeps the bytes waiting to be written to each connection.
package outbound

import (
	"sort"
	"sync"

	"github.com/eapache/queue"

	"github.com/tlvmux/tlvmux/pkg/pool/bytebuffer"
)

type fifo struct {
	q     *queue.Queue
	bytes int
}

// Queue is a set of per-handle FIFOs of pending payloads. It is safe for
// concurrent use: any number of producers may push while the event loop drains.
type Queue struct {
	mu    sync.Mutex
	fifos map[int]*fifo
}

// New returns an empty Queue.
func New() *Queue {
	return &Queue{fifos: make(map[int]*fifo)}
}

func (oq *Queue) fifoLocked(fd int) *fifo {
	f, ok := oq.fifos[fd]
	if !ok {
		f = &fifo{q: queue.New()}
		oq.fifos[fd] = f
	}
	return f
}

func clone(b []byte) []byte {
	p := make([]byte, len(b))
	copy(p, b)
	return p
}

// Push appends a copy of b to the tail of fd's FIFO.
// It returns false if fd is negative or b is empty.
func (oq *Queue) Push(fd int, b []byte) bool {
	if fd < 0 || len(b) == 0 {
		return false
	}
	p := clone(b)

	oq.mu.Lock()
	f := oq.fifoLocked(fd)
	f.q.Add(p)
	f.bytes += len(p)
	oq.mu.Unlock()
	return true
}

// PushFront puts a copy of b ahead of everything queued for fd.
// It returns false if fd is negative or b is empty.
func (oq *Queue) PushFront(fd int, b []byte) bool {
	if fd < 0 || len(b) == 0 {
		return false
	}
	p := clone(b)

	oq.mu.Lock()
	defer oq.mu.Unlock()
	old, ok := oq.fifos[fd]
	f := &fifo{q: queue.New(), bytes: len(p)}
	f.q.Add(p)
	if ok {
		for old.q.Length() > 0 {
			f.q.Add(old.q.Remove())
		}
		f.bytes += old.bytes
	}
	oq.fifos[fd] = f
	return true
}

// TakeAll removes everything queued for fd and returns it concatenated in
// FIFO order. The caller owns the buffer and should hand it back with
// bytebuffer.Put. ok is false when nothing was queued.
func (oq *Queue) TakeAll(fd int) (buf *bytebuffer.ByteBuffer, ok bool) {
	oq.mu.Lock()
	f, exist := oq.fifos[fd]
	if !exist {
		oq.mu.Unlock()
		return nil, false
	}
	delete(oq.fifos, fd)
	oq.mu.Unlock()

	buf = bytebuffer.Get()
	if cap(buf.B) < f.bytes {
		buf.B = make([]byte, 0, f.bytes)
	}
	for f.q.Length() > 0 {
		_, _ = buf.Write(f.q.Remove().([]byte))
	}
	return buf, true
}

// HasPending reports whether anything is queued for fd.
func (oq *Queue) HasPending(fd int) bool {
	oq.mu.Lock()
	_, ok := oq.fifos[fd]
	oq.mu.Unlock()
	return ok
}

// Len returns the number of bytes queued for fd.
func (oq *Queue) Len(fd int) int {
	oq.mu.Lock()
	defer oq.mu.Unlock()
	if f, ok := oq.fifos[fd]; ok {
		return f.bytes
	}
	return 0
}

// Pending returns the handles that have queued data, in ascending order.
func (oq *Queue) Pending() []int {
	oq.mu.Lock()
	fds := make([]int, 0, len(oq.fifos))
	for fd := range oq.fifos {
		fds = append(fds, fd)
	}
	oq.mu.Unlock()
	sort.Ints(fds)
	return fds
}

// Clear drops everything queued for fd.
func (oq *Queue) Clear(fd int) {
	oq.mu.Lock()
	delete(oq.fifos, fd)
	oq.mu.Unlock()
}

// ClearAll drops everything queued for every handle.
func (oq *Queue) ClearAll() {
	oq.mu.Lock()
	oq.fifos = make(map[int]*fifo)
	oq.mu.Unlock()
}
