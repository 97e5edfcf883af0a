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
	"strconv"
	"sync"
	"sync/atomic"

	"github.com/tlvmux/tlvmux/pkg/errors"
	"github.com/tlvmux/tlvmux/pkg/logging"
	"github.com/tlvmux/tlvmux/pkg/tlv"
)

// Action is an action that occurs after the completion of an event.
type Action int

const (
	// None indicates that no action should occur following an event.
	None Action = iota

	// Close closes the connection.
	Close
)

// Conn is a connection accepted by the server. Its methods are safe to call
// from any goroutine.
type Conn interface {
	// Fd returns the handle of the connection, the underlying socket descriptor.
	Fd() int

	// LocalAddr is the connection's local socket address.
	LocalAddr() net.Addr

	// RemoteAddr is the connection's remote peer address.
	RemoteAddr() net.Addr

	// Context returns a user-defined context.
	Context() (ctx interface{})

	// SetContext sets a user-defined context.
	SetContext(ctx interface{})

	// AsyncWrite queues raw bytes for the peer, see Server.SendMessage.
	AsyncWrite(b []byte) error

	// WriteMessage encodes msg with the server codec and queues it for the peer.
	WriteMessage(msg tlv.Message) error
}

type (
	// EventHandler represents the server events' callbacks.
	// Every callback except OnBoot and OnShutdown runs on the event-loop
	// goroutine, one at a time, so a slow callback delays every connection.
	// Callbacks may call SendMessage but must not call Stop.
	EventHandler interface {
		// OnBoot fires when the server is ready for accepting connections.
		OnBoot(s *Server)

		// OnShutdown fires after the event loop has exited and every
		// connection has been closed.
		OnShutdown(s *Server)

		// OnOpened fires when a new connection has been accepted and registered.
		OnOpened(c Conn) (action Action)

		// OnClosed fires when a connection has been closed and forgotten.
		// The parameter err is the last known connection error, nil when
		// the close was requested by a callback.
		OnClosed(c Conn, err error)

		// OnMessage fires once for every complete TLV frame received.
		OnMessage(c Conn, msg tlv.Message) (action Action)
	}

	// EventServer is a built-in implementation of EventHandler which sets up each method with a default implementation,
	// you can compose it with your own implementation of EventHandler when you don't want to implement all methods
	// in EventHandler.
	EventServer struct{}
)

// OnBoot fires when the server is ready for accepting connections.
func (es *EventServer) OnBoot(_ *Server) {}

// OnShutdown fires after the event loop has exited.
func (es *EventServer) OnShutdown(_ *Server) {}

// OnOpened fires when a new connection has been opened.
func (es *EventServer) OnOpened(_ Conn) (action Action) {
	return
}

// OnClosed fires when a connection has been closed.
func (es *EventServer) OnClosed(_ Conn, _ error) {}

// OnMessage fires when a complete frame has been received.
func (es *EventServer) OnMessage(_ Conn, _ tlv.Message) (action Action) {
	return
}

// Stats is a snapshot of the server counters. Counters accumulate over the
// lifetime of the Server, across restarts.
type Stats struct {
	Connections int    // live connections
	Accepted    uint64 // connections accepted and registered
	Rejected    uint64 // connections refused by the connection limit
	Closed      uint64 // connections torn down
	MessagesIn  uint64 // frames decoded
	MessagesOut uint64 // payloads queued through SendMessage
	BytesIn     uint64 // bytes read from peers
	BytesOut    uint64 // bytes written to peers
}

type counters struct {
	accepted    atomic.Uint64
	rejected    atomic.Uint64
	closed      atomic.Uint64
	messagesIn  atomic.Uint64
	messagesOut atomic.Uint64
	bytesIn     atomic.Uint64
	bytesOut    atomic.Uint64
}

// Server multiplexes TLV connections over a single event loop.
type Server struct {
	handler EventHandler
	opts    *Options
	codec   *tlv.Codec
	stats   counters
	flush   logging.Flusher

	mu  sync.Mutex // serializes Start and Stop
	svr atomic.Pointer[server]
}

// NewServer creates a stopped server delivering events to handler.
func NewServer(handler EventHandler, opts ...Option) *Server {
	options := loadOptions(opts...)
	options.normalize()

	s := &Server{handler: handler, opts: options}

	if options.Logger == nil {
		if options.LogPath != "" {
			logger, flush, err := logging.CreateLoggerAsLocalFile(options.LogPath, options.LogLevel)
			if err != nil {
				logging.Errorf("failed to create logger at %s, falling back to the default one: %v", options.LogPath, err)
			} else {
				options.Logger, s.flush = logger, flush
			}
		}
		if options.Logger == nil {
			options.Logger = logging.GetDefaultLogger()
		}
	}

	maxLength := uint32(tlv.DefaultMaxValueLength)
	switch {
	case options.MaxFrameSize < 0:
		maxLength = 0
	case options.MaxFrameSize > 0:
		maxLength = uint32(options.MaxFrameSize)
	}
	s.codec = tlv.NewCodec(tlv.WithByteOrder(options.ByteOrder), tlv.WithMaxValueLength(maxLength))
	return s
}

// Codec returns the codec the server frames messages with.
func (s *Server) Codec() *tlv.Codec {
	return s.codec
}

// Start binds bindAddress:port and launches the event loop and the output
// promotion goroutine. maxConnections <= 0 means no limit.
//
// Starting a running server is a no-op. A stopped server can be started again.
// Setup failures leave nothing running and wrap errors.ErrSocket or errors.ErrBind.
func (s *Server) Start(bindAddress string, port, maxConnections int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if svr := s.svr.Load(); svr != nil {
		if svr.isRunning() {
			return nil
		}
		// The event loop died on its own, reap it before starting over.
		_ = svr.stop()
		s.svr.Store(nil)
	}

	addr := net.JoinHostPort(bindAddress, strconv.Itoa(port))
	svr, err := newServer(s, addr, maxConnections)
	if err != nil {
		s.opts.Logger.Errorf("failed to start server on %s: %v", addr, err)
		return err
	}
	s.svr.Store(svr)
	s.handler.OnBoot(s)
	svr.start()
	s.opts.Logger.Infof("tlvmux server is listening on %s, max connections: %d", svr.addr(), maxConnections)
	return nil
}

// Stop shuts the server down and waits for its goroutines to exit. Connections
// still open are closed, each one reported through OnClosed. Stop on a stopped
// server is a no-op.
func (s *Server) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	svr := s.svr.Load()
	if svr == nil {
		return nil
	}
	err := svr.stop()
	s.svr.Store(nil)
	s.handler.OnShutdown(s)
	if err != nil {
		s.opts.Logger.Errorf("server is stopped with error: %v", err)
	} else {
		s.opts.Logger.Infof("tlvmux server is stopped")
	}
	if s.flush != nil {
		_ = s.flush()
	}
	return err
}

// SendMessage queues a copy of b for the connection with handle fd and returns
// without waiting for it to be written. b is sent as is, callers frame it with
// the codec. Bytes queued to a connection that closes before they are written
// are dropped.
func (s *Server) SendMessage(fd int, b []byte) error {
	svr := s.svr.Load()
	if svr == nil || !svr.isRunning() {
		return errors.ErrServerStopped
	}
	if len(b) == 0 {
		return errors.ErrEmptyPayload
	}
	return svr.send(fd, b)
}

// Running reports whether the event loop is running.
func (s *Server) Running() bool {
	svr := s.svr.Load()
	return svr != nil && svr.isRunning()
}

// Addr returns the bound listening address, nil when the server is stopped.
func (s *Server) Addr() net.Addr {
	if svr := s.svr.Load(); svr != nil {
		return svr.addr()
	}
	return nil
}

// CountConnections counts the number of currently live connections.
func (s *Server) CountConnections() int {
	if svr := s.svr.Load(); svr != nil {
		return svr.countConnections()
	}
	return 0
}

// Stats returns a snapshot of the server counters.
func (s *Server) Stats() Stats {
	return Stats{
		Connections: s.CountConnections(),
		Accepted:    s.stats.accepted.Load(),
		Rejected:    s.stats.rejected.Load(),
		Closed:      s.stats.closed.Load(),
		MessagesIn:  s.stats.messagesIn.Load(),
		MessagesOut: s.stats.messagesOut.Load(),
		BytesIn:     s.stats.bytesIn.Load(),
		BytesOut:    s.stats.bytesOut.Load(),
	}
}
