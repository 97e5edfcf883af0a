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
	"time"

	"github.com/tlvmux/tlvmux/pkg/byteorder"
	"github.com/tlvmux/tlvmux/pkg/logging"
)

// Option is a function that will set up option.
type Option func(opts *Options)

func loadOptions(options ...Option) *Options {
	opts := new(Options)
	for _, option := range options {
		option(opts)
	}
	return opts
}

// TCPSocketOpt is the type of TCP socket options.
type TCPSocketOpt int

// Available TCP socket options.
const (
	TCPNoDelay TCPSocketOpt = iota
	TCPDelay
)

const (
	// DefaultPollTimeout bounds a single wait of the event loop.
	DefaultPollTimeout = 100 * time.Millisecond
	// DefaultFlushInterval is the period of the pending-output promotion.
	DefaultFlushInterval = 10 * time.Millisecond
	// DefaultReadBufferCap is the size of the buffer each read lands in.
	DefaultReadBufferCap = 64 * 1024
)

// Options are configurations for the server.
type Options struct {
	// ByteOrder is the byte order of TLV header fields, big-endian by default.
	ByteOrder byteorder.Order

	// MaxFrameSize caps the declared value length of an inbound frame,
	// a connection announcing a larger one is closed.
	// 0 means tlv.DefaultMaxValueLength, a negative value disables the cap.
	MaxFrameSize int

	// PollTimeout bounds each wait for readiness events, it also bounds how
	// long Stop waits for the event loop to notice.
	PollTimeout time.Duration

	// FlushInterval is how often connections holding queued output get their
	// write interest re-armed.
	FlushInterval time.Duration

	// WakeOnSend makes SendMessage re-arm write interest right away instead of
	// waiting for the next flush tick.
	WakeOnSend bool

	// ReadBufferCap is the maximum number of bytes that can be read from the peer in one read call.
	ReadBufferCap int

	// LockOSThread is used to determine whether the event loop locks its OS thread.
	LockOSThread bool

	// ReusePort indicates whether to set up the SO_REUSEPORT socket option.
	ReusePort bool

	// SocketRecvBuffer sets the maximum socket receive buffer in bytes.
	SocketRecvBuffer int

	// SocketSendBuffer sets the maximum socket send buffer in bytes.
	SocketSendBuffer int

	// TCPKeepAlive sets up a duration for (SO_KEEPALIVE) socket option.
	// It is applied in whole seconds, rounded up.
	TCPKeepAlive time.Duration

	// TCPLinger sets up SO_LINGER on accepted connections, so closing one
	// waits up to this long for unsent data. It is applied in whole seconds,
	// rounded up; 0 keeps the system default.
	TCPLinger time.Duration

	// TCPNoDelay controls whether the operating system should delay
	// packet transmission in hopes of sending fewer packets (Nagle's algorithm).
	//
	// The default is true (no delay), meaning that data is sent
	// as soon as possible after a write operation.
	TCPNoDelay TCPSocketOpt

	// LogPath the local path where logs will be written, this is the easiest way to set up logging,
	// tlvmux instantiates a default uber-go/zap logger with this given log path, you are also allowed to employ
	// you own logger during the lifetime by implementing the following log.Logger interface.
	//
	// Note that this option can be overridden by the option Logger.
	LogPath string

	// LogLevel indicates the logging level, it should be used along with LogPath.
	LogLevel logging.Level

	// Logger is the customized logger for logging info, if it is not set,
	// then tlvmux will use the default logger powered by go.uber.org/zap.
	Logger logging.Logger
}

func (opts *Options) normalize() {
	if opts.PollTimeout <= 0 {
		opts.PollTimeout = DefaultPollTimeout
	}
	if opts.FlushInterval <= 0 {
		opts.FlushInterval = DefaultFlushInterval
	}
	if opts.ReadBufferCap <= 0 {
		opts.ReadBufferCap = DefaultReadBufferCap
	}
}

// WithOptions sets up all options.
func WithOptions(options Options) Option {
	return func(opts *Options) {
		*opts = options
	}
}

// WithByteOrder sets up the byte order of TLV headers.
func WithByteOrder(order byteorder.Order) Option {
	return func(opts *Options) {
		opts.ByteOrder = order
	}
}

// WithMaxFrameSize sets up the largest acceptable declared value length.
func WithMaxFrameSize(size int) Option {
	return func(opts *Options) {
		opts.MaxFrameSize = size
	}
}

// WithPollTimeout sets up the bound of a single readiness wait.
func WithPollTimeout(timeout time.Duration) Option {
	return func(opts *Options) {
		opts.PollTimeout = timeout
	}
}

// WithFlushInterval sets up the period of the pending-output promotion.
func WithFlushInterval(interval time.Duration) Option {
	return func(opts *Options) {
		opts.FlushInterval = interval
	}
}

// WithWakeOnSend makes every SendMessage wake the event loop.
func WithWakeOnSend(wake bool) Option {
	return func(opts *Options) {
		opts.WakeOnSend = wake
	}
}

// WithReadBufferCap sets up ReadBufferCap for reading bytes.
func WithReadBufferCap(readBufferCap int) Option {
	return func(opts *Options) {
		opts.ReadBufferCap = readBufferCap
	}
}

// WithLockOSThread sets up LockOSThread mode for the event loop.
func WithLockOSThread(lockOSThread bool) Option {
	return func(opts *Options) {
		opts.LockOSThread = lockOSThread
	}
}

// WithReusePort sets up SO_REUSEPORT socket option.
func WithReusePort(reusePort bool) Option {
	return func(opts *Options) {
		opts.ReusePort = reusePort
	}
}

// WithSocketRecvBuffer sets the maximum socket receive buffer in bytes.
func WithSocketRecvBuffer(recvBuf int) Option {
	return func(opts *Options) {
		opts.SocketRecvBuffer = recvBuf
	}
}

// WithSocketSendBuffer sets the maximum socket send buffer in bytes.
func WithSocketSendBuffer(sendBuf int) Option {
	return func(opts *Options) {
		opts.SocketSendBuffer = sendBuf
	}
}

// WithTCPKeepAlive sets up the SO_KEEPALIVE socket option with duration.
func WithTCPKeepAlive(tcpKeepAlive time.Duration) Option {
	return func(opts *Options) {
		opts.TCPKeepAlive = tcpKeepAlive
	}
}

// WithTCPLinger sets up the SO_LINGER socket option with duration.
func WithTCPLinger(tcpLinger time.Duration) Option {
	return func(opts *Options) {
		opts.TCPLinger = tcpLinger
	}
}

// WithTCPNoDelay enable/disable the TCP_NODELAY socket option.
func WithTCPNoDelay(tcpNoDelay TCPSocketOpt) Option {
	return func(opts *Options) {
		opts.TCPNoDelay = tcpNoDelay
	}
}

// WithLogPath is an option to set up the local path of log file.
func WithLogPath(fileName string) Option {
	return func(opts *Options) {
		opts.LogPath = fileName
	}
}

// WithLogLevel is an option to set up the logging level.
func WithLogLevel(lvl logging.Level) Option {
	return func(opts *Options) {
		opts.LogLevel = lvl
	}
}

// WithLogger sets up a customized logger.
func WithLogger(logger logging.Logger) Option {
	return func(opts *Options) {
		opts.Logger = logger
	}
}
