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

// Package errors defines common errors for tlvmux.
package errors

import "errors"

var (
	// ErrServerShutdown occurs when server is closing.
	ErrServerShutdown = errors.New("tlvmux: server is going to be shutdown")
	// ErrServerStopped occurs when trying to send through a server that is not running.
	ErrServerStopped = errors.New("tlvmux: server is not running")
	// ErrSocket occurs when the listening socket cannot be created or configured.
	ErrSocket = errors.New("tlvmux: failed to set up the listening socket")
	// ErrBind occurs when the listening socket cannot be bound to the requested address.
	ErrBind = errors.New("tlvmux: failed to bind the listening socket")
	// ErrAcceptSocket occurs when acceptor does not accept the new connection properly.
	ErrAcceptSocket = errors.New("tlvmux: accept a new connection error")
	// ErrUnsupportedProtocol occurs when trying to use protocol that is not supported.
	ErrUnsupportedProtocol = errors.New("tlvmux: only tcp/tcp4/tcp6 are supported")
	// ErrUnsupportedPlatform occurs when running the multiplexer on a platform without epoll.
	ErrUnsupportedPlatform = errors.New("tlvmux: unsupported platform, linux is required")
	// ErrInvalidConn occurs when the handle does not refer to a live connection.
	ErrInvalidConn = errors.New("tlvmux: no live connection for the handle")
	// ErrEmptyPayload occurs when trying to send zero bytes.
	ErrEmptyPayload = errors.New("tlvmux: empty payload is not allowed")
	// ErrTooManyConnections occurs when the connection limit is reached.
	ErrTooManyConnections = errors.New("tlvmux: too many connections")
	// ErrIncompletePacket occurs when there is not enough data for a whole TLV frame.
	ErrIncompletePacket = errors.New("tlvmux: incomplete packet")
	// ErrFrameTooLarge occurs when a frame declares a value longer than the configured maximum.
	ErrFrameTooLarge = errors.New("tlvmux: frame length exceeds the maximum")
)
