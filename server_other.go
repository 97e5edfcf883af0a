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

//go:build !linux
// +build !linux

package tlvmux

import (
	"net"

	"github.com/tlvmux/tlvmux/pkg/errors"
)

type server struct{}

func newServer(_ *Server, _ string, _ int) (*server, error) {
	return nil, errors.ErrUnsupportedPlatform
}

func (svr *server) start()                {}
func (svr *server) stop() error           { return nil }
func (svr *server) isRunning() bool       { return false }
func (svr *server) addr() net.Addr        { return nil }
func (svr *server) countConnections() int { return 0 }
func (svr *server) send(int, []byte) error {
	return errors.ErrUnsupportedPlatform
}
