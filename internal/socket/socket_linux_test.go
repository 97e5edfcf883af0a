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

package socket

import (
	"net"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sys/unix"

	"github.com/tlvmux/tlvmux/pkg/errors"
)

func TestTCPSocketBindsEphemeralPort(t *testing.T) {
	fd, addr, err := TCPSocket("tcp", "127.0.0.1:0", Option{SetSockopt: SetNoDelay, Opt: 1})
	require.NoError(t, err)
	defer unix.Close(fd) //nolint:errcheck

	tcpAddr, ok := addr.(*net.TCPAddr)
	require.True(t, ok)
	assert.NotZero(t, tcpAddr.Port)
	assert.True(t, tcpAddr.IP.Equal(net.IPv4(127, 0, 0, 1)))

	flags, err := unix.FcntlInt(uintptr(fd), unix.F_GETFL, 0)
	require.NoError(t, err)
	assert.NotZero(t, flags&unix.O_NONBLOCK)

	c, err := net.Dial("tcp", addr.String())
	require.NoError(t, err)
	defer c.Close()

	var nfd int
	for {
		nfd, _, err = Accept(fd)
		if err != unix.EAGAIN {
			break
		}
	}
	require.NoError(t, err)
	defer unix.Close(nfd) //nolint:errcheck
	assert.NoError(t, SetKeepAlivePeriod(nfd, 30))
	assert.Error(t, SetKeepAlivePeriod(nfd, 0))

	require.NoError(t, SetLinger(nfd, 5))
	l, err := unix.GetsockoptLinger(nfd, unix.SOL_SOCKET, unix.SO_LINGER)
	require.NoError(t, err)
	assert.EqualValues(t, 1, l.Onoff)
	assert.EqualValues(t, 5, l.Linger)
	require.NoError(t, SetLinger(nfd, -1))
	l, err = unix.GetsockoptLinger(nfd, unix.SOL_SOCKET, unix.SO_LINGER)
	require.NoError(t, err)
	assert.Zero(t, l.Onoff)
	assert.Equal(t, addr.String(), LocalAddr(nfd).String())
}

func TestTCPSocketAddressInUse(t *testing.T) {
	fd, addr, err := TCPSocket("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer unix.Close(fd) //nolint:errcheck

	_, _, err = TCPSocket("tcp", addr.String())
	assert.ErrorIs(t, err, errors.ErrBind)
	assert.ErrorIs(t, err, unix.EADDRINUSE)
}

func TestTCPSocketBadAddress(t *testing.T) {
	_, _, err := TCPSocket("tcp", "not an address")
	assert.ErrorIs(t, err, errors.ErrSocket)
}
