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

package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tlvmux/tlvmux/pkg/tlv"
)

func TestParseCommand(t *testing.T) {
	cmd, err := parseCommand("send 1 hello world")
	require.NoError(t, err)
	assert.Equal(t, cmdSend, cmd.kind)
	assert.Equal(t, tlv.NewMessage(1, []byte("hello world")), cmd.msg)

	cmd, err = parseCommand("  hex 0x10 de ad be ef ")
	require.NoError(t, err)
	assert.EqualValues(t, 16, cmd.msg.Type)
	assert.Equal(t, []byte{0xde, 0xad, 0xbe, 0xef}, cmd.msg.Value)

	cmd, err = parseCommand("send 7")
	require.NoError(t, err)
	assert.Zero(t, cmd.msg.Length)

	for _, line := range []string{"", "   "} {
		cmd, err = parseCommand(line)
		require.NoError(t, err)
		assert.Equal(t, cmdNone, cmd.kind)
	}

	cmd, err = parseCommand("quit")
	require.NoError(t, err)
	assert.Equal(t, cmdQuit, cmd.kind)

	for _, bad := range []string{"send", "send 70000 x", "send abc x", "hex 1 zz", "dance"} {
		_, err = parseCommand(bad)
		assert.Error(t, err, bad)
	}
}

func TestFormatMessage(t *testing.T) {
	assert.Equal(t, `type=2 len=5 value="hello"`, formatMessage(tlv.NewMessage(2, []byte("hello"))))
	assert.Equal(t, "type=3 len=2 value=0x00ff", formatMessage(tlv.NewMessage(3, []byte{0, 0xff})))
}
