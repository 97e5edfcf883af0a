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

//go:build linux
// +build linux

package main

import (
	"io"
	"net"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tlvmux/tlvmux"
	"github.com/tlvmux/tlvmux/internal/metrics"
	"github.com/tlvmux/tlvmux/pkg/pool/goroutine"
	"github.com/tlvmux/tlvmux/pkg/tlv"
)

func TestEchoServer(t *testing.T) {
	for _, async := range []bool{false, true} {
		name := "loop"
		if async {
			name = "pool"
		}
		t.Run(name, func(t *testing.T) {
			handler := &echoServer{metrics: metrics.NewHandlerMetrics(prometheus.NewRegistry())}
			if async {
				handler.pool = goroutine.New(16)
				defer handler.pool.Release()
			}
			srv := tlvmux.NewServer(handler)
			require.NoError(t, srv.Start("127.0.0.1", 0, 0))
			defer srv.Stop() //nolint:errcheck

			c, err := net.Dial("tcp", srv.Addr().String())
			require.NoError(t, err)
			defer c.Close()

			for typ := uint16(1); typ <= 5; typ++ {
				_, err = c.Write(tlv.Encode(tlv.NewMessage(typ, []byte("hello"))))
				require.NoError(t, err)

				want := tlv.Encode(tlv.NewMessage(typ+1, []byte("hello")))
				got := make([]byte, len(want))
				require.NoError(t, c.SetReadDeadline(time.Now().Add(3*time.Second)))
				_, err = io.ReadFull(c, got)
				require.NoError(t, err)
				assert.Equal(t, want, got)
			}
		})
	}
}
