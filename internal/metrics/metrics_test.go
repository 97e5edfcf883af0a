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

package metrics

import (
	"context"
	"io"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tlvmux/tlvmux"
)

type fakeSource struct{ stats tlvmux.Stats }

func (f *fakeSource) Stats() tlvmux.Stats { return f.stats }

func TestServerMetricsReadStats(t *testing.T) {
	reg := prometheus.NewRegistry()
	src := &fakeSource{stats: tlvmux.Stats{Connections: 3, Accepted: 10, Rejected: 1, BytesIn: 512}}
	m := NewServerMetrics(reg, src)

	assert.Equal(t, 3.0, testutil.ToFloat64(m.Connections))
	assert.Equal(t, 10.0, testutil.ToFloat64(m.Accepted))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Rejected))
	assert.Equal(t, 512.0, testutil.ToFloat64(m.BytesIn))

	src.stats.Accepted = 11
	assert.Equal(t, 11.0, testutil.ToFloat64(m.Accepted))

	n, err := testutil.GatherAndCount(reg)
	require.NoError(t, err)
	assert.Equal(t, 8, n)
}

func TestHandlerMetrics(t *testing.T) {
	var nilMetrics *HandlerMetrics
	nilMetrics.ObserveMessage("loop", 10)
	nilMetrics.ReplyFailed()

	reg := prometheus.NewRegistry()
	m := NewHandlerMetrics(reg)
	m.ObserveMessage("loop", 10)
	m.ObserveMessage("pool", 1000)
	m.ReplyFailed()
	assert.Equal(t, 1.0, testutil.ToFloat64(m.replyErrors))
	assert.Equal(t, 2, testutil.CollectAndCount(m.valueSize))
}

func TestMetricsServer(t *testing.T) {
	reg := prometheus.NewRegistry()
	NewServerMetrics(reg, &fakeSource{stats: tlvmux.Stats{Closed: 4}})

	s := NewServer("127.0.0.1:0", reg)
	require.NoError(t, s.Listen())
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Serve(ctx) }()

	var body string
	require.Eventually(t, func() bool {
		resp, err := http.Get("http://" + s.Addr().String() + "/metrics")
		if err != nil {
			return false
		}
		defer resp.Body.Close()
		b, _ := io.ReadAll(resp.Body)
		body = string(b)
		return resp.StatusCode == http.StatusOK
	}, 3*time.Second, 20*time.Millisecond)
	assert.True(t, strings.Contains(body, "tlvmux_connections_closed_total 4"))

	cancel()
	assert.NoError(t, <-done)
	assert.NoError(t, s.Stop(context.Background()))
}
