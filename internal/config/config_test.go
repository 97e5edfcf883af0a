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

package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tlvmux/tlvmux"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadDefaults(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, DefaultAddr, cfg.Server.Addr)
	assert.Equal(t, DefaultPort, cfg.Server.Port)
	assert.Equal(t, "big", cfg.Server.ByteOrder)
	assert.Equal(t, tlvmux.DefaultPollTimeout, cfg.Server.PollTimeout)
	assert.Equal(t, tlvmux.DefaultFlushInterval, cfg.Server.FlushInterval)
	assert.Equal(t, "info", cfg.Logging.Level)
	assert.False(t, cfg.Metrics.Enabled)
	assert.Equal(t, GetDefaultConfig(), cfg)
}

func TestLoadFile(t *testing.T) {
	path := writeConfig(t, `
server:
  addr: 127.0.0.1
  port: 9000
  max_connections: 64
  byte_order: LITTLE
  max_frame_size: 1048576
  flush_interval: 5ms
  tcp_keepalive: 1500ms
  tcp_linger: 2s
logging:
  level: DEBUG
metrics:
  enabled: true
echo:
  async: true
`)
	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "127.0.0.1", cfg.Server.Addr)
	assert.Equal(t, 9000, cfg.Server.Port)
	assert.Equal(t, 64, cfg.Server.MaxConnections)
	assert.Equal(t, "little", cfg.Server.ByteOrder)
	assert.Equal(t, 1<<20, cfg.Server.MaxFrameSize)
	assert.Equal(t, 5*time.Millisecond, cfg.Server.FlushInterval)
	assert.Equal(t, tlvmux.DefaultPollTimeout, cfg.Server.PollTimeout)
	assert.Equal(t, 1500*time.Millisecond, cfg.Server.TCPKeepAlive)
	assert.Equal(t, 2*time.Second, cfg.Server.TCPLinger)
	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.Equal(t, DefaultMetricsAddr, cfg.Metrics.Addr)
	assert.Equal(t, DefaultEchoWorkers, cfg.Echo.Workers)

	opts, err := cfg.ServerOptions()
	require.NoError(t, err)
	assert.NotEmpty(t, opts)
}

func TestLoadEnvOverride(t *testing.T) {
	path := writeConfig(t, "server:\n  port: 9000\n")
	t.Setenv("TLVMUX_SERVER_PORT", "9100")
	t.Setenv("TLVMUX_SERVER_POLL_TIMEOUT", "50ms")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 9100, cfg.Server.Port)
	assert.Equal(t, 50*time.Millisecond, cfg.Server.PollTimeout)
}

func TestLoadValidation(t *testing.T) {
	cases := map[string]string{
		"bad byte order": "server:\n  byte_order: middle\n",
		"bad port":       "server:\n  port: 70000\n",
		"bad level":      "logging:\n  level: chatty\n",
		"bad frame size": "server:\n  max_frame_size: -5\n",
		"metrics clash":  "server:\n  addr: 127.0.0.1\n  port: 9090\nmetrics:\n  enabled: true\n  addr: 127.0.0.1:9090\n",
	}
	for name, content := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := Load(writeConfig(t, content))
			assert.Error(t, err)
		})
	}

	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err, "an explicit path must exist")
}

func TestDump(t *testing.T) {
	out, err := Dump(GetDefaultConfig())
	require.NoError(t, err)
	assert.Contains(t, string(out), "byte_order: big")
	assert.Contains(t, string(out), "port: 8888")
}
