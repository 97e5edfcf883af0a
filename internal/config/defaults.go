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
	"strings"
	"time"

	"github.com/tlvmux/tlvmux"
)

// Defaults of the server binary.
const (
	DefaultAddr        = "0.0.0.0"
	DefaultPort        = 8888
	DefaultMetricsAddr = "127.0.0.1:9090"
	DefaultEchoWorkers = 1024
)

func defaultValues() map[string]interface{} {
	return map[string]interface{}{
		"server.addr":            DefaultAddr,
		"server.port":            DefaultPort,
		"server.max_connections": 0,
		"server.byte_order":      "big",
		"server.max_frame_size":  0,
		"server.poll_timeout":    tlvmux.DefaultPollTimeout,
		"server.flush_interval":  tlvmux.DefaultFlushInterval,
		"server.wake_on_send":    false,
		"server.read_buffer_cap": tlvmux.DefaultReadBufferCap,
		"server.tcp_keepalive":   time.Duration(0),
		"server.tcp_linger":      time.Duration(0),
		"server.lock_os_thread":  false,
		"logging.level":          "info",
		"logging.file":           "",
		"metrics.enabled":        false,
		"metrics.addr":           DefaultMetricsAddr,
		"echo.async":             false,
		"echo.workers":           0,
	}
}

// ApplyDefaults fills zero values and normalizes case-insensitive fields.
func ApplyDefaults(cfg *Config) {
	applyServerDefaults(&cfg.Server)
	applyLoggingDefaults(&cfg.Logging)

	if cfg.Metrics.Enabled && cfg.Metrics.Addr == "" {
		cfg.Metrics.Addr = DefaultMetricsAddr
	}
	if cfg.Echo.Async && cfg.Echo.Workers == 0 {
		cfg.Echo.Workers = DefaultEchoWorkers
	}
}

func applyServerDefaults(cfg *ServerConfig) {
	if cfg.Addr == "" {
		cfg.Addr = DefaultAddr
	}
	if cfg.ByteOrder == "" {
		cfg.ByteOrder = "big"
	}
	cfg.ByteOrder = strings.ToLower(cfg.ByteOrder)
	if cfg.PollTimeout == 0 {
		cfg.PollTimeout = tlvmux.DefaultPollTimeout
	}
	if cfg.FlushInterval == 0 {
		cfg.FlushInterval = tlvmux.DefaultFlushInterval
	}
	if cfg.ReadBufferCap == 0 {
		cfg.ReadBufferCap = tlvmux.DefaultReadBufferCap
	}
}

func applyLoggingDefaults(cfg *LoggingConfig) {
	if cfg.Level == "" {
		cfg.Level = "info"
	}
	cfg.Level = strings.ToLower(cfg.Level)
}

// GetDefaultConfig returns the configuration used when nothing is set.
func GetDefaultConfig() *Config {
	cfg := &Config{
		Server:  ServerConfig{Port: DefaultPort},
		Metrics: MetricsConfig{Addr: DefaultMetricsAddr},
	}
	ApplyDefaults(cfg)
	return cfg
}
