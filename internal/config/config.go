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

// Package config loads the configuration of the tlvmux-server binary.
//
// Sources, later ones winning:
//  1. built-in defaults
//  2. a YAML file, either given explicitly or $XDG_CONFIG_HOME/tlvmux/config.yaml
//  3. environment variables prefixed with TLVMUX_, e.g. TLVMUX_SERVER_PORT=9000
package config

import (
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/tlvmux/tlvmux"
	"github.com/tlvmux/tlvmux/pkg/byteorder"
	"github.com/tlvmux/tlvmux/pkg/logging"
)

// Config is the complete configuration of the server binary.
type Config struct {
	Server  ServerConfig  `mapstructure:"server" yaml:"server"`
	Logging LoggingConfig `mapstructure:"logging" yaml:"logging"`
	Metrics MetricsConfig `mapstructure:"metrics" yaml:"metrics"`
	Echo    EchoConfig    `mapstructure:"echo" yaml:"echo"`
}

// ServerConfig configures the listener and the event loop.
type ServerConfig struct {
	Addr           string `mapstructure:"addr" yaml:"addr" validate:"required"`
	Port           int    `mapstructure:"port" yaml:"port" validate:"gte=0,lte=65535"`
	MaxConnections int    `mapstructure:"max_connections" yaml:"max_connections" validate:"gte=0"`

	// ByteOrder of TLV headers: big or little.
	ByteOrder string `mapstructure:"byte_order" yaml:"byte_order" validate:"required,oneof=big little"`

	// MaxFrameSize caps inbound value lengths, -1 disables the cap.
	MaxFrameSize int `mapstructure:"max_frame_size" yaml:"max_frame_size" validate:"gte=-1"`

	PollTimeout   time.Duration `mapstructure:"poll_timeout" yaml:"poll_timeout" validate:"gt=0"`
	FlushInterval time.Duration `mapstructure:"flush_interval" yaml:"flush_interval" validate:"gt=0"`
	WakeOnSend    bool          `mapstructure:"wake_on_send" yaml:"wake_on_send"`
	ReadBufferCap int           `mapstructure:"read_buffer_cap" yaml:"read_buffer_cap" validate:"gte=512"`
	TCPKeepAlive  time.Duration `mapstructure:"tcp_keepalive" yaml:"tcp_keepalive" validate:"gte=0"`
	TCPLinger     time.Duration `mapstructure:"tcp_linger" yaml:"tcp_linger" validate:"gte=0"`
	LockOSThread  bool          `mapstructure:"lock_os_thread" yaml:"lock_os_thread"`
}

// LoggingConfig configures the zap logger.
type LoggingConfig struct {
	Level string `mapstructure:"level" yaml:"level" validate:"required,oneof=debug info warn error"`
	// File is a rolling log file, empty means stdout.
	File string `mapstructure:"file" yaml:"file"`
}

// MetricsConfig configures the Prometheus endpoint.
type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled" yaml:"enabled"`
	Addr    string `mapstructure:"addr" yaml:"addr" validate:"required_if=Enabled true"`
}

// EchoConfig configures the bundled echo handler.
type EchoConfig struct {
	// Async replies from a worker pool instead of the event loop.
	Async   bool `mapstructure:"async" yaml:"async"`
	Workers int  `mapstructure:"workers" yaml:"workers" validate:"gte=0"`
}

// Load reads the configuration from configPath, the default location when
// configPath is empty, and the environment. A missing default file is not an
// error.
func Load(configPath string) (*Config, error) {
	v := viper.New()

	setupViper(v, configPath)

	if err := readConfigFile(v); err != nil {
		return nil, err
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	ApplyDefaults(&cfg)

	if err := Validate(&cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return &cfg, nil
}

func setupViper(v *viper.Viper, configPath string) {
	v.SetEnvPrefix("TLVMUX")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Environment variables only reach Unmarshal for keys viper knows about.
	for key, value := range defaultValues() {
		v.SetDefault(key, value)
	}

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.AddConfigPath(getConfigDir())
		v.SetConfigName("config")
		v.SetConfigType("yaml")
	}
}

func readConfigFile(v *viper.Viper) error {
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			return nil
		}
		return fmt.Errorf("failed to read config file: %w", err)
	}
	return nil
}

func getConfigDir() string {
	if xdgConfig := os.Getenv("XDG_CONFIG_HOME"); xdgConfig != "" {
		return filepath.Join(xdgConfig, "tlvmux")
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}

	return filepath.Join(home, ".config", "tlvmux")
}

func (cfg *Config) listenAddr() string {
	return net.JoinHostPort(cfg.Server.Addr, strconv.Itoa(cfg.Server.Port))
}

// GetDefaultConfigPath returns where Load looks when no path is given.
func GetDefaultConfigPath() string {
	return filepath.Join(getConfigDir(), "config.yaml")
}

// Dump renders cfg as YAML.
func Dump(cfg *Config) ([]byte, error) {
	return yaml.Marshal(cfg)
}

// ServerOptions translates the server section into tlvmux options.
func (cfg *Config) ServerOptions() ([]tlvmux.Option, error) {
	order, ok := byteorder.ParseOrder(cfg.Server.ByteOrder)
	if !ok {
		return nil, fmt.Errorf("unknown byte order %q", cfg.Server.ByteOrder)
	}
	level, err := logging.ParseLevel(cfg.Logging.Level)
	if err != nil {
		return nil, err
	}

	opts := []tlvmux.Option{
		tlvmux.WithByteOrder(order),
		tlvmux.WithMaxFrameSize(cfg.Server.MaxFrameSize),
		tlvmux.WithPollTimeout(cfg.Server.PollTimeout),
		tlvmux.WithFlushInterval(cfg.Server.FlushInterval),
		tlvmux.WithWakeOnSend(cfg.Server.WakeOnSend),
		tlvmux.WithReadBufferCap(cfg.Server.ReadBufferCap),
		tlvmux.WithTCPKeepAlive(cfg.Server.TCPKeepAlive),
		tlvmux.WithTCPLinger(cfg.Server.TCPLinger),
		tlvmux.WithLockOSThread(cfg.Server.LockOSThread),
		tlvmux.WithLogLevel(level),
	}
	if cfg.Logging.File != "" {
		opts = append(opts, tlvmux.WithLogPath(cfg.Logging.File))
	}
	return opts, nil
}
