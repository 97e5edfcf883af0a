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

// Command tlvmux-server runs a TLV echo server: every frame is answered with
// the same value under type+1.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/someonegg/gox/syncx"

	"github.com/tlvmux/tlvmux"
	"github.com/tlvmux/tlvmux/internal/config"
	"github.com/tlvmux/tlvmux/internal/metrics"
	"github.com/tlvmux/tlvmux/pkg/logging"
	"github.com/tlvmux/tlvmux/pkg/pool/goroutine"
)

var (
	configPath  = flag.String("config", "", "path to the YAML config file (default "+config.GetDefaultConfigPath()+")")
	addr        = flag.String("addr", "", "bind address, overrides server.addr")
	port        = flag.Int("port", -1, "bind port, overrides server.port")
	maxConns    = flag.Int("max-conns", -1, "connection limit, 0 means unlimited, overrides server.max_connections")
	printConfig = flag.Bool("print-config", false, "print the effective configuration and exit")
)

func main() {
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}
	if *addr != "" {
		cfg.Server.Addr = *addr
	}
	if *port >= 0 {
		cfg.Server.Port = *port
	}
	if *maxConns >= 0 {
		cfg.Server.MaxConnections = *maxConns
	}

	if *printConfig {
		out, err := config.Dump(cfg)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to render configuration: %v\n", err)
			os.Exit(1)
		}
		_, _ = os.Stdout.Write(out)
		return
	}

	if err := run(cfg); err != nil {
		logging.Errorf("tlvmux-server exited with error: %v", err)
		logging.Cleanup()
		os.Exit(1)
	}
	logging.Cleanup()
}

func run(cfg *config.Config) error {
	opts, err := cfg.ServerOptions()
	if err != nil {
		return err
	}

	handler := &echoServer{}
	if cfg.Echo.Async {
		handler.pool = goroutine.New(cfg.Echo.Workers)
		defer handler.pool.Release()
	}
	srv := tlvmux.NewServer(handler, opts...)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var metricsDone chan error
	if cfg.Metrics.Enabled {
		reg := prometheus.NewRegistry()
		reg.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
		metrics.NewServerMetrics(reg, srv)
		handler.metrics = metrics.NewHandlerMetrics(reg)

		ms := metrics.NewServer(cfg.Metrics.Addr, reg)
		if err = ms.Listen(); err != nil {
			return fmt.Errorf("metrics listener: %w", err)
		}
		metricsDone = make(chan error, 1)
		go func() { metricsDone <- ms.Serve(ctx) }()
	}

	if err = srv.Start(cfg.Server.Addr, cfg.Server.Port, cfg.Server.MaxConnections); err != nil {
		return err
	}

	// The signal goroutine only records the request, the loop below acts on it.
	shutdown := syncx.NewDoneChan()
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)
	go func() {
		sig := <-sigCh
		logging.Infof("received %v, shutting down", sig)
		shutdown.SetDone()
	}()

	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()
	var loopErr error
	for loopErr == nil && !shutdown.R().Done() {
		select {
		case <-ticker.C:
			if !srv.Running() {
				loopErr = errors.New("event loop stopped unexpectedly")
			}
		case <-shutdown:
		}
	}

	if err = srv.Stop(); loopErr != nil {
		err = loopErr
	}
	cancel()
	if metricsDone != nil {
		if merr := <-metricsDone; merr != nil {
			logging.Warnf("metrics server: %v", merr)
		}
	}
	stats := srv.Stats()
	logging.Infof("served %d connections, %d frames in, %d payloads out", stats.Accepted, stats.MessagesIn, stats.MessagesOut)
	return err
}
