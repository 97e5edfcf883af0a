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
	"github.com/tlvmux/tlvmux"
	"github.com/tlvmux/tlvmux/internal/metrics"
	"github.com/tlvmux/tlvmux/pkg/logging"
	"github.com/tlvmux/tlvmux/pkg/pool/goroutine"
	"github.com/tlvmux/tlvmux/pkg/tlv"
)

// echoServer answers every frame with the same value under type+1. With a
// worker pool the reply is encoded and queued off the event loop.
type echoServer struct {
	tlvmux.EventServer

	srv     *tlvmux.Server
	pool    *goroutine.Pool
	metrics *metrics.HandlerMetrics
}

func (es *echoServer) OnBoot(s *tlvmux.Server) {
	es.srv = s
	logging.Infof("echo server is ready on %s (async replies: %t)", s.Addr(), es.pool != nil)
}

func (es *echoServer) OnOpened(c tlvmux.Conn) tlvmux.Action {
	logging.Debugf("client connected: fd=%d addr=%v", c.Fd(), c.RemoteAddr())
	return tlvmux.None
}

func (es *echoServer) OnClosed(c tlvmux.Conn, err error) {
	logging.Debugf("client disconnected: fd=%d addr=%v err=%v", c.Fd(), c.RemoteAddr(), err)
}

func (es *echoServer) OnMessage(c tlvmux.Conn, msg tlv.Message) tlvmux.Action {
	reply := tlv.NewMessage(msg.Type+1, msg.Value)
	if es.pool == nil {
		es.metrics.ObserveMessage("loop", len(msg.Value))
		es.reply(c.Fd(), reply)
		return tlvmux.None
	}

	es.metrics.ObserveMessage("pool", len(msg.Value))
	fd := c.Fd()
	if err := es.pool.Submit(func() { es.reply(fd, reply) }); err != nil {
		logging.Warnf("worker pool rejected reply to fd=%d, replying inline: %v", fd, err)
		es.reply(fd, reply)
	}
	return tlvmux.None
}

func (es *echoServer) reply(fd int, msg tlv.Message) {
	if err := es.srv.SendMessage(fd, es.srv.Codec().Encode(msg)); err != nil {
		es.metrics.ReplyFailed()
		logging.Debugf("failed to reply to fd=%d: %v", fd, err)
	}
}
