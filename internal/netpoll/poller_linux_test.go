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

package netpoll

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sys/unix"

	"github.com/tlvmux/tlvmux/pkg/errors"
)

func TestTriggerRunsTasks(t *testing.T) {
	p, err := OpenPoller()
	require.NoError(t, err)
	defer p.Close() //nolint:errcheck

	var (
		ran     int32
		running atomic.Bool
	)
	running.Store(true)
	done := make(chan error, 1)
	go func() {
		done <- p.Polling(20*time.Millisecond, running.Load, func(int, IOEvent) error { return nil })
	}()

	for i := 0; i < 10; i++ {
		require.NoError(t, p.Trigger(func(interface{}) error {
			atomic.AddInt32(&ran, 1)
			return nil
		}, nil))
	}
	require.Eventually(t, func() bool { return atomic.LoadInt32(&ran) == 10 }, time.Second, 5*time.Millisecond)

	require.NoError(t, p.Trigger(func(interface{}) error { return errors.ErrServerShutdown }, nil))
	select {
	case err = <-done:
		assert.ErrorIs(t, err, errors.ErrServerShutdown)
	case <-time.After(time.Second):
		t.Fatal("poller did not stop")
	}
}

func TestPollingStopsWhenNotRunning(t *testing.T) {
	p, err := OpenPoller()
	require.NoError(t, err)
	defer p.Close() //nolint:errcheck

	var running atomic.Bool
	running.Store(true)
	done := make(chan error, 1)
	go func() {
		done <- p.Polling(10*time.Millisecond, running.Load, func(int, IOEvent) error { return nil })
	}()
	running.Store(false)
	select {
	case err = <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("poller did not notice running=false")
	}
}

func TestReadinessEdgeTriggered(t *testing.T) {
	p, err := OpenPoller()
	require.NoError(t, err)
	defer p.Close() //nolint:errcheck

	var fds [2]int
	require.NoError(t, unix.Pipe2(fds[:], unix.O_NONBLOCK|unix.O_CLOEXEC))
	defer unix.Close(fds[0]) //nolint:errcheck
	defer unix.Close(fds[1]) //nolint:errcheck
	require.NoError(t, p.AddRead(fds[0], true))

	var (
		hits    int32
		running atomic.Bool
	)
	running.Store(true)
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = p.Polling(10*time.Millisecond, running.Load, func(fd int, ev IOEvent) error {
			if fd == fds[0] && ev&InEvents != 0 {
				atomic.AddInt32(&hits, 1)
			}
			return nil
		})
	}()

	_, err = unix.Write(fds[1], []byte("x"))
	require.NoError(t, err)
	require.Eventually(t, func() bool { return atomic.LoadInt32(&hits) == 1 }, time.Second, 5*time.Millisecond)

	// Nothing was read: edge-triggered mode must not report the same readiness again.
	time.Sleep(50 * time.Millisecond)
	assert.EqualValues(t, 1, atomic.LoadInt32(&hits))

	require.NoError(t, p.Delete(fds[0]))
	running.Store(false)
	<-done
}
