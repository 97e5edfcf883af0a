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

package outbound

import (
	"fmt"
	"sort"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tlvmux/tlvmux/pkg/pool/bytebuffer"
)

func takeString(t *testing.T, q *Queue, fd int) string {
	t.Helper()
	buf, ok := q.TakeAll(fd)
	require.True(t, ok)
	defer bytebuffer.Put(buf)
	return buf.String()
}

func TestPushTakeAllOrder(t *testing.T) {
	q := New()
	assert.True(t, q.Push(3, []byte("a")))
	assert.True(t, q.Push(3, []byte("bc")))
	assert.True(t, q.Push(4, []byte("x")))
	assert.True(t, q.Push(3, []byte("def")))
	assert.Equal(t, 6, q.Len(3))

	assert.Equal(t, "abcdef", takeString(t, q, 3))
	assert.False(t, q.HasPending(3))
	_, ok := q.TakeAll(3)
	assert.False(t, ok)
	assert.True(t, q.HasPending(4))
}

func TestPushCopiesPayload(t *testing.T) {
	q := New()
	b := []byte("hello")
	require.True(t, q.Push(1, b))
	b[0] = 'j'
	assert.Equal(t, "hello", takeString(t, q, 1))
}

func TestPushFront(t *testing.T) {
	q := New()
	require.True(t, q.Push(5, []byte("later")))
	require.True(t, q.PushFront(5, []byte("first-")))
	assert.Equal(t, "first-later", takeString(t, q, 5))

	require.True(t, q.PushFront(6, []byte("only")))
	assert.Equal(t, 4, q.Len(6))
	assert.Equal(t, "only", takeString(t, q, 6))
}

func TestInvalidInput(t *testing.T) {
	q := New()
	assert.False(t, q.Push(-1, []byte("x")))
	assert.False(t, q.Push(1, nil))
	assert.False(t, q.PushFront(-1, []byte("x")))
	assert.False(t, q.PushFront(1, []byte{}))
	assert.Empty(t, q.Pending())
}

func TestPendingAndClear(t *testing.T) {
	q := New()
	for _, fd := range []int{9, 2, 5} {
		require.True(t, q.Push(fd, []byte("z")))
	}
	assert.Equal(t, []int{2, 5, 9}, q.Pending())

	q.Clear(5)
	assert.False(t, q.HasPending(5))
	assert.Equal(t, []int{2, 9}, q.Pending())
	assert.Zero(t, q.Len(5))

	q.ClearAll()
	assert.Empty(t, q.Pending())
}

func TestConcurrentProducers(t *testing.T) {
	const (
		producers = 8
		perEach   = 500
		fd        = 11
	)
	q := New()

	var (
		wg        sync.WaitGroup
		collected strings.Builder
		drained   = make(chan struct{})
		total     = producers * perEach * len("0:00;")
	)
	go func() {
		defer close(drained)
		for {
			if buf, ok := q.TakeAll(fd); ok {
				collected.Write(buf.B)
				bytebuffer.Put(buf)
				continue
			}
			if collected.Len() >= total {
				return
			}
		}
	}()

	for p := 0; p < producers; p++ {
		wg.Add(1)
		go func(p int) {
			defer wg.Done()
			for i := 0; i < perEach; i++ {
				assert.True(t, q.Push(fd, []byte(fmt.Sprintf("%d:%02d;", p, i%100))))
			}
		}(p)
	}
	wg.Wait()
	<-drained

	items := strings.Split(strings.TrimSuffix(collected.String(), ";"), ";")
	require.Len(t, items, producers*perEach)

	// Each producer's entries stay in its own push order.
	last := make(map[string]int)
	counts := make(map[string]int)
	for _, item := range items {
		parts := strings.SplitN(item, ":", 2)
		require.Len(t, parts, 2)
		var n int
		_, err := fmt.Sscanf(parts[1], "%d", &n)
		require.NoError(t, err)
		if prev, ok := last[parts[0]]; ok {
			assert.Equal(t, (prev+1)%100, n)
		}
		last[parts[0]] = n
		counts[parts[0]]++
	}
	keys := make([]string, 0, len(counts))
	for k, v := range counts {
		keys = append(keys, k)
		assert.Equal(t, perEach, v)
	}
	sort.Strings(keys)
	assert.Len(t, keys, producers)
}
