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
	"sync"

	"github.com/eapache/queue"
)

// TaskFunc is the callback run on the polling goroutine.
type TaskFunc func(interface{}) error

// Task wraps a TaskFunc with its argument.
type Task struct {
	Run TaskFunc
	Arg interface{}
}

var taskPool = sync.Pool{New: func() interface{} { return new(Task) }}

// GetTask gets a cached Task from pool.
func GetTask() *Task {
	return taskPool.Get().(*Task)
}

// PutTask puts the trashy Task back in pool.
func PutTask(task *Task) {
	task.Run, task.Arg = nil, nil
	taskPool.Put(task)
}

// taskQueue is a FIFO of tasks shared by any number of producers and the
// single polling goroutine.
type taskQueue struct {
	mu sync.Mutex
	q  *queue.Queue
}

func newTaskQueue() *taskQueue {
	return &taskQueue{q: queue.New()}
}

func (tq *taskQueue) Enqueue(task *Task) {
	tq.mu.Lock()
	tq.q.Add(task)
	tq.mu.Unlock()
}

// Dequeue returns nil when the queue is empty.
func (tq *taskQueue) Dequeue() *Task {
	tq.mu.Lock()
	defer tq.mu.Unlock()
	if tq.q.Length() == 0 {
		return nil
	}
	return tq.q.Remove().(*Task)
}

func (tq *taskQueue) Empty() bool {
	tq.mu.Lock()
	defer tq.mu.Unlock()
	return tq.q.Length() == 0
}
