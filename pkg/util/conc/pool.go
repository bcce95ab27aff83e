// Licensed to the LF AI & Data foundation under one
// or more contributor license agreements. See the NOTICE file
// distributed with this work for additional information
// regarding copyright ownership. The ASF licenses this file
// to you under the Apache License, Version 2.0 (the
// "License"); you may not use this file except in compliance
// with the License. You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package conc

import (
	"runtime"
	"sync"

	ants "github.com/panjf2000/ants/v2"
)

// Pool 是对 ants 协程池的薄封装。
//
// 设计目标：
//   - 会话后台读协程、事件投递等长期任务统一经由池调度，
//     避免在代码中散落原生 go 关键字；
//   - panic 由池统一 recover 并记录，不会击穿调用方。
type Pool struct {
	inner *ants.Pool
}

// NewPool 创建一个容量为 cap 的协程池。
// cap == 0 时使用 CPU 核数的 4 倍；cap < 0 表示不限容量。
func NewPool(cap int, opts ...PoolOption) *Pool {
	if cap == 0 {
		cap = runtime.GOMAXPROCS(0) * 4
	}

	opt := defaultPoolOption()
	for _, o := range opts {
		o(opt)
	}

	pool, err := ants.NewPool(cap, opt.antsOptions()...)
	if err != nil {
		// ants 仅在参数非法时报错，上面已保证 cap > 0。
		panic(err)
	}
	return &Pool{inner: pool}
}

// Submit 将任务提交到池中异步执行。
func (p *Pool) Submit(task func()) error {
	return p.inner.Submit(task)
}

// Running 返回当前正在执行任务的 worker 数。
func (p *Pool) Running() int {
	return p.inner.Running()
}

// Free 返回当前空闲 worker 数。
func (p *Pool) Free() int {
	return p.inner.Free()
}

// Release 关闭池并回收全部 worker。
func (p *Pool) Release() {
	p.inner.Release()
}

var (
	sessionPool     *Pool
	sessionPoolOnce sync.Once
)

// SessionPool 返回进程级共享的会话任务池。
//
// 所有会话的后台读循环与事件投递任务共用该池。
// 读循环是长期驻留任务，池容量不设上限，
// 以免会话数超过容量时新会话的读循环排队饿死。
func SessionPool() *Pool {
	sessionPoolOnce.Do(func() {
		sessionPool = NewPool(-1, WithConcealPanic(true))
	})
	return sessionPool
}
