// Copyright (C) 2019-2020 Zilliz. All rights reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance
// with the License. You may obtain a copy of the License at
//
// http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software distributed under the License
// is distributed on an "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express
// or implied. See the License for the specific language governing permissions and limitations under the License.

package retry

import "time"

type config struct {
	attempts        uint
	initialInterval time.Duration
	maxInterval     time.Duration
}

func newDefaultConfig() *config {
	return &config{
		attempts:        10,
		initialInterval: 200 * time.Millisecond,
		maxInterval:     3 * time.Second,
	}
}

// Option 用于配置重试行为的选项函数。
type Option func(*config)

// Attempts 设置最大尝试次数（含首次执行）；为 0 表示不限次数，仅受 ctx 约束。
func Attempts(attempts uint) Option {
	return func(c *config) {
		c.attempts = attempts
	}
}

// Sleep 设置初始退避间隔。
func Sleep(interval time.Duration) Option {
	return func(c *config) {
		c.initialInterval = interval
	}
}

// MaxSleepTime 设置最大退避间隔。
func MaxSleepTime(interval time.Duration) Option {
	return func(c *config) {
		c.maxInterval = interval
	}
}
