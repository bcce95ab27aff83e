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

import (
	"context"

	backoff "github.com/cenkalti/backoff/v4"
	"github.com/cockroachdb/errors"
	"go.uber.org/zap"

	"github.com/lk2023060901/openfire-session-go/pkg/log"
	"github.com/lk2023060901/openfire-session-go/pkg/util/merr"
)

// Do 使用指数退避重试机制执行指定函数，直到成功、尝试次数用尽或 ctx 结束。
//
// fn 为待执行的函数。
// opts 用于控制最大重试次数、初始/最大退避间隔等行为。
//
// 以下错误会立即终止重试：
//   - 被 Unrecoverable 标记的错误；
//   - 非可重试类别的业务错误（merr.IsRetryableErr 为 false 且非普通 error）；
//   - ctx 取消或超时。
func Do(ctx context.Context, fn func() error, opts ...Option) error {
	if ctx.Err() != nil {
		return ctx.Err()
	}

	c := newDefaultConfig()
	for _, opt := range opts {
		opt(c)
	}

	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = c.initialInterval
	policy.MaxInterval = c.maxInterval
	// MaxElapsedTime 交由 ctx 的 deadline 控制。
	policy.MaxElapsedTime = 0

	var wrapped backoff.BackOff = backoff.WithContext(policy, ctx)
	if c.attempts > 0 {
		wrapped = backoff.WithMaxRetries(wrapped, uint64(c.attempts-1))
	}

	attempt := 0
	return backoff.Retry(func() error {
		err := fn()
		if err == nil {
			return nil
		}

		attempt++
		if attempt%4 == 1 {
			log.Ctx(ctx).Warn("retry func failed",
				zap.Int("attempt", attempt),
				zap.Error(err))
		}

		if !IsRecoverable(err) {
			return backoff.Permanent(err)
		}
		if merr.IsCanceledOrTimeout(err) {
			return backoff.Permanent(err)
		}
		return err
	}, wrapped)
}

// errUnrecoverable 表示不可恢复错误的标记实例。
var errUnrecoverable = errors.New("unrecoverable error")

// Unrecoverable 将错误包装为不可恢复错误，使重试逻辑能够快速返回。
func Unrecoverable(err error) error {
	return merr.Combine(err, errUnrecoverable)
}

// IsRecoverable 判断给定错误是否为“可恢复”错误。
func IsRecoverable(err error) bool {
	return !errors.Is(err, errUnrecoverable)
}
