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

package merr

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/samber/lo"
)

// Code 返回给定错误对应的错误码。
func Code(err error) int32 {
	if err == nil {
		return 0
	}

	cause := errors.Cause(err)
	switch specificErr := cause.(type) {
	case sessionError:
		return specificErr.code()

	default:
		if errors.Is(specificErr, context.Canceled) {
			return CanceledCode
		} else if errors.Is(specificErr, context.DeadlineExceeded) {
			return DeadlineCode
		}
		return errUnexpected.code()
	}
}

// IsRetryableErr 判断给定错误是否值得自动重试。
func IsRetryableErr(err error) bool {
	cause := errors.Cause(err)
	if err, ok := cause.(sessionError); ok {
		return err.retriable
	}
	return false
}

// IsCanceledOrTimeout 判断给定错误是否由 context 取消或超时导致。
func IsCanceledOrTimeout(err error) bool {
	return errors.IsAny(err, context.Canceled, context.DeadlineExceeded)
}

// Combine 将多个错误合并为一个（忽略 nil 项）。
// 合并结果对标准库 errors.Is / errors.As 可见：每个成员都保留在
// Unwrap() []error 链上。
func Combine(errs ...error) error {
	errs = lo.Filter(errs, func(err error, _ int) bool { return err != nil })

	if len(errs) == 0 {
		return nil
	}
	if len(errs) == 1 {
		return errs[0]
	}
	return errors.Join(errs...)
}

// Config 相关错误封装。

func WrapErrConfigInvalid(field string, val any, msg ...string) error {
	err := wrapFields(ErrConfigInvalid,
		value("field", field),
		value("value", val),
	)
	if len(msg) > 0 {
		err = errors.Wrap(err, strings.Join(msg, "->"))
	}
	return err
}

// ConfigField 提取 ErrConfigInvalid 携带的首个非法字段名；
// 不是配置错误时返回空串。
func ConfigField(err error) string {
	if err == nil || !errors.Is(err, ErrConfigInvalid) {
		return ""
	}
	msg := errors.Cause(err).Error()
	const marker = "[field="
	i := strings.Index(msg, marker)
	if i < 0 {
		return ""
	}
	rest := msg[i+len(marker):]
	if j := strings.IndexByte(rest, ']'); j >= 0 {
		return rest[:j]
	}
	return ""
}

// Client / registry 相关错误封装。

func WrapErrClientNotFound(handle int64, msg ...string) error {
	err := wrapFields(ErrClientNotFound, value("handle", handle))
	if len(msg) > 0 {
		err = errors.Wrap(err, strings.Join(msg, "->"))
	}
	return err
}

func WrapErrInvalidState(op string, state string, msg ...string) error {
	err := wrapFields(ErrInvalidState,
		value("op", op),
		value("state", state),
	)
	if len(msg) > 0 {
		err = errors.Wrap(err, strings.Join(msg, "->"))
	}
	return err
}

func WrapErrNotConnected(op string, msg ...string) error {
	err := wrapFields(ErrNotConnected, value("op", op))
	if len(msg) > 0 {
		err = errors.Wrap(err, strings.Join(msg, "->"))
	}
	return err
}

// Transport 相关错误封装。

func WrapErrTransport(addr string, reason error, msg ...string) error {
	err := wrapFieldsWithDesc(ErrTransport, reason.Error(), value("addr", addr))
	if len(msg) > 0 {
		err = errors.Wrap(err, strings.Join(msg, "->"))
	}
	return err
}

func WrapErrTls(reason error, msg ...string) error {
	err := wrapFieldsWithDesc(ErrTls, reason.Error())
	if len(msg) > 0 {
		err = errors.Wrap(err, strings.Join(msg, "->"))
	}
	return err
}

// Authentication 相关错误封装。

func WrapErrAuthRejected(reason string, msg ...string) error {
	err := wrapFieldsWithDesc(ErrAuthRejected, reason)
	if len(msg) > 0 {
		err = errors.Wrap(err, strings.Join(msg, "->"))
	}
	return err
}

func WrapErrCredentialsInvalid(reason string, msg ...string) error {
	err := wrapFieldsWithDesc(ErrCredentialsInvalid, reason)
	if len(msg) > 0 {
		err = errors.Wrap(err, strings.Join(msg, "->"))
	}
	return err
}

// Timeout 相关错误封装。phase 取值 connect / auth / room_join。

func WrapErrTimeout(phase string, limit time.Duration, msg ...string) error {
	err := wrapFields(ErrTimeout,
		value("phase", phase),
		value("limit", limit),
	)
	if len(msg) > 0 {
		err = errors.Wrap(err, strings.Join(msg, "->"))
	}
	return err
}

// Protocol 相关错误封装。

func WrapErrProtocol(reason string, msg ...string) error {
	err := wrapFieldsWithDesc(ErrProtocol, reason)
	if len(msg) > 0 {
		err = errors.Wrap(err, strings.Join(msg, "->"))
	}
	return err
}

func WrapErrRoomJoinFailed(room string, reason string, msg ...string) error {
	err := wrapFieldsWithDesc(ErrRoomJoinFailed, reason, value("room", room))
	if len(msg) > 0 {
		err = errors.Wrap(err, strings.Join(msg, "->"))
	}
	return err
}

func wrapFields(err sessionError, fields ...errorField) error {
	err.msg += strings.Join(lo.Map(fields, func(f errorField, _ int) string {
		return fmt.Sprintf("[%s]", f.String())
	}), "")
	err.detail = err.msg
	return err
}

func wrapFieldsWithDesc(err sessionError, desc string, fields ...errorField) error {
	err.msg += strings.Join(lo.Map(fields, func(f errorField, _ int) string {
		return fmt.Sprintf("[%s]", f.String())
	}), "")
	err.msg += ": " + desc
	err.detail = err.msg
	return err
}

type errorField interface {
	String() string
}

type valueField struct {
	name  string
	value any
}

func value(name string, value any) valueField {
	return valueField{
		name,
		value,
	}
}

func (f valueField) String() string {
	return fmt.Sprintf("%s=%v", f.name, f.value)
}
