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
	"github.com/cockroachdb/errors"
)

const (
	// CanceledCode 为 context 取消对应的错误码。
	CanceledCode int32 = 10000
	// DeadlineCode 为 context 超时对应的错误码。
	DeadlineCode int32 = 10001
)

// Define leaf errors here,
// WARN: take care to add new error,
// check whether you can use the errors below before adding a new one.
// Name: Err + related prefix + error name
var (
	// Config related
	ErrConfigInvalid = newSessionError("invalid config", 100, false)

	// Client / registry related
	ErrClientNotFound = newSessionError("client not found", 200, false)
	ErrInvalidState   = newSessionError("operation not valid in current state", 201, false)
	ErrNotConnected   = newSessionError("not connected", 202, false)

	// Transport related
	ErrTransport = newSessionError("transport failure", 300, true)
	ErrTls       = newSessionError("tls negotiation failure", 301, false)

	// Authentication related
	ErrAuthRejected       = newSessionError("authentication rejected", 400, false)
	ErrCredentialsInvalid = newSessionError("invalid credentials", 401, false)

	// Timeout related（分阶段：连接阶段与认证阶段各自独立计时）
	ErrTimeout = newSessionError("operation timed out", 500, true)

	// Protocol related
	ErrProtocol       = newSessionError("protocol violation", 600, false)
	ErrRoomJoinFailed = newSessionError("room join failed", 601, false)

	errUnexpected = newSessionError("unexpected error", 1999, false)
)

// sessionError 是带稳定错误码的叶子错误类型。
//
// 约定：
//   - 错误码跨版本保持稳定，可安全用于日志与监控；
//   - retriable 标记该类错误是否值得自动重试（例如瞬时网络故障）。
type sessionError struct {
	msg       string
	detail    string
	retriable bool
	errCode   int32
}

func newSessionError(msg string, code int32, retriable bool) sessionError {
	return sessionError{
		msg:       msg,
		detail:    msg,
		retriable: retriable,
		errCode:   code,
	}
}

func (e sessionError) code() int32 {
	return e.errCode
}

func (e sessionError) Error() string {
	return e.msg
}

func (e sessionError) Detail() string {
	return e.detail
}

// Is 按错误码比较，使 errors.Is 对包装后的叶子错误依旧成立。
func (e sessionError) Is(err error) bool {
	cause := errors.Cause(err)
	if cause, ok := cause.(sessionError); ok {
		return e.errCode == cause.errCode
	}
	return false
}
