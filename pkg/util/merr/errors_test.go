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
	"testing"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/suite"
)

type ErrSuite struct {
	suite.Suite
}

func (s *ErrSuite) TestCode() {
	err := WrapErrClientNotFound(7)
	s.ErrorIs(err, ErrClientNotFound)
	s.Equal(Code(ErrClientNotFound), Code(err))
	s.Equal(DeadlineCode, Code(context.DeadlineExceeded))
	s.Equal(CanceledCode, Code(context.Canceled))
	s.Equal(int32(0), Code(nil))

	sameCodeErr := newSessionError("another message", ErrClientNotFound.errCode, false)
	s.True(sameCodeErr.Is(ErrClientNotFound))
}

func (s *ErrSuite) TestWrapSurvivesWrapping() {
	err := WrapErrTimeout("auth", time.Second)
	wrapped := errors.Wrap(err, "connect failed")
	s.ErrorIs(wrapped, ErrTimeout)
	s.Equal(Code(err), Code(wrapped))
}

func (s *ErrSuite) TestConfigField() {
	err := WrapErrConfigInvalid("port", 0)
	s.ErrorIs(err, ErrConfigInvalid)
	s.Equal("port", ConfigField(err))
	s.Equal("", ConfigField(nil))
	s.Equal("", ConfigField(ErrTransport))
}

func (s *ErrSuite) TestRetriable() {
	s.True(IsRetryableErr(ErrTransport))
	s.True(IsRetryableErr(WrapErrTransport("127.0.0.1:5222", errors.New("refused"))))
	s.False(IsRetryableErr(ErrAuthRejected))
	s.False(IsRetryableErr(nil))
}

func (s *ErrSuite) TestCombine() {
	var (
		errFirst  = errors.New("first")
		errSecond = errors.New("second")
	)

	err := Combine(errFirst, nil, errSecond)
	s.ErrorIs(err, errFirst)
	s.ErrorIs(err, errSecond)
	s.ErrorIs(Combine(nil, errSecond), errSecond)
	s.NoError(Combine(nil, nil))
}

func TestErrors(t *testing.T) {
	suite.Run(t, new(ErrSuite))
}
