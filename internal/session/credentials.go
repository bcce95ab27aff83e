package session

import (
	"strings"

	"github.com/lk2023060901/openfire-session-go/pkg/util/merr"
)

// Credentials 为一次认证使用的用户名与口令。
type Credentials struct {
	Username string
	Password string
}

// Validate 在发起任何网络活动之前校验凭据格式。
// 用户名不允许为空，也不允许包含空格或 '@'（bare 用户名，不是 JID）。
func (c Credentials) Validate() error {
	if c.Username == "" {
		return merr.WrapErrCredentialsInvalid("username is empty")
	}
	if strings.ContainsAny(c.Username, " @") {
		return merr.WrapErrCredentialsInvalid("username must not contain spaces or '@': " + c.Username)
	}
	if c.Password == "" {
		return merr.WrapErrCredentialsInvalid("password is empty")
	}
	return nil
}
