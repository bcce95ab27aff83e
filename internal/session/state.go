package session

// ConnectionState 表示会话连接状态机的当前状态。
//
// 状态迁移：
//
//	Disconnected -> Connecting -> Authenticating -> Authenticated
//	                    |               |
//	                    +----> Failed <-+
//
// Failed 与 Disconnected 都允许再次发起 Connect。
type ConnectionState int32

const (
	StateDisconnected ConnectionState = iota
	StateConnecting
	StateAuthenticating
	StateAuthenticated
	StateFailed
)

func (s ConnectionState) String() string {
	switch s {
	case StateDisconnected:
		return "Disconnected"
	case StateConnecting:
		return "Connecting"
	case StateAuthenticating:
		return "Authenticating"
	case StateAuthenticated:
		return "Authenticated"
	case StateFailed:
		return "Failed"
	default:
		return "Unknown"
	}
}

// canConnect 判断是否允许从当前状态发起新的连接。
func (s ConnectionState) canConnect() bool {
	return s == StateDisconnected || s == StateFailed
}
