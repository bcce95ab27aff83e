package transport

import (
	"context"
	"net"

	"github.com/lk2023060901/openfire-session-go/pkg/util/merr"
)

// 支持的底层传输类型。
const (
	NetworkTCP       = "tcp"
	NetworkWebSocket = "websocket"
)

// Dialer 抽象一种可建立连接的底层传输。
type Dialer interface {
	// Open 建立到远端的连接，失败时在 ctx 截止前自动重试。
	Open(ctx context.Context) (net.Conn, error)
}

// NewDialer 按传输类型创建 Dialer。network 为空时默认 TCP。
func NewDialer(network, addr string) (Dialer, error) {
	switch network {
	case "", NetworkTCP:
		return NewTCPDialer(addr), nil
	case NetworkWebSocket:
		return NewWebSocketDialer(addr), nil
	default:
		return nil, merr.WrapErrConfigInvalid("transport", network, "unknown transport type")
	}
}
