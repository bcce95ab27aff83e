package transport

import (
	"context"
	"net"
	"time"

	"go.uber.org/zap"

	"github.com/lk2023060901/openfire-session-go/pkg/log"
	"github.com/lk2023060901/openfire-session-go/pkg/util/merr"
	"github.com/lk2023060901/openfire-session-go/pkg/util/retry"
)

type tcpDialer struct {
	addr string
}

// NewTCPDialer 创建直连 TCP 的 Dialer。
func NewTCPDialer(addr string) Dialer {
	return &tcpDialer{addr: addr}
}

// Open 建立 TCP 连接。单次拨号失败会按指数退避重试，
// 直到成功或 ctx 到期，整体时间窗口由调用方的 ctx 控制。
func (d *tcpDialer) Open(ctx context.Context) (net.Conn, error) {
	var conn net.Conn
	err := retry.Do(ctx, func() error {
		dialer := &net.Dialer{KeepAlive: 30 * time.Second}
		c, err := dialer.DialContext(ctx, "tcp", d.addr)
		if err != nil {
			log.Ctx(ctx).Warn("dial failed, will retry",
				zap.String("addr", d.addr),
				zap.Error(err))
			return merr.WrapErrTransport(d.addr, err)
		}
		conn = c
		return nil
	}, retry.Sleep(100*time.Millisecond), retry.MaxSleepTime(2*time.Second))
	if err != nil {
		return nil, err
	}
	return conn, nil
}
