package transport

import (
	"context"
	"crypto/tls"
	"net"

	"go.uber.org/zap"

	"github.com/lk2023060901/openfire-session-go/pkg/log"
	"github.com/lk2023060901/openfire-session-go/pkg/util/merr"
)

// TLSOptions 控制连接升级为 TLS 时的行为。
type TLSOptions struct {
	// ServerName 用于 SNI 与证书主机名校验。
	ServerName string
	// Verify 为 false 时跳过证书链与主机名校验。
	Verify bool
}

// Secure 在已建立的连接上完成 TLS 客户端握手。
// Verify 为 true 时使用系统根证书校验，失败即断开；
// 为 false 时接受任意证书（仅用于测试环境）。
func Secure(ctx context.Context, conn net.Conn, opts TLSOptions) (net.Conn, error) {
	cfg := &tls.Config{
		ServerName:         opts.ServerName,
		InsecureSkipVerify: !opts.Verify,
		MinVersion:         tls.VersionTLS12,
	}

	tlsConn := tls.Client(conn, cfg)
	if err := tlsConn.HandshakeContext(ctx); err != nil {
		_ = conn.Close()
		return nil, merr.WrapErrTls(err)
	}

	state := tlsConn.ConnectionState()
	log.Ctx(ctx).Debug("tls handshake complete",
		zap.String("server_name", opts.ServerName),
		zap.Uint16("version", state.Version),
		zap.Bool("verified", opts.Verify))
	return tlsConn, nil
}
