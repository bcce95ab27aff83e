package transport

import (
	"context"
	"io"
	"net"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"github.com/lk2023060901/openfire-session-go/pkg/util/merr"
)

type wsDialer struct {
	url string
}

// NewWebSocketDialer 创建 WebSocket 传输的 Dialer。
// addr 可以是完整的 ws:// 或 wss:// URL，
// 也可以是 host:port 形式，此时使用默认路径 /xmpp-websocket。
func NewWebSocketDialer(addr string) Dialer {
	url := addr
	if !strings.HasPrefix(url, "ws://") && !strings.HasPrefix(url, "wss://") {
		url = "ws://" + addr + "/xmpp-websocket"
	}
	return &wsDialer{url: url}
}

func (d *wsDialer) Open(ctx context.Context) (net.Conn, error) {
	ws, _, err := websocket.DefaultDialer.DialContext(ctx, d.url, nil)
	if err != nil {
		return nil, merr.WrapErrTransport(d.url, err)
	}
	return &wsConn{ws: ws}, nil
}

// wsConn 把 websocket 帧序列适配成字节流的 net.Conn。
// 出站数据按二进制帧发送，入站帧按序拼接成流。
type wsConn struct {
	ws     *websocket.Conn
	reader io.Reader
}

func (c *wsConn) Read(p []byte) (int, error) {
	for {
		if c.reader == nil {
			_, r, err := c.ws.NextReader()
			if err != nil {
				return 0, err
			}
			c.reader = r
		}
		n, err := c.reader.Read(p)
		if err == io.EOF {
			// 当前帧读完，切换到下一帧。
			c.reader = nil
			if n > 0 {
				return n, nil
			}
			continue
		}
		return n, err
	}
}

func (c *wsConn) Write(p []byte) (int, error) {
	if err := c.ws.WriteMessage(websocket.BinaryMessage, p); err != nil {
		return 0, err
	}
	return len(p), nil
}

func (c *wsConn) Close() error {
	return c.ws.Close()
}

func (c *wsConn) LocalAddr() net.Addr {
	return c.ws.LocalAddr()
}

func (c *wsConn) RemoteAddr() net.Addr {
	return c.ws.RemoteAddr()
}

func (c *wsConn) SetDeadline(t time.Time) error {
	if err := c.ws.SetReadDeadline(t); err != nil {
		return err
	}
	return c.ws.SetWriteDeadline(t)
}

func (c *wsConn) SetReadDeadline(t time.Time) error {
	return c.ws.SetReadDeadline(t)
}

func (c *wsConn) SetWriteDeadline(t time.Time) error {
	return c.ws.SetWriteDeadline(t)
}
