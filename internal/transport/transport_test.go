package transport

import (
	"context"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/suite"

	"github.com/lk2023060901/openfire-session-go/pkg/util/merr"
)

type TransportSuite struct {
	suite.Suite
}

func (s *TransportSuite) TestNewDialer() {
	d, err := NewDialer("", "127.0.0.1:5222")
	s.NoError(err)
	s.NotNil(d)

	d, err = NewDialer(NetworkTCP, "127.0.0.1:5222")
	s.NoError(err)
	s.NotNil(d)

	d, err = NewDialer(NetworkWebSocket, "127.0.0.1:7070")
	s.NoError(err)
	s.NotNil(d)

	_, err = NewDialer("carrier-pigeon", "127.0.0.1:5222")
	s.Error(err)
	s.ErrorIs(err, merr.ErrConfigInvalid)
}

func (s *TransportSuite) TestTCPOpen() {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	s.Require().NoError(err)
	defer ln.Close()

	accepted := make(chan net.Conn, 1)
	go func() {
		c, err := ln.Accept()
		if err == nil {
			accepted <- c
		}
	}()

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	conn, err := NewTCPDialer(ln.Addr().String()).Open(ctx)
	s.NoError(err)
	s.NotNil(conn)
	defer conn.Close()

	srv := <-accepted
	defer srv.Close()

	_, err = conn.Write([]byte("ping"))
	s.NoError(err)
	buf := make([]byte, 4)
	_, err = srv.Read(buf)
	s.NoError(err)
	s.Equal("ping", string(buf))
}

func (s *TransportSuite) TestTCPOpenGivesUpOnDeadline() {
	// 未监听的端口，拨号会一直失败，整体受 ctx 限制。
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	s.Require().NoError(err)
	addr := ln.Addr().String()
	ln.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 300*time.Millisecond)
	defer cancel()

	start := time.Now()
	_, err = NewTCPDialer(addr).Open(ctx)
	s.Error(err)
	s.Less(time.Since(start), 2*time.Second)
}

func (s *TransportSuite) TestWebSocketOpen() {
	upgrader := websocket.Upgrader{}
	echo := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ws, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer ws.Close()
		for {
			mt, data, err := ws.ReadMessage()
			if err != nil {
				return
			}
			if err := ws.WriteMessage(mt, data); err != nil {
				return
			}
		}
	}))
	defer echo.Close()

	url := "ws" + strings.TrimPrefix(echo.URL, "http")

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	conn, err := NewWebSocketDialer(url).Open(ctx)
	s.Require().NoError(err)
	defer conn.Close()

	_, err = conn.Write([]byte("<presence/>"))
	s.NoError(err)

	buf := make([]byte, 64)
	n, err := conn.Read(buf)
	s.NoError(err)
	s.Equal("<presence/>", string(buf[:n]))
}

func TestTransport(t *testing.T) {
	suite.Run(t, new(TransportSuite))
}
