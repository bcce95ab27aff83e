package session

import (
	"context"
	"io"
	"time"

	"github.com/cockroachdb/errors"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/lk2023060901/openfire-session-go/internal/transport"
	"github.com/lk2023060901/openfire-session-go/internal/xmpp"
	"github.com/lk2023060901/openfire-session-go/pkg/log"
	"github.com/lk2023060901/openfire-session-go/pkg/metrics"
	"github.com/lk2023060901/openfire-session-go/pkg/util/conc"
	"github.com/lk2023060901/openfire-session-go/pkg/util/merr"
)

// AuthResult 为一次 connect 调用的结构化结果。
// 字段名是跨边界兼容性契约。任何阶段的失败都以 success=false
// 返回，绝不以 panic 的形式穿过边界。
type AuthResult struct {
	Success    bool   `json:"success"`
	Message    string `json:"message"`
	FullJID    string `json:"full_jid"`
	SessionID  string `json:"session_id"`
	AuthTimeMs int64  `json:"auth_time_ms"`
}

// Connect 驱动完整的连接链：
//
//	Connecting（传输建立 + TLS 升级，受 connection_timeout 约束）
//	-> Authenticating（SASL + 资源绑定，受 auth_timeout 约束）
//	-> Authenticated
//
// 两个超时各自独立计时，认证阶段的预算从传输建立完成时才开始。
// 会话处于 Connecting 或 Authenticated 时拒绝重入。
// domainOverride 非空时覆盖配置中的 domain。
func (s *Session) Connect(ctx context.Context, username, password, domainOverride string) *AuthResult {
	start := time.Now()

	// 进入 Connecting 必须是原子迁移，否则两个并发 connect
	// 可能同时通过检查。只允许从 Disconnected / Failed 进入。
	if !s.state.CompareAndSwap(int32(StateDisconnected), int32(StateConnecting)) &&
		!s.state.CompareAndSwap(int32(StateFailed), int32(StateConnecting)) {
		cur := s.State()
		err := merr.WrapErrInvalidState("connect", cur.String())
		log.Warn("connect rejected",
			zap.Int64("handle", s.handle),
			zap.String("state", cur.String()))
		// 状态保持不变，不影响已有连接。
		return &AuthResult{Success: false, Message: err.Error()}
	}
	s.closing.Store(false)

	creds := Credentials{Username: username, Password: password}
	if err := creds.Validate(); err != nil {
		return s.failAuth(start, err, nil)
	}

	domain := s.cfg.Domain
	if domainOverride != "" {
		domain = domainOverride
	}

	// 注册本次握手的取消入口，使 Disconnect / Destroy 能中止
	// 进行中的连接；握手期间打开的连接也会登记到 pending。
	attemptCtx, cancelAttempt := context.WithCancel(ctx)
	defer cancelAttempt()
	s.mu.Lock()
	s.connectCancel = cancelAttempt
	s.mu.Unlock()

	// Connecting 阶段。
	connCtx, connCancel := context.WithTimeout(attemptCtx, s.cfg.connectionTimeout())
	stream, features, err := s.establish(connCtx, domain)
	connCancel()
	if err != nil {
		return s.failAuth(start, phaseError(connCtx, "connect", s.cfg.connectionTimeout(), err), nil)
	}
	metrics.AuthDuration.WithLabelValues("connect").Observe(float64(millisSince(start)))

	// Authenticating 阶段，预算从这里开始独立计时。
	s.state.Store(int32(StateAuthenticating))
	authStart := time.Now()

	authCtx, authCancel := context.WithTimeout(attemptCtx, s.cfg.authTimeout())
	if deadline, ok := authCtx.Deadline(); ok {
		_ = stream.SetDeadline(deadline)
	}
	jid, err := s.authenticate(authCtx, stream, features, creds, domain)
	authCancel()
	if err != nil {
		return s.failAuth(start, phaseError(authCtx, "auth", s.cfg.authTimeout(), err), stream)
	}
	metrics.AuthDuration.WithLabelValues("auth").Observe(float64(time.Since(authStart).Milliseconds()))

	// 认证完成，登记会话身份并发送初始 presence。提交必须在锁内
	// 复查 closing：握手期间到达的 Disconnect / Destroy 赢得竞争，
	// 本次尝试按失败收尾并释放连接。
	_ = stream.SetDeadline(time.Time{})
	sessionID := uuid.NewString()
	done := make(chan struct{})

	s.mu.Lock()
	if s.closing.Load() || attemptCtx.Err() != nil {
		s.mu.Unlock()
		return s.failAuth(start, merr.WrapErrInvalidState("connect", StateDisconnected.String(), "canceled by disconnect"), stream)
	}
	s.connectCancel = nil
	s.pendingConn = nil
	s.stream = stream
	s.jid = jid
	s.sessionID = sessionID
	s.readerDone = done
	s.presence = presenceCache{
		status:    StatusAvailable,
		priority:  s.cfg.Priority,
		updatedAt: time.Now(),
	}
	initial := &xmpp.Presence{Priority: s.cfg.Priority}
	if werr := stream.WriteStanza(initial); werr != nil {
		s.stream = nil
		s.readerDone = nil
		s.mu.Unlock()
		return s.failAuth(start, werr, stream)
	}
	s.state.Store(int32(StateAuthenticated))
	serr := conc.SessionPool().Submit(func() { s.readLoop(stream, done) })
	if serr != nil {
		s.stream = nil
		s.readerDone = nil
		s.mu.Unlock()
		return s.failAuth(start, merr.WrapErrProtocol("start reader: "+serr.Error()), stream)
	}
	s.mu.Unlock()

	metrics.AuthAttempts.WithLabelValues("success").Inc()
	metrics.ConnectedSessions.Inc()

	elapsed := millisSince(start)
	log.Info("authenticated",
		zap.Int64("handle", s.handle),
		zap.String("jid", jid.String()),
		zap.Int64("elapsed_ms", elapsed))
	return &AuthResult{
		Success:    true,
		Message:    "authentication successful",
		FullJID:    jid.String(),
		SessionID:  sessionID,
		AuthTimeMs: elapsed,
	}
}

// establish 建立传输连接并完成可选的 TLS 升级，返回可用的流与
// 最近一次通告的 stream features。
func (s *Session) establish(ctx context.Context, domain string) (*xmpp.Stream, *xmpp.StreamFeatures, error) {
	dialer, err := transport.NewDialer(s.cfg.Transport, s.cfg.Addr())
	if err != nil {
		return nil, nil, err
	}

	conn, err := dialer.Open(ctx)
	if err != nil {
		return nil, nil, err
	}
	s.trackPending(conn)
	if deadline, ok := ctx.Deadline(); ok {
		_ = conn.SetDeadline(deadline)
	}

	stream := xmpp.NewStream(conn)
	features, err := openStream(stream, domain)
	if err != nil {
		_ = stream.Close()
		return nil, nil, err
	}

	if s.cfg.UseTLS {
		if features.StartTLS == nil {
			_ = stream.Close()
			return nil, nil, merr.WrapErrTls(errors.New("server does not offer starttls"))
		}
		if err := stream.WriteStartTLS(); err != nil {
			_ = stream.Close()
			return nil, nil, err
		}
		v, err := stream.Next()
		if err != nil {
			_ = stream.Close()
			return nil, nil, err
		}
		if _, ok := v.(*xmpp.TLSProceed); !ok {
			_ = stream.Close()
			return nil, nil, merr.WrapErrTls(errors.New("server refused starttls"))
		}

		tlsConn, err := transport.Secure(ctx, conn, transport.TLSOptions{
			ServerName: s.cfg.Server,
			Verify:     s.cfg.VerifyCertificates,
		})
		if err != nil {
			return nil, nil, err
		}
		s.trackPending(tlsConn)
		if deadline, ok := ctx.Deadline(); ok {
			_ = tlsConn.SetDeadline(deadline)
		}

		stream.Reset(tlsConn)
		features, err = openStream(stream, domain)
		if err != nil {
			_ = stream.Close()
			return nil, nil, err
		}
	}
	return stream, features, nil
}

// authenticate 完成 SASL 协商、流重启与资源绑定，返回服务端确认的完整 JID。
func (s *Session) authenticate(_ context.Context, stream *xmpp.Stream, features *xmpp.StreamFeatures, creds Credentials, domain string) (xmpp.JID, error) {
	if features.Mechanisms == nil {
		return xmpp.JID{}, merr.WrapErrProtocol("server advertised no sasl mechanisms")
	}
	mech, err := xmpp.PickMechanism(features.Mechanisms, creds.Username, creds.Password)
	if err != nil {
		return xmpp.JID{}, err
	}

	initial, err := mech.Start()
	if err != nil {
		return xmpp.JID{}, err
	}
	if err := stream.WriteSASLAuth(mech.Name(), initial); err != nil {
		return xmpp.JID{}, err
	}

saslLoop:
	for {
		v, err := stream.Next()
		if err != nil {
			return xmpp.JID{}, err
		}
		switch el := v.(type) {
		case *xmpp.SASLChallenge:
			resp, err := mech.Step(el.Data)
			if err != nil {
				return xmpp.JID{}, err
			}
			if err := stream.WriteSASLResponse(resp); err != nil {
				return xmpp.JID{}, err
			}
		case *xmpp.SASLSuccess:
			if err := mech.CheckSuccess(el.Data); err != nil {
				return xmpp.JID{}, err
			}
			break saslLoop
		case *xmpp.SASLFailure:
			reason := el.Condition()
			if el.Text != "" {
				reason += ": " + el.Text
			}
			return xmpp.JID{}, merr.WrapErrAuthRejected(reason)
		case nil:
		default:
			return xmpp.JID{}, merr.WrapErrProtocol("unexpected element during sasl negotiation")
		}
	}

	// SASL 成功后重启流。
	stream.Reset(stream.Conn())
	postAuth, err := openStream(stream, domain)
	if err != nil {
		return xmpp.JID{}, err
	}

	// 资源绑定。
	bindID := uuid.NewString()
	bindReq := &xmpp.IQ{Type: "set", ID: bindID, Bind: &xmpp.Bind{Resource: s.cfg.Resource}}
	if err := stream.WriteStanza(bindReq); err != nil {
		return xmpp.JID{}, err
	}
	bindRes, err := awaitIQ(stream, bindID)
	if err != nil {
		return xmpp.JID{}, err
	}
	if bindRes.Type != "result" || bindRes.Bind == nil || bindRes.Bind.JID == "" {
		return xmpp.JID{}, merr.WrapErrAuthRejected("resource bind failed")
	}
	jid, err := xmpp.ParseJID(bindRes.Bind.JID)
	if err != nil {
		return xmpp.JID{}, err
	}

	// 旧式 session establishment，服务器通告时才需要。
	if postAuth.Session != nil {
		sessID := uuid.NewString()
		sessReq := &xmpp.IQ{Type: "set", ID: sessID, To: domain, Session: &struct{}{}}
		if err := stream.WriteStanza(sessReq); err != nil {
			return xmpp.JID{}, err
		}
		sessRes, err := awaitIQ(stream, sessID)
		if err != nil {
			return xmpp.JID{}, err
		}
		if sessRes.Type != "result" {
			return xmpp.JID{}, merr.WrapErrAuthRejected("session establishment failed")
		}
	}
	return jid, nil
}

// trackPending 登记握手期间打开的底层连接，供 Disconnect 强制关闭。
func (s *Session) trackPending(c io.Closer) {
	s.mu.Lock()
	s.pendingConn = c
	s.mu.Unlock()
}

// failAuth 统一处理任意阶段的失败：关流、置 Failed、产出结构化结果。
// 失败源于 Disconnect 中止时终态为 Disconnected，而非 Failed。
func (s *Session) failAuth(start time.Time, err error, stream *xmpp.Stream) *AuthResult {
	if stream != nil {
		_ = stream.Close()
	}
	s.mu.Lock()
	s.stream = nil
	s.readerDone = nil
	s.connectCancel = nil
	if s.pendingConn != nil {
		_ = s.pendingConn.Close()
		s.pendingConn = nil
	}
	s.mu.Unlock()
	if s.closing.Load() {
		s.state.Store(int32(StateDisconnected))
	} else {
		s.state.Store(int32(StateFailed))
	}

	metrics.AuthAttempts.WithLabelValues("failure").Inc()
	log.Warn("connect failed",
		zap.Int64("handle", s.handle),
		zap.Error(err))
	return &AuthResult{Success: false, Message: err.Error(), AuthTimeMs: millisSince(start)}
}

// phaseError 把 ctx 到期导致的失败归一为带阶段与预算的超时错误。
func phaseError(ctx context.Context, phase string, limit time.Duration, err error) error {
	if ctx.Err() == context.DeadlineExceeded {
		return merr.WrapErrTimeout(phase, limit, err.Error())
	}
	return err
}

// openStream 发送流首部并读取对端 features。
func openStream(stream *xmpp.Stream, domain string) (*xmpp.StreamFeatures, error) {
	if err := stream.WriteOpen(domain); err != nil {
		return nil, err
	}
	if _, err := stream.ReadOpen(); err != nil {
		return nil, err
	}
	for {
		v, err := stream.Next()
		if err != nil {
			return nil, err
		}
		if features, ok := v.(*xmpp.StreamFeatures); ok {
			return features, nil
		}
		if v == nil {
			continue
		}
		return nil, merr.WrapErrProtocol("expected stream features")
	}
}

// awaitIQ 等待指定 ID 的 IQ 应答，跳过无关 stanza。
func awaitIQ(stream *xmpp.Stream, id string) (*xmpp.IQ, error) {
	for {
		v, err := stream.Next()
		if err != nil {
			return nil, err
		}
		if iq, ok := v.(*xmpp.IQ); ok && iq.ID == id {
			return iq, nil
		}
	}
}

func millisSince(t time.Time) int64 {
	return time.Since(t).Milliseconds()
}
