package session

import (
	"context"
	"io"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/atomic"
	"go.uber.org/zap"

	"github.com/lk2023060901/openfire-session-go/internal/xmpp"
	"github.com/lk2023060901/openfire-session-go/pkg/log"
	"github.com/lk2023060901/openfire-session-go/pkg/metrics"
	"github.com/lk2023060901/openfire-session-go/pkg/util/merr"
	"github.com/lk2023060901/openfire-session-go/pkg/util/typeutil"
)

// joinRoomWait 为加入房间后等待服务端回执的上限。
const joinRoomWait = 5 * time.Second

// Session 为一条逻辑会话：一份不可变配置、一条长连接、
// 本地 presence 缓存、已加入的房间集合与事件队列。
//
// Session 由 Registry 独占持有，宿主只通过句柄间接访问。
// 写方向（stanza 发送）由 mu 串行化；读方向由唯一的后台读循环驱动。
type Session struct {
	handle int64
	cfg    Config

	state *atomic.Int32

	mu        sync.Mutex
	stream    *xmpp.Stream
	jid       xmpp.JID
	sessionID string
	presence  presenceCache
	rooms     map[string]string // 房间 bare JID -> 本会话在房间中的昵称
	occupants map[string]typeutil.Set[string]
	joinWait  map[string]*joinWaiter

	events *eventQueue

	closing    *atomic.Bool
	readerDone chan struct{}

	// 进行中握手的取消入口与底层连接。Disconnect 依赖二者中止
	// 尚未提交到 s.stream 的连接尝试。
	connectCancel context.CancelFunc
	pendingConn   io.Closer
}

type joinWaiter struct {
	nickname string
	done     chan error
}

// deliver 投递加入结果；等待方已经收到过结果时直接丢弃，避免阻塞。
func (w *joinWaiter) deliver(err error) {
	select {
	case w.done <- err:
	default:
	}
}

func newSession(handle int64, cfg Config) *Session {
	return &Session{
		handle:    handle,
		cfg:       cfg,
		state:     atomic.NewInt32(int32(StateDisconnected)),
		rooms:     make(map[string]string),
		occupants: make(map[string]typeutil.Set[string]),
		joinWait:  make(map[string]*joinWaiter),
		events:    newEventQueue(defaultEventQueueCap),
		closing:   atomic.NewBool(false),
	}
}

// Handle 返回会话句柄。
func (s *Session) Handle() int64 {
	return s.handle
}

// Config 返回会话绑定的配置副本。
func (s *Session) Config() Config {
	return s.cfg
}

// State 返回连接状态机的当前状态。
func (s *Session) State() ConnectionState {
	return ConnectionState(s.state.Load())
}

// IsConnected 判断会话是否处于已认证状态。
func (s *Session) IsConnected() bool {
	return s.State() == StateAuthenticated
}

// SessionID 返回认证成功时生成的会话令牌；未认证时为空串。
func (s *Session) SessionID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sessionID
}

// FullJID 返回认证后解析出的完整身份；未认证时为空串。
func (s *Session) FullJID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.jid.Domain == "" {
		return ""
	}
	return s.jid.String()
}

// SetEventSink 注册宿主事件回调；传 nil 清除。
func (s *Session) SetEventSink(sink EventSink) {
	s.events.setSink(sink)
}

// PollEvent 取出队头事件；无事件时第二返回值为 false。
func (s *Session) PollEvent() (Event, bool) {
	return s.events.poll()
}

// SendMessage 发送一条点对点消息，返回本地生成的消息 ID。
// 发送即返回，不等待服务端确认。
func (s *Session) SendMessage(to, body string) (string, error) {
	if _, err := xmpp.ParseJID(to); err != nil {
		return "", err
	}

	id := uuid.NewString()
	msg := &xmpp.Message{To: to, Type: "chat", ID: id, Body: body}
	if err := s.writeStanza(msg); err != nil {
		return "", err
	}
	metrics.MessagesSent.Inc()
	return id, nil
}

// SendGroupMessage 向已加入的房间发送群聊消息，返回消息 ID。
// 房间未加入时报错。
func (s *Session) SendGroupMessage(room, body string) (string, error) {
	bare, err := roomBare(room)
	if err != nil {
		return "", err
	}

	s.mu.Lock()
	_, joined := s.rooms[bare]
	s.mu.Unlock()
	if !joined {
		return "", merr.WrapErrRoomJoinFailed(bare, "room not joined")
	}

	id := uuid.NewString()
	msg := &xmpp.Message{To: bare, Type: "groupchat", ID: id, Body: body}
	if err := s.writeStanza(msg); err != nil {
		return "", err
	}
	metrics.MessagesSent.Inc()
	return id, nil
}

// SetPresence 更新本地 presence 并向服务端发送对应 stanza。
// 本地状态乐观更新；服务端如有纠正会以 PresenceChanged 事件回推。
func (s *Session) SetPresence(status PresenceStatus, text string) error {
	if !status.Valid() {
		return merr.WrapErrConfigInvalid("status", int(status), "unknown presence status")
	}
	if !s.IsConnected() {
		return merr.WrapErrNotConnected("setPresence")
	}

	s.mu.Lock()
	s.presence = presenceCache{
		status:    status,
		text:      text,
		priority:  s.cfg.Priority,
		updatedAt: time.Now(),
	}
	s.mu.Unlock()

	typ, show := status.stanzaFields()
	stanza := &xmpp.Presence{
		Type:     typ,
		Show:     show,
		Status:   text,
		Priority: s.cfg.Priority,
	}
	return s.writeStanza(stanza)
}

// GetPresence 返回缓存的本地 presence，纯内存读，不触网。
func (s *Session) GetPresence() PresenceState {
	s.mu.Lock()
	defer s.mu.Unlock()
	jid := ""
	if s.jid.Domain != "" {
		jid = s.jid.String()
	}
	return s.presence.snapshot(jid)
}

// JoinRoom 以给定昵称加入房间，等待服务端回发本人 presence 或错误。
// 等待上限为 joinRoomWait 与 ctx 截止中先到者。
func (s *Session) JoinRoom(ctx context.Context, room, nickname string) error {
	bare, err := roomBare(room)
	if err != nil {
		return err
	}
	if nickname == "" {
		return merr.WrapErrRoomJoinFailed(bare, "nickname must not be empty")
	}
	if !s.IsConnected() {
		return merr.WrapErrNotConnected("joinRoom")
	}

	waiter := &joinWaiter{nickname: nickname, done: make(chan error, 1)}
	s.mu.Lock()
	if _, joined := s.rooms[bare]; joined {
		s.mu.Unlock()
		return nil
	}
	if _, pending := s.joinWait[bare]; pending {
		s.mu.Unlock()
		return merr.WrapErrRoomJoinFailed(bare, "join already in progress")
	}
	s.joinWait[bare] = waiter
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		delete(s.joinWait, bare)
		s.mu.Unlock()
	}()

	join := &xmpp.Presence{To: bare + "/" + nickname, MUC: &xmpp.MUCJoin{}}
	if err := s.writeStanza(join); err != nil {
		return err
	}

	select {
	case err := <-waiter.done:
		if err != nil {
			return err
		}
	case <-time.After(joinRoomWait):
		return merr.WrapErrTimeout("room_join", joinRoomWait)
	case <-ctx.Done():
		return ctx.Err()
	}

	s.mu.Lock()
	s.rooms[bare] = nickname
	if s.occupants[bare] == nil {
		s.occupants[bare] = typeutil.NewSet[string]()
	}
	s.occupants[bare].Insert(nickname)
	s.mu.Unlock()

	log.Info("joined room",
		zap.Int64("handle", s.handle),
		zap.String("room", bare),
		zap.String("nickname", nickname))
	return nil
}

// LeaveRoom 退出已加入的房间。
func (s *Session) LeaveRoom(room string) error {
	bare, err := roomBare(room)
	if err != nil {
		return err
	}

	s.mu.Lock()
	nick, joined := s.rooms[bare]
	if joined {
		delete(s.rooms, bare)
		delete(s.occupants, bare)
	}
	s.mu.Unlock()
	if !joined {
		return merr.WrapErrRoomJoinFailed(bare, "room not joined")
	}

	leave := &xmpp.Presence{To: bare + "/" + nick, Type: "unavailable"}
	return s.writeStanza(leave)
}

// RoomOccupants 返回已知的房间成员昵称列表，顺序不保证。
func (s *Session) RoomOccupants(room string) []string {
	bare, err := roomBare(room)
	if err != nil {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	set, ok := s.occupants[bare]
	if !ok {
		return nil
	}
	return set.Collect()
}

// Disconnect 主动断开连接并复位状态。重复调用无副作用。
func (s *Session) Disconnect() error {
	if s.State() == StateDisconnected {
		return nil
	}
	s.closing.Store(true)

	s.mu.Lock()
	// 中止尚未提交的握手；连接一并关闭，阻塞在上面的读写立即返回。
	if s.connectCancel != nil {
		s.connectCancel()
		s.connectCancel = nil
	}
	if s.pendingConn != nil {
		_ = s.pendingConn.Close()
		s.pendingConn = nil
	}
	stream := s.stream
	done := s.readerDone
	s.stream = nil
	s.readerDone = nil
	s.sessionID = ""
	s.rooms = make(map[string]string)
	s.occupants = make(map[string]typeutil.Set[string])
	for bare, w := range s.joinWait {
		w.deliver(merr.WrapErrRoomJoinFailed(bare, "connection closed"))
	}
	s.joinWait = make(map[string]*joinWaiter)
	s.mu.Unlock()

	if stream != nil {
		// 尽力通知对端流结束，随后直接关闭。
		_ = stream.WriteClose()
		_ = stream.Close()
	}

	if s.State() == StateAuthenticated {
		metrics.ConnectedSessions.Dec()
	}
	s.state.Store(int32(StateDisconnected))

	if done != nil {
		select {
		case <-done:
		case <-time.After(2 * time.Second):
			log.Warn("reader loop did not exit in time", zap.Int64("handle", s.handle))
		}
	}
	return nil
}

func (s *Session) writeStanza(v any) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stream == nil || s.State() != StateAuthenticated {
		return merr.WrapErrNotConnected("write")
	}
	return s.stream.WriteStanza(v)
}

// readLoop 为会话唯一的后台读循环，把入站 stanza 解复用为事件。
func (s *Session) readLoop(stream *xmpp.Stream, done chan struct{}) {
	defer close(done)

	for {
		v, err := stream.Next()
		if err != nil {
			if s.closing.Load() || s.State() == StateDisconnected {
				return
			}
			s.connectionLost(err.Error())
			return
		}
		if v == nil {
			// 无法识别的元素已被整体跳过。
			metrics.FramesDropped.Inc()
			continue
		}
		if fatal := s.handleStanza(v); fatal {
			return
		}
	}
}

// connectionLost 处理非主动断开：复位状态并向宿主投递事件。
func (s *Session) connectionLost(reason string) {
	log.Warn("connection lost",
		zap.Int64("handle", s.handle),
		zap.String("reason", reason))

	s.mu.Lock()
	stream := s.stream
	s.stream = nil
	s.sessionID = ""
	s.rooms = make(map[string]string)
	s.occupants = make(map[string]typeutil.Set[string])
	for bare, w := range s.joinWait {
		w.deliver(merr.WrapErrRoomJoinFailed(bare, "connection lost"))
	}
	s.joinWait = make(map[string]*joinWaiter)
	s.mu.Unlock()

	if stream != nil {
		_ = stream.Close()
	}
	if s.State() == StateAuthenticated {
		metrics.ConnectedSessions.Dec()
	}
	s.state.Store(int32(StateDisconnected))

	s.events.push(Event{Type: EventConnectionLost, Reason: reason})
}

func (s *Session) handleStanza(v any) (fatal bool) {
	switch st := v.(type) {
	case *xmpp.Message:
		if st.Body == "" {
			return false
		}
		s.events.push(Event{
			Type: EventIncomingMessage,
			Message: &MessageEvent{
				From: st.From,
				To:   st.To,
				Type: st.Type,
				ID:   st.ID,
				Body: st.Body,
			},
		})
	case *xmpp.Presence:
		s.handlePresence(st)
	case *xmpp.StreamError:
		s.connectionLost("stream error from server: " + st.InnerXML)
		return true
	case *xmpp.IQ:
		// 认证后不处理 IQ 请求，这不在支持的协议范围内。
	default:
		metrics.FramesDropped.Inc()
	}
	return false
}

func (s *Session) handlePresence(p *xmpp.Presence) {
	from, err := xmpp.ParseJID(p.From)
	if err != nil {
		log.Debug("presence with bad from, dropped",
			zap.Int64("handle", s.handle),
			zap.String("from", p.From))
		metrics.FramesDropped.Inc()
		return
	}
	bare := from.Bare()

	s.mu.Lock()
	waiter := s.joinWait[bare]
	nick, isRoom := s.rooms[bare]
	ownBare := s.jid.Bare()
	s.mu.Unlock()

	// 正在等待加入回执的房间。
	if waiter != nil {
		if p.Type == "error" {
			reason := "join rejected"
			if p.Error != nil {
				reason = "join rejected: " + p.Error.InnerXML
			}
			waiter.deliver(merr.WrapErrRoomJoinFailed(bare, reason))
			return
		}
		if p.MUCUser.HasStatus(xmpp.SelfPresenceCode) || from.Resource == waiter.nickname {
			waiter.deliver(nil)
			return
		}
		// 加入完成前收到的其他成员 presence，记录成员后照常投递事件。
	}

	if isRoom || waiter != nil {
		s.handleRoomPresence(bare, nick, from.Resource, p)
		return
	}

	if bare == ownBare {
		// 服务端对本会话 presence 的纠正。
		s.mu.Lock()
		s.presence = presenceCache{
			status:    statusFromStanza(p),
			text:      p.Status,
			priority:  p.Priority,
			updatedAt: time.Now(),
		}
		snap := s.presence.snapshot(s.jid.String())
		s.mu.Unlock()
		s.events.push(Event{Type: EventPresenceChanged, Presence: &snap})
		return
	}

	contact := PresenceState{
		JID:           p.From,
		Status:        statusFromStanza(p).String(),
		StatusMessage: p.Status,
		Priority:      p.Priority,
		Timestamp:     time.Now().Format(time.RFC3339),
	}
	s.events.push(Event{Type: EventPresenceChanged, Presence: &contact})
}

func (s *Session) handleRoomPresence(room, ownNick, occupant string, p *xmpp.Presence) {
	if occupant == "" {
		return
	}

	s.mu.Lock()
	set := s.occupants[room]
	if set == nil {
		set = typeutil.NewSet[string]()
		s.occupants[room] = set
	}
	var action string
	if p.Type == "unavailable" {
		if set.Contain(occupant) {
			set.Remove(occupant)
			action = RoomActionLeft
		}
	} else if !set.Contain(occupant) {
		set.Insert(occupant)
		action = RoomActionJoined
	}
	s.mu.Unlock()

	// 本人的回执不再作为成员事件投递。
	if action == "" || occupant == ownNick {
		return
	}
	s.events.push(Event{
		Type: EventRoomEvent,
		Room: &RoomEvent{Room: room, Occupant: occupant, Action: action},
	})
}

// roomBare 规整房间地址为 bare JID。
func roomBare(room string) (string, error) {
	j, err := xmpp.ParseJID(room)
	if err != nil {
		return "", err
	}
	return j.Bare(), nil
}
