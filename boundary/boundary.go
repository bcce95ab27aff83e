// Package boundary 是面向宿主的句柄式 API。
//
// 所有入参与出参都是标量或 JSON 字符串，不暴露任何 Go 对象；
// 所有函数都吞掉内部 panic，任何输入都不会击穿宿主进程。
// 失败以各函数的失败值表达：-1、false、空串或 success=false 的 JSON。
package boundary

import (
	"context"
	"runtime/debug"

	"go.uber.org/atomic"
	"go.uber.org/zap"

	"github.com/lk2023060901/openfire-session-go/internal/json"
	"github.com/lk2023060901/openfire-session-go/internal/session"
	"github.com/lk2023060901/openfire-session-go/pkg/log"
	"github.com/lk2023060901/openfire-session-go/pkg/metrics"
	"github.com/lk2023060901/openfire-session-go/pkg/version"
)

var (
	registry    = session.NewRegistry()
	initialized = atomic.NewBool(false)
)

// Initialize 完成进程级初始化（指标注册）。幂等，重复调用返回 true。
func Initialize() bool {
	defer guard("Initialize")
	if initialized.CompareAndSwap(false, true) {
		metrics.Register(nil)
		log.Info("engine initialized", zap.String("version", version.Version))
	}
	return true
}

// CreateClient 按 JSON 配置创建会话并返回句柄；失败返回 -1。
// configJSON 为空串时使用缺省配置；缺失的字段保持缺省值。
func CreateClient(configJSON string) (handle int64) {
	handle = -1
	defer guard("CreateClient")

	cfg := session.DefaultConfig()
	if configJSON != "" {
		if err := json.UnmarshalString(configJSON, &cfg); err != nil {
			log.Warn("bad config json", zap.Error(err))
			return -1
		}
	}
	h, err := registry.Create(cfg)
	if err != nil {
		log.Warn("create client failed", zap.Error(err))
		return -1
	}
	return h
}

// DestroyClient 销毁会话。句柄不存在时返回 false，重复调用无副作用。
func DestroyClient(handle int64) (ok bool) {
	defer guard("DestroyClient")
	return registry.Destroy(handle)
}

// Connect 发起认证，始终返回 AuthResult JSON。
func Connect(handle int64, username, password, domain string) (result string) {
	result = failResultJSON("internal error")
	defer guard("Connect")

	s, err := registry.Get(handle)
	if err != nil {
		return failResultJSON(err.Error())
	}
	res := s.Connect(context.Background(), username, password, domain)
	out, err := json.MarshalString(res)
	if err != nil {
		return failResultJSON(err.Error())
	}
	return out
}

// Disconnect 主动断开会话，句柄不存在时返回 false。
func Disconnect(handle int64) (ok bool) {
	defer guard("Disconnect")
	s, err := registry.Get(handle)
	if err != nil {
		return false
	}
	return s.Disconnect() == nil
}

// IsConnected 判断会话是否已认证；句柄不存在时返回 false。
func IsConnected(handle int64) (ok bool) {
	defer guard("IsConnected")
	s, err := registry.Get(handle)
	if err != nil {
		return false
	}
	return s.IsConnected()
}

// SendMessage 发送点对点消息，返回消息 ID；失败返回空串。
func SendMessage(handle int64, to, body string) (id string) {
	defer guard("SendMessage")
	s, err := registry.Get(handle)
	if err != nil {
		return ""
	}
	id, err = s.SendMessage(to, body)
	if err != nil {
		log.Debug("send message failed", zap.Int64("handle", handle), zap.Error(err))
		return ""
	}
	return id
}

// SendGroupMessage 向已加入的房间发送群聊消息；失败返回空串。
func SendGroupMessage(handle int64, room, body string) (id string) {
	defer guard("SendGroupMessage")
	s, err := registry.Get(handle)
	if err != nil {
		return ""
	}
	id, err = s.SendGroupMessage(room, body)
	if err != nil {
		log.Debug("send group message failed", zap.Int64("handle", handle), zap.Error(err))
		return ""
	}
	return id
}

// SetPresence 更新会话 presence。status 为整数编码的可用性。
func SetPresence(handle int64, status int, text string) (ok bool) {
	defer guard("SetPresence")
	s, err := registry.Get(handle)
	if err != nil {
		return false
	}
	return s.SetPresence(session.PresenceStatus(status), text) == nil
}

// GetPresence 返回缓存的 PresenceState JSON。
// 句柄不存在或序列化失败返回空串。status 字段为字符串编码，
// 与 SetPresence 的整数入参不对称，这是兼容性契约。
func GetPresence(handle int64) (result string) {
	defer guard("GetPresence")
	s, err := registry.Get(handle)
	if err != nil {
		return ""
	}
	out, err := json.MarshalString(s.GetPresence())
	if err != nil {
		return ""
	}
	return out
}

// JoinRoom 以给定昵称加入房间，等待服务端回执后返回。
func JoinRoom(handle int64, room, nickname string) (ok bool) {
	defer guard("JoinRoom")
	s, err := registry.Get(handle)
	if err != nil {
		return false
	}
	if err := s.JoinRoom(context.Background(), room, nickname); err != nil {
		log.Debug("join room failed", zap.Int64("handle", handle), zap.Error(err))
		return false
	}
	return true
}

// LeaveRoom 退出已加入的房间。
func LeaveRoom(handle int64, room string) (ok bool) {
	defer guard("LeaveRoom")
	s, err := registry.Get(handle)
	if err != nil {
		return false
	}
	return s.LeaveRoom(room) == nil
}

// PollEvent 取出一条待投递事件的 JSON；无事件或句柄不存在返回空串。
func PollEvent(handle int64) (result string) {
	defer guard("PollEvent")
	s, err := registry.Get(handle)
	if err != nil {
		return ""
	}
	ev, ok := s.PollEvent()
	if !ok {
		return ""
	}
	out, err := json.MarshalString(ev)
	if err != nil {
		return ""
	}
	return out
}

// GetVersion 返回库版本号。
func GetVersion() string {
	return version.Version
}

// guard 吞掉边界函数内的 panic 并记录现场。
// 具名返回值保证 panic 后返回各函数预设的失败值。
func guard(op string) {
	if r := recover(); r != nil {
		log.Error("panic crossed into boundary, suppressed",
			zap.String("op", op),
			zap.Any("panic", r),
			zap.ByteString("stack", debug.Stack()))
	}
}

func failResultJSON(msg string) string {
	out, err := json.MarshalString(&session.AuthResult{Success: false, Message: msg})
	if err != nil {
		return `{"success":false,"message":"internal error"}`
	}
	return out
}
