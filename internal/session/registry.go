package session

import (
	"sync"

	"github.com/samber/lo"
	"go.uber.org/atomic"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/lk2023060901/openfire-session-go/pkg/log"
	"github.com/lk2023060901/openfire-session-go/pkg/metrics"
	"github.com/lk2023060901/openfire-session-go/pkg/util/merr"
)

// Registry 是会话的唯一属主，按句柄管理全部会话。
//
// 句柄从 1 开始单调递增，进程生命周期内不复用。
// 任何组件都不允许在一次调用之外保留查到的 *Session。
type Registry struct {
	mu       sync.RWMutex
	sessions map[int64]*Session
	next     *atomic.Int64
}

// NewRegistry 创建空的会话注册表。
func NewRegistry() *Registry {
	return &Registry{
		sessions: make(map[int64]*Session),
		next:     atomic.NewInt64(0),
	}
}

// Create 校验配置并创建会话，返回新分配的句柄。
func (r *Registry) Create(cfg Config) (int64, error) {
	if err := cfg.Validate(); err != nil {
		return 0, err
	}

	handle := r.next.Inc()
	s := newSession(handle, cfg)

	r.mu.Lock()
	r.sessions[handle] = s
	r.mu.Unlock()

	metrics.ActiveSessions.Inc()
	log.Info("session created",
		zap.Int64("handle", handle),
		zap.String("addr", cfg.Addr()),
		zap.String("domain", cfg.Domain))
	return handle, nil
}

// Get 按句柄查找会话。
func (r *Registry) Get(handle int64) (*Session, error) {
	r.mu.RLock()
	s, ok := r.sessions[handle]
	r.mu.RUnlock()
	if !ok {
		return nil, merr.WrapErrClientNotFound(handle)
	}
	return s, nil
}

// Destroy 销毁会话：先隐式断开（错误只记录不上抛），再从注册表移除。
// 句柄不存在时返回 false，重复销毁因此是无副作用的。
func (r *Registry) Destroy(handle int64) bool {
	r.mu.Lock()
	s, ok := r.sessions[handle]
	if ok {
		delete(r.sessions, handle)
	}
	r.mu.Unlock()
	if !ok {
		return false
	}

	if err := s.Disconnect(); err != nil {
		log.Warn("disconnect during destroy failed",
			zap.Int64("handle", handle),
			zap.Error(err))
	}
	metrics.ActiveSessions.Dec()
	log.Info("session destroyed", zap.Int64("handle", handle))
	return true
}

// Handles 返回当前全部存活句柄的快照，顺序不保证。
func (r *Registry) Handles() []int64 {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return lo.Keys(r.sessions)
}

// Len 返回存活会话数。
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}

// Close 并发销毁全部会话，用于进程收尾。
// 每个会话的断开都可能等待其读循环退出，串行收尾在会话多时太慢。
func (r *Registry) Close() {
	eg := &errgroup.Group{}
	eg.SetLimit(8)
	for _, handle := range r.Handles() {
		handle := handle
		eg.Go(func() error {
			r.Destroy(handle)
			return nil
		})
	}
	_ = eg.Wait()
}
