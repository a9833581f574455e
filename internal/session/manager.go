package session

import (
	"context"
	"sync"

	"coworkshell/internal/logger"
	"coworkshell/pkg/domain"

	"github.com/google/uuid"
)

// Manager 全局浏览会话管理器
type Manager struct {
	mu       sync.RWMutex
	sessions map[domain.SessionID]*BrowserSession
	driver   Driver
	opts     domain.SurfaceOptions
	log      logger.Logger
}

// NewManager 创建会话管理器
func NewManager(driver Driver, opts domain.SurfaceOptions, l logger.Logger) *Manager {
	if l == nil {
		l = logger.NewNop()
	}
	return &Manager{
		sessions: make(map[domain.SessionID]*BrowserSession),
		driver:   driver,
		opts:     opts,
		log:      l,
	}
}

// Create 创建并注册新会话
func (m *Manager) Create() *BrowserSession {
	m.mu.Lock()
	defer m.mu.Unlock()

	id := domain.SessionID(uuid.New().String())
	s := New(id, m.driver, m.opts, m.log)
	m.sessions[id] = s
	m.log.Info("创建浏览会话", "sessionID", string(id))
	return s
}

// Get 获取会话
func (m *Manager) Get(id domain.SessionID) (*BrowserSession, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.sessions[id]
	return s, ok
}

// Delete 关闭并销毁会话
func (m *Manager) Delete(ctx context.Context, id domain.SessionID) {
	m.mu.Lock()
	s, ok := m.sessions[id]
	delete(m.sessions, id)
	m.mu.Unlock()
	if !ok {
		return
	}
	_ = s.Close(ctx)
	m.log.Info("销毁浏览会话", "sessionID", string(id))
}

// List 返回所有活动会话
func (m *Manager) List() []*BrowserSession {
	m.mu.RLock()
	defer m.mu.RUnlock()
	list := make([]*BrowserSession, 0, len(m.sessions))
	for _, s := range m.sessions {
		list = append(list, s)
	}
	return list
}

// Find 按浏览面查找所属会话
func (m *Manager) Find(id domain.SurfaceID) (*BrowserSession, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, s := range m.sessions {
		s.mu.Lock()
		owns := s.ownsLocked(id)
		s.mu.Unlock()
		if owns {
			return s, true
		}
	}
	return nil, false
}
