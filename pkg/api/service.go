package api

import (
	"context"

	"coworkshell/internal/config"
	"coworkshell/internal/logger"
	"coworkshell/internal/service"
	"coworkshell/internal/session"
	"coworkshell/internal/storage"
	"coworkshell/internal/tracking"
	"coworkshell/pkg/domain"
)

// Options 可替换的外部协作者
type Options = service.Options

// Service 服务接口
type Service interface {
	// Launch 执行启动门控，返回原生或跳转终态
	Launch(ctx context.Context) domain.LaunchOutcome

	// OnLaunchState 订阅门控状态变化
	OnLaunchState(fn func(domain.LaunchState))

	// OpenSession 以跳转决策打开浏览会话
	OpenSession(ctx context.Context) (domain.SessionID, error)

	// CloseSession 关闭浏览会话
	CloseSession(ctx context.Context, id domain.SessionID) error

	// GoBack 返回
	GoBack(ctx context.Context, id domain.SessionID) error

	// Home 回到跳转地址
	Home(ctx context.Context, id domain.SessionID) error

	// BackOverlay 在弹窗内后退，没有历史时关闭
	BackOverlay(ctx context.Context, id domain.SessionID, surface domain.SurfaceID) error

	// CloseOverlay 关闭指定弹窗
	CloseOverlay(ctx context.Context, id domain.SessionID, surface domain.SurfaceID) error

	// SessionState 会话快照
	SessionState(id domain.SessionID) (domain.SessionState, error)

	// OnSessionChange 订阅会话变化
	OnSessionChange(id domain.SessionID, fn func(domain.SessionState)) error

	// Bar 导航条状态
	Bar(id domain.SessionID) (session.BarState, error)

	// SubscribeEvents 订阅导航决策事件
	SubscribeEvents() <-chan domain.NavigationEvent

	// Decision 已持久化的跳转决策
	Decision(ctx context.Context) (domain.GateDecision, bool)

	// LastLoaded 兜底加载地址
	LastLoaded(ctx context.Context) (string, bool)

	// ResetDecision 清除持久化决策
	ResetDecision(ctx context.Context) error

	// SetTrackingAuthorization 记录追踪授权
	SetTrackingAuthorization(ctx context.Context, a tracking.Authorization) error

	// HandleOpenURL 处理深链打开
	HandleOpenURL(raw string) bool

	// Store 原生界面使用的 KV 存储
	Store() storage.KV

	// Close 释放全部资源
	Close(ctx context.Context) error
}

// NewService 创建并返回服务接口实现
func NewService(cfg *config.Config, opts Options, l logger.Logger) (Service, error) {
	s, err := service.New(cfg, opts, l)
	if err != nil {
		return nil, err
	}
	return s, nil
}
