package session

import (
	"context"

	"coworkshell/pkg/domain"
)

// BarState 底部导航条的展示状态
type BarState struct {
	Visible     bool `json:"visible"`
	HomeVisible bool `json:"homeVisible"`
	CanGoBack   bool `json:"canGoBack"`
}

// ChromeBar 跳转界面的返回/主页控件
type ChromeBar struct {
	session  *BrowserSession
	decision domain.GateDecision
}

// NewChromeBar 创建导航条，decision 为本次的跳转决策
func NewChromeBar(s *BrowserSession, decision domain.GateDecision) *ChromeBar {
	return &ChromeBar{session: s, decision: decision}
}

// State 导航条仅在 mode 非 None 时可见；主页按钮只在 ModeB 显示
func (b *ChromeBar) State() BarState {
	mode := b.decision.UIMode
	return BarState{
		Visible:     mode != domain.UIModeNone,
		HomeVisible: mode == domain.UIModeB,
		CanGoBack:   b.session.CanGoBack(),
	}
}

// Back 返回
func (b *ChromeBar) Back(ctx context.Context) error {
	return b.session.GoBack(ctx)
}

// Home 重新加载原始跳转地址，与当前导航深度无关
func (b *ChromeBar) Home(ctx context.Context) error {
	return b.session.LoadPrimary(ctx, b.decision.RedirectURL)
}
