package handler

import (
	"context"
	"time"

	"coworkshell/internal/logger"
	"coworkshell/internal/rules"
	"coworkshell/pkg/domain"
	"coworkshell/pkg/traffic"
)

// Launcher 把链接交给操作系统打开（拨号、邮件、短信）
type Launcher interface {
	Launch(ctx context.Context, url string) error
}

// DialogPresenter 以原生模态框展示页面对话框
type DialogPresenter interface {
	Present(ctx context.Context, d domain.Dialog) (domain.DialogResult, error)
}

// Handler 事件处理器，负责协调导航策略、外部打开和对话框桥接
type Handler struct {
	engine    *rules.Engine
	launcher  Launcher
	presenter DialogPresenter
	events    chan domain.NavigationEvent
	log       logger.Logger
}

// Config 配置选项
type Config struct {
	Engine    *rules.Engine
	Launcher  Launcher
	Presenter DialogPresenter
	Events    chan domain.NavigationEvent
	Logger    logger.Logger
}

// New 创建事件处理器
func New(cfg Config) *Handler {
	l := cfg.Logger
	if l == nil {
		l = logger.NewNop()
	}
	return &Handler{
		engine:    cfg.Engine,
		launcher:  cfg.Launcher,
		presenter: cfg.Presenter,
		events:    cfg.Events,
		log:       l,
	}
}

// SetEngine 设置策略引擎
func (h *Handler) SetEngine(engine *rules.Engine) {
	h.engine = engine
}

// HandleNavigation 处理一次导航决策；返回 Launch 时已交给系统打开
func (h *Handler) HandleNavigation(ctx context.Context, session domain.SessionID, surface domain.SurfaceID, url string) rules.Verdict {
	verdict := rules.Allow
	if h.engine != nil {
		verdict = h.engine.Eval(traffic.NewRequest(url))
	}

	switch verdict {
	case rules.Launch:
		if h.launcher == nil {
			h.log.Warn("未配置外部打开器，丢弃链接", "url", url)
			break
		}
		if err := h.launcher.Launch(ctx, url); err != nil {
			h.log.Err(err, "外部打开链接失败", "url", url)
		} else {
			h.log.Info("链接已交给系统打开", "url", url)
		}
	case rules.Cancel:
		h.log.Debug("取消导航", "url", url)
	}

	h.emit(domain.NavigationEvent{
		Session:   session,
		Surface:   surface,
		Timestamp: time.Now().UnixMilli(),
		URL:       url,
		Verdict:   verdict.String(),
	})
	return verdict
}

// HandleDialog 处理页面对话框，始终返回结果
func (h *Handler) HandleDialog(ctx context.Context, d domain.Dialog) domain.DialogResult {
	if h.presenter == nil {
		return DefaultResult(d)
	}
	res, err := h.presenter.Present(ctx, d)
	if err != nil {
		h.log.Err(err, "展示对话框失败，使用默认结果", "type", string(d.Type))
		return DefaultResult(d)
	}
	if d.Type == domain.DialogAlert {
		res.Accepted = true
		res.Text = nil
	}
	if d.Type == domain.DialogConfirm {
		res.Text = nil
	}
	if d.Type == domain.DialogPrompt && !res.Accepted {
		res.Text = nil
	}
	return res
}

// DefaultResult 无法展示时的结果：alert 确认，confirm 取消，prompt 返回空
func DefaultResult(d domain.Dialog) domain.DialogResult {
	if d.Type == domain.DialogAlert {
		return domain.DialogResult{Accepted: true}
	}
	return domain.DialogResult{}
}

func (h *Handler) emit(evt domain.NavigationEvent) {
	if h.events == nil {
		return
	}
	select {
	case h.events <- evt:
	default:
	}
}
