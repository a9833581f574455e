package service

import (
	"context"
	"errors"
	"sync"

	"coworkshell/internal/attribution"
	"coworkshell/internal/cdp"
	"coworkshell/internal/config"
	"coworkshell/internal/ctxkeys"
	"coworkshell/internal/gate"
	"coworkshell/internal/handler"
	"coworkshell/internal/logger"
	"coworkshell/internal/rules"
	"coworkshell/internal/session"
	"coworkshell/internal/storage"
	"coworkshell/internal/tracking"
	"coworkshell/pkg/domain"
)

var (
	// ErrNotRedirected 本次启动没有跳转决策，不能打开浏览会话
	ErrNotRedirected = errors.New("service: launch did not redirect")
	// ErrSessionNotFound 会话不存在
	ErrSessionNotFound = errors.New("service: session not found")
)

// Browser 浏览面驱动
type Browser interface {
	session.Driver
	SetObserver(o cdp.Observer)
	Start(ctx context.Context) error
	Stop() error
}

// Options 可替换的外部协作者
type Options struct {
	// KV 为空时按配置打开 sqlite
	KV        storage.KV
	Browser   Browser
	Launcher  handler.Launcher
	Presenter handler.DialogPresenter
}

// svc 服务实现
type svc struct {
	cfg *config.Config
	log logger.Logger

	kv         storage.KV
	sqlStore   *storage.SQLStore
	tracking   *tracking.Client
	store      *gate.DecisionStore
	controller *gate.Controller
	handler    *handler.Handler
	sessions   *session.Manager
	browser    Browser
	events     chan domain.NavigationEvent

	mu             sync.Mutex
	outcome        *domain.LaunchOutcome
	bars           map[domain.SessionID]*session.ChromeBar
	browserStarted bool
}

// New 创建服务实例
func New(cfg *config.Config, opts Options, l logger.Logger) (*svc, error) {
	if l == nil {
		l = logger.NewNop()
	}
	s := &svc{
		cfg:    cfg,
		log:    l,
		kv:     opts.KV,
		events: make(chan domain.NavigationEvent, 256),
		bars:   make(map[domain.SessionID]*session.ChromeBar),
	}
	if s.kv == nil {
		st, err := storage.Open(cfg.Sqlite, l)
		if err != nil {
			return nil, err
		}
		s.sqlStore = st
		s.kv = st
	}

	s.tracking = tracking.New(cfg.Tracking, s.kv, l)
	collector := attribution.New(s.tracking, attribution.Options{
		Timeout:      config.Millis(cfg.Attribution.TimeoutMS),
		Recheck:      config.Millis(cfg.Attribution.RecheckMS),
		RestartDelay: config.Millis(cfg.Attribution.RestartDelayMS),
	}, l)
	s.store = gate.NewDecisionStore(s.kv)
	s.controller = gate.NewController(s.store, collector, gate.NewResolver(cfg.Gate, l), gate.ControllerConfig{
		PreDelay: config.Millis(cfg.Gate.PreDelayMS),
		Ceiling:  config.Millis(cfg.Gate.CeilingMS),
	}, l)

	s.handler = handler.New(handler.Config{
		Engine:    rules.New(cfg.Browser),
		Launcher:  opts.Launcher,
		Presenter: opts.Presenter,
		Events:    s.events,
		Logger:    l,
	})

	s.browser = opts.Browser
	if s.browser == nil {
		s.browser = cdp.New(cfg.Browser.DevToolsURL, l)
	}
	s.browser.SetObserver(&router{svc: s})
	s.sessions = session.NewManager(s.browser, domain.SurfaceOptions{
		UserAgent:   cfg.Browser.UserAgent,
		Dark:        cfg.Browser.Dark,
		InlineMedia: true,
	}, l)
	return s, nil
}

// OnLaunchState 注册门控状态回调
func (s *svc) OnLaunchState(fn func(domain.LaunchState)) {
	s.controller.OnState(fn)
}

// Launch 启动追踪 SDK 并执行门控决策
func (s *svc) Launch(ctx context.Context) domain.LaunchOutcome {
	ctx = ctxkeys.WithTraceID(ctx)
	go func() {
		if err := s.tracking.Start(context.WithoutCancel(ctx)); err != nil {
			s.log.Warn("追踪 SDK 启动失败", "error", err.Error())
		}
	}()

	out := s.controller.Launch(ctx)
	s.mu.Lock()
	s.outcome = &out
	s.mu.Unlock()
	return out
}

// OpenSession 以跳转决策打开浏览会话
func (s *svc) OpenSession(ctx context.Context) (domain.SessionID, error) {
	s.mu.Lock()
	out := s.outcome
	s.mu.Unlock()
	if out == nil || out.State != domain.StateRedirectUI {
		return "", ErrNotRedirected
	}
	if err := s.ensureBrowser(ctx); err != nil {
		return "", err
	}

	sess := s.sessions.Create()
	sess.OnFirstLoad(func(url string) {
		if err := s.store.RememberLoaded(ctxkeys.WithTraceID(context.Background()), url); err != nil {
			s.log.Err(err, "记录首个加载地址失败")
		}
	})
	bar := session.NewChromeBar(sess, out.Decision)
	s.mu.Lock()
	s.bars[sess.ID()] = bar
	s.mu.Unlock()

	if err := sess.LoadPrimary(ctx, out.Decision.RedirectURL); err != nil {
		s.log.Err(err, "加载跳转地址失败", "session", string(sess.ID()))
	}
	return sess.ID(), nil
}

func (s *svc) ensureBrowser(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.browserStarted {
		return nil
	}
	if err := s.browser.Start(ctx); err != nil {
		return err
	}
	s.browserStarted = true
	return nil
}

func (s *svc) session(id domain.SessionID) (*session.BrowserSession, error) {
	sess, ok := s.sessions.Get(id)
	if !ok {
		return nil, ErrSessionNotFound
	}
	return sess, nil
}

func (s *svc) bar(id domain.SessionID) (*session.ChromeBar, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.bars[id]
	if !ok {
		return nil, ErrSessionNotFound
	}
	return b, nil
}

// GoBack 返回
func (s *svc) GoBack(ctx context.Context, id domain.SessionID) error {
	b, err := s.bar(id)
	if err != nil {
		return err
	}
	return b.Back(ctx)
}

// Home 回到跳转地址
func (s *svc) Home(ctx context.Context, id domain.SessionID) error {
	b, err := s.bar(id)
	if err != nil {
		return err
	}
	return b.Home(ctx)
}

// BackOverlay 在弹窗内后退或关闭它
func (s *svc) BackOverlay(ctx context.Context, id domain.SessionID, surface domain.SurfaceID) error {
	sess, err := s.session(id)
	if err != nil {
		return err
	}
	return sess.BackOverlay(ctx, surface)
}

// CloseOverlay 关闭指定弹窗
func (s *svc) CloseOverlay(ctx context.Context, id domain.SessionID, surface domain.SurfaceID) error {
	sess, err := s.session(id)
	if err != nil {
		return err
	}
	return sess.CloseOverlay(ctx, surface)
}

// SessionState 会话快照
func (s *svc) SessionState(id domain.SessionID) (domain.SessionState, error) {
	sess, err := s.session(id)
	if err != nil {
		return domain.SessionState{}, err
	}
	return sess.State(), nil
}

// Bar 导航条状态
func (s *svc) Bar(id domain.SessionID) (session.BarState, error) {
	b, err := s.bar(id)
	if err != nil {
		return session.BarState{}, err
	}
	return b.State(), nil
}

// OnSessionChange 注册会话变化回调
func (s *svc) OnSessionChange(id domain.SessionID, fn func(domain.SessionState)) error {
	sess, err := s.session(id)
	if err != nil {
		return err
	}
	sess.OnChange(fn)
	return nil
}

// CloseSession 关闭会话
func (s *svc) CloseSession(ctx context.Context, id domain.SessionID) error {
	if _, err := s.session(id); err != nil {
		return err
	}
	s.sessions.Delete(ctx, id)
	s.mu.Lock()
	delete(s.bars, id)
	s.mu.Unlock()
	return nil
}

// SubscribeEvents 导航决策事件流
func (s *svc) SubscribeEvents() <-chan domain.NavigationEvent {
	return s.events
}

// Decision 已持久化的跳转决策
func (s *svc) Decision(ctx context.Context) (domain.GateDecision, bool) {
	return s.store.Load(ctx)
}

// LastLoaded 兜底地址
func (s *svc) LastLoaded(ctx context.Context) (string, bool) {
	return s.store.LastLoaded(ctx)
}

// ResetDecision 清除持久化决策，下次启动重新解析
func (s *svc) ResetDecision(ctx context.Context) error {
	if err := s.store.Reset(ctx); err != nil {
		return err
	}
	s.log.Info("已清除跳转决策")
	return nil
}

// SetTrackingAuthorization 记录追踪授权结果
func (s *svc) SetTrackingAuthorization(ctx context.Context, a tracking.Authorization) error {
	return s.tracking.SetAuthorization(ctx, a)
}

// HandleOpenURL 处理深链打开
func (s *svc) HandleOpenURL(raw string) bool {
	return s.tracking.HandleOpenURL(raw)
}

// Store 底层 KV，供原生界面保存记录
func (s *svc) Store() storage.KV { return s.kv }

// Close 关闭会话、浏览器连接和存储
func (s *svc) Close(ctx context.Context) error {
	for _, sess := range s.sessions.List() {
		s.sessions.Delete(ctx, sess.ID())
	}
	var errs []error
	s.mu.Lock()
	started := s.browserStarted
	s.browserStarted = false
	s.mu.Unlock()
	if started {
		errs = append(errs, s.browser.Stop())
	}
	if s.sqlStore != nil {
		errs = append(errs, s.sqlStore.Close())
	}
	return errors.Join(errs...)
}
