package session

import (
	"context"
	"errors"
	"sync"

	"coworkshell/internal/logger"
	"coworkshell/pkg/domain"
	"coworkshell/pkg/traffic"

	"github.com/samber/lo"
)

var (
	// ErrNoPrimary 主浏览面尚未创建
	ErrNoPrimary = errors.New("session: primary surface not open")
	// ErrUnknownSurface 浏览面不属于当前会话
	ErrUnknownSurface = errors.New("session: unknown surface")
)

// Surface 一个可加载页面的浏览面
type Surface interface {
	ID() domain.SurfaceID
	Load(ctx context.Context, req *traffic.Request) error
	CanGoBack(ctx context.Context) (bool, error)
	GoBack(ctx context.Context) error
	Close(ctx context.Context) error
}

// Driver 浏览面的创建者
type Driver interface {
	OpenPrimary(ctx context.Context, opts domain.SurfaceOptions) (Surface, error)
	// OpenOverlay 创建弹窗浏览面；req.Target 非空时接管浏览器已创建的目标
	OpenOverlay(ctx context.Context, req domain.PopupRequest, opts domain.SurfaceOptions) (Surface, error)
}

// BrowserSession 一个主浏览面加弹窗栈，统一返回语义和生命周期
type BrowserSession struct {
	id     domain.SessionID
	driver Driver
	opts   domain.SurfaceOptions
	log    logger.Logger

	mu          sync.Mutex
	primary     Surface
	overlays    []Surface
	states      map[domain.SurfaceID]domain.SurfaceState
	canGoBack   bool
	firstLoaded bool
	onFirstLoad func(url string)
	onChange    func(domain.SessionState)
}

// New 创建浏览会话
func New(id domain.SessionID, driver Driver, opts domain.SurfaceOptions, l logger.Logger) *BrowserSession {
	if l == nil {
		l = logger.NewNop()
	}
	return &BrowserSession{
		id:     id,
		driver: driver,
		opts:   opts,
		log:    l.With("session", string(id)),
		states: make(map[domain.SurfaceID]domain.SurfaceState),
	}
}

// ID 会话 ID
func (s *BrowserSession) ID() domain.SessionID { return s.id }

// OnFirstLoad 注册主浏览面首次加载完成的回调，每个会话至多触发一次
func (s *BrowserSession) OnFirstLoad(fn func(url string)) {
	s.mu.Lock()
	s.onFirstLoad = fn
	s.mu.Unlock()
}

// OnChange 注册会话状态变化回调
func (s *BrowserSession) OnChange(fn func(domain.SessionState)) {
	s.mu.Lock()
	s.onChange = fn
	s.mu.Unlock()
}

// LoadPrimary 清空弹窗栈并在主浏览面加载 url
func (s *BrowserSession) LoadPrimary(ctx context.Context, url string) error {
	s.mu.Lock()
	if s.primary == nil {
		p, err := s.driver.OpenPrimary(ctx, s.opts)
		if err != nil {
			s.mu.Unlock()
			return err
		}
		s.primary = p
	}
	for _, o := range s.overlays {
		s.closeSurface(ctx, o)
	}
	s.overlays = nil

	s.states[s.primary.ID()] = domain.SurfaceLoading
	err := s.primary.Load(ctx, traffic.NewRequest(url).WithUserAgent(s.opts.UserAgent))
	if err != nil {
		s.log.Err(err, "主浏览面加载失败", "url", url)
	}
	s.recompute(ctx)
	s.unlockAndNotify()
	return err
}

// OpenPopup 为页面请求的新窗口创建弹窗浏览面并压栈
func (s *BrowserSession) OpenPopup(ctx context.Context, req domain.PopupRequest) (Surface, error) {
	s.mu.Lock()
	o, err := s.driver.OpenOverlay(ctx, req, s.opts)
	if err != nil {
		s.mu.Unlock()
		s.log.Err(err, "创建弹窗失败", "url", req.URL)
		return nil, err
	}
	s.overlays = append(s.overlays, o)
	s.states[o.ID()] = domain.SurfaceLoading
	if req.Target == "" && req.URL != "" {
		if err := o.Load(ctx, traffic.NewRequest(req.URL).WithUserAgent(s.opts.UserAgent)); err != nil {
			s.log.Err(err, "弹窗加载失败", "url", req.URL)
		}
	}
	s.log.Info("打开弹窗", "surface", string(o.ID()), "depth", len(s.overlays))
	s.recompute(ctx)
	s.unlockAndNotify()
	return o, nil
}

// GoBack 活动浏览面有历史时后退，否则关闭栈顶弹窗；都没有时不做任何事
func (s *BrowserSession) GoBack(ctx context.Context) error {
	s.mu.Lock()
	active := s.activeLocked()
	if active == nil {
		s.mu.Unlock()
		return ErrNoPrimary
	}
	err := s.backOrClose(ctx, active, len(s.overlays) > 0)
	s.recompute(ctx)
	s.unlockAndNotify()
	return err
}

// BackOverlay 在指定弹窗内后退，没有历史时关闭它
func (s *BrowserSession) BackOverlay(ctx context.Context, id domain.SurfaceID) error {
	s.mu.Lock()
	o, ok := s.findOverlay(id)
	if !ok {
		s.mu.Unlock()
		return ErrUnknownSurface
	}
	err := s.backOrClose(ctx, o, true)
	s.recompute(ctx)
	s.unlockAndNotify()
	return err
}

// CloseOverlay 从栈中任意位置移除并关闭指定弹窗
func (s *BrowserSession) CloseOverlay(ctx context.Context, id domain.SurfaceID) error {
	s.mu.Lock()
	o, ok := s.findOverlay(id)
	if !ok {
		s.mu.Unlock()
		return ErrUnknownSurface
	}
	s.removeOverlay(o)
	s.closeSurface(ctx, o)
	s.recompute(ctx)
	s.unlockAndNotify()
	return nil
}

// backOrClose 调用方持锁
func (s *BrowserSession) backOrClose(ctx context.Context, sf Surface, closable bool) error {
	hasHistory, err := sf.CanGoBack(ctx)
	if err != nil {
		s.log.Warn("查询历史失败", "surface", string(sf.ID()), "error", err.Error())
	}
	if hasHistory {
		s.states[sf.ID()] = domain.SurfaceNavigating
		return sf.GoBack(ctx)
	}
	if !closable || sf == s.primary {
		return nil
	}
	s.removeOverlay(sf)
	s.closeSurface(ctx, sf)
	return nil
}

// SurfaceLoaded 浏览面完成加载
func (s *BrowserSession) SurfaceLoaded(ctx context.Context, id domain.SurfaceID, url string) {
	s.mu.Lock()
	if !s.ownsLocked(id) {
		s.mu.Unlock()
		return
	}
	s.states[id] = domain.SurfaceLoaded

	var first func(string)
	if s.primary != nil && id == s.primary.ID() && !s.firstLoaded && url != "" {
		s.firstLoaded = true
		first = s.onFirstLoad
	}
	s.recompute(ctx)
	s.unlockAndNotify()

	if first != nil {
		first(url)
	}
}

// SurfaceNavigated 浏览面开始新的导航
func (s *BrowserSession) SurfaceNavigated(ctx context.Context, id domain.SurfaceID, url string) {
	s.mu.Lock()
	if !s.ownsLocked(id) {
		s.mu.Unlock()
		return
	}
	s.states[id] = domain.SurfaceNavigating
	s.log.Debug("浏览面导航", "surface", string(id), "url", url)
	s.recompute(ctx)
	s.unlockAndNotify()
}

// SurfaceClosed 浏览面被页面自身关闭（window.close）
func (s *BrowserSession) SurfaceClosed(ctx context.Context, id domain.SurfaceID) {
	s.mu.Lock()
	switch o, ok := s.findOverlay(id); {
	case ok:
		s.removeOverlay(o)
	case s.primary != nil && id == s.primary.ID():
		// 下次 LoadPrimary 重新打开主浏览面
		s.primary = nil
	default:
		s.mu.Unlock()
		return
	}
	s.states[id] = domain.SurfaceClosed
	s.recompute(ctx)
	s.unlockAndNotify()
}

// PopupRequested 页面请求新窗口
func (s *BrowserSession) PopupRequested(ctx context.Context, req domain.PopupRequest) {
	if _, err := s.OpenPopup(ctx, req); err != nil {
		s.log.Warn("忽略弹窗请求", "opener", string(req.Opener))
	}
}

// Refresh 重新计算可后退状态
func (s *BrowserSession) Refresh(ctx context.Context) {
	s.mu.Lock()
	s.recompute(ctx)
	s.unlockAndNotify()
}

// CanGoBack 活动浏览面有历史或弹窗栈非空
func (s *BrowserSession) CanGoBack() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.canGoBack
}

// Active 栈顶弹窗，否则主浏览面
func (s *BrowserSession) Active() Surface {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.activeLocked()
}

// Overlays 当前弹窗栈，最新打开的在最后
func (s *BrowserSession) Overlays() []Surface {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Surface(nil), s.overlays...)
}

// SurfaceState 单个浏览面的生命周期状态
func (s *BrowserSession) SurfaceState(id domain.SurfaceID) (domain.SurfaceState, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	st, ok := s.states[id]
	return st, ok
}

// State 会话快照
func (s *BrowserSession) State() domain.SessionState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

// Close 关闭全部浏览面
func (s *BrowserSession) Close(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := len(s.overlays) - 1; i >= 0; i-- {
		s.closeSurface(ctx, s.overlays[i])
	}
	s.overlays = nil
	if s.primary != nil {
		s.closeSurface(ctx, s.primary)
	}
	s.canGoBack = false
	return nil
}

func (s *BrowserSession) activeLocked() Surface {
	if n := len(s.overlays); n > 0 {
		return s.overlays[n-1]
	}
	return s.primary
}

func (s *BrowserSession) ownsLocked(id domain.SurfaceID) bool {
	if s.primary != nil && s.primary.ID() == id {
		return true
	}
	_, ok := s.findOverlay(id)
	return ok
}

func (s *BrowserSession) findOverlay(id domain.SurfaceID) (Surface, bool) {
	return lo.Find(s.overlays, func(o Surface) bool { return o.ID() == id })
}

func (s *BrowserSession) removeOverlay(target Surface) {
	s.overlays = lo.Reject(s.overlays, func(o Surface, _ int) bool { return o == target })
}

func (s *BrowserSession) closeSurface(ctx context.Context, sf Surface) {
	if err := sf.Close(ctx); err != nil {
		s.log.Warn("关闭浏览面失败", "surface", string(sf.ID()), "error", err.Error())
	}
	s.states[sf.ID()] = domain.SurfaceClosed
}

// recompute 调用方持锁
func (s *BrowserSession) recompute(ctx context.Context) {
	if len(s.overlays) > 0 {
		s.canGoBack = true
		return
	}
	s.canGoBack = false
	if s.primary == nil {
		return
	}
	ok, err := s.primary.CanGoBack(ctx)
	if err != nil {
		s.log.Debug("查询主浏览面历史失败", "error", err.Error())
		return
	}
	s.canGoBack = ok
}

func (s *BrowserSession) snapshotLocked() domain.SessionState {
	st := domain.SessionState{
		ID:        s.id,
		CanGoBack: s.canGoBack,
		Overlays:  lo.Map(s.overlays, func(o Surface, _ int) domain.SurfaceID { return o.ID() }),
	}
	if s.primary != nil {
		st.Primary = s.primary.ID()
	}
	if a := s.activeLocked(); a != nil {
		st.Active = a.ID()
	}
	return st
}

// unlockAndNotify 释放锁后通知观察者
func (s *BrowserSession) unlockAndNotify() {
	fn := s.onChange
	st := s.snapshotLocked()
	s.mu.Unlock()
	if fn != nil {
		fn(st)
	}
}
