package gate

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"coworkshell/internal/logger"
	"coworkshell/pkg/domain"
)

// ErrCeiling 门控解析超过硬上限
var ErrCeiling = errors.New("gate: resolve ceiling reached")

// Collector 归因采集
type Collector interface {
	Collect(ctx context.Context) domain.AttributionSnapshot
}

// DecisionResolver 远程门控解析
type DecisionResolver interface {
	Resolve(ctx context.Context, snap domain.AttributionSnapshot) (domain.GateDecision, error)
}

// ControllerConfig 控制器时序配置
type ControllerConfig struct {
	PreDelay time.Duration
	Ceiling  time.Duration
	// After 定时器工厂，测试中注入
	After func(time.Duration) <-chan time.Time
}

// Controller 启动门控状态机：等待 → 采集 → 解析 → 持久化 → 切换界面
type Controller struct {
	store     *DecisionStore
	collector Collector
	resolver  DecisionResolver
	cfg       ControllerConfig
	log       logger.Logger

	mu      sync.Mutex
	state   domain.LaunchState
	onState func(domain.LaunchState)
}

// NewController 创建门控控制器
func NewController(store *DecisionStore, c Collector, r DecisionResolver, cfg ControllerConfig, l logger.Logger) *Controller {
	if l == nil {
		l = logger.NewNop()
	}
	if cfg.After == nil {
		cfg.After = time.After
	}
	return &Controller{
		store:     store,
		collector: c,
		resolver:  r,
		cfg:       cfg,
		log:       l.With("component", "gate"),
		state:     domain.StateStart,
	}
}

// OnState 注册状态变化回调
func (c *Controller) OnState(fn func(domain.LaunchState)) {
	c.mu.Lock()
	c.onState = fn
	c.mu.Unlock()
}

// State 当前状态
func (c *Controller) State() domain.LaunchState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

func (c *Controller) transition(s domain.LaunchState) {
	c.mu.Lock()
	c.state = s
	fn := c.onState
	c.mu.Unlock()
	c.log.Debug("门控状态切换", "state", string(s))
	if fn != nil {
		fn(s)
	}
}

// Launch 执行一次启动决策，总会到达 NativeUI 或 RedirectUI 之一
func (c *Controller) Launch(ctx context.Context) domain.LaunchOutcome {
	c.transition(domain.StateStart)

	if d, ok := c.store.Load(ctx); ok {
		c.log.Info("使用已持久化的跳转决策", "mode", d.UIMode.String())
		c.transition(domain.StateRedirectUI)
		return domain.LaunchOutcome{State: domain.StateRedirectUI, Decision: d, Cached: true}
	}
	if last, ok := c.store.LastLoaded(ctx); ok {
		// 模式沿用已存储的值，缺失时不显示导航条
		d := domain.GateDecision{RedirectURL: last, UIMode: c.store.loadMode(ctx)}
		c.log.Info("跳转地址缺失，使用上次加载地址兜底")
		c.transition(domain.StateRedirectUI)
		return domain.LaunchOutcome{State: domain.StateRedirectUI, Decision: d, Cached: true}
	}

	c.transition(domain.StateCollectingSplash)
	if !c.wait(ctx, c.cfg.PreDelay) {
		return c.native("启动被取消")
	}

	snap, err := c.collect(ctx)
	if err != nil {
		c.log.Warn("归因采集异常，不带归因参数继续", "error", err.Error())
	}

	c.transition(domain.StateResolving)
	d, err := c.resolve(ctx, snap)
	c.transition(domain.StateDecided)
	if err != nil {
		return c.native(err.Error())
	}
	if !d.Redirect() {
		return c.native("未获得跳转")
	}

	if _, err := c.store.Save(ctx, d); err != nil {
		// 持久化失败不影响本次跳转，下次启动会重新解析
		c.log.Err(err, "保存门控决策失败")
	}
	c.log.Info("获得跳转", "mode", d.UIMode.String())
	c.transition(domain.StateRedirectUI)
	return domain.LaunchOutcome{State: domain.StateRedirectUI, Decision: d}
}

// native 原生结果不做缓存，下次冷启动重新解析
func (c *Controller) native(reason string) domain.LaunchOutcome {
	c.log.Warn("留在原生界面", "reason", reason)
	c.transition(domain.StateNativeUI)
	return domain.LaunchOutcome{State: domain.StateNativeUI}
}

func (c *Controller) wait(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	select {
	case <-ctx.Done():
		return false
	case <-c.cfg.After(d):
		return true
	}
}

func (c *Controller) collect(ctx context.Context) (snap domain.AttributionSnapshot, err error) {
	defer func() {
		if r := recover(); r != nil {
			snap = domain.AttributionSnapshot{DeviceAdID: domain.ZeroAdvertisingID}
			err = fmt.Errorf("collector panic: %v", r)
		}
	}()
	return c.collector.Collect(ctx), nil
}

type resolveResult struct {
	decision domain.GateDecision
	err      error
}

// resolve 解析请求与硬上限定时器竞争，先到者生效
func (c *Controller) resolve(ctx context.Context, snap domain.AttributionSnapshot) (domain.GateDecision, error) {
	rctx, cancel := context.WithCancel(ctx)
	defer cancel()

	done := make(chan resolveResult, 1)
	go func() {
		res := resolveResult{}
		defer func() {
			if r := recover(); r != nil {
				res = resolveResult{err: fmt.Errorf("resolver panic: %v", r)}
			}
			done <- res
		}()
		res.decision, res.err = c.resolver.Resolve(rctx, snap)
	}()

	var ceiling <-chan time.Time
	if c.cfg.Ceiling > 0 {
		ceiling = c.cfg.After(c.cfg.Ceiling)
	}
	select {
	case res := <-done:
		if res.err != nil {
			return domain.GateDecision{}, res.err
		}
		return res.decision, nil
	case <-ceiling:
		return domain.GateDecision{}, ErrCeiling
	case <-ctx.Done():
		return domain.GateDecision{}, ctx.Err()
	}
}
