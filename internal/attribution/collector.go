// Package attribution 在门控请求前采集设备标识与活动归因参数
package attribution

import (
	"context"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/samber/lo"

	"coworkshell/internal/logger"
	"coworkshell/internal/tracking"
	"coworkshell/pkg/domain"
)

// SDK 安装追踪 SDK 的最小能力集合
type SDK interface {
	AuthorizationStatus() tracking.Authorization
	AdvertisingID() string
	InstallerUID() string
	Start(ctx context.Context) error
	Subscribe(fn func(tracking.Conversion)) (cancel func())
}

// Options 采集窗口配置
type Options struct {
	Timeout      time.Duration
	Recheck      time.Duration
	RestartDelay time.Duration
	// After 定时器工厂，测试中注入以确定性触发超时
	After func(time.Duration) <-chan time.Time
}

// Collector 归因采集器
type Collector struct {
	sdk  SDK
	opts Options
	log  logger.Logger
}

// New 创建采集器
func New(sdk SDK, opts Options, l logger.Logger) *Collector {
	if l == nil {
		l = logger.NewNop()
	}
	if opts.After == nil {
		opts.After = time.After
	}
	return &Collector{sdk: sdk, opts: opts, log: l.With("component", "attribution")}
}

// settle 一次性结果闩：回调与超时先到者生效
type settle struct {
	once sync.Once
	ch   chan *string
}

func newSettle() *settle {
	return &settle{ch: make(chan *string, 1)}
}

// resolve 返回是否由本次调用决定了结果
func (s *settle) resolve(params *string) bool {
	won := false
	s.once.Do(func() {
		won = true
		s.ch <- params
	})
	return won
}

// Collect 采集一次归因快照。超时、失败都不是错误，只是没有活动参数
func (c *Collector) Collect(ctx context.Context) domain.AttributionSnapshot {
	snap := domain.AttributionSnapshot{
		DeviceAdID:   domain.ZeroAdvertisingID,
		InstallerUID: c.sdk.InstallerUID(),
	}
	if c.sdk.AuthorizationStatus() == tracking.Authorized {
		if id := c.sdk.AdvertisingID(); id != "" {
			snap.DeviceAdID = id
		}
	}

	latch := newSettle()
	cancel := c.sdk.Subscribe(func(conv tracking.Conversion) {
		params := CampaignParams(conv)
		if !latch.resolve(params) {
			c.log.Debug("归因回调晚于超时，已忽略", "source", string(conv.Source))
		}
	})
	defer cancel()

	recheckCtx, stopRecheck := context.WithCancel(ctx)
	defer stopRecheck()
	go c.recheckAuthorization(recheckCtx)

	timeout := c.opts.After(c.opts.Timeout)
	select {
	case params := <-latch.ch:
		snap.CampaignParams = params
	case <-timeout:
		if latch.resolve(nil) {
			c.log.Info("归因采集超时，不带活动参数继续", "timeout", c.opts.Timeout.String())
		}
		snap.CampaignParams = <-latch.ch
	case <-ctx.Done():
		latch.resolve(nil)
		snap.CampaignParams = <-latch.ch
	}
	return snap
}

// recheckAuthorization 等待窗口中途重新检查授权，授权已到达时重启 SDK
func (c *Collector) recheckAuthorization(ctx context.Context) {
	select {
	case <-ctx.Done():
		return
	case <-c.opts.After(c.opts.Recheck):
	}
	if c.sdk.AuthorizationStatus() != tracking.Authorized {
		return
	}
	if err := c.sdk.Start(ctx); err != nil {
		c.log.Warn("重启追踪 SDK 失败", "error", err.Error())
		return
	}

	select {
	case <-ctx.Done():
		return
	case <-c.opts.After(c.opts.RestartDelay):
	}
	if c.sdk.AuthorizationStatus() != tracking.Authorized {
		return
	}
	if err := c.sdk.Start(ctx); err != nil {
		c.log.Warn("二次启动追踪 SDK 失败", "error", err.Error())
	}
}

// CampaignParams 将 campaign 按下划线拆分为 &sub1=..&sub2=..；没有可用值时返回 nil
func CampaignParams(conv tracking.Conversion) *string {
	if !conv.Succeeded() {
		return nil
	}
	parts := lo.Compact(strings.Split(conv.Campaign, "_"))
	if len(parts) == 0 {
		return nil
	}
	subs := lo.Map(parts, func(p string, i int) string {
		return "sub" + strconv.Itoa(i+1) + "=" + p
	})
	params := "&" + strings.Join(subs, "&")
	return &params
}
