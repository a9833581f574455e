package rules

import (
	"strings"

	"coworkshell/internal/config"
	"coworkshell/pkg/traffic"

	"github.com/samber/lo"
)

// Verdict 导航策略判定结果
type Verdict int

const (
	// Allow 在浏览面内继续加载
	Allow Verdict = iota
	// Launch 取消加载并交给系统打开
	Launch
	// Cancel 直接取消，不做外部处理
	Cancel
)

func (v Verdict) String() string {
	switch v {
	case Allow:
		return "allow"
	case Launch:
		return "launch"
	default:
		return "cancel"
	}
}

// Engine 链接 scheme 策略
type Engine struct {
	allow         []string
	launch        []string
	challengeHost string
}

// New 根据浏览配置创建策略引擎
func New(cfg config.BrowserConfig) *Engine {
	lower := func(s string, _ int) string { return strings.ToLower(strings.TrimSpace(s)) }
	return &Engine{
		allow:         lo.Map(cfg.AllowSchemes, lower),
		launch:        lo.Map(cfg.LaunchSchemes, lower),
		challengeHost: strings.ToLower(cfg.ChallengeHost),
	}
}

// Update 替换策略配置
func (e *Engine) Update(cfg config.BrowserConfig) { *e = *New(cfg) }

// Eval 判定一次导航请求
func (e *Engine) Eval(req *traffic.Request) Verdict {
	if req == nil || req.URL == "" {
		return Allow
	}
	if e.challengeHost != "" && strings.Contains(req.Host, e.challengeHost) {
		return Allow
	}
	switch {
	case lo.Contains(e.allow, req.Scheme):
		return Allow
	case lo.Contains(e.launch, req.Scheme):
		return Launch
	default:
		return Cancel
	}
}
