package gate

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"
	"unicode/utf8"

	"coworkshell/internal/config"
	"coworkshell/internal/logger"
	"coworkshell/pkg/domain"
)

var (
	// ErrUnexpectedStatus 门控接口返回非 2xx
	ErrUnexpectedStatus = errors.New("gate: unexpected status")
	// ErrBodyTooLarge 指令体超过上限，按无法解码处理
	ErrBodyTooLarge = errors.New("gate: directive body too large")
)

// maxBodyBytes 指令体只有一行 URL
const maxBodyBytes = 64 << 10

// Resolver 远程门控解析器，一次启动最多一次网络往返
type Resolver struct {
	endpoint string
	marker   string
	client   *http.Client
	log      logger.Logger
}

// NewResolver 根据配置创建解析器：请求超时作用于建连与响应头，资源超时作用于整个请求
func NewResolver(cfg config.GateConfig, l logger.Logger) *Resolver {
	if l == nil {
		l = logger.NewNop()
	}
	requestTimeout := config.Millis(cfg.RequestTimeoutMS)
	transport := &http.Transport{
		Proxy:                 http.ProxyFromEnvironment,
		DialContext:           (&net.Dialer{Timeout: requestTimeout}).DialContext,
		TLSHandshakeTimeout:   requestTimeout,
		ResponseHeaderTimeout: requestTimeout,
		IdleConnTimeout:       30 * time.Second,
	}
	return &Resolver{
		endpoint: cfg.Endpoint,
		marker:   cfg.Marker,
		client: &http.Client{
			Transport: transport,
			Timeout:   config.Millis(cfg.ResourceTimeoutMS),
		},
		log: l.With("component", "gate_resolver"),
	}
}

// WithHTTPClient 替换 HTTP 客户端，主要用于测试
func (r *Resolver) WithHTTPClient(c *http.Client) *Resolver {
	r.client = c
	return r
}

// Resolve 发起门控请求并推导决策。任何失败都返回零值决策（留在原生）和原因
func (r *Resolver) Resolve(ctx context.Context, snap domain.AttributionSnapshot) (domain.GateDecision, error) {
	if r.endpoint == "" || !validURL(r.endpoint) {
		return domain.GateDecision{}, fmt.Errorf("gate endpoint %q: %w", r.endpoint, ErrInvalidURL)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, r.endpoint, nil)
	if err != nil {
		return domain.GateDecision{}, fmt.Errorf("build gate request: %w", err)
	}
	start := time.Now()
	resp, err := r.client.Do(req)
	if err != nil {
		return domain.GateDecision{}, fmt.Errorf("gate request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return domain.GateDecision{}, fmt.Errorf("%w: %d", ErrUnexpectedStatus, resp.StatusCode)
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes+1))
	if err != nil {
		return domain.GateDecision{}, fmt.Errorf("read gate body: %w", err)
	}
	if len(body) > maxBodyBytes {
		return domain.GateDecision{}, fmt.Errorf("%w: more than %d bytes", ErrBodyTooLarge, maxBodyBytes)
	}
	if !utf8.Valid(body) {
		return domain.GateDecision{}, errors.New("gate: body is not utf-8")
	}
	r.log.Debug("门控响应", "status", resp.StatusCode, "bytes", len(body), "duration", time.Since(start).String())

	d, err := ParseDirective(string(body), r.marker)
	if err != nil {
		return domain.GateDecision{}, err
	}
	final, err := AssembleURL(d.BaseURL, snap)
	if err != nil {
		return domain.GateDecision{}, err
	}
	return domain.GateDecision{RedirectURL: final, UIMode: d.Mode}, nil
}
