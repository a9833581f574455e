package tracking

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"

	"coworkshell/internal/config"
	"coworkshell/internal/logger"
	"coworkshell/internal/storage"
)

// ErrNotConfigured 未配置转化数据地址
var ErrNotConfigured = errors.New("tracking: conversion url not configured")

const (
	keyAuthorization = "tracking_authorization"
	keyAdvertisingID = "tracking_advertising_id"
	keyInstallerUID  = "tracking_installer_uid"
)

// Authorization 追踪授权状态
type Authorization int

const (
	NotDetermined Authorization = iota
	Denied
	Authorized
)

func (a Authorization) String() string {
	switch a {
	case Authorized:
		return "authorized"
	case Denied:
		return "denied"
	default:
		return "not_determined"
	}
}

// Source 归因数据来源
type Source string

const (
	SourceConversion Source = "conversion"
	SourceAppOpen    Source = "app_open"
)

// Conversion 一次归因回调的结果
type Conversion struct {
	Source Source
	// Campaign 为空表示回调成功但没有可用的 campaign 字段
	Campaign string
	Err      error
}

// Succeeded 回调是否成功
func (c Conversion) Succeeded() bool { return c.Err == nil }

// Client 安装追踪 SDK 客户端：本地标识 + 远程转化数据
type Client struct {
	cfg  config.TrackingConfig
	kv   storage.KV
	http *http.Client
	log  logger.Logger

	mu          sync.Mutex
	started     bool
	fetching    bool
	delivered   *Conversion
	subscribers map[int]func(Conversion)
	nextSub     int
}

// New 创建追踪客户端
func New(cfg config.TrackingConfig, kv storage.KV, l logger.Logger) *Client {
	if l == nil {
		l = logger.NewNop()
	}
	timeout := config.Millis(cfg.TimeoutMS)
	if timeout <= 0 {
		timeout = 8 * time.Second
	}
	return &Client{
		cfg:         cfg,
		kv:          kv,
		http:        &http.Client{Timeout: timeout},
		log:         l.With("component", "tracking"),
		subscribers: make(map[int]func(Conversion)),
	}
}

// AuthorizationStatus 同步读取追踪授权状态
func (c *Client) AuthorizationStatus() Authorization {
	v, ok, err := c.kv.Get(context.Background(), keyAuthorization)
	if err != nil || !ok {
		return NotDetermined
	}
	switch v {
	case Authorized.String():
		return Authorized
	case Denied.String():
		return Denied
	default:
		return NotDetermined
	}
}

// SetAuthorization 记录授权弹窗的结果
func (c *Client) SetAuthorization(ctx context.Context, a Authorization) error {
	return c.kv.Set(ctx, keyAuthorization, a.String())
}

// AdvertisingID 设备广告标识，仅在已授权时有效
func (c *Client) AdvertisingID() string {
	if c.AuthorizationStatus() != Authorized {
		return ""
	}
	return c.ensureID(context.Background(), keyAdvertisingID)
}

// InstallerUID 客户端安装标识，Start 之前可能为空
func (c *Client) InstallerUID() string {
	v, ok, err := c.kv.Get(context.Background(), keyInstallerUID)
	if err != nil || !ok {
		return ""
	}
	return v
}

func (c *Client) ensureID(ctx context.Context, key string) string {
	if v, ok, err := c.kv.Get(ctx, key); err == nil && ok {
		return v
	}
	if _, err := c.kv.SetIfAbsent(ctx, key, uuid.NewString()); err != nil {
		c.log.Err(err, "保存追踪标识失败", "key", key)
		return ""
	}
	v, _, _ := c.kv.Get(ctx, key)
	return v
}

// Start 激活 SDK：生成安装标识、上报启动、拉取转化数据。重复调用安全
func (c *Client) Start(ctx context.Context) error {
	uid := c.ensureID(ctx, keyInstallerUID)

	c.mu.Lock()
	firstStart := !c.started
	c.started = true
	if c.delivered != nil || c.fetching {
		c.mu.Unlock()
		return nil
	}
	c.fetching = true
	c.mu.Unlock()

	if firstStart && c.cfg.LaunchURL != "" {
		if err := c.reportLaunch(ctx, uid); err != nil {
			c.log.Warn("上报启动失败", "error", err.Error())
		}
	}

	go c.fetchConversion(context.WithoutCancel(ctx), uid)
	return nil
}

func (c *Client) reportLaunch(ctx context.Context, uid string) error {
	body, _ := sjson.SetBytes(nil, "uid", uid)
	body, _ = sjson.SetBytes(body, "app_id", c.cfg.AppID)
	body, _ = sjson.SetBytes(body, "authorization", c.AuthorizationStatus().String())
	body, _ = sjson.SetBytes(body, "timestamp", time.Now().UnixMilli())
	if adID := c.AdvertisingID(); adID != "" {
		body, _ = sjson.SetBytes(body, "advertising_id", adID)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.LaunchURL, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if c.cfg.DevKey != "" {
		req.Header.Set("Authentication", c.cfg.DevKey)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)
	if resp.StatusCode/100 != 2 {
		return fmt.Errorf("launch report status %d", resp.StatusCode)
	}
	return nil
}

func (c *Client) fetchConversion(ctx context.Context, uid string) {
	conv := c.requestConversion(ctx, uid)

	c.mu.Lock()
	c.fetching = false
	c.mu.Unlock()

	if conv.Err != nil {
		c.log.Warn("获取转化数据失败", "error", conv.Err.Error())
	}
	c.deliver(conv)
}

func (c *Client) requestConversion(ctx context.Context, uid string) Conversion {
	conv := Conversion{Source: SourceConversion}
	if c.cfg.ConversionURL == "" {
		conv.Err = ErrNotConfigured
		return conv
	}
	u, err := url.Parse(c.cfg.ConversionURL)
	if err != nil {
		conv.Err = fmt.Errorf("parse conversion url: %w", err)
		return conv
	}
	q := u.Query()
	q.Set("uid", uid)
	if c.cfg.AppID != "" {
		q.Set("app_id", c.cfg.AppID)
	}
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		conv.Err = err
		return conv
	}
	if c.cfg.DevKey != "" {
		req.Header.Set("Authentication", c.cfg.DevKey)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		conv.Err = err
		return conv
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		conv.Err = err
		return conv
	}
	if resp.StatusCode/100 != 2 {
		conv.Err = fmt.Errorf("conversion status %d", resp.StatusCode)
		return conv
	}
	return parseConversion(body)
}

// parseConversion 解析转化数据负载：{"status":"success","data":{"campaign":"a_b"}}
func parseConversion(body []byte) Conversion {
	conv := Conversion{Source: SourceConversion}
	if !gjson.ValidBytes(body) {
		conv.Err = errors.New("conversion payload is not json")
		return conv
	}
	res := gjson.ParseBytes(body)
	if status := res.Get("status"); status.Exists() && status.String() != "success" {
		conv.Err = fmt.Errorf("conversion status %q", status.String())
		return conv
	}
	campaign := res.Get("data.campaign")
	if campaign.Type == gjson.String {
		conv.Campaign = campaign.String()
	}
	return conv
}

// HandleOpenURL 处理打开应用的深链，campaign 查询参数作为打开归因投递
func (c *Client) HandleOpenURL(raw string) bool {
	u, err := url.Parse(raw)
	if err != nil {
		return false
	}
	campaign := u.Query().Get("campaign")
	if campaign == "" {
		return false
	}
	c.deliver(Conversion{Source: SourceAppOpen, Campaign: campaign})
	return true
}

// Subscribe 注册一次性回调。已投递过结果时异步补发
func (c *Client) Subscribe(fn func(Conversion)) (cancel func()) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.delivered != nil {
		conv := *c.delivered
		go fn(conv)
		return func() {}
	}
	id := c.nextSub
	c.nextSub++
	c.subscribers[id] = fn
	return func() {
		c.mu.Lock()
		delete(c.subscribers, id)
		c.mu.Unlock()
	}
}

// deliver 只投递第一次结果
func (c *Client) deliver(conv Conversion) {
	c.mu.Lock()
	if c.delivered != nil {
		c.mu.Unlock()
		return
	}
	c.delivered = &conv
	subs := make([]func(Conversion), 0, len(c.subscribers))
	for _, fn := range c.subscribers {
		subs = append(subs, fn)
	}
	c.subscribers = make(map[int]func(Conversion))
	c.mu.Unlock()

	for _, fn := range subs {
		fn(conv)
	}
}
