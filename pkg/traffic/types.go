package traffic

import (
	"net/url"
	"strings"
)

// HeaderUserAgent 浏览面加载请求统一携带的 UA 头
const HeaderUserAgent = "user-agent"

// Header 封装通用的头部操作
type Header map[string]string

// Get 获取指定 Header 的值（大小写不敏感）
func (h Header) Get(key string) string {
	if h == nil {
		return ""
	}
	return h[strings.ToLower(key)]
}

// Set 设置指定 Header 的值（自动转换为小写）
func (h Header) Set(key, value string) {
	h[strings.ToLower(key)] = value
}

// Del 删除指定 Header
func (h Header) Del(key string) {
	delete(h, strings.ToLower(key))
}

// Request 中立的导航请求模型
type Request struct {
	URL     string // 完整URL
	Scheme  string // 小写 scheme，解析失败时为空
	Host    string // 小写 host
	Headers Header // 加载时附带的请求头
}

// NewRequest 解析 URL 并创建导航请求；无法解析时仅保留原始 URL
func NewRequest(raw string) *Request {
	req := &Request{
		URL:     raw,
		Headers: make(Header),
	}
	if u, err := url.Parse(raw); err == nil {
		req.Scheme = strings.ToLower(u.Scheme)
		req.Host = strings.ToLower(u.Hostname())
	}
	return req
}

// WithUserAgent 设置 UA 头并返回自身
func (r *Request) WithUserAgent(ua string) *Request {
	if ua != "" {
		r.Headers.Set(HeaderUserAgent, ua)
	}
	return r
}
