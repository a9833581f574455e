package gate

import (
	"context"
	"strconv"

	"coworkshell/internal/storage"
	"coworkshell/pkg/domain"
)

// 持久化键
const (
	KeyRedirectURL   = "stored_redirect_url"
	KeyUIMode        = "stored_ui_mode"
	KeyLastLoadedURL = "last_known_loaded_url"
)

// DecisionStore 门控决策的持久化视图
type DecisionStore struct {
	kv storage.KV
}

func NewDecisionStore(kv storage.KV) *DecisionStore {
	return &DecisionStore{kv: kv}
}

// Load 读取已持久化的决策；无法解析的值按不存在处理
func (s *DecisionStore) Load(ctx context.Context) (domain.GateDecision, bool) {
	raw, ok, err := s.kv.Get(ctx, KeyRedirectURL)
	if err != nil || !ok || !validURL(raw) {
		return domain.GateDecision{}, false
	}
	return domain.GateDecision{RedirectURL: raw, UIMode: s.loadMode(ctx)}, true
}

// LastLoaded 读取首次加载完成时记录的地址，作为跳转地址缺失时的兜底
func (s *DecisionStore) LastLoaded(ctx context.Context) (string, bool) {
	raw, ok, err := s.kv.Get(ctx, KeyLastLoadedURL)
	if err != nil || !ok || !validURL(raw) {
		return "", false
	}
	return raw, true
}

func (s *DecisionStore) loadMode(ctx context.Context) domain.UIMode {
	raw, ok, err := s.kv.Get(ctx, KeyUIMode)
	if err != nil || !ok {
		return domain.UIModeNone
	}
	n, err := strconv.Atoi(raw)
	if err != nil || !domain.UIMode(n).Valid() {
		return domain.UIModeNone
	}
	return domain.UIMode(n)
}

// Save 写入跳转决策：地址只写一次，模式随地址的首次写入一起写
func (s *DecisionStore) Save(ctx context.Context, d domain.GateDecision) (bool, error) {
	if !d.Redirect() {
		return false, nil
	}
	if _, ok := s.Load(ctx); ok {
		return false, nil
	}
	// 损坏的旧值按不存在处理，直接覆盖
	if err := s.kv.Set(ctx, KeyRedirectURL, d.RedirectURL); err != nil {
		return false, err
	}
	if err := s.kv.Set(ctx, KeyUIMode, strconv.Itoa(int(d.UIMode))); err != nil {
		return true, err
	}
	return true, nil
}

// RememberLoaded 记录会话内第一次加载完成的地址，已有值时不覆盖
func (s *DecisionStore) RememberLoaded(ctx context.Context, rawURL string) error {
	if !validURL(rawURL) {
		return nil
	}
	_, err := s.kv.SetIfAbsent(ctx, KeyLastLoadedURL, rawURL)
	return err
}

// Reset 清除全部门控状态，下次启动重新解析
func (s *DecisionStore) Reset(ctx context.Context) error {
	for _, k := range []string{KeyRedirectURL, KeyUIMode, KeyLastLoadedURL} {
		if err := s.kv.Delete(ctx, k); err != nil {
			return err
		}
	}
	return nil
}
