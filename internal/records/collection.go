package records

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"coworkshell/internal/storage"

	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"
)

// ErrCorrupt 存储的文档无法解析
var ErrCorrupt = errors.New("records: corrupt collection")

const keyPrefix = "records_"

// Collection 原生界面的记录列表，整体以 JSON 文档保存在 KV 中
type Collection[T any] struct {
	kv   storage.KV
	name string
}

// New 创建命名集合
func New[T any](kv storage.KV, name string) *Collection[T] {
	return &Collection[T]{kv: kv, name: name}
}

// Name 集合名
func (c *Collection[T]) Name() string { return c.name }

func (c *Collection[T]) key() string { return keyPrefix + c.name }

// Load 读取全部记录，集合不存在时返回空列表
func (c *Collection[T]) Load(ctx context.Context) ([]T, error) {
	doc, ok, err := c.kv.Get(ctx, c.key())
	if err != nil {
		return nil, err
	}
	if !ok {
		return []T{}, nil
	}
	if !gjson.Valid(doc) {
		return nil, ErrCorrupt
	}
	items := gjson.Get(doc, "items")
	if !items.Exists() || !items.IsArray() {
		return []T{}, nil
	}
	out := make([]T, 0, int(gjson.Get(doc, "items.#").Int()))
	if err := json.Unmarshal([]byte(items.Raw), &out); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorrupt, err)
	}
	return out, nil
}

// Save 覆盖保存全部记录
func (c *Collection[T]) Save(ctx context.Context, items []T) error {
	if items == nil {
		items = []T{}
	}
	raw, err := json.Marshal(items)
	if err != nil {
		return err
	}
	doc, err := sjson.SetRaw("", "items", string(raw))
	if err != nil {
		return err
	}
	doc, _ = sjson.Set(doc, "count", len(items))
	doc, _ = sjson.Set(doc, "savedAt", time.Now().UnixMilli())
	return c.kv.Set(ctx, c.key(), doc)
}

// Count 记录数，不反序列化
func (c *Collection[T]) Count(ctx context.Context) (int, error) {
	doc, ok, err := c.kv.Get(ctx, c.key())
	if err != nil || !ok {
		return 0, err
	}
	return int(gjson.Get(doc, "items.#").Int()), nil
}
