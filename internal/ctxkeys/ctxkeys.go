package ctxkeys

import (
	"context"

	"github.com/google/uuid"
)

// TraceIDKey 上下文中追踪 ID 的键
type TraceIDKey struct{}

// WithTraceID 为上下文附加新的追踪 ID
func WithTraceID(ctx context.Context) context.Context {
	return context.WithValue(ctx, TraceIDKey{}, uuid.NewString())
}

// TraceID 读取上下文中的追踪 ID，不存在时返回空串
func TraceID(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	v, _ := ctx.Value(TraceIDKey{}).(string)
	return v
}
