package storage

import (
	"context"
	"errors"
	"time"

	"coworkshell/internal/ctxkeys"
	logger2 "coworkshell/internal/logger"

	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// GormLogger 将 GORM 日志桥接到项目日志器
type GormLogger struct {
	logger2.Logger
	LogLevel      logger.LogLevel
	SlowThreshold time.Duration
}

// NewGormLogger 创建新的GormLogger实例，默认只记录警告与错误
func NewGormLogger(l logger2.Logger) *GormLogger {
	if l == nil {
		l = logger2.NewNop()
	}
	return &GormLogger{
		Logger:        l,
		LogLevel:      logger.Warn,
		SlowThreshold: 200 * time.Millisecond,
	}
}

// LogMode 设置日志级别
func (l *GormLogger) LogMode(level logger.LogLevel) logger.Interface {
	newLogger := *l
	newLogger.LogLevel = level
	return &newLogger
}

func (l *GormLogger) Info(ctx context.Context, msg string, data ...any) {
	if l.LogLevel >= logger.Info {
		l.Logger.Info(msg, "traceId", ctxkeys.TraceID(ctx), "data", data)
	}
}

func (l *GormLogger) Warn(ctx context.Context, msg string, data ...any) {
	if l.LogLevel >= logger.Warn {
		l.Logger.Warn(msg, "traceId", ctxkeys.TraceID(ctx), "data", data)
	}
}

func (l *GormLogger) Error(ctx context.Context, msg string, data ...any) {
	if l.LogLevel >= logger.Error {
		l.Logger.Error(msg, "traceId", ctxkeys.TraceID(ctx), "data", data)
	}
}

// Trace 打印SQL日志；记录不存在属于 KV 的正常读取结果，不按错误记录
func (l *GormLogger) Trace(ctx context.Context, begin time.Time, fc func() (string, int64), err error) {
	if l.LogLevel <= logger.Silent {
		return
	}

	elapsed := time.Since(begin)
	sql, rows := fc()
	fields := []any{
		"traceId", ctxkeys.TraceID(ctx),
		"sql", sql,
		"rows", rows,
		"timeMs", float64(elapsed.Nanoseconds()) / 1e6,
	}

	switch {
	case err != nil && !errors.Is(err, gorm.ErrRecordNotFound) && l.LogLevel >= logger.Error:
		l.Logger.Err(err, "SQL执行错误", fields...)
	case elapsed > l.SlowThreshold && l.SlowThreshold > 0 && l.LogLevel >= logger.Warn:
		l.Logger.Warn("慢SQL查询", append(fields, "threshold", l.SlowThreshold.String())...)
	case l.LogLevel == logger.Info:
		l.Logger.Debug("SQL执行", fields...)
	}
}
