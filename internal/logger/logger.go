package logger

import (
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"
	"gopkg.in/natefinch/lumberjack.v2"

	"coworkshell/internal/config"
)

// Logger 键值对风格的日志接口
type Logger interface {
	Debug(msg string, kv ...any)
	Info(msg string, kv ...any)
	Warn(msg string, kv ...any)
	Error(msg string, kv ...any)
	// Err 记录带 error 字段的错误日志
	Err(err error, msg string, kv ...any)
	// With 返回附带固定字段的子日志器
	With(kv ...any) Logger
}

type zeroLogger struct {
	zl zerolog.Logger
}

// New 根据配置创建日志器，writer 支持 console 与 file
func New(cfg config.LogConfig) Logger {
	level, err := zerolog.ParseLevel(cfg.Level)
	if err != nil || cfg.Level == "" {
		level = zerolog.InfoLevel
	}

	var writers []io.Writer
	for _, w := range cfg.Writer {
		switch w {
		case "console":
			writers = append(writers, zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.DateTime})
		case "file":
			if cfg.File == "" {
				continue
			}
			_ = os.MkdirAll(filepath.Dir(cfg.File), 0o755)
			writers = append(writers, &lumberjack.Logger{
				Filename:   cfg.File,
				MaxSize:    10,
				MaxBackups: 3,
				MaxAge:     7,
			})
		}
	}
	if len(writers) == 0 {
		writers = append(writers, os.Stderr)
	}

	zl := zerolog.New(zerolog.MultiLevelWriter(writers...)).Level(level).With().Timestamp().Logger()
	return &zeroLogger{zl: zl}
}

// NewWithWriter 输出到指定 writer，主要用于测试
func NewWithWriter(w io.Writer, level zerolog.Level) Logger {
	return &zeroLogger{zl: zerolog.New(w).Level(level).With().Timestamp().Logger()}
}

// NewNop 创建丢弃所有输出的日志器
func NewNop() Logger {
	return &zeroLogger{zl: zerolog.Nop()}
}

func (l *zeroLogger) Debug(msg string, kv ...any) { l.zl.Debug().Fields(kv).Msg(msg) }
func (l *zeroLogger) Info(msg string, kv ...any)  { l.zl.Info().Fields(kv).Msg(msg) }
func (l *zeroLogger) Warn(msg string, kv ...any)  { l.zl.Warn().Fields(kv).Msg(msg) }
func (l *zeroLogger) Error(msg string, kv ...any) { l.zl.Error().Fields(kv).Msg(msg) }

func (l *zeroLogger) Err(err error, msg string, kv ...any) {
	l.zl.Error().Err(err).Fields(kv).Msg(msg)
}

func (l *zeroLogger) With(kv ...any) Logger {
	return &zeroLogger{zl: l.zl.With().Fields(kv).Logger()}
}
