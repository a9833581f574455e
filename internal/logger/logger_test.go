package logger

import (
	"bytes"
	"errors"
	"path/filepath"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/tidwall/gjson"

	"coworkshell/internal/config"
)

func TestWithAndErrFields(t *testing.T) {
	var buf bytes.Buffer
	l := NewWithWriter(&buf, zerolog.DebugLevel).With("session", "s1")
	l.Err(errors.New("boom"), "加载失败", "surface", "p1")

	line := strings.TrimSpace(buf.String())
	if got := gjson.Get(line, "session").String(); got != "s1" {
		t.Fatalf("session = %q in %s", got, line)
	}
	if got := gjson.Get(line, "surface").String(); got != "p1" {
		t.Fatalf("surface = %q", got)
	}
	if got := gjson.Get(line, "error").String(); got != "boom" {
		t.Fatalf("error = %q", got)
	}
}

func TestLevelFilter(t *testing.T) {
	var buf bytes.Buffer
	l := NewWithWriter(&buf, zerolog.WarnLevel)
	l.Info("忽略")
	l.Warn("保留")
	if strings.Contains(buf.String(), "忽略") || !strings.Contains(buf.String(), "保留") {
		t.Fatalf("output = %s", buf.String())
	}
}

func TestNewFileWriter(t *testing.T) {
	file := filepath.Join(t.TempDir(), "logs", "shell.log")
	l := New(config.LogConfig{Level: "debug", Writer: []string{"file"}, File: file})
	l.Debug("写入文件")
	NewNop().Error("丢弃")
}
