package cli

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"coworkshell/internal/config"
	"coworkshell/internal/gate"
	"coworkshell/internal/storage"
	"coworkshell/pkg/domain"
)

func writeConfig(t *testing.T) (string, string) {
	t.Helper()
	dir := t.TempDir()
	dsn := filepath.Join(dir, "shell.sqlite3")
	path := filepath.Join(dir, "coworkshell.yaml")
	body := "sqlite:\n  dsn: " + dsn + "\nlog:\n  level: error\n  writer: [console]\n"
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
	return path, dsn
}

func execute(t *testing.T, args ...string) string {
	t.Helper()
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs(args)
	if err := rootCmd.Execute(); err != nil {
		t.Fatalf("%v: %v\n%s", args, err, out.String())
	}
	return out.String()
}

func TestVersion(t *testing.T) {
	if out := execute(t, "version"); !strings.Contains(out, `"name": "coworkshell"`) {
		t.Fatalf("version output = %s", out)
	}
}

func TestDecisionShowAndReset(t *testing.T) {
	path, dsn := writeConfig(t)

	cfg := config.NewConfig()
	cfg.Sqlite.Dsn = dsn
	st, err := storage.Open(cfg.Sqlite, nil)
	if err != nil {
		t.Fatal(err)
	}
	_, _ = gate.NewDecisionStore(st).Save(context.Background(), domain.GateDecision{RedirectURL: "https://x.test/app", UIMode: domain.UIModeB})
	_ = st.Close()

	out := execute(t, "--config", path, "decision", "show")
	if !strings.Contains(out, `"redirect": "https://x.test/app"`) || !strings.Contains(out, `"uiMode": "mode_b"`) {
		t.Fatalf("show output = %s", out)
	}

	if out := execute(t, "--config", path, "decision", "reset"); !strings.Contains(out, "decision cleared") {
		t.Fatalf("reset output = %s", out)
	}
	if out := execute(t, "--config", path, "decision", "show"); !strings.Contains(out, `"stored": false`) {
		t.Fatalf("show after reset = %s", out)
	}
}

func TestConsolePresenter(t *testing.T) {
	var out bytes.Buffer
	p := newConsolePresenter(strings.NewReader("y\n\nhello\n"), &out)
	ctx := context.Background()

	if res, _ := p.Present(ctx, domain.Dialog{Type: domain.DialogAlert, Message: "hi"}); !res.Accepted {
		t.Fatal("alert must be acknowledged")
	}
	if res, _ := p.Present(ctx, domain.Dialog{Type: domain.DialogConfirm, Message: "ok?"}); !res.Accepted {
		t.Fatal("confirm y must accept")
	}
	res, _ := p.Present(ctx, domain.Dialog{Type: domain.DialogPrompt, Message: "name", DefaultText: "anon"})
	if !res.Accepted || res.Text == nil || *res.Text != "anon" {
		t.Fatalf("empty prompt answer = %+v", res)
	}
	res, _ = p.Present(ctx, domain.Dialog{Type: domain.DialogPrompt, Message: "name"})
	if res.Text == nil || *res.Text != "hello" {
		t.Fatalf("prompt answer = %+v", res)
	}
	if _, err := p.Present(ctx, domain.Dialog{Type: domain.DialogConfirm}); err == nil {
		t.Fatal("expected error on exhausted input")
	}
	if !strings.Contains(out.String(), "[alert] hi") {
		t.Fatalf("output = %q", out.String())
	}
}
