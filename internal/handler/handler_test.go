package handler

import (
	"context"
	"errors"
	"sync"
	"testing"

	"coworkshell/internal/config"
	"coworkshell/internal/rules"
	"coworkshell/pkg/domain"
)

type recordingLauncher struct {
	mu   sync.Mutex
	urls []string
	err  error
}

func (l *recordingLauncher) Launch(_ context.Context, url string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.urls = append(l.urls, url)
	return l.err
}

type stubPresenter struct {
	res domain.DialogResult
	err error
}

func (p stubPresenter) Present(context.Context, domain.Dialog) (domain.DialogResult, error) {
	return p.res, p.err
}

func newTestHandler(l Launcher, p DialogPresenter, events chan domain.NavigationEvent) *Handler {
	return New(Config{
		Engine:    rules.New(config.NewConfig().Browser),
		Launcher:  l,
		Presenter: p,
		Events:    events,
	})
}

func TestHandleNavigationSchemes(t *testing.T) {
	launcher := &recordingLauncher{}
	events := make(chan domain.NavigationEvent, 8)
	h := newTestHandler(launcher, nil, events)
	ctx := context.Background()

	if v := h.HandleNavigation(ctx, "s1", "p1", "tel:555"); v != rules.Launch {
		t.Fatalf("tel verdict = %v", v)
	}
	if v := h.HandleNavigation(ctx, "s1", "p1", "ftp://x"); v != rules.Cancel {
		t.Fatalf("ftp verdict = %v", v)
	}
	if v := h.HandleNavigation(ctx, "s1", "p1", "https://x"); v != rules.Allow {
		t.Fatalf("https verdict = %v", v)
	}

	if len(launcher.urls) != 1 || launcher.urls[0] != "tel:555" {
		t.Fatalf("launched %v, want exactly [tel:555]", launcher.urls)
	}

	want := []string{"launch", "cancel", "allow"}
	for i, w := range want {
		evt := <-events
		if evt.Verdict != w || evt.Session != "s1" || evt.Surface != "p1" {
			t.Fatalf("event %d = %+v, want verdict %s", i, evt, w)
		}
	}
}

func TestHandleNavigationLauncherErrorStillCancels(t *testing.T) {
	h := newTestHandler(&recordingLauncher{err: errors.New("no handler")}, nil, nil)
	if v := h.HandleNavigation(context.Background(), "", "", "mailto:a@b.test"); v != rules.Launch {
		t.Fatalf("verdict = %v, want launch", v)
	}
}

func TestHandleNavigationDoesNotBlockOnFullChannel(t *testing.T) {
	events := make(chan domain.NavigationEvent)
	h := newTestHandler(nil, nil, events)
	for i := 0; i < 3; i++ {
		h.HandleNavigation(context.Background(), "", "", "https://x")
	}
}

func TestHandleDialog(t *testing.T) {
	text := "typed"
	tests := []struct {
		name      string
		dialog    domain.DialogType
		presenter DialogPresenter
		accepted  bool
		text      *string
	}{
		{"alert without presenter", domain.DialogAlert, nil, true, nil},
		{"confirm without presenter", domain.DialogConfirm, nil, false, nil},
		{"prompt without presenter", domain.DialogPrompt, nil, false, nil},
		{"alert presenter error", domain.DialogAlert, stubPresenter{err: errors.New("x")}, true, nil},
		{"confirm presenter error", domain.DialogConfirm, stubPresenter{err: errors.New("x")}, false, nil},
		{"confirm ok", domain.DialogConfirm, stubPresenter{res: domain.DialogResult{Accepted: true, Text: &text}}, true, nil},
		{"prompt ok", domain.DialogPrompt, stubPresenter{res: domain.DialogResult{Accepted: true, Text: &text}}, true, &text},
		{"prompt cancelled", domain.DialogPrompt, stubPresenter{res: domain.DialogResult{Text: &text}}, false, nil},
		{"alert always acked", domain.DialogAlert, stubPresenter{}, true, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newTestHandler(nil, tt.presenter, nil)
			res := h.HandleDialog(context.Background(), domain.Dialog{Type: tt.dialog, Message: "m"})
			if res.Accepted != tt.accepted {
				t.Fatalf("accepted = %v, want %v", res.Accepted, tt.accepted)
			}
			if (res.Text == nil) != (tt.text == nil) || (res.Text != nil && *res.Text != *tt.text) {
				t.Fatalf("text = %v, want %v", res.Text, tt.text)
			}
		})
	}
}
