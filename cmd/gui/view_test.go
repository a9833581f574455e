package main

import (
	"testing"

	"coworkshell/pkg/domain"
)

func TestSessionViewListsOverlays(t *testing.T) {
	v := newSessionView(domain.SessionState{
		ID:        "sess",
		Primary:   "p",
		Overlays:  []domain.SurfaceID{"a", "b"},
		Active:    "b",
		CanGoBack: true,
	})
	if v.Session != "sess" || !v.CanGoBack || len(v.Overlays) != 2 {
		t.Fatalf("view = %+v", v)
	}
	if v.Overlays[0].ID != "a" || v.Overlays[0].Active || v.Overlays[0].Label != "弹窗 1" {
		t.Fatalf("first overlay = %+v", v.Overlays[0])
	}
	if !v.Overlays[1].Active || v.Overlays[1].Label != "弹窗 2" {
		t.Fatalf("top overlay = %+v", v.Overlays[1])
	}

	if empty := newSessionView(domain.SessionState{ID: "sess", Primary: "p", Active: "p"}); len(empty.Overlays) != 0 {
		t.Fatalf("overlays without popups = %+v", empty.Overlays)
	}
}
