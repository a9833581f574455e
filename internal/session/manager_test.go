package session

import (
	"context"
	"testing"

	"coworkshell/pkg/domain"
)

func TestManagerLifecycle(t *testing.T) {
	ctx := context.Background()
	m := NewManager(newFakeDriver(), testOpts, nil)

	s := m.Create()
	if s.ID() == "" {
		t.Fatal("session id is empty")
	}
	if got, ok := m.Get(s.ID()); !ok || got != s {
		t.Fatal("Get did not return the created session")
	}
	_ = s.LoadPrimary(ctx, "https://x.test")
	o, _ := s.OpenPopup(ctx, domain.PopupRequest{URL: "https://x.test/o"})
	if got, ok := m.Find(o.ID()); !ok || got != s {
		t.Fatal("Find did not locate overlay owner")
	}

	other := m.Create()
	if len(m.List()) != 2 || other.ID() == s.ID() {
		t.Fatal("expected two distinct sessions")
	}

	m.Delete(ctx, s.ID())
	if _, ok := m.Get(s.ID()); ok {
		t.Fatal("session still registered after Delete")
	}
	if !o.(*fakeSurface).closed {
		t.Fatal("Delete must close the session surfaces")
	}
	m.Delete(ctx, "missing")
}
