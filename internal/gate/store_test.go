package gate

import (
	"context"
	"testing"

	"coworkshell/internal/storage"
	"coworkshell/pkg/domain"
)

func TestDecisionStoreWriteOnce(t *testing.T) {
	ctx := context.Background()
	s := NewDecisionStore(storage.NewMemoryStore())

	wrote, err := s.Save(ctx, domain.GateDecision{RedirectURL: "https://a.test/", UIMode: domain.UIModeB})
	if err != nil || !wrote {
		t.Fatalf("first Save = %v, %v", wrote, err)
	}
	wrote, err = s.Save(ctx, domain.GateDecision{RedirectURL: "https://b.test/", UIMode: domain.UIModeA})
	if err != nil || wrote {
		t.Fatalf("second Save = %v, %v; want no write", wrote, err)
	}
	d, ok := s.Load(ctx)
	if !ok || d.RedirectURL != "https://a.test/" || d.UIMode != domain.UIModeB {
		t.Fatalf("Load = %+v %v", d, ok)
	}
}

func TestDecisionStoreIgnoresNative(t *testing.T) {
	ctx := context.Background()
	s := NewDecisionStore(storage.NewMemoryStore())
	if wrote, _ := s.Save(ctx, domain.GateDecision{}); wrote {
		t.Fatal("native decision must not be written")
	}
	if _, ok := s.Load(ctx); ok {
		t.Fatal("Load found a decision after native save")
	}
}

func TestDecisionStoreRememberLoaded(t *testing.T) {
	ctx := context.Background()
	s := NewDecisionStore(storage.NewMemoryStore())

	_ = s.RememberLoaded(ctx, "https://first.test/")
	_ = s.RememberLoaded(ctx, "https://second.test/")
	_ = s.RememberLoaded(ctx, "garbage")

	got, ok := s.LastLoaded(ctx)
	if !ok || got != "https://first.test/" {
		t.Fatalf("LastLoaded = %q %v", got, ok)
	}

	if err := s.Reset(ctx); err != nil {
		t.Fatal(err)
	}
	if _, ok := s.LastLoaded(ctx); ok {
		t.Fatal("LastLoaded survived Reset")
	}
}
