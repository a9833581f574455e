package cdp

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestPageWebSocketURL(t *testing.T) {
	got := pageWebSocketURL("ws://127.0.0.1:9222/devtools/browser/abc-123", "T1")
	if got != "ws://127.0.0.1:9222/devtools/page/T1" {
		t.Fatalf("pageWebSocketURL = %q", got)
	}
}

func TestWindowOpenQueue(t *testing.T) {
	d := New("http://127.0.0.1:0", nil)
	d.rememberWindowOpen("A", "https://x.test/1")
	d.rememberWindowOpen("A", "https://x.test/2")

	if got := d.takeWindowOpen("A"); got != "https://x.test/1" {
		t.Fatalf("first = %q", got)
	}
	if got := d.takeWindowOpen("A"); got != "https://x.test/2" {
		t.Fatalf("second = %q", got)
	}
	if got := d.takeWindowOpen("A"); got != "" {
		t.Fatalf("drained = %q", got)
	}
	if got := d.takeWindowOpen("B"); got != "" {
		t.Fatalf("unknown opener = %q", got)
	}
}

func TestStartFailsWithoutBrowser(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	defer srv.Close()

	d := New(srv.URL, nil)
	if err := d.Start(context.Background()); err == nil {
		t.Fatal("expected error when devtools endpoint is missing")
	}
	if err := d.Stop(); err != nil {
		t.Fatalf("Stop after failed Start: %v", err)
	}
}
