package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"coworkshell/pkg/domain"
	"coworkshell/pkg/traffic"
)

type fakeSurface struct {
	id      domain.SurfaceID
	mu      sync.Mutex
	history int
	loads   []*traffic.Request
	closed  bool
}

func (f *fakeSurface) ID() domain.SurfaceID { return f.id }

func (f *fakeSurface) Load(_ context.Context, req *traffic.Request) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.loads) > 0 {
		f.history++
	}
	f.loads = append(f.loads, req)
	return nil
}

func (f *fakeSurface) CanGoBack(context.Context) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.history > 0, nil
}

func (f *fakeSurface) GoBack(context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.history == 0 {
		return errors.New("no history")
	}
	f.history--
	return nil
}

func (f *fakeSurface) Close(context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	return nil
}

type fakeDriver struct {
	mu       sync.Mutex
	n        int
	surfaces map[domain.SurfaceID]*fakeSurface
	opts     []domain.SurfaceOptions
}

func newFakeDriver() *fakeDriver {
	return &fakeDriver{surfaces: make(map[domain.SurfaceID]*fakeSurface)}
}

func (d *fakeDriver) open(opts domain.SurfaceOptions, id domain.SurfaceID) *fakeSurface {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.n++
	if id == "" {
		id = domain.SurfaceID(fmt.Sprintf("s%d", d.n))
	}
	f := &fakeSurface{id: id}
	d.surfaces[id] = f
	d.opts = append(d.opts, opts)
	return f
}

func (d *fakeDriver) OpenPrimary(_ context.Context, opts domain.SurfaceOptions) (Surface, error) {
	return d.open(opts, ""), nil
}

func (d *fakeDriver) OpenOverlay(_ context.Context, req domain.PopupRequest, opts domain.SurfaceOptions) (Surface, error) {
	return d.open(opts, req.Target), nil
}

var testOpts = domain.SurfaceOptions{UserAgent: "UA/1", Dark: true, InlineMedia: true}

func newTestSession(t *testing.T) (*BrowserSession, *fakeDriver) {
	t.Helper()
	d := newFakeDriver()
	s := New("sess", d, testOpts, nil)
	if err := s.LoadPrimary(context.Background(), "https://x.test/home"); err != nil {
		t.Fatal(err)
	}
	return s, d
}

func TestBackNavigationStack(t *testing.T) {
	ctx := context.Background()
	s, _ := newTestSession(t)
	primary := s.Active()
	if s.CanGoBack() {
		t.Fatal("fresh primary must not go back")
	}

	a, err := s.OpenPopup(ctx, domain.PopupRequest{Opener: primary.ID(), URL: "https://x.test/a"})
	if err != nil {
		t.Fatal(err)
	}
	b, _ := s.OpenPopup(ctx, domain.PopupRequest{Opener: a.ID(), URL: "https://x.test/b"})
	if s.Active() != b || !s.CanGoBack() {
		t.Fatalf("active = %v, canGoBack = %v", s.Active().ID(), s.CanGoBack())
	}

	if err := s.GoBack(ctx); err != nil {
		t.Fatal(err)
	}
	if got := s.Overlays(); len(got) != 1 || got[0] != a {
		t.Fatalf("overlays after first back = %v", got)
	}
	if !b.(*fakeSurface).closed {
		t.Fatal("popped overlay must be closed")
	}

	_ = s.GoBack(ctx)
	if s.Active() != primary || len(s.Overlays()) != 0 {
		t.Fatalf("active after second back = %v", s.Active().ID())
	}
	if s.CanGoBack() {
		t.Fatal("canGoBack must be false with empty stack and no history")
	}

	// 无历史且栈为空时 no-op
	if err := s.GoBack(ctx); err != nil {
		t.Fatal(err)
	}
	if s.Active() != primary {
		t.Fatal("no-op back changed the active surface")
	}
}

func TestGoBackPrefersInSurfaceHistory(t *testing.T) {
	ctx := context.Background()
	s, _ := newTestSession(t)
	a, _ := s.OpenPopup(ctx, domain.PopupRequest{URL: "https://x.test/a"})
	_ = a.Load(ctx, traffic.NewRequest("https://x.test/a2"))
	s.Refresh(ctx)

	if err := s.GoBack(ctx); err != nil {
		t.Fatal(err)
	}
	if len(s.Overlays()) != 1 {
		t.Fatal("overlay with history must step back, not close")
	}
	_ = s.GoBack(ctx)
	if len(s.Overlays()) != 0 {
		t.Fatal("exhausted overlay must close")
	}
}

func TestPrimaryHistoryDrivesCanGoBack(t *testing.T) {
	ctx := context.Background()
	s, _ := newTestSession(t)
	p := s.Active()
	_ = p.Load(ctx, traffic.NewRequest("https://x.test/next"))
	s.SurfaceLoaded(ctx, p.ID(), "https://x.test/next")
	if !s.CanGoBack() {
		t.Fatal("primary history must enable back")
	}
	_ = s.GoBack(ctx)
	if s.CanGoBack() {
		t.Fatal("canGoBack after returning to first entry")
	}
}

func TestCloseOverlayAnywhere(t *testing.T) {
	ctx := context.Background()
	s, _ := newTestSession(t)
	a, _ := s.OpenPopup(ctx, domain.PopupRequest{URL: "https://x.test/a"})
	b, _ := s.OpenPopup(ctx, domain.PopupRequest{URL: "https://x.test/b"})
	c, _ := s.OpenPopup(ctx, domain.PopupRequest{URL: "https://x.test/c"})

	if err := s.CloseOverlay(ctx, b.ID()); err != nil {
		t.Fatal(err)
	}
	got := s.Overlays()
	if len(got) != 2 || got[0] != a || got[1] != c {
		t.Fatalf("overlays = %v", got)
	}
	if st, _ := s.SurfaceState(b.ID()); st != domain.SurfaceClosed {
		t.Fatalf("closed overlay state = %s", st)
	}
	if err := s.CloseOverlay(ctx, b.ID()); !errors.Is(err, ErrUnknownSurface) {
		t.Fatalf("second close err = %v", err)
	}
	if err := s.CloseOverlay(ctx, s.State().Primary); !errors.Is(err, ErrUnknownSurface) {
		t.Fatalf("closing primary err = %v", err)
	}
}

func TestBackOverlay(t *testing.T) {
	ctx := context.Background()
	s, _ := newTestSession(t)
	a, _ := s.OpenPopup(ctx, domain.PopupRequest{URL: "https://x.test/a"})
	b, _ := s.OpenPopup(ctx, domain.PopupRequest{URL: "https://x.test/b"})
	_ = a.Load(ctx, traffic.NewRequest("https://x.test/a2"))

	_ = s.BackOverlay(ctx, a.ID())
	if len(s.Overlays()) != 2 {
		t.Fatal("overlay with history must stay open")
	}
	_ = s.BackOverlay(ctx, a.ID())
	if got := s.Overlays(); len(got) != 1 || got[0] != b {
		t.Fatalf("overlays = %v", got)
	}
}

func TestLoadPrimaryClearsStackAndSetsUserAgent(t *testing.T) {
	ctx := context.Background()
	s, d := newTestSession(t)
	a, _ := s.OpenPopup(ctx, domain.PopupRequest{URL: "https://x.test/a"})

	if err := s.LoadPrimary(ctx, "https://x.test/home"); err != nil {
		t.Fatal(err)
	}
	if len(s.Overlays()) != 0 || !a.(*fakeSurface).closed {
		t.Fatal("LoadPrimary must clear the overlay stack")
	}

	p := s.Active().(*fakeSurface)
	last := p.loads[len(p.loads)-1]
	if last.URL != "https://x.test/home" || last.Headers.Get(traffic.HeaderUserAgent) != "UA/1" {
		t.Fatalf("primary load = %+v", last)
	}
	for i, o := range d.opts {
		if o != testOpts {
			t.Fatalf("surface %d opened with %+v", i, o)
		}
	}
}

func TestAdoptedPopupIsNotReloaded(t *testing.T) {
	ctx := context.Background()
	s, _ := newTestSession(t)
	o, err := s.OpenPopup(ctx, domain.PopupRequest{Target: "T1", URL: "https://x.test/popup"})
	if err != nil {
		t.Fatal(err)
	}
	if o.ID() != "T1" || len(o.(*fakeSurface).loads) != 0 {
		t.Fatalf("adopted popup = %v loads %d", o.ID(), len(o.(*fakeSurface).loads))
	}
}

func TestFirstLoadLatch(t *testing.T) {
	ctx := context.Background()
	d := newFakeDriver()
	s := New("sess", d, testOpts, nil)
	var got []string
	s.OnFirstLoad(func(url string) { got = append(got, url) })

	_ = s.LoadPrimary(ctx, "https://x.test/a")
	p := s.Active()
	s.SurfaceLoaded(ctx, p.ID(), "https://x.test/a-final")
	s.SurfaceLoaded(ctx, p.ID(), "https://x.test/b")
	_ = s.LoadPrimary(ctx, "https://x.test/c")
	s.SurfaceLoaded(ctx, p.ID(), "https://x.test/c")

	o, _ := s.OpenPopup(ctx, domain.PopupRequest{URL: "https://x.test/o"})
	s.SurfaceLoaded(ctx, o.ID(), "https://x.test/o")

	if len(got) != 1 || got[0] != "https://x.test/a-final" {
		t.Fatalf("first load callbacks = %v", got)
	}
}

func TestSurfaceLifecycleStates(t *testing.T) {
	ctx := context.Background()
	s, _ := newTestSession(t)
	p := s.Active().ID()

	if st, _ := s.SurfaceState(p); st != domain.SurfaceLoading {
		t.Fatalf("state = %s, want loading", st)
	}
	s.SurfaceLoaded(ctx, p, "https://x.test/home")
	s.SurfaceNavigated(ctx, p, "https://x.test/next")
	if st, _ := s.SurfaceState(p); st != domain.SurfaceNavigating {
		t.Fatalf("state = %s, want navigating", st)
	}
	s.SurfaceLoaded(ctx, p, "https://x.test/next")
	if st, _ := s.SurfaceState(p); st != domain.SurfaceLoaded {
		t.Fatalf("state = %s, want loaded", st)
	}
}

func TestSurfaceClosedByPage(t *testing.T) {
	ctx := context.Background()
	s, _ := newTestSession(t)
	a, _ := s.OpenPopup(ctx, domain.PopupRequest{URL: "https://x.test/a"})

	var last domain.SessionState
	s.OnChange(func(st domain.SessionState) { last = st })
	s.SurfaceClosed(ctx, a.ID())

	if len(s.Overlays()) != 0 || s.CanGoBack() {
		t.Fatal("window.close must remove the overlay")
	}
	if len(last.Overlays) != 0 || last.Active != last.Primary {
		t.Fatalf("observer saw %+v", last)
	}
	// 未知浏览面的事件被忽略
	s.SurfaceClosed(ctx, "nope")
	s.SurfaceLoaded(ctx, "nope", "https://x.test")
}

func TestHomeReopensClosedPrimary(t *testing.T) {
	ctx := context.Background()
	s, d := newTestSession(t)
	first := s.State().Primary

	s.SurfaceClosed(ctx, first)
	if st, _ := s.SurfaceState(first); st != domain.SurfaceClosed {
		t.Fatalf("closed primary state = %v", st)
	}
	if st := s.State(); st.Primary != "" || st.Active != "" {
		t.Fatalf("state after primary closed = %+v", st)
	}
	if err := s.GoBack(ctx); !errors.Is(err, ErrNoPrimary) {
		t.Fatalf("GoBack err = %v, want ErrNoPrimary", err)
	}

	if err := s.LoadPrimary(ctx, "https://x.test/home"); err != nil {
		t.Fatal(err)
	}
	second := s.State().Primary
	if second == "" || second == first {
		t.Fatalf("primary not reopened: %q -> %q", first, second)
	}
	if n := len(d.surfaces[first].loads); n != 1 {
		t.Fatalf("closed surface loaded %d times, want 1", n)
	}
	if n := len(d.surfaces[second].loads); n != 1 {
		t.Fatalf("reopened surface loaded %d times, want 1", n)
	}
}

func TestPopupRequestedPushesOverlay(t *testing.T) {
	ctx := context.Background()
	s, _ := newTestSession(t)
	s.PopupRequested(ctx, domain.PopupRequest{Opener: s.State().Primary, URL: "https://x.test/p"})
	if st := s.State(); len(st.Overlays) != 1 || st.Active != st.Overlays[0] || !st.CanGoBack {
		t.Fatalf("state = %+v", st)
	}
}

func TestGoBackWithoutPrimary(t *testing.T) {
	s := New("sess", newFakeDriver(), testOpts, nil)
	if err := s.GoBack(context.Background()); !errors.Is(err, ErrNoPrimary) {
		t.Fatalf("err = %v, want ErrNoPrimary", err)
	}
}

func TestCloseClosesEverything(t *testing.T) {
	ctx := context.Background()
	s, _ := newTestSession(t)
	a, _ := s.OpenPopup(ctx, domain.PopupRequest{URL: "https://x.test/a"})
	p := s.State().Primary
	_ = s.Close(ctx)
	if !a.(*fakeSurface).closed {
		t.Fatal("overlay left open")
	}
	if st, _ := s.SurfaceState(p); st != domain.SurfaceClosed {
		t.Fatalf("primary state = %s", st)
	}
}
