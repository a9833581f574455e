package cdp

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	cdpconv "coworkshell/internal/adapter/cdp"
	"coworkshell/internal/logger"
	"coworkshell/internal/rules"
	"coworkshell/internal/session"
	"coworkshell/pkg/domain"

	"github.com/mafredri/cdp"
	"github.com/mafredri/cdp/devtool"
	"github.com/mafredri/cdp/protocol/target"
	"github.com/mafredri/cdp/rpcc"
)

// Observer 接收浏览面事件与决策请求
type Observer interface {
	Navigate(ctx context.Context, surface domain.SurfaceID, url string) rules.Verdict
	Dialog(ctx context.Context, d domain.Dialog) domain.DialogResult
	Loaded(ctx context.Context, surface domain.SurfaceID, url string)
	Navigated(ctx context.Context, surface domain.SurfaceID, url string)
	Closed(ctx context.Context, surface domain.SurfaceID)
	Popup(ctx context.Context, req domain.PopupRequest)
}

// Driver 基于 Chrome 页面目标的浏览面驱动
type Driver struct {
	devtoolsURL string
	dt          *devtool.DevTools
	observer    Observer
	timeout     time.Duration
	log         logger.Logger

	ctx       context.Context
	cancel    context.CancelFunc
	conn      *rpcc.Conn
	browser   *cdp.Client
	browserWS string

	mu       sync.Mutex
	surfaces map[domain.SurfaceID]*Surface
	// pending 以 opener 为键记录 window.open 请求的地址
	pending map[domain.SurfaceID][]string
}

// New 创建驱动
func New(devtoolsURL string, l logger.Logger) *Driver {
	if l == nil {
		l = logger.NewNop()
	}
	return &Driver{
		devtoolsURL: devtoolsURL,
		dt:          devtool.New(devtoolsURL),
		timeout:     5 * time.Second,
		log:         l.With("component", "cdp"),
		surfaces:    make(map[domain.SurfaceID]*Surface),
		pending:     make(map[domain.SurfaceID][]string),
	}
}

// SetObserver 设置事件观察者，需在 Start 之前调用
func (d *Driver) SetObserver(o Observer) { d.observer = o }

// Start 连接浏览器级调试端点并开始监听目标事件
func (d *Driver) Start(ctx context.Context) error {
	d.ctx, d.cancel = context.WithCancel(context.Background())

	v, err := d.dt.Version(ctx)
	if err != nil {
		return fmt.Errorf("查询浏览器版本失败: %w", err)
	}
	conn, err := rpcc.DialContext(ctx, v.WebSocketDebuggerURL)
	if err != nil {
		return fmt.Errorf("连接浏览器失败: %w", err)
	}
	d.conn = conn
	d.browser = cdp.NewClient(conn)
	d.browserWS = v.WebSocketDebuggerURL

	created, err := d.browser.Target.TargetCreated(d.ctx)
	if err != nil {
		_ = conn.Close()
		return err
	}
	destroyed, err := d.browser.Target.TargetDestroyed(d.ctx)
	if err != nil {
		_ = created.Close()
		_ = conn.Close()
		return err
	}
	if err := d.browser.Target.SetDiscoverTargets(ctx, target.NewSetDiscoverTargetsArgs(true)); err != nil {
		_ = created.Close()
		_ = destroyed.Close()
		_ = conn.Close()
		return err
	}

	go d.consumeCreated(created)
	go d.consumeDestroyed(destroyed)
	d.log.Info("已连接浏览器", "browser", v.Browser)
	return nil
}

// Stop 关闭所有浏览面并断开连接
func (d *Driver) Stop() error {
	d.mu.Lock()
	list := make([]*Surface, 0, len(d.surfaces))
	for _, s := range d.surfaces {
		list = append(list, s)
	}
	d.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), d.timeout)
	defer cancel()
	for _, s := range list {
		_ = s.Close(ctx)
	}
	if d.cancel != nil {
		d.cancel()
	}
	if d.conn != nil {
		return d.conn.Close()
	}
	return nil
}

// OpenPrimary 新建标签页作为主浏览面
func (d *Driver) OpenPrimary(ctx context.Context, opts domain.SurfaceOptions) (session.Surface, error) {
	t, err := d.dt.Create(ctx)
	if err != nil {
		return nil, fmt.Errorf("创建页面目标失败: %w", err)
	}
	return d.attach(ctx, t, opts)
}

// OpenOverlay 接管浏览器已创建的弹窗目标，或新建一个
func (d *Driver) OpenOverlay(ctx context.Context, req domain.PopupRequest, opts domain.SurfaceOptions) (session.Surface, error) {
	if req.Target == "" {
		return d.OpenPrimary(ctx, opts)
	}
	t := &devtool.Target{
		ID:                   string(req.Target),
		Type:                 devtool.Page,
		URL:                  req.URL,
		WebSocketDebuggerURL: pageWebSocketURL(d.browserWS, string(req.Target)),
	}
	return d.attach(ctx, t, opts)
}

// attach 连接页面目标并完成浏览面初始化
func (d *Driver) attach(ctx context.Context, t *devtool.Target, opts domain.SurfaceOptions) (*Surface, error) {
	conn, err := rpcc.DialContext(ctx, t.WebSocketDebuggerURL)
	if err != nil {
		return nil, fmt.Errorf("连接页面目标失败: %w", err)
	}
	sctx, cancel := context.WithCancel(d.ctx)
	s := &Surface{
		id:     domain.SurfaceID(t.ID),
		target: t,
		conn:   conn,
		client: cdp.NewClient(conn),
		ctx:    sctx,
		cancel: cancel,
		driver: d,
		log:    d.log.With("surface", t.ID),
	}
	if err := s.configure(ctx, opts); err != nil {
		cancel()
		_ = conn.Close()
		return nil, err
	}
	if err := s.subscribe(); err != nil {
		cancel()
		_ = conn.Close()
		return nil, err
	}

	d.mu.Lock()
	d.surfaces[s.id] = s
	d.mu.Unlock()
	d.log.Info("浏览面已就绪", "surface", t.ID)
	return s, nil
}

func (d *Driver) release(id domain.SurfaceID) (*Surface, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	s, ok := d.surfaces[id]
	delete(d.surfaces, id)
	delete(d.pending, id)
	return s, ok
}

func (d *Driver) owns(id domain.SurfaceID) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	_, ok := d.surfaces[id]
	return ok
}

func (d *Driver) rememberWindowOpen(opener domain.SurfaceID, url string) {
	d.mu.Lock()
	d.pending[opener] = append(d.pending[opener], url)
	d.mu.Unlock()
}

func (d *Driver) takeWindowOpen(opener domain.SurfaceID) string {
	d.mu.Lock()
	defer d.mu.Unlock()
	q := d.pending[opener]
	if len(q) == 0 {
		return ""
	}
	d.pending[opener] = q[1:]
	return q[0]
}

// pageWebSocketURL 由浏览器级地址推导页面目标地址
func pageWebSocketURL(browserWS, targetID string) string {
	i := strings.Index(browserWS, "/devtools/")
	if i < 0 {
		return browserWS
	}
	return browserWS[:i] + "/devtools/page/" + targetID
}

// consumeCreated 浏览器为页面 window.open 创建的目标作为弹窗接管
func (d *Driver) consumeCreated(stream target.CreatedClient) {
	defer stream.Close()
	for {
		ev, err := stream.Recv()
		if err != nil {
			if d.ctx.Err() == nil {
				d.log.Err(err, "接收目标创建事件失败")
			}
			return
		}
		info := ev.TargetInfo
		if info.OpenerID == nil || !d.owns(domain.SurfaceID(*info.OpenerID)) {
			continue
		}
		req, ok := cdpconv.ToPopupRequest(info, d.takeWindowOpen(domain.SurfaceID(*info.OpenerID)))
		if !ok {
			continue
		}
		d.log.Info("页面请求新窗口", "opener", string(req.Opener), "url", req.URL)
		if d.observer != nil {
			go d.observer.Popup(d.ctx, req)
		}
	}
}

// consumeDestroyed 页面自行关闭（window.close）时通知会话
func (d *Driver) consumeDestroyed(stream target.DestroyedClient) {
	defer stream.Close()
	for {
		ev, err := stream.Recv()
		if err != nil {
			if d.ctx.Err() == nil {
				d.log.Err(err, "接收目标销毁事件失败")
			}
			return
		}
		id := domain.SurfaceID(ev.TargetID)
		s, ok := d.release(id)
		if !ok {
			continue
		}
		s.mu.Lock()
		s.closing = true
		s.mu.Unlock()
		s.cancel()
		_ = s.conn.Close()
		if d.observer != nil {
			d.observer.Closed(d.ctx, id)
		}
	}
}
