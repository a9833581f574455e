package main

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/bep/debounce"
	"github.com/google/uuid"
	"github.com/samber/lo"
	"github.com/wailsapp/wails/v2/pkg/runtime"

	"coworkshell/internal/config"
	"coworkshell/internal/logger"
	"coworkshell/internal/records"
	"coworkshell/internal/session"
	api "coworkshell/pkg/api"
	"coworkshell/pkg/domain"
)

const (
	eventLaunchState = "launch:state"
	eventBar         = "bar:state"
	eventSession     = "session:state"
	eventNavigation  = "navigation"
	eventPrompt      = "dialog:prompt"
)

var errNoSession = errors.New("当前没有浏览会话")

// App 是 GUI 应用的核心状态与业务逻辑封装
type App struct {
	ctx context.Context
	cfg *config.Config
	svc api.Service
	log logger.Logger

	mu      sync.RWMutex
	session domain.SessionID
	outcome domain.LaunchOutcome
	records *records.Collection[Record]
	prompts *promptBroker

	emitSession func(func())
}

// Record 原生界面的一条记录
type Record struct {
	ID        string `json:"id"`
	Title     string `json:"title"`
	Note      string `json:"note"`
	Done      bool   `json:"done"`
	CreatedAt int64  `json:"createdAt"`
}

// LaunchView 启动结果视图
type LaunchView struct {
	State     string `json:"state"`
	Label     string `json:"label"`
	URL       string `json:"url"`
	Mode      string `json:"mode"`
	ModeLabel string `json:"modeLabel"`
	Session   string `json:"session"`
}

// NewApp 创建应用
func NewApp(cfg *config.Config, l logger.Logger) *App {
	a := &App{
		cfg:         cfg,
		log:         l,
		emitSession: debounce.New(100 * time.Millisecond),
	}
	a.prompts = newPromptBroker(func(r promptRequest) {
		runtime.EventsEmit(a.ctx, eventPrompt, r)
	})
	return a
}

// startup wails 启动回调
func (a *App) startup(ctx context.Context) {
	a.ctx = ctx
	svc, err := api.NewService(a.cfg, api.Options{
		Launcher:  wailsLauncher{app: a},
		Presenter: wailsPresenter{app: a},
	}, a.log)
	if err != nil {
		a.log.Err(err, "创建服务失败")
		return
	}
	a.svc = svc
	a.records = records.New[Record](svc.Store(), "notes")
	svc.OnLaunchState(func(s domain.LaunchState) {
		runtime.EventsEmit(ctx, eventLaunchState, string(s), labelOf(stateLabels, s, string(s)))
	})
	go a.forwardEvents(ctx)
}

// shutdown wails 退出回调
func (a *App) shutdown(ctx context.Context) {
	if a.svc == nil {
		return
	}
	if err := a.svc.Close(ctx); err != nil {
		a.log.Err(err, "关闭服务失败")
	}
}

// Launch 执行启动门控；跳转时打开浏览会话
func (a *App) Launch() (LaunchView, error) {
	if a.svc == nil {
		return LaunchView{}, errors.New("服务未就绪")
	}
	out := a.svc.Launch(a.ctx)
	view := LaunchView{
		State:     string(out.State),
		Label:     labelOf(stateLabels, out.State, string(out.State)),
		URL:       out.Decision.RedirectURL,
		Mode:      out.Decision.UIMode.String(),
		ModeLabel: labelOf(modeLabels, out.Decision.UIMode, ""),
	}
	a.mu.Lock()
	a.outcome = out
	a.mu.Unlock()
	if out.State != domain.StateRedirectUI {
		return view, nil
	}

	id, err := a.svc.OpenSession(a.ctx)
	if err != nil {
		a.log.Err(err, "打开浏览会话失败")
		return view, err
	}
	a.mu.Lock()
	a.session = id
	a.mu.Unlock()
	view.Session = string(id)

	_ = a.svc.OnSessionChange(id, func(domain.SessionState) { a.pushSession() })
	a.pushSession()
	return view, nil
}

// pushSession 合并短时间内的多次变化后推送导航条与弹窗列表
func (a *App) pushSession() {
	a.emitSession(func() {
		if bar, err := a.Bar(); err == nil {
			runtime.EventsEmit(a.ctx, eventBar, bar)
		}
		if st, err := a.State(); err == nil {
			runtime.EventsEmit(a.ctx, eventSession, st)
		}
	})
}

func (a *App) current() (domain.SessionID, error) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	if a.session == "" || a.svc == nil {
		return "", errNoSession
	}
	return a.session, nil
}

// Back 返回
func (a *App) Back() error {
	id, err := a.current()
	if err != nil {
		return err
	}
	return a.svc.GoBack(a.ctx, id)
}

// Home 回到跳转地址
func (a *App) Home() error {
	id, err := a.current()
	if err != nil {
		return err
	}
	return a.svc.Home(a.ctx, id)
}

// BackOverlay 弹窗右滑：后退或关闭
func (a *App) BackOverlay(surface string) error {
	id, err := a.current()
	if err != nil {
		return err
	}
	return a.svc.BackOverlay(a.ctx, id, domain.SurfaceID(surface))
}

// CloseOverlay 双击关闭弹窗
func (a *App) CloseOverlay(surface string) error {
	id, err := a.current()
	if err != nil {
		return err
	}
	return a.svc.CloseOverlay(a.ctx, id, domain.SurfaceID(surface))
}

// Bar 导航条状态
func (a *App) Bar() (session.BarState, error) {
	id, err := a.current()
	if err != nil {
		return session.BarState{}, err
	}
	return a.svc.Bar(id)
}

// State 会话快照，包含可逐个后退或关闭的弹窗
func (a *App) State() (SessionView, error) {
	id, err := a.current()
	if err != nil {
		return SessionView{}, err
	}
	st, err := a.svc.SessionState(id)
	if err != nil {
		return SessionView{}, err
	}
	return newSessionView(st), nil
}

// AnswerPrompt 前端输入框的回答
func (a *App) AnswerPrompt(id string, accepted bool, text string) error {
	return a.prompts.Answer(id, accepted, text)
}

// ListRecords 原生界面记录列表
func (a *App) ListRecords() ([]Record, error) {
	if a.records == nil {
		return nil, errors.New("服务未就绪")
	}
	return a.records.Load(a.ctx)
}

// AddRecord 新增记录
func (a *App) AddRecord(title, note string) (Record, error) {
	list, err := a.ListRecords()
	if err != nil {
		return Record{}, err
	}
	r := Record{ID: uuid.NewString(), Title: title, Note: note, CreatedAt: time.Now().UnixMilli()}
	if err := a.records.Save(a.ctx, append(list, r)); err != nil {
		return Record{}, err
	}
	return r, nil
}

// ToggleRecord 切换完成状态
func (a *App) ToggleRecord(id string) error {
	list, err := a.ListRecords()
	if err != nil {
		return err
	}
	list = lo.Map(list, func(r Record, _ int) Record {
		if r.ID == id {
			r.Done = !r.Done
		}
		return r
	})
	return a.records.Save(a.ctx, list)
}

// DeleteRecord 删除记录
func (a *App) DeleteRecord(id string) error {
	list, err := a.ListRecords()
	if err != nil {
		return err
	}
	return a.records.Save(a.ctx, lo.Reject(list, func(r Record, _ int) bool { return r.ID == id }))
}

// forwardEvents 把导航决策事件转发给前端
func (a *App) forwardEvents(ctx context.Context) {
	events := a.svc.SubscribeEvents()
	for {
		select {
		case <-ctx.Done():
			return
		case evt := <-events:
			runtime.EventsEmit(ctx, eventNavigation, evt, labelOf(verdictLabels, evt.Verdict, evt.Verdict))
			a.pushSession()
		}
	}
}

// wailsLauncher 通过系统默认程序打开 tel/mailto/sms
type wailsLauncher struct{ app *App }

func (l wailsLauncher) Launch(_ context.Context, url string) error {
	runtime.BrowserOpenURL(l.app.ctx, url)
	return nil
}

// wailsPresenter alert/confirm 用原生消息框，prompt 交给前端输入框
type wailsPresenter struct{ app *App }

func (p wailsPresenter) Present(ctx context.Context, d domain.Dialog) (domain.DialogResult, error) {
	if d.Type == domain.DialogPrompt {
		return p.app.prompts.Ask(ctx, d)
	}
	opts := runtime.MessageDialogOptions{
		Title:   "提示",
		Message: d.Message,
	}
	switch d.Type {
	case domain.DialogAlert:
		opts.Type = runtime.InfoDialog
		opts.Buttons = []string{dialogOK}
		opts.DefaultButton = dialogOK
	default:
		opts.Type = runtime.QuestionDialog
		opts.Buttons = []string{dialogOK, dialogCancel}
		opts.DefaultButton = dialogOK
		opts.CancelButton = dialogCancel
	}

	answer, err := runtime.MessageDialog(p.app.ctx, opts)
	if err != nil {
		return domain.DialogResult{}, err
	}
	return domain.DialogResult{Accepted: d.Type == domain.DialogAlert || acceptAnswers[answer]}, nil
}
