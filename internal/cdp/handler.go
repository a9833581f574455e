package cdp

import (
	"context"
	"errors"
	"fmt"
	"sync"

	cdpconv "coworkshell/internal/adapter/cdp"
	"coworkshell/internal/logger"
	"coworkshell/internal/rules"
	"coworkshell/pkg/domain"
	"coworkshell/pkg/traffic"

	"github.com/mafredri/cdp"
	"github.com/mafredri/cdp/devtool"
	"github.com/mafredri/cdp/protocol/emulation"
	"github.com/mafredri/cdp/protocol/page"
	"github.com/mafredri/cdp/rpcc"
)

// Surface 一个 Chrome 页面目标
type Surface struct {
	id     domain.SurfaceID
	target *devtool.Target
	conn   *rpcc.Conn
	client *cdp.Client
	ctx    context.Context
	cancel context.CancelFunc
	driver *Driver
	log    logger.Logger

	mu      sync.Mutex
	url     string
	closing bool
}

// ID 目标 ID
func (s *Surface) ID() domain.SurfaceID { return s.id }

// configure 启用 Page 域并应用 UA 与深色外观
func (s *Surface) configure(ctx context.Context, opts domain.SurfaceOptions) error {
	if err := s.client.Page.Enable(ctx); err != nil {
		return fmt.Errorf("启用 Page 域失败: %w", err)
	}
	if opts.UserAgent != "" {
		if err := s.client.Emulation.SetUserAgentOverride(ctx, emulation.NewSetUserAgentOverrideArgs(opts.UserAgent)); err != nil {
			return fmt.Errorf("设置 UA 失败: %w", err)
		}
	}
	if opts.Dark {
		args := emulation.NewSetEmulatedMediaArgs().SetFeatures([]emulation.MediaFeature{
			{Name: "prefers-color-scheme", Value: "dark"},
		})
		if err := s.client.Emulation.SetEmulatedMedia(ctx, args); err != nil {
			s.log.Warn("设置深色外观失败", "error", err.Error())
		}
	}
	return nil
}

// Load 在浏览面加载请求
func (s *Surface) Load(ctx context.Context, req *traffic.Request) error {
	if ua := req.Headers.Get(traffic.HeaderUserAgent); ua != "" {
		if err := s.client.Emulation.SetUserAgentOverride(ctx, emulation.NewSetUserAgentOverrideArgs(ua)); err != nil {
			return err
		}
	}
	reply, err := s.client.Page.Navigate(ctx, page.NewNavigateArgs(req.URL))
	if err != nil {
		return err
	}
	if reply.ErrorText != nil {
		return errors.New(*reply.ErrorText)
	}
	return nil
}

// CanGoBack 页面内是否有可后退的历史
func (s *Surface) CanGoBack(ctx context.Context) (bool, error) {
	h, err := s.client.Page.GetNavigationHistory(ctx)
	if err != nil {
		return false, err
	}
	return cdpconv.HasHistory(h), nil
}

// GoBack 后退一条历史
func (s *Surface) GoBack(ctx context.Context) error {
	h, err := s.client.Page.GetNavigationHistory(ctx)
	if err != nil {
		return err
	}
	id, ok := cdpconv.PreviousEntry(h)
	if !ok {
		return nil
	}
	return s.client.Page.NavigateToHistoryEntry(ctx, page.NewNavigateToHistoryEntryArgs(id))
}

// Close 关闭目标并断开连接
func (s *Surface) Close(ctx context.Context) error {
	s.mu.Lock()
	if s.closing {
		s.mu.Unlock()
		return nil
	}
	s.closing = true
	s.mu.Unlock()

	s.driver.release(s.id)
	s.cancel()
	_ = s.conn.Close()
	if err := s.driver.dt.Close(ctx, s.target); err != nil {
		s.log.Debug("关闭页面目标失败", "error", err.Error())
		return err
	}
	return nil
}

func (s *Surface) isClosing() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closing
}

// subscribe 订阅页面事件流并启动消费
func (s *Surface) subscribe() error {
	requested, err := s.client.Page.FrameRequestedNavigation(s.ctx)
	if err != nil {
		return err
	}
	navigated, err := s.client.Page.FrameNavigated(s.ctx)
	if err != nil {
		_ = requested.Close()
		return err
	}
	loaded, err := s.client.Page.LoadEventFired(s.ctx)
	if err != nil {
		_ = requested.Close()
		_ = navigated.Close()
		return err
	}
	opened, err := s.client.Page.WindowOpen(s.ctx)
	if err != nil {
		_ = requested.Close()
		_ = navigated.Close()
		_ = loaded.Close()
		return err
	}
	dialogs, err := s.client.Page.JavascriptDialogOpening(s.ctx)
	if err != nil {
		_ = requested.Close()
		_ = navigated.Close()
		_ = loaded.Close()
		_ = opened.Close()
		return err
	}

	go s.consumeRequested(requested)
	go s.consumeNavigated(navigated)
	go s.consumeLoaded(loaded)
	go s.consumeWindowOpen(opened)
	go s.consumeDialogs(dialogs)
	return nil
}

// consumeRequested 对页面发起的导航执行 scheme 策略
func (s *Surface) consumeRequested(stream page.FrameRequestedNavigationClient) {
	defer stream.Close()
	for {
		ev, err := stream.Recv()
		if err != nil {
			s.streamClosed("frameRequestedNavigation", err)
			return
		}
		obs := s.driver.observer
		if obs == nil {
			continue
		}
		if v := obs.Navigate(s.ctx, s.id, ev.URL); v != rules.Allow {
			ctx, cancel := context.WithTimeout(s.ctx, s.driver.timeout)
			if err := s.client.Page.StopLoading(ctx); err != nil {
				s.log.Warn("停止导航失败", "url", ev.URL, "error", err.Error())
			}
			cancel()
		}
	}
}

func (s *Surface) consumeNavigated(stream page.FrameNavigatedClient) {
	defer stream.Close()
	for {
		ev, err := stream.Recv()
		if err != nil {
			s.streamClosed("frameNavigated", err)
			return
		}
		if !cdpconv.IsMainFrame(ev.Frame) {
			continue
		}
		s.mu.Lock()
		s.url = ev.Frame.URL
		s.mu.Unlock()
		if obs := s.driver.observer; obs != nil {
			obs.Navigated(s.ctx, s.id, ev.Frame.URL)
		}
	}
}

func (s *Surface) consumeLoaded(stream page.LoadEventFiredClient) {
	defer stream.Close()
	for {
		if _, err := stream.Recv(); err != nil {
			s.streamClosed("loadEventFired", err)
			return
		}
		s.mu.Lock()
		url := s.url
		s.mu.Unlock()
		if obs := s.driver.observer; obs != nil {
			obs.Loaded(s.ctx, s.id, url)
		}
	}
}

func (s *Surface) consumeWindowOpen(stream page.WindowOpenClient) {
	defer stream.Close()
	for {
		ev, err := stream.Recv()
		if err != nil {
			s.streamClosed("windowOpen", err)
			return
		}
		s.driver.rememberWindowOpen(s.id, ev.URL)
	}
}

// consumeDialogs 对话框必须回传结果，否则页面脚本会一直挂起
func (s *Surface) consumeDialogs(stream page.JavascriptDialogOpeningClient) {
	defer stream.Close()
	for {
		ev, err := stream.Recv()
		if err != nil {
			s.streamClosed("javascriptDialogOpening", err)
			return
		}
		go s.answerDialog(ev)
	}
}

func (s *Surface) answerDialog(ev *page.JavascriptDialogOpeningReply) {
	d := cdpconv.ToDialog(s.id, ev)
	res := domain.DialogResult{Accepted: d.Type == domain.DialogAlert}
	if obs := s.driver.observer; obs != nil {
		res = obs.Dialog(s.ctx, d)
	}
	ctx, cancel := context.WithTimeout(s.ctx, s.driver.timeout)
	defer cancel()
	if err := s.client.Page.HandleJavaScriptDialog(ctx, cdpconv.ToHandleArgs(res)); err != nil {
		s.log.Err(err, "回传对话框结果失败", "type", string(d.Type))
	}
}

// streamClosed 事件流终止；主动关闭时静默
func (s *Surface) streamClosed(stream string, err error) {
	if s.isClosing() || s.ctx.Err() != nil {
		return
	}
	s.log.Warn("页面事件流中断", "stream", stream, "error", err.Error())
}
