package service

import (
	"context"

	"coworkshell/internal/rules"
	"coworkshell/pkg/domain"
)

// router 把驱动事件分发到浏览面所属会话
type router struct {
	svc *svc
}

func (r *router) sessionOf(surface domain.SurfaceID) domain.SessionID {
	if sess, ok := r.svc.sessions.Find(surface); ok {
		return sess.ID()
	}
	return ""
}

func (r *router) Navigate(ctx context.Context, surface domain.SurfaceID, url string) rules.Verdict {
	return r.svc.handler.HandleNavigation(ctx, r.sessionOf(surface), surface, url)
}

func (r *router) Dialog(ctx context.Context, d domain.Dialog) domain.DialogResult {
	return r.svc.handler.HandleDialog(ctx, d)
}

func (r *router) Loaded(ctx context.Context, surface domain.SurfaceID, url string) {
	if sess, ok := r.svc.sessions.Find(surface); ok {
		sess.SurfaceLoaded(ctx, surface, url)
	}
}

func (r *router) Navigated(ctx context.Context, surface domain.SurfaceID, url string) {
	if sess, ok := r.svc.sessions.Find(surface); ok {
		sess.SurfaceNavigated(ctx, surface, url)
	}
}

func (r *router) Closed(ctx context.Context, surface domain.SurfaceID) {
	if sess, ok := r.svc.sessions.Find(surface); ok {
		sess.SurfaceClosed(ctx, surface)
	}
}

func (r *router) Popup(ctx context.Context, req domain.PopupRequest) {
	sess, ok := r.svc.sessions.Find(req.Opener)
	if !ok {
		r.svc.log.Warn("弹窗的 opener 不属于任何会话", "opener", string(req.Opener))
		return
	}
	sess.PopupRequested(ctx, req)
}
