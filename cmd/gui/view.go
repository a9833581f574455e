package main

import (
	"strconv"

	"github.com/samber/lo"

	"coworkshell/pkg/domain"
)

// SessionView 前端渲染用的会话快照
type SessionView struct {
	Session   string        `json:"session"`
	CanGoBack bool          `json:"canGoBack"`
	Overlays  []OverlayView `json:"overlays"`
}

// OverlayView 弹窗条目，按打开顺序排列
type OverlayView struct {
	ID     string `json:"id"`
	Label  string `json:"label"`
	Active bool   `json:"active"`
}

func newSessionView(st domain.SessionState) SessionView {
	return SessionView{
		Session:   string(st.ID),
		CanGoBack: st.CanGoBack,
		Overlays: lo.Map(st.Overlays, func(id domain.SurfaceID, i int) OverlayView {
			return OverlayView{
				ID:     string(id),
				Label:  overlayLabel + " " + strconv.Itoa(i+1),
				Active: id == st.Active,
			}
		}),
	}
}
