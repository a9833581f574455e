package cdp

import (
	"coworkshell/pkg/domain"

	"github.com/mafredri/cdp/protocol/page"
	"github.com/mafredri/cdp/protocol/target"
)

// ToDialog 将 CDP 对话框事件转换为中立 Dialog 模型
func ToDialog(surface domain.SurfaceID, ev *page.JavascriptDialogOpeningReply) domain.Dialog {
	d := domain.Dialog{
		Surface: surface,
		Message: ev.Message,
	}
	switch ev.Type {
	case page.DialogTypeAlert:
		d.Type = domain.DialogAlert
	case page.DialogTypePrompt:
		d.Type = domain.DialogPrompt
		if ev.DefaultPrompt != nil {
			d.DefaultText = *ev.DefaultPrompt
		}
	default:
		// beforeunload 按确认框处理
		d.Type = domain.DialogConfirm
	}
	return d
}

// ToHandleArgs 将对话框结果转换为 Page.handleJavaScriptDialog 参数
func ToHandleArgs(res domain.DialogResult) *page.HandleJavaScriptDialogArgs {
	args := page.NewHandleJavaScriptDialogArgs(res.Accepted)
	if res.Accepted && res.Text != nil {
		args.SetPromptText(*res.Text)
	}
	return args
}

// ToPopupRequest 将带 opener 的新目标转换为弹窗请求；pendingURL 来自 Page.windowOpen
func ToPopupRequest(info target.Info, pendingURL string) (domain.PopupRequest, bool) {
	if info.Type != "page" || info.OpenerID == nil {
		return domain.PopupRequest{}, false
	}
	url := pendingURL
	if url == "" {
		url = info.URL
	}
	return domain.PopupRequest{
		Opener: domain.SurfaceID(*info.OpenerID),
		Target: domain.SurfaceID(info.TargetID),
		URL:    url,
	}, true
}

// HasHistory 当前条目之前是否还有历史
func HasHistory(h *page.GetNavigationHistoryReply) bool {
	return h != nil && h.CurrentIndex > 0 && h.CurrentIndex < len(h.Entries)
}

// PreviousEntry 上一条历史的 ID
func PreviousEntry(h *page.GetNavigationHistoryReply) (int, bool) {
	if !HasHistory(h) {
		return 0, false
	}
	return h.Entries[h.CurrentIndex-1].ID, true
}

// IsMainFrame 判断导航帧是否为主帧
func IsMainFrame(f page.Frame) bool {
	return f.ParentID == nil
}
