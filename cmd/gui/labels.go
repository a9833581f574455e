package main

import "coworkshell/pkg/domain"

// 中文标签映射
var (
	stateLabels = map[domain.LaunchState]string{
		domain.StateStart:            "启动中",
		domain.StateCollectingSplash: "正在准备",
		domain.StateResolving:        "正在获取配置",
		domain.StateDecided:          "已决定",
		domain.StateNativeUI:         "原生界面",
		domain.StateRedirectUI:       "跳转界面",
	}

	modeLabels = map[domain.UIMode]string{
		domain.UIModeNone: "无导航条",
		domain.UIModeA:    "仅返回",
		domain.UIModeB:    "返回与主页",
	}

	verdictLabels = map[string]string{
		"allow":  "放行",
		"launch": "系统打开",
		"cancel": "已取消",
	}

	overlayLabel = "弹窗"

	// 对话框按钮：macOS 返回按钮文本，Windows/Linux 返回 Yes/No/Ok
	dialogOK      = "确定"
	dialogCancel  = "取消"
	acceptAnswers = map[string]bool{
		dialogOK: true,
		"Yes":    true,
		"Ok":     true,
		"OK":     true,
	}
)

// labelOf 返回标签，未登记时回退到原值
func labelOf[K comparable](m map[K]string, k K, fallback string) string {
	if v, ok := m[k]; ok {
		return v
	}
	return fallback
}
