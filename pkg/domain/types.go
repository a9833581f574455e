package domain

type SessionID string
type SurfaceID string

// ZeroAdvertisingID 未授权追踪时使用的设备广告标识占位符
const ZeroAdvertisingID = "00000000-0000-0000-0000-000000000000"

// UIMode 控制跳转界面是否显示底部导航条
type UIMode int

const (
	UIModeNone UIMode = 0
	UIModeA    UIMode = 1
	UIModeB    UIMode = 2
)

// Valid 判断持久化的整数值是否为合法模式
func (m UIMode) Valid() bool {
	return m == UIModeNone || m == UIModeA || m == UIModeB
}

func (m UIMode) String() string {
	switch m {
	case UIModeA:
		return "mode_a"
	case UIModeB:
		return "mode_b"
	default:
		return "none"
	}
}

// GateDecision 一次性的原生/跳转决策。RedirectURL 为空表示留在原生界面
type GateDecision struct {
	RedirectURL string `json:"redirectURL,omitempty"`
	UIMode      UIMode `json:"uiMode"`
}

// Redirect 是否获得跳转
func (d GateDecision) Redirect() bool { return d.RedirectURL != "" }

// AttributionSnapshot 一次采集得到的设备与归因参数
type AttributionSnapshot struct {
	DeviceAdID     string  `json:"deviceAdID"`
	InstallerUID   string  `json:"installerUID"`
	CampaignParams *string `json:"campaignParams,omitempty"`
}

// LaunchState 启动门控状态机状态
type LaunchState string

const (
	StateStart            LaunchState = "start"
	StateCollectingSplash LaunchState = "collecting_splash"
	StateResolving        LaunchState = "resolving"
	StateDecided          LaunchState = "decided"
	StateNativeUI         LaunchState = "native_ui"
	StateRedirectUI       LaunchState = "redirect_ui"
)

// Terminal 是否为终态
func (s LaunchState) Terminal() bool {
	return s == StateNativeUI || s == StateRedirectUI
}

// LaunchOutcome 启动门控的最终结果
type LaunchOutcome struct {
	State    LaunchState  `json:"state"`
	Decision GateDecision `json:"decision"`
	// Cached 为 true 表示走了已持久化决策的快速路径
	Cached bool `json:"cached"`
}

// SurfaceState 单个浏览面的生命周期状态
type SurfaceState string

const (
	SurfaceLoading    SurfaceState = "loading"
	SurfaceLoaded     SurfaceState = "loaded"
	SurfaceNavigating SurfaceState = "navigating"
	SurfaceClosed     SurfaceState = "closed"
)

// SurfaceOptions 浏览面配置，主页面与弹窗共用
type SurfaceOptions struct {
	UserAgent   string `json:"userAgent"`
	Dark        bool   `json:"dark"`
	InlineMedia bool   `json:"inlineMedia"`
}

// PopupRequest 页面内请求新窗口
type PopupRequest struct {
	Opener SurfaceID `json:"opener"`
	// Target 浏览器侧已创建的目标，为空时由驱动新建
	Target SurfaceID `json:"target"`
	URL    string    `json:"url"`
}

// SessionState 浏览会话快照
type SessionState struct {
	ID        SessionID   `json:"id"`
	Primary   SurfaceID   `json:"primary"`
	Overlays  []SurfaceID `json:"overlays"`
	Active    SurfaceID   `json:"active"`
	CanGoBack bool        `json:"canGoBack"`
}

// DialogType JS 模态对话框类型
type DialogType string

const (
	DialogAlert   DialogType = "alert"
	DialogConfirm DialogType = "confirm"
	DialogPrompt  DialogType = "prompt"
)

// Dialog 页面发起的模态对话框
type Dialog struct {
	Surface     SurfaceID  `json:"surface"`
	Type        DialogType `json:"type"`
	Message     string     `json:"message"`
	DefaultText string     `json:"defaultText"`
}

// DialogResult 对话框结果，必须回传给页面
type DialogResult struct {
	Accepted bool    `json:"accepted"`
	Text     *string `json:"text,omitempty"`
}

// NavigationEvent 导航决策事件
type NavigationEvent struct {
	Session   SessionID `json:"session"`
	Surface   SurfaceID `json:"surface"`
	Timestamp int64     `json:"timestamp"`
	URL       string    `json:"url"`
	Verdict   string    `json:"verdict"`
}
