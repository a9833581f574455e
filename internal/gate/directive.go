package gate

import (
	"errors"
	"net/url"
	"strings"

	"coworkshell/pkg/domain"
)

const (
	tokenModeA = "|enabled=1"
	tokenModeB = "|enabled=2"
)

var (
	// ErrMissingMarker 响应体不含标记子串，留在原生界面
	ErrMissingMarker = errors.New("gate: directive marker missing")
	// ErrInvalidURL 拼装后的地址不是合法的绝对 URL
	ErrInvalidURL = errors.New("gate: assembled url is invalid")
)

// Directive 解析后的远程指令
type Directive struct {
	BaseURL string
	Mode    domain.UIMode
}

// ParseDirective 校验标记并剥离模式标记。两个标记同时出现时 ModeA 优先
func ParseDirective(body, marker string) (Directive, error) {
	body = strings.TrimSpace(body)
	if marker == "" || !strings.Contains(body, marker) {
		return Directive{}, ErrMissingMarker
	}

	mode := domain.UIModeNone
	switch {
	case strings.Contains(body, tokenModeA):
		mode = domain.UIModeA
	case strings.Contains(body, tokenModeB):
		mode = domain.UIModeB
	}

	base := strings.ReplaceAll(body, tokenModeA, "")
	base = strings.ReplaceAll(base, tokenModeB, "")
	return Directive{BaseURL: base, Mode: mode}, nil
}

// AssembleURL 拼接最终地址：base?idfa=..&gaid=.. 加上原样追加的活动参数
func AssembleURL(base string, snap domain.AttributionSnapshot) (string, error) {
	final := base + "?idfa=" + snap.DeviceAdID + "&gaid=" + snap.InstallerUID
	if snap.CampaignParams != nil {
		final += *snap.CampaignParams
	}
	if !validURL(final) {
		return "", ErrInvalidURL
	}
	return final, nil
}

func validURL(raw string) bool {
	u, err := url.Parse(raw)
	if err != nil {
		return false
	}
	return u.Scheme != "" && u.Host != ""
}
