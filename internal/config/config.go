package config

import (
	"fmt"
	"os"
	"time"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"
)

// DefaultUserAgent 所有浏览面固定使用的移动端 UA
const DefaultUserAgent = "Mozilla/5.0 (iPhone; CPU iPhone OS 17_0 like Mac OS X) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/17.0 Mobile/15E148 Safari/604.1"

// Config 配置文件结构体
type Config struct {
	Version string `yaml:"version"`

	Sqlite      SqliteConfig      `yaml:"sqlite"`
	Log         LogConfig         `yaml:"log"`
	Gate        GateConfig        `yaml:"gate"`
	Attribution AttributionConfig `yaml:"attribution"`
	Tracking    TrackingConfig    `yaml:"tracking"`
	Browser     BrowserConfig     `yaml:"browser"`
}

type SqliteConfig struct {
	Dsn    string `yaml:"dsn" env:"COWORKSHELL_SQLITE_DSN"`
	Prefix string `yaml:"prefix"`
}

type LogConfig struct {
	Level  string   `yaml:"level" env:"COWORKSHELL_LOG_LEVEL"`
	Writer []string `yaml:"writer" env:"COWORKSHELL_LOG_WRITER" envSeparator:","`
	File   string   `yaml:"file" env:"COWORKSHELL_LOG_FILE"`
}

// GateConfig 远程门控请求配置
type GateConfig struct {
	Endpoint          string `yaml:"endpoint" env:"COWORKSHELL_GATE_ENDPOINT"`
	Marker            string `yaml:"marker" env:"COWORKSHELL_GATE_MARKER"`
	RequestTimeoutMS  int    `yaml:"request_timeout_ms"`
	ResourceTimeoutMS int    `yaml:"resource_timeout_ms"`
	CeilingMS         int    `yaml:"ceiling_ms"`
	PreDelayMS        int    `yaml:"pre_delay_ms"`
}

// AttributionConfig 归因采集等待窗口
type AttributionConfig struct {
	TimeoutMS      int `yaml:"timeout_ms" env:"COWORKSHELL_ATTRIBUTION_TIMEOUT_MS"`
	RecheckMS      int `yaml:"recheck_ms"`
	RestartDelayMS int `yaml:"restart_delay_ms"`
}

// TrackingConfig 安装追踪服务配置
type TrackingConfig struct {
	LaunchURL     string `yaml:"launch_url" env:"COWORKSHELL_TRACKING_LAUNCH_URL"`
	ConversionURL string `yaml:"conversion_url" env:"COWORKSHELL_TRACKING_CONVERSION_URL"`
	DevKey        string `yaml:"dev_key" env:"COWORKSHELL_TRACKING_DEV_KEY"`
	AppID         string `yaml:"app_id" env:"COWORKSHELL_TRACKING_APP_ID"`
	TimeoutMS     int    `yaml:"timeout_ms"`
}

// BrowserConfig 浏览面与导航策略配置
type BrowserConfig struct {
	DevToolsURL   string   `yaml:"devtools_url" env:"COWORKSHELL_DEVTOOLS_URL"`
	UserAgent     string   `yaml:"user_agent"`
	Dark          bool     `yaml:"dark"`
	ChallengeHost string   `yaml:"challenge_host"`
	AllowSchemes  []string `yaml:"allow_schemes"`
	LaunchSchemes []string `yaml:"launch_schemes"`
}

// NewConfig 创建默认配置
func NewConfig() *Config {
	return &Config{
		Version: "1.0.0",
		Sqlite: SqliteConfig{
			Dsn:    "coworkshell.sqlite3",
			Prefix: "coworkshell_",
		},
		Log: LogConfig{
			Level:  "info",
			Writer: []string{"console", "file"},
			File:   "logs/coworkshell.log",
		},
		Gate: GateConfig{
			Marker:            "://",
			RequestTimeoutMS:  10000,
			ResourceTimeoutMS: 15000,
			CeilingMS:         20000,
			PreDelayMS:        1000,
		},
		Attribution: AttributionConfig{
			TimeoutMS:      4000,
			RecheckMS:      2000,
			RestartDelayMS: 500,
		},
		Tracking: TrackingConfig{
			TimeoutMS: 8000,
		},
		Browser: BrowserConfig{
			DevToolsURL:   "http://127.0.0.1:9222",
			UserAgent:     DefaultUserAgent,
			Dark:          true,
			ChallengeHost: "challenges.cloudflare.com",
			AllowSchemes:  []string{"http", "https", "about"},
			LaunchSchemes: []string{"tel", "mailto", "sms"},
		},
	}
}

// Load 读取 YAML 配置文件并应用环境变量覆盖；文件不存在时使用默认配置
func Load(path string) (*Config, error) {
	cfg := NewConfig()
	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case err == nil:
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("parse config %s: %w", path, err)
			}
		case os.IsNotExist(err):
		default:
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}
	return cfg, nil
}

// Millis 将毫秒配置转换为时长
func Millis(ms int) time.Duration {
	return time.Duration(ms) * time.Millisecond
}
