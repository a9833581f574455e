package main

import (
	"embed"
	"flag"
	"log"

	"github.com/wailsapp/wails/v2"
	"github.com/wailsapp/wails/v2/pkg/options"
	"github.com/wailsapp/wails/v2/pkg/options/assetserver"

	"coworkshell/internal/config"
	"coworkshell/internal/logger"
)

//go:embed all:frontend/dist
var assets embed.FS

// main 是 GUI 应用入口
func main() {
	configPath := flag.String("config", "coworkshell.yaml", "配置文件路径")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("加载配置失败: %v", err)
	}
	app := NewApp(cfg, logger.New(cfg.Log))

	err = wails.Run(&options.App{
		Title:     "coworkshell",
		Width:     420,
		Height:    820,
		MinWidth:  360,
		MinHeight: 640,
		AssetServer: &assetserver.Options{
			Assets: assets,
		},
		BackgroundColour: &options.RGBA{R: 18, G: 18, B: 18, A: 255},
		OnStartup:        app.startup,
		OnShutdown:       app.shutdown,
		Bind: []interface{}{
			app,
		},
	})
	if err != nil {
		log.Fatalf("启动 GUI 失败: %v", err)
	}
}
