// Package main citemap 命令行入口
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"CitationMap/config"
	"CitationMap/internal/core"
	_ "CitationMap/internal/platform/scholar"
	_ "CitationMap/internal/platform/serpapi"
	"CitationMap/pkg/logger"
)

// Version 构建时通过 ldflags 设置
var Version = "dev"

var (
	cfgFile  string
	logLevel string
	appCfg   *config.AppConfig
)

func main() {
	err := rootCmd.Execute()
	logger.Sync()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		os.Exit(exitCode(err))
	}
}

var rootCmd = &cobra.Command{
	Use:   "citemap",
	Short: "谁在引用我的论文，他们在哪里",
	Long: `citemap 抓取 Google Scholar 上某位作者论文的引用者，解析引用者的机构，
查询机构坐标，并导出 CSV 和交互式地图。

被直接抓取拦截时会改用 SerpAPI（需要 SERPAPI_KEY）。
各阶段的中间结果保存在本地数据库中，中断后重新运行会从断点继续。`,
	SilenceUsage:      true,
	SilenceErrors:     true,
	PersistentPreRunE: loadConfig,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "配置文件路径或目录")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "日志级别: debug/info/warn/error")
	rootCmd.Version = Version
}

func loadConfig(cmd *cobra.Command, _ []string) error {
	cfg, err := config.Init(cfgFile)
	if err != nil {
		return configError{err}
	}
	appCfg = cfg

	level := cfg.Log.Level
	if logLevel != "" {
		level = logLevel
	}
	logger.InitWithFile(level, cfg.Log.Color, cfg.Log.File)
	if p := config.GetConfigPath(); p != "" {
		logger.Debug("使用配置文件: %s", p)
	}
	return nil
}

func openApp() (*core.App, error) {
	app, err := core.NewApp(appCfg.Settings())
	if err != nil {
		return nil, fmt.Errorf("初始化失败: %w", err)
	}
	return app, nil
}

// signalContext Ctrl-C 后停止派发新任务，进行中的任务继续完成
func signalContext(parent context.Context) (context.Context, context.CancelFunc) {
	return signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
}
