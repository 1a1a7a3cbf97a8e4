package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"CitationMap/config"
)

var cacheList bool

func init() {
	cacheStatsCmd.Flags().BoolVar(&cacheList, "list", false, "列出所有缓存的机构")
	cacheCmd.AddCommand(cacheStatsCmd, cachePruneCmd)
	rootCmd.AddCommand(cacheCmd, initConfigCmd)
}

var cacheCmd = &cobra.Command{
	Use:   "cache",
	Short: "查看和维护地理编码缓存",
}

var cacheStatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "缓存条目统计",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		app, err := openApp()
		if err != nil {
			return err
		}
		defer app.Close()

		stats, err := app.CacheStats()
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "backend=%s entries=%d located=%d empty=%d\n",
			appCfg.Cache.Backend, stats.Entries, stats.Located, stats.Empty)
		if !cacheList {
			return nil
		}
		keys, err := app.CacheKeys()
		if err != nil {
			return err
		}
		for _, k := range keys {
			fmt.Fprintln(out, k)
		}
		return nil
	},
}

var cachePruneCmd = &cobra.Command{
	Use:   "prune-empty",
	Short: "删除确认为空的条目，下次运行会重新查询",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		app, err := openApp()
		if err != nil {
			return err
		}
		defer app.Close()

		n, err := app.PruneCache()
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "pruned %d empty entries\n", n)
		return nil
	},
}

var initConfigCmd = &cobra.Command{
	Use:   "init-config [path]",
	Short: "生成示例配置文件（默认 ~/.citemap/config/config.yaml）",
	Args:  cobra.MaximumNArgs(1),
	// 不需要先加载配置
	PersistentPreRunE: func(*cobra.Command, []string) error { return nil },
	RunE: func(cmd *cobra.Command, args []string) error {
		path := ""
		if len(args) == 1 {
			path = args[0]
		}
		return config.CreateExampleConfig(path)
	},
}
