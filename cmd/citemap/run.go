package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"CitationMap/internal/core"
)

var (
	runRefresh  bool
	runTimeout  time.Duration
	runStrategy string
	runPrint    bool
)

func init() {
	runCmd.Flags().BoolVar(&runRefresh, "refresh", false, "忽略断点，重新抓取论文和引用")
	runCmd.Flags().DurationVar(&runTimeout, "timeout", 0, "整体超时，0 表示不限制")
	runCmd.Flags().StringVar(&runStrategy, "strategy", "", "机构解析策略: verified 或 self-reported（覆盖配置）")
	runCmd.Flags().BoolVar(&runPrint, "print-affiliations", false, "结束时打印 (作者, 机构) 列表")
	rootCmd.AddCommand(runCmd)
}

var runCmd = &cobra.Command{
	Use:   "run <scholar-id>",
	Short: "对一位作者执行完整流程并导出 CSV 和地图",
	Example: `  citemap run FgE8UawAAAAJ
  citemap run FgE8UawAAAAJ --strategy verified --timeout 2h`,
	Args: cobra.ExactArgs(1),
	RunE: runRun,
}

func runRun(cmd *cobra.Command, args []string) error {
	if runStrategy != "" {
		appCfg.Pipeline.Strategy = runStrategy
		if err := appCfg.Pipeline.Validate(); err != nil {
			return configError{err}
		}
	}
	if runPrint {
		appCfg.Output.PrintAffiliations = true
	}

	app, err := openApp()
	if err != nil {
		return err
	}
	defer app.Close()

	ctx, stop := signalContext(cmd.Context())
	defer stop()
	if runTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, runTimeout)
		defer cancel()
	}

	report, err := app.Run(ctx, args[0], core.RunOptions{Refresh: runRefresh})
	if report != nil {
		printReport(cmd, report)
	}
	return err
}

func printReport(cmd *cobra.Command, report *core.Report) {
	out := cmd.OutOrStdout()
	for _, s := range report.Summaries {
		fmt.Fprintln(out, s)
	}
	for _, p := range report.Outputs {
		fmt.Fprintf(out, "output: %s\n", p)
	}
	if len(report.Affiliations) > 0 {
		fmt.Fprintln(out, "\n引用者机构:")
		for _, a := range report.Affiliations {
			fmt.Fprintf(out, "  %s: %s\n", a.Author, a.Affiliation)
		}
	}
}
