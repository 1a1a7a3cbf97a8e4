package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var citersOutput string

func init() {
	citersCmd.Flags().StringVarP(&citersOutput, "output", "o", "", "输出 CSV 路径（默认 output.dir/<scholar-id>/citing_authors.csv）")
	rootCmd.AddCommand(citersCmd)
}

var citersCmd = &cobra.Command{
	Use:   "citers <scholar-id>",
	Short: "只抓取引用作者，输出未去重的原始记录用于调试",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		app, err := openApp()
		if err != nil {
			return err
		}
		defer app.Close()

		ctx, stop := signalContext(cmd.Context())
		defer stop()

		records, summary, err := app.Citers(ctx, args[0], citersOutput)
		fmt.Fprintln(cmd.OutOrStdout(), summary)
		fmt.Fprintf(cmd.OutOrStdout(), "records: %d\n", len(records))
		return err
	},
}
