package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"CitationMap/internal/core"
)

var (
	renderCSV      string
	renderOutput   string
	renderColorful bool
)

func init() {
	renderCmd.Flags().StringVar(&renderCSV, "csv", "", "已导出的 citation_info.csv")
	renderCmd.Flags().StringVarP(&renderOutput, "output", "o", core.MapFileName, "地图输出路径")
	renderCmd.Flags().BoolVar(&renderColorful, "colorful", true, "按机构使用不同颜色")
	_ = renderCmd.MarkFlagRequired("csv")
	rootCmd.AddCommand(renderCmd)
}

var renderCmd = &cobra.Command{
	Use:   "render",
	Short: "从已导出的 CSV 重新生成地图，不联网",
	Example: `  citemap render --csv output/FgE8UawAAAAJ/citation_info.csv -o map.html`,
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		n, err := core.RenderFromCSV(renderCSV, renderOutput, renderColorful)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "rendered %d rows -> %s\n", n, renderOutput)
		return nil
	},
}
