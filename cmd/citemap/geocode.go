package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"CitationMap/internal/geocode"
)

func init() {
	rootCmd.AddCommand(geocodeCmd)
}

var geocodeCmd = &cobra.Command{
	Use:   "geocode <affiliation>...",
	Short: "查询机构坐标（经过缓存和 provider 链）",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		app, err := openApp()
		if err != nil {
			return err
		}
		defer app.Close()

		ctx, stop := signalContext(cmd.Context())
		defer stop()

		out := cmd.OutOrStdout()
		for _, aff := range args {
			res, cached, err := app.Geocode(ctx, aff)
			if err != nil && !errors.Is(err, geocode.ErrProviderExhausted) {
				return err
			}
			source := "live"
			if cached {
				source = "cache"
			}
			if !res.Located() {
				fmt.Fprintf(out, "%s\t(not found, %s)\n", aff, source)
				continue
			}
			fmt.Fprintf(out, "%s\t%s,%s\t%s / %s / %s / %s\t(%s)\n", aff,
				res.Latitude, res.Longitude, res.County, res.City, res.State, res.Country, source)
		}
		return nil
	},
}
