package main

import (
	"fmt"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/go-core-stack/throttler/throttler"
)

func newTuneCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "tune",
		Short: "Show the normalized rates the throttler would use",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := a.loadConfig(cmd.Flags())
			if err != nil {
				return err
			}
			avg, peak, bucket := throttler.ConfigureOptions(cfg.AvgRate, cfg.PeakRate, cfg.BucketLimit)

			t := table.NewWriter()
			t.SetStyle(table.StyleRounded)
			t.AppendHeader(table.Row{"Setting", "Requested", "Effective"})
			t.AppendRow(table.Row{"avg rate (B/s)", formatFloat(cfg.AvgRate), formatFloat(avg)})
			t.AppendRow(table.Row{"peak rate (B/s)", formatFloat(cfg.PeakRate), formatFloat(peak)})
			t.AppendRow(table.Row{"bucket limit (B)", formatFloat(cfg.BucketLimit), formatFloat(bucket)})
			t.AppendRow(table.Row{"log interval", cfg.LogInterval.String(), cfg.LogInterval.String()})
			if avg == 0 {
				t.AppendFooter(table.Row{"", "", "throttling disabled"})
			}
			fmt.Fprintln(cmd.OutOrStdout(), t.Render())
			return nil
		},
	}
	addRateFlags(cmd.Flags())
	return cmd
}
