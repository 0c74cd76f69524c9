package main

import (
	"path/filepath"
	"strconv"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
)

const bytesPerMB = 1024 * 1024

// renderResults renders the copied files as a table with a total footer.
func renderResults(results []copyResult) string {
	if len(results) == 0 {
		return ""
	}

	t := table.NewWriter()
	t.SetStyle(table.StyleRounded)
	t.AppendHeader(table.Row{"File", "Bytes", "Elapsed", "MB/s", "Status"})

	var (
		total   int64
		longest time.Duration
	)
	for _, r := range results {
		status := "ok"
		if r.Err != nil {
			status = r.Err.Error()
		}
		total += r.Bytes
		longest = max(longest, r.Elapsed)
		t.AppendRow(table.Row{
			filepath.Base(r.Source),
			r.Bytes,
			r.Elapsed.Round(time.Millisecond).String(),
			formatFloat(rateMBps(r.Bytes, r.Elapsed)),
			status,
		})
	}
	t.AppendFooter(table.Row{
		"total",
		total,
		longest.Round(time.Millisecond).String(),
		formatFloat(rateMBps(total, longest)),
		"",
	})
	return t.Render() + "\n"
}

func rateMBps(n int64, d time.Duration) float64 {
	if d <= 0 {
		return 0
	}
	return float64(n) / bytesPerMB / d.Seconds()
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', 2, 64)
}
