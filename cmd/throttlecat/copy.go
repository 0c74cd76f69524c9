package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/go-core-stack/throttler/throttler"
)

const copySession = "copy"

// copyResult describes one copied file.
type copyResult struct {
	Source  string
	Bytes   int64
	Elapsed time.Duration
	Err     error
}

func newCopyCmd(a *app) *cobra.Command {
	var workers int

	cmd := &cobra.Command{
		Use:   "copy SRC... DEST_DIR",
		Short: "Copy files into a directory through a shared throttler",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := a.loadConfig(cmd.Flags())
			if err != nil {
				return err
			}

			mgr := throttler.NewManager(throttler.WithLogger(a.logger))
			thr, err := mgr.NewThrottler(copySession, cfg.AvgRate, cfg.PeakRate, cfg.BucketLimit, cfg.LogInterval.Milliseconds())
			if err != nil {
				return err
			}
			a.logger.Debug("throttler configured", zap.Stringer("throttler", thr))

			srcs, dest := args[:len(args)-1], args[len(args)-1]
			results, err := copyFiles(cmd.Context(), mgr, srcs, dest, workers)
			fmt.Fprint(cmd.OutOrStdout(), renderResults(results))
			return err
		},
	}

	addRateFlags(cmd.Flags())
	cmd.Flags().IntVarP(&workers, "workers", "j", 4, "number of concurrent copies")
	return cmd
}

// copyFiles copies srcs into dest, at most workers at a time, all metered
// by the copy session of mgr. It returns one result per source, in order,
// and the first error encountered.
func copyFiles(ctx context.Context, mgr *throttler.Manager, srcs []string, dest string, workers int) ([]copyResult, error) {
	st, err := os.Stat(dest)
	if err != nil {
		return nil, err
	}
	if !st.IsDir() {
		return nil, fmt.Errorf("destination %s is not a directory", dest)
	}

	results := make([]copyResult, len(srcs))
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(max(1, workers))
	for i, src := range srcs {
		g.Go(func() error {
			results[i] = copyFile(ctx, mgr, src, filepath.Join(dest, filepath.Base(src)))
			return results[i].Err
		})
	}
	return results, g.Wait()
}

func copyFile(ctx context.Context, mgr *throttler.Manager, src, dst string) copyResult {
	res := copyResult{Source: src}

	in, err := os.Open(src)
	if err != nil {
		res.Err = err
		return res
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		res.Err = err
		return res
	}
	w, err := mgr.WrapWriter(ctx, copySession, out)
	if err != nil {
		_ = out.Close()
		res.Err = err
		return res
	}

	// only the Writer is exposed so io.Copy cannot bypass the throttler
	res.Bytes, res.Err = io.Copy(struct{ io.Writer }{w}, in)
	res.Elapsed = w.Transfer().Elapsed()
	if err := w.Close(); err != nil && res.Err == nil {
		res.Err = err
	}
	return res
}
