// Copyright © 2025-2026 Prabhjot Singh Sethi, All Rights reserved
// Author: Prabhjot Singh Sethi <prabhjot.sethi@gmail.com>

package throttler

import (
	"time"

	"go.uber.org/zap"
)

const bytesPerMB = 1024 * 1024

// printPeriodicLogs logs the average rate since start and the instant rate
// since the previous log, once per log interval. It is driven by caller
// traffic only, must be called with the lock held.
func (t *Throttler) printPeriodicLogs(now time.Time) {
	if t.logInterval <= 0 {
		return
	}
	instant := now.Sub(t.lastLogTime)
	if instant < t.logInterval {
		return
	}
	total := now.Sub(t.startTime)
	t.logger.Info("throttler stats",
		zap.Float64("avg_rate_mbps", mbps(t.progress, total)),
		zap.Float64("instant_rate_mbps", mbps(t.instantProgress, instant)),
		zap.Float64("progress_bytes", t.progress),
		zap.Float64("tokens", t.tokens),
		zap.Int64("ref_count", t.refCount),
		zap.Duration("elapsed", total))
	t.instantProgress = 0
	t.lastLogTime = now
}

func mbps(progress float64, d time.Duration) float64 {
	if d <= 0 {
		return 0
	}
	return progress / bytesPerMB / d.Seconds()
}
