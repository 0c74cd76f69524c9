// Copyright © 2025-2026 Prabhjot Singh Sethi, All Rights reserved
// Author: Prabhjot Singh Sethi <prabhjot.sethi@gmail.com>

// Package throttler provides a shared dual-rate throttler for concurrent
// data transfers.
//
// # Overview
//
// A single Throttler is shared by every worker moving data for one
// session. Workers report progress (typically bytes written) after each
// unit of work and sleep for the duration the throttler returns. Two
// constraints are enforced together:
//
//   - Average rate: cumulative progress divided by the time since the
//     first transfer registered converges to the configured average. A
//     caller that got ahead is asked to sleep until wall time catches up.
//   - Peak rate: a token bucket refilled at the peak rate and capped at the
//     bucket limit bounds short bursts. Progress drains the bucket, a
//     deficit is earned back by sleeping at the refill rate.
//
// The sleep returned is the maximum of the two, so whichever constraint is
// binding dominates.
//
// # Rate Limiting Strategy
//
// Unlike a pre-operation limiter, this package meters AFTER the operation:
// the caller moves data first and then reports the bytes actually moved.
// The token count may therefore go negative, representing consumption that
// already happened. Nothing is ever over-reserved on partial reads or
// writes.
//
// # Lifecycle
//
// Callers register before use and deregister when done. The progress
// baseline, bucket and timers are reset only when the first transfer
// registers on an idle throttler; they are not reset while any transfer
// remains registered.
//
//	thr := throttler.MakeThrottler(10<<20, 0, 0, 1000) // 10MiB/s, auto peak & bucket
//	tr := thr.NewTransfer()
//	defer tr.Close()
//	for chunk := range chunks {
//		n, _ := w.Write(chunk)
//		tr.Limit(float64(n))
//	}
//
// # Periodic Logging
//
// When a log interval is configured the throttler emits average and
// instantaneous rates from within CalculateSleep. There is no timer
// goroutine; if no caller reports progress, nothing is logged until the
// next call.
//
// # Sessions
//
// Manager keeps named throttlers, one per transfer session, and wraps
// io.ReadCloser, io.WriteCloser and http.ResponseWriter values so that
// every byte they move is metered through a Transfer of that session.
package throttler
