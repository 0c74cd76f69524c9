// Copyright © 2025-2026 Prabhjot Singh Sethi, All Rights reserved
// Author: Prabhjot Singh Sethi <prabhjot.sethi@gmail.com>

package throttler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/go-core-stack/throttler/errors"
)

// interval between repeated misuse warnings of a throttler
const warnInterval = 10 * time.Second

// Throttler limits the aggregate progress of all registered transfers to
// an average rate, while a token bucket bounds the peak rate of bursts.
// A Throttler is shared by reference and is safe for concurrent use.
type Throttler struct {
	mu     sync.Mutex // protects everything below, never held while sleeping
	name   string
	logger *zap.Logger
	clock  func() time.Time
	warn   rate.Sometimes // dampens misuse warnings

	avgRate     float64       // target average rate in bytes/sec, 0 disables
	bucketRate  float64       // token refill (peak) rate in bytes/sec, 0 disables
	bucketLimit float64       // max tokens the bucket may hold
	logInterval time.Duration // period of stats logging, 0 disables

	tokens          float64 // may go negative after consumption
	startTime       time.Time
	lastFillTime    time.Time
	lastLogTime     time.Time
	progress        float64 // cumulative progress since startTime
	instantProgress float64 // progress since lastLogTime
	refCount        int64   // number of registered transfers
}

// NewThrottler builds a throttler from already normalized settings, see
// MakeThrottler for building one from raw user input. A zero average rate
// disables average limiting, a zero bucket rate disables peak limiting.
// Negative values are treated as zero.
func NewThrottler(avgRate, bucketRate, bucketLimit float64, logInterval time.Duration, opts ...Option) *Throttler {
	t := &Throttler{
		logger: zap.L(),
		clock:  time.Now,
		warn: rate.Sometimes{
			First:    1,
			Interval: warnInterval,
		},
		avgRate:     nonNegative(avgRate),
		bucketRate:  nonNegative(bucketRate),
		bucketLimit: nonNegative(bucketLimit),
	}
	if logInterval > 0 {
		t.logInterval = logInterval
	}
	for _, opt := range opts {
		opt(t)
	}
	t.logger = t.logger.Named("throttler")
	if t.name != "" {
		t.logger = t.logger.With(zap.String("throttler", t.name))
	}
	t.tokens = t.bucketLimit
	return t
}

// RegisterTransfer must be called by every user of the throttler before
// reporting progress. The first registration on an idle throttler resets
// the progress baseline and fills the bucket.
func (t *Throttler) RegisterTransfer() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.refCount++
	if t.refCount > 1 {
		return
	}
	now := t.clock()
	t.startTime = now
	t.lastFillTime = now
	t.lastLogTime = now
	t.progress = 0
	t.instantProgress = 0
	t.tokens = t.bucketLimit
}

// DeRegisterTransfer releases one registration. Releasing more than was
// registered leaves the state untouched and returns a PreconditionFailed
// error, which callers are free to ignore.
func (t *Throttler) DeRegisterTransfer() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.refCount <= 0 {
		t.refCount = 0
		t.warn.Do(func() {
			t.logger.Warn("deregistering a transfer that was never registered")
		})
		return errors.Wrapf(errors.PreconditionFailed, "throttler %q has no registered transfers", t.name)
	}
	t.refCount--
	return nil
}

// Limit reports deltaProgress made by the caller since its previous call
// and blocks for as long as the throttler requires.
func (t *Throttler) Limit(deltaProgress float64) {
	_ = t.LimitContext(context.Background(), deltaProgress)
}

// LimitContext is Limit with an interruptible wait. A cancelled context
// ends the wait early and returns the context error; the progress stays
// accounted for.
func (t *Throttler) LimitContext(ctx context.Context, deltaProgress float64) error {
	if !finiteProgress(deltaProgress) {
		deltaProgress = 0
	}
	t.mu.Lock()
	sleep := t.calculateSleep(t.progress+deltaProgress, t.clock())
	t.mu.Unlock()
	if sleep <= 0 {
		return nil
	}

	timer := time.NewTimer(sleep)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// CalculateSleep accounts for the cumulative progress made by all
// transfers and returns how long the caller should sleep at time now. It
// never sleeps itself.
func (t *Throttler) CalculateSleep(totalProgress float64, now time.Time) time.Duration {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.calculateSleep(totalProgress, now)
}

func (t *Throttler) calculateSleep(totalProgress float64, now time.Time) time.Duration {
	if t.refCount <= 0 {
		t.warn.Do(func() {
			t.logger.Warn("throttler used without a registered transfer")
		})
	}

	// a total behind the recorded progress comes from a stale
	// caller and carries no new progress, nor does a non finite one
	delta := totalProgress - t.progress
	if finiteProgress(totalProgress) && finiteProgress(delta) {
		t.progress = totalProgress
	} else {
		delta = 0
	}
	t.instantProgress += delta

	sleep := max(t.limitByTokenBucket(delta, now), t.averageThrottler(now))
	t.printPeriodicLogs(now)
	return sleep
}

// limitByTokenBucket refills the bucket up to its limit, consumes delta
// tokens and returns the time needed to earn back any deficit.
func (t *Throttler) limitByTokenBucket(delta float64, now time.Time) time.Duration {
	if elapsed := now.Sub(t.lastFillTime); elapsed > 0 {
		t.tokens += t.bucketRate * elapsed.Seconds()
		t.lastFillTime = now
	}
	if t.tokens > t.bucketLimit {
		t.tokens = t.bucketLimit
	}
	if t.bucketRate <= 0 {
		return 0
	}
	t.tokens -= delta
	if t.tokens >= 0 {
		return 0
	}
	return seconds(-t.tokens / t.bucketRate)
}

// averageThrottler returns the time needed for the elapsed time to catch
// up with the progress made at the average rate.
func (t *Throttler) averageThrottler(now time.Time) time.Duration {
	if t.avgRate <= 0 {
		return 0
	}
	elapsed := now.Sub(t.startTime).Seconds()
	if elapsed < 0 {
		elapsed = 0
	}
	expected := t.avgRate * elapsed
	if t.progress <= expected {
		return 0
	}
	return seconds((t.progress - expected) / t.avgRate)
}

// SetThrottlerRates replaces the rates of a live throttler. The current
// token count is only clamped to the new bucket limit.
func (t *Throttler) SetThrottlerRates(avgRate, bucketRate, bucketLimit float64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.avgRate = nonNegative(avgRate)
	t.bucketRate = nonNegative(bucketRate)
	t.bucketLimit = nonNegative(bucketLimit)
	if t.tokens > t.bucketLimit {
		t.tokens = t.bucketLimit
	}
}

// AvgRateBytesPerSec returns the average rate in bytes/sec.
func (t *Throttler) AvgRateBytesPerSec() float64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.avgRate
}

// PeakRateBytesPerSec returns the bucket refill rate in bytes/sec.
func (t *Throttler) PeakRateBytesPerSec() float64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.bucketRate
}

// BucketLimitBytes returns the bucket capacity in bytes.
func (t *Throttler) BucketLimitBytes() float64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.bucketLimit
}

// ThrottlerLogTimeMillis returns the periodic logging interval in millis.
func (t *Throttler) ThrottlerLogTimeMillis() int64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.logInterval.Milliseconds()
}

// SetThrottlerLogTimeMillis changes the periodic logging interval, a non
// positive value disables it.
func (t *Throttler) SetThrottlerLogTimeMillis(millis int64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if millis <= 0 {
		t.logInterval = 0
		return
	}
	t.logInterval = time.Duration(millis) * time.Millisecond
}

// RefCount returns the number of registered transfers.
func (t *Throttler) RefCount() int64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.refCount
}

// Name returns the label given with WithName.
func (t *Throttler) Name() string {
	return t.name
}

// Stats is a point in time snapshot of a throttler.
type Stats struct {
	Name                string
	AvgRateBytesPerSec  float64
	PeakRateBytesPerSec float64
	BucketLimitBytes    float64
	Tokens              float64
	ProgressBytes       float64
	RefCount            int64
	Elapsed             time.Duration
}

// Stats returns a snapshot of the throttler state. Elapsed is only
// meaningful while transfers are registered.
func (t *Throttler) Stats() Stats {
	t.mu.Lock()
	defer t.mu.Unlock()
	s := Stats{
		Name:                t.name,
		AvgRateBytesPerSec:  t.avgRate,
		PeakRateBytesPerSec: t.bucketRate,
		BucketLimitBytes:    t.bucketLimit,
		Tokens:              t.tokens,
		ProgressBytes:       t.progress,
		RefCount:            t.refCount,
	}
	if t.refCount > 0 {
		s.Elapsed = max(0, t.clock().Sub(t.startTime))
	}
	return s
}

func (t *Throttler) String() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return fmt.Sprintf("throttler(name=%q avgRate=%.2fMB/s peakRate=%.2fMB/s bucketLimit=%.2fMB tokens=%.0f refCount=%d logInterval=%s)",
		t.name, t.avgRate/bytesPerMB, t.bucketRate/bytesPerMB, t.bucketLimit/bytesPerMB,
		t.tokens, t.refCount, t.logInterval)
}
