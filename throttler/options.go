// Copyright © 2025-2026 Prabhjot Singh Sethi, All Rights reserved
// Author: Prabhjot Singh Sethi <prabhjot.sethi@gmail.com>

package throttler

import (
	"math"
	"time"

	"go.uber.org/zap"
)

const (
	// peak rate is raised to this multiple of the average rate when it
	// is unset or lower than the average rate
	peakMultiplier = 1.2

	// in auto mode the bucket holds the data sent at peak rate
	// during bucketTimeSeconds, bucketMultiplier times over
	bucketTimeSeconds = 0.25
	bucketMultiplier  = 2
)

// Option customizes a Throttler at construction time.
type Option func(*Throttler)

// WithLogger sets the logger used for periodic stats and misuse warnings.
func WithLogger(logger *zap.Logger) Option {
	return func(t *Throttler) {
		if logger != nil {
			t.logger = logger
		}
	}
}

// WithName labels the throttler in logs and in String().
func WithName(name string) Option {
	return func(t *Throttler) {
		t.name = name
	}
}

// WithClock replaces the time source. The clock must be monotonic;
// time.Now is used by default.
func WithClock(clock func() time.Time) Option {
	return func(t *Throttler) {
		if clock != nil {
			t.clock = clock
		}
	}
}

// ConfigureOptions normalizes a possibly inconsistent set of rates into a
// self consistent triple:
//
//   - a non positive average rate disables throttling altogether
//   - a peak rate below the average rate is raised to 1.2 times the average
//   - a non positive bucket limit is sized to hold two quarter-second
//     bursts at the peak rate
//
// The result never carries negative values.
func ConfigureOptions(avgRate, peakRate, bucketLimit float64) (float64, float64, float64) {
	if !(avgRate > 0) {
		return 0, 0, 0
	}
	if !(peakRate >= avgRate) {
		peakRate = peakMultiplier * avgRate
	}
	if !(bucketLimit > 0) {
		bucketLimit = bucketMultiplier * bucketTimeSeconds * peakRate
	}
	return avgRate, peakRate, bucketLimit
}

// MakeThrottler is the entry point for building a throttler from raw,
// possibly partial settings. Rates are normalized with ConfigureOptions,
// a non positive logTimeMillis disables periodic logging.
func MakeThrottler(avgRate, peakRate, bucketLimit float64, logTimeMillis int64, opts ...Option) *Throttler {
	avg, peak, bucket := ConfigureOptions(avgRate, peakRate, bucketLimit)
	t := NewThrottler(avg, peak, bucket, time.Duration(logTimeMillis)*time.Millisecond, opts...)
	switch {
	case avg == 0 && (peakRate > 0 || bucketLimit > 0):
		t.logger.Info("average rate not set, throttling disabled",
			zap.Float64("peak_rate", peakRate),
			zap.Float64("bucket_limit", bucketLimit))
	case peakRate > 0 && peak != peakRate:
		t.logger.Warn("peak rate lower than average rate, raising it",
			zap.Float64("avg_rate", avg),
			zap.Float64("requested_peak_rate", peakRate),
			zap.Float64("peak_rate", peak))
	}
	return t
}

// finiteProgress reports whether v is a usable amount of progress, NaN
// and infinities carry none.
func finiteProgress(v float64) bool {
	return v > 0 && !math.IsInf(v, 1)
}

func nonNegative(v float64) float64 {
	if !(v > 0) {
		return 0
	}
	return v
}

// seconds converts a non negative amount of seconds to a Duration,
// saturating instead of overflowing.
func seconds(s float64) time.Duration {
	if !(s > 0) {
		return 0
	}
	d := s * float64(time.Second)
	if d >= math.MaxInt64 {
		return time.Duration(math.MaxInt64)
	}
	return time.Duration(d)
}
