// Copyright © 2025-2026 Prabhjot Singh Sethi, All Rights reserved
// Author: Prabhjot Singh Sethi <prabhjot.sethi@gmail.com>

package throttler

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
)

// Transfer is the registration of a single caller with a Throttler. It
// keeps the caller's own byte count and releases the registration exactly
// once on Close.
type Transfer struct {
	id     uuid.UUID
	thr    *Throttler
	start  time.Time
	closed atomic.Bool

	mu    sync.Mutex
	bytes float64
}

// NewTransfer registers a new transfer with the throttler.
func (t *Throttler) NewTransfer() *Transfer {
	t.RegisterTransfer()
	return &Transfer{
		id:    uuid.New(),
		thr:   t,
		start: t.clock(),
	}
}

// ID returns the unique identifier of the transfer.
func (tr *Transfer) ID() string {
	return tr.id.String()
}

// Throttler returns the throttler the transfer is registered with.
func (tr *Transfer) Throttler() *Throttler {
	return tr.thr
}

// Bytes returns the progress reported through this transfer.
func (tr *Transfer) Bytes() float64 {
	tr.mu.Lock()
	defer tr.mu.Unlock()
	return tr.bytes
}

// Elapsed returns the time since the transfer was registered.
func (tr *Transfer) Elapsed() time.Duration {
	return max(0, tr.thr.clock().Sub(tr.start))
}

// Limit reports progress and blocks as required by the throttler.
func (tr *Transfer) Limit(deltaProgress float64) {
	_ = tr.LimitContext(context.Background(), deltaProgress)
}

// LimitContext reports progress and waits as required by the throttler,
// returning early with the context error on cancellation.
func (tr *Transfer) LimitContext(ctx context.Context, deltaProgress float64) error {
	if finiteProgress(deltaProgress) {
		tr.mu.Lock()
		tr.bytes += deltaProgress
		tr.mu.Unlock()
	}
	return tr.thr.LimitContext(ctx, deltaProgress)
}

// Close deregisters the transfer, calling it again is a no-op.
func (tr *Transfer) Close() error {
	if !tr.closed.CompareAndSwap(false, true) {
		return nil
	}
	return tr.thr.DeRegisterTransfer()
}
