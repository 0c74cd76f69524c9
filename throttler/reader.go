// Copyright © 2025-2026 Prabhjot Singh Sethi, All Rights reserved
// Author: Prabhjot Singh Sethi <prabhjot.sethi@gmail.com>

package throttler

import (
	"context"
	"io"
)

type ThrottledReader interface {
	io.ReadCloser
	Transfer() *Transfer
}

type tReader struct {
	ctx context.Context
	rc  io.ReadCloser
	tr  *Transfer
}

// Read implements io.Reader with throttling.
//
// The read happens first and the bytes actually read are reported to the
// throttler afterwards, so partial reads are metered exactly. Reads are
// capped at the bucket limit to keep single bursts within what the bucket
// can absorb. If the wait is cancelled, the bytes read are still returned
// along with the context error.
func (r *tReader) Read(p []byte) (int, error) {
	n, err := r.rc.Read(p[:chunkSize(r.tr.thr, len(p))])
	if n > 0 {
		if lerr := r.tr.LimitContext(r.ctx, float64(n)); lerr != nil && err == nil {
			err = lerr
		}
	}
	return n, err
}

func (r *tReader) Transfer() *Transfer {
	return r.tr
}

func (r *tReader) Close() error {
	_ = r.tr.Close()
	return r.rc.Close()
}
