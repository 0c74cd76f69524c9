// Copyright © 2025-2026 Prabhjot Singh Sethi, All Rights reserved
// Author: Prabhjot Singh Sethi <prabhjot.sethi@gmail.com>

package throttler

import (
	"context"
	"io"
	"math"
	"net/http"
)

type ThrottledWriter interface {
	io.WriteCloser
	Transfer() *Transfer
}

type ThrottledHTTPResponseWriter interface {
	http.ResponseWriter
	Close() error
	Transfer() *Transfer
}

// chunkSize caps n at the bucket limit of t, without a bucket limit all
// of n is used.
func chunkSize(t *Throttler, n int) int {
	limit := t.BucketLimitBytes()
	if limit < 1 || limit >= math.MaxInt32 {
		return n
	}
	return min(n, int(limit))
}

// writeChunks writes p in chunks no larger than the bucket limit and
// reports each chunk to the transfer once written. flush, if not nil, is
// invoked after every chunk.
func writeChunks(ctx context.Context, tr *Transfer, w io.Writer, p []byte, flush func()) (int, error) {
	written := 0
	for written < len(p) {
		chunk := chunkSize(tr.thr, len(p)-written)
		n, err := w.Write(p[written : written+chunk])
		written += n
		if n > 0 {
			if flush != nil {
				flush()
			}
			if lerr := tr.LimitContext(ctx, float64(n)); lerr != nil && err == nil {
				err = lerr
			}
		}
		if err != nil {
			return written, err
		}
		if n < chunk {
			return written, io.ErrShortWrite
		}
	}
	return written, nil
}

type tWriter struct {
	ctx context.Context
	w   io.WriteCloser
	tr  *Transfer
}

func (w *tWriter) Write(p []byte) (int, error) {
	return writeChunks(w.ctx, w.tr, w.w, p, nil)
}

func (w *tWriter) Transfer() *Transfer {
	return w.tr
}

func (w *tWriter) Close() error {
	_ = w.tr.Close()
	return w.w.Close()
}

type tHTTPWriter struct {
	ctx context.Context
	w   http.ResponseWriter
	tr  *Transfer
}

func (w *tHTTPWriter) Header() http.Header {
	return w.w.Header()
}

func (w *tHTTPWriter) WriteHeader(code int) {
	w.w.WriteHeader(code)
}

// Write implements http.ResponseWriter.Write with throttling, flushing
// after every chunk to keep streaming latency low.
func (w *tHTTPWriter) Write(p []byte) (int, error) {
	var flush func()
	if f, ok := w.w.(http.Flusher); ok {
		flush = f.Flush
	}
	return writeChunks(w.ctx, w.tr, w.w, p, flush)
}

func (w *tHTTPWriter) Transfer() *Transfer {
	return w.tr
}

func (w *tHTTPWriter) Close() error {
	return w.tr.Close()
}
