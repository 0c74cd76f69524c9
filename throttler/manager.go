// Copyright © 2025-2026 Prabhjot Singh Sethi, All Rights reserved
// Author: Prabhjot Singh Sethi <prabhjot.sethi@gmail.com>

package throttler

import (
	"context"
	"io"
	"net/http"
	"sort"
	"sync"

	"github.com/go-core-stack/throttler/errors"
)

// Manager keeps the throttlers of concurrent transfer sessions, one
// throttler per session name.
type Manager struct {
	mu         sync.Mutex            // protects the registry, never held while throttling
	opts       []Option              // applied to every throttler created by the manager
	throttlers map[string]*Throttler // registry of all session throttlers
}

// NewManager constructs a Manager, opts are applied to every throttler it
// creates.
func NewManager(opts ...Option) *Manager {
	return &Manager{
		opts:       opts,
		throttlers: make(map[string]*Throttler),
	}
}

// NewThrottler creates the throttler of session name from raw settings,
// normalized as in MakeThrottler.
func (m *Manager) NewThrottler(name string, avgRate, peakRate, bucketLimit float64, logTimeMillis int64) (*Throttler, error) {
	if name == "" {
		return nil, errors.Wrap(errors.InvalidArgument, "throttler name must not be empty")
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.throttlers[name]; ok {
		return nil, errors.Wrapf(errors.AlreadyExists, "throttler %q, already exists", name)
	}
	opts := append(append([]Option{}, m.opts...), WithName(name))
	t := MakeThrottler(avgRate, peakRate, bucketLimit, logTimeMillis, opts...)
	m.throttlers[name] = t
	return t, nil
}

// Get returns the throttler of session name.
func (m *Manager) Get(name string) (*Throttler, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.throttlers[name]
	if !ok {
		return nil, errors.Wrapf(errors.NotFound, "throttler %q not found", name)
	}
	return t, nil
}

// Delete removes the throttler of session name, it fails while transfers
// are still registered with it.
func (m *Manager) Delete(name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.throttlers[name]
	if !ok {
		return errors.Wrapf(errors.NotFound, "throttler %q not found", name)
	}
	if n := t.RefCount(); n > 0 {
		return errors.Wrapf(errors.PreconditionFailed, "throttler %q still has %d registered transfers", name, n)
	}
	delete(m.throttlers, name)
	return nil
}

// Names returns the sorted session names.
func (m *Manager) Names() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	names := make([]string, 0, len(m.throttlers))
	for name := range m.throttlers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// WrapReader meters every byte read from rc through a new transfer of
// session name. Closing the reader releases the transfer.
func (m *Manager) WrapReader(ctx context.Context, name string, rc io.ReadCloser) (ThrottledReader, error) {
	t, err := m.Get(name)
	if err != nil {
		return nil, err
	}
	return &tReader{
		ctx: ctx,
		rc:  rc,
		tr:  t.NewTransfer(),
	}, nil
}

// WrapWriter meters every byte written to w through a new transfer of
// session name. Closing the writer releases the transfer and closes w.
func (m *Manager) WrapWriter(ctx context.Context, name string, w io.WriteCloser) (ThrottledWriter, error) {
	t, err := m.Get(name)
	if err != nil {
		return nil, err
	}
	return &tWriter{
		ctx: ctx,
		w:   w,
		tr:  t.NewTransfer(),
	}, nil
}

// WrapHTTPResponseWriter meters a response body through a new transfer of
// session name. Closing the writer releases the transfer.
func (m *Manager) WrapHTTPResponseWriter(ctx context.Context, name string, w http.ResponseWriter) (ThrottledHTTPResponseWriter, error) {
	t, err := m.Get(name)
	if err != nil {
		return nil, err
	}
	return &tHTTPWriter{
		ctx: ctx,
		w:   w,
		tr:  t.NewTransfer(),
	}, nil
}
