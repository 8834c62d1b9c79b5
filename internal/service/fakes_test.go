package service

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/omerorhan/erp-settings-service/internal/storage"
)

var errBackendDown = errors.New("backend down")

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{t: time.Date(2026, 10, 15, 9, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

type fakeRateFetcher struct {
	calls   atomic.Int32
	mu      sync.Mutex
	rates   storage.Rates
	err     error
	started chan struct{}
	release chan struct{}
}

func (f *fakeRateFetcher) FetchRates(ctx context.Context) (storage.Rates, error) {
	f.calls.Add(1)
	if f.started != nil {
		f.started <- struct{}{}
	}
	if f.release != nil {
		<-f.release
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	return f.rates.Clone(), nil
}

func (f *fakeRateFetcher) set(rates storage.Rates, err error) {
	f.mu.Lock()
	f.rates, f.err = rates, err
	f.mu.Unlock()
}

type fakeSettingsFetcher struct {
	calls    atomic.Int32
	settings []storage.SystemSetting
	err      error
	started  chan struct{}
	release  chan struct{}
}

func (f *fakeSettingsFetcher) FetchSettings(ctx context.Context) ([]storage.SystemSetting, error) {
	f.calls.Add(1)
	if f.started != nil {
		f.started <- struct{}{}
	}
	if f.release != nil {
		<-f.release
	}
	if f.err != nil {
		return nil, f.err
	}
	return f.settings, nil
}

// failingStore reads like an empty store and refuses writes.
type failingStore struct {
	writes atomic.Int32
}

func (s *failingStore) SetRatesEnvelope(*storage.RatesEnvelope) error {
	s.writes.Add(1)
	return errors.New("read-only")
}

func (s *failingStore) GetRatesEnvelope() (*storage.RatesEnvelope, error) {
	return nil, errors.New("connection reset")
}

func (s *failingStore) Close() error { return nil }

// recordingStore notes writes that arrive after Close.
type recordingStore struct {
	*storage.MemoryStore
	closed     atomic.Bool
	lateWrites atomic.Int32
}

func newRecordingStore() *recordingStore {
	return &recordingStore{MemoryStore: storage.NewMemoryStore()}
}

func (s *recordingStore) SetRatesEnvelope(env *storage.RatesEnvelope) error {
	if s.closed.Load() {
		s.lateWrites.Add(1)
	}
	return s.MemoryStore.SetRatesEnvelope(env)
}

func (s *recordingStore) Close() error {
	s.closed.Store(true)
	return nil
}
