package service

import (
	"context"
	"sync"
	"time"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
	"golang.org/x/sync/singleflight"

	"github.com/omerorhan/erp-settings-service/internal/metrics"
	"github.com/omerorhan/erp-settings-service/internal/storage"
)

// RateCache serves the rate table from the store while it is fresh and
// falls back to the provider when it is not.
type RateCache struct {
	store   storage.Cache
	fetcher RateFetcher
	ttl     time.Duration
	now     func() time.Time
	logger  log.Logger
	metrics *metrics.Metrics

	// group collapses concurrent refreshes into one provider call
	group singleflight.Group
	// flights counts callers whose flight has not delivered yet
	flights sync.WaitGroup
}

// NewRateCache wires a RateCache. A nil now defaults to time.Now.
func NewRateCache(store storage.Cache, fetcher RateFetcher, ttl time.Duration, logger log.Logger, m *metrics.Metrics, now func() time.Time) *RateCache {
	if now == nil {
		now = time.Now
	}
	if logger == nil {
		logger = log.NewNopLogger()
	}
	if m == nil {
		m = metrics.Nop()
	}
	return &RateCache{
		store:   store,
		fetcher: fetcher,
		ttl:     ttl,
		now:     now,
		logger:  logger,
		metrics: m,
	}
}

// GetRates never fails: when neither the store nor the provider can supply
// rates it returns an empty table, which converts every amount as-is.
// A caller whose ctx ends while waiting gets an empty table; the shared
// fetch keeps running for the others.
func (rc *RateCache) GetRates(ctx context.Context) storage.Rates {
	if rates, ok := rc.cached(); ok {
		rc.metrics.RatesCacheHits.Inc()
		return rates
	}
	rc.metrics.RatesCacheMisses.Inc()

	flightCtx := context.WithoutCancel(ctx)
	rc.flights.Add(1)
	ch := rc.group.DoChan("rates", func() (interface{}, error) {
		// a flight that just finished may have stored fresh rates
		if rates, ok := rc.cached(); ok {
			return rates, nil
		}
		return rc.refresh(flightCtx), nil
	})

	select {
	case res := <-ch:
		rc.flights.Done()
		return res.Val.(storage.Rates).Clone()
	case <-ctx.Done():
		go func() {
			<-ch
			rc.flights.Done()
		}()
		level.Warn(rc.logger).Log("msg", "gave up waiting for exchange rates", "err", ctx.Err())
		return storage.Rates{}
	}
}

// Wait blocks until every refresh started by GetRates has finished.
func (rc *RateCache) Wait() {
	rc.flights.Wait()
}

func (rc *RateCache) cached() (storage.Rates, bool) {
	envelope, err := rc.store.GetRatesEnvelope()
	if err != nil {
		level.Warn(rc.logger).Log("msg", "unreadable rates envelope, treating as miss", "err", err)
		return nil, false
	}
	if envelope == nil {
		return nil, false
	}
	if !envelope.Fresh(rc.now(), rc.ttl) {
		level.Debug(rc.logger).Log("msg", "rates envelope is stale", "stored_at", envelope.StoredAt())
		return nil, false
	}
	return envelope.Rates, true
}

func (rc *RateCache) refresh(ctx context.Context) storage.Rates {
	begin := time.Now()
	rates, err := rc.fetcher.FetchRates(ctx)
	rc.metrics.RatesFetchDuration.Observe(time.Since(begin).Seconds())
	if err != nil {
		rc.metrics.RatesFetchTotal.WithLabelValues("error").Inc()
		level.Error(rc.logger).Log("msg", "failed to fetch exchange rates", "err", err)
		return storage.Rates{}
	}
	rc.metrics.RatesFetchTotal.WithLabelValues("ok").Inc()
	if len(rates) == 0 {
		level.Warn(rc.logger).Log("msg", "provider returned no usable rates, not persisting")
		return storage.Rates{}
	}

	if err := rc.store.SetRatesEnvelope(storage.NewRatesEnvelope(rates, rc.now())); err != nil {
		rc.metrics.RatesPersistErrors.Inc()
		level.Warn(rc.logger).Log("msg", "failed to persist rates envelope", "err", err)
	}

	level.Info(rc.logger).Log("msg", "exchange rates refreshed", "count", len(rates))
	return rates
}
