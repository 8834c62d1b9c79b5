package storage

import (
	"errors"
	"time"
)

var (
	ErrNilEnvelope = errors.New("rates envelope is nil")
	ErrNoRates     = errors.New("rates envelope has no rates")
	ErrInvalidRate = errors.New("rates envelope holds an unusable rate")
)

// Cache persists the exchange-rate envelope between sessions.
// GetRatesEnvelope returns nil, nil when nothing has been stored yet.
type Cache interface {
	SetRatesEnvelope(envelope *RatesEnvelope) error
	GetRatesEnvelope() (*RatesEnvelope, error)
	Close() error
}

type CacheOptions struct {
	Retention time.Duration
}

func DefaultCacheOptions() *CacheOptions {
	return &CacheOptions{
		Retention: defaultRetention,
	}
}
