package storage

import "time"

const (
	BaseCurrency = "USD"

	// RatesEnvelopeKey is where the rates envelope is persisted.
	RatesEnvelopeKey = "global_exchange_rates"

	// Freshness is decided by the envelope timestamp, not by the key expiry.
	defaultRetention = 24 * time.Hour
)
