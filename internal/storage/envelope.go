package storage

import (
	"encoding/json"
	"fmt"
	"math"
	"time"
)

// Timestamped records when a value was stored, in epoch milliseconds.
type Timestamped struct {
	Timestamp int64 `json:"timestamp"`
}

// Stamp returns a Timestamped for now.
func Stamp(now time.Time) Timestamped {
	return Timestamped{Timestamp: now.UnixMilli()}
}

// Fresh reports whether the value is younger than ttl at now.
func (t Timestamped) Fresh(now time.Time, ttl time.Duration) bool {
	return now.UnixMilli()-t.Timestamp < ttl.Milliseconds()
}

// StoredAt converts the timestamp back to a time.Time in UTC.
func (t Timestamped) StoredAt() time.Time {
	return time.UnixMilli(t.Timestamp).UTC()
}

// RatesEnvelope is the unit persisted under the rates key.
type RatesEnvelope struct {
	Rates Rates `json:"rates"`
	Timestamped
}

// NewRatesEnvelope stamps rates with now.
func NewRatesEnvelope(rates Rates, now time.Time) *RatesEnvelope {
	return &RatesEnvelope{
		Rates:       rates,
		Timestamped: Stamp(now),
	}
}

// Validate rejects envelopes that could not have been written by a
// successful fetch: a missing table or a rate that is not positive and finite.
func (e *RatesEnvelope) Validate() error {
	if e.Rates == nil {
		return ErrNoRates
	}
	for code, rate := range e.Rates {
		if !(rate > 0) || math.IsInf(rate, 0) {
			return fmt.Errorf("%w: %s=%v", ErrInvalidRate, code, rate)
		}
	}
	return nil
}

func decodeEnvelope(data []byte) (*RatesEnvelope, error) {
	var envelope RatesEnvelope
	if err := json.Unmarshal(data, &envelope); err != nil {
		return nil, fmt.Errorf("failed to unmarshal rates envelope: %w", err)
	}
	if err := envelope.Validate(); err != nil {
		return nil, err
	}
	return &envelope, nil
}
