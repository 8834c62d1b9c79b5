package service

import "time"

// Setting keys read by the service
const (
	DefaultCurrencyKey       = "DefaultCurrency"
	CurrencyDecimalPlacesKey = "CurrencyDecimalPlaces"
)

const (
	FallbackCurrency      = "EGP"
	DefaultConvertFrom    = "EGP"
	DefaultFractionDigits = 2

	DefaultRatesURL    = "https://api.exchangerate-api.com/v4/latest/USD"
	DefaultRatesTTL    = 30 * time.Minute
	DefaultHTTPTimeout = 10 * time.Second
)

// State of the settings service. Loading moves to Ready once and stays there.
type State int32

const (
	StateLoading State = iota
	StateReady
)

func (s State) String() string {
	switch s {
	case StateLoading:
		return "loading"
	case StateReady:
		return "ready"
	default:
		return "unknown"
	}
}
