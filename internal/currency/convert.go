// Package currency converts and labels monetary amounts against a
// USD-anchored rate table.
package currency

import (
	"github.com/omerorhan/erp-settings-service/internal/storage"
)

// Result is the outcome of a conversion. Converted is false when a rate was
// missing and Value is the unconverted amount.
type Result struct {
	Value     float64
	Converted bool
}

// ConvertResult converts amount through the base currency.
func ConvertResult(amount float64, from, to string, rates storage.Rates) Result {
	if from == to {
		return Result{Value: amount, Converted: true}
	}

	fromRate, ok := rateOf(from, rates)
	if !ok {
		return Result{Value: amount}
	}
	toRate, ok := rateOf(to, rates)
	if !ok {
		return Result{Value: amount}
	}

	return Result{Value: amount / fromRate * toRate, Converted: true}
}

// Convert is ConvertResult without the flag. An unknown currency or an empty
// table yields amount unchanged, so a missing rate is indistinguishable from
// a 1:1 rate for callers that only look at the number.
func Convert(amount float64, from, to string, rates storage.Rates) float64 {
	return ConvertResult(amount, from, to, rates).Value
}

func rateOf(code string, rates storage.Rates) (float64, bool) {
	if code == storage.BaseCurrency {
		return 1, true
	}
	r, ok := rates[code]
	return r, ok
}
