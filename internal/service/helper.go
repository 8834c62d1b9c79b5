package service

import (
	"math"
	"math/rand"
	"strings"
	"time"
)

func parseBasicAuthPair(auth string) (username, password string, ok bool) {
	if auth == "" {
		return "", "", false
	}
	parts := strings.SplitN(auth, ":", 2)
	if len(parts) != 2 {
		return "", "", false
	}
	return parts[0], parts[1], true
}

// addJitter spreads duration by ±jitterPercent (0.1 = ±10%) so that several
// instances sharing one store don't refresh in lockstep.
func addJitter(duration time.Duration, jitterPercent float64) time.Duration {
	if jitterPercent <= 0 {
		return duration
	}

	jitterRange := float64(duration) * jitterPercent
	jitter := (rand.Float64() - 0.5) * 2 * jitterRange

	result := time.Duration(float64(duration) + jitter)
	if result <= 0 {
		result = duration / 2
	}

	return result
}

// isFalsyAmount reports amounts that are treated as "nothing to convert".
func isFalsyAmount(amount float64) bool {
	return amount == 0 || math.IsNaN(amount)
}

func isUsableRate(rate float64) bool {
	return rate > 0 && !math.IsInf(rate, 0)
}

func truncate(b []byte, n int) string {
	if len(b) <= n {
		return string(b)
	}
	return string(b[:n]) + "..."
}
