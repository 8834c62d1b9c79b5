package storage

import (
	"sync"
	"time"
)

type (
	ratesCache struct {
		table         Rates
		lastRefreshed time.Time
	}
	settingsCache struct {
		list          []SystemSetting
		byKey         map[string]string
		lastRefreshed time.Time
	}
)

// MemoryCache holds the rates and settings the application reads from.
// It is safe for concurrent use.
type MemoryCache struct {
	mu       sync.RWMutex
	rates    ratesCache
	settings settingsCache
}

// NewMemoryCache creates an empty in-memory cache
func NewMemoryCache() *MemoryCache {
	return &MemoryCache{
		rates: ratesCache{table: Rates{}},
		settings: settingsCache{
			byKey: make(map[string]string),
		},
	}
}

func (mc *MemoryCache) DumpRates(rates Rates, refreshedAt time.Time) {
	table := rates.Clone()

	mc.mu.Lock()
	mc.rates.table = table
	mc.rates.lastRefreshed = refreshedAt.UTC()
	mc.mu.Unlock()
}

func (mc *MemoryCache) DumpSettings(settings []SystemSetting, refreshedAt time.Time) {
	list := make([]SystemSetting, len(settings))
	copy(list, settings)

	// first occurrence of a key wins
	byKey := make(map[string]string, len(list))
	for _, s := range list {
		if _, ok := byKey[s.SettingKey]; !ok {
			byKey[s.SettingKey] = s.SettingValue
		}
	}

	mc.mu.Lock()
	mc.settings.list = list
	mc.settings.byKey = byKey
	mc.settings.lastRefreshed = refreshedAt.UTC()
	mc.mu.Unlock()
}

// GetSetting returns the value of the first setting named key.
func (mc *MemoryCache) GetSetting(key string) (string, bool) {
	mc.mu.RLock()
	defer mc.mu.RUnlock()
	v, ok := mc.settings.byKey[key]
	return v, ok
}

func (mc *MemoryCache) GetSettings() []SystemSetting {
	mc.mu.RLock()
	defer mc.mu.RUnlock()
	out := make([]SystemSetting, len(mc.settings.list))
	copy(out, mc.settings.list)
	return out
}

// GetRates returns a copy of the held rate table.
func (mc *MemoryCache) GetRates() Rates {
	mc.mu.RLock()
	defer mc.mu.RUnlock()
	return mc.rates.table.Clone()
}

// GetRate returns a single rate without copying the table.
func (mc *MemoryCache) GetRate(code string) (float64, bool) {
	mc.mu.RLock()
	defer mc.mu.RUnlock()
	r, ok := mc.rates.table[code]
	return r, ok
}

func (mc *MemoryCache) GetRatesLastRefresh() time.Time {
	mc.mu.RLock()
	defer mc.mu.RUnlock()
	return mc.rates.lastRefreshed
}

func (mc *MemoryCache) GetSettingsLastRefresh() time.Time {
	mc.mu.RLock()
	defer mc.mu.RUnlock()
	return mc.settings.lastRefreshed
}

func (mc *MemoryCache) Snapshot() SnapshotInfo {
	mc.mu.RLock()
	defer mc.mu.RUnlock()
	return SnapshotInfo{
		RatesCount:          len(mc.rates.table),
		SettingsCount:       len(mc.settings.list),
		RatesLastRefresh:    mc.rates.lastRefreshed,
		SettingsLastRefresh: mc.settings.lastRefreshed,
	}
}
