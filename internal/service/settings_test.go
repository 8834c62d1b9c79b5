package service

import (
	"context"
	"math"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-kit/log"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/omerorhan/erp-settings-service/internal/metrics"
	"github.com/omerorhan/erp-settings-service/internal/storage"
)

func setting(key, value string) storage.SystemSetting {
	return storage.SystemSetting{SettingKey: key, SettingValue: value}
}

func newTestService(t *testing.T, rf RateFetcher, sf SettingsFetcher, extra ...ServiceOption) *SettingsService {
	t.Helper()
	opts := []ServiceOption{
		WithRateFetcher(rf),
		WithSettingsFetcher(sf),
		WithStore(storage.NewMemoryStore()),
		WithLogger(log.NewNopLogger()),
		WithClock(newFakeClock().Now),
	}
	s, err := NewSettingsService(append(opts, extra...)...)
	require.NoError(t, err)
	t.Cleanup(s.Stop)
	return s
}

func TestSettingsService_InitializeLoadsConcurrently(t *testing.T) {
	rf := &fakeRateFetcher{
		rates:   storage.Rates{"USD": 1, "EGP": 50, "SAR": 3.75},
		started: make(chan struct{}, 1),
		release: make(chan struct{}),
	}
	sf := &fakeSettingsFetcher{
		settings: []storage.SystemSetting{setting("DefaultCurrency", "SAR")},
		started:  make(chan struct{}, 1),
		release:  make(chan struct{}),
	}
	s := newTestService(t, rf, sf)
	assert.Equal(t, StateLoading, s.State())

	done := make(chan struct{})
	go func() {
		s.Initialize(context.Background())
		close(done)
	}()

	// both requests are in flight before either is released
	<-rf.started
	<-sf.started
	assert.False(t, s.IsReady())
	close(rf.release)
	close(sf.release)
	<-done

	assert.Equal(t, StateReady, s.State())
	assert.Equal(t, "ready", s.State().String())
	assert.Equal(t, "SAR", s.DefaultCurrency())
	assert.Equal(t, 3.75, s.Rates()["SAR"])
}

func TestSettingsService_DefaultCurrency(t *testing.T) {
	tests := []struct {
		name     string
		settings []storage.SystemSetting
		want     string
	}{
		{"missing", nil, "EGP"},
		{"present", []storage.SystemSetting{setting("DefaultCurrency", "USD")}, "USD"},
		{"present but empty", []storage.SystemSetting{setting("DefaultCurrency", "")}, ""},
		{"first wins", []storage.SystemSetting{setting("DefaultCurrency", "SAR"), setting("DefaultCurrency", "USD")}, "SAR"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newTestService(t, &fakeRateFetcher{}, &fakeSettingsFetcher{settings: tt.settings})
			s.Initialize(context.Background())
			assert.Equal(t, tt.want, s.DefaultCurrency())
		})
	}
}

func TestSettingsService_GetCurrencyLabel(t *testing.T) {
	s := newTestService(t, &fakeRateFetcher{},
		&fakeSettingsFetcher{settings: []storage.SystemSetting{setting("DefaultCurrency", "SAR")}})
	s.Initialize(context.Background())

	assert.Equal(t, "ر.س", s.GetCurrencyLabel(""))
	assert.Equal(t, "ج.م", s.GetCurrencyLabel("EGP"))
	assert.Equal(t, "$", s.GetCurrencyLabel("USD"))
	assert.Equal(t, "GBP", s.GetCurrencyLabel("GBP"))
}

func TestSettingsService_ConvertAmount(t *testing.T) {
	rf := &fakeRateFetcher{rates: storage.Rates{"USD": 1, "EGP": 50, "SAR": 3.75}}
	sf := &fakeSettingsFetcher{settings: []storage.SystemSetting{setting("DefaultCurrency", "SAR")}}
	s := newTestService(t, rf, sf)
	s.Initialize(context.Background())

	assert.Equal(t, 0.0, s.ConvertAmount(0, "USD"))
	assert.Equal(t, 0.0, s.ConvertAmount(math.NaN(), "USD"))
	assert.InDelta(t, 75.0, s.ConvertAmount(1000, ""), 1e-9)
	assert.InDelta(t, 75.0, s.ConvertAmount(1000, "EGP"), 1e-9)
	assert.InDelta(t, 37.5, s.ConvertAmount(10, "USD"), 1e-9)
	assert.Equal(t, 12.0, s.ConvertAmount(12, "SAR"))
	// no rate for the source currency
	assert.Equal(t, 42.0, s.ConvertAmount(42, "JPY"))
}

func TestSettingsService_ConvertAmountWithoutRates(t *testing.T) {
	s := newTestService(t, &fakeRateFetcher{err: errBackendDown},
		&fakeSettingsFetcher{settings: []storage.SystemSetting{setting("DefaultCurrency", "USD")}})
	s.Initialize(context.Background())

	assert.Equal(t, 500.0, s.ConvertAmount(500, "EGP"))
	assert.Equal(t, -3.5, s.ConvertAmount(-3.5, "SAR"))
}

func TestSettingsService_FormatAmount(t *testing.T) {
	tests := []struct {
		name     string
		settings []storage.SystemSetting
		amount   float64
		code     string
		want     string
	}{
		{"default digits", nil, 1234.5, "", "1,234.50 ج.م"},
		{"explicit code", nil, 10, "USD", "10.00 $"},
		{"zero digits", []storage.SystemSetting{setting("CurrencyDecimalPlaces", "0")}, 1234.5, "SAR", "1,235 ر.س"},
		{"three digits", []storage.SystemSetting{setting("CurrencyDecimalPlaces", "3")}, 1.5, "USD", "1.500 $"},
		{"invalid digits", []storage.SystemSetting{setting("CurrencyDecimalPlaces", "two")}, 2, "USD", "2.00 $"},
		{"negative digits", []storage.SystemSetting{setting("CurrencyDecimalPlaces", "-1")}, 2, "USD", "2.00 $"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newTestService(t, &fakeRateFetcher{}, &fakeSettingsFetcher{settings: tt.settings})
			s.Initialize(context.Background())
			assert.Equal(t, tt.want, s.FormatAmount(tt.amount, tt.code))
		})
	}
}

func TestSettingsService_BothBackendsDown(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := metrics.New(reg)
	s := newTestService(t,
		&fakeRateFetcher{err: errBackendDown},
		&fakeSettingsFetcher{err: errBackendDown},
		WithMetrics(m),
	)
	s.Initialize(context.Background())

	assert.True(t, s.IsReady())
	assert.Equal(t, "EGP", s.DefaultCurrency())
	assert.Empty(t, s.Settings())
	assert.Empty(t, s.Rates())
	_, ok := s.GetSetting("DefaultCurrency")
	assert.False(t, ok)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.SettingsLoadFailures))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.RatesFetchTotal.WithLabelValues("error")))
}

func TestSettingsService_InitializeIsIdempotent(t *testing.T) {
	rf := &fakeRateFetcher{rates: storage.Rates{"EGP": 50}}
	sf := &fakeSettingsFetcher{}
	s := newTestService(t, rf, sf)

	select {
	case <-s.Ready():
		t.Fatal("ready before initialize")
	default:
	}

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			s.Initialize(context.Background())
		}()
	}
	wg.Wait()
	s.Initialize(context.Background())

	select {
	case <-s.Ready():
	default:
		t.Fatal("ready channel not closed")
	}
	assert.Equal(t, int32(1), rf.calls.Load())
	assert.Equal(t, int32(1), sf.calls.Load())
}

func TestSettingsService_SnapshotAndSettings(t *testing.T) {
	clock := newFakeClock()
	sf := &fakeSettingsFetcher{settings: []storage.SystemSetting{
		{ID: 1, SettingKey: "CompanyName", SettingValue: "Acme"},
		{ID: 2, SettingKey: "DefaultCurrency", SettingValue: "USD"},
	}}
	s := newTestService(t, &fakeRateFetcher{rates: storage.Rates{"USD": 1, "EGP": 50}}, sf, WithClock(clock.Now))
	s.Initialize(context.Background())

	snap := s.Snapshot()
	assert.Equal(t, 2, snap.RatesCount)
	assert.Equal(t, 2, snap.SettingsCount)
	assert.Equal(t, clock.Now(), snap.RatesLastRefresh)
	assert.Equal(t, clock.Now(), snap.SettingsLastRefresh)

	list := s.Settings()
	require.Len(t, list, 2)
	list[0].SettingValue = "mutated"
	v, ok := s.GetSetting("CompanyName")
	assert.True(t, ok)
	assert.Equal(t, "Acme", v)
}

func TestSettingsService_RefreshScheduler(t *testing.T) {
	clock := newFakeClock()
	rf := &fakeRateFetcher{rates: storage.Rates{"EGP": 50}}
	s := newTestService(t, rf, &fakeSettingsFetcher{},
		WithClock(clock.Now),
		WithRatesTTL(time.Minute),
		WithRatesRefreshInterval(10*time.Millisecond),
	)
	s.Initialize(context.Background())
	assert.Equal(t, 50.0, s.Rates()["EGP"])

	// provider outage with a stale envelope keeps the last known rates
	rf.set(nil, errBackendDown)
	clock.Advance(2 * time.Minute)
	require.Eventually(t, func() bool { return rf.calls.Load() >= 2 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, 50.0, s.Rates()["EGP"])

	rf.set(storage.Rates{"EGP": 51}, nil)
	require.Eventually(t, func() bool { return s.Rates()["EGP"] == 51 }, time.Second, 5*time.Millisecond)
}

func TestSettingsService_StopIsIdempotent(t *testing.T) {
	s := newTestService(t, &fakeRateFetcher{}, &fakeSettingsFetcher{},
		WithRatesRefreshInterval(time.Hour))
	s.Initialize(context.Background())

	s.Stop()
	s.Stop()
}

func TestNewSettingsService_Errors(t *testing.T) {
	_, err := NewSettingsService(WithSettingsFetcher(&fakeSettingsFetcher{}), WithRatesTTL(0))
	assert.ErrorContains(t, err, "rates ttl must be positive")

	_, err = NewSettingsService()
	assert.ErrorContains(t, err, "settings url is required")

	_, err = NewSettingsService(WithSettingsURL("http://localhost/api/settings", ""), WithRedisConfig("redis://"))
	assert.Error(t, err)
}

func TestNewSettingsService_RedisStore(t *testing.T) {
	mr := miniredis.RunT(t)
	rf := &fakeRateFetcher{rates: storage.Rates{"EGP": 50}}

	s, err := NewSettingsService(
		WithRedisConfig("redis://"+mr.Addr()),
		WithRateFetcher(rf),
		WithSettingsFetcher(&fakeSettingsFetcher{}),
	)
	require.NoError(t, err)
	s.Initialize(context.Background())
	s.Stop()

	assert.True(t, mr.Exists(storage.RatesEnvelopeKey))

	// a second instance finds the fresh envelope and skips the provider
	s2, err := NewSettingsService(
		WithRedisConfig("redis://"+mr.Addr()),
		WithRateFetcher(rf),
		WithSettingsFetcher(&fakeSettingsFetcher{}),
	)
	require.NoError(t, err)
	defer s2.Stop()
	s2.Initialize(context.Background())

	assert.Equal(t, int32(1), rf.calls.Load())
	assert.Equal(t, 50.0, s2.Rates()["EGP"])
}

func TestSettingsService_StopWaitsForLoad(t *testing.T) {
	store := newRecordingStore()
	rf := &fakeRateFetcher{
		rates:   storage.Rates{"EGP": 50},
		started: make(chan struct{}, 1),
		release: make(chan struct{}),
	}
	sf := &fakeSettingsFetcher{started: make(chan struct{}, 1), release: make(chan struct{})}
	s := newTestService(t, rf, sf, WithStore(store), WithRatesRefreshInterval(time.Millisecond))

	initDone := make(chan struct{})
	go func() {
		s.Initialize(context.Background())
		close(initDone)
	}()
	<-rf.started
	<-sf.started

	stopped := make(chan struct{})
	go func() {
		s.Stop()
		close(stopped)
	}()

	select {
	case <-stopped:
		t.Fatal("Stop returned while load was running")
	case <-time.After(20 * time.Millisecond):
	}
	assert.False(t, store.closed.Load())

	close(rf.release)
	close(sf.release)
	<-stopped
	<-initDone

	assert.True(t, store.closed.Load())
	assert.Equal(t, int32(0), store.lateWrites.Load())

	// no scheduler survives Stop
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, int32(1), rf.calls.Load())
}

func TestSettingsService_InitializeAfterStop(t *testing.T) {
	rf := &fakeRateFetcher{}
	sf := &fakeSettingsFetcher{}
	s := newTestService(t, rf, sf)

	s.Stop()
	s.Initialize(context.Background())

	assert.False(t, s.IsReady())
	assert.Equal(t, int32(0), rf.calls.Load())
	assert.Equal(t, int32(0), sf.calls.Load())
}

func TestSettingsService_StoredZeroRatesNeverYieldNaN(t *testing.T) {
	clock := newFakeClock()
	store := storage.NewMemoryStore()
	store.SetRaw(storage.RatesEnvelopeKey, []byte(`{"rates":{"EGP":0,"SAR":0},"timestamp":`+
		strconv.FormatInt(clock.Now().UnixMilli(), 10)+`}`))

	rf := &fakeRateFetcher{err: errBackendDown}
	sf := &fakeSettingsFetcher{settings: []storage.SystemSetting{setting("DefaultCurrency", "SAR")}}
	s := newTestService(t, rf, sf, WithStore(store), WithClock(clock.Now))
	s.Initialize(context.Background())

	got := s.ConvertAmount(100, "EGP")
	assert.False(t, math.IsNaN(got))
	assert.Equal(t, 100.0, got)
	assert.Equal(t, int32(1), rf.calls.Load())
}
