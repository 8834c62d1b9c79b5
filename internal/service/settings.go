package service

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"

	"github.com/omerorhan/erp-settings-service/internal/currency"
	"github.com/omerorhan/erp-settings-service/internal/metrics"
	"github.com/omerorhan/erp-settings-service/internal/storage"
)

// SettingsService loads system settings and exchange rates once at startup
// and answers lookups from memory afterwards.
type SettingsService struct {
	store     storage.Cache
	memCache  *storage.MemoryCache
	rateCache *RateCache
	settings  SettingsFetcher
	opts      *ServiceOptions
	logger    log.Logger
	metrics   *metrics.Metrics

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu       sync.Mutex
	stopped  bool
	initOnce sync.Once
	stopOnce sync.Once
	ready    chan struct{}
	state    atomic.Int32
}

// ServiceOptions provides configuration for the settings service
type ServiceOptions struct {
	RedisAddr            string        `json:"redisAddr"`
	RatesURL             string        `json:"ratesUrl"`
	RatesTTL             time.Duration `json:"ratesTtl"`
	RatesRefreshInterval time.Duration `json:"ratesRefreshInterval"`
	SettingsURL          string        `json:"settingsUrl"`
	SettingsBasicAuth    string        `json:"settingsBasicAuth"`
	HTTPTimeout          time.Duration `json:"httpTimeout"`

	Store           storage.Cache    `json:"-"`
	Logger          log.Logger       `json:"-"`
	Metrics         *metrics.Metrics `json:"-"`
	Clock           func() time.Time `json:"-"`
	RateFetcher     RateFetcher      `json:"-"`
	SettingsFetcher SettingsFetcher  `json:"-"`
}

// DefaultServiceOptions returns sensible default options
func DefaultServiceOptions() *ServiceOptions {
	return &ServiceOptions{
		RatesURL:    DefaultRatesURL,
		RatesTTL:    DefaultRatesTTL,
		HTTPTimeout: DefaultHTTPTimeout,
	}
}

// ServiceOption is a function that configures service options
type ServiceOption func(*ServiceOptions)

// WithRedisConfig persists the rates envelope in Redis at addr.
func WithRedisConfig(addr string) ServiceOption {
	return func(opts *ServiceOptions) {
		opts.RedisAddr = addr
	}
}

// WithStore uses store for the rates envelope instead of Redis.
func WithStore(store storage.Cache) ServiceOption {
	return func(opts *ServiceOptions) {
		opts.Store = store
	}
}

func WithRatesURL(url string) ServiceOption {
	return func(opts *ServiceOptions) {
		opts.RatesURL = url
	}
}

func WithRatesTTL(ttl time.Duration) ServiceOption {
	return func(opts *ServiceOptions) {
		opts.RatesTTL = ttl
	}
}

// WithRatesRefreshInterval re-reads rates in the background. Zero disables it.
func WithRatesRefreshInterval(interval time.Duration) ServiceOption {
	return func(opts *ServiceOptions) {
		opts.RatesRefreshInterval = interval
	}
}

// WithSettingsURL sets the settings backend endpoint and optional "user:pass".
func WithSettingsURL(url, auth string) ServiceOption {
	return func(opts *ServiceOptions) {
		opts.SettingsURL = url
		opts.SettingsBasicAuth = auth
	}
}

func WithHTTPTimeout(timeout time.Duration) ServiceOption {
	return func(opts *ServiceOptions) {
		opts.HTTPTimeout = timeout
	}
}

func WithLogger(logger log.Logger) ServiceOption {
	return func(opts *ServiceOptions) {
		opts.Logger = logger
	}
}

func WithMetrics(m *metrics.Metrics) ServiceOption {
	return func(opts *ServiceOptions) {
		opts.Metrics = m
	}
}

func WithClock(now func() time.Time) ServiceOption {
	return func(opts *ServiceOptions) {
		opts.Clock = now
	}
}

func WithRateFetcher(f RateFetcher) ServiceOption {
	return func(opts *ServiceOptions) {
		opts.RateFetcher = f
	}
}

func WithSettingsFetcher(f SettingsFetcher) ServiceOption {
	return func(opts *ServiceOptions) {
		opts.SettingsFetcher = f
	}
}

// NewSettingsService creates a settings service in the Loading state.
// Call Initialize to load data.
func NewSettingsService(options ...ServiceOption) (*SettingsService, error) {
	opts := DefaultServiceOptions()

	// Apply options
	for _, option := range options {
		option(opts)
	}

	if opts.RatesTTL <= 0 {
		return nil, fmt.Errorf("rates ttl must be positive, got %v", opts.RatesTTL)
	}
	if opts.Logger == nil {
		opts.Logger = log.NewNopLogger()
	}
	if opts.Metrics == nil {
		opts.Metrics = metrics.Nop()
	}
	if opts.Clock == nil {
		opts.Clock = time.Now
	}
	logger := opts.Logger

	client := &http.Client{Timeout: opts.HTTPTimeout}

	if opts.SettingsFetcher == nil {
		if opts.SettingsURL == "" {
			return nil, errors.New("settings url is required")
		}
		opts.SettingsFetcher = NewLoggingSettingsFetcher(
			log.With(logger, "component", "settings_backend"),
			NewSettingsClient(opts.SettingsURL, opts.SettingsBasicAuth, client),
		)
	}
	if opts.RateFetcher == nil {
		opts.RateFetcher = NewLoggingRateFetcher(
			log.With(logger, "component", "rate_provider"),
			NewRateProvider(opts.RatesURL, client),
		)
	}

	store := opts.Store
	if store == nil {
		if opts.RedisAddr != "" {
			redisCache, err := storage.NewRedisCache(opts.RedisAddr)
			if err != nil {
				return nil, fmt.Errorf("failed to create Redis cache: %w", err)
			}
			store = redisCache
		} else {
			level.Info(logger).Log("msg", "no redis configured, keeping rates envelope in memory")
			store = storage.NewMemoryStore()
		}
	}

	ctx, cancel := context.WithCancel(context.Background())

	service := &SettingsService{
		store:    store,
		memCache: storage.NewMemoryCache(),
		rateCache: NewRateCache(store, opts.RateFetcher, opts.RatesTTL,
			log.With(logger, "component", "rate_cache"), opts.Metrics, opts.Clock),
		settings: opts.SettingsFetcher,
		opts:     opts,
		logger:   log.With(logger, "component", "settings_service"),
		metrics:  opts.Metrics,
		ctx:      ctx,
		cancel:   cancel,
		ready:    make(chan struct{}),
	}

	return service, nil
}

// Initialize loads settings and rates concurrently and moves the service to
// Ready. It runs once; later calls wait for the first to finish. Failures
// are logged and leave the affected data empty. Stop cancels a load in
// progress, and Initialize after Stop does nothing.
func (s *SettingsService) Initialize(ctx context.Context) {
	s.initOnce.Do(func() {
		s.mu.Lock()
		if s.stopped {
			s.mu.Unlock()
			return
		}
		s.wg.Add(1)
		s.mu.Unlock()
		defer s.wg.Done()

		ctx, cancel := context.WithCancel(ctx)
		defer cancel()
		defer context.AfterFunc(s.ctx, cancel)()

		s.load(ctx)
		s.startScheduler()
	})
}

func (s *SettingsService) load(ctx context.Context) {
	begin := time.Now()
	level.Info(s.logger).Log("msg", "initializing settings service")

	var (
		wg       sync.WaitGroup
		settings []storage.SystemSetting
		rates    storage.Rates
	)
	wg.Add(2)
	go func() {
		defer wg.Done()
		settings = s.loadSettings(ctx)
	}()
	go func() {
		defer wg.Done()
		rates = s.rateCache.GetRates(ctx)
	}()
	wg.Wait()

	now := s.opts.Clock()
	s.memCache.DumpSettings(settings, now)
	s.memCache.DumpRates(rates, now)
	s.metrics.SettingsLoaded.Set(float64(len(settings)))

	s.state.Store(int32(StateReady))
	close(s.ready)

	s.metrics.InitDuration.Observe(time.Since(begin).Seconds())
	level.Info(s.logger).Log("msg", "settings service ready",
		"settings", len(settings),
		"rates", len(rates),
		"default_currency", s.DefaultCurrency(),
		"took", time.Since(begin),
	)
}

func (s *SettingsService) loadSettings(ctx context.Context) []storage.SystemSetting {
	settings, err := s.settings.FetchSettings(ctx)
	if err != nil {
		s.metrics.SettingsLoadFailures.Inc()
		level.Error(s.logger).Log("msg", "failed to load settings", "err", err)
		return nil
	}
	return settings
}

func (s *SettingsService) startScheduler() {
	if s.opts.RatesRefreshInterval <= 0 || s.ctx.Err() != nil {
		return
	}
	s.wg.Add(1)
	go s.ratesRefreshScheduler()
}

// ratesRefreshScheduler keeps the in-memory rates in step with the store.
// An empty result never replaces rates we already hold.
func (s *SettingsService) ratesRefreshScheduler() {
	defer s.wg.Done()

	interval := addJitter(s.opts.RatesRefreshInterval, 0.1)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	level.Info(s.logger).Log("msg", "rates refresh scheduler started",
		"interval", s.opts.RatesRefreshInterval, "jittered", interval)

	for {
		select {
		case <-s.ctx.Done():
			level.Info(s.logger).Log("msg", "rates refresh scheduler stopped")
			return
		case <-ticker.C:
			rates := s.rateCache.GetRates(s.ctx)
			if len(rates) == 0 {
				level.Warn(s.logger).Log("msg", "rates refresh returned nothing, keeping previous rates")
				continue
			}
			s.memCache.DumpRates(rates, s.opts.Clock())
		}
	}
}

// Stop cancels background work, waits for it and for any load in
// progress, then closes the store.
func (s *SettingsService) Stop() {
	s.stopOnce.Do(func() {
		level.Info(s.logger).Log("msg", "stopping settings service")
		s.mu.Lock()
		s.stopped = true
		s.mu.Unlock()

		s.cancel()
		s.wg.Wait()
		s.rateCache.Wait()
		if err := s.store.Close(); err != nil {
			level.Warn(s.logger).Log("msg", "failed to close store", "err", err)
		}
	})
}

func (s *SettingsService) State() State {
	return State(s.state.Load())
}

func (s *SettingsService) IsReady() bool {
	return s.State() == StateReady
}

// Ready is closed once initialization has finished.
func (s *SettingsService) Ready() <-chan struct{} {
	return s.ready
}

// GetSetting returns the value of the first setting with key.
func (s *SettingsService) GetSetting(key string) (string, bool) {
	return s.memCache.GetSetting(key)
}

func (s *SettingsService) Settings() []storage.SystemSetting {
	return s.memCache.GetSettings()
}

func (s *SettingsService) Rates() storage.Rates {
	return s.memCache.GetRates()
}

func (s *SettingsService) Snapshot() storage.SnapshotInfo {
	return s.memCache.Snapshot()
}

// DefaultCurrency is the DefaultCurrency setting when present, else EGP.
// A present but empty value is returned as is.
func (s *SettingsService) DefaultCurrency() string {
	if v, ok := s.GetSetting(DefaultCurrencyKey); ok {
		return v
	}
	return FallbackCurrency
}

// GetCurrencyLabel returns the display glyph for code, or for the default
// currency when code is empty.
func (s *SettingsService) GetCurrencyLabel(code string) string {
	if code == "" {
		code = s.DefaultCurrency()
	}
	return currency.Label(code)
}

// ConvertAmount converts amount from `from` (EGP when empty) into the
// default currency. Zero and NaN yield 0. Missing rates yield amount.
func (s *SettingsService) ConvertAmount(amount float64, from string) float64 {
	if isFalsyAmount(amount) {
		return 0
	}
	if from == "" {
		from = DefaultConvertFrom
	}
	return currency.Convert(amount, from, s.DefaultCurrency(), s.memCache.GetRates())
}

// FormatAmount formats amount in code (the default currency when empty)
// using the CurrencyDecimalPlaces setting.
func (s *SettingsService) FormatAmount(amount float64, code string) string {
	if code == "" {
		code = s.DefaultCurrency()
	}
	return currency.Format(amount, code, s.fractionDigits())
}

func (s *SettingsService) fractionDigits() int32 {
	v, ok := s.GetSetting(CurrencyDecimalPlacesKey)
	if !ok {
		return DefaultFractionDigits
	}
	n, err := strconv.ParseInt(v, 10, 32)
	if err != nil || n < 0 {
		return DefaultFractionDigits
	}
	return int32(n)
}
