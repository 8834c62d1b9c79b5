package settings

import (
	"context"

	"github.com/omerorhan/erp-settings-service/internal/service"
	"github.com/omerorhan/erp-settings-service/internal/storage"
)

// Client provides the public API for the settings service
type Client struct {
	service *service.SettingsService
}

// NewClient creates a new settings client in the loading state
func NewClient(options ...ServiceOption) (*Client, error) {
	svc, err := service.NewSettingsService(options...)
	if err != nil {
		return nil, err
	}

	return &Client{
		service: svc,
	}, nil
}

// Initialize loads settings and rates. It is safe to call more than once.
func (c *Client) Initialize(ctx context.Context) {
	c.service.Initialize(ctx)
}

// IsReady reports whether the first Initialize has finished
func (c *Client) IsReady() bool {
	return c.service.IsReady()
}

// Ready is closed once the first Initialize has finished.
func (c *Client) Ready() <-chan struct{} {
	return c.service.Ready()
}

// GetSetting returns the value of the first setting named key
func (c *Client) GetSetting(key string) (string, bool) {
	return c.service.GetSetting(key)
}

// Settings returns a copy of the loaded settings
func (c *Client) Settings() []SystemSetting {
	return c.service.Settings()
}

// Rates returns a copy of the held USD-based rate table
func (c *Client) Rates() Rates {
	return c.service.Rates()
}

// DefaultCurrency returns the DefaultCurrency setting, or EGP when it is missing
func (c *Client) DefaultCurrency() string {
	return c.service.DefaultCurrency()
}

// GetCurrencyLabel returns the display label for code, or for the default currency when code is empty
func (c *Client) GetCurrencyLabel(code string) string {
	return c.service.GetCurrencyLabel(code)
}

// ConvertAmount converts amount from `from` (EGP when empty) into the default currency
func (c *Client) ConvertAmount(amount float64, from string) float64 {
	return c.service.ConvertAmount(amount, from)
}

// FormatAmount formats amount with its currency label and the configured decimal places
func (c *Client) FormatAmount(amount float64, code string) string {
	return c.service.FormatAmount(amount, code)
}

// Stop gracefully shuts down the service
func (c *Client) Stop() {
	c.service.Stop()
}

// Service options (re-exported for convenience)
type ServiceOption = service.ServiceOption

var (
	WithRedisConfig          = service.WithRedisConfig
	WithStore                = service.WithStore
	WithRatesURL             = service.WithRatesURL
	WithRatesTTL             = service.WithRatesTTL
	WithRatesRefreshInterval = service.WithRatesRefreshInterval
	WithSettingsURL          = service.WithSettingsURL
	WithHTTPTimeout          = service.WithHTTPTimeout
	WithLogger               = service.WithLogger
	WithMetrics              = service.WithMetrics
)

// Re-export common types for convenience
type (
	SystemSetting = storage.SystemSetting
	Rates         = storage.Rates
	RatesEnvelope = storage.RatesEnvelope
)
