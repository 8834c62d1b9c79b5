package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/omerorhan/erp-settings-service/internal/storage"
)

var ErrUnexpectedBase = errors.New("unexpected base currency")

// RateFetcher loads a fresh rate table from the rate provider.
type RateFetcher interface {
	FetchRates(ctx context.Context) (storage.Rates, error)
}

// SettingsFetcher loads the system settings list from the backend.
type SettingsFetcher interface {
	FetchSettings(ctx context.Context) ([]storage.SystemSetting, error)
}

type rateProvider struct {
	url    string
	client *http.Client
}

// NewRateProvider returns a RateFetcher for a `{base, date, rates}` endpoint
// anchored at USD.
func NewRateProvider(url string, client *http.Client) RateFetcher {
	if client == nil {
		client = &http.Client{Timeout: DefaultHTTPTimeout}
	}
	return &rateProvider{url: url, client: client}
}

func (p *rateProvider) FetchRates(ctx context.Context) (storage.Rates, error) {
	b, err := get(ctx, p.client, p.url, "")
	if err != nil {
		return nil, fmt.Errorf("rates: %w", err)
	}

	var resp storage.ProviderResponse
	if err := json.Unmarshal(b, &resp); err != nil {
		return nil, fmt.Errorf("rates: decoding json: %w", err)
	}
	if resp.Base != "" && resp.Base != storage.BaseCurrency {
		return nil, fmt.Errorf("rates: %w: %s", ErrUnexpectedBase, resp.Base)
	}
	if resp.Rates == nil {
		return nil, errors.New("rates: response has no rates")
	}

	rates := make(storage.Rates, len(resp.Rates))
	for code, rate := range resp.Rates {
		if isUsableRate(rate) {
			rates[code] = rate
		}
	}
	return rates, nil
}

type settingsClient struct {
	url       string
	basicAuth string
	client    *http.Client
}

// NewSettingsClient returns a SettingsFetcher for a backend that answers
// GET url with a JSON array of settings. basicAuth is "user:pass" or empty.
func NewSettingsClient(url, basicAuth string, client *http.Client) SettingsFetcher {
	if client == nil {
		client = &http.Client{Timeout: DefaultHTTPTimeout}
	}
	return &settingsClient{url: url, basicAuth: basicAuth, client: client}
}

func (c *settingsClient) FetchSettings(ctx context.Context) ([]storage.SystemSetting, error) {
	b, err := get(ctx, c.client, c.url, c.basicAuth)
	if err != nil {
		return nil, fmt.Errorf("settings: %w", err)
	}

	var settings []storage.SystemSetting
	if err := json.Unmarshal(b, &settings); err != nil {
		return nil, fmt.Errorf("settings: decoding json: %w", err)
	}
	if settings == nil {
		settings = []storage.SystemSetting{}
	}
	return settings, nil
}

func get(ctx context.Context, client *http.Client, url, basicAuth string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("building http request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if user, pass, ok := parseBasicAuthPair(basicAuth); ok {
		req.SetBasicAuth(user, pass)
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("http get: %w", err)
	}
	defer resp.Body.Close()

	b, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading body: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("http %d: %s", resp.StatusCode, truncate(b, 256))
	}
	return b, nil
}
