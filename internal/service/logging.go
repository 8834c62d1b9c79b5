package service

import (
	"context"
	"time"

	"github.com/go-kit/log"
	"github.com/omerorhan/erp-settings-service/internal/storage"
)

// loggingRateFetcher decorates a RateFetcher with logging
type loggingRateFetcher struct {
	logger log.Logger
	next   RateFetcher
}

// NewLoggingRateFetcher returns a RateFetcher that logs every call to next
func NewLoggingRateFetcher(logger log.Logger, next RateFetcher) RateFetcher {
	return &loggingRateFetcher{
		logger: logger,
		next:   next,
	}
}

func (f *loggingRateFetcher) FetchRates(ctx context.Context) (rates storage.Rates, err error) {
	defer func(begin time.Time) {
		f.logger.Log(
			"method", "fetch_rates",
			"count", len(rates),
			"took", time.Since(begin),
			"err", err,
		)
	}(time.Now())
	return f.next.FetchRates(ctx)
}

// loggingSettingsFetcher decorates a SettingsFetcher with logging
type loggingSettingsFetcher struct {
	logger log.Logger
	next   SettingsFetcher
}

// NewLoggingSettingsFetcher returns a SettingsFetcher that logs every call to next
func NewLoggingSettingsFetcher(logger log.Logger, next SettingsFetcher) SettingsFetcher {
	return &loggingSettingsFetcher{
		logger: logger,
		next:   next,
	}
}

func (f *loggingSettingsFetcher) FetchSettings(ctx context.Context) (settings []storage.SystemSetting, err error) {
	defer func(begin time.Time) {
		f.logger.Log(
			"method", "fetch_settings",
			"count", len(settings),
			"took", time.Since(begin),
			"err", err,
		)
	}(time.Now())
	return f.next.FetchSettings(ctx)
}
