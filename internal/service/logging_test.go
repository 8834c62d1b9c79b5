package service

import (
	"bytes"
	"context"
	"testing"

	"github.com/go-kit/log"
	"github.com/stretchr/testify/assert"

	"github.com/omerorhan/erp-settings-service/internal/storage"
)

func TestLoggingRateFetcher(t *testing.T) {
	var buf bytes.Buffer
	next := &fakeRateFetcher{rates: storage.Rates{"EGP": 50, "SAR": 3.75}}
	f := NewLoggingRateFetcher(log.NewLogfmtLogger(&buf), next)

	rates, err := f.FetchRates(context.Background())

	assert.NoError(t, err)
	assert.Len(t, rates, 2)
	assert.Contains(t, buf.String(), "method=fetch_rates")
	assert.Contains(t, buf.String(), "count=2")
	assert.Contains(t, buf.String(), "err=null")
}

func TestLoggingSettingsFetcher_Error(t *testing.T) {
	var buf bytes.Buffer
	next := &fakeSettingsFetcher{err: errBackendDown}
	f := NewLoggingSettingsFetcher(log.NewLogfmtLogger(&buf), next)

	_, err := f.FetchSettings(context.Background())

	assert.ErrorIs(t, err, errBackendDown)
	assert.Contains(t, buf.String(), "method=fetch_settings")
	assert.Contains(t, buf.String(), `err="backend down"`)
}
