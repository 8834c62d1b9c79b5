package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_RegistersAll(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)

	m.RatesCacheHits.Inc()
	m.RatesFetchTotal.WithLabelValues("ok").Inc()
	m.SettingsLoaded.Set(3)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.RatesCacheHits))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.RatesFetchTotal.WithLabelValues("ok")))
	assert.Equal(t, 3.0, testutil.ToFloat64(m.SettingsLoaded))

	families, err := reg.Gather()
	require.NoError(t, err)
	names := make([]string, 0, len(families))
	for _, f := range families {
		names = append(names, f.GetName())
	}
	assert.Contains(t, names, "erp_settings_rates_cache_hits_total")
	assert.Contains(t, names, "erp_settings_settings_loaded")
}

func TestNop_CanBeCreatedTwice(t *testing.T) {
	assert.NotPanics(t, func() {
		Nop()
		Nop()
	})
}
