package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDoesNotInjectWeakAuthDefaults(t *testing.T) {
	t.Setenv("AUTH_SECRET", "")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Empty(t, cfg.AuthSecret)
}

func TestLoadDefaults(t *testing.T) {
	for _, key := range []string{"PORT", "DEDUCTION_PER_GRAM", "FALLBACK_RATE", "BUSINESS_DAY_CUTOFF_HOUR", "SHOP_TIMEZONE"} {
		t.Setenv(key, "")
	}

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, ":8080", cfg.Address())
	assert.Equal(t, "400", cfg.DeductionPerGram.String())
	assert.Equal(t, "5000", cfg.FallbackRate.String())
	assert.Equal(t, 4, cfg.BusinessDayCutoffHour)
	assert.Equal(t, 480, cfg.AccessTokenTTLMinutes)
}

func TestLoadReadsEnvOverrides(t *testing.T) {
	t.Setenv("DEDUCTION_PER_GRAM", "350.5")
	t.Setenv("FALLBACK_RATE", "not-a-number")
	t.Setenv("BUSINESS_DAY_CUTOFF_HOUR", "5")
	t.Setenv("SHOP_TIMEZONE", "UTC")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "350.5", cfg.DeductionPerGram.String())
	assert.Equal(t, "5000", cfg.FallbackRate.String(), "unparsable value keeps the default")
	assert.Equal(t, 5, cfg.BusinessDayCutoffHour)

	loc, err := cfg.Location()
	require.NoError(t, err)
	assert.Equal(t, "UTC", loc.String())
}

func TestLocationRejectsUnknownZone(t *testing.T) {
	cfg := Config{ShopTimezone: "Mars/Olympus"}
	loc, err := cfg.Location()
	assert.Error(t, err)
	assert.Equal(t, "UTC", loc.String())
}

func TestLoadKeepsMidnightCutoff(t *testing.T) {
	t.Setenv("BUSINESS_DAY_CUTOFF_HOUR", "0")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 0, cfg.BusinessDayCutoffHour)
}
