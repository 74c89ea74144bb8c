package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validConfig() *Config {
	return &Config{
		Store: StoreConfig{Driver: "postgres"},
		Matcher: MatcherConfig{
			CategoryWeight:    0.40,
			LocationWeight:    0.35,
			EligibilityWeight: 0.25,
			MaxResults:        10,
		},
		Probability: ProbabilityConfig{CacheTTLDays: 7, BatchConcurrency: 5, BatchQPS: 20},
		Server:      ServerConfig{Port: 8080},
		Log:         LogConfig{Level: "info", Format: "json"},
	}
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "postgres", cfg.Store.Driver)
	assert.InDelta(t, 0.40, cfg.Matcher.CategoryWeight, 1e-9)
	assert.InDelta(t, 0.35, cfg.Matcher.LocationWeight, 1e-9)
	assert.InDelta(t, 0.25, cfg.Matcher.EligibilityWeight, 1e-9)
	assert.Equal(t, 7, cfg.Probability.CacheTTLDays)
	assert.Equal(t, 8080, cfg.Server.Port)

	require.NoError(t, cfg.Validate())
}

func TestLoadEnvOverride(t *testing.T) {
	t.Setenv("INCENTEDGE_MATCHER_MAX_RESULTS", "25")
	t.Setenv("INCENTEDGE_STORE_DRIVER", "sqlite")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 25, cfg.Matcher.MaxResults)
	assert.Equal(t, "sqlite", cfg.Store.Driver)
}

func TestValidateRejectsBadWeights(t *testing.T) {
	cfg := validConfig()
	cfg.Matcher.CategoryWeight = 0.50

	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "sum to 1.0")
}

func TestValidateRejectsNegativeWeight(t *testing.T) {
	cfg := validConfig()
	cfg.Matcher.CategoryWeight = -0.1
	cfg.Matcher.LocationWeight = 0.85

	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), ">= 0")
}

func TestValidateRejectsUnknownDriver(t *testing.T) {
	cfg := validConfig()
	cfg.Store.Driver = "oracle"

	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "driver")
}

func TestValidateRejectsZeroTTL(t *testing.T) {
	cfg := validConfig()
	cfg.Probability.CacheTTLDays = 0

	require.Error(t, cfg.Validate())
}
