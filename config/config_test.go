package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validConfig() *Config {
	cfg := DefaultConfig()
	cfg.RPCEndpoint = "https://polygon-rpc.example"
	return cfg
}

func TestDefaultConfigValidatesWithEndpoint(t *testing.T) {
	assert.NoError(t, validConfig().ValidateConfig())
}

func TestValidateRequiresEndpoint(t *testing.T) {
	cfg := DefaultConfig()
	err := cfg.ValidateConfig()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "rpc_endpoint")
}

func TestValidateRejectsNonAscendingAmounts(t *testing.T) {
	cfg := validConfig()
	cfg.TrialAmounts = []int64{100, 100, 500}
	err := cfg.ValidateConfig()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "ascending")
}

func TestValidateRejectsBadAddresses(t *testing.T) {
	cfg := validConfig()
	cfg.MulticallAddress = "bogus"
	assert.Error(t, cfg.ValidateConfig())

	cfg = validConfig()
	cfg.ArbitrageContract = "also-bogus"
	assert.Error(t, cfg.ValidateConfig())
}

func TestValidateRejectsNonPositiveKnobs(t *testing.T) {
	for _, mutate := range []func(*Config){
		func(c *Config) { c.MinNetProfit = 0 },
		func(c *Config) { c.LegRatioLimit = 0 },
		func(c *Config) { c.RoundTripRatioLimit = -1 },
		func(c *Config) { c.PromotionThreshold = 0 },
		func(c *Config) { c.RequestsPerSecond = 0 },
		func(c *Config) { c.MaxConcurrent = 0 },
	} {
		cfg := validConfig()
		mutate(cfg)
		assert.Error(t, cfg.ValidateConfig())
	}
}

func TestLoadConfigAppliesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cfg.json")
	body := `{"chain_id": 137, "rpc_endpoint": "https://polygon-rpc.example"}`
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, []int64{100, 250, 500, 1000, 2000}, cfg.TrialAmounts)
	assert.Equal(t, 1.0, cfg.MinNetProfit)
	assert.Equal(t, int64(5), cfg.LegRatioLimit)
	assert.Equal(t, int64(10), cfg.RoundTripRatioLimit)
	assert.Equal(t, 3, cfg.PromotionThreshold)
	assert.Equal(t, []string{"USDC", "DAI", "USDT"}, cfg.SettlementTokens)
}

func TestLoadConfigOverrides(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cfg.json")
	body := `{
		"chain_id": 137,
		"rpc_endpoint": "https://polygon-rpc.example",
		"trial_amounts": [50, 75],
		"leg_ratio_limit": 7
	}`
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, []int64{50, 75}, cfg.TrialAmounts)
	assert.Equal(t, int64(7), cfg.LegRatioLimit)
}

func TestEnvOverridesRPCEndpoint(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cfg.json")
	body := `{"chain_id": 137, "rpc_endpoint": "https://polygon-rpc.example"}`
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	t.Setenv(EnvRPCEndpoint, "https://private-node.example")

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, "https://private-node.example", cfg.RPCEndpoint)
}

func TestConfigFileFromEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cfg.json")
	body := `{"chain_id": 137, "rpc_endpoint": "https://polygon-rpc.example", "leg_ratio_limit": 9}`
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	t.Setenv(EnvConfigFile, path)

	cfg, err := LoadConfig("")
	require.NoError(t, err)
	assert.Equal(t, int64(9), cfg.LegRatioLimit)
}

func TestSaveAndReloadRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cfg.json")
	cfg := validConfig()
	require.NoError(t, SaveConfig(cfg, path))

	loaded, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, cfg.TrialAmounts, loaded.TrialAmounts)
	assert.Equal(t, cfg.SettlementTokens, loaded.SettlementTokens)
}

func TestLoadSecureConfigFromEnv(t *testing.T) {
	t.Setenv(EnvPrivateKey, "0xabcdef0123456789abcdef0123456789abcdef0123456789abcdef0123456789")

	secure, err := LoadSecureConfig()
	require.NoError(t, err)
	assert.Equal(t, "abcdef0123456789abcdef0123456789abcdef0123456789abcdef0123456789", secure.PrivateKey)
}

func TestLoadSecureConfigMissing(t *testing.T) {
	t.Setenv(EnvPrivateKey, "")
	_, err := LoadSecureConfig()
	assert.Error(t, err)
}
