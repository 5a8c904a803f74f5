package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
)

type Config struct {
	// Chain and network settings
	ChainID     int64  `json:"chain_id"`
	RPCEndpoint string `json:"rpc_endpoint"`

	// Contract addresses
	ArbitrageContract string `json:"arbitrage_contract"`
	MulticallAddress  string `json:"multicall_address"`

	// Trading universe
	TokenListURL    string   `json:"token_list_url"`
	TokenFile       string   `json:"token_file"`
	TokenSymbols    []string `json:"token_symbols"`
	SettlementTokens []string `json:"settlement_tokens"`
	BridgeTokens    []string `json:"bridge_tokens"`

	// Router registry
	RouterFile string `json:"router_file"`

	// Ladder settings
	TrialAmounts        []int64 `json:"trial_amounts"`
	MinNetProfit        float64 `json:"min_net_profit"`
	LegRatioLimit       int64   `json:"leg_ratio_limit"`
	RoundTripRatioLimit int64   `json:"round_trip_ratio_limit"`

	// Blacklist settings
	PairBlacklistFile     string `json:"pair_blacklist_file"`
	TriangleBlacklistFile string `json:"triangle_blacklist_file"`
	PromotionThreshold    int    `json:"promotion_threshold"`

	// Scan pacing
	CycleDelay        time.Duration `json:"cycle_delay"`
	AttemptDelay      time.Duration `json:"attempt_delay"`
	RequestsPerSecond float64       `json:"requests_per_second"`
	MaxConcurrent     int           `json:"max_concurrent"`
	ProbeUnits        int64         `json:"probe_units"`

	// Execution settings
	TradeLogFile string `json:"trade_log_file"`
	DryRunOnly   bool   `json:"dry_run_only"`

	// Metrics
	PrometheusEnabled  bool   `json:"prometheus_enabled"`
	PrometheusEndpoint string `json:"prometheus_endpoint"`
}

// SecureConfig holds material that never touches the config file.
type SecureConfig struct {
	PrivateKey string
}

// DefaultConfig returns the Polygon production defaults. Every value
// can be overridden by the config file.
func DefaultConfig() *Config {
	return &Config{
		ChainID:          137,
		MulticallAddress: "0xcA11bde05977b3631167028862bE2a173976CA11",
		TokenFile:        "tokens.json",
		SettlementTokens: []string{"USDC", "DAI", "USDT"},
		BridgeTokens:     []string{"WETH", "DAI", "USDC", "WMATIC", "USDT", "AAVE", "MAI", "WBTC"},
		TrialAmounts:     []int64{100, 250, 500, 1000, 2000},
		MinNetProfit:     1.0,
		LegRatioLimit:    5,
		RoundTripRatioLimit: 10,
		PairBlacklistFile:     "blacklist_pairs.json",
		TriangleBlacklistFile: "blacklist_triangles.json",
		PromotionThreshold:    3,
		CycleDelay:            time.Second * 5,
		AttemptDelay:          time.Millisecond * 200,
		RequestsPerSecond:     10,
		MaxConcurrent:         4,
		ProbeUnits:            1,
		TradeLogFile:          "trades.csv",
	}
}

func (c *Config) ValidateConfig() error {
	var errors []string

	if c.ChainID == 0 {
		errors = append(errors, "chain_id must be specified")
	}
	if c.RPCEndpoint == "" {
		errors = append(errors, "rpc_endpoint must be specified")
	}
	if c.ArbitrageContract != "" && !common.IsHexAddress(c.ArbitrageContract) {
		errors = append(errors, "arbitrage_contract is not a valid address")
	}
	if !common.IsHexAddress(c.MulticallAddress) {
		errors = append(errors, "multicall_address is not a valid address")
	}
	if c.TokenListURL == "" && c.TokenFile == "" {
		errors = append(errors, "either token_list_url or token_file must be specified")
	}
	if len(c.SettlementTokens) == 0 {
		errors = append(errors, "settlement_tokens must not be empty")
	}
	if len(c.TrialAmounts) == 0 {
		errors = append(errors, "trial_amounts must not be empty")
	}
	for i := 1; i < len(c.TrialAmounts); i++ {
		if c.TrialAmounts[i] <= c.TrialAmounts[i-1] {
			errors = append(errors, "trial_amounts must be strictly ascending")
			break
		}
	}
	if c.MinNetProfit <= 0 {
		errors = append(errors, "min_net_profit must be positive")
	}
	if c.LegRatioLimit <= 0 {
		errors = append(errors, "leg_ratio_limit must be positive")
	}
	if c.RoundTripRatioLimit <= 0 {
		errors = append(errors, "round_trip_ratio_limit must be positive")
	}
	if c.PromotionThreshold <= 0 {
		errors = append(errors, "promotion_threshold must be positive")
	}
	if c.PairBlacklistFile == "" || c.TriangleBlacklistFile == "" {
		errors = append(errors, "blacklist files must be specified")
	}
	if c.RequestsPerSecond <= 0 {
		errors = append(errors, "requests_per_second must be positive")
	}
	if c.MaxConcurrent <= 0 {
		errors = append(errors, "max_concurrent must be positive")
	}

	if len(errors) > 0 {
		return fmt.Errorf("configuration validation failed: %s", strings.Join(errors, "; "))
	}
	return nil
}

// Contract returns the parsed arbitrage contract address.
func (c *Config) Contract() common.Address {
	return common.HexToAddress(c.ArbitrageContract)
}

// Multicall returns the parsed aggregation contract address.
func (c *Config) Multicall() common.Address {
	return common.HexToAddress(c.MulticallAddress)
}

// LoadConfig reads the JSON config at cfgFile, applying defaults for
// any field the file omits. An empty cfgFile falls back to
// FLASHARB_CONFIG, then ~/.flasharb.json. FLASHARB_RPC_ENDPOINT
// overrides the endpoint from the file.
func LoadConfig(cfgFile string) (*Config, error) {
	if cfgFile == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("failed to get user home directory: %w", err)
		}
		cfgFile = GetEnvWithDefault(EnvConfigFile, filepath.Join(home, ".flasharb.json"))
	}

	file, err := os.Open(cfgFile)
	if err != nil {
		return nil, fmt.Errorf("failed to open config file: %w", err)
	}
	defer file.Close()

	config := DefaultConfig()
	if err := json.NewDecoder(file).Decode(config); err != nil {
		return nil, fmt.Errorf("failed to decode config file: %w", err)
	}

	if endpoint := os.Getenv(EnvRPCEndpoint); endpoint != "" {
		config.RPCEndpoint = endpoint
	}

	if err := config.ValidateConfig(); err != nil {
		return nil, err
	}
	return config, nil
}

// LoadSecureConfig reads the signing key from the environment. It is
// only required when execution is enabled.
func LoadSecureConfig() (*SecureConfig, error) {
	privateKey, err := GetRequiredEnv(EnvPrivateKey)
	if err != nil {
		return nil, fmt.Errorf("private key not found: %w", err)
	}
	return &SecureConfig{PrivateKey: strings.TrimPrefix(privateKey, "0x")}, nil
}

// SaveConfig writes cfg as indented JSON, for bootstrapping a config
// file from the defaults.
func SaveConfig(cfg *Config, cfgFile string) error {
	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.WriteFile(cfgFile, data, 0o600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}
