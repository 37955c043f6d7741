// Package config defines the top-level configuration for the arbitrage
// service and provides validation helpers.
package config

import (
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/common"
)

// Config is the root configuration structure. Fields are populated from a
// TOML file and then optionally overridden by FLASHARB_* environment
// variables.
type Config struct {
	Wallet   WalletConfig   `toml:"wallet"`
	Limits   LimitsConfig   `toml:"limits"`
	Lender   LenderConfig   `toml:"lender"`
	Assets   []AssetConfig  `toml:"assets"`
	Venues   []VenueConfig  `toml:"venues"`
	Postgres PostgresConfig `toml:"postgres"`
	Redis    RedisConfig    `toml:"redis"`
	GasFeed  GasFeedConfig  `toml:"gas_feed"`
	Notify   NotifyConfig   `toml:"notify"`
	LogLevel string         `toml:"log_level"`
}

// WalletConfig holds the owner key material and the authorized executor set.
type WalletConfig struct {
	PrivateKey       string `toml:"private_key"`
	EncryptedKeyPath string `toml:"encrypted_key_path"`
	KeyPassword      string `toml:"key_password"`

	// FeeBeneficiary receives the configured cut of realized profit.
	FeeBeneficiary string `toml:"fee_beneficiary"`
	// Executors are addresses allowed to submit requests besides the owner.
	Executors []string `toml:"executors"`
}

// LimitsConfig holds the initial trading limits. All of them can be changed
// at runtime through the registry.
type LimitsConfig struct {
	// MaxGasPriceGwei is the resource-price ceiling in gwei.
	MaxGasPriceGwei int64 `toml:"max_gas_price_gwei"`
	MinProfitBps    int   `toml:"min_profit_bps"`
	MaxSlippageBps  int   `toml:"max_slippage_bps"`
	// BeneficiaryFeeBps is the beneficiary's cut of realized profit.
	BeneficiaryFeeBps int `toml:"beneficiary_fee_bps"`
	// EstGasUnits feeds the profitability heuristic.
	EstGasUnits int64 `toml:"est_gas_units"`
}

// LenderConfig holds loan facility parameters.
type LenderConfig struct {
	// Address is the facility's account on the ledger.
	Address string `toml:"address"`
	// FeeBps is the flat loan fee in basis points.
	FeeBps int `toml:"fee_bps"`
}

// AssetConfig declares one supported asset and its size cap.
type AssetConfig struct {
	Address string `toml:"address"`
	// MaxTradeSize is the borrow cap in smallest units, decimal string.
	MaxTradeSize string `toml:"max_trade_size"`
	// LenderLiquidity seeds the facility's balance for this asset, decimal
	// string in smallest units. Zero or empty leaves the facility unfunded.
	LenderLiquidity string `toml:"lender_liquidity"`
}

// VenueConfig declares one constant-product venue and its initial reserves.
type VenueConfig struct {
	Address string `toml:"address"`
	Token0  string `toml:"token0"`
	Token1  string `toml:"token1"`
	FeeBps  int    `toml:"fee_bps"`
	// Reserve0 and Reserve1 seed the pool, decimal strings in smallest units.
	Reserve0 string `toml:"reserve0"`
	Reserve1 string `toml:"reserve1"`
}

// PostgresConfig holds PostgreSQL connection parameters. When Enabled is
// false the service falls back to in-memory stores.
type PostgresConfig struct {
	Enabled       bool   `toml:"enabled"`
	DSN           string `toml:"dsn"`
	Host          string `toml:"host"`
	Port          int    `toml:"port"`
	Database      string `toml:"database"`
	User          string `toml:"user"`
	Password      string `toml:"password"`
	SSLMode       string `toml:"ssl_mode"`
	PoolMaxConns  int    `toml:"pool_max_conns"`
	PoolMinConns  int    `toml:"pool_min_conns"`
	RunMigrations bool   `toml:"run_migrations"`
}

// RedisConfig holds Redis connection parameters. When Enabled is false the
// execution lock is process-local only.
type RedisConfig struct {
	Enabled    bool   `toml:"enabled"`
	Addr       string `toml:"addr"`
	Password   string `toml:"password"`
	DB         int    `toml:"db"`
	PoolSize   int    `toml:"pool_size"`
	MaxRetries int    `toml:"max_retries"`
	TLSEnabled bool   `toml:"tls_enabled"`
}

// GasFeedConfig holds the live base-fee feed parameters. When Enabled is
// false a static oracle at FallbackGwei is used.
type GasFeedConfig struct {
	Enabled      bool   `toml:"enabled"`
	WsURL        string `toml:"ws_url"`
	FallbackGwei int64  `toml:"fallback_gwei"`
}

// NotifyConfig holds notification channel credentials.
type NotifyConfig struct {
	TelegramToken     string   `toml:"telegram_token"`
	TelegramChatID    string   `toml:"telegram_chat_id"`
	DiscordWebhookURL string   `toml:"discord_webhook_url"`
	Events            []string `toml:"events"`
}

// Defaults returns a Config populated with reasonable default values.
func Defaults() Config {
	return Config{
		Limits: LimitsConfig{
			MaxGasPriceGwei:   100,
			MinProfitBps:      30,
			MaxSlippageBps:    50,
			BeneficiaryFeeBps: 20,
			EstGasUnits:       400_000,
		},
		Lender: LenderConfig{
			Address: "0x0000000000000000000000000000000000001001",
			FeeBps:  9,
		},
		Postgres: PostgresConfig{
			Enabled:       false,
			Host:          "localhost",
			Port:          5432,
			Database:      "flasharb",
			User:          "postgres",
			SSLMode:       "disable",
			PoolMaxConns:  10,
			PoolMinConns:  2,
			RunMigrations: true,
		},
		Redis: RedisConfig{
			Enabled:    false,
			Addr:       "localhost:6379",
			DB:         0,
			PoolSize:   20,
			MaxRetries: 3,
		},
		GasFeed: GasFeedConfig{
			Enabled:      false,
			FallbackGwei: 30,
		},
		Notify: NotifyConfig{
			Events: []string{"trade_executed", "loan_executed", "emergency_withdrawal"},
		},
		LogLevel: "info",
	}
}

// validLogLevels enumerates the accepted values for Config.LogLevel.
var validLogLevels = map[string]bool{
	"debug": true,
	"info":  true,
	"warn":  true,
	"error": true,
}

// Validate checks Config for obviously invalid or missing values and returns
// a combined error describing every problem found.
func (c *Config) Validate() error {
	var errs []string

	if !validLogLevels[strings.ToLower(c.LogLevel)] {
		errs = append(errs, fmt.Sprintf("unknown log_level %q (valid: debug, info, warn, error)", c.LogLevel))
	}

	// Wallet
	if c.Wallet.PrivateKey == "" && c.Wallet.EncryptedKeyPath == "" {
		errs = append(errs, "wallet: either private_key or encrypted_key_path must be set")
	}
	if c.Wallet.EncryptedKeyPath != "" && c.Wallet.KeyPassword == "" {
		errs = append(errs, "wallet: key_password is required when encrypted_key_path is set")
	}
	if c.Wallet.FeeBeneficiary != "" && !common.IsHexAddress(c.Wallet.FeeBeneficiary) {
		errs = append(errs, fmt.Sprintf("wallet: fee_beneficiary %q is not a valid address", c.Wallet.FeeBeneficiary))
	}
	for _, e := range c.Wallet.Executors {
		if !common.IsHexAddress(e) {
			errs = append(errs, fmt.Sprintf("wallet: executor %q is not a valid address", e))
		}
	}

	// Limits
	if c.Limits.MaxGasPriceGwei < 1 {
		errs = append(errs, "limits: max_gas_price_gwei must be >= 1")
	}
	if c.Limits.MinProfitBps < 0 || c.Limits.MinProfitBps > 1000 {
		errs = append(errs, fmt.Sprintf("limits: min_profit_bps must be 0-1000, got %d", c.Limits.MinProfitBps))
	}
	if c.Limits.MaxSlippageBps < 0 || c.Limits.MaxSlippageBps > 500 {
		errs = append(errs, fmt.Sprintf("limits: max_slippage_bps must be 0-500, got %d", c.Limits.MaxSlippageBps))
	}
	if c.Limits.BeneficiaryFeeBps < 0 || c.Limits.BeneficiaryFeeBps > 100 {
		errs = append(errs, fmt.Sprintf("limits: beneficiary_fee_bps must be 0-100, got %d", c.Limits.BeneficiaryFeeBps))
	}
	if c.Limits.EstGasUnits <= 0 {
		errs = append(errs, "limits: est_gas_units must be > 0")
	}

	// Lender
	if !common.IsHexAddress(c.Lender.Address) {
		errs = append(errs, fmt.Sprintf("lender: address %q is not a valid address", c.Lender.Address))
	}
	if c.Lender.FeeBps < 0 || c.Lender.FeeBps > 10_000 {
		errs = append(errs, fmt.Sprintf("lender: fee_bps must be 0-10000, got %d", c.Lender.FeeBps))
	}

	// Assets
	for i, a := range c.Assets {
		if !common.IsHexAddress(a.Address) {
			errs = append(errs, fmt.Sprintf("assets[%d]: address %q is not a valid address", i, a.Address))
		}
		if v, ok := parseAmount(a.MaxTradeSize); !ok || v.Sign() <= 0 {
			errs = append(errs, fmt.Sprintf("assets[%d]: max_trade_size %q must be a positive integer", i, a.MaxTradeSize))
		}
		if a.LenderLiquidity != "" {
			if v, ok := parseAmount(a.LenderLiquidity); !ok || v.Sign() < 0 {
				errs = append(errs, fmt.Sprintf("assets[%d]: lender_liquidity %q must be a non-negative integer", i, a.LenderLiquidity))
			}
		}
	}

	// Venues
	for i, v := range c.Venues {
		for name, addr := range map[string]string{
			"address": v.Address, "token0": v.Token0, "token1": v.Token1,
		} {
			if !common.IsHexAddress(addr) {
				errs = append(errs, fmt.Sprintf("venues[%d]: %s %q is not a valid address", i, name, addr))
			}
		}
		if v.FeeBps < 0 || v.FeeBps >= 10_000 {
			errs = append(errs, fmt.Sprintf("venues[%d]: fee_bps must be 0-9999, got %d", i, v.FeeBps))
		}
		for name, amt := range map[string]string{"reserve0": v.Reserve0, "reserve1": v.Reserve1} {
			if n, ok := parseAmount(amt); !ok || n.Sign() <= 0 {
				errs = append(errs, fmt.Sprintf("venues[%d]: %s %q must be a positive integer", i, name, amt))
			}
		}
	}

	// Postgres
	if c.Postgres.Enabled {
		if strings.TrimSpace(c.Postgres.DSN) == "" {
			if c.Postgres.Host == "" {
				errs = append(errs, "postgres: host must not be empty (or set postgres.dsn)")
			}
			if c.Postgres.Port <= 0 || c.Postgres.Port > 65535 {
				errs = append(errs, fmt.Sprintf("postgres: port must be 1-65535, got %d", c.Postgres.Port))
			}
			if c.Postgres.Database == "" {
				errs = append(errs, "postgres: database must not be empty")
			}
		}
		if c.Postgres.PoolMaxConns < 1 {
			errs = append(errs, "postgres: pool_max_conns must be >= 1")
		}
		if c.Postgres.PoolMinConns < 0 {
			errs = append(errs, "postgres: pool_min_conns must be >= 0")
		}
		if c.Postgres.PoolMinConns > c.Postgres.PoolMaxConns {
			errs = append(errs, "postgres: pool_min_conns must not exceed pool_max_conns")
		}
	}

	// Redis
	if c.Redis.Enabled {
		if c.Redis.Addr == "" {
			errs = append(errs, "redis: addr must not be empty")
		}
		if c.Redis.PoolSize < 1 {
			errs = append(errs, "redis: pool_size must be >= 1")
		}
	}

	// Gas feed
	if c.GasFeed.Enabled && c.GasFeed.WsURL == "" {
		errs = append(errs, "gas_feed: ws_url must not be empty when enabled")
	}
	if c.GasFeed.FallbackGwei < 1 {
		errs = append(errs, "gas_feed: fallback_gwei must be >= 1")
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}

func parseAmount(s string) (*big.Int, bool) {
	v, ok := new(big.Int).SetString(strings.TrimSpace(s), 10)
	if !ok {
		return nil, false
	}
	return v, true
}

// Amount parses a decimal amount string previously checked by Validate.
func Amount(s string) *big.Int {
	v, _ := parseAmount(s)
	if v == nil {
		v = new(big.Int)
	}
	return v
}

// GweiToWei converts a gwei quantity to wei.
func GweiToWei(gwei int64) *big.Int {
	wei := big.NewInt(gwei)
	return wei.Mul(wei, big.NewInt(1_000_000_000))
}
