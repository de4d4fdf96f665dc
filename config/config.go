package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/BurntSushi/toml"

	"tokensale/core/types"
)

// SaleConfig is the genesis definition of the sale itself.
type SaleConfig struct {
	Administrator    string `toml:"Administrator"`
	Treasury         string `toml:"Treasury"`
	EngineAccount    string `toml:"EngineAccount"`
	AssetSymbol      string `toml:"AssetSymbol"`
	UnitSize         uint64 `toml:"UnitSize"`
	PricePerUnit     uint64 `toml:"PricePerUnit"`
	InitialInventory uint64 `toml:"InitialInventory"`
}

// RateLimitConfig tunes per-client gateway throttling.
type RateLimitConfig struct {
	RequestsPerMinute float64 `toml:"RequestsPerMinute"`
	Burst             int     `toml:"Burst"`
}

// LogConfig tunes log output and rotation.
type LogConfig struct {
	File       string `toml:"File"`
	MaxSizeMB  int    `toml:"MaxSizeMB"`
	MaxBackups int    `toml:"MaxBackups"`
	MaxAgeDays int    `toml:"MaxAgeDays"`
}

// Config is the saled process configuration.
type Config struct {
	ListenAddress string          `toml:"ListenAddress"`
	DataDir       string          `toml:"DataDir"`
	Env           string          `toml:"Env"`
	AuthSecretEnv string          `toml:"AuthSecretEnv"`
	Sale          SaleConfig      `toml:"Sale"`
	RateLimit     RateLimitConfig `toml:"RateLimit"`
	Log           LogConfig       `toml:"Log"`
}

// Load reads and validates the configuration at path, applying defaults for
// unset operational fields.
func Load(path string) (*Config, error) {
	cfg := &Config{}
	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return nil, fmt.Errorf("config: decode %s: %w", path, err)
	}
	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (cfg *Config) applyDefaults() {
	if strings.TrimSpace(cfg.ListenAddress) == "" {
		cfg.ListenAddress = ":8645"
	}
	if strings.TrimSpace(cfg.DataDir) == "" {
		cfg.DataDir = "./saled-data"
	}
	if strings.TrimSpace(cfg.AuthSecretEnv) == "" {
		cfg.AuthSecretEnv = "SALED_AUTH_SECRET"
	}
	if strings.TrimSpace(cfg.Sale.AssetSymbol) == "" {
		cfg.Sale.AssetSymbol = "SALE"
	}
	if cfg.RateLimit.RequestsPerMinute <= 0 {
		cfg.RateLimit.RequestsPerMinute = 600
	}
	if cfg.RateLimit.Burst <= 0 {
		cfg.RateLimit.Burst = 20
	}
}

// Validate checks the sale genesis fields. Operational defaults have already
// been applied.
func (cfg *Config) Validate() error {
	if _, err := cfg.AdministratorAddress(); err != nil {
		return err
	}
	if _, err := cfg.TreasuryAddress(); err != nil {
		return err
	}
	if _, err := cfg.EngineAddress(); err != nil {
		return err
	}
	if cfg.Sale.UnitSize == 0 {
		return fmt.Errorf("config: Sale.UnitSize must be positive")
	}
	if cfg.Sale.PricePerUnit == 0 {
		return fmt.Errorf("config: Sale.PricePerUnit must be positive")
	}
	return nil
}

// AuthSecret resolves the gateway HMAC secret from the configured
// environment variable. Keeping the secret out of the TOML file keeps it out
// of version control.
func (cfg *Config) AuthSecret() (string, error) {
	secret := strings.TrimSpace(os.Getenv(cfg.AuthSecretEnv))
	if secret == "" {
		return "", fmt.Errorf("config: auth secret env %s not set", cfg.AuthSecretEnv)
	}
	return secret, nil
}

// AdministratorAddress parses the configured administrator identity.
func (cfg *Config) AdministratorAddress() (types.Address, error) {
	addr, err := types.ParseAddress(cfg.Sale.Administrator)
	if err != nil {
		return types.Address{}, fmt.Errorf("config: Sale.Administrator: %w", err)
	}
	return addr, nil
}

// TreasuryAddress parses the configured treasury identity.
func (cfg *Config) TreasuryAddress() (types.Address, error) {
	addr, err := types.ParseAddress(cfg.Sale.Treasury)
	if err != nil {
		return types.Address{}, fmt.Errorf("config: Sale.Treasury: %w", err)
	}
	return addr, nil
}

// EngineAddress parses the configured engine inventory account.
func (cfg *Config) EngineAddress() (types.Address, error) {
	addr, err := types.ParseAddress(cfg.Sale.EngineAccount)
	if err != nil {
		return types.Address{}, fmt.Errorf("config: Sale.EngineAccount: %w", err)
	}
	return addr, nil
}
