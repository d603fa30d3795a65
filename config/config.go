package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"

	"tradesafe/crypto"
)

type Config struct {
	RPCAddress  string `toml:"RPCAddress"`
	DataDir     string `toml:"DataDir"`
	AuditDBPath string `toml:"AuditDBPath"`
	Environment string `toml:"Environment"`
	// FeeTreasury optionally overrides the derived treasury module address
	// with a bech32 principal.
	FeeTreasury string `toml:"FeeTreasury,omitempty"`
}

// Load loads the configuration from the given path, creating a default file
// when none exists.
func Load(path string) (*Config, error) {
	cfg := &Config{}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return createDefault(path)
	}
	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return nil, err
	}
	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyDefaults() {
	if strings.TrimSpace(c.RPCAddress) == "" {
		c.RPCAddress = "127.0.0.1:8645"
	}
	if strings.TrimSpace(c.DataDir) == "" {
		c.DataDir = "./tradesafe-data"
	}
	if strings.TrimSpace(c.AuditDBPath) == "" {
		c.AuditDBPath = filepath.Join(c.DataDir, "audit.db")
	}
	if strings.TrimSpace(c.Environment) == "" {
		c.Environment = "local"
	}
}

// Validate checks field formats that cannot be defaulted.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.FeeTreasury) != "" {
		if _, err := crypto.DecodeAddress(c.FeeTreasury); err != nil {
			return fmt.Errorf("config: invalid FeeTreasury: %w", err)
		}
	}
	return nil
}

// FeeTreasuryAddress resolves the configured treasury principal, falling back
// to the derived module address.
func (c *Config) FeeTreasuryAddress() ([20]byte, error) {
	if strings.TrimSpace(c.FeeTreasury) == "" {
		return crypto.ModuleAddress("fee-treasury"), nil
	}
	addr, err := crypto.DecodeAddress(c.FeeTreasury)
	if err != nil {
		return [20]byte{}, err
	}
	return addr.Bytes(), nil
}

func createDefault(path string) (*Config, error) {
	cfg := &Config{}
	cfg.applyDefaults()
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, err
		}
	}
	f, err := os.Create(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	if err := toml.NewEncoder(f).Encode(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}
