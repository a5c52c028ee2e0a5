package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"

	"nftmarket/crypto"
	"nftmarket/native/marketplace"
)

// Load loads the configuration from the given path. A missing file is
// created with devnet defaults. Files ending in .yaml or .yml are decoded as
// YAML, everything else as TOML.
func Load(path string) (*Config, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return createDefault(path)
	}

	cfg := &Config{}
	if isYAML(path) {
		raw, err := os.ReadFile(path)
		if err != nil {
			return nil, err
		}
		if err := yaml.Unmarshal(raw, cfg); err != nil {
			return nil, fmt.Errorf("config: decode %s: %w", path, err)
		}
	} else {
		meta, err := toml.DecodeFile(path, cfg)
		if err != nil {
			return nil, fmt.Errorf("config: decode %s: %w", path, err)
		}
		if undecoded := meta.Undecoded(); len(undecoded) > 0 {
			return nil, fmt.Errorf("config: unknown keys in %s: %v", path, undecoded)
		}
	}

	applyDefaults(cfg)
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func isYAML(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	return ext == ".yaml" || ext == ".yml"
}

func applyDefaults(cfg *Config) {
	if strings.TrimSpace(cfg.DataDir) == "" {
		cfg.DataDir = "./market-data"
	}
	if strings.TrimSpace(cfg.RPCAddress) == "" {
		cfg.RPCAddress = ":8080"
	}
	if strings.TrimSpace(cfg.MarketplaceAddress) == "" {
		cfg.MarketplaceAddress = DefaultMarketplaceAddress(crypto.AddressPrefix(cfg.AddressPrefix))
	}
	if cfg.RateLimit.RatePerSecond <= 0 {
		cfg.RateLimit.RatePerSecond = 20
	}
	if cfg.RateLimit.Burst <= 0 {
		cfg.RateLimit.Burst = 40
	}
	if strings.TrimSpace(cfg.SalesIndex.Driver) == "" {
		cfg.SalesIndex.Driver = "sqlite"
	}
	if cfg.Logging.MaxSizeMB <= 0 {
		cfg.Logging.MaxSizeMB = 100
	}
	if cfg.Hooks == nil {
		cfg.Hooks = []HookEndpoint{}
	}
}

// DefaultMarketplaceAddress derives the module account for prefix. Devnets
// without a prefix use a plain identifier.
func DefaultMarketplaceAddress(prefix crypto.AddressPrefix) string {
	if prefix == "" {
		return "marketplace"
	}
	return crypto.ModuleAddress(prefix, "marketplace").String()
}

// createDefault creates and saves a devnet configuration file.
func createDefault(path string) (*Config, error) {
	cfg := &Config{
		DataDir:           "./market-data",
		RPCAddress:        ":8080",
		GovernanceAddress: "gov",
		Environment:       "devnet",
		Genesis: Genesis{
			Marketplace: marketplace.Genesis{
				Params: marketplace.Params{
					TradingFeePercent: 2,
					AskExpiry:         marketplace.ExpiryRange{Min: 24 * 60 * 60, Max: 180 * 24 * 60 * 60},
					BidExpiry:         marketplace.ExpiryRange{Min: 24 * 60 * 60, Max: 180 * 24 * 60 * 60},
					Operators:         []string{},
					FeeRecipient:      "fees",
					Admin:             "admin",
				},
				ListedHooks:        []string{},
				SaleFinalizedHooks: []string{},
			},
		},
		SalesIndex: SalesIndex{Driver: "sqlite", DSN: "sales.db"},
	}
	applyDefaults(cfg)
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	if err := persist(path, cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func persist(path string, cfg *Config) error {
	dir := filepath.Dir(path)
	if dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_TRUNC|os.O_CREATE, 0o644)
	if err != nil {
		return err
	}
	defer f.Close()

	if isYAML(path) {
		enc := yaml.NewEncoder(f)
		defer enc.Close()
		return enc.Encode(cfg)
	}
	return toml.NewEncoder(f).Encode(cfg)
}
