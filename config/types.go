package config

import (
	"nftmarket/native/marketplace"
)

// Config is the marketd node configuration.
type Config struct {
	DataDir    string `toml:"DataDir" yaml:"data_dir"`
	RPCAddress string `toml:"RPCAddress" yaml:"rpc_address"`
	// AddressPrefix is the bech32 prefix every account must carry. Leave it
	// empty on devnets that use plain identifiers.
	AddressPrefix string `toml:"AddressPrefix" yaml:"address_prefix"`
	// MarketplaceAddress holds bid escrow and must be approved on listed
	// tokens. Derived from the prefix when empty.
	MarketplaceAddress string `toml:"MarketplaceAddress" yaml:"marketplace_address"`
	GovernanceAddress  string `toml:"GovernanceAddress" yaml:"governance_address"`
	Environment        string `toml:"Environment" yaml:"environment"`

	Genesis    Genesis         `toml:"Genesis" yaml:"genesis"`
	Auth       AuthConfig      `toml:"Auth" yaml:"auth"`
	RateLimit  RateLimitConfig `toml:"RateLimit" yaml:"rate_limit"`
	Hooks      []HookEndpoint  `toml:"Hooks,omitempty" yaml:"hooks"`
	SalesIndex SalesIndex      `toml:"SalesIndex" yaml:"sales_index"`
	Telemetry  Telemetry       `toml:"Telemetry" yaml:"telemetry"`
	Logging    Logging         `toml:"Logging" yaml:"logging"`
}

// Genesis seeds a fresh data directory.
type Genesis struct {
	Marketplace marketplace.Genesis `toml:"Marketplace" yaml:"marketplace"`
	Balances    []GenesisBalance    `toml:"Balances,omitempty" yaml:"balances"`
	Tokens      []GenesisToken      `toml:"Tokens,omitempty" yaml:"tokens"`
}

// GenesisBalance credits Amount (a "<amount><denom>" string) to Address.
type GenesisBalance struct {
	Address string `toml:"Address" yaml:"address"`
	Amount  string `toml:"Amount" yaml:"amount"`
}

// GenesisToken mints a token and optionally records its royalty.
type GenesisToken struct {
	Collection     string `toml:"Collection" yaml:"collection"`
	TokenID        uint32 `toml:"TokenID" yaml:"token_id"`
	Owner          string `toml:"Owner" yaml:"owner"`
	RoyaltyAddress string `toml:"RoyaltyAddress" yaml:"royalty_address"`
	RoyaltyPercent uint32 `toml:"RoyaltyPercent" yaml:"royalty_percent"`
}

// AuthConfig configures bearer-token authentication of RPC callers. The
// token subject is the caller address.
type AuthConfig struct {
	Enabled    bool   `toml:"Enabled" yaml:"enabled"`
	HMACSecret string `toml:"HMACSecret" yaml:"hmac_secret"`
	Issuer     string `toml:"Issuer" yaml:"issuer"`
	Audience   string `toml:"Audience" yaml:"audience"`
}

// RateLimitConfig bounds requests per client.
type RateLimitConfig struct {
	RatePerSecond float64 `toml:"RatePerSecond" yaml:"rate_per_second"`
	Burst         int     `toml:"Burst" yaml:"burst"`
}

// HookEndpoint maps a registered hook address onto an HTTP receiver.
type HookEndpoint struct {
	Address string `toml:"Address" yaml:"address"`
	URL     string `toml:"URL" yaml:"url"`
	Secret  string `toml:"Secret" yaml:"secret"`
}

// SalesIndex configures the sale history database.
type SalesIndex struct {
	Enabled   bool   `toml:"Enabled" yaml:"enabled"`
	Driver    string `toml:"Driver" yaml:"driver"`
	DSN       string `toml:"DSN" yaml:"dsn"`
	ExportDir string `toml:"ExportDir" yaml:"export_dir"`
}

// Telemetry configures OTLP export.
type Telemetry struct {
	Endpoint string `toml:"Endpoint" yaml:"endpoint"`
	Insecure bool   `toml:"Insecure" yaml:"insecure"`
	Headers  string `toml:"Headers" yaml:"headers"`
	Traces   bool   `toml:"Traces" yaml:"traces"`
	Metrics  bool   `toml:"Metrics" yaml:"metrics"`
	// SampleRatio applies to root spans; zero samples everything.
	SampleRatio float64 `toml:"SampleRatio" yaml:"sample_ratio"`
}

// Logging configures optional file output next to stdout.
type Logging struct {
	Level      string `toml:"Level" yaml:"level"`
	File       string `toml:"File" yaml:"file"`
	MaxSizeMB  int    `toml:"MaxSizeMB" yaml:"max_size_mb"`
	MaxBackups int    `toml:"MaxBackups" yaml:"max_backups"`
	MaxAgeDays int    `toml:"MaxAgeDays" yaml:"max_age_days"`
}
