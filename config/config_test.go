package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLoadCreatesDefault(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "marketd.toml")

	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, "marketplace", cfg.MarketplaceAddress)
	require.Equal(t, uint32(2), cfg.Genesis.Marketplace.Params.TradingFeePercent)
	require.Equal(t, "sqlite", cfg.SalesIndex.Driver)

	_, err = os.Stat(path)
	require.NoError(t, err)

	reloaded, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, cfg.Genesis.Marketplace.Params.AskExpiry, reloaded.Genesis.Marketplace.Params.AskExpiry)
	require.Equal(t, cfg.Genesis.Marketplace.Params.Admin, reloaded.Genesis.Marketplace.Params.Admin)
	require.Equal(t, cfg.RPCAddress, reloaded.RPCAddress)
}

func TestLoadTOML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "marketd.toml")
	contents := `
DataDir = "/var/lib/marketd"
RPCAddress = "127.0.0.1:9000"
GovernanceAddress = "gov"

[Genesis.Marketplace]
listed_hooks = ["indexer"]

[Genesis.Marketplace.params]
trading_fee_percent = 3
fee_recipient = "fees"
admin = "admin"
operators = ["op1"]

[Genesis.Marketplace.params.ask_expiry]
min = 10
max = 1000

[Genesis.Marketplace.params.bid_expiry]
min = 10
max = 1000

[[Genesis.Balances]]
Address = "alice"
Amount = "1000ustars"

[[Genesis.Tokens]]
Collection = "c1"
TokenID = 1
Owner = "alice"
RoyaltyAddress = "artist"
RoyaltyPercent = 5

[[Hooks]]
Address = "indexer"
URL = "https://indexer.example/hooks"
Secret = "s3cret"
`
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, "/var/lib/marketd", cfg.DataDir)
	require.Equal(t, "127.0.0.1:9000", cfg.RPCAddress)
	require.Equal(t, uint32(3), cfg.Genesis.Marketplace.Params.TradingFeePercent)
	require.Equal(t, []string{"op1"}, cfg.Genesis.Marketplace.Params.Operators)
	require.Equal(t, []string{"indexer"}, cfg.Genesis.Marketplace.ListedHooks)
	require.Len(t, cfg.Genesis.Balances, 1)
	require.Len(t, cfg.Genesis.Tokens, 1)
	require.Len(t, cfg.Hooks, 1)
	require.Equal(t, 20.0, cfg.RateLimit.RatePerSecond)
}

func TestLoadYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "marketd.yaml")
	contents := `
governance_address: gov
genesis:
  marketplace:
    params:
      trading_fee_percent: 1
      fee_recipient: fees
      admin: admin
      ask_expiry: {min: 1, max: 100}
      bid_expiry: {min: 1, max: 100}
sales_index:
  enabled: true
  driver: postgres
  dsn: postgres://market@localhost/sales
`
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, uint32(1), cfg.Genesis.Marketplace.Params.TradingFeePercent)
	require.Equal(t, "postgres", cfg.SalesIndex.Driver)
	require.True(t, cfg.SalesIndex.Enabled)
}

func TestLoadRejectsUnknownKeys(t *testing.T) {
	path := filepath.Join(t.TempDir(), "marketd.toml")
	require.NoError(t, os.WriteFile(path, []byte("Bogus = 1\n"), 0o644))

	_, err := Load(path)
	require.ErrorContains(t, err, "unknown keys")
}

func validConfig() *Config {
	cfg := &Config{GovernanceAddress: "gov"}
	cfg.Genesis.Marketplace.Params.FeeRecipient = "fees"
	cfg.Genesis.Marketplace.Params.Admin = "admin"
	applyDefaults(cfg)
	return cfg
}

func TestValidate(t *testing.T) {
	require.NoError(t, Validate(validConfig()))

	tests := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"fee above 100", func(c *Config) { c.Genesis.Marketplace.Params.TradingFeePercent = 101 }, "trading fee"},
		{"missing governance", func(c *Config) { c.GovernanceAddress = "" }, "governance address"},
		{"bad balance", func(c *Config) {
			c.Genesis.Balances = []GenesisBalance{{Address: "alice", Amount: "lots"}}
		}, "genesis balance 0"},
		{"royalty above 100", func(c *Config) {
			c.Genesis.Tokens = []GenesisToken{{Collection: "c1", TokenID: 1, Owner: "alice", RoyaltyPercent: 150}}
		}, "royalty above"},
		{"auth without secret", func(c *Config) { c.Auth.Enabled = true }, "HMACSecret"},
		{"hook url", func(c *Config) {
			c.Hooks = []HookEndpoint{{Address: "h", URL: "ftp://nope"}}
		}, "invalid url"},
		{"duplicate hook", func(c *Config) {
			c.Hooks = []HookEndpoint{{Address: "h", URL: "http://a"}, {Address: "h", URL: "http://b"}}
		}, "duplicate hook"},
		{"driver", func(c *Config) { c.SalesIndex.Driver = "mysql" }, "not supported"},
		{"index without dsn", func(c *Config) { c.SalesIndex.Enabled = true }, "without DSN"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			cfg := validConfig()
			tc.mutate(cfg)
			require.ErrorContains(t, Validate(cfg), tc.want)
		})
	}
}
