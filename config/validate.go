package config

import (
	"fmt"
	"net/url"
	"strings"

	"nftmarket/core/types"
	"nftmarket/crypto"
)

// Validate checks cross-field constraints that defaults cannot repair.
func Validate(cfg *Config) error {
	prefix := crypto.AddressPrefix(cfg.AddressPrefix)
	if err := crypto.ValidateAddress(prefix, cfg.GovernanceAddress); err != nil {
		return fmt.Errorf("config: governance address: %w", err)
	}
	if err := crypto.ValidateAddress(prefix, cfg.MarketplaceAddress); err != nil {
		return fmt.Errorf("config: marketplace address: %w", err)
	}
	if err := cfg.Genesis.Marketplace.Params.Validate(prefix); err != nil {
		return fmt.Errorf("config: genesis: %w", err)
	}
	for i, bal := range cfg.Genesis.Balances {
		if err := crypto.ValidateAddress(prefix, bal.Address); err != nil {
			return fmt.Errorf("config: genesis balance %d: %w", i, err)
		}
		if _, err := types.ParseCoin(bal.Amount); err != nil {
			return fmt.Errorf("config: genesis balance %d: %w", i, err)
		}
	}
	for i, tok := range cfg.Genesis.Tokens {
		if err := crypto.ValidateAddress(prefix, tok.Owner); err != nil {
			return fmt.Errorf("config: genesis token %d: %w", i, err)
		}
		if tok.RoyaltyPercent > 100 {
			return fmt.Errorf("config: genesis token %d: royalty above 100%%", i)
		}
	}
	if cfg.Auth.Enabled && strings.TrimSpace(cfg.Auth.HMACSecret) == "" {
		return fmt.Errorf("config: auth enabled without HMACSecret")
	}
	seen := make(map[string]struct{}, len(cfg.Hooks))
	for _, hook := range cfg.Hooks {
		if _, dup := seen[hook.Address]; dup {
			return fmt.Errorf("config: duplicate hook endpoint %s", hook.Address)
		}
		seen[hook.Address] = struct{}{}
		parsed, err := url.Parse(hook.URL)
		if err != nil || (parsed.Scheme != "http" && parsed.Scheme != "https") || parsed.Host == "" {
			return fmt.Errorf("config: hook %s: invalid url %q", hook.Address, hook.URL)
		}
	}
	switch cfg.SalesIndex.Driver {
	case "sqlite", "postgres":
	default:
		return fmt.Errorf("config: sales index driver %q not supported", cfg.SalesIndex.Driver)
	}
	if cfg.SalesIndex.Enabled && strings.TrimSpace(cfg.SalesIndex.DSN) == "" {
		return fmt.Errorf("config: sales index enabled without DSN")
	}
	return nil
}
