package marketplace

import (
	"context"
	"fmt"

	"nftmarket/core/events"
	"nftmarket/crypto"
)

// MaxPercent bounds the trading fee and royalty shares.
const MaxPercent = 100

// Params is the governance-controlled marketplace configuration.
type Params struct {
	TradingFeePercent uint32      `json:"trading_fee_percent" toml:"trading_fee_percent" yaml:"trading_fee_percent"`
	AskExpiry         ExpiryRange `json:"ask_expiry" toml:"ask_expiry" yaml:"ask_expiry"`
	BidExpiry         ExpiryRange `json:"bid_expiry" toml:"bid_expiry" yaml:"bid_expiry"`
	Operators         []string    `json:"operators" toml:"operators" yaml:"operators"`
	FeeRecipient      string      `json:"fee_recipient" toml:"fee_recipient" yaml:"fee_recipient"`
	Admin             string      `json:"admin" toml:"admin" yaml:"admin"`
}

// Clone returns a deep copy of the params.
func (p *Params) Clone() *Params {
	if p == nil {
		return nil
	}
	clone := *p
	clone.Operators = append([]string(nil), p.Operators...)
	return &clone
}

// IsOperator reports whether addr may perform moderation actions. The admin
// is always an operator.
func (p *Params) IsOperator(addr string) bool {
	if p == nil || addr == "" {
		return false
	}
	if addr == p.Admin {
		return true
	}
	for _, op := range p.Operators {
		if op == addr {
			return true
		}
	}
	return false
}

// Validate checks ranges and addresses against prefix.
func (p *Params) Validate(prefix crypto.AddressPrefix) error {
	if p == nil {
		return fmt.Errorf("%w: params required", ErrInvalidParams)
	}
	if p.TradingFeePercent > MaxPercent {
		return fmt.Errorf("%w: trading fee %d%% exceeds %d%%", ErrInvalidParams, p.TradingFeePercent, MaxPercent)
	}
	if p.AskExpiry.Min > p.AskExpiry.Max {
		return fmt.Errorf("%w: ask expiry min %d above max %d", ErrInvalidParams, p.AskExpiry.Min, p.AskExpiry.Max)
	}
	if p.BidExpiry.Min > p.BidExpiry.Max {
		return fmt.Errorf("%w: bid expiry min %d above max %d", ErrInvalidParams, p.BidExpiry.Min, p.BidExpiry.Max)
	}
	if err := crypto.ValidateAddress(prefix, p.FeeRecipient); err != nil {
		return fmt.Errorf("%w: fee recipient: %v", ErrInvalidParams, err)
	}
	if err := crypto.ValidateAddress(prefix, p.Admin); err != nil {
		return fmt.Errorf("%w: admin: %v", ErrInvalidParams, err)
	}
	for _, op := range p.Operators {
		if err := crypto.ValidateAddress(prefix, op); err != nil {
			return fmt.Errorf("%w: operator: %v", ErrInvalidParams, err)
		}
	}
	return nil
}

// ParamsUpdate carries a partial params change. Nil fields are left as they
// are; a non-nil Operators slice replaces the stored list.
type ParamsUpdate struct {
	TradingFeePercent *uint32      `json:"trading_fee_percent,omitempty"`
	AskExpiry         *ExpiryRange `json:"ask_expiry,omitempty"`
	BidExpiry         *ExpiryRange `json:"bid_expiry,omitempty"`
	Operators         []string     `json:"operators,omitempty"`
}

// Apply returns params with the update merged in.
func (u ParamsUpdate) Apply(params *Params) *Params {
	next := params.Clone()
	if u.TradingFeePercent != nil {
		next.TradingFeePercent = *u.TradingFeePercent
	}
	if u.AskExpiry != nil {
		next.AskExpiry = *u.AskExpiry
	}
	if u.BidExpiry != nil {
		next.BidExpiry = *u.BidExpiry
	}
	if u.Operators != nil {
		next.Operators = append([]string{}, u.Operators...)
	}
	return next
}

// Genesis seeds the configuration store and hook sets.
type Genesis struct {
	Params             Params   `json:"params" toml:"params" yaml:"params"`
	ListedHooks        []string `json:"listed_hooks" toml:"listed_hooks" yaml:"listed_hooks"`
	SaleFinalizedHooks []string `json:"sale_finalized_hooks" toml:"sale_finalized_hooks" yaml:"sale_finalized_hooks"`
}

// InitGenesis writes the initial params and hooks. It fails when params are
// already stored.
func (e *Engine) InitGenesis(ctx context.Context, genesis Genesis) error {
	if err := genesis.Params.Validate(e.prefix); err != nil {
		return err
	}
	_, err := e.run(ctx, "init_genesis", Info{Sender: e.governance}, false, func(x *execution) error {
		if _, exists, err := x.st.MarketParamsGet(); err != nil {
			return err
		} else if exists {
			return fmt.Errorf("%w: already initialised", ErrInvalidParams)
		}
		if err := x.st.MarketParamsPut(genesis.Params.Clone()); err != nil {
			return err
		}
		for _, hook := range genesis.ListedHooks {
			if err := x.addHook(HookListed, hook); err != nil {
				return err
			}
		}
		for _, hook := range genesis.SaleFinalizedHooks {
			if err := x.addHook(HookSaleFinalized, hook); err != nil {
				return err
			}
		}
		return nil
	})
	return err
}

// UpdateParams applies a governance params change.
func (e *Engine) UpdateParams(ctx context.Context, sender string, update ParamsUpdate) (*Receipt, error) {
	return e.execute(ctx, "update_params", Info{Sender: sender}, false, func(x *execution) error {
		if err := x.requireGovernance(); err != nil {
			return err
		}
		next := update.Apply(x.params)
		if err := next.Validate(e.prefix); err != nil {
			return err
		}
		if err := x.st.MarketParamsPut(next); err != nil {
			return err
		}
		x.params = next
		x.emit(events.MarketParamsUpdated{
			TradingFeePercent: next.TradingFeePercent,
			AskExpiryMin:      next.AskExpiry.Min,
			AskExpiryMax:      next.AskExpiry.Max,
			BidExpiryMin:      next.BidExpiry.Min,
			BidExpiryMax:      next.BidExpiry.Max,
			Operators:         append([]string(nil), next.Operators...),
		})
		return nil
	})
}
