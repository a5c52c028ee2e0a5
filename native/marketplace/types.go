package marketplace

import (
	"nftmarket/core/types"
)

// TokenID identifies a token inside a collection. Ordering is numeric.
type TokenID uint32

// TokenRef names a single token. It doubles as the pagination cursor for the
// seller and bidder indexes.
type TokenRef struct {
	Collection string  `json:"collection"`
	TokenID    TokenID `json:"token_id"`
}

// Ask is a seller's listing of one token.
type Ask struct {
	Collection     string     `json:"collection"`
	TokenID        TokenID    `json:"token_id"`
	Seller         string     `json:"seller"`
	Price          types.Coin `json:"price"`
	FundsRecipient string     `json:"funds_recipient,omitempty"`
	Expires        uint64     `json:"expires"`
	Active         bool       `json:"active"`
}

// Clone returns a deep copy of the ask.
func (a *Ask) Clone() *Ask {
	if a == nil {
		return nil
	}
	clone := *a
	clone.Price = a.Price.Clone()
	return &clone
}

// Payee returns the address that receives the sale remainder.
func (a *Ask) Payee() string {
	if a.FundsRecipient != "" {
		return a.FundsRecipient
	}
	return a.Seller
}

// Ref returns the key of the ask.
func (a *Ask) Ref() TokenRef {
	return TokenRef{Collection: a.Collection, TokenID: a.TokenID}
}

// Bid is an escrowed offer from one bidder on one token. Price is the amount
// held in the marketplace vault for the bid.
type Bid struct {
	Collection string     `json:"collection"`
	TokenID    TokenID    `json:"token_id"`
	Bidder     string     `json:"bidder"`
	Price      types.Coin `json:"price"`
	Expires    uint64     `json:"expires"`
}

// Clone returns a deep copy of the bid.
func (b *Bid) Clone() *Bid {
	if b == nil {
		return nil
	}
	clone := *b
	clone.Price = b.Price.Clone()
	return &clone
}

// Ref returns the token the bid targets.
func (b *Bid) Ref() TokenRef {
	return TokenRef{Collection: b.Collection, TokenID: b.TokenID}
}

// ExpiryRange bounds how far in the future an expiration may be set, in
// seconds relative to the current block time.
type ExpiryRange struct {
	Min uint64 `json:"min" toml:"min" yaml:"min"`
	Max uint64 `json:"max" toml:"max" yaml:"max"`
}

// Allows reports whether expires lies in [now+Min, now+Max]. The offset is
// compared rather than summed so that a Max near the uint64 limit cannot wrap.
func (r ExpiryRange) Allows(now, expires uint64) bool {
	if expires < now {
		return false
	}
	ttl := expires - now
	return ttl >= r.Min && ttl <= r.Max
}

// SettlementKind tags the deferred operation awaiting a transfer reply.
type SettlementKind uint8

const (
	SettlementAcceptBid SettlementKind = iota + 1
)

func (k SettlementKind) String() string {
	switch k {
	case SettlementAcceptBid:
		return "accept_bid"
	default:
		return "unknown"
	}
}

// PendingSettlement is the Phase 1 record of an accepted bid. It carries the
// computed split and is consumed exactly once by the transfer reply.
type PendingSettlement struct {
	Tag                uint64
	Kind               SettlementKind
	Collection         string
	TokenID            TokenID
	Seller             string
	Bidder             string
	Price              types.Coin
	Fee                types.Coin
	Royalty            types.Coin
	Remainder          types.Coin
	FeeRecipient       string
	RoyaltyRecipient   string
	RemainderRecipient string
}

// Clone returns a deep copy of the pending record.
func (p *PendingSettlement) Clone() *PendingSettlement {
	if p == nil {
		return nil
	}
	clone := *p
	clone.Price = p.Price.Clone()
	clone.Fee = p.Fee.Clone()
	clone.Royalty = p.Royalty.Clone()
	clone.Remainder = p.Remainder.Clone()
	return &clone
}

// TransferRequest is the token transfer scheduled by Phase 1. Recipient
// receives the token; the marketplace address is the spender. The transfer
// fails unless Owner still holds the token when it runs.
type TransferRequest struct {
	Tag        uint64
	Collection string
	TokenID    TokenID
	Owner      string
	Recipient  string
}

// Reply reports the outcome of a scheduled transfer. A nil Err confirms it.
type Reply struct {
	Tag uint64
	Err error
}

// Split is the division of a sale price.
type Split struct {
	Fee       types.Coin `json:"fee"`
	Royalty   types.Coin `json:"royalty"`
	Remainder types.Coin `json:"remainder"`
}
