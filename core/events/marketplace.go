package events

import (
	"encoding/hex"
	"strconv"
	"strings"

	ethcrypto "github.com/ethereum/go-ethereum/crypto"

	"nftmarket/core/types"
)

const (
	// TypeMarketAskSet is emitted when a token is listed or relisted.
	TypeMarketAskSet = "marketplace.ask_set"
	// TypeMarketAskRemoved is emitted when a seller withdraws a listing.
	TypeMarketAskRemoved = "marketplace.ask_removed"
	// TypeMarketAskStateUpdated is emitted when an operator toggles a listing.
	TypeMarketAskStateUpdated = "marketplace.ask_state_updated"
	// TypeMarketAskUpdated is emitted when a seller changes the price.
	TypeMarketAskUpdated = "marketplace.ask_updated"
	// TypeMarketBidSet is emitted when funds are escrowed for a bid.
	TypeMarketBidSet = "marketplace.bid_set"
	// TypeMarketBidRemoved is emitted when a bid is refunded.
	TypeMarketBidRemoved = "marketplace.bid_removed"
	// TypeMarketSaleFinalized is emitted once the token transfer of an
	// accepted bid is confirmed and proceeds are paid out.
	TypeMarketSaleFinalized = "marketplace.sale_finalized"
	// TypeMarketParamsUpdated is emitted on governance params changes.
	TypeMarketParamsUpdated = "marketplace.params_updated"
	// TypeMarketHookAdded is emitted when a hook subscriber is registered.
	TypeMarketHookAdded = "marketplace.hook_added"
	// TypeMarketHookRemoved is emitted when a hook subscriber is removed.
	TypeMarketHookRemoved = "marketplace.hook_removed"
)

func coinAmount(c types.Coin) string {
	if c.Amount == nil {
		return "0"
	}
	return c.Amount.String()
}

func tokenString(id uint32) string {
	return strconv.FormatUint(uint64(id), 10)
}

type MarketAskSet struct {
	Collection     string
	TokenID        uint32
	Seller         string
	Price          types.Coin
	FundsRecipient string
	Expires        uint64
}

func (MarketAskSet) EventType() string { return TypeMarketAskSet }

func (e MarketAskSet) Event() *types.Event {
	return &types.Event{
		Type: TypeMarketAskSet,
		Attributes: map[string]string{
			"collection":     e.Collection,
			"tokenId":        tokenString(e.TokenID),
			"seller":         e.Seller,
			"price":          coinAmount(e.Price),
			"denom":          e.Price.Denom,
			"fundsRecipient": e.FundsRecipient,
			"expires":        strconv.FormatUint(e.Expires, 10),
		},
	}
}

type MarketAskRemoved struct {
	Collection string
	TokenID    uint32
	Seller     string
}

func (MarketAskRemoved) EventType() string { return TypeMarketAskRemoved }

func (e MarketAskRemoved) Event() *types.Event {
	return &types.Event{
		Type: TypeMarketAskRemoved,
		Attributes: map[string]string{
			"collection": e.Collection,
			"tokenId":    tokenString(e.TokenID),
			"seller":     e.Seller,
		},
	}
}

type MarketAskStateUpdated struct {
	Collection string
	TokenID    uint32
	Active     bool
}

func (MarketAskStateUpdated) EventType() string { return TypeMarketAskStateUpdated }

func (e MarketAskStateUpdated) Event() *types.Event {
	return &types.Event{
		Type: TypeMarketAskStateUpdated,
		Attributes: map[string]string{
			"collection": e.Collection,
			"tokenId":    tokenString(e.TokenID),
			"active":     strconv.FormatBool(e.Active),
		},
	}
}

type MarketAskUpdated struct {
	Collection string
	TokenID    uint32
	Price      types.Coin
}

func (MarketAskUpdated) EventType() string { return TypeMarketAskUpdated }

func (e MarketAskUpdated) Event() *types.Event {
	return &types.Event{
		Type: TypeMarketAskUpdated,
		Attributes: map[string]string{
			"collection": e.Collection,
			"tokenId":    tokenString(e.TokenID),
			"price":      coinAmount(e.Price),
			"denom":      e.Price.Denom,
		},
	}
}

// MarketBidSet carries the superseded escrow in Replaced when the bidder
// already had a bid on the token.
type MarketBidSet struct {
	Collection string
	TokenID    uint32
	Bidder     string
	Price      types.Coin
	Expires    uint64
	Replaced   types.Coin
}

func (MarketBidSet) EventType() string { return TypeMarketBidSet }

func (e MarketBidSet) Event() *types.Event {
	attrs := map[string]string{
		"collection": e.Collection,
		"tokenId":    tokenString(e.TokenID),
		"bidder":     e.Bidder,
		"price":      coinAmount(e.Price),
		"denom":      e.Price.Denom,
		"expires":    strconv.FormatUint(e.Expires, 10),
	}
	if !e.Replaced.IsZero() {
		attrs["refunded"] = e.Replaced.String()
	}
	return &types.Event{Type: TypeMarketBidSet, Attributes: attrs}
}

type MarketBidRemoved struct {
	Collection string
	TokenID    uint32
	Bidder     string
	Refund     types.Coin
	RemovedBy  string
}

func (MarketBidRemoved) EventType() string { return TypeMarketBidRemoved }

func (e MarketBidRemoved) Event() *types.Event {
	return &types.Event{
		Type: TypeMarketBidRemoved,
		Attributes: map[string]string{
			"collection": e.Collection,
			"tokenId":    tokenString(e.TokenID),
			"bidder":     e.Bidder,
			"refund":     coinAmount(e.Refund),
			"denom":      e.Refund.Denom,
			"removedBy":  e.RemovedBy,
		},
	}
}

type MarketSaleFinalized struct {
	Tag              uint64
	Collection       string
	TokenID          uint32
	Seller           string
	Buyer            string
	Price            types.Coin
	Fee              types.Coin
	Royalty          types.Coin
	Remainder        types.Coin
	FeeRecipient     string
	RoyaltyRecipient string
	FundsRecipient   string
}

func (MarketSaleFinalized) EventType() string { return TypeMarketSaleFinalized }

// SettlementID is a stable identifier for the sale derived from the token,
// the buyer and the reply tag.
func (e MarketSaleFinalized) SettlementID() string {
	payload := strings.Join([]string{
		e.Collection,
		tokenString(e.TokenID),
		e.Buyer,
		strconv.FormatUint(e.Tag, 10),
	}, "|")
	return hex.EncodeToString(ethcrypto.Keccak256([]byte(payload)))
}

func (e MarketSaleFinalized) Event() *types.Event {
	return &types.Event{
		Type: TypeMarketSaleFinalized,
		Attributes: map[string]string{
			"settlementId":     e.SettlementID(),
			"collection":       e.Collection,
			"tokenId":          tokenString(e.TokenID),
			"seller":           e.Seller,
			"buyer":            e.Buyer,
			"price":            coinAmount(e.Price),
			"denom":            e.Price.Denom,
			"fee":              coinAmount(e.Fee),
			"royalty":          coinAmount(e.Royalty),
			"remainder":        coinAmount(e.Remainder),
			"feeRecipient":     e.FeeRecipient,
			"royaltyRecipient": e.RoyaltyRecipient,
			"fundsRecipient":   e.FundsRecipient,
		},
	}
}

type MarketParamsUpdated struct {
	TradingFeePercent uint32
	AskExpiryMin      uint64
	AskExpiryMax      uint64
	BidExpiryMin      uint64
	BidExpiryMax      uint64
	Operators         []string
}

func (MarketParamsUpdated) EventType() string { return TypeMarketParamsUpdated }

func (e MarketParamsUpdated) Event() *types.Event {
	return &types.Event{
		Type: TypeMarketParamsUpdated,
		Attributes: map[string]string{
			"tradingFeePercent": strconv.FormatUint(uint64(e.TradingFeePercent), 10),
			"askExpiryMin":      strconv.FormatUint(e.AskExpiryMin, 10),
			"askExpiryMax":      strconv.FormatUint(e.AskExpiryMax, 10),
			"bidExpiryMin":      strconv.FormatUint(e.BidExpiryMin, 10),
			"bidExpiryMax":      strconv.FormatUint(e.BidExpiryMax, 10),
			"operators":         strings.Join(e.Operators, ","),
		},
	}
}

type MarketHookAdded struct {
	Kind string
	Hook string
}

func (MarketHookAdded) EventType() string { return TypeMarketHookAdded }

func (e MarketHookAdded) Event() *types.Event {
	return &types.Event{
		Type:       TypeMarketHookAdded,
		Attributes: map[string]string{"kind": e.Kind, "hook": e.Hook},
	}
}

type MarketHookRemoved struct {
	Kind string
	Hook string
}

func (MarketHookRemoved) EventType() string { return TypeMarketHookRemoved }

func (e MarketHookRemoved) Event() *types.Event {
	return &types.Event{
		Type:       TypeMarketHookRemoved,
		Attributes: map[string]string{"kind": e.Kind, "hook": e.Hook},
	}
}
