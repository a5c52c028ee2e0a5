package marketplace

import (
	"context"
	"errors"
	"fmt"

	"nftmarket/core/events"
	"nftmarket/core/types"
	"nftmarket/crypto"
	"nftmarket/native/nft"
)

// SetAskRequest lists a token. FundsRecipient may be empty.
type SetAskRequest struct {
	Collection     string     `json:"collection"`
	TokenID        TokenID    `json:"token_id"`
	Price          types.Coin `json:"price"`
	FundsRecipient string     `json:"funds_recipient,omitempty"`
	Expires        uint64     `json:"expires"`
}

// ClassifyAsk applies the read-time rule shared by every consumer of an ask:
// missing, then inactive, then expired.
func ClassifyAsk(ask *Ask, found bool, now uint64) error {
	switch {
	case !found || ask == nil:
		return ErrAskNotFound
	case !ask.Active:
		return ErrAskNotActive
	case now >= ask.Expires:
		return ErrAskExpired
	default:
		return nil
	}
}

func validatePrice(price types.Coin) error {
	if err := price.Validate(); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidPrice, err)
	}
	if price.IsZero() {
		return fmt.Errorf("%w: amount must be positive", ErrInvalidPrice)
	}
	if price.Amount.BitLen() > 256 {
		return fmt.Errorf("%w: amount exceeds 256 bits", ErrInvalidPrice)
	}
	return nil
}

func (x *execution) validateAddress(field, addr string) error {
	if err := crypto.ValidateAddress(x.engine.prefix, addr); err != nil {
		return fmt.Errorf("%w: %s: %v", ErrInvalidAddress, field, err)
	}
	return nil
}

func (x *execution) loadAsk(collection string, tokenID TokenID) (*Ask, bool, error) {
	ask, found, err := x.st.AskGet(collection, tokenID)
	if err != nil {
		return nil, false, err
	}
	return ask, found, nil
}

func (x *execution) usableAsk(collection string, tokenID TokenID) (*Ask, error) {
	ask, found, err := x.loadAsk(collection, tokenID)
	if err != nil {
		return nil, err
	}
	if err := ClassifyAsk(ask, found, x.now); err != nil {
		return nil, fmt.Errorf("%w: %s/%d", err, collection, tokenID)
	}
	return ask, nil
}

// SetAsk creates or overwrites the ask for a token. Bids placed against a
// previous ask stay escrowed and remain refundable through RemoveBid.
func (e *Engine) SetAsk(ctx context.Context, info Info, req SetAskRequest) (*Receipt, error) {
	return e.execute(ctx, "set_ask", info, false, func(x *execution) error {
		if err := x.validateAddress("collection", req.Collection); err != nil {
			return err
		}
		owner, err := e.tokens.OwnerOf(x.st, req.Collection, uint32(req.TokenID))
		if err != nil {
			if errors.Is(err, nft.ErrTokenNotFound) {
				return fmt.Errorf("%w: %w", ErrUnauthorized, err)
			}
			return err
		}
		if owner != info.Sender {
			return fmt.Errorf("%w: %s does not own %s/%d", ErrUnauthorized, info.Sender, req.Collection, req.TokenID)
		}
		approved, err := e.tokens.IsApproved(x.st, req.Collection, uint32(req.TokenID), e.address)
		if err != nil {
			return err
		}
		if !approved {
			return fmt.Errorf("%w: %s/%d", ErrNeedsApproval, req.Collection, req.TokenID)
		}
		if !x.params.AskExpiry.Allows(x.now, req.Expires) {
			return fmt.Errorf("%w: %d outside now %d + [%d, %d]", ErrInvalidExpiration, req.Expires, x.now, x.params.AskExpiry.Min, x.params.AskExpiry.Max)
		}
		if err := validatePrice(req.Price); err != nil {
			return err
		}
		if req.FundsRecipient != "" {
			if err := x.validateAddress("funds recipient", req.FundsRecipient); err != nil {
				return err
			}
		}
		ask := &Ask{
			Collection:     req.Collection,
			TokenID:        req.TokenID,
			Seller:         info.Sender,
			Price:          req.Price.Clone(),
			FundsRecipient: req.FundsRecipient,
			Expires:        req.Expires,
			Active:         true,
		}
		if err := x.st.AskPut(ask); err != nil {
			return err
		}
		x.emit(events.MarketAskSet{
			Collection:     ask.Collection,
			TokenID:        uint32(ask.TokenID),
			Seller:         ask.Seller,
			Price:          ask.Price,
			FundsRecipient: ask.FundsRecipient,
			Expires:        ask.Expires,
		})
		return x.notify(HookListed, Notification{
			Collection: ask.Collection,
			TokenID:    ask.TokenID,
			Price:      ask.Price,
			Seller:     ask.Seller,
		})
	})
}

// RemoveAsk deletes the caller's ask. Bids against the token are untouched.
func (e *Engine) RemoveAsk(ctx context.Context, info Info, collection string, tokenID TokenID) (*Receipt, error) {
	return e.execute(ctx, "remove_ask", info, false, func(x *execution) error {
		ask, found, err := x.loadAsk(collection, tokenID)
		if err != nil {
			return err
		}
		if !found {
			return fmt.Errorf("%w: %s/%d", ErrAskNotFound, collection, tokenID)
		}
		if ask.Seller != info.Sender {
			return fmt.Errorf("%w: only the seller may remove the ask", ErrUnauthorized)
		}
		if err := x.st.AskDelete(collection, tokenID); err != nil {
			return err
		}
		x.emit(events.MarketAskRemoved{Collection: collection, TokenID: uint32(tokenID), Seller: ask.Seller})
		return nil
	})
}

// UpdateAskState flips the active flag. Operators and the admin only.
func (e *Engine) UpdateAskState(ctx context.Context, info Info, collection string, tokenID TokenID, active bool) (*Receipt, error) {
	return e.execute(ctx, "update_ask_state", info, false, func(x *execution) error {
		if err := x.requireOperator(); err != nil {
			return err
		}
		ask, found, err := x.loadAsk(collection, tokenID)
		if err != nil {
			return err
		}
		if !found {
			return fmt.Errorf("%w: %s/%d", ErrAskNotFound, collection, tokenID)
		}
		ask.Active = active
		if err := x.st.AskPut(ask); err != nil {
			return err
		}
		x.emit(events.MarketAskStateUpdated{Collection: collection, TokenID: uint32(tokenID), Active: active})
		return nil
	})
}

// UpdateAsk changes the price of the caller's usable ask.
func (e *Engine) UpdateAsk(ctx context.Context, info Info, collection string, tokenID TokenID, price types.Coin) (*Receipt, error) {
	return e.execute(ctx, "update_ask", info, false, func(x *execution) error {
		ask, found, err := x.loadAsk(collection, tokenID)
		if err != nil {
			return err
		}
		if !found {
			return fmt.Errorf("%w: %s/%d", ErrAskNotFound, collection, tokenID)
		}
		if ask.Seller != info.Sender {
			return fmt.Errorf("%w: only the seller may update the ask", ErrUnauthorized)
		}
		if err := ClassifyAsk(ask, true, x.now); err != nil {
			return fmt.Errorf("%w: %s/%d", err, collection, tokenID)
		}
		if err := validatePrice(price); err != nil {
			return err
		}
		ask.Price = price.Clone()
		if err := x.st.AskPut(ask); err != nil {
			return err
		}
		x.emit(events.MarketAskUpdated{Collection: collection, TokenID: uint32(tokenID), Price: ask.Price})
		return nil
	})
}
