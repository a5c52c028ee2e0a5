package marketplace

import (
	"context"
	"fmt"

	"nftmarket/core/events"
	"nftmarket/core/types"
	"nftmarket/native/bank"
)

// OneCoin extracts the single coin attached to a call. Anything other than
// exactly one valid coin is a payment error.
func OneCoin(funds []types.Coin) (types.Coin, error) {
	switch len(funds) {
	case 0:
		return types.Coin{}, fmt.Errorf("%w: no funds sent", ErrBidPayment)
	case 1:
	default:
		return types.Coin{}, fmt.Errorf("%w: sent more than one denomination", ErrBidPayment)
	}
	coin := funds[0].Clone()
	if err := coin.Validate(); err != nil {
		return types.Coin{}, fmt.Errorf("%w: %v", ErrBidPayment, err)
	}
	return coin, nil
}

// ClassifyBid mirrors ClassifyAsk for bids.
func ClassifyBid(bid *Bid, found bool, now uint64) error {
	switch {
	case !found || bid == nil:
		return ErrBidNotFound
	case now >= bid.Expires:
		return ErrBidExpired
	default:
		return nil
	}
}

// refundBid returns the escrow of bid from the marketplace account and
// deletes the record.
func (x *execution) refundBid(bid *Bid) error {
	if err := bank.Transfer(x.st, x.engine.address, bid.Bidder, bid.Price); err != nil {
		return fmt.Errorf("refund bid: %w", err)
	}
	return x.st.BidDelete(bid.Collection, bid.TokenID, bid.Bidder)
}

// SetBid places an escrowed bid using the funds attached to the call. A
// previous bid by the same bidder on the same token is refunded first.
func (e *Engine) SetBid(ctx context.Context, info Info, collection string, tokenID TokenID, expires uint64) (*Receipt, error) {
	return e.execute(ctx, "set_bid", info, true, func(x *execution) error {
		ask, err := x.usableAsk(collection, tokenID)
		if err != nil {
			return err
		}
		payment, err := OneCoin(info.Funds)
		if err != nil {
			return err
		}
		if payment.IsZero() || payment.Denom != ask.Price.Denom {
			return fmt.Errorf("%w: sent %s, ask priced in %s", ErrIncorrectBidFunds, payment, ask.Price.Denom)
		}
		if !x.params.BidExpiry.Allows(x.now, expires) {
			return fmt.Errorf("%w: %d outside now %d + [%d, %d]", ErrInvalidExpiration, expires, x.now, x.params.BidExpiry.Min, x.params.BidExpiry.Max)
		}
		prev, found, err := x.st.BidGet(collection, tokenID, info.Sender)
		if err != nil {
			return err
		}
		if found {
			if err := x.refundBid(prev); err != nil {
				return err
			}
		}
		bid := &Bid{
			Collection: collection,
			TokenID:    tokenID,
			Bidder:     info.Sender,
			Price:      payment,
			Expires:    expires,
		}
		if err := x.st.BidPut(bid); err != nil {
			return err
		}
		evt := events.MarketBidSet{
			Collection: collection,
			TokenID:    uint32(tokenID),
			Bidder:     bid.Bidder,
			Price:      bid.Price,
			Expires:    expires,
		}
		if found {
			evt.Replaced = prev.Price
		}
		x.emit(evt)
		return nil
	})
}

// RemoveBid refunds and deletes a bid. The bidder or an operator may call it.
// Expired bids can always be removed.
func (e *Engine) RemoveBid(ctx context.Context, info Info, collection string, tokenID TokenID, bidder string) (*Receipt, error) {
	return e.execute(ctx, "remove_bid", info, false, func(x *execution) error {
		if info.Sender != bidder && !x.params.IsOperator(info.Sender) {
			return fmt.Errorf("%w: only the bidder or an operator may remove a bid", ErrUnauthorized)
		}
		bid, found, err := x.st.BidGet(collection, tokenID, bidder)
		if err != nil {
			return err
		}
		if !found {
			return fmt.Errorf("%w: %s/%d by %s", ErrBidNotFound, collection, tokenID, bidder)
		}
		if err := x.refundBid(bid); err != nil {
			return err
		}
		x.emit(events.MarketBidRemoved{
			Collection: collection,
			TokenID:    uint32(tokenID),
			Bidder:     bidder,
			Refund:     bid.Price,
			RemovedBy:  info.Sender,
		})
		return nil
	})
}
