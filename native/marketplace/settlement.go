package marketplace

import (
	"context"
	"fmt"
	"math/big"

	"github.com/holiman/uint256"

	"nftmarket/core/events"
	"nftmarket/core/types"
	"nftmarket/native/bank"
	"nftmarket/native/nft"
)

// ComputeSplit divides price into the trading fee, the royalty and the
// remainder. Both shares are whole percentages and truncate; the three parts
// always sum to price.
func ComputeSplit(price types.Coin, feePercent, royaltyPercent uint32) (Split, error) {
	if feePercent > MaxPercent {
		return Split{}, fmt.Errorf("%w: trading fee %d%% exceeds %d%%", ErrInvalidParams, feePercent, MaxPercent)
	}
	if royaltyPercent > MaxPercent || feePercent+royaltyPercent > MaxPercent {
		return Split{}, fmt.Errorf("%w: royalty %d%% with trading fee %d%% exceeds %d%%", ErrInvalidRoyalties, royaltyPercent, feePercent, MaxPercent)
	}
	amount, overflow := uint256.FromBig(price.Clone().Amount)
	if overflow || price.Clone().Amount.Sign() < 0 {
		return Split{}, fmt.Errorf("%w: amount out of range", ErrInvalidPrice)
	}
	hundred := uint256.NewInt(MaxPercent)
	fee, _ := new(uint256.Int).MulDivOverflow(amount, uint256.NewInt(uint64(feePercent)), hundred)
	royalty, _ := new(uint256.Int).MulDivOverflow(amount, uint256.NewInt(uint64(royaltyPercent)), hundred)
	remainder := new(uint256.Int).Sub(amount, fee)
	remainder.Sub(remainder, royalty)
	return Split{
		Fee:       types.Coin{Denom: price.Denom, Amount: fee.ToBig()},
		Royalty:   types.Coin{Denom: price.Denom, Amount: royalty.ToBig()},
		Remainder: types.Coin{Denom: price.Denom, Amount: remainder.ToBig()},
	}, nil
}

func royaltyFor(royalties RoyaltyRegistry, st nft.State, collection string, tokenID TokenID) (*nft.Royalty, error) {
	royalty, found, err := royalties.Royalty(st, collection, uint32(tokenID))
	if err != nil {
		return nil, err
	}
	if !found || royalty == nil {
		return nil, fmt.Errorf("%w: %s/%d", ErrNoRoyaltiesForTokenID, collection, tokenID)
	}
	if royalty.Recipient == "" {
		return nil, fmt.Errorf("%w: missing royalty recipient", ErrInvalidRoyalties)
	}
	return royalty, nil
}

// AcceptBid settles a bid in two phases. Phase one validates the pair,
// computes the split, records a pending settlement and schedules the token
// transfer from the seller to the bidder. Phase two runs when the transfer
// reply arrives: funds move out of escrow, records are deleted and hooks are
// notified. Both phases share one transaction.
func (e *Engine) AcceptBid(ctx context.Context, info Info, collection string, tokenID TokenID, bidder string) (*Receipt, error) {
	return e.execute(ctx, "accept_bid", info, false, func(x *execution) error {
		ask, found, err := x.loadAsk(collection, tokenID)
		if err != nil {
			return err
		}
		if !found {
			return fmt.Errorf("%w: %s/%d", ErrAskNotFound, collection, tokenID)
		}
		if ask.Seller != info.Sender {
			return fmt.Errorf("%w: only the seller may accept a bid", ErrUnauthorized)
		}
		if err := ClassifyAsk(ask, true, x.now); err != nil {
			return fmt.Errorf("%w: %s/%d", err, collection, tokenID)
		}
		owner, err := e.tokens.OwnerOf(x.st, collection, uint32(tokenID))
		if err != nil {
			return err
		}
		if owner != ask.Seller {
			return fmt.Errorf("%w: %s no longer owns %s/%d", ErrUnauthorized, ask.Seller, collection, tokenID)
		}
		bid, found, err := x.st.BidGet(collection, tokenID, bidder)
		if err != nil {
			return err
		}
		if err := ClassifyBid(bid, found, x.now); err != nil {
			return fmt.Errorf("%w: %s/%d by %s", err, collection, tokenID, bidder)
		}
		royalty, err := royaltyFor(e.royalties, x.st, collection, tokenID)
		if err != nil {
			return err
		}
		split, err := ComputeSplit(bid.Price, x.params.TradingFeePercent, royalty.SharePercent)
		if err != nil {
			return err
		}
		tag, err := x.st.NextReplyTag()
		if err != nil {
			return err
		}
		pending := &PendingSettlement{
			Tag:                tag,
			Kind:               SettlementAcceptBid,
			Collection:         collection,
			TokenID:            tokenID,
			Seller:             ask.Seller,
			Bidder:             bidder,
			Price:              bid.Price.Clone(),
			Fee:                split.Fee,
			Royalty:            split.Royalty,
			Remainder:          split.Remainder,
			FeeRecipient:       x.params.FeeRecipient,
			RoyaltyRecipient:   royalty.Recipient,
			RemainderRecipient: ask.Payee(),
		}
		if err := x.st.PendingSettlementPut(pending); err != nil {
			return err
		}
		x.transfers = append(x.transfers, TransferRequest{
			Tag:        tag,
			Collection: collection,
			TokenID:    tokenID,
			Owner:      ask.Seller,
			Recipient:  bidder,
		})
		return nil
	})
}

// handleReply consumes the pending settlement named by the reply tag.
func (x *execution) handleReply(reply Reply) error {
	pending, found, err := x.st.PendingSettlementGet(reply.Tag)
	if err != nil {
		return err
	}
	if !found {
		x.engine.metrics.ObserveReply("unrecognised")
		return &UnrecognisedReplyError{Tag: reply.Tag}
	}
	if err := x.st.PendingSettlementDelete(reply.Tag); err != nil {
		return err
	}
	if reply.Err != nil {
		x.engine.metrics.ObserveReply("failed")
		return fmt.Errorf("%w: %s/%d: %w", ErrTransferFailed, pending.Collection, pending.TokenID, reply.Err)
	}
	switch pending.Kind {
	case SettlementAcceptBid:
		if err := x.finalizeSale(pending); err != nil {
			return err
		}
	default:
		return &UnrecognisedReplyError{Tag: reply.Tag}
	}
	x.engine.metrics.ObserveReply("confirmed")
	return nil
}

func (x *execution) finalizeSale(p *PendingSettlement) error {
	vault := x.engine.address
	payouts := []struct {
		to   string
		coin types.Coin
	}{
		{p.FeeRecipient, p.Fee},
		{p.RoyaltyRecipient, p.Royalty},
		{p.RemainderRecipient, p.Remainder},
	}
	total := new(big.Int)
	for _, payout := range payouts {
		total.Add(total, payout.coin.Clone().Amount)
	}
	if total.Cmp(p.Price.Clone().Amount) != 0 {
		return fmt.Errorf("marketplace: settlement %d split %s does not match price %s", p.Tag, total, p.Price)
	}
	for _, payout := range payouts {
		if err := bank.Transfer(x.st, vault, payout.to, payout.coin); err != nil {
			return fmt.Errorf("settlement payout: %w", err)
		}
	}
	if err := x.st.AskDelete(p.Collection, p.TokenID); err != nil {
		return err
	}
	if err := x.st.BidDelete(p.Collection, p.TokenID, p.Bidder); err != nil {
		return err
	}
	x.settled = append(x.settled, p)
	x.emit(events.MarketSaleFinalized{
		Tag:              p.Tag,
		Collection:       p.Collection,
		TokenID:          uint32(p.TokenID),
		Seller:           p.Seller,
		Buyer:            p.Bidder,
		Price:            p.Price,
		Fee:              p.Fee,
		Royalty:          p.Royalty,
		Remainder:        p.Remainder,
		FeeRecipient:     p.FeeRecipient,
		RoyaltyRecipient: p.RoyaltyRecipient,
		FundsRecipient:   p.RemainderRecipient,
	})
	return x.notify(HookSaleFinalized, Notification{
		Collection: p.Collection,
		TokenID:    p.TokenID,
		Price:      p.Price,
		Seller:     p.Seller,
		Buyer:      p.Bidder,
	})
}
