package marketplace_test

import (
	"fmt"
	"math"
	"math/big"
	"testing"

	"github.com/stretchr/testify/require"

	"nftmarket/core/types"
	"nftmarket/native/marketplace"
)

func TestSetAskStoresListingAndNotifies(t *testing.T) {
	h := newHarness(t)
	expires := uint64(h.now + 3_600)
	_, err := h.engine.SetAsk(h.ctx, marketplace.Info{Sender: seller}, marketplace.SetAskRequest{
		Collection: collection,
		TokenID:    1,
		Price:      types.NewCoin(stars, 100),
		Expires:    expires,
	})
	require.NoError(t, err)

	ask, err := h.engine.CurrentAsk(collection, 1)
	require.NoError(t, err)
	require.NotNil(t, ask)
	require.True(t, ask.Price.Equal(types.NewCoin(stars, 100)))
	require.Equal(t, seller, ask.Seller)
	require.True(t, ask.Active)
	require.Equal(t, expires, ask.Expires)
	require.NoError(t, marketplace.ClassifyAsk(ask, true, uint64(h.now)))

	listed := h.notifier.byKind(marketplace.HookListed)
	require.Len(t, listed, 1)
	require.Equal(t, "listed-hook", listed[0].hook)
	require.Equal(t, seller, listed[0].n.Seller)
	require.Empty(t, listed[0].n.Buyer)

	count, err := h.engine.AskCount(collection)
	require.NoError(t, err)
	require.Equal(t, uint64(1), count)

	// Relisting overwrites without changing the count.
	h.listAt(1, 300)
	count, err = h.engine.AskCount(collection)
	require.NoError(t, err)
	require.Equal(t, uint64(1), count)
}

func TestSetAskRejections(t *testing.T) {
	h := newHarness(t)
	h.mint(7, bidder1)
	require.NoError(t, h.backend.Update(func(m *stateManager) error {
		return h.registry.Mint(m, collection, 8, seller)
	}))

	cases := []struct {
		name string
		info marketplace.Info
		req  marketplace.SetAskRequest
		want error
	}{
		{
			name: "not owner",
			info: marketplace.Info{Sender: seller},
			req:  marketplace.SetAskRequest{Collection: collection, TokenID: 7, Price: types.NewCoin(stars, 1), Expires: uint64(h.now + 600)},
			want: marketplace.ErrUnauthorized,
		},
		{
			name: "unknown token",
			info: marketplace.Info{Sender: seller},
			req:  marketplace.SetAskRequest{Collection: collection, TokenID: 99, Price: types.NewCoin(stars, 1), Expires: uint64(h.now + 600)},
			want: marketplace.ErrUnauthorized,
		},
		{
			name: "missing approval",
			info: marketplace.Info{Sender: seller},
			req:  marketplace.SetAskRequest{Collection: collection, TokenID: 8, Price: types.NewCoin(stars, 1), Expires: uint64(h.now + 600)},
			want: marketplace.ErrNeedsApproval,
		},
		{
			name: "expiry below minimum",
			info: marketplace.Info{Sender: seller},
			req:  marketplace.SetAskRequest{Collection: collection, TokenID: 1, Price: types.NewCoin(stars, 1), Expires: uint64(h.now + 59)},
			want: marketplace.ErrInvalidExpiration,
		},
		{
			name: "expiry above maximum",
			info: marketplace.Info{Sender: seller},
			req:  marketplace.SetAskRequest{Collection: collection, TokenID: 1, Price: types.NewCoin(stars, 1), Expires: uint64(h.now + 86_401)},
			want: marketplace.ErrInvalidExpiration,
		},
		{
			name: "zero price",
			info: marketplace.Info{Sender: seller},
			req:  marketplace.SetAskRequest{Collection: collection, TokenID: 1, Price: types.NewCoin(stars, 0), Expires: uint64(h.now + 600)},
			want: marketplace.ErrInvalidPrice,
		},
		{
			name: "bad denom",
			info: marketplace.Info{Sender: seller},
			req:  marketplace.SetAskRequest{Collection: collection, TokenID: 1, Price: types.NewCoin("x", 5), Expires: uint64(h.now + 600)},
			want: marketplace.ErrInvalidPrice,
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := h.engine.SetAsk(h.ctx, tc.info, tc.req)
			require.ErrorIs(t, err, tc.want)
			ask, err := h.engine.CurrentAsk(collection, tc.req.TokenID)
			require.NoError(t, err)
			require.Nil(t, ask)
		})
	}
	require.Empty(t, h.notifier.byKind(marketplace.HookListed))
}

func TestExpiryBoundsAreInclusive(t *testing.T) {
	h := newHarness(t)
	for _, ttl := range []int64{60, 86_400} {
		_, err := h.engine.SetAsk(h.ctx, marketplace.Info{Sender: seller}, marketplace.SetAskRequest{
			Collection: collection, TokenID: 1, Price: types.NewCoin(stars, 10), Expires: uint64(h.now + ttl),
		})
		require.NoError(t, err, "ttl %d", ttl)
	}
}

func TestExpiryRangeDoesNotWrap(t *testing.T) {
	unbounded := marketplace.ExpiryRange{Min: 60, Max: math.MaxUint64}
	now := uint64(1_700_000_000)
	require.False(t, unbounded.Allows(now, now+30))
	require.True(t, unbounded.Allows(now, now+60))
	require.True(t, unbounded.Allows(now, math.MaxUint64))
	require.False(t, unbounded.Allows(now, now-1))
	require.False(t, marketplace.ExpiryRange{Min: 0, Max: 10}.Allows(now, now-1))

	h := newHarness(t)
	_, err := h.engine.UpdateParams(h.ctx, governance, marketplace.ParamsUpdate{AskExpiry: &unbounded})
	require.NoError(t, err)
	_, err = h.engine.SetAsk(h.ctx, marketplace.Info{Sender: seller}, marketplace.SetAskRequest{
		Collection: collection, TokenID: 1, Price: types.NewCoin(stars, 10), Expires: uint64(h.now + 30),
	})
	require.ErrorIs(t, err, marketplace.ErrInvalidExpiration)
	_, err = h.engine.SetAsk(h.ctx, marketplace.Info{Sender: seller}, marketplace.SetAskRequest{
		Collection: collection, TokenID: 1, Price: types.NewCoin(stars, 10), Expires: math.MaxUint64,
	})
	require.NoError(t, err)
}

func TestRemoveAskRequiresSeller(t *testing.T) {
	h := newHarness(t)
	h.listAt(1, 100)

	_, err := h.engine.RemoveAsk(h.ctx, marketplace.Info{Sender: bidder1}, collection, 1)
	require.ErrorIs(t, err, marketplace.ErrUnauthorized)

	_, err = h.engine.RemoveAsk(h.ctx, marketplace.Info{Sender: seller}, collection, 1)
	require.NoError(t, err)
	ask, err := h.engine.CurrentAsk(collection, 1)
	require.NoError(t, err)
	require.Nil(t, ask)

	count, err := h.engine.AskCount(collection)
	require.NoError(t, err)
	require.Zero(t, count)
	collections, err := h.engine.ListedCollections("", 0)
	require.NoError(t, err)
	require.Empty(t, collections)

	_, err = h.engine.RemoveAsk(h.ctx, marketplace.Info{Sender: seller}, collection, 1)
	require.ErrorIs(t, err, marketplace.ErrAskNotFound)
}

func TestUpdateAskStateIsIdempotent(t *testing.T) {
	h := newHarness(t)
	h.listAt(1, 100)

	_, err := h.engine.UpdateAskState(h.ctx, marketplace.Info{Sender: seller}, collection, 1, false)
	require.ErrorIs(t, err, marketplace.ErrUnauthorized)

	_, err = h.engine.UpdateAskState(h.ctx, marketplace.Info{Sender: operator}, collection, 1, false)
	require.NoError(t, err)
	once, err := h.engine.CurrentAsk(collection, 1)
	require.NoError(t, err)

	_, err = h.engine.UpdateAskState(h.ctx, marketplace.Info{Sender: admin}, collection, 1, false)
	require.NoError(t, err)
	twice, err := h.engine.CurrentAsk(collection, 1)
	require.NoError(t, err)
	require.Equal(t, once, twice)
	require.False(t, twice.Active)
	require.ErrorIs(t, marketplace.ClassifyAsk(twice, true, uint64(h.now)), marketplace.ErrAskNotActive)

	err = h.bid(bidder1, types.NewCoin(stars, 100), 500)
	require.ErrorIs(t, err, marketplace.ErrAskNotActive)
	require.Equal(t, int64(1_000), h.balance(bidder1, stars))
}

func TestUpdateAsk(t *testing.T) {
	h := newHarness(t)
	h.listAt(1, 100)

	_, err := h.engine.UpdateAsk(h.ctx, marketplace.Info{Sender: bidder1}, collection, 1, types.NewCoin(stars, 50))
	require.ErrorIs(t, err, marketplace.ErrUnauthorized)
	_, err = h.engine.UpdateAsk(h.ctx, marketplace.Info{Sender: seller}, collection, 1, types.NewCoin(stars, 0))
	require.ErrorIs(t, err, marketplace.ErrInvalidPrice)

	_, err = h.engine.UpdateAsk(h.ctx, marketplace.Info{Sender: seller}, collection, 1, types.NewCoin(stars, 75))
	require.NoError(t, err)
	ask, err := h.engine.CurrentAsk(collection, 1)
	require.NoError(t, err)
	require.Equal(t, int64(75), ask.Price.Amount.Int64())
	require.True(t, ask.Active)

	h.now += 1_000
	_, err = h.engine.UpdateAsk(h.ctx, marketplace.Info{Sender: seller}, collection, 1, types.NewCoin(stars, 80))
	require.ErrorIs(t, err, marketplace.ErrAskExpired)

	// Expired asks are still returned by queries.
	asks, err := h.engine.Asks(collection, nil, 0)
	require.NoError(t, err)
	require.Len(t, asks, 1)
}

func TestSetBidValidation(t *testing.T) {
	h := newHarness(t)

	err := h.bid(bidder1, types.NewCoin(stars, 100), 500)
	require.ErrorIs(t, err, marketplace.ErrAskNotFound)

	h.listAt(1, 100)

	err = h.bid(bidder1, types.NewCoin(cosm, 50), 500)
	require.ErrorIs(t, err, marketplace.ErrIncorrectBidFunds)
	require.Equal(t, marketplace.CategoryValidation, marketplace.ErrorCategory(err))
	require.Equal(t, int64(1_000), h.balance(bidder1, cosm))
	require.Equal(t, int64(0), h.balance(market, cosm))

	err = h.bid(bidder1, types.NewCoin(stars, 0), 500)
	require.ErrorIs(t, err, marketplace.ErrIncorrectBidFunds)

	err = h.bid(bidder1, types.NewCoin(stars, 100), 30)
	require.ErrorIs(t, err, marketplace.ErrInvalidExpiration)

	_, err = h.engine.SetBid(h.ctx, marketplace.Info{Sender: bidder1}, collection, 1, uint64(h.now+500))
	require.ErrorIs(t, err, marketplace.ErrBidPayment)

	_, err = h.engine.SetBid(h.ctx, marketplace.Info{Sender: bidder1, Funds: []types.Coin{
		types.NewCoin(stars, 10), types.NewCoin(cosm, 10),
	}}, collection, 1, uint64(h.now+500))
	require.ErrorIs(t, err, marketplace.ErrBidPayment)

	err = h.bid(bidder1, types.NewCoin(stars, 5_000), 500)
	require.ErrorIs(t, err, marketplace.ErrBidPayment, "bidder cannot cover the escrow")

	bid, err := h.engine.Bid(collection, 1, bidder1)
	require.NoError(t, err)
	require.Nil(t, bid)
	require.Equal(t, int64(1_000), h.balance(bidder1, stars))
	h.escrowBalanced()
}

func TestSetBidReplacesPreviousEscrow(t *testing.T) {
	h := newHarness(t)
	h.listAt(1, 100)

	for i, amount := range []int64{100, 40, 250} {
		require.NoError(t, h.bid(bidder1, types.NewCoin(stars, amount), 500), "bid %d", i)
		require.Equal(t, 1_000-amount, h.balance(bidder1, stars))
		require.Equal(t, amount, h.balance(market, stars))
	}
	bids, err := h.engine.Bids(collection, 1, "", 0)
	require.NoError(t, err)
	require.Len(t, bids, 1)
	require.Equal(t, int64(250), bids[0].Price.Amount.Int64())
}

func TestRemoveBid(t *testing.T) {
	h := newHarness(t)
	h.listAt(1, 100)
	require.NoError(t, h.bid(bidder1, types.NewCoin(stars, 120), 500))
	require.NoError(t, h.bid(bidder2, types.NewCoin(stars, 80), 500))

	_, err := h.engine.RemoveBid(h.ctx, marketplace.Info{Sender: bidder2}, collection, 1, bidder1)
	require.ErrorIs(t, err, marketplace.ErrUnauthorized)

	_, err = h.engine.RemoveBid(h.ctx, marketplace.Info{Sender: bidder1}, collection, 1, bidder1)
	require.NoError(t, err)
	bid, err := h.engine.Bid(collection, 1, bidder1)
	require.NoError(t, err)
	require.Nil(t, bid)
	require.Equal(t, int64(1_000), h.balance(bidder1, stars))

	_, err = h.engine.RemoveBid(h.ctx, marketplace.Info{Sender: bidder1}, collection, 1, bidder1)
	require.ErrorIs(t, err, marketplace.ErrBidNotFound)

	// Operators may clear expired bids on behalf of the bidder.
	h.now += 600
	_, err = h.engine.RemoveBid(h.ctx, marketplace.Info{Sender: operator}, collection, 1, bidder2)
	require.NoError(t, err)
	require.Equal(t, int64(1_000), h.balance(bidder2, stars))
	h.escrowBalanced()
}

func TestUpdateParams(t *testing.T) {
	h := newHarness(t)

	fee := uint32(10)
	_, err := h.engine.UpdateParams(h.ctx, seller, marketplace.ParamsUpdate{TradingFeePercent: &fee})
	require.ErrorIs(t, err, marketplace.ErrUnauthorized)

	_, err = h.engine.UpdateParams(h.ctx, governance, marketplace.ParamsUpdate{TradingFeePercent: &fee})
	require.NoError(t, err)
	params, err := h.engine.Params()
	require.NoError(t, err)
	require.Equal(t, uint32(10), params.TradingFeePercent)
	require.Equal(t, defaultGenesis().Params.AskExpiry, params.AskExpiry)
	require.Equal(t, []string{operator}, params.Operators)

	bidExpiry := marketplace.ExpiryRange{Min: 10, Max: 20}
	_, err = h.engine.UpdateParams(h.ctx, governance, marketplace.ParamsUpdate{
		BidExpiry: &bidExpiry,
		Operators: []string{"op2", "op3"},
	})
	require.NoError(t, err)
	params, err = h.engine.Params()
	require.NoError(t, err)
	require.Equal(t, uint32(10), params.TradingFeePercent)
	require.Equal(t, bidExpiry, params.BidExpiry)
	require.Equal(t, []string{"op2", "op3"}, params.Operators, "operator list is replaced, not merged")

	_, err = h.engine.UpdateAskState(h.ctx, marketplace.Info{Sender: operator}, collection, 1, false)
	require.ErrorIs(t, err, marketplace.ErrUnauthorized)

	tooHigh := uint32(101)
	_, err = h.engine.UpdateParams(h.ctx, governance, marketplace.ParamsUpdate{TradingFeePercent: &tooHigh})
	require.ErrorIs(t, err, marketplace.ErrInvalidParams)
	inverted := marketplace.ExpiryRange{Min: 5, Max: 1}
	_, err = h.engine.UpdateParams(h.ctx, governance, marketplace.ParamsUpdate{AskExpiry: &inverted})
	require.ErrorIs(t, err, marketplace.ErrInvalidParams)

	params, err = h.engine.Params()
	require.NoError(t, err)
	require.Equal(t, uint32(10), params.TradingFeePercent)
}

func TestHookRegistry(t *testing.T) {
	h := newHarness(t)

	_, err := h.engine.AddHook(h.ctx, seller, marketplace.HookListed, "indexer")
	require.ErrorIs(t, err, marketplace.ErrUnauthorized)

	_, err = h.engine.AddHook(h.ctx, governance, marketplace.HookListed, "indexer")
	require.NoError(t, err)
	_, err = h.engine.AddHook(h.ctx, governance, marketplace.HookListed, "indexer")
	require.ErrorIs(t, err, marketplace.ErrHookAlreadyRegistered)
	require.Equal(t, marketplace.CategoryLifecycle, marketplace.ErrorCategory(err))

	hooks, err := h.engine.Hooks(marketplace.HookListed)
	require.NoError(t, err)
	require.Equal(t, []string{"indexer", "listed-hook"}, hooks)

	_, err = h.engine.RemoveHook(h.ctx, governance, marketplace.HookSaleFinalized, "indexer")
	require.ErrorIs(t, err, marketplace.ErrHookNotRegistered)
	require.Equal(t, marketplace.CategoryLifecycle, marketplace.ErrorCategory(err))
	_, err = h.engine.RemoveHook(h.ctx, governance, marketplace.HookListed, "listed-hook")
	require.NoError(t, err)

	h.listAt(1, 100)
	listed := h.notifier.byKind(marketplace.HookListed)
	require.Len(t, listed, 1)
	require.Equal(t, "indexer", listed[0].hook)
}

func TestQueryPagination(t *testing.T) {
	h := newHarness(t)
	for id := uint32(2); id <= 40; id++ {
		h.mint(id, seller)
	}
	for id := marketplace.TokenID(1); id <= 40; id++ {
		h.listAt(id, int64(id))
	}

	page, err := h.engine.Asks(collection, nil, 0)
	require.NoError(t, err)
	require.Len(t, page, marketplace.DefaultQueryLimit)
	require.Equal(t, marketplace.TokenID(1), page[0].TokenID)

	page, err = h.engine.Asks(collection, nil, 1_000)
	require.NoError(t, err)
	require.Len(t, page, marketplace.MaxQueryLimit)

	cursor := marketplace.TokenID(35)
	page, err = h.engine.Asks(collection, &cursor, 10)
	require.NoError(t, err)
	require.Len(t, page, 5)
	for i, ask := range page {
		require.Equal(t, marketplace.TokenID(36+i), ask.TokenID, "asks must be ordered numerically")
	}

	bySeller, err := h.engine.AsksBySeller(seller, &marketplace.TokenRef{Collection: collection, TokenID: 9}, 3)
	require.NoError(t, err)
	require.Len(t, bySeller, 3)
	require.Equal(t, marketplace.TokenID(10), bySeller[0].TokenID)

	count, err := h.engine.AskCount(collection)
	require.NoError(t, err)
	require.Equal(t, uint64(40), count)

	collections, err := h.engine.ListedCollections("", 0)
	require.NoError(t, err)
	require.Equal(t, []string{collection}, collections)
	collections, err = h.engine.ListedCollections(collection, 0)
	require.NoError(t, err)
	require.Empty(t, collections)
}

func TestBidQueries(t *testing.T) {
	h := newHarness(t)
	h.listAt(1, 100)
	bidders := []string{"b1", "b10", "b2", "b3"}
	require.NoError(t, h.backend.Update(func(m *stateManager) error {
		for _, b := range bidders {
			if err := creditStars(m, b, 1_000); err != nil {
				return err
			}
		}
		return nil
	}))
	for _, b := range bidders {
		require.NoError(t, h.bid(b, types.NewCoin(stars, 10), 500))
	}

	bids, err := h.engine.Bids(collection, 1, "", 0)
	require.NoError(t, err)
	got := make([]string, 0, len(bids))
	for _, bid := range bids {
		got = append(got, bid.Bidder)
	}
	require.Equal(t, bidders, got)

	bids, err = h.engine.Bids(collection, 1, "b1", 2)
	require.NoError(t, err)
	require.Len(t, bids, 2)
	require.Equal(t, "b10", bids[0].Bidder)

	byBidder, err := h.engine.BidsByBidder("b3", nil, 0)
	require.NoError(t, err)
	require.Len(t, byBidder, 1)
	require.Equal(t, collection, byBidder[0].Collection)
}

func TestComputeSplitConservesPrice(t *testing.T) {
	amounts := []int64{1, 7, 99, 100, 12_345, 1_000_000_007}
	for _, amount := range amounts {
		for fee := uint32(0); fee <= 100; fee += 7 {
			for royalty := uint32(0); fee+royalty <= 100; royalty += 9 {
				price := types.NewCoin(stars, amount)
				split, err := marketplace.ComputeSplit(price, fee, royalty)
				require.NoError(t, err, fmt.Sprintf("amount=%d fee=%d royalty=%d", amount, fee, royalty))
				sum := new(big.Int).Add(split.Fee.Amount, split.Royalty.Amount)
				sum.Add(sum, split.Remainder.Amount)
				require.Zero(t, sum.Cmp(price.Amount))
				require.Equal(t, amount*int64(fee)/100, split.Fee.Amount.Int64())
				require.Equal(t, amount*int64(royalty)/100, split.Royalty.Amount.Int64())
			}
		}
	}

	_, err := marketplace.ComputeSplit(types.NewCoin(stars, 100), 60, 41)
	require.ErrorIs(t, err, marketplace.ErrInvalidRoyalties)
	_, err = marketplace.ComputeSplit(types.NewCoin(stars, 100), 0, 101)
	require.ErrorIs(t, err, marketplace.ErrInvalidRoyalties)

	huge := new(big.Int).Lsh(big.NewInt(1), 255)
	split, err := marketplace.ComputeSplit(types.Coin{Denom: stars, Amount: huge}, 50, 50)
	require.NoError(t, err)
	require.Zero(t, split.Remainder.Amount.Sign())
}
