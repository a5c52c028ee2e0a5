package state

import (
	"math/big"
	"testing"

	"github.com/stretchr/testify/require"

	"nftmarket/core/types"
	"nftmarket/native/marketplace"
	"nftmarket/native/nft"
	"nftmarket/storage"
)

func newTestBackend(t *testing.T) *Backend {
	t.Helper()
	db := storage.NewMemDB()
	t.Cleanup(db.Close)
	return NewBackend(db)
}

func testAsk(collection string, id marketplace.TokenID, seller string) *marketplace.Ask {
	return &marketplace.Ask{
		Collection: collection,
		TokenID:    id,
		Seller:     seller,
		Price:      types.NewCoin("ustars", int64(id)+1),
		Expires:    100,
		Active:     true,
	}
}

func TestAskIndexesFollowRecords(t *testing.T) {
	backend := newTestBackend(t)
	require.NoError(t, backend.Update(func(m *Manager) error {
		for _, id := range []marketplace.TokenID{300, 2, 256, 1} {
			require.NoError(t, m.AskPut(testAsk("c1", id, "alice")))
		}
		require.NoError(t, m.AskPut(testAsk("c0", 9, "bob")))
		return nil
	}))

	require.NoError(t, backend.Update(func(m *Manager) error {
		var ids []marketplace.TokenID
		require.NoError(t, m.IterateAsks("c1", nil, func(ask *marketplace.Ask) (bool, error) {
			ids = append(ids, ask.TokenID)
			return true, nil
		}))
		require.Equal(t, []marketplace.TokenID{1, 2, 256, 300}, ids)

		count, err := m.AskCount("c1")
		require.NoError(t, err)
		require.Equal(t, uint64(4), count)

		// Relisting under a new seller moves the index entry.
		require.NoError(t, m.AskPut(testAsk("c1", 2, "bob")))
		count, err = m.AskCount("c1")
		require.NoError(t, err)
		require.Equal(t, uint64(4), count)

		var bobs []marketplace.TokenRef
		require.NoError(t, m.IterateAsksBySeller("bob", nil, func(ask *marketplace.Ask) (bool, error) {
			bobs = append(bobs, ask.Ref())
			return true, nil
		}))
		require.Equal(t, []marketplace.TokenRef{{Collection: "c0", TokenID: 9}, {Collection: "c1", TokenID: 2}}, bobs)

		var alices int
		require.NoError(t, m.IterateAsksBySeller("alice", nil, func(*marketplace.Ask) (bool, error) {
			alices++
			return true, nil
		}))
		require.Equal(t, 3, alices)

		require.NoError(t, m.AskDelete("c0", 9))
		var collections []string
		require.NoError(t, m.IterateListedCollections("", func(c string) (bool, error) {
			collections = append(collections, c)
			return true, nil
		}))
		require.Equal(t, []string{"c1"}, collections)
		return nil
	}))
}

func TestBidIndexesAndCursors(t *testing.T) {
	backend := newTestBackend(t)
	require.NoError(t, backend.Update(func(m *Manager) error {
		for _, bidder := range []string{"b2", "b10", "b1"} {
			require.NoError(t, m.BidPut(&marketplace.Bid{
				Collection: "c1",
				TokenID:    7,
				Bidder:     bidder,
				Price:      types.NewCoin("ustars", 5),
				Expires:    50,
			}))
		}
		return nil
	}))

	view, err := backend.Snapshot()
	require.NoError(t, err)
	defer view.Release()

	var bidders []string
	require.NoError(t, view.IterateBids("c1", 7, "b1", func(bid *marketplace.Bid) (bool, error) {
		bidders = append(bidders, bid.Bidder)
		return true, nil
	}))
	require.Equal(t, []string{"b10", "b2"}, bidders)

	var refs []marketplace.TokenRef
	require.NoError(t, view.IterateBidsByBidder("b10", nil, func(bid *marketplace.Bid) (bool, error) {
		refs = append(refs, bid.Ref())
		return true, nil
	}))
	require.Equal(t, []marketplace.TokenRef{{Collection: "c1", TokenID: 7}}, refs)

	require.Error(t, view.BidDelete("c1", 7, "b1"), "snapshots are read-only")
}

func TestHooksPendingAndTags(t *testing.T) {
	backend := newTestBackend(t)
	require.NoError(t, backend.Update(func(m *Manager) error {
		added, err := m.HookAdd(marketplace.HookListed, "h2")
		require.NoError(t, err)
		require.True(t, added)
		added, err = m.HookAdd(marketplace.HookListed, "h1")
		require.NoError(t, err)
		require.True(t, added)
		added, err = m.HookAdd(marketplace.HookListed, "h1")
		require.NoError(t, err)
		require.False(t, added)

		hooks, err := m.Hooks(marketplace.HookListed)
		require.NoError(t, err)
		require.Equal(t, []string{"h1", "h2"}, hooks)
		hooks, err = m.Hooks(marketplace.HookSaleFinalized)
		require.NoError(t, err)
		require.Empty(t, hooks)

		removed, err := m.HookRemove(marketplace.HookSaleFinalized, "h1")
		require.NoError(t, err)
		require.False(t, removed)

		first, err := m.NextReplyTag()
		require.NoError(t, err)
		second, err := m.NextReplyTag()
		require.NoError(t, err)
		require.Equal(t, uint64(1), first)
		require.Equal(t, uint64(2), second)

		pending := &marketplace.PendingSettlement{
			Tag:        second,
			Kind:       marketplace.SettlementAcceptBid,
			Collection: "c1",
			TokenID:    3,
			Price:      types.NewCoin("ustars", 100),
			Fee:        types.NewCoin("ustars", 2),
			Royalty:    types.NewCoin("ustars", 5),
			Remainder:  types.NewCoin("ustars", 93),
		}
		require.NoError(t, m.PendingSettlementPut(pending))
		stored, ok, err := m.PendingSettlementGet(second)
		require.NoError(t, err)
		require.True(t, ok)
		require.True(t, stored.Remainder.Equal(pending.Remainder))
		require.Equal(t, marketplace.SettlementAcceptBid, stored.Kind)
		return nil
	}))
}

func TestBalancesAndNFTRecords(t *testing.T) {
	backend := newTestBackend(t)
	require.NoError(t, backend.Update(func(m *Manager) error {
		require.NoError(t, m.BalancePut("alice", "ustars", big.NewInt(42)))
		require.NoError(t, m.NFTOwnerPut("c1", 1, "alice"))
		require.NoError(t, m.NFTOperatorPut("c1", "alice", "market", true))
		return m.NFTTokenRoyaltyPut("c1", 1, &nft.Royalty{Recipient: "artist", SharePercent: 7})
	}))

	require.NoError(t, backend.Update(func(m *Manager) error {
		bal, err := m.BalanceGet("alice", "ustars")
		require.NoError(t, err)
		require.Equal(t, int64(42), bal.Int64())
		require.NoError(t, m.BalancePut("alice", "ustars", big.NewInt(0)))
		bal, err = m.BalanceGet("alice", "ustars")
		require.NoError(t, err)
		require.Nil(t, bal)

		approved, err := m.NFTOperatorGet("c1", "alice", "market")
		require.NoError(t, err)
		require.True(t, approved)
		royalty, ok, err := m.NFTTokenRoyaltyGet("c1", 1)
		require.NoError(t, err)
		require.True(t, ok)
		require.Equal(t, uint32(7), royalty.SharePercent)
		_, ok, err = m.NFTCollectionRoyaltyGet("c1")
		require.NoError(t, err)
		require.False(t, ok)
		return nil
	}))
}
