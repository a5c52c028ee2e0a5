package genesis

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"nftmarket/config"
	"nftmarket/core/state"
	"nftmarket/native/marketplace"
	"nftmarket/native/nft"
	"nftmarket/storage"
)

func testGenesis() *config.Genesis {
	return &config.Genesis{
		Marketplace: marketplace.Genesis{
			Params: marketplace.Params{
				TradingFeePercent: 2,
				AskExpiry:         marketplace.ExpiryRange{Min: 1, Max: 100},
				BidExpiry:         marketplace.ExpiryRange{Min: 1, Max: 100},
				FeeRecipient:      "fees",
				Admin:             "admin",
			},
			ListedHooks: []string{"indexer"},
		},
		Balances: []config.GenesisBalance{
			{Address: "bob", Amount: "500ustars"},
			{Address: "alice", Amount: "1000ustars"},
			{Address: "alice", Amount: "7ucosm"},
		},
		Tokens: []config.GenesisToken{
			{Collection: "c1", TokenID: 2, Owner: "alice", RoyaltyAddress: "artist", RoyaltyPercent: 5},
			{Collection: "c1", TokenID: 1, Owner: "bob"},
		},
	}
}

func TestApplySeedsOnce(t *testing.T) {
	db := storage.NewMemDB()
	t.Cleanup(db.Close)
	backend := state.NewBackend(db)
	registry := nft.NewRegistry()
	engine := marketplace.NewEngine(marketplace.Config{Address: "market", Governance: "gov"}, backend, registry, registry)
	ctx := context.Background()

	applied, err := Apply(ctx, testGenesis(), backend, registry, engine, "market")
	require.NoError(t, err)
	require.True(t, applied)

	bal, err := engine.Balance("alice", "ustars")
	require.NoError(t, err)
	require.Equal(t, int64(1000), bal.Int64())
	hooks, err := engine.Hooks(marketplace.HookListed)
	require.NoError(t, err)
	require.Equal(t, []string{"indexer"}, hooks)

	require.NoError(t, backend.Update(func(m *state.Manager) error {
		owner, err := registry.OwnerOf(m, "c1", 2)
		require.NoError(t, err)
		require.Equal(t, "alice", owner)
		approved, err := registry.IsApproved(m, "c1", 2, "market")
		require.NoError(t, err)
		require.True(t, approved)
		royalty, ok, err := registry.Royalty(m, "c1", 2)
		require.NoError(t, err)
		require.True(t, ok)
		require.Equal(t, uint32(5), royalty.SharePercent)
		return nil
	}))

	applied, err = Apply(ctx, testGenesis(), backend, registry, engine, "market")
	require.NoError(t, err)
	require.False(t, applied)
	bal, err = engine.Balance("alice", "ustars")
	require.NoError(t, err)
	require.Equal(t, int64(1000), bal.Int64())
}
