package genesis

import (
	"context"
	"fmt"
	"sort"

	"nftmarket/config"
	"nftmarket/core/state"
	"nftmarket/core/types"
	"nftmarket/native/bank"
	"nftmarket/native/marketplace"
	"nftmarket/native/nft"
)

// Apply seeds a fresh store from the configured genesis. It returns false
// without touching state when the marketplace is already initialised.
func Apply(ctx context.Context, g *config.Genesis, backend *state.Backend, registry *nft.Registry, engine *marketplace.Engine, marketAddress string) (bool, error) {
	if g == nil {
		return false, fmt.Errorf("genesis must not be nil")
	}
	initialised, err := engine.Initialised()
	if err != nil {
		return false, err
	}
	if initialised {
		return false, nil
	}

	// Balances are applied sorted by address then denom so repeated seeding of
	// the same file yields identical state.
	balances := append([]config.GenesisBalance(nil), g.Balances...)
	coins := make([]types.Coin, len(balances))
	for i := range balances {
		coin, err := types.ParseCoin(balances[i].Amount)
		if err != nil {
			return false, fmt.Errorf("balance %s: %w", balances[i].Address, err)
		}
		coins[i] = coin
	}
	order := make([]int, len(balances))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool {
		if balances[order[a]].Address != balances[order[b]].Address {
			return balances[order[a]].Address < balances[order[b]].Address
		}
		return coins[order[a]].Denom < coins[order[b]].Denom
	})

	tokens := append([]config.GenesisToken(nil), g.Tokens...)
	sort.SliceStable(tokens, func(i, j int) bool {
		if tokens[i].Collection != tokens[j].Collection {
			return tokens[i].Collection < tokens[j].Collection
		}
		return tokens[i].TokenID < tokens[j].TokenID
	})

	err = backend.Update(func(m *state.Manager) error {
		for _, idx := range order {
			if err := bank.Credit(m, balances[idx].Address, coins[idx]); err != nil {
				return fmt.Errorf("credit %s: %w", balances[idx].Address, err)
			}
		}
		for _, tok := range tokens {
			if err := registry.Mint(m, tok.Collection, tok.TokenID, tok.Owner); err != nil {
				return fmt.Errorf("mint %s/%d: %w", tok.Collection, tok.TokenID, err)
			}
			if marketAddress != "" {
				if err := registry.Approve(m, tok.Collection, tok.TokenID, tok.Owner, marketAddress); err != nil {
					return fmt.Errorf("approve %s/%d: %w", tok.Collection, tok.TokenID, err)
				}
			}
			if tok.RoyaltyAddress == "" {
				continue
			}
			royalty := nft.Royalty{Recipient: tok.RoyaltyAddress, SharePercent: tok.RoyaltyPercent}
			if err := registry.SetTokenRoyalty(m, tok.Collection, tok.TokenID, royalty); err != nil {
				return fmt.Errorf("royalty %s/%d: %w", tok.Collection, tok.TokenID, err)
			}
		}
		return nil
	})
	if err != nil {
		return false, err
	}
	if err := engine.InitGenesis(ctx, g.Marketplace); err != nil {
		return false, err
	}
	return true, nil
}
