package state

import (
	"math/big"

	"nftmarket/native/nft"
)

// BalanceGet returns the stored balance or nil when none exists.
func (m *Manager) BalanceGet(addr, denom string) (*big.Int, error) {
	amount := new(big.Int)
	ok, err := m.getRLP(balanceKey(addr, denom), amount)
	if err != nil || !ok {
		return nil, err
	}
	return amount, nil
}

// BalancePut stores a balance. Zero balances are deleted so that empty
// accounts leave no residue.
func (m *Manager) BalancePut(addr, denom string, amount *big.Int) error {
	if amount == nil || amount.Sign() == 0 {
		return m.delete(balanceKey(addr, denom))
	}
	return m.putRLP(balanceKey(addr, denom), amount)
}

func (m *Manager) NFTOwnerGet(collection string, tokenID uint32) (string, bool, error) {
	var owner string
	ok, err := m.getRLP(nftOwnerKey(collection, tokenID), &owner)
	return owner, ok, err
}

func (m *Manager) NFTOwnerPut(collection string, tokenID uint32, owner string) error {
	return m.putRLP(nftOwnerKey(collection, tokenID), owner)
}

func (m *Manager) NFTApprovalGet(collection string, tokenID uint32) (string, bool, error) {
	var spender string
	ok, err := m.getRLP(nftApprovalKey(collection, tokenID), &spender)
	return spender, ok, err
}

func (m *Manager) NFTApprovalPut(collection string, tokenID uint32, spender string) error {
	return m.putRLP(nftApprovalKey(collection, tokenID), spender)
}

func (m *Manager) NFTApprovalDelete(collection string, tokenID uint32) error {
	return m.delete(nftApprovalKey(collection, tokenID))
}

func (m *Manager) NFTOperatorGet(collection, owner, operator string) (bool, error) {
	return m.has(nftOperatorKey(collection, owner, operator))
}

func (m *Manager) NFTOperatorPut(collection, owner, operator string, approved bool) error {
	key := nftOperatorKey(collection, owner, operator)
	if !approved {
		return m.delete(key)
	}
	return m.put(key, nil)
}

func (m *Manager) NFTCollectionRoyaltyGet(collection string) (*nft.Royalty, bool, error) {
	royalty := new(nft.Royalty)
	ok, err := m.getRLP(collectionRoyaltyKey(collection), royalty)
	if err != nil || !ok {
		return nil, false, err
	}
	return royalty, true, nil
}

func (m *Manager) NFTCollectionRoyaltyPut(collection string, royalty *nft.Royalty) error {
	return m.putRLP(collectionRoyaltyKey(collection), royalty)
}

func (m *Manager) NFTTokenRoyaltyGet(collection string, tokenID uint32) (*nft.Royalty, bool, error) {
	royalty := new(nft.Royalty)
	ok, err := m.getRLP(tokenRoyaltyKey(collection, tokenID), royalty)
	if err != nil || !ok {
		return nil, false, err
	}
	return royalty, true, nil
}

func (m *Manager) NFTTokenRoyaltyPut(collection string, tokenID uint32, royalty *nft.Royalty) error {
	return m.putRLP(tokenRoyaltyKey(collection, tokenID), royalty)
}
