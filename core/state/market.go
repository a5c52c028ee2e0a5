package state

import (
	"fmt"

	"nftmarket/native/marketplace"
)

func (m *Manager) AskGet(collection string, tokenID marketplace.TokenID) (*marketplace.Ask, bool, error) {
	ask := new(marketplace.Ask)
	ok, err := m.getRLP(askKey(collection, uint32(tokenID)), ask)
	if err != nil || !ok {
		return nil, false, err
	}
	return ask, true, nil
}

// AskPut stores the ask and keeps the seller index and the per-collection
// counter in step with it.
func (m *Manager) AskPut(ask *marketplace.Ask) error {
	if ask == nil {
		return fmt.Errorf("state: nil ask")
	}
	prev, exists, err := m.AskGet(ask.Collection, ask.TokenID)
	if err != nil {
		return err
	}
	if exists && prev.Seller != ask.Seller {
		if err := m.delete(sellerIndexKey(prev.Seller, prev.Collection, uint32(prev.TokenID))); err != nil {
			return err
		}
	}
	if !exists {
		if err := m.adjustAskCount(ask.Collection, 1); err != nil {
			return err
		}
	}
	if err := m.put(sellerIndexKey(ask.Seller, ask.Collection, uint32(ask.TokenID)), nil); err != nil {
		return err
	}
	return m.putRLP(askKey(ask.Collection, uint32(ask.TokenID)), ask)
}

func (m *Manager) AskDelete(collection string, tokenID marketplace.TokenID) error {
	prev, exists, err := m.AskGet(collection, tokenID)
	if err != nil || !exists {
		return err
	}
	if err := m.delete(sellerIndexKey(prev.Seller, collection, uint32(tokenID))); err != nil {
		return err
	}
	if err := m.adjustAskCount(collection, -1); err != nil {
		return err
	}
	return m.delete(askKey(collection, uint32(tokenID)))
}

func (m *Manager) AskCount(collection string) (uint64, error) {
	return m.getUint64(askCountKey(collection))
}

func (m *Manager) adjustAskCount(collection string, delta int) error {
	count, err := m.AskCount(collection)
	if err != nil {
		return err
	}
	switch {
	case delta > 0:
		count++
	case count > 0:
		count--
	}
	if count == 0 {
		return m.delete(askCountKey(collection))
	}
	return m.putUint64(askCountKey(collection), count)
}

func (m *Manager) IterateAsks(collection string, startAfter *marketplace.TokenID, fn func(*marketplace.Ask) (bool, error)) error {
	prefix := askCollectionPrefix(collection)
	var start []byte
	if startAfter != nil {
		start = after(askKey(collection, uint32(*startAfter)))
	}
	return m.scan(prefix, start, func(_, value []byte) (bool, error) {
		ask := new(marketplace.Ask)
		if err := decode(value, ask); err != nil {
			return false, err
		}
		return fn(ask)
	})
}

func (m *Manager) IterateAsksBySeller(seller string, startAfter *marketplace.TokenRef, fn func(*marketplace.Ask) (bool, error)) error {
	prefix := sellerIndexPrefix(seller)
	var start []byte
	if startAfter != nil {
		start = after(sellerIndexKey(seller, startAfter.Collection, uint32(startAfter.TokenID)))
	}
	return m.scan(prefix, start, func(key, _ []byte) (bool, error) {
		collection, tokenID, ok := splitIndexKey(key[len(prefix):])
		if !ok {
			return false, fmt.Errorf("state: malformed seller index key %x", key)
		}
		ask, found, err := m.AskGet(collection, marketplace.TokenID(tokenID))
		if err != nil {
			return false, err
		}
		if !found {
			return false, fmt.Errorf("state: seller index points at missing ask %s/%d", collection, tokenID)
		}
		return fn(ask)
	})
}

func (m *Manager) IterateListedCollections(startAfter string, fn func(string) (bool, error)) error {
	prefix := []byte{prefixAskCount}
	var start []byte
	if startAfter != "" {
		start = after(askCountKey(startAfter))
	}
	return m.scan(prefix, start, func(key, _ []byte) (bool, error) {
		return fn(string(key[len(prefix):]))
	})
}

func (m *Manager) BidGet(collection string, tokenID marketplace.TokenID, bidder string) (*marketplace.Bid, bool, error) {
	bid := new(marketplace.Bid)
	ok, err := m.getRLP(bidKey(collection, uint32(tokenID), bidder), bid)
	if err != nil || !ok {
		return nil, false, err
	}
	return bid, true, nil
}

func (m *Manager) BidPut(bid *marketplace.Bid) error {
	if bid == nil {
		return fmt.Errorf("state: nil bid")
	}
	if err := m.put(bidderIndexKey(bid.Bidder, bid.Collection, uint32(bid.TokenID)), nil); err != nil {
		return err
	}
	return m.putRLP(bidKey(bid.Collection, uint32(bid.TokenID), bid.Bidder), bid)
}

func (m *Manager) BidDelete(collection string, tokenID marketplace.TokenID, bidder string) error {
	if err := m.delete(bidderIndexKey(bidder, collection, uint32(tokenID))); err != nil {
		return err
	}
	return m.delete(bidKey(collection, uint32(tokenID), bidder))
}

func (m *Manager) IterateBids(collection string, tokenID marketplace.TokenID, startAfter string, fn func(*marketplace.Bid) (bool, error)) error {
	prefix := bidTokenPrefix(collection, uint32(tokenID))
	var start []byte
	if startAfter != "" {
		start = after(bidKey(collection, uint32(tokenID), startAfter))
	}
	return m.scan(prefix, start, func(_, value []byte) (bool, error) {
		bid := new(marketplace.Bid)
		if err := decode(value, bid); err != nil {
			return false, err
		}
		return fn(bid)
	})
}

func (m *Manager) IterateBidsByBidder(bidder string, startAfter *marketplace.TokenRef, fn func(*marketplace.Bid) (bool, error)) error {
	prefix := bidderIndexPrefix(bidder)
	var start []byte
	if startAfter != nil {
		start = after(bidderIndexKey(bidder, startAfter.Collection, uint32(startAfter.TokenID)))
	}
	return m.scan(prefix, start, func(key, _ []byte) (bool, error) {
		collection, tokenID, ok := splitIndexKey(key[len(prefix):])
		if !ok {
			return false, fmt.Errorf("state: malformed bidder index key %x", key)
		}
		bid, found, err := m.BidGet(collection, marketplace.TokenID(tokenID), bidder)
		if err != nil {
			return false, err
		}
		if !found {
			return false, fmt.Errorf("state: bidder index points at missing bid %s/%d", collection, tokenID)
		}
		return fn(bid)
	})
}

func (m *Manager) MarketParamsGet() (*marketplace.Params, bool, error) {
	params := new(marketplace.Params)
	ok, err := m.getRLP([]byte{prefixParams}, params)
	if err != nil || !ok {
		return nil, false, err
	}
	return params, true, nil
}

func (m *Manager) MarketParamsPut(params *marketplace.Params) error {
	if params == nil {
		return fmt.Errorf("state: nil params")
	}
	return m.putRLP([]byte{prefixParams}, params)
}

func hookPrefix(kind marketplace.HookKind) (byte, error) {
	switch kind {
	case marketplace.HookListed:
		return prefixListedHook, nil
	case marketplace.HookSaleFinalized:
		return prefixSaleHook, nil
	default:
		return 0, fmt.Errorf("state: unknown hook kind %d", kind)
	}
}

// HookAdd inserts addr into the set. The boolean is false when addr was
// already a member.
func (m *Manager) HookAdd(kind marketplace.HookKind, addr string) (bool, error) {
	prefix, err := hookPrefix(kind)
	if err != nil {
		return false, err
	}
	key := hookKey(prefix, addr)
	exists, err := m.has(key)
	if err != nil || exists {
		return false, err
	}
	return true, m.put(key, nil)
}

// HookRemove deletes addr from the set. The boolean is false when addr was
// not a member.
func (m *Manager) HookRemove(kind marketplace.HookKind, addr string) (bool, error) {
	prefix, err := hookPrefix(kind)
	if err != nil {
		return false, err
	}
	key := hookKey(prefix, addr)
	exists, err := m.has(key)
	if err != nil || !exists {
		return false, err
	}
	return true, m.delete(key)
}

// Hooks lists the members of a set in ascending address order.
func (m *Manager) Hooks(kind marketplace.HookKind) ([]string, error) {
	prefix, err := hookPrefix(kind)
	if err != nil {
		return nil, err
	}
	hooks := []string{}
	err = m.scan([]byte{prefix}, nil, func(key, _ []byte) (bool, error) {
		hooks = append(hooks, string(key[1:]))
		return true, nil
	})
	return hooks, err
}

func (m *Manager) PendingSettlementGet(tag uint64) (*marketplace.PendingSettlement, bool, error) {
	pending := new(marketplace.PendingSettlement)
	ok, err := m.getRLP(pendingKey(tag), pending)
	if err != nil || !ok {
		return nil, false, err
	}
	return pending, true, nil
}

func (m *Manager) PendingSettlementPut(pending *marketplace.PendingSettlement) error {
	if pending == nil {
		return fmt.Errorf("state: nil pending settlement")
	}
	return m.putRLP(pendingKey(pending.Tag), pending)
}

func (m *Manager) PendingSettlementDelete(tag uint64) error {
	return m.delete(pendingKey(tag))
}

// NextReplyTag allocates a fresh reply tag. Tags start at 1 and are never
// reused, even across committed transactions.
func (m *Manager) NextReplyTag() (uint64, error) {
	key := []byte{prefixReplyTag}
	last, err := m.getUint64(key)
	if err != nil {
		return 0, err
	}
	next := last + 1
	if err := m.putUint64(key, next); err != nil {
		return 0, err
	}
	return next, nil
}
