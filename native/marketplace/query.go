package marketplace

import (
	"math/big"
)

const (
	DefaultQueryLimit = 10
	MaxQueryLimit     = 30
)

// ClampLimit applies the default and maximum page sizes.
func ClampLimit(limit uint32) int {
	switch {
	case limit == 0:
		return DefaultQueryLimit
	case limit > MaxQueryLimit:
		return MaxQueryLimit
	default:
		return int(limit)
	}
}

// view runs fn against a snapshot of committed state. Queries return stored
// records as-is: expired or inactive asks and expired bids are listed, and
// callers classify them with ClassifyAsk / ClassifyBid when they care.
func (e *Engine) view(fn func(Store) error) error {
	if e.backend == nil {
		return errNilBackend
	}
	snap, err := e.backend.Snapshot()
	if err != nil {
		return err
	}
	defer snap.Release()
	return fn(snap)
}

// CurrentAsk returns the ask for a token, or nil when none exists.
func (e *Engine) CurrentAsk(collection string, tokenID TokenID) (*Ask, error) {
	var ask *Ask
	err := e.view(func(st Store) error {
		found, ok, err := st.AskGet(collection, tokenID)
		if ok {
			ask = found
		}
		return err
	})
	return ask, err
}

// Asks pages through a collection's asks in token order.
func (e *Engine) Asks(collection string, startAfter *TokenID, limit uint32) ([]*Ask, error) {
	pageSize := ClampLimit(limit)
	asks := make([]*Ask, 0, pageSize)
	err := e.view(func(st Store) error {
		return st.IterateAsks(collection, startAfter, func(ask *Ask) (bool, error) {
			asks = append(asks, ask)
			return len(asks) < pageSize, nil
		})
	})
	return asks, err
}

// AskCount returns the number of stored asks in a collection.
func (e *Engine) AskCount(collection string) (uint64, error) {
	var count uint64
	err := e.view(func(st Store) (err error) {
		count, err = st.AskCount(collection)
		return err
	})
	return count, err
}

// AsksBySeller pages through a seller's asks in (collection, token) order.
func (e *Engine) AsksBySeller(seller string, startAfter *TokenRef, limit uint32) ([]*Ask, error) {
	pageSize := ClampLimit(limit)
	asks := make([]*Ask, 0, pageSize)
	err := e.view(func(st Store) error {
		return st.IterateAsksBySeller(seller, startAfter, func(ask *Ask) (bool, error) {
			asks = append(asks, ask)
			return len(asks) < pageSize, nil
		})
	})
	return asks, err
}

// ListedCollections pages through collections holding at least one ask.
func (e *Engine) ListedCollections(startAfter string, limit uint32) ([]string, error) {
	pageSize := ClampLimit(limit)
	collections := make([]string, 0, pageSize)
	err := e.view(func(st Store) error {
		return st.IterateListedCollections(startAfter, func(collection string) (bool, error) {
			collections = append(collections, collection)
			return len(collections) < pageSize, nil
		})
	})
	return collections, err
}

// Bid returns one bid, or nil when none exists.
func (e *Engine) Bid(collection string, tokenID TokenID, bidder string) (*Bid, error) {
	var bid *Bid
	err := e.view(func(st Store) error {
		found, ok, err := st.BidGet(collection, tokenID, bidder)
		if ok {
			bid = found
		}
		return err
	})
	return bid, err
}

// Bids pages through the bids on a token in bidder order.
func (e *Engine) Bids(collection string, tokenID TokenID, startAfter string, limit uint32) ([]*Bid, error) {
	pageSize := ClampLimit(limit)
	bids := make([]*Bid, 0, pageSize)
	err := e.view(func(st Store) error {
		return st.IterateBids(collection, tokenID, startAfter, func(bid *Bid) (bool, error) {
			bids = append(bids, bid)
			return len(bids) < pageSize, nil
		})
	})
	return bids, err
}

// BidsByBidder pages through a bidder's bids in (collection, token) order.
func (e *Engine) BidsByBidder(bidder string, startAfter *TokenRef, limit uint32) ([]*Bid, error) {
	pageSize := ClampLimit(limit)
	bids := make([]*Bid, 0, pageSize)
	err := e.view(func(st Store) error {
		return st.IterateBidsByBidder(bidder, startAfter, func(bid *Bid) (bool, error) {
			bids = append(bids, bid)
			return len(bids) < pageSize, nil
		})
	})
	return bids, err
}

// Params returns the stored configuration.
func (e *Engine) Params() (*Params, error) {
	var params *Params
	err := e.view(func(st Store) error {
		stored, ok, err := st.MarketParamsGet()
		if err != nil {
			return err
		}
		if !ok {
			return errParamsMissing
		}
		params = stored
		return nil
	})
	return params, err
}

// Hooks lists the subscribers of one kind.
func (e *Engine) Hooks(kind HookKind) ([]string, error) {
	var hooks []string
	err := e.view(func(st Store) (err error) {
		hooks, err = st.Hooks(kind)
		return err
	})
	return hooks, err
}

// Balance returns the bank balance of addr in denom.
func (e *Engine) Balance(addr, denom string) (*big.Int, error) {
	balance := big.NewInt(0)
	err := e.view(func(st Store) error {
		stored, err := st.BalanceGet(addr, denom)
		if err != nil {
			return err
		}
		if stored != nil {
			balance = stored
		}
		return nil
	})
	return balance, err
}

// Initialised reports whether genesis params have been written.
func (e *Engine) Initialised() (bool, error) {
	var exists bool
	err := e.view(func(st Store) (err error) {
		_, exists, err = st.MarketParamsGet()
		return err
	})
	return exists, err
}
