package marketplace

import (
	"nftmarket/native/bank"
	"nftmarket/native/nft"
)

// HookKind selects one of the two subscriber sets.
type HookKind uint8

const (
	HookListed HookKind = iota + 1
	HookSaleFinalized
)

func (k HookKind) String() string {
	switch k {
	case HookListed:
		return "listed"
	case HookSaleFinalized:
		return "sale_finalized"
	default:
		return "unknown"
	}
}

// Store is the state consumed by the engine. Iteration callbacks receive
// records in ascending key order and stop when they return false. Cursors are
// exclusive.
type Store interface {
	bank.State
	nft.State

	AskGet(collection string, tokenID TokenID) (*Ask, bool, error)
	AskPut(ask *Ask) error
	AskDelete(collection string, tokenID TokenID) error
	AskCount(collection string) (uint64, error)
	IterateAsks(collection string, startAfter *TokenID, fn func(*Ask) (bool, error)) error
	IterateAsksBySeller(seller string, startAfter *TokenRef, fn func(*Ask) (bool, error)) error
	IterateListedCollections(startAfter string, fn func(collection string) (bool, error)) error

	BidGet(collection string, tokenID TokenID, bidder string) (*Bid, bool, error)
	BidPut(bid *Bid) error
	BidDelete(collection string, tokenID TokenID, bidder string) error
	IterateBids(collection string, tokenID TokenID, startAfter string, fn func(*Bid) (bool, error)) error
	IterateBidsByBidder(bidder string, startAfter *TokenRef, fn func(*Bid) (bool, error)) error

	MarketParamsGet() (*Params, bool, error)
	MarketParamsPut(params *Params) error

	HookAdd(kind HookKind, addr string) (bool, error)
	HookRemove(kind HookKind, addr string) (bool, error)
	Hooks(kind HookKind) ([]string, error)

	PendingSettlementGet(tag uint64) (*PendingSettlement, bool, error)
	PendingSettlementPut(pending *PendingSettlement) error
	PendingSettlementDelete(tag uint64) error
	NextReplyTag() (uint64, error)
}

// Txn is a Store whose writes are applied atomically on Commit and dropped on
// Discard.
type Txn interface {
	Store
	Commit() error
	Discard()
}

// View is a read-only snapshot of committed state. Writes through a View fail.
type View interface {
	Store
	Release()
}

// Backend opens transactions and snapshots. Begin blocks while another
// transaction is open.
type Backend interface {
	Begin() (Txn, error)
	Snapshot() (View, error)
}

// TokenRegistry is the token ownership and approval collaborator.
type TokenRegistry interface {
	OwnerOf(st nft.State, collection string, tokenID uint32) (string, error)
	IsApproved(st nft.State, collection string, tokenID uint32, operator string) (bool, error)
	Transfer(st nft.State, collection string, tokenID uint32, spender, recipient string) error
}

// RoyaltyRegistry resolves royalty metadata for a token.
type RoyaltyRegistry interface {
	Royalty(st nft.State, collection string, tokenID uint32) (*nft.Royalty, bool, error)
}
