package nft

import (
	"errors"
	"fmt"
)

var (
	ErrTokenNotFound  = errors.New("nft: token not found")
	ErrTokenExists    = errors.New("nft: token already minted")
	ErrNotOwner       = errors.New("nft: caller is not the token owner")
	ErrNotApproved    = errors.New("nft: spender not approved")
	ErrInvalidRoyalty = errors.New("nft: invalid royalty")
	errNilState       = errors.New("nft: state not configured")
)

// Royalty is the share of sale proceeds owed to a creator.
type Royalty struct {
	Recipient    string
	SharePercent uint32
}

// Clone returns a copy of the royalty record.
func (r *Royalty) Clone() *Royalty {
	if r == nil {
		return nil
	}
	clone := *r
	return &clone
}

// State persists ownership, approvals and royalty metadata.
type State interface {
	NFTOwnerGet(collection string, tokenID uint32) (string, bool, error)
	NFTOwnerPut(collection string, tokenID uint32, owner string) error
	NFTApprovalGet(collection string, tokenID uint32) (string, bool, error)
	NFTApprovalPut(collection string, tokenID uint32, spender string) error
	NFTApprovalDelete(collection string, tokenID uint32) error
	NFTOperatorGet(collection, owner, operator string) (bool, error)
	NFTOperatorPut(collection, owner, operator string, approved bool) error
	NFTCollectionRoyaltyGet(collection string) (*Royalty, bool, error)
	NFTCollectionRoyaltyPut(collection string, royalty *Royalty) error
	NFTTokenRoyaltyGet(collection string, tokenID uint32) (*Royalty, bool, error)
	NFTTokenRoyaltyPut(collection string, tokenID uint32, royalty *Royalty) error
}

// Registry implements cw721-style ownership semantics over State plus
// collection and token level royalty metadata.
type Registry struct{}

// NewRegistry constructs a registry.
func NewRegistry() *Registry { return &Registry{} }

// Mint records owner as the holder of a fresh token.
func (r *Registry) Mint(st State, collection string, tokenID uint32, owner string) error {
	if st == nil {
		return errNilState
	}
	if collection == "" || owner == "" {
		return fmt.Errorf("nft: collection and owner required")
	}
	if _, exists, err := st.NFTOwnerGet(collection, tokenID); err != nil {
		return err
	} else if exists {
		return fmt.Errorf("%w: %s/%d", ErrTokenExists, collection, tokenID)
	}
	return st.NFTOwnerPut(collection, tokenID, owner)
}

// OwnerOf returns the current holder of a token.
func (r *Registry) OwnerOf(st State, collection string, tokenID uint32) (string, error) {
	if st == nil {
		return "", errNilState
	}
	owner, ok, err := st.NFTOwnerGet(collection, tokenID)
	if err != nil {
		return "", err
	}
	if !ok {
		return "", fmt.Errorf("%w: %s/%d", ErrTokenNotFound, collection, tokenID)
	}
	return owner, nil
}

// Approve grants spender the right to transfer a single token. Only the owner
// may approve.
func (r *Registry) Approve(st State, collection string, tokenID uint32, caller, spender string) error {
	owner, err := r.OwnerOf(st, collection, tokenID)
	if err != nil {
		return err
	}
	if caller != owner {
		return ErrNotOwner
	}
	if spender == "" {
		return fmt.Errorf("nft: spender required")
	}
	return st.NFTApprovalPut(collection, tokenID, spender)
}

// Revoke clears the single-token approval.
func (r *Registry) Revoke(st State, collection string, tokenID uint32, caller string) error {
	owner, err := r.OwnerOf(st, collection, tokenID)
	if err != nil {
		return err
	}
	if caller != owner {
		return ErrNotOwner
	}
	return st.NFTApprovalDelete(collection, tokenID)
}

// ApproveAll grants or revokes operator rights over every token owner holds in
// the collection.
func (r *Registry) ApproveAll(st State, collection, owner, operator string, approved bool) error {
	if st == nil {
		return errNilState
	}
	if owner == "" || operator == "" {
		return fmt.Errorf("nft: owner and operator required")
	}
	return st.NFTOperatorPut(collection, owner, operator, approved)
}

// IsApproved reports whether operator may move the token on the owner's
// behalf, either through a token approval or a collection-wide grant.
func (r *Registry) IsApproved(st State, collection string, tokenID uint32, operator string) (bool, error) {
	owner, err := r.OwnerOf(st, collection, tokenID)
	if err != nil {
		return false, err
	}
	if operator == owner {
		return true, nil
	}
	spender, ok, err := st.NFTApprovalGet(collection, tokenID)
	if err != nil {
		return false, err
	}
	if ok && spender == operator {
		return true, nil
	}
	return st.NFTOperatorGet(collection, owner, operator)
}

// Transfer moves the token to recipient. The spender must hold the token or
// an approval for it. Token approvals are cleared on transfer.
func (r *Registry) Transfer(st State, collection string, tokenID uint32, spender, recipient string) error {
	if recipient == "" {
		return fmt.Errorf("nft: recipient required")
	}
	approved, err := r.IsApproved(st, collection, tokenID, spender)
	if err != nil {
		return err
	}
	if !approved {
		return fmt.Errorf("%w: %s for %s/%d", ErrNotApproved, spender, collection, tokenID)
	}
	if err := st.NFTApprovalDelete(collection, tokenID); err != nil {
		return err
	}
	return st.NFTOwnerPut(collection, tokenID, recipient)
}

// SetCollectionRoyalty configures the default royalty for a collection.
func (r *Registry) SetCollectionRoyalty(st State, collection string, royalty Royalty) error {
	if st == nil {
		return errNilState
	}
	if err := validateRoyalty(royalty); err != nil {
		return err
	}
	return st.NFTCollectionRoyaltyPut(collection, &royalty)
}

// SetTokenRoyalty overrides the collection royalty for a single token.
func (r *Registry) SetTokenRoyalty(st State, collection string, tokenID uint32, royalty Royalty) error {
	if _, err := r.OwnerOf(st, collection, tokenID); err != nil {
		return err
	}
	if err := validateRoyalty(royalty); err != nil {
		return err
	}
	return st.NFTTokenRoyaltyPut(collection, tokenID, &royalty)
}

// Royalty resolves the royalty for a token: the token override when present,
// otherwise the collection default. The boolean is false when neither exists.
// Stored shares are returned as-is; consumers validate them against their own
// fee budget.
func (r *Registry) Royalty(st State, collection string, tokenID uint32) (*Royalty, bool, error) {
	if st == nil {
		return nil, false, errNilState
	}
	royalty, ok, err := st.NFTTokenRoyaltyGet(collection, tokenID)
	if err != nil || ok {
		return royalty, ok, err
	}
	return st.NFTCollectionRoyaltyGet(collection)
}

func validateRoyalty(royalty Royalty) error {
	if royalty.Recipient == "" {
		return fmt.Errorf("%w: recipient required", ErrInvalidRoyalty)
	}
	if royalty.SharePercent > 100 {
		return fmt.Errorf("%w: share %d exceeds 100", ErrInvalidRoyalty, royalty.SharePercent)
	}
	return nil
}
