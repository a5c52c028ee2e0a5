package bank

import (
	"errors"
	"fmt"
	"math/big"

	"nftmarket/core/types"
)

var (
	ErrInsufficientFunds = errors.New("bank: insufficient funds")
	ErrBalanceOverflow   = errors.New("bank: balance exceeds 256 bits")
	errNilState          = errors.New("bank: state not configured")
)

// State is the balance storage consumed by the bank helpers. Implementations
// return a zero balance for unknown (address, denom) pairs.
type State interface {
	BalanceGet(addr, denom string) (*big.Int, error)
	BalancePut(addr, denom string, amount *big.Int) error
}

// Balance returns the balance of addr in denom.
func Balance(st State, addr, denom string) (*big.Int, error) {
	if st == nil {
		return nil, errNilState
	}
	bal, err := st.BalanceGet(addr, denom)
	if err != nil {
		return nil, err
	}
	if bal == nil {
		return big.NewInt(0), nil
	}
	return bal, nil
}

// Credit increases addr's balance by coin.
func Credit(st State, addr string, coin types.Coin) error {
	if coin.IsZero() {
		return nil
	}
	if err := coin.Validate(); err != nil {
		return fmt.Errorf("bank: credit: %w", err)
	}
	bal, err := Balance(st, addr, coin.Denom)
	if err != nil {
		return err
	}
	next := new(big.Int).Add(bal, coin.Amount)
	if next.BitLen() > 256 {
		return ErrBalanceOverflow
	}
	return st.BalancePut(addr, coin.Denom, next)
}

// Debit decreases addr's balance by coin, failing when the balance is short.
func Debit(st State, addr string, coin types.Coin) error {
	if coin.IsZero() {
		return nil
	}
	if err := coin.Validate(); err != nil {
		return fmt.Errorf("bank: debit: %w", err)
	}
	bal, err := Balance(st, addr, coin.Denom)
	if err != nil {
		return err
	}
	if bal.Cmp(coin.Amount) < 0 {
		return fmt.Errorf("%w: %s has %s, needs %s", ErrInsufficientFunds, addr, types.Coin{Denom: coin.Denom, Amount: bal}, coin)
	}
	return st.BalancePut(addr, coin.Denom, new(big.Int).Sub(bal, coin.Amount))
}

// Transfer moves coin from one account to another. Zero amounts are a no-op.
func Transfer(st State, from, to string, coin types.Coin) error {
	if coin.IsZero() || from == to {
		return nil
	}
	if err := Debit(st, from, coin); err != nil {
		return err
	}
	return Credit(st, to, coin)
}

// TransferAll moves every coin in funds from one account to another.
func TransferAll(st State, from, to string, funds []types.Coin) error {
	for _, coin := range funds {
		if err := Transfer(st, from, to, coin); err != nil {
			return err
		}
	}
	return nil
}
