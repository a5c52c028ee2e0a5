package types

import (
	"fmt"
	"math/big"
	"regexp"
	"strings"
)

var denomPattern = regexp.MustCompile(`^[a-zA-Z][a-zA-Z0-9/:._-]{2,127}$`)

// Coin is an amount of a single denomination.
type Coin struct {
	Denom  string   `json:"denom"`
	Amount *big.Int `json:"amount"`
}

// NewCoin builds a coin from an int64 amount. Mostly useful in tests and
// genesis fixtures.
func NewCoin(denom string, amount int64) Coin {
	return Coin{Denom: denom, Amount: big.NewInt(amount)}
}

// Clone returns a deep copy; a nil amount becomes zero.
func (c Coin) Clone() Coin {
	clone := Coin{Denom: c.Denom, Amount: big.NewInt(0)}
	if c.Amount != nil {
		clone.Amount.Set(c.Amount)
	}
	return clone
}

// IsZero reports whether the amount is nil or zero.
func (c Coin) IsZero() bool {
	return c.Amount == nil || c.Amount.Sign() == 0
}

// Equal compares denomination and amount.
func (c Coin) Equal(other Coin) bool {
	if c.Denom != other.Denom {
		return false
	}
	return c.Clone().Amount.Cmp(other.Clone().Amount) == 0
}

func (c Coin) String() string {
	amount := "0"
	if c.Amount != nil {
		amount = c.Amount.String()
	}
	return amount + c.Denom
}

// ValidateDenom checks the denomination against the Cosmos SDK pattern.
func ValidateDenom(denom string) error {
	if !denomPattern.MatchString(denom) {
		return fmt.Errorf("invalid denom %q", denom)
	}
	return nil
}

// Validate checks the denomination and that the amount is non-negative.
func (c Coin) Validate() error {
	if err := ValidateDenom(c.Denom); err != nil {
		return err
	}
	if c.Amount != nil && c.Amount.Sign() < 0 {
		return fmt.Errorf("negative amount %s", c.Amount)
	}
	return nil
}

// ParseCoin parses the "<amount><denom>" form, e.g. "100ustars".
func ParseCoin(raw string) (Coin, error) {
	trimmed := strings.TrimSpace(raw)
	split := 0
	for split < len(trimmed) && trimmed[split] >= '0' && trimmed[split] <= '9' {
		split++
	}
	if split == 0 {
		return Coin{}, fmt.Errorf("coin %q: missing amount", raw)
	}
	amount, ok := new(big.Int).SetString(trimmed[:split], 10)
	if !ok {
		return Coin{}, fmt.Errorf("coin %q: invalid amount", raw)
	}
	coin := Coin{Denom: trimmed[split:], Amount: amount}
	if err := coin.Validate(); err != nil {
		return Coin{}, fmt.Errorf("coin %q: %w", raw, err)
	}
	return coin, nil
}
