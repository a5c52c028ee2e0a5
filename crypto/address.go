package crypto

import (
	"fmt"
	"strings"

	"github.com/btcsuite/btcutil/bech32"
	"github.com/ethereum/go-ethereum/crypto"
)

// AddressPrefix is the human-readable part of a bech32 address.
type AddressPrefix string

// DefaultPrefix is used by devnet configs.
const DefaultPrefix AddressPrefix = "stars"

// Address is a 20-byte account address with a bech32 prefix.
type Address struct {
	prefix AddressPrefix
	bytes  []byte
}

func NewAddress(prefix AddressPrefix, b []byte) Address {
	if len(b) != 20 {
		panic("address must be 20 bytes long")
	}
	return Address{prefix: prefix, bytes: append([]byte(nil), b...)}
}

func (a Address) String() string {
	conv, err := bech32.ConvertBits(a.bytes, 8, 5, true)
	if err != nil {
		panic(err)
	}
	encoded, err := bech32.Encode(string(a.prefix), conv)
	if err != nil {
		panic(err)
	}
	return encoded
}

func (a Address) Bytes() []byte {
	return append([]byte(nil), a.bytes...)
}

// Prefix returns the human-readable prefix associated with the address.
func (a Address) Prefix() AddressPrefix {
	return a.prefix
}

func DecodeAddress(addrStr string) (Address, error) {
	prefix, decoded, err := bech32.Decode(addrStr)
	if err != nil {
		return Address{}, fmt.Errorf("invalid bech32 string: %w", err)
	}
	conv, err := bech32.ConvertBits(decoded, 5, 8, false)
	if err != nil {
		return Address{}, fmt.Errorf("error converting bits: %w", err)
	}
	if len(conv) != 20 {
		return Address{}, fmt.Errorf("invalid address length %d", len(conv))
	}
	return NewAddress(AddressPrefix(prefix), conv), nil
}

// ModuleAddress derives the account address owned by a native module, e.g.
// the marketplace escrow vault. The bytes are the last 20 bytes of
// keccak256("module/" + name).
func ModuleAddress(prefix AddressPrefix, name string) Address {
	hash := crypto.Keccak256([]byte("module/" + name))
	return NewAddress(prefix, hash[12:])
}

// ValidateAddress checks that addr is a bech32 address carrying prefix. An
// empty prefix disables bech32 decoding and only rejects empty strings and
// strings containing whitespace, which lets devnets use plain identifiers.
func ValidateAddress(prefix AddressPrefix, addr string) error {
	if addr == "" {
		return fmt.Errorf("empty address")
	}
	if strings.ContainsAny(addr, " \t\r\n\x00") {
		return fmt.Errorf("address %q contains whitespace", addr)
	}
	if prefix == "" {
		return nil
	}
	decoded, err := DecodeAddress(addr)
	if err != nil {
		return err
	}
	if decoded.Prefix() != prefix {
		return fmt.Errorf("address %q: expected prefix %q", addr, prefix)
	}
	return nil
}
