package types

import (
	"fmt"

	ethcommon "github.com/ethereum/go-ethereum/common"
)

// Address identifies an account participating in the sale: the
// administrator, the treasury, a buyer, or the engine itself.
type Address [20]byte

// ZeroAddress is the null identity. It is never a valid recipient.
var ZeroAddress = Address{}

// IsZero reports whether the address is the null identity.
func (a Address) IsZero() bool { return a == ZeroAddress }

// Hex renders the address as a 0x-prefixed hex string.
func (a Address) Hex() string { return ethcommon.BytesToAddress(a[:]).Hex() }

// String implements fmt.Stringer.
func (a Address) String() string { return a.Hex() }

// ParseAddress decodes a 0x-prefixed hex address.
func ParseAddress(s string) (Address, error) {
	if !ethcommon.IsHexAddress(s) {
		return Address{}, fmt.Errorf("types: invalid address %q", s)
	}
	var a Address
	copy(a[:], ethcommon.HexToAddress(s).Bytes())
	return a, nil
}

// BytesToAddress builds an address from a byte slice, left-truncating or
// zero-padding the way Ethereum addresses do.
func BytesToAddress(b []byte) Address {
	var a Address
	copy(a[:], ethcommon.BytesToAddress(b).Bytes())
	return a
}
