// Package primitive provides the core address and asset value types shared
// by every other package in the sequencer core.
package primitive

import (
	"fmt"

	"github.com/cosmos/cosmos-sdk/types/bech32"
)

// AddressLength is the fixed byte length of a sequencer address.
const AddressLength = 20

// DefaultPrefix is used when no explicit bech32m prefix is supplied.
const DefaultPrefix = "astria"

// Address is a 20-byte account identifier with a bech32m display prefix.
// Two addresses with the same 20 bytes but different prefixes compare equal:
// the prefix is display-only.
type Address struct {
	bytes  [AddressLength]byte
	prefix string
}

// NewAddress builds an Address from raw bytes and a bech32m prefix.
func NewAddress(raw []byte, prefix string) (Address, error) {
	if len(raw) != AddressLength {
		return Address{}, fmt.Errorf("address must be %d bytes, got %d", AddressLength, len(raw))
	}
	if prefix == "" {
		prefix = DefaultPrefix
	}
	var a Address
	copy(a.bytes[:], raw)
	a.prefix = prefix
	return a, nil
}

// MustNewAddress panics on error; reserved for test fixtures and constants.
func MustNewAddress(raw []byte, prefix string) Address {
	a, err := NewAddress(raw, prefix)
	if err != nil {
		panic(err)
	}
	return a
}

// ParseAddress decodes a bech32m string into an Address.
func ParseAddress(s string) (Address, error) {
	prefix, data, err := bech32.DecodeAndConvert(s)
	if err != nil {
		return Address{}, fmt.Errorf("decoding bech32m address: %w", err)
	}
	return NewAddress(data, prefix)
}

// Bytes returns the raw 20-byte identifier.
func (a Address) Bytes() []byte {
	out := make([]byte, AddressLength)
	copy(out, a.bytes[:])
	return out
}

// Prefix returns the display prefix used by String.
func (a Address) Prefix() string {
	return a.prefix
}

// WithPrefix returns a copy of the address using a different display prefix.
// The underlying bytes, and therefore equality, are unchanged.
func (a Address) WithPrefix(prefix string) Address {
	a.prefix = prefix
	return a
}

// String renders the address as bech32m using its display prefix.
func (a Address) String() string {
	s, err := bech32.ConvertAndEncode(a.prefix, a.bytes[:])
	if err != nil {
		// Only unreachable if prefix contains invalid characters, which
		// NewAddress/ParseAddress already guard against indirectly.
		return fmt.Sprintf("<invalid address: %v>", err)
	}
	return s
}

// Equal compares two addresses by their raw bytes only, ignoring prefix.
func (a Address) Equal(other Address) bool {
	return a.bytes == other.bytes
}

// IsZero reports whether the address is the all-zero value.
func (a Address) IsZero() bool {
	return a.bytes == [AddressLength]byte{}
}

// MarshalJSON renders the address as its bech32m string form.
func (a Address) MarshalJSON() ([]byte, error) {
	return []byte(`"` + a.String() + `"`), nil
}

// UnmarshalJSON parses the bech32m string form produced by MarshalJSON.
func (a *Address) UnmarshalJSON(data []byte) error {
	s := string(data)
	if len(s) >= 2 && s[0] == '"' && s[len(s)-1] == '"' {
		s = s[1 : len(s)-1]
	}
	parsed, err := ParseAddress(s)
	if err != nil {
		return err
	}
	*a = parsed
	return nil
}
