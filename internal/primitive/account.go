package primitive

import (
	"fmt"
	"math"

	sdkmath "cosmossdk.io/math"
)

// Amount is a non-negative, exact integer balance or fee quantity. It wraps
// cosmossdk.io/math.Int to get arbitrary-precision arithmetic with explicit
// checked operations instead of the silent wraparound of a fixed-width type.
type Amount struct {
	i sdkmath.Int
}

// NewAmount builds an Amount from a uint64.
func NewAmount(v uint64) Amount {
	return Amount{i: sdkmath.NewIntFromUint64(v)}
}

// ZeroAmount is the additive identity.
var ZeroAmount = Amount{i: sdkmath.ZeroInt()}

// ParseAmount parses the decimal string representation produced by
// Amount.String, preserving full precision (unlike a uint64 round trip).
func ParseAmount(s string) (Amount, error) {
	if s == "" {
		return ZeroAmount, nil
	}
	i, ok := sdkmath.NewIntFromString(s)
	if !ok {
		return Amount{}, fmt.Errorf("invalid amount %q", s)
	}
	return Amount{i: i}, nil
}

// IsZero reports whether the amount is exactly zero.
func (a Amount) IsZero() bool {
	return a.i.IsNil() || a.i.IsZero()
}

// Add returns a + b. Overflow of the underlying big.Int is not possible in
// practice for balances this system deals in, but is still guarded because
// the type is used for block-fee accumulation across an entire block.
func (a Amount) Add(b Amount) Amount {
	return Amount{i: a.int().Add(b.int())}
}

// CheckedSub returns a - b, or an error if the result would be negative.
// This is the balance-decrement primitive: every debit in the system (fees,
// transfers, withdrawals) must go through CheckedSub so an account can never
// be driven negative.
func (a Amount) CheckedSub(b Amount) (Amount, error) {
	ai, bi := a.int(), b.int()
	if ai.LT(bi) {
		return Amount{}, fmt.Errorf("insufficient balance: have %s, need %s", ai, bi)
	}
	return Amount{i: ai.Sub(bi)}, nil
}

// GTE reports whether a >= b.
func (a Amount) GTE(b Amount) bool {
	return a.int().GTE(b.int())
}

// Mul returns a * b.
func (a Amount) Mul(b Amount) Amount {
	return Amount{i: a.int().Mul(b.int())}
}

// MulUint64 returns a * n as an Amount, used for multiplier*size fee math.
func (a Amount) MulUint64(n uint64) Amount {
	return Amount{i: a.int().Mul(sdkmath.NewIntFromUint64(n))}
}

// DivUint64 performs integer division, used by the BridgeLock deposit-size
// fee estimator (§4.2: "divided by 10").
func (a Amount) DivUint64(n uint64) Amount {
	return Amount{i: a.int().Quo(sdkmath.NewIntFromUint64(n))}
}

func (a Amount) int() sdkmath.Int {
	if a.i.IsNil() {
		return sdkmath.ZeroInt()
	}
	return a.i
}

func (a Amount) String() string {
	return a.int().String()
}

// MarshalJSON renders the amount as its decimal string, preserving
// precision beyond what a JSON number could hold exactly.
func (a Amount) MarshalJSON() ([]byte, error) {
	return []byte(`"` + a.String() + `"`), nil
}

// UnmarshalJSON parses the decimal string form produced by MarshalJSON.
func (a *Amount) UnmarshalJSON(data []byte) error {
	s := string(data)
	if len(s) >= 2 && s[0] == '"' && s[len(s)-1] == '"' {
		s = s[1 : len(s)-1]
	}
	parsed, err := ParseAmount(s)
	if err != nil {
		return err
	}
	*a = parsed
	return nil
}

// Nonce is the per-account sequence number. It is a uint32 in the wire
// format; IncrementChecked enforces the invariant that it must never wrap.
type Nonce uint32

// IncrementChecked returns n+1, failing if that would overflow uint32. This
// guards the invariant in §3 that "post-increment must not overflow."
func (n Nonce) IncrementChecked() (Nonce, error) {
	if n == math.MaxUint32 {
		return 0, fmt.Errorf("nonce overflow: account has reached the maximum nonce %d", math.MaxUint32)
	}
	return n + 1, nil
}
