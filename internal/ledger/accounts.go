// Package ledger implements account and bridge-account storage, shared by
// the checked-action, checked-transaction, and mempool packages. It is the
// Go analogue of the teacher's account/balance accessor layer, generalized
// to the sequencer's (address, nonce, multi-asset balance) model (§3).
package ledger

import (
	"encoding/binary"
	"fmt"

	"github.com/astria-net/sequencer-core/internal/primitive"
	"github.com/astria-net/sequencer-core/internal/state"
)

func nonceKey(addr primitive.Address) string {
	return "accounts/" + hexBytes(addr.Bytes()) + "/nonce"
}

func balanceKey(addr primitive.Address, asset primitive.IbcPrefixed) string {
	return "accounts/" + hexBytes(addr.Bytes()) + "/balance/" + asset.String()
}

func balancePrefix(addr primitive.Address) string {
	return "accounts/" + hexBytes(addr.Bytes()) + "/balance/"
}

// GetNonce returns the account's current nonce, defaulting to 0 for an
// account never seen before.
func GetNonce(d *state.Delta, addr primitive.Address) primitive.Nonce {
	raw, ok := d.GetRaw(nonceKey(addr))
	if !ok || len(raw) != 4 {
		return 0
	}
	return primitive.Nonce(binary.BigEndian.Uint32(raw))
}

// PutNonce writes the account's nonce.
func PutNonce(d *state.Delta, addr primitive.Address, n primitive.Nonce) {
	buf := make([]byte, 4)
	binary.BigEndian.PutUint32(buf, uint32(n))
	d.PutRaw(nonceKey(addr), buf)
}

// IncrementNonceChecked advances addr's nonce by exactly one, failing on
// uint32 overflow (§3 invariant).
func IncrementNonceChecked(d *state.Delta, addr primitive.Address) error {
	next, err := GetNonce(d, addr).IncrementChecked()
	if err != nil {
		return fmt.Errorf("incrementing nonce for %s: %w", addr, err)
	}
	PutNonce(d, addr, next)
	return nil
}

// GetBalance returns addr's balance of asset, defaulting to zero.
func GetBalance(d *state.Delta, addr primitive.Address, asset primitive.IbcPrefixed) primitive.Amount {
	raw, ok := d.GetRaw(balanceKey(addr, asset))
	if !ok {
		return primitive.ZeroAmount
	}
	return amountFromBytes(raw)
}

// PutBalance writes addr's balance of asset.
func PutBalance(d *state.Delta, addr primitive.Address, asset primitive.IbcPrefixed, amount primitive.Amount) {
	d.PutRaw(balanceKey(addr, asset), []byte(amount.String()))
}

// GetAllBalances returns every asset balance stored for addr; an asset
// debited down to zero is still listed, with a zero amount.
func GetAllBalances(d *state.Delta, addr primitive.Address) map[primitive.IbcPrefixed]primitive.Amount {
	rows := d.PrefixRange(balancePrefix(addr))
	out := make(map[primitive.IbcPrefixed]primitive.Amount, len(rows))
	prefix := balancePrefix(addr)
	for _, kv := range rows {
		key := string(kv[0])
		asset := parseIbcPrefixedSuffix(key[len(prefix):])
		out[asset] = amountFromBytes(kv[1])
	}
	return out
}

// DebitChecked decrements addr's balance of asset by amount, failing if the
// balance would go negative. This is the sole path by which fees and
// outbound transfers leave an account, preserving the §3 invariant that
// every balance-changing operation is checked.
func DebitChecked(d *state.Delta, addr primitive.Address, asset primitive.IbcPrefixed, amount primitive.Amount) error {
	cur := GetBalance(d, addr, asset)
	next, err := cur.CheckedSub(amount)
	if err != nil {
		return fmt.Errorf("debiting %s from %s balance of %s: %w", amount, addr, asset, err)
	}
	PutBalance(d, addr, asset, next)
	return nil
}

// Credit increments addr's balance of asset by amount.
func Credit(d *state.Delta, addr primitive.Address, asset primitive.IbcPrefixed, amount primitive.Amount) {
	cur := GetBalance(d, addr, asset)
	PutBalance(d, addr, asset, cur.Add(amount))
}

func hexBytes(b []byte) string {
	const hextable = "0123456789abcdef"
	out := make([]byte, len(b)*2)
	for i, v := range b {
		out[i*2] = hextable[v>>4]
		out[i*2+1] = hextable[v&0x0f]
	}
	return string(out)
}

func amountFromBytes(b []byte) primitive.Amount {
	amt, err := primitive.ParseAmount(string(b))
	if err != nil {
		return primitive.ZeroAmount
	}
	return amt
}

func parseIbcPrefixedSuffix(s string) primitive.IbcPrefixed {
	var h primitive.IbcPrefixed
	if len(s) < len("ibc/") {
		return h
	}
	hexPart := s[len("ibc/"):]
	for i := 0; i < len(h) && 2*i+1 < len(hexPart); i++ {
		var b byte
		fmt.Sscanf(hexPart[2*i:2*i+2], "%02X", &b)
		h[i] = b
	}
	return h
}
