package ledger

import (
	"encoding/binary"
	"fmt"

	"github.com/astria-net/sequencer-core/internal/primitive"
	"github.com/astria-net/sequencer-core/internal/state"
)

// BridgeAccount is the per-address bridge configuration described in §3.
type BridgeAccount struct {
	RollupID         [32]byte
	AcceptedAsset    primitive.IbcPrefixed
	SudoAddress      primitive.Address
	WithdrawerAddress primitive.Address
	LastTxID         [32]byte
	HasLastTxID      bool
}

func bridgeKey(addr primitive.Address) string {
	return "bridge/" + hexBytes(addr.Bytes()) + "/account"
}

// GetBridgeAccount returns the bridge configuration for addr, if it is a
// bridge account.
func GetBridgeAccount(d *state.Delta, addr primitive.Address) (BridgeAccount, bool) {
	raw, ok := d.GetRaw(bridgeKey(addr))
	if !ok {
		return BridgeAccount{}, false
	}
	return decodeBridgeAccount(raw), true
}

// IsBridgeAccount reports whether addr has been initialized as a bridge.
func IsBridgeAccount(d *state.Delta, addr primitive.Address) bool {
	_, ok := GetBridgeAccount(d, addr)
	return ok
}

// PutBridgeAccount writes the bridge configuration for addr.
func PutBridgeAccount(d *state.Delta, addr primitive.Address, b BridgeAccount) {
	d.PutRaw(bridgeKey(addr), encodeBridgeAccount(b))
}

func encodeBridgeAccount(b BridgeAccount) []byte {
	out := make([]byte, 0, 32+32+20+20+1+32)
	out = append(out, b.RollupID[:]...)
	out = append(out, b.AcceptedAsset[:]...)
	out = append(out, b.SudoAddress.Bytes()...)
	out = append(out, b.WithdrawerAddress.Bytes()...)
	if b.HasLastTxID {
		out = append(out, 1)
		out = append(out, b.LastTxID[:]...)
	} else {
		out = append(out, 0)
	}
	return out
}

func decodeBridgeAccount(raw []byte) BridgeAccount {
	var b BridgeAccount
	if len(raw) < 32+32+20+20+1 {
		return b
	}
	off := 0
	copy(b.RollupID[:], raw[off:off+32])
	off += 32
	copy(b.AcceptedAsset[:], raw[off:off+32])
	off += 32
	b.SudoAddress, _ = primitive.NewAddress(raw[off:off+20], primitive.DefaultPrefix)
	off += 20
	b.WithdrawerAddress, _ = primitive.NewAddress(raw[off:off+20], primitive.DefaultPrefix)
	off += 20
	hasLast := raw[off]
	off++
	if hasLast == 1 && len(raw) >= off+32 {
		b.HasLastTxID = true
		copy(b.LastTxID[:], raw[off:off+32])
	}
	return b
}

// SetLastTransactionID records the most recent transaction id executed by
// this bridge account, per §4.3 ("records last_transaction_id for the
// signer if it is a bridge account").
func SetLastTransactionID(d *state.Delta, addr primitive.Address, txID [32]byte) error {
	b, ok := GetBridgeAccount(d, addr)
	if !ok {
		return fmt.Errorf("%s is not a bridge account", addr)
	}
	b.LastTxID = txID
	b.HasLastTxID = true
	PutBridgeAccount(d, addr, b)
	return nil
}

// withdrawalEventKey tracks which (rollup_block_number,
// rollup_withdrawal_event_id) pairs have already been used by a given
// bridge, enforcing the dedup/replay invariant in §3.
func withdrawalEventKey(bridge primitive.Address, eventID string) string {
	return "bridge/" + hexBytes(bridge.Bytes()) + "/withdrawal_events/" + eventID
}

func lastWithdrawalBlockKey(bridge primitive.Address) string {
	return "bridge/" + hexBytes(bridge.Bytes()) + "/last_withdrawal_block"
}

// CheckAndRecordWithdrawalEvent enforces that rollupBlockNumber is >= the
// highest previously recorded for this bridge, and that eventID has not
// been used before; it then records both. Returns an error if either check
// fails, leaving state unmodified.
func CheckAndRecordWithdrawalEvent(d *state.Delta, bridge primitive.Address, rollupBlockNumber uint64, eventID string) error {
	if raw, ok := d.GetRaw(withdrawalEventKey(bridge, eventID)); ok && len(raw) > 0 {
		return fmt.Errorf("rollup withdrawal event %q already used for bridge %s", eventID, bridge)
	}
	if lastRaw, ok := d.GetRaw(lastWithdrawalBlockKey(bridge)); ok && len(lastRaw) == 8 {
		last := binary.BigEndian.Uint64(lastRaw)
		if rollupBlockNumber < last {
			return fmt.Errorf("rollup block number %d is behind last recorded %d for bridge %s", rollupBlockNumber, last, bridge)
		}
	}
	d.PutRaw(withdrawalEventKey(bridge, eventID), []byte{1})
	buf := make([]byte, 8)
	binary.BigEndian.PutUint64(buf, rollupBlockNumber)
	d.PutRaw(lastWithdrawalBlockKey(bridge), buf)
	return nil
}
