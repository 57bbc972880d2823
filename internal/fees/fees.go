// Package fees implements the fee subsystem described in spec §4.4: typed
// per-action-kind fee components held in state, a per-block BlockFees
// accumulator, and the allowed-fee-asset allow-list.
package fees

import (
	"encoding/binary"
	"fmt"
	"sort"

	"github.com/astria-net/sequencer-core/internal/primitive"
	"github.com/astria-net/sequencer-core/internal/state"
)

// ActionKind names one of the closed set of action variants in §3. It is
// the key used to look up fee Components and is also how CheckedAction
// implementations self-identify for fee reporting.
type ActionKind string

const (
	KindRollupDataSubmission ActionKind = "RollupDataSubmission"
	KindTransfer             ActionKind = "Transfer"
	KindValidatorUpdate      ActionKind = "ValidatorUpdate"
	KindSudoAddressChange    ActionKind = "SudoAddressChange"
	KindIbcRelay             ActionKind = "IbcRelay"
	KindIbcSudoChange        ActionKind = "IbcSudoChange"
	KindIcs20Withdrawal      ActionKind = "Ics20Withdrawal"
	KindIbcRelayerChange     ActionKind = "IbcRelayerChange"
	KindFeeAssetChange       ActionKind = "FeeAssetChange"
	KindInitBridgeAccount    ActionKind = "InitBridgeAccount"
	KindBridgeLock           ActionKind = "BridgeLock"
	KindBridgeUnlock         ActionKind = "BridgeUnlock"
	KindBridgeSudoChange     ActionKind = "BridgeSudoChange"
	KindBridgeTransfer       ActionKind = "BridgeTransfer"
	KindFeeChange            ActionKind = "FeeChange"
	KindRecoverIbcClient     ActionKind = "RecoverIbcClient"
	KindCurrencyPairsChange  ActionKind = "CurrencyPairsChange"
	KindMarketsChange        ActionKind = "MarketsChange"
)

// Components is the per-action-kind fee formula: fee = Base + Multiplier *
// sizeInBytes, where sizeInBytes is 0 for actions whose fee does not scale
// with size.
type Components struct {
	Base       primitive.Amount
	Multiplier primitive.Amount
}

// Compute returns Base + Multiplier*sizeInBytes.
func (c Components) Compute(sizeInBytes uint64) primitive.Amount {
	return c.Base.Add(c.Multiplier.MulUint64(sizeInBytes))
}

func componentsKey(kind ActionKind) string {
	return "fees/components/" + string(kind)
}

// GetComponents reads the fee components for an action kind.
func GetComponents(d *state.Delta, kind ActionKind) (Components, bool) {
	raw, ok := d.GetRaw(componentsKey(kind))
	if !ok {
		return Components{}, false
	}
	return decodeComponents(raw), true
}

// PutComponents writes the fee components for an action kind. Only the sudo
// address may call this path (enforced by the FeeChange action handler, not
// here — this package is a pure state accessor).
func PutComponents(d *state.Delta, kind ActionKind, c Components) {
	d.PutRaw(componentsKey(kind), encodeComponents(c))
}

func encodeComponents(c Components) []byte {
	base := []byte(c.Base.String())
	mult := []byte(c.Multiplier.String())
	out := make([]byte, 4+len(base)+len(mult))
	binary.BigEndian.PutUint32(out, uint32(len(base)))
	copy(out[4:], base)
	copy(out[4+len(base):], mult)
	return out
}

func decodeComponents(raw []byte) Components {
	if len(raw) < 4 {
		return Components{}
	}
	n := binary.BigEndian.Uint32(raw)
	base := string(raw[4 : 4+n])
	mult := string(raw[4+n:])
	return Components{
		Base:       amountFromString(base),
		Multiplier: amountFromString(mult),
	}
}

func amountFromString(s string) primitive.Amount {
	amt, err := primitive.ParseAmount(s)
	if err != nil {
		return primitive.ZeroAmount
	}
	return amt
}

// Entry is a single fee charge recorded against the running block
// accumulator: the asset, the amount, and the transaction/action that
// caused it, so it can be attributed for observability and testing.
type Entry struct {
	Asset             primitive.IbcPrefixed
	Amount            primitive.Amount
	SourceTxID        [32]byte
	SourceActionIndex uint32
}

// BlockFees accumulates fee Entries across a block. It lives on the delta
// as an ephemeral object slot (§4.1, §9): never part of the verifiable
// store, reset at FinalizeBlock/Commit boundary.
type BlockFees struct {
	entries []Entry
}

const blockFeesSlot = "fees/block_accumulator"

// Get returns the BlockFees accumulator attached to delta, creating an empty
// one if none exists yet.
func Get(d *state.Delta) *BlockFees {
	bf, ok := state.EphemeralGet[*BlockFees](d, blockFeesSlot)
	if !ok {
		bf = &BlockFees{}
		state.EphemeralSet(d, blockFeesSlot, bf)
	}
	return bf
}

// Reset clears the accumulator, called at the start of each block.
func Reset(d *state.Delta) {
	state.EphemeralClear(d, blockFeesSlot)
}

// Record appends a fee entry to the accumulator.
func (b *BlockFees) Record(e Entry) {
	b.entries = append(b.entries, e)
}

// Entries returns a defensive copy of the recorded entries, in the order
// recorded.
func (b *BlockFees) Entries() []Entry {
	out := make([]Entry, len(b.entries))
	copy(out, b.entries)
	return out
}

// Total sums all recorded entries by asset.
func (b *BlockFees) Total() map[primitive.IbcPrefixed]primitive.Amount {
	totals := make(map[primitive.IbcPrefixed]primitive.Amount)
	for _, e := range b.entries {
		totals[e.Asset] = totals[e.Asset].Add(e.Amount)
	}
	return totals
}

// --- allowed fee asset allow-list ---

func allowedAssetKey(asset primitive.IbcPrefixed) string {
	return "fees/allowed_assets/" + asset.String()
}

// IsAllowed reports whether asset is currently an accepted fee asset.
func IsAllowed(d *state.Delta, asset primitive.IbcPrefixed) bool {
	_, ok := d.GetRaw(allowedAssetKey(asset))
	return ok
}

// Allow adds asset to the allow-list.
func Allow(d *state.Delta, asset primitive.IbcPrefixed) {
	d.PutRaw(allowedAssetKey(asset), []byte{1})
}

// Remove removes asset from the allow-list. It refuses to empty the set
// entirely, preserving the invariant in §3 that "fee-asset set is non-empty
// at all times."
func Remove(d *state.Delta, asset primitive.IbcPrefixed) error {
	allowed := ListAllowed(d)
	if len(allowed) <= 1 {
		return fmt.Errorf("cannot remove the last allowed fee asset")
	}
	if !IsAllowed(d, asset) {
		return fmt.Errorf("asset %s is not an allowed fee asset", asset)
	}
	d.DeleteRaw(allowedAssetKey(asset))
	return nil
}

// ListAllowed returns every allowed fee asset, sorted for determinism.
func ListAllowed(d *state.Delta) []primitive.IbcPrefixed {
	rows := d.PrefixRange("fees/allowed_assets/")
	out := make([]primitive.IbcPrefixed, 0, len(rows))
	for _, kv := range rows {
		var h primitive.IbcPrefixed
		key := string(kv[0])
		suffix := key[len("fees/allowed_assets/"):]
		if len(suffix) < len("ibc/")+64 {
			continue
		}
		decodeHexInto(&h, suffix[len("ibc/"):])
		out = append(out, h)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].String() < out[j].String()
	})
	return out
}

func decodeHexInto(h *primitive.IbcPrefixed, s string) {
	for i := 0; i < len(h) && 2*i+1 < len(s); i++ {
		var b byte
		fmt.Sscanf(s[2*i:2*i+2], "%02X", &b)
		h[i] = b
	}
}
