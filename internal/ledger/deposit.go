package ledger

import (
	"github.com/astria-net/sequencer-core/internal/primitive"
	"github.com/astria-net/sequencer-core/internal/state"
)

// Deposit is produced when a BridgeLock action executes (§3). Deposits
// accumulate on the delta as ephemeral, per-block state and are drained
// into the block payload at FinalizeBlock.
type Deposit struct {
	BridgeAddress           primitive.Address
	RollupID                [32]byte
	Amount                  primitive.Amount
	Asset                   primitive.IbcPrefixed
	DestinationChainAddress string
	SourceTxID              [32]byte
	SourceActionIndex       uint32
}

const depositsSlot = "deposits/block_accumulator"

// AppendDeposit records a deposit produced during this block's execution.
func AppendDeposit(d *state.Delta, dep Deposit) {
	existing, _ := state.EphemeralGet[[]Deposit](d, depositsSlot)
	existing = append(existing, dep)
	state.EphemeralSet(d, depositsSlot, existing)
}

// Deposits returns every deposit recorded so far this block, in emission
// order.
func Deposits(d *state.Delta) []Deposit {
	existing, _ := state.EphemeralGet[[]Deposit](d, depositsSlot)
	out := make([]Deposit, len(existing))
	copy(out, existing)
	return out
}

// ResetDeposits clears the accumulator, called at the start of each block.
func ResetDeposits(d *state.Delta) {
	state.EphemeralClear(d, depositsSlot)
}
