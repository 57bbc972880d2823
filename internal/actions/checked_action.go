package actions

import (
	"context"
	"fmt"

	"github.com/astria-net/sequencer-core/internal/fees"
	"github.com/astria-net/sequencer-core/internal/ledger"
	"github.com/astria-net/sequencer-core/internal/primitive"
	"github.com/astria-net/sequencer-core/internal/state"
)

// CheckedAction is the common contract every action kind satisfies, per
// §4.2: construction runs the immutable stateless checks plus one round of
// mutable state checks, RunMutableChecks re-runs the mutable half
// idempotently (used by mempool simulation and at inclusion time), and
// PayFeesAndExecute charges the fee and then performs the state mutation.
// Construction itself must never mutate state.
type CheckedAction interface {
	Kind() fees.ActionKind
	Group() Group
	RunMutableChecks(d *state.Delta) error
	PayFeesAndExecute(ctx context.Context, d *state.Delta, signer primitive.Address, txID [32]byte, actionIndex uint32) error
	// EstimatedCost returns this action's best-effort contribution to its
	// transaction's total cost (fee plus any outbound transfer amount),
	// used by the mempool to gate insertion on account balance without
	// executing the action (§4.5: "transaction_cost").
	EstimatedCost(d *state.Delta) CostMap
}

// CostMap accumulates per-asset amounts an action or transaction will draw
// from its signer's balances.
type CostMap map[primitive.IbcPrefixed]primitive.Amount

// add returns m with amount added to asset's entry, allocating m if nil.
func (m CostMap) add(asset primitive.IbcPrefixed, amount primitive.Amount) CostMap {
	if m == nil {
		m = CostMap{}
	}
	m[asset] = m[asset].Add(amount)
	return m
}

// estimateFeeCost returns the fee an action of kind would charge feeAsset
// for sizeInBytes, as a single-entry CostMap, without mutating state.
func estimateFeeCost(d *state.Delta, kind fees.ActionKind, feeAsset primitive.IbcPrefixed, sizeInBytes uint64) CostMap {
	components, ok := fees.GetComponents(d, kind)
	if !ok {
		return nil
	}
	amount := components.Compute(sizeInBytes)
	if amount.IsZero() {
		return nil
	}
	return CostMap{}.add(feeAsset, amount)
}

// New constructs the CheckedAction for raw, dispatching on its concrete Go
// type. It performs every immutable check plus the first mutable-check round
// before returning, so a failing action is rejected at construction instead
// of silently admitted into a transaction.
func New(raw any, signer primitive.Address, d *state.Delta) (CheckedAction, error) {
	switch a := raw.(type) {
	case RollupDataSubmission:
		return newRollupDataSubmission(a, signer, d)
	case Transfer:
		return newTransfer(a, signer, d)
	case BridgeLock:
		return newBridgeLock(a, signer, d)
	case BridgeUnlock:
		return newBridgeUnlock(a, signer, d)
	case BridgeTransfer:
		return newBridgeTransfer(a, signer, d)
	case InitBridgeAccount:
		return newInitBridgeAccount(a, signer, d)
	case BridgeSudoChange:
		return newBridgeSudoChange(a, signer, d)
	case Ics20Withdrawal:
		return newIcs20Withdrawal(a, signer, d)
	case IbcRelay:
		return newIbcRelay(a, signer, d)
	case SudoAddressChange:
		return newSudoAddressChange(a, signer, d)
	case IbcSudoChange:
		return newIbcSudoChange(a, signer, d)
	case IbcRelayerChange:
		return newIbcRelayerChange(a, signer, d)
	case FeeAssetChange:
		return newFeeAssetChange(a, signer, d)
	case ValidatorUpdate:
		return newValidatorUpdate(a, signer, d)
	case FeeChange:
		return newFeeChange(a, signer, d)
	case RecoverIbcClient:
		return newRecoverIbcClient(a, signer, d)
	case CurrencyPairsChange:
		return newCurrencyPairsChange(a, signer, d)
	case MarketsChange:
		return newMarketsChange(a, signer, d)
	default:
		return nil, fmt.Errorf("unrecognized action type %T", raw)
	}
}

// chargeFee computes and debits the fee for a CheckedAction from signer,
// recording an Entry on the block's fee accumulator. Actions with a zero
// Components charge nothing. It checks the fee asset against the allow-list
// again at execution time; each action's RunMutableChecks makes the same
// check when the action is constructed.
func chargeFee(d *state.Delta, kind fees.ActionKind, feeAsset primitive.IbcPrefixed, signer primitive.Address, sizeInBytes uint64, txID [32]byte, actionIndex uint32) error {
	if !fees.IsAllowed(d, feeAsset) {
		return fmt.Errorf("asset %s is not an allowed fee asset", feeAsset)
	}
	components, ok := fees.GetComponents(d, kind)
	if !ok {
		return nil
	}
	amount := components.Compute(sizeInBytes)
	if amount.IsZero() {
		return nil
	}
	if err := ledger.DebitChecked(d, signer, feeAsset, amount); err != nil {
		return fmt.Errorf("charging %s fee: %w", kind, err)
	}
	fees.Get(d).Record(fees.Entry{
		Asset:             feeAsset,
		Amount:            amount,
		SourceTxID:        txID,
		SourceActionIndex: actionIndex,
	})
	return nil
}

// requireSudo enforces that signer is the current global sudo address,
// gating every Sudo-group action (§3).
func requireSudo(d *state.Delta, signer primitive.Address) error {
	sudo, ok := ledger.GetSudoAddress(d)
	if !ok {
		return fmt.Errorf("no sudo address configured")
	}
	if !sudo.Equal(signer) {
		return fmt.Errorf("signer %s is not the sudo address", signer)
	}
	return nil
}

// requireIbcSudo enforces that signer is the current IBC sudo address.
func requireIbcSudo(d *state.Delta, signer primitive.Address) error {
	sudo, ok := ledger.GetIbcSudoAddress(d)
	if !ok {
		return fmt.Errorf("no IBC sudo address configured")
	}
	if !sudo.Equal(signer) {
		return fmt.Errorf("signer %s is not the IBC sudo address", signer)
	}
	return nil
}
