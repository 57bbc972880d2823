package actions

import (
	"context"
	"fmt"

	"github.com/astria-net/sequencer-core/internal/fees"
	"github.com/astria-net/sequencer-core/internal/ledger"
	"github.com/astria-net/sequencer-core/internal/primitive"
	"github.com/astria-net/sequencer-core/internal/state"
)

// checkedBridgeUnlock withdraws funds from a bridge account to a base
// address. Only the bridge's current withdrawer may sign it, and the
// (rollup_block_number, rollup_withdrawal_event_id) pair must not have been
// used before (§3).
type checkedBridgeUnlock struct {
	action BridgeUnlock
	signer primitive.Address
	bridge ledger.BridgeAccount
}

func newBridgeUnlock(a BridgeUnlock, signer primitive.Address, d *state.Delta) (CheckedAction, error) {
	if a.Amount.IsZero() {
		return nil, fmt.Errorf("bridge unlock amount must be nonzero")
	}
	if a.RollupWithdrawalEventID == "" {
		return nil, fmt.Errorf("bridge unlock requires a rollup withdrawal event id")
	}
	c := &checkedBridgeUnlock{action: a, signer: signer}
	if err := c.RunMutableChecks(d); err != nil {
		return nil, err
	}
	return c, nil
}

func (c *checkedBridgeUnlock) Kind() fees.ActionKind { return fees.KindBridgeUnlock }
func (c *checkedBridgeUnlock) Group() Group          { return GroupBundleableGeneral }

func (c *checkedBridgeUnlock) RunMutableChecks(d *state.Delta) error {
	if !fees.IsAllowed(d, c.action.FeeAsset) {
		return fmt.Errorf("asset %s is not an allowed fee asset", c.action.FeeAsset)
	}
	bridge, ok := ledger.GetBridgeAccount(d, c.action.BridgeAddress)
	if !ok {
		return fmt.Errorf("%s is not a bridge account", c.action.BridgeAddress)
	}
	if !bridge.WithdrawerAddress.Equal(c.signer) {
		return fmt.Errorf("signer %s is not the withdrawer for bridge %s", c.signer, c.action.BridgeAddress)
	}
	bal := ledger.GetBalance(d, c.action.BridgeAddress, bridge.AcceptedAsset)
	if !bal.GTE(c.action.Amount) {
		return fmt.Errorf("bridge %s has insufficient %s to unlock %s", c.action.BridgeAddress, bridge.AcceptedAsset, c.action.Amount)
	}
	c.bridge = bridge
	return nil
}

func (c *checkedBridgeUnlock) sizeInBytes() uint64 { return 0 }

func (c *checkedBridgeUnlock) EstimatedCost(d *state.Delta) CostMap {
	cost := estimateFeeCost(d, c.Kind(), c.action.FeeAsset, 0)
	return cost.add(c.bridge.AcceptedAsset, c.action.Amount)
}

func (c *checkedBridgeUnlock) PayFeesAndExecute(ctx context.Context, d *state.Delta, signer primitive.Address, txID [32]byte, actionIndex uint32) error {
	if err := ledger.CheckAndRecordWithdrawalEvent(d, c.action.BridgeAddress, c.action.RollupBlockNumber, c.action.RollupWithdrawalEventID); err != nil {
		return err
	}
	if err := chargeFee(d, c.Kind(), c.action.FeeAsset, signer, 0, txID, actionIndex); err != nil {
		return err
	}
	if err := ledger.DebitChecked(d, c.action.BridgeAddress, c.bridge.AcceptedAsset, c.action.Amount); err != nil {
		return fmt.Errorf("executing bridge unlock: %w", err)
	}
	ledger.Credit(d, c.action.To, c.bridge.AcceptedAsset, c.action.Amount)
	return nil
}

// checkedBridgeTransfer moves funds between two bridge accounts in one
// step, authorized by the source bridge's withdrawer (§4.2).
type checkedBridgeTransfer struct {
	action BridgeTransfer
	signer primitive.Address
	src    ledger.BridgeAccount
}

func newBridgeTransfer(a BridgeTransfer, signer primitive.Address, d *state.Delta) (CheckedAction, error) {
	if a.Amount.IsZero() {
		return nil, fmt.Errorf("bridge transfer amount must be nonzero")
	}
	if a.RollupWithdrawalEventID == "" {
		return nil, fmt.Errorf("bridge transfer requires a rollup withdrawal event id")
	}
	c := &checkedBridgeTransfer{action: a, signer: signer}
	if err := c.RunMutableChecks(d); err != nil {
		return nil, err
	}
	return c, nil
}

func (c *checkedBridgeTransfer) Kind() fees.ActionKind { return fees.KindBridgeTransfer }
func (c *checkedBridgeTransfer) Group() Group          { return GroupBundleableGeneral }

func (c *checkedBridgeTransfer) RunMutableChecks(d *state.Delta) error {
	if !fees.IsAllowed(d, c.action.FeeAsset) {
		return fmt.Errorf("asset %s is not an allowed fee asset", c.action.FeeAsset)
	}
	src, ok := ledger.GetBridgeAccount(d, c.action.BridgeAddress)
	if !ok {
		return fmt.Errorf("%s is not a bridge account", c.action.BridgeAddress)
	}
	if !src.WithdrawerAddress.Equal(c.signer) {
		return fmt.Errorf("signer %s is not the withdrawer for bridge %s", c.signer, c.action.BridgeAddress)
	}
	dst, ok := ledger.GetBridgeAccount(d, c.action.To)
	if !ok {
		return fmt.Errorf("destination %s is not a bridge account", c.action.To)
	}
	if dst.AcceptedAsset != src.AcceptedAsset {
		return fmt.Errorf("destination bridge %s does not accept asset %s", c.action.To, src.AcceptedAsset)
	}
	bal := ledger.GetBalance(d, c.action.BridgeAddress, src.AcceptedAsset)
	if !bal.GTE(c.action.Amount) {
		return fmt.Errorf("bridge %s has insufficient %s to transfer %s", c.action.BridgeAddress, src.AcceptedAsset, c.action.Amount)
	}
	c.src = src
	return nil
}

func (c *checkedBridgeTransfer) sizeInBytes() uint64 { return 0 }

func (c *checkedBridgeTransfer) EstimatedCost(d *state.Delta) CostMap {
	cost := estimateFeeCost(d, c.Kind(), c.action.FeeAsset, 0)
	return cost.add(c.src.AcceptedAsset, c.action.Amount)
}

func (c *checkedBridgeTransfer) PayFeesAndExecute(ctx context.Context, d *state.Delta, signer primitive.Address, txID [32]byte, actionIndex uint32) error {
	if err := ledger.CheckAndRecordWithdrawalEvent(d, c.action.BridgeAddress, c.action.RollupBlockNumber, c.action.RollupWithdrawalEventID); err != nil {
		return err
	}
	if err := chargeFee(d, c.Kind(), c.action.FeeAsset, signer, 0, txID, actionIndex); err != nil {
		return err
	}
	if err := ledger.DebitChecked(d, c.action.BridgeAddress, c.src.AcceptedAsset, c.action.Amount); err != nil {
		return fmt.Errorf("executing bridge transfer: %w", err)
	}
	ledger.Credit(d, c.action.To, c.src.AcceptedAsset, c.action.Amount)
	return nil
}
