package actions

import (
	"context"
	"fmt"

	"github.com/astria-net/sequencer-core/internal/fees"
	"github.com/astria-net/sequencer-core/internal/ledger"
	"github.com/astria-net/sequencer-core/internal/primitive"
	"github.com/astria-net/sequencer-core/internal/state"
)

// checkedTransfer validates and later executes a Transfer action.
type checkedTransfer struct {
	action Transfer
	signer primitive.Address
}

func newTransfer(a Transfer, signer primitive.Address, d *state.Delta) (CheckedAction, error) {
	if a.Amount.IsZero() {
		return nil, fmt.Errorf("transfer amount must be nonzero")
	}
	c := &checkedTransfer{action: a, signer: signer}
	if err := c.RunMutableChecks(d); err != nil {
		return nil, err
	}
	return c, nil
}

func (c *checkedTransfer) Kind() fees.ActionKind { return fees.KindTransfer }
func (c *checkedTransfer) Group() Group          { return GroupBundleableGeneral }

// RunMutableChecks rejects a bridge-account signer, a recipient outside the
// base address prefix, and a fee asset that is not on the allow-list, and
// checks that the signer's balance of the transferred asset covers amount.
// The fee is not part of this balance check; its affordability is settled
// when PayFeesAndExecute charges it.
func (c *checkedTransfer) RunMutableChecks(d *state.Delta) error {
	if ledger.IsBridgeAccount(d, c.signer) {
		return fmt.Errorf("signer %s is a bridge account: use BridgeUnlock or BridgeTransfer instead of Transfer", c.signer)
	}
	if c.action.To.Prefix() != primitive.DefaultPrefix {
		return fmt.Errorf("transfer recipient %s must use the base address prefix %q", c.action.To, primitive.DefaultPrefix)
	}
	if !fees.IsAllowed(d, c.action.FeeAsset) {
		return fmt.Errorf("asset %s is not an allowed fee asset", c.action.FeeAsset)
	}
	bal := ledger.GetBalance(d, c.signer, c.action.Asset)
	if !bal.GTE(c.action.Amount) {
		return fmt.Errorf("insufficient balance: signer %s has insufficient %s to transfer %s", c.signer, c.action.Asset, c.action.Amount)
	}
	return nil
}

func (c *checkedTransfer) sizeInBytes() uint64 { return 0 }

func (c *checkedTransfer) EstimatedCost(d *state.Delta) CostMap {
	cost := estimateFeeCost(d, c.Kind(), c.action.FeeAsset, 0)
	return cost.add(c.action.Asset, c.action.Amount)
}

func (c *checkedTransfer) PayFeesAndExecute(ctx context.Context, d *state.Delta, signer primitive.Address, txID [32]byte, actionIndex uint32) error {
	if err := chargeFee(d, c.Kind(), c.action.FeeAsset, signer, 0, txID, actionIndex); err != nil {
		return err
	}
	if err := ledger.DebitChecked(d, signer, c.action.Asset, c.action.Amount); err != nil {
		return fmt.Errorf("executing transfer: %w", err)
	}
	ledger.Credit(d, c.action.To, c.action.Asset, c.action.Amount)
	return nil
}
