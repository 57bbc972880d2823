package actions

import (
	"context"
	"fmt"

	"github.com/astria-net/sequencer-core/internal/fees"
	"github.com/astria-net/sequencer-core/internal/ledger"
	"github.com/astria-net/sequencer-core/internal/primitive"
	"github.com/astria-net/sequencer-core/internal/state"
)

// checkedBridgeLock is Transfer-shaped but additionally requires the
// destination to be an initialized bridge account accepting the given
// asset, and mints a Deposit on execution (§3, §4.2).
type checkedBridgeLock struct {
	action BridgeLock
	signer primitive.Address
}

func newBridgeLock(a BridgeLock, signer primitive.Address, d *state.Delta) (CheckedAction, error) {
	if a.Amount.IsZero() {
		return nil, fmt.Errorf("bridge lock amount must be nonzero")
	}
	if a.DestinationChainAddress == "" {
		return nil, fmt.Errorf("bridge lock requires a destination chain address")
	}
	c := &checkedBridgeLock{action: a, signer: signer}
	if err := c.RunMutableChecks(d); err != nil {
		return nil, err
	}
	return c, nil
}

func (c *checkedBridgeLock) Kind() fees.ActionKind { return fees.KindBridgeLock }
func (c *checkedBridgeLock) Group() Group          { return GroupBundleableGeneral }

func (c *checkedBridgeLock) RunMutableChecks(d *state.Delta) error {
	if !fees.IsAllowed(d, c.action.FeeAsset) {
		return fmt.Errorf("asset %s is not an allowed fee asset", c.action.FeeAsset)
	}
	bridge, ok := ledger.GetBridgeAccount(d, c.action.To)
	if !ok {
		return fmt.Errorf("destination %s is not a bridge account", c.action.To)
	}
	if bridge.AcceptedAsset != c.action.Asset {
		return fmt.Errorf("bridge %s does not accept asset %s", c.action.To, c.action.Asset)
	}
	bal := ledger.GetBalance(d, c.signer, c.action.Asset)
	if !bal.GTE(c.action.Amount) {
		return fmt.Errorf("insufficient balance: signer %s has insufficient %s to lock %s", c.signer, c.action.Asset, c.action.Amount)
	}
	return nil
}

// sizeInBytes estimates the deposit's encoded size divided by ten, per
// §4.2 ("bridge lock fee additionally scales with deposit size / 10").
func (c *checkedBridgeLock) sizeInBytes() uint64 {
	return uint64(len(c.action.DestinationChainAddress)+32+20) / 10
}

// EstimatedCost sums the transfer-base fee and the bridge-lock fee, per
// §4.2 ("bridge lock fee = transfer fee + bridge lock fee").
func (c *checkedBridgeLock) EstimatedCost(d *state.Delta) CostMap {
	cost := estimateFeeCost(d, fees.KindTransfer, c.action.FeeAsset, 0)
	for asset, amount := range estimateFeeCost(d, c.Kind(), c.action.FeeAsset, c.sizeInBytes()) {
		cost = cost.add(asset, amount)
	}
	return cost.add(c.action.Asset, c.action.Amount)
}

func (c *checkedBridgeLock) PayFeesAndExecute(ctx context.Context, d *state.Delta, signer primitive.Address, txID [32]byte, actionIndex uint32) error {
	if err := chargeFee(d, fees.KindTransfer, c.action.FeeAsset, signer, 0, txID, actionIndex); err != nil {
		return err
	}
	if err := chargeFee(d, c.Kind(), c.action.FeeAsset, signer, c.sizeInBytes(), txID, actionIndex); err != nil {
		return err
	}
	if err := ledger.DebitChecked(d, signer, c.action.Asset, c.action.Amount); err != nil {
		return fmt.Errorf("executing bridge lock: %w", err)
	}
	ledger.Credit(d, c.action.To, c.action.Asset, c.action.Amount)

	bridge, _ := ledger.GetBridgeAccount(d, c.action.To)
	ledger.AppendDeposit(d, ledger.Deposit{
		BridgeAddress:           c.action.To,
		RollupID:                bridge.RollupID,
		Amount:                  c.action.Amount,
		Asset:                   c.action.Asset,
		DestinationChainAddress: c.action.DestinationChainAddress,
		SourceTxID:              txID,
		SourceActionIndex:       actionIndex,
	})
	return nil
}
