package actions

import (
	"context"
	"fmt"

	"github.com/astria-net/sequencer-core/internal/fees"
	"github.com/astria-net/sequencer-core/internal/ledger"
	"github.com/astria-net/sequencer-core/internal/primitive"
	"github.com/astria-net/sequencer-core/internal/state"
)

// checkedInitBridgeAccount initializes the signer's own address as a bridge
// account. It is a one-shot operation: re-initializing an existing bridge
// account is rejected (§3).
type checkedInitBridgeAccount struct {
	action InitBridgeAccount
	signer primitive.Address
}

func newInitBridgeAccount(a InitBridgeAccount, signer primitive.Address, d *state.Delta) (CheckedAction, error) {
	c := &checkedInitBridgeAccount{action: a, signer: signer}
	if err := c.RunMutableChecks(d); err != nil {
		return nil, err
	}
	return c, nil
}

func (c *checkedInitBridgeAccount) Kind() fees.ActionKind { return fees.KindInitBridgeAccount }
func (c *checkedInitBridgeAccount) Group() Group          { return GroupBundleableGeneral }

func (c *checkedInitBridgeAccount) RunMutableChecks(d *state.Delta) error {
	if !fees.IsAllowed(d, c.action.FeeAsset) {
		return fmt.Errorf("asset %s is not an allowed fee asset", c.action.FeeAsset)
	}
	if ledger.IsBridgeAccount(d, c.signer) {
		return fmt.Errorf("%s is already a bridge account", c.signer)
	}
	return nil
}

func (c *checkedInitBridgeAccount) sizeInBytes() uint64 { return 0 }

func (c *checkedInitBridgeAccount) EstimatedCost(d *state.Delta) CostMap {
	return estimateFeeCost(d, c.Kind(), c.action.FeeAsset, 0)
}

func (c *checkedInitBridgeAccount) PayFeesAndExecute(ctx context.Context, d *state.Delta, signer primitive.Address, txID [32]byte, actionIndex uint32) error {
	if err := chargeFee(d, c.Kind(), c.action.FeeAsset, signer, 0, txID, actionIndex); err != nil {
		return err
	}
	sudo := signer
	if c.action.SudoAddress != nil {
		sudo = *c.action.SudoAddress
	}
	withdrawer := signer
	if c.action.WithdrawerAddress != nil {
		withdrawer = *c.action.WithdrawerAddress
	}
	ledger.PutBridgeAccount(d, signer, ledger.BridgeAccount{
		RollupID:          c.action.RollupID,
		AcceptedAsset:     c.action.AcceptedAsset,
		SudoAddress:       sudo,
		WithdrawerAddress: withdrawer,
	})
	return nil
}

// checkedBridgeSudoChange updates a bridge account's sudo/withdrawer
// addresses, authorized by its current sudo address (§4.2).
type checkedBridgeSudoChange struct {
	action BridgeSudoChange
	signer primitive.Address
	bridge ledger.BridgeAccount
}

func newBridgeSudoChange(a BridgeSudoChange, signer primitive.Address, d *state.Delta) (CheckedAction, error) {
	c := &checkedBridgeSudoChange{action: a, signer: signer}
	if err := c.RunMutableChecks(d); err != nil {
		return nil, err
	}
	return c, nil
}

func (c *checkedBridgeSudoChange) Kind() fees.ActionKind { return fees.KindBridgeSudoChange }
func (c *checkedBridgeSudoChange) Group() Group          { return GroupBundleableGeneral }

func (c *checkedBridgeSudoChange) RunMutableChecks(d *state.Delta) error {
	if !fees.IsAllowed(d, c.action.FeeAsset) {
		return fmt.Errorf("asset %s is not an allowed fee asset", c.action.FeeAsset)
	}
	bridge, ok := ledger.GetBridgeAccount(d, c.action.BridgeAddress)
	if !ok {
		return fmt.Errorf("%s is not a bridge account", c.action.BridgeAddress)
	}
	if !bridge.SudoAddress.Equal(c.signer) {
		return fmt.Errorf("signer %s is not the sudo address for bridge %s", c.signer, c.action.BridgeAddress)
	}
	c.bridge = bridge
	return nil
}

func (c *checkedBridgeSudoChange) sizeInBytes() uint64 { return 0 }

func (c *checkedBridgeSudoChange) EstimatedCost(d *state.Delta) CostMap {
	return estimateFeeCost(d, c.Kind(), c.action.FeeAsset, 0)
}

func (c *checkedBridgeSudoChange) PayFeesAndExecute(ctx context.Context, d *state.Delta, signer primitive.Address, txID [32]byte, actionIndex uint32) error {
	if err := chargeFee(d, c.Kind(), c.action.FeeAsset, signer, 0, txID, actionIndex); err != nil {
		return err
	}
	bridge := c.bridge
	if c.action.NewSudoAddress != nil {
		bridge.SudoAddress = *c.action.NewSudoAddress
	}
	if c.action.NewWithdrawer != nil {
		bridge.WithdrawerAddress = *c.action.NewWithdrawer
	}
	ledger.PutBridgeAccount(d, c.action.BridgeAddress, bridge)
	return nil
}
