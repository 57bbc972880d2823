package actions

import (
	"context"
	"fmt"

	"github.com/astria-net/sequencer-core/internal/fees"
	"github.com/astria-net/sequencer-core/internal/primitive"
	"github.com/astria-net/sequencer-core/internal/state"
)

// checkedRollupDataSubmission carries opaque bytes destined for a rollup's
// block payload; its only state effect is the fee charge.
type checkedRollupDataSubmission struct {
	action RollupDataSubmission
	signer primitive.Address
}

func newRollupDataSubmission(a RollupDataSubmission, signer primitive.Address, d *state.Delta) (CheckedAction, error) {
	if len(a.Data) == 0 {
		return nil, fmt.Errorf("rollup data submission must carry nonempty data")
	}
	c := &checkedRollupDataSubmission{action: a, signer: signer}
	if err := c.RunMutableChecks(d); err != nil {
		return nil, err
	}
	return c, nil
}

func (c *checkedRollupDataSubmission) Kind() fees.ActionKind { return fees.KindRollupDataSubmission }
func (c *checkedRollupDataSubmission) Group() Group          { return GroupBundleableGeneral }

func (c *checkedRollupDataSubmission) RunMutableChecks(d *state.Delta) error {
	if !fees.IsAllowed(d, c.action.FeeAsset) {
		return fmt.Errorf("asset %s is not an allowed fee asset", c.action.FeeAsset)
	}
	return nil
}

func (c *checkedRollupDataSubmission) sizeInBytes() uint64 {
	return uint64(len(c.action.Data))
}

func (c *checkedRollupDataSubmission) EstimatedCost(d *state.Delta) CostMap {
	return estimateFeeCost(d, c.Kind(), c.action.FeeAsset, c.sizeInBytes())
}

func (c *checkedRollupDataSubmission) PayFeesAndExecute(ctx context.Context, d *state.Delta, signer primitive.Address, txID [32]byte, actionIndex uint32) error {
	return chargeFee(d, c.Kind(), c.action.FeeAsset, signer, c.sizeInBytes(), txID, actionIndex)
}
