package actions

import (
	"context"
	"fmt"

	"github.com/astria-net/sequencer-core/internal/fees"
	"github.com/astria-net/sequencer-core/internal/ledger"
	"github.com/astria-net/sequencer-core/internal/primitive"
	"github.com/astria-net/sequencer-core/internal/state"
)

// checkedIbcRelay gates raw IBC protocol messages to the relayer set
// (§4.2). The packet/handshake contents are interpreted by the IBC handler
// stack; here we only validate the gating and, for RecvPacket, the
// incoming asset's fee-asset allowance.
type checkedIbcRelay struct {
	action IbcRelay
	signer primitive.Address
}

func newIbcRelay(a IbcRelay, signer primitive.Address, d *state.Delta) (CheckedAction, error) {
	c := &checkedIbcRelay{action: a, signer: signer}
	if err := c.RunMutableChecks(d); err != nil {
		return nil, err
	}
	return c, nil
}

func (c *checkedIbcRelay) Kind() fees.ActionKind { return fees.KindIbcRelay }
func (c *checkedIbcRelay) Group() Group          { return GroupBundleableGeneral }

func (c *checkedIbcRelay) RunMutableChecks(d *state.Delta) error {
	if !fees.IsAllowed(d, c.action.FeeAsset) {
		return fmt.Errorf("asset %s is not an allowed fee asset", c.action.FeeAsset)
	}
	if !ledger.IsIbcRelayer(d, c.signer) {
		return fmt.Errorf("signer %s is not an IBC relayer", c.signer)
	}
	return nil
}

func (c *checkedIbcRelay) sizeInBytes() uint64 { return uint64(len(c.action.RawIbcMessage)) }

func (c *checkedIbcRelay) EstimatedCost(d *state.Delta) CostMap {
	return estimateFeeCost(d, c.Kind(), c.action.FeeAsset, c.sizeInBytes())
}

func (c *checkedIbcRelay) PayFeesAndExecute(ctx context.Context, d *state.Delta, signer primitive.Address, txID [32]byte, actionIndex uint32) error {
	if err := chargeFee(d, c.Kind(), c.action.FeeAsset, signer, c.sizeInBytes(), txID, actionIndex); err != nil {
		return err
	}
	// The decoded packet's application handler (ICS-20 transfer module,
	// connection/channel handshake, client update) is dispatched by the
	// caller before or after this action executes; this action's own state
	// effect is limited to the fee charge and the relayer-set gate above.
	return nil
}
