package actions

import (
	"context"
	"fmt"

	"github.com/astria-net/sequencer-core/internal/fees"
	"github.com/astria-net/sequencer-core/internal/ledger"
	"github.com/astria-net/sequencer-core/internal/primitive"
	"github.com/astria-net/sequencer-core/internal/state"
)

// checkedIcs20Withdrawal sends funds out over IBC. Following ICS-20, the
// denom is escrowed (debited from the signer, held by the module) when this
// chain is the source zone for the denom's channel, and burned outright
// when it is not (§4.2, grounded on the original's ics20_withdrawal.rs).
type checkedIcs20Withdrawal struct {
	action     Ics20Withdrawal
	signer     primitive.Address
	isSource   bool
	fromBridge bool
	bridge     ledger.BridgeAccount
}

func newIcs20Withdrawal(a Ics20Withdrawal, signer primitive.Address, d *state.Delta) (CheckedAction, error) {
	if a.Amount.IsZero() {
		return nil, fmt.Errorf("ics20 withdrawal amount must be nonzero")
	}
	if a.Receiver == "" {
		return nil, fmt.Errorf("ics20 withdrawal requires a receiver")
	}
	if a.BridgeAddress != nil && a.RollupWithdrawalEventID == "" {
		return nil, fmt.Errorf("bridge-originated ics20 withdrawal requires a rollup withdrawal event id")
	}
	// This chain is the source zone unless the denom arrived over the
	// outgoing channel.
	c := &checkedIcs20Withdrawal{
		action:   a,
		signer:   signer,
		isSource: !a.Denom.IsSourceOf(a.SourcePort, a.SourceChannel),
	}
	if err := c.RunMutableChecks(d); err != nil {
		return nil, err
	}
	return c, nil
}

func (c *checkedIcs20Withdrawal) Kind() fees.ActionKind { return fees.KindIcs20Withdrawal }
func (c *checkedIcs20Withdrawal) Group() Group          { return GroupBundleableGeneral }

func (c *checkedIcs20Withdrawal) RunMutableChecks(d *state.Delta) error {
	if !fees.IsAllowed(d, c.action.FeeAsset) {
		return fmt.Errorf("asset %s is not an allowed fee asset", c.action.FeeAsset)
	}
	payer := c.signer
	c.fromBridge = c.action.BridgeAddress != nil
	if c.fromBridge {
		payer = *c.action.BridgeAddress
		bridge, ok := ledger.GetBridgeAccount(d, payer)
		if !ok {
			return fmt.Errorf("%s is not a bridge account", payer)
		}
		if !bridge.WithdrawerAddress.Equal(c.signer) {
			return fmt.Errorf("signer %s is not the withdrawer for bridge %s", c.signer, payer)
		}
		c.bridge = bridge
	}
	asset := c.action.Denom.ToIbcPrefixed()
	bal := ledger.GetBalance(d, payer, asset)
	if !bal.GTE(c.action.Amount) {
		return fmt.Errorf("%s has insufficient %s for ics20 withdrawal of %s", payer, asset, c.action.Amount)
	}
	return nil
}

func (c *checkedIcs20Withdrawal) sizeInBytes() uint64 { return 0 }

func (c *checkedIcs20Withdrawal) EstimatedCost(d *state.Delta) CostMap {
	cost := estimateFeeCost(d, c.Kind(), c.action.FeeAsset, 0)
	return cost.add(c.action.Denom.ToIbcPrefixed(), c.action.Amount)
}

func (c *checkedIcs20Withdrawal) PayFeesAndExecute(ctx context.Context, d *state.Delta, signer primitive.Address, txID [32]byte, actionIndex uint32) error {
	payer := c.signer
	if c.fromBridge {
		payer = *c.action.BridgeAddress
		if err := ledger.CheckAndRecordWithdrawalEvent(d, payer, c.action.RollupBlockNumber, c.action.RollupWithdrawalEventID); err != nil {
			return err
		}
	}
	if err := chargeFee(d, c.Kind(), c.action.FeeAsset, signer, 0, txID, actionIndex); err != nil {
		return err
	}
	asset := c.action.Denom.ToIbcPrefixed()
	if err := ledger.DebitChecked(d, payer, asset, c.action.Amount); err != nil {
		return fmt.Errorf("executing ics20 withdrawal: %w", err)
	}
	// Escrowed (source-zone) withdrawals hold funds in the module's escrow
	// account for return on timeout/ack-failure; sink-zone withdrawals burn
	// outright. The IBC packet-relay layer credits escrow back on failure.
	if c.isSource {
		ledger.Credit(d, ibcEscrowAddress(), asset, c.action.Amount)
	}
	return nil
}

// ibcEscrowAddress is the module account holding escrowed ICS-20 source-zone
// balances pending packet acknowledgement.
func ibcEscrowAddress() primitive.Address {
	var raw [primitive.AddressLength]byte
	copy(raw[:], []byte("ibc-escrow-module"))
	return primitive.MustNewAddress(raw[:], primitive.DefaultPrefix)
}
