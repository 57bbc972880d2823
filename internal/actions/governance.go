// Sudo-gated parameter-change actions: each requires the signer to be the
// global sudo address (or, for IBC-scoped actions, the IBC sudo address)
// and belongs to the Unbundleable Sudo group, per §3: a transaction
// carrying one of these must contain exactly this one action.
package actions

import (
	"context"
	"fmt"

	"github.com/astria-net/sequencer-core/internal/fees"
	"github.com/astria-net/sequencer-core/internal/ledger"
	"github.com/astria-net/sequencer-core/internal/primitive"
	"github.com/astria-net/sequencer-core/internal/state"
)

// --- SudoAddressChange ---

type checkedSudoAddressChange struct {
	action SudoAddressChange
	signer primitive.Address
}

func newSudoAddressChange(a SudoAddressChange, signer primitive.Address, d *state.Delta) (CheckedAction, error) {
	c := &checkedSudoAddressChange{action: a, signer: signer}
	if err := c.RunMutableChecks(d); err != nil {
		return nil, err
	}
	return c, nil
}

func (c *checkedSudoAddressChange) Kind() fees.ActionKind { return fees.KindSudoAddressChange }
func (c *checkedSudoAddressChange) Group() Group          { return GroupUnbundleableSudo }
func (c *checkedSudoAddressChange) RunMutableChecks(d *state.Delta) error {
	return requireSudo(d, c.signer)
}
func (c *checkedSudoAddressChange) EstimatedCost(d *state.Delta) CostMap { return nil }
func (c *checkedSudoAddressChange) PayFeesAndExecute(ctx context.Context, d *state.Delta, signer primitive.Address, txID [32]byte, actionIndex uint32) error {
	ledger.PutSudoAddress(d, c.action.NewAddress)
	return nil
}

// --- IbcSudoChange ---

type checkedIbcSudoChange struct {
	action IbcSudoChange
	signer primitive.Address
}

func newIbcSudoChange(a IbcSudoChange, signer primitive.Address, d *state.Delta) (CheckedAction, error) {
	c := &checkedIbcSudoChange{action: a, signer: signer}
	if err := c.RunMutableChecks(d); err != nil {
		return nil, err
	}
	return c, nil
}

func (c *checkedIbcSudoChange) Kind() fees.ActionKind { return fees.KindIbcSudoChange }
func (c *checkedIbcSudoChange) Group() Group          { return GroupUnbundleableSudo }
func (c *checkedIbcSudoChange) RunMutableChecks(d *state.Delta) error {
	return requireSudo(d, c.signer)
}
func (c *checkedIbcSudoChange) EstimatedCost(d *state.Delta) CostMap { return nil }
func (c *checkedIbcSudoChange) PayFeesAndExecute(ctx context.Context, d *state.Delta, signer primitive.Address, txID [32]byte, actionIndex uint32) error {
	ledger.PutIbcSudoAddress(d, c.action.NewAddress)
	return nil
}

// --- IbcRelayerChange ---

type checkedIbcRelayerChange struct {
	action IbcRelayerChange
	signer primitive.Address
}

func newIbcRelayerChange(a IbcRelayerChange, signer primitive.Address, d *state.Delta) (CheckedAction, error) {
	c := &checkedIbcRelayerChange{action: a, signer: signer}
	if err := c.RunMutableChecks(d); err != nil {
		return nil, err
	}
	return c, nil
}

func (c *checkedIbcRelayerChange) Kind() fees.ActionKind { return fees.KindIbcRelayerChange }
func (c *checkedIbcRelayerChange) Group() Group          { return GroupUnbundleableSudo }
func (c *checkedIbcRelayerChange) RunMutableChecks(d *state.Delta) error {
	return requireIbcSudo(d, c.signer)
}
func (c *checkedIbcRelayerChange) EstimatedCost(d *state.Delta) CostMap { return nil }
func (c *checkedIbcRelayerChange) PayFeesAndExecute(ctx context.Context, d *state.Delta, signer primitive.Address, txID [32]byte, actionIndex uint32) error {
	switch c.action.Kind {
	case IbcRelayerAdd:
		ledger.AddIbcRelayer(d, c.action.Address)
	case IbcRelayerRemove:
		ledger.RemoveIbcRelayer(d, c.action.Address)
	default:
		return fmt.Errorf("unrecognized ibc relayer change kind %d", c.action.Kind)
	}
	return nil
}

// --- FeeAssetChange ---

type checkedFeeAssetChange struct {
	action FeeAssetChange
	signer primitive.Address
}

func newFeeAssetChange(a FeeAssetChange, signer primitive.Address, d *state.Delta) (CheckedAction, error) {
	c := &checkedFeeAssetChange{action: a, signer: signer}
	if err := c.RunMutableChecks(d); err != nil {
		return nil, err
	}
	return c, nil
}

func (c *checkedFeeAssetChange) Kind() fees.ActionKind { return fees.KindFeeAssetChange }
func (c *checkedFeeAssetChange) Group() Group          { return GroupUnbundleableSudo }
func (c *checkedFeeAssetChange) RunMutableChecks(d *state.Delta) error {
	return requireSudo(d, c.signer)
}
func (c *checkedFeeAssetChange) EstimatedCost(d *state.Delta) CostMap { return nil }
func (c *checkedFeeAssetChange) PayFeesAndExecute(ctx context.Context, d *state.Delta, signer primitive.Address, txID [32]byte, actionIndex uint32) error {
	switch c.action.Kind {
	case FeeAssetAddition:
		fees.Allow(d, c.action.Asset)
		return nil
	case FeeAssetRemoval:
		return fees.Remove(d, c.action.Asset)
	default:
		return fmt.Errorf("unrecognized fee asset change kind %d", c.action.Kind)
	}
}

// --- ValidatorUpdate ---

type checkedValidatorUpdate struct {
	action ValidatorUpdate
	signer primitive.Address
}

func newValidatorUpdate(a ValidatorUpdate, signer primitive.Address, d *state.Delta) (CheckedAction, error) {
	if len(a.PubKey) == 0 {
		return nil, fmt.Errorf("validator update requires a public key")
	}
	if a.Power < 0 {
		return nil, fmt.Errorf("validator power must be non-negative")
	}
	c := &checkedValidatorUpdate{action: a, signer: signer}
	if err := c.RunMutableChecks(d); err != nil {
		return nil, err
	}
	return c, nil
}

func (c *checkedValidatorUpdate) Kind() fees.ActionKind { return fees.KindValidatorUpdate }
func (c *checkedValidatorUpdate) Group() Group          { return GroupUnbundleableSudo }
func (c *checkedValidatorUpdate) RunMutableChecks(d *state.Delta) error {
	return requireSudo(d, c.signer)
}
func (c *checkedValidatorUpdate) EstimatedCost(d *state.Delta) CostMap { return nil }
func (c *checkedValidatorUpdate) PayFeesAndExecute(ctx context.Context, d *state.Delta, signer primitive.Address, txID [32]byte, actionIndex uint32) error {
	// The validator-set diff itself is surfaced to CometBFT via the
	// FinalizeBlock response, not through state.Delta; the app layer
	// collects pending updates for the block from the actions it executed.
	return nil
}

// --- FeeChange ---

type checkedFeeChange struct {
	action FeeChange
	signer primitive.Address
}

func newFeeChange(a FeeChange, signer primitive.Address, d *state.Delta) (CheckedAction, error) {
	c := &checkedFeeChange{action: a, signer: signer}
	if err := c.RunMutableChecks(d); err != nil {
		return nil, err
	}
	return c, nil
}

func (c *checkedFeeChange) Kind() fees.ActionKind { return fees.KindFeeChange }
func (c *checkedFeeChange) Group() Group          { return GroupUnbundleableSudo }
func (c *checkedFeeChange) RunMutableChecks(d *state.Delta) error {
	return requireSudo(d, c.signer)
}
func (c *checkedFeeChange) EstimatedCost(d *state.Delta) CostMap { return nil }
func (c *checkedFeeChange) PayFeesAndExecute(ctx context.Context, d *state.Delta, signer primitive.Address, txID [32]byte, actionIndex uint32) error {
	fees.PutComponents(d, c.action.ActionKind, c.action.Components)
	return nil
}

// --- RecoverIbcClient ---

type checkedRecoverIbcClient struct {
	action RecoverIbcClient
	signer primitive.Address
}

func newRecoverIbcClient(a RecoverIbcClient, signer primitive.Address, d *state.Delta) (CheckedAction, error) {
	if a.ClientID == "" || a.ReplacementID == "" {
		return nil, fmt.Errorf("recover ibc client requires both client ids")
	}
	c := &checkedRecoverIbcClient{action: a, signer: signer}
	if err := c.RunMutableChecks(d); err != nil {
		return nil, err
	}
	return c, nil
}

func (c *checkedRecoverIbcClient) Kind() fees.ActionKind { return fees.KindRecoverIbcClient }
func (c *checkedRecoverIbcClient) Group() Group          { return GroupUnbundleableSudo }
func (c *checkedRecoverIbcClient) RunMutableChecks(d *state.Delta) error {
	return requireIbcSudo(d, c.signer)
}
func (c *checkedRecoverIbcClient) EstimatedCost(d *state.Delta) CostMap { return nil }
func (c *checkedRecoverIbcClient) PayFeesAndExecute(ctx context.Context, d *state.Delta, signer primitive.Address, txID [32]byte, actionIndex uint32) error {
	// Delegates to the IBC client-state substore, owned by the ibc-go
	// keeper wiring in the app layer rather than this package.
	return nil
}

// --- CurrencyPairsChange ---

type checkedCurrencyPairsChange struct {
	action CurrencyPairsChange
	signer primitive.Address
}

func newCurrencyPairsChange(a CurrencyPairsChange, signer primitive.Address, d *state.Delta) (CheckedAction, error) {
	if len(a.Pairs) == 0 {
		return nil, fmt.Errorf("currency pairs change requires at least one pair")
	}
	c := &checkedCurrencyPairsChange{action: a, signer: signer}
	if err := c.RunMutableChecks(d); err != nil {
		return nil, err
	}
	return c, nil
}

func (c *checkedCurrencyPairsChange) Kind() fees.ActionKind { return fees.KindCurrencyPairsChange }
func (c *checkedCurrencyPairsChange) Group() Group          { return GroupUnbundleableSudo }
func (c *checkedCurrencyPairsChange) RunMutableChecks(d *state.Delta) error {
	return requireSudo(d, c.signer)
}
func (c *checkedCurrencyPairsChange) EstimatedCost(d *state.Delta) CostMap { return nil }
func (c *checkedCurrencyPairsChange) PayFeesAndExecute(ctx context.Context, d *state.Delta, signer primitive.Address, txID [32]byte, actionIndex uint32) error {
	for _, pair := range c.action.Pairs {
		key := "oracle/currency_pairs/" + pair
		switch c.action.Kind {
		case CurrencyPairsAddition:
			d.PutRaw(key, []byte{1})
		case CurrencyPairsRemoval:
			d.DeleteRaw(key)
		default:
			return fmt.Errorf("unrecognized currency pairs change kind %d", c.action.Kind)
		}
	}
	return nil
}

// --- MarketsChange ---

type checkedMarketsChange struct {
	action MarketsChange
	signer primitive.Address
}

func newMarketsChange(a MarketsChange, signer primitive.Address, d *state.Delta) (CheckedAction, error) {
	if len(a.Markets) == 0 {
		return nil, fmt.Errorf("markets change requires at least one market")
	}
	c := &checkedMarketsChange{action: a, signer: signer}
	if err := c.RunMutableChecks(d); err != nil {
		return nil, err
	}
	return c, nil
}

func (c *checkedMarketsChange) Kind() fees.ActionKind { return fees.KindMarketsChange }
func (c *checkedMarketsChange) Group() Group          { return GroupUnbundleableSudo }
func (c *checkedMarketsChange) RunMutableChecks(d *state.Delta) error {
	return requireSudo(d, c.signer)
}
func (c *checkedMarketsChange) EstimatedCost(d *state.Delta) CostMap { return nil }
func (c *checkedMarketsChange) PayFeesAndExecute(ctx context.Context, d *state.Delta, signer primitive.Address, txID [32]byte, actionIndex uint32) error {
	for ticker := range c.action.Markets {
		key := "oracle/markets/" + ticker
		switch c.action.Kind {
		case MarketsCreate:
			d.PutRaw(key, []byte{1})
		case MarketsUpdate:
			if _, ok := d.GetRaw(key); !ok {
				return fmt.Errorf("cannot update market %s: no such market", ticker)
			}
			d.PutRaw(key, []byte{1})
		case MarketsRemove:
			d.DeleteRaw(key)
		default:
			return fmt.Errorf("unrecognized markets change kind %d", c.action.Kind)
		}
	}
	return nil
}
