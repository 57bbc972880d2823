package app

import (
	"encoding/json"
	"fmt"

	"github.com/astria-net/sequencer-core/internal/fees"
	"github.com/astria-net/sequencer-core/internal/primitive"
)

// GenesisAccount seeds one account's starting balances, mirroring the
// original's default_genesis_accounts() fixture shape (address, balance
// pairs) generalized to a map of asset to amount per account.
type GenesisAccount struct {
	Address  string `json:"address"`
	Balances map[string]primitive.Amount `json:"balances"`
}

// GenesisFeeComponents seeds one action kind's fee formula.
type GenesisFeeComponents struct {
	ActionKind fees.ActionKind  `json:"action_kind"`
	Components fees.Components `json:"components"`
}

// GenesisState is the JSON structure carried in RequestInitChain's
// AppStateBytes, grounded on the original's
// astria_core::protocol::genesis::v1alpha1::GenesisAppState (address
// prefixes, accounts, authority sudo, IBC sudo, allowed fee assets, fee
// components).
type GenesisState struct {
	AddressPrefix    string                 `json:"address_prefix"`
	SudoAddress      string                 `json:"sudo_address"`
	IbcSudoAddress   string                 `json:"ibc_sudo_address"`
	IbcRelayers      []string               `json:"ibc_relayers"`
	AllowedFeeAssets []string               `json:"allowed_fee_assets"`
	Fees             []GenesisFeeComponents `json:"fees"`
	Accounts         []GenesisAccount       `json:"accounts"`
}

// ParseGenesisState decodes raw InitChain AppStateBytes.
func ParseGenesisState(raw []byte) (GenesisState, error) {
	var g GenesisState
	if err := json.Unmarshal(raw, &g); err != nil {
		return GenesisState{}, fmt.Errorf("decoding genesis app state: %w", err)
	}
	if g.SudoAddress == "" {
		return GenesisState{}, fmt.Errorf("genesis state must set a sudo address")
	}
	if len(g.AllowedFeeAssets) == 0 {
		return GenesisState{}, fmt.Errorf("genesis state must allow at least one fee asset")
	}
	return g, nil
}
