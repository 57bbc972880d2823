// Package actions implements the checked-action layer described in spec
// §4.2: one validator per action kind, each performing immutable stateless
// checks at construction and mutable state checks that are re-run on
// execute.
package actions

import (
	"github.com/astria-net/sequencer-core/internal/fees"
	"github.com/astria-net/sequencer-core/internal/primitive"
)

// Group is the action-group equivalence class described in §3: every
// transaction's actions must all belong to the same group, and an
// "unbundleable" group requires the transaction to contain exactly one
// action.
type Group int

const (
	GroupBundleableGeneral Group = iota
	GroupUnbundleableGeneral
	GroupBundleableSudo
	GroupUnbundleableSudo
)

// Unbundleable reports whether a group requires a single-action
// transaction.
func (g Group) Unbundleable() bool {
	return g == GroupUnbundleableGeneral || g == GroupUnbundleableSudo
}

// RollupDataSubmission submits opaque rollup bytes into the block payload.
type RollupDataSubmission struct {
	RollupID  [32]byte
	Data      []byte
	FeeAsset  primitive.IbcPrefixed
}

// Transfer moves funds from the signer to another address.
type Transfer struct {
	To       primitive.Address
	Amount   primitive.Amount
	Asset    primitive.IbcPrefixed
	FeeAsset primitive.IbcPrefixed
}

// BridgeLock is a Transfer-shaped action whose destination is a bridge
// account; it additionally mints a Deposit for the rollup to consume.
type BridgeLock struct {
	To                      primitive.Address
	Amount                  primitive.Amount
	Asset                   primitive.IbcPrefixed
	FeeAsset                primitive.IbcPrefixed
	DestinationChainAddress string
}

// BridgeUnlock withdraws funds from a bridge account back to a base
// address, authorized by the bridge's current withdrawer.
type BridgeUnlock struct {
	To                      primitive.Address
	Amount                  primitive.Amount
	FeeAsset                primitive.IbcPrefixed
	Memo                    string
	BridgeAddress           primitive.Address
	RollupBlockNumber       uint64
	RollupWithdrawalEventID string
}

// BridgeTransfer moves funds directly between two bridge accounts,
// authorized by the source bridge's withdrawer.
type BridgeTransfer struct {
	To                      primitive.Address // destination bridge account
	Amount                  primitive.Amount
	FeeAsset                primitive.IbcPrefixed
	BridgeAddress           primitive.Address // source bridge account
	RollupBlockNumber       uint64
	RollupWithdrawalEventID string
}

// InitBridgeAccount initializes the signer's address as a bridge account.
type InitBridgeAccount struct {
	RollupID          [32]byte
	AcceptedAsset     primitive.IbcPrefixed
	FeeAsset          primitive.IbcPrefixed
	SudoAddress       *primitive.Address
	WithdrawerAddress *primitive.Address
}

// BridgeSudoChange updates a bridge account's sudo/withdrawer addresses.
type BridgeSudoChange struct {
	BridgeAddress     primitive.Address
	NewSudoAddress    *primitive.Address
	NewWithdrawer     *primitive.Address
	FeeAsset          primitive.IbcPrefixed
}

// Ics20Withdrawal sends funds out over IBC, either escrowing (source zone)
// or burning (sink zone) depending on the asset's trace.
type Ics20Withdrawal struct {
	Amount                  primitive.Amount
	Denom                   primitive.Denom
	FeeAsset                primitive.IbcPrefixed
	SourcePort              string
	SourceChannel           string
	Receiver                string
	TimeoutHeight           uint64
	TimeoutTimestamp        uint64
	Memo                    string
	BridgeAddress           *primitive.Address
	RollupBlockNumber       uint64
	RollupWithdrawalEventID string
}

// IbcRelay carries an opaque IBC packet/handshake message, dispatched to
// the IBC handler stack by the caller; here it is represented as already
// having been decoded to the extent needed for fee and gating checks.
type IbcRelay struct {
	RawIbcMessageType string
	RawIbcMessage     []byte
	FeeAsset          primitive.IbcPrefixed
	IsRecvPacket      bool
	RecvPacketAsset   primitive.IbcPrefixed
}

// SudoAddressChange replaces the global sudo address.
type SudoAddressChange struct {
	NewAddress primitive.Address
}

// IbcSudoChange replaces the IBC sudo address.
type IbcSudoChange struct {
	NewAddress primitive.Address
}

// IbcRelayerChangeKind distinguishes add vs. remove.
type IbcRelayerChangeKind int

const (
	IbcRelayerAdd IbcRelayerChangeKind = iota
	IbcRelayerRemove
)

// IbcRelayerChange adds or removes an address from the IBC relayer set.
type IbcRelayerChange struct {
	Kind    IbcRelayerChangeKind
	Address primitive.Address
}

// FeeAssetChangeKind distinguishes add vs. remove.
type FeeAssetChangeKind int

const (
	FeeAssetAddition FeeAssetChangeKind = iota
	FeeAssetRemoval
)

// FeeAssetChange adds or removes an asset from the fee-asset allow-list.
type FeeAssetChange struct {
	Kind  FeeAssetChangeKind
	Asset primitive.IbcPrefixed
}

// ValidatorUpdate proposes a consensus validator set change.
type ValidatorUpdate struct {
	PubKey []byte
	Power  int64
}

// FeeChange updates the fee Components for one action kind.
type FeeChange struct {
	ActionKind fees.ActionKind
	Components fees.Components
}

// RecoverIbcClient triggers recovery of a frozen/expired IBC client.
type RecoverIbcClient struct {
	ClientID        string
	ReplacementID   string
}

// CurrencyPairsChangeKind distinguishes add vs. remove.
type CurrencyPairsChangeKind int

const (
	CurrencyPairsAddition CurrencyPairsChangeKind = iota
	CurrencyPairsRemoval
)

// CurrencyPairsChange adds or removes oracle currency pairs.
type CurrencyPairsChange struct {
	Kind  CurrencyPairsChangeKind
	Pairs []string
}

// MarketsChangeKind distinguishes the three market-map operations.
type MarketsChangeKind int

const (
	MarketsCreate MarketsChangeKind = iota
	MarketsUpdate
	MarketsRemove
)

// MarketsChange mutates the oracle market map.
type MarketsChange struct {
	Kind    MarketsChangeKind
	Markets map[string]struct{} // market ticker set; payload detail elided
}
