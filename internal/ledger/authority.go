package ledger

import (
	"github.com/astria-net/sequencer-core/internal/primitive"
	"github.com/astria-net/sequencer-core/internal/state"
)

const (
	sudoAddressKey    = "authority/sudo_address"
	ibcSudoAddressKey = "ibc/sudo_address"
	ibcRelayerPrefix  = "ibc/relayers/"
	chainIDKey        = "chain_id"
)

// GetSudoAddress returns the address authorized to alter authority-gated
// global parameters.
func GetSudoAddress(d *state.Delta) (primitive.Address, bool) {
	raw, ok := d.GetRaw(sudoAddressKey)
	if !ok || len(raw) != primitive.AddressLength {
		return primitive.Address{}, false
	}
	addr, err := primitive.NewAddress(raw, primitive.DefaultPrefix)
	if err != nil {
		return primitive.Address{}, false
	}
	return addr, true
}

// PutSudoAddress writes the sudo address.
func PutSudoAddress(d *state.Delta, addr primitive.Address) {
	d.PutRaw(sudoAddressKey, addr.Bytes())
}

// GetIbcSudoAddress returns the address authorized to alter IBC client and
// relayer-set parameters.
func GetIbcSudoAddress(d *state.Delta) (primitive.Address, bool) {
	raw, ok := d.GetRaw(ibcSudoAddressKey)
	if !ok || len(raw) != primitive.AddressLength {
		return primitive.Address{}, false
	}
	addr, err := primitive.NewAddress(raw, primitive.DefaultPrefix)
	if err != nil {
		return primitive.Address{}, false
	}
	return addr, true
}

// PutIbcSudoAddress writes the IBC sudo address.
func PutIbcSudoAddress(d *state.Delta, addr primitive.Address) {
	d.PutRaw(ibcSudoAddressKey, addr.Bytes())
}

// IsIbcRelayer reports whether addr is in the IBC relayer set (§4.2:
// IbcRelay is "gated to the IBC-relayer set").
func IsIbcRelayer(d *state.Delta, addr primitive.Address) bool {
	_, ok := d.GetRaw(ibcRelayerPrefix + hexBytes(addr.Bytes()))
	return ok
}

// AddIbcRelayer adds addr to the IBC relayer set.
func AddIbcRelayer(d *state.Delta, addr primitive.Address) {
	d.PutRaw(ibcRelayerPrefix+hexBytes(addr.Bytes()), []byte{1})
}

// RemoveIbcRelayer removes addr from the IBC relayer set.
func RemoveIbcRelayer(d *state.Delta, addr primitive.Address) {
	d.DeleteRaw(ibcRelayerPrefix + hexBytes(addr.Bytes()))
}

// GetChainID returns the chain id used to validate TransactionParams.
func GetChainID(d *state.Delta) string {
	raw, _ := d.GetRaw(chainIDKey)
	return string(raw)
}

// PutChainID writes the chain id, set once at InitChain.
func PutChainID(d *state.Delta, chainID string) {
	d.PutRaw(chainIDKey, []byte(chainID))
}
