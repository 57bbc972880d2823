package transaction

import (
	"context"
	"crypto/ed25519"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/astria-net/sequencer-core/internal/actions"
	"github.com/astria-net/sequencer-core/internal/fees"
	"github.com/astria-net/sequencer-core/internal/ledger"
	"github.com/astria-net/sequencer-core/internal/primitive"
	"github.com/astria-net/sequencer-core/internal/state"
)

func newTestDelta(t *testing.T) *state.Delta {
	t.Helper()
	store, err := state.NewStore(state.NewMemoryBackend(), state.NewMemoryBackend())
	require.NoError(t, err)
	return store.LatestSnapshot().NewDelta()
}

func signBody(t *testing.T, body Body) (Transaction, [32]byte) {
	t.Helper()
	pub, priv, err := ed25519.GenerateKey(nil)
	require.NoError(t, err)
	var key [32]byte
	copy(key[:], pub)
	sig := ed25519.Sign(priv, body.SigningBytes())
	var sigArr [64]byte
	copy(sigArr[:], sig)
	return Transaction{Signature: sigArr, VerificationKey: key, Body: body}, key
}

func TestNewRejectsBadSignature(t *testing.T) {
	d := newTestDelta(t)
	asset := primitive.NewIbcPrefixedDenom(primitive.IbcPrefixed{}).ToIbcPrefixed()
	fees.Allow(d, asset)

	body := Body{
		Params:  Params{ChainID: "test-chain", Nonce: 0},
		Actions: []any{actions.Transfer{To: primitive.Address{}, Amount: primitive.NewAmount(1), Asset: asset, FeeAsset: asset}},
	}
	tx, _ := signBody(t, body)
	tx.Signature[0] ^= 0xFF

	_, err := New(tx, d)
	require.Error(t, err)
}

func TestNewRejectsChainIDMismatch(t *testing.T) {
	d := newTestDelta(t)
	ledger.PutChainID(d, "real-chain")
	asset := primitive.NewIbcPrefixedDenom(primitive.IbcPrefixed{}).ToIbcPrefixed()
	fees.Allow(d, asset)

	body := Body{
		Params:  Params{ChainID: "wrong-chain", Nonce: 0},
		Actions: []any{actions.Transfer{To: primitive.Address{}, Amount: primitive.NewAmount(1), Asset: asset, FeeAsset: asset}},
	}
	tx, _ := signBody(t, body)

	_, err := New(tx, d)
	require.ErrorContains(t, err, "chain id mismatch")
}

func TestNewRejectsMixedActionGroups(t *testing.T) {
	d := newTestDelta(t)
	asset := primitive.NewIbcPrefixedDenom(primitive.IbcPrefixed{}).ToIbcPrefixed()
	fees.Allow(d, asset)
	to := primitive.MustNewAddress(make([]byte, primitive.AddressLength), primitive.DefaultPrefix)

	body := Body{
		Params: Params{ChainID: "test-chain", Nonce: 0},
		Actions: []any{
			actions.Transfer{To: to, Amount: primitive.NewAmount(1), Asset: asset, FeeAsset: asset},
			actions.SudoAddressChange{NewAddress: to},
		},
	}
	tx, _ := signBody(t, body)

	_, err := New(tx, d)
	require.Error(t, err)
}

func TestExecuteDebitsSignerAndIncrementsNonce(t *testing.T) {
	d := newTestDelta(t)
	asset := primitive.NewIbcPrefixedDenom(primitive.IbcPrefixed{}).ToIbcPrefixed()
	fees.Allow(d, asset)

	pub, priv, err := ed25519.GenerateKey(nil)
	require.NoError(t, err)
	var key [32]byte
	copy(key[:], pub)
	signer := AddressFromVerificationKey(key)
	ledger.PutBalance(d, signer, asset, primitive.NewAmount(100))

	to := primitive.MustNewAddress(make([]byte, primitive.AddressLength), primitive.DefaultPrefix)
	body := Body{
		Params:  Params{ChainID: "", Nonce: 0},
		Actions: []any{actions.Transfer{To: to, Amount: primitive.NewAmount(10), Asset: asset, FeeAsset: asset}},
	}
	sig := ed25519.Sign(priv, body.SigningBytes())
	var sigArr [64]byte
	copy(sigArr[:], sig)
	tx := Transaction{Signature: sigArr, VerificationKey: key, Body: body}

	checked, err := New(tx, d)
	require.NoError(t, err)

	require.NoError(t, checked.Execute(context.Background(), d))
	require.Equal(t, primitive.Nonce(1), ledger.GetNonce(d, signer))
	require.True(t, ledger.GetBalance(d, signer, asset).GTE(primitive.ZeroAmount))
	require.True(t, ledger.GetBalance(d, to, asset).GTE(primitive.NewAmount(10)))
}
