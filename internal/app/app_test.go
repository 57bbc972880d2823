package app

import (
	"context"
	"crypto/ed25519"
	"encoding/json"
	"log/slog"
	"testing"

	abcitypes "github.com/cometbft/cometbft/abci/types"
	"github.com/stretchr/testify/require"

	"github.com/astria-net/sequencer-core/internal/actions"
	"github.com/astria-net/sequencer-core/internal/fees"
	"github.com/astria-net/sequencer-core/internal/ledger"
	"github.com/astria-net/sequencer-core/internal/primitive"
	"github.com/astria-net/sequencer-core/internal/state"
	"github.com/astria-net/sequencer-core/internal/transaction"
)

func newTestApp(t *testing.T) *App {
	t.Helper()
	store, err := state.NewStore(state.NewMemoryBackend(), state.NewMemoryBackend())
	require.NoError(t, err)
	return New(store, slog.Default(), nil)
}

func testAsset(t *testing.T) primitive.IbcPrefixed {
	t.Helper()
	return primitive.IbcPrefixed{}
}

// newTestAccount generates an ed25519 keypair and returns its derived
// address alongside the keys, mirroring internal/transaction's own test
// helper for building signed transactions.
func newTestAccount(t *testing.T) (primitive.Address, ed25519.PublicKey, ed25519.PrivateKey) {
	t.Helper()
	pub, priv, err := ed25519.GenerateKey(nil)
	require.NoError(t, err)
	var key [32]byte
	copy(key[:], pub)
	return transaction.AddressFromVerificationKey(key), pub, priv
}

func initChain(t *testing.T, a *App, chainID string, accounts []GenesisAccount, sudo primitive.Address) {
	t.Helper()
	genesis := GenesisState{
		SudoAddress:      sudo.String(),
		AllowedFeeAssets: []string{testAsset(t).String()},
		Accounts:         accounts,
	}
	raw, err := json.Marshal(genesis)
	require.NoError(t, err)

	_, err = a.InitChain(context.Background(), &abcitypes.RequestInitChain{
		ChainId:       chainID,
		AppStateBytes: raw,
	})
	require.NoError(t, err)
}

func signedTransferWire(t *testing.T, priv ed25519.PrivateKey, pub ed25519.PublicKey, chainID string, nonce primitive.Nonce, to primitive.Address, amount primitive.Amount, asset primitive.IbcPrefixed) []byte {
	t.Helper()
	body := transaction.Body{
		Params: transaction.Params{ChainID: chainID, Nonce: nonce},
		Actions: []any{
			actions.Transfer{To: to, Amount: amount, Asset: asset, FeeAsset: asset},
		},
	}
	sig := ed25519.Sign(priv, body.SigningBytes())
	var sigArr [64]byte
	copy(sigArr[:], sig)
	var key [32]byte
	copy(key[:], pub)
	tx := transaction.Transaction{Signature: sigArr, VerificationKey: key, Body: body}

	raw, err := transaction.Marshal(tx)
	require.NoError(t, err)
	return raw
}

func TestInitChainSeedsAccountsAndFeeAssets(t *testing.T) {
	a := newTestApp(t)
	asset := testAsset(t)
	signer, _, _ := newTestAccount(t)
	sudo, _, _ := newTestAccount(t)

	initChain(t, a, "test-chain", []GenesisAccount{
		{Address: signer.String(), Balances: map[string]primitive.Amount{asset.String(): primitive.NewAmount(1000)}},
	}, sudo)

	d := a.store.LatestSnapshot().NewDelta()
	require.Equal(t, "test-chain", ledger.GetChainID(d))
	require.Equal(t, primitive.NewAmount(1000), ledger.GetBalance(d, signer, asset))
	gotSudo, ok := ledger.GetSudoAddress(d)
	require.True(t, ok)
	require.Equal(t, sudo, gotSudo)
	require.True(t, fees.IsAllowed(d, asset))
}

func TestCheckTxAcceptsFundedTransferAndRejectsBadSignature(t *testing.T) {
	a := newTestApp(t)
	asset := testAsset(t)
	signer, pub, priv := newTestAccount(t)
	to, _, _ := newTestAccount(t)
	sudo, _, _ := newTestAccount(t)

	initChain(t, a, "test-chain", []GenesisAccount{
		{Address: signer.String(), Balances: map[string]primitive.Amount{asset.String(): primitive.NewAmount(1000)}},
	}, sudo)

	wire := signedTransferWire(t, priv, pub, "test-chain", 0, to, primitive.NewAmount(10), asset)
	resp, err := a.CheckTx(context.Background(), &abcitypes.RequestCheckTx{Tx: wire})
	require.NoError(t, err)
	require.Equal(t, abcitypes.CodeTypeOK, resp.Code)

	corrupt := append([]byte(nil), wire...)
	corrupt[0] ^= 0xFF
	resp, err = a.CheckTx(context.Background(), &abcitypes.RequestCheckTx{Tx: corrupt})
	require.NoError(t, err)
	require.NotEqual(t, abcitypes.CodeTypeOK, resp.Code)
}

func TestPrepareProcessFinalizeCommitRoundTrip(t *testing.T) {
	a := newTestApp(t)
	asset := testAsset(t)
	signer, pub, priv := newTestAccount(t)
	to, _, _ := newTestAccount(t)
	sudo, _, _ := newTestAccount(t)

	initChain(t, a, "test-chain", []GenesisAccount{
		{Address: signer.String(), Balances: map[string]primitive.Amount{asset.String(): primitive.NewAmount(1000)}},
	}, sudo)

	wire := signedTransferWire(t, priv, pub, "test-chain", 0, to, primitive.NewAmount(10), asset)
	ctx := context.Background()
	checkResp, err := a.CheckTx(ctx, &abcitypes.RequestCheckTx{Tx: wire})
	require.NoError(t, err)
	require.Equal(t, abcitypes.CodeTypeOK, checkResp.Code)

	prepResp, err := a.PrepareProposal(ctx, &abcitypes.RequestPrepareProposal{MaxTxBytes: 1 << 20})
	require.NoError(t, err)
	require.Len(t, prepResp.Txs, numCommitments+1)

	procResp, err := a.ProcessProposal(ctx, &abcitypes.RequestProcessProposal{Txs: prepResp.Txs})
	require.NoError(t, err)
	require.Equal(t, abcitypes.ResponseProcessProposal_ACCEPT, procResp.Status)

	finResp, err := a.FinalizeBlock(ctx, &abcitypes.RequestFinalizeBlock{Height: 1, Txs: prepResp.Txs})
	require.NoError(t, err)
	require.Len(t, finResp.TxResults, 1)
	require.Equal(t, uint32(0), finResp.TxResults[0].Code)
	require.NotEmpty(t, finResp.AppHash)

	_, err = a.Commit(ctx, &abcitypes.RequestCommit{})
	require.NoError(t, err)

	d := a.store.LatestSnapshot().NewDelta()
	require.Equal(t, primitive.Nonce(1), ledger.GetNonce(d, signer))
	require.True(t, ledger.GetBalance(d, to, asset).GTE(primitive.NewAmount(10)))
}

func TestProcessProposalRejectsTamperedCommitment(t *testing.T) {
	a := newTestApp(t)
	asset := testAsset(t)
	signer, pub, priv := newTestAccount(t)
	to, _, _ := newTestAccount(t)
	sudo, _, _ := newTestAccount(t)

	initChain(t, a, "test-chain", []GenesisAccount{
		{Address: signer.String(), Balances: map[string]primitive.Amount{asset.String(): primitive.NewAmount(1000)}},
	}, sudo)

	wire := signedTransferWire(t, priv, pub, "test-chain", 0, to, primitive.NewAmount(10), asset)
	ctx := context.Background()
	_, err := a.CheckTx(ctx, &abcitypes.RequestCheckTx{Tx: wire})
	require.NoError(t, err)

	prepResp, err := a.PrepareProposal(ctx, &abcitypes.RequestPrepareProposal{MaxTxBytes: 1 << 20})
	require.NoError(t, err)

	tampered := append([][]byte(nil), prepResp.Txs...)
	tampered[0] = append([]byte(nil), tampered[0]...)
	tampered[0][len(tampered[0])-1] ^= 0xFF

	procResp, err := a.ProcessProposal(ctx, &abcitypes.RequestProcessProposal{Txs: tampered})
	require.NoError(t, err)
	require.Equal(t, abcitypes.ResponseProcessProposal_REJECT, procResp.Status)
}
