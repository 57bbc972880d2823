package bridgewithdrawer

import (
	"context"
	"crypto/ed25519"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/astria-net/sequencer-core/internal/actions"
	"github.com/astria-net/sequencer-core/internal/primitive"
	"github.com/astria-net/sequencer-core/internal/transaction"
)

type fakeClient struct {
	chainID        string
	feeAssetOK     bool
	balance        primitive.Amount
	nonce          primitive.Nonce
	nonceErrsLeft  int
	broadcastErr   error
	broadcastCode  uint32
	txResultCode   uint32
	broadcasts     []transaction.Transaction
}

func (f *fakeClient) ChainID(context.Context) (string, error) { return f.chainID, nil }

func (f *fakeClient) Nonce(context.Context, primitive.Address) (primitive.Nonce, error) {
	if f.nonceErrsLeft > 0 {
		f.nonceErrsLeft--
		return 0, errTransient
	}
	return f.nonce, nil
}

func (f *fakeClient) Balance(context.Context, primitive.Address, primitive.IbcPrefixed) (primitive.Amount, error) {
	return f.balance, nil
}

func (f *fakeClient) FeeAssetAllowed(context.Context, primitive.IbcPrefixed) (bool, error) {
	return f.feeAssetOK, nil
}

func (f *fakeClient) BroadcastTxCommit(_ context.Context, tx transaction.Transaction) (BroadcastResult, error) {
	if f.broadcastErr != nil {
		return BroadcastResult{}, f.broadcastErr
	}
	f.broadcasts = append(f.broadcasts, tx)
	return BroadcastResult{
		Height:       42,
		CheckTxCode:  f.broadcastCode,
		TxResultCode: f.txResultCode,
	}, nil
}

type fakeErr string

func (e fakeErr) Error() string { return string(e) }

const errTransient = fakeErr("transient rpc failure")

func newTestSigner(t *testing.T) Signer {
	t.Helper()
	_, priv, err := ed25519.GenerateKey(nil)
	require.NoError(t, err)
	signer, err := NewSingleKeySigner(priv)
	require.NoError(t, err)
	return signer
}

func testConfig() Config {
	return Config{
		ChainID:        "test-chain-1",
		FeeAsset:       primitive.IbcPrefixed{1},
		MinimumBalance: primitive.NewAmount(100),
	}
}

func TestStartupSucceedsWhenChecksPass(t *testing.T) {
	signer := newTestSigner(t)
	client := &fakeClient{chainID: "test-chain-1", feeAssetOK: true, balance: primitive.NewAmount(1000)}
	s := NewSubmitter(testConfig(), client, signer, nil)

	require.NoError(t, s.Startup(context.Background()))
	require.True(t, s.Status().Ready)
}

func TestStartupFailsOnChainIDMismatch(t *testing.T) {
	signer := newTestSigner(t)
	client := &fakeClient{chainID: "other-chain", feeAssetOK: true, balance: primitive.NewAmount(1000)}
	s := NewSubmitter(testConfig(), client, signer, nil)

	require.Error(t, s.Startup(context.Background()))
	require.False(t, s.Status().Ready)
}

func TestStartupFailsOnDisallowedFeeAsset(t *testing.T) {
	signer := newTestSigner(t)
	client := &fakeClient{chainID: "test-chain-1", feeAssetOK: false, balance: primitive.NewAmount(1000)}
	s := NewSubmitter(testConfig(), client, signer, nil)

	require.Error(t, s.Startup(context.Background()))
}

func TestStartupFailsOnInsufficientBalance(t *testing.T) {
	signer := newTestSigner(t)
	client := &fakeClient{chainID: "test-chain-1", feeAssetOK: true, balance: primitive.NewAmount(1)}
	s := NewSubmitter(testConfig(), client, signer, nil)

	require.Error(t, s.Startup(context.Background()))
}

func testWithdrawal() actions.BridgeUnlock {
	return actions.BridgeUnlock{
		To:                      primitive.MustNewAddress(make([]byte, primitive.AddressLength), primitive.DefaultPrefix),
		Amount:                  primitive.NewAmount(50),
		FeeAsset:                primitive.IbcPrefixed{1},
		BridgeAddress:           primitive.MustNewAddress(make([]byte, primitive.AddressLength), primitive.DefaultPrefix),
		RollupBlockNumber:       7,
		RollupWithdrawalEventID: "event-1",
	}
}

func TestRunSubmitsBatchesSequentiallyAndRetriesNonceFetch(t *testing.T) {
	signer := newTestSigner(t)
	client := &fakeClient{chainID: "test-chain-1", feeAssetOK: true, balance: primitive.NewAmount(1000), nonce: 5, nonceErrsLeft: 2}
	s := NewSubmitter(testConfig(), client, signer, nil)
	require.NoError(t, s.Startup(context.Background()))

	batches := make(chan Batch, 2)
	batches <- Batch{Actions: []any{testWithdrawal()}, RollupHeight: 10}
	batches <- Batch{Actions: []any{testWithdrawal()}, RollupHeight: 11}
	close(batches)

	require.NoError(t, s.Run(context.Background(), batches))
	require.Len(t, client.broadcasts, 2)
	require.Equal(t, uint64(11), s.Status().LastRollupHeightSubmitted)
	require.Equal(t, int64(42), s.Status().LastSequencerHeight)
}

func TestRunAbortsOnNonZeroCheckTxCode(t *testing.T) {
	signer := newTestSigner(t)
	client := &fakeClient{chainID: "test-chain-1", feeAssetOK: true, balance: primitive.NewAmount(1000), nonce: 5, broadcastCode: 7}
	s := NewSubmitter(testConfig(), client, signer, nil)
	require.NoError(t, s.Startup(context.Background()))

	batches := make(chan Batch, 2)
	batches <- Batch{Actions: []any{testWithdrawal()}, RollupHeight: 10}
	batches <- Batch{Actions: []any{testWithdrawal()}, RollupHeight: 11}
	close(batches)

	err := s.Run(context.Background(), batches)
	require.Error(t, err)
	require.Len(t, client.broadcasts, 1, "the second batch must never be attempted after the first is rejected")
}

func TestRunAbortsOnNonZeroTxResultCode(t *testing.T) {
	signer := newTestSigner(t)
	client := &fakeClient{chainID: "test-chain-1", feeAssetOK: true, balance: primitive.NewAmount(1000), nonce: 5, txResultCode: 3}
	s := NewSubmitter(testConfig(), client, signer, nil)
	require.NoError(t, s.Startup(context.Background()))

	batches := make(chan Batch, 1)
	batches <- Batch{Actions: []any{testWithdrawal()}, RollupHeight: 10}
	close(batches)

	require.Error(t, s.Run(context.Background(), batches))
}

func TestRunStopsDrainingOnContextCancellation(t *testing.T) {
	signer := newTestSigner(t)
	client := &fakeClient{chainID: "test-chain-1", feeAssetOK: true, balance: primitive.NewAmount(1000), nonce: 5}
	s := NewSubmitter(testConfig(), client, signer, nil)
	require.NoError(t, s.Startup(context.Background()))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	batches := make(chan Batch)

	require.NoError(t, s.Run(ctx, batches))
	require.Empty(t, client.broadcasts)
}
