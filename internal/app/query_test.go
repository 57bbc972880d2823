package app

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"testing"

	abcitypes "github.com/cometbft/cometbft/abci/types"
	"github.com/stretchr/testify/require"

	"github.com/astria-net/sequencer-core/internal/primitive"
)

func TestQueryNonceAndBalanceAndAllowedAsset(t *testing.T) {
	a := newTestApp(t)
	asset := testAsset(t)
	signer, _, _ := newTestAccount(t)
	sudo, _, _ := newTestAccount(t)

	initChain(t, a, "test-chain", []GenesisAccount{
		{Address: signer.String(), Balances: map[string]primitive.Amount{asset.String(): primitive.NewAmount(1000)}},
	}, sudo)

	ctx := context.Background()

	nonceResp, err := a.Query(ctx, &abcitypes.RequestQuery{Path: fmt.Sprintf("accounts/%s/nonce", signer)})
	require.NoError(t, err)
	require.Equal(t, abcitypes.CodeTypeOK, nonceResp.Code)
	require.Equal(t, uint32(0), binary.BigEndian.Uint32(nonceResp.Value))

	balResp, err := a.Query(ctx, &abcitypes.RequestQuery{Path: fmt.Sprintf("accounts/%s/balance/%s", signer, asset)})
	require.NoError(t, err)
	require.Equal(t, abcitypes.CodeTypeOK, balResp.Code)
	amt, err := primitive.ParseAmount(string(balResp.Value))
	require.NoError(t, err)
	require.Equal(t, primitive.NewAmount(1000), amt)

	allowedResp, err := a.Query(ctx, &abcitypes.RequestQuery{Path: fmt.Sprintf("fees/allowed_assets/%s", asset)})
	require.NoError(t, err)
	require.Equal(t, abcitypes.CodeTypeOK, allowedResp.Code)

	otherAsset, err := primitive.ParseIbcPrefixed("ibc/0000000000000000000000000000000000000000000000000000000000000000")
	require.NoError(t, err)
	disallowedResp, err := a.Query(ctx, &abcitypes.RequestQuery{Path: fmt.Sprintf("fees/allowed_assets/%s", otherAsset)})
	require.NoError(t, err)
	require.Equal(t, CodeQueryNotFound, disallowedResp.Code)
}

func TestQueryBlockDataRoundTrips(t *testing.T) {
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
	_, err = a.FinalizeBlock(ctx, &abcitypes.RequestFinalizeBlock{Height: 1, Txs: prepResp.Txs})
	require.NoError(t, err)
	_, err = a.Commit(ctx, &abcitypes.RequestCommit{})
	require.NoError(t, err)

	resp, err := a.Query(ctx, &abcitypes.RequestQuery{Path: "blocks/1"})
	require.NoError(t, err)
	require.Equal(t, abcitypes.CodeTypeOK, resp.Code)

	var bd BlockData
	require.NoError(t, json.Unmarshal(resp.Value, &bd))
	require.Equal(t, int64(1), bd.Height)

	missing, err := a.Query(ctx, &abcitypes.RequestQuery{Path: "blocks/2"})
	require.NoError(t, err)
	require.Equal(t, CodeQueryNotFound, missing.Code)

	bad, err := a.Query(ctx, &abcitypes.RequestQuery{Path: "unknown/path"})
	require.NoError(t, err)
	require.Equal(t, CodeQueryNotFound, bad.Code)
}
