package app

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	abcitypes "github.com/cometbft/cometbft/abci/types"

	"github.com/astria-net/sequencer-core/internal/fees"
	"github.com/astria-net/sequencer-core/internal/ledger"
	"github.com/astria-net/sequencer-core/internal/primitive"
)

// Query serves the narrow read surface the bridge-withdrawer submitter and
// the relayer binary need against a running node: account nonce and
// balance, the fee-asset allow-list, and a finalized block's persisted
// BlockData record. Every other query path (arbitrary key proofs included)
// is answered with CodeQueryNotFound, per §6's consensus-path scope; the
// snapshot RPCs are separate ABCI methods left to BaseApplication.
func (a *App) Query(_ context.Context, req *abcitypes.RequestQuery) (*abcitypes.ResponseQuery, error) {
	parts := strings.Split(strings.Trim(req.Path, "/"), "/")
	snap := a.store.LatestSnapshot()
	d := snap.NewDelta()

	notFound := func(format string, args ...any) *abcitypes.ResponseQuery {
		return &abcitypes.ResponseQuery{Code: CodeQueryNotFound, Log: fmt.Sprintf(format, args...)}
	}

	switch {
	case len(parts) == 3 && parts[0] == "accounts" && parts[2] == "nonce":
		addr, err := primitive.ParseAddress(parts[1])
		if err != nil {
			return notFound("parsing address: %v", err), nil
		}
		buf := make([]byte, 4)
		binary.BigEndian.PutUint32(buf, uint32(ledger.GetNonce(d, addr)))
		return &abcitypes.ResponseQuery{Code: abcitypes.CodeTypeOK, Value: buf}, nil

	case len(parts) == 4 && parts[0] == "accounts" && parts[2] == "balance":
		addr, err := primitive.ParseAddress(parts[1])
		if err != nil {
			return notFound("parsing address: %v", err), nil
		}
		asset, err := primitive.ParseIbcPrefixed(parts[3])
		if err != nil {
			return notFound("parsing asset: %v", err), nil
		}
		amt := ledger.GetBalance(d, addr, asset)
		return &abcitypes.ResponseQuery{Code: abcitypes.CodeTypeOK, Value: []byte(amt.String())}, nil

	case len(parts) == 3 && parts[0] == "fees" && parts[1] == "allowed_assets":
		asset, err := primitive.ParseIbcPrefixed(parts[2])
		if err != nil {
			return notFound("parsing asset: %v", err), nil
		}
		if !fees.IsAllowed(d, asset) {
			return notFound("asset %s is not on the allow-list", asset), nil
		}
		return &abcitypes.ResponseQuery{Code: abcitypes.CodeTypeOK}, nil

	case len(parts) == 2 && parts[0] == "blocks":
		height, err := strconv.ParseInt(parts[1], 10, 64)
		if err != nil {
			return notFound("parsing height: %v", err), nil
		}
		bd, ok := GetBlockData(d, height)
		if !ok {
			return notFound("no block data recorded for height %d", height), nil
		}
		raw, err := json.Marshal(bd)
		if err != nil {
			return notFound("encoding block data: %v", err), nil
		}
		return &abcitypes.ResponseQuery{Code: abcitypes.CodeTypeOK, Value: raw}, nil

	default:
		return notFound("unrecognized query path %q", req.Path), nil
	}
}
