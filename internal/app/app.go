// Package app implements the ABCI application described in §4.6: the state
// machine that turns a CometBFT consensus round into committed chain state.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	abcitypes "github.com/cometbft/cometbft/abci/types"

	"github.com/astria-net/sequencer-core/internal/actions"
	"github.com/astria-net/sequencer-core/internal/fees"
	"github.com/astria-net/sequencer-core/internal/ledger"
	"github.com/astria-net/sequencer-core/internal/mempool"
	"github.com/astria-net/sequencer-core/internal/primitive"
	"github.com/astria-net/sequencer-core/internal/state"
	"github.com/astria-net/sequencer-core/internal/transaction"
	"github.com/astria-net/sequencer-core/internal/upgrades"
)

// App wires the checked-transaction pipeline, the mempool, and the storage
// façade into a CometBFT abcitypes.Application. Query (query.go) overrides
// the embedded BaseApplication for a narrow read surface; Info, the
// snapshot RPCs, and vote extensions still come from BaseApplication,
// grounded on §6's scope: this tree targets the consensus path, not state
// sync or oracle vote extensions.
type App struct {
	abcitypes.BaseApplication

	store    *state.Store
	pool     *mempool.Mempool
	logger   *slog.Logger
	chainID  string
	upgrades *upgrades.Handler
}

// New constructs an App over an already-opened store and a fresh mempool.
// upgradeHandler may be nil, in which case the binary carries no upgrade
// manifest and §4.7's checks are skipped entirely.
func New(store *state.Store, logger *slog.Logger, upgradeHandler *upgrades.Handler) *App {
	if logger == nil {
		logger = slog.Default()
	}
	return &App{store: store, pool: mempool.New(), logger: logger, upgrades: upgradeHandler}
}

// InitChain seeds genesis state and returns the initial validator set and
// consensus params unchanged, per §4.6.
func (a *App) InitChain(ctx context.Context, req *abcitypes.RequestInitChain) (*abcitypes.ResponseInitChain, error) {
	genesis, err := ParseGenesisState(req.AppStateBytes)
	if err != nil {
		return nil, fmt.Errorf("invalid genesis app state: %w", err)
	}

	d := a.store.LatestSnapshot().NewDelta()

	a.chainID = req.ChainId
	ledger.PutChainID(d, req.ChainId)

	sudo, err := primitive.ParseAddress(genesis.SudoAddress)
	if err != nil {
		return nil, fmt.Errorf("genesis sudo address: %w", err)
	}
	ledger.PutSudoAddress(d, sudo)

	if genesis.IbcSudoAddress != "" {
		ibcSudo, err := primitive.ParseAddress(genesis.IbcSudoAddress)
		if err != nil {
			return nil, fmt.Errorf("genesis ibc sudo address: %w", err)
		}
		ledger.PutIbcSudoAddress(d, ibcSudo)
	}
	for _, r := range genesis.IbcRelayers {
		relayer, err := primitive.ParseAddress(r)
		if err != nil {
			return nil, fmt.Errorf("genesis ibc relayer: %w", err)
		}
		ledger.AddIbcRelayer(d, relayer)
	}

	for _, assetStr := range genesis.AllowedFeeAssets {
		asset, err := primitive.ParseIbcPrefixed(assetStr)
		if err != nil {
			return nil, fmt.Errorf("genesis allowed fee asset %q: %w", assetStr, err)
		}
		fees.Allow(d, asset)
	}
	for _, f := range genesis.Fees {
		fees.PutComponents(d, f.ActionKind, f.Components)
	}

	for _, acct := range genesis.Accounts {
		addr, err := primitive.ParseAddress(acct.Address)
		if err != nil {
			return nil, fmt.Errorf("genesis account address %q: %w", acct.Address, err)
		}
		for assetStr, amount := range acct.Balances {
			asset, err := primitive.ParseIbcPrefixed(assetStr)
			if err != nil {
				return nil, fmt.Errorf("genesis account %q balance asset %q: %w", acct.Address, assetStr, err)
			}
			ledger.Credit(d, addr, asset, amount)
		}
	}

	if a.upgrades != nil {
		if err := a.upgrades.EnsureHistoricalUpgradesApplied(d); err != nil {
			return nil, fmt.Errorf("upgrades manifest does not match chain history: %w", err)
		}
	}

	_, appHash, err := a.store.Commit(ctx, d)
	if err != nil {
		return nil, fmt.Errorf("committing genesis state: %w", err)
	}
	a.logger.Info("initialized chain", "chain_id", a.chainID, "accounts", len(genesis.Accounts))

	return &abcitypes.ResponseInitChain{
		ConsensusParams: req.ConsensusParams,
		Validators:      req.Validators,
		AppHash:         appHash,
	}, nil
}

// CheckTx decodes and checks a candidate transaction, then tries to admit it
// to the mempool. Recheck (PostCheck, after a block commits) runs the same
// path: RunMutableChecks re-validates against the now-current state before
// Insert is attempted again.
func (a *App) CheckTx(ctx context.Context, req *abcitypes.RequestCheckTx) (*abcitypes.ResponseCheckTx, error) {
	snap := a.store.LatestSnapshot()
	d := snap.NewDelta()

	wire, err := transaction.Unmarshal(req.Tx)
	if err != nil {
		if errors.Is(err, transaction.ErrTooLarge) {
			return &abcitypes.ResponseCheckTx{Code: CodeTooLarge, Log: err.Error()}, nil
		}
		return &abcitypes.ResponseCheckTx{Code: CodeDecodeError, Log: err.Error()}, nil
	}

	checked, err := transaction.New(wire, d)
	if err != nil {
		return &abcitypes.ResponseCheckTx{Code: CodeInvalidTransaction, Log: err.Error()}, nil
	}

	if req.Type == abcitypes.CheckTxType_Recheck {
		if err := checked.RunMutableChecks(d); err != nil {
			a.pool.RemoveInvalid(checked.Signer(), checked.Nonce(), mempool.RemovalNonceStale)
			return &abcitypes.ResponseCheckTx{Code: CodeInvalidTransaction, Log: err.Error()}, nil
		}
	}

	currentNonce := ledger.GetNonce(d, checked.Signer())
	balances := ledger.GetAllBalances(d, checked.Signer())
	cost := mempool.CostMap(checked.TotalCosts(d))

	if err := a.pool.Insert(checked, currentNonce, balances, cost); err != nil {
		return &abcitypes.ResponseCheckTx{Code: CodeMempoolRejected, Log: err.Error()}, nil
	}

	return &abcitypes.ResponseCheckTx{Code: abcitypes.CodeTypeOK}, nil
}

// PrepareProposal drains the mempool in nonce order, executes each
// transaction against a scratch delta, and injects the three commitment
// pseudo-transactions ahead of the included transactions, per §4.6.
func (a *App) PrepareProposal(ctx context.Context, req *abcitypes.RequestPrepareProposal) (*abcitypes.ResponsePrepareProposal, error) {
	d := a.store.LatestSnapshot().NewDelta()

	var (
		included  [][]byte
		subs      []rollupSubmission
		usedBytes int64
	)

	for _, checked := range a.pool.PendingForProposal() {
		raw, err := transaction.Marshal(checked.Raw())
		if err != nil {
			a.pool.RemoveInvalid(checked.Signer(), checked.Nonce(), mempool.RemovalFailedPrepareProposal)
			continue
		}
		if usedBytes+int64(len(raw)) > req.MaxTxBytes {
			break
		}

		if err := checked.RunMutableChecks(d); err != nil {
			a.pool.RemoveInvalid(checked.Signer(), checked.Nonce(), mempool.RemovalFailedPrepareProposal)
			continue
		}
		if err := checked.Execute(ctx, d); err != nil {
			a.pool.RemoveInvalid(checked.Signer(), checked.Nonce(), mempool.RemovalFailedPrepareProposal)
			continue
		}

		subs = append(subs, rollupSubmissionsFrom(checked.Raw().Body.Actions)...)
		included = append(included, raw)
		usedBytes += int64(len(raw))
	}

	txRoot, idsRoot := rollupCommitments(subs)
	depositsRoot := depositsCommitment(ledger.Deposits(d))

	txs := make([][]byte, 0, numCommitments+len(included))
	txs = append(txs,
		encodeCommitment(commitmentRollupTransactions, txRoot),
		encodeCommitment(commitmentRollupIDs, idsRoot),
		encodeCommitment(commitmentDeposits, depositsRoot),
	)
	txs = append(txs, included...)

	return &abcitypes.ResponsePrepareProposal{Txs: txs}, nil
}

// ProcessProposal re-executes a proposed block against a fresh scratch delta
// and verifies the three leading commitment pseudo-transactions bit-for-bit
// against its own recomputation, per §4.6.
func (a *App) ProcessProposal(ctx context.Context, req *abcitypes.RequestProcessProposal) (*abcitypes.ResponseProcessProposal, error) {
	if len(req.Txs) < numCommitments {
		return &abcitypes.ResponseProcessProposal{Status: abcitypes.ResponseProcessProposal_REJECT}, nil
	}
	claimed := req.Txs[:numCommitments]
	rest := req.Txs[numCommitments:]

	d := a.store.LatestSnapshot().NewDelta()
	var subs []rollupSubmission

	for _, raw := range rest {
		wire, err := transaction.Unmarshal(raw)
		if err != nil {
			return &abcitypes.ResponseProcessProposal{Status: abcitypes.ResponseProcessProposal_REJECT}, nil
		}
		checked, err := transaction.New(wire, d)
		if err != nil {
			return &abcitypes.ResponseProcessProposal{Status: abcitypes.ResponseProcessProposal_REJECT}, nil
		}
		if err := checked.Execute(ctx, d); err != nil {
			return &abcitypes.ResponseProcessProposal{Status: abcitypes.ResponseProcessProposal_REJECT}, nil
		}
		subs = append(subs, rollupSubmissionsFrom(wire.Body.Actions)...)
	}

	txRoot, idsRoot := rollupCommitments(subs)
	depositsRoot := depositsCommitment(ledger.Deposits(d))
	want := [][]byte{
		encodeCommitment(commitmentRollupTransactions, txRoot),
		encodeCommitment(commitmentRollupIDs, idsRoot),
		encodeCommitment(commitmentDeposits, depositsRoot),
	}
	for i := range want {
		if !bytesEqual(claimed[i], want[i]) {
			return &abcitypes.ResponseProcessProposal{Status: abcitypes.ResponseProcessProposal_REJECT}, nil
		}
	}

	return &abcitypes.ResponseProcessProposal{Status: abcitypes.ResponseProcessProposal_ACCEPT}, nil
}

func bytesEqual(a, b []byte) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// FinalizeBlock executes the block's real transactions (skipping the
// leading commitment pseudo-transactions), applies validator updates
// proposed via ValidatorUpdate actions, persists a BlockData record, and
// eagerly commits the resulting delta so the response can carry the real
// AppHash. ABCI 2.0 requires FinalizeBlock's response to carry AppHash, but
// internal/state has no way to preview a delta's root hash without
// installing it — state.Store.Commit is the only method that produces one
// — so the backend write happens here rather than in the later Commit call.
func (a *App) FinalizeBlock(ctx context.Context, req *abcitypes.RequestFinalizeBlock) (*abcitypes.ResponseFinalizeBlock, error) {
	d := a.store.LatestSnapshot().NewDelta()

	if a.upgrades != nil {
		if reason := a.upgrades.ShouldShutDown(d); reason != nil {
			return nil, reason
		}
	}

	fees.Reset(d)
	ledger.ResetDeposits(d)

	txResults := make([]*abcitypes.ExecTxResult, 0, len(req.Txs))
	results := make(map[[32]byte]mempool.ExecutionResult, len(req.Txs))
	var subs []rollupSubmission
	var validatorUpdates []abcitypes.ValidatorUpdate

	for _, raw := range req.Txs {
		if _, _, ok := decodeCommitment(raw); ok {
			continue
		}

		wire, err := transaction.Unmarshal(raw)
		if err != nil {
			code := CodeDecodeError
			if errors.Is(err, transaction.ErrTooLarge) {
				code = CodeTooLarge
			}
			txResults = append(txResults, &abcitypes.ExecTxResult{Code: code, Log: err.Error()})
			continue
		}
		checked, err := transaction.New(wire, d)
		if err != nil {
			txResults = append(txResults, &abcitypes.ExecTxResult{Code: CodeInvalidTransaction, Log: err.Error()})
			continue
		}

		var code uint32
		var logMsg string
		if err := checked.Execute(ctx, d); err != nil {
			code = CodeExecutionFailed
			logMsg = err.Error()
		} else {
			subs = append(subs, rollupSubmissionsFrom(wire.Body.Actions)...)
			for _, act := range wire.Body.Actions {
				if vu, ok := act.(actions.ValidatorUpdate); ok {
					validatorUpdates = append(validatorUpdates, abcitypes.ValidatorUpdate{
						PubKeyBytes: vu.PubKey,
						PubKeyType:  "ed25519",
						Power:       vu.Power,
					})
				}
			}
		}

		id := checked.ID()
		txResults = append(txResults, &abcitypes.ExecTxResult{Code: code, Log: logMsg})
		results[id] = mempool.ExecutionResult{BlockHeight: req.Height, Code: code, Log: logMsg}
	}

	a.pool.RecordExecutionResults(results)

	bd := BlockData{
		Height:            req.Height,
		RollupSubmissions: recordsFrom(subs),
		Deposits:          ledger.Deposits(d),
	}
	if err := PutBlockData(d, bd); err != nil {
		return nil, err
	}

	upgrades.PutBlockHeight(d, req.Height)
	upgrades.PutBlockTimestamp(d, req.Time)
	if a.upgrades != nil {
		if _, err := a.upgrades.ExecuteUpgradeIfDue(d, req.Height); err != nil {
			return nil, fmt.Errorf("executing due upgrade at height %d: %w", req.Height, err)
		}
		if _, err := a.upgrades.EndBlock(ctx, d, req.Height); err != nil {
			return nil, fmt.Errorf("running upgrade end_block at height %d: %w", req.Height, err)
		}
	}

	_, appHash, err := a.store.Commit(ctx, d)
	if err != nil {
		return nil, fmt.Errorf("committing block %d: %w", req.Height, err)
	}
	a.logger.Info("finalized block", "chain_id", a.chainID, "height", req.Height, "txs", len(txResults))

	return &abcitypes.ResponseFinalizeBlock{
		TxResults:        txResults,
		ValidatorUpdates: validatorUpdates,
		AppHash:          appHash,
	}, nil
}

// Commit is reduced to a mempool-maintenance hook: the durability boundary
// already happened inside FinalizeBlock (see its doc comment for why).
func (a *App) Commit(ctx context.Context, _ *abcitypes.RequestCommit) (*abcitypes.ResponseCommit, error) {
	reader := mempool.NewDeltaAccountReader(a.store.LatestSnapshot().NewDelta())
	a.pool.RunMaintenance(ctx, reader)
	return &abcitypes.ResponseCommit{}, nil
}
