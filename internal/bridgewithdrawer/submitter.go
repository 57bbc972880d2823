package bridgewithdrawer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/cenkalti/backoff/v4"

	"github.com/astria-net/sequencer-core/internal/primitive"
	"github.com/astria-net/sequencer-core/internal/transaction"
)

// Batch is one unit of work handed to the submitter: every withdrawal
// action observed on the rollup up to rollupHeight, bundled into a single
// sequencer transaction.
type Batch struct {
	Actions      []any
	RollupHeight uint64
}

// Status is the submitter's last-known progress, published after every
// successful submission so an operator or metrics exporter can observe it.
type Status struct {
	Ready                     bool
	LastRollupHeightSubmitted uint64
	LastSequencerHeight       int64
	LastSequencerTxHash       [32]byte
}

// Config configures a Submitter's startup checks (§4.9).
type Config struct {
	ChainID          string
	FeeAsset         primitive.IbcPrefixed
	MinimumBalance   primitive.Amount
	MaxNonceAttempts uint64
}

// Submitter is the long-running task described in §4.9: it holds a single
// in-flight transaction at a time and aborts entirely on any rejection,
// since a lost batch must be re-derived from the rollup rather than
// resubmitted blindly.
type Submitter struct {
	cfg    Config
	client ConsensusClient
	signer Signer
	logger *slog.Logger

	status Status
}

// NewSubmitter constructs a Submitter. Run must be called to drive it.
func NewSubmitter(cfg Config, client ConsensusClient, signer Signer, logger *slog.Logger) *Submitter {
	if logger == nil {
		logger = slog.Default()
	}
	return &Submitter{cfg: cfg, client: client, signer: signer, logger: logger}
}

// Status returns the submitter's last-published status snapshot.
func (s *Submitter) Status() Status { return s.status }

// Startup performs the preflight checks described in §4.9: the configured
// chain id and fee asset must match what the consensus RPC reports, and
// the signer's balance of that asset must meet the configured minimum.
// On success it marks the submitter ready.
func (s *Submitter) Startup(ctx context.Context) error {
	var chainID string
	op := func() error {
		var err error
		chainID, err = s.client.ChainID(ctx)
		if err != nil {
			s.logger.Warn("failed to fetch chain id from consensus rpc; retrying", "error", err)
		}
		return err
	}
	bo := backoff.WithContext(backoff.NewExponentialBackOff(), ctx)
	if err := backoff.Retry(op, bo); err != nil {
		return fmt.Errorf("fetching chain id: %w", err)
	}
	if chainID != s.cfg.ChainID {
		return fmt.Errorf("configured chain id %q does not match consensus rpc's chain id %q", s.cfg.ChainID, chainID)
	}

	allowed, err := s.client.FeeAssetAllowed(ctx, s.cfg.FeeAsset)
	if err != nil {
		return fmt.Errorf("checking fee asset allow-list: %w", err)
	}
	if !allowed {
		return fmt.Errorf("configured fee asset %s is not an allowed fee asset", s.cfg.FeeAsset)
	}

	balance, err := s.client.Balance(ctx, s.signer.Address(), s.cfg.FeeAsset)
	if err != nil {
		return fmt.Errorf("checking signer balance: %w", err)
	}
	if !balance.GTE(s.cfg.MinimumBalance) {
		return fmt.Errorf("signer %s balance %s of %s is below the configured minimum %s",
			s.signer.Address(), balance, s.cfg.FeeAsset, s.cfg.MinimumBalance)
	}

	s.status.Ready = true
	s.logger.Info("submitter ready", "signer", s.signer.Address(), "chain_id", chainID)
	return nil
}

// abortError marks a batch-ending failure that Run must stop on: any
// non-zero ABCI code means the batch was rejected and is permanently lost
// (it must be re-derived from the rollup), so there is nothing left for
// this task to retry.
type abortError struct {
	err error
}

func (a *abortError) Error() string { return a.err.Error() }
func (a *abortError) Unwrap() error { return a.err }

// Run drains batches until the channel closes or ctx is cancelled,
// submitting each in turn. It returns nil on a clean shutdown and a
// non-nil error the instant any batch is rejected by the chain — the
// caller must not call Run again afterward; the submitter's invariant
// (single in-flight transaction, sequential batches) does not survive a
// rejected transaction.
func (s *Submitter) Run(ctx context.Context, batches <-chan Batch) error {
	for {
		select {
		case <-ctx.Done():
			s.logger.Info("submitter shutting down: draining without accepting new batches")
			return nil
		case batch, ok := <-batches:
			if !ok {
				return nil
			}
			if err := s.submit(ctx, batch); err != nil {
				var ae *abortError
				if errors.As(err, &ae) {
					s.logger.Error("submitter aborting: batch rejected by chain", "rollup_height", batch.RollupHeight, "error", ae.err)
					return ae.err
				}
				return fmt.Errorf("submitting batch at rollup height %d: %w", batch.RollupHeight, err)
			}
		}
	}
}

func (s *Submitter) submit(ctx context.Context, batch Batch) error {
	nonce, err := s.fetchNonceWithRetry(ctx)
	if err != nil {
		return fmt.Errorf("fetching nonce: %w", err)
	}

	body := transaction.Body{
		Params:  transaction.Params{ChainID: s.cfg.ChainID, Nonce: nonce},
		Actions: batch.Actions,
	}
	tx, err := s.signer.Sign(ctx, body)
	if err != nil {
		return fmt.Errorf("signing transaction: %w", err)
	}

	result, err := s.client.BroadcastTxCommit(ctx, tx)
	if err != nil {
		return fmt.Errorf("broadcasting transaction: %w", err)
	}
	if result.CheckTxCode != 0 {
		return &abortError{err: fmt.Errorf("check_tx rejected transaction: code %d: %s", result.CheckTxCode, result.CheckTxLog)}
	}
	if result.TxResultCode != 0 {
		return &abortError{err: fmt.Errorf("tx_result rejected transaction: code %d: %s", result.TxResultCode, result.TxResultLog)}
	}

	s.status.LastRollupHeightSubmitted = batch.RollupHeight
	s.status.LastSequencerHeight = result.Height
	s.status.LastSequencerTxHash = result.TxHash
	s.logger.Info("submitted batch",
		"rollup_height", batch.RollupHeight,
		"sequencer_height", result.Height,
		"tx_hash", fmt.Sprintf("%x", result.TxHash))
	return nil
}

// fetchNonceWithRetry implements §4.9 step 1: retry with exponential
// backoff to a hard cap, since a transient RPC failure here must not abort
// the batch the way a rejected transaction does.
func (s *Submitter) fetchNonceWithRetry(ctx context.Context) (primitive.Nonce, error) {
	maxAttempts := s.cfg.MaxNonceAttempts
	if maxAttempts == 0 {
		maxAttempts = 1024
	}

	eb := backoff.NewExponentialBackOff()
	eb.MaxElapsedTime = 0
	bo := backoff.WithContext(backoff.WithMaxRetries(eb, maxAttempts), ctx)

	var nonce primitive.Nonce
	op := func() error {
		var err error
		nonce, err = s.client.Nonce(ctx, s.signer.Address())
		if err != nil {
			s.logger.Warn("failed to fetch nonce; retrying", "error", err)
		}
		return err
	}
	if err := backoff.Retry(op, bo); err != nil {
		return 0, err
	}
	return nonce, nil
}
