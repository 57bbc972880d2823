package composer

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/astria-net/sequencer-core/internal/actions"
	"github.com/astria-net/sequencer-core/internal/bridgewithdrawer"
	"github.com/astria-net/sequencer-core/internal/transaction"
)

// Config tunes an Executor's bundling and submission cadence.
type Config struct {
	// ChainID is stamped into every submitted transaction's params.
	ChainID string
	// MaxBytesPerBundle bounds a single bundle's total submission size,
	// matching the original's max_bytes_per_bundle.
	MaxBytesPerBundle int
	// BlockTime bounds how long a partially-filled bundle waits before
	// being flushed and submitted anyway, so a bundle still reaches the
	// chain at least once per block even during a quiet period.
	BlockTime time.Duration
}

func (c Config) withDefaults() Config {
	if c.MaxBytesPerBundle <= 0 {
		c.MaxBytesPerBundle = 256 * 1024
	}
	if c.BlockTime <= 0 {
		c.BlockTime = 2 * time.Second
	}
	return c
}

// Executor is the composer's sequencer-facing half: it receives rollup
// data submissions over a channel, bundles them with a BundleFactory, and
// submits each finished bundle as a single signed transaction, reusing
// [[internal/bridgewithdrawer]]'s ConsensusClient/Signer abstractions since
// nonce management, signing, and broadcast-and-wait are identical concerns,
// grounded on astria-composer/src/searcher/executor/mod.rs's Executor.
type Executor struct {
	cfg    Config
	client bridgewithdrawer.ConsensusClient
	signer bridgewithdrawer.Signer
	logger *slog.Logger
}

// NewExecutor constructs an Executor.
func NewExecutor(cfg Config, client bridgewithdrawer.ConsensusClient, signer bridgewithdrawer.Signer, logger *slog.Logger) *Executor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Executor{cfg: cfg.withDefaults(), client: client, signer: signer, logger: logger}
}

// Run bundles submissions received on incoming and submits each finished
// bundle to the sequencer, flushing on a BlockTime ticker so a
// partially-filled bundle is never held indefinitely. It returns nil when
// incoming closes and any remaining buffered submissions have been
// flushed, or on ctx cancellation.
func (e *Executor) Run(ctx context.Context, incoming <-chan actions.RollupDataSubmission) error {
	factory := NewBundleFactory(e.cfg.MaxBytesPerBundle)

	ticker := time.NewTicker(e.cfg.BlockTime)
	defer ticker.Stop()

	for {
		for {
			bundle := factory.PopFinished()
			if bundle == nil {
				break
			}
			if err := e.submit(ctx, bundle); err != nil {
				return err
			}
		}

		select {
		case <-ctx.Done():
			return nil

		case <-ticker.C:
			if bundle := factory.PopNow(); len(bundle) > 0 {
				if err := e.submit(ctx, bundle); err != nil {
					return err
				}
			}

		case a, ok := <-incoming:
			if !ok {
				if bundle := factory.PopNow(); len(bundle) > 0 {
					return e.submit(ctx, bundle)
				}
				return nil
			}
			if err := factory.TryPush(a); err != nil {
				e.logger.Warn("dropping rollup data submission that does not fit any bundle", "rollup_id", a.RollupID, "error", err)
			}
		}
	}
}

func (e *Executor) submit(ctx context.Context, bundle []actions.RollupDataSubmission) error {
	nonce, err := e.client.Nonce(ctx, e.signer.Address())
	if err != nil {
		return fmt.Errorf("fetching nonce: %w", err)
	}

	raw := make([]any, len(bundle))
	for i, a := range bundle {
		raw[i] = a
	}
	body := transaction.Body{
		Params:  transaction.Params{ChainID: e.cfg.ChainID, Nonce: nonce},
		Actions: raw,
	}
	tx, err := e.signer.Sign(ctx, body)
	if err != nil {
		return fmt.Errorf("signing bundle: %w", err)
	}

	result, err := e.client.BroadcastTxCommit(ctx, tx)
	if err != nil {
		return fmt.Errorf("broadcasting bundle: %w", err)
	}
	if !result.Succeeded() {
		e.logger.Warn("bundle rejected by chain",
			"check_tx_code", result.CheckTxCode, "check_tx_log", result.CheckTxLog,
			"tx_result_code", result.TxResultCode, "tx_result_log", result.TxResultLog)
		return nil
	}
	e.logger.Info("submitted bundle", "actions", len(bundle), "sequencer_height", result.Height)
	return nil
}
