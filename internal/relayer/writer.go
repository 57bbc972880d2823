// Package relayer implements the DA-layer writer described in §4.10.
package relayer

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/astria-net/sequencer-core/internal/da"
)

// retryMaxInterval caps exponential backoff between DA submission attempts.
// §7 marks DA submission retries as unbounded in attempt count but this
// still bounds the interval, grounded on write/mod.rs's own celestia
// submission retry config.
const retryMaxInterval = 12 * time.Second

// flushInterval bounds how long a partially-filled accumulator waits for
// more blocks before being submitted anyway, so a quiet rollup does not
// leave recently finalized blocks unwritten to the DA layer indefinitely.
const flushInterval = 2 * time.Second

var (
	metricSequencerHeight = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "relayer",
		Name:      "sequencer_submission_height",
		Help:      "Highest sequencer block height included in the last confirmed DA submission.",
	})
	metricCelestiaHeight = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "relayer",
		Name:      "celestia_submission_height",
		Help:      "DA layer height the last confirmed submission landed at.",
	})
	metricCompressionRatio = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "relayer",
		Name:      "blob_compression_ratio",
		Help:      "Uncompressed over compressed byte size of the last confirmed submission.",
	})
	metricBlobsPerSubmission = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "relayer",
		Name:      "blobs_per_submission",
		Help:      "Number of blobs included in the last confirmed submission.",
	})
)

// Writer is the long-running task described in §4.10: it consumes finalized
// blocks from the conductor/application side, accumulates them into
// capacity-bounded submissions, and writes each to the data-availability
// layer with durable Prepared/Finalized tracking, grounded on
// astria-sequencer-relayer/src/relayer/write/mod.rs's BlobSubmitter.
type Writer struct {
	client da.Client
	state  *SubmissionState
	filter RollupFilter
	logger *slog.Logger
}

// NewWriter constructs a Writer. filter may be nil, defaulting to IncludeAll.
func NewWriter(client da.Client, state *SubmissionState, filter RollupFilter, logger *slog.Logger) *Writer {
	if filter == nil {
		filter = IncludeAll
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Writer{client: client, state: state, filter: filter, logger: logger}
}

type submitOutcome struct {
	sub    Submission
	height uint64
	err    error
}

// Run is the select loop from write/mod.rs translated into Go channel
// operations: a next-submission accumulator fills from blocks as they
// arrive, a single submission is ever in flight at a time, and the loop
// exits cleanly on ctx cancellation or the blocks channel closing once any
// in-flight submission has finished.
func (w *Writer) Run(ctx context.Context, blocks <-chan SequencerBlock) error {
	var acc NextSubmission
	var inFlight chan submitOutcome
	var pending *SequencerBlock
	blocksOpen := true
	blockCh := blocks

	flush := time.NewTicker(flushInterval)
	defer flush.Stop()

	for {
		if pending != nil && inFlight == nil {
			added, err := acc.TryAdd(*pending, w.filter)
			if err != nil {
				return fmt.Errorf("accumulating block %d: %w", pending.Height, err)
			}
			if added {
				pending = nil
			}
		}

		if inFlight == nil && !acc.Empty() && (pending != nil || !blocksOpen) {
			sub := acc.Take()
			inFlight = make(chan submitOutcome, 1)
			go w.submitWithRetry(ctx, sub, inFlight)
		}

		if inFlight == nil && acc.Empty() && pending == nil && !blocksOpen {
			return nil
		}

		select {
		case <-ctx.Done():
			return nil

		case <-flush.C:
			if inFlight == nil && !acc.Empty() {
				sub := acc.Take()
				inFlight = make(chan submitOutcome, 1)
				go w.submitWithRetry(ctx, sub, inFlight)
			}

		case outcome := <-inFlight:
			inFlight = nil
			if outcome.err != nil {
				return fmt.Errorf("submitting blocks up to height %d: %w", outcome.sub.MaxHeight, outcome.err)
			}
			if err := w.state.MarkFinalized(outcome.sub.MaxHeight, outcome.height); err != nil {
				return fmt.Errorf("persisting finalized submission state: %w", err)
			}
			w.observe(outcome)

		case block, ok := <-blockCh:
			if !ok {
				blocksOpen = false
				blockCh = nil
				continue
			}
			if pending != nil {
				// Still waiting for the prior capacity-exceeded block to
				// be accepted; this should not happen since pending only
				// survives until the next loop iteration, but keep the
				// channel read from so the sender cannot deadlock.
				continue
			}
			added, err := acc.TryAdd(block, w.filter)
			if err != nil {
				return fmt.Errorf("accumulating block %d: %w", block.Height, err)
			}
			if !added {
				b := block
				pending = &b
			}
		}
	}
}

// submitWithRetry marks the submission Prepared, then retries the DA client
// call with unbounded attempts and exponential backoff per §7's DA
// submission policy, since giving up would leave already-finalized
// sequencer blocks permanently unwritten to the DA layer.
func (w *Writer) submitWithRetry(ctx context.Context, sub Submission, result chan<- submitOutcome) {
	if err := w.state.MarkPrepared(sub.MaxHeight); err != nil {
		result <- submitOutcome{sub: sub, err: fmt.Errorf("persisting prepared submission state: %w", err)}
		return
	}

	eb := backoff.NewExponentialBackOff()
	eb.MaxInterval = retryMaxInterval
	eb.MaxElapsedTime = 0
	bo := backoff.WithContext(eb, ctx)

	var height uint64
	op := func() error {
		var err error
		height, err = w.client.Submit(ctx, sub.Blobs)
		if err != nil {
			w.logger.Warn("DA submission failed; retrying", "max_height", sub.MaxHeight, "error", err)
		}
		return err
	}
	if err := backoff.Retry(op, bo); err != nil {
		result <- submitOutcome{sub: sub, err: err}
		return
	}
	result <- submitOutcome{sub: sub, height: height}
}

func (w *Writer) observe(outcome submitOutcome) {
	metricSequencerHeight.Set(float64(outcome.sub.MaxHeight))
	metricCelestiaHeight.Set(float64(outcome.height))
	metricBlobsPerSubmission.Set(float64(len(outcome.sub.Blobs)))
	if outcome.sub.CompressedLen > 0 {
		metricCompressionRatio.Set(float64(outcome.sub.UncompressedLen) / float64(outcome.sub.CompressedLen))
	}
	w.logger.Info("DA submission confirmed",
		"max_sequencer_height", outcome.sub.MaxHeight,
		"celestia_height", outcome.height,
		"blobs", len(outcome.sub.Blobs),
		"compressed_bytes", outcome.sub.CompressedLen)
}
