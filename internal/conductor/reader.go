package conductor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/cenkalti/backoff/v4"
)

// Reader drives the block stream: one goroutine per in-flight fetch, a
// BlockCache reordering completed fetches, and a single pending downstream
// send at a time, grounded on astria-conductor/src/sequencer.rs's Reader.
type Reader struct {
	client SequencerClient
	cfg    Config
	logger *slog.Logger
}

// NewReader constructs a Reader. cfg's zero-valued fields take
// DefaultConfig's values.
func NewReader(client SequencerClient, cfg Config, logger *slog.Logger) *Reader {
	if logger == nil {
		logger = slog.Default()
	}
	return &Reader{client: client, cfg: cfg.withDefaults(), logger: logger}
}

type fetchResult struct {
	height   int64
	block    Block
	err      error
	timedOut bool
}

// Run streams blocks starting at nextExpectedHeight into out, strictly in
// ascending order with no duplicates, until ctx is cancelled. heightUpdates
// carries the downstream executor's soft-commit watermark (§4.11): a
// received height raises the stream's watermark and drops now-obsolete
// cached blocks, mirroring next_expected_soft_height_if_changed(). Run
// returns nil on clean cancellation and a non-nil error on an unrecoverable
// fetch or subscription failure.
func (r *Reader) Run(ctx context.Context, nextExpectedHeight int64, heightUpdates <-chan int64, out chan<- Block) error {
	subCh, err := r.subscribeWithRetry(ctx)
	if err != nil {
		return fmt.Errorf("subscribing to new heights: %w", err)
	}

	var latestHeight int64
	select {
	case h, ok := <-subCh:
		if !ok {
			return errors.New("new-height subscription closed immediately")
		}
		latestHeight = h
	case <-ctx.Done():
		return nil
	}

	cache := NewBlockCache(nextExpectedHeight)
	nextExpected := nextExpectedHeight
	var greatestRequested int64
	haveGreatest := false
	pending := make(map[int64]struct{})
	retry := make(map[int64]struct{})
	sem := make(chan struct{}, r.cfg.MaxInFlight)
	results := make(chan fetchResult, r.cfg.MaxInFlight)

	var scheduledBlock *Block
	var sendDone chan error

	schedule := func() {
		for h := range retry {
			select {
			case sem <- struct{}{}:
			default:
				return
			}
			delete(retry, h)
			pending[h] = struct{}{}
			go r.fetchOne(ctx, h, results, sem)
		}
		for {
			next := nextExpected
			if haveGreatest {
				next = greatestRequested + 1
			}
			if next >= nextExpected+r.cfg.MaxAhead {
				return
			}
			if next > latestHeight {
				return
			}
			select {
			case sem <- struct{}{}:
			default:
				return
			}
			pending[next] = struct{}{}
			greatestRequested = next
			haveGreatest = true
			go r.fetchOne(ctx, next, results, sem)
		}
	}

	for {
		schedule()

		if sendDone == nil && scheduledBlock == nil {
			if block, ok := cache.NextBlock(); ok {
				scheduledBlock = &block
			}
		}
		if sendDone == nil && scheduledBlock != nil {
			select {
			case out <- *scheduledBlock:
				scheduledBlock = nil
			default:
				b := *scheduledBlock
				sendDone = make(chan error, 1)
				go func() {
					select {
					case out <- b:
						sendDone <- nil
					case <-ctx.Done():
						sendDone <- ctx.Err()
					}
				}()
			}
		}

		select {
		case <-ctx.Done():
			return nil

		case sendErr := <-sendDone:
			sendDone = nil
			if sendErr != nil {
				return nil
			}
			scheduledBlock = nil

		case res := <-results:
			delete(pending, res.height)
			if res.err != nil {
				if res.timedOut {
					r.logger.Warn("block fetch timed out; rescheduling", "height", res.height)
					retry[res.height] = struct{}{}
					continue
				}
				return fmt.Errorf("fetching block at height %d: %w", res.height, res.err)
			}
			if err := cache.Insert(res.block); err != nil {
				r.logger.Warn("dropping fetched block below current watermark", "height", res.height, "error", err)
			}

		case h, ok := <-subCh:
			if !ok {
				r.logger.Warn("new-height subscription terminated; resubscribing")
				newCh, err := r.subscribeWithRetry(ctx)
				if err != nil {
					return fmt.Errorf("resubscribing to new heights: %w", err)
				}
				subCh = newCh
				continue
			}
			if h < latestHeight {
				r.logger.Info("observed latest sequencer height older than previous; ignoring it", "height", h)
				continue
			}
			latestHeight = h

		case h, ok := <-heightUpdates:
			if !ok {
				heightUpdates = nil
				continue
			}
			if h < nextExpected {
				r.logger.Info("next expected height older than previous; ignoring it", "height", h)
				continue
			}
			nextExpected = h
			cache.DropObsolete(h)
		}
	}
}

func (r *Reader) fetchOne(ctx context.Context, height int64, results chan<- fetchResult, sem chan struct{}) {
	defer func() { <-sem }()

	fetchCtx, cancel := context.WithTimeout(ctx, r.cfg.FetchTimeout)
	defer cancel()

	block, err := r.client.FetchBlock(fetchCtx, height)
	timedOut := errors.Is(err, context.DeadlineExceeded)

	select {
	case results <- fetchResult{height: height, block: block, err: err, timedOut: timedOut}:
	case <-ctx.Done():
	}
}

// subscribeWithRetry reconnects the new-height subscription with
// exponential backoff, bounded at cfg.ResubscribeMaxAttempts per §4.11.
func (r *Reader) subscribeWithRetry(ctx context.Context) (<-chan int64, error) {
	var ch <-chan int64
	op := func() error {
		var err error
		ch, err = r.client.SubscribeLatestHeight(ctx)
		if err != nil {
			r.logger.Warn("failed to subscribe to new sequencer heights; retrying", "error", err)
		}
		return err
	}
	eb := backoff.NewExponentialBackOff()
	eb.MaxElapsedTime = 0
	bo := backoff.WithContext(backoff.WithMaxRetries(eb, r.cfg.ResubscribeMaxAttempts), ctx)
	if err := backoff.Retry(op, bo); err != nil {
		return nil, fmt.Errorf("giving up after %d attempts: %w", r.cfg.ResubscribeMaxAttempts, err)
	}
	return ch, nil
}
