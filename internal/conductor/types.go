// Package conductor implements the block stream described in §4.11: it
// subscribes to the sequencer's new-block height stream, fetches blocks
// with a bounded concurrent fetch-ahead window, and forwards them
// downstream in strictly ascending, gap-free order, grounded on
// astria-conductor/src/sequencer.rs's Reader/BlocksFromHeightStream.
package conductor

import (
	"context"
	"time"
)

// Block is the conductor's view of one sequencer block: enough for a
// downstream rollup executor to apply it. The consensus engine is the
// source of the hash; Data carries the opaque encoded block payload the
// executor knows how to decode.
type Block struct {
	Height int64
	Hash   [32]byte
	Data   []byte
}

// SequencerClient is the stream's view of the consensus RPC: a height
// subscription plus a per-height block fetch. A real implementation dials
// the same cometbft RPC the rest of this tree uses; tests substitute a fake.
type SequencerClient interface {
	// SubscribeLatestHeight returns a channel of newly observed sequencer
	// heights. The channel closes if the underlying subscription ends;
	// the caller is responsible for resubscribing.
	SubscribeLatestHeight(ctx context.Context) (<-chan int64, error)
	// FetchBlock fetches the block at height. ctx carries the per-request
	// timeout; a context.DeadlineExceeded error is treated as a retryable
	// timeout rather than a fatal stream error.
	FetchBlock(ctx context.Context, height int64) (Block, error)
}

// Config tunes the stream's concurrency and backpressure behavior.
type Config struct {
	// MaxInFlight bounds the number of concurrently in-progress height
	// fetches.
	MaxInFlight int
	// MaxAhead bounds how far beyond the next expected height the stream
	// will schedule fetches, to prevent unbounded memory growth.
	MaxAhead int64
	// FetchTimeout bounds a single height fetch; a timed-out fetch is
	// rescheduled rather than treated as a fatal error.
	FetchTimeout time.Duration
	// ResubscribeMaxAttempts bounds how many times the stream retries a
	// failed (re)subscription before giving up.
	ResubscribeMaxAttempts uint64
}

// DefaultConfig returns §4.11's example tuning: 20 in-flight fetches, a
// 128-height lookahead window, a 10s per-fetch timeout, and at most 10
// resubscription attempts.
func DefaultConfig() Config {
	return Config{
		MaxInFlight:            20,
		MaxAhead:               128,
		FetchTimeout:           10 * time.Second,
		ResubscribeMaxAttempts: 10,
	}
}

func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.MaxInFlight <= 0 {
		c.MaxInFlight = d.MaxInFlight
	}
	if c.MaxAhead <= 0 {
		c.MaxAhead = d.MaxAhead
	}
	if c.FetchTimeout <= 0 {
		c.FetchTimeout = d.FetchTimeout
	}
	if c.ResubscribeMaxAttempts == 0 {
		c.ResubscribeMaxAttempts = d.ResubscribeMaxAttempts
	}
	return c
}
