// Package composer implements the supplemented bundling/executor
// collaborator named in §1: a thin front door that accepts rollup data
// submissions from rollup-side clients, bundles them into
// byte-budgeted transactions, and submits them to the sequencer through
// the same checked-transaction pipeline every other submitter uses,
// grounded on astria-composer/src/searcher/bundle_factory.go and
// .../executor/mod.rs.
package composer

import (
	"errors"
	"fmt"

	"github.com/astria-net/sequencer-core/internal/actions"
)

// rollupIDLen mirrors ROLLUP_ID_LEN: every bundled submission's estimated
// size includes its rollup id alongside its payload.
const rollupIDLen = 32

// ErrSubmissionTooLarge is returned when a single submission exceeds a
// bundle's configured max size and can never fit regardless of how empty
// the bundle is.
var ErrSubmissionTooLarge = errors.New("rollup data submission exceeds the max bundle size")

// errBundleFull is sizedBundle's internal signal that the current bundle
// must be flushed before the incoming submission can be pushed; it never
// escapes this package.
var errBundleFull = errors.New("bundle does not have enough space left")

// sizedBundle accumulates rollup data submissions up to a byte budget, the
// same accumulation SizedBundle performs in the original.
type sizedBundle struct {
	actions  []actions.RollupDataSubmission
	currSize int
	maxSize  int
}

func newSizedBundle(maxSize int) *sizedBundle {
	return &sizedBundle{maxSize: maxSize}
}

func estimateSize(a actions.RollupDataSubmission) int {
	return len(a.Data) + rollupIDLen
}

func (b *sizedBundle) push(a actions.RollupDataSubmission) error {
	size := estimateSize(a)
	if size > b.maxSize {
		return ErrSubmissionTooLarge
	}
	if b.currSize+size > b.maxSize {
		return errBundleFull
	}
	b.actions = append(b.actions, a)
	b.currSize += size
	return nil
}

// flush replaces b with a fresh empty bundle of the same max size and
// returns the bundle that was replaced.
func (b *sizedBundle) flush() *sizedBundle {
	old := &sizedBundle{actions: b.actions, currSize: b.currSize, maxSize: b.maxSize}
	b.actions = nil
	b.currSize = 0
	return old
}

func (b *sizedBundle) intoActions() []actions.RollupDataSubmission {
	return b.actions
}

// BundleFactory bundles a stream of rollup data submissions into byte-
// budgeted groups, flushing the current bundle into a FIFO finished queue
// whenever an incoming submission no longer fits, grounded on the
// original's BundleFactory.
type BundleFactory struct {
	curr     *sizedBundle
	finished []*sizedBundle
}

// NewBundleFactory constructs a factory enforcing maxBytesPerBundle per
// bundle.
func NewBundleFactory(maxBytesPerBundle int) *BundleFactory {
	return &BundleFactory{curr: newSizedBundle(maxBytesPerBundle)}
}

// TryPush buffers a into the current bundle, flushing it into the
// finished queue first if a would not otherwise fit. It rejects a outright
// if a alone exceeds the configured max bundle size.
func (f *BundleFactory) TryPush(a actions.RollupDataSubmission) error {
	err := f.curr.push(a)
	switch {
	case err == nil:
		return nil
	case errors.Is(err, errBundleFull):
		f.finished = append(f.finished, f.curr.flush())
		if err := f.curr.push(a); err != nil {
			return fmt.Errorf("submission did not fit a freshly flushed bundle: %w", err)
		}
		return nil
	default:
		return err
	}
}

// PopFinished returns the oldest fully-flushed bundle's actions, or nil if
// none are queued yet.
func (f *BundleFactory) PopFinished() []actions.RollupDataSubmission {
	if len(f.finished) == 0 {
		return nil
	}
	next := f.finished[0]
	f.finished = f.finished[1:]
	return next.intoActions()
}

// PopNow returns the oldest finished bundle if one exists, or otherwise
// flushes and returns whatever is currently buffered, so a quiet period
// never leaves recently bundled submissions unsent.
func (f *BundleFactory) PopNow() []actions.RollupDataSubmission {
	if finished := f.PopFinished(); finished != nil {
		return finished
	}
	return f.curr.flush().intoActions()
}
