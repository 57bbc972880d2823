// Package relayer implements the DA-layer writer described in §4.10: it
// converts finalized sequencer blocks into brotli-compressed blobs and
// submits them to the data-availability layer with durable Prepared/
// Finalized submission tracking, grounded on
// astria-sequencer-relayer/src/relayer/write/mod.rs.
package relayer

import (
	"time"

	"github.com/astria-net/sequencer-core/internal/app"
	"github.com/astria-net/sequencer-core/internal/ledger"
)

// RollupSubmission is one rollup's opaque data included in a block, the
// relayer's own copy of app.RollupSubmissionRecord so this package does not
// need to depend on app's internal naming beyond the accessor it exports.
type RollupSubmission struct {
	RollupID [32]byte
	Data     []byte
}

// SequencerBlock is the relayer's view of one finalized block: enough to
// build both the metadata blob and the per-rollup data blobs described in
// §6. The consensus engine supplies BlockHash, Time and ChainID (they are not part of
// the application's own state machine), and internal/app's persisted
// BlockData record supplies everything else.
type SequencerBlock struct {
	Height            int64
	BlockHash         [32]byte
	Time              time.Time
	ChainID           string
	RollupSubmissions []RollupSubmission
	Deposits          []ledger.Deposit
}

// FromBlockData builds a SequencerBlock from a finalized block's consensus
// metadata and the application's own persisted BlockData record for that
// height.
func FromBlockData(blockHash [32]byte, blockTime time.Time, chainID string, bd app.BlockData) SequencerBlock {
	subs := make([]RollupSubmission, len(bd.RollupSubmissions))
	for i, r := range bd.RollupSubmissions {
		subs[i] = RollupSubmission{RollupID: r.RollupID, Data: r.Data}
	}
	return SequencerBlock{
		Height:            bd.Height,
		BlockHash:         blockHash,
		Time:              blockTime,
		ChainID:           chainID,
		RollupSubmissions: subs,
		Deposits:          bd.Deposits,
	}
}
