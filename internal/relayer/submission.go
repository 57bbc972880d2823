package relayer

import "github.com/astria-net/sequencer-core/internal/da"

// maxSubmissionBytes bounds how much compressed blob data one DA submission
// carries, grounded on the original's celestia blob-size ceiling: beyond
// this the DA node's own mempool rejects the PFB, so the accumulator below
// must stop taking blocks before that point rather than let Submit fail.
const maxSubmissionBytes = 1_900_000

// Submission is a batch of blobs accumulated from one or more consecutive
// blocks, ready to hand to a da.Client in a single call.
type Submission struct {
	Blobs           []da.Blob
	MaxHeight       int64
	UncompressedLen int
	CompressedLen   int
}

// NextSubmission accumulates blocks into a Submission up to
// maxSubmissionBytes, mirroring write/mod.rs's capacity-gated take: the
// writer keeps calling TryAdd as blocks arrive and only Take()s (and
// submits) once capacity is exhausted, the flush interval elapses, or the
// source of new blocks runs dry, so a burst of small blocks rides in one DA transaction instead of one
// each.
type NextSubmission struct {
	pending Submission
}

// TryAdd appends block's blobs to the pending submission if doing so would
// not exceed maxSubmissionBytes. It reports whether the block was added; the
// caller must retry the same block against a fresh accumulator (after
// Take()ing the current one) when it returns false. An empty accumulator
// always takes the block, even one whose blobs alone exceed
// maxSubmissionBytes.
func (n *NextSubmission) TryAdd(block SequencerBlock, filter RollupFilter) (bool, error) {
	metadata, rollupData, err := buildBlobs(block, filter)
	if err != nil {
		return false, err
	}

	metadataBlob, metaUncompressed, err := toBlob(da.DefaultNamespace, metadata)
	if err != nil {
		return false, err
	}
	blobs := []da.Blob{metadataBlob}
	uncompressed := metaUncompressed
	compressed := len(metadataBlob.Data)

	for _, rd := range rollupData {
		ns := da.DeriveNamespace(rd.RollupID)
		blob, rawLen, err := toBlob(ns, rd)
		if err != nil {
			return false, err
		}
		blobs = append(blobs, blob)
		uncompressed += rawLen
		compressed += len(blob.Data)
	}

	if n.pending.CompressedLen+compressed > maxSubmissionBytes && len(n.pending.Blobs) > 0 {
		return false, nil
	}

	n.pending.Blobs = append(n.pending.Blobs, blobs...)
	n.pending.UncompressedLen += uncompressed
	n.pending.CompressedLen += compressed
	if block.Height > n.pending.MaxHeight {
		n.pending.MaxHeight = block.Height
	}
	return true, nil
}

// Empty reports whether any block has been accumulated yet.
func (n *NextSubmission) Empty() bool { return len(n.pending.Blobs) == 0 }

// Take returns the accumulated submission and resets the accumulator.
func (n *NextSubmission) Take() Submission {
	s := n.pending
	n.pending = Submission{}
	return s
}
