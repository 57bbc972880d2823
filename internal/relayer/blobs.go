package relayer

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"time"

	"github.com/andybalholm/brotli"
	cmtmerkle "github.com/cometbft/cometbft/crypto/merkle"

	"github.com/astria-net/sequencer-core/internal/da"
)

// RollupFilter reports whether a rollup id's data should be submitted to
// the DA layer at all, mirroring the original's IncludeRollup predicate
// (e.g. an allow-list of rollups this relayer is paid to serve).
type RollupFilter func(rollupID [32]byte) bool

// IncludeAll is the default RollupFilter: every rollup present in a block
// gets a data blob.
func IncludeAll(rollupID [32]byte) bool { return true }

// SubmittedMetadata is the metadata blob's content, written once per block
// into da.DefaultNamespace.
type SubmittedMetadata struct {
	BlockHash               [32]byte         `json:"block_hash"`
	ChainID                 string           `json:"chain_id"`
	Height                  int64            `json:"height"`
	Time                    time.Time        `json:"time"`
	RollupIDs               [][32]byte       `json:"rollup_ids"`
	RollupTransactionsProof *cmtmerkle.Proof `json:"rollup_transactions_proof"`
	RollupIDsProof          *cmtmerkle.Proof `json:"rollup_ids_proof"`
}

// SubmittedRollupData is one rollup's data blob, written into that
// rollup's own namespace.
type SubmittedRollupData struct {
	SequencerBlockHash [32]byte         `json:"sequencer_block_hash"`
	RollupID           [32]byte         `json:"rollup_id"`
	Transactions       [][]byte         `json:"transactions"`
	Proof              *cmtmerkle.Proof `json:"proof"`
}

// groupedRollupData holds one block's submissions grouped by rollup id,
// sorted for determinism, the same construction app.rollupCommitments uses
// so the proofs built here verify against the roots the chain committed to.
type groupedRollupData struct {
	ids  [][32]byte
	subs map[[32]byte][][]byte
}

func groupByRollup(subs []RollupSubmission) groupedRollupData {
	g := groupedRollupData{subs: make(map[[32]byte][][]byte)}
	for _, s := range subs {
		if _, seen := g.subs[s.RollupID]; !seen {
			g.ids = append(g.ids, s.RollupID)
		}
		g.subs[s.RollupID] = append(g.subs[s.RollupID], s.Data)
	}
	sort.Slice(g.ids, func(i, j int) bool {
		return string(g.ids[i][:]) < string(g.ids[j][:])
	})
	return g
}

// buildBlobs converts one finalized block into its metadata blob and one
// data blob per rollup id that passes filter, each still uncompressed JSON
// at this point (compression happens in toBlob).
func buildBlobs(block SequencerBlock, filter RollupFilter) (SubmittedMetadata, []SubmittedRollupData, error) {
	grouped := groupByRollup(block.RollupSubmissions)

	idLeaves := make([][]byte, len(grouped.ids))
	txLeaves := make([][]byte, len(grouped.ids))
	for i, id := range grouped.ids {
		idLeaves[i] = append([]byte(nil), id[:]...)
		txLeaves[i] = cmtmerkle.HashFromByteSlices(grouped.subs[id])
	}
	_, txProofs := cmtmerkle.ProofsFromByteSlices(txLeaves)
	_, idProofs := cmtmerkle.ProofsFromByteSlices(idLeaves)

	metadata := SubmittedMetadata{
		BlockHash: block.BlockHash,
		ChainID:   block.ChainID,
		Height:    block.Height,
		Time:      block.Time,
		RollupIDs: grouped.ids,
	}
	if len(grouped.ids) > 0 {
		metadata.RollupTransactionsProof = txProofs[0]
		metadata.RollupIDsProof = idProofs[0]
	}

	var rollupData []SubmittedRollupData
	for i, id := range grouped.ids {
		if !filter(id) {
			continue
		}
		rollupData = append(rollupData, SubmittedRollupData{
			SequencerBlockHash: block.BlockHash,
			RollupID:           id,
			Transactions:       grouped.subs[id],
			Proof:              txProofs[i],
		})
	}
	return metadata, rollupData, nil
}

// toBlob JSON-encodes v (no protobuf schema is generated in this tree, the
// same substitution internal/transaction's wire codec makes) then
// brotli-compresses it, matching §6's "all blobs are ... brotli-compressed."
func toBlob(namespace da.Namespace, v any) (da.Blob, int, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return da.Blob{}, 0, fmt.Errorf("encoding blob payload: %w", err)
	}
	var buf bytes.Buffer
	w := brotli.NewWriter(&buf)
	if _, err := w.Write(raw); err != nil {
		return da.Blob{}, 0, fmt.Errorf("compressing blob payload: %w", err)
	}
	if err := w.Close(); err != nil {
		return da.Blob{}, 0, fmt.Errorf("flushing compressed blob payload: %w", err)
	}
	return da.Blob{Namespace: namespace, Data: buf.Bytes()}, len(raw), nil
}

// fromBlob reverses toBlob, used by tests to check round-tripping.
func fromBlob(blob da.Blob, v any) error {
	r := brotli.NewReader(bytes.NewReader(blob.Data))
	raw, err := io.ReadAll(r)
	if err != nil {
		return fmt.Errorf("decompressing blob payload: %w", err)
	}
	return json.Unmarshal(raw, v)
}
