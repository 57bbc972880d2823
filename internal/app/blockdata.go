package app

import (
	"encoding/binary"
	"encoding/json"
	"fmt"

	"github.com/astria-net/sequencer-core/internal/ledger"
	"github.com/astria-net/sequencer-core/internal/state"
)

// RollupSubmissionRecord is the storable form of a rollupSubmission, used
// only for the persisted block-data record (the in-memory commitment math
// works off rollupSubmission directly).
type RollupSubmissionRecord struct {
	RollupID [32]byte `json:"rollup_id"`
	Data     []byte   `json:"data"`
}

// BlockData is the non-verifiable record FinalizeBlock writes per height,
// grounded on §4.6: "writes a block-data record containing rollup
// submissions and deposits." App.Query serves it at "blocks/<height>"
// (query.go), which is how cmd/relayer reads it to build SequencerBlocks and
// DA blobs.
type BlockData struct {
	Height            int64                    `json:"height"`
	RollupSubmissions []RollupSubmissionRecord `json:"rollup_submissions"`
	Deposits          []ledger.Deposit         `json:"deposits"`
}

func blockDataKey(height int64) []byte {
	key := make([]byte, len("blocks/")+8)
	copy(key, "blocks/")
	binary.BigEndian.PutUint64(key[len("blocks/"):], uint64(height))
	return key
}

// PutBlockData persists bd to the non-verifiable namespace, keyed by height.
func PutBlockData(d *state.Delta, bd BlockData) error {
	raw, err := json.Marshal(bd)
	if err != nil {
		return fmt.Errorf("encoding block data for height %d: %w", bd.Height, err)
	}
	d.NonVerifiablePutRaw(blockDataKey(bd.Height), raw)
	return nil
}

// GetBlockData reads back the block-data record for height, if any.
func GetBlockData(d *state.Delta, height int64) (BlockData, bool) {
	raw, ok := d.NonVerifiableGetRaw(blockDataKey(height))
	if !ok {
		return BlockData{}, false
	}
	var bd BlockData
	if err := json.Unmarshal(raw, &bd); err != nil {
		return BlockData{}, false
	}
	return bd, true
}

func recordsFrom(subs []rollupSubmission) []RollupSubmissionRecord {
	out := make([]RollupSubmissionRecord, len(subs))
	for i, s := range subs {
		out[i] = RollupSubmissionRecord{RollupID: s.rollupID, Data: s.data}
	}
	return out
}
