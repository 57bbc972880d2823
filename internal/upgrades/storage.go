package upgrades

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"time"

	"github.com/astria-net/sequencer-core/internal/state"
)

func changeInfoKey(upgradeName, changeName string) string {
	return "upgrades/changes/" + upgradeName + "/" + changeName
}

// PutChangeInfo records upgradeName/changeName's content hash, so a later
// boot's EnsureHistoricalUpgradesApplied can detect a mismatched manifest.
func PutChangeInfo(d *state.Delta, upgradeName string, c Change) {
	d.PutRaw(changeInfoKey(upgradeName, c.Name), []byte(c.Hash()))
}

// GetChangeInfo returns the hash recorded for upgradeName/changeName, if
// any change of that name was ever applied.
func GetChangeInfo(d *state.Delta, upgradeName, changeName string) (string, bool) {
	raw, ok := d.GetRaw(changeInfoKey(upgradeName, changeName))
	if !ok {
		return "", false
	}
	return string(raw), true
}

const consensusParamsKey = "upgrades/consensus_params"

// PutConsensusParams persists the current consensus params as JSON, so a
// later upgrade's EndBlock can read them back without depending on
// CometBFT's own RPC (§4.7: "lookup prefers local state").
func PutConsensusParams(d *state.Delta, params json.RawMessage) {
	d.PutRaw(consensusParamsKey, params)
}

// GetConsensusParams returns the last-persisted consensus params, if any.
func GetConsensusParams(d *state.Delta) (json.RawMessage, bool) {
	raw, ok := d.GetRaw(consensusParamsKey)
	if !ok {
		return nil, false
	}
	return json.RawMessage(raw), true
}

const (
	blockHeightKey    = "upgrades/block_height"
	blockTimestampKey = "upgrades/block_timestamp"
)

// PutBlockHeight records the just-finalized block's height, letting the
// upgrades handler compute "next block height" without a dependency on
// internal/app.
func PutBlockHeight(d *state.Delta, height int64) {
	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], uint64(height))
	d.PutRaw(blockHeightKey, buf[:])
}

// GetBlockHeight returns the last-finalized block's height, or 0 if none
// has been finalized yet (the state immediately after InitChain).
func GetBlockHeight(d *state.Delta) int64 {
	raw, ok := d.GetRaw(blockHeightKey)
	if !ok || len(raw) != 8 {
		return 0
	}
	return int64(binary.BigEndian.Uint64(raw))
}

// PutBlockTimestamp records the just-finalized block's time.
func PutBlockTimestamp(d *state.Delta, t time.Time) {
	raw, err := t.UTC().MarshalBinary()
	if err != nil {
		panic(fmt.Sprintf("marshaling block timestamp: %v", err))
	}
	d.PutRaw(blockTimestampKey, raw)
}

// GetBlockTimestamp returns the last-finalized block's time.
func GetBlockTimestamp(d *state.Delta) (time.Time, bool) {
	raw, ok := d.GetRaw(blockTimestampKey)
	if !ok {
		return time.Time{}, false
	}
	var t time.Time
	if err := t.UnmarshalBinary(raw); err != nil {
		return time.Time{}, false
	}
	return t, true
}
