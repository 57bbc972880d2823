package app

import (
	"encoding/json"
	"sort"

	cmtmerkle "github.com/cometbft/cometbft/crypto/merkle"

	"github.com/astria-net/sequencer-core/internal/actions"
	"github.com/astria-net/sequencer-core/internal/ledger"
)

// commitmentKind tags one of the three pseudo-transactions PrepareProposal
// injects ahead of the real transaction list, so ProcessProposal and
// FinalizeBlock can recognize and strip them before executing the block's
// actual transactions (§4.6: "the proposal includes a rollup-transactions
// commitment and a rollup-IDs commitment ... a deposits commitment").
type commitmentKind byte

const (
	commitmentRollupTransactions commitmentKind = iota + 1
	commitmentRollupIDs
	commitmentDeposits
)

// numCommitments is how many commitment pseudo-transactions are injected at
// the front of every proposal, in commitmentKind order.
const numCommitments = 3

func encodeCommitment(kind commitmentKind, root []byte) []byte {
	out := make([]byte, 1+len(root))
	out[0] = byte(kind)
	copy(out[1:], root)
	return out
}

func decodeCommitment(raw []byte) (commitmentKind, []byte, bool) {
	if len(raw) < 1 {
		return 0, nil, false
	}
	kind := commitmentKind(raw[0])
	if kind < commitmentRollupTransactions || kind > commitmentDeposits {
		return 0, nil, false
	}
	return kind, raw[1:], true
}

// rollupSubmission is one RollupDataSubmission action's payload, collected
// in execution order while a block's transactions run.
type rollupSubmission struct {
	rollupID [32]byte
	data     []byte
}

// rollupCommitments computes the two Merkle roots PrepareProposal/
// ProcessProposal must agree on bit-for-bit: one over each rollup's
// concatenated submissions (grouped and ordered by rollup id), and one over
// the sorted set of distinct rollup ids present in the block.
func rollupCommitments(subs []rollupSubmission) (transactionsRoot, idsRoot []byte) {
	grouped := make(map[[32]byte][][]byte)
	var ids [][32]byte
	for _, s := range subs {
		if _, seen := grouped[s.rollupID]; !seen {
			ids = append(ids, s.rollupID)
		}
		grouped[s.rollupID] = append(grouped[s.rollupID], s.data)
	}
	sort.Slice(ids, func(i, j int) bool {
		return string(ids[i][:]) < string(ids[j][:])
	})

	idLeaves := make([][]byte, len(ids))
	txLeaves := make([][]byte, len(ids))
	for i, id := range ids {
		idLeaves[i] = append([]byte(nil), id[:]...)
		txLeaves[i] = cmtmerkle.HashFromByteSlices(grouped[id])
	}
	return cmtmerkle.HashFromByteSlices(txLeaves), cmtmerkle.HashFromByteSlices(idLeaves)
}

// depositsCommitment roots the deposits minted by BridgeLock actions
// executed while building the block, in emission order, so the root is
// sensitive to both contents and order.
func depositsCommitment(deposits []ledger.Deposit) []byte {
	leaves := make([][]byte, len(deposits))
	for i, d := range deposits {
		// Deposit fields all carry their own JSON codecs (Address, Amount,
		// IbcPrefixed); a marshal error here would mean one of those codecs
		// is broken, not a data problem, so it is not worth surfacing to
		// the caller as a block-rejection reason.
		leaves[i], _ = json.Marshal(d)
	}
	return cmtmerkle.HashFromByteSlices(leaves)
}

// rollupSubmissionsFrom extracts the RollupDataSubmission actions from one
// transaction's action list, in order.
func rollupSubmissionsFrom(txActions []any) []rollupSubmission {
	var out []rollupSubmission
	for _, a := range txActions {
		if rds, ok := a.(actions.RollupDataSubmission); ok {
			out = append(out, rollupSubmission{rollupID: rds.RollupID, data: rds.Data})
		}
	}
	return out
}
