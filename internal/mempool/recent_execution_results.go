package mempool

import (
	"container/list"
	"time"
)

// recentResultsRetention bounds how long an execution result is kept if the
// cache is not already full, grounded on the original's RETENTION_DURATION.
const recentResultsRetention = 60 * time.Second

// ExecutionResult is the cached outcome of executing one transaction,
// looked up by CheckTx (recheck mode) to avoid re-executing a transaction
// that was already run as part of the previous block.
type ExecutionResult struct {
	BlockHeight int64
	Code        uint32
	Log         string
}

type timestampedID struct {
	id   [32]byte
	at   time.Time
}

// RecentExecutionResults caches execution outcomes for recently included
// transactions, bounded in both size and age: O(1) lookup, insertion, and
// oldest-eviction.
type RecentExecutionResults struct {
	maxSize int
	order   *list.List
	nodes   map[[32]byte]*list.Element
	results map[[32]byte]ExecutionResult
}

// NewRecentExecutionResults constructs a cache bounded to maxSize entries.
func NewRecentExecutionResults(maxSize int) *RecentExecutionResults {
	return &RecentExecutionResults{
		maxSize: maxSize,
		order:   list.New(),
		nodes:   make(map[[32]byte]*list.Element),
		results: make(map[[32]byte]ExecutionResult),
	}
}

// Get looks up the execution result for txID.
func (r *RecentExecutionResults) Get(txID [32]byte) (ExecutionResult, bool) {
	res, ok := r.results[txID]
	return res, ok
}

// Len returns the number of cached results.
func (r *RecentExecutionResults) Len() int { return len(r.results) }

// Add records results for a batch of transactions executed at blockHeight,
// cleaning stale entries first and then evicting the oldest entries if the
// cache would otherwise exceed maxSize. A txID already present is left
// untouched (this indicates duplicate execution and is not expected).
func (r *RecentExecutionResults) Add(results map[[32]byte]ExecutionResult, now time.Time) {
	r.cleanStale(now)
	for id, res := range results {
		for r.order.Len() >= r.maxSize {
			oldest := r.order.Front()
			if oldest == nil {
				return
			}
			oldestID := oldest.Value.(timestampedID).id
			r.order.Remove(oldest)
			delete(r.nodes, oldestID)
			delete(r.results, oldestID)
		}
		if _, exists := r.results[id]; exists {
			continue
		}
		r.results[id] = res
		r.nodes[id] = r.order.PushBack(timestampedID{id: id, at: now})
	}
}

// cleanStale drops every entry older than recentResultsRetention, relying
// on list order (oldest at the front) to stop at the first non-stale entry.
func (r *RecentExecutionResults) cleanStale(now time.Time) {
	for {
		front := r.order.Front()
		if front == nil {
			return
		}
		tid := front.Value.(timestampedID)
		if now.Sub(tid.at) <= recentResultsRetention {
			return
		}
		r.order.Remove(front)
		delete(r.nodes, tid.id)
		delete(r.results, tid.id)
	}
}
