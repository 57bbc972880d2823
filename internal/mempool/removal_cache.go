// Package mempool implements the application-side mempool described in
// §4.5: per-sender pending/parked transaction queues, nonce/balance-gated
// promotion and demotion, and the bounded caches that keep CometBFT's
// mempool in sync with application-level removals.
package mempool

import (
	"container/list"
	"fmt"
	"time"
)

// TxTTL is how long a transaction may sit in the mempool before it is
// dropped as expired, grounded on the original's TX_TTL constant.
const TxTTL = 240 * time.Second

// MaxParkedTxsPerAccount bounds how many transactions one account may have
// parked awaiting a lower-nonce transaction or additional balance.
const MaxParkedTxsPerAccount = 15

// RemovalCacheSize is the bounded size of the CometBFT removal-signal
// cache. It must be at least as large as CometBFT's own configured mempool
// size (default 50,000) so every transaction CometBFT might ask about is
// still tracked.
const RemovalCacheSize = 50_000

// RemovalReason explains why a transaction was evicted from the
// application mempool, surfaced to CometBFT via CheckTx so it can remove
// the transaction from its own mempool too.
type RemovalReason int

const (
	RemovalExpired RemovalReason = iota
	RemovalNonceStale
	RemovalLowerNonceInvalidated
	RemovalFailedPrepareProposal
)

func (r RemovalReason) String() string {
	switch r {
	case RemovalExpired:
		return fmt.Sprintf("transaction expired after %d seconds", int(TxTTL.Seconds()))
	case RemovalNonceStale:
		return "transaction nonce is lower than current nonce"
	case RemovalLowerNonceInvalidated:
		return "previous transaction was not executed, so this transaction's nonce has become invalid"
	case RemovalFailedPrepareProposal:
		return "failed prepare proposal"
	default:
		return "unknown removal reason"
	}
}

// RemovalCache is a bounded FIFO cache of (txID -> RemovalReason), letting
// the caller answer "should CometBFT drop this transaction" in O(1) while
// never growing past max_size.
type RemovalCache struct {
	maxSize int
	entries map[[32]byte]RemovalReason
	order   *list.List
	nodes   map[[32]byte]*list.Element
}

// NewRemovalCache constructs a cache bounded to maxSize entries.
func NewRemovalCache(maxSize int) *RemovalCache {
	return &RemovalCache{
		maxSize: maxSize,
		entries: make(map[[32]byte]RemovalReason),
		order:   list.New(),
		nodes:   make(map[[32]byte]*list.Element),
	}
}

// Remove returns the cached reason for txID, if present, and evicts it: a
// transaction is only reported to CometBFT once.
func (c *RemovalCache) Remove(txID [32]byte) (RemovalReason, bool) {
	reason, ok := c.entries[txID]
	if !ok {
		return 0, false
	}
	delete(c.entries, txID)
	if node, ok := c.nodes[txID]; ok {
		c.order.Remove(node)
		delete(c.nodes, txID)
	}
	return reason, true
}

// Add records txID with reason, preserving the original reason if txID is
// already cached. If the cache is at capacity, the oldest entry is evicted
// first — this should not happen in practice if RemovalCacheSize is kept
// at or above CometBFT's configured mempool size.
func (c *RemovalCache) Add(txID [32]byte, reason RemovalReason) {
	if _, ok := c.entries[txID]; ok {
		return
	}
	if c.order.Len() >= c.maxSize {
		oldest := c.order.Front()
		if oldest != nil {
			oldestID := oldest.Value.([32]byte)
			c.order.Remove(oldest)
			delete(c.nodes, oldestID)
			delete(c.entries, oldestID)
		}
	}
	c.entries[txID] = reason
	c.nodes[txID] = c.order.PushBack(txID)
}
