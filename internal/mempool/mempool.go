package mempool

import (
	"context"
	"sync"
	"time"

	"github.com/astria-net/sequencer-core/internal/ledger"
	"github.com/astria-net/sequencer-core/internal/primitive"
	"github.com/astria-net/sequencer-core/internal/state"
	"github.com/astria-net/sequencer-core/internal/transaction"
)

// recentExecutionResultsMaxSize bounds the execution-result cache used to
// answer CheckTx recheck queries for transactions run in the previous
// block without re-executing them.
const recentExecutionResultsMaxSize = 10_000

// Mempool is the application-side transaction pool: a pending queue of
// contiguous-nonce, immediately-includable transactions per account, a
// parked queue of transactions blocked on a nonce gap or balance headroom,
// and the bookkeeping CometBFT needs to keep its own mempool in sync
// (§4.5).
type Mempool struct {
	mu      sync.Mutex
	pending *PendingTransactions
	parked  *ParkedTransactions
	removal *RemovalCache
	recent  *RecentExecutionResults
}

// New constructs an empty Mempool.
func New() *Mempool {
	return &Mempool{
		pending: NewPendingTransactions(),
		parked:  NewParkedTransactions(MaxParkedTxsPerAccount),
		removal: NewRemovalCache(RemovalCacheSize),
		recent:  NewRecentExecutionResults(recentExecutionResultsMaxSize),
	}
}

// Insert admits tx into the pool, trying the pending queue first and
// falling back to parked on a nonce gap or insufficient balance headroom.
// A successful pending insertion also promotes any now-contiguous,
// now-affordable parked transactions for the same account.
func (m *Mempool) Insert(tx *transaction.CheckedTransaction, currentNonce primitive.Nonce, balances map[primitive.IbcPrefixed]primitive.Amount, cost CostMap) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	ttx := &timemarkedTx{tx: tx, cost: cost, insertedAt: time.Now()}
	addr := tx.Signer()

	err := m.pending.Add(ttx, currentNonce, balances)
	switch err {
	case nil:
		m.promoteFrom(addr, currentNonce, balances)
		return nil
	case ErrNonceGap, ErrAccountBalanceTooLow:
		return m.parked.Add(ttx, currentNonce)
	default:
		return err
	}
}

// promoteFrom moves every now-eligible parked transaction for addr into
// pending, in nonce order, after a successful pending insertion may have
// made them contiguous and affordable.
func (m *Mempool) promoteFrom(addr primitive.Address, currentNonce primitive.Nonce, balances map[primitive.IbcPrefixed]primitive.Amount) {
	next := m.pending.PendingNonce(addr, currentNonce)
	remaining, ok := m.pending.subtractContainedCosts(addr, balances)
	if !ok {
		return
	}
	promotable := m.parked.FindPromotables(addr, next, remaining)
	for _, ttx := range promotable {
		if err := m.pending.Add(ttx, currentNonce, balances); err != nil {
			// Should not happen: FindPromotables already checked
			// contiguity and affordability. Put it back in parked rather
			// than drop it silently.
			_ = m.parked.Add(ttx, currentNonce)
		}
	}
}

// RemoveInvalid removes addr's pending transaction at fromNonce and every
// transaction held for the same account at a higher nonce (since they can
// no longer execute in sequence), recording reason against the first
// removed transaction and RemovalLowerNonceInvalidated against the rest in
// the CometBFT removal cache.
func (m *Mempool) RemoveInvalid(addr primitive.Address, fromNonce primitive.Nonce, reason RemovalReason) {
	m.mu.Lock()
	defer m.mu.Unlock()

	removed := m.pending.removeFromNonce(addr, fromNonce)
	removed = append(removed, m.parked.clearAccount(addr)...)

	for i, id := range removed {
		r := RemovalLowerNonceInvalidated
		if i == 0 {
			r = reason
		}
		m.removal.Add(id, r)
	}
}

// PopRemoval returns and clears the removal reason CometBFT should be told
// about for txID, if any.
func (m *Mempool) PopRemoval(txID [32]byte) (RemovalReason, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.removal.Remove(txID)
}

// RecordExecutionResults caches the outcome of every transaction executed
// in a just-finalized block, so a subsequent CheckTx recheck for the same
// transaction can answer from cache instead of re-executing.
func (m *Mempool) RecordExecutionResults(results map[[32]byte]ExecutionResult) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.recent.Add(results, time.Now())
}

// RecentExecutionResult looks up a cached execution outcome.
func (m *Mempool) RecentExecutionResult(txID [32]byte) (ExecutionResult, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.recent.Get(txID)
}

// AccountReader supplies the account state RunMaintenance needs: current
// nonce and balances. internal/ledger's free functions satisfy this over a
// state.Snapshot via the adapter in app.go.
type AccountReader interface {
	Nonce(addr primitive.Address) primitive.Nonce
	Balances(addr primitive.Address) map[primitive.IbcPrefixed]primitive.Amount
}

// deltaAccountReader adapts a state.Delta (typically one opened fresh over
// the latest committed snapshot after Commit) to AccountReader.
type deltaAccountReader struct {
	delta *state.Delta
}

// NewDeltaAccountReader builds an AccountReader over d.
func NewDeltaAccountReader(d *state.Delta) AccountReader {
	return deltaAccountReader{delta: d}
}

func (r deltaAccountReader) Nonce(addr primitive.Address) primitive.Nonce {
	return ledger.GetNonce(r.delta, addr)
}

func (r deltaAccountReader) Balances(addr primitive.Address) map[primitive.IbcPrefixed]primitive.Amount {
	return ledger.GetAllBalances(r.delta, addr)
}

// RunMaintenance reconciles the pool against current committed state after
// a block commits: stale/expired transactions are dropped, pending
// transactions that became unaffordable are demoted to parked, and parked
// transactions that became includable are promoted (§4.5).
func (m *Mempool) RunMaintenance(ctx context.Context, reader AccountReader) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := time.Now()
	addresses := map[primitive.Address]struct{}{}
	for _, a := range m.pending.addresses() {
		addresses[a] = struct{}{}
	}
	for _, a := range m.parked.addresses() {
		addresses[a] = struct{}{}
	}

	for addr := range addresses {
		select {
		case <-ctx.Done():
			return
		default:
		}

		currentNonce := reader.Nonce(addr)
		currentBalances := reader.Balances(addr)

		for _, rm := range m.pending.cleanStaleExpired(addr, currentNonce, now) {
			m.removal.Add(rm.id, rm.reason)
		}
		for _, rm := range m.parked.cleanStaleExpired(addr, currentNonce, now) {
			m.removal.Add(rm.id, rm.reason)
		}

		demoted := m.pending.FindDemotables(addr, currentBalances)
		if len(demoted) == 0 {
			next := m.pending.PendingNonce(addr, currentNonce)
			remaining, ok := m.pending.subtractContainedCosts(addr, currentBalances)
			if !ok {
				continue
			}
			promotable := m.parked.FindPromotables(addr, next, remaining)
			for _, ttx := range promotable {
				if err := m.pending.Add(ttx, currentNonce, currentBalances); err != nil {
					_ = m.parked.Add(ttx, currentNonce)
				}
			}
			continue
		}
		for _, ttx := range demoted {
			if err := m.parked.Add(ttx, currentNonce); err != nil {
				// Parked is full for this account: the transaction is lost
				// to the pool and CometBFT must be told to drop it too.
				m.removal.Add(ttx.tx.ID(), RemovalFailedPrepareProposal)
			}
		}
	}
}

// Status reports where txID currently sits, for diagnostics and for
// deciding whether a CheckTx recheck is even necessary.
type Status int

const (
	StatusNotFound Status = iota
	StatusPending
	StatusParked
)

// StatusOf returns the current queue membership of addr's transaction at
// nonce.
func (m *Mempool) StatusOf(addr primitive.Address, nonce primitive.Nonce) Status {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.pending.get(addr, nonce); ok {
		return StatusPending
	}
	if _, ok := m.parked.get(addr, nonce); ok {
		return StatusParked
	}
	return StatusNotFound
}

// PendingForProposal returns every pending transaction across every
// account, in an arbitrary but address-grouped, nonce-ascending order,
// for PrepareProposal to select from under its size budget.
func (m *Mempool) PendingForProposal() []*transaction.CheckedTransaction {
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []*transaction.CheckedTransaction
	for _, txs := range m.pending.byAddress {
		for _, n := range sortedNonces(txs) {
			out = append(out, txs[n].tx)
		}
	}
	return out
}
