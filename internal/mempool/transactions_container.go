package mempool

import (
	"sort"
	"time"

	"github.com/astria-net/sequencer-core/internal/primitive"
	"github.com/astria-net/sequencer-core/internal/transaction"
)

// CostMap is the per-asset total cost (fees plus any transfer amounts) a
// transaction will draw from its signer's balances.
type CostMap map[primitive.IbcPrefixed]primitive.Amount

// timemarkedTx pairs a checked transaction with the cost it was inserted
// with and the time it was inserted, for TTL expiry.
type timemarkedTx struct {
	tx         *transaction.CheckedTransaction
	cost       CostMap
	insertedAt time.Time
}

// InsertionError enumerates why Insert into a container was refused.
type InsertionError int

const (
	ErrAlreadyPresent InsertionError = iota
	ErrNonceTooLow
	ErrNonceTaken
	ErrNonceGap
	ErrAccountBalanceTooLow
	ErrAccountSizeLimit
	ErrParkedSizeLimit
)

func (e InsertionError) Error() string {
	switch e {
	case ErrAlreadyPresent:
		return "transaction already present in mempool"
	case ErrNonceTooLow:
		return "transaction nonce is lower than current account nonce"
	case ErrNonceTaken:
		return "another transaction with this nonce is already held"
	case ErrNonceGap:
		return "transaction nonce leaves a gap from the pending sequence"
	case ErrAccountBalanceTooLow:
		return "account balance is too low to cover transaction and already-held costs"
	case ErrAccountSizeLimit:
		return "account has reached its parked transaction limit"
	case ErrParkedSizeLimit:
		return "parked queue is full"
	default:
		return "unknown insertion error"
	}
}

// container holds one account's worth of ordered, by-nonce transactions. It
// is the shared engine behind both PendingTransactions (contiguous-from-
// current-nonce, unbounded per account) and ParkedTransactions (gaps
// allowed, capped per account).
type container struct {
	byAddress map[primitive.Address]map[primitive.Nonce]*timemarkedTx
}

func newContainer() container {
	return container{byAddress: make(map[primitive.Address]map[primitive.Nonce]*timemarkedTx)}
}

func (c *container) accountCount(addr primitive.Address) int {
	return len(c.byAddress[addr])
}

func (c *container) get(addr primitive.Address, nonce primitive.Nonce) (*timemarkedTx, bool) {
	m, ok := c.byAddress[addr]
	if !ok {
		return nil, false
	}
	ttx, ok := m[nonce]
	return ttx, ok
}

func (c *container) insert(addr primitive.Address, ttx *timemarkedTx) {
	m, ok := c.byAddress[addr]
	if !ok {
		m = make(map[primitive.Nonce]*timemarkedTx)
		c.byAddress[addr] = m
	}
	m[ttx.tx.Nonce()] = ttx
}

func (c *container) deleteOne(addr primitive.Address, nonce primitive.Nonce) {
	m, ok := c.byAddress[addr]
	if !ok {
		return
	}
	delete(m, nonce)
	if len(m) == 0 {
		delete(c.byAddress, addr)
	}
}

// clearAccount removes every transaction held for addr and returns their
// IDs, in ascending nonce order.
func (c *container) clearAccount(addr primitive.Address) [][32]byte {
	m, ok := c.byAddress[addr]
	if !ok {
		return nil
	}
	nonces := sortedNonces(m)
	ids := make([][32]byte, 0, len(nonces))
	for _, n := range nonces {
		ids = append(ids, m[n].tx.ID())
	}
	delete(c.byAddress, addr)
	return ids
}

// removeFromNonce removes nonce and every higher nonce held for addr
// (used when one transaction in a sequence is invalidated, since every
// transaction after it can no longer execute in order), returning the
// removed IDs in ascending nonce order.
func (c *container) removeFromNonce(addr primitive.Address, from primitive.Nonce) [][32]byte {
	m, ok := c.byAddress[addr]
	if !ok {
		return nil
	}
	var removed [][32]byte
	for _, n := range sortedNonces(m) {
		if n >= from {
			removed = append(removed, m[n].tx.ID())
			delete(m, n)
		}
	}
	if len(m) == 0 {
		delete(c.byAddress, addr)
	}
	return removed
}

// addresses returns every address with at least one held transaction.
func (c *container) addresses() []primitive.Address {
	out := make([]primitive.Address, 0, len(c.byAddress))
	for addr := range c.byAddress {
		out = append(out, addr)
	}
	return out
}

func sortedNonces(m map[primitive.Nonce]*timemarkedTx) []primitive.Nonce {
	out := make([]primitive.Nonce, 0, len(m))
	for n := range m {
		out = append(out, n)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// cleanStaleExpired drops every transaction for addr whose nonce is below
// currentNonce (stale) or whose insertedAt is older than TxTTL (expired),
// returning (txID, reason) pairs for each removal.
func (c *container) cleanStaleExpired(addr primitive.Address, currentNonce primitive.Nonce, now time.Time) []removal {
	m, ok := c.byAddress[addr]
	if !ok {
		return nil
	}
	var out []removal
	for _, n := range sortedNonces(m) {
		ttx := m[n]
		switch {
		case n < currentNonce:
			out = append(out, removal{id: ttx.tx.ID(), reason: RemovalNonceStale})
			delete(m, n)
		case now.Sub(ttx.insertedAt) > TxTTL:
			out = append(out, removal{id: ttx.tx.ID(), reason: RemovalExpired})
			delete(m, n)
		}
	}
	if len(m) == 0 {
		delete(c.byAddress, addr)
	}
	return out
}

type removal struct {
	id     [32]byte
	reason RemovalReason
}

// affordable reports whether ttx's cost fits within balances, independent
// of any other transaction's claim on those same balances.
func affordable(ttx *timemarkedTx, balances map[primitive.IbcPrefixed]primitive.Amount) bool {
	for asset, amount := range ttx.cost {
		if !balances[asset].GTE(amount) {
			return false
		}
	}
	return true
}

// subtractCost reduces balances by ttx's cost in place, used to compute the
// remaining headroom after accounting for transactions ahead of it in the
// pending sequence.
func subtractCost(balances map[primitive.IbcPrefixed]primitive.Amount, ttx *timemarkedTx) (map[primitive.IbcPrefixed]primitive.Amount, bool) {
	out := make(map[primitive.IbcPrefixed]primitive.Amount, len(balances))
	for k, v := range balances {
		out[k] = v
	}
	for asset, amount := range ttx.cost {
		next, err := out[asset].CheckedSub(amount)
		if err != nil {
			return nil, false
		}
		out[asset] = next
	}
	return out, true
}

// PendingTransactions holds, per account, a contiguous run of transactions
// starting at the account's current nonce: every transaction here is
// immediately includable in the next block, subject to balance headroom
// from the transactions ahead of it.
type PendingTransactions struct {
	container
}

// NewPendingTransactions constructs an empty pending container.
func NewPendingTransactions() *PendingTransactions {
	return &PendingTransactions{container: newContainer()}
}

// Add inserts ttx if it extends the account's contiguous pending sequence
// (nonce == currentNonce + len(existing)) and the account can afford its
// cost on top of every transaction already pending ahead of it.
func (p *PendingTransactions) Add(ttx *timemarkedTx, currentNonce primitive.Nonce, balances map[primitive.IbcPrefixed]primitive.Amount) error {
	addr := ttx.tx.Signer()
	if _, exists := p.get(addr, ttx.tx.Nonce()); exists {
		return ErrAlreadyPresent
	}
	if ttx.tx.Nonce() < currentNonce {
		return ErrNonceTooLow
	}
	expectedNext := currentNonce + primitive.Nonce(p.accountCount(addr))
	if ttx.tx.Nonce() != expectedNext {
		return ErrNonceGap
	}
	remaining, ok := p.subtractContainedCosts(addr, balances)
	if !ok {
		return ErrAccountBalanceTooLow
	}
	if !affordable(ttx, remaining) {
		return ErrAccountBalanceTooLow
	}
	p.insert(addr, ttx)
	return nil
}

// subtractContainedCosts returns balances reduced by every transaction
// already held pending for addr, used both to gate new insertions and to
// compute headroom available for promoting a parked transaction.
func (p *PendingTransactions) subtractContainedCosts(addr primitive.Address, balances map[primitive.IbcPrefixed]primitive.Amount) (map[primitive.IbcPrefixed]primitive.Amount, bool) {
	remaining := balances
	m, ok := p.byAddress[addr]
	if !ok {
		return remaining, true
	}
	for _, n := range sortedNonces(m) {
		var ok2 bool
		remaining, ok2 = subtractCost(remaining, m[n])
		if !ok2 {
			return nil, false
		}
	}
	return remaining, true
}

// PendingNonce returns one past the highest contiguous nonce held for addr,
// or currentNonce if nothing is pending.
func (p *PendingTransactions) PendingNonce(addr primitive.Address, currentNonce primitive.Nonce) primitive.Nonce {
	return currentNonce + primitive.Nonce(p.accountCount(addr))
}

// FindDemotables returns every pending transaction for addr that is no
// longer affordable given balances, in ascending nonce order — once one
// transaction in the sequence is unaffordable, every transaction after it
// must demote too, since it can no longer execute contiguously.
func (p *PendingTransactions) FindDemotables(addr primitive.Address, balances map[primitive.IbcPrefixed]primitive.Amount) []*timemarkedTx {
	m, ok := p.byAddress[addr]
	if !ok {
		return nil
	}
	remaining := balances
	var demote []*timemarkedTx
	for _, n := range sortedNonces(m) {
		ttx := m[n]
		if demote != nil {
			demote = append(demote, ttx)
			continue
		}
		next, ok := subtractCost(remaining, ttx)
		if !ok {
			demote = append(demote, ttx)
			continue
		}
		remaining = next
	}
	for _, ttx := range demote {
		p.deleteOne(addr, ttx.tx.Nonce())
	}
	return demote
}

// ParkedTransactions holds, per account, transactions whose nonce is ahead
// of what is currently includable — either because of a nonce gap or
// insufficient balance headroom — capped at MaxParkedTxsPerAccount per
// account.
type ParkedTransactions struct {
	container
	maxPerAccount int
}

// NewParkedTransactions constructs an empty parked container.
func NewParkedTransactions(maxPerAccount int) *ParkedTransactions {
	return &ParkedTransactions{container: newContainer(), maxPerAccount: maxPerAccount}
}

// Add inserts ttx into the parked set for its signer, enforcing the
// per-account cap and rejecting nonces already below the account's current
// nonce (which can never become includable).
func (pk *ParkedTransactions) Add(ttx *timemarkedTx, currentNonce primitive.Nonce) error {
	addr := ttx.tx.Signer()
	if _, exists := pk.get(addr, ttx.tx.Nonce()); exists {
		return ErrAlreadyPresent
	}
	if ttx.tx.Nonce() < currentNonce {
		return ErrNonceTooLow
	}
	if pk.accountCount(addr) >= pk.maxPerAccount {
		return ErrAccountSizeLimit
	}
	pk.insert(addr, ttx)
	return nil
}

// FindPromotables returns every parked transaction for addr that is both
// contiguous with nextNonce and affordable given remainingBalances,
// consuming balance headroom and nonce continuity as it walks forward, and
// removes them from the parked set.
func (pk *ParkedTransactions) FindPromotables(addr primitive.Address, nextNonce primitive.Nonce, remainingBalances map[primitive.IbcPrefixed]primitive.Amount) []*timemarkedTx {
	m, ok := pk.byAddress[addr]
	if !ok {
		return nil
	}
	remaining := remainingBalances
	want := nextNonce
	var promote []*timemarkedTx
	for {
		ttx, ok := m[want]
		if !ok {
			break
		}
		next, ok := subtractCost(remaining, ttx)
		if !ok {
			break
		}
		remaining = next
		promote = append(promote, ttx)
		want++
	}
	for _, ttx := range promote {
		pk.deleteOne(addr, ttx.tx.Nonce())
	}
	return promote
}
