// Package state implements the storage façade described in spec §4.1: a
// versioned key-value store with a verifiable (string-keyed) namespace and a
// non-verifiable (byte-keyed) namespace, served through snapshots and
// buffered deltas so that PrepareProposal/ProcessProposal/FinalizeBlock can
// build on scratch state without ever touching the committed store directly.
package state

import (
	"bytes"
	"context"
	"fmt"
	"sort"
	"sync"

	lru "github.com/hashicorp/golang-lru"
)

// Backend is the key-value engine the façade is built on. The only
// implementation in this package is the in-memory MemoryBackend, which
// cmd/sequencer wires for both the verifiable and the non-verifiable
// namespace.
type Backend interface {
	// Get returns the value at key, or (nil, false) if absent.
	Get(key []byte) ([]byte, bool)
	// Set writes key to value, or deletes it if value is nil.
	Set(key []byte, value []byte)
	// Iterate calls fn for every key with the given prefix, in ascending
	// key order, until fn returns false.
	Iterate(prefix []byte, fn func(key, value []byte) bool)
	// RootHash returns a content hash of the current contents, standing in
	// for a real Merkle root in this implementation.
	RootHash() []byte
}

const (
	verifiableCacheSize    = 10_000
	nonVerifiableCacheSize = 1_000
)

// Store is the top-level storage façade. It owns the durable backends and
// hands out read-only Snapshots and buffered StateDeltas.
type Store struct {
	mu            sync.RWMutex
	verifiable    Backend
	nonVerifiable Backend
	version       int64
	verCache      *lru.Cache
	nonVerCache   *lru.Cache
}

// NewStore constructs a façade over the given backends.
func NewStore(verifiable, nonVerifiable Backend) (*Store, error) {
	vc, err := lru.New(verifiableCacheSize)
	if err != nil {
		return nil, fmt.Errorf("constructing verifiable read cache: %w", err)
	}
	nvc, err := lru.New(nonVerifiableCacheSize)
	if err != nil {
		return nil, fmt.Errorf("constructing non-verifiable read cache: %w", err)
	}
	return &Store{
		verifiable:    verifiable,
		nonVerifiable: nonVerifiable,
		verCache:      vc,
		nonVerCache:   nvc,
	}, nil
}

// LatestSnapshot returns a read-only view of the most recently committed
// version.
func (s *Store) LatestSnapshot() *Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return &Snapshot{store: s, version: s.version}
}

// Snapshot returns a read-only view of a specific historical version. This
// implementation only retains the latest version's backend contents, so any
// version other than the current one returns an error; a production backend
// would keep a bounded history of versions.
func (s *Store) Snapshot(version int64) (*Snapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if version != s.version {
		return nil, fmt.Errorf("version %d is not retained (latest is %d)", version, s.version)
	}
	return &Snapshot{store: s, version: s.version}, nil
}

// Commit atomically installs a delta's writes into the backends and returns
// the new version and root hash.
func (s *Store) Commit(ctx context.Context, d *Delta) (int64, []byte, error) {
	select {
	case <-ctx.Done():
		return 0, nil, ctx.Err()
	default:
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if d.baseVersion != s.version {
		return 0, nil, fmt.Errorf("delta based on stale version %d, store is at %d", d.baseVersion, s.version)
	}

	for k, op := range d.verifiable {
		if op.isDelete {
			s.verifiable.Set([]byte(k), nil)
		} else {
			s.verifiable.Set([]byte(k), op.value)
		}
		s.verCache.Remove(k)
	}
	for k, op := range d.nonVerifiable {
		if op.isDelete {
			s.nonVerifiable.Set([]byte(k), nil)
		} else {
			s.nonVerifiable.Set([]byte(k), op.value)
		}
		s.nonVerCache.Remove(k)
	}

	s.version++
	return s.version, s.verifiable.RootHash(), nil
}

func (s *Store) getRaw(key string) ([]byte, bool) {
	if v, ok := s.verCache.Get(key); ok {
		if v == nil {
			return nil, false
		}
		return v.([]byte), true
	}
	val, ok := s.verifiable.Get([]byte(key))
	if ok {
		s.verCache.Add(key, val)
	} else {
		s.verCache.Add(key, nil)
	}
	return val, ok
}

func (s *Store) nonVerifiableGetRaw(key []byte) ([]byte, bool) {
	sk := string(key)
	if v, ok := s.nonVerCache.Get(sk); ok {
		if v == nil {
			return nil, false
		}
		return v.([]byte), true
	}
	val, ok := s.nonVerifiable.Get(key)
	if ok {
		s.nonVerCache.Add(sk, val)
	} else {
		s.nonVerCache.Add(sk, nil)
	}
	return val, ok
}

func (s *Store) prefixRange(prefix string) [][2][]byte {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out [][2][]byte
	s.verifiable.Iterate([]byte(prefix), func(k, v []byte) bool {
		out = append(out, [2][]byte{append([]byte(nil), k...), append([]byte(nil), v...)})
		return true
	})
	sort.Slice(out, func(i, j int) bool { return bytes.Compare(out[i][0], out[j][0]) < 0 })
	return out
}

func (s *Store) nonVerifiablePrefixRange(prefix []byte) [][2][]byte {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out [][2][]byte
	// Prefix streams for the non-verifiable namespace are served directly by
	// the backend, per §4.1: "the cache is skipped there."
	s.nonVerifiable.Iterate(prefix, func(k, v []byte) bool {
		out = append(out, [2][]byte{append([]byte(nil), k...), append([]byte(nil), v...)})
		return true
	})
	return out
}
