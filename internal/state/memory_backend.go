package state

import (
	"bytes"
	"crypto/sha256"
	"sort"
	"sync"
)

// MemoryBackend is a simple in-memory Backend with no durability. Tests use
// it, and cmd/sequencer and cmd/relayer wire it for their state; nothing it
// holds survives a restart.
type MemoryBackend struct {
	mu   sync.RWMutex
	data map[string][]byte
}

// NewMemoryBackend constructs an empty in-memory backend.
func NewMemoryBackend() *MemoryBackend {
	return &MemoryBackend{data: make(map[string][]byte)}
}

func (m *MemoryBackend) Get(key []byte) ([]byte, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.data[string(key)]
	return v, ok
}

func (m *MemoryBackend) Set(key []byte, value []byte) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if value == nil {
		delete(m.data, string(key))
		return
	}
	m.data[string(key)] = value
}

func (m *MemoryBackend) Iterate(prefix []byte, fn func(key, value []byte) bool) {
	m.mu.RLock()
	keys := make([]string, 0, len(m.data))
	for k := range m.data {
		if bytes.HasPrefix([]byte(k), prefix) {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	snapshot := make(map[string][]byte, len(keys))
	for _, k := range keys {
		snapshot[k] = m.data[k]
	}
	m.mu.RUnlock()

	for _, k := range keys {
		if !fn([]byte(k), snapshot[k]) {
			return
		}
	}
}

// RootHash hashes the sorted key/value contents. This is a deterministic
// content digest standing in for a real Merkle root (an IAVL tree root in
// production); it satisfies the "changes iff contents change" property
// tests rely on without requiring an actual proof tree.
func (m *MemoryBackend) RootHash() []byte {
	m.mu.RLock()
	defer m.mu.RUnlock()

	keys := make([]string, 0, len(m.data))
	for k := range m.data {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	h := sha256.New()
	for _, k := range keys {
		h.Write([]byte(k))
		h.Write([]byte{0})
		h.Write(m.data[k])
		h.Write([]byte{0})
	}
	return h.Sum(nil)
}
