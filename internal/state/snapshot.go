package state

// Snapshot is a read-only view over a single committed version of the
// store. Every ABCI step that reads state without mutating the committed
// store (queries, rechecks, and the base a Delta is built from) reads
// through a Snapshot.
type Snapshot struct {
	store   *Store
	version int64
}

// Version returns the committed version this snapshot observes.
func (s *Snapshot) Version() int64 {
	return s.version
}

// RootHash returns the app hash of this version.
func (s *Snapshot) RootHash() []byte {
	return s.store.verifiable.RootHash()
}

// GetRaw reads a verifiable-namespace key.
func (s *Snapshot) GetRaw(key string) ([]byte, bool) {
	return s.store.getRaw(key)
}

// NonVerifiableGetRaw reads a non-verifiable-namespace key.
func (s *Snapshot) NonVerifiableGetRaw(key []byte) ([]byte, bool) {
	return s.store.nonVerifiableGetRaw(key)
}

// PrefixRange returns all verifiable-namespace entries under prefix, in key
// order.
func (s *Snapshot) PrefixRange(prefix string) [][2][]byte {
	return s.store.prefixRange(prefix)
}

// NonVerifiablePrefixRange returns all non-verifiable-namespace entries
// under prefix. Unlike PrefixRange, this bypasses the read cache entirely
// and is served by the backend, matching §4.1.
func (s *Snapshot) NonVerifiablePrefixRange(prefix []byte) [][2][]byte {
	return s.store.nonVerifiablePrefixRange(prefix)
}

// NewDelta builds a buffered mutable layer over this snapshot.
func (s *Snapshot) NewDelta() *Delta {
	return &Delta{
		base:          s,
		baseVersion:   s.version,
		verifiable:    make(map[string]writeOp),
		nonVerifiable: make(map[string]writeOp),
		ephemeral:     make(map[string]any),
	}
}
