package state

// writeOp records a single pending mutation: either a value to write, or a
// tombstone marking the key deleted. Keeping this as a tagged struct (rather
// than overloading a nil/empty []byte) lets a legitimately empty value be
// staged without being confused with a delete.
type writeOp struct {
	value    []byte
	isDelete bool
}

// Delta is a copy-on-write mutable layer over a Snapshot. Reads fall through
// to pending writes first and the base snapshot second. Nothing is visible
// to other deltas or to the committed store until the owning Store commits
// it. PrepareProposal, ProcessProposal, and FinalizeBlock each build and
// execute against their own scratch Delta (§5); only Commit ever merges one
// into the backing store.
type Delta struct {
	base        *Snapshot
	baseVersion int64

	verifiable    map[string]writeOp
	nonVerifiable map[string]writeOp

	// ephemeral holds per-block/per-tx working state (the current
	// TransactionContext, the running BlockFees accumulator) as typed
	// object slots. It is never part of the verifiable store and is
	// dropped, not merged, on Commit (§4.1, §9).
	ephemeral map[string]any
}

// GetRaw reads a verifiable-namespace key, preferring this delta's own
// pending writes over the base snapshot.
func (d *Delta) GetRaw(key string) ([]byte, bool) {
	if op, ok := d.verifiable[key]; ok {
		if op.isDelete {
			return nil, false
		}
		return op.value, true
	}
	return d.base.GetRaw(key)
}

// PutRaw stages a write to a verifiable-namespace key.
func (d *Delta) PutRaw(key string, value []byte) {
	d.verifiable[key] = writeOp{value: value}
}

// DeleteRaw stages a delete of a verifiable-namespace key.
func (d *Delta) DeleteRaw(key string) {
	d.verifiable[key] = writeOp{isDelete: true}
}

// NonVerifiableGetRaw reads a non-verifiable-namespace key.
func (d *Delta) NonVerifiableGetRaw(key []byte) ([]byte, bool) {
	sk := string(key)
	if op, ok := d.nonVerifiable[sk]; ok {
		if op.isDelete {
			return nil, false
		}
		return op.value, true
	}
	return d.base.NonVerifiableGetRaw(key)
}

// NonVerifiablePutRaw stages a write to a non-verifiable-namespace key.
func (d *Delta) NonVerifiablePutRaw(key []byte, value []byte) {
	d.nonVerifiable[string(key)] = writeOp{value: value}
}

// NonVerifiableDeleteRaw stages a delete of a non-verifiable-namespace key.
func (d *Delta) NonVerifiableDeleteRaw(key []byte) {
	d.nonVerifiable[string(key)] = writeOp{isDelete: true}
}

// PrefixRange merges pending writes over the base snapshot's prefix range.
// Deleted keys are suppressed and newly-written keys not yet committed are
// included.
func (d *Delta) PrefixRange(prefix string) [][2][]byte {
	merged := map[string][]byte{}
	for _, kv := range d.base.PrefixRange(prefix) {
		merged[string(kv[0])] = kv[1]
	}
	for k, op := range d.verifiable {
		if len(k) < len(prefix) || k[:len(prefix)] != prefix {
			continue
		}
		if op.isDelete {
			delete(merged, k)
			continue
		}
		merged[k] = op.value
	}
	out := make([][2][]byte, 0, len(merged))
	for k, v := range merged {
		out = append(out, [2][]byte{[]byte(k), v})
	}
	return out
}

// EphemeralGet retrieves a typed object slot. The zero value and false are
// returned if nothing was stored under key.
func EphemeralGet[T any](d *Delta, key string) (T, bool) {
	var zero T
	v, ok := d.ephemeral[key]
	if !ok {
		return zero, false
	}
	t, ok := v.(T)
	return t, ok
}

// EphemeralSet stores a typed object slot, visible only within this delta.
func EphemeralSet[T any](d *Delta, key string, value T) {
	d.ephemeral[key] = value
}

// EphemeralClear removes a typed object slot, e.g. to reset the block-fees
// accumulator between blocks.
func EphemeralClear(d *Delta, key string) {
	delete(d.ephemeral, key)
}
