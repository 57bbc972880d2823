// Package da wraps outbound data-availability blobs in the namespace
// scheme described in §6: a fixed default namespace for block metadata and
// a deterministic per-rollup namespace for each rollup's data, grounded on
// sources/sequencer-relayer/src/da.rs's Namespace handling.
package da

import (
	"crypto/sha256"
	"encoding/hex"
)

// NamespaceSize is the byte length of a namespace identifier: the
// deterministic 10-byte prefix §6 specifies.
const NamespaceSize = 10

// Namespace identifies one data-availability stream blobs are submitted
// into.
type Namespace [NamespaceSize]byte

// DefaultNamespace is the fixed namespace metadata blobs are submitted
// into, regardless of which rollups are present in a block.
var DefaultNamespace = Namespace{0xa5, 0x74, 0x51, 0x4b, 0x8f, 0x00, 0x42, 0x9a, 0xe0, 0x0a}

// DeriveNamespace computes the namespace a rollup id's blobs are submitted
// into: the first NamespaceSize bytes of SHA-256(rollupID), so two
// different rollup ids practically never collide and the mapping needs no
// on-chain registry.
func DeriveNamespace(rollupID [32]byte) Namespace {
	sum := sha256.Sum256(rollupID[:])
	var ns Namespace
	copy(ns[:], sum[:NamespaceSize])
	return ns
}

func (n Namespace) String() string {
	return hex.EncodeToString(n[:])
}
