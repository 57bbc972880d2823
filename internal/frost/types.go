// Package frost implements the coordinator side of a two-round threshold
// signer built on FROST-Ed25519 (§ bridge withdrawer signer): a min_signers-
// of-n group of remote participant services each hold one key share, and
// this package drives the round-one commitment exchange, the round-two
// signature-share exchange, and the final aggregation into a signature
// that verifies against the group's ordinary ed25519 public key.
package frost

import (
	"encoding/hex"
	"encoding/json"
	"fmt"

	"filippo.io/edwards25519"
)

// Identifier is a FROST participant identifier: a nonzero scalar in
// ed25519's scalar field, canonically encoded as 32 little-endian bytes.
type Identifier [32]byte

// IdentifierFromIndex derives the identifier conventionally assigned to
// the participant at the given 1-based position, by wide-reducing the
// index's big-endian encoding into the scalar field.
func IdentifierFromIndex(index uint16) Identifier {
	var wide [64]byte
	wide[62] = byte(index >> 8)
	wide[63] = byte(index)
	s, err := new(edwards25519.Scalar).SetUniformBytes(wide[:])
	if err != nil {
		panic(fmt.Sprintf("reducing participant index into scalar field: %v", err))
	}
	var id Identifier
	copy(id[:], s.Bytes())
	return id
}

func (id Identifier) String() string {
	return hex.EncodeToString(id[:])
}

// hexBytes marshals to/from a hex string, matching the encoding convention
// internal/primitive's address and asset types already use for opaque
// byte fields in JSON documents.
type hexBytes []byte

func (h hexBytes) MarshalJSON() ([]byte, error) {
	return json.Marshal(hex.EncodeToString(h))
}

func (h *hexBytes) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	decoded, err := hex.DecodeString(s)
	if err != nil {
		return fmt.Errorf("decoding hex bytes: %w", err)
	}
	*h = decoded
	return nil
}

// PublicKeyPackage is the threshold group's public material: the group's
// ordinary ed25519 verifying key (against which the final aggregated
// signature verifies) and each participant's public verifying share.
type PublicKeyPackage struct {
	VerifyingKey    hexBytes            `json:"verifying_key"`
	VerifyingShares map[string]hexBytes `json:"verifying_shares"`
}

// LoadPublicKeyPackage reads a PublicKeyPackage from the JSON document a
// frost-ed25519 key generation (trusted dealer or DKG) run produces.
func LoadPublicKeyPackage(raw []byte) (PublicKeyPackage, error) {
	var pkg PublicKeyPackage
	if err := json.Unmarshal(raw, &pkg); err != nil {
		return PublicKeyPackage{}, fmt.Errorf("parsing frost public key package: %w", err)
	}
	if len(pkg.VerifyingKey) != 32 {
		return PublicKeyPackage{}, fmt.Errorf("verifying key must be 32 bytes, got %d", len(pkg.VerifyingKey))
	}
	return pkg, nil
}

// IdentifierForShare returns the identifier whose recorded verifying share
// matches share, mirroring the original's lookup from a freshly-fetched
// GetVerifyingShare response back to the package's own identifier space.
func (p PublicKeyPackage) IdentifierForShare(share []byte) (Identifier, bool) {
	for idHex, recorded := range p.VerifyingShares {
		if string(recorded) == string(share) {
			raw, err := hex.DecodeString(idHex)
			if err != nil || len(raw) != 32 {
				continue
			}
			var id Identifier
			copy(id[:], raw)
			return id, true
		}
	}
	return Identifier{}, false
}

// Identifiers returns every participant identifier named in the package,
// in no particular order.
func (p PublicKeyPackage) Identifiers() ([]Identifier, error) {
	ids := make([]Identifier, 0, len(p.VerifyingShares))
	for idHex := range p.VerifyingShares {
		raw, err := hex.DecodeString(idHex)
		if err != nil || len(raw) != 32 {
			return nil, fmt.Errorf("verifying share key %q is not a 32-byte hex identifier", idHex)
		}
		var id Identifier
		copy(id[:], raw)
		ids = append(ids, id)
	}
	return ids, nil
}
