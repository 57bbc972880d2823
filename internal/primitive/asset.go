package primitive

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
)

// IbcPrefixed is the canonical, storage-key form of an asset: the SHA-256
// hash of its trace-prefixed denom. It is always used as the map/storage key
// for balances and fee-asset allow-lists.
type IbcPrefixed [32]byte

// String renders the ibc-prefixed denom as "ibc/<HASH>".
func (h IbcPrefixed) String() string {
	return "ibc/" + strings.ToUpper(hex.EncodeToString(h[:]))
}

// ParseIbcPrefixed parses the "ibc/<HEX>" string form produced by String.
func ParseIbcPrefixed(s string) (IbcPrefixed, error) {
	if !strings.HasPrefix(s, "ibc/") {
		return IbcPrefixed{}, fmt.Errorf("not an ibc-prefixed asset id: %q", s)
	}
	raw, err := hex.DecodeString(s[len("ibc/"):])
	if err != nil || len(raw) != 32 {
		return IbcPrefixed{}, fmt.Errorf("invalid ibc-prefixed asset id %q", s)
	}
	var h IbcPrefixed
	copy(h[:], raw)
	return h, nil
}

// MarshalJSON renders the asset id as its "ibc/<HEX>" string form.
func (h IbcPrefixed) MarshalJSON() ([]byte, error) {
	return []byte(`"` + h.String() + `"`), nil
}

// UnmarshalJSON parses the string form produced by MarshalJSON.
func (h *IbcPrefixed) UnmarshalJSON(data []byte) error {
	s := string(data)
	if len(s) >= 2 && s[0] == '"' && s[len(s)-1] == '"' {
		s = s[1 : len(s)-1]
	}
	parsed, err := ParseIbcPrefixed(s)
	if err != nil {
		return err
	}
	*h = parsed
	return nil
}

// Hop is one (port, channel) step in a trace-prefixed denom's path.
type Hop struct {
	Port    string
	Channel string
}

// Denom is either a trace-prefixed denom (an ordered list of IBC hops plus a
// base denom) or an already ibc-prefixed 32-byte hash. Construction always
// normalizes to have a valid ToIbcPrefixed projection.
type Denom struct {
	hops       []Hop
	baseDenom  string
	ibcPrefix  *IbcPrefixed // set iff the denom was constructed directly from a hash
}

// NewTracePrefixedDenom builds a denom from IBC hops and a base denom.
func NewTracePrefixedDenom(hops []Hop, baseDenom string) (Denom, error) {
	if baseDenom == "" {
		return Denom{}, fmt.Errorf("base denom must not be empty")
	}
	for _, h := range hops {
		if h.Port == "" || h.Channel == "" {
			return Denom{}, fmt.Errorf("ibc hop must have non-empty port and channel")
		}
	}
	cp := make([]Hop, len(hops))
	copy(cp, hops)
	return Denom{hops: cp, baseDenom: baseDenom}, nil
}

// NewIbcPrefixedDenom wraps an already-hashed 32-byte asset id.
func NewIbcPrefixedDenom(hash IbcPrefixed) Denom {
	h := hash
	return Denom{ibcPrefix: &h}
}

// TraceString renders the denom the way it would appear in an ICS-20 packet,
// e.g. "transfer/channel-0/transfer/channel-7/uatom", or just the base denom
// with zero hops.
func (d Denom) TraceString() string {
	if d.ibcPrefix != nil {
		return d.ibcPrefix.String()
	}
	var b strings.Builder
	for _, h := range d.hops {
		b.WriteString(h.Port)
		b.WriteByte('/')
		b.WriteString(h.Channel)
		b.WriteByte('/')
	}
	b.WriteString(d.baseDenom)
	return b.String()
}

// ToIbcPrefixed returns the canonical storage-key projection: the SHA-256
// hash of TraceString (or the original hash if already ibc-prefixed).
func (d Denom) ToIbcPrefixed() IbcPrefixed {
	if d.ibcPrefix != nil {
		return *d.ibcPrefix
	}
	return IbcPrefixed(sha256.Sum256([]byte(d.TraceString())))
}

// ParseDenom parses a denom from its wire representation: either
// "ibc/<HEX>" (an already ibc-prefixed hash) or an ICS-20 trace string
// ("transfer/channel-0/.../baseDenom"), following ibc-go's convention that
// a trace is an even number of (port, channel) segments followed by the
// base denom.
func ParseDenom(s string) (Denom, error) {
	if strings.HasPrefix(s, "ibc/") {
		raw, err := hex.DecodeString(s[len("ibc/"):])
		if err != nil || len(raw) != 32 {
			return Denom{}, fmt.Errorf("invalid ibc-prefixed denom %q", s)
		}
		var h IbcPrefixed
		copy(h[:], raw)
		return NewIbcPrefixedDenom(h), nil
	}
	parts := strings.Split(s, "/")
	if len(parts) == 0 || parts[0] == "" {
		return Denom{}, fmt.Errorf("invalid denom %q", s)
	}
	nHopSegments := (len(parts) - 1) / 2 * 2
	var hops []Hop
	i := 0
	for i+1 < nHopSegments+1 && i+1 < len(parts) {
		hops = append(hops, Hop{Port: parts[i], Channel: parts[i+1]})
		i += 2
	}
	base := strings.Join(parts[i:], "/")
	return NewTracePrefixedDenom(hops, base)
}

// MarshalJSON renders the denom as its wire string form (TraceString).
func (d Denom) MarshalJSON() ([]byte, error) {
	return []byte(`"` + d.TraceString() + `"`), nil
}

// UnmarshalJSON parses the string form produced by MarshalJSON.
func (d *Denom) UnmarshalJSON(data []byte) error {
	s := string(data)
	if len(s) >= 2 && s[0] == '"' && s[len(s)-1] == '"' {
		s = s[1 : len(s)-1]
	}
	parsed, err := ParseDenom(s)
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

// IsSourceOf reports whether (port, channel) is the first hop of the denom's
// trace, i.e. the denom arrived on this chain over that channel and the
// counterparty chain is its source zone. Under ICS-20, sending such a denom
// back over the same channel returns it to its source, so this chain is the
// sink for it. A denom with no hops, or one held only in its ibc/<hash>
// form, reports false.
func (d Denom) IsSourceOf(port, channel string) bool {
	if d.ibcPrefix != nil || len(d.hops) == 0 {
		return false
	}
	first := d.hops[0]
	return first.Port == port && first.Channel == channel
}
