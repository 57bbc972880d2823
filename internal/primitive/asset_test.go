package primitive

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDenomToIbcPrefixedIsDeterministic(t *testing.T) {
	d1, err := NewTracePrefixedDenom([]Hop{{Port: "transfer", Channel: "channel-0"}}, "uatom")
	require.NoError(t, err)
	d2, err := NewTracePrefixedDenom([]Hop{{Port: "transfer", Channel: "channel-0"}}, "uatom")
	require.NoError(t, err)

	require.Equal(t, d1.ToIbcPrefixed(), d2.ToIbcPrefixed())
}

func TestIbcPrefixedDenomProjectsToItself(t *testing.T) {
	var h IbcPrefixed
	h[0] = 0xAB
	d := NewIbcPrefixedDenom(h)
	require.Equal(t, h, d.ToIbcPrefixed())
}

func TestIsSourceOf(t *testing.T) {
	d, err := NewTracePrefixedDenom([]Hop{{Port: "transfer", Channel: "channel-0"}}, "uatom")
	require.NoError(t, err)

	require.True(t, d.IsSourceOf("transfer", "channel-0"))
	require.False(t, d.IsSourceOf("transfer", "channel-1"))
}

func TestNewTracePrefixedDenomRejectsEmptyBase(t *testing.T) {
	_, err := NewTracePrefixedDenom(nil, "")
	require.Error(t, err)
}
