package primitive

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"
)

func rawAddr(fill byte) []byte {
	b := make([]byte, AddressLength)
	for i := range b {
		b[i] = fill
	}
	return b
}

func TestAddressRoundTrip(t *testing.T) {
	addr, err := NewAddress(rawAddr(0x01), "astria")
	require.NoError(t, err)

	s := addr.String()
	require.NotEmpty(t, s)

	parsed, err := ParseAddress(s)
	require.NoError(t, err)
	require.True(t, addr.Equal(parsed))
	require.True(t, bytes.Equal(addr.Bytes(), parsed.Bytes()))
}

func TestAddressEqualityIgnoresPrefix(t *testing.T) {
	a := MustNewAddress(rawAddr(0x02), "astria")
	b := a.WithPrefix("astriacompat")

	require.True(t, a.Equal(b))
	require.NotEqual(t, a.String(), b.String())
}

func TestNewAddressRejectsWrongLength(t *testing.T) {
	_, err := NewAddress([]byte{1, 2, 3}, "astria")
	require.Error(t, err)
}
