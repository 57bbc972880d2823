package state

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := NewStore(NewMemoryBackend(), NewMemoryBackend())
	require.NoError(t, err)
	return s
}

func TestDeltaIsolatedUntilCommit(t *testing.T) {
	s := newTestStore(t)
	snap := s.LatestSnapshot()
	delta := snap.NewDelta()

	delta.PutRaw("accounts/alice/nonce", []byte{1})

	_, ok := snap.GetRaw("accounts/alice/nonce")
	require.False(t, ok, "writes must not be visible on the base snapshot before commit")

	v, ok := delta.GetRaw("accounts/alice/nonce")
	require.True(t, ok)
	require.Equal(t, []byte{1}, v)

	ctx := context.Background()
	version, root, err := s.Commit(ctx, delta)
	require.NoError(t, err)
	require.Equal(t, int64(1), version)
	require.NotEmpty(t, root)

	latest := s.LatestSnapshot()
	v, ok = latest.GetRaw("accounts/alice/nonce")
	require.True(t, ok)
	require.Equal(t, []byte{1}, v)
}

func TestCommitRejectsStaleDelta(t *testing.T) {
	s := newTestStore(t)
	snap := s.LatestSnapshot()
	delta1 := snap.NewDelta()
	delta1.PutRaw("k", []byte("v1"))

	delta2 := snap.NewDelta()
	delta2.PutRaw("k", []byte("v2"))

	ctx := context.Background()
	_, _, err := s.Commit(ctx, delta1)
	require.NoError(t, err)

	_, _, err = s.Commit(ctx, delta2)
	require.Error(t, err, "a delta built from a now-stale base version must not commit")
}

func TestDeleteRawSuppressesBaseValue(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	d1 := s.LatestSnapshot().NewDelta()
	d1.PutRaw("k", []byte("v"))
	_, _, err := s.Commit(ctx, d1)
	require.NoError(t, err)

	d2 := s.LatestSnapshot().NewDelta()
	d2.DeleteRaw("k")
	_, ok := d2.GetRaw("k")
	require.False(t, ok)

	_, _, err = s.Commit(ctx, d2)
	require.NoError(t, err)

	_, ok = s.LatestSnapshot().GetRaw("k")
	require.False(t, ok)
}

func TestPrefixRangeMergesPendingWrites(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	d1 := s.LatestSnapshot().NewDelta()
	d1.PutRaw("accounts/alice/balance/x", []byte("1"))
	d1.PutRaw("accounts/bob/balance/x", []byte("2"))
	_, _, err := s.Commit(ctx, d1)
	require.NoError(t, err)

	d2 := s.LatestSnapshot().NewDelta()
	d2.PutRaw("accounts/carol/balance/x", []byte("3"))
	d2.DeleteRaw("accounts/bob/balance/x")

	rows := d2.PrefixRange("accounts/")
	require.Len(t, rows, 2)
}

func TestEphemeralSlotsAreDeltaLocal(t *testing.T) {
	s := newTestStore(t)
	d := s.LatestSnapshot().NewDelta()

	type blockFees struct{ total int }
	EphemeralSet(d, "block_fees", blockFees{total: 5})

	got, ok := EphemeralGet[blockFees](d, "block_fees")
	require.True(t, ok)
	require.Equal(t, 5, got.total)

	EphemeralClear(d, "block_fees")
	_, ok = EphemeralGet[blockFees](d, "block_fees")
	require.False(t, ok)
}
