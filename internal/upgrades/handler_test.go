package upgrades

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/astria-net/sequencer-core/internal/state"
)

func newTestDelta(t *testing.T) *state.Delta {
	t.Helper()
	store, err := state.NewStore(state.NewMemoryBackend(), state.NewMemoryBackend())
	require.NoError(t, err)
	return store.LatestSnapshot().NewDelta()
}

func testManifest() Manifest {
	return Manifest{
		Upgrades: []Upgrade{
			{
				Name:             "aspen",
				ActivationHeight: 10,
				AppVersion:       2,
				ShutdownRequired: true,
				Changes: []Change{
					{Name: "price_feed_genesis", Payload: json.RawMessage(`{"markets":[]}`)},
				},
			},
			{
				Name:             "blackburn",
				ActivationHeight: 20,
				AppVersion:       3,
				ShutdownRequired: true,
				Changes: []Change{
					{Name: "validator_update_action_change"},
				},
			},
		},
	}
}

func TestManifestLookups(t *testing.T) {
	m := testManifest()

	u, ok := m.ActivatingAt(10)
	require.True(t, ok)
	require.Equal(t, "aspen", u.Name)

	_, ok = m.ActivatingAt(11)
	require.False(t, ok)

	require.Len(t, m.Historical(11), 1)
	require.Len(t, m.Historical(21), 2)
	require.Empty(t, m.Historical(10))

	next, ok := m.ActivatingAtOrAfter(11)
	require.True(t, ok)
	require.Equal(t, "blackburn", next.Name)
}

func TestEnsureHistoricalUpgradesAppliedDetectsMissingAndMismatchedChanges(t *testing.T) {
	m := testManifest()
	d := newTestDelta(t)
	h := NewHandler(m, nil, "", nil)

	PutBlockHeight(d, 10)
	require.Error(t, h.EnsureHistoricalUpgradesApplied(d), "aspen's change was never recorded")

	PutChangeInfo(d, "aspen", m.Upgrades[0].Changes[0])
	require.NoError(t, h.EnsureHistoricalUpgradesApplied(d))

	d.PutRaw(changeInfoKey("aspen", "price_feed_genesis"), []byte("tampered"))
	require.Error(t, h.EnsureHistoricalUpgradesApplied(d), "stored hash no longer matches the manifest's change")
}

func TestShouldShutDownOnlyForUnknownUpgradesAtActivation(t *testing.T) {
	m := testManifest()
	d := newTestDelta(t)

	known := NewHandler(m, map[string]MigrationFunc{"aspen": func(*state.Delta, Upgrade) error { return nil }}, "", nil)
	PutBlockHeight(d, 9)
	require.Nil(t, known.ShouldShutDown(d), "this binary knows how to execute aspen")

	unknown := NewHandler(m, nil, "", nil)
	require.NotNil(t, unknown.ShouldShutDown(d), "aspen activates next block and this binary cannot run it")

	PutBlockHeight(d, 10)
	require.Nil(t, unknown.ShouldShutDown(d), "aspen already activated, blackburn is still 10 blocks out")
}

func TestExecuteUpgradeIfDueRunsMigrationAndRecordsChanges(t *testing.T) {
	m := testManifest()
	d := newTestDelta(t)

	var migrated bool
	h := NewHandler(m, map[string]MigrationFunc{
		"aspen": func(d *state.Delta, u Upgrade) error {
			migrated = true
			d.PutRaw("price_feed/markets", []byte("[]"))
			return nil
		},
	}, "", nil)

	hashes, err := h.ExecuteUpgradeIfDue(d, 10)
	require.NoError(t, err)
	require.Len(t, hashes, 1)
	require.True(t, migrated)

	_, ok := d.GetRaw("price_feed/markets")
	require.True(t, ok)

	stored, ok := GetChangeInfo(d, "aspen", "price_feed_genesis")
	require.True(t, ok)
	require.Equal(t, m.Upgrades[0].Changes[0].Hash(), stored)

	hashes, err = h.ExecuteUpgradeIfDue(d, 11)
	require.NoError(t, err)
	require.Nil(t, hashes)
}

func TestEndBlockBumpsAppVersionUsingHardCodedFallback(t *testing.T) {
	m := testManifest()
	d := newTestDelta(t)
	h := NewHandler(m, nil, "", nil)

	params, err := h.EndBlock(context.Background(), d, 10)
	require.NoError(t, err)
	require.NotNil(t, params)
	require.Equal(t, uint64(2), params.Version.App)

	_, ok := GetConsensusParams(d)
	require.True(t, ok, "EndBlock persists the updated params for the next lookup")

	params, err = h.EndBlock(context.Background(), d, 20)
	require.NoError(t, err)
	require.Equal(t, uint64(3), params.Version.App, "second upgrade reads back the persisted params and bumps again")
}

func TestBlockHeightAndTimestampRoundTrip(t *testing.T) {
	d := newTestDelta(t)

	require.Equal(t, int64(0), GetBlockHeight(d))
	PutBlockHeight(d, 42)
	require.Equal(t, int64(42), GetBlockHeight(d))

	_, ok := GetBlockTimestamp(d)
	require.False(t, ok)

	now := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	PutBlockTimestamp(d, now)
	got, ok := GetBlockTimestamp(d)
	require.True(t, ok)
	require.True(t, now.Equal(got))
}
