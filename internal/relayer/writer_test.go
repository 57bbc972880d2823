package relayer

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/astria-net/sequencer-core/internal/da"
	"github.com/astria-net/sequencer-core/internal/state"
)

type fakeDAClient struct {
	mu        sync.Mutex
	calls     [][]da.Blob
	height    uint64
	failTimes int
}

func (f *fakeDAClient) Submit(ctx context.Context, blobs []da.Blob) (uint64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failTimes > 0 {
		f.failTimes--
		return 0, errTransientDA
	}
	f.height++
	f.calls = append(f.calls, blobs)
	return f.height, nil
}

type fakeDAErr string

func (e fakeDAErr) Error() string { return string(e) }

const errTransientDA = fakeDAErr("transient da submission failure")

func testBlock(height int64, rollupID byte) SequencerBlock {
	var id [32]byte
	id[0] = rollupID
	return SequencerBlock{
		Height:    height,
		BlockHash: [32]byte{byte(height)},
		Time:      time.Unix(1_700_000_000+height, 0),
		ChainID:   "test-chain-1",
		RollupSubmissions: []RollupSubmission{
			{RollupID: id, Data: []byte("rollup-data")},
		},
	}
}

func TestWriterSubmitsOnBlocksChannelClose(t *testing.T) {
	client := &fakeDAClient{}
	st := NewSubmissionState(state.NewMemoryBackend())
	w := NewWriter(client, st, IncludeAll, nil)

	blocks := make(chan SequencerBlock, 2)
	blocks <- testBlock(1, 1)
	blocks <- testBlock(2, 1)
	close(blocks)

	if err := w.Run(context.Background(), blocks); err != nil {
		t.Fatalf("Run returned error: %v", err)
	}

	client.mu.Lock()
	defer client.mu.Unlock()
	if len(client.calls) != 1 {
		t.Fatalf("expected exactly one DA submission, got %d", len(client.calls))
	}

	rec, err := st.Load()
	if err != nil {
		t.Fatalf("loading submission state: %v", err)
	}
	if rec.Phase != PhaseFinalized {
		t.Fatalf("expected finalized phase, got %q", rec.Phase)
	}
	if rec.MaxSequencerHeight != 2 {
		t.Fatalf("expected max height 2, got %d", rec.MaxSequencerHeight)
	}
}

func TestWriterFlushesOnTicker(t *testing.T) {
	client := &fakeDAClient{}
	st := NewSubmissionState(state.NewMemoryBackend())
	w := NewWriter(client, st, IncludeAll, nil)

	blocks := make(chan SequencerBlock)
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() { done <- w.Run(ctx, blocks) }()

	blocks <- testBlock(1, 1)

	time.Sleep(flushInterval + 500*time.Millisecond)
	cancel()
	if err := <-done; err != nil {
		t.Fatalf("Run returned error: %v", err)
	}

	client.mu.Lock()
	defer client.mu.Unlock()
	if len(client.calls) != 1 {
		t.Fatalf("expected the ticker to flush exactly one submission, got %d", len(client.calls))
	}
}

func TestWriterRetriesTransientSubmissionFailures(t *testing.T) {
	client := &fakeDAClient{failTimes: 2}
	st := NewSubmissionState(state.NewMemoryBackend())
	w := NewWriter(client, st, IncludeAll, nil)

	blocks := make(chan SequencerBlock, 1)
	blocks <- testBlock(1, 1)
	close(blocks)

	if err := w.Run(context.Background(), blocks); err != nil {
		t.Fatalf("Run returned error: %v", err)
	}

	client.mu.Lock()
	defer client.mu.Unlock()
	if len(client.calls) != 1 {
		t.Fatalf("expected the retried submission to eventually succeed exactly once, got %d", len(client.calls))
	}
}

func TestBuildBlobsRoundTripsThroughCompression(t *testing.T) {
	block := testBlock(5, 7)
	metadata, rollupData, err := buildBlobs(block, IncludeAll)
	if err != nil {
		t.Fatalf("buildBlobs: %v", err)
	}
	if len(rollupData) != 1 {
		t.Fatalf("expected one rollup data entry, got %d", len(rollupData))
	}

	blob, _, err := toBlob(da.DefaultNamespace, metadata)
	if err != nil {
		t.Fatalf("toBlob: %v", err)
	}
	var decoded SubmittedMetadata
	if err := fromBlob(blob, &decoded); err != nil {
		t.Fatalf("fromBlob: %v", err)
	}
	if decoded.BlockHash != block.BlockHash {
		t.Fatalf("round-tripped block hash mismatch: got %x want %x", decoded.BlockHash, block.BlockHash)
	}
	if len(decoded.RollupIDs) != 1 {
		t.Fatalf("expected one rollup id after round-trip, got %d", len(decoded.RollupIDs))
	}
}
