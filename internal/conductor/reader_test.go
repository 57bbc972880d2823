package conductor

import (
	"context"
	"sync"
	"testing"
	"time"
)

type fakeSeqClient struct {
	mu       sync.Mutex
	heights  chan int64
	blocks   map[int64]Block
	delayFor map[int64]time.Duration
	failFor  map[int64]error
	fetched  []int64
}

func newFakeSeqClient(maxHeight int64) *fakeSeqClient {
	blocks := make(map[int64]Block, maxHeight)
	for h := int64(1); h <= maxHeight; h++ {
		blocks[h] = Block{Height: h, Hash: [32]byte{byte(h)}, Data: []byte("block")}
	}
	return &fakeSeqClient{
		heights:  make(chan int64, 1),
		blocks:   blocks,
		delayFor: make(map[int64]time.Duration),
		failFor:  make(map[int64]error),
	}
}

func (f *fakeSeqClient) SubscribeLatestHeight(ctx context.Context) (<-chan int64, error) {
	return f.heights, nil
}

func (f *fakeSeqClient) FetchBlock(ctx context.Context, height int64) (Block, error) {
	f.mu.Lock()
	// A configured delay applies to the first fetch of a height only, so a
	// retried fetch of that height returns promptly.
	delay := f.delayFor[height]
	delete(f.delayFor, height)
	err := f.failFor[height]
	f.fetched = append(f.fetched, height)
	f.mu.Unlock()

	if err != nil {
		return Block{}, err
	}
	if delay > 0 {
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return Block{}, ctx.Err()
		}
	}
	f.mu.Lock()
	block, ok := f.blocks[height]
	f.mu.Unlock()
	if !ok {
		return Block{}, context.DeadlineExceeded
	}
	return block, nil
}

func TestReaderStreamsBlocksInAscendingOrder(t *testing.T) {
	client := newFakeSeqClient(10)
	client.heights <- 10

	cfg := Config{MaxInFlight: 4, MaxAhead: 8, FetchTimeout: time.Second, ResubscribeMaxAttempts: 3}
	r := NewReader(client, cfg, nil)

	out := make(chan Block, 10)
	heightUpdates := make(chan int64)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan error, 1)
	go func() { done <- r.Run(ctx, 1, heightUpdates, out) }()

	var got []int64
	for i := 0; i < 10; i++ {
		select {
		case b := <-out:
			got = append(got, b.Height)
			// Act as the executor: advance the soft-commit watermark so the
			// MaxAhead window moves past the first 8 heights.
			select {
			case heightUpdates <- b.Height + 1:
			case <-time.After(5 * time.Second):
				t.Fatalf("timed out advancing the watermark past block %d", b.Height)
			}
		case <-time.After(5 * time.Second):
			t.Fatalf("timed out waiting for block %d", i+1)
		}
	}
	cancel()
	<-done

	for i, h := range got {
		if h != int64(i+1) {
			t.Fatalf("expected strictly ascending gap-free heights, got %v", got)
		}
	}
}

func TestReaderRetriesTimedOutFetch(t *testing.T) {
	client := newFakeSeqClient(3)
	client.heights <- 3
	client.delayFor[2] = 200 * time.Millisecond

	cfg := Config{MaxInFlight: 4, MaxAhead: 8, FetchTimeout: 50 * time.Millisecond, ResubscribeMaxAttempts: 3}
	r := NewReader(client, cfg, nil)

	out := make(chan Block, 3)
	heightUpdates := make(chan int64)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan error, 1)
	go func() { done <- r.Run(ctx, 1, heightUpdates, out) }()

	var got []int64
	for i := 0; i < 3; i++ {
		select {
		case b := <-out:
			got = append(got, b.Height)
		case <-time.After(5 * time.Second):
			t.Fatalf("timed out waiting for block %d", i+1)
		}
	}
	cancel()
	<-done

	if len(got) != 3 || got[0] != 1 || got[1] != 2 || got[2] != 3 {
		t.Fatalf("expected [1 2 3] after the slow fetch was retried, got %v", got)
	}
}

func TestBlockCacheYieldsOnlyGapFreeSequence(t *testing.T) {
	c := NewBlockCache(1)
	if err := c.Insert(Block{Height: 2}); err != nil {
		t.Fatalf("Insert: %v", err)
	}
	if _, ok := c.NextBlock(); ok {
		t.Fatal("expected no block yet: height 1 has not arrived")
	}
	if err := c.Insert(Block{Height: 1}); err != nil {
		t.Fatalf("Insert: %v", err)
	}
	b, ok := c.NextBlock()
	if !ok || b.Height != 1 {
		t.Fatalf("expected height 1, got %+v ok=%v", b, ok)
	}
	b, ok = c.NextBlock()
	if !ok || b.Height != 2 {
		t.Fatalf("expected height 2, got %+v ok=%v", b, ok)
	}
}

func TestBlockCacheDropsObsoleteEntries(t *testing.T) {
	c := NewBlockCache(1)
	_ = c.Insert(Block{Height: 1})
	_ = c.Insert(Block{Height: 2})
	c.DropObsolete(2)
	if err := c.Insert(Block{Height: 1}); err == nil {
		t.Fatal("expected inserting a now-obsolete height to fail")
	}
	b, ok := c.NextBlock()
	if !ok || b.Height != 2 {
		t.Fatalf("expected height 2 to survive the drop, got %+v ok=%v", b, ok)
	}
}
