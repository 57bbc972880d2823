package composer

import (
	"context"
	"crypto/ed25519"
	"sync"
	"testing"
	"time"

	"github.com/astria-net/sequencer-core/internal/actions"
	"github.com/astria-net/sequencer-core/internal/bridgewithdrawer"
	"github.com/astria-net/sequencer-core/internal/primitive"
	"github.com/astria-net/sequencer-core/internal/transaction"
)

type fakeConsensusClient struct {
	mu         sync.Mutex
	nonce      primitive.Nonce
	broadcasts [][]any
}

func (f *fakeConsensusClient) ChainID(ctx context.Context) (string, error) { return "test-chain-1", nil }

func (f *fakeConsensusClient) Nonce(ctx context.Context, addr primitive.Address) (primitive.Nonce, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.nonce, nil
}

func (f *fakeConsensusClient) Balance(ctx context.Context, addr primitive.Address, asset primitive.IbcPrefixed) (primitive.Amount, error) {
	return primitive.NewAmount(0), nil
}

func (f *fakeConsensusClient) FeeAssetAllowed(ctx context.Context, asset primitive.IbcPrefixed) (bool, error) {
	return true, nil
}

func (f *fakeConsensusClient) BroadcastTxCommit(ctx context.Context, tx transaction.Transaction) (bridgewithdrawer.BroadcastResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.broadcasts = append(f.broadcasts, tx.Body.Actions)
	f.nonce++
	return bridgewithdrawer.BroadcastResult{Height: int64(len(f.broadcasts))}, nil
}

func newTestSigner(t *testing.T) bridgewithdrawer.Signer {
	t.Helper()
	_, priv, err := ed25519.GenerateKey(nil)
	if err != nil {
		t.Fatalf("generating key: %v", err)
	}
	signer, err := bridgewithdrawer.NewSingleKeySigner(priv)
	if err != nil {
		t.Fatalf("NewSingleKeySigner: %v", err)
	}
	return signer
}

func TestExecutorFlushesOnBlockTimeTicker(t *testing.T) {
	client := &fakeConsensusClient{}
	signer := newTestSigner(t)
	cfg := Config{ChainID: "test-chain-1", MaxBytesPerBundle: 1024, BlockTime: 100 * time.Millisecond}
	e := NewExecutor(cfg, client, signer, nil)

	incoming := make(chan actions.RollupDataSubmission)
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() { done <- e.Run(ctx, incoming) }()

	incoming <- submissionOfSize(0, 32)

	time.Sleep(300 * time.Millisecond)
	cancel()
	if err := <-done; err != nil {
		t.Fatalf("Run returned error: %v", err)
	}

	client.mu.Lock()
	defer client.mu.Unlock()
	if len(client.broadcasts) != 1 {
		t.Fatalf("expected exactly one broadcast from the ticker flush, got %d", len(client.broadcasts))
	}
}

func TestExecutorFlushesRemainingOnChannelClose(t *testing.T) {
	client := &fakeConsensusClient{}
	signer := newTestSigner(t)
	cfg := Config{ChainID: "test-chain-1", MaxBytesPerBundle: 1024, BlockTime: time.Hour}
	e := NewExecutor(cfg, client, signer, nil)

	incoming := make(chan actions.RollupDataSubmission, 1)
	incoming <- submissionOfSize(0, 32)
	close(incoming)

	if err := e.Run(context.Background(), incoming); err != nil {
		t.Fatalf("Run returned error: %v", err)
	}

	client.mu.Lock()
	defer client.mu.Unlock()
	if len(client.broadcasts) != 1 {
		t.Fatalf("expected exactly one broadcast on channel close, got %d", len(client.broadcasts))
	}
}

func TestExecutorSplitsSubmissionsAcrossBundlesOnOverflow(t *testing.T) {
	client := &fakeConsensusClient{}
	signer := newTestSigner(t)
	cfg := Config{ChainID: "test-chain-1", MaxBytesPerBundle: 100, BlockTime: time.Hour}
	e := NewExecutor(cfg, client, signer, nil)

	incoming := make(chan actions.RollupDataSubmission, 2)
	incoming <- submissionOfSize(0, 100-rollupIDLen)
	incoming <- submissionOfSize(1, 100-rollupIDLen)
	close(incoming)

	if err := e.Run(context.Background(), incoming); err != nil {
		t.Fatalf("Run returned error: %v", err)
	}

	client.mu.Lock()
	defer client.mu.Unlock()
	if len(client.broadcasts) != 2 {
		t.Fatalf("expected two separate broadcasts (bundle overflow then final flush), got %d", len(client.broadcasts))
	}
}
