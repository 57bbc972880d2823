package composer

import (
	"errors"
	"testing"

	"github.com/astria-net/sequencer-core/internal/actions"
)

func submissionOfSize(rollupByte byte, dataLen int) actions.RollupDataSubmission {
	var id [32]byte
	id[0] = rollupByte
	return actions.RollupDataSubmission{RollupID: id, Data: make([]byte, dataLen)}
}

func TestBundleFactoryTryPushNoFlush(t *testing.T) {
	f := NewBundleFactory(100)
	if err := f.TryPush(submissionOfSize(0, 100-rollupIDLen)); err != nil {
		t.Fatalf("TryPush: %v", err)
	}
	if len(f.finished) != 0 {
		t.Fatalf("expected no finished bundles, got %d", len(f.finished))
	}
}

func TestBundleFactoryTryPushSubmissionTooLarge(t *testing.T) {
	f := NewBundleFactory(100)
	err := f.TryPush(submissionOfSize(0, 100-rollupIDLen+1))
	if !errors.Is(err, ErrSubmissionTooLarge) {
		t.Fatalf("expected ErrSubmissionTooLarge, got %v", err)
	}
}

func TestBundleFactoryFlushesAndPopFinishedWorks(t *testing.T) {
	f := NewBundleFactory(100)
	a0 := submissionOfSize(0, 100-rollupIDLen)
	a1 := submissionOfSize(1, 100-rollupIDLen)

	if err := f.TryPush(a0); err != nil {
		t.Fatalf("TryPush a0: %v", err)
	}
	if err := f.TryPush(a1); err != nil {
		t.Fatalf("TryPush a1: %v", err)
	}
	if len(f.finished) != 1 {
		t.Fatalf("expected one finished bundle, got %d", len(f.finished))
	}

	got := f.PopFinished()
	if len(got) != 1 || got[0].RollupID != a0.RollupID {
		t.Fatalf("expected PopFinished to return a0's bundle, got %+v", got)
	}
}

func TestBundleFactoryPopFinishedEmpty(t *testing.T) {
	f := NewBundleFactory(100)
	_ = f.TryPush(submissionOfSize(0, 100-rollupIDLen))
	if got := f.PopFinished(); got != nil {
		t.Fatalf("expected nil, got %+v", got)
	}
}

func TestBundleFactoryPopNowFlushesCurrentWhenFinishedEmpty(t *testing.T) {
	f := NewBundleFactory(100)
	a := submissionOfSize(0, 100-rollupIDLen)
	_ = f.TryPush(a)

	got := f.PopNow()
	if len(got) != 1 || got[0].RollupID != a.RollupID {
		t.Fatalf("expected PopNow to flush the current bundle, got %+v", got)
	}
	if got := f.PopNow(); len(got) != 0 {
		t.Fatalf("expected an empty factory to yield nothing, got %+v", got)
	}
}

func TestBundleFactoryPopNowPrefersFinishedThenCurrent(t *testing.T) {
	f := NewBundleFactory(100)
	a0 := submissionOfSize(0, 100-rollupIDLen)
	a1 := submissionOfSize(1, 100-rollupIDLen)
	_ = f.TryPush(a0)
	_ = f.TryPush(a1)

	first := f.PopNow()
	if len(first) != 1 || first[0].RollupID != a0.RollupID {
		t.Fatalf("expected the finished bundle (a0) first, got %+v", first)
	}
	second := f.PopNow()
	if len(second) != 1 || second[0].RollupID != a1.RollupID {
		t.Fatalf("expected the current bundle (a1) second, got %+v", second)
	}
	third := f.PopNow()
	if len(third) != 0 {
		t.Fatalf("expected nothing left, got %+v", third)
	}
}
