package main

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/astria-net/sequencer-core/internal/actions"
	"github.com/astria-net/sequencer-core/internal/bridgewithdrawer"
)

// batchRecord is the on-disk shape of one line of a batches file: every
// withdrawal-side action observed on the rollup up to RollupHeight. A
// rollup-side event watcher that derives these from the rollup's own chain
// (bridge unlock/ICS-20 withdrawal events) is explicitly out of scope
// (rollup EVM contract bindings are a Non-goal); this is the boundary such
// a watcher would write to instead of a file.
type batchRecord struct {
	RollupHeight     uint64                    `json:"rollup_height"`
	BridgeUnlocks    []actions.BridgeUnlock    `json:"bridge_unlocks,omitempty"`
	Ics20Withdrawals []actions.Ics20Withdrawal `json:"ics20_withdrawals,omitempty"`
}

func (r batchRecord) toBatch() bridgewithdrawer.Batch {
	acts := make([]any, 0, len(r.BridgeUnlocks)+len(r.Ics20Withdrawals))
	for _, a := range r.BridgeUnlocks {
		acts = append(acts, a)
	}
	for _, a := range r.Ics20Withdrawals {
		acts = append(acts, a)
	}
	return bridgewithdrawer.Batch{Actions: acts, RollupHeight: r.RollupHeight}
}

// streamBatches reads newline-delimited JSON batchRecords from path ("-"
// for stdin) and delivers them on out in file order, closing out when the
// input is exhausted.
func streamBatches(ctx context.Context, path string, out chan<- bridgewithdrawer.Batch) error {
	defer close(out)

	var r io.Reader
	if path == "-" {
		r = os.Stdin
	} else {
		f, err := os.Open(path)
		if err != nil {
			return fmt.Errorf("opening batches file: %w", err)
		}
		defer f.Close()
		r = f
	}

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		var rec batchRecord
		if err := json.Unmarshal(line, &rec); err != nil {
			return fmt.Errorf("decoding batch record: %w", err)
		}
		select {
		case out <- rec.toBatch():
		case <-ctx.Done():
			return nil
		}
	}
	return scanner.Err()
}
