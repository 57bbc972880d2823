package main

import (
	"context"
	"encoding/json"
	"fmt"

	rpcclient "github.com/cometbft/cometbft/rpc/client"
	rpchttp "github.com/cometbft/cometbft/rpc/client/http"
	cmttypes "github.com/cometbft/cometbft/types"

	"github.com/astria-net/sequencer-core/internal/app"
	"github.com/astria-net/sequencer-core/internal/relayer"
)

// blockSource turns a sequencer's new-block events into relayer.
// SequencerBlocks, reusing the same subscribe-then-ABCIQuery shape
// [[internal/conductor]]'s and internal/bridgewithdrawer's cometbft
// clients already use: a block's hash comes from the RPC's own Block()
// call, its time and chain id from the new-block event's header, and its
// rollup submissions/deposits
// come from querying the app.BlockData record App.Query serves at
// "blocks/<height>".
type blockSource struct {
	rpc        rpcclient.Client
	subscriber string
}

func newBlockSource(addr, subscriber string) (*blockSource, error) {
	c, err := rpchttp.New(addr, "/websocket")
	if err != nil {
		return nil, fmt.Errorf("constructing cometbft rpc client: %w", err)
	}
	return &blockSource{rpc: c, subscriber: subscriber}, nil
}

// Run delivers every new finalized block on out until ctx is canceled or
// the subscription ends.
func (s *blockSource) Run(ctx context.Context, out chan<- relayer.SequencerBlock) error {
	events, err := s.rpc.Subscribe(ctx, s.subscriber, "tm.event='NewBlock'")
	if err != nil {
		return fmt.Errorf("subscribing to new blocks: %w", err)
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-events:
			if !ok {
				return nil
			}
			data, ok := ev.Data.(cmttypes.EventDataNewBlock)
			if !ok {
				continue
			}
			height := data.Block.Header.Height
			block, err := s.fetch(ctx, height, data.Block.Header)
			if err != nil {
				return fmt.Errorf("fetching sequencer block at height %d: %w", height, err)
			}
			select {
			case out <- block:
			case <-ctx.Done():
				return nil
			}
		}
	}
}

func (s *blockSource) fetch(ctx context.Context, height int64, header cmttypes.Header) (relayer.SequencerBlock, error) {
	res, err := s.rpc.ABCIQuery(ctx, fmt.Sprintf("blocks/%d", height), nil)
	if err != nil {
		return relayer.SequencerBlock{}, fmt.Errorf("querying block data: %w", err)
	}
	if res.Response.Code != 0 {
		return relayer.SequencerBlock{}, fmt.Errorf("block data query failed: %s", res.Response.Log)
	}
	var bd app.BlockData
	if err := json.Unmarshal(res.Response.Value, &bd); err != nil {
		return relayer.SequencerBlock{}, fmt.Errorf("decoding block data: %w", err)
	}

	blockRes, err := s.rpc.Block(ctx, &height)
	if err != nil {
		return relayer.SequencerBlock{}, fmt.Errorf("fetching block: %w", err)
	}
	var hash [32]byte
	copy(hash[:], blockRes.BlockID.Hash.Bytes())

	return relayer.FromBlockData(hash, header.Time, header.ChainID, bd), nil
}
