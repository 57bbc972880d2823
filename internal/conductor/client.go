package conductor

import (
	"context"
	"fmt"

	cmtjson "github.com/cometbft/cometbft/libs/json"
	rpcclient "github.com/cometbft/cometbft/rpc/client"
	rpchttp "github.com/cometbft/cometbft/rpc/client/http"
	cmttypes "github.com/cometbft/cometbft/types"
)

const newBlockQuery = "tm.event='NewBlock'"

// cometbftClient implements SequencerClient over a real consensus RPC
// connection, the same rpcclient.Client dial this tree already uses in
// internal/bridgewithdrawer and internal/upgrades.
type cometbftClient struct {
	rpc        rpcclient.Client
	subscriber string
}

// NewCometBFTClient dials addr as a consensus RPC endpoint. subscriber
// identifies this stream's event subscription so it can be told apart from
// any other subscriber on the same connection.
func NewCometBFTClient(addr, subscriber string) (SequencerClient, error) {
	c, err := rpchttp.New(addr, "/websocket")
	if err != nil {
		return nil, fmt.Errorf("constructing cometbft rpc client: %w", err)
	}
	return &cometbftClient{rpc: c, subscriber: subscriber}, nil
}

func (c *cometbftClient) SubscribeLatestHeight(ctx context.Context) (<-chan int64, error) {
	events, err := c.rpc.Subscribe(ctx, c.subscriber, newBlockQuery)
	if err != nil {
		return nil, fmt.Errorf("subscribing to new blocks: %w", err)
	}

	heights := make(chan int64)
	go func() {
		defer close(heights)
		for {
			select {
			case <-ctx.Done():
				return
			case ev, ok := <-events:
				if !ok {
					return
				}
				data, ok := ev.Data.(cmttypes.EventDataNewBlock)
				if !ok {
					continue
				}
				select {
				case heights <- data.Block.Header.Height:
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return heights, nil
}

func (c *cometbftClient) FetchBlock(ctx context.Context, height int64) (Block, error) {
	h := height
	res, err := c.rpc.Block(ctx, &h)
	if err != nil {
		return Block{}, fmt.Errorf("fetching block at height %d: %w", height, err)
	}

	raw, err := cmtjson.Marshal(res.Block)
	if err != nil {
		return Block{}, fmt.Errorf("encoding fetched block at height %d: %w", height, err)
	}

	var hash [32]byte
	copy(hash[:], res.BlockID.Hash.Bytes())
	return Block{Height: height, Hash: hash, Data: raw}, nil
}
