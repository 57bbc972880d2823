package bridgewithdrawer

import (
	"context"
	"fmt"

	rpcclient "github.com/cometbft/cometbft/rpc/client"
	rpchttp "github.com/cometbft/cometbft/rpc/client/http"

	"github.com/astria-net/sequencer-core/internal/primitive"
	"github.com/astria-net/sequencer-core/internal/transaction"
)

// BroadcastResult is the outcome of submitting a signed transaction,
// carrying both ABCI result codes the submitter inspects per §4.9 step 4.
type BroadcastResult struct {
	Height       int64
	TxHash       [32]byte
	CheckTxCode  uint32
	CheckTxLog   string
	TxResultCode uint32
	TxResultLog  string
}

// Succeeded reports whether both the mempool admission and the execution
// result carried a zero ABCI code.
func (r BroadcastResult) Succeeded() bool {
	return r.CheckTxCode == 0 && r.TxResultCode == 0
}

// ConsensusClient is the submitter's view of the consensus RPC, abstracted
// so tests can substitute a fake instead of dialing a real node.
type ConsensusClient interface {
	ChainID(ctx context.Context) (string, error)
	Nonce(ctx context.Context, addr primitive.Address) (primitive.Nonce, error)
	Balance(ctx context.Context, addr primitive.Address, asset primitive.IbcPrefixed) (primitive.Amount, error)
	FeeAssetAllowed(ctx context.Context, asset primitive.IbcPrefixed) (bool, error)
	BroadcastTxCommit(ctx context.Context, tx transaction.Transaction) (BroadcastResult, error)
}

type cometbftClient struct {
	rpc rpcclient.Client
}

// NewCometBFTClient dials addr as a consensus RPC endpoint.
func NewCometBFTClient(addr string) (ConsensusClient, error) {
	c, err := rpchttp.New(addr, "/websocket")
	if err != nil {
		return nil, fmt.Errorf("constructing cometbft rpc client: %w", err)
	}
	return &cometbftClient{rpc: c}, nil
}

func (c *cometbftClient) ChainID(ctx context.Context) (string, error) {
	status, err := c.rpc.Status(ctx)
	if err != nil {
		return "", fmt.Errorf("fetching status: %w", err)
	}
	return status.NodeInfo.Network, nil
}

func (c *cometbftClient) Nonce(ctx context.Context, addr primitive.Address) (primitive.Nonce, error) {
	res, err := c.rpc.ABCIQuery(ctx, fmt.Sprintf("accounts/%s/nonce", addr), nil)
	if err != nil {
		return 0, fmt.Errorf("querying nonce: %w", err)
	}
	if res.Response.Code != 0 {
		return 0, fmt.Errorf("nonce query failed: %s", res.Response.Log)
	}
	var n uint32
	for _, b := range res.Response.Value {
		n = n<<8 | uint32(b)
	}
	return primitive.Nonce(n), nil
}

func (c *cometbftClient) Balance(ctx context.Context, addr primitive.Address, asset primitive.IbcPrefixed) (primitive.Amount, error) {
	res, err := c.rpc.ABCIQuery(ctx, fmt.Sprintf("accounts/%s/balance/%s", addr, asset), nil)
	if err != nil {
		return primitive.Amount{}, fmt.Errorf("querying balance: %w", err)
	}
	if res.Response.Code != 0 {
		return primitive.Amount{}, fmt.Errorf("balance query failed: %s", res.Response.Log)
	}
	return primitive.ParseAmount(string(res.Response.Value))
}

func (c *cometbftClient) FeeAssetAllowed(ctx context.Context, asset primitive.IbcPrefixed) (bool, error) {
	res, err := c.rpc.ABCIQuery(ctx, fmt.Sprintf("fees/allowed_assets/%s", asset), nil)
	if err != nil {
		return false, fmt.Errorf("querying fee asset allow-list: %w", err)
	}
	return res.Response.Code == 0, nil
}

func (c *cometbftClient) BroadcastTxCommit(ctx context.Context, tx transaction.Transaction) (BroadcastResult, error) {
	raw, err := transaction.Marshal(tx)
	if err != nil {
		return BroadcastResult{}, fmt.Errorf("encoding transaction: %w", err)
	}
	res, err := c.rpc.BroadcastTxCommit(ctx, raw)
	if err != nil {
		return BroadcastResult{}, fmt.Errorf("broadcasting transaction: %w", err)
	}
	var hash [32]byte
	copy(hash[:], res.Hash.Bytes())
	return BroadcastResult{
		Height:       res.Height,
		TxHash:       hash,
		CheckTxCode:  res.CheckTx.Code,
		CheckTxLog:   res.CheckTx.Log,
		TxResultCode: res.TxResult.Code,
		TxResultLog:  res.TxResult.Log,
	}, nil
}
