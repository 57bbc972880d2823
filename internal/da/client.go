package da

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
)

// Client submits a batch of blobs to the data-availability layer in a
// single transaction-like call, returning the DA height it landed at.
type Client interface {
	Submit(ctx context.Context, blobs []Blob) (height uint64, err error)
}

// jsonRPCClient speaks celestia-node's blob.Submit JSON-RPC 2.0 method
// directly over net/http: no celestia client SDK is available anywhere in
// this tree's dependency corpus (the teacher and the rest of the pack
// carry no DA-node RPC library), so this talks the documented wire
// protocol with the standard library rather than fabricating a client
// package behind a replace directive.
type jsonRPCClient struct {
	endpoint  string
	authToken string
	http      *http.Client
}

// NewClient dials a celestia-node RPC endpoint. authToken may be empty if
// the node accepts unauthenticated requests.
func NewClient(endpoint, authToken string) Client {
	return &jsonRPCClient{endpoint: endpoint, authToken: authToken, http: &http.Client{}}
}

type jsonRPCRequest struct {
	JSONRPC string `json:"jsonrpc"`
	ID      int    `json:"id"`
	Method  string `json:"method"`
	Params  []any  `json:"params"`
}

type jsonRPCError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

type jsonRPCResponse struct {
	Result json.RawMessage `json:"result"`
	Error  *jsonRPCError   `json:"error"`
}

// wireBlob mirrors celestia-node's blob.Blob JSON shape: a base64 namespace
// ID and base64 payload.
type wireBlob struct {
	NamespaceID string `json:"namespace_id"`
	Data        string `json:"data"`
}

func (c *jsonRPCClient) Submit(ctx context.Context, blobs []Blob) (uint64, error) {
	wire := make([]wireBlob, len(blobs))
	for i, b := range blobs {
		wire[i] = wireBlob{
			NamespaceID: base64.StdEncoding.EncodeToString(b.Namespace[:]),
			Data:        base64.StdEncoding.EncodeToString(b.Data),
		}
	}

	req := jsonRPCRequest{JSONRPC: "2.0", ID: 1, Method: "blob.Submit", Params: []any{wire}}
	body, err := json.Marshal(req)
	if err != nil {
		return 0, fmt.Errorf("encoding blob.Submit request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return 0, fmt.Errorf("constructing blob.Submit request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if c.authToken != "" {
		httpReq.Header.Set("Authorization", "Bearer "+c.authToken)
	}

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return 0, fmt.Errorf("submitting blobs: %w", err)
	}
	defer resp.Body.Close()

	var rpcResp jsonRPCResponse
	if err := json.NewDecoder(resp.Body).Decode(&rpcResp); err != nil {
		return 0, fmt.Errorf("decoding blob.Submit response: %w", err)
	}
	if rpcResp.Error != nil {
		return 0, fmt.Errorf("blob.Submit failed: %s (code %d)", rpcResp.Error.Message, rpcResp.Error.Code)
	}

	var height uint64
	if err := json.Unmarshal(rpcResp.Result, &height); err != nil {
		return 0, fmt.Errorf("decoding blob.Submit height: %w", err)
	}
	return height, nil
}
