package frost

import (
	"context"
	"encoding/json"
	"fmt"

	"google.golang.org/grpc"
)

// jsonCodec lets the participant-service client exchange plain JSON
// messages over a real gRPC channel instead of requiring generated
// protobuf stubs, using grpc.ForceCodec's documented extension point for a
// non-default wire encoding.
type jsonCodec struct{}

func (jsonCodec) Marshal(v any) ([]byte, error)      { return json.Marshal(v) }
func (jsonCodec) Unmarshal(data []byte, v any) error { return json.Unmarshal(data, v) }
func (jsonCodec) Name() string                       { return "json" }

const (
	methodGetVerifyingShare = "/astria.signer.v1.FrostParticipantService/GetVerifyingShare"
	methodExecuteRoundOne   = "/astria.signer.v1.FrostParticipantService/ExecuteRoundOne"
	methodExecuteRoundTwo   = "/astria.signer.v1.FrostParticipantService/ExecuteRoundTwo"
)

// ParticipantClient is the coordinator-side view of one remote FROST
// participant service.
type ParticipantClient interface {
	GetVerifyingShare(ctx context.Context) (*GetVerifyingShareResponse, error)
	ExecuteRoundOne(ctx context.Context) (*ExecuteRoundOneResponse, error)
	ExecuteRoundTwo(ctx context.Context, req *ExecuteRoundTwoRequest) (*ExecuteRoundTwoResponse, error)
}

type grpcParticipantClient struct {
	cc *grpc.ClientConn
}

// NewParticipantClient wraps an already-dialed connection (typically
// created with grpc.NewClient against a lazily-connected channel, mirroring
// the original's connect_lazy use) as a ParticipantClient.
func NewParticipantClient(cc *grpc.ClientConn) ParticipantClient {
	return &grpcParticipantClient{cc: cc}
}

func (c *grpcParticipantClient) GetVerifyingShare(ctx context.Context) (*GetVerifyingShareResponse, error) {
	resp := new(GetVerifyingShareResponse)
	if err := c.cc.Invoke(ctx, methodGetVerifyingShare, &GetVerifyingShareRequest{}, resp, grpc.ForceCodec(jsonCodec{})); err != nil {
		return nil, fmt.Errorf("GetVerifyingShare RPC failed: %w", err)
	}
	return resp, nil
}

func (c *grpcParticipantClient) ExecuteRoundOne(ctx context.Context) (*ExecuteRoundOneResponse, error) {
	resp := new(ExecuteRoundOneResponse)
	if err := c.cc.Invoke(ctx, methodExecuteRoundOne, &ExecuteRoundOneRequest{}, resp, grpc.ForceCodec(jsonCodec{})); err != nil {
		return nil, fmt.Errorf("ExecuteRoundOne RPC failed: %w", err)
	}
	return resp, nil
}

func (c *grpcParticipantClient) ExecuteRoundTwo(ctx context.Context, req *ExecuteRoundTwoRequest) (*ExecuteRoundTwoResponse, error) {
	resp := new(ExecuteRoundTwoResponse)
	if err := c.cc.Invoke(ctx, methodExecuteRoundTwo, req, resp, grpc.ForceCodec(jsonCodec{})); err != nil {
		return nil, fmt.Errorf("ExecuteRoundTwo RPC failed: %w", err)
	}
	return resp, nil
}
