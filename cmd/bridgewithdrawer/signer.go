package main

import (
	"context"
	"crypto/ed25519"
	"fmt"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	"github.com/astria-net/sequencer-core/internal/bridgewithdrawer"
	"github.com/astria-net/sequencer-core/internal/frost"
	"github.com/astria-net/sequencer-core/internal/kms"
)

// buildSigner constructs the Signer matching cfg.SigningMode: a single held
// ed25519 key for a development/single-operator deployment, a FROST-Ed25519
// threshold signer dialing one gRPC connection per participant (§4.8), or a
// signer backed by a key held in a remote OpenBao transit mount. In frost
// mode it also runs the participant-client initialization round before
// returning, so the result is immediately ready to sign.
func buildSigner(ctx context.Context, cfg Config) (bridgewithdrawer.Signer, error) {
	switch cfg.SigningMode {
	case "single":
		raw, err := cfg.singleKey()
		if err != nil {
			return nil, err
		}
		if len(raw) != ed25519.PrivateKeySize {
			return nil, fmt.Errorf("single-key-hex must decode to %d bytes, got %d", ed25519.PrivateKeySize, len(raw))
		}
		return bridgewithdrawer.NewSingleKeySigner(ed25519.PrivateKey(raw))

	case "frost":
		rawPubKeys, err := cfg.frostPubKeyPackage()
		if err != nil {
			return nil, fmt.Errorf("reading frost public key package: %w", err)
		}
		pubKeys, err := frost.LoadPublicKeyPackage(rawPubKeys)
		if err != nil {
			return nil, fmt.Errorf("parsing frost public key package: %w", err)
		}

		clients := make([]frost.ParticipantClient, 0, len(cfg.FrostParticipants))
		for _, addr := range cfg.FrostParticipants {
			cc, err := grpc.NewClient(addr, grpc.WithTransportCredentials(insecure.NewCredentials()))
			if err != nil {
				return nil, fmt.Errorf("dialing frost participant %s: %w", addr, err)
			}
			clients = append(clients, frost.NewParticipantClient(cc))
		}

		signer, err := frost.NewSigner(cfg.FrostMinSigners, pubKeys, clients, nil)
		if err != nil {
			return nil, fmt.Errorf("constructing frost signer: %w", err)
		}
		if err := signer.InitializeParticipantClients(ctx); err != nil {
			return nil, fmt.Errorf("initializing frost participant clients: %w", err)
		}
		return bridgewithdrawer.NewFrostSigner(signer), nil

	case "vault":
		client, err := kms.NewClient(cfg.kmsConfig())
		if err != nil {
			return nil, fmt.Errorf("constructing vault client: %w", err)
		}
		return bridgewithdrawer.NewVaultSigner(ctx, client, cfg.VaultKeyName)

	default:
		return nil, fmt.Errorf("unknown signing mode %q", cfg.SigningMode)
	}
}
