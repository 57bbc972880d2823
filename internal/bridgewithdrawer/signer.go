// Package bridgewithdrawer implements the long-running submitter described
// in §4.9: it turns batches of rollup withdrawal actions into signed
// sequencer transactions and submits them one at a time, aborting on any
// rejection since a lost batch must be re-derived from the rollup rather
// than retried blindly.
package bridgewithdrawer

import (
	"context"
	"crypto/ed25519"
	"fmt"

	"github.com/astria-net/sequencer-core/internal/frost"
	"github.com/astria-net/sequencer-core/internal/kms"
	"github.com/astria-net/sequencer-core/internal/primitive"
	"github.com/astria-net/sequencer-core/internal/transaction"
)

// Signer produces a signed Transaction for a given Body, either with a
// single ed25519 key or via the FROST threshold protocol; the submitter is
// agnostic to which.
type Signer interface {
	Address() primitive.Address
	Sign(ctx context.Context, body transaction.Body) (transaction.Transaction, error)
}

// singleKeySigner signs directly with a held ed25519 private key, the
// simple case the original supports alongside frost::Frost.
type singleKeySigner struct {
	priv    ed25519.PrivateKey
	pub     [32]byte
	address primitive.Address
}

// NewSingleKeySigner wraps an ed25519 private key as a Signer.
func NewSingleKeySigner(priv ed25519.PrivateKey) (Signer, error) {
	pub, ok := priv.Public().(ed25519.PublicKey)
	if !ok || len(pub) != ed25519.PublicKeySize {
		return nil, fmt.Errorf("private key does not have a valid ed25519 public key")
	}
	var key [32]byte
	copy(key[:], pub)
	return &singleKeySigner{priv: priv, pub: key, address: transaction.AddressFromVerificationKey(key)}, nil
}

func (s *singleKeySigner) Address() primitive.Address { return s.address }

func (s *singleKeySigner) Sign(_ context.Context, body transaction.Body) (transaction.Transaction, error) {
	sig := ed25519.Sign(s.priv, body.SigningBytes())
	tx := transaction.Transaction{Body: body, VerificationKey: s.pub}
	copy(tx.Signature[:], sig)
	return tx, nil
}

// frostSigner drives the two-round FROST-Ed25519 protocol over
// frost.Signer to produce each transaction's signature.
type frostSigner struct {
	inner *frost.Signer
}

// NewFrostSigner wraps an initialized frost.Signer as a Signer.
func NewFrostSigner(inner *frost.Signer) Signer {
	return &frostSigner{inner: inner}
}

func (s *frostSigner) Address() primitive.Address { return s.inner.Address() }

func (s *frostSigner) Sign(ctx context.Context, body transaction.Body) (transaction.Transaction, error) {
	sig, err := s.inner.Sign(ctx, body.SigningBytes())
	if err != nil {
		return transaction.Transaction{}, fmt.Errorf("frost signing failed: %w", err)
	}
	var key [32]byte
	copy(key[:], s.inner.VerifyingKey())
	tx := transaction.Transaction{Body: body, VerificationKey: key}
	copy(tx.Signature[:], sig)
	return tx, nil
}

// vaultSigner signs by delegating to an ed25519 key held in a remote
// OpenBao transit mount: the process holding this Signer never sees the
// private key material, only signatures it requests over the network.
type vaultSigner struct {
	client  *kms.Client
	keyName string
	pub     [32]byte
	address primitive.Address
}

// NewVaultSigner fetches keyName's current public key from client and
// wraps it as a Signer. The key must already exist in the vault's transit
// mount; this does not create one.
func NewVaultSigner(ctx context.Context, client *kms.Client, keyName string) (Signer, error) {
	info, err := client.GetKey(ctx, keyName)
	if err != nil {
		return nil, fmt.Errorf("fetching vault key %s: %w", keyName, err)
	}
	if len(info.PublicKey) != ed25519.PublicKeySize {
		return nil, fmt.Errorf("vault key %s has a %d-byte public key, want %d", keyName, len(info.PublicKey), ed25519.PublicKeySize)
	}
	var pub [32]byte
	copy(pub[:], info.PublicKey)
	return &vaultSigner{client: client, keyName: keyName, pub: pub, address: transaction.AddressFromVerificationKey(pub)}, nil
}

func (s *vaultSigner) Address() primitive.Address { return s.address }

func (s *vaultSigner) Sign(ctx context.Context, body transaction.Body) (transaction.Transaction, error) {
	sig, err := s.client.Sign(ctx, s.keyName, body.SigningBytes())
	if err != nil {
		return transaction.Transaction{}, fmt.Errorf("vault signing failed: %w", err)
	}
	if len(sig) != ed25519.SignatureSize {
		return transaction.Transaction{}, fmt.Errorf("vault returned a %d-byte signature, want %d", len(sig), ed25519.SignatureSize)
	}
	tx := transaction.Transaction{Body: body, VerificationKey: s.pub}
	copy(tx.Signature[:], sig)
	return tx, nil
}
