// Package transaction implements the checked-transaction layer described in
// §4.3: decoding, signature verification, nonce/chain-id checks, and
// execution of a transaction's action list as a single group-consistent
// unit.
package transaction

import (
	"context"
	"crypto/sha256"
	"fmt"

	"github.com/hdevalence/ed25519consensus"

	"github.com/astria-net/sequencer-core/internal/actions"
	"github.com/astria-net/sequencer-core/internal/fees"
	"github.com/astria-net/sequencer-core/internal/ledger"
	"github.com/astria-net/sequencer-core/internal/primitive"
	"github.com/astria-net/sequencer-core/internal/state"
)

// Params are the transaction-level parameters every transaction carries,
// validated against chain state independent of its actions.
type Params struct {
	ChainID string
	Nonce   primitive.Nonce
}

// Body is the signed payload: parameters plus an ordered action list.
type Body struct {
	Params  Params
	Actions []any // each element is one of the internal/actions payload types
}

// Transaction is a signed Body as received from the wire.
type Transaction struct {
	Signature        [64]byte
	VerificationKey  [32]byte
	Body             Body
}

// SigningBytes is the canonical byte representation the signature covers.
// A real wire format would be the protobuf encoding of Body; here we use a
// stable domain-separated hash of its fields, since no protobuf schema is
// generated in this tree.
func (b Body) SigningBytes() []byte {
	h := sha256.New()
	h.Write([]byte("astria-sequencer-core/transaction-body/v1"))
	h.Write([]byte(b.Params.ChainID))
	var nonceBuf [4]byte
	nonceBuf[0] = byte(b.Params.Nonce >> 24)
	nonceBuf[1] = byte(b.Params.Nonce >> 16)
	nonceBuf[2] = byte(b.Params.Nonce >> 8)
	nonceBuf[3] = byte(b.Params.Nonce)
	h.Write(nonceBuf[:])
	for _, a := range b.Actions {
		// marshalAction's JSON encoding is field-wise and deterministic,
		// unlike %#v, which can render unexported pointer fields (e.g. the
		// *big.Int inside cosmossdk.io/math.Int) by address.
		kind, payload, err := marshalAction(a)
		if err != nil {
			fmt.Fprintf(h, "unmarshalable:%T", a)
			continue
		}
		h.Write([]byte(kind))
		h.Write(payload)
	}
	return h.Sum(nil)
}

// AddressFromVerificationKey derives the signer's address from its ed25519
// verification key: the first AddressLength bytes of SHA-256(key), the same
// pattern cosmos-sdk uses to turn a public key into an account address.
func AddressFromVerificationKey(key [32]byte) primitive.Address {
	sum := sha256.Sum256(key[:])
	return primitive.MustNewAddress(sum[:primitive.AddressLength], primitive.DefaultPrefix)
}

// CheckedTransaction is a Transaction that has passed signature
// verification, chain-id/nonce checks, and per-action construction. It is
// the unit the mempool holds and the unit FinalizeBlock executes.
type CheckedTransaction struct {
	id      [32]byte
	signer  primitive.Address
	params  Params
	checked []actions.CheckedAction
	raw     Transaction
}

// ID is the transaction's content-addressed identifier (hash of its signing
// bytes), used as the mempool key and recorded on every fee Entry/Deposit.
func (c *CheckedTransaction) ID() [32]byte { return c.id }

// Signer is the address that signed and will be debited for this
// transaction's nonce, fees, and any outbound transfers.
func (c *CheckedTransaction) Signer() primitive.Address { return c.signer }

// Nonce is the transaction's claimed nonce.
func (c *CheckedTransaction) Nonce() primitive.Nonce { return c.params.Nonce }

// Raw returns the original signed wire Transaction, so a caller that holds
// only the checked form (e.g. the mempool, when draining for a proposal)
// can still re-encode it onto the wire.
func (c *CheckedTransaction) Raw() Transaction { return c.raw }

// TotalCosts sums every action's EstimatedCost by asset, giving the
// mempool an affordability check it can run without executing the
// transaction (§4.5: "transaction_cost").
func (c *CheckedTransaction) TotalCosts(d *state.Delta) map[primitive.IbcPrefixed]primitive.Amount {
	total := make(map[primitive.IbcPrefixed]primitive.Amount)
	for _, ca := range c.checked {
		for asset, amount := range ca.EstimatedCost(d) {
			total[asset] = total[asset].Add(amount)
		}
	}
	return total
}

// New verifies tx's signature and chain id, constructs a CheckedAction per
// action (rejecting mixed action groups and unbundleable groups with more
// than one action), and returns the resulting CheckedTransaction. d is used
// only for the mutable checks each CheckedAction performs at construction;
// no state is mutated here.
func New(tx Transaction, d *state.Delta) (*CheckedTransaction, error) {
	signingBytes := tx.Body.SigningBytes()
	if !ed25519consensus.Verify(tx.VerificationKey[:], signingBytes, tx.Signature[:]) {
		return nil, fmt.Errorf("transaction signature verification failed")
	}

	chainID := ledger.GetChainID(d)
	if chainID != "" && tx.Body.Params.ChainID != chainID {
		return nil, fmt.Errorf("chain id mismatch: transaction has %q, chain is %q", tx.Body.Params.ChainID, chainID)
	}
	if len(tx.Body.Actions) == 0 {
		return nil, fmt.Errorf("transaction must carry at least one action")
	}

	signer := AddressFromVerificationKey(tx.VerificationKey)

	checked := make([]actions.CheckedAction, 0, len(tx.Body.Actions))
	var group actions.Group
	for i, raw := range tx.Body.Actions {
		ca, err := actions.New(raw, signer, d)
		if err != nil {
			return nil, fmt.Errorf("action %d: %w", i, err)
		}
		if i == 0 {
			group = ca.Group()
		} else if ca.Group() != group {
			return nil, fmt.Errorf("action %d: group %v does not match transaction group %v", i, ca.Group(), group)
		}
		checked = append(checked, ca)
	}
	if group.Unbundleable() && len(checked) != 1 {
		return nil, fmt.Errorf("group %v is unbundleable: transaction must carry exactly one action, got %d", group, len(checked))
	}

	id := sha256.Sum256(signingBytes)
	return &CheckedTransaction{
		id:      id,
		signer:  signer,
		params:  tx.Body.Params,
		checked: checked,
		raw:     tx,
	}, nil
}

// RunMutableChecks re-validates every action's mutable preconditions and the
// nonce, without mutating state. The mempool calls this on re-check (e.g.
// after a new block commits) to decide whether a held transaction is still
// executable.
func (c *CheckedTransaction) RunMutableChecks(d *state.Delta) error {
	current := ledger.GetNonce(d, c.signer)
	if c.params.Nonce != current {
		return fmt.Errorf("nonce mismatch: transaction has %d, account is at %d", c.params.Nonce, current)
	}
	for i, ca := range c.checked {
		if err := ca.RunMutableChecks(d); err != nil {
			return fmt.Errorf("action %d: %w", i, err)
		}
	}
	return nil
}

// Execute runs the transaction against d: checks and increments the
// signer's nonce, then pays fees and executes each action in order. An
// error here means the transaction must not be included in the block; the
// caller is responsible for discarding the delta's pending writes.
func (c *CheckedTransaction) Execute(ctx context.Context, d *state.Delta) error {
	current := ledger.GetNonce(d, c.signer)
	if c.params.Nonce != current {
		return fmt.Errorf("nonce mismatch: transaction has %d, account is at %d", c.params.Nonce, current)
	}
	if err := ledger.IncrementNonceChecked(d, c.signer); err != nil {
		return err
	}
	for i, ca := range c.checked {
		if err := ca.PayFeesAndExecute(ctx, d, c.signer, c.id, uint32(i)); err != nil {
			return fmt.Errorf("action %d: %w", i, err)
		}
	}
	if ledger.IsBridgeAccount(d, c.signer) {
		if err := ledger.SetLastTransactionID(d, c.signer, c.id); err != nil {
			return err
		}
	}
	return nil
}
