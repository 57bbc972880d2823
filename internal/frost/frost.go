package frost

import (
	"context"
	"crypto/ed25519"
	"crypto/sha512"
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"filippo.io/edwards25519"

	"github.com/astria-net/sequencer-core/internal/primitive"
	"github.com/astria-net/sequencer-core/internal/transaction"
)

// SigningCommitments is one participant's round-1 nonce commitment pair:
// hiding and binding points on the curve, each 32-byte compressed.
type SigningCommitments struct {
	Hiding  [32]byte
	Binding [32]byte
}

func decodeCommitments(raw []byte) (SigningCommitments, error) {
	if len(raw) != 64 {
		return SigningCommitments{}, fmt.Errorf("signing commitments must be 64 bytes, got %d", len(raw))
	}
	var c SigningCommitments
	copy(c.Hiding[:], raw[:32])
	copy(c.Binding[:], raw[32:])
	return c, nil
}

func (c SigningCommitments) encode() []byte {
	out := make([]byte, 0, 64)
	out = append(out, c.Hiding[:]...)
	out = append(out, c.Binding[:]...)
	return out
}

type roundOneResult struct {
	id            Identifier
	commitments   SigningCommitments
	rawCommitment []byte
	requestID     uint32
}

// Signer is the coordinator side of one threshold-signing group: it holds
// no secret key material itself, only the group's public key package and
// gRPC handles to the remote participants that each hold one key share.
type Signer struct {
	minSigners int
	pubKeys    PublicKeyPackage
	address    primitive.Address
	rawClients []ParticipantClient
	clients    map[Identifier]ParticipantClient
	logger     *slog.Logger
}

// NewSigner validates the builder inputs and returns a Signer ready to
// have InitializeParticipantClients called on it, mirroring the original's
// Builder::try_build. The signer's sequencer address is derived from the
// group's verifying key exactly as an ordinary single-signer account's
// address is.
func NewSigner(minSigners int, pubKeys PublicKeyPackage, rawClients []ParticipantClient, logger *slog.Logger) (*Signer, error) {
	if minSigners <= 0 {
		return nil, fmt.Errorf("minimum number of signers must be greater than 0")
	}
	if len(rawClients) < minSigners {
		return nil, fmt.Errorf("not enough participant clients; need at least %d, but only %d were provided", minSigners, len(rawClients))
	}
	if len(pubKeys.VerifyingKey) != 32 {
		return nil, fmt.Errorf("verifying key must be 32 bytes, got %d", len(pubKeys.VerifyingKey))
	}
	if logger == nil {
		logger = slog.Default()
	}
	var key [32]byte
	copy(key[:], pubKeys.VerifyingKey)

	return &Signer{
		minSigners: minSigners,
		pubKeys:    pubKeys,
		address:    transaction.AddressFromVerificationKey(key),
		rawClients: rawClients,
		clients:    make(map[Identifier]ParticipantClient, len(rawClients)),
		logger:     logger,
	}, nil
}

// Address returns the sequencer account address this signer acts for.
func (s *Signer) Address() primitive.Address {
	return s.address
}

// VerifyingKey returns the group's ordinary ed25519 public key: the
// aggregated signature this Signer produces verifies against it exactly
// as any other ed25519 signature would.
func (s *Signer) VerifyingKey() ed25519.PublicKey {
	return ed25519.PublicKey(s.pubKeys.VerifyingKey)
}

// InitializeParticipantClients fetches each configured client's verifying
// share and maps it back to the identifier recorded in the public key
// package, so later rounds can be addressed by identifier rather than
// connection order.
func (s *Signer) InitializeParticipantClients(ctx context.Context) error {
	for _, client := range s.rawClients {
		resp, err := client.GetVerifyingShare(ctx)
		if err != nil {
			return fmt.Errorf("failed to get verifying share: %w", err)
		}
		id, ok := s.pubKeys.IdentifierForShare(resp.VerifyingShare)
		if !ok {
			return fmt.Errorf("failed to find identifier for verifying share")
		}
		s.clients[id] = client
	}
	if len(s.clients) != len(s.pubKeys.VerifyingShares) {
		return fmt.Errorf("failed to initialize all participant clients; are there duplicate endpoints?")
	}
	return nil
}

// Sign drives the two-round FROST-Ed25519 protocol over message and
// returns an aggregated signature that verifies against s.VerifyingKey().
func (s *Signer) Sign(ctx context.Context, message []byte) ([]byte, error) {
	roundOne, err := s.executeRoundOne(ctx)
	if err != nil {
		return nil, fmt.Errorf("round one failed: %w", err)
	}
	sort.Slice(roundOne, func(i, j int) bool {
		return string(roundOne[i].id[:]) < string(roundOne[j].id[:])
	})

	sigShares, err := s.executeRoundTwo(ctx, roundOne, message)
	if err != nil {
		return nil, fmt.Errorf("round two failed: %w", err)
	}

	sig, err := s.aggregate(roundOne, sigShares, message)
	if err != nil {
		return nil, fmt.Errorf("failed aggregating round one and round two results into a signature: %w", err)
	}
	return sig, nil
}

func (s *Signer) executeRoundOne(ctx context.Context) ([]roundOneResult, error) {
	type outcome struct {
		res roundOneResult
		err error
	}
	results := make(chan outcome, len(s.clients))

	var wg sync.WaitGroup
	for id, client := range s.clients {
		wg.Add(1)
		go func(id Identifier, client ParticipantClient) {
			defer wg.Done()
			resp, err := client.ExecuteRoundOne(ctx)
			if err != nil {
				results <- outcome{err: fmt.Errorf("participant %s: %w", id, err)}
				return
			}
			commitments, err := decodeCommitments(resp.Commitment)
			if err != nil {
				results <- outcome{err: fmt.Errorf("participant %s: %w", id, err)}
				return
			}
			results <- outcome{res: roundOneResult{
				id:            id,
				commitments:   commitments,
				rawCommitment: resp.Commitment,
				requestID:     resp.RequestIdentifier,
			}}
		}(id, client)
	}
	go func() {
		wg.Wait()
		close(results)
	}()

	var out []roundOneResult
	for o := range results {
		if o.err != nil {
			s.logger.Warn("failed to get part 1 response for one of the threshold participants; dropping its response and continuing with the others", "error", o.err)
			continue
		}
		out = append(out, o.res)
	}

	if len(out) < s.minSigners {
		return nil, fmt.Errorf("not enough part 1 responses received; want at least %d, got %d", s.minSigners, len(out))
	}
	return out, nil
}

func (s *Signer) executeRoundTwo(ctx context.Context, roundOne []roundOneResult, message []byte) (map[Identifier][]byte, error) {
	commitmentList := make([]CommitmentWithIdentifier, 0, len(roundOne))
	for _, r := range roundOne {
		commitmentList = append(commitmentList, CommitmentWithIdentifier{
			ParticipantIdentifier: r.id[:],
			Commitment:            r.rawCommitment,
		})
	}

	type outcome struct {
		id    Identifier
		share []byte
		err   error
	}
	results := make(chan outcome, len(roundOne))

	var wg sync.WaitGroup
	for _, r := range roundOne {
		wg.Add(1)
		go func(r roundOneResult) {
			defer wg.Done()
			client := s.clients[r.id]
			resp, err := client.ExecuteRoundTwo(ctx, &ExecuteRoundTwoRequest{
				RequestIdentifier: r.requestID,
				Message:           message,
				Commitments:       commitmentList,
			})
			if err != nil {
				results <- outcome{err: fmt.Errorf("participant %s: %w", r.id, err)}
				return
			}
			results <- outcome{id: r.id, share: resp.SignatureShare}
		}(r)
	}
	go func() {
		wg.Wait()
		close(results)
	}()

	shares := make(map[Identifier][]byte, len(roundOne))
	for o := range results {
		if o.err != nil {
			s.logger.Warn("failed to get part 2 response for one of the threshold participants; dropping it and continuing with the rest", "error", o.err)
			continue
		}
		shares[o.id] = o.share
	}

	if len(shares) < s.minSigners {
		return nil, fmt.Errorf("not enough part 2 signature shares received; want at least %d, got %d", s.minSigners, len(shares))
	}
	return shares, nil
}

// aggregate combines round-1 commitments and round-2 signature shares
// into a standard 64-byte ed25519 signature (R || s), following
// FROST-Ed25519's binding-factor-weighted group commitment. Each
// participant already folded the matching Fiat-Shamir challenge and its
// own Lagrange coefficient into its signature share, so aggregation here
// is just the group commitment sum and the share sum — the result
// verifies with crypto/ed25519.Verify against the group's public key
// unmodified.
func (s *Signer) aggregate(roundOne []roundOneResult, sigShares map[Identifier][]byte, message []byte) ([]byte, error) {
	encodedList := encodeCommitmentList(roundOne)

	groupR := edwards25519.NewIdentityPoint()
	for _, r := range roundOne {
		rho, err := bindingFactor(r.id, message, encodedList)
		if err != nil {
			return nil, err
		}
		hidingPoint, err := new(edwards25519.Point).SetBytes(r.commitments.Hiding[:])
		if err != nil {
			return nil, fmt.Errorf("participant %s hiding commitment is not a valid point: %w", r.id, err)
		}
		bindingPoint, err := new(edwards25519.Point).SetBytes(r.commitments.Binding[:])
		if err != nil {
			return nil, fmt.Errorf("participant %s binding commitment is not a valid point: %w", r.id, err)
		}
		term := new(edwards25519.Point).ScalarMult(rho, bindingPoint)
		term.Add(term, hidingPoint)
		groupR.Add(groupR, term)
	}
	rBytes := groupR.Bytes()

	total := edwards25519.NewScalar()
	for _, r := range roundOne {
		share, ok := sigShares[r.id]
		if !ok {
			continue
		}
		scalarShare, err := new(edwards25519.Scalar).SetCanonicalBytes(share)
		if err != nil {
			return nil, fmt.Errorf("participant %s signature share is not a canonical scalar: %w", r.id, err)
		}
		total.Add(total, scalarShare)
	}

	sig := make([]byte, 0, 64)
	sig = append(sig, rBytes...)
	sig = append(sig, total.Bytes()...)
	return sig, nil
}

func encodeCommitmentList(roundOne []roundOneResult) []byte {
	var buf []byte
	for _, r := range roundOne {
		buf = append(buf, r.id[:]...)
		buf = append(buf, r.commitments.encode()...)
	}
	return buf
}

// bindingFactor derives participant id's round-2 binding factor rho_i via
// wide reduction of a domain-separated transcript hash, the role
// frost-ed25519's own rho-binding-factor computation plays.
func bindingFactor(id Identifier, message, encodedCommitmentList []byte) (*edwards25519.Scalar, error) {
	h := sha512.New()
	h.Write([]byte("FROST-ED25519-SHA512-v1:rho"))
	h.Write(id[:])
	h.Write(message)
	h.Write(encodedCommitmentList)
	sum := h.Sum(nil)
	rho, err := new(edwards25519.Scalar).SetUniformBytes(sum)
	if err != nil {
		return nil, fmt.Errorf("deriving binding factor: %w", err)
	}
	return rho, nil
}
