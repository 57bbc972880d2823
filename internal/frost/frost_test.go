package frost

import (
	"context"
	"crypto/ed25519"
	"crypto/rand"
	"crypto/sha512"
	"encoding/hex"
	"testing"

	"filippo.io/edwards25519"
	"github.com/stretchr/testify/require"
)

// testParticipant is a minimal in-process stand-in for a remote FROST
// participant service: it holds one Shamir share of the group secret and
// runs the real two-round protocol math, so a full Sign call can be
// checked against crypto/ed25519.Verify end to end.
type testParticipant struct {
	t     *testing.T
	id    Identifier
	share *edwards25519.Scalar
	pub   *edwards25519.Point // the group's public key, needed to recompute the challenge

	pendingD, pendingE *edwards25519.Scalar
	nextRequestID      uint32
}

func newTestParticipant(t *testing.T, id Identifier, share *edwards25519.Scalar, groupPub *edwards25519.Point) *testParticipant {
	return &testParticipant{t: t, id: id, share: share, pub: groupPub}
}

func randomScalar(t *testing.T) *edwards25519.Scalar {
	t.Helper()
	var wide [64]byte
	_, err := rand.Read(wide[:])
	require.NoError(t, err)
	s, err := new(edwards25519.Scalar).SetUniformBytes(wide[:])
	require.NoError(t, err)
	return s
}

func (p *testParticipant) GetVerifyingShare(ctx context.Context) (*GetVerifyingShareResponse, error) {
	share := new(edwards25519.Point).ScalarBaseMult(p.share)
	return &GetVerifyingShareResponse{VerifyingShare: share.Bytes()}, nil
}

func (p *testParticipant) ExecuteRoundOne(ctx context.Context) (*ExecuteRoundOneResponse, error) {
	p.pendingD = randomScalar(p.t)
	p.pendingE = randomScalar(p.t)
	p.nextRequestID++

	var commitments SigningCommitments
	copy(commitments.Hiding[:], new(edwards25519.Point).ScalarBaseMult(p.pendingD).Bytes())
	copy(commitments.Binding[:], new(edwards25519.Point).ScalarBaseMult(p.pendingE).Bytes())

	return &ExecuteRoundOneResponse{
		Commitment:        commitments.encode(),
		RequestIdentifier: p.nextRequestID,
	}, nil
}

func (p *testParticipant) ExecuteRoundTwo(ctx context.Context, req *ExecuteRoundTwoRequest) (*ExecuteRoundTwoResponse, error) {
	encodedList := make([]byte, 0, len(req.Commitments)*96)
	for _, c := range req.Commitments {
		encodedList = append(encodedList, c.ParticipantIdentifier...)
		encodedList = append(encodedList, c.Commitment...)
	}

	groupR := edwards25519.NewIdentityPoint()
	ids := make([]Identifier, 0, len(req.Commitments))
	var ownRho *edwards25519.Scalar

	for _, c := range req.Commitments {
		var id Identifier
		copy(id[:], c.ParticipantIdentifier)
		ids = append(ids, id)

		commitments, err := decodeCommitments(c.Commitment)
		if err != nil {
			return nil, err
		}
		rho, err := bindingFactor(id, req.Message, encodedList)
		if err != nil {
			return nil, err
		}
		hidingPoint, err := new(edwards25519.Point).SetBytes(commitments.Hiding[:])
		if err != nil {
			return nil, err
		}
		bindingPoint, err := new(edwards25519.Point).SetBytes(commitments.Binding[:])
		if err != nil {
			return nil, err
		}
		term := new(edwards25519.Point).ScalarMult(rho, bindingPoint)
		term.Add(term, hidingPoint)
		groupR.Add(groupR, term)

		if id == p.id {
			ownRho = rho
		}
	}
	require.NotNil(p.t, ownRho, "participant must be present in its own commitment list")

	challengeHash := sha512.New()
	challengeHash.Write(groupR.Bytes())
	challengeHash.Write(p.pub.Bytes())
	challengeHash.Write(req.Message)
	c, err := new(edwards25519.Scalar).SetUniformBytes(challengeHash.Sum(nil))
	if err != nil {
		return nil, err
	}

	lambda := lagrangeCoefficient(p.id, ids)

	share := new(edwards25519.Scalar).Multiply(p.pendingE, ownRho)
	share.Add(share, p.pendingD)
	lambdaC := new(edwards25519.Scalar).Multiply(lambda, c)
	share.Add(share, new(edwards25519.Scalar).Multiply(lambdaC, p.share))

	return &ExecuteRoundTwoResponse{SignatureShare: share.Bytes()}, nil
}

// lagrangeCoefficient computes participant self's Lagrange coefficient for
// interpolating the Shamir polynomial's constant term at x=0, over the
// participant set all.
func lagrangeCoefficient(self Identifier, all []Identifier) *edwards25519.Scalar {
	selfScalar, err := new(edwards25519.Scalar).SetCanonicalBytes(self[:])
	if err != nil {
		panic(err)
	}

	num := scalarOne()
	denom := scalarOne()
	for _, other := range all {
		if other == self {
			continue
		}
		otherScalar, err := new(edwards25519.Scalar).SetCanonicalBytes(other[:])
		if err != nil {
			panic(err)
		}
		num = new(edwards25519.Scalar).Multiply(num, otherScalar)
		diff := new(edwards25519.Scalar).Subtract(otherScalar, selfScalar)
		denom = new(edwards25519.Scalar).Multiply(denom, diff)
	}

	inv := new(edwards25519.Scalar).Invert(denom)
	return new(edwards25519.Scalar).Multiply(num, inv)
}

func scalarOne() *edwards25519.Scalar {
	var one [32]byte
	one[0] = 1
	s, err := new(edwards25519.Scalar).SetCanonicalBytes(one[:])
	if err != nil {
		panic(err)
	}
	return s
}

// shamirGroup builds a 2-of-3 Shamir-shared ed25519 keypair and the three
// in-process participants holding one share each.
func shamirGroup(t *testing.T) (PublicKeyPackage, []ParticipantClient) {
	t.Helper()
	secret := randomScalar(t)
	coeff := randomScalar(t)
	groupPub := new(edwards25519.Point).ScalarBaseMult(secret)

	polyAt := func(x *edwards25519.Scalar) *edwards25519.Scalar {
		term := new(edwards25519.Scalar).Multiply(coeff, x)
		return new(edwards25519.Scalar).Add(secret, term)
	}

	ids := []Identifier{IdentifierFromIndex(1), IdentifierFromIndex(2), IdentifierFromIndex(3)}
	pkg := PublicKeyPackage{
		VerifyingKey:    groupPub.Bytes(),
		VerifyingShares: make(map[string]hexBytes, len(ids)),
	}
	clients := make([]ParticipantClient, 0, len(ids))

	for _, id := range ids {
		xScalar, err := new(edwards25519.Scalar).SetCanonicalBytes(id[:])
		require.NoError(t, err)
		share := polyAt(xScalar)

		p := newTestParticipant(t, id, share, groupPub)
		clients = append(clients, p)
		pkg.VerifyingShares[hex.EncodeToString(id[:])] = new(edwards25519.Point).ScalarBaseMult(share).Bytes()
	}

	return pkg, clients
}

func TestSignProducesVerifiableSignature(t *testing.T) {
	pkg, clients := shamirGroup(t)

	signer, err := NewSigner(2, pkg, clients, nil)
	require.NoError(t, err)
	require.NoError(t, signer.InitializeParticipantClients(context.Background()))

	message := []byte("transfer 10 nria from alice to bob at nonce 0")
	sig, err := signer.Sign(context.Background(), message)
	require.NoError(t, err)
	require.Len(t, sig, 64)
	require.True(t, ed25519.Verify(signer.VerifyingKey(), message, sig))
}

func TestNewSignerRejectsTooFewParticipantClients(t *testing.T) {
	pkg, clients := shamirGroup(t)

	_, err := NewSigner(4, pkg, clients, nil)
	require.Error(t, err)
}

func TestNewSignerRejectsZeroMinSigners(t *testing.T) {
	pkg, clients := shamirGroup(t)

	_, err := NewSigner(0, pkg, clients, nil)
	require.Error(t, err)
}
