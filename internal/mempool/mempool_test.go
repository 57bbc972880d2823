package mempool

import (
	"context"
	"crypto/ed25519"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/astria-net/sequencer-core/internal/actions"
	"github.com/astria-net/sequencer-core/internal/fees"
	"github.com/astria-net/sequencer-core/internal/ledger"
	"github.com/astria-net/sequencer-core/internal/primitive"
	"github.com/astria-net/sequencer-core/internal/state"
	"github.com/astria-net/sequencer-core/internal/transaction"
)

func newTestDelta(t *testing.T) *state.Delta {
	t.Helper()
	store, err := state.NewStore(state.NewMemoryBackend(), state.NewMemoryBackend())
	require.NoError(t, err)
	return store.LatestSnapshot().NewDelta()
}

type testAccount struct {
	pub  ed25519.PublicKey
	priv ed25519.PrivateKey
	addr primitive.Address
}

func newTestAccount(t *testing.T) testAccount {
	t.Helper()
	pub, priv, err := ed25519.GenerateKey(nil)
	require.NoError(t, err)
	var key [32]byte
	copy(key[:], pub)
	return testAccount{pub: pub, priv: priv, addr: transaction.AddressFromVerificationKey(key)}
}

func (a testAccount) checkedTransfer(t *testing.T, d *state.Delta, nonce primitive.Nonce, to primitive.Address, amount primitive.Amount, asset primitive.IbcPrefixed) *transaction.CheckedTransaction {
	t.Helper()
	body := transaction.Body{
		Params:  transaction.Params{Nonce: nonce},
		Actions: []any{actions.Transfer{To: to, Amount: amount, Asset: asset, FeeAsset: asset}},
	}
	sig := ed25519.Sign(a.priv, body.SigningBytes())
	var sigArr [64]byte
	copy(sigArr[:], sig)
	var key [32]byte
	copy(key[:], a.pub)
	tx := transaction.Transaction{Signature: sigArr, VerificationKey: key, Body: body}
	checked, err := transaction.New(tx, d)
	require.NoError(t, err)
	return checked
}

func TestInsertAdmitsContiguousNonceToPending(t *testing.T) {
	d := newTestDelta(t)
	asset := primitive.NewIbcPrefixedDenom(primitive.IbcPrefixed{}).ToIbcPrefixed()
	fees.Allow(d, asset)
	acct := newTestAccount(t)
	ledger.PutBalance(d, acct.addr, asset, primitive.NewAmount(1000))
	to := primitive.MustNewAddress(make([]byte, primitive.AddressLength), primitive.DefaultPrefix)

	tx := acct.checkedTransfer(t, d, 0, to, primitive.NewAmount(10), asset)
	mp := New()

	balances := ledger.GetAllBalances(d, acct.addr)
	cost := tx.TotalCosts(d)
	require.NoError(t, mp.Insert(tx, ledger.GetNonce(d, acct.addr), balances, CostMap(cost)))
	require.Equal(t, StatusPending, mp.StatusOf(acct.addr, 0))
}

func TestInsertParksNonceGapThenPromotesOnFill(t *testing.T) {
	d := newTestDelta(t)
	asset := primitive.NewIbcPrefixedDenom(primitive.IbcPrefixed{}).ToIbcPrefixed()
	fees.Allow(d, asset)
	acct := newTestAccount(t)
	ledger.PutBalance(d, acct.addr, asset, primitive.NewAmount(1000))
	to := primitive.MustNewAddress(make([]byte, primitive.AddressLength), primitive.DefaultPrefix)

	mp := New()
	balances := ledger.GetAllBalances(d, acct.addr)

	txGap := acct.checkedTransfer(t, d, 1, to, primitive.NewAmount(5), asset)
	require.NoError(t, mp.Insert(txGap, ledger.GetNonce(d, acct.addr), balances, CostMap(txGap.TotalCosts(d))))
	require.Equal(t, StatusParked, mp.StatusOf(acct.addr, 1))

	txFill := acct.checkedTransfer(t, d, 0, to, primitive.NewAmount(5), asset)
	require.NoError(t, mp.Insert(txFill, ledger.GetNonce(d, acct.addr), balances, CostMap(txFill.TotalCosts(d))))

	require.Equal(t, StatusPending, mp.StatusOf(acct.addr, 0))
	require.Equal(t, StatusPending, mp.StatusOf(acct.addr, 1))
}

func TestRemoveInvalidCascadesHigherNonces(t *testing.T) {
	d := newTestDelta(t)
	asset := primitive.NewIbcPrefixedDenom(primitive.IbcPrefixed{}).ToIbcPrefixed()
	fees.Allow(d, asset)
	acct := newTestAccount(t)
	ledger.PutBalance(d, acct.addr, asset, primitive.NewAmount(1000))
	to := primitive.MustNewAddress(make([]byte, primitive.AddressLength), primitive.DefaultPrefix)

	mp := New()
	balances := ledger.GetAllBalances(d, acct.addr)

	tx0 := acct.checkedTransfer(t, d, 0, to, primitive.NewAmount(5), asset)
	tx1 := acct.checkedTransfer(t, d, 1, to, primitive.NewAmount(5), asset)
	require.NoError(t, mp.Insert(tx0, ledger.GetNonce(d, acct.addr), balances, CostMap(tx0.TotalCosts(d))))
	require.NoError(t, mp.Insert(tx1, ledger.GetNonce(d, acct.addr), balances, CostMap(tx1.TotalCosts(d))))

	mp.RemoveInvalid(acct.addr, 0, RemovalFailedPrepareProposal)

	require.Equal(t, StatusNotFound, mp.StatusOf(acct.addr, 0))
	require.Equal(t, StatusNotFound, mp.StatusOf(acct.addr, 1))

	reason, ok := mp.PopRemoval(tx0.ID())
	require.True(t, ok)
	require.Equal(t, RemovalFailedPrepareProposal, reason)

	reason, ok = mp.PopRemoval(tx1.ID())
	require.True(t, ok)
	require.Equal(t, RemovalLowerNonceInvalidated, reason)
}

func TestRunMaintenanceDemotesUnaffordablePending(t *testing.T) {
	d := newTestDelta(t)
	asset := primitive.NewIbcPrefixedDenom(primitive.IbcPrefixed{}).ToIbcPrefixed()
	fees.Allow(d, asset)
	acct := newTestAccount(t)
	ledger.PutBalance(d, acct.addr, asset, primitive.NewAmount(20))
	to := primitive.MustNewAddress(make([]byte, primitive.AddressLength), primitive.DefaultPrefix)

	mp := New()
	balances := ledger.GetAllBalances(d, acct.addr)

	tx := acct.checkedTransfer(t, d, 0, to, primitive.NewAmount(10), asset)
	require.NoError(t, mp.Insert(tx, ledger.GetNonce(d, acct.addr), balances, CostMap(tx.TotalCosts(d))))
	require.Equal(t, StatusPending, mp.StatusOf(acct.addr, 0))

	ledger.PutBalance(d, acct.addr, asset, primitive.ZeroAmount)
	reader := NewDeltaAccountReader(d)
	mp.RunMaintenance(context.Background(), reader)

	require.Equal(t, StatusParked, mp.StatusOf(acct.addr, 0))
}
