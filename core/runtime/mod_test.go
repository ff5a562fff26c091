package runtime

import (
	"path/filepath"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
	"go.dedis.ch/cnotes/core/execution"
	"go.dedis.ch/cnotes/core/execution/native"
	"go.dedis.ch/cnotes/core/store"
	"go.dedis.ch/cnotes/core/store/kv"
	"go.dedis.ch/cnotes/core/txn"
	"go.dedis.ch/cnotes/core/txn/signed"
	"go.dedis.ch/cnotes/crypto"
	"go.dedis.ch/cnotes/crypto/ed25519"
	"go.dedis.ch/cnotes/testing/fake"
	"golang.org/x/xerrors"
)

func TestRuntime_Execute(t *testing.T) {
	rt := makeRuntime(t)
	signer := ed25519.NewSigner()

	accepted := testutil.ToFloat64(promTxs.WithLabelValues(statusAccepted))

	res, err := rt.Execute(makeTx(t, signer, 0, "a"))
	require.NoError(t, err)
	require.True(t, res.Accepted)

	require.Equal(t, accepted+1, testutil.ToFloat64(promTxs.WithLabelValues(statusAccepted)))

	err = rt.View(func(snap store.Readable) error {
		value, err := snap.Get([]byte("a"))
		require.NoError(t, err)
		require.Equal(t, []byte("a"), value)

		return nil
	})
	require.NoError(t, err)

	nonce, err := rt.GetNonce(signer.GetPublicKey())
	require.NoError(t, err)
	require.Equal(t, uint64(1), nonce)
}

func TestRuntime_ExecuteRefused(t *testing.T) {
	rt := makeRuntime(t)
	signer := ed25519.NewSigner()

	logger, check := fake.CheckLog("transaction refused")
	rt.logger = logger

	refused := testutil.ToFloat64(promTxs.WithLabelValues(statusRefused))

	// The contract writes the key before refusing the transaction.
	res, err := rt.Execute(makeTx(t, signer, 0, "fail"))
	require.NoError(t, err)
	require.False(t, res.Accepted)
	require.Equal(t, fake.GetError().Error(), res.Message)
	require.True(t, xerrors.Is(res.Err, fake.GetError()))

	require.Equal(t, refused+1, testutil.ToFloat64(promTxs.WithLabelValues(statusRefused)))
	check(t)

	err = rt.View(func(snap store.Readable) error {
		value, err := snap.Get([]byte("fail"))
		require.NoError(t, err)
		require.Nil(t, value)

		return nil
	})
	require.NoError(t, err)

	// A refused transaction does not consume the nonce.
	nonce, err := rt.GetNonce(signer.GetPublicKey())
	require.NoError(t, err)
	require.Equal(t, uint64(0), nonce)

	res, err = rt.Execute(makeTx(t, signer, 0, "b"))
	require.NoError(t, err)
	require.True(t, res.Accepted)
}

func TestRuntime_ExecuteFailures(t *testing.T) {
	rt := makeRuntime(t)
	signer := ed25519.NewSigner()

	logger, buffer := fake.NewBufferLogger()
	rt.logger = logger

	tx, err := signed.NewTransaction(0, signer.GetPublicKey(), signed.WithArg(native.ContractArg, []byte("test")))
	require.NoError(t, err)

	_, err = rt.Execute(tx)
	require.EqualError(t, err, "failed to verify transaction: missing signature")

	_, err = rt.Execute(makeTx(t, signer, 1, "a"))
	require.EqualError(t, err, "failed to update db: expected 0, got 1: invalid nonce")
	require.True(t, xerrors.Is(err, ErrInvalidNonce))
	require.Contains(t, buffer.String(), `"level":"warn"`)
	require.Contains(t, buffer.String(), `"message":"transaction failed"`)

	tx, err = signed.NewTransaction(0, signer.GetPublicKey(), signed.WithArg(native.ContractArg, []byte("unknown")))
	require.NoError(t, err)
	require.NoError(t, tx.Sign(signer))

	_, err = rt.Execute(tx)
	require.EqualError(t, err, "failed to update db: failed to execute: unknown contract 'unknown'")

	_, err = rt.Execute(makeTx(t, signer, 0, "a"))
	require.NoError(t, err)

	// Replaying a transaction is refused as the nonce moved forward.
	_, err = rt.Execute(makeTx(t, signer, 0, "a"))
	require.True(t, xerrors.Is(err, ErrInvalidNonce))
}

func TestRuntime_Manager(t *testing.T) {
	rt := makeRuntime(t)
	signer := ed25519.NewSigner()

	mgr := signed.NewManager(signer, rt)
	require.NoError(t, mgr.Sync())

	for _, key := range []string{"a", "b"} {
		tx, err := mgr.Make(
			txnArg(native.ContractArg, "test"),
			txnArg("key", key),
		)
		require.NoError(t, err)

		res, err := rt.Execute(tx.(*signed.Transaction))
		require.NoError(t, err)
		require.True(t, res.Accepted)
	}

	nonce, err := rt.GetNonce(signer.GetPublicKey())
	require.NoError(t, err)
	require.Equal(t, uint64(2), nonce)

	_, err = rt.GetNonce(fake.NewBadPublicKey())
	require.EqualError(t, err, fake.Err("failed to read nonce: failed to marshal identity"))
}

// -----------------------------------------------------------------------------
// Utility functions

func TestRuntime_Watch(t *testing.T) {
	rt := makeRuntime(t)
	signer := ed25519.NewSigner()

	obs := &fakeObserver{}
	rt.Watch(obs)

	_, err := rt.Execute(makeTx(t, signer, 0, "a"))
	require.NoError(t, err)

	// Refused transactions are not announced.
	_, err = rt.Execute(makeTx(t, signer, 1, "fail"))
	require.NoError(t, err)

	require.Len(t, obs.events, 1)

	evt, ok := obs.events[0].(Executed)
	require.True(t, ok)
	require.Equal(t, uint64(0), evt.Nonce)
	require.True(t, evt.Identity.Equal(signer.GetPublicKey()))
	require.True(t, evt.Result.Accepted)

	rt.Unwatch(obs)

	_, err = rt.Execute(makeTx(t, signer, 1, "b"))
	require.NoError(t, err)
	require.Len(t, obs.events, 1)
}

func makeRuntime(t *testing.T) *Runtime {
	db, err := kv.New(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)

	t.Cleanup(func() { db.Close() })

	srvc := native.NewExecution()
	srvc.Set("test", testContract{})

	rt, err := NewRuntime(db, srvc)
	require.NoError(t, err)

	return rt
}

func makeTx(t *testing.T, signer crypto.Signer, nonce uint64, key string) *signed.Transaction {
	tx, err := signed.NewTransaction(nonce, signer.GetPublicKey(),
		signed.WithArg(native.ContractArg, []byte("test")),
		signed.WithArg("key", []byte(key)),
	)
	require.NoError(t, err)

	require.NoError(t, tx.Sign(signer))

	return tx
}

func txnArg(key, value string) txn.Arg {
	return txn.Arg{Key: key, Value: []byte(value)}
}

// testContract writes the key argument with itself as value, and refuses the
// transaction after the write when the key is "fail".
type testContract struct{}

func (testContract) Execute(snap store.Snapshot, step execution.Step) error {
	key := step.Current.GetArg("key")

	err := snap.Set(key, key)
	if err != nil {
		return err
	}

	if string(key) == "fail" {
		return fake.GetError()
	}

	return nil
}

func (testContract) UID() string {
	return "TEST"
}

type fakeObserver struct {
	events []interface{}
}

func (o *fakeObserver) NotifyCallback(evt interface{}) {
	o.events = append(o.events, evt)
}
