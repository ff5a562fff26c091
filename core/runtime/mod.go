// Package runtime implements the host that executes signed transactions
// against the local database.
//
// A transaction is executed inside a single database transaction: if the
// contract refuses it, or anything fails on the way, every write of the
// execution is discarded. Executions are serialized by the database, which
// allows a single writer at a time.
package runtime

import (
	"encoding/binary"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/xid"
	"github.com/rs/zerolog"
	"go.dedis.ch/cnotes"
	"go.dedis.ch/cnotes/core"
	"go.dedis.ch/cnotes/core/access"
	"go.dedis.ch/cnotes/core/execution"
	"go.dedis.ch/cnotes/core/store"
	"go.dedis.ch/cnotes/core/store/kv"
	"go.dedis.ch/cnotes/core/store/prefixed"
	"go.dedis.ch/cnotes/core/txn"
	"golang.org/x/xerrors"
)

var (
	// ErrInvalidNonce is returned when the nonce of a transaction is not the
	// next one of its identity.
	ErrInvalidNonce = xerrors.New("invalid nonce")

	// errRefused makes the database discard the writes of a refused
	// transaction.
	errRefused = xerrors.New("transaction refused")
)

var promTxs = prometheus.NewCounterVec(prometheus.CounterOpts{
	Name: "cnotes_runtime_transactions_total",
	Help: "total number of transactions processed by the runtime",
}, []string{"status"})

func init() {
	cnotes.PromCollectors = append(cnotes.PromCollectors, promTxs)
}

const (
	statusAccepted = "accepted"
	statusRefused  = "refused"
	statusFailed   = "failed"
)

// Transaction is a transaction that can prove it has been signed by its
// identity.
type Transaction interface {
	txn.Transaction

	Verify() error
}

// Executed is the event sent to the observers of the runtime once a
// transaction has been committed.
type Executed struct {
	Identity access.Identity
	Nonce    uint64
	Result   execution.Result
}

// Runtime executes transactions on a database.
//
// - implements signed.Client
type Runtime struct {
	db      kv.DB
	bucket  []byte
	exec    execution.Service
	watcher core.Observable
	logger  zerolog.Logger
}

// Option is the type of options to create a runtime.
type Option func(*Runtime)

// WithBucket sets the bucket of the database that holds the state.
func WithBucket(name []byte) Option {
	return func(r *Runtime) {
		r.bucket = name
	}
}

// NewRuntime creates a new runtime and makes sure the state bucket exists.
func NewRuntime(db kv.DB, exec execution.Service, opts ...Option) (*Runtime, error) {
	r := &Runtime{
		db:      db,
		bucket:  []byte("cnotes"),
		exec:    exec,
		watcher: core.NewWatcher(),
		logger:  cnotes.Logger.With().Str("component", "runtime").Logger(),
	}

	for _, opt := range opts {
		opt(r)
	}

	err := db.Update(r.bucket, func(kv.Bucket) error { return nil })
	if err != nil {
		return nil, xerrors.Errorf("failed to create bucket: %v", err)
	}

	return r, nil
}

// Execute verifies the transaction and executes it. The result is not accepted
// if the contract refused the transaction, in which case nothing is written
// and the result holds the error of the contract. An error is returned when
// the transaction could not be executed at all.
func (r *Runtime) Execute(tx Transaction) (execution.Result, error) {
	logger := r.logger.With().Stringer("tx", xid.New()).Logger()

	err := tx.Verify()
	if err != nil {
		promTxs.WithLabelValues(statusFailed).Inc()
		return execution.Result{}, xerrors.Errorf("failed to verify transaction: %v", err)
	}

	var res execution.Result

	err = r.db.Update(r.bucket, func(b kv.Bucket) error {
		snap := kv.NewSnapshot(b)

		nonce, err := readNonce(snap, tx.GetIdentity())
		if err != nil {
			return err
		}

		if tx.GetNonce() != nonce {
			return xerrors.Errorf("expected %d, got %d: %w", nonce, tx.GetNonce(), ErrInvalidNonce)
		}

		res, err = r.exec.Execute(snap, execution.Step{Current: tx})
		if err != nil {
			return xerrors.Errorf("failed to execute: %v", err)
		}

		if !res.Accepted {
			return errRefused
		}

		return writeNonce(snap, tx.GetIdentity(), nonce+1)
	})

	if err == errRefused {
		promTxs.WithLabelValues(statusRefused).Inc()

		logger.Info().Str("reason", res.Message).Msg("transaction refused")

		return res, nil
	}

	if err != nil {
		promTxs.WithLabelValues(statusFailed).Inc()

		logger.Warn().Err(err).Msg("transaction failed")

		return execution.Result{}, xerrors.Errorf("failed to update db: %w", err)
	}

	promTxs.WithLabelValues(statusAccepted).Inc()

	logger.Debug().Uint64("nonce", tx.GetNonce()).Msg("transaction accepted")

	r.watcher.Notify(Executed{
		Identity: tx.GetIdentity(),
		Nonce:    tx.GetNonce(),
		Result:   res,
	})

	return res, nil
}

// Watch registers an observer that is notified with an Executed event after
// each accepted transaction.
func (r *Runtime) Watch(obs core.Observer) {
	r.watcher.Add(obs)
}

// Unwatch removes the observer.
func (r *Runtime) Unwatch(obs core.Observer) {
	r.watcher.Remove(obs)
}

// View runs the function with a read-only view of the state.
func (r *Runtime) View(fn func(store.Readable) error) error {
	return r.db.View(r.bucket, func(b kv.Bucket) error {
		return fn(kv.NewSnapshot(b))
	})
}

// GetNonce implements signed.Client. It returns the nonce the next transaction
// of the identity must use.
func (r *Runtime) GetNonce(ident access.Identity) (uint64, error) {
	var nonce uint64

	err := r.View(func(snap store.Readable) error {
		var err error
		nonce, err = readNonce(snap, ident)

		return err
	})

	if err != nil {
		return 0, xerrors.Errorf("failed to read nonce: %v", err)
	}

	return nonce, nil
}

var noncePrefix = []byte("nonces")

func readNonce(snap store.Readable, ident access.Identity) (uint64, error) {
	key, err := ident.MarshalBinary()
	if err != nil {
		return 0, xerrors.Errorf("failed to marshal identity: %v", err)
	}

	value, err := prefixed.NewReadable(noncePrefix, snap).Get(key)
	if err != nil {
		return 0, xerrors.Errorf("failed to read nonce: %v", err)
	}

	if len(value) != 8 {
		return 0, nil
	}

	return binary.LittleEndian.Uint64(value), nil
}

func writeNonce(snap store.Snapshot, ident access.Identity, nonce uint64) error {
	key, err := ident.MarshalBinary()
	if err != nil {
		return xerrors.Errorf("failed to marshal identity: %v", err)
	}

	value := make([]byte, 8)
	binary.LittleEndian.PutUint64(value, nonce)

	err = prefixed.NewSnapshot(noncePrefix, snap).Set(key, value)
	if err != nil {
		return xerrors.Errorf("failed to write nonce: %v", err)
	}

	return nil
}
