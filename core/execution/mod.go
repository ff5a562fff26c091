// Package execution defines the primitives to run a transaction against a
// snapshot of the store.
package execution

import (
	"go.dedis.ch/cnotes/core/store"
	"go.dedis.ch/cnotes/core/txn"
)

// Step is the context of a transaction execution.
type Step struct {
	// Current is the transaction being executed.
	Current txn.Transaction
}

// Result is the result of a transaction execution.
type Result struct {
	// Accepted is the success state of the transaction.
	Accepted bool

	// Message gives a change to the execution to explain why a transaction has
	// failed.
	Message string

	// Err is the error returned by the contract when the transaction is
	// refused. It keeps the error chain so that a caller can classify it.
	Err error
}

// Service is the execution service that defines the primitives to execute a
// transaction.
type Service interface {
	// Execute must apply the transaction to the snapshot and return the
	// result of it.
	Execute(snap store.Snapshot, step Step) (Result, error)
}
