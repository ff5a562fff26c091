package notes

import (
	"fmt"

	"golang.org/x/xerrors"
)

var (
	// ErrInvalidParameter is returned when an argument is out of range or
	// malformed.
	ErrInvalidParameter = xerrors.New("invalid parameter")

	// ErrIdenticalContent is returned when an update would not change the
	// record.
	ErrIdenticalContent = xerrors.New("identical content")

	// ErrMissingArg is returned when a transaction lacks a required argument.
	ErrMissingArg = xerrors.New("missing argument")

	// ErrUnauthorized is returned when the signer cannot own records.
	ErrUnauthorized = xerrors.New("unauthorized")

	// ErrVerificationFailed is matched by every VerificationError.
	ErrVerificationFailed = xerrors.New("verification failed")

	// ErrEngine is matched by every EngineError.
	ErrEngine = xerrors.New("engine failure")
)

// VerificationError is returned when the tree engine does not confirm the
// claimed record at the index for the claimed root. The caller should fetch a
// fresh root and index before retrying.
type VerificationError struct {
	Err error
}

// Error implements error.
func (e VerificationError) Error() string {
	return fmt.Sprintf("verification failed: %v", e.Err)
}

// Unwrap returns the error of the engine.
func (e VerificationError) Unwrap() error {
	return e.Err
}

// Is returns true for ErrVerificationFailed.
func (e VerificationError) Is(target error) bool {
	return target == ErrVerificationFailed
}

// EngineError is returned when the tree engine or the event log fails. The
// error of the collaborator is kept verbatim.
type EngineError struct {
	Op  string
	Err error
}

// Error implements error.
func (e EngineError) Error() string {
	return fmt.Sprintf("engine failed to %s: %v", e.Op, e.Err)
}

// Unwrap returns the error of the collaborator.
func (e EngineError) Unwrap() error {
	return e.Err
}

// Is returns true for ErrEngine.
func (e EngineError) Is(target error) bool {
	return target == ErrEngine
}

// Class is the category of an error returned by the contract.
type Class int

const (
	// Unknown is the class of errors that do not come from the contract.
	Unknown Class = iota

	// Validation is the class of errors caused by the input alone. They are
	// detected before any call to the engine.
	Validation

	// Consistency is the class of errors caused by a stale or wrong view of
	// the tree.
	Consistency

	// Engine is the class of errors of the collaborators.
	Engine
)

// String implements fmt.Stringer.
func (c Class) String() string {
	switch c {
	case Validation:
		return "validation"
	case Consistency:
		return "consistency"
	case Engine:
		return "engine"
	default:
		return "unknown"
	}
}

// ClassOf returns the class of the error.
func ClassOf(err error) Class {
	switch {
	case err == nil:
		return Unknown
	case xerrors.Is(err, ErrVerificationFailed):
		return Consistency
	case xerrors.Is(err, ErrEngine):
		return Engine
	case xerrors.Is(err, ErrInvalidParameter),
		xerrors.Is(err, ErrIdenticalContent),
		xerrors.Is(err, ErrMissingArg),
		xerrors.Is(err, ErrUnauthorized):
		return Validation
	default:
		return Unknown
	}
}
