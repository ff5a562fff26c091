// Package access defines the abstraction of the identities that can act on
// the smart contracts.
package access

import "encoding"

// Identity is an abstraction to uniquely identify a signer. The binary form
// is the canonical encoding of the identity, and the one that contracts bind
// to their state.
type Identity interface {
	encoding.BinaryMarshaler
	encoding.TextMarshaler

	// Equal returns true if the other object is the same identity.
	Equal(other interface{}) bool
}
