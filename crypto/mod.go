// Package crypto defines the cryptographic primitives used by the module.
//
// Identities are public keys that can verify signatures. The hash factories
// provide the digests used for the transactions, the program-derived
// addresses and the Merkle tree.
package crypto

import (
	"encoding"
	"hash"
)

// HashFactory is an interface to produce a hash digest.
type HashFactory interface {
	New() hash.Hash
}

// PublicKey is a public identity that can be used to verify a signature.
type PublicKey interface {
	encoding.BinaryMarshaler
	encoding.TextMarshaler

	// Verify returns nil if the signature matches the message, otherwise an
	// error.
	Verify(msg []byte, s Signature) error

	// Equal returns true when the other object is the same public key.
	Equal(other interface{}) bool
}

// Signature is a verifiable element for a unique message.
type Signature interface {
	encoding.BinaryMarshaler

	// Equal returns true when both signatures are the same.
	Equal(other Signature) bool
}

// PublicKeyFactory is a factory to create public keys.
type PublicKeyFactory interface {
	FromBytes(data []byte) (PublicKey, error)
}

// SignatureFactory is a factory to create signatures.
type SignatureFactory interface {
	SignatureOf(data []byte) (Signature, error)
}

// Signer provides the primitives to sign and verify signatures.
type Signer interface {
	encoding.BinaryMarshaler

	GetPublicKeyFactory() PublicKeyFactory
	GetSignatureFactory() SignatureFactory
	GetPublicKey() PublicKey
	Sign(msg []byte) (Signature, error)
}
