package notes

import (
	"encoding/hex"

	"go.dedis.ch/cnotes/core/access"
	"go.dedis.ch/cnotes/crypto"
	"go.dedis.ch/cnotes/crypto/ed25519"
	"golang.org/x/xerrors"
)

// Leaf is the digest of a record stored in a tree.
type Leaf [32]byte

// HashLeaf returns the leaf of a record. It is the Keccak-256 digest of the
// content followed by the identity of the owner, or the sender for a message.
func HashLeaf(content string, identity Identity) Leaf {
	return crypto.Keccak([]byte(content), identity[:])
}

// String implements fmt.Stringer. It returns the hexadecimal representation of
// the leaf.
func (l Leaf) String() string {
	return hex.EncodeToString(l[:])
}

// Identity is the canonical encoding of an account, which is the compressed
// Ed25519 point of its public key.
type Identity [ed25519.PublicKeySize]byte

// IdentityOf returns the identity of the transaction signer. Only Ed25519
// public keys are supported.
func IdentityOf(ident access.Identity) (Identity, error) {
	var id Identity

	data, err := ident.MarshalBinary()
	if err != nil {
		return id, xerrors.Errorf("failed to marshal identity: %v", err)
	}

	if !ed25519.IsPoint(data) {
		return id, xerrors.Errorf("identity '%v' is not an Ed25519 key: %w", ident, ErrUnauthorized)
	}

	copy(id[:], data)

	return id, nil
}

// ParseIdentity returns the identity encoded in the data, which must be a point
// of the curve.
func ParseIdentity(data []byte) (Identity, error) {
	var id Identity

	if !ed25519.IsPoint(data) {
		return id, xerrors.Errorf("invalid identity %x: %w", data, ErrInvalidParameter)
	}

	copy(id[:], data)

	return id, nil
}

// String implements fmt.Stringer. It returns the hexadecimal representation of
// the identity.
func (id Identity) String() string {
	return hex.EncodeToString(id[:])
}
