package crypto

import (
	"crypto/sha256"
	"hash"

	"golang.org/x/crypto/sha3"
)

// HashAlgorithm is the identifier of an algorithm supported by the factory.
type HashAlgorithm int

const (
	// Sha256 is the SHA-256 algorithm.
	Sha256 HashAlgorithm = iota

	// Keccak256 is the original Keccak with 256 bits output, as used by
	// Ethereum and Solana. It differs from SHA3-256 by its padding.
	Keccak256
)

// hashFactory is a hash factory for the supported algorithms.
//
// - implements crypto.HashFactory
type hashFactory struct {
	hashType HashAlgorithm
}

// NewHashFactory returns a new instance of the factory.
func NewHashFactory(a HashAlgorithm) HashFactory {
	return hashFactory{a}
}

// New implements crypto.HashFactory. It returns a new Hash instance.
func (f hashFactory) New() hash.Hash {
	switch f.hashType {
	case Sha256:
		return sha256.New()
	case Keccak256:
		return sha3.NewLegacyKeccak256()
	default:
		panic("unknown hash type")
	}
}

// Keccak computes the Keccak-256 digest of the concatenation of the chunks.
func Keccak(chunks ...[]byte) [32]byte {
	h := sha3.NewLegacyKeccak256()
	for _, chunk := range chunks {
		h.Write(chunk)
	}

	var digest [32]byte
	copy(digest[:], h.Sum(nil))

	return digest
}
