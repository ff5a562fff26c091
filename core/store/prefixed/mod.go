// Package prefixed implements a store snapshot that isolates the keys of a
// namespace from the others.
//
// Each key is replaced by the SHA-256 digest of the length-prefixed namespace
// and key, so that two namespaces can never produce the same key.
package prefixed

import (
	"encoding/binary"

	"go.dedis.ch/cnotes/core/store"
	"go.dedis.ch/cnotes/crypto"
)

type readable struct {
	store.Readable
	prefix []byte
}

type writable struct {
	store.Writable
	prefix []byte
}

type snapshot struct {
	*writable
	*readable
}

// NewSnapshot creates a new prefixed Snapshot.
func NewSnapshot(prefix []byte, snap store.Snapshot) store.Snapshot {
	p := append([]byte{}, prefix...)

	return &snapshot{
		&writable{snap, p},
		&readable{snap, p},
	}
}

// NewReadable creates a new prefixed Readable.
func NewReadable(prefix []byte, r store.Readable) store.Readable {
	return &readable{r, append([]byte{}, prefix...)}
}

// Get implements store.Readable. It reads the key in the namespace.
func (s *readable) Get(key []byte) ([]byte, error) {
	return s.Readable.Get(NewPrefixedKey(s.prefix, key))
}

// Set implements store.Writable. It writes the key in the namespace.
func (s *writable) Set(key []byte, value []byte) error {
	return s.Writable.Set(NewPrefixedKey(s.prefix, key), value)
}

// Delete implements store.Writable. It deletes the key in the namespace.
func (s *writable) Delete(key []byte) error {
	return s.Writable.Delete(NewPrefixedKey(s.prefix, key))
}

// NewPrefixedKey creates a 256bit (hashed) key from a prefix and a base key.
func NewPrefixedKey(prefix, key []byte) []byte {
	h := crypto.NewHashFactory(crypto.Sha256).New()

	length := make([]byte, 2)

	binary.LittleEndian.PutUint16(length, uint16(len(prefix)))
	h.Write(length)
	h.Write(prefix)

	binary.LittleEndian.PutUint16(length, uint16(len(key)))
	h.Write(length)
	h.Write(key)

	return h.Sum(nil)
}
