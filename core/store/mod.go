// Package store defines the primitives of a simple key/value storage.
//
// Contracts and the Merkle tree engine only see a snapshot of the store. The
// host decides when the writes of a snapshot are committed.
package store

// Readable is the interface for a readable store.
type Readable interface {
	// Get returns the value of the key, or nil if it does not exist.
	Get(key []byte) ([]byte, error)
}

// Writable is the interface for a writable store.
type Writable interface {
	Set(key []byte, value []byte) error

	Delete(key []byte) error
}

// Snapshot is a state of the store that can be read and write independently. A
// write is applied only to the snapshot reference.
type Snapshot interface {
	Readable
	Writable
}
