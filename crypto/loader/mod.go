// Package loader defines an abstraction to load a private key from a
// persistent storage. A key is either read from the storage, or generated and
// stored for the next time.
package loader

import "golang.org/x/xerrors"

// ErrExists is returned when a key is created over an existing one.
var ErrExists = xerrors.New("key already exists")

// Generator is the interface to implement to generate a key.
type Generator interface {
	Generate() ([]byte, error)
}

// Loader is an abstraction to load a key from a storage.
type Loader interface {
	// LoadOrCreate tries to load the key and returns it if found, otherwise it
	// generates a new one using the generator and stores it.
	LoadOrCreate(Generator) ([]byte, error)

	// Load returns the stored key, or an error if it does not exist.
	Load() ([]byte, error)

	// Create generates and stores a new key. It fails if a key already exists
	// in the storage.
	Create(Generator) ([]byte, error)
}
