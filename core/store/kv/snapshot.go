package kv

import (
	"go.dedis.ch/cnotes/core/store"
	"golang.org/x/xerrors"
)

// bucketSnapshot exposes a bucket as a store snapshot. It lives as long as the
// database transaction of the bucket.
//
// - implements store.Snapshot
type bucketSnapshot struct {
	bucket Bucket
}

// NewSnapshot returns a snapshot that reads and writes the bucket. The values
// are copied in both directions as bbolt only guarantees them for the duration
// of the transaction.
func NewSnapshot(bucket Bucket) store.Snapshot {
	return bucketSnapshot{bucket: bucket}
}

// Get implements store.Readable. It returns a copy of the value, or nil if the
// key is not set.
func (s bucketSnapshot) Get(key []byte) ([]byte, error) {
	value := s.bucket.Get(key)
	if value == nil {
		return nil, nil
	}

	return append([]byte{}, value...), nil
}

// Set implements store.Writable. It sets a copy of the value to the key.
func (s bucketSnapshot) Set(key, value []byte) error {
	if len(key) == 0 {
		return xerrors.New("empty key")
	}

	err := s.bucket.Set(key, append([]byte{}, value...))
	if err != nil {
		return xerrors.Errorf("failed to set key '%x': %v", key, err)
	}

	return nil
}

// Delete implements store.Writable. It deletes the key.
func (s bucketSnapshot) Delete(key []byte) error {
	err := s.bucket.Delete(key)
	if err != nil {
		return xerrors.Errorf("failed to delete key '%x': %v", key, err)
	}

	return nil
}
