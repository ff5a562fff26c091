package kv

import (
	"time"

	"go.etcd.io/bbolt"
	"golang.org/x/xerrors"
)

// openTimeout is the time to wait for the file lock of the database.
const openTimeout = 2 * time.Second

var (
	// ErrLocked is returned when another process holds the database.
	ErrLocked = xerrors.New("database locked by another process")

	// ErrBucketNotFound is returned when a read-only transaction targets a
	// bucket that has never been written.
	ErrBucketNotFound = xerrors.New("bucket not found")
)

// boltDB stores the state in a single bbolt file.
//
// - implements kv.DB
type boltDB struct {
	bolt *bbolt.DB
}

// New opens the database at the given path, or creates it. Only one process
// can open the file at a time.
func New(path string) (DB, error) {
	db, err := bbolt.Open(path, 0600, &bbolt.Options{Timeout: openTimeout})
	if xerrors.Is(err, bbolt.ErrTimeout) {
		return nil, xerrors.Errorf("failed to open db '%s': %w", path, ErrLocked)
	}
	if err != nil {
		return nil, xerrors.Errorf("failed to open db: %v", err)
	}

	return boltDB{bolt: db}, nil
}

// View implements kv.DB.
func (db boltDB) View(name []byte, fn func(Bucket) error) error {
	return db.bolt.View(func(tx *bbolt.Tx) error {
		b := tx.Bucket(name)
		if b == nil {
			return xerrors.Errorf("bucket '%x': %w", name, ErrBucketNotFound)
		}

		return fn(boltBucket{b})
	})
}

// Update implements kv.DB. The bucket is created on the first update.
func (db boltDB) Update(name []byte, fn func(Bucket) error) error {
	return db.bolt.Update(func(tx *bbolt.Tx) error {
		b, err := tx.CreateBucketIfNotExists(name)
		if err != nil {
			return xerrors.Errorf("failed to create bucket: %v", err)
		}

		return fn(boltBucket{b})
	})
}

// Close implements kv.DB.
func (db boltDB) Close() error {
	return db.bolt.Close()
}

// boltBucket exposes a bbolt bucket. Writes in a read-only transaction fail.
//
// - implements kv.Bucket
type boltBucket struct {
	*bbolt.Bucket
}

// Set implements kv.Bucket.
func (b boltBucket) Set(key, value []byte) error {
	return b.Bucket.Put(key, value)
}
