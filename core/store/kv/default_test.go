package kv

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	"golang.org/x/xerrors"
)

func TestBoltDB_UpdateAndView(t *testing.T) {
	db := makeDB(t)

	err := db.Update([]byte("bucket"), func(b Bucket) error {
		return b.Set([]byte("ping"), []byte("pong"))
	})
	require.NoError(t, err)

	err = db.View([]byte("bucket"), func(b Bucket) error {
		value := b.Get([]byte("ping"))
		require.Equal(t, []byte("pong"), value)

		return nil
	})
	require.NoError(t, err)

	err = db.View([]byte{0xaa}, nil)
	require.EqualError(t, err, "bucket 'aa': bucket not found")
	require.True(t, xerrors.Is(err, ErrBucketNotFound))

	err = db.Update(nil, nil)
	require.EqualError(t, err, "failed to create bucket: bucket name required")
}

func TestBoltDB_Update_Rollback(t *testing.T) {
	db := makeDB(t)

	err := db.Update([]byte("bucket"), func(b Bucket) error {
		return b.Set([]byte("ping"), []byte("pong"))
	})
	require.NoError(t, err)

	err = db.Update([]byte("bucket"), func(b Bucket) error {
		require.NoError(t, b.Set([]byte("ping"), []byte("other")))
		require.NoError(t, b.Set([]byte("new"), []byte("value")))

		return xerrors.New("oops")
	})
	require.EqualError(t, err, "oops")

	err = db.View([]byte("bucket"), func(b Bucket) error {
		require.Equal(t, []byte("pong"), b.Get([]byte("ping")))
		require.Nil(t, b.Get([]byte("new")))

		return nil
	})
	require.NoError(t, err)
}

func TestBoltDB_New(t *testing.T) {
	_, err := New(filepath.Join(t.TempDir(), "missing", "test.db"))
	require.Error(t, err)
	require.Regexp(t, "^failed to open db: ", err.Error())
	require.False(t, xerrors.Is(err, ErrLocked))
}

func TestBoltDB_NewLocked(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.db")

	db, err := New(path)
	require.NoError(t, err)

	defer db.Close()

	_, err = New(path)
	require.True(t, xerrors.Is(err, ErrLocked))
	require.EqualError(t, err, "failed to open db '"+path+"': database locked by another process")
}

func TestBoltBucket_Get_Set_Delete(t *testing.T) {
	db := makeDB(t)

	err := db.Update([]byte("bucket"), func(b Bucket) error {
		require.NoError(t, b.Set([]byte("ping"), []byte("pong")))

		value := b.Get([]byte("ping"))
		require.Equal(t, []byte("pong"), value)

		value = b.Get([]byte("pong"))
		require.Nil(t, value)

		require.NoError(t, b.Delete([]byte("ping")))

		value = b.Get([]byte("ping"))
		require.Nil(t, value)

		return nil
	})
	require.NoError(t, err)

	err = db.View([]byte("bucket"), func(b Bucket) error {
		return b.Set([]byte("ping"), []byte("pong"))
	})
	require.EqualError(t, err, "tx not writable")
}

// -----------------------------------------------------------------------------
// Utility functions

func makeDB(t *testing.T) DB {
	db, err := New(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)

	t.Cleanup(func() { db.Close() })

	return db
}
