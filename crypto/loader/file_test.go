package loader

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	"go.dedis.ch/cnotes/testing/fake"
	"golang.org/x/xerrors"
)

func TestFileLoader_LoadOrCreate(t *testing.T) {
	path := filepath.Join(t.TempDir(), "keys", "private.key")

	generator := fakeGenerator{calls: &fake.Call{}}

	loader := NewFileLoader(path).(fileLoader)

	// Generate..
	data, err := loader.LoadOrCreate(generator)
	require.NoError(t, err)
	require.Equal(t, []byte{1, 2, 3}, data)
	require.Equal(t, 1, generator.calls.Len())

	info, err := os.Stat(path)
	require.NoError(t, err)
	require.Equal(t, os.FileMode(0400), info.Mode().Perm())

	// Read from the file..
	data, err = loader.LoadOrCreate(generator)
	require.NoError(t, err)
	require.Equal(t, []byte{1, 2, 3}, data)
	require.Equal(t, 1, generator.calls.Len())

	require.NoError(t, os.Remove(path))

	_, err = loader.LoadOrCreate(fakeGenerator{err: fake.GetError()})
	require.EqualError(t, err, fake.Err("generator failed"))

	loader.mkdirFn = func(string, os.FileMode) error {
		return fake.GetError()
	}
	_, err = loader.LoadOrCreate(generator)
	require.EqualError(t, err, fake.Err("couldn't make path"))

	loader.mkdirFn = os.MkdirAll
	loader.openFileFn = func(path string, flags int, perms os.FileMode) (*os.File, error) {
		return nil, fake.GetError()
	}
	_, err = loader.LoadOrCreate(generator)
	require.EqualError(t, err, fake.Err("while creating file"))

	loader.openFileFn = func(path string, flags int, perms os.FileMode) (*os.File, error) {
		return os.NewFile(0, ""), nil
	}
	_, err = loader.LoadOrCreate(generator)
	require.Error(t, err)
	require.Contains(t, err.Error(), "while writing: ")

	loader.statFn = func(path string) (os.FileInfo, error) {
		return nil, nil
	}
	loader.openFn = func(path string) (*os.File, error) {
		return nil, fake.GetError()
	}
	_, err = loader.LoadOrCreate(generator)
	require.EqualError(t, err, fake.Err("failed to load file: while opening file"))

	loader.openFn = func(path string) (*os.File, error) {
		return os.Open(os.TempDir())
	}
	_, err = loader.LoadOrCreate(generator)
	require.Error(t, err)
	require.Contains(t, err.Error(), "failed to load file: while reading file: ")
}

func TestFileLoader_Create(t *testing.T) {
	path := filepath.Join(t.TempDir(), "private.key")

	generator := fakeGenerator{calls: &fake.Call{}}

	loader := NewFileLoader(path)

	data, err := loader.Create(generator)
	require.NoError(t, err)
	require.Equal(t, []byte{1, 2, 3}, data)

	_, err = loader.Create(generator)
	require.True(t, xerrors.Is(err, ErrExists))
	require.EqualError(t, err, "file '"+path+"': key already exists")
	require.Equal(t, 1, generator.calls.Len())

	data, err = loader.Load()
	require.NoError(t, err)
	require.Equal(t, []byte{1, 2, 3}, data)
}

func TestFileLoader_Load(t *testing.T) {
	loader := NewFileLoader(filepath.Join(t.TempDir(), "unknown.key"))

	_, err := loader.Load()
	require.Error(t, err)
	require.Contains(t, err.Error(), "while opening file: ")
}

// -----------------------------------------------------------------------------
// Utility functions

type fakeGenerator struct {
	calls *fake.Call
	err   error
}

func (g fakeGenerator) Generate() ([]byte, error) {
	if g.calls != nil {
		g.calls.Add("Generate")
	}

	return []byte{1, 2, 3}, g.err
}
