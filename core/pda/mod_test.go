package pda

import (
	"bytes"
	"encoding/hex"
	"testing"

	"github.com/stretchr/testify/require"
	"golang.org/x/xerrors"
)

func TestAddress_Text(t *testing.T) {
	addr := Address{1, 2, 3}

	text, err := addr.MarshalText()
	require.NoError(t, err)
	require.Len(t, text, 64)
	require.Equal(t, string(text), addr.String())

	parsed, err := ParseAddress(string(text))
	require.NoError(t, err)
	require.Equal(t, addr, parsed)

	_, err = ParseAddress("zz")
	require.Error(t, err)
	require.Contains(t, err.Error(), "malformed address: ")

	_, err = ParseAddress("abcd")
	require.EqualError(t, err, "invalid address length 2")
}

func TestAddressFromBytes(t *testing.T) {
	addr, err := AddressFromBytes(bytes.Repeat([]byte{7}, 32))
	require.NoError(t, err)
	require.Equal(t, byte(7), addr[31])

	_, err = AddressFromBytes([]byte{1})
	require.EqualError(t, err, "invalid address length 1")
}

func TestCreateProgramAddress(t *testing.T) {
	program := mustParse(t, "02a8f6914e88a1b0e210153ef763ae2b00c2b93d16c124d2c0537a1004800000")
	pubkey, err := hex.DecodeString("069216fd686865218e275ca0978645845d8bb61a251271f1173f8ac800000000")
	require.NoError(t, err)

	vectors := []struct {
		seeds [][]byte
		addr  string
	}{
		{
			seeds: [][]byte{{}, {1}},
			addr:  "a2a179ae8fd52e90db84df3533469d8c502441d5bbc1832d8d22fe3770036157",
		},
		{
			seeds: [][]byte{[]byte("☉"), {0}},
			addr:  "00c30fb1ad3f7b3ba59757e5d33cf311131503f89aa3fd936a3652357a4956e8",
		},
		{
			seeds: [][]byte{[]byte("Talking"), []byte("Squirrels")},
			addr:  "18cb1abd4405baf9119d11e46977c210063d6a8dfac767ef671cf7e860968aff",
		},
		{
			seeds: [][]byte{pubkey, {1}},
			addr:  "786dbd95d30a2b8647e7d06e87f409f3a0afe7725d6c1008c40da370277acc7d",
		},
	}

	for _, v := range vectors {
		addr, err := CreateProgramAddress(v.seeds, program)
		require.NoError(t, err)
		require.Equal(t, v.addr, addr.String())
	}

	a, err := CreateProgramAddress([][]byte{[]byte("Talking")}, program)
	require.NoError(t, err)

	b, err := CreateProgramAddress([][]byte{[]byte("Talking"), []byte("Squirrels")}, program)
	require.NoError(t, err)
	require.NotEqual(t, a, b)
}

func TestCreateProgramAddress_Limits(t *testing.T) {
	program := Address{1}

	_, err := CreateProgramAddress(make([][]byte, MaxSeeds+1), program)
	require.EqualError(t, err, "17 seeds: too many seeds")
	require.True(t, xerrors.Is(err, ErrMaxSeeds))

	// The limit itself passes the seed check.
	_, err = CreateProgramAddress(make([][]byte, MaxSeeds), program)
	require.False(t, xerrors.Is(err, ErrMaxSeeds))

	// The bump counts as a seed.
	_, _, err = FindProgramAddress(make([][]byte, MaxSeeds-1), program)
	require.NoError(t, err)

	_, err = CreateProgramAddress([][]byte{make([]byte, MaxSeedLen+1)}, program)
	require.EqualError(t, err, "33 bytes: seed too long")
	require.True(t, xerrors.Is(err, ErrSeedTooLong))
}

func TestCreateProgramAddress_OnCurve(t *testing.T) {
	program := mustParse(t, "0101010101010101010101010101010101010101010101010101010101010101")

	// The digest of this input is a valid point.
	_, err := CreateProgramAddress([][]byte{{1}}, program)
	require.Equal(t, ErrOnCurve, err)
}

func TestFindProgramAddress(t *testing.T) {
	program := mustParse(t, "0101010101010101010101010101010101010101010101010101010101010101")

	tree := make([]byte, 32)
	for i := range tree {
		tree[i] = byte(i)
	}

	addr, bump, err := FindProgramAddress([][]byte{tree}, program)
	require.NoError(t, err)
	require.Equal(t, uint8(254), bump)
	require.Equal(t, "6968a4bad6756e658cc5b55169495d53c2598163876c2dfd42317d418c3be436", addr.String())

	again, err := CreateProgramAddress([][]byte{tree, {bump}}, program)
	require.NoError(t, err)
	require.Equal(t, addr, again)

	_, err = CreateProgramAddress([][]byte{tree, {255}}, program)
	require.Equal(t, ErrOnCurve, err)

	_, _, err = FindProgramAddress(make([][]byte, MaxSeeds), program)
	require.EqualError(t, err, "17 seeds: too many seeds")

	other, _, err := FindProgramAddress([][]byte{tree}, Address{2})
	require.NoError(t, err)
	require.NotEqual(t, addr, other)
}

// -----------------------------------------------------------------------------
// Utility functions

func mustParse(t *testing.T, text string) Address {
	addr, err := ParseAddress(text)
	require.NoError(t, err)

	return addr
}
