package notes

import (
	"testing"

	"github.com/stretchr/testify/require"
	"go.dedis.ch/cnotes/core/pda"
)

func TestDeriveAuthority(t *testing.T) {
	program := pda.Address{0xaa}
	tree := pda.Address{1}

	auth, err := DeriveAuthority(program, tree)
	require.NoError(t, err)
	require.Equal(t, program, auth.Program)
	require.Len(t, auth.Seeds, 2)
	require.Equal(t, tree[:], auth.Seeds[0])
	require.NoError(t, auth.Verify())

	again, err := DeriveAuthority(program, tree)
	require.NoError(t, err)
	require.Equal(t, auth, again)

	other, err := DeriveAuthority(program, pda.Address{2})
	require.NoError(t, err)
	require.NotEqual(t, auth.Address, other.Address)

	// The authority of a tree cannot pass for the one of another tree.
	forged := other
	forged.Seeds = auth.Seeds
	require.Error(t, forged.Verify())

	foreign, err := DeriveAuthority(pda.Address{0xbb}, tree)
	require.NoError(t, err)
	require.NotEqual(t, auth.Address, foreign.Address)
}
