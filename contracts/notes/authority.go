package notes

import (
	"go.dedis.ch/cnotes/core/compression"
	"go.dedis.ch/cnotes/core/pda"
	"golang.org/x/xerrors"
)

// DeriveAuthority returns the authority of the tree for the program. The only
// seed is the address of the tree, so that the authority of a tree can never
// act on another one.
func DeriveAuthority(program, tree pda.Address) (compression.Authority, error) {
	addr, bump, err := pda.FindProgramAddress([][]byte{tree[:]}, program)
	if err != nil {
		return compression.Authority{}, xerrors.Errorf("failed to derive authority: %v", err)
	}

	auth := compression.Authority{
		Address: addr,
		Program: program,
		Seeds:   [][]byte{append([]byte{}, tree[:]...), {bump}},
	}

	return auth, nil
}
