package compression

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
	"go.dedis.ch/cnotes/core/pda"
	"go.dedis.ch/cnotes/crypto"
	"golang.org/x/xerrors"
)

func TestNode_String(t *testing.T) {
	require.Equal(t, "01"+strings.Repeat("00", 31), Node{1}.String())
}

func TestHashNodes(t *testing.T) {
	left := Node{1}
	right := Node{2}

	expected := crypto.Keccak(left[:], right[:])
	require.Equal(t, Node(expected), HashNodes(left, right))
	require.NotEqual(t, HashNodes(left, right), HashNodes(right, left))
}

func TestParams_Validate(t *testing.T) {
	require.NoError(t, Params{MaxDepth: 1, MaxBufferSize: 1}.Validate())
	require.NoError(t, Params{MaxDepth: 30, MaxBufferSize: 2048}.Validate())

	err := Params{MaxDepth: 0, MaxBufferSize: 8}.Validate()
	require.EqualError(t, err, "depth 0: invalid tree parameters")
	require.True(t, xerrors.Is(err, ErrInvalidParams))

	err = Params{MaxDepth: 31, MaxBufferSize: 8}.Validate()
	require.EqualError(t, err, "depth 31: invalid tree parameters")

	err = Params{MaxDepth: 3}.Validate()
	require.EqualError(t, err, "buffer size 0: invalid tree parameters")

	require.Equal(t, uint64(8), Params{MaxDepth: 3}.Capacity())
}

func TestAuthority_Verify(t *testing.T) {
	program := pda.Address{1}
	seeds := [][]byte{{2}}

	addr, bump, err := pda.FindProgramAddress(seeds, program)
	require.NoError(t, err)

	auth := Authority{
		Address: addr,
		Program: program,
		Seeds:   [][]byte{{2}, {bump}},
	}
	require.NoError(t, auth.Verify())

	auth.Program = pda.Address{3}
	err = auth.Verify()
	require.Error(t, err)
	require.True(t, xerrors.Is(err, ErrUnauthorized))

	auth.Program = program
	auth.Seeds = make([][]byte, 17)
	err = auth.Verify()
	require.EqualError(t, err, "invalid seeds (17 seeds: too many seeds): unauthorized")
	require.True(t, xerrors.Is(err, ErrUnauthorized))
}

func TestProof_Verify(t *testing.T) {
	leaf := Node{5}
	sibling := Node{6}
	uncle := Node{7}

	root := HashNodes(uncle, HashNodes(sibling, leaf))

	proof := Proof{
		Leaf:  leaf,
		Index: 3,
		Root:  root,
		Path:  []Node{sibling, uncle},
	}
	require.True(t, proof.Verify())

	proof.Index = 2
	require.False(t, proof.Verify())
}

func TestChangeLog_Binary(t *testing.T) {
	cl := ChangeLog{
		Tree:  pda.Address{1},
		Root:  Node{2},
		Leaf:  Node{3},
		Index: 4,
		Seq:   5,
		Path:  []Node{{6}, {7}},
	}

	data, err := cl.MarshalBinary()
	require.NoError(t, err)

	var decoded ChangeLog
	require.NoError(t, decoded.UnmarshalBinary(data))
	require.Equal(t, cl, decoded)

	err = decoded.UnmarshalBinary([]byte{0xff})
	require.Error(t, err)
	require.Contains(t, err.Error(), "failed to decode change log: ")
}
