// Package compression defines the interface of a concurrent Merkle tree engine
// that stores only the leaves' digests of an account and proves membership
// against a recent root.
//
// The engine authenticates mutations with a program-derived authority and
// emits a change-log event after each of them so that an observer can follow
// the state of a tree without reading it.
package compression

import (
	"encoding/hex"

	"github.com/fxamacker/cbor/v2"
	"go.dedis.ch/cnotes/core/pda"
	"go.dedis.ch/cnotes/core/store"
	"go.dedis.ch/cnotes/crypto"
	"golang.org/x/xerrors"
)

const (
	// MinDepth is the minimum depth accepted by the engine.
	MinDepth = 1

	// MaxDepth is the maximum depth accepted by the engine.
	MaxDepth = 30
)

var (
	// ErrInvalidParams is returned when the parameters of a tree are not
	// supported.
	ErrInvalidParams = xerrors.New("invalid tree parameters")

	// ErrAlreadyInitialized is returned when a tree is initialized twice.
	ErrAlreadyInitialized = xerrors.New("tree already initialized")

	// ErrNotInitialized is returned when a tree does not exist.
	ErrNotInitialized = xerrors.New("tree not initialized")

	// ErrUnauthorized is returned when the authority cannot act on the tree.
	ErrUnauthorized = xerrors.New("unauthorized")

	// ErrTreeFull is returned when no more leaves can be appended.
	ErrTreeFull = xerrors.New("tree is full")

	// ErrRootNotFound is returned when the claimed root is not one of the
	// recent roots.
	ErrRootNotFound = xerrors.New("root not found in buffer")

	// ErrLeafMismatch is returned when the leaf at the index is not the
	// claimed one.
	ErrLeafMismatch = xerrors.New("leaf mismatch")

	// ErrIndexOutOfRange is returned when no leaf was appended at the index.
	ErrIndexOutOfRange = xerrors.New("index out of range")
)

// Node is a 32-bytes node of a tree. Leaves are nodes of the bottom level.
type Node [32]byte

// EmptyNode is the value of a leaf that was never set.
var EmptyNode = Node{}

// String implements fmt.Stringer. It returns the hexadecimal representation of
// the node.
func (n Node) String() string {
	return hex.EncodeToString(n[:])
}

// HashNodes returns the parent of two nodes.
func HashNodes(left, right Node) Node {
	return crypto.Keccak(left[:], right[:])
}

// Params are the capacity parameters of a tree.
type Params struct {
	// MaxDepth is the depth of the tree. It can hold 2^MaxDepth leaves.
	MaxDepth uint32

	// MaxBufferSize is the number of recent roots a proof can be checked
	// against.
	MaxBufferSize uint32
}

// Validate returns an error if the engine cannot support the parameters.
func (p Params) Validate() error {
	if p.MaxDepth < MinDepth || p.MaxDepth > MaxDepth {
		return xerrors.Errorf("depth %d: %w", p.MaxDepth, ErrInvalidParams)
	}

	if p.MaxBufferSize == 0 {
		return xerrors.Errorf("buffer size %d: %w", p.MaxBufferSize, ErrInvalidParams)
	}

	return nil
}

// Capacity returns the maximum number of leaves.
func (p Params) Capacity() uint64 {
	return uint64(1) << p.MaxDepth
}

// Authority is the program-derived account presented to act on a tree. The
// engine re-derives the address from the seeds and the program to
// authenticate the request.
type Authority struct {
	Address pda.Address
	Program pda.Address
	Seeds   [][]byte
}

// Verify returns nil if the seeds derive the address under the program.
func (a Authority) Verify() error {
	addr, err := pda.CreateProgramAddress(a.Seeds, a.Program)
	if err != nil {
		return xerrors.Errorf("invalid seeds (%v): %w", err, ErrUnauthorized)
	}

	if addr != a.Address {
		return xerrors.Errorf("seeds derive %v: %w", addr, ErrUnauthorized)
	}

	return nil
}

// TreeInfo is the public state of a tree.
type TreeInfo struct {
	Tree      pda.Address
	Authority pda.Address
	Program   pda.Address
	Params    Params
	Root      Node
	Leaves    uint64
	Sequence  uint64
}

// Proof is a membership proof of a leaf against a root.
type Proof struct {
	Leaf  Node
	Index uint32
	Root  Node
	Path  []Node
}

// Verify returns true if the path leads from the leaf to the root.
func (p Proof) Verify() bool {
	node := p.Leaf
	index := p.Index

	for _, sibling := range p.Path {
		if index&1 == 0 {
			node = HashNodes(node, sibling)
		} else {
			node = HashNodes(sibling, node)
		}

		index >>= 1
	}

	return node == p.Root
}

// ChangeLog is the event emitted after each mutation of a tree. Path holds the
// new value of the nodes from the leaf up to the child of the root.
type ChangeLog struct {
	Tree  pda.Address `cbor:"1,keyasint"`
	Root  Node        `cbor:"2,keyasint"`
	Leaf  Node        `cbor:"3,keyasint"`
	Index uint32      `cbor:"4,keyasint"`
	Seq   uint64      `cbor:"5,keyasint"`
	Path  []Node      `cbor:"6,keyasint"`
}

var (
	encMode cbor.EncMode
	decMode cbor.DecMode
)

func init() {
	var err error

	encMode, err = cbor.CoreDetEncOptions().EncMode()
	if err != nil {
		panic("failed to create cbor encoder: " + err.Error())
	}

	decMode, err = cbor.DecOptions{}.DecMode()
	if err != nil {
		panic("failed to create cbor decoder: " + err.Error())
	}
}

// changeLog has the fields of ChangeLog without its methods, so that the codec
// does not call them back.
type changeLog ChangeLog

// MarshalBinary implements encoding.BinaryMarshaler. It returns the CBOR
// encoding of the change log.
func (c ChangeLog) MarshalBinary() ([]byte, error) {
	data, err := encMode.Marshal(changeLog(c))
	if err != nil {
		return nil, xerrors.Errorf("failed to encode change log: %v", err)
	}

	return data, nil
}

// UnmarshalBinary implements encoding.BinaryUnmarshaler.
func (c *ChangeLog) UnmarshalBinary(data []byte) error {
	var cl changeLog

	err := decMode.Unmarshal(data, &cl)
	if err != nil {
		return xerrors.Errorf("failed to decode change log: %v", err)
	}

	*c = ChangeLog(cl)

	return nil
}

// Engine is the interface of the tree engine used by the contracts. Every
// mutation is applied to the snapshot, which makes it atomic with the rest of
// the transaction.
type Engine interface {
	// InitEmpty creates an empty tree bound to the authority.
	InitEmpty(snap store.Snapshot, tree pda.Address, auth Authority, params Params) error

	// Append writes the leaf at the next free index.
	Append(snap store.Snapshot, tree pda.Address, auth Authority, leaf Node) error

	// VerifyLeaf checks that the leaf is at the index for a recent root.
	VerifyLeaf(snap store.Readable, tree pda.Address, root, leaf Node, index uint32) error

	// ReplaceLeaf verifies the previous leaf and replaces it.
	ReplaceLeaf(snap store.Snapshot, tree pda.Address, auth Authority, root, prev, leaf Node, index uint32) error
}

// Reader provides read access to the trees for clients.
type Reader interface {
	GetTree(snap store.Readable, tree pda.Address) (TreeInfo, error)

	Proof(snap store.Readable, tree pda.Address, index uint32) (Proof, error)
}
