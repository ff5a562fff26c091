// Package cmt implements the tree engine with concurrent Merkle trees stored
// in a snapshot.
//
// A tree has a fixed depth and stores the nodes it has computed keyed by their
// level and index; a node that was never written is the root of an empty
// subtree. The header keeps a ring buffer of the most recent roots so that a
// client can prove a leaf against a root that became stale because of another
// mutation, as long as the leaf itself did not change.
package cmt

import (
	"encoding/binary"

	"github.com/fxamacker/cbor/v2"
	"github.com/rs/zerolog"
	"go.dedis.ch/cnotes"
	"go.dedis.ch/cnotes/core/compression"
	"go.dedis.ch/cnotes/core/eventlog"
	"go.dedis.ch/cnotes/core/pda"
	"go.dedis.ch/cnotes/core/store"
	"go.dedis.ch/cnotes/core/store/prefixed"
	"golang.org/x/xerrors"
)

// emptyNodes[i] is the root of an empty subtree of height i.
var emptyNodes [compression.MaxDepth + 1]compression.Node

func init() {
	for i := 1; i <= compression.MaxDepth; i++ {
		emptyNodes[i] = compression.HashNodes(emptyNodes[i-1], emptyNodes[i-1])
	}
}

// EmptyRoot returns the root of an empty tree of the given depth.
func EmptyRoot(depth uint32) compression.Node {
	return emptyNodes[depth]
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

// header is the stored state of a tree beside its nodes.
type header struct {
	MaxDepth      uint32             `cbor:"1,keyasint"`
	MaxBufferSize uint32             `cbor:"2,keyasint"`
	Authority     pda.Address        `cbor:"3,keyasint"`
	Program       pda.Address        `cbor:"4,keyasint"`
	Sequence      uint64             `cbor:"5,keyasint"`
	Leaves        uint64             `cbor:"6,keyasint"`
	ActiveIndex   uint32             `cbor:"7,keyasint"`
	BufferSize    uint32             `cbor:"8,keyasint"`
	Roots         []compression.Node `cbor:"9,keyasint"`
}

func (h *header) root() compression.Node {
	return h.Roots[h.ActiveIndex]
}

// pushRoot writes the root in the next slot of the ring buffer.
func (h *header) pushRoot(root compression.Node) {
	if len(h.Roots) < int(h.MaxBufferSize) {
		h.Roots = append(h.Roots, root)
		h.ActiveIndex = uint32(len(h.Roots) - 1)
	} else {
		h.ActiveIndex = (h.ActiveIndex + 1) % h.MaxBufferSize
		h.Roots[h.ActiveIndex] = root
	}

	if h.BufferSize < h.MaxBufferSize {
		h.BufferSize++
	}
}

func (h *header) hasRoot(root compression.Node) bool {
	for _, r := range h.Roots {
		if r == root {
			return true
		}
	}

	return false
}

// Engine is the concurrent Merkle tree engine.
//
// - implements compression.Engine
// - implements compression.Reader
type Engine struct {
	log    eventlog.Emitter
	prefix []byte
	logger zerolog.Logger
}

// NewEngine creates a new engine that emits its change logs to the log.
func NewEngine(log eventlog.Emitter) *Engine {
	return &Engine{
		log:    log,
		prefix: []byte("cmt"),
		logger: cnotes.Logger.With().Str("engine", "cmt").Logger(),
	}
}

// InitEmpty implements compression.Engine. It creates an empty tree bound to
// the authority.
func (e *Engine) InitEmpty(snap store.Snapshot, tree pda.Address,
	auth compression.Authority, params compression.Params) error {

	err := params.Validate()
	if err != nil {
		return err
	}

	err = auth.Verify()
	if err != nil {
		return err
	}

	ns := e.namespace(snap, tree)

	hdr, err := readHeader(ns)
	if err != nil {
		return err
	}

	if hdr != nil {
		return xerrors.Errorf("tree %v: %w", tree, compression.ErrAlreadyInitialized)
	}

	hdr = &header{
		MaxDepth:      params.MaxDepth,
		MaxBufferSize: params.MaxBufferSize,
		Authority:     auth.Address,
		Program:       auth.Program,
	}

	root := EmptyRoot(params.MaxDepth)
	hdr.pushRoot(root)

	path := make([]compression.Node, params.MaxDepth)
	copy(path, emptyNodes[:params.MaxDepth])

	err = e.commit(snap, ns, tree, hdr, compression.EmptyNode, 0, path)
	if err != nil {
		return err
	}

	e.logger.Debug().
		Stringer("tree", tree).
		Uint32("depth", params.MaxDepth).
		Uint32("buffer", params.MaxBufferSize).
		Msg("tree initialized")

	return nil
}

// Append implements compression.Engine. It writes the leaf at the next free
// index.
func (e *Engine) Append(snap store.Snapshot, tree pda.Address,
	auth compression.Authority, leaf compression.Node) error {

	ns := e.namespace(snap, tree)

	hdr, err := e.authorize(ns, tree, auth)
	if err != nil {
		return err
	}

	if hdr.Leaves >= uint64(1)<<hdr.MaxDepth {
		return xerrors.Errorf("tree %v: %w", tree, compression.ErrTreeFull)
	}

	index := uint32(hdr.Leaves)
	hdr.Leaves++

	err = e.write(snap, ns, tree, hdr, leaf, index)
	if err != nil {
		return err
	}

	e.logger.Debug().Stringer("tree", tree).Uint32("index", index).Msg("leaf appended")

	return nil
}

// VerifyLeaf implements compression.Engine. It checks that the root is one of
// the recent roots of the tree and that the leaf at the index is the claimed
// one.
func (e *Engine) VerifyLeaf(snap store.Readable, tree pda.Address,
	root, leaf compression.Node, index uint32) error {

	ns := prefixed.NewReadable(e.treePrefix(tree), snap)

	hdr, err := readHeader(ns)
	if err != nil {
		return err
	}

	if hdr == nil {
		return xerrors.Errorf("tree %v: %w", tree, compression.ErrNotInitialized)
	}

	return verify(ns, hdr, root, leaf, index)
}

// ReplaceLeaf implements compression.Engine. It verifies the previous leaf
// like VerifyLeaf and then replaces it with the new one.
func (e *Engine) ReplaceLeaf(snap store.Snapshot, tree pda.Address,
	auth compression.Authority, root, prev, leaf compression.Node, index uint32) error {

	ns := e.namespace(snap, tree)

	hdr, err := e.authorize(ns, tree, auth)
	if err != nil {
		return err
	}

	err = verify(ns, hdr, root, prev, index)
	if err != nil {
		return err
	}

	err = e.write(snap, ns, tree, hdr, leaf, index)
	if err != nil {
		return err
	}

	e.logger.Debug().Stringer("tree", tree).Uint32("index", index).Msg("leaf replaced")

	return nil
}

// GetTree implements compression.Reader. It returns the public state of the
// tree.
func (e *Engine) GetTree(snap store.Readable, tree pda.Address) (compression.TreeInfo, error) {
	hdr, err := readHeader(prefixed.NewReadable(e.treePrefix(tree), snap))
	if err != nil {
		return compression.TreeInfo{}, err
	}

	if hdr == nil {
		return compression.TreeInfo{}, xerrors.Errorf("tree %v: %w", tree, compression.ErrNotInitialized)
	}

	info := compression.TreeInfo{
		Tree:      tree,
		Authority: hdr.Authority,
		Program:   hdr.Program,
		Params: compression.Params{
			MaxDepth:      hdr.MaxDepth,
			MaxBufferSize: hdr.MaxBufferSize,
		},
		Root:     hdr.root(),
		Leaves:   hdr.Leaves,
		Sequence: hdr.Sequence,
	}

	return info, nil
}

// Proof implements compression.Reader. It returns the membership proof of the
// leaf at the index against the current root.
func (e *Engine) Proof(snap store.Readable, tree pda.Address, index uint32) (compression.Proof, error) {
	ns := prefixed.NewReadable(e.treePrefix(tree), snap)

	hdr, err := readHeader(ns)
	if err != nil {
		return compression.Proof{}, err
	}

	if hdr == nil {
		return compression.Proof{}, xerrors.Errorf("tree %v: %w", tree, compression.ErrNotInitialized)
	}

	if uint64(index) >= hdr.Leaves {
		return compression.Proof{}, xerrors.Errorf("index %d: %w", index, compression.ErrIndexOutOfRange)
	}

	leaf, err := readNode(ns, 0, index)
	if err != nil {
		return compression.Proof{}, err
	}

	proof := compression.Proof{
		Leaf:  leaf,
		Index: index,
		Root:  hdr.root(),
		Path:  make([]compression.Node, hdr.MaxDepth),
	}

	for level := uint32(0); level < hdr.MaxDepth; level++ {
		proof.Path[level], err = readNode(ns, level, (index>>level)^1)
		if err != nil {
			return compression.Proof{}, err
		}
	}

	return proof, nil
}

func (e *Engine) treePrefix(tree pda.Address) []byte {
	prefix := make([]byte, 0, len(e.prefix)+len(tree))
	prefix = append(prefix, e.prefix...)

	return append(prefix, tree[:]...)
}

func (e *Engine) namespace(snap store.Snapshot, tree pda.Address) store.Snapshot {
	return prefixed.NewSnapshot(e.treePrefix(tree), snap)
}

// authorize reads the header of the tree and checks that the authority is the
// one bound to it.
func (e *Engine) authorize(ns store.Readable, tree pda.Address, auth compression.Authority) (*header, error) {
	hdr, err := readHeader(ns)
	if err != nil {
		return nil, err
	}

	if hdr == nil {
		return nil, xerrors.Errorf("tree %v: %w", tree, compression.ErrNotInitialized)
	}

	err = auth.Verify()
	if err != nil {
		return nil, err
	}

	if auth.Address != hdr.Authority || auth.Program != hdr.Program {
		return nil, xerrors.Errorf("authority %v: %w", auth.Address, compression.ErrUnauthorized)
	}

	return hdr, nil
}

// write sets the leaf, updates the path up to the root and commits the new
// root.
func (e *Engine) write(snap store.Snapshot, ns store.Snapshot, tree pda.Address,
	hdr *header, leaf compression.Node, index uint32) error {

	path := make([]compression.Node, hdr.MaxDepth)

	node := leaf
	for level := uint32(0); level < hdr.MaxDepth; level++ {
		idx := index >> level
		path[level] = node

		err := writeNode(ns, level, idx, node)
		if err != nil {
			return err
		}

		sibling, err := readNode(ns, level, idx^1)
		if err != nil {
			return err
		}

		if idx&1 == 0 {
			node = compression.HashNodes(node, sibling)
		} else {
			node = compression.HashNodes(sibling, node)
		}
	}

	err := writeNode(ns, hdr.MaxDepth, 0, node)
	if err != nil {
		return err
	}

	hdr.Sequence++
	hdr.pushRoot(node)

	return e.commit(snap, ns, tree, hdr, leaf, index, path)
}

// commit stores the header and emits the change log of the mutation.
func (e *Engine) commit(snap store.Snapshot, ns store.Snapshot, tree pda.Address,
	hdr *header, leaf compression.Node, index uint32, path []compression.Node) error {

	data, err := encMode.Marshal(hdr)
	if err != nil {
		return xerrors.Errorf("failed to encode header: %v", err)
	}

	err = ns.Set(headerKey, data)
	if err != nil {
		return xerrors.Errorf("failed to store header: %v", err)
	}

	cl := compression.ChangeLog{
		Tree:  tree,
		Root:  hdr.root(),
		Leaf:  leaf,
		Index: index,
		Seq:   hdr.Sequence,
		Path:  path,
	}

	data, err = cl.MarshalBinary()
	if err != nil {
		return err
	}

	_, err = e.log.Emit(snap, eventlog.Event{Kind: eventlog.KindChangeLog, Data: data})
	if err != nil {
		return xerrors.Errorf("failed to emit change log: %v", err)
	}

	return nil
}

func verify(ns store.Readable, hdr *header, root, leaf compression.Node, index uint32) error {
	if uint64(index) >= hdr.Leaves {
		return xerrors.Errorf("index %d: %w", index, compression.ErrIndexOutOfRange)
	}

	if !hdr.hasRoot(root) {
		return xerrors.Errorf("root %v: %w", root, compression.ErrRootNotFound)
	}

	current, err := readNode(ns, 0, index)
	if err != nil {
		return err
	}

	if current != leaf {
		return xerrors.Errorf("index %d: %w", index, compression.ErrLeafMismatch)
	}

	return nil
}

var headerKey = []byte("header")

func nodeKey(level, index uint32) []byte {
	key := make([]byte, 6)
	key[0] = 'n'
	key[1] = byte(level)
	binary.BigEndian.PutUint32(key[2:], index)

	return key
}

func readHeader(ns store.Readable) (*header, error) {
	data, err := ns.Get(headerKey)
	if err != nil {
		return nil, xerrors.Errorf("failed to read header: %v", err)
	}

	if len(data) == 0 {
		return nil, nil
	}

	hdr := new(header)

	err = decMode.Unmarshal(data, hdr)
	if err != nil {
		return nil, xerrors.Errorf("failed to decode header: %v", err)
	}

	if len(hdr.Roots) == 0 || hdr.ActiveIndex >= uint32(len(hdr.Roots)) {
		return nil, xerrors.New("corrupted header: invalid root buffer")
	}

	return hdr, nil
}

// readNode returns the node at the position, or the empty node of the level if
// it was never written.
func readNode(ns store.Readable, level, index uint32) (compression.Node, error) {
	data, err := ns.Get(nodeKey(level, index))
	if err != nil {
		return compression.Node{}, xerrors.Errorf("failed to read node: %v", err)
	}

	if len(data) == 0 {
		return emptyNodes[level], nil
	}

	var node compression.Node
	if len(data) != len(node) {
		return node, xerrors.Errorf("corrupted node %d/%d", level, index)
	}

	copy(node[:], data)

	return node, nil
}

func writeNode(ns store.Writable, level, index uint32, node compression.Node) error {
	err := ns.Set(nodeKey(level, index), node[:])
	if err != nil {
		return xerrors.Errorf("failed to write node: %v", err)
	}

	return nil
}
