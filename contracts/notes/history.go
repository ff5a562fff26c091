package notes

import (
	"sort"

	"go.dedis.ch/cnotes/core/compression"
	"go.dedis.ch/cnotes/core/eventlog"
	"go.dedis.ch/cnotes/core/pda"
	"golang.org/x/xerrors"
)

// ErrOutOfOrder is returned when the change logs of a tree are not in sequence.
var ErrOutOfOrder = xerrors.New("change log out of order")

// Version is the state of a leaf after a mutation.
type Version struct {
	Entry Entry

	// Seq is the sequence number of the tree after the mutation.
	Seq uint64

	// Root is the root of the tree after the mutation.
	Root compression.Node

	// Record is the position of the entry in the event log.
	Record uint64
}

// TreeHistory is the history of the records of a tree.
type TreeHistory struct {
	Tree     pda.Address
	Root     compression.Node
	Seq      uint64
	Leaves   uint32
	Versions map[uint32][]Version
}

// Current returns the latest entry at the index.
func (h *TreeHistory) Current(index uint32) (Entry, bool) {
	versions := h.Versions[index]
	if len(versions) == 0 {
		return nil, false
	}

	return versions[len(versions)-1].Entry, true
}

// Indexes returns the sorted list of indexes with at least one version.
func (h *TreeHistory) Indexes() []uint32 {
	indexes := make([]uint32, 0, len(h.Versions))
	for index := range h.Versions {
		indexes = append(indexes, index)
	}

	sort.Slice(indexes, func(i, j int) bool { return indexes[i] < indexes[j] })

	return indexes
}

// History is the content of the trees rebuilt from the event log.
type History struct {
	Trees map[pda.Address]*TreeHistory

	// Orphans are the entries that were not followed by the change log of
	// their leaf.
	Orphans []Entry
}

// Tree returns the history of the tree if it exists.
func (h *History) Tree(addr pda.Address) (*TreeHistory, bool) {
	tree, found := h.Trees[addr]
	return tree, found
}

// Replay rebuilds the history of the trees from the records of the event log.
// Each entry is followed by the change log of the mutation that committed its
// leaf, which gives the tree and the index of the record.
func Replay(records []eventlog.Record) (*History, error) {
	history := &History{
		Trees: make(map[pda.Address]*TreeHistory),
	}

	var pending Entry
	var pendingRecord uint64

	for _, rec := range records {
		switch rec.Kind {
		case eventlog.KindApplicationData:
			if pending != nil {
				history.Orphans = append(history.Orphans, pending)
			}

			entry, err := DecodeEntry(rec.Data)
			if err != nil {
				return nil, xerrors.Errorf("record %d: %w", rec.Index, err)
			}

			pending = entry
			pendingRecord = rec.Index
		case eventlog.KindChangeLog:
			var cl compression.ChangeLog

			err := cl.UnmarshalBinary(rec.Data)
			if err != nil {
				return nil, xerrors.Errorf("record %d: %v", rec.Index, err)
			}

			tree, err := history.apply(cl)
			if err != nil {
				return nil, xerrors.Errorf("record %d: %w", rec.Index, err)
			}

			if pending == nil {
				continue
			}

			if Leaf(cl.Leaf) != pending.GetLeaf() {
				history.Orphans = append(history.Orphans, pending)
				pending = nil

				continue
			}

			tree.Versions[cl.Index] = append(tree.Versions[cl.Index], Version{
				Entry:  pending,
				Seq:    cl.Seq,
				Root:   cl.Root,
				Record: pendingRecord,
			})

			if cl.Index >= tree.Leaves {
				tree.Leaves = cl.Index + 1
			}

			pending = nil
		}
	}

	if pending != nil {
		history.Orphans = append(history.Orphans, pending)
	}

	return history, nil
}

func (h *History) apply(cl compression.ChangeLog) (*TreeHistory, error) {
	tree, found := h.Trees[cl.Tree]
	if !found {
		if cl.Seq != 0 {
			return nil, xerrors.Errorf("tree %v starts at %d: %w", cl.Tree, cl.Seq, ErrOutOfOrder)
		}

		tree = &TreeHistory{
			Tree:     cl.Tree,
			Versions: make(map[uint32][]Version),
		}

		h.Trees[cl.Tree] = tree
	} else if cl.Seq != tree.Seq+1 {
		return nil, xerrors.Errorf("tree %v: %d after %d: %w", cl.Tree, cl.Seq, tree.Seq, ErrOutOfOrder)
	}

	tree.Root = cl.Root
	tree.Seq = cl.Seq

	return tree, nil
}
