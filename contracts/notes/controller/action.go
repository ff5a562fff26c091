package controller

import (
	"bytes"
	"encoding/hex"
	"fmt"
	"math"
	"sort"

	"go.dedis.ch/cnotes/cli/node"
	"go.dedis.ch/cnotes/contracts/notes"
	"go.dedis.ch/cnotes/core/compression"
	"go.dedis.ch/cnotes/core/eventlog"
	"go.dedis.ch/cnotes/core/execution/native"
	"go.dedis.ch/cnotes/core/pda"
	"go.dedis.ch/cnotes/core/runtime"
	"go.dedis.ch/cnotes/core/store"
	"go.dedis.ch/cnotes/core/txn"
	"go.dedis.ch/cnotes/crypto/ed25519"
	"golang.org/x/xerrors"
)

// createTreeAction is an action to create a new empty tree.
//
// - implements node.ActionTemplate
type createTreeAction struct{}

// Execute implements node.ActionTemplate. It creates the tree at the given
// address, or at a new random one.
func (a createTreeAction) Execute(ctx node.Context) error {
	var tree pda.Address
	var err error

	if ctx.Flags.String("tree") != "" {
		tree, err = pda.ParseAddress(ctx.Flags.String("tree"))
		if err != nil {
			return xerrors.Errorf("invalid tree: %v", err)
		}
	} else {
		tree, err = newTreeAddress()
		if err != nil {
			return err
		}
	}

	depth, err := readUint32(ctx, "depth")
	if err != nil {
		return err
	}

	buffer, err := readUint32(ctx, "buffer")
	if err != nil {
		return err
	}

	err = submit(ctx,
		arg(notes.CmdArg, []byte(notes.CmdCreateTree)),
		arg(notes.TreeArg, tree[:]),
		arg(notes.DepthArg, notes.EncodeUint32(depth)),
		arg(notes.BufferArg, notes.EncodeUint32(buffer)),
	)
	if err != nil {
		return err
	}

	fmt.Fprintf(ctx.Out, "tree %v created\n", tree)

	return nil
}

// showTreeAction is an action to print the state of a tree.
//
// - implements node.ActionTemplate
type showTreeAction struct{}

// Execute implements node.ActionTemplate.
func (a showTreeAction) Execute(ctx node.Context) error {
	tree, err := readTree(ctx)
	if err != nil {
		return err
	}

	var info compression.TreeInfo

	err = view(ctx, func(snap store.Readable, reader compression.Reader) error {
		info, err = reader.GetTree(snap, tree)
		return err
	})
	if err != nil {
		return xerrors.Errorf("failed to read tree: %v", err)
	}

	fmt.Fprintf(ctx.Out, "tree:      %v\n", info.Tree)
	fmt.Fprintf(ctx.Out, "authority: %v\n", info.Authority)
	fmt.Fprintf(ctx.Out, "depth:     %d\n", info.Params.MaxDepth)
	fmt.Fprintf(ctx.Out, "buffer:    %d\n", info.Params.MaxBufferSize)
	fmt.Fprintf(ctx.Out, "leaves:    %d/%d\n", info.Leaves, info.Params.Capacity())
	fmt.Fprintf(ctx.Out, "sequence:  %d\n", info.Sequence)
	fmt.Fprintf(ctx.Out, "root:      %v\n", info.Root)

	return nil
}

// proofAction is an action to print the membership proof of a leaf.
//
// - implements node.ActionTemplate
type proofAction struct{}

// Execute implements node.ActionTemplate.
func (a proofAction) Execute(ctx node.Context) error {
	tree, err := readTree(ctx)
	if err != nil {
		return err
	}

	index, err := readUint32(ctx, "index")
	if err != nil {
		return err
	}

	var proof compression.Proof

	err = view(ctx, func(snap store.Readable, reader compression.Reader) error {
		proof, err = reader.Proof(snap, tree, index)
		return err
	})
	if err != nil {
		return xerrors.Errorf("failed to read proof: %v", err)
	}

	if !proof.Verify() {
		return xerrors.Errorf("proof of leaf %d does not lead to %v", index, proof.Root)
	}

	fmt.Fprintf(ctx.Out, "leaf: %v\n", proof.Leaf)
	fmt.Fprintf(ctx.Out, "root: %v\n", proof.Root)

	for level, sibling := range proof.Path {
		fmt.Fprintf(ctx.Out, "%4d: %v\n", level, sibling)
	}

	return nil
}

// appendAction is an action to append a note, or a message.
//
// - implements node.ActionTemplate
type appendAction struct {
	message bool
}

// Execute implements node.ActionTemplate.
func (a appendAction) Execute(ctx node.Context) error {
	tree, err := readTree(ctx)
	if err != nil {
		return err
	}

	args := []txn.Arg{arg(notes.TreeArg, tree[:])}

	if a.message {
		to, err := readRecipient(ctx)
		if err != nil {
			return err
		}

		args = append(args,
			arg(notes.CmdArg, []byte(notes.CmdAppendMessage)),
			arg(notes.RecipientArg, to[:]),
			arg(notes.ContentArg, []byte(ctx.Flags.String("message"))),
		)
	} else {
		args = append(args,
			arg(notes.CmdArg, []byte(notes.CmdAppendNote)),
			arg(notes.ContentArg, []byte(ctx.Flags.String("note"))),
		)
	}

	var index uint64

	err = view(ctx, func(snap store.Readable, reader compression.Reader) error {
		info, err := reader.GetTree(snap, tree)
		index = info.Leaves
		return err
	})
	if err != nil {
		return xerrors.Errorf("failed to read tree: %v", err)
	}

	err = submit(ctx, args...)
	if err != nil {
		return err
	}

	fmt.Fprintf(ctx.Out, "appended at index %d\n", index)

	return nil
}

// updateAction is an action to update a note, or a message.
//
// - implements node.ActionTemplate
type updateAction struct {
	message bool
}

// Execute implements node.ActionTemplate. It proves the update against the
// given root, or the current root of the tree when none is given.
func (a updateAction) Execute(ctx node.Context) error {
	tree, err := readTree(ctx)
	if err != nil {
		return err
	}

	index, err := readUint32(ctx, "index")
	if err != nil {
		return err
	}

	root, err := readRoot(ctx, tree)
	if err != nil {
		return err
	}

	args := []txn.Arg{
		arg(notes.TreeArg, tree[:]),
		arg(notes.IndexArg, notes.EncodeUint32(index)),
		arg(notes.RootArg, root[:]),
		arg(notes.OldArg, []byte(ctx.Flags.String("old"))),
		arg(notes.NewArg, []byte(ctx.Flags.String("new"))),
	}

	if a.message {
		to, err := readRecipient(ctx)
		if err != nil {
			return err
		}

		args = append(args,
			arg(notes.CmdArg, []byte(notes.CmdUpdateMessage)),
			arg(notes.RecipientArg, to[:]),
		)
	} else {
		args = append(args, arg(notes.CmdArg, []byte(notes.CmdUpdateNote)))
	}

	err = submit(ctx, args...)
	if err != nil {
		return err
	}

	fmt.Fprintf(ctx.Out, "updated index %d\n", index)

	return nil
}

// logAction is an action to replay the event log and print the records of the
// trees.
//
// - implements node.ActionTemplate
type logAction struct{}

// Execute implements node.ActionTemplate.
func (a logAction) Execute(ctx node.Context) error {
	var filter *pda.Address

	if ctx.Flags.String("tree") != "" {
		tree, err := readTree(ctx)
		if err != nil {
			return err
		}

		filter = &tree
	}

	var rt *runtime.Runtime
	err := ctx.Injector.Resolve(&rt)
	if err != nil {
		return xerrors.Errorf("injector: %v", err)
	}

	var log eventlog.Reader
	err = ctx.Injector.Resolve(&log)
	if err != nil {
		return xerrors.Errorf("injector: %v", err)
	}

	var records []eventlog.Record

	err = rt.View(func(snap store.Readable) error {
		records, err = log.Records(snap)
		return err
	})
	if err != nil {
		return xerrors.Errorf("failed to read the log: %v", err)
	}

	history, err := notes.Replay(records)
	if err != nil {
		return xerrors.Errorf("failed to replay the log: %v", err)
	}

	fmt.Fprintf(ctx.Out, "%d records\n", len(records))

	for _, tree := range sortedTrees(history) {
		if filter != nil && *filter != tree.Tree {
			continue
		}

		fmt.Fprintf(ctx.Out, "tree %v root %v seq %d\n", tree.Tree, tree.Root, tree.Seq)

		for _, index := range tree.Indexes() {
			versions := tree.Versions[index]
			entry := versions[len(versions)-1].Entry

			fmt.Fprintf(ctx.Out, "  [%d] %s (%d versions)\n", index, describe(entry), len(versions))
		}
	}

	if filter == nil && len(history.Orphans) > 0 {
		fmt.Fprintf(ctx.Out, "%d orphan entries\n", len(history.Orphans))
	}

	return nil
}

func describe(entry notes.Entry) string {
	switch e := entry.(type) {
	case notes.NoteEntry:
		return fmt.Sprintf("note %q by %v", e.Note, e.Owner)
	case notes.MessageEntry:
		return fmt.Sprintf("message %q from %v to %v", e.Message, e.From, e.To)
	default:
		return fmt.Sprintf("%T", entry)
	}
}

func sortedTrees(history *notes.History) []*notes.TreeHistory {
	trees := make([]*notes.TreeHistory, 0, len(history.Trees))
	for _, tree := range history.Trees {
		trees = append(trees, tree)
	}

	sort.Slice(trees, func(i, j int) bool {
		return bytes.Compare(trees[i].Tree[:], trees[j].Tree[:]) < 0
	})

	return trees
}

// submit makes a signed transaction for the notes contract and executes it.
func submit(ctx node.Context, args ...txn.Arg) error {
	var rt *runtime.Runtime
	err := ctx.Injector.Resolve(&rt)
	if err != nil {
		return xerrors.Errorf("injector: %v", err)
	}

	var mgr txn.Manager
	err = ctx.Injector.Resolve(&mgr)
	if err != nil {
		return xerrors.Errorf("injector: %v", err)
	}

	err = mgr.Sync()
	if err != nil {
		return xerrors.Errorf("failed to sync manager: %v", err)
	}

	args = append(args, arg(native.ContractArg, []byte(notes.ContractName)))

	tx, err := mgr.Make(args...)
	if err != nil {
		return xerrors.Errorf("failed to make transaction: %v", err)
	}

	rtx, ok := tx.(runtime.Transaction)
	if !ok {
		return xerrors.Errorf("invalid transaction type '%T'", tx)
	}

	res, err := rt.Execute(rtx)
	if err != nil {
		return xerrors.Errorf("failed to execute transaction: %v", err)
	}

	if !res.Accepted {
		return xerrors.Errorf("transaction refused: %w", res.Err)
	}

	return nil
}

func view(ctx node.Context, fn func(store.Readable, compression.Reader) error) error {
	var rt *runtime.Runtime
	err := ctx.Injector.Resolve(&rt)
	if err != nil {
		return xerrors.Errorf("injector: %v", err)
	}

	var reader compression.Reader
	err = ctx.Injector.Resolve(&reader)
	if err != nil {
		return xerrors.Errorf("injector: %v", err)
	}

	return rt.View(func(snap store.Readable) error {
		return fn(snap, reader)
	})
}

func readTree(ctx node.Context) (pda.Address, error) {
	tree, err := pda.ParseAddress(ctx.Flags.String("tree"))
	if err != nil {
		return tree, xerrors.Errorf("invalid tree: %v", err)
	}

	return tree, nil
}

func readRoot(ctx node.Context, tree pda.Address) (compression.Node, error) {
	if ctx.Flags.String("root") != "" {
		root, err := pda.ParseAddress(ctx.Flags.String("root"))
		if err != nil {
			return compression.Node{}, xerrors.Errorf("invalid root: %v", err)
		}

		return compression.Node(root), nil
	}

	var root compression.Node

	err := view(ctx, func(snap store.Readable, reader compression.Reader) error {
		info, err := reader.GetTree(snap, tree)
		root = info.Root
		return err
	})
	if err != nil {
		return root, xerrors.Errorf("failed to read tree: %v", err)
	}

	return root, nil
}

func readRecipient(ctx node.Context) (notes.Identity, error) {
	data, err := hex.DecodeString(ctx.Flags.String("to"))
	if err != nil {
		return notes.Identity{}, xerrors.Errorf("invalid recipient: %v", err)
	}

	id, err := notes.ParseIdentity(data)
	if err != nil {
		return id, xerrors.Errorf("invalid recipient: %v", err)
	}

	return id, nil
}

func readUint32(ctx node.Context, name string) (uint32, error) {
	value := ctx.Flags.Int(name)
	if value < 0 || uint64(value) > math.MaxUint32 {
		return 0, xerrors.Errorf("'%s' out of range: %d", name, value)
	}

	return uint32(value), nil
}

// newTreeAddress returns the address of a new tree. It is the public key of a
// fresh key pair, which makes it unique.
func newTreeAddress() (pda.Address, error) {
	data, err := ed25519.NewSigner().GetPublicKey().MarshalBinary()
	if err != nil {
		return pda.Address{}, xerrors.Errorf("failed to generate tree address: %v", err)
	}

	return pda.AddressFromBytes(data)
}

func arg(key string, value []byte) txn.Arg {
	return txn.Arg{Key: key, Value: value}
}
