// Package notes implements a native contract that keeps notes and messages in
// compressed Merkle trees.
//
// The contract never stores the content of a record. It computes the leaf of
// the record, publishes an entry with the content in the event log and asks
// the tree engine to append or replace the leaf. An observer can rebuild the
// content of every tree by replaying the event log.
//
// The trees are driven by an authority derived from the tree address and the
// program identity, so that only this contract can mutate its trees.
package notes

import (
	"encoding/binary"
	"unicode/utf8"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"go.dedis.ch/cnotes"
	"go.dedis.ch/cnotes/core/compression"
	"go.dedis.ch/cnotes/core/eventlog"
	"go.dedis.ch/cnotes/core/execution"
	"go.dedis.ch/cnotes/core/execution/native"
	"go.dedis.ch/cnotes/core/pda"
	"go.dedis.ch/cnotes/core/store"
	"golang.org/x/xerrors"
)

// commands defines the commands of the notes contract. This interface helps in
// testing the contract.
type commands interface {
	createTree(snap store.Snapshot, step execution.Step) error
	appendNote(snap store.Snapshot, step execution.Step) error
	updateNote(snap store.Snapshot, step execution.Step) error
	appendMessage(snap store.Snapshot, step execution.Step) error
	updateMessage(snap store.Snapshot, step execution.Step) error
}

const (
	// ContractName is the name of the contract.
	ContractName = "go.dedis.ch/cnotes.Notes"

	// ContractUID is the unique identifier of the contract.
	ContractUID = "NOTE"

	// CmdArg is the argument's name to indicate the kind of command we want to
	// run on the contract. Should be one of the Command type.
	CmdArg = "notes:command"

	// TreeArg is the argument's name of the 32-bytes tree address.
	TreeArg = "notes:tree"

	// DepthArg is the argument's name of the depth of a new tree, encoded as a
	// little-endian uint32.
	DepthArg = "notes:depth"

	// BufferArg is the argument's name of the buffer size of a new tree,
	// encoded as a little-endian uint32.
	BufferArg = "notes:buffer"

	// ContentArg is the argument's name of the content of a new record.
	ContentArg = "notes:content"

	// RecipientArg is the argument's name of the recipient of a message.
	RecipientArg = "notes:recipient"

	// IndexArg is the argument's name of the index of the leaf to update,
	// encoded as a little-endian uint32.
	IndexArg = "notes:index"

	// RootArg is the argument's name of the 32-bytes root the update is
	// proven against.
	RootArg = "notes:root"

	// OldArg is the argument's name of the current content of the record to
	// update.
	OldArg = "notes:old"

	// NewArg is the argument's name of the new content of the record to
	// update.
	NewArg = "notes:new"
)

// Command defines a type of command for the notes contract.
type Command string

const (
	// CmdCreateTree defines the command to initialize a new tree.
	CmdCreateTree Command = "CREATE_TREE"

	// CmdAppendNote defines the command to append a note.
	CmdAppendNote Command = "APPEND_NOTE"

	// CmdUpdateNote defines the command to update a note.
	CmdUpdateNote Command = "UPDATE_NOTE"

	// CmdAppendMessage defines the command to append a message.
	CmdAppendMessage Command = "APPEND_MESSAGE"

	// CmdUpdateMessage defines the command to update a message.
	CmdUpdateMessage Command = "UPDATE_MESSAGE"
)

const (
	// MinDepth is the minimum depth of a tree.
	MinDepth = 3

	// MaxDepth is the maximum depth of a tree.
	MaxDepth = 30

	// MinBufferSize is the minimum buffer size of a tree.
	MinBufferSize = 8

	// MaxBufferSize is the maximum buffer size of a tree.
	MaxBufferSize = 1024
)

var promOps = prometheus.NewCounterVec(prometheus.CounterOpts{
	Name: "cnotes_notes_operations_total",
	Help: "total number of commands executed by the notes contract",
}, []string{"command", "result"})

func init() {
	cnotes.PromCollectors = append(cnotes.PromCollectors, promOps)
}

// RegisterContract registers the notes contract to the given execution
// service.
func RegisterContract(exec *native.Service, c Contract) {
	exec.Set(ContractName, c)
}

// Contract is the notes contract.
//
// - implements native.Contract
type Contract struct {
	// program is the identity the tree authorities are derived from.
	program pda.Address

	engine compression.Engine
	log    eventlog.Emitter

	// cmd provides the commands executions
	cmd commands

	logger zerolog.Logger
}

// NewContract creates a new notes contract for the program. The engine and the
// event log are the collaborators the contract drives.
func NewContract(program pda.Address, engine compression.Engine, log eventlog.Emitter) Contract {
	contract := Contract{
		program: program,
		engine:  engine,
		log:     log,
		logger:  cnotes.Logger.With().Str("contract", "notes").Logger(),
	}

	contract.cmd = notesCommand{Contract: &contract}

	return contract
}

// UID implements native.Contract.
func (c Contract) UID() string {
	return ContractUID
}

// Execute implements native.Contract. It runs the appropriate command.
func (c Contract) Execute(snap store.Snapshot, step execution.Step) error {
	cmd := Command(step.Current.GetArg(CmdArg))

	err := c.execute(snap, step, cmd)

	result := "ok"
	if err != nil {
		result = ClassOf(err).String()
	}

	promOps.WithLabelValues(string(cmd), result).Inc()

	return err
}

func (c Contract) execute(snap store.Snapshot, step execution.Step, cmd Command) error {
	var err error

	switch cmd {
	case "":
		return xerrors.Errorf("'%s' not found in tx arg: %w", CmdArg, ErrMissingArg)
	case CmdCreateTree:
		err = c.cmd.createTree(snap, step)
	case CmdAppendNote:
		err = c.cmd.appendNote(snap, step)
	case CmdUpdateNote:
		err = c.cmd.updateNote(snap, step)
	case CmdAppendMessage:
		err = c.cmd.appendMessage(snap, step)
	case CmdUpdateMessage:
		err = c.cmd.updateMessage(snap, step)
	default:
		return xerrors.Errorf("unknown command '%s': %w", cmd, ErrInvalidParameter)
	}

	if err != nil {
		return xerrors.Errorf("failed to %s: %w", cmd, err)
	}

	return nil
}

// notesCommand implements the commands of the notes contract
//
// - implements commands
type notesCommand struct {
	*Contract
}

// createTree implements commands. It validates the parameters and initializes
// an empty tree bound to its derived authority.
func (c notesCommand) createTree(snap store.Snapshot, step execution.Step) error {
	tree, err := readAddress(step, TreeArg)
	if err != nil {
		return err
	}

	depth, err := readUint32(step, DepthArg)
	if err != nil {
		return err
	}

	buffer, err := readUint32(step, BufferArg)
	if err != nil {
		return err
	}

	if depth < MinDepth || depth > MaxDepth {
		return xerrors.Errorf("depth %d not in [%d, %d]: %w", depth, MinDepth, MaxDepth, ErrInvalidParameter)
	}

	if buffer < MinBufferSize || buffer > MaxBufferSize {
		return xerrors.Errorf("buffer size %d not in [%d, %d]: %w",
			buffer, MinBufferSize, MaxBufferSize, ErrInvalidParameter)
	}

	auth, err := c.authority(tree)
	if err != nil {
		return err
	}

	params := compression.Params{MaxDepth: depth, MaxBufferSize: buffer}

	err = c.engine.InitEmpty(snap, tree, auth, params)
	if err != nil {
		return EngineError{Op: "initialize tree", Err: err}
	}

	c.logger.Info().
		Stringer("tree", tree).
		Stringer("authority", auth.Address).
		Uint32("depth", depth).
		Uint32("buffer", buffer).
		Msg("tree created")

	return nil
}

// appendNote implements commands. It appends a note owned by the signer.
func (c notesCommand) appendNote(snap store.Snapshot, step execution.Step) error {
	owner, err := IdentityOf(step.Current.GetIdentity())
	if err != nil {
		return err
	}

	tree, err := readAddress(step, TreeArg)
	if err != nil {
		return err
	}

	note, err := readContent(step, ContentArg)
	if err != nil {
		return err
	}

	leaf := HashLeaf(note, owner)

	return c.append(snap, tree, NoteEntry{Leaf: leaf, Owner: owner, Note: note})
}

// updateNote implements commands. It replaces a note owned by the signer.
func (c notesCommand) updateNote(snap store.Snapshot, step execution.Step) error {
	owner, err := IdentityOf(step.Current.GetIdentity())
	if err != nil {
		return err
	}

	req, err := readUpdate(step)
	if err != nil {
		return err
	}

	return c.update(snap, req, owner, func(leaf Leaf) Entry {
		return NoteEntry{Leaf: leaf, Owner: owner, Note: req.next}
	})
}

// appendMessage implements commands. It appends a message sent by the signer
// to the recipient.
func (c notesCommand) appendMessage(snap store.Snapshot, step execution.Step) error {
	from, err := IdentityOf(step.Current.GetIdentity())
	if err != nil {
		return err
	}

	to, err := readRecipient(step)
	if err != nil {
		return err
	}

	tree, err := readAddress(step, TreeArg)
	if err != nil {
		return err
	}

	msg, err := readContent(step, ContentArg)
	if err != nil {
		return err
	}

	leaf := HashLeaf(msg, from)

	return c.append(snap, tree, MessageEntry{Leaf: leaf, From: from, To: to, Message: msg})
}

// updateMessage implements commands. It replaces a message sent by the signer
// to the recipient.
func (c notesCommand) updateMessage(snap store.Snapshot, step execution.Step) error {
	from, err := IdentityOf(step.Current.GetIdentity())
	if err != nil {
		return err
	}

	to, err := readRecipient(step)
	if err != nil {
		return err
	}

	req, err := readUpdate(step)
	if err != nil {
		return err
	}

	return c.update(snap, req, from, func(leaf Leaf) Entry {
		return MessageEntry{Leaf: leaf, From: from, To: to, Message: req.next}
	})
}

// append emits the entry and then appends its leaf, so that a leaf never
// exists in a tree without its entry in the log.
func (c notesCommand) append(snap store.Snapshot, tree pda.Address, entry Entry) error {
	err := c.emit(snap, entry)
	if err != nil {
		return err
	}

	auth, err := c.authority(tree)
	if err != nil {
		return err
	}

	err = c.engine.Append(snap, tree, auth, compression.Node(entry.GetLeaf()))
	if err != nil {
		return EngineError{Op: "append leaf", Err: err}
	}

	c.logger.Info().
		Stringer("tree", tree).
		Stringer("leaf", entry.GetLeaf()).
		Msg("record appended")

	return nil
}

// update verifies the current record, emits the entry of the new one and
// replaces the leaf.
func (c notesCommand) update(snap store.Snapshot, req updateRequest, identity Identity,
	newEntry func(Leaf) Entry) error {

	if req.prev == req.next {
		return xerrors.Errorf("index %d: %w", req.index, ErrIdenticalContent)
	}

	oldLeaf := HashLeaf(req.prev, identity)

	auth, err := c.authority(req.tree)
	if err != nil {
		return err
	}

	err = c.engine.VerifyLeaf(snap, req.tree, req.root, compression.Node(oldLeaf), req.index)
	if err != nil {
		return verificationError(err)
	}

	entry := newEntry(HashLeaf(req.next, identity))

	err = c.emit(snap, entry)
	if err != nil {
		return err
	}

	err = c.engine.ReplaceLeaf(snap, req.tree, auth, req.root,
		compression.Node(oldLeaf), compression.Node(entry.GetLeaf()), req.index)
	if err != nil {
		return EngineError{Op: "replace leaf", Err: err}
	}

	c.logger.Info().
		Stringer("tree", req.tree).
		Uint32("index", req.index).
		Stringer("leaf", entry.GetLeaf()).
		Msg("record updated")

	return nil
}

func (c notesCommand) emit(snap store.Snapshot, entry Entry) error {
	data, err := entry.MarshalBinary()
	if err != nil {
		return xerrors.Errorf("failed to encode entry: %v", err)
	}

	_, err = c.log.Emit(snap, eventlog.Event{Kind: eventlog.KindApplicationData, Data: data})
	if err != nil {
		return EngineError{Op: "emit entry", Err: err}
	}

	return nil
}

func (c notesCommand) authority(tree pda.Address) (compression.Authority, error) {
	auth, err := DeriveAuthority(c.program, tree)
	if err != nil {
		return auth, EngineError{Op: "derive authority", Err: err}
	}

	return auth, nil
}

// verificationError classifies the error of a verification. A proof that does
// not hold is a consistency error, anything else is a failure of the engine.
func verificationError(err error) error {
	if xerrors.Is(err, compression.ErrRootNotFound) ||
		xerrors.Is(err, compression.ErrLeafMismatch) ||
		xerrors.Is(err, compression.ErrIndexOutOfRange) {

		return VerificationError{Err: err}
	}

	return EngineError{Op: "verify leaf", Err: err}
}

type updateRequest struct {
	tree  pda.Address
	index uint32
	root  compression.Node
	prev  string
	next  string
}

func readUpdate(step execution.Step) (updateRequest, error) {
	var req updateRequest
	var err error

	req.tree, err = readAddress(step, TreeArg)
	if err != nil {
		return req, err
	}

	req.index, err = readUint32(step, IndexArg)
	if err != nil {
		return req, err
	}

	root, err := readAddress(step, RootArg)
	if err != nil {
		return req, err
	}

	req.root = compression.Node(root)

	req.prev, err = readContent(step, OldArg)
	if err != nil {
		return req, err
	}

	req.next, err = readContent(step, NewArg)
	if err != nil {
		return req, err
	}

	return req, nil
}

func readArg(step execution.Step, key string) ([]byte, error) {
	value := step.Current.GetArg(key)
	if value == nil {
		return nil, xerrors.Errorf("'%s' not found in tx arg: %w", key, ErrMissingArg)
	}

	return value, nil
}

func readAddress(step execution.Step, key string) (pda.Address, error) {
	value, err := readArg(step, key)
	if err != nil {
		return pda.Address{}, err
	}

	addr, err := pda.AddressFromBytes(value)
	if err != nil {
		return addr, xerrors.Errorf("'%s': %v: %w", key, err, ErrInvalidParameter)
	}

	return addr, nil
}

func readUint32(step execution.Step, key string) (uint32, error) {
	value, err := readArg(step, key)
	if err != nil {
		return 0, err
	}

	if len(value) != 4 {
		return 0, xerrors.Errorf("'%s' has %d bytes instead of 4: %w", key, len(value), ErrInvalidParameter)
	}

	return binary.LittleEndian.Uint32(value), nil
}

func readContent(step execution.Step, key string) (string, error) {
	value, err := readArg(step, key)
	if err != nil {
		return "", err
	}

	if !utf8.Valid(value) {
		return "", xerrors.Errorf("'%s' is not valid utf-8: %w", key, ErrInvalidParameter)
	}

	return string(value), nil
}

func readRecipient(step execution.Step) (Identity, error) {
	value, err := readArg(step, RecipientArg)
	if err != nil {
		return Identity{}, err
	}

	return ParseIdentity(value)
}

// EncodeUint32 encodes a number argument of the contract.
func EncodeUint32(v uint32) []byte {
	buffer := make([]byte, 4)
	binary.LittleEndian.PutUint32(buffer, v)

	return buffer
}
