// Package controller implements the CLI commands of the notes contract.
//
// Each mutation builds a signed transaction with the arguments of the contract
// and runs it through the runtime of the local node.
package controller

import (
	"go.dedis.ch/cnotes/cli"
	"go.dedis.ch/cnotes/cli/node"
	"go.dedis.ch/cnotes/contracts/notes"
	"go.dedis.ch/cnotes/core/compression"
	"go.dedis.ch/cnotes/core/eventlog"
	"go.dedis.ch/cnotes/core/execution/native"
	"go.dedis.ch/cnotes/core/pda"
	"golang.org/x/xerrors"
)

const (
	defaultDepth  = 14
	defaultBuffer = 64
)

// miniController is a CLI initializer to register the notes contract
//
// - implements node.Initializer
type miniController struct{}

// NewController creates a new minimal controller for the notes contract.
func NewController() node.Initializer {
	return miniController{}
}

// SetCommands implements node.Initializer. It defines the commands of the
// trees, the notes, the messages and the log.
func (miniController) SetCommands(builder node.Builder) {
	treeFlag := cli.StringFlag{
		Name:     "tree",
		Usage:    "hex-encoded address of the tree",
		Required: true,
	}

	indexFlag := cli.IntFlag{
		Name:     "index",
		Usage:    "index of the leaf",
		Required: true,
	}

	rootFlag := cli.StringFlag{
		Name:  "root",
		Usage: "hex-encoded root the update is proven against, the current one if empty",
	}

	recipientFlag := cli.StringFlag{
		Name:     "to",
		Usage:    "hex-encoded identity of the recipient",
		Required: true,
	}

	cmd := builder.SetCommand("tree")
	cmd.SetDescription("Manage the trees")

	sub := cmd.SetSubCommand("create")
	sub.SetDescription("Create a new empty tree")
	sub.SetFlags(
		cli.StringFlag{
			Name:  "tree",
			Usage: "hex-encoded address of the tree, a new one if empty",
		},
		cli.IntFlag{
			Name:  "depth",
			Usage: "maximum depth of the tree",
			Value: defaultDepth,
		},
		cli.IntFlag{
			Name:  "buffer",
			Usage: "number of roots the tree remembers",
			Value: defaultBuffer,
		},
	)
	sub.SetAction(builder.MakeAction(createTreeAction{}))

	sub = cmd.SetSubCommand("show")
	sub.SetDescription("Show the state of a tree")
	sub.SetFlags(treeFlag)
	sub.SetAction(builder.MakeAction(showTreeAction{}))

	sub = cmd.SetSubCommand("proof")
	sub.SetDescription("Show the proof of a leaf against the current root")
	sub.SetFlags(treeFlag, indexFlag)
	sub.SetAction(builder.MakeAction(proofAction{}))

	cmd = builder.SetCommand("note")
	cmd.SetDescription("Manage the notes")

	sub = cmd.SetSubCommand("append")
	sub.SetDescription("Append a note to a tree")
	sub.SetFlags(treeFlag, cli.StringFlag{
		Name:     "note",
		Usage:    "content of the note",
		Required: true,
	})
	sub.SetAction(builder.MakeAction(appendAction{}))

	sub = cmd.SetSubCommand("update")
	sub.SetDescription("Update a note of a tree")
	sub.SetFlags(treeFlag, indexFlag, rootFlag,
		cli.StringFlag{Name: "old", Usage: "current content of the note", Required: true},
		cli.StringFlag{Name: "new", Usage: "new content of the note", Required: true},
	)
	sub.SetAction(builder.MakeAction(updateAction{}))

	cmd = builder.SetCommand("message")
	cmd.SetDescription("Manage the messages")

	sub = cmd.SetSubCommand("append")
	sub.SetDescription("Append a message to a tree")
	sub.SetFlags(treeFlag, recipientFlag, cli.StringFlag{
		Name:     "message",
		Usage:    "content of the message",
		Required: true,
	})
	sub.SetAction(builder.MakeAction(appendAction{message: true}))

	sub = cmd.SetSubCommand("update")
	sub.SetDescription("Update a message of a tree")
	sub.SetFlags(treeFlag, recipientFlag, indexFlag, rootFlag,
		cli.StringFlag{Name: "old", Usage: "current content of the message", Required: true},
		cli.StringFlag{Name: "new", Usage: "new content of the message", Required: true},
	)
	sub.SetAction(builder.MakeAction(updateAction{message: true}))

	cmd = builder.SetCommand("log")
	cmd.SetDescription("Replay the event log and show the records")
	cmd.SetFlags(cli.StringFlag{
		Name:  "tree",
		Usage: "hex-encoded address of a tree, every tree if empty",
	})
	cmd.SetAction(builder.MakeAction(logAction{}))
}

// OnStart implements node.Initializer. It registers the notes contract.
func (miniController) OnStart(flags cli.Flags, inj node.Injector) error {
	var program pda.Address
	err := inj.Resolve(&program)
	if err != nil {
		return xerrors.Errorf("failed to resolve program: %v", err)
	}

	var exec *native.Service
	err = inj.Resolve(&exec)
	if err != nil {
		return xerrors.Errorf("failed to resolve native service: %v", err)
	}

	var engine compression.Engine
	err = inj.Resolve(&engine)
	if err != nil {
		return xerrors.Errorf("failed to resolve tree engine: %v", err)
	}

	var log eventlog.Emitter
	err = inj.Resolve(&log)
	if err != nil {
		return xerrors.Errorf("failed to resolve event log: %v", err)
	}

	if exec.Get(notes.ContractName) != nil {
		return xerrors.Errorf("contract '%s' already registered", notes.ContractName)
	}

	contract := notes.NewContract(program, engine, log)

	notes.RegisterContract(exec, contract)

	return nil
}

// OnStop implements node.Initializer.
func (miniController) OnStop(inj node.Injector) error {
	return nil
}
