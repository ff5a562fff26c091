// Package node defines the Builder type, which builds a CLI application that
// runs its actions on a local node.
//
// A node is the set of components the initializers start, such as the
// database and the runtime. The components are started before an action is
// executed and they are stopped right after, so that each invocation of the
// application holds the resources only for the duration of the command. See
// the example.
package node

import (
	"io"

	"go.dedis.ch/cnotes/cli"
)

// Builder is the builder that will be provided to the initializers, which can
// create commands and actions.
type Builder interface {
	// SetCommand creates a new command and returns its builder.
	SetCommand(name string) cli.CommandBuilder

	// SetFlags appends a list of flags that are available to every command,
	// for instance to locate the configuration.
	SetFlags(...cli.Flag)

	// MakeAction creates a CLI action from a given template. The components
	// of the node are started before the template is executed.
	MakeAction(ActionTemplate) cli.Action
}

// ActionTemplate is an extension of the cli.Action interface to allow an action
// to use the components of the node.
type ActionTemplate interface {
	// Execute processes a command with the components of the node.
	Execute(Context) error
}

// Context is the context available to the action when being invoked. It
// provides the dependency injector alongside with the flags and the output.
type Context struct {
	Injector Injector
	Flags    cli.Flags
	Out      io.Writer
}

// Injector is a dependency injection abstraction.
type Injector interface {
	// Resolve populates the input with the dependency if any compatible exists.
	Resolve(interface{}) error

	// Inject stores the dependency to be resolved later on.
	Inject(interface{})
}

// Initializer is the interface that a module can implement to set its own
// commands and inject the dependencies that will be resolved in the actions.
type Initializer interface {
	// SetCommands populates the builder with the commands of the controller.
	SetCommands(Builder)

	// OnStart starts the components of the initializer and populates the
	// injector.
	OnStart(cli.Flags, Injector) error

	// OnStop stops the components and cleans the resources.
	OnStop(Injector) error
}
