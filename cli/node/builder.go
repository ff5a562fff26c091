// This file contains the implementation of a CLI builder.

package node

import (
	"io"
	"os"

	"go.dedis.ch/cnotes"
	"go.dedis.ch/cnotes/cli"
	"go.dedis.ch/cnotes/cli/ucli"
	"golang.org/x/xerrors"
)

// CLIBuilder is an application builder that will build a CLI to run the
// commands of the initializers on a local node.
//
// - implements node.Builder
// - implements cli.Builder
type CLIBuilder struct {
	cli.Builder

	inits  []Initializer
	writer io.Writer
}

// NewBuilder returns a new empty builder that prints to the standard output.
func NewBuilder(name string, inits ...Initializer) *CLIBuilder {
	return NewBuilderWithCfg(name, nil, inits...)
}

// NewBuilderWithCfg returns a new empty builder with a specific output.
func NewBuilderWithCfg(name string, out io.Writer, inits ...Initializer) *CLIBuilder {
	if out == nil {
		out = os.Stdout
	}

	// We are using urfave cli builder
	builder := ucli.NewBuilder(name, ucli.WithWriter(out))

	return &CLIBuilder{
		Builder: builder,
		inits:   inits,
		writer:  out,
	}
}

// MakeAction implements node.Builder. It creates a CLI action from the
// template. The initializers are started in order before the execution and
// stopped in reverse order afterwards.
func (b *CLIBuilder) MakeAction(tmpl ActionTemplate) cli.Action {
	return func(flags cli.Flags) error {
		injector := NewInjector()

		started := 0

		var err error
		for _, init := range b.inits {
			err = init.OnStart(flags, injector)
			if err != nil {
				break
			}

			started++
		}

		if err != nil {
			err = xerrors.Errorf("couldn't run the controller: %v", err)
		} else {
			err = tmpl.Execute(Context{
				Injector: injector,
				Flags:    flags,
				Out:      b.writer,
			})

			if err != nil {
				err = xerrors.Errorf("command error: %w", err)
			}
		}

		// Controllers are stopped in reverse order so that high level
		// components are stopped before lower level ones.
		for i := started - 1; i >= 0; i-- {
			stopErr := b.inits[i].OnStop(injector)
			if stopErr != nil && err == nil {
				err = xerrors.Errorf("couldn't stop controller: %v", stopErr)
			} else if stopErr != nil {
				cnotes.Logger.Warn().Err(stopErr).Msg("couldn't stop controller")
			}
		}

		return err
	}
}

// Build implements cli.Builder. It returns the application.
func (b *CLIBuilder) Build() cli.Application {
	for _, controller := range b.inits {
		controller.SetCommands(b)
	}

	return b.Builder.Build()
}
