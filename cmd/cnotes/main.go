// Package main implements the cnotes application, which keeps notes and
// messages in compressed Merkle trees of a local database.
//
//	cnotes keygen
//	cnotes tree create --depth 14 --buffer 64
//	cnotes note append --tree XX --note "hello"
//	cnotes note update --tree XX --index 0 --old "hello" --new "hello world"
//	cnotes message append --tree XX --to XX --message "hi"
//	cnotes log --tree XX
package main

import (
	"fmt"
	"io"
	"os"

	"go.dedis.ch/cnotes/cli/node"
	"go.dedis.ch/cnotes/contracts/notes/controller"
)

type config struct {
	Writer io.Writer
}

func main() {
	err := run(os.Args)
	if err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		os.Exit(1)
	}
}

func run(args []string) error {
	return runWithCfg(args, config{Writer: os.Stdout})
}

func runWithCfg(args []string, cfg config) error {
	builder := node.NewBuilderWithCfg("cnotes", cfg.Writer,
		newHostController(cfg.Writer),
		controller.NewController(),
	)

	app := builder.Build()

	return app.Run(args)
}
