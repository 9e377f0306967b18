// Command dispatchctl inspects and drives workflows described in YAML or
// JSON definition files.
package main

import (
	"fmt"
	"io"
	"os"

	"github.com/alecthomas/kong"
	"github.com/goliatone/go-logger/glog"

	dispatch "github.com/goliatone/go-dispatch"
)

// Globals are shared by every subcommand.
type Globals struct {
	Def      string `help:"Workflow definition file (YAML or JSON)." required:"" type:"existingfile" env:"DISPATCH_DEF"`
	LogLevel string `help:"Log level (trace, debug, info, warn, error)." default:"warn" env:"DISPATCH_LOG_LEVEL"`

	out    io.Writer       `kong:"-"`
	logger dispatch.Logger `kong:"-"`
}

// CLI is the dispatchctl command tree.
type CLI struct {
	Globals

	Transitions TransitionsCmd `cmd:"" help:"List the transitions open to a document."`
	Apply       ApplyCmd       `cmd:"" help:"Move a document to a target state."`
	Graph       GraphCmd       `cmd:"" help:"Print the states and transitions of a definition."`
}

func main() {
	if err := run(os.Args[1:], os.Stdout, os.Stderr); err != nil {
		fmt.Fprintf(os.Stderr, "dispatchctl: %v\n", err)
		os.Exit(1)
	}
}

func run(args []string, out, errOut io.Writer) error {
	var cli CLI
	parser, err := kong.New(&cli,
		kong.Name("dispatchctl"),
		kong.Description("Inspect and drive declarative workflows."),
		kong.Writers(out, errOut),
		kong.UsageOnError(),
	)
	if err != nil {
		return err
	}
	ctx, err := parser.Parse(args)
	if err != nil {
		return err
	}

	cli.out = out
	cli.logger = dispatch.NewGlogLogger(glog.NewLogger(
		glog.WithWriter(errOut),
		glog.WithLoggerTypeJSON(),
		glog.WithLevel(cli.LogLevel),
	))
	return ctx.Run(&cli.Globals)
}
