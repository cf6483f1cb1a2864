package cmd

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"

	"github.com/etnz/statement"
	"github.com/etnz/statement/dialect"
	"github.com/google/subcommands"
)

type detectCmd struct{}

func (*detectCmd) Name() string     { return "detect" }
func (*detectCmd) Synopsis() string { return "print the dialect of broker statements" }
func (*detectCmd) Usage() string {
	return `stmt detect <file>...

  Prints the dialect recognized for each file, or "unknown".
`
}

func (*detectCmd) SetFlags(f *flag.FlagSet) {}

func (*detectCmd) Execute(_ context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	dialects, err := dialect.Builtin()
	if dialectsFile != "" {
		dialects, err = loadDialects(dialectsFile)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return subcommands.ExitFailure
	}

	status := subcommands.ExitSuccess
	for _, name := range f.Args() {
		d, err := detect(name, dialects)
		switch {
		case errors.Is(err, statement.ErrUnrecognized):
			fmt.Fprintf(stdout, "%s: unknown\n", name)
		case err != nil:
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			status = subcommands.ExitFailure
		default:
			fmt.Fprintf(stdout, "%s: %s (%s)\n", name, d.ID, d.Name)
		}
	}
	return status
}

func detect(name string, dialects []*dialect.Dialect) (*dialect.Dialect, error) {
	f, err := os.Open(name)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	_, d, err := statement.Open(statement.Source{Name: name, Reader: f}, dialects)
	return d, err
}
