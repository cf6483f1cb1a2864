package cmd

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/etnz/statement"
	"github.com/google/subcommands"
)

type ingestCmd struct {
	output string
	diag   bool
}

func (*ingestCmd) Name() string     { return "ingest" }
func (*ingestCmd) Synopsis() string { return "ingest broker statements into a JSONL ledger" }
func (*ingestCmd) Usage() string {
	return `stmt ingest [-o <ledger.jsonl>] [-diag] <file>...

  Reads broker statements, reconciles cross-currency dividends, and writes
  the merged ledger, one event per line, in date order.

  Diagnostics (unclassified rows, reconciliation gaps, duplicates...) are
  counted on stderr, -diag lists them as JSONL instead.

Usage Examples:
# Writes the ledger of two exports to ledger.jsonl.
$ stmt ingest -o ledger.jsonl degiro.csv ibkr.csv

`
}

func (c *ingestCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.output, "o", "", "output file, defaults to stdout")
	f.BoolVar(&c.diag, "diag", false, "list diagnostics on stderr")
}

func (c *ingestCmd) Execute(_ context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if f.NArg() == 0 {
		fmt.Fprintln(os.Stderr, "Error: no statement to ingest")
		return subcommands.ExitUsageError
	}
	opts, err := options()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return subcommands.ExitUsageError
	}

	status := subcommands.ExitSuccess
	ledger, diags, err := ingest(opts, f.Args())
	if ledger == nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return subcommands.ExitFailure
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		status = subcommands.ExitFailure
	}

	var w io.Writer = stdout
	if c.output != "" {
		out, err := os.Create(c.output)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error creating ledger file %q: %v\n", c.output, err)
			return subcommands.ExitFailure
		}
		defer out.Close()
		w = out
	}
	if err := statement.EncodeLedger(w, ledger); err != nil {
		fmt.Fprintf(os.Stderr, "Error writing ledger: %v\n", err)
		return subcommands.ExitFailure
	}

	switch {
	case c.diag:
		if err := statement.EncodeDiagnostics(os.Stderr, diags); err != nil {
			fmt.Fprintf(os.Stderr, "Error writing diagnostics: %v\n", err)
			return subcommands.ExitFailure
		}
	case len(diags) > 0:
		fmt.Fprintf(os.Stderr, "%d events, %d diagnostics (use -diag to list them)\n", ledger.Len(), len(diags))
	}
	return status
}
