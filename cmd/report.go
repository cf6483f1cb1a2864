package cmd

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/etnz/statement/renderer"
	"github.com/google/subcommands"
)

type reportCmd struct {
	title string
	html  string
	raw   bool
}

func (*reportCmd) Name() string     { return "report" }
func (*reportCmd) Synopsis() string { return "display a report of broker statements" }
func (*reportCmd) Usage() string {
	return `stmt report [-title <title>] [-html <file.html>] [-raw] <file>...

  Displays, per account, the consolidated dividends, trades, remaining cash
  movements, totals per currency, and the diagnostics of the ingestion.
`
}

func (c *reportCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.title, "title", "Statements", "report title")
	f.StringVar(&c.html, "html", "", "write the report as HTML to this file")
	f.BoolVar(&c.raw, "raw", false, "print markdown instead of rendering it")
}

func (c *reportCmd) Execute(_ context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if f.NArg() == 0 {
		fmt.Fprintln(os.Stderr, "Error: no statement to report on")
		return subcommands.ExitUsageError
	}
	opts, err := options()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return subcommands.ExitUsageError
	}
	ledger, diags, err := ingest(opts, f.Args())
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		if ledger == nil {
			return subcommands.ExitFailure
		}
	}

	md := renderer.RenderReport(renderer.NewReport(c.title, ledger, diags))
	switch {
	case c.html != "":
		page, err := renderer.HTML(c.title, md)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			return subcommands.ExitFailure
		}
		if err := os.WriteFile(c.html, []byte(page), 0644); err != nil {
			fmt.Fprintf(os.Stderr, "Error writing %q: %v\n", c.html, err)
			return subcommands.ExitFailure
		}
	case c.raw:
		fmt.Fprint(stdout, md)
	default:
		printMarkdown(md)
	}
	return subcommands.ExitSuccess
}
