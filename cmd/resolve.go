package cmd

import (
	"context"
	"flag"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/etnz/statement/logger"
	"github.com/etnz/statement/resolver"
	"github.com/google/subcommands"
)

type resolveCmd struct {
	checkpoints string
	key         string
	url         string
}

func (*resolveCmd) Name() string     { return "resolve" }
func (*resolveCmd) Synopsis() string { return "resolve the tickers of the securities in broker statements" }
func (*resolveCmd) Usage() string {
	return `stmt resolve [-checkpoints <file>] [-key <api key>] <file>...

  Resolves the ISIN of every trade and dividend with OpenFIGI. Answers are
  checkpointed, so an interrupted run resumes where it stopped. Checkpoints
  are a JSONL file, or a SQLite database when the file ends in .db or .sqlite.
`
}

func (c *resolveCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.checkpoints, "checkpoints", envOr(EnvCheckpoints, "checkpoints.jsonl"), "checkpoint file")
	f.StringVar(&c.key, "key", os.Getenv(EnvOpenFIGIKey), "OpenFIGI API key")
	f.StringVar(&c.url, "url", resolver.DefaultOpenFIGIURL, "OpenFIGI mapping endpoint")
}

func (c *resolveCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	opts, err := options()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return subcommands.ExitUsageError
	}
	ledger, _, err := ingest(opts, f.Args())
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		if ledger == nil {
			return subcommands.ExitFailure
		}
	}

	store, err := resolver.OpenStore(c.checkpoints)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return subcommands.ExitFailure
	}
	defer store.Close()

	figi := resolver.NewOpenFIGI(c.key)
	figi.URL = c.url
	e := &resolver.Enricher{Resolver: figi, Store: store}

	ctx = logger.WithContext(ctx, opts.Logger)
	results, err := e.Run(ctx, resolver.Queries(ledger))

	w := tabwriter.NewWriter(stdout, 0, 8, 2, ' ', 0)
	fmt.Fprintln(w, "ISIN\tCurrency\tTicker\tVenue\tConfidence")
	for _, r := range results {
		ticker := r.Match.Ticker
		if r.NotFound {
			ticker = "-"
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%.2f\n", r.ISIN, r.Currency, ticker, r.Match.Venue, r.Match.Confidence)
	}
	w.Flush()

	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\nrun the command again to resume\n", err)
		return subcommands.ExitFailure
	}
	return subcommands.ExitSuccess
}
