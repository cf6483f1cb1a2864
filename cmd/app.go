// Package cmd implements the stmt command line application.
//
// A main package calls RegisterFlags, then registers Commands on a
// subcommands.Commander and executes the one selected by the user.
package cmd

import (
	"flag"
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/etnz/statement"
	"github.com/etnz/statement/dialect"
	"github.com/etnz/statement/logger"
	"github.com/google/subcommands"
	"github.com/shopspring/decimal"
)

const (
	EnvAccount         = "STMT_ACCOUNT"
	EnvBaseCurrency    = "STMT_BASE_CURRENCY"
	EnvMaxDays         = "STMT_MAX_DAYS"
	EnvAmountTolerance = "STMT_AMOUNT_TOLERANCE"
	EnvRateTolerance   = "STMT_RATE_TOLERANCE"
	EnvLogLevel        = "STMT_LOG_LEVEL"
	EnvDialects        = "STMT_DIALECTS"
	EnvOpenFIGIKey     = "STMT_OPENFIGI_KEY"
	EnvCheckpoints     = "STMT_CHECKPOINTS"
)

// Commands lists the subcommands of the application.
var Commands = []subcommands.Command{
	&ingestCmd{},
	&reportCmd{},
	&detectCmd{},
	&resolveCmd{},
	&topicCmd{},
}

// as a CLI application, it has a very short lived lifecycle, so it is ok to use global variables.
var (
	account         string
	baseCurrency    string
	maxDays         int
	amountTolerance string
	rateTolerance   string
	logLevel        string
	dialectsFile    string

	stdout io.Writer = os.Stdout
)

// RegisterFlags declares the global flags on f. Their defaults come from
// the environment, so it must be called after the environment is loaded.
func RegisterFlags(f *flag.FlagSet) {
	def := statement.DefaultTolerance()
	f.StringVar(&account, "account", os.Getenv(EnvAccount), "account of statements that do not name one")
	f.StringVar(&baseCurrency, "base", os.Getenv(EnvBaseCurrency), "base currency of statements that do not state one")
	f.IntVar(&maxDays, "max-days", envInt(EnvMaxDays, def.MaxDays), "maximum distance in days between the legs of a dividend")
	f.StringVar(&amountTolerance, "amount-tolerance", envOr(EnvAmountTolerance, def.MaxAmountFraction.String()), "maximum difference between the net dividend and the FX withdrawal")
	f.StringVar(&rateTolerance, "rate-tolerance", envOr(EnvRateTolerance, def.RateFraction.String()), "relative difference allowed between implied and stated FX rates")
	f.StringVar(&logLevel, "log-level", envOr(EnvLogLevel, "warn"), "log level (debug, info, warn, error)")
	f.StringVar(&dialectsFile, "dialects", os.Getenv(EnvDialects), "YAML dialect table recognized before the builtin ones")
}

func envOr(key, def string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return def
}

func envInt(key string, def int) int {
	v, err := strconv.Atoi(os.Getenv(key))
	if err != nil {
		return def
	}
	return v
}

// options builds the engine options from the global flags.
func options() (statement.Options, error) {
	log, err := logger.New(logLevel)
	if err != nil {
		return statement.Options{}, err
	}
	tol := statement.DefaultTolerance()
	tol.MaxDays = maxDays
	if tol.MaxAmountFraction, err = decimal.NewFromString(amountTolerance); err != nil {
		return statement.Options{}, fmt.Errorf("invalid amount tolerance %q: %w", amountTolerance, err)
	}
	if tol.RateFraction, err = decimal.NewFromString(rateTolerance); err != nil {
		return statement.Options{}, fmt.Errorf("invalid rate tolerance %q: %w", rateTolerance, err)
	}
	opts := statement.Options{
		Account:      account,
		BaseCurrency: baseCurrency,
		Tolerance:    tol,
		Logger:       log,
	}
	if dialectsFile != "" {
		opts.Dialects, err = loadDialects(dialectsFile)
		if err != nil {
			return statement.Options{}, err
		}
	}
	return opts, nil
}

// loadDialects returns the dialect in file followed by the builtin ones.
func loadDialects(file string) ([]*dialect.Dialect, error) {
	f, err := os.Open(file)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	d, err := dialect.Load(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", file, err)
	}
	builtin, err := dialect.Builtin()
	if err != nil {
		return nil, err
	}
	return append([]*dialect.Dialect{d}, builtin...), nil
}

// ingest runs the engine on the files named in args.
func ingest(opts statement.Options, args []string) (*statement.Ledger, statement.Diagnostics, error) {
	sources := make([]statement.Source, 0, len(args))
	for _, name := range args {
		f, err := os.Open(name)
		if err != nil {
			return nil, nil, err
		}
		defer f.Close()
		sources = append(sources, statement.Source{Name: name, Reader: f})
	}
	return statement.Ingest(sources, opts)
}
