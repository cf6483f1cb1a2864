package resolver

import (
	"context"
	"errors"
	"fmt"

	"github.com/etnz/statement/logger"
)

// Result is the outcome of one query in an enrichment run.
type Result struct {
	Checkpoint
	Resumed bool // read from the store, not resolved in this run
}

// Enricher resolves queries and checkpoints every answer.
type Enricher struct {
	Resolver Resolver
	Store    CheckpointStore
}

// Run resolves the queries that have no checkpoint yet.
//
// It stops on the first error other than ErrNotFound and returns the
// results obtained so far. Running it again resumes after the last checkpoint.
// It logs with the logger of ctx.
func (e *Enricher) Run(ctx context.Context, queries []Query) ([]Result, error) {
	log := logger.FromContext(ctx)
	done, err := e.Store.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("cannot load checkpoints: %w", err)
	}

	results := make([]Result, 0, len(queries))
	for _, q := range queries {
		if c, ok := done[q.Key()]; ok {
			results = append(results, Result{Checkpoint: c, Resumed: true})
			continue
		}
		if err := ctx.Err(); err != nil {
			return results, err
		}

		c := Checkpoint{Query: q}
		m, err := e.Resolver.Resolve(ctx, q)
		switch {
		case errors.Is(err, ErrNotFound):
			c.NotFound = true
			log.Info().Str("isin", q.ISIN).Str("currency", q.Currency).Msg("no ticker")
		case err != nil:
			return results, fmt.Errorf("cannot resolve %s: %w", q.Key(), err)
		default:
			c.Match = m
			log.Debug().Str("isin", q.ISIN).Str("ticker", m.Ticker).Float64("confidence", m.Confidence).Msg("resolved")
		}
		if err := e.Store.Save(ctx, c); err != nil {
			return results, fmt.Errorf("cannot save checkpoint %s: %w", q.Key(), err)
		}
		done[q.Key()] = c
		results = append(results, Result{Checkpoint: c})
	}
	return results, nil
}
