// Package engine wires the query pipeline's packages together behind one
// Execute entry point: parse (cached), plan, translate or traverse, run
// against the tenant's store, and format the result (spec.md §4.7 the
// top-level Executor).
package engine

import (
	"context"
	"time"

	"github.com/corvusdb/corvus/internal/ast"
	"github.com/corvusdb/corvus/internal/config"
	"github.com/corvusdb/corvus/internal/errs"
	"github.com/corvusdb/corvus/internal/format"
	"github.com/corvusdb/corvus/internal/hybrid"
	"github.com/corvusdb/corvus/internal/logging"
	"github.com/corvusdb/corvus/internal/parser"
	"github.com/corvusdb/corvus/internal/planner"
	"github.com/corvusdb/corvus/internal/store"
	"github.com/corvusdb/corvus/internal/translator"
)

// ExecuteOptions controls one Execute call beyond the query text itself.
type ExecuteOptions struct {
	// Explain, when set, skips running any write statements and instead
	// returns the compiled plan in Result.Explain (spec.md §4.7's
	// supplemented EXPLAIN mode).
	Explain bool
}

// Result is what one Execute call returns to an embedding caller.
type Result struct {
	Columns []string
	Rows    []format.Row
	Changes int64
	Explain *ExplainInfo
}

// ExplainInfo surfaces the plan Execute would have run, without running it.
type ExplainInfo struct {
	HybridEligible bool
	HybridReason   string
	Writes         []string
	Select         string
}

// execResult is the untyped result the planning/execution stages hand back
// before Execute wraps it into the public Result (keeping format.Row
// decoding in one place, at the boundary).
type execResult struct {
	Columns []string
	Rows    []format.Row
	Changes int64
}

// Executor holds the shared, process-wide pipeline state: the tenant
// registry, the AST cache, and ambient config/logging.
type Executor struct {
	registry *store.Registry
	cfg      *config.Config
	log      *logging.Logger
	cache    *astCache
}

// New builds an Executor. log may be nil, in which case entries are
// discarded (logging.Discard).
func New(registry *store.Registry, cfg *config.Config, log *logging.Logger) *Executor {
	if log == nil {
		log = logging.Discard()
	}
	return &Executor{
		registry: registry,
		cfg:      cfg,
		log:      log,
		cache:    newASTCache(500),
	}
}

// Execute parses, plans, and runs one Cypher query against tenantID's store
// (spec.md §4.7). params supplies bind values for $name parameter
// references; it may be nil.
func (e *Executor) Execute(ctx context.Context, tenantID, cypherText string, params map[string]any, opts ExecuteOptions) (*Result, error) {
	start := time.Now()
	log := e.log.WithFields(map[string]any{"tenant": tenantID})

	if len(cypherText) > e.cfg.MaxQueryLength {
		return nil, errs.New(errs.KindResourceCap, "query text exceeds the maximum length of %d bytes", e.cfg.MaxQueryLength)
	}

	stmt, err := e.cache.get(cypherText)
	if pe, ok := err.(*parser.ParseError); ok {
		err = errs.AtPosition(errs.KindParse, errs.Position{Offset: pe.Pos.Offset, Line: pe.Pos.Line, Column: pe.Pos.Column}, "%s", pe.Message)
	}
	if err != nil {
		log.WithField("stage", "parse").Warn(err)
		return nil, err
	}

	s, err := e.registry.Get(ctx, tenantID)
	if err != nil {
		return nil, errs.Wrap(errs.KindStore, err, "open tenant store")
	}

	if opts.Explain {
		info, err := e.explain(stmt, params)
		if err != nil {
			return nil, err
		}
		log.WithFields(map[string]any{"stage": "explain", "elapsed_ms": time.Since(start).Milliseconds()}).Info("query explained")
		return &Result{Explain: info}, nil
	}

	res, err := e.run(ctx, s, stmt, params)
	if err != nil {
		log.WithField("stage", "execute").Warn(err)
		return nil, err
	}

	log.WithFields(map[string]any{
		"stage":      "execute",
		"elapsed_ms": time.Since(start).Milliseconds(),
		"rows":       len(res.Rows),
		"changes":    res.Changes,
	}).Info("query executed")

	return &Result{Columns: res.Columns, Rows: res.Rows, Changes: res.Changes}, nil
}

// run dispatches one parsed statement's queries to the multi-phase,
// hybrid, or single-phase translation path.
func (e *Executor) run(ctx context.Context, s *store.Store, stmt *ast.Statement, params map[string]any) (*execResult, error) {
	if len(stmt.Queries) == 1 {
		q := stmt.Queries[0]

		if shape := detectMultiPhase(q); shape != nil {
			return runMultiPhase(ctx, s, shape, params)
		}

		if plan := planner.Evaluate(q, e.cfg.DefaultMaxHops); plan.Eligible {
			return e.runHybrid(ctx, s, plan.Chain, params)
		}
	}

	return e.runTranslated(ctx, s, stmt, params)
}

// runTranslated compiles stmt with the Translator and executes every
// resulting write statement, then the final SELECT if one exists (spec.md
// §4.2 / §4.7's single-phase path).
func (e *Executor) runTranslated(ctx context.Context, s *store.Store, stmt *ast.Statement, params map[string]any) (*execResult, error) {
	tr, err := translator.Translate(stmt, params)
	if err != nil {
		return nil, err
	}

	var changes int64
	if len(tr.Writes) > 0 {
		err := s.Transaction(ctx, func(tx *store.Tx) error {
			for _, w := range tr.Writes {
				res, err := tx.Execute(ctx, store.Statement{SQL: w.SQL, Params: w.Params})
				if err != nil {
					return err
				}
				changes += res.Changes
			}
			return nil
		})
		if err != nil {
			return nil, errs.Wrap(errs.KindStore, err, "execute write statements")
		}
	}

	if tr.Select == nil {
		return &execResult{Changes: changes}, nil
	}

	sres, err := s.Execute(ctx, store.Statement{SQL: tr.Select.SQL, Params: tr.Select.Params})
	if err != nil {
		return nil, errs.Wrap(errs.KindStore, err, "execute select statement")
	}

	return &execResult{
		Columns: tr.Columns,
		Rows:    format.Rows(sres.Rows, tr.Columns),
		Changes: changes,
	}, nil
}

// runHybrid executes chain via the in-memory traversal path instead of SQL
// (spec.md §4.6), projecting the same whole-node JSON shape the Translator
// uses so the result envelope is indistinguishable to the caller.
func (e *Executor) runHybrid(ctx context.Context, s *store.Store, chain *planner.PatternChainParams, params map[string]any) (*execResult, error) {
	rows, err := hybrid.Execute(ctx, s, chain, params)
	if err != nil {
		return nil, err
	}

	out := make([]format.Row, 0, len(rows))
	for _, r := range rows {
		row := format.Row{}
		for _, v := range chain.ReturnVariables {
			n, ok := r[v]
			if !ok {
				row[v] = nil
				continue
			}
			row[v] = map[string]any{
				"id":         n.ID,
				"labels":     n.Labels,
				"properties": n.Properties,
			}
		}
		out = append(out, row)
	}

	return &execResult{Columns: chain.ReturnVariables, Rows: out}, nil
}
