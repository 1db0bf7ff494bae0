// Package corvus is an embeddable, multi-tenant graph database queried
// with a Cypher subset. Each tenant gets its own SQLite-backed store file;
// DB handles for the same tenant id obtained from one Executor share one
// store handle. Each Open call builds its own Executor and Registry.
package corvus

import (
	"context"

	"github.com/corvusdb/corvus/internal/config"
	"github.com/corvusdb/corvus/internal/engine"
	"github.com/corvusdb/corvus/internal/logging"
	"github.com/corvusdb/corvus/internal/store"
)

// Result is one query's outcome: projected rows for a RETURN, or the
// number of rows changed by a write-only statement.
type Result = engine.Result

// ExecuteOptions controls one Execute call.
type ExecuteOptions = engine.ExecuteOptions

// DB is a handle to one tenant's graph. It is safe for concurrent use; all
// DBs obtained from the same Executor funnel through that Executor's Registry.
type DB struct {
	tenantID string
	exec     *Executor
}

// Executor is the process-wide pipeline shared by every tenant DB opened
// from it. Most applications only need one, built via Open or NewExecutor.
type Executor struct {
	cfg *config.Config
	eng *engine.Executor
	reg *store.Registry
}

// NewExecutor loads configuration from the environment (CORVUS_* vars,
// optionally a .env file) and builds the shared pipeline state. log may be
// nil to discard log output.
func NewExecutor(log *logging.Logger) (*Executor, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	reg := store.NewRegistry(cfg.DataDir, cfg.BusyTimeoutMS)
	return &Executor{
		cfg: cfg,
		eng: engine.New(reg, cfg, log),
		reg: reg,
	}, nil
}

// Tenant returns a DB handle scoped to tenantID. The underlying store file
// is opened lazily on first query.
func (x *Executor) Tenant(tenantID string) *DB {
	return &DB{tenantID: tenantID, exec: x}
}

// Close releases every tenant store handle opened through this Executor.
func (x *Executor) Close() error {
	return x.reg.Close()
}

// Open is a convenience wrapper building a default Executor (via
// NewExecutor) and returning a DB bound to tenantID, for callers that only
// ever need one tenant in process.
func Open(tenantID string) (*DB, error) {
	x, err := NewExecutor(logging.Default())
	if err != nil {
		return nil, err
	}
	return x.Tenant(tenantID), nil
}

// Execute parses and runs one Cypher query against this tenant's graph.
// params supplies bind values for $name parameter references.
func (db *DB) Execute(ctx context.Context, cypher string, params map[string]any) (*Result, error) {
	return db.exec.eng.Execute(ctx, db.tenantID, cypher, params, ExecuteOptions{})
}

// Explain compiles cypher the same way Execute would but runs nothing,
// returning the hybrid-planner verdict and the SQL that would have been
// issued.
func (db *DB) Explain(ctx context.Context, cypher string, params map[string]any) (*Result, error) {
	return db.exec.eng.Execute(ctx, db.tenantID, cypher, params, ExecuteOptions{Explain: true})
}

// Close releases this tenant's underlying store handle. Since the handle
// is shared across every DB for the same tenant id, Close tears down the
// whole Executor's registry, not just this one DB.
func (db *DB) Close() error {
	return db.exec.Close()
}
