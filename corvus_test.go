package corvus

import (
	"context"
	"testing"

	"github.com/corvusdb/corvus/internal/config"
	"github.com/corvusdb/corvus/internal/engine"
	"github.com/corvusdb/corvus/internal/logging"
	"github.com/corvusdb/corvus/internal/store"
	"github.com/stretchr/testify/require"
)

func newTestDB(t *testing.T) *DB {
	t.Helper()
	dir := t.TempDir()
	cfg := &config.Config{DataDir: dir, MaxQueryLength: 100_000, DefaultMaxHops: 50, BusyTimeoutMS: 5000}
	reg := store.NewRegistry(cfg.DataDir, cfg.BusyTimeoutMS)
	x := &Executor{cfg: cfg, eng: engine.New(reg, cfg, logging.Discard()), reg: reg}
	t.Cleanup(func() { _ = x.Close() })
	return x.Tenant("acme")
}

func TestDB_CreateAndQuery(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	_, err := db.Execute(ctx, `CREATE (:Person {name: "Grace"})`, nil)
	require.NoError(t, err)

	res, err := db.Execute(ctx, `MATCH (n:Person {name: $name}) RETURN n.name AS name`, map[string]any{"name": "Grace"})
	require.NoError(t, err)
	require.Len(t, res.Rows, 1)
	require.Equal(t, "Grace", res.Rows[0]["name"])
}

func TestDB_Explain(t *testing.T) {
	db := newTestDB(t)
	res, err := db.Explain(context.Background(), `CREATE (:Person {name: "Never"})`, nil)
	require.NoError(t, err)
	require.NotNil(t, res.Explain)
	require.NotEmpty(t, res.Explain.Writes)
}
