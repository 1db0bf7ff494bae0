package store

import "context"

// bootstrap ensures the two-table schema of spec.md §6 exists: nodes and
// edges, with cascading foreign keys and the label/type/endpoint indexes.
func (s *Store) bootstrap(ctx context.Context) error {
	ddl := []string{
		`CREATE TABLE IF NOT EXISTS nodes (
			id TEXT PRIMARY KEY,
			label JSON NOT NULL,
			properties JSON DEFAULT '{}'
		)`,
		`CREATE TABLE IF NOT EXISTS edges (
			id TEXT PRIMARY KEY,
			type TEXT NOT NULL,
			source_id TEXT NOT NULL,
			target_id TEXT NOT NULL,
			properties JSON DEFAULT '{}',
			FOREIGN KEY (source_id) REFERENCES nodes(id) ON DELETE CASCADE,
			FOREIGN KEY (target_id) REFERENCES nodes(id) ON DELETE CASCADE
		)`,
		`CREATE INDEX IF NOT EXISTS idx_nodes_label0 ON nodes(json_extract(label, '$[0]'))`,
		`CREATE INDEX IF NOT EXISTS idx_edges_type ON edges(type)`,
		`CREATE INDEX IF NOT EXISTS idx_edges_source ON edges(source_id)`,
		`CREATE INDEX IF NOT EXISTS idx_edges_target ON edges(target_id)`,
	}
	for _, stmt := range ddl {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return err
		}
	}
	return s.migrateLegacyLabels(ctx)
}

// migrateLegacyLabels upgrades rows whose label column predates the
// JSON-array convention (spec.md §6 "Label storage format", §9 Open
// Questions): any row where json_valid(label) = 0 has its bare text label
// replaced with a one-element JSON array.
func (s *Store) migrateLegacyLabels(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE nodes SET label = json_array(label) WHERE json_valid(label) = 0`)
	return err
}
