package engine

import (
	"github.com/corvusdb/corvus/internal/ast"
	"github.com/corvusdb/corvus/internal/planner"
	"github.com/corvusdb/corvus/internal/translator"
)

// explain compiles stmt without running it, surfacing the hybrid planner's
// verdict and the SQL the Translator would have issued (spec.md §4.7's
// supplemented EXPLAIN mode, grounded on the diagnostic surface a query
// engine's own explain path exposes).
func (e *Executor) explain(stmt *ast.Statement, params map[string]any) (*ExplainInfo, error) {
	info := &ExplainInfo{}

	if len(stmt.Queries) == 1 {
		q := stmt.Queries[0]
		if detectMultiPhase(q) != nil {
			info.HybridReason = "multi-phase MATCH→CREATE queries always run through the translated path"
		} else {
			plan := planner.Evaluate(q, e.cfg.DefaultMaxHops)
			info.HybridEligible = plan.Eligible
			info.HybridReason = plan.Reason
		}
	}

	tr, err := translator.Translate(stmt, params)
	if err != nil {
		return nil, err
	}
	for _, w := range tr.Writes {
		info.Writes = append(info.Writes, w.SQL)
	}
	if tr.Select != nil {
		info.Select = tr.Select.SQL
	}
	return info, nil
}
