package engine

import (
	"sync"

	"github.com/corvusdb/corvus/internal/ast"
	"github.com/corvusdb/corvus/internal/parser"
)

// astCache memoizes Parse results keyed by query text, so a hot query path
// avoids re-lexing/re-parsing on every call (spec.md §4.2's Translator reads
// the AST once per execution; the supplemented cache sits in front of that,
// never in front of row data). It never caches SQL or row results — only the
// immutable parsed structure, which is safe to share across tenants.
type astCache struct {
	mu    sync.RWMutex
	byKey map[string]*ast.Statement
	cap   int
	order []string // simple FIFO eviction once cap is reached
}

func newASTCache(capacity int) *astCache {
	return &astCache{byKey: make(map[string]*ast.Statement), cap: capacity}
}

func (c *astCache) get(query string) (*ast.Statement, error) {
	c.mu.RLock()
	if stmt, ok := c.byKey[query]; ok {
		c.mu.RUnlock()
		return stmt, nil
	}
	c.mu.RUnlock()

	stmt, err := parser.Parse(query)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.byKey[query]; !ok {
		if c.cap > 0 && len(c.order) >= c.cap {
			oldest := c.order[0]
			c.order = c.order[1:]
			delete(c.byKey, oldest)
		}
		c.byKey[query] = stmt
		c.order = append(c.order, query)
	}
	return stmt, nil
}
