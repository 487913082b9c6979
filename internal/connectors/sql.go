package connectors

import (
	"context"
	"database/sql"
	"sync"
	"time"

	_ "github.com/go-sql-driver/mysql"
	_ "github.com/jackc/pgx/v5/stdlib"
	_ "modernc.org/sqlite"

	"github.com/vk/privgraph/internal/connectors/querycfg"
	"github.com/vk/privgraph/internal/ctxlog"
	"github.com/vk/privgraph/internal/graph"
	"github.com/vk/privgraph/internal/policy"
)

// sqlConnector serves the relational backend kinds over database/sql.
type sqlConnector struct {
	cfg    Config
	driver string
	style  querycfg.PlaceholderStyle

	mu sync.Mutex
	db *sql.DB
}

func newSQLConnector(cfg Config) (Connector, error) {
	c := &sqlConnector{cfg: cfg}
	switch cfg.Kind {
	case KindPostgres:
		c.driver = "pgx"
		c.style = querycfg.PlaceholderDollar
	case KindMySQL:
		c.driver = "mysql"
		c.style = querycfg.PlaceholderQuestion
	case KindSQLite:
		c.driver = "sqlite"
		c.style = querycfg.PlaceholderQuestion
	}
	return c, nil
}

// client opens the database handle on first use. database/sql manages the
// per-call connection lifecycle underneath.
func (c *sqlConnector) client() (*sql.DB, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.db != nil {
		return c.db, nil
	}
	db, err := sql.Open(c.driver, buildDSN(c.cfg))
	if err != nil {
		return nil, &ConnectionError{Key: c.cfg.Key, Err: err}
	}
	c.db = db
	return db, nil
}

func (c *sqlConnector) TestConnection(ctx context.Context) error {
	db, err := c.client()
	if err != nil {
		return err
	}
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		return &ConnectionError{Key: c.cfg.Key, Err: err}
	}
	return nil
}

func (c *sqlConnector) Retrieve(ctx context.Context, node *graph.Node, p policy.Policy, input map[string][]any) ([]querycfg.Row, error) {
	logger := ctxlog.FromContext(ctx).With("node", node.Address.String())
	op, ok := querycfg.NewSQLConfig(node, c.style).GenerateQuery(input)
	if !ok {
		logger.Debug("no predicate constructible, node treated as empty")
		return nil, nil
	}

	db, err := c.client()
	if err != nil {
		return nil, err
	}
	rows, err := db.QueryContext(ctx, op.SQL, op.Args...)
	if err != nil {
		return nil, &ConnectionError{Key: c.cfg.Key, Err: err}
	}
	defer rows.Close()

	out, err := scanRows(rows)
	if err != nil {
		return nil, &ConnectionError{Key: c.cfg.Key, Err: err}
	}
	logger.Debug("retrieval finished", "rows", len(out))
	return out, nil
}

func (c *sqlConnector) Mask(ctx context.Context, node *graph.Node, p policy.Policy, rows []querycfg.Row) (int, error) {
	logger := ctxlog.FromContext(ctx).With("node", node.Address.String())
	compiler := querycfg.NewSQLConfig(node, c.style)
	db, err := c.client()
	if err != nil {
		return 0, err
	}

	mutated := 0
	for _, row := range rows {
		op, ok := compiler.GenerateUpdate(row, p)
		if !ok {
			continue
		}
		res, err := db.ExecContext(ctx, op.SQL, op.Args...)
		if err != nil {
			return mutated, &ConnectionError{Key: c.cfg.Key, Err: err}
		}
		n, err := res.RowsAffected()
		if err != nil {
			return mutated, &ConnectionError{Key: c.cfg.Key, Err: err}
		}
		mutated += int(n)
	}
	logger.Debug("masking finished", "mutated", mutated)
	return mutated, nil
}

func (c *sqlConnector) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.db == nil {
		return nil
	}
	err := c.db.Close()
	c.db = nil
	return err
}

// scanRows converts a result set into tagged-value rows. Driver byte slices
// become strings so cached payloads stay backend-agnostic.
func scanRows(rows *sql.Rows) ([]querycfg.Row, error) {
	cols, err := rows.Columns()
	if err != nil {
		return nil, err
	}
	var out []querycfg.Row
	for rows.Next() {
		values := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, err
		}
		row := make(querycfg.Row, len(cols))
		for i, col := range cols {
			if b, ok := values[i].([]byte); ok {
				row[col] = string(b)
			} else {
				row[col] = values[i]
			}
		}
		out = append(out, row)
	}
	return out, rows.Err()
}
