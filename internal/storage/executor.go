package storage

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/chitalishte-ai/query-engine/internal/observability"
)

// DB is the database surface the executor needs.
type DB interface {
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
}

// ResultSet holds the rows a query returned, up to the executor's budget.
type ResultSet struct {
	Columns   []string
	Rows      []map[string]interface{}
	Truncated bool
}

// Executor runs already-validated, already-rewritten SELECT text. It is
// the only place vetted SQL meets a database connection.
type Executor struct {
	db      DB
	logger  *observability.Logger
	maxRows int
	timeout time.Duration
}

// NewExecutor creates an executor with a row budget and a per-query
// timeout.
func NewExecutor(db DB, logger *observability.Logger, maxRows int, timeout time.Duration) *Executor {
	if maxRows <= 0 {
		maxRows = 100
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	return &Executor{
		db:      db,
		logger:  logger.WithComponent("executor"),
		maxRows: maxRows,
		timeout: timeout,
	}
}

// Query executes the SQL and collects rows up to the budget. Extra rows
// are dropped and the result marked truncated.
func (e *Executor) Query(ctx context.Context, sqlText string) (*ResultSet, error) {
	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	start := time.Now()
	rows, err := e.db.QueryContext(ctx, sqlText)
	if err != nil {
		return nil, fmt.Errorf("execute query: %w", err)
	}
	defer rows.Close()

	columns, err := rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("read columns: %w", err)
	}

	result := &ResultSet{Columns: columns}
	for rows.Next() {
		if len(result.Rows) >= e.maxRows {
			result.Truncated = true
			break
		}

		values := make([]interface{}, len(columns))
		pointers := make([]interface{}, len(columns))
		for i := range values {
			pointers[i] = &values[i]
		}

		if err := rows.Scan(pointers...); err != nil {
			return nil, fmt.Errorf("scan row: %w", err)
		}

		row := make(map[string]interface{}, len(columns))
		for i, col := range columns {
			// Drivers hand text back as []byte; keep the API string-typed.
			if b, ok := values[i].([]byte); ok {
				row[col] = string(b)
			} else {
				row[col] = values[i]
			}
		}
		result.Rows = append(result.Rows, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate rows: %w", err)
	}

	e.logger.Debug().
		Int("rows", len(result.Rows)).
		Bool("truncated", result.Truncated).
		Dur("elapsed", time.Since(start)).
		Msg("Query executed")

	return result, nil
}
