package sqldb

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/querytrace/querytrace/internal/database"
	"github.com/querytrace/querytrace/internal/query"
)

// Engine executes statements against a shared database/sql pool. Unless
// AllowWrites is set, statements must pass query.CheckReadOnly and run in a
// transaction that is always rolled back.
type Engine struct {
	DB          *sql.DB
	Dialect     database.Dialect
	AllowWrites bool
}

func NewEngine(db *sql.DB, dialect database.Dialect, allowWrites bool) *Engine {
	return &Engine{DB: db, Dialect: dialect, AllowWrites: allowWrites}
}

func (e *Engine) Execute(ctx context.Context, request query.Request) (query.Result, error) {
	if strings.TrimSpace(request.SQL) == "" {
		return query.Result{}, fmt.Errorf("sql is required")
	}
	if e.DB == nil {
		return query.Result{}, fmt.Errorf("database is required")
	}
	if !e.AllowWrites {
		if err := query.CheckReadOnly(request.SQL); err != nil {
			return query.Result{}, err
		}
	}

	start := time.Now()
	sqlText := query.StripTrailingSemicolons(request.SQL)
	if sqlText == "" {
		return query.Result{}, fmt.Errorf("sql is required")
	}
	if request.RowLimit > 0 && query.CheckReadOnly(sqlText) == nil && !isExplain(sqlText) {
		sqlText = fmt.Sprintf("SELECT * FROM (%s) AS q LIMIT %d", sqlText, request.RowLimit)
	}

	var result query.Result
	var err error
	if e.AllowWrites {
		result, err = collect(e.DB.QueryContext(ctx, sqlText))
	} else {
		result, err = e.queryReadOnly(ctx, sqlText)
	}
	if err != nil {
		return query.Result{}, err
	}
	result.Duration = time.Since(start)
	return result, nil
}

func (e *Engine) queryReadOnly(ctx context.Context, sqlText string) (query.Result, error) {
	conn, err := e.DB.Conn(ctx)
	if err != nil {
		return query.Result{}, fmt.Errorf("acquire connection: %w", err)
	}
	defer func() { _ = conn.Close() }()

	if e.Dialect == database.DialectSQLite {
		if _, err := conn.ExecContext(ctx, "PRAGMA query_only = ON"); err != nil {
			return query.Result{}, fmt.Errorf("enable query_only: %w", err)
		}
		defer func() { _, _ = conn.ExecContext(context.WithoutCancel(ctx), "PRAGMA query_only = OFF") }()
	}

	// DuckDB has no read-only transactions; the rollback discards any change.
	tx, err := conn.BeginTx(ctx, &sql.TxOptions{ReadOnly: e.Dialect == database.DialectPostgreSQL})
	if err != nil {
		return query.Result{}, fmt.Errorf("begin read-only transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	return collect(tx.QueryContext(ctx, sqlText))
}

func collect(rows *sql.Rows, err error) (query.Result, error) {
	if err != nil {
		return query.Result{}, fmt.Errorf("execute query: %w", err)
	}
	defer func() { _ = rows.Close() }()

	columns, err := rows.Columns()
	if err != nil {
		return query.Result{}, fmt.Errorf("query columns: %w", err)
	}

	resultRows := make([][]any, 0)
	for rows.Next() {
		values := make([]any, len(columns))
		scanTargets := make([]any, len(columns))
		for i := range values {
			scanTargets[i] = &values[i]
		}
		if err := rows.Scan(scanTargets...); err != nil {
			return query.Result{}, fmt.Errorf("scan row: %w", err)
		}
		resultRows = append(resultRows, normalizeValues(values))
	}
	if err := rows.Err(); err != nil {
		return query.Result{}, fmt.Errorf("iterate rows: %w", err)
	}

	return query.Result{Columns: columns, Rows: resultRows}, nil
}

func normalizeValues(values []any) []any {
	normalized := make([]any, len(values))
	for i, value := range values {
		switch typed := value.(type) {
		case []byte:
			normalized[i] = string(typed)
		default:
			normalized[i] = typed
		}
	}
	return normalized
}

func isExplain(sqlText string) bool {
	return strings.HasPrefix(strings.ToUpper(strings.TrimSpace(sqlText)), "EXPLAIN")
}
