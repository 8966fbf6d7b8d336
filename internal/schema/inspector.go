package schema

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"strings"

	"github.com/querytrace/querytrace/internal/database"
	"github.com/querytrace/querytrace/internal/query"
)

// internalTablePrefix marks bookkeeping tables hidden from the agent.
const internalTablePrefix = "querytrace_"

// Inspector reads table metadata straight from the database on every call.
type Inspector struct {
	DB         *sql.DB
	Dialect    database.Dialect
	SampleRows int
	Include    []string
}

func NewInspector(db *sql.DB, dialect database.Dialect, sampleRows int, include []string) *Inspector {
	return &Inspector{DB: db, Dialect: dialect, SampleRows: sampleRows, Include: include}
}

func (i *Inspector) Schema(ctx context.Context) (string, error) {
	names, err := i.ListTables(ctx)
	if err != nil {
		return "", err
	}
	return i.Describe(ctx, names)
}

// ListTables returns usable table names sorted by name.
func (i *Inspector) ListTables(ctx context.Context) ([]string, error) {
	if i.DB == nil {
		return nil, fmt.Errorf("introspect schema: database is required")
	}
	all, err := i.listAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("introspect schema: %w", err)
	}
	if len(i.Include) == 0 {
		return all, nil
	}
	present := make(map[string]bool, len(all))
	for _, name := range all {
		present[name] = true
	}
	var missing []string
	for _, name := range i.Include {
		if !present[name] {
			missing = append(missing, name)
		}
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("introspect schema: include tables %v: %w", missing, ErrTableNotFound)
	}
	out := append([]string(nil), i.Include...)
	sort.Strings(out)
	return out, nil
}

// Describe renders the named tables. Names are matched case-insensitively.
func (i *Inspector) Describe(ctx context.Context, names []string) (string, error) {
	tables, err := i.Tables(ctx, names)
	if err != nil {
		return "", err
	}
	return Render(tables), nil
}

func (i *Inspector) Tables(ctx context.Context, names []string) ([]Table, error) {
	available, err := i.ListTables(ctx)
	if err != nil {
		return nil, err
	}
	byLower := make(map[string]string, len(available))
	for _, name := range available {
		byLower[strings.ToLower(name)] = name
	}

	var missing []string
	resolved := make([]string, 0, len(names))
	for _, name := range names {
		actual, ok := byLower[strings.ToLower(strings.TrimSpace(name))]
		if !ok {
			missing = append(missing, name)
			continue
		}
		resolved = append(resolved, actual)
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("table_names %v: %w", missing, ErrTableNotFound)
	}

	tables := make([]Table, 0, len(resolved))
	for _, name := range resolved {
		columns, err := i.columns(ctx, name)
		if err != nil {
			return nil, fmt.Errorf("introspect schema: columns of %q: %w", name, err)
		}
		table := Table{Name: name, Columns: columns}
		if i.SampleRows > 0 {
			// Sampling failures leave the table without examples.
			if result, err := i.sample(ctx, name); err == nil {
				table.SampleColumns = result.Columns
				table.SampleRows = result.Rows
			}
		}
		tables = append(tables, table)
	}
	return tables, nil
}

func (i *Inspector) listAll(ctx context.Context) ([]string, error) {
	var (
		stmt string
		args []any
	)
	switch i.Dialect {
	case database.DialectSQLite:
		stmt = `SELECT name FROM sqlite_master WHERE type = 'table' AND name NOT LIKE 'sqlite_%' ORDER BY name`
	case database.DialectPostgreSQL, database.DialectDuckDB:
		stmt = `SELECT table_name FROM information_schema.tables WHERE table_schema = ` + i.Dialect.Placeholder(1) +
			` AND table_type = 'BASE TABLE' ORDER BY table_name`
		args = []any{i.namespace()}
	default:
		return nil, fmt.Errorf("unsupported dialect %q", i.Dialect)
	}

	rows, err := i.DB.QueryContext(ctx, stmt, args...)
	if err != nil {
		return nil, fmt.Errorf("list tables: %w", err)
	}
	defer func() { _ = rows.Close() }()

	names := make([]string, 0)
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("scan table name: %w", err)
		}
		if strings.HasPrefix(name, internalTablePrefix) {
			continue
		}
		names = append(names, name)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate tables: %w", err)
	}
	sort.Strings(names)
	return names, nil
}

func (i *Inspector) columns(ctx context.Context, table string) ([]Column, error) {
	if i.Dialect == database.DialectSQLite {
		return i.sqliteColumns(ctx, table)
	}

	stmt := `SELECT column_name, data_type, is_nullable FROM information_schema.columns WHERE table_schema = ` +
		i.Dialect.Placeholder(1) + ` AND table_name = ` + i.Dialect.Placeholder(2) + ` ORDER BY ordinal_position`
	rows, err := i.DB.QueryContext(ctx, stmt, i.namespace(), table)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	columns := make([]Column, 0)
	for rows.Next() {
		var name, dataType, nullable string
		if err := rows.Scan(&name, &dataType, &nullable); err != nil {
			return nil, err
		}
		columns = append(columns, Column{
			Name:    name,
			Type:    strings.ToUpper(dataType),
			NotNull: strings.EqualFold(nullable, "NO"),
		})
	}
	return columns, rows.Err()
}

func (i *Inspector) sqliteColumns(ctx context.Context, table string) ([]Column, error) {
	rows, err := i.DB.QueryContext(ctx, `SELECT name, type, "notnull", pk FROM pragma_table_info(?) ORDER BY cid`, table)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	columns := make([]Column, 0)
	for rows.Next() {
		var (
			name, dataType string
			notNull, pk    int64
		)
		if err := rows.Scan(&name, &dataType, &notNull, &pk); err != nil {
			return nil, err
		}
		columns = append(columns, Column{
			Name:       name,
			Type:       strings.ToUpper(dataType),
			NotNull:    notNull != 0,
			PrimaryKey: pk > 0,
		})
	}
	return columns, rows.Err()
}

func (i *Inspector) sample(ctx context.Context, table string) (query.Result, error) {
	stmt := fmt.Sprintf("SELECT * FROM %s LIMIT %d", quoteIdent(table), i.SampleRows)
	rows, err := i.DB.QueryContext(ctx, stmt)
	if err != nil {
		return query.Result{}, err
	}
	defer func() { _ = rows.Close() }()

	columns, err := rows.Columns()
	if err != nil {
		return query.Result{}, err
	}
	result := query.Result{Columns: columns, Rows: make([][]any, 0, i.SampleRows)}
	for rows.Next() {
		values := make([]any, len(columns))
		targets := make([]any, len(columns))
		for idx := range values {
			targets[idx] = &values[idx]
		}
		if err := rows.Scan(targets...); err != nil {
			return query.Result{}, err
		}
		result.Rows = append(result.Rows, values)
	}
	return result, rows.Err()
}

func (i *Inspector) namespace() string {
	if i.Dialect == database.DialectDuckDB {
		return "main"
	}
	return "public"
}
