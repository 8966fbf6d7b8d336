// Package migrations versions the DDL of the seed datasets. Scripts stay
// within the SQL shared by SQLite, PostgreSQL and DuckDB.
package migrations

import (
	"cmp"
	"context"
	"database/sql"
	"embed"
	"fmt"
	"io/fs"
	"regexp"
	"slices"
	"strconv"
	"strings"

	"github.com/querytrace/querytrace/internal/database"
)

//go:embed sql/*.sql
var embeddedFS embed.FS

const ledgerTable = "querytrace_schema_migrations"

var scriptName = regexp.MustCompile(`^([0-9]+)_(.+)\.(up|down)\.sql$`)

// Migration is one versioned change, already split into statements.
type Migration struct {
	Version int64
	Name    string
	Up      []string
	Down    []string
}

// Status is a migration and whether the database has it.
type Status struct {
	Version int64
	Name    string
	Applied bool
}

type Runner struct {
	fsys    fs.FS
	dialect database.Dialect
}

func NewRunner(dialect database.Dialect) *Runner {
	return &Runner{fsys: embeddedFS, dialect: dialect}
}

// Up applies pending migrations in version order. steps <= 0 applies all.
func (r *Runner) Up(ctx context.Context, db *sql.DB, steps int) (int, error) {
	catalog, applied, err := r.prepare(ctx, db)
	if err != nil {
		return 0, err
	}
	done := 0
	for _, m := range catalog {
		if _, ok := applied[m.Version]; ok {
			continue
		}
		if steps > 0 && done >= steps {
			break
		}
		if err := r.apply(ctx, db, m); err != nil {
			return done, err
		}
		done++
	}
	return done, nil
}

// Down rolls back the newest applied migrations. steps <= 0 rolls back one.
func (r *Runner) Down(ctx context.Context, db *sql.DB, steps int) (int, error) {
	if steps <= 0 {
		steps = 1
	}
	catalog, applied, err := r.prepare(ctx, db)
	if err != nil {
		return 0, err
	}
	byVersion := make(map[int64]Migration, len(catalog))
	for _, m := range catalog {
		byVersion[m.Version] = m
	}

	versions := make([]int64, 0, len(applied))
	for version := range applied {
		versions = append(versions, version)
	}
	slices.Sort(versions)
	slices.Reverse(versions)

	done := 0
	for _, version := range versions {
		if done >= steps {
			break
		}
		m, ok := byVersion[version]
		if !ok {
			return done, fmt.Errorf("applied migration %d is missing from source", version)
		}
		if err := r.revert(ctx, db, m); err != nil {
			return done, err
		}
		done++
	}
	return done, nil
}

// Status lists every known migration with its applied flag.
func (r *Runner) Status(ctx context.Context, db *sql.DB) ([]Status, error) {
	catalog, applied, err := r.prepare(ctx, db)
	if err != nil {
		return nil, err
	}
	out := make([]Status, 0, len(catalog))
	for _, m := range catalog {
		_, ok := applied[m.Version]
		out = append(out, Status{Version: m.Version, Name: m.Name, Applied: ok})
	}
	return out, nil
}

// Pending reports the versions that are not applied yet.
func (r *Runner) Pending(ctx context.Context, db *sql.DB) ([]int64, error) {
	status, err := r.Status(ctx, db)
	if err != nil {
		return nil, err
	}
	var pending []int64
	for _, s := range status {
		if !s.Applied {
			pending = append(pending, s.Version)
		}
	}
	return pending, nil
}

func (r *Runner) prepare(ctx context.Context, db *sql.DB) ([]Migration, map[int64]struct{}, error) {
	catalog, err := load(r.fsys)
	if err != nil {
		return nil, nil, err
	}
	if _, err := db.ExecContext(ctx, `CREATE TABLE IF NOT EXISTS `+ledgerTable+` (
	version BIGINT PRIMARY KEY,
	name TEXT NOT NULL,
	applied_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
)`); err != nil {
		return nil, nil, fmt.Errorf("ensure migration ledger: %w", err)
	}

	rows, err := db.QueryContext(ctx, `SELECT version FROM `+ledgerTable)
	if err != nil {
		return nil, nil, fmt.Errorf("read migration ledger: %w", err)
	}
	defer func() { _ = rows.Close() }()
	applied := map[int64]struct{}{}
	for rows.Next() {
		var version int64
		if err := rows.Scan(&version); err != nil {
			return nil, nil, fmt.Errorf("scan migration ledger: %w", err)
		}
		applied[version] = struct{}{}
	}
	if err := rows.Err(); err != nil {
		return nil, nil, fmt.Errorf("read migration ledger: %w", err)
	}
	return catalog, applied, nil
}

func (r *Runner) apply(ctx context.Context, db *sql.DB, m Migration) error {
	record := `INSERT INTO ` + ledgerTable + ` (version, name) VALUES (` + r.dialect.Placeholder(1) + `, ` + r.dialect.Placeholder(2) + `)`
	return inTx(ctx, db, func(tx *sql.Tx) error {
		for i, stmt := range m.Up {
			if _, err := tx.ExecContext(ctx, stmt); err != nil {
				return fmt.Errorf("apply migration %d (%s) statement %d: %w", m.Version, m.Name, i+1, err)
			}
		}
		if _, err := tx.ExecContext(ctx, record, m.Version, m.Name); err != nil {
			return fmt.Errorf("record migration %d: %w", m.Version, err)
		}
		return nil
	})
}

func (r *Runner) revert(ctx context.Context, db *sql.DB, m Migration) error {
	forget := `DELETE FROM ` + ledgerTable + ` WHERE version = ` + r.dialect.Placeholder(1)
	return inTx(ctx, db, func(tx *sql.Tx) error {
		for i, stmt := range m.Down {
			if _, err := tx.ExecContext(ctx, stmt); err != nil {
				return fmt.Errorf("revert migration %d (%s) statement %d: %w", m.Version, m.Name, i+1, err)
			}
		}
		if _, err := tx.ExecContext(ctx, forget, m.Version); err != nil {
			return fmt.Errorf("forget migration %d: %w", m.Version, err)
		}
		return nil
	})
}

func inTx(ctx context.Context, db *sql.DB, fn func(tx *sql.Tx) error) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin migration tx: %w", err)
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit migration tx: %w", err)
	}
	return nil
}

// load reads sql/<version>_<name>.(up|down).sql pairs sorted by version.
func load(fsys fs.FS) ([]Migration, error) {
	entries, err := fs.ReadDir(fsys, "sql")
	if err != nil {
		return nil, fmt.Errorf("read migration dir: %w", err)
	}

	byVersion := map[int64]*Migration{}
	for _, entry := range entries {
		match := scriptName.FindStringSubmatch(entry.Name())
		if entry.IsDir() || match == nil {
			continue
		}
		version, err := strconv.ParseInt(match[1], 10, 64)
		if err != nil {
			return nil, fmt.Errorf("parse migration version of %q: %w", entry.Name(), err)
		}
		body, err := fs.ReadFile(fsys, "sql/"+entry.Name())
		if err != nil {
			return nil, fmt.Errorf("read migration %q: %w", entry.Name(), err)
		}

		m, ok := byVersion[version]
		if !ok {
			m = &Migration{Version: version, Name: match[2]}
			byVersion[version] = m
		} else if m.Name != match[2] {
			return nil, fmt.Errorf("migration %d has conflicting names %q and %q", version, m.Name, match[2])
		}
		if match[3] == "up" {
			m.Up = splitStatements(string(body))
		} else {
			m.Down = splitStatements(string(body))
		}
	}

	out := make([]Migration, 0, len(byVersion))
	for _, m := range byVersion {
		if len(m.Up) == 0 {
			return nil, fmt.Errorf("migration %d missing up SQL", m.Version)
		}
		if len(m.Down) == 0 {
			return nil, fmt.Errorf("migration %d missing down SQL", m.Version)
		}
		out = append(out, *m)
	}
	slices.SortFunc(out, func(a, b Migration) int { return cmp.Compare(a.Version, b.Version) })
	return out, nil
}

// splitStatements cuts a script at semicolons that end a line and drops
// "--" comment lines. Statements must not contain such semicolons inside
// string literals.
func splitStatements(script string) []string {
	var (
		out     []string
		current strings.Builder
	)
	flush := func() {
		if stmt := strings.TrimSpace(current.String()); stmt != "" {
			out = append(out, stmt)
		}
		current.Reset()
	}
	for _, line := range strings.Split(script, "\n") {
		trimmed := strings.TrimSpace(line)
		if strings.HasPrefix(trimmed, "--") {
			continue
		}
		if strings.HasSuffix(trimmed, ";") {
			current.WriteString(strings.TrimSuffix(strings.TrimRight(line, " \t\r"), ";"))
			flush()
			continue
		}
		current.WriteString(line)
		current.WriteString("\n")
	}
	flush()
	return out
}
