package database

import (
	"fmt"
	"net/url"
	"strings"
)

type Dialect string

const (
	DialectSQLite     Dialect = "sqlite"
	DialectPostgreSQL Dialect = "postgresql"
	DialectDuckDB     Dialect = "duckdb"
)

const memoryPath = ":memory:"

// Target is a parsed connection URL ready for sql.Open.
type Target struct {
	Dialect Dialect
	Driver  string
	DSN     string
}

// Memory reports whether the target is a process-local in-memory database.
func (t Target) Memory() bool {
	switch t.Dialect {
	case DialectSQLite:
		return t.DSN == memoryPath || strings.HasPrefix(t.DSN, memoryPath+"?")
	case DialectDuckDB:
		return t.DSN == "" || strings.HasPrefix(t.DSN, "?")
	default:
		return false
	}
}

// WithReadOnly rewrites the DSN so the driver refuses writes: DuckDB files
// open with access_mode=READ_ONLY and PostgreSQL sessions default to
// read-only transactions. SQLite and in-memory DuckDB are returned unchanged.
func (t Target) WithReadOnly() Target {
	switch {
	case t.Dialect == DialectDuckDB && !t.Memory():
		t.DSN = appendParam(t.DSN, "access_mode", "READ_ONLY")
	case t.Dialect == DialectPostgreSQL:
		t.DSN = appendParam(t.DSN, "default_transaction_read_only", "on")
	}
	return t
}

func appendParam(dsn, key, value string) string {
	sep := "?"
	if strings.Contains(dsn, "?") {
		sep = "&"
	}
	return dsn + sep + key + "=" + value
}

// ParseURL accepts SQLAlchemy-style URLs:
//
//	sqlite:///relative.db   sqlite:////abs/path.db   sqlite://
//	postgres://...          postgresql+psycopg2://...
//	duckdb:///file.duckdb   duckdb://
func ParseURL(raw string) (Target, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return Target{}, fmt.Errorf("database url is required")
	}
	scheme, rest, ok := strings.Cut(raw, "://")
	if !ok {
		return Target{}, fmt.Errorf("database url %q is missing a scheme", Redact(raw))
	}
	scheme = strings.ToLower(scheme)
	if base, _, hasDriver := strings.Cut(scheme, "+"); hasDriver {
		scheme = base
	}

	switch scheme {
	case "sqlite", "sqlite3":
		return Target{Dialect: DialectSQLite, Driver: "sqlite", DSN: filePath(rest, memoryPath)}, nil
	case "postgres", "postgresql":
		return Target{Dialect: DialectPostgreSQL, Driver: "pgx", DSN: "postgres://" + rest}, nil
	case "duckdb":
		return Target{Dialect: DialectDuckDB, Driver: "duckdb", DSN: filePath(rest, "")}, nil
	default:
		return Target{}, fmt.Errorf("unsupported database scheme %q", scheme)
	}
}

// filePath turns the part after "scheme://" into a file path. An empty host
// is expected, so "/x.db" is relative and "//x.db" is absolute.
func filePath(rest, memory string) string {
	path, query, _ := strings.Cut(rest, "?")
	path = strings.TrimPrefix(path, "/")
	if path == "" || path == memoryPath {
		path = memory
	}
	if query != "" {
		return path + "?" + query
	}
	return path
}

// Redact hides the password of a URL for logs and errors.
func Redact(raw string) string {
	parsed, err := url.Parse(raw)
	if err != nil || parsed.User == nil {
		return raw
	}
	return parsed.Redacted()
}
