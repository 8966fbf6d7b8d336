package seed

import (
	"context"
	"database/sql"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/querytrace/querytrace/internal/database"
)

var identifierPattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]{0,62}$`)

// ValidateIdentifier rejects table and column names that cannot be used
// unquoted.
func ValidateIdentifier(name string) error {
	if !identifierPattern.MatchString(name) {
		return fmt.Errorf("invalid identifier %q", name)
	}
	return nil
}

func insertStatement(dialect database.Dialect, table string, columns []string) string {
	placeholders := make([]string, len(columns))
	for i := range columns {
		placeholders[i] = dialect.Placeholder(i + 1)
	}
	return fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)", table, strings.Join(columns, ", "), strings.Join(placeholders, ", "))
}

// insertRows writes all rows through one prepared statement in a single
// transaction.
func insertRows(ctx context.Context, db *sql.DB, statement string, rows [][]any) (int, error) {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx, statement)
	if err != nil {
		return 0, fmt.Errorf("prepare insert: %w", err)
	}
	defer func() { _ = stmt.Close() }()

	for i, row := range rows {
		if _, err := stmt.ExecContext(ctx, row...); err != nil {
			return i, fmt.Errorf("insert row %d: %w", i+1, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit insert: %w", err)
	}
	return len(rows), nil
}

// InsertMachines appends machines to the Machines table.
func InsertMachines(ctx context.Context, db *sql.DB, dialect database.Dialect, machines []Machine) (int, error) {
	rows := make([][]any, 0, len(machines))
	for _, m := range machines {
		rows = append(rows, m.Values())
	}
	return insertRows(ctx, db, insertStatement(dialect, MachinesTable, MachineColumns), rows)
}

// ReadMachines loads the Machines table ordered by machine_id. limit <= 0
// reads everything.
func ReadMachines(ctx context.Context, db *sql.DB, limit int) ([]Machine, error) {
	statement := fmt.Sprintf("SELECT %s FROM %s ORDER BY machine_id", strings.Join(MachineColumns, ", "), MachinesTable)
	if limit > 0 {
		statement += fmt.Sprintf(" LIMIT %d", limit)
	}

	rows, err := db.QueryContext(ctx, statement)
	if err != nil {
		return nil, fmt.Errorf("query machines: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []Machine
	for rows.Next() {
		var (
			m         Machine
			name      sql.NullString
			kind      sql.NullString
			status    sql.NullString
			location  sql.NullString
			fuel      sql.NullFloat64
			createdAt any
		)
		if err := rows.Scan(
			&m.MachineID, &name, &kind, &m.OperatingHours, &fuel,
			&m.Temperature, &m.VibrationLevels, &m.LoadCapacityUtilization, &status,
			&m.BreakdownFrequency, &location, &m.SafetyAlarmsTriggered, &m.PowerUsage,
			&m.DustLevels, &m.OreProcessed, &createdAt,
		); err != nil {
			return nil, fmt.Errorf("scan machine: %w", err)
		}
		m.MachineName, m.MachineType, m.MaintenanceStatus, m.Location = name.String, kind.String, status.String, location.String
		if fuel.Valid {
			value := fuel.Float64
			m.FuelConsumption = &value
		}
		if m.CreatedAt, err = parseTimestamp(createdAt); err != nil {
			return nil, fmt.Errorf("machine %s: %w", m.MachineID, err)
		}
		out = append(out, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate machines: %w", err)
	}
	return out, nil
}

func parseTimestamp(value any) (time.Time, error) {
	switch v := value.(type) {
	case nil:
		return time.Time{}, nil
	case time.Time:
		return v.UTC(), nil
	case []byte:
		return parseTimestamp(string(v))
	case string:
		for _, layout := range []string{timestampLayout, time.RFC3339Nano, "2006-01-02T15:04:05"} {
			if t, err := time.ParseInLocation(layout, v, time.UTC); err == nil {
				return t, nil
			}
		}
		return time.Time{}, fmt.Errorf("parse created_at %q", v)
	default:
		return time.Time{}, fmt.Errorf("unsupported created_at type %T", value)
	}
}
