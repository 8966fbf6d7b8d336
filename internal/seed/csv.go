package seed

import (
	"context"
	"database/sql"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/querytrace/querytrace/internal/database"
)

// LoadCSV creates table with one TEXT column per CSV header field, if it
// does not exist, and appends every record in one transaction.
func LoadCSV(ctx context.Context, db *sql.DB, dialect database.Dialect, table string, source io.Reader) (int, error) {
	if err := ValidateIdentifier(table); err != nil {
		return 0, err
	}

	reader := csv.NewReader(source)
	header, err := reader.Read()
	if errors.Is(err, io.EOF) {
		return 0, fmt.Errorf("csv source is empty")
	}
	if err != nil {
		return 0, fmt.Errorf("read csv header: %w", err)
	}

	columns := make([]string, len(header))
	definitions := make([]string, len(header))
	for i, raw := range header {
		name := strings.TrimSpace(strings.TrimPrefix(raw, "\ufeff"))
		if err := ValidateIdentifier(name); err != nil {
			return 0, fmt.Errorf("csv header column %d: %w", i+1, err)
		}
		columns[i] = name
		definitions[i] = name + " TEXT"
	}

	var rows [][]any
	for {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return 0, fmt.Errorf("read csv record %d: %w", len(rows)+1, err)
		}
		row := make([]any, len(record))
		for i, value := range record {
			if value == "" {
				row[i] = nil
				continue
			}
			row[i] = value
		}
		rows = append(rows, row)
	}

	create := fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s (%s)", table, strings.Join(definitions, ", "))
	if _, err := db.ExecContext(ctx, create); err != nil {
		return 0, fmt.Errorf("create table %s: %w", table, err)
	}
	return insertRows(ctx, db, insertStatement(dialect, table, columns), rows)
}
