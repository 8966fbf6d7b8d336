package schema

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/querytrace/querytrace/internal/query"
)

var ErrTableNotFound = errors.New("table not found")

const sampleValueLength = 100

type Column struct {
	Name       string `json:"name"`
	Type       string `json:"type"`
	NotNull    bool   `json:"not_null"`
	PrimaryKey bool   `json:"primary_key"`
}

type Table struct {
	Name          string   `json:"name"`
	Columns       []Column `json:"columns"`
	SampleColumns []string `json:"sample_columns,omitempty"`
	SampleRows    [][]any  `json:"sample_rows,omitempty"`
}

// Provider produces the textual schema description handed to the agent.
type Provider interface {
	Schema(ctx context.Context) (string, error)
	ListTables(ctx context.Context) ([]string, error)
	Describe(ctx context.Context, tables []string) (string, error)
}

// Render writes tables as CREATE TABLE statements followed by a comment
// block with sample rows.
func Render(tables []Table) string {
	blocks := make([]string, 0, len(tables))
	for _, table := range tables {
		blocks = append(blocks, renderTable(table))
	}
	return strings.Join(blocks, "\n\n")
}

func renderTable(table Table) string {
	var b strings.Builder
	fmt.Fprintf(&b, "CREATE TABLE %s (\n", quoteIdent(table.Name))

	lines := make([]string, 0, len(table.Columns)+1)
	var keys []string
	for _, column := range table.Columns {
		line := "\t" + column.Name
		if column.Type != "" {
			line += " " + column.Type
		}
		if column.NotNull {
			line += " NOT NULL"
		}
		lines = append(lines, line)
		if column.PrimaryKey {
			keys = append(keys, column.Name)
		}
	}
	if len(keys) > 0 {
		lines = append(lines, "\tPRIMARY KEY ("+strings.Join(keys, ", ")+")")
	}
	b.WriteString(strings.Join(lines, ",\n"))
	b.WriteString("\n)")

	if len(table.SampleColumns) > 0 {
		fmt.Fprintf(&b, "\n\n/*\n%d rows from %s table:\n", len(table.SampleRows), table.Name)
		b.WriteString(strings.Join(table.SampleColumns, "\t"))
		for _, row := range table.SampleRows {
			values := make([]string, len(row))
			for i, value := range row {
				values[i] = sampleValue(value)
			}
			b.WriteString("\n" + strings.Join(values, "\t"))
		}
		b.WriteString("\n*/")
	}
	return b.String()
}

func sampleValue(value any) string {
	switch typed := value.(type) {
	case nil:
		return "None"
	case []byte:
		return query.Truncate(string(typed), sampleValueLength)
	default:
		return query.Truncate(fmt.Sprint(typed), sampleValueLength)
	}
}

func quoteIdent(value string) string {
	return `"` + strings.ReplaceAll(value, `"`, `""`) + `"`
}
