package seed

import (
	"context"
	"fmt"
	"io"

	"github.com/olekukonko/tablewriter"

	"github.com/querytrace/querytrace/internal/query"
)

const DefaultPreviewRows = 20

// Preview prints the first rows of table as an ASCII table.
func Preview(ctx context.Context, engine query.Engine, table string, limit int, w io.Writer) error {
	if err := ValidateIdentifier(table); err != nil {
		return err
	}
	if limit <= 0 {
		limit = DefaultPreviewRows
	}

	result, err := engine.Execute(ctx, query.Request{
		SQL:      fmt.Sprintf("SELECT * FROM %s", table),
		RowLimit: limit,
	})
	if err != nil {
		return fmt.Errorf("preview %s: %w", table, err)
	}

	out := tablewriter.NewWriter(w)
	out.SetAutoWrapText(false)
	out.SetAutoFormatHeaders(false)
	out.SetHeaderAlignment(tablewriter.ALIGN_CENTER)
	out.SetBorder(true)
	out.SetHeader(result.Columns)
	for _, row := range result.Rows {
		cells := make([]string, len(row))
		for i, value := range row {
			cells[i] = cell(value)
		}
		out.Append(cells)
	}
	out.Render()
	_, err = fmt.Fprintf(w, "%d rows from %s\n", len(result.Rows), table)
	return err
}

func cell(value any) string {
	if value == nil {
		return "NULL"
	}
	return query.Truncate(fmt.Sprint(value), 40)
}
