package agent

import (
	"context"
	"fmt"
	"strings"

	"github.com/querytrace/querytrace/internal/query"
	"github.com/querytrace/querytrace/internal/schema"
)

const (
	ToolListTables = "sql_db_list_tables"
	ToolSchema     = "sql_db_schema"
	ToolQuery      = "sql_db_query"
)

// SQLToolbox exposes the database to the model through three tools.
type SQLToolbox struct {
	Schema   schema.Provider
	Engine   query.Engine
	RowLimit int
}

func NewSQLToolbox(provider schema.Provider, engine query.Engine, rowLimit int) *SQLToolbox {
	return &SQLToolbox{Schema: provider, Engine: engine, RowLimit: rowLimit}
}

func (t *SQLToolbox) ListTools(ctx context.Context) ([]Tool, error) {
	if t.Schema == nil || t.Engine == nil {
		return nil, fmt.Errorf("sql toolbox requires a schema provider and a query engine")
	}
	return []Tool{
		{
			Name:        ToolQuery,
			Description: "Execute a SQL query against the database and get back the result. If the query is not correct, an error message will be returned; rewrite the query, check it, and try again. If you encounter an issue with an unknown column, use " + ToolSchema + " to query the correct table fields.",
			InputSchema: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"query": map[string]any{"type": "string", "description": "A detailed and correct SQL query."},
				},
				"required": []string{"query"},
			},
		},
		{
			Name:        ToolSchema,
			Description: "Get the schema and sample rows for the specified tables. Be sure the tables exist by calling " + ToolListTables + " first.",
			InputSchema: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"table_names": map[string]any{"type": "string", "description": "A comma-separated list of table names, e.g. table1, table2"},
				},
				"required": []string{"table_names"},
			},
		},
		{
			Name:        ToolListTables,
			Description: "List the tables in the database as a comma-separated string.",
			InputSchema: map[string]any{
				"type":       "object",
				"properties": map[string]any{},
			},
		},
	}, nil
}

func (t *SQLToolbox) CallToolText(ctx context.Context, name string, args map[string]any) (string, bool, error) {
	switch name {
	case ToolListTables:
		tables, err := t.Schema.ListTables(ctx)
		if err != nil {
			return err.Error(), true, nil
		}
		return strings.Join(tables, ", "), false, nil
	case ToolSchema:
		raw, err := stringArg(args, "table_names")
		if err != nil {
			return err.Error(), true, nil
		}
		text, err := t.Schema.Describe(ctx, splitNames(raw))
		if err != nil {
			return err.Error(), true, nil
		}
		return text, false, nil
	case ToolQuery:
		sqlText, err := stringArg(args, "query")
		if err != nil {
			return err.Error(), true, nil
		}
		result, err := t.Engine.Execute(ctx, query.Request{SQL: sqlText, RowLimit: t.RowLimit})
		if err != nil {
			return err.Error(), true, nil
		}
		return query.FormatRows(result.Rows), false, nil
	default:
		return fmt.Sprintf("%s is not a valid tool, try one of [%s, %s, %s].", name, ToolQuery, ToolSchema, ToolListTables), true, nil
	}
}

func stringArg(args map[string]any, key string) (string, error) {
	raw, ok := args[key]
	if !ok {
		return "", fmt.Errorf("missing required argument %q", key)
	}
	value, ok := raw.(string)
	if !ok {
		return "", fmt.Errorf("argument %q must be a string", key)
	}
	if strings.TrimSpace(value) == "" {
		return "", fmt.Errorf("argument %q must not be empty", key)
	}
	return value, nil
}

func splitNames(raw string) []string {
	parts := strings.Split(raw, ",")
	names := make([]string, 0, len(parts))
	for _, part := range parts {
		if part = strings.TrimSpace(part); part != "" {
			names = append(names, part)
		}
	}
	return names
}
