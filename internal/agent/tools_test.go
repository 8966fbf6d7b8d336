package agent

import (
	"context"
	"database/sql"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	_ "modernc.org/sqlite"

	"github.com/querytrace/querytrace/internal/database"
	"github.com/querytrace/querytrace/internal/query/sqldb"
	"github.com/querytrace/querytrace/internal/schema"
)

func newMachinesToolbox(t *testing.T) *SQLToolbox {
	t.Helper()
	db, err := sql.Open("sqlite", ":memory:")
	require.NoError(t, err)
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = db.Close() })

	_, err = db.Exec(`CREATE TABLE Machines (id INTEGER PRIMARY KEY, machine_type TEXT NOT NULL, breakdowns INTEGER)`)
	require.NoError(t, err)
	_, err = db.Exec(`INSERT INTO Machines (machine_type, breakdowns) VALUES ('Excavator', 9), ('Drill', 7), ('Loader', 5), ('Truck', 1)`)
	require.NoError(t, err)

	inspector := schema.NewInspector(db, database.DialectSQLite, 2, nil)
	return NewSQLToolbox(inspector, sqldb.NewEngine(db, database.DialectSQLite, false), 0)
}

func TestSQLToolboxQuery(t *testing.T) {
	box := newMachinesToolbox(t)
	out, isErr, err := box.CallToolText(context.Background(), ToolQuery, map[string]any{
		"query": "SELECT machine_type FROM Machines ORDER BY breakdowns DESC LIMIT 3",
	})
	require.NoError(t, err)
	assert.False(t, isErr)
	assert.Equal(t, "[('Excavator',), ('Drill',), ('Loader',)]", out)
}

func TestSQLToolboxRejectsWrites(t *testing.T) {
	box := newMachinesToolbox(t)
	out, isErr, err := box.CallToolText(context.Background(), ToolQuery, map[string]any{"query": "DELETE FROM Machines"})
	require.NoError(t, err)
	assert.True(t, isErr)
	assert.Contains(t, out, "read-only")
}

func TestSQLToolboxSchemaAndTables(t *testing.T) {
	box := newMachinesToolbox(t)
	ctx := context.Background()

	tables, isErr, err := box.CallToolText(ctx, ToolListTables, nil)
	require.NoError(t, err)
	assert.False(t, isErr)
	assert.Equal(t, "Machines", tables)

	desc, isErr, err := box.CallToolText(ctx, ToolSchema, map[string]any{"table_names": "machines"})
	require.NoError(t, err)
	assert.False(t, isErr)
	assert.Contains(t, desc, `CREATE TABLE "Machines"`)
	assert.Contains(t, desc, "2 rows from Machines table")

	missing, isErr, err := box.CallToolText(ctx, ToolSchema, map[string]any{"table_names": "Breakdowns"})
	require.NoError(t, err)
	assert.True(t, isErr)
	assert.Contains(t, missing, "Breakdowns")
}

func TestSQLToolboxArgumentErrors(t *testing.T) {
	box := newMachinesToolbox(t)
	ctx := context.Background()

	out, isErr, err := box.CallToolText(ctx, ToolQuery, map[string]any{})
	require.NoError(t, err)
	assert.True(t, isErr)
	assert.Contains(t, out, `missing required argument "query"`)

	out, isErr, err = box.CallToolText(ctx, ToolQuery, map[string]any{"query": 42})
	require.NoError(t, err)
	assert.True(t, isErr)
	assert.Contains(t, out, "must be a string")

	out, isErr, err = box.CallToolText(ctx, "drop_everything", nil)
	require.NoError(t, err)
	assert.True(t, isErr)
	assert.Contains(t, out, "drop_everything is not a valid tool")
}

func TestSQLToolboxListTools(t *testing.T) {
	tools, err := newMachinesToolbox(t).ListTools(context.Background())
	require.NoError(t, err)
	names := make([]string, 0, len(tools))
	for _, tool := range tools {
		names = append(names, tool.Name)
	}
	assert.ElementsMatch(t, []string{ToolQuery, ToolSchema, ToolListTables}, names)

	_, err = (&SQLToolbox{}).ListTools(context.Background())
	require.Error(t, err)
}

func TestSplitNames(t *testing.T) {
	assert.Equal(t, []string{"a", "b"}, splitNames(" a, ,b ,"))
	assert.Empty(t, splitNames(""))
}
