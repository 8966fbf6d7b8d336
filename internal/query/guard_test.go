package query

import (
	"errors"
	"testing"
)

func TestCheckReadOnlyAccepts(t *testing.T) {
	accepted := []string{
		"SELECT machine_type, AVG(breakdown_frequency) FROM Machines GROUP BY machine_type ORDER BY 2 DESC LIMIT 3",
		"select * from Machines;",
		"  WITH t AS (SELECT 1 AS x) SELECT x FROM t ;; ",
		"EXPLAIN QUERY PLAN SELECT * FROM Machines",
		"SELECT replace(machine_name, 'CAT', 'Caterpillar') FROM Machines",
		"SELECT 'drop table x; delete from y' AS note",
		"SELECT \"update\" FROM audit -- delete everything\n",
		"/* insert */ SELECT 1",
		"(SELECT 1) UNION (SELECT 2)",
		"VALUES (1, 2)",
		"SELECT E'it''s', 'C:\\data' FROM Machines",
		"SELECT $$drop table x$$ AS note, $body$it's$body$",
		"SELECT machine_id FROM Machines WHERE operating_hours > $1",
	}
	for _, sqlText := range accepted {
		if err := CheckReadOnly(sqlText); err != nil {
			t.Fatalf("CheckReadOnly(%q) error = %v", sqlText, err)
		}
	}
}

func TestCheckReadOnlyRejects(t *testing.T) {
	rejected := []string{
		"",
		"   ;  ",
		"DELETE FROM Machines",
		"INSERT INTO Machines (machine_id) VALUES ('x')",
		"UPDATE Machines SET operating_hours = 0",
		"DROP TABLE Machines",
		"PRAGMA table_info(Machines)",
		"ATTACH DATABASE 'x.db' AS x",
		"SELECT 1; DROP TABLE Machines",
		"WITH gone AS (DELETE FROM Machines RETURNING *) SELECT * FROM gone",
		"EXPLAIN ANALYZE DELETE FROM Machines",
		"SELECT * FROM Machines WHERE machine_name = 'unterminated",
		"SELECT 1 /* unterminated",
		"CREATE TABLE t AS SELECT 1",
		"SELECT * INTO stolen FROM Machines",
		"SELECT load('httpfs')",
		"SELECT E'\\''; DROP TABLE Machines; SELECT 1 /*'*/",
		"WITH a AS (SELECT E'\\''), d AS (DELETE FROM Machines RETURNING 1) SELECT 1 FROM a, d /*'*/",
		"SELECT 'x\\'; DELETE FROM Machines; SELECT '1'",
		"SELECT a$x$ ; DROP TABLE Machines; SELECT $x$",
		"SELECT $tag$ unterminated",
		"SELECT 1 /* ; */ ; DELETE FROM Machines",
		"SELECT 1 -- harmless\n; UPDATE Machines SET operating_hours = 0",
		"SELECT insert(1)",
	}
	for _, sqlText := range rejected {
		err := CheckReadOnly(sqlText)
		if err == nil {
			t.Fatalf("CheckReadOnly(%q) expected error", sqlText)
		}
		if !errors.Is(err, ErrNotReadOnly) {
			t.Fatalf("CheckReadOnly(%q) error = %v, want ErrNotReadOnly", sqlText, err)
		}
	}
}

func TestStripTrailingSemicolons(t *testing.T) {
	if got := StripTrailingSemicolons(" SELECT 1 ; ; "); got != "SELECT 1" {
		t.Fatalf("StripTrailingSemicolons() = %q", got)
	}
}
