package pgparse

import (
	"testing"

	pg_query "github.com/pganalyze/pg_query_go/v6"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/postgrestools/pgtools/text"
)

func TestParse_Select(t *testing.T) {
	stmt, perr := Parse("SELECT 1", text.NewRange(0, 8))
	require.Nil(t, perr)
	require.NotNil(t, stmt)
	assert.Equal(t, "SelectStmt", KindOf(stmt.Node()))
}

func TestParse_SyntaxError(t *testing.T) {
	stmt, perr := Parse("SELEC 1", text.NewRange(0, 7))
	require.Nil(t, stmt)
	require.NotNil(t, perr)
	assert.NotEmpty(t, perr.Message)
	assert.True(t, perr.Cursor.Start >= 0 && perr.Cursor.End <= 7)
}

func TestParse_SyntaxErrorCursorIsShifted(t *testing.T) {
	// same text, placed later in the document
	_, at0 := Parse("SELEC 1", text.NewRange(0, 7))
	_, at10 := Parse("SELEC 1", text.NewRange(10, 17))
	require.NotNil(t, at0)
	require.NotNil(t, at10)
	assert.Equal(t, at0.Cursor.Shift(10), at10.Cursor)
}

func TestParse_LocationsAreDocumentAbsolute(t *testing.T) {
	input := "SELECT 1; ALTER TABLE users DROP COLUMN email;"
	stmtText := "ALTER TABLE users DROP COLUMN email"
	rng := text.NewRange(10, 45)

	stmt, perr := Parse(stmtText, rng)
	require.Nil(t, perr)

	alter := stmt.Node().GetAlterTableStmt()
	require.NotNil(t, alter)
	// "users" starts at byte 22 of the document
	assert.Equal(t, int32(22), alter.Relation.Location)
	assert.Equal(t, "users", input[22:27])
}

func TestWalk_VisitsNestedNodes(t *testing.T) {
	stmt, perr := Parse("ALTER TABLE t ADD COLUMN c int NOT NULL", text.NewRange(0, 39))
	require.Nil(t, perr)

	kinds := KindsIn(stmt.Node())
	assert.Contains(t, kinds, "AlterTableStmt")
	assert.Contains(t, kinds, "AlterTableCmd")
	assert.Contains(t, kinds, "ColumnDef")
}

func TestWalk_SkipChildren(t *testing.T) {
	stmt, perr := Parse("ALTER TABLE t ADD COLUMN c int NOT NULL", text.NewRange(0, 39))
	require.Nil(t, perr)

	var visited []string
	Walk(stmt.Node(), func(n *pg_query.Node) bool {
		visited = append(visited, KindOf(n))
		return false // never descend
	})
	assert.Equal(t, []string{"AlterTableStmt"}, visited)
}

func TestKindOf(t *testing.T) {
	tests := []struct {
		sql  string
		kind string
	}{
		{"DROP TABLE t", "DropStmt"},
		{"DROP DATABASE d", "DropdbStmt"},
		{"TRUNCATE t CASCADE", "TruncateStmt"},
		{"SELECT * FROM t", "SelectStmt"},
	}
	for _, tt := range tests {
		t.Run(tt.sql, func(t *testing.T) {
			stmt, perr := Parse(tt.sql, text.RangeOfLen(0, len(tt.sql)))
			require.Nil(t, perr)
			assert.Equal(t, tt.kind, KindOf(stmt.Node()))
		})
	}
}

func TestEdges_AlterTableStmt(t *testing.T) {
	edges := Edges(&pg_query.AlterTableStmt{})

	names := map[string]Cardinality{}
	for _, e := range edges {
		names[e.Name] = e.Cardinality
	}
	assert.Equal(t, Optional, names["relation"])
	assert.Equal(t, Many, names["cmds"])
}
