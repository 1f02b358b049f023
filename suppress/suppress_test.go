package suppress

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/postgrestools/pgtools/sqlsplit"
	"github.com/postgrestools/pgtools/text"
)

func TestParseComment(t *testing.T) {
	tests := []struct {
		name    string
		comment string
		ok      bool
		scope   Scope
		pattern string
	}{
		{"next statement", "-- pgt-ignore-next-statement banDropTable", true, NextStatement, "banDropTable"},
		{"file wide", "-- pgt-ignore safety", true, File, "safety"},
		{"range start", "-- pgt-ignore-start safety/banDropColumn", true, RangeStart, "safety/banDropColumn"},
		{"range end", "-- pgt-ignore-end safety/banDropColumn", true, RangeEnd, "safety/banDropColumn"},
		{"wildcard", "--pgt-ignore-next-statement *", true, NextStatement, "*"},
		{"plain comment", "-- just words", false, 0, ""},
		{"missing pattern", "-- pgt-ignore-next-statement", false, 0, ""},
		{"two patterns", "-- pgt-ignore a b", false, 0, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d, ok := ParseComment(tt.comment, text.NewRange(0, text.Size(len(tt.comment))))
			require.Equal(t, tt.ok, ok)
			if ok {
				assert.Equal(t, tt.scope, d.Scope)
				assert.Equal(t, tt.pattern, d.Pattern)
			}
		})
	}
}

func TestPatternMatches(t *testing.T) {
	tests := []struct {
		pattern  string
		category string
		want     bool
	}{
		{"*", "lint/safety/banDropColumn", true},
		{"safety", "lint/safety/banDropColumn", true},
		{"banDropColumn", "lint/safety/banDropColumn", true},
		{"safety/banDropColumn", "lint/safety/banDropColumn", true},
		{"banDropTable", "lint/safety/banDropColumn", false},
		{"perf", "lint/safety/banDropColumn", false},
		{"perf/banDropColumn", "lint/safety/banDropColumn", false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, patternMatches(tt.pattern, tt.category), "%s vs %s", tt.pattern, tt.category)
	}
}

func TestSet_NextStatement(t *testing.T) {
	input := "-- pgt-ignore-next-statement banDropTable\nDROP TABLE users;\nDROP TABLE orders;"
	stmts := sqlsplit.Split(input)
	require.Len(t, stmts, 2)

	s := Build(input, stmts)
	assert.True(t, s.Suppressed("lint/safety/banDropTable", stmts[0].Range))
	assert.False(t, s.Suppressed("lint/safety/banDropTable", stmts[1].Range))
	assert.Empty(t, s.Unused("a.sql"))
}

func TestSet_FileWideOnlyAtTop(t *testing.T) {
	input := "-- pgt-ignore safety\nDROP TABLE a;\nDROP TABLE b;"
	stmts := sqlsplit.Split(input)
	s := Build(input, stmts)

	assert.True(t, s.Suppressed("lint/safety/banDropTable", stmts[0].Range))
	assert.True(t, s.Suppressed("lint/safety/banDropTable", stmts[1].Range))

	// the same directive between statements is not file-wide
	input2 := "DROP TABLE a;\n-- pgt-ignore safety\nDROP TABLE b;"
	stmts2 := sqlsplit.Split(input2)
	s2 := Build(input2, stmts2)
	assert.False(t, s2.Suppressed("lint/safety/banDropTable", stmts2[1].Range))
	assert.Len(t, s2.Unused("a.sql"), 1)
}

func TestSet_Range(t *testing.T) {
	input := "SELECT 1;\n-- pgt-ignore-start banDropTable\nDROP TABLE a;\n-- pgt-ignore-end banDropTable\nDROP TABLE b;"
	stmts := sqlsplit.Split(input)
	require.Len(t, stmts, 3)

	s := Build(input, stmts)
	assert.True(t, s.Suppressed("lint/safety/banDropTable", stmts[1].Range))
	assert.False(t, s.Suppressed("lint/safety/banDropTable", stmts[2].Range))
}

func TestSet_UnclosedRangeRunsToEOF(t *testing.T) {
	input := "-- pgt-ignore-start *\nDROP TABLE a;\nDROP TABLE b;"
	stmts := sqlsplit.Split(input)
	s := Build(input, stmts)

	assert.True(t, s.Suppressed("lint/safety/banDropTable", stmts[0].Range))
	assert.True(t, s.Suppressed("lint/safety/banDropTable", stmts[1].Range))
}

func TestSet_UnusedDirective(t *testing.T) {
	input := "-- pgt-ignore-next-statement banDropColumn\nSELECT 1;"
	stmts := sqlsplit.Split(input)
	s := Build(input, stmts)

	unused := s.Unused("a.sql")
	require.Len(t, unused, 1)
	assert.Equal(t, "suppression/unused", unused[0].Category)
	assert.Equal(t, text.NewRange(0, 42), unused[0].Primary)
}
