package sqlsplit

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/postgrestools/pgtools/text"
)

func TestSplit_TwoStatements(t *testing.T) {
	input := "SELECT 1; DROP TABLE t;"
	stmts := Split(input)

	require.Len(t, stmts, 2)
	assert.Equal(t, "SELECT 1", stmts[0].Text(input))
	assert.Equal(t, "DROP TABLE t", stmts[1].Text(input))
	assert.Equal(t, text.NewRange(0, 8), stmts[0].Range)
	assert.Equal(t, text.NewRange(10, 22), stmts[1].Range)
}

func TestSplit_NoTrailingSemicolon(t *testing.T) {
	input := "SELECT 1"
	stmts := Split(input)

	require.Len(t, stmts, 1)
	assert.Equal(t, "SELECT 1", stmts[0].Text(input))
}

func TestSplit_SemicolonInsideDollarQuote(t *testing.T) {
	input := "CREATE FUNCTION f() RETURNS void AS $$ begin; return; end $$ LANGUAGE plpgsql;"
	stmts := Split(input)

	require.Len(t, stmts, 1)
}

func TestSplit_DoBlock(t *testing.T) {
	input := "DO $$ begin raise notice 'x'; end $$; SELECT 1;"
	stmts := Split(input)

	require.Len(t, stmts, 2)
	assert.Equal(t, "SELECT 1", stmts[1].Text(input))
}

func TestSplit_SemicolonInsideParens(t *testing.T) {
	// not valid SQL, but the splitter must not split inside parens
	input := "SELECT f(1; 2); SELECT 2;"
	stmts := Split(input)

	require.Len(t, stmts, 2)
}

func TestSplit_EmptySegmentsCarryComments(t *testing.T) {
	input := "SELECT 1;; -- for the next one\n; DROP TABLE t;"
	stmts := Split(input)

	require.Len(t, stmts, 2)
	require.Len(t, stmts[1].LeadingComments, 1)
	assert.Equal(t, "-- for the next one", stmts[1].LeadingComments[0].Range.Slice(input))
}

func TestSplit_LeadingCommentAttachment(t *testing.T) {
	input := "-- pgt-ignore-next-statement banDropTable\nDROP TABLE users;"
	stmts := Split(input)

	require.Len(t, stmts, 1)
	require.Len(t, stmts[0].LeadingComments, 1)
	assert.Equal(t, "-- pgt-ignore-next-statement banDropTable", stmts[0].LeadingComments[0].Range.Slice(input))
	// the comment is outside the statement range
	assert.Equal(t, text.Size(42), stmts[0].Range.Start)
}

func TestSplit_RangesDisjointAndAscending(t *testing.T) {
	input := "SELECT 1;\n\n-- gap\nSELECT 2; TRUNCATE t CASCADE;"
	stmts := Split(input)

	require.Len(t, stmts, 3)
	for i := 1; i < len(stmts); i++ {
		assert.True(t, stmts[i-1].Range.End <= stmts[i].Range.Start)
	}
}

func TestFingerprint_StableUnderOuterWhitespace(t *testing.T) {
	a := Split("DROP TABLE t;")
	b := Split("\n\n  DROP TABLE t  ;  ")
	require.Len(t, a, 1)
	require.Len(t, b, 1)
	assert.Equal(t, a[0].Fingerprint, b[0].Fingerprint)
}

func TestFingerprint_ChangesOnInnerEdit(t *testing.T) {
	a := Split("DROP TABLE t;")
	b := Split("DROP TABLE u;")
	c := Split("DROP /*c*/ TABLE t;")
	require.Len(t, a, 1)
	assert.NotEqual(t, a[0].Fingerprint, b[0].Fingerprint)
	// intra-statement comments are part of the fingerprinted text
	assert.NotEqual(t, a[0].Fingerprint, c[0].Fingerprint)
}

func TestFingerprint_UnaffectedByNeighborEdits(t *testing.T) {
	a := Split("SELECT 1; DROP TABLE t;")
	b := Split("SELECT 2222; DROP TABLE t;")
	require.Len(t, a, 2)
	require.Len(t, b, 2)
	assert.NotEqual(t, a[0].Fingerprint, b[0].Fingerprint)
	assert.Equal(t, a[1].Fingerprint, b[1].Fingerprint)
}
