// Package pgparse wraps the native libpg_query parser. It parses one
// statement at a time and rebases every source location onto absolute
// document offsets, so rules never see statement-relative positions.
package pgparse

import (
	"errors"
	"fmt"

	pg_query "github.com/pganalyze/pg_query_go/v6"
	"github.com/pganalyze/pg_query_go/v6/parser"

	"github.com/postgrestools/pgtools/text"
)

// Statement is a successfully parsed statement. All locations inside
// the AST are document-absolute.
type Statement struct {
	Raw *pg_query.RawStmt

	// Range is the document range of the statement text that was parsed.
	Range text.Range
}

// Node returns the root statement node.
func (s *Statement) Node() *pg_query.Node {
	if s.Raw == nil {
		return nil
	}
	return s.Raw.Stmt
}

// ParseError is a libpg_query rejection. Cursor points at the offending
// position in document coordinates.
type ParseError struct {
	Message string
	Cursor  text.Range
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("syntax error at %s: %s", e.Cursor, e.Message)
}

// Parse parses the text of a single statement. rng is the statement's
// document range; it is used to rebase locations and error cursors.
// Exactly one of the results is non-nil.
func Parse(stmtText string, rng text.Range) (*Statement, *ParseError) {
	result, err := pg_query.Parse(stmtText)
	if err != nil {
		return nil, convertError(err, stmtText, rng)
	}
	if len(result.Stmts) == 0 {
		return nil, &ParseError{Message: "empty statement", Cursor: text.NewRange(rng.Start, rng.Start)}
	}

	// The splitter hands us one statement at a time; libpg_query agrees
	// on statement boundaries for anything it accepts.
	raw := result.Stmts[0]
	if raw.Stmt != nil {
		ShiftLocations(raw.Stmt.ProtoReflect(), int32(rng.Start))
	}
	return &Statement{Raw: raw, Range: rng}, nil
}

func convertError(err error, stmtText string, rng text.Range) *ParseError {
	var pgErr *parser.Error
	if !errors.As(err, &pgErr) {
		return &ParseError{Message: err.Error(), Cursor: text.NewRange(rng.Start, rng.End)}
	}

	// Cursorpos is 1-based into the statement text; 0 means unknown.
	cursor := text.NewRange(rng.Start, rng.End)
	if pgErr.Cursorpos > 0 {
		off := int(pgErr.Cursorpos) - 1
		if off > len(stmtText) {
			off = len(stmtText)
		}
		start := rng.Start + text.Size(off)
		end := start
		if end < rng.End {
			end++
		}
		cursor = text.NewRange(start, end)
	}
	return &ParseError{Message: pgErr.Message, Cursor: cursor}
}
