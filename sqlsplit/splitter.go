// Package sqlsplit consumes the token stream and yields statement units:
// a byte range per top-level statement, the comments leading it, and a
// stable fingerprint used as a cache key by the workspace.
package sqlsplit

import (
	"encoding/hex"

	"github.com/zeebo/xxh3"

	"github.com/postgrestools/pgtools/sqlscan"
	"github.com/postgrestools/pgtools/text"
)

// Fingerprint is a 128-bit hash of a statement's normalized text. The
// normalization strips the trailing semicolon and outer whitespace and
// comments (both fall outside the statement range); everything inside
// the range, including intra-statement comments, is hashed verbatim.
type Fingerprint struct {
	Hi, Lo uint64
}

// FingerprintOf hashes the given normalized statement text.
func FingerprintOf(normalized string) Fingerprint {
	h := xxh3.HashString128(normalized)
	return Fingerprint{Hi: h.Hi, Lo: h.Lo}
}

func (f Fingerprint) String() string {
	var b [16]byte
	for i := 0; i < 8; i++ {
		b[i] = byte(f.Hi >> (56 - 8*i))
		b[8+i] = byte(f.Lo >> (56 - 8*i))
	}
	return hex.EncodeToString(b[:])
}

// Statement is one top-level statement unit. The range starts at the
// first significant token and ends after the last one, excluding the
// trailing semicolon and any surrounding trivia.
type Statement struct {
	Range text.Range

	// Tokens holds the significant tokens inside Range, with absolute
	// document ranges.
	Tokens []sqlscan.Token

	// LeadingComments holds the comments between the previous statement
	// (or start of document) and this statement, in document order.
	// Suppression directives are parsed out of these.
	LeadingComments []sqlscan.Trivia

	Fingerprint Fingerprint
}

// Text returns the statement's bytes in input.
func (st Statement) Text(input string) string {
	return st.Range.Slice(input)
}

// Split lexes the input and groups tokens into statement units. A
// statement ends at a semicolon outside any parenthesis (dollar-quoted
// regions are opaque single tokens, so a quoted semicolon never splits),
// or at EOF. Empty segments produce no statement; their comments carry
// over to the next statement.
func Split(input string) []Statement {
	return SplitTokens(input, sqlscan.Lex(input))
}

// SplitTokens is Split for a pre-lexed token stream.
func SplitTokens(input string, tokens []sqlscan.Token) []Statement {
	var (
		stmts   []Statement
		cur     []sqlscan.Token
		pending []sqlscan.Trivia // comments waiting for the next statement
		depth   int
	)

	flush := func() {
		if len(cur) == 0 {
			return
		}
		rng := text.NewRange(cur[0].Range.Start, cur[len(cur)-1].Range.End)
		stmts = append(stmts, Statement{
			Range:           rng,
			Tokens:          cur,
			LeadingComments: pending,
			Fingerprint:     FingerprintOf(rng.Slice(input)),
		})
		cur = nil
		pending = nil
	}

	comments := func(leading []sqlscan.Trivia) []sqlscan.Trivia {
		var out []sqlscan.Trivia
		for _, tr := range leading {
			if tr.Kind.IsComment() {
				out = append(out, tr)
			}
		}
		return out
	}

	for _, tok := range tokens {
		switch tok.Kind {
		case sqlscan.EOF:
			// trailing comments with no following statement are dropped
			flush()
		case sqlscan.Semicolon:
			if depth > 0 && len(cur) > 0 {
				// semicolon inside parentheses does not terminate
				cur = append(cur, tok)
				continue
			}
			if len(cur) == 0 {
				// empty segment; carry its comments forward
				pending = append(pending, comments(tok.Leading)...)
				continue
			}
			flush()
		default:
			switch tok.Kind {
			case sqlscan.LParen:
				depth++
			case sqlscan.RParen:
				if depth > 0 {
					depth--
				}
			}
			if len(cur) == 0 {
				pending = append(pending, comments(tok.Leading)...)
			}
			cur = append(cur, tok)
		}
	}
	return stmts
}
