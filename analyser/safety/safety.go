// Package safety implements the safety rule group: rules that flag
// statements which can break a running application or destroy data
// when applied to a live database.
package safety

import (
	"strings"

	"github.com/postgrestools/pgtools/analyser"
	"github.com/postgrestools/pgtools/sqlscan"
	"github.com/postgrestools/pgtools/text"
)

// Register adds the safety rules to the registry.
func Register(reg *analyser.Registry) {
	reg.Register(addingRequiredField{})
	reg.Register(banDropColumn{})
	reg.Register(banDropDatabase{})
	reg.Register(banDropNotNull{})
	reg.Register(banDropTable{})
	reg.Register(banTruncateCascade{})
}

// normalizeIdent matches the parser's identifier folding: quoted
// identifiers keep their case with "" unescaped, unquoted ones fold to
// lower case.
func normalizeIdent(tok string) string {
	if len(tok) >= 2 && tok[0] == '"' && tok[len(tok)-1] == '"' {
		return strings.ReplaceAll(tok[1:len(tok)-1], `""`, `"`)
	}
	return strings.ToLower(tok)
}

// identToken finds the first identifier token at or after `from` whose
// name equals name after folding. Used to anchor diagnostics on the
// object the AST names, since many pg_query nodes carry no location.
func identToken(ctx *analyser.RuleContext, name string, from text.Size) (text.Range, bool) {
	for _, tok := range ctx.Tokens {
		if tok.Range.Start < from {
			continue
		}
		if tok.Kind != sqlscan.Ident && tok.Kind != sqlscan.QuotedIdent && tok.Kind != sqlscan.Reserved {
			continue
		}
		if normalizeIdent(ctx.TokenText(tok)) == name {
			return tok.Range, true
		}
	}
	return text.Range{}, false
}

// wordToken finds the first token spelled `word` (case-folded) at or
// after `from`.
func wordToken(ctx *analyser.RuleContext, word string, from text.Size) (text.Range, bool) {
	for _, tok := range ctx.Tokens {
		if tok.Range.Start < from {
			continue
		}
		if strings.ToLower(ctx.TokenText(tok)) == word {
			return tok.Range, true
		}
	}
	return text.Range{}, false
}

// anchorIdent returns the named identifier's token range, or the whole
// statement when the token is not found.
func anchorIdent(ctx *analyser.RuleContext, name string) text.Range {
	if r, ok := identToken(ctx, name, ctx.Range.Start); ok {
		return r
	}
	return ctx.Range
}

// anchorWord returns the range of the first token spelled `word`, or
// the whole statement.
func anchorWord(ctx *analyser.RuleContext, word string) text.Range {
	if r, ok := wordToken(ctx, word, ctx.Range.Start); ok {
		return r
	}
	return ctx.Range
}
