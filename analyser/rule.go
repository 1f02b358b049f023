// Package analyser drives lint rules over parsed statements. Rules are
// registered once at startup; the driver selects the enabled ones per
// statement, applies suppressions, and labels severities from the
// effective configuration.
package analyser

import (
	"encoding/json"

	"github.com/postgrestools/pgtools/diag"
	"github.com/postgrestools/pgtools/pgparse"
	"github.com/postgrestools/pgtools/schemacache"
	"github.com/postgrestools/pgtools/sqlscan"
	"github.com/postgrestools/pgtools/text"
)

// RuleMeta describes a rule: identity, group, defaults, and the AST
// node kinds that trigger it.
type RuleMeta struct {
	Name        string
	Group       string
	Recommended bool
	Default     diag.Severity

	// RequiresSchema marks rules that read the schema cache; they are
	// skipped entirely when no snapshot is available.
	RequiresSchema bool

	// Triggers lists the node kinds (pgparse.KindOf names) the rule
	// queries. The driver only invokes the rule when the statement's
	// tree contains at least one of them; a rule with no triggers runs
	// on every parsed statement.
	Triggers []string

	Docs string
}

// ID is the configuration key, e.g. "safety/banDropColumn".
func (m RuleMeta) ID() string {
	return m.Group + "/" + m.Name
}

// Category is the diagnostic category, e.g. "lint/safety/banDropColumn".
func (m RuleMeta) Category() string {
	return "lint/" + m.Group + "/" + m.Name
}

// Rule is one unit of analysis. Run must be pure: no I/O, no shared
// mutable state; rule execution order is unobservable.
type Rule interface {
	Meta() RuleMeta
	Run(ctx *RuleContext) []diag.Diagnostic
}

// RuleContext exposes everything a rule may look at for one statement.
type RuleContext struct {
	// Stmt is the parsed statement with document-absolute locations.
	Stmt *pgparse.Statement

	// Doc is the full document text; Range is the statement's range.
	Doc   string
	Range text.Range

	// Tokens are the statement's significant tokens, used for
	// anchoring diagnostics on precise token spans.
	Tokens []sqlscan.Token

	// Schema is the pinned catalog snapshot; nil when unavailable.
	Schema *schemacache.Snapshot

	// Options is the rule's raw configuration options, if any.
	Options json.RawMessage

	File string
}

// StatementText returns the bytes of the statement.
func (ctx *RuleContext) StatementText() string {
	return ctx.Range.Slice(ctx.Doc)
}

// TokenText returns a token's bytes.
func (ctx *RuleContext) TokenText(tok sqlscan.Token) string {
	return tok.Range.Slice(ctx.Doc)
}
