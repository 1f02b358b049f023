package safety

import (
	"fmt"

	pg_query "github.com/pganalyze/pg_query_go/v6"

	"github.com/postgrestools/pgtools/analyser"
	"github.com/postgrestools/pgtools/diag"
	"github.com/postgrestools/pgtools/sqlscan"
	"github.com/postgrestools/pgtools/text"
)

type addingRequiredField struct{}

func (addingRequiredField) Meta() analyser.RuleMeta {
	return analyser.RuleMeta{
		Name:     "addingRequiredField",
		Group:    "safety",
		Default:  diag.Error,
		Triggers: []string{"AlterTableStmt"},
		Docs:     "Adding a NOT NULL column without a DEFAULT fails on tables that already contain rows.",
	}
}

func (r addingRequiredField) Run(ctx *analyser.RuleContext) []diag.Diagnostic {
	alter := ctx.Stmt.Node().GetAlterTableStmt()
	if alter == nil {
		return nil
	}

	var out []diag.Diagnostic
	for _, cmd := range alter.Cmds {
		at := cmd.GetAlterTableCmd()
		if at == nil || at.Subtype != pg_query.AlterTableType_AT_AddColumn {
			continue
		}
		def := at.GetDef().GetColumnDef()
		if def == nil || !requiredWithoutDefault(def) {
			continue
		}
		out = append(out, diag.Diagnostic{
			Category: r.Meta().Category(),
			Message:  fmt.Sprintf("Adding required column %q without a default value.", def.Colname),
			Primary:  addColumnClause(ctx, def),
			Advice: []diag.Advice{
				{Message: "Add the column with a DEFAULT, backfill, then drop the default if unwanted."},
				{Message: "Alternatively add it nullable and tighten to NOT NULL after backfilling."},
			},
		})
	}
	return out
}

// requiredWithoutDefault reports a NOT NULL column with neither a
// default nor a generated/identity value.
func requiredWithoutDefault(def *pg_query.ColumnDef) bool {
	notNull := def.IsNotNull
	hasDefault := def.RawDefault != nil
	for _, c := range def.Constraints {
		con := c.GetConstraint()
		if con == nil {
			continue
		}
		switch con.Contype {
		case pg_query.ConstrType_CONSTR_NOTNULL, pg_query.ConstrType_CONSTR_PRIMARY:
			notNull = true
		case pg_query.ConstrType_CONSTR_DEFAULT,
			pg_query.ConstrType_CONSTR_IDENTITY,
			pg_query.ConstrType_CONSTR_GENERATED:
			hasDefault = true
		}
	}
	return notNull && !hasDefault
}

// addColumnClause computes the range of the whole ADD COLUMN
// subcommand: from the ADD keyword through the last token before the
// next top-level comma (or the end of the statement). AlterTableCmd
// carries no location, so the clause is recovered from the token
// stream around the column name's position.
func addColumnClause(ctx *analyser.RuleContext, def *pg_query.ColumnDef) text.Range {
	nameIdx := -1
	for i, tok := range ctx.Tokens {
		if tok.Range.Start == text.Size(def.Location) {
			nameIdx = i
			break
		}
	}
	if nameIdx < 0 {
		return ctx.Range
	}

	start := ctx.Range.Start
	for i := nameIdx - 1; i >= 0; i-- {
		if normalizeIdent(ctx.TokenText(ctx.Tokens[i])) == "add" {
			start = ctx.Tokens[i].Range.Start
			break
		}
	}

	end := ctx.Range.End
	depth := 0
scan:
	for i := nameIdx; i < len(ctx.Tokens); i++ {
		switch ctx.Tokens[i].Kind {
		case sqlscan.LParen:
			depth++
		case sqlscan.RParen:
			depth--
		case sqlscan.Comma:
			if depth == 0 {
				end = ctx.Tokens[i-1].Range.End
				break scan
			}
		}
	}
	return text.NewRange(start, end)
}
