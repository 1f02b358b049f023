package safety

import (
	pg_query "github.com/pganalyze/pg_query_go/v6"

	"github.com/postgrestools/pgtools/analyser"
	"github.com/postgrestools/pgtools/diag"
)

type banTruncateCascade struct{}

func (banTruncateCascade) Meta() analyser.RuleMeta {
	return analyser.RuleMeta{
		Name:     "banTruncateCascade",
		Group:    "safety",
		Default:  diag.Error,
		Triggers: []string{"TruncateStmt"},
		Docs:     "TRUNCATE ... CASCADE empties every table with a foreign key onto the target.",
	}
}

func (r banTruncateCascade) Run(ctx *analyser.RuleContext) []diag.Diagnostic {
	tr := ctx.Stmt.Node().GetTruncateStmt()
	if tr == nil || tr.Behavior != pg_query.DropBehavior_DROP_CASCADE {
		return nil
	}
	return []diag.Diagnostic{{
		Category: r.Meta().Category(),
		Message:  "TRUNCATE CASCADE also empties every table referencing the target via foreign keys.",
		Primary:  anchorWord(ctx, "cascade"),
		Advice: []diag.Advice{
			{Message: "Truncate the dependent tables explicitly so the blast radius is visible in the migration."},
		},
	}}
}
