package safety

import (
	"fmt"

	"github.com/postgrestools/pgtools/analyser"
	"github.com/postgrestools/pgtools/diag"
)

type banDropDatabase struct{}

func (banDropDatabase) Meta() analyser.RuleMeta {
	return analyser.RuleMeta{
		Name:     "banDropDatabase",
		Group:    "safety",
		Default:  diag.Error,
		Triggers: []string{"DropdbStmt"},
		Docs:     "Dropping a database cannot be undone.",
	}
}

func (r banDropDatabase) Run(ctx *analyser.RuleContext) []diag.Diagnostic {
	drop := ctx.Stmt.Node().GetDropdbStmt()
	if drop == nil {
		return nil
	}
	return []diag.Diagnostic{{
		Category: r.Meta().Category(),
		Message:  fmt.Sprintf("Dropping database %q is irreversible.", drop.Dbname),
		Primary:  anchorIdent(ctx, drop.Dbname),
	}}
}
