package safety

import (
	"fmt"

	pg_query "github.com/pganalyze/pg_query_go/v6"

	"github.com/postgrestools/pgtools/analyser"
	"github.com/postgrestools/pgtools/diag"
)

type banDropColumn struct{}

func (banDropColumn) Meta() analyser.RuleMeta {
	return analyser.RuleMeta{
		Name:        "banDropColumn",
		Group:       "safety",
		Recommended: true,
		Default:     diag.Error,
		Triggers:    []string{"AlterTableStmt"},
		Docs:        "Dropping a column may break existing clients that read it.",
	}
}

func (r banDropColumn) Run(ctx *analyser.RuleContext) []diag.Diagnostic {
	alter := ctx.Stmt.Node().GetAlterTableStmt()
	if alter == nil {
		return nil
	}

	var out []diag.Diagnostic
	for _, cmd := range alter.Cmds {
		at := cmd.GetAlterTableCmd()
		if at == nil || at.Subtype != pg_query.AlterTableType_AT_DropColumn {
			continue
		}
		out = append(out, diag.Diagnostic{
			Category: r.Meta().Category(),
			Message:  fmt.Sprintf("Dropping column %q may break existing clients.", at.Name),
			Primary:  anchorIdent(ctx, at.Name),
			Advice: []diag.Advice{
				{Message: "Deprecate the column first and remove all application reads before dropping it."},
			},
		})
	}
	return out
}
