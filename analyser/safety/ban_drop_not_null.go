package safety

import (
	"fmt"

	pg_query "github.com/pganalyze/pg_query_go/v6"

	"github.com/postgrestools/pgtools/analyser"
	"github.com/postgrestools/pgtools/diag"
)

type banDropNotNull struct{}

func (banDropNotNull) Meta() analyser.RuleMeta {
	return analyser.RuleMeta{
		Name:        "banDropNotNull",
		Group:       "safety",
		Recommended: true,
		Default:     diag.Error,
		Triggers:    []string{"AlterTableStmt"},
		Docs:        "Dropping NOT NULL allows nulls that existing readers may not handle.",
	}
}

func (r banDropNotNull) Run(ctx *analyser.RuleContext) []diag.Diagnostic {
	alter := ctx.Stmt.Node().GetAlterTableStmt()
	if alter == nil {
		return nil
	}

	var out []diag.Diagnostic
	for _, cmd := range alter.Cmds {
		at := cmd.GetAlterTableCmd()
		if at == nil || at.Subtype != pg_query.AlterTableType_AT_DropNotNull {
			continue
		}
		out = append(out, diag.Diagnostic{
			Category: r.Meta().Category(),
			Message:  fmt.Sprintf("Dropping NOT NULL on %q lets null values in; readers assuming presence will break.", at.Name),
			Primary:  anchorIdent(ctx, at.Name),
		})
	}
	return out
}
