package safety

import (
	"fmt"

	pg_query "github.com/pganalyze/pg_query_go/v6"

	"github.com/postgrestools/pgtools/analyser"
	"github.com/postgrestools/pgtools/diag"
)

type banDropTable struct{}

func (banDropTable) Meta() analyser.RuleMeta {
	return analyser.RuleMeta{
		Name:        "banDropTable",
		Group:       "safety",
		Recommended: true,
		Default:     diag.Error,
		Triggers:    []string{"DropStmt"},
		Docs:        "Dropping a table deletes its data; downtime-free migrations rename instead.",
	}
}

func (r banDropTable) Run(ctx *analyser.RuleContext) []diag.Diagnostic {
	drop := ctx.Stmt.Node().GetDropStmt()
	if drop == nil || drop.RemoveType != pg_query.ObjectType_OBJECT_TABLE {
		return nil
	}

	var out []diag.Diagnostic
	for _, obj := range drop.Objects {
		name := lastNamePart(obj)
		if name == "" {
			continue
		}
		out = append(out, diag.Diagnostic{
			Category: r.Meta().Category(),
			Message:  fmt.Sprintf("Dropping table %q deletes all of its data.", name),
			Primary:  anchorIdent(ctx, name),
			Advice: []diag.Advice{
				{Message: "Rename the table out of the way and drop it in a later migration once nothing references it."},
			},
		})
	}
	return out
}

// lastNamePart extracts the object name from a possibly qualified name
// node (a List of String parts, or a bare String).
func lastNamePart(obj *pg_query.Node) string {
	if list := obj.GetList(); list != nil && len(list.Items) > 0 {
		return list.Items[len(list.Items)-1].GetString_().GetSval()
	}
	return obj.GetString_().GetSval()
}
