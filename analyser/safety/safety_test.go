package safety

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/postgrestools/pgtools/analyser"
	"github.com/postgrestools/pgtools/config"
	"github.com/postgrestools/pgtools/diag"
	"github.com/postgrestools/pgtools/pgparse"
	"github.com/postgrestools/pgtools/sqlsplit"
	"github.com/postgrestools/pgtools/suppress"
	"github.com/postgrestools/pgtools/text"
)

// run analyzes sql with the safety rules under the given config (empty
// string means the defaults: recommended rules only).
func run(t *testing.T, sql, cfgJSON string) []diag.Diagnostic {
	t.Helper()

	reg := analyser.NewRegistry()
	Register(reg)

	var cfg *config.Config
	if cfgJSON != "" {
		var err error
		cfg, err = config.Parse([]byte(cfgJSON))
		require.NoError(t, err)
	}
	eff, cfgDiags := analyser.Materialize(cfg, reg, config.DefaultFileName)
	require.Empty(t, cfgDiags)

	stmts := sqlsplit.Split(sql)
	sup := suppress.Build(sql, stmts)
	a := analyser.New(reg, nil)

	var out []diag.Diagnostic
	for _, st := range stmts {
		parsed, perr := pgparse.Parse(st.Text(sql), st.Range)
		out = append(out, a.RunStatement(&analyser.StatementInput{
			Doc:          sql,
			File:         "test.sql",
			Range:        st.Range,
			Tokens:       st.Tokens,
			Parse:        parsed,
			ParseErr:     perr,
			Suppressions: sup,
			Config:       eff,
		})...)
	}
	return out
}

const allRules = `{"linter":{"rules":{"all":true}}}`

func TestBanDropColumn(t *testing.T) {
	diags := run(t, "ALTER TABLE users DROP COLUMN email;", "")

	require.Len(t, diags, 1)
	assert.Equal(t, "lint/safety/banDropColumn", diags[0].Category)
	assert.Equal(t, diag.Error, diags[0].Severity)
	assert.Equal(t, text.NewRange(30, 35), diags[0].Primary)
	assert.Equal(t, "email", diags[0].Primary.Slice("ALTER TABLE users DROP COLUMN email;"))
}

func TestBanDropColumn_MultipleSubcommands(t *testing.T) {
	diags := run(t, "ALTER TABLE t DROP COLUMN a, DROP COLUMN b;", "")

	require.Len(t, diags, 2)
	assert.Equal(t, "lint/safety/banDropColumn", diags[0].Category)
	assert.Equal(t, "lint/safety/banDropColumn", diags[1].Category)
	assert.True(t, diags[0].Primary.Cmp(diags[1].Primary) < 0)
}

func TestAddingRequiredField(t *testing.T) {
	input := "ALTER TABLE t ADD COLUMN c int NOT NULL;"
	diags := run(t, input, allRules)

	var found []diag.Diagnostic
	for _, d := range diags {
		if d.Category == "lint/safety/addingRequiredField" {
			found = append(found, d)
		}
	}
	require.Len(t, found, 1)
	assert.Equal(t, diag.Error, found[0].Severity)
	assert.Equal(t, "ADD COLUMN c int NOT NULL", found[0].Primary.Slice(input))
}

func TestAddingRequiredField_DefaultIsFine(t *testing.T) {
	tests := []struct {
		name string
		sql  string
	}{
		{"with default", "ALTER TABLE t ADD COLUMN c int NOT NULL DEFAULT 0;"},
		{"nullable", "ALTER TABLE t ADD COLUMN c int;"},
		{"identity", "ALTER TABLE t ADD COLUMN c int NOT NULL GENERATED ALWAYS AS IDENTITY;"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for _, d := range run(t, tt.sql, allRules) {
				assert.NotEqual(t, "lint/safety/addingRequiredField", d.Category)
			}
		})
	}
}

func TestBanDropTable(t *testing.T) {
	diags := run(t, "DROP TABLE users;", "")

	require.Len(t, diags, 1)
	assert.Equal(t, "lint/safety/banDropTable", diags[0].Category)
	assert.Equal(t, "users", diags[0].Primary.Slice("DROP TABLE users;"))
}

func TestBanDropTable_QualifiedAndMultiple(t *testing.T) {
	diags := run(t, "DROP TABLE app.users, app.orders;", "")

	require.Len(t, diags, 2)
}

func TestBanDropTable_DropViewIsFine(t *testing.T) {
	assert.Empty(t, run(t, "DROP VIEW v;", ""))
}

func TestBanDropDatabase(t *testing.T) {
	diags := run(t, "DROP DATABASE prod;", allRules)

	var found []diag.Diagnostic
	for _, d := range diags {
		if d.Category == "lint/safety/banDropDatabase" {
			found = append(found, d)
		}
	}
	require.Len(t, found, 1)
	assert.Equal(t, "prod", found[0].Primary.Slice("DROP DATABASE prod;"))
}

func TestBanDropDatabase_OffByDefault(t *testing.T) {
	assert.Empty(t, run(t, "DROP DATABASE prod;", ""))
}

func TestBanDropNotNull(t *testing.T) {
	input := "ALTER TABLE t ALTER COLUMN c DROP NOT NULL;"
	diags := run(t, input, "")

	require.Len(t, diags, 1)
	assert.Equal(t, "lint/safety/banDropNotNull", diags[0].Category)
	assert.Equal(t, "c", diags[0].Primary.Slice(input))
}

func TestBanDropNotNull_SetNotNullIsFine(t *testing.T) {
	assert.Empty(t, run(t, "ALTER TABLE t ALTER COLUMN c SET NOT NULL;", ""))
}

func TestBanTruncateCascade(t *testing.T) {
	input := "TRUNCATE t CASCADE;"
	cfg := `{"linter":{"rules":{"safety":{"banTruncateCascade":"warn"}}}}`
	diags := run(t, input, cfg)

	require.Len(t, diags, 1)
	assert.Equal(t, "lint/safety/banTruncateCascade", diags[0].Category)
	assert.Equal(t, diag.Warn, diags[0].Severity)
	assert.Equal(t, "CASCADE", diags[0].Primary.Slice(input))
}

func TestBanTruncateCascade_PlainTruncateIsFine(t *testing.T) {
	assert.Empty(t, run(t, "TRUNCATE t;", allRules))
}

func TestSuppression_NextStatement(t *testing.T) {
	input := "-- pgt-ignore-next-statement banDropTable\nDROP TABLE users;"
	assert.Empty(t, run(t, input, ""))

	// without the directive the diagnostic is back
	diags := run(t, "DROP TABLE users;", "")
	require.Len(t, diags, 1)
	assert.Equal(t, "lint/safety/banDropTable", diags[0].Category)
}

func TestParseErrorThenLintableStatement(t *testing.T) {
	diags := run(t, "SELEC 1; DROP TABLE t;", "")

	require.Len(t, diags, 2)
	assert.Equal(t, "syntax/parseError", diags[0].Category)
	assert.Equal(t, "lint/safety/banDropTable", diags[1].Category)
}

func TestSeverityOffDisablesRule(t *testing.T) {
	cfg := `{"linter":{"rules":{"safety":{"banDropTable":"off"}}}}`
	assert.Empty(t, run(t, "DROP TABLE users;", cfg))
}

func TestNormalizeIdent(t *testing.T) {
	assert.Equal(t, "users", normalizeIdent("USERS"))
	assert.Equal(t, "Weird", normalizeIdent(`"Weird"`))
	assert.Equal(t, `a"b`, normalizeIdent(`"a""b"`))
}
