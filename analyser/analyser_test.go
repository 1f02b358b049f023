package analyser

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/postgrestools/pgtools/config"
	"github.com/postgrestools/pgtools/diag"
	"github.com/postgrestools/pgtools/pgparse"
	"github.com/postgrestools/pgtools/sqlsplit"
	"github.com/postgrestools/pgtools/text"
)

type stubRule struct {
	meta RuleMeta
	run  func(ctx *RuleContext) []diag.Diagnostic
}

func (s stubRule) Meta() RuleMeta { return s.meta }
func (s stubRule) Run(ctx *RuleContext) []diag.Diagnostic {
	if s.run == nil {
		return nil
	}
	return s.run(ctx)
}

func newStub(name string, recommended bool, run func(ctx *RuleContext) []diag.Diagnostic) stubRule {
	return stubRule{
		meta: RuleMeta{
			Name:        name,
			Group:       "safety",
			Recommended: recommended,
			Default:     diag.Error,
			Triggers:    []string{"SelectStmt"},
		},
		run: run,
	}
}

func parseCfg(t *testing.T, src string) *config.Config {
	t.Helper()
	cfg, err := config.Parse([]byte(src))
	require.NoError(t, err)
	return cfg
}

func TestRegistry_DuplicatePanics(t *testing.T) {
	reg := NewRegistry()
	reg.Register(newStub("a", true, nil))
	assert.Panics(t, func() { reg.Register(newStub("a", true, nil)) })
}

func TestMaterialize_Defaults(t *testing.T) {
	reg := NewRegistry()
	reg.Register(newStub("recommendedRule", true, nil))
	reg.Register(newStub("optionalRule", false, nil))

	eff, diags := Materialize(nil, reg, "cfg")
	require.Empty(t, diags)
	assert.True(t, eff.Enabled("safety/recommendedRule"))
	assert.False(t, eff.Enabled("safety/optionalRule"))
}

func TestMaterialize_All(t *testing.T) {
	reg := NewRegistry()
	reg.Register(newStub("recommendedRule", true, nil))
	reg.Register(newStub("optionalRule", false, nil))

	eff, _ := Materialize(parseCfg(t, `{"linter":{"rules":{"all":true}}}`), reg, "cfg")
	assert.Equal(t, 2, eff.Len())
}

func TestMaterialize_ExplicitEntryOverridesRecommended(t *testing.T) {
	reg := NewRegistry()
	reg.Register(newStub("recommendedRule", true, nil))

	eff, _ := Materialize(parseCfg(t, `{"linter":{"rules":{"safety":{"recommendedRule":"off"}}}}`), reg, "cfg")
	assert.False(t, eff.Enabled("safety/recommendedRule"))

	eff, _ = Materialize(parseCfg(t, `{"linter":{"rules":{"recommended":false,"safety":{"recommendedRule":"info"}}}}`), reg, "cfg")
	spec, ok := eff.Spec("safety/recommendedRule")
	require.True(t, ok)
	assert.Equal(t, diag.Info, spec.Severity)
}

func TestMaterialize_GroupLevelScoping(t *testing.T) {
	reg := NewRegistry()
	reg.Register(newStub("recommendedRule", true, nil))
	reg.Register(newStub("optionalRule", false, nil))

	eff, _ := Materialize(parseCfg(t, `{"linter":{"rules":{"recommended":false,"safety":{"recommended":true}}}}`), reg, "cfg")
	assert.True(t, eff.Enabled("safety/recommendedRule"))
	assert.False(t, eff.Enabled("safety/optionalRule"))

	eff, _ = Materialize(parseCfg(t, `{"linter":{"rules":{"safety":{"all":true}}}}`), reg, "cfg")
	assert.True(t, eff.Enabled("safety/optionalRule"))
}

func TestMaterialize_UnknownRuleWarns(t *testing.T) {
	reg := NewRegistry()
	reg.Register(newStub("recommendedRule", true, nil))

	_, diags := Materialize(parseCfg(t, `{"linter":{"rules":{"safety":{"noSuchRule":"warn"}}}}`), reg, "cfg")
	require.Len(t, diags, 1)
	assert.Equal(t, "config/unknownRule", diags[0].Category)
	assert.Equal(t, diag.Warn, diags[0].Severity)
}

func TestMaterialize_InvalidSeverityErrors(t *testing.T) {
	reg := NewRegistry()
	reg.Register(newStub("recommendedRule", true, nil))

	eff, diags := Materialize(parseCfg(t, `{"linter":{"rules":{"safety":{"recommendedRule":"loud"}}}}`), reg, "cfg")
	require.Len(t, diags, 1)
	assert.Equal(t, "config/invalidSeverity", diags[0].Category)
	assert.Equal(t, diag.Error, diags[0].Severity)
	// the broken entry is ignored; the rule keeps its recommended state
	assert.True(t, eff.Enabled("safety/recommendedRule"))
}

func TestMaterialize_LinterDisabled(t *testing.T) {
	reg := NewRegistry()
	reg.Register(newStub("recommendedRule", true, nil))

	eff, _ := Materialize(parseCfg(t, `{"linter":{"enabled":false}}`), reg, "cfg")
	assert.Equal(t, 0, eff.Len())
}

func TestMaterialize_Idempotent(t *testing.T) {
	reg := NewRegistry()
	reg.Register(newStub("recommendedRule", true, nil))
	reg.Register(newStub("optionalRule", false, nil))
	cfg := parseCfg(t, `{"linter":{"rules":{"safety":{"optionalRule":"warn"}}}}`)

	a, _ := Materialize(cfg, reg, "cfg")
	b, _ := Materialize(cfg, reg, "cfg")
	assert.Equal(t, a.specs, b.specs)
}

func statementInput(t *testing.T, sql string, eff *EffectiveConfig) *StatementInput {
	t.Helper()
	stmts := sqlsplit.Split(sql)
	require.Len(t, stmts, 1)
	st := stmts[0]
	parsed, perr := pgparse.Parse(st.Text(sql), st.Range)
	return &StatementInput{
		Doc:      sql,
		File:     "test.sql",
		Range:    st.Range,
		Tokens:   st.Tokens,
		Parse:    parsed,
		ParseErr: perr,
		Config:   eff,
	}
}

func TestRunStatement_PanickingRuleIsIsolated(t *testing.T) {
	reg := NewRegistry()
	reg.Register(newStub("panics", true, func(ctx *RuleContext) []diag.Diagnostic {
		panic("child range outside parent")
	}))
	reg.Register(newStub("works", true, func(ctx *RuleContext) []diag.Diagnostic {
		return []diag.Diagnostic{{Category: "lint/safety/works", Primary: ctx.Range}}
	}))
	eff, _ := Materialize(nil, reg, "cfg")

	diags := New(reg, nil).RunStatement(statementInput(t, "SELECT 1", eff))
	require.Len(t, diags, 1)
	assert.Equal(t, "lint/safety/works", diags[0].Category)
}

func TestRunStatement_SchemaRuleSkippedWithoutSnapshot(t *testing.T) {
	reg := NewRegistry()
	rule := newStub("needsSchema", true, func(ctx *RuleContext) []diag.Diagnostic {
		return []diag.Diagnostic{{Category: "lint/safety/needsSchema", Primary: ctx.Range}}
	})
	rule.meta.RequiresSchema = true
	reg.Register(rule)
	eff, _ := Materialize(nil, reg, "cfg")

	diags := New(reg, nil).RunStatement(statementInput(t, "SELECT 1", eff))
	assert.Empty(t, diags)
}

func TestRunStatement_TriggerFiltering(t *testing.T) {
	reg := NewRegistry()
	calls := 0
	rule := newStub("selectOnly", true, func(ctx *RuleContext) []diag.Diagnostic {
		calls++
		return nil
	})
	reg.Register(rule)
	eff, _ := Materialize(nil, reg, "cfg")
	a := New(reg, nil)

	a.RunStatement(statementInput(t, "SELECT 1", eff))
	assert.Equal(t, 1, calls)

	a.RunStatement(statementInput(t, "DROP TABLE t", eff))
	assert.Equal(t, 1, calls, "rule must not run for kinds it does not query")
}

func TestRunStatement_ParseErrorDiagnostic(t *testing.T) {
	reg := NewRegistry()
	eff, _ := Materialize(nil, reg, "cfg")

	in := statementInput(t, "SELEC 1", eff)
	require.NotNil(t, in.ParseErr)

	diags := New(reg, nil).RunStatement(in)
	require.Len(t, diags, 1)
	assert.Equal(t, "syntax/parseError", diags[0].Category)
	assert.Equal(t, diag.Error, diags[0].Severity)
	assert.True(t, text.NewRange(0, 7).ContainsRange(diags[0].Primary))
}
