package analyser

import (
	"github.com/sirupsen/logrus"

	"github.com/postgrestools/pgtools/diag"
	"github.com/postgrestools/pgtools/pgparse"
	"github.com/postgrestools/pgtools/schemacache"
	"github.com/postgrestools/pgtools/sqlscan"
	"github.com/postgrestools/pgtools/suppress"
	"github.com/postgrestools/pgtools/text"
)

// Analyser runs the registered rules over statements. It is CPU-bound
// and performs no I/O; the schema snapshot it reads was loaded ahead of
// time by the workspace.
type Analyser struct {
	reg    *Registry
	logger logrus.FieldLogger
}

func New(reg *Registry, logger logrus.FieldLogger) *Analyser {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &Analyser{reg: reg, logger: logger}
}

// Registry returns the rule registry.
func (a *Analyser) Registry() *Registry {
	return a.reg
}

// StatementInput is everything the driver needs for one statement.
type StatementInput struct {
	Doc    string
	File   string
	Range  text.Range
	Tokens []sqlscan.Token

	// Parse and ParseErr reflect the libpg_query outcome; exactly one
	// is set.
	Parse    *pgparse.Statement
	ParseErr *pgparse.ParseError

	Schema       *schemacache.Snapshot
	Suppressions *suppress.Set
	Config       *EffectiveConfig
}

// RunStatement produces the statement's diagnostics, sorted by
// (start, end, category). A parse error yields a single syntax
// diagnostic; AST-dependent rules are skipped for that statement.
func (a *Analyser) RunStatement(in *StatementInput) []diag.Diagnostic {
	var out []diag.Diagnostic

	emit := func(d diag.Diagnostic) {
		if d.Severity == diag.Off {
			return
		}
		if in.Suppressions != nil && in.Suppressions.Suppressed(d.Category, d.Primary) {
			return
		}
		out = append(out, d)
	}

	if in.ParseErr != nil {
		emit(diag.Diagnostic{
			Category: "syntax/parseError",
			Severity: diag.Error,
			Message:  in.ParseErr.Message,
			Primary:  in.ParseErr.Cursor,
			Labels:   []diag.Label{{Range: in.Range, Message: "in this statement"}},
			Source:   diag.Source{File: in.File},
		})
		diag.Sort(out)
		return out
	}

	kinds := pgparse.KindsIn(in.Parse.Node())
	for _, rule := range a.reg.Rules() {
		meta := rule.Meta()
		spec, enabled := in.Config.Spec(meta.ID())
		if !enabled {
			continue
		}
		if meta.RequiresSchema && in.Schema == nil {
			continue
		}
		if !triggersMatch(meta.Triggers, kinds) {
			continue
		}

		for _, d := range a.runRule(rule, in, spec) {
			d.Severity = spec.Severity
			if d.Source.File == "" {
				d.Source.File = in.File
			}
			emit(d)
		}
	}

	diag.Sort(out)
	return out
}

// runRule isolates rule panics: one bad rule never blocks the others.
func (a *Analyser) runRule(rule Rule, in *StatementInput, spec RuleSpec) (diags []diag.Diagnostic) {
	defer func() {
		if r := recover(); r != nil {
			a.logger.WithFields(logrus.Fields{
				"rule": rule.Meta().ID(),
				"file": in.File,
			}).Errorf("rule panicked: %v", r)
			diags = nil
		}
	}()

	return rule.Run(&RuleContext{
		Stmt:    in.Parse,
		Doc:     in.Doc,
		Range:   in.Range,
		Tokens:  in.Tokens,
		Schema:  in.Schema,
		Options: spec.Options,
		File:    in.File,
	})
}

// SchemaSensitive reports whether any enabled schema-dependent rule
// would query one of the given node kinds. The workspace uses this to
// decide which cached results a schema refresh invalidates.
func (a *Analyser) SchemaSensitive(eff *EffectiveConfig, kinds map[string]struct{}) bool {
	for _, rule := range a.reg.Rules() {
		meta := rule.Meta()
		if !meta.RequiresSchema || !eff.Enabled(meta.ID()) {
			continue
		}
		if triggersMatch(meta.Triggers, kinds) {
			return true
		}
	}
	return false
}

// HasSchemaRules reports whether any enabled rule reads the schema
// cache at all.
func (a *Analyser) HasSchemaRules(eff *EffectiveConfig) bool {
	for _, rule := range a.reg.Rules() {
		if rule.Meta().RequiresSchema && eff.Enabled(rule.Meta().ID()) {
			return true
		}
	}
	return false
}

func triggersMatch(triggers []string, kinds map[string]struct{}) bool {
	if len(triggers) == 0 {
		return true
	}
	for _, t := range triggers {
		if _, ok := kinds[t]; ok {
			return true
		}
	}
	return false
}
