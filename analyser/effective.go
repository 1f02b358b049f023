package analyser

import (
	"encoding/json"
	"fmt"
	"sort"

	"github.com/postgrestools/pgtools/config"
	"github.com/postgrestools/pgtools/diag"
)

// RuleSpec is the resolved configuration of one enabled rule.
type RuleSpec struct {
	Severity diag.Severity
	Options  json.RawMessage
}

// EffectiveConfig is the materialized rule table: rule ID to spec, for
// enabled rules only. A rule configured off does not appear; the driver
// never invokes it.
type EffectiveConfig struct {
	specs map[string]RuleSpec
}

// Spec returns the spec for an enabled rule.
func (e *EffectiveConfig) Spec(id string) (RuleSpec, bool) {
	s, ok := e.specs[id]
	return s, ok
}

// Enabled reports whether the rule is enabled.
func (e *EffectiveConfig) Enabled(id string) bool {
	_, ok := e.specs[id]
	return ok
}

// Len returns the number of enabled rules.
func (e *EffectiveConfig) Len() int {
	return len(e.specs)
}

// Materialize resolves the configuration against the registry into an
// effective rule table. Resolution is a pure function of its inputs:
// resolving the same config twice yields equal tables.
//
// Enablement, most specific wins:
//  1. rules.recommended / rules.all (recommended defaults to true when
//     the config says nothing at all)
//  2. group-level recommended / all
//  3. the explicit rule entry
//
// Unknown rule names and invalid severities do not abort resolution;
// they come back as config/* diagnostics.
func Materialize(cfg *config.Config, reg *Registry, configFile string) (*EffectiveConfig, []diag.Diagnostic) {
	eff := &EffectiveConfig{specs: make(map[string]RuleSpec)}
	var diags []diag.Diagnostic

	if cfg != nil && !cfg.LinterEnabled() {
		return eff, nil
	}

	var rules *config.RulesConfig
	if cfg != nil && cfg.Linter != nil {
		rules = cfg.Linter.Rules
	}

	recommended := true
	all := false
	if rules != nil {
		if rules.Recommended != nil {
			recommended = *rules.Recommended
		}
		if rules.All != nil {
			all = *rules.All
		}
	}

	for _, rule := range reg.Rules() {
		meta := rule.Meta()
		group := rules.Group(meta.Group)

		groupRecommended := recommended
		groupAll := all
		if group != nil {
			if group.Recommended != nil {
				groupRecommended = *group.Recommended
			}
			if group.All != nil {
				groupAll = *group.All
			}
		}

		enabled := groupAll || (groupRecommended && meta.Recommended)
		severity := meta.Default
		var options json.RawMessage

		if group != nil {
			if entry, ok := group.Rules[meta.Name]; ok {
				if entry.Invalid != "" {
					diags = append(diags, diag.Diagnostic{
						Category: "config/invalidSeverity",
						Severity: diag.Error,
						Message:  fmt.Sprintf("Rule %s: %s; entry ignored.", meta.ID(), entry.Invalid),
						Source:   diag.Source{File: configFile},
					})
				} else {
					enabled = entry.Level != diag.Off
					if enabled {
						severity = entry.Level
					}
					options = entry.Options
				}
			}
		}

		if enabled {
			eff.specs[meta.ID()] = RuleSpec{Severity: severity, Options: options}
		}
	}

	// flag configured rule names that do not exist
	if rules != nil {
		for _, groupName := range []string{"safety"} {
			group := rules.Group(groupName)
			if group == nil {
				continue
			}
			names := make([]string, 0, len(group.Rules))
			for name := range group.Rules {
				names = append(names, name)
			}
			sort.Strings(names)
			for _, name := range names {
				if _, ok := reg.Lookup(groupName, name); !ok {
					diags = append(diags, diag.Diagnostic{
						Category: "config/unknownRule",
						Severity: diag.Warn,
						Message:  fmt.Sprintf("Unknown rule %s/%s.", groupName, name),
						Source:   diag.Source{File: configFile},
					})
				}
			}
		}
	}

	return eff, diags
}
