// Package suppress parses pgt-ignore comment directives and decides
// which diagnostics they silence. Directives only ever remove
// diagnostics; they cannot re-enable rules the configuration disabled.
package suppress

import (
	"fmt"
	"strings"

	"github.com/postgrestools/pgtools/diag"
	"github.com/postgrestools/pgtools/sqlsplit"
	"github.com/postgrestools/pgtools/text"
)

// Scope of a directive.
type Scope int

const (
	// File suppresses for the whole document; only honored at file top.
	File Scope = iota
	// NextStatement suppresses for the immediately following statement.
	NextStatement
	// RangeStart opens a suppression range closed by a matching RangeEnd.
	RangeStart
	// RangeEnd closes a range.
	RangeEnd
)

// Directive is one parsed pgt-ignore comment.
type Directive struct {
	Pattern string
	Scope   Scope
	Origin  text.Range
}

const marker = "pgt-ignore"

// ParseComment recognizes a directive in a single line comment. The
// comment text includes the leading "--".
func ParseComment(comment string, origin text.Range) (Directive, bool) {
	body := strings.TrimSpace(strings.TrimPrefix(comment, "--"))
	if !strings.HasPrefix(body, marker) {
		return Directive{}, false
	}
	rest := body[len(marker):]

	scope := File
	switch {
	case strings.HasPrefix(rest, "-next-statement"):
		scope = NextStatement
		rest = rest[len("-next-statement"):]
	case strings.HasPrefix(rest, "-start"):
		scope = RangeStart
		rest = rest[len("-start"):]
	case strings.HasPrefix(rest, "-end"):
		scope = RangeEnd
		rest = rest[len("-end"):]
	}

	pattern := strings.TrimSpace(rest)
	if pattern == "" || strings.ContainsAny(pattern, " \t") {
		// a directive needs exactly one pattern
		return Directive{}, false
	}
	return Directive{Pattern: pattern, Scope: scope, Origin: origin}, true
}

type tracked struct {
	Directive
	effective text.Range
	used      bool
}

// Set holds the document's suppressions with their effective ranges,
// and records which ones matched at least one diagnostic.
type Set struct {
	directives []*tracked
}

// Build collects directives from the statements' leading comments.
// File-wide directives are honored only before the first statement;
// start/end pairs are matched by pattern in document order, an
// unclosed start running to the end of the document.
func Build(input string, stmts []sqlsplit.Statement) *Set {
	s := &Set{}
	docEnd := text.Size(len(input))

	var open []*tracked // unclosed range starts
	for i, stmt := range stmts {
		for _, c := range stmt.LeadingComments {
			d, ok := ParseComment(c.Range.Slice(input), c.Range)
			if !ok {
				continue
			}
			tr := &tracked{Directive: d}
			switch d.Scope {
			case File:
				if i == 0 {
					tr.effective = text.NewRange(0, docEnd)
				}
				// a file-wide directive below the first statement has an
				// empty effective range and will surface as unused
			case NextStatement:
				tr.effective = stmt.Range
			case RangeStart:
				tr.effective = text.NewRange(d.Origin.Start, docEnd)
				open = append(open, tr)
			case RangeEnd:
				closed := false
				for j := len(open) - 1; j >= 0; j-- {
					if open[j].Pattern == d.Pattern {
						open[j].effective.End = d.Origin.End
						open = append(open[:j], open[j+1:]...)
						closed = true
						break
					}
				}
				if closed {
					// the end marker is part of its start's range; it is
					// not an independent suppression
					continue
				}
				// stray end: tracked so it reports as unused
			}
			s.directives = append(s.directives, tr)
		}
	}
	return s
}

// Suppressed reports whether a diagnostic is silenced, and marks the
// matching directives as used.
func (s *Set) Suppressed(category string, primary text.Range) bool {
	hit := false
	for _, tr := range s.directives {
		if tr.effective.Empty() {
			continue
		}
		if !patternMatches(tr.Pattern, category) {
			continue
		}
		if !tr.effective.ContainsRange(primary) {
			continue
		}
		tr.used = true
		hit = true
	}
	return hit
}

// Unused returns one informational diagnostic per directive that never
// matched a diagnostic.
func (s *Set) Unused(file string) []diag.Diagnostic {
	var out []diag.Diagnostic
	for _, tr := range s.directives {
		if tr.used {
			continue
		}
		out = append(out, diag.Diagnostic{
			Category: "suppression/unused",
			Severity: diag.Info,
			Message:  fmt.Sprintf("Suppression %q did not match any diagnostic.", tr.Pattern),
			Primary:  tr.Origin,
			Source:   diag.Source{File: file},
		})
	}
	return out
}

// patternMatches checks a directive pattern against a diagnostic
// category such as "lint/safety/banDropColumn". A pattern is "*", a
// group name, a rule name, or group/rule.
func patternMatches(pattern, category string) bool {
	if pattern == "*" {
		return true
	}
	parts := strings.Split(category, "/")
	if strings.Contains(pattern, "/") {
		// group/rule form matches the category's tail
		return strings.HasSuffix(category, "/"+pattern) || category == pattern
	}
	for _, p := range parts[1:] {
		if p == pattern {
			return true
		}
	}
	return false
}
