// Package diag defines the structured diagnostic model shared by the
// analyser, the configuration resolver, and the workspace façade.
package diag

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/postgrestools/pgtools/text"
)

// Severity of a diagnostic. Off is only valid in configuration; a
// diagnostic with severity Off is never emitted.
type Severity int

const (
	Off Severity = iota
	Info
	Warn
	Error
)

func (s Severity) String() string {
	switch s {
	case Off:
		return "off"
	case Info:
		return "info"
	case Warn:
		return "warn"
	case Error:
		return "error"
	}
	return fmt.Sprintf("Severity(%d)", int(s))
}

// ParseSeverity parses one of "off", "info", "warn", "error".
func ParseSeverity(s string) (Severity, error) {
	switch strings.ToLower(s) {
	case "off":
		return Off, nil
	case "info":
		return Info, nil
	case "warn":
		return Warn, nil
	case "error":
		return Error, nil
	}
	return Off, fmt.Errorf("invalid severity %q (want off, info, warn or error)", s)
}

func (s Severity) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.String())
}

func (s *Severity) UnmarshalJSON(b []byte) error {
	var raw string
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	sev, err := ParseSeverity(raw)
	if err != nil {
		return err
	}
	*s = sev
	return nil
}

// Label is a secondary range with an explanatory message.
type Label struct {
	Range   text.Range
	Message string
}

// TextEdit is a textual replacement a rule supplies as a fix.
type TextEdit struct {
	Range   text.Range
	NewText string
}

// Advice is a follow-up note on a diagnostic, optionally carrying a fix.
type Advice struct {
	Message string
	Fix     *TextEdit
}

// Source identifies the document a diagnostic belongs to.
type Source struct {
	File string
}

// Diagnostic is one finding. Category is a static identifier such as
// "lint/safety/banDropColumn" or "syntax/parseError".
type Diagnostic struct {
	Category string
	Severity Severity
	Message  string
	Primary  text.Range
	Labels   []Label
	Advice   []Advice
	Source   Source
}

// Shift rebases all ranges of the diagnostic by delta bytes.
func (d Diagnostic) Shift(delta text.Size) Diagnostic {
	d.Primary = d.Primary.Shift(delta)
	if len(d.Labels) > 0 {
		labels := make([]Label, len(d.Labels))
		for i, l := range d.Labels {
			labels[i] = Label{Range: l.Range.Shift(delta), Message: l.Message}
		}
		d.Labels = labels
	}
	if len(d.Advice) > 0 {
		advice := make([]Advice, len(d.Advice))
		for i, a := range d.Advice {
			advice[i] = a
			if a.Fix != nil {
				fix := *a.Fix
				fix.Range = fix.Range.Shift(delta)
				advice[i].Fix = &fix
			}
		}
		d.Advice = advice
	}
	return d
}

// Sort orders diagnostics by (Primary.Start, Primary.End, Category) for
// stable output.
func Sort(diags []Diagnostic) {
	sort.SliceStable(diags, func(i, j int) bool {
		if c := diags[i].Primary.Cmp(diags[j].Primary); c != 0 {
			return c < 0
		}
		return diags[i].Category < diags[j].Category
	})
}
