package diag

import "github.com/postgrestools/pgtools/text"

// Encoded is the machine-readable form of a diagnostic. Line/column
// pairs are derived from the document text at encoding time.
type Encoded struct {
	Category string         `json:"category"`
	Severity Severity       `json:"severity"`
	Message  string         `json:"message"`
	File     string         `json:"file"`
	Range    EncodedRange   `json:"range"`
	Labels   []EncodedLabel `json:"labels"`
	Advice   []EncodedNote  `json:"advice"`
}

type EncodedRange struct {
	Start text.Position `json:"start"`
	End   text.Position `json:"end"`
}

type EncodedLabel struct {
	Range   EncodedRange `json:"range"`
	Message string       `json:"message"`
}

type EncodedNote struct {
	Message string `json:"message"`
}

func encodeRange(ix *text.LineIndex, r text.Range) EncodedRange {
	return EncodedRange{Start: ix.Position(r.Start), End: ix.Position(r.End)}
}

// Encode converts a diagnostic for JSON output using the line index of
// the owning document.
func Encode(d Diagnostic, ix *text.LineIndex) Encoded {
	e := Encoded{
		Category: d.Category,
		Severity: d.Severity,
		Message:  d.Message,
		File:     d.Source.File,
		Range:    encodeRange(ix, d.Primary),
		Labels:   []EncodedLabel{},
		Advice:   []EncodedNote{},
	}
	for _, l := range d.Labels {
		e.Labels = append(e.Labels, EncodedLabel{Range: encodeRange(ix, l.Range), Message: l.Message})
	}
	for _, a := range d.Advice {
		e.Advice = append(e.Advice, EncodedNote{Message: a.Message})
	}
	return e
}
