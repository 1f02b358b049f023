package text

import "sort"

// LineIndex maps byte offsets to 1-based line/column pairs. It stores the
// offset of the first byte of every line.
type LineIndex struct {
	starts []Size
}

// NewLineIndex builds an index for s.
func NewLineIndex(s string) *LineIndex {
	starts := []Size{0}
	for i := 0; i < len(s); i++ {
		if s[i] == '\n' {
			starts = append(starts, Size(i+1))
		}
	}
	return &LineIndex{starts: starts}
}

// Position holds a derived line/column pair next to the authoritative
// byte offset. Line and Col are 1-based; Col counts bytes, not runes.
type Position struct {
	Line   int  `json:"line"`
	Col    int  `json:"col"`
	Offset Size `json:"offset"`
}

// Position converts a byte offset.
func (ix *LineIndex) Position(off Size) Position {
	line := sort.Search(len(ix.starts), func(i int) bool { return ix.starts[i] > off }) - 1
	return Position{
		Line:   line + 1,
		Col:    int(off-ix.starts[line]) + 1,
		Offset: off,
	}
}
