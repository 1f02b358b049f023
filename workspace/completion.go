package workspace

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/pkg/errors"

	"github.com/postgrestools/pgtools/schemacache"
	"github.com/postgrestools/pgtools/text"
	"github.com/postgrestools/pgtools/tscst"
)

// CompletionItem is one completion candidate.
type CompletionItem struct {
	Label  string
	Kind   string // "table", "column", "keyword", "function"
	Detail string
}

// completionKeywords is deliberately small: statement openers and the
// connectives worth typing help for.
var completionKeywords = []string{
	"alter", "begin", "commit", "create", "delete", "drop", "from",
	"group by", "insert", "join", "limit", "order by", "select", "set",
	"truncate", "update", "values", "where",
}

// cstFor returns the document's tolerant syntax tree, building it on
// first use after an edit.
func (w *Workspace) cstFor(d *document) *tscst.Tree {
	if d.cst == nil {
		tree, err := tscst.Parse(context.Background(), []byte(d.text))
		if err != nil {
			w.logger.WithError(err).WithField("doc", d.id).Warn("tree-sitter parse failed")
			return nil
		}
		d.cst = tree
	}
	return d.cst
}

// Completions proposes identifiers and keywords for the given offset.
// It is served from the tree-sitter tree and the schema cache, so it
// keeps working on text the authoritative parser rejects.
func (w *Workspace) Completions(id DocumentID, offset text.Size) ([]CompletionItem, error) {
	d, err := w.doc(id)
	if err != nil {
		return nil, err
	}
	d.mu.Lock()
	defer d.mu.Unlock()

	if int(offset) > len(d.text) {
		return nil, errors.Wrapf(ErrEditOutOfRange, "offset %d in %d bytes", offset, len(d.text))
	}
	if cst := w.cstFor(d); cst != nil && offset > 0 && cst.InComment(offset-1) {
		return nil, nil
	}

	prefix, qualifier := completionContext(d.text, offset)
	snap := w.schema.Snapshot()

	var items []CompletionItem
	if qualifier != "" {
		if tbl := snap.Table("", qualifier); tbl != nil {
			for _, col := range tbl.Columns {
				if matchesPrefix(col.Name, prefix) {
					items = append(items, CompletionItem{Label: col.Name, Kind: "column", Detail: col.Type})
				}
			}
		}
		sortItems(items)
		return items, nil
	}

	if snap != nil {
		for key, tbl := range snap.Tables {
			if matchesPrefix(key.Name, prefix) {
				items = append(items, CompletionItem{Label: tbl.Name, Kind: "table", Detail: tbl.Schema})
			}
		}
		for _, fn := range snap.Functions {
			if matchesPrefix(fn.Name, prefix) {
				items = append(items, CompletionItem{Label: fn.Name, Kind: "function", Detail: fmt.Sprintf("(%s)", fn.Args)})
			}
		}
	}
	for _, kw := range completionKeywords {
		if matchesPrefix(kw, prefix) {
			items = append(items, CompletionItem{Label: kw, Kind: "keyword"})
		}
	}
	sortItems(items)
	return items, nil
}

// completionContext extracts the identifier prefix ending at offset and
// the qualifier before a dot, e.g. "users.em|" -> ("em", "users").
func completionContext(txt string, offset text.Size) (prefix, qualifier string) {
	i := int(offset)
	start := i
	for start > 0 && isIdentByte(txt[start-1]) {
		start--
	}
	prefix = strings.ToLower(txt[start:i])

	if start > 0 && txt[start-1] == '.' {
		qend := start - 1
		qstart := qend
		for qstart > 0 && isIdentByte(txt[qstart-1]) {
			qstart--
		}
		qualifier = strings.ToLower(txt[qstart:qend])
	}
	return prefix, qualifier
}

func isIdentByte(b byte) bool {
	return b == '_' || b >= '0' && b <= '9' || b >= 'a' && b <= 'z' || b >= 'A' && b <= 'Z'
}

func matchesPrefix(name, prefix string) bool {
	return prefix == "" || strings.HasPrefix(strings.ToLower(name), prefix)
}

func sortItems(items []CompletionItem) {
	sort.Slice(items, func(i, j int) bool {
		if items[i].Kind != items[j].Kind {
			return items[i].Kind < items[j].Kind
		}
		return items[i].Label < items[j].Label
	})
}

// Hover describes the object under the offset as markup, using the
// schema cache. The second result reports whether anything was found.
func (w *Workspace) Hover(id DocumentID, offset text.Size) (string, bool, error) {
	d, err := w.doc(id)
	if err != nil {
		return "", false, err
	}
	d.mu.Lock()
	defer d.mu.Unlock()

	word := wordAt(d.text, offset)
	if word == "" {
		return "", false, nil
	}
	snap := w.schema.Snapshot()
	if snap == nil {
		return "", false, nil
	}

	if tbl := snap.Table("", word); tbl != nil {
		return tableMarkup(tbl), true, nil
	}
	for _, tbl := range snap.Tables {
		if col := tbl.Column(word); col != nil {
			return columnMarkup(tbl, col), true, nil
		}
	}
	return "", false, nil
}

func wordAt(txt string, offset text.Size) string {
	i := int(offset)
	if i > len(txt) {
		return ""
	}
	start, end := i, i
	for start > 0 && isIdentByte(txt[start-1]) {
		start--
	}
	for end < len(txt) && isIdentByte(txt[end]) {
		end++
	}
	return strings.ToLower(txt[start:end])
}

func tableMarkup(tbl *schemacache.Table) string {
	var b strings.Builder
	fmt.Fprintf(&b, "**%s.%s** (table)\n", tbl.Schema, tbl.Name)
	for _, col := range tbl.Columns {
		notNull := ""
		if col.NotNull {
			notNull = " not null"
		}
		fmt.Fprintf(&b, "- %s %s%s\n", col.Name, col.Type, notNull)
	}
	return b.String()
}

func columnMarkup(tbl *schemacache.Table, col *schemacache.Column) string {
	notNull := ""
	if col.NotNull {
		notNull = ", not null"
	}
	return fmt.Sprintf("**%s** %s (column of %s.%s%s)", col.Name, col.Type, tbl.Schema, tbl.Name, notNull)
}
