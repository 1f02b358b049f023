package workspace

import (
	"context"
	"sync"

	"github.com/pkg/errors"

	"github.com/postgrestools/pgtools/diag"
	"github.com/postgrestools/pgtools/pgparse"
	"github.com/postgrestools/pgtools/schemacache"
	"github.com/postgrestools/pgtools/sqlsplit"
	"github.com/postgrestools/pgtools/text"
	"github.com/postgrestools/pgtools/tscst"
)

// Edit replaces a byte range of the document. A nil Range replaces the
// whole text. Ranges refer to the document state produced by the
// preceding edit of the same change.
type Edit struct {
	Range *text.Range
	Text  string
}

// stmtAnalysis is the memoized per-statement pipeline output, keyed by
// the statement's fingerprint. Diagnostics are stored pre-suppression
// so that comment-only edits around a statement stay correct.
type stmtAnalysis struct {
	start text.Size // statement start when last positioned

	parse    *pgparse.Statement
	parseErr *pgparse.ParseError

	diags           []diag.Diagnostic
	gen             uint64
	snap            *schemacache.Snapshot
	schemaSensitive bool
}

// rebase shifts cached results when the same statement moved inside the
// document.
func (sa *stmtAnalysis) rebase(newStart text.Size) {
	delta := newStart - sa.start
	if delta == 0 {
		return
	}
	if sa.parse != nil {
		if n := sa.parse.Node(); n != nil {
			pgparse.ShiftLocations(n.ProtoReflect(), int32(delta))
		}
		sa.parse.Range = sa.parse.Range.Shift(delta)
	}
	if sa.parseErr != nil {
		sa.parseErr.Cursor = sa.parseErr.Cursor.Shift(delta)
	}
	for i := range sa.diags {
		sa.diags[i] = sa.diags[i].Shift(delta)
	}
	sa.start = newStart
}

type document struct {
	mu sync.Mutex

	id      DocumentID
	text    string
	version int32
	index   *text.LineIndex

	stmts    []sqlsplit.Statement
	analyses map[sqlsplit.Fingerprint]*stmtAnalysis

	// assembled diagnostics and the epoch they are valid for
	diags         []diag.Diagnostic
	clean         bool
	assembledGen  uint64
	assembledSnap *schemacache.Snapshot

	// tolerant CST for completion/hover, built lazily
	cst *tscst.Tree

	// cancels the in-flight analysis when a newer version arrives
	cancel context.CancelFunc
}

func (d *document) setText(txt string, version int32) {
	d.text = txt
	d.version = version
	d.index = text.NewLineIndex(txt)
	d.stmts = sqlsplit.Split(txt)
	d.clean = false
	if d.cst != nil {
		d.cst.Close()
		d.cst = nil
	}
	if d.cancel != nil {
		d.cancel()
		d.cancel = nil
	}
}

// OpenDocument registers a document and makes it analyzable. Opening an
// already open id replaces its content.
func (w *Workspace) OpenDocument(id DocumentID, content string, version int32) {
	w.mu.Lock()
	defer w.mu.Unlock()

	d, ok := w.docs[id]
	if !ok {
		d = &document{id: id, analyses: make(map[sqlsplit.Fingerprint]*stmtAnalysis)}
		w.docs[id] = d
	}
	d.mu.Lock()
	d.setText(content, version)
	d.mu.Unlock()

	w.logger.WithFields(map[string]interface{}{
		"doc":     id,
		"version": version,
		"stmts":   len(d.stmts),
	}).Debug("document opened")
}

// ChangeDocument applies edits in order and advances the version.
// Versions must be strictly increasing per document; an in-flight
// analysis for an older version is canceled.
func (w *Workspace) ChangeDocument(id DocumentID, version int32, edits []Edit) error {
	d, err := w.doc(id)
	if err != nil {
		return err
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	if version <= d.version {
		return errors.Wrapf(ErrStaleVersion, "document %s at %d, change has %d", id, d.version, version)
	}

	txt := d.text
	for _, e := range edits {
		if e.Range == nil {
			txt = e.Text
			continue
		}
		if int(e.Range.End) > len(txt) {
			return errors.Wrapf(ErrEditOutOfRange, "%s in %d bytes", e.Range, len(txt))
		}
		txt = txt[:e.Range.Start] + e.Text + txt[e.Range.End:]
	}
	d.setText(txt, version)
	return nil
}

// CloseDocument evicts the document and all its caches.
func (w *Workspace) CloseDocument(id DocumentID) {
	w.mu.Lock()
	d, ok := w.docs[id]
	delete(w.docs, id)
	w.mu.Unlock()
	if !ok {
		return
	}

	d.mu.Lock()
	if d.cancel != nil {
		d.cancel()
	}
	if d.cst != nil {
		d.cst.Close()
		d.cst = nil
	}
	d.mu.Unlock()
}

// Text returns the document's current content and version.
func (w *Workspace) Text(id DocumentID) (string, int32, error) {
	d, err := w.doc(id)
	if err != nil {
		return "", 0, err
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.text, d.version, nil
}
