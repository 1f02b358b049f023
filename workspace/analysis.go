package workspace

import (
	"context"
	"runtime"

	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"

	"github.com/postgrestools/pgtools/analyser"
	"github.com/postgrestools/pgtools/diag"
	"github.com/postgrestools/pgtools/pgparse"
	"github.com/postgrestools/pgtools/schemacache"
	"github.com/postgrestools/pgtools/sqlsplit"
	"github.com/postgrestools/pgtools/suppress"
)

// errOutdated signals that a newer document version arrived while an
// analysis was running; the partial result was discarded.
var errOutdated = errors.New("analysis outdated by a newer version")

// PullDiagnostics returns the document's current diagnostics in stable
// order. It (re)analyzes whatever the caches cannot answer: for any
// sequence of opens and changes the result equals a from-scratch
// analysis of the final text.
func (w *Workspace) PullDiagnostics(id DocumentID) ([]diag.Diagnostic, error) {
	d, err := w.doc(id)
	if err != nil {
		return nil, err
	}

	for {
		diags, err := w.analyze(d)
		if errors.Is(err, errOutdated) {
			continue
		}
		return diags, err
	}
}

type stmtPlan struct {
	stmt sqlsplit.Statement
	prev *stmtAnalysis
}

func (w *Workspace) analyze(d *document) ([]diag.Diagnostic, error) {
	gen := w.gen.Load()
	snap := w.schema.Snapshot()

	d.mu.Lock()
	if d.clean && d.assembledGen == gen.id && d.assembledSnap == snap {
		out := append([]diag.Diagnostic(nil), d.diags...)
		d.mu.Unlock()
		return out, nil
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	d.cancel = cancel

	txt := d.text
	version := d.version
	stmts := d.stmts
	plans := make([]stmtPlan, len(stmts))
	for i, st := range stmts {
		prev := d.analyses[st.Fingerprint]
		if prev != nil {
			// same content, possibly moved by edits elsewhere
			prev.rebase(st.Range.Start)
		}
		plans[i] = stmtPlan{stmt: st, prev: prev}
	}
	d.mu.Unlock()

	results := make([]*stmtAnalysis, len(plans))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(runtime.GOMAXPROCS(0))

	for i, p := range plans {
		if p.prev != nil && p.prev.gen == gen.id && (!p.prev.schemaSensitive || p.prev.snap == snap) {
			results[i] = p.prev
			w.reused.Add(1)
			continue
		}
		i, p := i, p
		g.Go(func() error {
			// cancellation is cooperative at statement boundaries
			if err := gctx.Err(); err != nil {
				return err
			}
			results[i] = w.analyzeStatement(d, txt, p, gen, snap)
			w.analyzed.Add(1)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, errOutdated
	}

	final := w.assemble(d, txt, stmts, results, gen)

	d.mu.Lock()
	defer d.mu.Unlock()
	if d.version != version {
		return nil, errOutdated
	}
	fresh := make(map[sqlsplit.Fingerprint]*stmtAnalysis, len(results))
	for i, sa := range results {
		fresh[stmts[i].Fingerprint] = sa
	}
	d.analyses = fresh
	d.diags = final
	d.clean = true
	d.assembledGen = gen.id
	d.assembledSnap = snap
	d.cancel = nil

	out := append([]diag.Diagnostic(nil), final...)
	return out, nil
}

// analyzeStatement runs parse (or reuses it) and the enabled rules for
// one statement. Diagnostics come back unfiltered; suppressions are
// applied during assembly so comment-only edits never stale the cache.
func (w *Workspace) analyzeStatement(d *document, txt string, p stmtPlan, gen *generation, snap *schemacache.Snapshot) *stmtAnalysis {
	st := p.stmt
	sa := &stmtAnalysis{start: st.Range.Start, gen: gen.id, snap: snap}

	if p.prev != nil {
		// settings or schema changed: the parse is still valid
		sa.parse = p.prev.parse
		sa.parseErr = p.prev.parseErr
	} else {
		sa.parse, sa.parseErr = pgparse.Parse(st.Text(txt), st.Range)
	}

	in := &analyser.StatementInput{
		Doc:      txt,
		File:     string(d.id),
		Range:    st.Range,
		Tokens:   st.Tokens,
		Parse:    sa.parse,
		ParseErr: sa.parseErr,
		Schema:   snap,
		Config:   gen.eff,
	}
	sa.diags = w.analyser.RunStatement(in)

	if sa.parse != nil {
		sa.schemaSensitive = w.analyser.SchemaSensitive(gen.eff, pgparse.KindsIn(sa.parse.Node()))
	}
	return sa
}

// assemble applies suppressions over the cached per-statement
// diagnostics and appends the document-level ones.
func (w *Workspace) assemble(d *document, txt string, stmts []sqlsplit.Statement, results []*stmtAnalysis, gen *generation) []diag.Diagnostic {
	sup := suppress.Build(txt, stmts)

	var final []diag.Diagnostic
	for _, sa := range results {
		for _, dg := range sa.diags {
			if sup.Suppressed(dg.Category, dg.Primary) {
				continue
			}
			final = append(final, dg)
		}
	}
	final = append(final, sup.Unused(string(d.id))...)

	if w.schemaDegraded.Load() && w.analyser.HasSchemaRules(gen.eff) {
		final = append(final, diag.Diagnostic{
			Category: "schema/unavailable",
			Severity: diag.Info,
			Message:  "Database not reachable; schema-dependent rules were skipped.",
			Source:   diag.Source{File: string(d.id)},
		})
	}

	diag.Sort(final)
	return final
}
