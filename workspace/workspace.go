// Package workspace is the operation façade the CLI and the language
// server drive. It owns the open documents, memoizes split/parse/lint
// results per statement fingerprint, and guarantees that incremental
// analysis is indistinguishable from analyzing the final text from
// scratch.
package workspace

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/postgrestools/pgtools/analyser"
	"github.com/postgrestools/pgtools/analyser/safety"
	"github.com/postgrestools/pgtools/config"
	"github.com/postgrestools/pgtools/diag"
	"github.com/postgrestools/pgtools/schemacache"
)

// DocumentID identifies a document: a file path or a virtual URI.
type DocumentID string

var (
	ErrUnknownDocument = errors.New("unknown document")
	ErrStaleVersion    = errors.New("document version is not newer than the current one")
	ErrEditOutOfRange  = errors.New("edit range outside document")
)

// generation is one immutable configuration epoch. Settings updates
// publish a new generation; analyses stamp their results with the
// generation id they ran under.
type generation struct {
	id       uint64
	cfg      *config.Config
	eff      *analyser.EffectiveConfig
	cfgDiags []diag.Diagnostic
	cfgFile  string
}

// Stats counts statement-level cache behavior. Tests use it to observe
// that an edit only reanalyzes the statements it touched.
type Stats struct {
	StatementsAnalyzed int64
	StatementsReused   int64
}

// Workspace is safe for concurrent use. The document store is
// single-writer per document with many readers between writes.
type Workspace struct {
	logger logrus.FieldLogger

	analyser *analyser.Analyser
	schema   *schemacache.Cache

	gen    atomic.Pointer[generation]
	genSeq atomic.Uint64

	mu   sync.RWMutex
	docs map[DocumentID]*document

	schemaDegraded atomic.Bool

	analyzed atomic.Int64
	reused   atomic.Int64
}

// Option configures a Workspace.
type Option func(*Workspace)

// WithLogger sets the logger; the default is logrus.StandardLogger().
func WithLogger(l logrus.FieldLogger) Option {
	return func(w *Workspace) { w.logger = l }
}

// WithRegistry replaces the default rule registry.
func WithRegistry(reg *analyser.Registry) Option {
	return func(w *Workspace) { w.analyser = analyser.New(reg, w.logger) }
}

// New creates a workspace with the default rule set (the safety group)
// under the given configuration. If a database connection is configured
// the schema cache is loaded on first RefreshSchemaCache call, not here;
// construction never blocks on I/O.
func New(cfg *config.Config, opts ...Option) *Workspace {
	w := &Workspace{
		logger: logrus.StandardLogger(),
		docs:   make(map[DocumentID]*document),
	}
	for _, o := range opts {
		o(w)
	}
	if w.analyser == nil {
		reg := analyser.NewRegistry()
		safety.Register(reg)
		w.analyser = analyser.New(reg, w.logger)
	}
	w.schema = schemacache.New(w.logger)
	w.publishGeneration(cfg)
	return w
}

func (w *Workspace) publishGeneration(cfg *config.Config) {
	cfgFile := config.DefaultFileName
	eff, cfgDiags := analyser.Materialize(cfg, w.analyser.Registry(), cfgFile)
	w.gen.Store(&generation{
		id:       w.genSeq.Add(1),
		cfg:      cfg,
		eff:      eff,
		cfgDiags: cfgDiags,
		cfgFile:  cfgFile,
	})
}

// UpdateSettings rebuilds the effective configuration. Cached parses
// survive; every document's diagnostics are recomputed on next pull.
func (w *Workspace) UpdateSettings(cfg *config.Config) {
	w.publishGeneration(cfg)
	w.logger.WithField("generation", w.gen.Load().id).Debug("settings updated")
}

// ConfigDiagnostics returns the diagnostics produced while resolving
// the current configuration (unknown rules, invalid severities).
func (w *Workspace) ConfigDiagnostics() []diag.Diagnostic {
	gen := w.gen.Load()
	out := make([]diag.Diagnostic, len(gen.cfgDiags))
	copy(out, gen.cfgDiags)
	return out
}

// RefreshSchemaCache rebuilds the catalog snapshot. Diagnostics of
// schema-dependent rules are recomputed on next pull. A configured but
// unreachable database flips the workspace into degraded mode.
func (w *Workspace) RefreshSchemaCache(ctx context.Context) error {
	gen := w.gen.Load()
	err := w.schema.Refresh(ctx, gen.cfg)
	switch {
	case err == nil:
		w.schemaDegraded.Store(false)
		return nil
	case errors.Is(err, schemacache.ErrNoDatabase):
		w.schemaDegraded.Store(false)
		return err
	default:
		w.schemaDegraded.Store(true)
		w.logger.WithError(err).Warn("schema cache refresh failed; schema-dependent rules degrade")
		return err
	}
}

// SchemaCache exposes the catalog cache, e.g. so a host can install a
// snapshot it loaded elsewhere.
func (w *Workspace) SchemaCache() *schemacache.Cache {
	return w.schema
}

// Stats returns the statement cache counters.
func (w *Workspace) Stats() Stats {
	return Stats{
		StatementsAnalyzed: w.analyzed.Load(),
		StatementsReused:   w.reused.Load(),
	}
}

func (w *Workspace) doc(id DocumentID) (*document, error) {
	w.mu.RLock()
	defer w.mu.RUnlock()
	d, ok := w.docs[id]
	if !ok {
		return nil, errors.Wrapf(ErrUnknownDocument, "%s", id)
	}
	return d, nil
}
