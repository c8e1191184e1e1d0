package syntax

import (
	"context"
	"sync"
	"time"

	"github.com/dshills/keystorm/internal/engine"
)

// defaultMaxConcurrency bounds the number of parse tasks (of any class,
// across all documents) running at once.
const defaultMaxConcurrency = 2

// ManagerCfg configures a Manager at construction.
type ManagerCfg struct {
	MaxConcurrency int
}

// Manager is the background syntax scheduler: per-document tiers, lanes,
// debounce, cooldown, retention, and Stage-A/Stage-B viewport gating,
// all behind a single global concurrency cap.
// parseFunc is the signature both ParseFull and ParseWindow reduce to; the
// manager routes every background parse through one so tests can
// substitute a deterministic parser.
type parseFunc func(ctx context.Context, loader *LanguageLoader, lang LanguageID, content []byte, windowBase *uint32, opts Options, timeout time.Duration) (*Syntax, error)

type Manager struct {
	mu     sync.Mutex
	policy TieredSyntaxPolicy
	sem    chan struct{}
	docs   map[engine.DocumentID]*docEntry
	parse  parseFunc
}

// NewManager constructs a Manager with the given concurrency cap (at
// least 1) and the default tiered policy.
func NewManager(cfg ManagerCfg) *Manager {
	n := cfg.MaxConcurrency
	if n < 1 {
		n = defaultMaxConcurrency
	}
	return &Manager{
		policy: DefaultTieredSyntaxPolicy(),
		sem:    make(chan struct{}, n),
		docs:   make(map[engine.DocumentID]*docEntry),
		parse:  defaultParse,
	}
}

func defaultParse(ctx context.Context, loader *LanguageLoader, lang LanguageID, content []byte, windowBase *uint32, opts Options, timeout time.Duration) (*Syntax, error) {
	if windowBase != nil {
		return ParseWindow(ctx, loader, lang, content, *windowBase, opts, timeout)
	}
	return ParseFull(ctx, loader, lang, content, opts, timeout)
}

// SetPolicy replaces the tiered policy wholesale, e.g. from configuration.
func (m *Manager) SetPolicy(p TieredSyntaxPolicy) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.policy = p
}

func (m *Manager) entry(docID engine.DocumentID, now time.Time) *docEntry {
	e, ok := m.docs[docID]
	if !ok {
		e = newDocEntry(now)
		m.docs[docID] = e
	}
	return e
}

// NoteEdit records that a document was just edited, restarting its
// debounce clock. It never aborts an in-flight task: lanes are
// single-flight, so the outstanding parse is left to finish and its
// install decision is what discards it if it turns out stale.
func (m *Manager) NoteEdit(docID engine.DocumentID) {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := time.Now()
	m.entry(docID, now).lastEditAt = now
}

// OnDocumentClose aborts any in-flight parse tasks for docID and drops
// all tracking state for it.
func (m *Manager) OnDocumentClose(docID engine.DocumentID) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.docs[docID]
	if !ok {
		return
	}
	abortLane(&e.lanes.bg)
	abortLane(&e.lanes.viewportUrgent)
	abortLane(&e.lanes.viewportEnrich)
	delete(m.docs, docID)
}

// OnLanguageChange aborts in-flight work and drops every installed tree
// for docID, so the next poll starts fresh under the new language.
func (m *Manager) OnLanguageChange(docID engine.DocumentID) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.docs[docID]
	if !ok {
		return
	}
	abortLane(&e.lanes.bg)
	abortLane(&e.lanes.viewportUrgent)
	abortLane(&e.lanes.viewportEnrich)
	e.sl.dropTree()
	e.sl.languageID = nil
	e.sl.lastOptsKey = nil
	e.sl.dirty = true
}

func abortLane(l *laneState) {
	if l.inflight != nil && l.inflight.cancel != nil {
		l.inflight.cancel()
	}
	l.inflight = nil
}

// HasPendingFull reports whether a full-document parse is in flight.
func (m *Manager) HasPendingFull(docID engine.DocumentID) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.docs[docID]
	return ok && e.lanes.bg.inflight != nil
}

// HasInflightViewportEnrich reports whether a Stage-B parse is in flight;
// exported chiefly for tests exercising the stability gate.
func (m *Manager) HasInflightViewportEnrich(docID engine.DocumentID) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.docs[docID]
	return ok && e.lanes.viewportEnrich.inflight != nil
}

// PendingCount returns the number of documents with at least one in-flight
// task, across all lanes.
func (m *Manager) PendingCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, e := range m.docs {
		if e.lanes.bg.inflight != nil || e.lanes.viewportUrgent.inflight != nil || e.lanes.viewportEnrich.inflight != nil {
			n++
		}
	}
	return n
}

// SnapshotRef identifies one installed tree available to a rendering
// consumer: the tree itself, and a TreeID that changes whenever a
// different physical tree backs the same coverage, so renderers can
// detect when their highlight cache must be invalidated even if
// doc_version did not change (a stale tree served via projection).
type SnapshotRef struct {
	Syntax     *Syntax
	TreeID     uint64
	DocVersion uint64
}

// SyntaxForViewport serves the best available tree covering byteRange:
// the full tree if its doc_version matches, else the best covering
// Stage-B entry, else the best covering Stage-A entry, breaking ties by
// MRU.
func (m *Manager) SyntaxForViewport(docID engine.DocumentID, docVersion uint64, byteRange ByteRange) (SnapshotRef, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.docs[docID]
	if !ok {
		return SnapshotRef{}, false
	}
	if e.sl.full != nil && e.sl.full.DocVersion == docVersion {
		return SnapshotRef{Syntax: e.sl.full.Syntax, TreeID: e.sl.full.TreeID, DocVersion: e.sl.full.DocVersion}, true
	}
	if vt := e.sl.viewportCache.SelectForViewport(byteRange); vt != nil {
		return SnapshotRef{Syntax: vt.Syntax, TreeID: vt.TreeID, DocVersion: vt.DocVersion}, true
	}
	return SnapshotRef{}, false
}

// spawnTask starts background work for content behind the semaphore,
// reporting its result on a buffered channel once done. acquired is false
// (and no goroutine is started) when the concurrency cap refuses the
// request.
func (m *Manager) spawnTask(loader *LanguageLoader, lang LanguageID, content []byte, windowBase *uint32, opts Options, timeout time.Duration, onDone func(*Syntax, error, time.Duration)) (cancel func(), acquired bool) {
	select {
	case m.sem <- struct{}{}:
	default:
		return nil, false
	}

	ctx, cancelFn := context.WithCancel(context.Background())
	parse := m.parse
	go func() {
		defer func() { <-m.sem }()
		start := time.Now()
		syn, err := parse(ctx, loader, lang, content, windowBase, opts, timeout)
		onDone(syn, err, time.Since(start))
	}()
	return cancelFn, true
}
