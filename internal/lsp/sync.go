package lsp

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/dshills/keystorm/internal/engine"
	"github.com/dshills/keystorm/internal/engine/rope"
)

// ErrSendFailed indicates the transport rejected a didOpen/didChange
// notification. The flush cycle is aborted and the drained change list is
// preserved for the next cycle.
var ErrSendFailed = errors.New("lsp: notification send failed")

// changeSink is the slice of Server the sync scheduler needs: the three
// document lifecycle notifications. *Server satisfies it.
type changeSink interface {
	OpenDocument(ctx context.Context, path, languageID, content string) error
	ChangeDocument(ctx context.Context, path string, changes []TextDocumentContentChangeEvent) error
	CloseDocument(ctx context.Context, path string) error
}

// ManagerSink adapts a *Manager to the scheduler's sink interface so one
// DocumentSync can serve every language: the manager routes each path to
// its language's server and ignores files no server claims.
type ManagerSink struct {
	manager *Manager
}

// NewManagerSink wraps mgr as a DocumentSync sink.
func NewManagerSink(mgr *Manager) *ManagerSink {
	return &ManagerSink{manager: mgr}
}

// OpenDocument forwards didOpen; the manager detects the language itself.
func (s *ManagerSink) OpenDocument(ctx context.Context, path, _ string, content string) error {
	return s.manager.OpenDocument(ctx, path, content)
}

// ChangeDocument forwards didChange.
func (s *ManagerSink) ChangeDocument(ctx context.Context, path string, changes []TextDocumentContentChangeEvent) error {
	return s.manager.ChangeDocument(ctx, path, changes)
}

// CloseDocument forwards didClose.
func (s *ManagerSink) CloseDocument(ctx context.Context, path string) error {
	return s.manager.CloseDocument(ctx, path)
}

// DocumentSync drains each tracked document's pending edit queue on a
// flush tick, coalesces the changes, and ships them to the language server
// in the server's declared sync mode and offset encoding.
//
// Ordering guarantees: didOpen strictly precedes the first didChange for a
// URI, and didClose is emitted only after the queue has drained. Flushes
// for one document are serialized by the scheduler's lock; changes are
// shipped in commit order.
type DocumentSync struct {
	mu   sync.Mutex
	sink changeSink
	docs map[string]*syncedDocument
}

// syncedDocument is the per-document sync state: the engine document whose
// queue we drain, the shadow rope mirroring what the server has applied,
// and changes carried over from an aborted flush.
type syncedDocument struct {
	doc        *engine.Document
	path       string
	languageID string

	opened   bool
	syncKind TextDocumentSyncKind
	encoding OffsetEncoding

	// shadow is the content as of the last successful notification: the
	// didOpen snapshot advanced by every change batch acknowledged since.
	shadow rope.Rope

	// retry holds changes drained from the document but not yet delivered,
	// preserved when a flush aborts.
	retry []engine.LSPDocumentChange
}

// NewDocumentSync creates a scheduler shipping to sink.
func NewDocumentSync(sink changeSink) *DocumentSync {
	return &DocumentSync{
		sink: sink,
		docs: make(map[string]*syncedDocument),
	}
}

// Track registers doc for synchronization and enables its pending-change
// queue. The didOpen snapshot is captured here; edits committed after
// Track are shipped as the first change batch.
func (ds *DocumentSync) Track(path, languageID string, doc *engine.Document, kind TextDocumentSyncKind, enc OffsetEncoding) error {
	ds.mu.Lock()
	defer ds.mu.Unlock()

	if _, exists := ds.docs[path]; exists {
		return ErrDocumentAlreadyOpen
	}

	content, _ := doc.Snapshot()
	ds.docs[path] = &syncedDocument{
		doc:        doc,
		path:       path,
		languageID: languageID,
		syncKind:   kind,
		encoding:   enc,
		shadow:     content,
	}
	doc.TrackLSP(true)
	return nil
}

// IsTracked reports whether path is registered with the scheduler.
func (ds *DocumentSync) IsTracked(path string) bool {
	ds.mu.Lock()
	defer ds.mu.Unlock()
	_, ok := ds.docs[path]
	return ok
}

// Flush drains path's pending changes and ships them. On conversion or
// send failure the drained changes are preserved and retried on the next
// flush; the server never sees a partial payload.
func (ds *DocumentSync) Flush(ctx context.Context, path string) error {
	ds.mu.Lock()
	defer ds.mu.Unlock()

	sd, ok := ds.docs[path]
	if !ok {
		return ErrDocumentNotOpen
	}
	return ds.flushLocked(ctx, sd)
}

// FlushAll flushes every tracked document, returning the first error
// encountered while still attempting the rest.
func (ds *DocumentSync) FlushAll(ctx context.Context) error {
	ds.mu.Lock()
	defer ds.mu.Unlock()

	var firstErr error
	for _, sd := range ds.docs {
		if err := ds.flushLocked(ctx, sd); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

func (ds *DocumentSync) flushLocked(ctx context.Context, sd *syncedDocument) error {
	pending := sd.retry
	sd.retry = nil
	pending = append(pending, sd.doc.DrainPendingLSPChanges()...)

	if !sd.opened {
		if err := ds.sink.OpenDocument(ctx, sd.path, sd.languageID, sd.shadow.String()); err != nil {
			sd.retry = pending
			return fmt.Errorf("%w: didOpen %s: %v", ErrSendFailed, sd.path, err)
		}
		sd.opened = true
	}

	if len(pending) == 0 {
		return nil
	}

	canonical, newShadow, err := canonicalizeChanges(sd.shadow, pending)
	if err != nil {
		sd.retry = pending
		return err
	}
	coalesced := CoalesceChanges(canonical)

	var events []TextDocumentContentChangeEvent
	switch sd.syncKind {
	case TextDocumentSyncKindFull:
		events = []TextDocumentContentChangeEvent{{Text: newShadow.String()}}
	case TextDocumentSyncKindIncremental:
		events, _, err = encodeChanges(sd.shadow, coalesced, sd.encoding)
		if err != nil {
			sd.retry = pending
			return err
		}
	default:
		// TextDocumentSyncKindNone: the server wants no change traffic;
		// advance the shadow so a later mode switch resyncs from here.
		sd.shadow = newShadow
		return nil
	}

	if err := ds.sink.ChangeDocument(ctx, sd.path, events); err != nil {
		sd.retry = pending
		return fmt.Errorf("%w: didChange %s: %v", ErrSendFailed, sd.path, err)
	}
	sd.shadow = newShadow
	return nil
}

// Untrack drains and flushes any remaining changes, then emits didClose
// and disables the document's pending queue. The close is sent even if the
// final flush fails; the undelivered tail is dropped with the tracking
// state.
func (ds *DocumentSync) Untrack(ctx context.Context, path string) error {
	ds.mu.Lock()
	defer ds.mu.Unlock()

	sd, ok := ds.docs[path]
	if !ok {
		return ErrDocumentNotOpen
	}

	flushErr := ds.flushLocked(ctx, sd)

	var closeErr error
	if sd.opened {
		closeErr = ds.sink.CloseDocument(ctx, sd.path)
	}

	sd.doc.TrackLSP(false)
	delete(ds.docs, path)

	if flushErr != nil {
		return flushErr
	}
	return closeErr
}

// Resync recovers from a client/server divergence by re-opening the
// document: didClose, then a fresh didOpen carrying the document's current
// content. Queued changes older than the new snapshot are discarded.
func (ds *DocumentSync) Resync(ctx context.Context, path string) error {
	ds.mu.Lock()
	defer ds.mu.Unlock()

	sd, ok := ds.docs[path]
	if !ok {
		return ErrDocumentNotOpen
	}

	if sd.opened {
		if err := ds.sink.CloseDocument(ctx, sd.path); err != nil {
			return fmt.Errorf("%w: didClose %s: %v", ErrSendFailed, sd.path, err)
		}
		sd.opened = false
	}

	content, _ := sd.doc.Snapshot()
	sd.shadow = content
	sd.retry = nil
	sd.doc.DrainPendingLSPChanges()

	if err := ds.sink.OpenDocument(ctx, sd.path, sd.languageID, content.String()); err != nil {
		return fmt.Errorf("%w: didOpen %s: %v", ErrSendFailed, sd.path, err)
	}
	sd.opened = true
	return nil
}

// canonicalizeChanges converts drained sequential CharIdx changes to
// canonical (line, char-column) DocumentChanges, walking the shadow rope
// forward so every range is resolved against the state the server will be
// in when it applies that change. Returns the canonical list and the final
// shadow.
func canonicalizeChanges(base rope.Rope, pending []engine.LSPDocumentChange) ([]DocumentChange, rope.Rope, error) {
	shadow := base
	out := make([]DocumentChange, 0, len(pending))
	for _, p := range pending {
		c := p.Change
		if c.End > shadow.LenChars() || c.Start > c.End {
			return nil, rope.Rope{}, fmt.Errorf("%w: change [%d,%d) against len %d", ErrRangeConversionFailed, c.Start, c.End, shadow.LenChars())
		}
		start := charToCanonicalPos(shadow, c.Start)
		end := charToCanonicalPos(shadow, c.End)
		out = append(out, DocumentChange{Range: Range{Start: start, End: end}, NewText: c.Text()})

		startByte := shadow.CharToByte(c.Start)
		endByte := shadow.CharToByte(c.End)
		shadow = shadow.Replace(startByte, endByte, c.Text())
	}
	return out, shadow, nil
}

// charToCanonicalPos converts a CharIdx into a canonical zero-based
// (line, char-column) position using the rope's line table.
func charToCanonicalPos(content rope.Rope, c rope.CharOffset) Position {
	line := content.CharToLine(c)
	return Position{Line: int(line), Character: int(c - content.LineToChar(line))}
}
