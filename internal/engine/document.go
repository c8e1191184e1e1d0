package engine

import (
	"sync"
	"time"

	"github.com/segmentio/ksuid"

	"github.com/dshills/keystorm/internal/engine/cursor"
	"github.com/dshills/keystorm/internal/engine/history"
	"github.com/dshills/keystorm/internal/engine/rope"
	"github.com/dshills/keystorm/internal/engine/transaction"
)

// DocumentID is a process-unique identifier for a Document. It is
// k-sortable so logs that key on DocumentID order naturally by creation
// time, matching the same rationale the broker uses for SessionID.
type DocumentID string

// NewDocumentID allocates a fresh, process-unique DocumentID.
func NewDocumentID() DocumentID {
	return DocumentID(ksuid.New().String())
}

// UndoPolicy controls how a commit's inverse is recorded on the undo
// stack.
type UndoPolicy int

const (
	// NoUndo performs the edit without recording history; any run of
	// merging inserts is ended.
	NoUndo UndoPolicy = iota
	// Record pushes a new undo group containing only this commit's
	// inverse, and clears the redo stack.
	Record
	// MergeWithCurrentGroup accretes into the top undo group while a run
	// of inserts is active, else behaves like Record and starts a new run.
	MergeWithCurrentGroup
	// Boundary closes whatever group is open for merging and pushes a new
	// group containing only this commit's inverse, without starting a new
	// merge run.
	Boundary
)

// SyntaxPolicy controls how a commit affects the document's syntax tree.
type SyntaxPolicy int

const (
	// SyntaxPolicyNone leaves the syntax slot untouched.
	SyntaxPolicyNone SyntaxPolicy = iota
	// MarkDirty marks the syntax tree stale without attempting to update
	// it, so a background parse will eventually refresh it.
	MarkDirty
	// IncrementalOrDirty attempts an incremental edit of a live tree,
	// falling back to MarkDirty if no tree exists or the edit fails.
	IncrementalOrDirty
)

// EditOrigin tags a commit for audit and logging purposes. It carries no
// semantics of its own.
type EditOrigin string

// SyntaxOutcome reports what a commit did to the document's syntax state.
type SyntaxOutcome int

const (
	// SyntaxUnchanged means SyntaxPolicyNone left the slot untouched.
	SyntaxUnchanged SyntaxOutcome = iota
	// SyntaxMarkedDirty means the tree was marked stale (MarkDirty, or
	// IncrementalOrDirty without a usable live tree).
	SyntaxMarkedDirty
	// SyntaxIncrementallyEdited means a live tree accepted the edit
	// in-place.
	SyntaxIncrementallyEdited
)

// SyntaxTree is the narrow surface Document needs from an installed parse
// tree to keep it alive across an edit. The Syntax Manager's installed
// tree type implements this; Document never otherwise touches the tree.
type SyntaxTree interface {
	// Edit projects the tree forward through a single change. It reports
	// whether the incremental update succeeded; on false the caller must
	// treat the tree as stale (MarkDirty semantics).
	Edit(change transaction.Change) bool
}

// LSPDocumentChange is a single pending change queued for the LSP sync
// scheduler to drain on its next flush. The change is in sequential CharIdx
// coordinates (see Transaction.SequentialChanges): its range is valid
// against the document state after every change queued before it.
// internal/lsp converts to wire (line, character) form at flush time.
type LSPDocumentChange struct {
	Change transaction.Change
}

// EditCommit is the sole input to Document.Commit: a transaction plus the
// policies governing undo recording and syntax invalidation.
type EditCommit struct {
	Tx             transaction.Transaction
	Undo           UndoPolicy
	Syntax         SyntaxPolicy
	Origin         EditOrigin
	SelectionAfter *cursor.SelectionSet
}

// CommitResult reports what a commit actually did.
type CommitResult struct {
	Applied       bool
	VersionBefore uint64
	VersionAfter  uint64
	UndoRecorded  bool
	SyntaxOutcome SyntaxOutcome
}

// Document owns a rope, its version history, undo/redo groups, and the
// syntax and LSP bookkeeping derived from edits. It is shared by one or
// more Views (internal/engine's View type); commit and reset_content are
// its only write paths.
type Document struct {
	mu sync.RWMutex

	id         DocumentID
	content    rope.Rope
	version    uint64
	languageID string

	syntax        SyntaxTree
	syntaxDirty   bool
	syntaxVersion uint64

	history *history.Stack

	readonly bool
	modified bool

	pendingLSP []LSPDocumentChange
	lspTracked bool
}

// NewDocument creates a Document over the given initial content.
func NewDocument(content string) *Document {
	return &Document{
		id:      NewDocumentID(),
		content: rope.FromString(content),
		history: history.NewStack(0),
	}
}

// ID returns the document's process-unique identifier.
func (d *Document) ID() DocumentID {
	return d.id
}

// Snapshot returns the current rope and version under a shared lock. The
// returned Rope is immutable and safe to read without further locking.
func (d *Document) Snapshot() (rope.Rope, uint64) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.content, d.version
}

// Version returns the current commit version.
func (d *Document) Version() uint64 {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.version
}

// SyntaxVersion returns the version counter renderers should key highlight
// cache invalidation on; it advances independently of Version (see
// InstallSyntax).
func (d *Document) SyntaxVersion() uint64 {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.syntaxVersion
}

// Readonly reports whether the document currently rejects local edits.
func (d *Document) Readonly() bool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.readonly
}

// SetReadonly sets the document's readonly flag, reflecting file
// permissions on disk.
func (d *Document) SetReadonly(readonly bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.readonly = readonly
}

// Modified reports whether the document has unsaved changes.
func (d *Document) Modified() bool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.modified
}

// ClearModified resets the modified flag, typically after a successful
// save.
func (d *Document) ClearModified() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.modified = false
}

// LanguageID returns the document's configured language, or "" if none.
func (d *Document) LanguageID() string {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.languageID
}

// SetLanguageID sets the document's language.
func (d *Document) SetLanguageID(id string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.languageID = id
}

// CanUndo reports whether an undo group is available.
func (d *Document) CanUndo() bool {
	return d.history.CanUndo()
}

// CanRedo reports whether a redo group is available.
func (d *Document) CanRedo() bool {
	return d.history.CanRedo()
}

// UndoDepth returns the number of undo groups available.
func (d *Document) UndoDepth() int {
	return d.history.UndoCount()
}

// RedoDepth returns the number of redo groups available.
func (d *Document) RedoDepth() int {
	return d.history.RedoCount()
}

// CloseUndoRun ends any active run of merging commits, so the next
// MergeWithCurrentGroup commit opens a fresh undo group.
func (d *Document) CloseUndoRun() {
	d.history.ClearInsertActive()
}

// DiscardUndoGroup drops the most recent undo group without reverting its
// edits or touching the redo stack.
func (d *Document) DiscardUndoGroup() {
	d.history.DiscardTop()
}

// ClearHistory removes all undo/redo groups.
func (d *Document) ClearHistory() {
	d.history.Clear()
}

// SetMaxUndoGroups bounds the undo stack; the oldest groups are dropped
// once the limit is exceeded. Zero or less selects the default of 1000.
func (d *Document) SetMaxUndoGroups(max int) {
	d.history.SetMaxGroups(max)
}

// Commit is the sole write path for edits: readonly check, atomic rope
// apply, exactly one version bump, undo-policy bookkeeping, syntax-policy
// handling, then LSP enqueue, in that order.
func (d *Document) Commit(c EditCommit, forceAllow bool) (CommitResult, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	versionBefore := d.version

	if d.readonly && !forceAllow {
		return CommitResult{Applied: false, VersionBefore: versionBefore, VersionAfter: versionBefore}, nil
	}

	pre := d.content
	post, err := c.Tx.Apply(pre)
	if err != nil {
		return CommitResult{}, err
	}

	inverse, err := c.Tx.Invert(pre)
	if err != nil {
		return CommitResult{}, err
	}

	d.content = post
	d.version++
	d.modified = true

	result := CommitResult{
		Applied:       true,
		VersionBefore: versionBefore,
		VersionAfter:  d.version,
	}

	preSel := cursor.NewPointSelectionSet(0)
	if c.SelectionAfter != nil {
		preSel = *c.SelectionAfter
	}
	entry := history.Entry{
		Forward:         c.Tx,
		Inverse:         inverse,
		SelectionBefore: preSel,
		SelectionAfter:  preSel,
		Timestamp:       time.Now(),
	}

	switch c.Undo {
	case NoUndo:
		d.history.ClearInsertActive()
	case Boundary:
		d.history.PushBoundary(entry)
		result.UndoRecorded = true
	case Record:
		d.history.PushRecord(entry)
		result.UndoRecorded = true
	case MergeWithCurrentGroup:
		merged := d.history.PushOrMergeInsert(entry)
		result.UndoRecorded = !merged
	}

	result.SyntaxOutcome = d.applySyntaxPolicyLocked(c.Syntax, c.Tx)

	if d.lspTracked {
		for _, ch := range c.Tx.SequentialChanges() {
			d.pendingLSP = append(d.pendingLSP, LSPDocumentChange{Change: ch})
		}
	}

	return result, nil
}

// applySyntaxPolicyLocked applies a commit's syntax policy. Callers must
// hold mu.
func (d *Document) applySyntaxPolicyLocked(policy SyntaxPolicy, tx transaction.Transaction) SyntaxOutcome {
	switch policy {
	case SyntaxPolicyNone:
		return SyntaxUnchanged
	case MarkDirty:
		d.syntaxDirty = true
		d.syntaxVersion++
		return SyntaxMarkedDirty
	case IncrementalOrDirty:
		d.syntaxVersion++
		if d.syntax != nil {
			ok := true
			for _, ch := range tx.Changes() {
				if !d.syntax.Edit(ch) {
					ok = false
					break
				}
			}
			if ok {
				d.syntaxDirty = false
				return SyntaxIncrementallyEdited
			}
		}
		d.syntaxDirty = true
		return SyntaxMarkedDirty
	default:
		return SyntaxUnchanged
	}
}

// Undo reverts the most recent undo group and pushes its forward form onto
// redo. It is itself a commit with UndoPolicy=Boundary,
// SyntaxPolicy=IncrementalOrDirty, and always bumps SyntaxVersion.
func (d *Document) Undo() (CommitResult, bool) {
	entries, ok := d.history.PopUndoGroup()
	if !ok {
		return CommitResult{}, false
	}
	return d.applyGroup(entries, true), true
}

// Redo reapplies the most recently undone group and pushes its inverse
// back onto undo.
func (d *Document) Redo() (CommitResult, bool) {
	entries, ok := d.history.PopRedoGroup()
	if !ok {
		return CommitResult{}, false
	}
	return d.applyGroup(entries, false), true
}

// applyGroup applies a group's entries in inverse (undo) or forward (redo)
// order directly against the rope, bypassing Commit's own history
// bookkeeping since PopUndoGroup/PopRedoGroup already moved the group
// between stacks.
func (d *Document) applyGroup(entries []history.Entry, undo bool) CommitResult {
	d.mu.Lock()
	defer d.mu.Unlock()

	versionBefore := d.version
	result := CommitResult{VersionBefore: versionBefore}

	apply := func(tx transaction.Transaction) {
		post, err := tx.Apply(d.content)
		if err != nil {
			return
		}
		d.content = post
		if d.lspTracked {
			for _, ch := range tx.SequentialChanges() {
				d.pendingLSP = append(d.pendingLSP, LSPDocumentChange{Change: ch})
			}
		}
	}

	if undo {
		for i := len(entries) - 1; i >= 0; i-- {
			apply(entries[i].Inverse)
		}
	} else {
		for i := 0; i < len(entries); i++ {
			apply(entries[i].Forward)
		}
	}

	// The whole group is one commit: one version bump.
	d.version++
	d.modified = true
	d.syntaxVersion++
	if d.syntax != nil {
		for _, e := range entries {
			tx := e.Inverse
			if !undo {
				tx = e.Forward
			}
			for _, ch := range tx.Changes() {
				if !d.syntax.Edit(ch) {
					d.syntaxDirty = true
				}
			}
		}
	} else {
		d.syntaxDirty = true
	}

	result.Applied = true
	result.VersionAfter = d.version
	if d.syntaxDirty {
		result.SyntaxOutcome = SyntaxMarkedDirty
	} else {
		result.SyntaxOutcome = SyntaxIncrementallyEdited
	}
	return result
}

// ResetContent replaces the rope wholesale. Unlike Commit, this is not a
// commit: undo/redo history is cleared, syntax is dropped and marked
// dirty, and SyntaxVersion still advances so renderers invalidate cached
// highlights.
func (d *Document) ResetContent(content string) {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.content = rope.FromString(content)
	d.version++
	d.history.Clear()
	d.syntax = nil
	d.syntaxDirty = true
	d.syntaxVersion++
	d.modified = true
}

// InstallSyntax installs a freshly parsed tree into the document's syntax
// slot. This is how the background syntax scheduler hands a completed
// parse back to its owning Document. SyntaxVersion advances here too: the
// counter tracks the installed tree, not the commit that requested it, so
// renderers invalidate even when the install happens between commits.
func (d *Document) InstallSyntax(tree SyntaxTree, atVersion uint64) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if atVersion != d.version {
		return
	}
	d.syntax = tree
	d.syntaxDirty = false
	d.syntaxVersion++
}

// DropSyntax clears the installed tree (e.g. on retention eviction) and
// marks it dirty so the next visible poll reschedules a parse.
func (d *Document) DropSyntax() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.syntax = nil
	d.syntaxDirty = true
}

// SyntaxDirty reports whether the installed tree (if any) is stale.
func (d *Document) SyntaxDirty() bool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.syntaxDirty
}

// HasSyntax reports whether a tree is currently installed.
func (d *Document) HasSyntax() bool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.syntax != nil
}

// TrackLSP enables LSP pending-change queueing on this document. Views
// call this once a buffer is opened at a language server.
func (d *Document) TrackLSP(tracked bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.lspTracked = tracked
	if !tracked {
		d.pendingLSP = nil
	}
}

// DrainPendingLSPChanges removes and returns every queued LSP change, in
// commit order, for the LSP sync scheduler's flush cycle.
func (d *Document) DrainPendingLSPChanges() []LSPDocumentChange {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := d.pendingLSP
	d.pendingLSP = nil
	return out
}
