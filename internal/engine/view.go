package engine

import (
	"errors"

	"github.com/segmentio/ksuid"

	"github.com/dshills/keystorm/internal/engine/cursor"
	"github.com/dshills/keystorm/internal/engine/rope"
	"github.com/dshills/keystorm/internal/engine/transaction"
)

// BufferID is a process-unique identifier for a View.
type BufferID string

// NewBufferID allocates a fresh, process-unique BufferID.
func NewBufferID() BufferID {
	return BufferID(ksuid.New().String())
}

// ErrReadonlyDocument is returned by View.Apply when the commit is refused
// because the document (or the view's own override) denies local edits.
// It is informational only: callers should prefer inspecting
// CommitResult.Applied, which is false in the same situation without an
// error.
var ErrReadonlyDocument = errors.New("engine: document is readonly")

// ApplyPolicy bundles the UndoPolicy/SyntaxPolicy pair a caller wants for
// a commit. The three presets below cover every call site in the
// dispatch/action surface; bespoke policies remain valid for callers with
// unusual needs (e.g. a syntax-aware paste that still wants NoUndo).
type ApplyPolicy struct {
	Undo   UndoPolicy
	Syntax SyntaxPolicy
}

var (
	// BARE performs the edit with no undo recording and no syntax
	// invalidation. Used for non-edit paths such as IME commits applied
	// straight through to terminal input.
	BARE = ApplyPolicy{Undo: NoUndo, Syntax: SyntaxPolicyNone}
	// EDIT is the default policy for discrete editing commands: each
	// commit is its own undo group and marks/edits syntax.
	EDIT = ApplyPolicy{Undo: Record, Syntax: IncrementalOrDirty}
	// INSERT is for insert-mode typing: consecutive commits accrete into
	// one undo group until a Boundary or mode change ends the run.
	INSERT = ApplyPolicy{Undo: MergeWithCurrentGroup, Syntax: IncrementalOrDirty}
)

// View is a view-bound overlay over a Document: selection, cursor, scroll
// position, and view-local option overrides. Multiple Views may share one
// Document; a View holds only a non-owning reference to it.
type View struct {
	id  BufferID
	doc *Document

	selection cursor.SelectionSet

	scrollLine    uint32
	scrollSegment uint32

	// readonlyOverride is nil to inherit from the Document, a pointer to
	// true to deny all local edits regardless of the Document's own
	// Readonly flag, or a pointer to false to force-allow local edits even
	// against a readonly Document.
	readonlyOverride *bool

	localOptions map[string]any
}

// NewView creates a View over doc with the cursor and selection collapsed
// to the start of the document.
func NewView(doc *Document) *View {
	return &View{
		id:           NewBufferID(),
		doc:          doc,
		selection:    cursor.NewPointSelectionSet(0),
		localOptions: make(map[string]any),
	}
}

// Split creates a new View over the same Document, copying selection and
// scroll state but never the readonly override: a split starts out
// inheriting the Document's own flag.
func (v *View) Split() *View {
	return &View{
		id:            NewBufferID(),
		doc:           v.doc,
		selection:     v.selection,
		scrollLine:    v.scrollLine,
		scrollSegment: v.scrollSegment,
		localOptions:  make(map[string]any),
	}
}

// ID returns the view's process-unique identifier.
func (v *View) ID() BufferID { return v.id }

// Document returns the view's underlying document.
func (v *View) Document() *Document { return v.doc }

// Selection returns the view's current selection.
func (v *View) Selection() cursor.SelectionSet { return v.selection }

// SetSelection replaces the view's selection outright (e.g. after a
// motion action).
func (v *View) SetSelection(sel cursor.SelectionSet) { v.selection = sel }

// Cursor returns the primary range's head, the editor's reported cursor
// position, synced from the selection after every edit.
func (v *View) Cursor() rope.CharOffset { return v.selection.Cursor() }

// Scroll returns the view's scroll position: the top visible line and the
// visual wrap segment within it.
func (v *View) Scroll() (line, segment uint32) { return v.scrollLine, v.scrollSegment }

// SetScroll sets the view's scroll position.
func (v *View) SetScroll(line, segment uint32) {
	v.scrollLine = line
	v.scrollSegment = segment
}

// ReadonlyOverride returns the view's local override, and whether one is
// set at all (nil means "inherit from Document").
func (v *View) ReadonlyOverride() (value bool, ok bool) {
	if v.readonlyOverride == nil {
		return false, false
	}
	return *v.readonlyOverride, true
}

// SetReadonlyOverride sets the view's local override.
func (v *View) SetReadonlyOverride(value bool) {
	v.readonlyOverride = &value
}

// ClearReadonlyOverride reverts to inheriting the Document's Readonly flag.
func (v *View) ClearReadonlyOverride() {
	v.readonlyOverride = nil
}

// LocalOption returns a per-view option override (e.g. tab-width,
// cursorline), and whether one is set.
func (v *View) LocalOption(key string) (any, bool) {
	val, ok := v.localOptions[key]
	return val, ok
}

// SetLocalOption sets a per-view option override.
func (v *View) SetLocalOption(key string, value any) {
	v.localOptions[key] = value
}

// effectiveForceAllow resolves the view's override against the document's
// own Readonly flag into the forceAllow argument Document.Commit expects.
func (v *View) effectiveForceAllow() bool {
	if v.readonlyOverride == nil {
		return false
	}
	return !*v.readonlyOverride
}

// effectiveReadonly reports whether a local (non-remote) edit through this
// view would currently be rejected, without touching document state.
func (v *View) effectiveReadonly() bool {
	if v.readonlyOverride != nil {
		return *v.readonlyOverride
	}
	return v.doc.Readonly()
}

// Apply is the unified commit entry point for local edits: it resolves the
// view's readonly override against the document, then delegates to
// Document.Commit. Capability to perform an incremental syntax edit is a
// property of the installed SyntaxTree itself (see SyntaxTree.Edit), not a
// separate loader argument threaded through every call site.
func (v *View) Apply(tx transaction.Transaction, policy ApplyPolicy) (CommitResult, error) {
	if v.effectiveReadonly() {
		return CommitResult{Applied: false}, nil
	}
	result, err := v.doc.Commit(EditCommit{Tx: tx, Undo: policy.Undo, Syntax: policy.Syntax}, v.effectiveForceAllow())
	if err != nil {
		return result, err
	}
	if result.Applied {
		v.selection = tx.MapSelection(v.selection)
	}
	return result, nil
}

// ApplyRemote is like Apply but bypasses the view's own readonly override
// entirely: it is used to land deltas from a broker sync doc's owner onto
// a follower view whose local override is set to readonly, since the
// remote owner (not this view) is the edit's true author.
func (v *View) ApplyRemote(tx transaction.Transaction, policy ApplyPolicy) (CommitResult, error) {
	result, err := v.doc.Commit(EditCommit{Tx: tx, Undo: policy.Undo, Syntax: policy.Syntax}, true)
	if err != nil {
		return result, err
	}
	if result.Applied {
		v.selection = tx.MapSelection(v.selection)
	}
	return result, nil
}

// PrepareInsert builds the transaction and post-selection for inserting s
// at every range in the view's current selection, collapsed to each
// range's insertion point (its Min), in ascending order.
func (v *View) PrepareInsert(s string) (transaction.Transaction, cursor.SelectionSet, error) {
	ranges := v.selection.All()
	changes := make([]transaction.Change, len(ranges))
	for i, r := range ranges {
		changes[i] = transaction.NewChange(r.Min(), r.Min(), s)
	}
	tx, err := transaction.New(changes)
	if err != nil {
		return transaction.Transaction{}, cursor.SelectionSet{}, err
	}
	return tx, tx.MapSelection(v.selection), nil
}

// PrepareDeleteSelection builds the transaction deleting every non-empty
// range of the view's selection.
func (v *View) PrepareDeleteSelection() (transaction.Transaction, cursor.SelectionSet, error) {
	var changes []transaction.Change
	for _, r := range v.selection.All() {
		if r.IsEmpty() {
			continue
		}
		changes = append(changes, transaction.NewDeletion(r.Min(), r.Max()))
	}
	tx, err := transaction.New(changes)
	if err != nil {
		return transaction.Transaction{}, cursor.SelectionSet{}, err
	}
	return tx, tx.MapSelection(v.selection), nil
}

// PreparePasteAfter builds the transaction inserting text immediately
// after each range's Max (linewise/charwise distinction is the caller's
// concern; this positions at the character boundary).
func (v *View) PreparePasteAfter(text string) (transaction.Transaction, cursor.SelectionSet, error) {
	ranges := v.selection.All()
	changes := make([]transaction.Change, len(ranges))
	for i, r := range ranges {
		at := r.Max()
		if !r.IsEmpty() {
			at++
		}
		changes[i] = transaction.NewChange(at, at, text)
	}
	tx, err := transaction.New(changes)
	if err != nil {
		return transaction.Transaction{}, cursor.SelectionSet{}, err
	}
	return tx, tx.MapSelection(v.selection), nil
}

// PreparePasteBefore builds the transaction inserting text immediately
// before each range's Min.
func (v *View) PreparePasteBefore(text string) (transaction.Transaction, cursor.SelectionSet, error) {
	ranges := v.selection.All()
	changes := make([]transaction.Change, len(ranges))
	for i, r := range ranges {
		changes[i] = transaction.NewChange(r.Min(), r.Min(), text)
	}
	tx, err := transaction.New(changes)
	if err != nil {
		return transaction.Transaction{}, cursor.SelectionSet{}, err
	}
	return tx, tx.MapSelection(v.selection), nil
}

// InsertText is the one-phase BARE-policy helper: prepares and applies an
// insert in one step, with no undo recording and no syntax invalidation.
func (v *View) InsertText(s string) (CommitResult, error) {
	tx, _, err := v.PrepareInsert(s)
	if err != nil {
		return CommitResult{}, err
	}
	return v.Apply(tx, BARE)
}

// PasteAfter is the one-phase BARE-policy helper for PreparePasteAfter.
func (v *View) PasteAfter(text string) (CommitResult, error) {
	tx, _, err := v.PreparePasteAfter(text)
	if err != nil {
		return CommitResult{}, err
	}
	return v.Apply(tx, BARE)
}

// PasteBefore is the one-phase BARE-policy helper for PreparePasteBefore.
func (v *View) PasteBefore(text string) (CommitResult, error) {
	tx, _, err := v.PreparePasteBefore(text)
	if err != nil {
		return CommitResult{}, err
	}
	return v.Apply(tx, BARE)
}

// DeleteSelection is the one-phase BARE-policy helper for
// PrepareDeleteSelection.
func (v *View) DeleteSelection() (CommitResult, error) {
	tx, _, err := v.PrepareDeleteSelection()
	if err != nil {
		return CommitResult{}, err
	}
	return v.Apply(tx, BARE)
}

// Yank is the result of YankSelection: the text under each selection range
// plus the combined character count, handed to an external
// clipboard/register layer.
type Yank struct {
	Parts      []string
	TotalChars int
}

// YankSelection returns the text under every range of the view's current
// selection, read against the document's current content.
func (v *View) YankSelection() Yank {
	content, _ := v.doc.Snapshot()
	ranges := v.selection.All()
	parts := make([]string, len(ranges))
	total := 0
	for i, r := range ranges {
		s := content.SliceChars(r.Min(), r.Max())
		parts[i] = s
		total += len([]rune(s))
	}
	return Yank{Parts: parts, TotalChars: total}
}
