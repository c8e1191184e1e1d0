package engine

import (
	"io"
	"sync"
	"unicode/utf16"
	"unicode/utf8"

	"github.com/dshills/keystorm/internal/engine/buffer"
	"github.com/dshills/keystorm/internal/engine/cursor"
	"github.com/dshills/keystorm/internal/engine/rope"
	"github.com/dshills/keystorm/internal/engine/transaction"
)

// Re-export commonly used types for convenience.
type (
	// ByteOffset is a byte position in the buffer.
	ByteOffset = buffer.ByteOffset

	// Point represents a line/column position.
	Point = buffer.Point

	// PointUTF16 represents a UTF-16 line/column position (for LSP).
	PointUTF16 = buffer.PointUTF16

	// Range represents a byte range in the buffer.
	Range = buffer.Range

	// Edit represents an edit operation.
	Edit = buffer.Edit

	// EditResult contains information about a completed edit.
	EditResult = buffer.EditResult

	// Selection represents a cursor selection.
	Selection = cursor.Selection

	// LineEnding specifies the line ending style.
	LineEnding = buffer.LineEnding

	// RevisionID uniquely identifies a buffer revision.
	RevisionID = buffer.RevisionID
)

// Re-export constants.
const (
	LineEndingLF   = buffer.LineEndingLF
	LineEndingCRLF = buffer.LineEndingCRLF
	LineEndingCR   = buffer.LineEndingCR
)

// Engine is the byte-offset-addressed facade consumed by the action
// dispatch surface (internal/dispatcher, internal/app, internal/lsp). It
// is a veneer over the Document/View commit layer: every write converts
// its byte range into a CharIdx transaction and lands through
// View.Apply -> Document.Commit, so undo grouping, syntax invalidation,
// and the LSP pending-change queue all see exactly one write path. Reads
// go against immutable rope snapshots of the same Document. Cursor state
// is the View's selection, converted to byte offsets on demand; there is
// no second copy of either content or selection.
type Engine struct {
	mu sync.RWMutex

	doc  *Document
	view *View

	grouping   bool
	groupName  string
	groupDirty bool

	tabWidth      int
	lineEnding    buffer.LineEnding
	lineEndingSet bool
	readOnly      bool

	initContent    string
	maxUndoEntries int
}

// New creates a new Engine with the given options.
func New(opts ...Option) *Engine {
	e := &Engine{
		tabWidth:       DefaultTabWidth,
		lineEnding:     buffer.LineEndingLF,
		maxUndoEntries: DefaultMaxUndoEntries,
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.initContent != "" && !e.lineEndingSet {
		e.lineEnding = buffer.DetectLineEnding(e.initContent)
	}

	e.doc = NewDocument(e.initContent)
	e.doc.SetMaxUndoGroups(e.maxUndoEntries)
	e.doc.SetReadonly(e.readOnly)
	e.view = NewView(e.doc)

	return e
}

// NewFromReader creates an Engine from an io.Reader.
func NewFromReader(r io.Reader, opts ...Option) (*Engine, error) {
	content, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	opts = append(opts, WithContent(string(content)))
	return New(opts...), nil
}

// Document returns the underlying Document, the single owner of content,
// version, history, syntax state, and the LSP pending-change queue.
func (e *Engine) Document() *Document {
	return e.doc
}

// View returns the Engine's view over its Document: the selection and
// readonly-override holder that all Engine edits commit through.
func (e *Engine) View() *View {
	return e.view
}

// snapshot returns the current content rope. Safe without e.mu: the
// Document guards its own state and the returned rope is immutable.
func (e *Engine) snapshot() rope.Rope {
	content, _ := e.doc.Snapshot()
	return content
}

// ============================================================================
// Read Operations
// ============================================================================

// Text returns the full buffer content.
func (e *Engine) Text() string {
	return e.snapshot().String()
}

// TextRange returns text in the given byte range.
func (e *Engine) TextRange(start, end ByteOffset) string {
	return e.snapshot().Slice(rope.ByteOffset(start), rope.ByteOffset(end))
}

// Len returns the total byte length of the buffer.
func (e *Engine) Len() ByteOffset {
	return ByteOffset(e.snapshot().Len())
}

// LineCount returns the number of lines.
func (e *Engine) LineCount() uint32 {
	return e.snapshot().LineCount()
}

// LineText returns the text of a specific line (without newline).
func (e *Engine) LineText(line uint32) string {
	return e.snapshot().LineText(line)
}

// LineLen returns the length of a specific line in bytes (without newline).
func (e *Engine) LineLen(line uint32) int {
	content := e.snapshot()
	return int(content.LineEndOffset(line) - content.LineStartOffset(line))
}

// ByteAt returns the byte at the given offset.
func (e *Engine) ByteAt(offset ByteOffset) (byte, bool) {
	return e.snapshot().ByteAt(rope.ByteOffset(offset))
}

// RuneAt returns the rune at the given byte offset.
func (e *Engine) RuneAt(offset ByteOffset) (rune, int) {
	content := e.snapshot()
	length := content.Len()
	if offset < 0 || rope.ByteOffset(offset) >= length {
		return utf8.RuneError, 0
	}
	end := rope.ByteOffset(offset) + 4
	if end > length {
		end = length
	}
	return utf8.DecodeRuneInString(content.Slice(rope.ByteOffset(offset), end))
}

// IsEmpty returns true if the buffer is empty.
func (e *Engine) IsEmpty() bool {
	return e.snapshot().IsEmpty()
}

// Rope returns an immutable snapshot of the underlying rope.
func (e *Engine) Rope() rope.Rope {
	return e.snapshot()
}

// ============================================================================
// Position Conversion
// ============================================================================

// OffsetToPoint converts a byte offset to line/column.
func (e *Engine) OffsetToPoint(offset ByteOffset) Point {
	p := e.snapshot().OffsetToPoint(rope.ByteOffset(offset))
	return Point{Line: p.Line, Column: p.Column}
}

// PointToOffset converts line/column to byte offset.
func (e *Engine) PointToOffset(point Point) ByteOffset {
	return ByteOffset(e.snapshot().PointToOffset(rope.Point{Line: point.Line, Column: point.Column}))
}

// OffsetToPointUTF16 converts a byte offset to UTF-16 line/column.
func (e *Engine) OffsetToPointUTF16(offset ByteOffset) PointUTF16 {
	content := e.snapshot()
	p := content.OffsetToPoint(rope.ByteOffset(offset))
	lineStart := content.LineStartOffset(p.Line)
	prefix := content.Slice(lineStart, rope.ByteOffset(offset))
	col := 0
	for _, r := range prefix {
		col += len(utf16.Encode([]rune{r}))
	}
	return PointUTF16{Line: p.Line, Column: uint32(col)}
}

// PointUTF16ToOffset converts UTF-16 line/column to byte offset.
func (e *Engine) PointUTF16ToOffset(point PointUTF16) ByteOffset {
	content := e.snapshot()
	lineStart := content.LineStartOffset(point.Line)
	line := content.LineText(point.Line)
	units := uint32(0)
	bytes := 0
	for _, r := range line {
		if units >= point.Column {
			break
		}
		units += uint32(len(utf16.Encode([]rune{r})))
		bytes += len(string(r))
	}
	return ByteOffset(lineStart) + ByteOffset(bytes)
}

// LineStartOffset returns the byte offset of the start of a line.
func (e *Engine) LineStartOffset(line uint32) ByteOffset {
	return ByteOffset(e.snapshot().LineStartOffset(line))
}

// LineEndOffset returns the byte offset of the end of a line (before newline).
func (e *Engine) LineEndOffset(line uint32) ByteOffset {
	return ByteOffset(e.snapshot().LineEndOffset(line))
}

// ============================================================================
// Write Operations
// ============================================================================

// editPolicy resolves the commit policy an Engine-level write runs under:
// an explicit undo group accretes like an insert-mode run, everything else
// is its own undo group. Callers must hold e.mu.
func (e *Engine) editPolicyLocked() ApplyPolicy {
	if e.grouping {
		return INSERT
	}
	return EDIT
}

// byteChange converts one byte-range replacement into a CharIdx change
// against content. Endpoints must lie inside the rope.
func byteChange(content rope.Rope, start, end ByteOffset, text string) (transaction.Change, error) {
	if start < 0 || end < start || rope.ByteOffset(end) > content.Len() {
		return transaction.Change{}, ErrOffsetOutOfRange
	}
	startChar := content.ByteToChar(rope.ByteOffset(start))
	endChar := content.ByteToChar(rope.ByteOffset(end))
	return transaction.NewChange(startChar, endChar, text), nil
}

// commitLocked builds a transaction from changes (already in ascending,
// disjoint order) and lands it through View.Apply. Callers must hold e.mu.
func (e *Engine) commitLocked(changes []transaction.Change) error {
	tx, err := transaction.New(changes)
	if err != nil {
		return ErrRangeInvalid
	}
	result, err := e.view.Apply(tx, e.editPolicyLocked())
	if err != nil {
		return err
	}
	if !result.Applied {
		return ErrReadOnly
	}
	if e.grouping {
		e.groupDirty = true
	}
	return nil
}

// ByteChange is a single byte-range replacement in a batch handed to
// ApplyChanges: replace [Start, End) with Text, all changes expressed
// against the same pre-batch content.
type ByteChange struct {
	Start ByteOffset
	End   ByteOffset
	Text  string
}

// ApplyChanges commits a batch of ascending, disjoint byte-range
// replacements as one transaction through View.Apply. This is the action
// dispatch surface's write entry point: one batch, one undo group, one
// version bump, with the selection mapped through the transaction.
func (e *Engine) ApplyChanges(changes []ByteChange, policy ApplyPolicy) (CommitResult, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.readOnly {
		return CommitResult{Applied: false}, nil
	}
	if len(changes) == 0 {
		v := e.doc.Version()
		return CommitResult{Applied: true, VersionBefore: v, VersionAfter: v}, nil
	}

	content := e.snapshot()

	txChanges := make([]transaction.Change, len(changes))
	for i, c := range changes {
		change, err := byteChange(content, c.Start, c.End, c.Text)
		if err != nil {
			return CommitResult{}, err
		}
		txChanges[i] = change
	}

	tx, err := transaction.New(txChanges)
	if err != nil {
		return CommitResult{}, ErrRangeInvalid
	}
	// An open explicit undo group accretes the batch into it.
	if e.grouping {
		policy.Undo = MergeWithCurrentGroup
	}
	result, err := e.view.Apply(tx, policy)
	if err != nil {
		return result, err
	}
	if result.Applied && e.grouping {
		e.groupDirty = true
	}
	return result, nil
}

// Insert inserts text at the given offset. Returns the end position of the
// inserted text.
func (e *Engine) Insert(offset ByteOffset, text string) (ByteOffset, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	change, err := byteChange(e.snapshot(), offset, offset, text)
	if err != nil {
		return 0, err
	}
	if err := e.commitLocked([]transaction.Change{change}); err != nil {
		return 0, err
	}
	return offset + ByteOffset(len(text)), nil
}

// Delete removes text in the given range.
func (e *Engine) Delete(start, end ByteOffset) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	change, err := byteChange(e.snapshot(), start, end, "")
	if err != nil {
		return err
	}
	return e.commitLocked([]transaction.Change{change})
}

// Replace replaces text in the given range with new text. Returns the end
// position of the replacement text.
func (e *Engine) Replace(start, end ByteOffset, text string) (ByteOffset, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	change, err := byteChange(e.snapshot(), start, end, text)
	if err != nil {
		return 0, err
	}
	if err := e.commitLocked([]transaction.Change{change}); err != nil {
		return 0, err
	}
	return start + ByteOffset(len(text)), nil
}

// ApplyEdit applies a single edit operation.
func (e *Engine) ApplyEdit(edit Edit) (EditResult, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	content := e.snapshot()
	oldText := content.Slice(rope.ByteOffset(edit.Range.Start), rope.ByteOffset(edit.Range.End))

	change, err := byteChange(content, edit.Range.Start, edit.Range.End, edit.NewText)
	if err != nil {
		return EditResult{}, err
	}
	if err := e.commitLocked([]transaction.Change{change}); err != nil {
		return EditResult{}, err
	}

	newEnd := edit.Range.Start + ByteOffset(len(edit.NewText))
	return EditResult{
		OldRange: edit.Range,
		NewRange: Range{Start: edit.Range.Start, End: newEnd},
		OldText:  oldText,
		Delta:    int64(len(edit.NewText)) - int64(edit.Range.End-edit.Range.Start),
	}, nil
}

// ApplyEdits applies multiple edits atomically as one commit (and thus one
// undo group). Edits must be in reverse order (highest offset first),
// matching how callers have historically batched them; they are applied as
// a single ascending transaction.
func (e *Engine) ApplyEdits(edits []Edit) error {
	if len(edits) == 0 {
		return nil
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	content := e.snapshot()
	changes := make([]transaction.Change, len(edits))
	for i, edit := range edits {
		change, err := byteChange(content, edit.Range.Start, edit.Range.End, edit.NewText)
		if err != nil {
			return err
		}
		// Reverse-ordered input becomes ascending change order.
		changes[len(edits)-1-i] = change
	}
	if err := e.commitLocked(changes); err != nil {
		if err == ErrRangeInvalid {
			return ErrEditsOverlap
		}
		return err
	}
	return nil
}

// ============================================================================
// Undo/Redo Operations
// ============================================================================

// BeginUndoGroup starts a new undo group. All operations until EndUndoGroup
// are undone/redone as a single unit.
func (e *Engine) BeginUndoGroup(name string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.doc.CloseUndoRun()
	e.grouping = true
	e.groupName = name
	e.groupDirty = false
}

// EndUndoGroup ends the current undo group.
func (e *Engine) EndUndoGroup() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.grouping {
		return
	}
	e.grouping = false
	e.groupDirty = false
	e.doc.CloseUndoRun()
}

// CancelUndoGroup discards the current undo group without recording it.
// The edits it contains remain applied to the buffer but become
// unreachable by undo.
func (e *Engine) CancelUndoGroup() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.grouping {
		return
	}
	e.grouping = false
	e.doc.CloseUndoRun()
	if e.groupDirty {
		e.doc.DiscardUndoGroup()
	}
	e.groupDirty = false
}

// Undo undoes the last operation or group.
func (e *Engine) Undo() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.readOnly {
		return ErrReadOnly
	}
	if _, ok := e.doc.Undo(); !ok {
		return ErrNothingToUndo
	}
	e.clampSelectionLocked()
	return nil
}

// Redo redoes the last undone operation or group.
func (e *Engine) Redo() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.readOnly {
		return ErrReadOnly
	}
	if _, ok := e.doc.Redo(); !ok {
		return ErrNothingToRedo
	}
	e.clampSelectionLocked()
	return nil
}

// CanUndo returns true if undo is available.
func (e *Engine) CanUndo() bool {
	return e.doc.CanUndo()
}

// CanRedo returns true if redo is available.
func (e *Engine) CanRedo() bool {
	return e.doc.CanRedo()
}

// UndoCount returns the number of available undo groups.
func (e *Engine) UndoCount() int {
	return e.doc.UndoDepth()
}

// RedoCount returns the number of available redo groups.
func (e *Engine) RedoCount() int {
	return e.doc.RedoDepth()
}

// IsGrouping reports whether an undo group is currently open.
func (e *Engine) IsGrouping() bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.grouping
}

// ClearHistory removes all undo/redo history.
func (e *Engine) ClearHistory() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.doc.ClearHistory()
	e.grouping = false
	e.groupDirty = false
}

// ============================================================================
// Cursor Operations
// ============================================================================

// byteSelectionsLocked converts the view's CharIdx selection to legacy
// byte-offset selections, ordered as the view holds them.
func (e *Engine) byteSelectionsLocked(content rope.Rope) []Selection {
	ranges := e.view.Selection().All()
	out := make([]Selection, len(ranges))
	for i, r := range ranges {
		out[i] = Selection{
			Anchor: ByteOffset(content.CharToByte(r.Anchor)),
			Head:   ByteOffset(content.CharToByte(r.Head)),
		}
	}
	return out
}

// setByteSelectionsLocked converts legacy byte selections back into the
// view's CharIdx selection, primary index preserved where possible.
func (e *Engine) setByteSelectionsLocked(content rope.Rope, sels []Selection, primary int) {
	if len(sels) == 0 {
		return
	}
	ranges := make([]cursor.Range, len(sels))
	for i, s := range sels {
		ranges[i] = cursor.Range{
			Anchor: content.ByteToChar(rope.ByteOffset(clampByte(s.Anchor, content))),
			Head:   content.ByteToChar(rope.ByteOffset(clampByte(s.Head, content))),
		}
	}
	if primary < 0 || primary >= len(ranges) {
		primary = 0
	}
	e.view.SetSelection(cursor.NewSelectionSet(ranges, primary))
}

func clampByte(v ByteOffset, content rope.Rope) ByteOffset {
	if v < 0 {
		return 0
	}
	if max := ByteOffset(content.Len()); v > max {
		return max
	}
	return v
}

func (e *Engine) clampSelectionLocked() {
	content := e.snapshot()
	e.view.SetSelection(e.view.Selection().Clamp(content.LenChars()))
}

// Cursors returns a clone of the cursor set for direct manipulation.
func (e *Engine) Cursors() *cursor.CursorSet {
	e.mu.RLock()
	defer e.mu.RUnlock()
	content := e.snapshot()
	sels := e.byteSelectionsLocked(content)
	cs := cursor.NewCursorSetAt(0)
	cs.SetAll(sels)
	return cs
}

// SetCursors replaces the cursor set.
func (e *Engine) SetCursors(cs *cursor.CursorSet) {
	e.mu.Lock()
	defer e.mu.Unlock()
	content := e.snapshot()
	e.setByteSelectionsLocked(content, cs.All(), 0)
}

// PrimaryCursor returns the primary cursor offset.
func (e *Engine) PrimaryCursor() ByteOffset {
	e.mu.RLock()
	defer e.mu.RUnlock()
	content := e.snapshot()
	return ByteOffset(content.CharToByte(e.view.Cursor()))
}

// PrimarySelection returns the primary selection.
func (e *Engine) PrimarySelection() Selection {
	e.mu.RLock()
	defer e.mu.RUnlock()
	content := e.snapshot()
	r := e.view.Selection().Primary()
	return Selection{
		Anchor: ByteOffset(content.CharToByte(r.Anchor)),
		Head:   ByteOffset(content.CharToByte(r.Head)),
	}
}

// SetPrimaryCursor sets the primary cursor position, collapsing to a
// single cursor.
func (e *Engine) SetPrimaryCursor(offset ByteOffset) {
	e.mu.Lock()
	defer e.mu.Unlock()
	content := e.snapshot()
	e.setByteSelectionsLocked(content, []Selection{cursor.NewCursorSelection(offset)}, 0)
}

// SetPrimarySelection sets the primary selection, collapsing to a single
// selection.
func (e *Engine) SetPrimarySelection(sel Selection) {
	e.mu.Lock()
	defer e.mu.Unlock()
	content := e.snapshot()
	e.setByteSelectionsLocked(content, []Selection{sel}, 0)
}

// CursorCount returns the number of cursors.
func (e *Engine) CursorCount() int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.view.Selection().Len()
}

// HasMultipleCursors returns true if there are multiple cursors.
func (e *Engine) HasMultipleCursors() bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.view.Selection().IsMulti()
}

// AddCursor adds a new cursor at the given offset.
func (e *Engine) AddCursor(offset ByteOffset) {
	e.mu.Lock()
	defer e.mu.Unlock()
	content := e.snapshot()
	sels := e.byteSelectionsLocked(content)
	sels = append(sels, cursor.NewCursorSelection(offset))
	e.setByteSelectionsLocked(content, sels, len(sels)-1)
}

// AddSelection adds a new selection.
func (e *Engine) AddSelection(sel Selection) {
	e.mu.Lock()
	defer e.mu.Unlock()
	content := e.snapshot()
	sels := e.byteSelectionsLocked(content)
	sels = append(sels, sel)
	e.setByteSelectionsLocked(content, sels, len(sels)-1)
}

// ClearSecondary removes all cursors except the primary.
func (e *Engine) ClearSecondary() {
	e.mu.Lock()
	defer e.mu.Unlock()
	primary := e.view.Selection().Primary()
	e.view.SetSelection(cursor.NewRangeSelectionSet(primary))
}

// ClampCursors ensures all cursors are within valid buffer range.
func (e *Engine) ClampCursors() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.clampSelectionLocked()
}

// ============================================================================
// Configuration
// ============================================================================

// TabWidth returns the tab width.
func (e *Engine) TabWidth() int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.tabWidth
}

// SetTabWidth sets the tab width.
func (e *Engine) SetTabWidth(width int) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if width >= 1 {
		e.tabWidth = width
	}
}

// LineEnding returns the line ending style.
func (e *Engine) LineEnding() LineEnding {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.lineEnding
}

// SetLineEnding sets the line ending style.
func (e *Engine) SetLineEnding(ending LineEnding) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.lineEnding = ending
}

// IsReadOnly returns true if the engine is read-only.
func (e *Engine) IsReadOnly() bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.readOnly
}

// ============================================================================
// Buffer Snapshot
// ============================================================================

// Snapshot returns a read-only snapshot of the current buffer state.
func (e *Engine) Snapshot() *buffer.Snapshot {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return buffer.NewSnapshot(e.snapshot(), e.RevisionID(), e.lineEnding, e.tabWidth)
}

// RevisionID returns the current buffer revision, which advances with the
// Document's commit version.
func (e *Engine) RevisionID() RevisionID {
	return RevisionID(e.doc.Version())
}

// ============================================================================
// Clear and Reset
// ============================================================================

// Clear removes all content from the buffer and resets history.
func (e *Engine) Clear() error {
	return e.SetContent("")
}

// SetContent replaces all content and resets history.
func (e *Engine) SetContent(content string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.readOnly {
		return ErrReadOnly
	}
	e.doc.ResetContent(content)
	e.grouping = false
	e.groupDirty = false
	e.view.SetSelection(cursor.NewPointSelectionSet(0))
	return nil
}
