// Package app provides adapter implementations that bridge the app layer
// with the dispatcher's execution context interfaces.
package app

import (
	"context"

	"github.com/dshills/keystorm/internal/dispatcher/execctx"
	"github.com/dshills/keystorm/internal/engine"
	"github.com/dshills/keystorm/internal/engine/buffer"
	"github.com/dshills/keystorm/internal/engine/cursor"
	"github.com/dshills/keystorm/internal/event"
	"github.com/dshills/keystorm/internal/event/events"
	"github.com/dshills/keystorm/internal/input/mode"
)

// Compile-time interface checks.
var (
	_ execctx.TextAccess           = (*EngineExecAdapter)(nil)
	_ execctx.EditAccess           = (*EditExecAdapter)(nil)
	_ execctx.SelectionAccess      = (*CursorManagerAdapter)(nil)
	_ execctx.ModeManagerInterface = (*ModeExecAdapter)(nil)
	_ execctx.HistoryInterface     = (*HistoryAdapter)(nil)
	_ execctx.RendererInterface    = (*ViewportAdapter)(nil)
)

// EngineExecAdapter adapts engine.Engine to execctx.TextAccess: the
// read-only query surface handlers compute ranges against. All mutation
// goes through EditExecAdapter.
type EngineExecAdapter struct {
	eng *engine.Engine
}

// NewEngineExecAdapter creates a new engine adapter for execctx.
func NewEngineExecAdapter(eng *engine.Engine) *EngineExecAdapter {
	return &EngineExecAdapter{eng: eng}
}

// EditExecAdapter adapts the Engine's commit path to execctx.EditAccess.
// Every batch lands through View.Apply -> Document.Commit; handlers never
// touch rope state directly.
type EditExecAdapter struct {
	eng *engine.Engine
}

// NewEditExecAdapter creates the commit-layer write adapter for execctx.
func NewEditExecAdapter(eng *engine.Engine) *EditExecAdapter {
	return &EditExecAdapter{eng: eng}
}

// Apply commits a batch of changes with the policy mapped onto the commit
// layer's presets.
func (a *EditExecAdapter) Apply(changes []execctx.Change, policy execctx.ApplyPolicy) (execctx.CommitResult, error) {
	batch := make([]engine.ByteChange, len(changes))
	for i, c := range changes {
		batch[i] = engine.ByteChange{Start: c.Start, End: c.End, Text: c.Text}
	}

	var enginePolicy engine.ApplyPolicy
	switch policy {
	case execctx.PolicyInsert:
		enginePolicy = engine.INSERT
	case execctx.PolicyBare:
		enginePolicy = engine.BARE
	default:
		enginePolicy = engine.EDIT
	}

	result, err := a.eng.ApplyChanges(batch, enginePolicy)
	if err != nil {
		return execctx.CommitResult{}, err
	}
	return execctx.CommitResult{
		Applied:       result.Applied,
		VersionBefore: result.VersionBefore,
		VersionAfter:  result.VersionAfter,
	}, nil
}

// Undo reverts the most recent undo group.
func (a *EditExecAdapter) Undo() (execctx.CommitResult, error) {
	if err := a.eng.Undo(); err != nil {
		return execctx.CommitResult{}, err
	}
	v := uint64(a.eng.RevisionID())
	return execctx.CommitResult{Applied: true, VersionAfter: v}, nil
}

// Redo reapplies the most recently undone group.
func (a *EditExecAdapter) Redo() (execctx.CommitResult, error) {
	if err := a.eng.Redo(); err != nil {
		return execctx.CommitResult{}, err
	}
	v := uint64(a.eng.RevisionID())
	return execctx.CommitResult{Applied: true, VersionAfter: v}, nil
}

// Text returns the full document text.
func (a *EngineExecAdapter) Text() string {
	return a.eng.Text()
}

// TextRange returns text in the given range.
func (a *EngineExecAdapter) TextRange(start, end buffer.ByteOffset) string {
	return a.eng.TextRange(start, end)
}

// LineText returns the text of the given line.
func (a *EngineExecAdapter) LineText(line uint32) string {
	return a.eng.LineText(line)
}

// Len returns the total byte length.
func (a *EngineExecAdapter) Len() buffer.ByteOffset {
	return a.eng.Len()
}

// LineCount returns the number of lines.
func (a *EngineExecAdapter) LineCount() uint32 {
	return a.eng.LineCount()
}

// LineStartOffset returns the start offset of a line.
func (a *EngineExecAdapter) LineStartOffset(line uint32) buffer.ByteOffset {
	return a.eng.LineStartOffset(line)
}

// LineEndOffset returns the end offset of a line.
func (a *EngineExecAdapter) LineEndOffset(line uint32) buffer.ByteOffset {
	return a.eng.LineEndOffset(line)
}

// LineLen returns the length of a line.
func (a *EngineExecAdapter) LineLen(line uint32) uint32 {
	return uint32(a.eng.LineLen(line))
}

// OffsetToPoint converts a byte offset to a point (line, column).
func (a *EngineExecAdapter) OffsetToPoint(offset buffer.ByteOffset) buffer.Point {
	return a.eng.OffsetToPoint(offset)
}

// PointToOffset converts a point to a byte offset.
func (a *EngineExecAdapter) PointToOffset(point buffer.Point) buffer.ByteOffset {
	return a.eng.PointToOffset(point)
}

// RevisionID returns the current revision ID.
func (a *EngineExecAdapter) RevisionID() buffer.RevisionID {
	return a.eng.RevisionID()
}

// Snapshot returns a read-only snapshot of the engine.
func (a *EngineExecAdapter) Snapshot() execctx.TextReader {
	return &engineReaderAdapter{eng: a.eng}
}

// engineReaderAdapter provides read-only access to the engine.
type engineReaderAdapter struct {
	eng *engine.Engine
}

func (r *engineReaderAdapter) Text() string                            { return r.eng.Text() }
func (r *engineReaderAdapter) TextRange(s, e buffer.ByteOffset) string { return r.eng.TextRange(s, e) }
func (r *engineReaderAdapter) LineText(line uint32) string             { return r.eng.LineText(line) }
func (r *engineReaderAdapter) Len() buffer.ByteOffset                  { return r.eng.Len() }
func (r *engineReaderAdapter) LineCount() uint32                       { return r.eng.LineCount() }
func (r *engineReaderAdapter) LineStartOffset(line uint32) buffer.ByteOffset {
	return r.eng.LineStartOffset(line)
}
func (r *engineReaderAdapter) LineEndOffset(line uint32) buffer.ByteOffset {
	return r.eng.LineEndOffset(line)
}
func (r *engineReaderAdapter) LineLen(line uint32) uint32 { return uint32(r.eng.LineLen(line)) }
func (r *engineReaderAdapter) OffsetToPoint(o buffer.ByteOffset) buffer.Point {
	return r.eng.OffsetToPoint(o)
}
func (r *engineReaderAdapter) PointToOffset(p buffer.Point) buffer.ByteOffset {
	return r.eng.PointToOffset(p)
}

// CursorManagerAdapter adapts cursor.CursorSet to execctx.SelectionAccess.
// It holds a reference to the engine so cursor modifications can be synced back.
//
// NOTE: engine.Cursors() returns a clone of the cursor set for thread safety.
// This adapter works on that clone and syncs changes back via SetCursors()
// after each mutating operation. SetCursors() also clones internally,
// maintaining the engine's thread-safety invariant.
type CursorManagerAdapter struct {
	eng     *engine.Engine
	cursors *cursor.CursorSet
}

// NewCursorManagerAdapter creates a new cursor manager adapter.
// It receives the engine to allow syncing cursor changes back.
func NewCursorManagerAdapter(eng *engine.Engine) *CursorManagerAdapter {
	return &CursorManagerAdapter{
		eng:     eng,
		cursors: eng.Cursors(), // Gets a clone for local modifications
	}
}

func (a *CursorManagerAdapter) Primary() cursor.Selection { return a.cursors.Primary() }
func (a *CursorManagerAdapter) SetPrimary(sel cursor.Selection) {
	a.cursors.SetPrimary(sel)
	a.syncToEngine()
}
func (a *CursorManagerAdapter) All() []cursor.Selection { return a.cursors.All() }
func (a *CursorManagerAdapter) Add(sel cursor.Selection) {
	a.cursors.Add(sel)
	a.syncToEngine()
}
func (a *CursorManagerAdapter) Clear() {
	a.cursors.Clear()
	a.syncToEngine()
}
func (a *CursorManagerAdapter) Count() int         { return a.cursors.Count() }
func (a *CursorManagerAdapter) IsMulti() bool      { return a.cursors.IsMulti() }
func (a *CursorManagerAdapter) HasSelection() bool { return a.cursors.HasSelection() }
func (a *CursorManagerAdapter) SetAll(sels []cursor.Selection) {
	a.cursors.SetAll(sels)
	a.syncToEngine()
}
func (a *CursorManagerAdapter) MapInPlace(f func(sel cursor.Selection) cursor.Selection) {
	a.cursors.MapInPlace(f)
	a.syncToEngine()
}
func (a *CursorManagerAdapter) Clone() *cursor.CursorSet { return a.cursors.Clone() }
func (a *CursorManagerAdapter) Clamp(maxOffset cursor.ByteOffset) {
	a.cursors.Clamp(maxOffset)
	a.syncToEngine()
}

// syncToEngine writes the cursor set back to the engine.
func (a *CursorManagerAdapter) syncToEngine() {
	if a.eng != nil {
		a.eng.SetCursors(a.cursors)
	}
}

// ModeExecAdapter adapts mode.Manager to execctx.ModeManagerInterface.
type ModeExecAdapter struct {
	manager *mode.Manager
}

// NewModeExecAdapter creates a new mode manager adapter for execctx.
func NewModeExecAdapter(manager *mode.Manager) *ModeExecAdapter {
	return &ModeExecAdapter{manager: manager}
}

// Current returns the current mode wrapped as ModeInterface.
func (a *ModeExecAdapter) Current() execctx.ModeInterface {
	if a.manager == nil {
		return nil
	}
	m := a.manager.Current()
	return &modeWrapper{mode: m}
}

// CurrentName returns the current mode name.
func (a *ModeExecAdapter) CurrentName() string {
	if a.manager == nil {
		return ""
	}
	return a.manager.Current().Name()
}

// Switch switches to a named mode.
func (a *ModeExecAdapter) Switch(name string) error {
	if a.manager == nil {
		return nil
	}
	return a.manager.SetInitialMode(name)
}

// Push pushes a new mode onto the stack (delegates to Switch for now).
func (a *ModeExecAdapter) Push(name string) error {
	return a.Switch(name)
}

// Pop pops the current mode from the stack (no-op for now).
func (a *ModeExecAdapter) Pop() error {
	return nil
}

// IsMode returns true if the current mode matches the given name.
func (a *ModeExecAdapter) IsMode(name string) bool {
	return a.CurrentName() == name
}

// IsAnyMode returns true if the current mode matches any of the given names.
func (a *ModeExecAdapter) IsAnyMode(names ...string) bool {
	current := a.CurrentName()
	for _, name := range names {
		if current == name {
			return true
		}
	}
	return false
}

// modeWrapper wraps mode.Mode to implement execctx.ModeInterface.
type modeWrapper struct {
	mode mode.Mode
}

func (w *modeWrapper) Name() string        { return w.mode.Name() }
func (w *modeWrapper) DisplayName() string { return w.mode.DisplayName() }

// HistoryAdapter adapts engine history to execctx.HistoryInterface.
type HistoryAdapter struct {
	eng *engine.Engine
}

// NewHistoryAdapter creates a new history adapter.
func NewHistoryAdapter(eng *engine.Engine) *HistoryAdapter {
	return &HistoryAdapter{eng: eng}
}

func (a *HistoryAdapter) BeginGroup(name string) {
	if a.eng != nil {
		a.eng.BeginUndoGroup(name)
	}
}

func (a *HistoryAdapter) EndGroup() {
	if a.eng != nil {
		a.eng.EndUndoGroup()
	}
}

func (a *HistoryAdapter) CancelGroup() {
	if a.eng != nil {
		a.eng.CancelUndoGroup()
	}
}

func (a *HistoryAdapter) IsGrouping() bool {
	if a.eng != nil {
		return a.eng.IsGrouping()
	}
	return false
}

func (a *HistoryAdapter) CanUndo() bool {
	if a.eng != nil {
		return a.eng.CanUndo()
	}
	return false
}

func (a *HistoryAdapter) CanRedo() bool {
	if a.eng != nil {
		return a.eng.CanRedo()
	}
	return false
}

func (a *HistoryAdapter) UndoCount() int {
	if a.eng != nil {
		return a.eng.UndoCount()
	}
	return 0
}

func (a *HistoryAdapter) RedoCount() int {
	if a.eng != nil {
		return a.eng.RedoCount()
	}
	return 0
}

// ViewportAdapter implements execctx.RendererInterface for a headless
// application: scroll requests land in the engine view's scroll state,
// and redraw requests are published on the event bus for whatever
// frontend subscribes. VisibleLineRange is derived from the view's
// scroll line and the host-reported viewport height.
type ViewportAdapter struct {
	eng    *engine.Engine
	bus    event.Bus
	buffer string
	height uint32
}

// DefaultViewportHeight is used until a host reports its real height.
const DefaultViewportHeight = 40

// NewViewportAdapter creates the renderer capability for one document.
func NewViewportAdapter(eng *engine.Engine, bus event.Bus, bufferID string) *ViewportAdapter {
	return &ViewportAdapter{
		eng:    eng,
		bus:    bus,
		buffer: bufferID,
		height: DefaultViewportHeight,
	}
}

// SetHeight records the host viewport height in lines.
func (a *ViewportAdapter) SetHeight(lines uint32) {
	if lines > 0 {
		a.height = lines
	}
}

func (a *ViewportAdapter) ScrollTo(line, col uint32) {
	if a.eng == nil {
		return
	}
	a.eng.View().SetScroll(line, 0)
	a.publishViewport()
	_ = col
}

func (a *ViewportAdapter) CenterOnLine(line uint32) {
	if a.eng == nil {
		return
	}
	top := uint32(0)
	if line > a.height/2 {
		top = line - a.height/2
	}
	a.eng.View().SetScroll(top, 0)
	a.publishViewport()
}

func (a *ViewportAdapter) Redraw() {
	a.publishRedraw(nil)
}

func (a *ViewportAdapter) RedrawLines(lines []uint32) {
	ranges := make([]events.LineRange, 0, len(lines))
	for _, l := range lines {
		ranges = append(ranges, events.LineRange{Start: int(l), End: int(l) + 1})
	}
	a.publishRedraw(ranges)
}

func (a *ViewportAdapter) VisibleLineRange() (start, end uint32) {
	if a.eng == nil {
		return 0, a.height
	}
	line, _ := a.eng.View().Scroll()
	return line, line + a.height
}

func (a *ViewportAdapter) publishRedraw(ranges []events.LineRange) {
	if a.bus == nil {
		return
	}
	payload := events.RendererRedrawNeeded{
		BufferID:   a.buffer,
		FullRedraw: len(ranges) == 0,
		LineRanges: ranges,
		Reason:     "action",
	}
	ev := event.NewEvent(events.TopicRendererRedrawNeeded, payload, "dispatcher")
	_ = a.bus.PublishAsync(context.Background(), ev)
}

func (a *ViewportAdapter) publishViewport() {
	if a.bus == nil {
		return
	}
	start, end := a.VisibleLineRange()
	payload := events.RendererViewportChanged{
		BufferID:         a.buffer,
		FirstVisibleLine: int(start),
		LastVisibleLine:  int(end),
		VisibleLineCount: int(a.height),
	}
	ev := event.NewEvent(events.TopicRendererViewportChanged, payload, "dispatcher")
	_ = a.bus.PublishAsync(context.Background(), ev)
}
