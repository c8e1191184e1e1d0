package cursor

import "sort"

// ByteOffset is a byte position, used by the legacy action-dispatch surface
// (internal/dispatcher, internal/app, internal/lsp) that predates the
// CharIdx model and talks directly to buffer.ByteOffset. It is a plain
// int64 alias so it interoperates with buffer.ByteOffset without explicit
// conversions at call sites.
type ByteOffset = int64

// Selection is a single cursor position plus its anchor, addressed in
// ByteOffset space. When Anchor == Head the selection is a plain cursor
// with no selected text.
type Selection struct {
	Anchor ByteOffset
	Head   ByteOffset
}

// Span is a start/end byte pair, returned by Selection.Range for callers
// that want ordered bounds rather than anchor/head direction.
type Span struct {
	Start ByteOffset
	End   ByteOffset
}

// NewSelection creates a selection from an anchor and a head.
func NewSelection(anchor, head ByteOffset) Selection {
	return Selection{Anchor: anchor, Head: head}
}

// NewCursorSelection creates a zero-extent selection (a plain cursor) at
// offset.
func NewCursorSelection(offset ByteOffset) Selection {
	return Selection{Anchor: offset, Head: offset}
}

// IsEmpty reports whether the selection has no extent.
func (s Selection) IsEmpty() bool {
	return s.Anchor == s.Head
}

// Cursor returns the selection's head, the reported cursor position.
func (s Selection) Cursor() ByteOffset {
	return s.Head
}

// Start returns the lower bound of the selection.
func (s Selection) Start() ByteOffset {
	if s.Anchor < s.Head {
		return s.Anchor
	}
	return s.Head
}

// End returns the upper bound of the selection.
func (s Selection) End() ByteOffset {
	if s.Anchor > s.Head {
		return s.Anchor
	}
	return s.Head
}

// Range returns the selection's ordered bounds.
func (s Selection) Range() Span {
	return Span{Start: s.Start(), End: s.End()}
}

// MoveTo returns a zero-extent selection at offset, discarding any extent.
func (s Selection) MoveTo(offset ByteOffset) Selection {
	return Selection{Anchor: offset, Head: offset}
}

// Edit describes a single byte-range replacement, used to transform a
// CursorSet across an applied edit.
type Edit struct {
	Start   ByteOffset
	End     ByteOffset
	NewText string
}

// CursorSet is a mutable, ordered collection of Selections plus the index
// of the primary one. It is the legacy multi-cursor container consumed by
// the action-dispatch handlers; it is not safe for concurrent use.
type CursorSet struct {
	selections []Selection
	primary    int
}

// NewCursorSetAt creates a CursorSet with a single cursor at offset.
func NewCursorSetAt(offset ByteOffset) *CursorSet {
	return &CursorSet{selections: []Selection{NewCursorSelection(offset)}, primary: 0}
}

// Primary returns the primary selection.
func (cs *CursorSet) Primary() Selection {
	if len(cs.selections) == 0 {
		return Selection{}
	}
	return cs.selections[cs.primary]
}

// PrimaryCursor returns the primary selection's head.
func (cs *CursorSet) PrimaryCursor() ByteOffset {
	return cs.Primary().Head
}

// SetPrimary replaces the primary selection in place.
func (cs *CursorSet) SetPrimary(sel Selection) {
	if len(cs.selections) == 0 {
		cs.selections = []Selection{sel}
		cs.primary = 0
		return
	}
	cs.selections[cs.primary] = sel
}

// Set replaces the whole set with a single selection.
func (cs *CursorSet) Set(sel Selection) {
	cs.selections = []Selection{sel}
	cs.primary = 0
}

// All returns a copy of every selection, ordered by position.
func (cs *CursorSet) All() []Selection {
	out := make([]Selection, len(cs.selections))
	copy(out, cs.selections)
	return out
}

// SetAll replaces every selection and sorts them by head. The primary index
// is kept as it was, clamped to the last entry when it is out of range.
func (cs *CursorSet) SetAll(sels []Selection) {
	cp := make([]Selection, len(sels))
	copy(cp, sels)
	cs.selections = cp
	cs.normalize()
	if cs.primary >= len(cs.selections) {
		cs.primary = len(cs.selections) - 1
	}
	if cs.primary < 0 {
		cs.primary = 0
	}
}

// Add adds a new selection and makes it primary.
func (cs *CursorSet) Add(sel Selection) {
	cs.selections = append(cs.selections, sel)
	cs.normalize()
	for i, s := range cs.selections {
		if s == sel {
			cs.primary = i
			break
		}
	}
}

// Clear removes every selection but the primary.
func (cs *CursorSet) Clear() {
	if len(cs.selections) == 0 {
		return
	}
	cs.selections = []Selection{cs.selections[cs.primary]}
	cs.primary = 0
}

// Count returns the number of selections.
func (cs *CursorSet) Count() int {
	return len(cs.selections)
}

// IsMulti reports whether more than one cursor is active.
func (cs *CursorSet) IsMulti() bool {
	return len(cs.selections) > 1
}

// HasSelection reports whether the primary selection has extent.
func (cs *CursorSet) HasSelection() bool {
	return !cs.Primary().IsEmpty()
}

// MapInPlace replaces every selection with f applied to it, preserving the
// primary index.
func (cs *CursorSet) MapInPlace(f func(Selection) Selection) {
	primarySel := cs.Primary()
	for i, sel := range cs.selections {
		cs.selections[i] = f(sel)
	}
	cs.normalize()
	for i, s := range cs.selections {
		if s == f(primarySel) {
			cs.primary = i
			break
		}
	}
}

// Clone returns an independent copy of the set.
func (cs *CursorSet) Clone() *CursorSet {
	out := &CursorSet{selections: make([]Selection, len(cs.selections)), primary: cs.primary}
	copy(out.selections, cs.selections)
	return out
}

// Clamp forces every selection endpoint into [0, maxOffset].
func (cs *CursorSet) Clamp(maxOffset ByteOffset) {
	clampOne := func(v ByteOffset) ByteOffset {
		if v > maxOffset {
			return maxOffset
		}
		if v < 0 {
			return 0
		}
		return v
	}
	for i, sel := range cs.selections {
		cs.selections[i] = Selection{Anchor: clampOne(sel.Anchor), Head: clampOne(sel.Head)}
	}
}

// normalize sorts selections by head position. Unlike SelectionSet it does
// not merge overlapping ranges; dispatcher handlers that build multi-cursor
// sets are responsible for not producing duplicates.
func (cs *CursorSet) normalize() {
	sort.SliceStable(cs.selections, func(i, j int) bool {
		return cs.selections[i].Head < cs.selections[j].Head
	})
}

// TransformCursorSet shifts every selection in cs across edit, the way a
// single-change insert/delete/replace moves cursors that sit at or after
// the edited range. Selections entirely before the edit are untouched;
// selections at or after its end shift by the edit's length delta;
// selections inside the removed span collapse to the edit's start.
func TransformCursorSet(cs *CursorSet, edit Edit) {
	delta := ByteOffset(len(edit.NewText)) - (edit.End - edit.Start)
	shift := func(pos ByteOffset) ByteOffset {
		switch {
		case pos <= edit.Start:
			return pos
		case pos >= edit.End:
			return pos + delta
		default:
			return edit.Start
		}
	}
	for i, sel := range cs.selections {
		cs.selections[i] = Selection{Anchor: shift(sel.Anchor), Head: shift(sel.Head)}
	}
}
