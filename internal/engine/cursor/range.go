package cursor

import (
	"fmt"

	"github.com/dshills/keystorm/internal/engine/rope"
)

// CharIdx is a position expressed in Unicode scalar values from the start
// of the document. All selection arithmetic operates in this space; byte
// and UTF-16 offsets are derived only at external boundaries.
type CharIdx = rope.CharOffset

// Range is a single selection range: Anchor is where the selection began,
// Head is the current cursor position (where typing occurs). Range is an
// immutable value type.
type Range struct {
	Anchor CharIdx
	Head   CharIdx
}

// NewRange creates a range from anchor to head.
func NewRange(anchor, head CharIdx) Range {
	return Range{Anchor: anchor, Head: head}
}

// NewPointRange creates a zero-extent range (a point) at offset.
func NewPointRange(offset CharIdx) Range {
	return Range{Anchor: offset, Head: offset}
}

// IsEmpty reports whether the range has no extent.
func (r Range) IsEmpty() bool {
	return r.Anchor == r.Head
}

// IsForward reports whether the range extends forward (Head >= Anchor).
func (r Range) IsForward() bool {
	return r.Head >= r.Anchor
}

// IsBackward reports whether the range extends backward (Head < Anchor).
func (r Range) IsBackward() bool {
	return r.Head < r.Anchor
}

// Min returns the lower bound of the range.
func (r Range) Min() CharIdx {
	if r.Anchor <= r.Head {
		return r.Anchor
	}
	return r.Head
}

// Max returns the upper bound of the range.
func (r Range) Max() CharIdx {
	if r.Anchor >= r.Head {
		return r.Anchor
	}
	return r.Head
}

// Len returns the range's extent in chars.
func (r Range) Len() CharIdx {
	return r.Max() - r.Min()
}

// Contains reports whether offset lies within [Min, Max).
func (r Range) Contains(offset CharIdx) bool {
	return offset >= r.Min() && offset < r.Max()
}

// Overlaps reports whether two ranges share any char, using half-open
// [Min, Max) semantics (touching ranges do not overlap).
func (r Range) Overlaps(other Range) bool {
	return r.Min() < other.Max() && other.Min() < r.Max()
}

// Touches reports whether the ranges overlap or are adjacent
// (r.Max()+1 == other.Min() or vice versa).
func (r Range) Touches(other Range) bool {
	if r.Overlaps(other) {
		return true
	}
	return r.Max()+1 == other.Min() || other.Max()+1 == r.Min()
}

// Merge returns the smallest forward range covering both ranges.
func (r Range) Merge(other Range) Range {
	min := r.Min()
	if other.Min() < min {
		min = other.Min()
	}
	max := r.Max()
	if other.Max() > max {
		max = other.Max()
	}
	return Range{Anchor: min, Head: max}
}

// Flip swaps anchor and head, reversing direction.
func (r Range) Flip() Range {
	return Range{Anchor: r.Head, Head: r.Anchor}
}

// Collapse collapses the range to a point at its head.
func (r Range) Collapse() Range {
	return Range{Anchor: r.Head, Head: r.Head}
}

// Clamp forces both endpoints into [0, max], preserving direction.
func (r Range) Clamp(max CharIdx) Range {
	clampOne := func(v CharIdx) CharIdx {
		if v > max {
			return max
		}
		return v
	}
	return Range{Anchor: clampOne(r.Anchor), Head: clampOne(r.Head)}
}

// String returns a human-readable representation of the range.
func (r Range) String() string {
	dir := "->"
	if r.IsBackward() {
		dir = "<-"
	}
	return fmt.Sprintf("Range(%d%s%d)", r.Anchor, dir, r.Head)
}

// Equals reports whether two ranges have the same anchor and head.
func (r Range) Equals(other Range) bool {
	return r.Anchor == other.Anchor && r.Head == other.Head
}

// SameExtent reports whether two ranges cover the same [min,max) span,
// regardless of direction.
func (r Range) SameExtent(other Range) bool {
	return r.Min() == other.Min() && r.Max() == other.Max()
}
