package cursor

import (
	"errors"
	"sort"

	"github.com/rivo/uniseg"
)

// ErrEmptySelection is returned by operations that would leave a selection
// with no ranges; a SelectionSet is never empty.
var ErrEmptySelection = errors.New("cursor: selection cannot be empty")

// SelectionSet is a non-empty ordered list of ranges plus the index of the
// primary range (the one driving single-cursor commands and the visible
// cursor). SelectionSet is an immutable value type; every operation returns a
// new, normalized SelectionSet.
type SelectionSet struct {
	ranges  []Range
	primary int
}

// NewSelectionSet builds a SelectionSet from ranges and normalizes it. If ranges
// is empty, a single point selection at 0 is returned.
func NewSelectionSet(ranges []Range, primary int) SelectionSet {
	if len(ranges) == 0 {
		return SelectionSet{ranges: []Range{NewPointRange(0)}, primary: 0}
	}
	cp := make([]Range, len(ranges))
	copy(cp, ranges)
	s := SelectionSet{ranges: cp, primary: primary}
	return s.Normalize()
}

// NewPointSelectionSet builds a single-range cursor selection at offset.
func NewPointSelectionSet(offset CharIdx) SelectionSet {
	return SelectionSet{ranges: []Range{NewPointRange(offset)}, primary: 0}
}

// NewRangeSelectionSet builds a single-range selection.
func NewRangeSelectionSet(r Range) SelectionSet {
	return SelectionSet{ranges: []Range{r}, primary: 0}
}

// Len returns the number of ranges.
func (s SelectionSet) Len() int {
	return len(s.ranges)
}

// Get returns the range at index i.
func (s SelectionSet) Get(i int) Range {
	return s.ranges[i]
}

// All returns a copy of every range, ordered by position.
func (s SelectionSet) All() []Range {
	out := make([]Range, len(s.ranges))
	copy(out, s.ranges)
	return out
}

// PrimaryIndex returns the index of the primary range.
func (s SelectionSet) PrimaryIndex() int {
	return s.primary
}

// Primary returns the primary range.
func (s SelectionSet) Primary() Range {
	return s.ranges[s.primary]
}

// Cursor returns the head of the primary range, which is the editor's
// reported cursor position.
func (s SelectionSet) Cursor() CharIdx {
	return s.Primary().Head
}

// IsMulti reports whether the selection has more than one range.
func (s SelectionSet) IsMulti() bool {
	return len(s.ranges) > 1
}

// HasExtent reports whether any range is non-empty.
func (s SelectionSet) HasExtent() bool {
	for _, r := range s.ranges {
		if !r.IsEmpty() {
			return true
		}
	}
	return false
}

// Normalize sorts ranges by Min and merges overlapping (not merely
// touching) pairs. If the primary range is absorbed by a merge, the merged
// range becomes primary.
func (s SelectionSet) Normalize() SelectionSet {
	return s.normalizeWith(func(a, b Range) bool { return a.Overlaps(b) })
}

// MergeOverlapsAndAdjacent is like Normalize but additionally merges ranges
// where a.Max()+1 == b.Min().
func (s SelectionSet) MergeOverlapsAndAdjacent() SelectionSet {
	return s.normalizeWith(func(a, b Range) bool { return a.Touches(b) })
}

func (s SelectionSet) normalizeWith(shouldMerge func(a, b Range) bool) SelectionSet {
	if len(s.ranges) <= 1 {
		if len(s.ranges) == 0 {
			return SelectionSet{ranges: []Range{NewPointRange(0)}, primary: 0}
		}
		return SelectionSet{ranges: append([]Range(nil), s.ranges...), primary: 0}
	}

	type tagged struct {
		r         Range
		isPrimary bool
	}
	tagged0 := make([]tagged, len(s.ranges))
	for i, r := range s.ranges {
		tagged0[i] = tagged{r: r, isPrimary: i == s.primary}
	}

	sort.SliceStable(tagged0, func(i, j int) bool {
		if tagged0[i].r.Min() != tagged0[j].r.Min() {
			return tagged0[i].r.Min() < tagged0[j].r.Min()
		}
		return tagged0[i].r.Max() > tagged0[j].r.Max()
	})

	merged := []tagged{tagged0[0]}
	for _, t := range tagged0[1:] {
		last := &merged[len(merged)-1]
		if shouldMerge(last.r, t.r) {
			last.r = last.r.Merge(t.r)
			last.isPrimary = last.isPrimary || t.isPrimary
		} else {
			merged = append(merged, t)
		}
	}

	ranges := make([]Range, len(merged))
	primary := 0
	for i, t := range merged {
		ranges[i] = t.r
		if t.isPrimary {
			primary = i
		}
	}

	return SelectionSet{ranges: ranges, primary: primary}
}

// Transform maps every range through f, then renormalizes. The primary
// index is preserved if its mapped range survives normalization intact;
// otherwise it is reassigned to the nearest surviving range at the same
// rank via the tagged-merge in normalizeWith.
func (s SelectionSet) Transform(f func(Range) Range) SelectionSet {
	out := make([]Range, len(s.ranges))
	for i, r := range s.ranges {
		out[i] = f(r)
	}
	return NewSelectionSet(out, s.primary)
}

// TryFilterTransform maps every range through f; f may return (Range{},
// false) to drop that range. Fails with ErrEmptySelection if every range is
// dropped.
func (s SelectionSet) TryFilterTransform(f func(Range) (Range, bool)) (SelectionSet, error) {
	var out []Range
	primary := 0
	kept := 0
	for i, r := range s.ranges {
		mapped, ok := f(r)
		if !ok {
			continue
		}
		if i == s.primary {
			primary = kept
		}
		out = append(out, mapped)
		kept++
	}
	if len(out) == 0 {
		return SelectionSet{}, ErrEmptySelection
	}
	return NewSelectionSet(out, primary), nil
}

// RotateForward advances the primary index by one range, wrapping around.
func (s SelectionSet) RotateForward() SelectionSet {
	cp := s.clone()
	cp.primary = (cp.primary + 1) % len(cp.ranges)
	return cp
}

// RotateBackward moves the primary index back by one range, wrapping
// around.
func (s SelectionSet) RotateBackward() SelectionSet {
	cp := s.clone()
	cp.primary = (cp.primary - 1 + len(cp.ranges)) % len(cp.ranges)
	return cp
}

// Clamp forces every endpoint into [0, max].
func (s SelectionSet) Clamp(max CharIdx) SelectionSet {
	return s.Transform(func(r Range) Range { return r.Clamp(max) })
}

// CollapseAll collapses every range to a point at its head.
func (s SelectionSet) CollapseAll() SelectionSet {
	return s.Transform(Range.Collapse)
}

// GraphemeAligned moves every range endpoint to the nearest grapheme
// cluster boundary in text, using github.com/rivo/uniseg. text must be the
// full document text the selection's CharIdx values are positions into.
// Required before exposing cursor positions to rendering, so a selection
// never splits a multi-rune grapheme cluster (e.g. an emoji with
// combining modifiers, or a combining-accent sequence).
func (s SelectionSet) GraphemeAligned(text string) SelectionSet {
	boundaries := graphemeCharBoundaries(text)
	return s.Transform(func(r Range) Range {
		return Range{
			Anchor: nearestBoundary(boundaries, r.Anchor),
			Head:   nearestBoundary(boundaries, r.Head),
		}
	})
}

// graphemeCharBoundaries returns every CharIdx (in rune units) at which a
// grapheme cluster starts or ends in text, including 0 and len(runes).
func graphemeCharBoundaries(text string) []CharIdx {
	boundaries := []CharIdx{0}
	var charPos CharIdx
	gr := uniseg.NewGraphemes(text)
	for gr.Next() {
		runes := gr.Runes()
		charPos += CharIdx(len(runes))
		boundaries = append(boundaries, charPos)
	}
	return boundaries
}

// nearestBoundary returns the boundary in boundaries closest to pos,
// preferring the lower boundary on ties.
func nearestBoundary(boundaries []CharIdx, pos CharIdx) CharIdx {
	lo, hi := 0, len(boundaries)
	for lo < hi {
		mid := (lo + hi) / 2
		if boundaries[mid] < pos {
			lo = mid + 1
		} else {
			hi = mid
		}
	}
	if lo == 0 {
		return boundaries[0]
	}
	if lo == len(boundaries) {
		return boundaries[len(boundaries)-1]
	}
	below, above := boundaries[lo-1], boundaries[lo]
	if pos-below <= above-pos {
		return below
	}
	return above
}

func (s SelectionSet) clone() SelectionSet {
	cp := make([]Range, len(s.ranges))
	copy(cp, s.ranges)
	return SelectionSet{ranges: cp, primary: s.primary}
}
