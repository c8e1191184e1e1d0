// Package transaction implements the change-record and transaction algebra
// that Document commits are built from: an ordered, disjoint list of
// character-indexed edits applied atomically to a rope, plus the position
// and selection mapping needed to keep cursors coherent across an edit.
package transaction

import (
	"errors"
	"fmt"

	"github.com/dshills/keystorm/internal/engine/cursor"
	"github.com/dshills/keystorm/internal/engine/rope"
)

// CharIdx is a position expressed in Unicode scalar values from the start
// of the document.
type CharIdx = rope.CharOffset

// Errors returned by transaction construction and application.
var (
	// ErrInvalidRange indicates changes are not in strictly ascending,
	// non-overlapping start order.
	ErrInvalidRange = errors.New("transaction: changes out of order or overlapping")

	// ErrOutOfBounds indicates a change endpoint falls outside the rope.
	ErrOutOfBounds = errors.New("transaction: change endpoint out of bounds")
)

// Change is a single edit: replace [Start, End) with Replacement.
// Replacement == nil denotes a deletion; an empty-string replacement is
// normalized to a deletion by NewChange.
type Change struct {
	Start       CharIdx
	End         CharIdx
	Replacement *string
}

// NewChange builds a Change, normalizing an empty replacement to a deletion.
func NewChange(start, end CharIdx, replacement string) Change {
	if replacement == "" {
		return Change{Start: start, End: end, Replacement: nil}
	}
	return Change{Start: start, End: end, Replacement: &replacement}
}

// NewDeletion builds a deleting Change.
func NewDeletion(start, end CharIdx) Change {
	return Change{Start: start, End: end}
}

// IsDeletion reports whether the change removes text without inserting any.
func (c Change) IsDeletion() bool {
	return c.Replacement == nil
}

// Text returns the replacement text, or "" for a deletion.
func (c Change) Text() string {
	if c.Replacement == nil {
		return ""
	}
	return *c.Replacement
}

// ReplacementLen returns the char length of the replacement text.
func (c Change) ReplacementLen() CharIdx {
	if c.Replacement == nil {
		return 0
	}
	return CharIdx(len([]rune(*c.Replacement)))
}

// Bias controls how a point exactly at an insertion boundary is mapped.
type Bias int

const (
	// Left keeps the point to the left of (before) an insertion at its
	// position.
	Left Bias = iota
	// Right pushes the point past (after) an insertion at its position.
	Right
)

// Transaction is an ordered, disjoint list of Change records that
// transforms one rope into the next.
type Transaction struct {
	changes []Change
}

// New validates and constructs a Transaction from changes already in
// ascending, non-overlapping start order.
func New(changes []Change) (Transaction, error) {
	for i, c := range changes {
		if c.Start > c.End {
			return Transaction{}, fmt.Errorf("%w: change %d has start > end", ErrInvalidRange, i)
		}
		if i > 0 && changes[i-1].End > c.Start {
			return Transaction{}, fmt.Errorf("%w: change %d overlaps change %d", ErrInvalidRange, i, i-1)
		}
	}
	cp := make([]Change, len(changes))
	copy(cp, changes)
	return Transaction{changes: cp}, nil
}

// Changes returns the transaction's change list for external projection
// (syntax incremental edits, LSP change records).
func (t Transaction) Changes() []Change {
	return t.changes
}

// SequentialChanges returns the change list re-expressed in sequential
// coordinates: each change's offsets are shifted by the cumulative delta of
// the changes before it, so change k is valid against the document state
// after changes 0..k-1 have been applied. This is the form external
// consumers that replay changes one at a time (LSP didChange, broker wire
// deltas) need.
func (t Transaction) SequentialChanges() []Change {
	out := make([]Change, len(t.changes))
	var delta int64
	for i, c := range t.changes {
		start := CharIdx(int64(c.Start) + delta)
		end := CharIdx(int64(c.End) + delta)
		out[i] = Change{Start: start, End: end, Replacement: c.Replacement}
		delta += int64(c.ReplacementLen()) - int64(c.End-c.Start)
	}
	return out
}

// IsEmpty reports whether the transaction has no changes.
func (t Transaction) IsEmpty() bool {
	return len(t.changes) == 0
}

// Apply applies the transaction to a rope, producing the post-image.
// Changes are applied in ascending order; each subsequent change's offsets
// are adjusted by the cumulative delta of changes already applied, since
// they were recorded against the pre-image.
func (t Transaction) Apply(r rope.Rope) (rope.Rope, error) {
	result := r
	var delta int64
	for _, c := range t.changes {
		start := rope.CharOffset(int64(c.Start) + delta)
		end := rope.CharOffset(int64(c.End) + delta)
		if end > result.LenChars() {
			return rope.Rope{}, fmt.Errorf("%w: [%d,%d) against len %d", ErrOutOfBounds, c.Start, c.End, result.LenChars())
		}

		startByte := result.CharToByte(start)
		endByte := result.CharToByte(end)
		result = result.Replace(startByte, endByte, c.Text())

		delta += int64(c.ReplacementLen()) - int64(c.End-c.Start)
	}
	return result, nil
}

// MapPos projects a single point through the transaction using bias to
// resolve ties at insertion boundaries.
func (t Transaction) MapPos(pos CharIdx, bias Bias) CharIdx {
	p := int64(pos)
	var delta int64

	for _, c := range t.changes {
		start := int64(c.Start) + delta
		end := int64(c.End) + delta
		replLen := int64(c.ReplacementLen())

		switch {
		case end <= p:
			// Change lies entirely before p: shift by its delta.
			p += replLen - (end - start)
		case start < p && p <= end:
			// p falls inside the removed span.
			if c.IsDeletion() {
				p = start
			} else if bias == Right {
				p = start + replLen
			} else {
				p = start
			}
		case start == p:
			if bias == Right {
				p = start + replLen
			}
			// Left: p stays put (to the left of the insertion).
		default:
			// start > p: change is entirely after p, no effect yet, but
			// later changes' deltas must still accumulate.
		}

		delta += replLen - (end - start)
	}

	return CharIdx(p)
}

// Invert builds the transaction that undoes t, given the rope t was (or is
// about to be) applied to. The inverse's changes are expressed in the
// post-image's CharIdx space, so applying the inverse to the post-image
// reproduces pre exactly.
func (t Transaction) Invert(pre rope.Rope) (Transaction, error) {
	changes := make([]Change, len(t.changes))
	var delta int64
	for i, c := range t.changes {
		if c.End > pre.LenChars() {
			return Transaction{}, fmt.Errorf("%w: [%d,%d) against len %d", ErrOutOfBounds, c.Start, c.End, pre.LenChars())
		}
		oldText := pre.SliceChars(c.Start, c.End)
		postStart := CharIdx(int64(c.Start) + delta)
		postEnd := postStart + c.ReplacementLen()
		changes[i] = NewChange(postStart, postEnd, oldText)
		delta += int64(c.ReplacementLen()) - int64(c.End-c.Start)
	}
	return New(changes)
}

// MapSelection projects every range endpoint of sel through the
// transaction and renormalizes the result.
func (t Transaction) MapSelection(sel cursor.SelectionSet) cursor.SelectionSet {
	ranges := make([]cursor.Range, sel.Len())
	for i := 0; i < sel.Len(); i++ {
		r := sel.Get(i)
		anchorBias, headBias := Left, Right
		if !r.IsForward() {
			anchorBias, headBias = Right, Left
		}
		ranges[i] = cursor.Range{
			Anchor: t.MapPos(r.Anchor, anchorBias),
			Head:   t.MapPos(r.Head, headBias),
		}
	}
	mapped := cursor.NewSelectionSet(ranges, sel.PrimaryIndex())
	return mapped.Normalize()
}
