package lsp

import (
	"math"
	"strings"
)

// DocumentChange is a single queued text change in the sync scheduler's
// canonical coordinate space: zero-based line, column counted in Unicode
// scalar values. Changes are sequential - each range is relative to the
// document state after all preceding changes. Conversion to the server's
// negotiated offset encoding happens at the wire boundary (see encoding.go).
type DocumentChange struct {
	Range   Range
	NewText string
}

// IsInsert reports whether the change is a pure insertion (point range).
func (c DocumentChange) IsInsert() bool {
	return c.Range.Start == c.Range.End
}

// IsDelete reports whether the change removes text without inserting any.
func (c DocumentChange) IsDelete() bool {
	return c.NewText == "" && !c.IsInsert()
}

// nonMergeableCharCount is the sentinel rangeCharCount returns for
// multi-line ranges, which are never merged.
const nonMergeableCharCount = math.MaxUint32

// CoalesceChanges merges adjacent changes to reduce didChange payload size.
// The returned list, applied sequentially, produces the same final text as
// the input list.
//
// Merged patterns:
//   - Insert + Insert where the second starts exactly at the end of the
//     first's inserted text.
//   - Delete + Insert at the same start position (becomes a replacement).
//   - Delete + Delete at the same start position (lengths add; single-line
//     ranges only).
//   - Insert + Delete at the same position consuming some or all of the
//     insertion (cancels, or keeps the insertion's suffix).
//
// Everything else is preserved in order.
func CoalesceChanges(changes []DocumentChange) []DocumentChange {
	if len(changes) < 2 {
		return changes
	}

	result := make([]DocumentChange, 0, len(changes))
	for _, change := range changes {
		if len(result) > 0 {
			if merged, ok := tryMerge(result[len(result)-1], change); ok {
				result[len(result)-1] = merged
				continue
			}
		}
		result = append(result, change)
	}
	return result
}

func tryMerge(prev, curr DocumentChange) (DocumentChange, bool) {
	prevIsInsert := prev.IsInsert()
	prevIsDelete := prev.IsDelete()
	currIsInsert := curr.IsInsert()
	currIsDelete := curr.IsDelete()

	// Insert + Insert at consecutive positions: "foo" at (1,5) then "bar"
	// at (1,8) becomes "foobar" at (1,5).
	if prevIsInsert && currIsInsert {
		if advancePosition(prev.Range.Start, prev.NewText) == curr.Range.Start {
			return DocumentChange{Range: prev.Range, NewText: prev.NewText + curr.NewText}, true
		}
	}

	// Delete + Insert at the same start: one replacement over the deleted
	// range with the insertion's text.
	if prevIsDelete && currIsInsert && prev.Range.Start == curr.Range.Start {
		return DocumentChange{Range: prev.Range, NewText: curr.NewText}, true
	}

	// Delete + Delete at the same start: after the first delete the
	// following text has shifted onto its start position, so the second
	// delete consumes what was originally adjacent. Lengths add.
	if prevIsDelete && currIsDelete && prev.Range.Start == curr.Range.Start {
		prevChars := rangeCharCount(prev.Range)
		currChars := rangeCharCount(curr.Range)
		if prevChars == nonMergeableCharCount || currChars == nonMergeableCharCount {
			return DocumentChange{}, false
		}
		end := prev.Range.Start
		end.Character += prevChars + currChars
		return DocumentChange{Range: Range{Start: prev.Range.Start, End: end}}, true
	}

	// Insert + Delete of the just-inserted text: cancels entirely, or a
	// prefix delete keeps the insertion's suffix. Deleting past the
	// insertion extends into original text and is not merged.
	if prevIsInsert && currIsDelete && prev.Range.Start == curr.Range.Start {
		insertedLen := len([]rune(prev.NewText))
		deletedChars := rangeCharCount(curr.Range)
		if deletedChars == nonMergeableCharCount {
			return DocumentChange{}, false
		}
		switch {
		case deletedChars == insertedLen:
			return DocumentChange{Range: Range{Start: prev.Range.Start, End: prev.Range.Start}}, true
		case deletedChars < insertedLen:
			remaining := string([]rune(prev.NewText)[deletedChars:])
			return DocumentChange{Range: Range{Start: prev.Range.Start, End: prev.Range.Start}, NewText: remaining}, true
		}
	}

	return DocumentChange{}, false
}

// advancePosition advances pos across text, resetting the column on each
// newline.
func advancePosition(pos Position, text string) Position {
	if i := strings.LastIndexByte(text, '\n'); i >= 0 {
		return Position{
			Line:      pos.Line + strings.Count(text, "\n"),
			Character: len([]rune(text[i+1:])),
		}
	}
	return Position{Line: pos.Line, Character: pos.Character + len([]rune(text))}
}

// rangeCharCount returns the number of characters in a single-line range,
// or nonMergeableCharCount for multi-line ranges.
func rangeCharCount(r Range) int {
	if r.Start.Line == r.End.Line {
		return r.End.Character - r.Start.Character
	}
	return nonMergeableCharCount
}
