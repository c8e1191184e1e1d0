package cursor

import "testing"

func TestNewCursor(t *testing.T) {
	c := NewCursor(10)
	if c.Offset() != 10 {
		t.Errorf("expected offset 10, got %d", c.Offset())
	}
}

func TestCursorMoveTo(t *testing.T) {
	c := NewCursor(10)
	c2 := c.MoveTo(20)

	if c.Offset() != 10 {
		t.Error("original cursor should be unchanged")
	}
	if c2.Offset() != 20 {
		t.Errorf("expected offset 20, got %d", c2.Offset())
	}
}

func TestCursorMoveBy(t *testing.T) {
	c := NewCursor(10)

	if c2 := c.MoveBy(5); c2.Offset() != 15 {
		t.Errorf("expected offset 15, got %d", c2.Offset())
	}
	if c3 := c.MoveBy(-5); c3.Offset() != 5 {
		t.Errorf("expected offset 5, got %d", c3.Offset())
	}
	if c4 := c.MoveBy(-20); c4.Offset() != 0 {
		t.Errorf("expected offset 0 (clamped), got %d", c4.Offset())
	}
}

func TestCursorClamp(t *testing.T) {
	c := NewCursor(50)

	if c2 := c.Clamp(30); c2.Offset() != 30 {
		t.Errorf("expected clamped offset 30, got %d", c2.Offset())
	}
	if c3 := c.Clamp(100); c3.Offset() != 50 {
		t.Errorf("expected unchanged offset 50, got %d", c3.Offset())
	}
}

func TestCursorCompare(t *testing.T) {
	c1, c2, c3 := NewCursor(10), NewCursor(20), NewCursor(10)

	if c1.Compare(c2) != -1 {
		t.Error("c1 should be less than c2")
	}
	if c2.Compare(c1) != 1 {
		t.Error("c2 should be greater than c1")
	}
	if c1.Compare(c3) != 0 {
		t.Error("c1 should equal c3")
	}
}

func TestCursorToSelection(t *testing.T) {
	c := NewCursor(10)
	sel := c.ToSelectionSet()

	if sel.Primary().Anchor != 10 || sel.Primary().Head != 10 {
		t.Error("cursor selection should have anchor == head == offset")
	}
	if sel.HasExtent() {
		t.Error("cursor selection should have no extent")
	}
}

func TestRangeBasics(t *testing.T) {
	forward := NewRange(10, 20)
	if forward.Min() != 10 || forward.Max() != 20 {
		t.Errorf("expected [10,20), got [%d,%d)", forward.Min(), forward.Max())
	}
	if !forward.IsForward() {
		t.Error("should be forward")
	}

	backward := NewRange(20, 10)
	if backward.Min() != 10 || backward.Max() != 20 {
		t.Errorf("backward range min/max incorrect: [%d,%d)", backward.Min(), backward.Max())
	}
	if !backward.IsBackward() {
		t.Error("should be backward")
	}
}

func TestRangeContains(t *testing.T) {
	r := NewRange(10, 20)

	if !r.Contains(15) {
		t.Error("range should contain 15")
	}
	if !r.Contains(10) {
		t.Error("range should contain start (10)")
	}
	if r.Contains(20) {
		t.Error("range should not contain end (20, exclusive)")
	}
	if r.Contains(5) {
		t.Error("range should not contain 5")
	}
}

func TestRangeOverlapsAndTouches(t *testing.T) {
	r1 := NewRange(10, 20)
	r2 := NewRange(15, 25)
	r3 := NewRange(25, 35)
	r4 := NewRange(21, 31)

	if !r1.Overlaps(r2) {
		t.Error("r1 should overlap r2")
	}
	if r1.Overlaps(r3) {
		t.Error("r1 should not overlap r3")
	}
	if r1.Overlaps(r4) {
		t.Error("r1 should not overlap r4 (merely adjacent)")
	}
	if !r1.Touches(r4) {
		t.Error("r1 should touch r4 (adjacent)")
	}
	if r1.Touches(r3) {
		t.Error("r1 should not touch r3")
	}
}

func TestRangeMergeFlipCollapseClamp(t *testing.T) {
	r1 := NewRange(10, 20)
	r2 := NewRange(15, 30)
	merged := r1.Merge(r2)
	if merged.Min() != 10 || merged.Max() != 30 {
		t.Errorf("merged should be [10,30), got [%d,%d)", merged.Min(), merged.Max())
	}

	flipped := NewRange(10, 20).Flip()
	if flipped.Anchor != 20 || flipped.Head != 10 {
		t.Error("flip should swap anchor and head")
	}

	collapsed := NewRange(10, 20).Collapse()
	if collapsed.Anchor != 20 || collapsed.Head != 20 {
		t.Error("collapse should move to head")
	}

	clamped := NewRange(10, 50).Clamp(30)
	if clamped.Anchor != 10 || clamped.Head != 30 {
		t.Errorf("expected clamped to [10,30], got [%d,%d]", clamped.Anchor, clamped.Head)
	}
}

func TestSelectionNormalizeMergesOverlaps(t *testing.T) {
	sel := NewSelectionSet([]Range{
		NewRange(30, 40),
		NewRange(10, 20),
		NewRange(15, 25),
	}, 0)

	if sel.Len() != 2 {
		t.Fatalf("expected 2 ranges after merge, got %d", sel.Len())
	}
	if sel.Get(0).Min() != 10 || sel.Get(0).Max() != 25 {
		t.Errorf("expected merged [10,25), got [%d,%d)", sel.Get(0).Min(), sel.Get(0).Max())
	}
	if sel.Get(1).Min() != 30 || sel.Get(1).Max() != 40 {
		t.Errorf("expected [30,40), got [%d,%d)", sel.Get(1).Min(), sel.Get(1).Max())
	}
}

func TestSelectionNormalizeKeepsTouchingSeparate(t *testing.T) {
	sel := NewSelectionSet([]Range{
		NewRange(0, 10),
		NewRange(10, 20),
	}, 0)

	if sel.Len() != 2 {
		t.Errorf("Normalize should not merge merely-touching ranges, got %d", sel.Len())
	}
}

func TestSelectionMergeOverlapsAndAdjacent(t *testing.T) {
	sel := SelectionSet{ranges: []Range{NewRange(0, 10), NewRange(11, 20), NewRange(21, 30)}, primary: 0}
	merged := sel.MergeOverlapsAndAdjacent()

	if merged.Len() != 1 {
		t.Fatalf("expected 1 merged range, got %d", merged.Len())
	}
	if merged.Get(0).Min() != 0 || merged.Get(0).Max() != 30 {
		t.Errorf("expected [0,30), got [%d,%d)", merged.Get(0).Min(), merged.Get(0).Max())
	}
}

func TestSelectionPrimaryTracksMerge(t *testing.T) {
	sel := NewSelectionSet([]Range{
		NewRange(10, 20),
		NewRange(15, 25),
	}, 1)

	if sel.Len() != 1 {
		t.Fatalf("expected merge, got %d ranges", sel.Len())
	}
	if sel.PrimaryIndex() != 0 {
		t.Errorf("merged range containing the primary should become primary, got index %d", sel.PrimaryIndex())
	}
}

func TestSelectionRotate(t *testing.T) {
	sel := NewSelectionSet([]Range{
		NewPointRange(10),
		NewPointRange(50),
		NewPointRange(90),
	}, 0)

	next := sel.RotateForward()
	if next.PrimaryIndex() != 1 {
		t.Errorf("expected primary index 1, got %d", next.PrimaryIndex())
	}

	prev := sel.RotateBackward()
	if prev.PrimaryIndex() != sel.Len()-1 {
		t.Errorf("expected wraparound to last index, got %d", prev.PrimaryIndex())
	}
}

func TestSelectionClampAndCollapseAll(t *testing.T) {
	sel := NewSelectionSet([]Range{NewRange(10, 60)}, 0)
	clamped := sel.Clamp(50)
	if clamped.Get(0).Max() != 50 {
		t.Errorf("expected clamp to 50, got %d", clamped.Get(0).Max())
	}

	collapsed := clamped.CollapseAll()
	if !collapsed.Get(0).IsEmpty() {
		t.Error("expected collapsed range to be empty")
	}
}

func TestSelectionTryFilterTransformAllDroppedFails(t *testing.T) {
	sel := NewPointSelectionSet(10)
	_, err := sel.TryFilterTransform(func(Range) (Range, bool) { return Range{}, false })
	if err != ErrEmptySelection {
		t.Errorf("expected ErrEmptySelection, got %v", err)
	}
}

func TestSelectionGraphemeAligned(t *testing.T) {
	text := "é" // "e" + combining acute accent: one grapheme, two runes
	sel := NewSelectionSet([]Range{NewRange(0, 1)}, 0)

	aligned := sel.GraphemeAligned(text)
	if aligned.Get(0).Head != 0 {
		t.Errorf("expected head snapped to the lower grapheme boundary at 0 (tie), got %d", aligned.Get(0).Head)
	}
}
