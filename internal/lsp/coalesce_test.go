package lsp

import (
	"testing"

	"github.com/dshills/keystorm/internal/engine/rope"
)

func pos(line, char int) Position {
	return Position{Line: line, Character: char}
}

func rng(sl, sc, el, ec int) Range {
	return Range{Start: pos(sl, sc), End: pos(el, ec)}
}

func insertAt(line, char int, text string) DocumentChange {
	return DocumentChange{Range: rng(line, char, line, char), NewText: text}
}

func deleteRange(sl, sc, el, ec int) DocumentChange {
	return DocumentChange{Range: rng(sl, sc, el, ec)}
}

// applyAll applies a sequential change list to content, failing the test
// on conversion errors.
func applyAll(t *testing.T, content string, changes []DocumentChange) string {
	t.Helper()
	r := rope.FromString(content)
	for _, c := range changes {
		var err error
		r, err = applyCanonicalChange(r, c)
		if err != nil {
			t.Fatalf("applyCanonicalChange(%v): %v", c, err)
		}
	}
	return r.String()
}

// assertSound verifies the coalesced list produces the same final text as
// the original when both are applied sequentially.
func assertSound(t *testing.T, content string, original []DocumentChange) []DocumentChange {
	t.Helper()
	coalesced := CoalesceChanges(original)
	want := applyAll(t, content, original)
	got := applyAll(t, content, coalesced)
	if got != want {
		t.Fatalf("coalescing changed the result:\noriginal:  %q\ncoalesced: %q", want, got)
	}
	return coalesced
}

func TestCoalesceEmptyAndSingle(t *testing.T) {
	if got := CoalesceChanges(nil); len(got) != 0 {
		t.Errorf("CoalesceChanges(nil) = %v", got)
	}
	single := []DocumentChange{insertAt(0, 0, "x")}
	if got := CoalesceChanges(single); len(got) != 1 || got[0] != single[0] {
		t.Errorf("single change altered: %v", got)
	}
}

func TestCoalesceInsertInsertConsecutive(t *testing.T) {
	changes := []DocumentChange{
		insertAt(0, 5, "foo"),
		insertAt(0, 8, "bar"),
	}
	coalesced := assertSound(t, "hello world", changes)
	if len(coalesced) != 1 {
		t.Fatalf("expected 1 change, got %d", len(coalesced))
	}
	if coalesced[0].NewText != "foobar" || coalesced[0].Range != rng(0, 5, 0, 5) {
		t.Errorf("merged insert wrong: %+v", coalesced[0])
	}
}

func TestCoalesceInsertInsertNonAdjacent(t *testing.T) {
	changes := []DocumentChange{
		insertAt(0, 5, "foo"),
		insertAt(0, 2, "bar"),
	}
	coalesced := assertSound(t, "hello world", changes)
	if len(coalesced) != 2 {
		t.Errorf("non-adjacent inserts merged: %v", coalesced)
	}
}

func TestCoalesceInsertWithNewlineAdvancesLine(t *testing.T) {
	changes := []DocumentChange{
		insertAt(0, 5, "ab\ncd"),
		insertAt(1, 2, "ef"),
	}
	coalesced := assertSound(t, "hello world", changes)
	if len(coalesced) != 1 {
		t.Fatalf("expected newline-spanning merge, got %v", coalesced)
	}
	if coalesced[0].NewText != "ab\ncdef" {
		t.Errorf("merged text = %q", coalesced[0].NewText)
	}
}

func TestCoalesceDeleteInsertReplacement(t *testing.T) {
	// The S2 scenario: Delete(1:5..1:10) then Insert(1:5, "new") over a
	// document whose line 1 has "old" in columns 5..10 (with padding).
	content := "zero\nfoo  old   bar"
	changes := []DocumentChange{
		deleteRange(1, 5, 1, 10),
		insertAt(1, 5, "new"),
	}
	coalesced := assertSound(t, content, changes)
	if len(coalesced) != 1 {
		t.Fatalf("expected 1 replacement, got %d", len(coalesced))
	}
	want := DocumentChange{Range: rng(1, 5, 1, 10), NewText: "new"}
	if coalesced[0] != want {
		t.Errorf("replacement = %+v, want %+v", coalesced[0], want)
	}
}

func TestCoalesceDeleteDeleteSameStart(t *testing.T) {
	changes := []DocumentChange{
		deleteRange(0, 5, 0, 10),
		deleteRange(0, 5, 0, 8),
	}
	coalesced := assertSound(t, "0123456789abcdef", changes)
	if len(coalesced) != 1 {
		t.Fatalf("expected merged delete, got %v", coalesced)
	}
	if coalesced[0].Range != rng(0, 5, 0, 13) || coalesced[0].NewText != "" {
		t.Errorf("merged delete = %+v", coalesced[0])
	}
}

func TestCoalesceMultiLineDeleteNotMerged(t *testing.T) {
	changes := []DocumentChange{
		deleteRange(0, 2, 1, 1),
		deleteRange(0, 2, 0, 3),
	}
	coalesced := assertSound(t, "abcdef\nghijkl\nmnopqr", changes)
	if len(coalesced) != 2 {
		t.Errorf("multi-line delete was merged: %v", coalesced)
	}
}

func TestCoalesceInsertDeleteCancels(t *testing.T) {
	changes := []DocumentChange{
		insertAt(0, 3, "foo"),
		deleteRange(0, 3, 0, 6),
	}
	coalesced := assertSound(t, "abcdef", changes)
	if len(coalesced) != 1 {
		t.Fatalf("expected single empty insert, got %v", coalesced)
	}
	if coalesced[0].NewText != "" || !coalesced[0].IsInsert() {
		t.Errorf("cancellation = %+v", coalesced[0])
	}
}

func TestCoalesceInsertPartialDeleteKeepsSuffix(t *testing.T) {
	changes := []DocumentChange{
		insertAt(0, 3, "world"),
		deleteRange(0, 3, 0, 5),
	}
	coalesced := assertSound(t, "abcdef", changes)
	if len(coalesced) != 1 {
		t.Fatalf("expected single insert, got %v", coalesced)
	}
	if coalesced[0].NewText != "rld" {
		t.Errorf("suffix = %q, want %q", coalesced[0].NewText, "rld")
	}
}

func TestCoalesceInsertOverDeleteNotMerged(t *testing.T) {
	// Deleting more than was inserted extends into original text.
	changes := []DocumentChange{
		insertAt(0, 3, "xy"),
		deleteRange(0, 3, 0, 7),
	}
	coalesced := assertSound(t, "abcdef", changes)
	if len(coalesced) != 2 {
		t.Errorf("over-delete was merged: %v", coalesced)
	}
}

func TestCoalesceLongRunSoundness(t *testing.T) {
	// A typing burst with corrections: inserts accreting, a backspace, a
	// deletion elsewhere. The exact merge shape matters less than the
	// equivalence of outcomes.
	changes := []DocumentChange{
		insertAt(0, 0, "f"),
		insertAt(0, 1, "u"),
		insertAt(0, 2, "nc"),
		deleteRange(0, 0, 0, 4),
		insertAt(0, 0, "type "),
		deleteRange(1, 0, 1, 3),
	}
	coalesced := assertSound(t, "hello\nworld\n", changes)
	if len(coalesced) >= len(changes) {
		t.Errorf("no payload reduction: %d -> %d", len(changes), len(coalesced))
	}
}
