package engine

import (
	"testing"

	"github.com/dshills/keystorm/internal/engine/cursor"
)

func TestViewApplyMapsSelection(t *testing.T) {
	d := NewDocument("hello")
	v := NewView(d)
	v.SetSelection(cursor.NewPointSelectionSet(5))

	tx, _, err := v.PrepareInsert("!")
	if err != nil {
		t.Fatalf("PrepareInsert: %v", err)
	}
	result, err := v.Apply(tx, EDIT)
	if err != nil {
		t.Fatalf("Apply: %v", err)
	}
	if !result.Applied {
		t.Fatal("not applied")
	}
	if docText(d) != "hello!" {
		t.Errorf("text = %q", docText(d))
	}
	if v.Cursor() != 6 {
		t.Errorf("cursor = %d, want 6", v.Cursor())
	}
}

func TestReadonlyOverrideOnSplit(t *testing.T) {
	// A view-local readonly override denies edits through that view, and a
	// split view starts without it.
	d := NewDocument("shared")
	b1 := NewView(d)
	b1.SetReadonlyOverride(true)

	tx, _, err := b1.PrepareInsert("x")
	if err != nil {
		t.Fatalf("PrepareInsert: %v", err)
	}
	result, err := b1.Apply(tx, EDIT)
	if err != nil {
		t.Fatalf("Apply: %v", err)
	}
	if result.Applied {
		t.Fatal("override=readonly view applied an edit")
	}
	if docText(d) != "shared" {
		t.Fatalf("document changed: %q", docText(d))
	}

	b2 := b1.Split()
	if _, ok := b2.ReadonlyOverride(); ok {
		t.Fatal("split inherited readonly override")
	}
	tx2, _, err := b2.PrepareInsert("x")
	if err != nil {
		t.Fatalf("PrepareInsert: %v", err)
	}
	result, err = b2.Apply(tx2, EDIT)
	if err != nil {
		t.Fatalf("Apply: %v", err)
	}
	if !result.Applied || docText(d) == "shared" {
		t.Error("split view edit refused")
	}
}

func TestForceAllowOverridesDocumentReadonly(t *testing.T) {
	d := NewDocument("locked")
	d.SetReadonly(true)
	v := NewView(d)

	tx, _, err := v.PrepareInsert("!")
	if err != nil {
		t.Fatalf("PrepareInsert: %v", err)
	}
	result, err := v.Apply(tx, EDIT)
	if err != nil {
		t.Fatalf("Apply: %v", err)
	}
	if result.Applied {
		t.Fatal("readonly document accepted edit without override")
	}

	v.SetReadonlyOverride(false)
	tx, _, err = v.PrepareInsert("!")
	if err != nil {
		t.Fatalf("PrepareInsert: %v", err)
	}
	result, err = v.Apply(tx, EDIT)
	if err != nil {
		t.Fatalf("Apply: %v", err)
	}
	if !result.Applied {
		t.Error("force-allow override did not apply")
	}
}

func TestApplyRemoteBypassesOverride(t *testing.T) {
	// A follower view locked readonly still lands deltas from the sync
	// doc owner.
	d := NewDocument("v0")
	v := NewView(d)
	v.SetReadonlyOverride(true)

	tx, _, err := v.PrepareInsert("+delta")
	if err != nil {
		t.Fatalf("PrepareInsert: %v", err)
	}
	result, err := v.ApplyRemote(tx, BARE)
	if err != nil {
		t.Fatalf("ApplyRemote: %v", err)
	}
	if !result.Applied {
		t.Fatal("remote delta refused by local override")
	}
}

func TestPrepareDeleteSelectionSkipsEmptyRanges(t *testing.T) {
	d := NewDocument("one two three")
	v := NewView(d)
	v.SetSelection(cursor.NewSelectionSet([]cursor.Range{
		{Anchor: 0, Head: 3},  // "one"
		{Anchor: 4, Head: 4},  // empty, skipped
		{Anchor: 8, Head: 13}, // "three"
	}, 0))

	tx, _, err := v.PrepareDeleteSelection()
	if err != nil {
		t.Fatalf("PrepareDeleteSelection: %v", err)
	}
	if len(tx.Changes()) != 2 {
		t.Fatalf("changes = %d, want 2", len(tx.Changes()))
	}
	if _, err := v.Apply(tx, EDIT); err != nil {
		t.Fatalf("Apply: %v", err)
	}
	if docText(d) != " two " {
		t.Errorf("text = %q", docText(d))
	}
}

func TestMultiCursorInsert(t *testing.T) {
	d := NewDocument("aa bb")
	v := NewView(d)
	v.SetSelection(cursor.NewSelectionSet([]cursor.Range{
		{Anchor: 2, Head: 2},
		{Anchor: 5, Head: 5},
	}, 0))

	tx, after, err := v.PrepareInsert("!")
	if err != nil {
		t.Fatalf("PrepareInsert: %v", err)
	}
	if _, err := v.Apply(tx, INSERT); err != nil {
		t.Fatalf("Apply: %v", err)
	}
	if docText(d) != "aa! bb!" {
		t.Errorf("text = %q", docText(d))
	}
	if after.Len() != 2 {
		t.Errorf("post-selection ranges = %d", after.Len())
	}
}

func TestYankSelection(t *testing.T) {
	d := NewDocument("alpha beta gamma")
	v := NewView(d)
	v.SetSelection(cursor.NewSelectionSet([]cursor.Range{
		{Anchor: 0, Head: 5},
		{Anchor: 11, Head: 16},
	}, 0))

	y := v.YankSelection()
	if len(y.Parts) != 2 || y.Parts[0] != "alpha" || y.Parts[1] != "gamma" {
		t.Errorf("parts = %v", y.Parts)
	}
	if y.TotalChars != 10 {
		t.Errorf("total = %d", y.TotalChars)
	}
}

func TestBarePolicyRecordsNoHistory(t *testing.T) {
	d := NewDocument("x")
	v := NewView(d)
	v.SetSelection(cursor.NewPointSelectionSet(1))

	if _, err := v.InsertText("y"); err != nil {
		t.Fatalf("InsertText: %v", err)
	}
	if docText(d) != "xy" {
		t.Errorf("text = %q", docText(d))
	}
	if d.CanUndo() {
		t.Error("BARE policy recorded undo history")
	}
	if d.SyntaxDirty() {
		t.Error("BARE policy touched syntax state")
	}
}

func TestPasteBeforeAndAfter(t *testing.T) {
	d := NewDocument("abc")
	v := NewView(d)
	v.SetSelection(cursor.NewSelectionSet([]cursor.Range{{Anchor: 1, Head: 1}}, 0))

	if _, err := v.PasteBefore("<"); err != nil {
		t.Fatalf("PasteBefore: %v", err)
	}
	if docText(d) != "a<bc" {
		t.Errorf("after PasteBefore = %q", docText(d))
	}

	v.SetSelection(cursor.NewSelectionSet([]cursor.Range{{Anchor: 0, Head: 2}}, 0))
	if _, err := v.PasteAfter(">"); err != nil {
		t.Fatalf("PasteAfter: %v", err)
	}
	if docText(d) != "a<b>c" {
		t.Errorf("after PasteAfter = %q", docText(d))
	}
}
