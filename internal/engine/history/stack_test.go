package history

import (
	"testing"

	"github.com/dshills/keystorm/internal/engine/cursor"
	"github.com/dshills/keystorm/internal/engine/transaction"
)

func mustTx(t *testing.T, changes ...transaction.Change) transaction.Transaction {
	t.Helper()
	tx, err := transaction.New(changes)
	if err != nil {
		t.Fatalf("transaction.New: %v", err)
	}
	return tx
}

func TestPushRecordClearsRedo(t *testing.T) {
	s := NewStack(10)
	e1 := Entry{SelectionBefore: cursor.NewPointSelectionSet(0), SelectionAfter: cursor.NewPointSelectionSet(1)}
	s.PushRecord(e1)

	if _, ok := s.PopUndoGroup(); !ok {
		t.Fatal("expected an undo group")
	}
	if !s.CanRedo() {
		t.Fatal("expected redo available after undo")
	}

	s.PushRecord(e1)
	if s.CanRedo() {
		t.Error("Record should clear the redo stack")
	}
}

func TestPushOrMergeInsertMergesWhileActive(t *testing.T) {
	s := NewStack(10)
	e1 := Entry{Forward: mustTx(t, transaction.NewChange(0, 0, "a"))}
	e2 := Entry{Forward: mustTx(t, transaction.NewChange(1, 1, "b"))}

	if merged := s.PushOrMergeInsert(e1); merged {
		t.Error("first insert should start a new group, not merge")
	}
	if merged := s.PushOrMergeInsert(e2); !merged {
		t.Error("second insert should merge into the active group")
	}

	entries, ok := s.PopUndoGroup()
	if !ok || len(entries) != 2 {
		t.Fatalf("expected one group of 2 entries, got %d (ok=%v)", len(entries), ok)
	}
}

func TestPushBoundaryEndsMergeRun(t *testing.T) {
	s := NewStack(10)
	insertEntry := Entry{Forward: mustTx(t, transaction.NewChange(0, 0, "a"))}
	s.PushOrMergeInsert(insertEntry)

	s.PushBoundary(Entry{})
	s.PushOrMergeInsert(insertEntry)

	if s.UndoCount() != 3 {
		t.Errorf("expected 3 groups (insert, boundary, insert), got %d", s.UndoCount())
	}
}

func TestUndoRedoRoundTrip(t *testing.T) {
	s := NewStack(10)
	fwd := mustTx(t, transaction.NewChange(0, 0, "hi"))
	inv := mustTx(t, transaction.NewDeletion(0, 2))

	s.PushRecord(Entry{Forward: fwd, Inverse: inv})

	entries, ok := s.PopUndoGroup()
	if !ok || len(entries) != 1 {
		t.Fatalf("expected 1 undo entry, got %d", len(entries))
	}
	if !s.CanRedo() {
		t.Fatal("expected redo available")
	}

	redone, ok := s.PopRedoGroup()
	if !ok || len(redone) != 1 {
		t.Fatalf("expected 1 redo entry, got %d", len(redone))
	}
	if !s.CanUndo() {
		t.Fatal("expected undo available again after redo")
	}
}

func TestMaxGroupsTrims(t *testing.T) {
	s := NewStack(2)
	s.PushRecord(Entry{})
	s.PushRecord(Entry{})
	s.PushRecord(Entry{})

	if s.UndoCount() != 2 {
		t.Errorf("expected trimmed to 2 groups, got %d", s.UndoCount())
	}
}
