package engine

import (
	"testing"

	"github.com/dshills/keystorm/internal/engine/transaction"
)

func insertTx(t *testing.T, at transaction.CharIdx, s string) transaction.Transaction {
	t.Helper()
	tx, err := transaction.New([]transaction.Change{transaction.NewChange(at, at, s)})
	if err != nil {
		t.Fatalf("transaction.New: %v", err)
	}
	return tx
}

func commit(t *testing.T, d *Document, tx transaction.Transaction, undo UndoPolicy, syn SyntaxPolicy) CommitResult {
	t.Helper()
	result, err := d.Commit(EditCommit{Tx: tx, Undo: undo, Syntax: syn}, false)
	if err != nil {
		t.Fatalf("Commit: %v", err)
	}
	return result
}

func docText(d *Document) string {
	content, _ := d.Snapshot()
	return content.String()
}

// fakeTree satisfies SyntaxTree with a controllable incremental-edit
// outcome.
type fakeTree struct {
	ok    bool
	edits int
}

func (f *fakeTree) Edit(transaction.Change) bool {
	f.edits++
	return f.ok
}

func TestCommitBumpsVersionOnce(t *testing.T) {
	d := NewDocument("abc")
	before := d.Version()
	result := commit(t, d, insertTx(t, 3, "d"), Record, SyntaxPolicyNone)
	if !result.Applied {
		t.Fatal("not applied")
	}
	if result.VersionBefore != before || result.VersionAfter != before+1 {
		t.Errorf("versions = %d -> %d", result.VersionBefore, result.VersionAfter)
	}
	if !d.Modified() {
		t.Error("modified flag not set")
	}
}

func TestCommitReadonlyRefused(t *testing.T) {
	d := NewDocument("abc")
	d.SetReadonly(true)
	result := commit(t, d, insertTx(t, 0, "x"), Record, SyntaxPolicyNone)
	if result.Applied {
		t.Fatal("readonly document accepted a commit")
	}
	if docText(d) != "abc" || d.Version() != result.VersionBefore {
		t.Error("state changed on refused commit")
	}
	if d.CanUndo() {
		t.Error("refused commit recorded history")
	}

	// forceAllow overrides the document flag.
	forced, err := d.Commit(EditCommit{Tx: insertTx(t, 0, "x"), Undo: Record}, true)
	if err != nil {
		t.Fatalf("Commit: %v", err)
	}
	if !forced.Applied || docText(d) != "xabc" {
		t.Error("force-allowed commit did not apply")
	}
}

func TestInsertModeGrouping(t *testing.T) {
	// Three merging inserts land in one undo group: a single undo brings
	// back the original text.
	d := NewDocument("hello")
	r1 := commit(t, d, insertTx(t, 5, "A"), MergeWithCurrentGroup, SyntaxPolicyNone)
	r2 := commit(t, d, insertTx(t, 6, "B"), MergeWithCurrentGroup, SyntaxPolicyNone)
	r3 := commit(t, d, insertTx(t, 7, "C"), MergeWithCurrentGroup, SyntaxPolicyNone)

	if docText(d) != "helloABC" {
		t.Fatalf("text = %q", docText(d))
	}
	if !r1.UndoRecorded {
		t.Error("first merging insert should open a group")
	}
	if r2.UndoRecorded || r3.UndoRecorded {
		t.Error("subsequent merging inserts should accrete, not record")
	}
	if d.UndoDepth() != 1 {
		t.Fatalf("undo depth = %d, want 1", d.UndoDepth())
	}

	if _, ok := d.Undo(); !ok {
		t.Fatal("Undo failed")
	}
	if docText(d) != "hello" {
		t.Errorf("after undo = %q", docText(d))
	}
}

func TestBoundaryEndsMergeRun(t *testing.T) {
	d := NewDocument("")
	commit(t, d, insertTx(t, 0, "a"), MergeWithCurrentGroup, SyntaxPolicyNone)
	commit(t, d, insertTx(t, 1, "b"), Boundary, SyntaxPolicyNone)
	commit(t, d, insertTx(t, 2, "c"), MergeWithCurrentGroup, SyntaxPolicyNone)

	// Groups: [a], [b], [c] - the boundary closed the first run, and the
	// third insert opened a fresh one.
	if d.UndoDepth() != 3 {
		t.Fatalf("undo depth = %d, want 3", d.UndoDepth())
	}
	d.Undo()
	if docText(d) != "ab" {
		t.Errorf("after first undo = %q", docText(d))
	}
}

func TestNoUndoBreaksMergeRunWithoutRecording(t *testing.T) {
	d := NewDocument("")
	commit(t, d, insertTx(t, 0, "a"), MergeWithCurrentGroup, SyntaxPolicyNone)
	commit(t, d, insertTx(t, 1, "x"), NoUndo, SyntaxPolicyNone)
	commit(t, d, insertTx(t, 2, "b"), MergeWithCurrentGroup, SyntaxPolicyNone)

	// The bare edit is invisible to history, but it ended the insert run:
	// "b" starts a second group.
	if d.UndoDepth() != 2 {
		t.Fatalf("undo depth = %d, want 2", d.UndoDepth())
	}
}

func TestUndoRedoRoundTrip(t *testing.T) {
	d := NewDocument("base")
	commit(t, d, insertTx(t, 4, "+one"), Record, SyntaxPolicyNone)
	afterCommit := docText(d)

	if _, ok := d.Undo(); !ok {
		t.Fatal("Undo failed")
	}
	if docText(d) != "base" {
		t.Fatalf("after undo = %q", docText(d))
	}
	if !d.CanRedo() {
		t.Fatal("no redo after undo")
	}

	if _, ok := d.Redo(); !ok {
		t.Fatal("Redo failed")
	}
	if docText(d) != afterCommit {
		t.Errorf("after redo = %q, want %q", docText(d), afterCommit)
	}
	if !d.CanUndo() {
		t.Error("redo did not restore the undo group")
	}
}

func TestRecordClearsRedo(t *testing.T) {
	d := NewDocument("")
	commit(t, d, insertTx(t, 0, "a"), Record, SyntaxPolicyNone)
	d.Undo()
	if d.RedoDepth() != 1 {
		t.Fatalf("redo depth = %d", d.RedoDepth())
	}
	commit(t, d, insertTx(t, 0, "b"), Record, SyntaxPolicyNone)
	if d.RedoDepth() != 0 {
		t.Error("new recorded commit did not clear redo")
	}
}

func TestSyntaxPolicyOutcomes(t *testing.T) {
	d := NewDocument("abc")

	if got := commit(t, d, insertTx(t, 0, "x"), NoUndo, SyntaxPolicyNone).SyntaxOutcome; got != SyntaxUnchanged {
		t.Errorf("None outcome = %v", got)
	}
	if got := commit(t, d, insertTx(t, 0, "x"), NoUndo, MarkDirty).SyntaxOutcome; got != SyntaxMarkedDirty {
		t.Errorf("MarkDirty outcome = %v", got)
	}
	if !d.SyntaxDirty() {
		t.Error("dirty flag not set")
	}

	// With a live tree that accepts edits, IncrementalOrDirty succeeds and
	// clears dirty.
	tree := &fakeTree{ok: true}
	d.InstallSyntax(tree, d.Version())
	if got := commit(t, d, insertTx(t, 0, "y"), NoUndo, IncrementalOrDirty).SyntaxOutcome; got != SyntaxIncrementallyEdited {
		t.Errorf("incremental outcome = %v", got)
	}
	if d.SyntaxDirty() {
		t.Error("dirty after successful incremental edit")
	}
	if tree.edits == 0 {
		t.Error("tree never saw the edit")
	}

	// A rejecting tree falls back to dirty.
	tree.ok = false
	if got := commit(t, d, insertTx(t, 0, "z"), NoUndo, IncrementalOrDirty).SyntaxOutcome; got != SyntaxMarkedDirty {
		t.Errorf("fallback outcome = %v", got)
	}
	if !d.SyntaxDirty() {
		t.Error("dirty not set on rejected incremental edit")
	}
}

func TestSyntaxVersionBumpsAcrossUndoRedo(t *testing.T) {
	d := NewDocument("fn main() {}")
	tree := &fakeTree{ok: true}
	d.InstallSyntax(tree, d.Version())
	v := d.SyntaxVersion()

	commit(t, d, insertTx(t, 0, "// "), Record, IncrementalOrDirty)
	if got := d.SyntaxVersion(); got != v+1 {
		t.Fatalf("after commit syntax_version = %d, want %d", got, v+1)
	}
	contentAfterCommit := docText(d)

	d.Undo()
	if got := d.SyntaxVersion(); got != v+2 {
		t.Fatalf("after undo syntax_version = %d, want %d", got, v+2)
	}
	d.Redo()
	if got := d.SyntaxVersion(); got != v+3 {
		t.Fatalf("after redo syntax_version = %d, want %d", got, v+3)
	}
	if docText(d) != contentAfterCommit {
		t.Errorf("content after redo = %q, want %q", docText(d), contentAfterCommit)
	}
}

func TestResetContentClearsEverything(t *testing.T) {
	d := NewDocument("old")
	commit(t, d, insertTx(t, 3, "!"), Record, SyntaxPolicyNone)
	d.InstallSyntax(&fakeTree{ok: true}, d.Version())
	sv := d.SyntaxVersion()
	v := d.Version()

	d.ResetContent("new content")

	if docText(d) != "new content" {
		t.Errorf("content = %q", docText(d))
	}
	if d.Version() != v+1 {
		t.Errorf("version = %d, want %d", d.Version(), v+1)
	}
	if d.CanUndo() || d.CanRedo() {
		t.Error("history survived reset")
	}
	if d.HasSyntax() {
		t.Error("syntax tree survived reset")
	}
	if !d.SyntaxDirty() {
		t.Error("reset did not mark syntax dirty")
	}
	if d.SyntaxVersion() != sv+1 {
		t.Errorf("syntax_version = %d, want %d", d.SyntaxVersion(), sv+1)
	}
}

func TestInstallSyntaxRejectsStaleVersion(t *testing.T) {
	d := NewDocument("abc")
	staleVersion := d.Version()
	commit(t, d, insertTx(t, 0, "x"), NoUndo, SyntaxPolicyNone)

	d.InstallSyntax(&fakeTree{ok: true}, staleVersion)
	if d.HasSyntax() {
		t.Error("stale tree installed")
	}

	d.InstallSyntax(&fakeTree{ok: true}, d.Version())
	if !d.HasSyntax() {
		t.Error("current tree rejected")
	}
}

func TestLSPQueueOnlyWhenTracked(t *testing.T) {
	d := NewDocument("abc")
	commit(t, d, insertTx(t, 0, "x"), NoUndo, SyntaxPolicyNone)
	if n := len(d.DrainPendingLSPChanges()); n != 0 {
		t.Fatalf("untracked document queued %d changes", n)
	}

	d.TrackLSP(true)
	commit(t, d, insertTx(t, 0, "y"), NoUndo, SyntaxPolicyNone)
	commit(t, d, insertTx(t, 0, "z"), NoUndo, SyntaxPolicyNone)
	pending := d.DrainPendingLSPChanges()
	if len(pending) != 2 {
		t.Fatalf("pending = %d, want 2", len(pending))
	}
	if n := len(d.DrainPendingLSPChanges()); n != 0 {
		t.Errorf("drain not destructive: %d left", n)
	}

	d.TrackLSP(false)
	commit(t, d, insertTx(t, 0, "w"), NoUndo, SyntaxPolicyNone)
	if n := len(d.DrainPendingLSPChanges()); n != 0 {
		t.Errorf("untracking left the queue live: %d", n)
	}
}

func TestUndoQueuesLSPChanges(t *testing.T) {
	d := NewDocument("abc")
	d.TrackLSP(true)
	commit(t, d, insertTx(t, 3, "d"), Record, SyntaxPolicyNone)
	d.DrainPendingLSPChanges()

	d.Undo()
	if n := len(d.DrainPendingLSPChanges()); n != 1 {
		t.Errorf("undo queued %d changes, want 1", n)
	}
}
