package editor_test

import (
	"errors"
	"testing"

	"github.com/dshills/keystorm/internal/dispatcher/execctx"
	"github.com/dshills/keystorm/internal/dispatcher/handler"
	editorhandler "github.com/dshills/keystorm/internal/dispatcher/handlers/editor"
	"github.com/dshills/keystorm/internal/input"
)

// historyEdit is an EditAccess fake counting undo/redo calls and
// reporting whether each applied.
type historyEdit struct {
	undoCalls, redoCalls int
	undoLeft, redoLeft   int
	version              uint64
}

func (e *historyEdit) Apply([]execctx.Change, execctx.ApplyPolicy) (execctx.CommitResult, error) {
	return execctx.CommitResult{}, errors.New("not used")
}

func (e *historyEdit) Undo() (execctx.CommitResult, error) {
	e.undoCalls++
	if e.undoLeft == 0 {
		return execctx.CommitResult{Applied: false}, nil
	}
	e.undoLeft--
	e.version++
	return execctx.CommitResult{Applied: true, VersionAfter: e.version}, nil
}

func (e *historyEdit) Redo() (execctx.CommitResult, error) {
	e.redoCalls++
	if e.redoLeft == 0 {
		return execctx.CommitResult{Applied: false}, nil
	}
	e.redoLeft--
	e.version++
	return execctx.CommitResult{Applied: true, VersionAfter: e.version}, nil
}

func TestHistoryHandlerCanHandle(t *testing.T) {
	h := editorhandler.NewHistoryHandler()

	if !h.CanHandle(editorhandler.ActionUndo) || !h.CanHandle(editorhandler.ActionRedo) {
		t.Error("history handler should claim undo and redo")
	}
	if h.CanHandle(editorhandler.ActionInsertText) {
		t.Error("history handler should not claim insert actions")
	}
}

func TestHistoryHandlerUndoWithCount(t *testing.T) {
	edit := &historyEdit{undoLeft: 5, version: 10}
	ctx := execctx.New()
	ctx.Edit = edit

	h := editorhandler.NewHistoryHandler()
	result := h.HandleAction(input.Action{Name: editorhandler.ActionUndo, Count: 3}, ctx)

	if result.Status != handler.StatusOK {
		t.Fatalf("status = %v, want OK", result.Status)
	}
	if edit.undoCalls != 3 {
		t.Errorf("undo calls = %d, want 3", edit.undoCalls)
	}
	if result.CommitVersion != 13 {
		t.Errorf("CommitVersion = %d, want 13", result.CommitVersion)
	}
}

func TestHistoryHandlerUndoExhaustedIsNoOp(t *testing.T) {
	edit := &historyEdit{undoLeft: 0}
	ctx := execctx.New()
	ctx.Edit = edit

	h := editorhandler.NewHistoryHandler()
	result := h.HandleAction(input.Action{Name: editorhandler.ActionUndo}, ctx)

	if result.Status != handler.StatusNoOp {
		t.Errorf("status = %v, want NoOp", result.Status)
	}
}

func TestHistoryHandlerRedoStopsAtBoundary(t *testing.T) {
	edit := &historyEdit{redoLeft: 1}
	ctx := execctx.New()
	ctx.Edit = edit

	h := editorhandler.NewHistoryHandler()
	result := h.HandleAction(input.Action{Name: editorhandler.ActionRedo, Count: 5}, ctx)

	// One redo applies, the second attempt reports nothing left.
	if result.Status != handler.StatusOK {
		t.Fatalf("status = %v, want OK for the applied redo", result.Status)
	}
	if edit.redoCalls != 2 {
		t.Errorf("redo calls = %d, want 2 (applied + boundary probe)", edit.redoCalls)
	}
}

func TestHistoryHandlerRequiresEditCapability(t *testing.T) {
	h := editorhandler.NewHistoryHandler()
	result := h.HandleAction(input.Action{Name: editorhandler.ActionUndo}, execctx.New())

	if result.Status != handler.StatusError {
		t.Errorf("status = %v, want Error without edit capability", result.Status)
	}
}
