package editor

import (
	"github.com/dshills/keystorm/internal/dispatcher/execctx"
	"github.com/dshills/keystorm/internal/dispatcher/handler"
	"github.com/dshills/keystorm/internal/input"
)

// Action names for history operations.
const (
	ActionUndo = "editor.undo" // u - undo last group
	ActionRedo = "editor.redo" // ctrl-r - redo last undone group
)

// HistoryHandler routes undo and redo through the commit layer. Undo and
// redo are themselves commits, so the resulting version lands in the
// result like any edit.
type HistoryHandler struct{}

// NewHistoryHandler creates a new history handler.
func NewHistoryHandler() *HistoryHandler {
	return &HistoryHandler{}
}

// Namespace returns the editor namespace.
func (h *HistoryHandler) Namespace() string {
	return "editor"
}

// CanHandle returns true if this handler can process the action.
func (h *HistoryHandler) CanHandle(actionName string) bool {
	return actionName == ActionUndo || actionName == ActionRedo
}

// HandleAction processes an undo or redo action.
func (h *HistoryHandler) HandleAction(action input.Action, ctx *execctx.ExecutionContext) handler.Result {
	if ctx.Edit == nil {
		return handler.Error(execctx.ErrMissingEdit)
	}

	count := action.Count
	if count < 1 {
		count = 1
	}

	var last execctx.CommitResult
	applied := false
	for i := 0; i < count; i++ {
		var result execctx.CommitResult
		var err error
		if action.Name == ActionUndo {
			result, err = ctx.Edit.Undo()
		} else {
			result, err = ctx.Edit.Redo()
		}
		if err != nil {
			break
		}
		if !result.Applied {
			break
		}
		last = result
		applied = true
	}

	if !applied {
		if action.Name == ActionUndo {
			return handler.NoOpWithMessage("already at oldest change")
		}
		return handler.NoOpWithMessage("already at newest change")
	}

	return handler.Success().
		WithCommitVersion(last.VersionAfter).
		WithRedraw()
}
