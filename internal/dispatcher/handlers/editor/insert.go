// Package editor provides handlers for text editing operations.
package editor

import (
	"sort"

	"github.com/dshills/keystorm/internal/dispatcher/execctx"
	"github.com/dshills/keystorm/internal/dispatcher/handler"
	"github.com/dshills/keystorm/internal/engine/buffer"
	"github.com/dshills/keystorm/internal/engine/cursor"
	"github.com/dshills/keystorm/internal/input"
)

// Action names for insert operations.
const (
	ActionInsertChar      = "editor.insertChar"
	ActionInsertText      = "editor.insertText"
	ActionInsertNewline   = "editor.insertNewline"
	ActionInsertLineAbove = "editor.insertLineAbove"
	ActionInsertLineBelow = "editor.insertLineBelow"
	ActionInsertTab       = "editor.insertTab"
)

// InsertHandler handles text insertion operations. Every mutation is a
// single batch committed through the context's edit capability; the
// handler itself only computes ranges and replacement text.
type InsertHandler struct{}

// NewInsertHandler creates a new insert handler.
func NewInsertHandler() *InsertHandler {
	return &InsertHandler{}
}

// Namespace returns the editor namespace.
func (h *InsertHandler) Namespace() string {
	return "editor"
}

// CanHandle returns true if this handler can process the action.
func (h *InsertHandler) CanHandle(actionName string) bool {
	switch actionName {
	case ActionInsertChar, ActionInsertText, ActionInsertNewline,
		ActionInsertLineAbove, ActionInsertLineBelow, ActionInsertTab:
		return true
	}
	return false
}

// HandleAction processes an insert action.
func (h *InsertHandler) HandleAction(action input.Action, ctx *execctx.ExecutionContext) handler.Result {
	if err := ctx.ValidateForEdit(); err != nil {
		return handler.Error(err)
	}

	switch action.Name {
	case ActionInsertChar:
		return h.insertChar(ctx, action.Args.Text)
	case ActionInsertText:
		return h.insertText(ctx, action.Args.Text)
	case ActionInsertNewline:
		return h.insertNewline(ctx)
	case ActionInsertLineAbove:
		return h.insertLineAbove(ctx)
	case ActionInsertLineBelow:
		return h.insertLineBelow(ctx)
	case ActionInsertTab:
		return h.insertTab(ctx)
	default:
		return handler.Errorf("unknown insert action: %s", action.Name)
	}
}

// insertChar inserts a single character at all cursor positions.
func (h *InsertHandler) insertChar(ctx *execctx.ExecutionContext, text string) handler.Result {
	if text == "" {
		return handler.NoOp()
	}

	return h.insertText(ctx, text)
}

// insertText inserts text at all cursor positions, replacing any selected
// spans. All cursors commit as one batch: one undo group, one version.
func (h *InsertHandler) insertText(ctx *execctx.ExecutionContext, text string) handler.Result {
	if text == "" {
		return handler.NoOp()
	}

	cursors := ctx.Cursors

	selections := cursors.All()
	sortSelectionsAscending(selections)

	changes := make([]execctx.Change, len(selections))
	for i, sel := range selections {
		r := sel.Range()
		changes[i] = execctx.Change{Start: r.Start, End: r.End, Text: text}
	}

	result, err := ctx.Edit.Apply(changes, execctx.PolicyInsert)
	if err != nil {
		return handler.Error(err)
	}
	if !result.Applied {
		return handler.NoOpWithMessage("buffer is read-only")
	}

	// Place each cursor after its insertion, shifting by the cumulative
	// length delta of the changes before it.
	newSelections := make([]cursor.Selection, len(selections))
	var delta buffer.ByteOffset
	textLen := buffer.ByteOffset(len(text))
	var affectedLines []uint32
	for i, sel := range selections {
		r := sel.Range()
		at := r.Start + delta + textLen
		newSelections[i] = cursor.NewCursorSelection(at)
		delta += textLen - (r.End - r.Start)

		affectedLines = append(affectedLines, ctx.Text.OffsetToPoint(at).Line)
	}
	cursors.SetAll(newSelections)

	return handler.Success().
		WithCommitVersion(result.VersionAfter).
		WithRedrawLines(uniqueLines(affectedLines)...)
}

// insertNewline inserts a newline at all cursor positions.
func (h *InsertHandler) insertNewline(ctx *execctx.ExecutionContext) handler.Result {
	return h.insertText(ctx, "\n")
}

// insertLineAbove opens a new line above each cursor's line and moves the
// cursor to it.
func (h *InsertHandler) insertLineAbove(ctx *execctx.ExecutionContext) handler.Result {
	return h.openLine(ctx, true)
}

// insertLineBelow opens a new line below each cursor's line and moves the
// cursor to it.
func (h *InsertHandler) insertLineBelow(ctx *execctx.ExecutionContext) handler.Result {
	return h.openLine(ctx, false)
}

// openLine inserts a newline at the start (above) or end (below) of each
// cursor's line as one committed batch, then lands every cursor on its
// fresh line.
func (h *InsertHandler) openLine(ctx *execctx.ExecutionContext, above bool) handler.Result {
	text := ctx.Text
	cursors := ctx.Cursors

	selections := cursors.All()
	sortSelectionsAscending(selections)

	changes := make([]execctx.Change, 0, len(selections))
	cursorAt := make([]buffer.ByteOffset, 0, len(selections))
	lastOffset := buffer.ByteOffset(-1)
	for _, sel := range selections {
		point := text.OffsetToPoint(sel.Head)
		var at buffer.ByteOffset
		if above {
			at = text.LineStartOffset(point.Line)
		} else {
			at = text.LineEndOffset(point.Line)
		}
		if at == lastOffset {
			// Two cursors on the same line open a single new line.
			continue
		}
		lastOffset = at
		changes = append(changes, execctx.Change{Start: at, End: at, Text: "\n"})
		cursorAt = append(cursorAt, at)
	}

	result, err := ctx.Edit.Apply(changes, execctx.PolicyEdit)
	if err != nil {
		return handler.Error(err)
	}
	if !result.Applied {
		return handler.NoOpWithMessage("buffer is read-only")
	}

	newSelections := make([]cursor.Selection, len(cursorAt))
	var delta buffer.ByteOffset
	for i, at := range cursorAt {
		if above {
			// Cursor sits on the new empty line, before the inserted \n.
			newSelections[i] = cursor.NewCursorSelection(at + delta)
		} else {
			// Cursor sits at the start of the line after the inserted \n.
			newSelections[i] = cursor.NewCursorSelection(at + delta + 1)
		}
		delta++
	}
	cursors.SetAll(newSelections)

	return handler.Success().
		WithCommitVersion(result.VersionAfter).
		WithRedraw().WithModeChange("insert")
}

// insertTab inserts a tab or spaces at cursor positions.
func (h *InsertHandler) insertTab(ctx *execctx.ExecutionContext) handler.Result {
	// TODO: Check editor config for tab vs spaces preference
	// For now, insert a tab character
	return h.insertText(ctx, "\t")
}

// sortSelectionsAscending sorts selections by position in ascending order,
// the order the batch-apply API expects changes in.
func sortSelectionsAscending(selections []cursor.Selection) {
	sort.Slice(selections, func(i, j int) bool {
		return selections[i].Range().Start < selections[j].Range().Start
	})
}

// uniqueLines returns unique line numbers from a slice.
func uniqueLines(lines []uint32) []uint32 {
	if len(lines) == 0 {
		return nil
	}

	seen := make(map[uint32]bool)
	result := make([]uint32, 0, len(lines))

	for _, line := range lines {
		if !seen[line] {
			seen[line] = true
			result = append(result, line)
		}
	}

	return result
}
