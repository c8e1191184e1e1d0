// Package editor provides handlers for text editing operations.
package editor

import (
	"strings"
	"unicode/utf8"

	"github.com/dshills/keystorm/internal/dispatcher/execctx"
	"github.com/dshills/keystorm/internal/dispatcher/handler"
	"github.com/dshills/keystorm/internal/engine/buffer"
	"github.com/dshills/keystorm/internal/engine/cursor"
	"github.com/dshills/keystorm/internal/input"
)

// Action names for yank/paste operations.
const (
	ActionYankSelection = "editor.yankSelection" // y - yank selection
	ActionYankLine      = "editor.yankLine"      // yy - yank entire line
	ActionYankToEnd     = "editor.yankToEnd"     // Y - yank to end of line
	ActionYankWord      = "editor.yankWord"      // yw - yank word
	ActionPasteAfter    = "editor.pasteAfter"    // p - paste after cursor
	ActionPasteBefore   = "editor.pasteBefore"   // P - paste before cursor
)

// YankHandler handles yank (copy) and paste operations. Yanks only read;
// pastes commit every cursor's insertion as one batch through the edit
// capability.
type YankHandler struct{}

// NewYankHandler creates a new yank handler.
func NewYankHandler() *YankHandler {
	return &YankHandler{}
}

// Namespace returns the editor namespace.
func (h *YankHandler) Namespace() string {
	return "editor"
}

// CanHandle returns true if this handler can process the action.
func (h *YankHandler) CanHandle(actionName string) bool {
	switch actionName {
	case ActionYankSelection, ActionYankLine, ActionYankToEnd,
		ActionYankWord, ActionPasteAfter, ActionPasteBefore:
		return true
	}
	return false
}

// HandleAction processes a yank/paste action.
func (h *YankHandler) HandleAction(action input.Action, ctx *execctx.ExecutionContext) handler.Result {
	// Yank operations only need text and cursors
	if ctx.Text == nil {
		return handler.Error(execctx.ErrMissingText)
	}
	if ctx.Cursors == nil {
		return handler.Error(execctx.ErrMissingCursors)
	}

	count := ctx.GetCount()

	switch action.Name {
	case ActionYankSelection:
		return h.yankSelection(ctx)
	case ActionYankLine:
		return h.yankLine(ctx, count)
	case ActionYankToEnd:
		return h.yankToEnd(ctx)
	case ActionYankWord:
		return h.yankWord(ctx, count)
	case ActionPasteAfter:
		return h.pasteAfter(ctx, action.Args.Text, count)
	case ActionPasteBefore:
		return h.pasteBefore(ctx, action.Args.Text, count)
	default:
		return handler.Errorf("unknown yank action: %s", action.Name)
	}
}

// yankSelection yanks the selected text.
// For multi-cursor, accumulates text from all selections in buffer order.
func (h *YankHandler) yankSelection(ctx *execctx.ExecutionContext) handler.Result {
	text := ctx.Text

	selections := ctx.Cursors.All()
	sortSelectionsAscending(selections)

	var yanked strings.Builder
	for _, sel := range selections {
		if sel.IsEmpty() {
			continue
		}
		r := sel.Range()
		yanked.WriteString(text.TextRange(r.Start, r.End))
	}

	if yanked.Len() == 0 {
		return handler.NoOp()
	}
	return handler.Success().WithRegisterContent(yanked.String())
}

// yankLine yanks count lines including the current line.
func (h *YankHandler) yankLine(ctx *execctx.ExecutionContext, count int) handler.Result {
	text := ctx.Text
	lineCount := text.LineCount()
	if lineCount == 0 {
		return handler.NoOp()
	}

	selections := ctx.Cursors.All()
	sortSelectionsAscending(selections)

	var yanked strings.Builder
	for _, sel := range selections {
		point := text.OffsetToPoint(sel.Head)
		startLine := point.Line
		endLine := startLine + uint32(count)
		if endLine > lineCount {
			endLine = lineCount
		}

		start := text.LineStartOffset(startLine)
		var end buffer.ByteOffset
		if endLine >= lineCount {
			end = text.Len()
		} else {
			end = text.LineStartOffset(endLine)
		}

		yanked.WriteString(text.TextRange(start, end))
	}

	if yanked.Len() == 0 {
		return handler.NoOp()
	}
	return handler.Success().
		WithRegisterContent(yanked.String()).
		WithLinewise(true)
}

// yankToEnd yanks from cursor to end of line.
func (h *YankHandler) yankToEnd(ctx *execctx.ExecutionContext) handler.Result {
	text := ctx.Text

	selections := ctx.Cursors.All()
	sortSelectionsAscending(selections)

	var yanked strings.Builder
	for _, sel := range selections {
		point := text.OffsetToPoint(sel.Head)
		end := text.LineEndOffset(point.Line)
		if sel.Head >= end {
			continue
		}
		yanked.WriteString(text.TextRange(sel.Head, end))
	}

	if yanked.Len() == 0 {
		return handler.NoOp()
	}
	return handler.Success().WithRegisterContent(yanked.String())
}

// yankWord yanks count words forward.
func (h *YankHandler) yankWord(ctx *execctx.ExecutionContext, count int) handler.Result {
	text := ctx.Text.Text()
	textLen := buffer.ByteOffset(len(text))

	selections := ctx.Cursors.All()
	sortSelectionsAscending(selections)

	var yanked strings.Builder
	for _, sel := range selections {
		start := sel.Head
		end := start
		for i := 0; i < count && end < textLen; i++ {
			end = findNextWordStartUTF8(text, end, textLen)
		}
		if start == end {
			continue
		}
		yanked.WriteString(text[start:end])
	}

	if yanked.Len() == 0 {
		return handler.NoOp()
	}
	return handler.Success().WithRegisterContent(yanked.String())
}

// pasteAfter pastes text after cursor position.
func (h *YankHandler) pasteAfter(ctx *execctx.ExecutionContext, text string, count int) handler.Result {
	return h.paste(ctx, text, count, true)
}

// pasteBefore pastes text before cursor position.
func (h *YankHandler) pasteBefore(ctx *execctx.ExecutionContext, text string, count int) handler.Result {
	return h.paste(ctx, text, count, false)
}

// paste computes one insertion point per cursor against a single snapshot
// and commits them as one batch. Linewise content (trailing newline)
// lands at line boundaries; characterwise content at the cursor, shifted
// past the current character when pasting after.
func (h *YankHandler) paste(ctx *execctx.ExecutionContext, text string, count int, after bool) handler.Result {
	if text == "" {
		return handler.NoOp()
	}
	if err := ctx.ValidateForEdit(); err != nil {
		return handler.Error(err)
	}

	textAccess := ctx.Text
	engineText := textAccess.Text()
	engineLen := buffer.ByteOffset(len(engineText))
	isLinewise := text[len(text)-1] == '\n'

	basePaste := strings.Repeat(text, count)

	selections := ctx.Cursors.All()
	sortSelectionsAscending(selections)

	changes := make([]execctx.Change, 0, len(selections))
	linewiseAtCursor := make([]bool, 0, len(selections))
	for _, sel := range selections {
		insertOffset := sel.Head
		pasteText := basePaste

		switch {
		case isLinewise && after:
			point := textAccess.OffsetToPoint(sel.Head)
			if point.Line+1 < textAccess.LineCount() {
				insertOffset = textAccess.LineStartOffset(point.Line + 1)
			} else {
				insertOffset = engineLen
				if engineLen > 0 && engineText[engineLen-1] != '\n' {
					pasteText = "\n" + pasteText
				}
			}
		case isLinewise:
			point := textAccess.OffsetToPoint(sel.Head)
			insertOffset = textAccess.LineStartOffset(point.Line)
		case after && insertOffset < engineLen:
			// Characterwise paste-after lands past the current character.
			_, size := utf8.DecodeRuneInString(engineText[insertOffset:])
			insertOffset += buffer.ByteOffset(size)
		}

		changes = append(changes, execctx.Change{Start: insertOffset, End: insertOffset, Text: pasteText})
		linewiseAtCursor = append(linewiseAtCursor, isLinewise)
	}

	result, err := ctx.Edit.Apply(changes, execctx.PolicyEdit)
	if err != nil {
		return handler.Error(err)
	}
	if !result.Applied {
		return handler.NoOpWithMessage("buffer is read-only")
	}

	// Linewise pastes leave the cursor at the start of the pasted block;
	// characterwise pastes at its end.
	newSelections := make([]cursor.Selection, len(changes))
	var delta buffer.ByteOffset
	var affectedLines []uint32
	for i, c := range changes {
		at := c.Start + delta
		if !linewiseAtCursor[i] {
			at += buffer.ByteOffset(len(c.Text))
		}
		newSelections[i] = cursor.NewCursorSelection(at)
		delta += buffer.ByteOffset(len(c.Text))

		affectedLines = append(affectedLines, ctx.Text.OffsetToPoint(at).Line)
	}
	ctx.Cursors.SetAll(newSelections)

	return handler.Success().
		WithCommitVersion(result.VersionAfter).
		WithRedrawLines(uniqueLines(affectedLines)...)
}
