// Package editor provides handlers for text editing operations.
package editor

import (
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/dshills/keystorm/internal/dispatcher/execctx"
	"github.com/dshills/keystorm/internal/dispatcher/handler"
	"github.com/dshills/keystorm/internal/engine/buffer"
	"github.com/dshills/keystorm/internal/engine/cursor"
	"github.com/dshills/keystorm/internal/input"
)

// Action names for delete operations.
const (
	ActionDeleteChar      = "editor.deleteChar"      // x - delete char under cursor
	ActionDeleteCharBack  = "editor.deleteCharBack"  // X - delete char before cursor
	ActionDeleteLine      = "editor.deleteLine"      // dd - delete entire line
	ActionDeleteToEnd     = "editor.deleteToEnd"     // D - delete to end of line
	ActionDeleteSelection = "editor.deleteSelection" // delete selected text
	ActionDeleteWord      = "editor.deleteWord"      // dw - delete word
	ActionDeleteWordBack  = "editor.deleteWordBack"  // db - delete word backward
)

// DeleteHandler handles text deletion operations. Each action computes
// the byte spans to remove against one snapshot of the text, then commits
// them as a single batch: one undo group, one version bump, regardless of
// how many cursors contributed.
type DeleteHandler struct{}

// NewDeleteHandler creates a new delete handler.
func NewDeleteHandler() *DeleteHandler {
	return &DeleteHandler{}
}

// Namespace returns the editor namespace.
func (h *DeleteHandler) Namespace() string {
	return "editor"
}

// CanHandle returns true if this handler can process the action.
func (h *DeleteHandler) CanHandle(actionName string) bool {
	switch actionName {
	case ActionDeleteChar, ActionDeleteCharBack, ActionDeleteLine,
		ActionDeleteToEnd, ActionDeleteSelection, ActionDeleteWord,
		ActionDeleteWordBack:
		return true
	}
	return false
}

// HandleAction processes a delete action.
func (h *DeleteHandler) HandleAction(action input.Action, ctx *execctx.ExecutionContext) handler.Result {
	if err := ctx.ValidateForEdit(); err != nil {
		return handler.Error(err)
	}

	count := ctx.GetCount()

	switch action.Name {
	case ActionDeleteChar:
		return h.deleteChar(ctx, count)
	case ActionDeleteCharBack:
		return h.deleteCharBack(ctx, count)
	case ActionDeleteLine:
		return h.deleteLine(ctx, count)
	case ActionDeleteToEnd:
		return h.deleteToEnd(ctx)
	case ActionDeleteSelection:
		return h.deleteSelection(ctx)
	case ActionDeleteWord:
		return h.deleteWord(ctx, count)
	case ActionDeleteWordBack:
		return h.deleteWordBack(ctx, count)
	default:
		return handler.Errorf("unknown delete action: %s", action.Name)
	}
}

// deleteChar deletes count characters at cursor position (like 'x' in Vim).
func (h *DeleteHandler) deleteChar(ctx *execctx.ExecutionContext, count int) handler.Result {
	text := ctx.Text.Text()
	textLen := buffer.ByteOffset(len(text))

	spans := spansFromCursors(ctx, func(sel cursor.Selection) cursor.Span {
		start := sel.Head
		end := start
		for i := 0; i < count && end < textLen; i++ {
			end = nextRuneEndUTF8(text, end, textLen)
		}
		return cursor.Span{Start: start, End: end}
	})

	return commitDeletes(ctx, text, spans, false)
}

// deleteCharBack deletes count characters before cursor (like 'X' in Vim).
func (h *DeleteHandler) deleteCharBack(ctx *execctx.ExecutionContext, count int) handler.Result {
	text := ctx.Text.Text()

	spans := spansFromCursors(ctx, func(sel cursor.Selection) cursor.Span {
		end := sel.Head
		start := end
		for j := 0; j < count && start > 0; j++ {
			start = prevRuneStartUTF8(text, start)
		}
		return cursor.Span{Start: start, End: end}
	})

	return commitDeletes(ctx, text, spans, false)
}

// deleteLine deletes count lines including the current line (like 'dd' in Vim).
func (h *DeleteHandler) deleteLine(ctx *execctx.ExecutionContext, count int) handler.Result {
	textAccess := ctx.Text
	lineCount := textAccess.LineCount()
	if lineCount == 0 {
		return handler.NoOp()
	}
	text := textAccess.Text()

	spans := spansFromCursors(ctx, func(sel cursor.Selection) cursor.Span {
		point := textAccess.OffsetToPoint(sel.Head)
		startLine := point.Line
		endLine := startLine + uint32(count)
		if endLine > lineCount {
			endLine = lineCount
		}

		start := textAccess.LineStartOffset(startLine)
		var end buffer.ByteOffset
		if endLine >= lineCount {
			end = textAccess.Len()
		} else {
			end = textAccess.LineStartOffset(endLine)
		}
		return cursor.Span{Start: start, End: end}
	})

	return commitDeletes(ctx, text, spans, true)
}

// deleteToEnd deletes from cursor to end of line (like 'D' in Vim).
func (h *DeleteHandler) deleteToEnd(ctx *execctx.ExecutionContext) handler.Result {
	textAccess := ctx.Text
	text := textAccess.Text()

	spans := spansFromCursors(ctx, func(sel cursor.Selection) cursor.Span {
		point := textAccess.OffsetToPoint(sel.Head)
		return cursor.Span{Start: sel.Head, End: textAccess.LineEndOffset(point.Line)}
	})

	return commitDeletes(ctx, text, spans, false)
}

// deleteSelection deletes the selected text.
func (h *DeleteHandler) deleteSelection(ctx *execctx.ExecutionContext) handler.Result {
	text := ctx.Text.Text()

	spans := spansFromCursors(ctx, func(sel cursor.Selection) cursor.Span {
		return sel.Range()
	})

	return commitDeletes(ctx, text, spans, true)
}

// deleteWord deletes count words forward (like 'dw' in Vim).
func (h *DeleteHandler) deleteWord(ctx *execctx.ExecutionContext, count int) handler.Result {
	text := ctx.Text.Text()
	textLen := buffer.ByteOffset(len(text))

	spans := spansFromCursors(ctx, func(sel cursor.Selection) cursor.Span {
		start := sel.Head
		end := start
		for i := 0; i < count && end < textLen; i++ {
			end = findNextWordStartUTF8(text, end, textLen)
		}
		return cursor.Span{Start: start, End: end}
	})

	return commitDeletes(ctx, text, spans, false)
}

// deleteWordBack deletes count words backward (like 'db' in Vim).
func (h *DeleteHandler) deleteWordBack(ctx *execctx.ExecutionContext, count int) handler.Result {
	text := ctx.Text.Text()

	spans := spansFromCursors(ctx, func(sel cursor.Selection) cursor.Span {
		end := sel.Head
		start := end
		for j := 0; j < count && start > 0; j++ {
			start = findPrevWordStartUTF8(text, start)
		}
		return cursor.Span{Start: start, End: end}
	})

	return commitDeletes(ctx, text, spans, false)
}

// spansFromCursors computes one span per cursor, in ascending order,
// dropping empty spans.
func spansFromCursors(ctx *execctx.ExecutionContext, spanFor func(cursor.Selection) cursor.Span) []cursor.Span {
	selections := ctx.Cursors.All()
	sortSelectionsAscending(selections)

	spans := make([]cursor.Span, 0, len(selections))
	for _, sel := range selections {
		sp := spanFor(sel)
		if sp.Start >= sp.End {
			continue
		}
		spans = append(spans, sp)
	}
	return spans
}

// mergeSpans merges overlapping or touching spans so the resulting list
// is a valid ascending, disjoint change batch (two cursors on the same
// line must not delete it twice).
func mergeSpans(spans []cursor.Span) []cursor.Span {
	if len(spans) < 2 {
		return spans
	}
	sort.Slice(spans, func(i, j int) bool { return spans[i].Start < spans[j].Start })

	out := spans[:1]
	for _, sp := range spans[1:] {
		last := &out[len(out)-1]
		if sp.Start <= last.End {
			if sp.End > last.End {
				last.End = sp.End
			}
			continue
		}
		out = append(out, sp)
	}
	return out
}

// commitDeletes commits the spans as one batch, repositions one cursor at
// each span's (post-image) start, and reports the removed text for the
// register layer. fullRedraw selects whole-screen invalidation for edits
// that change line structure.
func commitDeletes(ctx *execctx.ExecutionContext, text string, spans []cursor.Span, fullRedraw bool) handler.Result {
	spans = mergeSpans(spans)
	if len(spans) == 0 {
		return handler.NoOp()
	}

	changes := make([]execctx.Change, len(spans))
	var deleted strings.Builder
	for i, sp := range spans {
		changes[i] = execctx.Change{Start: sp.Start, End: sp.End}
		deleted.WriteString(text[sp.Start:sp.End])
	}

	result, err := ctx.Edit.Apply(changes, execctx.PolicyEdit)
	if err != nil {
		return handler.Error(err)
	}
	if !result.Applied {
		return handler.NoOpWithMessage("buffer is read-only")
	}

	// One cursor at each span start, shifted by the lengths of the spans
	// removed before it.
	newSelections := make([]cursor.Selection, len(spans))
	var removed buffer.ByteOffset
	var affectedLines []uint32
	for i, sp := range spans {
		at := sp.Start - removed
		newSelections[i] = cursor.NewCursorSelection(at)
		removed += sp.End - sp.Start

		affectedLines = append(affectedLines, ctx.Text.OffsetToPoint(at).Line)
	}
	ctx.Cursors.SetAll(newSelections)

	res := handler.Success().
		WithCommitVersion(result.VersionAfter).
		WithRegisterContent(deleted.String())
	if fullRedraw {
		return res.WithRedraw()
	}
	return res.WithRedrawLines(uniqueLines(affectedLines)...)
}

// nextRuneEndUTF8 returns the offset after the next rune using proper UTF-8 decoding.
func nextRuneEndUTF8(text string, offset, maxOffset buffer.ByteOffset) buffer.ByteOffset {
	if offset >= maxOffset {
		return maxOffset
	}

	textLen := buffer.ByteOffset(len(text))
	if offset >= textLen {
		return textLen
	}

	// Decode the rune at offset to get its size
	_, size := utf8.DecodeRuneInString(text[offset:])
	if size == 0 {
		return offset
	}

	newOffset := offset + buffer.ByteOffset(size)
	if newOffset > maxOffset {
		return maxOffset
	}
	return newOffset
}

// prevRuneStartUTF8 finds the start of the previous rune before offset.
func prevRuneStartUTF8(text string, offset buffer.ByteOffset) buffer.ByteOffset {
	if offset <= 0 {
		return 0
	}

	textLen := buffer.ByteOffset(len(text))
	if offset > textLen {
		offset = textLen
	}

	// DecodeLastRuneInString gives us the rune and its size
	_, size := utf8.DecodeLastRuneInString(text[:offset])
	if size == 0 {
		return 0
	}

	return offset - buffer.ByteOffset(size)
}

// findNextWordStartUTF8 finds the start of the next word using proper UTF-8 iteration.
func findNextWordStartUTF8(text string, offset, maxOffset buffer.ByteOffset) buffer.ByteOffset {
	textLen := buffer.ByteOffset(len(text))
	if offset >= textLen || offset >= maxOffset {
		return min(textLen, maxOffset)
	}

	// Use for-range to properly iterate over runes
	inWord := false
	foundNonWord := false
	inPunct := false

	for i, r := range text[offset:] {
		pos := offset + buffer.ByteOffset(i)
		if pos >= maxOffset {
			return maxOffset
		}

		if isWordChar(r) {
			if foundNonWord || inPunct {
				// Found start of next word
				return pos
			}
			inWord = true
		} else if isWhitespace(r) {
			// Whitespace separates the current run from the next word
			foundNonWord = true
		} else {
			// Punctuation or other non-word char
			if inWord {
				foundNonWord = true
			} else if foundNonWord {
				// Found non-word, non-whitespace after whitespace
				return pos
			} else {
				// Started on punctuation: the next word char starts a word
				inPunct = true
			}
		}
	}

	return min(textLen, maxOffset)
}

// findPrevWordStartUTF8 finds the start of the previous word using proper UTF-8 handling.
func findPrevWordStartUTF8(text string, offset buffer.ByteOffset) buffer.ByteOffset {
	if offset <= 0 {
		return 0
	}

	textLen := buffer.ByteOffset(len(text))
	if offset > textLen {
		offset = textLen
	}

	// Work backwards through the string
	// First skip any trailing whitespace
	for offset > 0 {
		_, size := utf8.DecodeLastRuneInString(text[:offset])
		if size == 0 {
			break
		}
		r, _ := utf8.DecodeRuneInString(text[offset-buffer.ByteOffset(size):])
		if !isWhitespace(r) {
			break
		}
		offset -= buffer.ByteOffset(size)
	}

	// Now skip word characters to find the start of the word
	for offset > 0 {
		_, size := utf8.DecodeLastRuneInString(text[:offset])
		if size == 0 {
			break
		}
		r, _ := utf8.DecodeRuneInString(text[offset-buffer.ByteOffset(size):])
		if !isWordChar(r) {
			break
		}
		offset -= buffer.ByteOffset(size)
	}

	return offset
}

// isWordChar returns true if r is a word character (alphanumeric or underscore).
func isWordChar(r rune) bool {
	return (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') ||
		(r >= '0' && r <= '9') || r == '_'
}

// isWhitespace returns true if r is whitespace.
func isWhitespace(r rune) bool {
	return r == ' ' || r == '\t' || r == '\n' || r == '\r'
}
