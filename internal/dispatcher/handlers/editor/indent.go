// Package editor provides handlers for text editing operations.
package editor

import (
	"sort"
	"strings"

	"github.com/dshills/keystorm/internal/dispatcher/execctx"
	"github.com/dshills/keystorm/internal/dispatcher/handler"
	"github.com/dshills/keystorm/internal/engine/buffer"
	"github.com/dshills/keystorm/internal/input"
)

// Action names for indent operations.
const (
	ActionIndent       = "editor.indent"       // >> - indent line
	ActionOutdent      = "editor.outdent"      // << - outdent line
	ActionAutoIndent   = "editor.autoIndent"   // = - auto-indent selection
	ActionIndentBlock  = "editor.indentBlock"  // >} - indent block
	ActionOutdentBlock = "editor.outdentBlock" // <{ - outdent block
)

// Default indentation settings.
const (
	DefaultTabWidth   = 4
	DefaultUseTabs    = false
	DefaultIndentSize = 4
)

// IndentHandler handles indentation operations. Every affected line's
// change is computed against one snapshot and the whole set commits as a
// single batch, so a multi-line re-indent is one undo group.
type IndentHandler struct {
	tabWidth   int
	useTabs    bool
	indentSize int
}

// NewIndentHandler creates a new indent handler with default settings.
func NewIndentHandler() *IndentHandler {
	return &IndentHandler{
		tabWidth:   DefaultTabWidth,
		useTabs:    DefaultUseTabs,
		indentSize: DefaultIndentSize,
	}
}

// NewIndentHandlerWithConfig creates an indent handler with custom settings.
func NewIndentHandlerWithConfig(tabWidth, indentSize int, useTabs bool) *IndentHandler {
	return &IndentHandler{
		tabWidth:   tabWidth,
		useTabs:    useTabs,
		indentSize: indentSize,
	}
}

// Namespace returns the editor namespace.
func (h *IndentHandler) Namespace() string {
	return "editor"
}

// CanHandle returns true if this handler can process the action.
func (h *IndentHandler) CanHandle(actionName string) bool {
	switch actionName {
	case ActionIndent, ActionOutdent, ActionAutoIndent,
		ActionIndentBlock, ActionOutdentBlock:
		return true
	}
	return false
}

// HandleAction processes an indent action.
func (h *IndentHandler) HandleAction(action input.Action, ctx *execctx.ExecutionContext) handler.Result {
	if err := ctx.ValidateForEdit(); err != nil {
		return handler.Error(err)
	}

	count := ctx.GetCount()

	switch action.Name {
	case ActionIndent:
		return h.indent(ctx, count)
	case ActionOutdent:
		return h.outdent(ctx, count)
	case ActionAutoIndent:
		return h.autoIndent(ctx)
	case ActionIndentBlock:
		return h.indentBlock(ctx, count)
	case ActionOutdentBlock:
		return h.outdentBlock(ctx, count)
	default:
		return handler.Errorf("unknown indent action: %s", action.Name)
	}
}

// selectedLines collects the unique lines touched by any selection, in
// ascending order.
func selectedLines(ctx *execctx.ExecutionContext) []uint32 {
	text := ctx.Text
	lineSet := make(map[uint32]bool)
	for _, sel := range ctx.Cursors.All() {
		r := sel.Range()
		startPoint := text.OffsetToPoint(r.Start)
		endPoint := text.OffsetToPoint(r.End)
		for line := startPoint.Line; line <= endPoint.Line; line++ {
			lineSet[line] = true
		}
	}

	lines := make([]uint32, 0, len(lineSet))
	for line := range lineSet {
		lines = append(lines, line)
	}
	sort.Slice(lines, func(i, j int) bool { return lines[i] < lines[j] })
	return lines
}

// commitLineChanges applies the per-line changes as one batch. Cursors
// are left where they are and clamped; per-cursor shifting across removed
// whitespace is not worth the complexity for a whole-screen redraw.
func commitLineChanges(ctx *execctx.ExecutionContext, changes []execctx.Change, affectedLines []uint32) handler.Result {
	if len(changes) == 0 {
		return handler.NoOp()
	}

	result, err := ctx.Edit.Apply(changes, execctx.PolicyEdit)
	if err != nil {
		return handler.Error(err)
	}
	if !result.Applied {
		return handler.NoOpWithMessage("buffer is read-only")
	}

	ctx.Cursors.Clamp(ctx.Text.Len())

	return handler.Success().
		WithCommitVersion(result.VersionAfter).
		WithRedrawLines(affectedLines...)
}

// indent adds indentation to every line any selection touches.
func (h *IndentHandler) indent(ctx *execctx.ExecutionContext, count int) handler.Result {
	text := ctx.Text
	if text.LineCount() == 0 {
		return handler.NoOp()
	}

	fullIndent := strings.Repeat(h.getIndentString(), count)

	lines := selectedLines(ctx)

	changes := make([]execctx.Change, 0, len(lines))
	indented := make([]uint32, 0, len(lines))
	for _, line := range lines {
		if text.LineLen(line) == 0 {
			// Skip empty lines
			continue
		}
		at := text.LineStartOffset(line)
		changes = append(changes, execctx.Change{Start: at, End: at, Text: fullIndent})
		indented = append(indented, line)
	}
	if len(changes) == 0 {
		return handler.NoOp()
	}

	result, err := ctx.Edit.Apply(changes, execctx.PolicyEdit)
	if err != nil {
		return handler.Error(err)
	}
	if !result.Applied {
		return handler.NoOpWithMessage("buffer is read-only")
	}

	// The commit layer maps the selection through the insertions, so each
	// cursor has already shifted past the indent added on its line.
	return handler.Success().
		WithCommitVersion(result.VersionAfter).
		WithRedrawLines(indented...)
}

// outdent removes up to one indent unit (times count) of leading
// whitespace from every line any selection touches.
func (h *IndentHandler) outdent(ctx *execctx.ExecutionContext, count int) handler.Result {
	text := ctx.Text
	if text.LineCount() == 0 {
		return handler.NoOp()
	}

	removeAmount := h.indentSize * count
	lines := selectedLines(ctx)

	changes := make([]execctx.Change, 0, len(lines))
	outdented := make([]uint32, 0, len(lines))
	for _, line := range lines {
		lineText := text.LineText(line)

		// Count leading whitespace in display columns.
		leadingWS := 0
		for _, r := range lineText {
			if r == ' ' {
				leadingWS++
			} else if r == '\t' {
				leadingWS += h.tabWidth
			} else {
				break
			}
		}

		toRemove := removeAmount
		if toRemove > leadingWS {
			toRemove = leadingWS
		}
		if toRemove == 0 {
			continue
		}

		// Find the byte span covering the whitespace to remove.
		byteCount := 0
		removed := 0
		for i, r := range lineText {
			if removed >= toRemove {
				break
			}
			if r == ' ' {
				removed++
				byteCount = i + 1
			} else if r == '\t' {
				removed += h.tabWidth
				byteCount = i + 1
			} else {
				break
			}
		}
		if byteCount == 0 {
			continue
		}

		at := text.LineStartOffset(line)
		changes = append(changes, execctx.Change{Start: at, End: at + buffer.ByteOffset(byteCount)})
		outdented = append(outdented, line)
	}

	return commitLineChanges(ctx, changes, outdented)
}

// autoIndent re-indents lines based on the previous line's indentation
// and simple bracket structure.
func (h *IndentHandler) autoIndent(ctx *execctx.ExecutionContext) handler.Result {
	text := ctx.Text
	if text.LineCount() == 0 {
		return handler.NoOp()
	}

	lines := selectedLines(ctx)

	// Each line's target indent derives from the previous line's text as
	// it will be after re-indenting, so track re-indented lines locally.
	newIndent := make(map[uint32]string)
	prevLineText := func(line uint32) string {
		prev := text.LineText(line)
		if indent, ok := newIndent[line]; ok {
			return indent + strings.TrimLeft(prev, " \t")
		}
		return prev
	}

	changes := make([]execctx.Change, 0, len(lines))
	var affectedLines []uint32
	for _, line := range lines {
		var targetIndent string
		if line > 0 {
			prev := prevLineText(line - 1)
			targetIndent = getLeadingWhitespace(prev)

			// Increase indent if previous line opens a bracket
			trimmed := strings.TrimRight(prev, " \t")
			if len(trimmed) > 0 {
				lastChar := trimmed[len(trimmed)-1]
				if lastChar == '{' || lastChar == '[' || lastChar == '(' {
					targetIndent += h.getIndentString()
				}
			}
		}

		lineText := text.LineText(line)
		oldIndent := getLeadingWhitespace(lineText)
		content := lineText[len(oldIndent):]

		// Decrease indent if line closes a bracket
		if len(content) > 0 {
			firstChar := content[0]
			if firstChar == '}' || firstChar == ']' || firstChar == ')' {
				targetIndent = removeOneIndent(targetIndent, h.indentSize, h.tabWidth)
			}
		}

		if targetIndent == oldIndent {
			continue
		}
		newIndent[line] = targetIndent

		at := text.LineStartOffset(line)
		changes = append(changes, execctx.Change{
			Start: at,
			End:   at + buffer.ByteOffset(len(oldIndent)),
			Text:  targetIndent,
		})
		affectedLines = append(affectedLines, line)
	}

	return commitLineChanges(ctx, changes, affectedLines)
}

// indentBlock indents a block of lines (paragraph or selection).
func (h *IndentHandler) indentBlock(ctx *execctx.ExecutionContext, count int) handler.Result {
	// For now, same as indent - could be extended to handle paragraph motions
	return h.indent(ctx, count)
}

// outdentBlock outdents a block of lines.
func (h *IndentHandler) outdentBlock(ctx *execctx.ExecutionContext, count int) handler.Result {
	// For now, same as outdent
	return h.outdent(ctx, count)
}

// getIndentString returns the string to use for one level of indentation.
func (h *IndentHandler) getIndentString() string {
	if h.useTabs {
		return "\t"
	}
	return strings.Repeat(" ", h.indentSize)
}

// getLeadingWhitespace returns the leading whitespace of a string.
func getLeadingWhitespace(s string) string {
	for i, r := range s {
		if r != ' ' && r != '\t' {
			return s[:i]
		}
	}
	return s
}

// removeOneIndent removes one level of indentation from a whitespace string.
func removeOneIndent(ws string, indentSize, tabWidth int) string {
	if len(ws) == 0 {
		return ws
	}

	// Check if it starts with a tab
	if ws[0] == '\t' {
		return ws[1:]
	}

	// Remove indentSize spaces
	spaces := 0
	cutoff := 0
	for i, r := range ws {
		if r == ' ' {
			spaces++
			if spaces >= indentSize {
				cutoff = i + 1
				break
			}
		} else if r == '\t' {
			cutoff = i + 1
			break
		}
	}

	if cutoff > 0 && cutoff <= len(ws) {
		return ws[cutoff:]
	}
	return ""
}
