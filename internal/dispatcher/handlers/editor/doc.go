// Package editor provides handlers for text editing operations.
//
// This package implements Vim-style text manipulation operations as action
// handlers for the dispatcher. Handlers are pure range arithmetic: each
// action computes its byte spans and replacement text against one snapshot
// of the buffer (execctx.TextAccess) and commits the whole set as a single
// batch through execctx.EditAccess, which routes into the document commit
// layer. Handlers never mutate rope state directly.
//
// # Insert Operations
//
// The InsertHandler type provides text insertion:
//   - editor.insertChar: Insert a single character at cursor
//   - editor.insertText: Insert arbitrary text at cursor
//   - editor.insertNewline: Insert a newline (Enter key)
//   - editor.insertLineAbove (O): Insert new line above cursor
//   - editor.insertLineBelow (o): Insert new line below cursor
//   - editor.insertTab: Insert a tab character
//
// # Delete Operations
//
// The DeleteHandler type provides text deletion:
//   - editor.deleteChar (x): Delete character under cursor
//   - editor.deleteCharBack (X): Delete character before cursor
//   - editor.deleteLine (dd): Delete entire line(s)
//   - editor.deleteToEnd (D): Delete from cursor to end of line
//   - editor.deleteSelection: Delete selected text
//   - editor.deleteWord (dw): Delete word forward
//   - editor.deleteWordBack (db): Delete word backward
//
// # Yank/Paste Operations
//
// The YankHandler type provides copy/paste functionality:
//   - editor.yankSelection (y): Yank (copy) selected text
//   - editor.yankLine (yy): Yank entire line(s)
//   - editor.yankToEnd (Y): Yank from cursor to end of line
//   - editor.yankWord (yw): Yank word forward
//   - editor.pasteAfter (p): Paste after cursor
//   - editor.pasteBefore (P): Paste before cursor
//
// # Indent Operations
//
// The IndentHandler type provides indentation control:
//   - editor.indent (>>): Increase indentation
//   - editor.outdent (<<): Decrease indentation
//   - editor.autoIndent (=): Auto-indent based on context
//   - editor.indentBlock (>}): Indent paragraph/block
//   - editor.outdentBlock (<{): Outdent paragraph/block
//
// # Multi-cursor Support
//
// All operations support multiple cursors:
//   - Spans are computed per cursor in ascending order against one
//     snapshot, merged where cursors overlap, and committed as one batch
//   - A multi-cursor edit is therefore one undo group and one version
//     bump by construction
//   - Register content is the deleted/yanked text of all cursors,
//     joined in buffer order
//
// # Undo/Redo Support
//
// Operations that modify text:
//   - Commit through the document layer, which records the inverse
//     transaction as an undo group and clears redo
//   - Track affected lines for efficient redraw
//   - Store deleted text in registers for yank/delete
//
// # Usage
//
// Register the combined handler with the dispatcher (a namespace holds one
// handler; a later registration replaces the earlier one):
//
//	dispatcher.RegisterNamespace("editor", editor.NewCombinedHandler())
//
// An indent handler with custom settings, registered alone, serves only
// the indent actions:
//
//	handler := editor.NewIndentHandlerWithConfig(tabWidth, indentSize, useTabs)
//	dispatcher.RegisterNamespace("editor", handler)
//
// Dispatch editor actions:
//
//	result := dispatcher.Dispatch(input.Action{
//	    Name: editor.ActionInsertText,
//	    Args: input.ActionArgs{Text: "hello"},
//	})
package editor
