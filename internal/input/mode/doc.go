// Package mode implements the modal editing state machine: each Mode
// translates key events into actions or literal text, and the Manager
// owns the current mode and the enter/exit transitions between them.
//
// The registered set covers the Vim model: normal, insert, visual,
// visual-line, command, operator-pending, and replace. A mode's
// HandleUnmapped result either names a dispatchable action ("editor.
// insertText", "cursor.left", "mode.insert") or carries literal text for
// the insert path; the application's event loop applies it.
package mode
