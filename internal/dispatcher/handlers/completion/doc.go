// Package completion provides handlers for completion operations.
//
// Accepting an item commits the replacement as a single batch through
// execctx.EditAccess.
//
// This package implements completion functionality including:
//   - Trigger completion (Ctrl+Space)
//   - Accept completion (Tab, Enter)
//   - Navigate completions (Ctrl+N, Ctrl+P)
//   - Cancel completion (Escape)
//   - Word completion (Ctrl+N in insert mode)
//   - Line completion (Ctrl+X Ctrl+L)
//   - Path completion (Ctrl+X Ctrl+F)
//
// Items come from a CompletionProvider, set on the handler or placed in
// the execution context data. Without a provider, word completion scans
// the buffer for matching words and the other sources report a no-op.
package completion
