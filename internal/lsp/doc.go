// Package lsp synchronizes editor documents with external language
// servers (gopls, rust-analyzer, typescript-language-server, ...) over
// JSON-RPC 2.0.
//
// # Architecture
//
//   - DocumentSync: the change scheduler. It drains each tracked engine
//     document's pending edit queue, coalesces the changes, converts them
//     to the server's negotiated offset encoding, and ships didOpen /
//     didChange / didClose in strict order against a shadow of what the
//     server has acknowledged.
//   - Manager: one Server per language; routes notifications and requests
//     by detected language ID.
//   - Server: a single language server process — lifecycle (initialize,
//     initialized, shutdown, exit), sync notifications, and the
//     completion / completionItem/resolve / signatureHelp requests.
//   - Transport: the JSON-RPC 2.0 framing layer.
//
// # Change flow
//
// Commits on a tracked engine document queue LSPDocumentChange records;
// a flush tick drains them:
//
//	ds := lsp.NewDocumentSync(lsp.NewManagerSink(manager))
//	ds.Track(path, "go", doc, kind, enc)
//	// ... commits accumulate ...
//	ds.FlushAll(ctx) // coalesce, encode, didOpen-then-didChange
//
// A flush that fails to convert or send preserves the drained changes for
// the next cycle; the server never sees a partial batch.
//
// # Completion apply
//
// PlanCompletionApply normalizes an accepted item's textEdit /
// insertReplace plus additional edits into one validated, non-overlapping
// edit list; ApplyCompletion lands it as a single commit and flushes
// immediately so the server sees the edit before any follow-up request.
//
// # Diagnostics
//
// textDocument/publishDiagnostics notifications are cached per URI and
// forwarded to the manager's diagnostics callback; display is the
// caller's concern.
package lsp
