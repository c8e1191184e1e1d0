// Package syntax implements the background syntax scheduler: a tiered,
// debounced, single-flight, cooldown-aware parser manager that decides
// whether, which, and when to run tree-sitter parses for a document, and
// what to retain once a document stops being visible.
//
// The manager never owns a Document. It is polled once per render tick
// with a document's current rope snapshot, version, and viewport, and it
// answers with a SyntaxPollResult describing whether a usable tree is
// ready, pending, or being scheduled. Completed background parses are
// installed into the manager's own per-document slot; callers that also
// want the tree mirrored onto the document (for incremental edit
// projection) install it there explicitly via Document.InstallSyntax.
package syntax
