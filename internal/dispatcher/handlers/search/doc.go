// Package search provides handlers for search and replace operations.
//
// The substitute command commits its whole line range as one batch
// through execctx.EditAccess, so an :s over many lines is a single undo
// group.
//
// This package implements Vim-style search functionality including:
//   - Forward search (/)
//   - Backward search (?)
//   - Find next match (n)
//   - Find previous match (N)
//   - Word under cursor search (* and #)
//   - Search and replace (:s and :%s)
//
// The search handler supports regular expressions and maintains
// search history for repeat operations.
package search
