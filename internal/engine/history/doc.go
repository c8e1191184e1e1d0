// Package history implements the undo/redo group stacks that back Document
// commits: each recorded edit is stored as its forward and inverse
// Transaction plus two selection fields, grouped per the commit's
// UndoPolicy. Document.Commit fills both selection fields with the
// commit's SelectionAfter (a point at 0 when none is given); the selection
// before the edit is not recorded.
//
// # Entries and groups
//
// An Entry pairs a Transaction with its precomputed Invert and the two
// selection fields. A group is an ordered run of entries that
// undo and redo together as one unit — typed text during a single insert
// run, or every change made by a find-and-replace.
//
// # Stack
//
//	s := history.NewStack(1000)
//	s.PushRecord(entry)           // UndoPolicy=Record
//	merged := s.PushOrMergeInsert(entry) // UndoPolicy=MergeWithCurrentGroup
//	s.PushBoundary(entry)         // UndoPolicy=Boundary
//	s.ClearInsertActive()         // UndoPolicy=NoUndo
//
//	entries, ok := s.PopUndoGroup() // apply entries[i].Inverse from last to first
//	entries, ok := s.PopRedoGroup() // apply entries[i].Forward from first to last
//
// Stack only tracks the group structure; callers (Document.Commit/Undo/Redo)
// are responsible for applying transactions to the rope and updating the
// live selection.
package history
