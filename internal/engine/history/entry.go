package history

import (
	"time"

	"github.com/dshills/keystorm/internal/engine/cursor"
	"github.com/dshills/keystorm/internal/engine/transaction"
)

// Entry records one committed edit in undoable form.
type Entry struct {
	Forward         transaction.Transaction
	Inverse         transaction.Transaction
	SelectionBefore cursor.SelectionSet
	SelectionAfter  cursor.SelectionSet
	Timestamp       time.Time
}

// group is a run of entries that undo and redo together as a single unit.
type group struct {
	entries []Entry
}

// OperationInfo describes a group for undo/redo history display.
type OperationInfo struct {
	EntryCount int
	Timestamp  time.Time
}

func infoForGroup(g group) OperationInfo {
	var ts time.Time
	if len(g.entries) > 0 {
		ts = g.entries[len(g.entries)-1].Timestamp
	}
	return OperationInfo{EntryCount: len(g.entries), Timestamp: ts}
}
