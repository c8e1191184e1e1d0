package lsp

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/dshills/keystorm/internal/engine"
	"github.com/dshills/keystorm/internal/engine/cursor"
	"github.com/dshills/keystorm/internal/engine/rope"
	"github.com/dshills/keystorm/internal/engine/transaction"
)

// ErrOverlappingEdits indicates a completion item's planned edits overlap
// after sorting, so they cannot be applied as one commit.
var ErrOverlappingEdits = errors.New("lsp: completion edits overlap")

// InsertReplaceEdit is the union alternative servers may return for a
// completion item's textEdit: one new text with separate insert and
// replace ranges, chosen by the client at accept time.
type InsertReplaceEdit struct {
	NewText string `json:"newText"`
	Insert  Range  `json:"insert"`
	Replace Range  `json:"replace"`
}

// CompletionApplyPlan is an accepted completion item normalized into a
// flat, validated edit list ready to become a single commit.
type CompletionApplyPlan struct {
	// Edits is the primary edit plus any additionalTextEdits, sorted by
	// start position, all relative to the same pre-edit document state.
	Edits []TextEdit

	// PrimaryIndex locates the primary (insertion) edit within Edits.
	PrimaryIndex int

	// Snippet reports that the primary text contained snippet placeholders
	// and the caller should enter snippet mode after the commit. The
	// primary edit's NewText has already been rendered to plain text.
	Snippet bool
}

// PlanCompletionApply normalizes an accepted completion item into a
// CompletionApplyPlan. The textEdit (or insertReplace alternative, with
// replace selecting the replace range) wins over insertText; with neither,
// the insert text lands as a point edit at fallback. Snippet items are
// rendered to plain text with placeholders resolved to their defaults.
func PlanCompletionApply(item CompletionItem, insertReplace *InsertReplaceEdit, replace bool, fallback Position) (*CompletionApplyPlan, error) {
	var primary TextEdit
	switch {
	case item.TextEdit != nil:
		primary = *item.TextEdit
	case insertReplace != nil:
		rng := insertReplace.Insert
		if replace {
			rng = insertReplace.Replace
		}
		primary = TextEdit{Range: rng, NewText: insertReplace.NewText}
	default:
		primary = TextEdit{Range: Range{Start: fallback, End: fallback}, NewText: GetInsertText(item)}
	}

	snippet := IsSnippet(item)
	if snippet {
		primary.NewText = ExpandSnippet(primary.NewText)
	}

	edits := make([]TextEdit, 0, 1+len(item.AdditionalTextEdits))
	edits = append(edits, primary)
	edits = append(edits, item.AdditionalTextEdits...)

	idx := make([]int, len(edits))
	for i := range idx {
		idx[i] = i
	}
	sort.SliceStable(idx, func(a, b int) bool {
		return positionLess(edits[idx[a]].Range.Start, edits[idx[b]].Range.Start)
	})

	sorted := make([]TextEdit, len(edits))
	primaryIndex := 0
	for i, j := range idx {
		sorted[i] = edits[j]
		if j == 0 {
			primaryIndex = i
		}
	}

	for i := 1; i < len(sorted); i++ {
		if positionLess(sorted[i].Range.Start, sorted[i-1].Range.End) {
			return nil, fmt.Errorf("%w: %v and %v", ErrOverlappingEdits, sorted[i-1].Range, sorted[i].Range)
		}
	}

	return &CompletionApplyPlan{Edits: sorted, PrimaryIndex: primaryIndex, Snippet: snippet}, nil
}

func positionLess(a, b Position) bool {
	if a.Line != b.Line {
		return a.Line < b.Line
	}
	return a.Character < b.Character
}

// Transaction converts the plan's edits into a single transaction against
// content, decoding each range from the server's offset encoding. The
// returned cursor offset is the CharIdx just past the primary insertion in
// the post-edit document.
func (p *CompletionApplyPlan) Transaction(content rope.Rope, enc OffsetEncoding) (transaction.Transaction, rope.CharOffset, error) {
	changes := make([]transaction.Change, len(p.Edits))
	var primaryStart rope.CharOffset
	for i, edit := range p.Edits {
		start, err := decodePosition(content, edit.Range.Start, enc)
		if err != nil {
			return transaction.Transaction{}, 0, err
		}
		end, err := decodePosition(content, edit.Range.End, enc)
		if err != nil {
			return transaction.Transaction{}, 0, err
		}
		startChar, err := canonicalPosToChar(content, start)
		if err != nil {
			return transaction.Transaction{}, 0, err
		}
		endChar, err := canonicalPosToChar(content, end)
		if err != nil {
			return transaction.Transaction{}, 0, err
		}
		changes[i] = transaction.NewChange(startChar, endChar, edit.NewText)
		if i == p.PrimaryIndex {
			primaryStart = startChar
		}
	}

	tx, err := transaction.New(changes)
	if err != nil {
		return transaction.Transaction{}, 0, err
	}
	// Right bias pushes the mapped point past the primary insertion, which
	// is exactly "end of the inserted text" in post-edit coordinates.
	return tx, tx.MapPos(primaryStart, transaction.Right), nil
}

func canonicalPosToChar(content rope.Rope, pos Position) (rope.CharOffset, error) {
	b, err := canonicalPosToByte(content, pos)
	if err != nil {
		return 0, err
	}
	return content.ByteToChar(b), nil
}

// ApplyCompletion applies an accepted completion item to view as one
// EDIT-policy commit, places the cursor at the end of the primary
// insertion, and flushes the document's LSP queue immediately so the
// server sees the edit before any follow-up command executes. Reports
// whether the caller should enter snippet mode.
func (ds *DocumentSync) ApplyCompletion(ctx context.Context, path string, view *engine.View, item CompletionItem, insertReplace *InsertReplaceEdit, replace bool, fallback Position) (snippet bool, err error) {
	ds.mu.Lock()
	sd, ok := ds.docs[path]
	ds.mu.Unlock()
	if !ok {
		return false, ErrDocumentNotOpen
	}

	plan, err := PlanCompletionApply(item, insertReplace, replace, fallback)
	if err != nil {
		return false, err
	}

	content, _ := view.Document().Snapshot()
	tx, cursorAfter, err := plan.Transaction(content, sd.encoding)
	if err != nil {
		return false, err
	}

	result, err := view.Apply(tx, engine.EDIT)
	if err != nil {
		return false, err
	}
	if result.Applied {
		view.SetSelection(cursor.NewPointSelectionSet(cursorAfter))
	}

	if err := ds.Flush(ctx, path); err != nil {
		return plan.Snippet, err
	}
	return plan.Snippet, nil
}
