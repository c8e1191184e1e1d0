// Package engine provides the core text editor engine for Keystorm.
//
// Two layers live here. Document and View are the CharIdx-native commit
// layer: a Document owns a rope, its version counter, undo/redo groups,
// the syntax slot, and the LSP pending-change queue; a View is the
// per-window overlay (selection, scroll, readonly override) whose Apply
// is the sole write path into Document.Commit. Engine is the byte-offset
// facade the action dispatch surface consumes — a veneer over one
// Document/View pair that converts byte ranges into transactions, so
// every Engine write (and every batch from ApplyChanges) is a commit:
// one version bump, one undo group, selection mapped, syntax and LSP
// bookkeeping updated. Engine holds no content or history of its own.
//
// # Architecture
//
// The engine is built on several sub-packages:
//
//   - rope: B+ tree rope for efficient text storage (O(log n) operations)
//   - buffer: Byte-offset positions, ranges, edits, line endings and snapshots
//   - cursor: Multi-cursor and selection management
//   - history: Grouped undo/redo stack over inverse transactions
//   - transaction: Ordered disjoint change lists with position mapping
//
// # Thread Safety
//
// All Engine and Document operations are thread-safe. Both use a
// read-write mutex to allow concurrent reads while serializing writes.
// Multiple goroutines can safely call read operations like Text(),
// LineText(), or OffsetToPoint() simultaneously.
//
// # Basic Usage
//
// Create an engine and perform basic edits:
//
//	// Create a new engine
//	e := engine.New()
//
//	// Insert text
//	e.Insert(0, "Hello, World!")
//
//	// Read content
//	text := e.Text() // "Hello, World!"
//
//	// Replace text
//	e.Replace(7, 12, "Go") // "Hello, Go!"
//
//	// Undo the replacement
//	e.Undo() // "Hello, World!"
//
// # Loading Files
//
// Create an engine from existing content:
//
//	// From a string
//	e := engine.New(engine.WithContent("initial content"))
//
//	// From a reader (file, network, etc.)
//	f, _ := os.Open("file.txt")
//	defer f.Close()
//	e, _ := engine.NewFromReader(f)
//
// # Documents and Commits
//
// The commit layer is the sole write path for policy-aware editing:
//
//	doc := engine.NewDocument("hello")
//	view := engine.NewView(doc)
//
//	tx, _, _ := view.PrepareInsert("!")
//	result, _ := view.Apply(tx, engine.EDIT)
//	_ = result.VersionAfter
//
//	doc.Undo()
//
// ApplyPolicy presets cover the dispatch surface: BARE (no undo, no
// syntax), EDIT (own undo group, incremental syntax), INSERT (merging
// undo group for insert-mode typing runs).
//
// # Undo/Redo
//
// The engine maintains full undo/redo history:
//
//	e := engine.New()
//	e.Insert(0, "Hello")
//	e.Insert(5, " World")
//
//	e.Undo() // Removes " World"
//	e.Undo() // Removes "Hello"
//	e.Redo() // Restores "Hello"
//
// Group multiple operations into a single undo unit:
//
//	e.BeginUndoGroup("format code")
//	e.Replace(0, 5, "fn")
//	e.Insert(2, " main()")
//	e.EndUndoGroup()
//
//	e.Undo() // Undoes both operations at once
//
// # Configuration
//
// Configure the engine at creation time:
//
//	e := engine.New(
//	    engine.WithContent("initial"),
//	    engine.WithTabWidth(4),
//	    engine.WithLineEnding(engine.LineEndingLF),
//	    engine.WithMaxUndoEntries(1000),
//	)
//
// Or modify configuration at runtime:
//
//	e.SetTabWidth(2)
//	e.SetLineEnding(engine.LineEndingCRLF)
//
// # Read-Only Mode
//
// Create a read-only engine that rejects write operations:
//
//	e := engine.New(
//	    engine.WithContent("read-only content"),
//	    engine.WithReadOnly(),
//	)
//
//	_, err := e.Insert(0, "text")
//	// err == engine.ErrReadOnly
//
// # Position Conversion
//
// Convert between different position representations:
//
//	e := engine.New(engine.WithContent("line 1\nline 2"))
//
//	// Byte offset to line/column
//	point := e.OffsetToPoint(7) // Point{Line: 1, Column: 0}
//
//	// Line/column to byte offset
//	offset := e.PointToOffset(engine.Point{Line: 1, Column: 0}) // 7
//
//	// UTF-16 positions (for LSP compatibility)
//	utf16Point := e.OffsetToPointUTF16(offset)
//	offset = e.PointUTF16ToOffset(utf16Point)
//
// # Snapshots
//
// Snapshots provide efficient read-only views of buffer state:
//
//	e := engine.New(engine.WithContent("original"))
//
//	// Buffer snapshot (lightweight, uses structural sharing)
//	snap := e.Snapshot()
//	text := snap.Text()
//
// # Error Handling
//
// The package defines several error types:
//
//   - ErrOffsetOutOfRange: Invalid byte offset
//   - ErrRangeInvalid: Invalid range (e.g., end < start)
//   - ErrEditsOverlap: Batch edits overlap or are not in reverse order
//   - ErrNothingToUndo: Undo stack is empty
//   - ErrNothingToRedo: Redo stack is empty
//   - ErrReadOnly: Write operation on read-only engine
package engine
