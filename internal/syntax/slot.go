package syntax

import "time"

// InstalledTree is a full-document tree installed in a document's slot.
type InstalledTree struct {
	Syntax     *Syntax
	DocVersion uint64
	TreeID     uint64
}

// pendingIncremental records that a full tree older than the document's
// current version can still be projected forward, because the manager
// has been incrementally editing it alongside the document's own commits.
type pendingIncremental struct {
	baseTreeDocVersion uint64
}

// slot is a document's syntax state as the manager sees it: the
// full-document tree, the viewport cache, and dirty/force-no-debounce
// bookkeeping.
type slot struct {
	full               *InstalledTree
	viewportCache      *ViewportCache
	pendingIncremental *pendingIncremental

	dirty           bool
	forceNoDebounce bool

	languageID  *LanguageID
	lastOptsKey *OptKey

	nextTreeID uint64
}

func newSlot() *slot {
	return &slot{viewportCache: NewViewportCache(8)}
}

func (s *slot) allocTreeID() uint64 {
	s.nextTreeID++
	return s.nextTreeID
}

// dropTree clears both the full tree and the viewport cache.
func (s *slot) dropTree() {
	s.full = nil
	s.viewportCache.Clear()
	s.pendingIncremental = nil
}

// docEntry is everything the manager tracks for one document: its
// install slot plus scheduling state (debounce clock, lane single-flight,
// Stage-B stability counter, completed-task queue).
type docEntry struct {
	sl slot

	lastEditAt    time.Time
	lastVisibleAt time.Time

	lanes lanes

	completed []completedSyntaxTask

	stableKey       *ViewportKey
	stablePollCount int
}

func newDocEntry(now time.Time) *docEntry {
	return &docEntry{
		sl:            *newSlot(),
		lastEditAt:    now,
		lastVisibleAt: now,
	}
}
