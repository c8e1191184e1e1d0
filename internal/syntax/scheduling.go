package syntax

import "time"

// TaskClass distinguishes a full-document parse from a viewport-bounded
// one.
type TaskClass int

const (
	// TaskFull is a background parse of the whole document.
	TaskFull TaskClass = iota
	// TaskViewport is a parse bounded to a byte window around the
	// viewport.
	TaskViewport
)

// ViewportLane distinguishes the urgent (Stage-A) viewport lane from the
// enrichment (Stage-B) one.
type ViewportLane int

const (
	// ViewportUrgent is the narrow, injections-disabled lane served
	// first for a visible, untiered-ready document.
	ViewportUrgent ViewportLane = iota
	// ViewportEnrich is the wider, injections-eager lane kicked only
	// once the covering viewport key has been stable for long enough.
	ViewportEnrich
)

// laneState tracks single-flight scheduling bookkeeping for one lane.
type laneState struct {
	requestedDocVersion uint64
	cooldownUntil       time.Time
	inflight            *pendingTask
}

func (l *laneState) coolingDown(now time.Time) bool {
	return !l.cooldownUntil.IsZero() && now.Before(l.cooldownUntil)
}

func (l *laneState) setCooldown(until time.Time) {
	l.cooldownUntil = until
}

func (l *laneState) clearCooldown() {
	l.cooldownUntil = time.Time{}
}

// lanes groups the three independently single-flight scheduling lanes a
// document can have work outstanding in.
type lanes struct {
	bg             laneState
	viewportUrgent laneState
	viewportEnrich laneState
}

// pendingTask is an in-flight background parse. The result channel is
// buffered by 1 so the worker goroutine never blocks on a cancelled or
// abandoned task.
type pendingTask struct {
	docVersion   uint64
	class        TaskClass
	viewportKey  *ViewportKey
	viewportLane *ViewportLane
	startedAt    time.Time
	cancel       func()
	result       chan completedSyntaxTask
}

// poll performs a non-blocking receive of the task's result.
func (p *pendingTask) poll() (completedSyntaxTask, bool) {
	select {
	case r := <-p.result:
		return r, true
	default:
		return completedSyntaxTask{}, false
	}
}

// completedSyntaxTask is a finished parse task awaiting an install
// decision.
type completedSyntaxTask struct {
	docVersion   uint64
	langID       LanguageID
	opts         OptKey
	syntax       *Syntax
	err          error
	class        TaskClass
	elapsed      time.Duration
	viewportKey  *ViewportKey
	viewportLane *ViewportLane
}

func (c completedSyntaxTask) isTimeout() bool {
	se, ok := c.err.(*SyntaxError)
	return ok && se.Timeout
}
