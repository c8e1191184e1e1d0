package syntax

import (
	"time"

	"github.com/dshills/keystorm/internal/engine"
)

// SyntaxPollResult reports what EnsureSyntax did, or decided not to do,
// for one document on one render tick.
type SyntaxPollResult int

const (
	// Ready means a usable tree is installed and no new work is needed.
	Ready SyntaxPollResult = iota
	// Pending means work is desired but deferred (debounce window open,
	// Stage-B stability not yet reached, or a lane is already in flight).
	Pending
	// Kicked means a new parse task was just spawned.
	Kicked
	// NoLanguage means the document has no language configured.
	NoLanguage
	// CoolingDown means a lane recently failed and is in its cooldown
	// window.
	CoolingDown
	// Disabled means the document is hidden and its tier forbids
	// background parsing while hidden.
	Disabled
	// Throttled means work is desired but the global concurrency cap is
	// exhausted.
	Throttled
)

func (r SyntaxPollResult) String() string {
	switch r {
	case Ready:
		return "Ready"
	case Pending:
		return "Pending"
	case Kicked:
		return "Kicked"
	case NoLanguage:
		return "NoLanguage"
	case CoolingDown:
		return "CoolingDown"
	case Disabled:
		return "Disabled"
	case Throttled:
		return "Throttled"
	default:
		return "SyntaxPollResult(?)"
	}
}

// rank orders results by urgency/informativeness so a poll that touches
// several lanes can report the single most significant outcome.
func rank(r SyntaxPollResult) int {
	switch r {
	case Kicked:
		return 6
	case Throttled, CoolingDown:
		return 5
	case Pending:
		return 4
	case Disabled:
		return 3
	case NoLanguage:
		return 2
	default: // Ready
		return 1
	}
}

func upgrade(cur, candidate SyntaxPollResult) SyntaxPollResult {
	if rank(candidate) > rank(cur) {
		return candidate
	}
	return cur
}

// EnsureSyntaxContext is everything one poll needs about a document's
// current state. Content is the document's full byte content; the
// manager never holds a reference to it beyond the call.
type EnsureSyntaxContext struct {
	DocID      engine.DocumentID
	DocVersion uint64
	LanguageID *LanguageID
	Content    []byte
	Hotness    Hotness
	Viewport   *ByteRange
	Loader     *LanguageLoader
}

// EnsureSyntax polls doc's syntax state, installing any finished parse,
// scheduling new work within the document's tier budgets, and reporting
// the outcome.
func (m *Manager) EnsureSyntax(ctx EnsureSyntaxContext) SyntaxPollResult {
	return m.EnsureSyntaxAt(time.Now(), ctx)
}

// EnsureSyntaxAt is EnsureSyntax with an explicit clock, for deterministic
// tests.
func (m *Manager) EnsureSyntaxAt(now time.Time, ctx EnsureSyntaxContext) SyntaxPollResult {
	m.mu.Lock()
	defer m.mu.Unlock()

	if ctx.LanguageID == nil {
		return NoLanguage
	}

	e := m.entry(ctx.DocID, now)
	if ctx.Hotness != Cold {
		e.lastVisibleAt = now
	}

	tier := m.policy.TierForBytes(uint64(len(ctx.Content)))
	cfg := m.policy.Cfg(tier)
	optsKey := OptKey{Injections: cfg.Injections}

	m.drainCompletions(e, now, ctx, cfg, optsKey)
	applyRetention(e, now, ctx.Hotness, cfg)

	langMatches := e.sl.languageID != nil && *e.sl.languageID == *ctx.LanguageID
	optsMatches := e.sl.lastOptsKey != nil && *e.sl.lastOptsKey == optsKey
	fullReady := e.sl.full != nil && e.sl.full.DocVersion == ctx.DocVersion && !e.sl.dirty && langMatches && optsMatches

	hiddenDisabled := ctx.Hotness != Visible && !cfg.ParseWhenHidden

	status := Ready

	if !fullReady {
		if hiddenDisabled {
			status = Disabled
		} else {
			status = upgrade(status, m.scheduleFull(e, now, ctx, cfg, optsKey))
		}
	}

	if ctx.Hotness == Visible && ctx.Viewport != nil && !hiddenDisabled {
		vp := alignRange(*ctx.Viewport, cfg.ViewportWindowMax)
		if tier == TierL && !fullReady {
			status = upgrade(status, m.scheduleViewportUrgent(e, now, ctx, cfg, optsKey, vp))
		}
		status = upgrade(status, m.scheduleViewportEnrich(e, now, ctx, cfg, optsKey, fullReady, vp))
	} else {
		e.stableKey = nil
		e.stablePollCount = 0
	}

	return status
}

func alignRange(rng ByteRange, stride uint32) ByteRange {
	if stride == 0 {
		return rng
	}
	start := (rng.Start / stride) * stride
	end := rng.End
	if aligned := ((rng.End / stride) + 1) * stride; aligned > end {
		end = aligned
	}
	return ByteRange{Start: start, End: end}
}

func alignKey(offset, stride uint32) ViewportKey {
	if stride == 0 {
		return ViewportKey(offset)
	}
	return ViewportKey((offset / stride) * stride)
}

// scheduleFull requests a background full-document parse, subject to
// debounce, cooldown, single-flight, and concurrency.
func (m *Manager) scheduleFull(e *docEntry, now time.Time, ctx EnsureSyntaxContext, cfg TierCfg, optsKey OptKey) SyntaxPollResult {
	lane := &e.lanes.bg
	if lane.inflight != nil {
		return Pending
	}
	if !e.sl.forceNoDebounce && now.Sub(e.lastEditAt) < cfg.Debounce {
		return Pending
	}
	if lane.coolingDown(now) {
		return CoolingDown
	}

	content := append([]byte(nil), ctx.Content...)
	lang := *ctx.LanguageID
	resultCh := make(chan completedSyntaxTask, 1)
	cancel, ok := m.spawnTask(ctx.Loader, lang, content, nil, Options{Injections: cfg.Injections}, cfg.ParseTimeout, func(syn *Syntax, err error, elapsed time.Duration) {
		resultCh <- completedSyntaxTask{
			docVersion: ctx.DocVersion,
			langID:     lang,
			opts:       optsKey,
			syntax:     syn,
			err:        err,
			class:      TaskFull,
			elapsed:    elapsed,
		}
	})
	if !ok {
		return Throttled
	}
	lane.requestedDocVersion = ctx.DocVersion
	lane.inflight = &pendingTask{docVersion: ctx.DocVersion, class: TaskFull, startedAt: now, cancel: cancel, result: resultCh}
	return Kicked
}

func (m *Manager) scheduleViewportUrgent(e *docEntry, now time.Time, ctx EnsureSyntaxContext, cfg TierCfg, optsKey OptKey, vp ByteRange) SyntaxPollResult {
	lane := &e.lanes.viewportUrgent
	if lane.inflight != nil {
		return Pending
	}
	key := alignKey(vp.Start, cfg.ViewportWindowMax)
	if ce := e.sl.viewportCache.Get(key); ce != nil && ce.StageAFailedFor != nil && *ce.StageAFailedFor == ctx.DocVersion {
		return CoolingDown
	}
	if lane.coolingDown(now) {
		return CoolingDown
	}

	end := vp.End
	if max := vp.Start + cfg.ViewportWindowMax; end > max {
		end = max
	}
	if int(end) > len(ctx.Content) {
		end = uint32(len(ctx.Content))
	}
	if vp.Start >= end {
		return Ready
	}
	window := append([]byte(nil), ctx.Content[vp.Start:end]...)
	base := vp.Start
	lang := *ctx.LanguageID
	urgentOpts := Options{Injections: InjectionDisabled}
	urgentOptsKey := OptKey{Injections: InjectionDisabled}

	resultCh := make(chan completedSyntaxTask, 1)
	k := key
	lane2 := ViewportUrgent
	cancel, ok := m.spawnTask(ctx.Loader, lang, window, &base, urgentOpts, cfg.ParseTimeout, func(syn *Syntax, err error, elapsed time.Duration) {
		resultCh <- completedSyntaxTask{
			docVersion:   ctx.DocVersion,
			langID:       lang,
			opts:         urgentOptsKey,
			syntax:       syn,
			err:          err,
			class:        TaskViewport,
			elapsed:      elapsed,
			viewportKey:  &k,
			viewportLane: &lane2,
		}
	})
	_ = optsKey
	if !ok {
		return Throttled
	}
	lane.requestedDocVersion = ctx.DocVersion
	lane.inflight = &pendingTask{docVersion: ctx.DocVersion, class: TaskViewport, viewportKey: &k, viewportLane: &lane2, startedAt: now, cancel: cancel, result: resultCh}
	return Kicked
}

func (m *Manager) scheduleViewportEnrich(e *docEntry, now time.Time, ctx EnsureSyntaxContext, cfg TierCfg, optsKey OptKey, fullReady bool, vp ByteRange) SyntaxPollResult {
	if cfg.ViewportStageBBudget == nil || !fullReady {
		e.stableKey = nil
		e.stablePollCount = 0
		return Ready
	}

	var key ViewportKey
	if covering := e.sl.viewportCache.CoveringKey(vp); covering != nil {
		key = *covering
	} else {
		key = alignKey(vp.Start, cfg.ViewportWindowMax)
	}

	if e.stableKey != nil && *e.stableKey == key {
		e.stablePollCount++
	} else {
		e.stableKey = &key
		e.stablePollCount = 1
	}

	lane := &e.lanes.viewportEnrich
	if lane.inflight != nil {
		return Pending
	}
	if ce := e.sl.viewportCache.Get(key); ce != nil && !ce.StageBCooldownUntil.IsZero() && now.Before(ce.StageBCooldownUntil) {
		return CoolingDown
	}
	if e.stablePollCount < cfg.ViewportStageBMinStable {
		return Pending
	}

	width := cfg.ViewportWindowMax * 4
	start := uint32(key)
	end := start + width
	if int(end) > len(ctx.Content) {
		end = uint32(len(ctx.Content))
	}
	if start >= end {
		return Pending
	}
	window := append([]byte(nil), ctx.Content[start:end]...)
	base := start
	lang := *ctx.LanguageID
	enrichOpts := Options{Injections: InjectionEager}
	enrichOptsKey := OptKey{Injections: InjectionEager}

	resultCh := make(chan completedSyntaxTask, 1)
	k := key
	lane2 := ViewportEnrich
	cancel, ok := m.spawnTask(ctx.Loader, lang, window, &base, enrichOpts, *cfg.ViewportStageBBudget, func(syn *Syntax, err error, elapsed time.Duration) {
		resultCh <- completedSyntaxTask{
			docVersion:   ctx.DocVersion,
			langID:       lang,
			opts:         enrichOptsKey,
			syntax:       syn,
			err:          err,
			class:        TaskViewport,
			elapsed:      elapsed,
			viewportKey:  &k,
			viewportLane: &lane2,
		}
	})
	_ = optsKey
	if !ok {
		return Throttled
	}
	lane.requestedDocVersion = ctx.DocVersion
	lane.inflight = &pendingTask{docVersion: ctx.DocVersion, class: TaskViewport, viewportKey: &k, viewportLane: &lane2, startedAt: now, cancel: cancel, result: resultCh}
	e.sl.viewportCache.GetMutOrInsert(key).AttemptedBFor = &ctx.DocVersion
	return Kicked
}
