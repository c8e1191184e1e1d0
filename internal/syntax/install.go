package syntax

import "time"

// applyRetention drops installed trees once a document has been hidden
// long enough to violate its tier's retention policy. Visible and Warm
// documents are never touched here.
func applyRetention(e *docEntry, now time.Time, hotness Hotness, cfg TierCfg) {
	if hotness == Visible || hotness == Warm {
		return
	}
	if e.sl.full != nil && !retentionAllowsInstall(now, e, cfg.RetentionHiddenFull, hotness) {
		e.sl.full = nil
		e.sl.dirty = true
	}
	if e.sl.viewportCache.HasAny() && !retentionAllowsInstall(now, e, cfg.RetentionHiddenViewport, hotness) {
		e.sl.viewportCache.Clear()
	}
}

// retentionAllowsInstall reports whether policy still permits an existing
// or newly-completed tree to stay installed for a document at the given
// hotness.
func retentionAllowsInstall(now time.Time, e *docEntry, policy RetentionPolicy, hotness Hotness) bool {
	if hotness == Visible || hotness == Warm {
		return true
	}
	switch policy.Kind {
	case RetentionKeep:
		return true
	case RetentionDropWhenHidden:
		return false
	case RetentionDropAfter:
		return now.Sub(e.lastVisibleAt) <= policy.TTL
	default:
		return true
	}
}

// drainCompletions polls every lane's in-flight task, moves finished ones
// into the completed queue, then applies an install decision to each
// completed task in arrival order.
func (m *Manager) drainCompletions(e *docEntry, now time.Time, ctx EnsureSyntaxContext, cfg TierCfg, fullOptsKey OptKey) {
	pollLane(e, &e.lanes.bg)
	pollLane(e, &e.lanes.viewportUrgent)
	pollLane(e, &e.lanes.viewportEnrich)

	pending := e.completed
	e.completed = nil

	for _, task := range pending {
		m.applyCompletion(e, now, ctx, cfg, fullOptsKey, task)
	}
}

func pollLane(e *docEntry, lane *laneState) {
	if lane.inflight == nil {
		return
	}
	if res, ok := lane.inflight.poll(); ok {
		e.completed = append(e.completed, res)
		lane.inflight = nil
	}
}

func (m *Manager) applyCompletion(e *docEntry, now time.Time, ctx EnsureSyntaxContext, cfg TierCfg, fullOptsKey OptKey, task completedSyntaxTask) {
	langMatches := ctx.LanguageID != nil && task.langID == *ctx.LanguageID
	workDisabled := ctx.Hotness != Visible && !cfg.ParseWhenHidden

	var optsOK bool
	if task.class == TaskFull {
		optsOK = task.opts == fullOptsKey
	} else if *task.viewportLane == ViewportUrgent {
		optsOK = task.opts.Injections == InjectionDisabled
	} else {
		optsOK = task.opts.Injections == InjectionEager && cfg.ViewportStageBBudget != nil
	}

	if !langMatches || !optsOK {
		if task.syntax != nil {
			task.syntax.Close()
		}
		return
	}

	if task.err != nil {
		m.applyFailureCooldown(e, now, cfg, task)
		return
	}

	if workDisabled {
		task.syntax.Close()
		return
	}

	switch task.class {
	case TaskFull:
		m.applyFullInstall(e, ctx, cfg, task)
	case TaskViewport:
		m.applyViewportInstall(e, now, ctx, task)
	}
}

func (m *Manager) applyFailureCooldown(e *docEntry, now time.Time, cfg TierCfg, task completedSyntaxTask) {
	timeout := task.isTimeout()

	switch task.class {
	case TaskFull:
		var until time.Time
		if timeout {
			until = now.Add(cfg.CooldownOnTimeout)
		} else {
			until = now.Add(cfg.CooldownOnError)
		}
		e.lanes.bg.setCooldown(until)
	case TaskViewport:
		if task.viewportKey == nil || task.viewportLane == nil {
			return
		}
		if *task.viewportLane == ViewportUrgent {
			docVer := task.docVersion
			ce := e.sl.viewportCache.GetMutOrInsert(*task.viewportKey)
			ce.StageAFailedFor = &docVer
			var until time.Time
			if timeout {
				until = now.Add(cfg.ViewportCooldownOnTimeout)
			} else {
				until = now.Add(cfg.ViewportCooldownOnError)
			}
			e.lanes.viewportUrgent.setCooldown(until)
		} else {
			ce := e.sl.viewportCache.GetMutOrInsert(*task.viewportKey)
			if timeout {
				ce.StageBCooldownUntil = now.Add(cfg.ViewportCooldownOnTimeout)
			} else {
				ce.StageBCooldownUntil = now.Add(cfg.ViewportCooldownOnError)
			}
			ce.AttemptedBFor = nil
		}
	}
}

// coveredAtVersion reports whether some installed tree at docVersion
// already covers the byte range: the full tree, or any cached viewport
// entry.
func (m *Manager) coveredAtVersion(e *docEntry, docVersion uint64, coverage ByteRange) bool {
	if e.sl.full != nil && e.sl.full.DocVersion == docVersion {
		return true
	}
	if vt := e.sl.viewportCache.SelectForViewport(coverage); vt != nil && vt.DocVersion == docVersion {
		return true
	}
	return false
}

// fullAllowInstall decides whether a completed full-document task, whose
// doc_version may lag the document's current version, is still safe to
// install: either it is exactly current, or it is a valid base for the
// continuity the manager is tracking.
func fullAllowInstall(e *docEntry, ctx EnsureSyntaxContext, task completedSyntaxTask) bool {
	if task.docVersion == ctx.DocVersion {
		return true
	}
	if task.docVersion > ctx.DocVersion {
		return false
	}
	if e.sl.full == nil {
		return true
	}
	return e.sl.pendingIncremental != nil && e.sl.pendingIncremental.baseTreeDocVersion == task.docVersion
}

func (m *Manager) applyFullInstall(e *docEntry, ctx EnsureSyntaxContext, cfg TierCfg, task completedSyntaxTask) {
	retainOK := true
	if ctx.Hotness != Visible && ctx.Hotness != Warm {
		retainOK = cfg.RetentionHiddenFull.Kind == RetentionKeep
	}
	if !retainOK {
		task.syntax.Close()
		if task.docVersion == ctx.DocVersion {
			e.sl.dropTree()
		}
		return
	}
	if !fullAllowInstall(e, ctx, task) {
		task.syntax.Close()
		return
	}

	lang := task.langID
	opts := task.opts
	id := e.sl.allocTreeID()
	e.sl.full = &InstalledTree{Syntax: task.syntax, DocVersion: task.docVersion, TreeID: id}
	e.sl.languageID = &lang
	e.sl.lastOptsKey = &opts
	e.sl.pendingIncremental = nil

	if task.docVersion == ctx.DocVersion {
		e.sl.dirty = false
		e.lanes.bg.clearCooldown()
	} else {
		e.sl.dirty = true
		e.sl.pendingIncremental = &pendingIncremental{baseTreeDocVersion: task.docVersion}
	}
	e.sl.forceNoDebounce = false
}

func (m *Manager) applyViewportInstall(e *docEntry, now time.Time, ctx EnsureSyntaxContext, task completedSyntaxTask) {
	if task.viewportKey == nil || task.viewportLane == nil {
		task.syntax.Close()
		return
	}
	if task.docVersion != ctx.DocVersion {
		task.syntax.Close()
		return
	}

	var base uint32
	var realLen uint32
	if task.syntax.Viewport != nil {
		base = task.syntax.Viewport.BaseOffset
		realLen = task.syntax.Viewport.RealLen
	}
	coverage := ByteRange{Start: base, End: base + realLen}

	// An urgent result is a stopgap; with a covering tree already present
	// at the current version it has nothing to add, and installing it
	// would re-dirty a freshly installed full tree.
	if *task.viewportLane == ViewportUrgent && m.coveredAtVersion(e, ctx.DocVersion, coverage) {
		task.syntax.Close()
		return
	}
	// An enrichment result is discarded when a Stage-B tree at this
	// version already satisfies its coverage.
	if *task.viewportLane == ViewportEnrich {
		if existing := e.sl.viewportCache.Get(*task.viewportKey); existing != nil &&
			existing.StageB != nil && existing.StageB.DocVersion == ctx.DocVersion &&
			existing.StageB.Coverage.contains(coverage) {
			task.syntax.Close()
			return
		}
	}

	vt := &ViewportTree{
		Syntax:     task.syntax,
		DocVersion: task.docVersion,
		TreeID:     e.sl.allocTreeID(),
		Coverage:   coverage,
	}

	lang := task.langID
	ce := e.sl.viewportCache.GetMutOrInsert(*task.viewportKey)
	if *task.viewportLane == ViewportUrgent {
		if ce.StageA != nil {
			ce.StageA.Syntax.Close()
		}
		ce.StageA = vt
		ce.StageAFailedFor = nil
		ce.AttemptedBFor = nil
		e.sl.dirty = true
		e.sl.forceNoDebounce = true
		e.lanes.viewportUrgent.clearCooldown()
	} else {
		if ce.StageB != nil {
			ce.StageB.Syntax.Close()
		}
		ce.StageB = vt
		ce.StageBCooldownUntil = time.Time{}
	}
	e.sl.languageID = &lang
}
