package broker

import (
	"sync"
)

// Broker owns every SyncDocState in the process, keyed by normalized URI,
// under a single lock. Deltas applied to the authoritative rope happen
// inside that lock; events to participants are collected while holding it
// and sent only after releasing it, so a slow or failing sink never stalls
// another session's commit.
type Broker struct {
	mu   sync.Mutex
	docs map[string]*SyncDocState
	sink EventSink

	onSessionFailed func(SessionID)
}

// Option configures a Broker at construction.
type Option func(*Broker)

// WithEventSink sets the transport a Broker pushes events through. When
// omitted, events are silently dropped (useful for tests that only assert
// on ack/state, not on broadcast delivery).
func WithEventSink(sink EventSink) Option {
	return func(b *Broker) { b.sink = sink }
}

// WithSessionFailureHandler registers a callback invoked, outside the
// broker's lock, for every session a broadcast failed to reach. The host
// uses this to tear the session down.
func WithSessionFailureHandler(fn func(SessionID)) Option {
	return func(b *Broker) { b.onSessionFailed = fn }
}

// New constructs an empty Broker.
func New(opts ...Option) *Broker {
	b := &Broker{docs: make(map[string]*SyncDocState)}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// OpenResult is returned by Open.
type OpenResult struct {
	Role Role
	// Epoch and Seq are the document's current logical clock, valid
	// regardless of role.
	Epoch SyncEpoch
	Seq   SyncSeq
	// Snapshot holds the current text; populated only for RoleFollower.
	Snapshot string
}

// Open opens uri for session, creating a new sync doc (with session as
// owner) if none exists yet, or attaching session as a follower of an
// existing one.
func (b *Broker) Open(session SessionID, uri string, text string) (OpenResult, error) {
	normalized, err := normalizeURI(uri)
	if err != nil {
		return OpenResult{}, err
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	doc, exists := b.docs[normalized]
	if !exists {
		doc = newSyncDocState(session, text)
		b.docs[normalized] = doc
		return OpenResult{Role: RoleOwner, Epoch: doc.epoch, Seq: doc.seq}, nil
	}

	doc.addOpen(session)
	return OpenResult{
		Role:     RoleFollower,
		Epoch:    doc.epoch,
		Seq:      doc.seq,
		Snapshot: doc.content.String(),
	}, nil
}

// Close closes uri on behalf of session, decrementing its refcount and
// electing a new owner if session was the owner and other participants
// remain.
func (b *Broker) Close(session SessionID, uri string) error {
	normalized, err := normalizeURI(uri)
	if err != nil {
		return err
	}

	var broadcast *ownerBroadcast
	err = func() error {
		b.mu.Lock()
		defer b.mu.Unlock()

		doc, ok := b.docs[normalized]
		if !ok {
			return newErr(ErrSyncDocNotFound)
		}

		switch doc.removeOpen(session) {
		case removeOpenNotParticipant:
			return newErr(ErrSyncDocNotFound)
		case removeOpenRemoved:
			if len(doc.participants) == 0 {
				delete(b.docs, normalized)
				return nil
			}
			if session == doc.owner {
				newOwner := doc.participants[0]
				doc.promote(newOwner)
				broadcast = &ownerBroadcast{
					uri:          normalized,
					epoch:        doc.epoch,
					owner:        newOwner,
					participants: append([]SessionID(nil), doc.participants...),
				}
			}
		case removeOpenDecremented:
			// Still a participant; nothing to elect.
		}
		return nil
	}()
	if err != nil {
		return err
	}

	b.sendOwnerBroadcast(broadcast)
	return nil
}

// DeltaResult is returned by Delta on success.
type DeltaResult struct {
	Seq SyncSeq
}

// Delta applies an owner's transaction against the authoritative rope,
// ordering it by (epoch, baseSeq) and broadcasting it to every other
// participant.
func (b *Broker) Delta(session SessionID, uri string, epoch SyncEpoch, baseSeq SyncSeq, wire WireTx) (DeltaResult, error) {
	normalized, err := normalizeURI(uri)
	if err != nil {
		return DeltaResult{}, err
	}

	var (
		newSeq       SyncSeq
		participants []SessionID
	)
	err = func() error {
		b.mu.Lock()
		defer b.mu.Unlock()

		doc, ok := b.docs[normalized]
		if !ok {
			return newErr(ErrSyncDocNotFound)
		}
		if session != doc.owner {
			return newErr(ErrNotDocOwner)
		}
		if epoch != doc.epoch {
			return newErr(ErrSyncEpochMismatch)
		}
		if baseSeq != doc.seq {
			doc.ownerNeedsResync = true
			return newErr(ErrSyncSeqMismatch)
		}
		if doc.ownerNeedsResync {
			return newErr(ErrOwnerNeedsResync)
		}

		tx, err := wireToTx(wire, doc.content)
		if err != nil {
			return err
		}
		post, err := tx.Apply(doc.content)
		if err != nil {
			return newErr(ErrInvalidDelta)
		}
		doc.content = post
		doc.seq++
		newSeq = doc.seq
		participants = append([]SessionID(nil), doc.participants...)
		return nil
	}()
	if err != nil {
		return DeltaResult{}, err
	}

	b.broadcastDelta(normalized, epoch, newSeq, wire, participants, session)
	return DeltaResult{Seq: newSeq}, nil
}

// TakeOwnershipResult is returned by TakeOwnership.
type TakeOwnershipResult struct {
	Epoch SyncEpoch
}

// TakeOwnership transfers ownership of uri to session. session must
// already be a participant and must be participants[0] (the
// election-preferred next owner) unless it is already the owner, in which
// case this is a no-op that reports the current epoch.
func (b *Broker) TakeOwnership(session SessionID, uri string) (TakeOwnershipResult, error) {
	normalized, err := normalizeURI(uri)
	if err != nil {
		return TakeOwnershipResult{}, err
	}

	var broadcast *ownerBroadcast
	var epoch SyncEpoch
	err = func() error {
		b.mu.Lock()
		defer b.mu.Unlock()

		doc, ok := b.docs[normalized]
		if !ok {
			return newErr(ErrSyncDocNotFound)
		}
		if !doc.isParticipant(session) {
			return newErr(ErrSyncDocNotFound)
		}
		if session == doc.owner {
			epoch = doc.epoch
			return nil
		}
		if len(doc.participants) == 0 || session != doc.participants[0] {
			// Not the preferred successor: no transfer, just report the
			// current epoch so the requester can reconcile.
			epoch = doc.epoch
			return nil
		}

		doc.promote(session)
		epoch = doc.epoch
		broadcast = &ownerBroadcast{
			uri:          normalized,
			epoch:        doc.epoch,
			owner:        session,
			participants: append([]SessionID(nil), doc.participants...),
		}
		return nil
	}()
	if err != nil {
		return TakeOwnershipResult{}, err
	}

	b.sendOwnerBroadcast(broadcast)
	return TakeOwnershipResult{Epoch: epoch}, nil
}

// ResyncResult is returned by Resync.
type ResyncResult struct {
	Snapshot string
	Epoch    SyncEpoch
	Seq      SyncSeq
	Owner    SessionID
}

// Resync returns the current authoritative snapshot of uri. If session is
// the owner, it clears that document's owner-needs-resync flag.
func (b *Broker) Resync(session SessionID, uri string) (ResyncResult, error) {
	normalized, err := normalizeURI(uri)
	if err != nil {
		return ResyncResult{}, err
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	doc, ok := b.docs[normalized]
	if !ok {
		return ResyncResult{}, newErr(ErrSyncDocNotFound)
	}
	if !doc.isParticipant(session) {
		return ResyncResult{}, newErr(ErrSyncDocNotFound)
	}

	if session == doc.owner {
		doc.ownerNeedsResync = false
	}

	return ResyncResult{
		Snapshot: doc.content.String(),
		Epoch:    doc.epoch,
		Seq:      doc.seq,
		Owner:    doc.owner,
	}, nil
}

// DisconnectSession closes every sync doc the session participates in, as
// if the session had called Close on each in turn. Unlike Close, a failed
// normalization or a doc the session doesn't participate in is silently
// skipped rather than reported, since disconnect has no caller to report
// to.
func (b *Broker) DisconnectSession(session SessionID) {
	var broadcasts []*ownerBroadcast

	func() {
		b.mu.Lock()
		defer b.mu.Unlock()

		for uri, doc := range b.docs {
			if !doc.isParticipant(session) {
				continue
			}
			doc.removeParticipantAll(session)

			if len(doc.participants) == 0 {
				delete(b.docs, uri)
				continue
			}

			if session == doc.owner {
				newOwner := doc.participants[0]
				doc.promote(newOwner)
				broadcasts = append(broadcasts, &ownerBroadcast{
					uri:          uri,
					epoch:        doc.epoch,
					owner:        newOwner,
					participants: append([]SessionID(nil), doc.participants...),
				})
			}
		}
	}()

	for _, bc := range broadcasts {
		b.sendOwnerBroadcast(bc)
	}
}

// ownerBroadcast carries the data needed to emit BufferSyncOwnerChanged
// after the lock protecting SyncDocState has been released.
type ownerBroadcast struct {
	uri          string
	epoch        SyncEpoch
	owner        SessionID
	participants []SessionID
}

func (b *Broker) sendOwnerBroadcast(bc *ownerBroadcast) {
	if bc == nil {
		return
	}
	event := Event{Kind: EventOwnerChanged, URI: bc.uri, Epoch: bc.epoch, Owner: bc.owner}
	b.broadcast(bc.participants, event, "")
}

func (b *Broker) broadcastDelta(uri string, epoch SyncEpoch, seq SyncSeq, wire WireTx, participants []SessionID, exclude SessionID) {
	event := Event{Kind: EventDelta, URI: uri, Epoch: epoch, Seq: seq, Tx: wire}
	b.broadcast(participants, event, exclude)
}

// broadcast sends event to every session in participants except exclude,
// reporting any send failure to the configured handler.
func (b *Broker) broadcast(participants []SessionID, event Event, exclude SessionID) {
	if b.sink == nil {
		return
	}
	var failed []SessionID
	for _, sid := range participants {
		if sid == exclude {
			continue
		}
		if err := b.sink.Send(sid, event); err != nil {
			failed = append(failed, sid)
		}
	}
	if len(failed) == 0 || b.onSessionFailed == nil {
		return
	}
	for _, sid := range failed {
		b.onSessionFailed(sid)
	}
}
