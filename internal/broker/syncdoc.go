package broker

import (
	"github.com/dshills/keystorm/internal/engine/rope"
)

// SyncDocState is the authoritative state of one document shared across
// sessions: owner, participant list, and the epoch/seq-ordered rope.
type SyncDocState struct {
	owner            SessionID
	participants     []SessionID
	openRefcounts    map[SessionID]uint32
	epoch            SyncEpoch
	seq              SyncSeq
	content          rope.Rope
	ownerNeedsResync bool
}

func newSyncDocState(owner SessionID, text string) *SyncDocState {
	s := &SyncDocState{
		owner:         owner,
		openRefcounts: make(map[SessionID]uint32),
		epoch:         1,
		seq:           0,
		content:       rope.FromString(text),
	}
	s.addOpen(owner)
	return s
}

// addOpen increments the session's open refcount, appending it to the
// participant list (at the end, preserving election order) if this is its
// first open.
func (s *SyncDocState) addOpen(id SessionID) {
	if s.openRefcounts[id] == 0 {
		s.participants = append(s.participants, id)
	}
	s.openRefcounts[id]++
}

// removeOpenResult classifies the outcome of decrementing a participant's
// refcount.
type removeOpenResult int

const (
	removeOpenNotParticipant removeOpenResult = iota
	removeOpenDecremented
	removeOpenRemoved
)

// removeOpen decrements the session's refcount, removing it from the
// participant list entirely once the count reaches zero.
func (s *SyncDocState) removeOpen(id SessionID) removeOpenResult {
	count, ok := s.openRefcounts[id]
	if !ok {
		return removeOpenNotParticipant
	}
	if count > 1 {
		s.openRefcounts[id] = count - 1
		return removeOpenDecremented
	}
	delete(s.openRefcounts, id)
	s.removeFromParticipants(id)
	return removeOpenRemoved
}

// removeParticipantAll drops every refcount a session holds and removes it
// from the participant list, used on session disconnect where a single
// session may have opened the same doc more than once.
func (s *SyncDocState) removeParticipantAll(id SessionID) {
	if _, ok := s.openRefcounts[id]; !ok {
		return
	}
	delete(s.openRefcounts, id)
	s.removeFromParticipants(id)
}

func (s *SyncDocState) removeFromParticipants(id SessionID) {
	out := s.participants[:0]
	for _, p := range s.participants {
		if p != id {
			out = append(out, p)
		}
	}
	s.participants = out
}

// isParticipant reports whether id currently holds an open refcount.
func (s *SyncDocState) isParticipant(id SessionID) bool {
	_, ok := s.openRefcounts[id]
	return ok
}

// promote transfers ownership to newOwner, bumping the epoch and
// resetting seq, per the owner-change rule used by Close,
// TakeOwnership, and session disconnect alike.
func (s *SyncDocState) promote(newOwner SessionID) {
	s.owner = newOwner
	s.epoch++
	s.seq = 0
	s.ownerNeedsResync = true
}
