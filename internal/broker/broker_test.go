package broker

import (
	"errors"
	"sync"
	"testing"
)

func wireInsert(pos uint64, text string) WireTx {
	return WireTx{Changes: []WireChange{{Start: pos, End: pos, Replacement: text, IsReplacement: true}}}
}

type recordingSink struct {
	mu     sync.Mutex
	events map[SessionID][]Event
	fail   map[SessionID]bool
}

func newRecordingSink() *recordingSink {
	return &recordingSink{events: make(map[SessionID][]Event), fail: make(map[SessionID]bool)}
}

func (s *recordingSink) Send(session SessionID, event Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fail[session] {
		return errors.New("send failed")
	}
	s.events[session] = append(s.events[session], event)
	return nil
}

func (s *recordingSink) eventsFor(session SessionID) []Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Event(nil), s.events[session]...)
}

func TestOpenFirstSessionIsOwner(t *testing.T) {
	b := New()
	a := SessionID("a")

	res, err := b.Open(a, "/tmp/x.txt", "hello")
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if res.Role != RoleOwner {
		t.Fatalf("want owner, got %v", res.Role)
	}
	if res.Epoch != 1 || res.Seq != 0 {
		t.Fatalf("want epoch=1 seq=0, got %d/%d", res.Epoch, res.Seq)
	}
}

func TestOpenSecondSessionIsFollowerWithSnapshot(t *testing.T) {
	b := New()
	a, bee := SessionID("a"), SessionID("b")

	if _, err := b.Open(a, "file:///x.txt", "hello"); err != nil {
		t.Fatalf("open a: %v", err)
	}
	res, err := b.Open(bee, "file:///x.txt", "ignored text")
	if err != nil {
		t.Fatalf("open b: %v", err)
	}
	if res.Role != RoleFollower {
		t.Fatalf("want follower, got %v", res.Role)
	}
	if res.Snapshot != "hello" {
		t.Fatalf("want snapshot %q, got %q", "hello", res.Snapshot)
	}
}

// TestEpochBumpOnOwnerClose implements scenario S3: sessions A and B open
// U with A as owner (epoch=1, seq=0); A deltas once (seq->1); A closes; B
// is promoted and the resulting event carries epoch=2.
func TestEpochBumpOnOwnerClose(t *testing.T) {
	sink := newRecordingSink()
	b := New(WithEventSink(sink))
	a, bee := SessionID("a"), SessionID("b")
	uri := "file:///shared.txt"

	if _, err := b.Open(a, uri, "hello"); err != nil {
		t.Fatalf("open a: %v", err)
	}
	if _, err := b.Open(bee, uri, ""); err != nil {
		t.Fatalf("open b: %v", err)
	}

	deltaRes, err := b.Delta(a, uri, 1, 0, wireInsert(5, " world"))
	if err != nil {
		t.Fatalf("delta: %v", err)
	}
	if deltaRes.Seq != 1 {
		t.Fatalf("want seq=1, got %d", deltaRes.Seq)
	}

	if err := b.Close(a, uri); err != nil {
		t.Fatalf("close: %v", err)
	}

	events := sink.eventsFor(bee)
	if len(events) == 0 {
		t.Fatalf("expected events for b")
	}
	last := events[len(events)-1]
	if last.Kind != EventOwnerChanged {
		t.Fatalf("want owner-changed event, got %v", last.Kind)
	}
	if last.Epoch != 2 {
		t.Fatalf("want epoch=2 after owner close, got %d", last.Epoch)
	}
	if last.Owner != bee {
		t.Fatalf("want b promoted, got %v", last.Owner)
	}

	// Promotion sets the owner-needs-resync flag, so B resyncs first; its
	// subsequent delta must then use base_seq=0 per S3.
	if _, err := b.Resync(bee, uri); err != nil {
		t.Fatalf("resync: %v", err)
	}
	if _, err := b.Delta(bee, uri, 2, 0, wireInsert(0, "x")); err != nil {
		t.Fatalf("b's post-promotion delta should succeed with base_seq=0: %v", err)
	}
}

func TestDeltaRejectsNonOwner(t *testing.T) {
	b := New()
	a, bee := SessionID("a"), SessionID("b")
	uri := "file:///f.txt"
	b.Open(a, uri, "x")
	b.Open(bee, uri, "")

	_, err := b.Delta(bee, uri, 1, 0, wireInsert(0, "y"))
	code, ok := CodeOf(err)
	if !ok || code != ErrNotDocOwner {
		t.Fatalf("want NotDocOwner, got %v", err)
	}
}

func TestDeltaEpochMismatch(t *testing.T) {
	b := New()
	a := SessionID("a")
	uri := "file:///f.txt"
	b.Open(a, uri, "x")

	_, err := b.Delta(a, uri, 99, 0, wireInsert(0, "y"))
	code, _ := CodeOf(err)
	if code != ErrSyncEpochMismatch {
		t.Fatalf("want SyncEpochMismatch, got %v", err)
	}
}

// TestDeltaSeqMismatchForcesResync verifies a seq mismatch both rejects
// the delta and sets owner_needs_resync, which then blocks further deltas
// until Resync clears it.
func TestDeltaSeqMismatchForcesResync(t *testing.T) {
	b := New()
	a := SessionID("a")
	uri := "file:///f.txt"
	b.Open(a, uri, "x")

	_, err := b.Delta(a, uri, 1, 7, wireInsert(0, "y"))
	code, _ := CodeOf(err)
	if code != ErrSyncSeqMismatch {
		t.Fatalf("want SyncSeqMismatch, got %v", err)
	}

	_, err = b.Delta(a, uri, 1, 0, wireInsert(0, "y"))
	code, _ = CodeOf(err)
	if code != ErrOwnerNeedsResync {
		t.Fatalf("want OwnerNeedsResync after mismatch, got %v", err)
	}

	if _, err := b.Resync(a, uri); err != nil {
		t.Fatalf("resync: %v", err)
	}

	if _, err := b.Delta(a, uri, 1, 0, wireInsert(0, "y")); err != nil {
		t.Fatalf("delta after resync should succeed: %v", err)
	}
}

// TestOwnerElectionDeterministic implements invariant 7: the new owner
// after Close or TakeOwnership equals participants[0] before the
// mutation.
func TestOwnerElectionDeterministic(t *testing.T) {
	b := New()
	a, bee, c := SessionID("a"), SessionID("b"), SessionID("c")
	uri := "file:///f.txt"
	b.Open(a, uri, "x") // a owns, participants=[a]
	b.Open(bee, uri, "")
	b.Open(c, uri, "") // participants=[a,b,c]

	if err := b.Close(a, uri); err != nil {
		t.Fatalf("close: %v", err)
	}

	res, err := b.Resync(bee, uri)
	if err != nil {
		t.Fatalf("resync: %v", err)
	}
	if res.Owner != bee {
		t.Fatalf("want b (participants[0] after a left) to own, got %v", res.Owner)
	}
}

func TestTakeOwnershipRequiresPreferredSuccessor(t *testing.T) {
	b := New()
	a, bee, c := SessionID("a"), SessionID("b"), SessionID("c")
	uri := "file:///f.txt"
	b.Open(a, uri, "x")
	b.Open(bee, uri, "")
	b.Open(c, uri, "")

	// c is not participants[0] (b is); taking ownership is a no-op.
	res, err := b.TakeOwnership(c, uri)
	if err != nil {
		t.Fatalf("take ownership: %v", err)
	}
	if res.Epoch != 1 {
		t.Fatalf("non-preferred take-ownership must not bump epoch, got %d", res.Epoch)
	}

	res, err = b.TakeOwnership(bee, uri)
	if err != nil {
		t.Fatalf("take ownership: %v", err)
	}
	if res.Epoch != 2 {
		t.Fatalf("preferred successor take-ownership should bump epoch, got %d", res.Epoch)
	}
}

func TestCloseLastParticipantDropsDoc(t *testing.T) {
	b := New()
	a := SessionID("a")
	uri := "file:///f.txt"
	b.Open(a, uri, "x")

	if err := b.Close(a, uri); err != nil {
		t.Fatalf("close: %v", err)
	}

	_, err := b.Resync(a, uri)
	code, _ := CodeOf(err)
	if code != ErrSyncDocNotFound {
		t.Fatalf("want SyncDocNotFound after last close, got %v", err)
	}
}

func TestDisconnectSessionPromotesRemainingOwner(t *testing.T) {
	sink := newRecordingSink()
	b := New(WithEventSink(sink))
	a, bee := SessionID("a"), SessionID("b")
	uri := "file:///f.txt"
	b.Open(a, uri, "x")
	b.Open(bee, uri, "")

	b.DisconnectSession(a)

	res, err := b.Resync(bee, uri)
	if err != nil {
		t.Fatalf("resync: %v", err)
	}
	if res.Owner != bee || res.Epoch != 2 {
		t.Fatalf("want b owner at epoch 2, got owner=%v epoch=%d", res.Owner, res.Epoch)
	}
}

// TestSeqMonotonicity implements invariant 6: for any two broadcasts on
// the same (uri, epoch), the later one has a strictly greater seq.
func TestSeqMonotonicity(t *testing.T) {
	b := New()
	a := SessionID("a")
	uri := "file:///f.txt"
	b.Open(a, uri, "")

	var last SyncSeq
	for i := 0; i < 5; i++ {
		res, err := b.Delta(a, uri, 1, last, wireInsert(uint64(i), "x"))
		if err != nil {
			t.Fatalf("delta %d: %v", i, err)
		}
		if res.Seq <= last {
			t.Fatalf("seq did not increase: %d -> %d", last, res.Seq)
		}
		last = res.Seq
	}
}

func TestSendFailureReportedOutsideLock(t *testing.T) {
	sink := newRecordingSink()
	a, bee := SessionID("a"), SessionID("b")
	sink.fail[bee] = true

	var failed []SessionID
	var mu sync.Mutex
	b := New(WithEventSink(sink), WithSessionFailureHandler(func(s SessionID) {
		mu.Lock()
		defer mu.Unlock()
		failed = append(failed, s)
	}))

	uri := "file:///f.txt"
	b.Open(a, uri, "x")
	b.Open(bee, uri, "")

	if _, err := b.Delta(a, uri, 1, 0, wireInsert(0, "y")); err != nil {
		t.Fatalf("delta: %v", err)
	}

	mu.Lock()
	defer mu.Unlock()
	if len(failed) != 1 || failed[0] != bee {
		t.Fatalf("want b reported failed, got %v", failed)
	}
}

func TestURINormalizationCollision(t *testing.T) {
	b := New()
	a, bee := SessionID("a"), SessionID("b")

	if _, err := b.Open(a, "/tmp/x.txt", "v1"); err != nil {
		t.Fatalf("open a: %v", err)
	}
	res, err := b.Open(bee, "file:///tmp/x.txt", "v2")
	if err != nil {
		t.Fatalf("open b: %v", err)
	}
	if res.Role != RoleFollower {
		t.Fatalf("raw path and file:// form should collide on the same doc, got role %v", res.Role)
	}
}
