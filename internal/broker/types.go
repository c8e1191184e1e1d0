package broker

import "github.com/segmentio/ksuid"

// SessionID identifies a connected editor session. It is k-sortable so
// log lines ordered by SessionID also order by connection time, the same
// rationale engine.DocumentID uses.
type SessionID string

// NewSessionID allocates a fresh, process-unique SessionID.
func NewSessionID() SessionID {
	return SessionID(ksuid.New().String())
}

// SyncEpoch is the coarse half of the owner-change logical clock: it bumps
// on every ownership transfer and resets Seq to zero.
type SyncEpoch uint64

// SyncSeq is the fine half of the logical clock: it bumps on every delta
// accepted within an epoch.
type SyncSeq uint64

// Role reports whether a session opened a sync doc as its owner or as a
// follower of an already-open document.
type Role int

const (
	// RoleOwner is returned to the session that creates a new sync doc.
	RoleOwner Role = iota
	// RoleFollower is returned to every subsequent opener.
	RoleFollower
)

func (r Role) String() string {
	if r == RoleOwner {
		return "owner"
	}
	return "follower"
}

// WireTx is the wire representation of a transaction.Transaction: a list
// of disjoint changes in ascending Start order, expressed in CharIdx
// space against the rope the sender held at BaseSeq. Converting it to a
// local transaction.Transaction is the responsibility of wireToTx.
type WireTx struct {
	Changes []WireChange
}

// WireChange mirrors transaction.Change in a form serializable independent
// of the transaction package's internal representation.
type WireChange struct {
	Start         uint64
	End           uint64
	Replacement   string
	IsReplacement bool // distinguishes "" insertion from a pure deletion
}
