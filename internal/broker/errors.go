package broker

import "errors"

// ErrorCode is the typed error family returned at the broker's request
// boundary (section 6 of the editing-core specification). Every reject path maps
// to exactly one of these; none of them leave partial state behind.
type ErrorCode string

const (
	// ErrSyncDocNotFound is returned when the URI has no open sync doc, or
	// the requesting session is not (or no longer) a participant of one.
	ErrSyncDocNotFound ErrorCode = "SyncDocNotFound"
	// ErrNotDocOwner is returned when a non-owner session sends a delta.
	ErrNotDocOwner ErrorCode = "NotDocOwner"
	// ErrSyncEpochMismatch is returned when a delta's epoch does not match
	// the document's current epoch.
	ErrSyncEpochMismatch ErrorCode = "SyncEpochMismatch"
	// ErrSyncSeqMismatch is returned when a delta's base sequence does not
	// match the document's current sequence; it also forces the owner
	// into a resync-required state.
	ErrSyncSeqMismatch ErrorCode = "SyncSeqMismatch"
	// ErrOwnerNeedsResync is returned when the owner attempts a delta
	// while a prior mismatch still requires it to resync first.
	ErrOwnerNeedsResync ErrorCode = "OwnerNeedsResync"
	// ErrInvalidDelta is returned when a wire transaction fails to
	// convert or apply against the document's authoritative rope.
	ErrInvalidDelta ErrorCode = "InvalidDelta"
)

// Error wraps an ErrorCode so broker methods satisfy the error interface
// while callers can still switch on the code with errors.As.
type Error struct {
	Code ErrorCode
}

func (e *Error) Error() string {
	return string(e.Code)
}

// CodeOf extracts the ErrorCode from err, if any.
func CodeOf(err error) (ErrorCode, bool) {
	var be *Error
	if errors.As(err, &be) {
		return be.Code, true
	}
	return "", false
}

func newErr(code ErrorCode) error {
	return &Error{Code: code}
}
