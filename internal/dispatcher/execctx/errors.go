package execctx

import "errors"

// Context validation errors. A handler invoked without a capability it
// needs gets one of these back as a structured result, never a panic.
var (
	// ErrMissingText indicates text access is required but not set.
	ErrMissingText = errors.New("execution context: text access is required")

	// ErrMissingEdit indicates the edit capability is required but not set.
	ErrMissingEdit = errors.New("execution context: edit access is required")

	// ErrMissingCursors indicates cursors are required but not set.
	ErrMissingCursors = errors.New("execution context: cursors are required")

	// ErrReadOnly indicates the buffer is read-only.
	ErrReadOnly = errors.New("execution context: buffer is read-only")

	// ErrMissingModeManager indicates mode manager is required but not set.
	ErrMissingModeManager = errors.New("execution context: mode manager is required")

	// ErrMissingHistory indicates history is required but not set.
	ErrMissingHistory = errors.New("execution context: history is required")

	// ErrMissingRenderer indicates renderer is required but not set.
	ErrMissingRenderer = errors.New("execution context: renderer is required")

	// ErrMissingMotion indicates a motion, text object, or selection is required for the operator.
	ErrMissingMotion = errors.New("execution context: operator requires motion, text object, or selection")
)
