package events

import (
	"time"

	"github.com/dshills/keystorm/internal/event/topic"
)

// Dispatcher event topics.
const (
	// TopicDispatcherActionExecuted is published when a handler completes.
	TopicDispatcherActionExecuted topic.Topic = "dispatcher.action.executed"

	// TopicDispatcherActionFailed is published when a handler raises an error.
	TopicDispatcherActionFailed topic.Topic = "dispatcher.action.failed"
)

// ActionExecutionStatus describes how an action execution ended.
type ActionExecutionStatus string

// Action execution statuses.
const (
	ActionStatusSuccess   ActionExecutionStatus = "success"
	ActionStatusError     ActionExecutionStatus = "error"
	ActionStatusCancelled ActionExecutionStatus = "cancelled"
	ActionStatusSkipped   ActionExecutionStatus = "skipped"
)

// ActionContext contains the context in which an action was executed.
type ActionContext struct {
	// Mode is the editor mode.
	Mode string

	// BufferID is the active buffer.
	BufferID string

	// FilePath is the active file path.
	FilePath string

	// CursorPosition is the cursor position.
	CursorPosition Position

	// HasSelection indicates if there's a selection.
	HasSelection bool
}

// DispatcherActionExecuted is published when a handler completes.
type DispatcherActionExecuted struct {
	// ActionName is the action name.
	ActionName string

	// Duration is how long execution took.
	Duration time.Duration

	// Status is the execution status.
	Status ActionExecutionStatus

	// Context was the execution context.
	Context ActionContext
}

// DispatcherActionFailed is published when a handler raises an error.
type DispatcherActionFailed struct {
	// ActionName is the action name.
	ActionName string

	// ErrorMessage describes the error.
	ErrorMessage string

	// Duration is how long execution took before failing.
	Duration time.Duration

	// Context was the execution context.
	Context ActionContext
}
