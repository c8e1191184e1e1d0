// Package app provides the main application structure and coordination.
package app

import (
	"context"

	"github.com/dshills/keystorm/internal/dispatcher/execctx"
	"github.com/dshills/keystorm/internal/dispatcher/handler"
	"github.com/dshills/keystorm/internal/event"
	"github.com/dshills/keystorm/internal/event/events"
	"github.com/dshills/keystorm/internal/input"
	"github.com/dshills/keystorm/internal/input/key"
	"github.com/dshills/keystorm/internal/input/mode"
)

// handleKeyEvent processes a key event from the application's KeySource.
// Returns ErrQuit if the application should exit.
func (app *Application) handleKeyEvent(ev key.Event) error {
	// Let mode manager handle the key
	if app.modeManager == nil {
		return nil
	}

	currentMode := app.modeManager.Current()
	if currentMode == nil {
		return nil
	}

	// Try to handle unmapped key
	modeCtx := app.buildModeContext()
	result := currentMode.HandleUnmapped(ev, modeCtx)
	if result == nil {
		return nil
	}

	// Process the result
	return app.processModeResult(result, ev)
}

// processModeResult handles the result of an unmapped key press.
func (app *Application) processModeResult(result *mode.UnmappedResult, _ key.Event) error {
	if result == nil {
		return nil
	}

	// Handle action dispatch
	if result.Action != nil {
		action := &input.Action{
			Name: result.Action.Name,
			Args: convertModeArgs(result.Action.Args),
		}

		// Check for mode change action
		if action.Name == "mode.normal" || action.Name == "mode.insert" ||
			action.Name == "mode.visual" || action.Name == "mode.command" ||
			action.Name == "mode.replace" {
			modeName := action.Name[5:] // Remove "mode." prefix
			if err := app.modeManager.SetInitialMode(modeName); err != nil {
				_ = err // Log but don't fail
			}
			return nil
		}

		return app.dispatchAction(action)
	}

	// Handle text insertion in insert mode
	if result.InsertText != "" {
		return app.insertText(result.InsertText)
	}

	return nil
}

// convertModeArgs converts mode.Action.Args to input.ActionArgs.
func convertModeArgs(args map[string]any) input.ActionArgs {
	result := input.ActionArgs{}
	if args != nil {
		result.Extra = make(map[string]interface{})
		for k, v := range args {
			result.Extra[k] = v
		}
	}
	return result
}

// insertText inserts text at the cursor position.
func (app *Application) insertText(text string) error {
	if text == "" {
		return nil
	}
	doc := app.documents.Active()
	if doc == nil || doc.ReadOnly || doc.Engine == nil {
		return nil
	}

	cursors := doc.Engine.Cursors()
	if cursors == nil || cursors.Count() == 0 {
		return nil
	}

	// Insert at primary cursor
	primary := cursors.Primary()
	_, err := doc.Engine.Insert(primary.Head, text)
	if err != nil {
		return err
	}

	doc.SetModified(true)
	_ = app.PublishBufferChange(context.Background(), TopicBufferContentInserted,
		BufferChangePayload{
			Path:        doc.Path,
			StartOffset: int(primary.Head),
			EndOffset:   int(primary.Head),
			Text:        text,
		})

	return nil
}

// dispatchAction sends an action through the dispatcher.
func (app *Application) dispatchAction(action *input.Action) error {
	if app.dispatcher == nil || action == nil {
		return nil
	}

	// Build input context
	inputCtx := app.buildInputContext()

	// Dispatch the action
	result := app.dispatcher.DispatchWithContext(*action, inputCtx)

	// Check for quit action
	if action.Name == "app.quit" || action.Name == "quit" {
		return ErrQuit
	}

	app.publishActionResult(action, result)

	// An applied commit already bumped the engine version; reflect it on
	// the document and let subscribers (redraw, LSP flush) hear about it.
	if result.CommitVersion > 0 {
		if doc := app.documents.Active(); doc != nil {
			doc.SetModified(true)
			_ = app.PublishBufferChange(context.Background(), TopicBufferContentReplaced,
				BufferChangePayload{Path: doc.Path})
		}
	}

	return nil
}

// publishActionResult reports an action's outcome on the event bus.
func (app *Application) publishActionResult(action *input.Action, result handler.Result) {
	if app.eventBus == nil {
		return
	}

	actx := events.ActionContext{}
	if app.modeManager != nil && app.modeManager.Current() != nil {
		actx.Mode = app.modeManager.Current().Name()
	}
	if doc := app.documents.Active(); doc != nil {
		actx.BufferID = doc.Path
		actx.FilePath = doc.Path
	}

	if result.Error != nil || result.Status == handler.StatusError {
		msg := result.Message
		if result.Error != nil {
			msg = result.Error.Error()
		}
		payload := events.DispatcherActionFailed{
			ActionName:   action.Name,
			ErrorMessage: msg,
			Context:      actx,
		}
		ev := event.NewEvent(events.TopicDispatcherActionFailed, payload, "dispatcher")
		_ = app.eventBus.PublishAsync(context.Background(), ev)
		return
	}

	status := events.ActionStatusSuccess
	if result.Status == handler.StatusNoOp {
		status = events.ActionStatusSkipped
	}
	payload := events.DispatcherActionExecuted{
		ActionName: action.Name,
		Status:     status,
		Context:    actx,
	}
	ev := event.NewEvent(events.TopicDispatcherActionExecuted, payload, "dispatcher")
	_ = app.eventBus.PublishAsync(context.Background(), ev)
}

// buildInputContext creates an input.Context for dispatcher.
func (app *Application) buildInputContext() *input.Context {
	ctx := &input.Context{}

	// Set mode
	if app.modeManager != nil && app.modeManager.Current() != nil {
		ctx.Mode = app.modeManager.Current().Name()
	}

	// Set document info
	doc := app.documents.Active()
	if doc != nil {
		ctx.FilePath = doc.Path
		ctx.FileType = doc.LanguageID
		ctx.IsModified = doc.IsModified()
		ctx.IsReadOnly = doc.ReadOnly

		if doc.Engine != nil {
			cursors := doc.Engine.Cursors()
			if cursors != nil {
				ctx.HasSelection = cursors.HasSelection()
			}
		}
	}

	return ctx
}

// buildModeContext creates a mode.Context for mode handling.
func (app *Application) buildModeContext() *mode.Context {
	ctx := &mode.Context{}

	// Set previous mode if available
	if app.modeManager != nil && app.modeManager.Current() != nil {
		ctx.PreviousMode = app.modeManager.Current().Name()
	}

	return ctx
}

// buildExecutionContext creates an execution context for the dispatcher.
func (app *Application) buildExecutionContext() *execctx.ExecutionContext {
	ctx := execctx.New()

	doc := app.documents.Active()
	if doc != nil {
		ctx.FilePath = doc.Path
		ctx.FileType = doc.LanguageID

		if doc.Engine != nil {
			ctx.Text = NewEngineExecAdapter(doc.Engine)
			ctx.Edit = NewEditExecAdapter(doc.Engine)
			ctx.Cursors = NewCursorManagerAdapter(doc.Engine)
			ctx.History = NewHistoryAdapter(doc.Engine)
			ctx.Renderer = NewViewportAdapter(doc.Engine, app.eventBus, doc.Path)
		}
	}

	if app.modeManager != nil && app.modeManager.Current() != nil {
		// Mode name is available through the input context
	}

	return ctx
}

// startInputPolling starts a goroutine that pulls events from the
// application's KeySource. Events are sent to the returned channel.
//
// Note: KeySource.Next is expected to block, so this goroutine may not
// exit immediately on shutdown; the host's KeySource implementation must
// unblock Next when the application is torn down.
func (app *Application) startInputPolling() <-chan key.Event {
	events := make(chan key.Event, 100)

	go func() {
		defer close(events)

		for app.running.Load() {
			if app.keys == nil {
				return
			}

			ev, ok := app.keys.Next()
			if !ok {
				return
			}

			// Check if we should stop (may have been signaled during blocking poll)
			if !app.running.Load() {
				return
			}

			// Send event (non-blocking with buffer to avoid deadlock)
			select {
			case events <- ev:
			case <-app.done:
				return
			default:
				// Buffer full, drop event to prevent blocking.
				// This should be rare with buffer size 100.
				// In production, consider logging this at debug level.
			}
		}
	}()

	return events
}
