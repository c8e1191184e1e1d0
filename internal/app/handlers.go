// Package app provides handler registration for the dispatcher.
package app

import (
	"github.com/dshills/keystorm/internal/dispatcher"
	"github.com/dshills/keystorm/internal/dispatcher/execctx"
	completionhandler "github.com/dshills/keystorm/internal/dispatcher/handlers/completion"
	cursorhandler "github.com/dshills/keystorm/internal/dispatcher/handlers/cursor"
	editorhandler "github.com/dshills/keystorm/internal/dispatcher/handlers/editor"
	modehandler "github.com/dshills/keystorm/internal/dispatcher/handlers/mode"
	operatorhandler "github.com/dshills/keystorm/internal/dispatcher/handlers/operator"
	searchhandler "github.com/dshills/keystorm/internal/dispatcher/handlers/search"
	"github.com/dshills/keystorm/internal/input"
)

// RegisterHandlers registers all standard handlers with the dispatcher.
// This should be called during application bootstrap after the dispatcher is created.
func RegisterHandlers(d *dispatcher.Dispatcher) {
	// Cursor movement plus motions
	d.RegisterNamespace("cursor", cursorhandler.NewCombinedHandler())

	// Editing: insert, delete, yank, indent behind one namespace handler
	d.RegisterNamespace("editor", editorhandler.NewCombinedHandler())

	// Mode handler
	d.RegisterNamespace("mode", modehandler.NewModeHandler())

	// Operator handler
	d.RegisterNamespace("operator", operatorhandler.NewOperatorHandler())

	// Navigation handlers
	d.RegisterNamespace("search", searchhandler.NewHandler())

	// Completion (buffer-sourced; no LSP-backed completion handler is
	// registered)
	d.RegisterNamespace("completion", completionhandler.NewHandler())
}

// BuildExecutionContext creates an execctx.ExecutionContext from the application state.
// This bridges the app layer with the dispatcher's handler system.
func (app *Application) BuildExecutionContext() *execctx.ExecutionContext {
	doc := app.documents.Active()
	if doc == nil {
		return execctx.New()
	}

	ctx := execctx.New()

	// Wire the capability adapters over the document's engine
	if doc.Engine != nil {
		ctx.Text = NewEngineExecAdapter(doc.Engine)
		ctx.Edit = NewEditExecAdapter(doc.Engine)
		ctx.Cursors = NewCursorManagerAdapter(doc.Engine)
		ctx.History = NewHistoryAdapter(doc.Engine)
		ctx.Renderer = NewViewportAdapter(doc.Engine, app.eventBus, doc.Path)
	}

	// Wire mode manager adapter
	if app.modeManager != nil {
		ctx.ModeManager = NewModeExecAdapter(app.modeManager)
	}

	// Set file info
	ctx.FilePath = doc.Path
	ctx.FileType = doc.LanguageID

	return ctx
}

// ExecuteAction dispatches an action with the current execution context.
// Returns the handler's error, or nil when the action succeeded.
func (app *Application) ExecuteAction(actionName string, count int) error {
	if app.dispatcher == nil {
		return ErrComponentNotAvailable
	}

	doc := app.documents.Active()
	if doc == nil {
		return ErrNoActiveDocument
	}

	// Wire up the dispatcher with current document's adapters
	app.wireDispatcherContext(doc)

	// Build the action
	action := input.Action{
		Name:  actionName,
		Count: count,
	}

	// Dispatch the action
	result := app.dispatcher.Dispatch(action)
	if result.Error != nil {
		return result.Error
	}

	// Mark document as modified if the action committed an edit
	if result.CommitVersion > 0 || len(result.Edits) > 0 {
		doc.SetModified(true)
	}

	return nil
}

// wireDispatcherContext sets up the dispatcher with the current document's context.
func (app *Application) wireDispatcherContext(doc *Document) {
	if doc == nil || doc.Engine == nil {
		return
	}

	// Wire the capability adapters: reads, the commit-layer write path,
	// selection, and history queries all sit on the same engine.
	app.dispatcher.SetText(NewEngineExecAdapter(doc.Engine))
	app.dispatcher.SetEdit(NewEditExecAdapter(doc.Engine))
	app.dispatcher.SetCursors(NewCursorManagerAdapter(doc.Engine))
	app.dispatcher.SetHistory(NewHistoryAdapter(doc.Engine))
	app.dispatcher.SetRenderer(NewViewportAdapter(doc.Engine, app.eventBus, doc.Path))

	// Wire mode manager adapter
	if app.modeManager != nil {
		app.dispatcher.SetModeManager(NewModeExecAdapter(app.modeManager))
	}
}

// HandlerInfo provides information about a registered handler.
type HandlerInfo struct {
	Namespace string
}

// ListHandlers returns information about all registered namespaces.
func (app *Application) ListHandlers() []HandlerInfo {
	if app.dispatcher == nil {
		return nil
	}

	router := app.dispatcher.Router()
	if router == nil {
		return nil
	}

	// Get handler namespaces from router
	namespaces := router.Namespaces()
	infos := make([]HandlerInfo, 0, len(namespaces))

	for _, ns := range namespaces {
		infos = append(infos, HandlerInfo{Namespace: ns})
	}

	return infos
}
