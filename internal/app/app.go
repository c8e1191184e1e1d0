// Package app provides the main application structure and coordination
// for the Keystorm editor. It wires together all core modules and manages
// the application lifecycle.
package app

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/dshills/keystorm/internal/broker"
	"github.com/dshills/keystorm/internal/config"
	"github.com/dshills/keystorm/internal/dispatcher"
	"github.com/dshills/keystorm/internal/engine"
	"github.com/dshills/keystorm/internal/event"
	"github.com/dshills/keystorm/internal/event/events"
	"github.com/dshills/keystorm/internal/input/key"
	"github.com/dshills/keystorm/internal/input/mode"
	"github.com/dshills/keystorm/internal/lsp"
	"github.com/dshills/keystorm/internal/project"
	"github.com/dshills/keystorm/internal/syntax"
)

// KeySource supplies key events to the application's main loop. A host
// embeds Keystorm by implementing KeySource over whatever input surface it
// owns (a terminal's raw-mode byte stream, a GUI's key callbacks, a test
// harness replaying a script); the application itself never decodes a
// keyboard or a terminal escape sequence.
type KeySource interface {
	// Next blocks until a key event is available, or returns ok=false once
	// the source is exhausted (e.g. the underlying connection closed).
	Next() (key.Event, bool)
}

// Application is the central coordinator for all Keystorm components.
// It manages component lifecycles, wiring, and the main event loop.
type Application struct {
	mu sync.RWMutex

	// Core infrastructure
	eventBus event.Bus
	config   *config.Config

	// Editor components
	keys        KeySource
	modeManager *mode.Manager
	dispatcher  *dispatcher.Dispatcher

	// Document management
	documents *DocumentManager

	// Workspace components
	project   project.Project
	lsp       *lsp.Manager
	docSync   *lsp.DocumentSync
	broker    *broker.Broker
	syntaxMgr *syntax.Manager
	languages *syntax.LanguageLoader

	// Event subscriptions
	subscriptions *subscriptionManager

	// Logging
	logger *Logger

	// syntaxPollState remembers each document's last poll outcome so the
	// tick loop logs transitions instead of spamming at 60Hz.
	syntaxPollState map[string]syntax.SyntaxPollResult

	// syntaxVersionSeen remembers each document's last observed syntax
	// version so highlight invalidation fires once per installed tree.
	syntaxVersionSeen map[string]uint64

	// State
	running atomic.Bool
	done    chan struct{}

	// Shutdown synchronization
	shutdownOnce sync.Once

	// Options
	opts Options
}

// Options configures the application.
type Options struct {
	// ConfigPath is the path to the configuration file.
	ConfigPath string

	// WorkspacePath is the workspace/project directory.
	WorkspacePath string

	// Files are files to open on startup.
	Files []string

	// Debug enables debug mode with extra logging.
	Debug bool

	// LogLevel sets the logging verbosity.
	LogLevel string

	// ReadOnly opens files in read-only mode.
	ReadOnly bool
}

// New creates a new Application with the given options.
func New(opts Options) (*Application, error) {
	app := &Application{
		opts: opts,
		done: make(chan struct{}),
	}

	// Use bootstrapper for component initialization with cleanup on failure
	b := newBootstrapper(app, opts)
	if err := b.bootstrap(); err != nil {
		return nil, err
	}

	// Wire event subscriptions after successful bootstrap
	if err := app.WireEventSubscriptions(); err != nil {
		b.cleanup()
		return nil, &InitError{Component: "event subscriptions", Err: err}
	}

	return app, nil
}

// SetKeySource sets the source of key events driving the main loop.
// Must be called before Run().
func (app *Application) SetKeySource(ks KeySource) error {
	app.mu.Lock()
	defer app.mu.Unlock()

	if app.running.Load() {
		return ErrAlreadyRunning
	}

	app.keys = ks
	return nil
}

// Run starts the application main loop.
// Blocks until shutdown is requested.
func (app *Application) Run() error {
	if !app.running.CompareAndSwap(false, true) {
		return ErrAlreadyRunning
	}
	defer app.running.Store(false)

	// Wire dispatcher to active document
	app.WireDispatcher()

	// Set initial mode
	if err := app.modeManager.SetInitialMode("normal"); err != nil {
		// Non-fatal, continue without mode
		_ = err
	}

	// Run main event loop
	return app.eventLoop()
}

// eventLoop is the main application loop.
func (app *Application) eventLoop() error {
	if app.keys == nil {
		// No key source (e.g. a headless/broker-only session) - wait for shutdown.
		<-app.done
		return nil
	}

	const (
		tickRate = 60
		tickTime = time.Second / tickRate
	)

	ticker := time.NewTicker(tickTime)
	defer ticker.Stop()

	// Start input polling goroutine
	inputEvents := app.startInputPolling()

	for app.running.Load() {
		select {
		case <-app.done:
			return nil

		case ev, ok := <-inputEvents:
			if !ok {
				// Input channel closed
				return nil
			}
			// Handle input event
			if err := app.handleKeyEvent(ev); err != nil {
				if err == ErrQuit {
					return nil
				}
				// Log error but continue
				_ = err
			}

		case <-ticker.C:
			// Drive the syntax manager and the LSP sync scheduler, both
			// polled on every tick rather than driven directly by edits,
			// and let a host-side frontend know a redraw is due.
			app.driveSyntax()
			app.driveLSPSync()
			app.publishRedrawNeeded()
		}
	}

	return nil
}

// driveSyntax polls the background syntax scheduler for the active
// document. The active document is Visible; everything else open is Warm,
// so retention policy can see it is still wanted without scheduling work
// for it.
func (app *Application) driveSyntax() {
	if app.syntaxMgr == nil || app.documents == nil {
		return
	}
	active := app.documents.Active()
	if active == nil || active.LanguageID == "" {
		return
	}
	langID := syntax.LanguageID(active.LanguageID)
	if !app.languages.Supports(langID) {
		return
	}
	content := []byte(active.Content())
	viewport := syntax.ByteRange{Start: 0, End: uint32(len(content))}
	result := app.syntaxMgr.EnsureSyntax(syntax.EnsureSyntaxContext{
		DocID:      engine.DocumentID(active.Path),
		DocVersion: uint64(active.Version()),
		LanguageID: &langID,
		Content:    content,
		Hotness:    syntax.Visible,
		Viewport:   &viewport,
		Loader:     app.languages,
	})

	if app.syntaxPollState == nil {
		app.syntaxPollState = make(map[string]syntax.SyntaxPollResult)
	}
	if prev, ok := app.syntaxPollState[active.Path]; !ok || prev != result {
		app.syntaxPollState[active.Path] = result
		app.Logger().WithComponent("syntax").Debug("poll state %s (doc=%s version=%d)",
			result.String(), active.Name, active.Version())
	}

	// A syntax version step means a tree was installed, dropped, or the
	// document re-parsed; tell subscribed frontends their highlight caches
	// are stale.
	if active.Engine != nil {
		sv := active.Engine.Document().SyntaxVersion()
		if app.syntaxVersionSeen == nil {
			app.syntaxVersionSeen = make(map[string]uint64)
		}
		if prev, ok := app.syntaxVersionSeen[active.Path]; !ok || prev != sv {
			app.syntaxVersionSeen[active.Path] = sv
			if app.eventBus != nil {
				payload := events.RendererHighlightInvalidated{
					BufferID: active.Path,
					Reason:   "syntax",
				}
				ev := event.NewEvent(events.TopicRendererHighlightInvalidated, payload, "syntax")
				_ = app.eventBus.PublishAsync(context.Background(), ev)
			}
		}
	}
}

// driveLSPSync flushes every tracked document's pending LSP changes.
// Flushes are cheap no-ops when nothing is queued; failed sends keep
// their queues and retry on a later tick.
func (app *Application) driveLSPSync() {
	if app.docSync == nil {
		return
	}
	_ = app.docSync.FlushAll(context.Background())
}

// publishRedrawNeeded notifies subscribers (a terminal UI, a GUI frontend,
// a test harness) that the active document may have changed and a redraw
// is due. This package renders nothing itself.
func (app *Application) publishRedrawNeeded() {
	if app.eventBus == nil {
		return
	}
	doc := app.documents.Active()
	if doc == nil {
		return
	}
	payload := events.RendererRedrawNeeded{
		BufferID:   doc.Path,
		FullRedraw: false,
		Reason:     "tick",
	}
	ev := event.NewEvent(events.TopicRendererRedrawNeeded, payload, "app")
	_ = app.eventBus.PublishAsync(context.Background(), ev)
}

// Shutdown initiates graceful shutdown.
// Safe to call multiple times.
func (app *Application) Shutdown() {
	app.shutdownOnce.Do(func() {
		// Signal event loop to stop
		close(app.done)

		// Perform cleanup if running
		if app.running.Load() {
			app.shutdown()
		}
	})
}

// shutdown performs cleanup in reverse initialization order.
func (app *Application) shutdown() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	var wg sync.WaitGroup

	// 1. Stop LSP
	if app.lsp != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			app.lsp.Shutdown(ctx)
		}()
	}

	// Wait for async shutdowns with timeout
	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-ctx.Done():
		// Timeout - continue with cleanup
	}

	// 4. Close project
	if app.project != nil {
		app.project.Close(ctx)
	}

	// 5. Cleanup event subscriptions (before stopping event bus)
	// Subscriptions must be cleaned up while event bus is still running
	// to properly unsubscribe handlers.
	if app.subscriptions != nil {
		app.subscriptions.cleanup()
	}

	// 6. Close config
	if app.config != nil {
		app.config.Close()
	}

	// 7. Stop event bus
	if app.eventBus != nil {
		app.eventBus.Stop(ctx)
	}
}

// IsRunning returns true if the application is running.
func (app *Application) IsRunning() bool {
	return app.running.Load()
}

// EventBus returns the event bus.
func (app *Application) EventBus() event.Bus {
	return app.eventBus
}

// Config returns the configuration system.
func (app *Application) Config() *config.Config {
	return app.config
}

// ModeManager returns the mode manager.
func (app *Application) ModeManager() *mode.Manager {
	return app.modeManager
}

// Dispatcher returns the dispatcher.
func (app *Application) Dispatcher() *dispatcher.Dispatcher {
	return app.dispatcher
}

// Documents returns the document manager.
func (app *Application) Documents() *DocumentManager {
	return app.documents
}

// Project returns the project (may be nil).
func (app *Application) Project() project.Project {
	return app.project
}

// LSP returns the LSP manager.
func (app *Application) LSP() *lsp.Manager {
	return app.lsp
}

// Broker returns the buffer-sync broker (may be nil).
func (app *Application) Broker() *broker.Broker {
	return app.broker
}

// Syntax returns the background syntax scheduler.
func (app *Application) Syntax() *syntax.Manager {
	return app.syntaxMgr
}

// DocumentSync returns the LSP change-sync scheduler (may be nil when no
// LSP manager is configured).
func (app *Application) DocumentSync() *lsp.DocumentSync {
	return app.docSync
}

// ActiveDocument returns the active document (may be nil).
func (app *Application) ActiveDocument() *Document {
	return app.documents.Active()
}

// InitError represents an initialization error.
type InitError struct {
	Component string
	Err       error
}

func (e *InitError) Error() string {
	if e == nil {
		return ""
	}
	if e.Err == nil {
		return "init " + e.Component
	}
	return "init " + e.Component + ": " + e.Err.Error()
}

func (e *InitError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}
