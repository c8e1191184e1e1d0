package app

import (
	"context"
	"strconv"
	"strings"
	"time"

	"github.com/dshills/keystorm/internal/broker"
	"github.com/dshills/keystorm/internal/config"
	"github.com/dshills/keystorm/internal/dispatcher"
	"github.com/dshills/keystorm/internal/engine"
	"github.com/dshills/keystorm/internal/event"
	"github.com/dshills/keystorm/internal/input/mode"
	"github.com/dshills/keystorm/internal/lsp"
	"github.com/dshills/keystorm/internal/project"
	"github.com/dshills/keystorm/internal/syntax"
)

// bootstrapper handles component initialization with proper cleanup on failure.
type bootstrapper struct {
	app       *Application
	opts      Options
	initOrder []string
}

// newBootstrapper creates a new bootstrapper for the application.
func newBootstrapper(app *Application, opts Options) *bootstrapper {
	return &bootstrapper{
		app:       app,
		opts:      opts,
		initOrder: make([]string, 0, 10),
	}
}

// bootstrap initializes all components in dependency order.
// On failure, it cleans up already-initialized components.
func (b *bootstrapper) bootstrap() error {
	var err error

	// 1. Event Bus - messaging foundation
	if err = b.initEventBus(); err != nil {
		b.cleanup()
		return err
	}

	// 2. Config System
	if err = b.initConfig(); err != nil {
		b.cleanup()
		return err
	}

	// 3. Mode Manager
	if err = b.initModeManager(); err != nil {
		b.cleanup()
		return err
	}

	// 4. Dispatcher
	if err = b.initDispatcher(); err != nil {
		b.cleanup()
		return err
	}

	// 5. Project (if workspace specified)
	if err = b.initProject(); err != nil {
		b.cleanup()
		return err
	}

	// 6. LSP Manager
	if err = b.initLSP(); err != nil {
		b.cleanup()
		return err
	}

	// 7. Buffer-sync broker
	if err = b.initBroker(); err != nil {
		b.cleanup()
		return err
	}

	// 8. Background syntax scheduler
	if err = b.initSyntax(); err != nil {
		b.cleanup()
		return err
	}

	// 9. Open initial files and setup documents
	if err = b.initDocuments(); err != nil {
		b.cleanup()
		return err
	}

	return nil
}

// initEventBus initializes the event bus.
func (b *bootstrapper) initEventBus() error {
	b.app.eventBus = event.NewBus()
	if err := b.app.eventBus.Start(); err != nil {
		return &InitError{Component: "event bus", Err: err}
	}
	b.initOrder = append(b.initOrder, "eventBus")
	return nil
}

// initConfig initializes the configuration system.
func (b *bootstrapper) initConfig() error {
	var configOpts []config.Option

	if b.opts.ConfigPath != "" {
		// ConfigPath specifies user config directory
		configOpts = append(configOpts, config.WithUserConfigDir(b.opts.ConfigPath))
	}

	if b.opts.WorkspacePath != "" {
		configOpts = append(configOpts, config.WithProjectConfigDir(b.opts.WorkspacePath))
	}

	b.app.config = config.New(configOpts...)

	// Load configuration - errors are non-fatal, use defaults
	if err := b.app.config.Load(context.Background()); err != nil {
		// Log warning in production but continue with defaults
		_ = err
	}

	// Bridge setting changes onto the event bus so components hear about
	// them without holding a reference to the config system.
	b.app.config.Subscribe(b.app.publishConfigChange)

	b.initOrder = append(b.initOrder, "config")
	return nil
}

// initModeManager initializes the mode manager with default modes.
func (b *bootstrapper) initModeManager() error {
	b.app.modeManager = mode.NewManager()

	// Register default editing modes
	b.registerModes()

	b.initOrder = append(b.initOrder, "modeManager")
	return nil
}

// registerModes registers the default editing modes.
func (b *bootstrapper) registerModes() {
	b.app.modeManager.Register(mode.NewNormalMode())
	b.app.modeManager.Register(mode.NewInsertMode())
	b.app.modeManager.Register(mode.NewVisualMode())
	b.app.modeManager.Register(mode.NewVisualLineMode())
	b.app.modeManager.Register(mode.NewCommandMode())
	b.app.modeManager.Register(mode.NewOperatorPendingMode())
	b.app.modeManager.Register(mode.NewReplaceMode())
}

// initDispatcher initializes the dispatcher with handlers.
func (b *bootstrapper) initDispatcher() error {
	dispatcherConfig := dispatcher.DefaultConfig()
	dispatcherConfig.RecoverFromPanic = true
	dispatcherConfig.EnableMetrics = b.opts.Debug

	b.app.dispatcher = dispatcher.New(dispatcherConfig)

	// Capability adapters (text, edit, selection, history, mode, viewport)
	// are wired per-document in wireDispatcherContext.

	// Register core handlers
	b.registerHandlers()

	b.initOrder = append(b.initOrder, "dispatcher")
	return nil
}

// registerHandlers registers all dispatcher handlers and seals the
// registry's builtin layer; runtime registrations (plugins) land in the
// append-only overlay from here on.
func (b *bootstrapper) registerHandlers() {
	RegisterHandlers(b.app.dispatcher)
	b.app.dispatcher.Registry().Freeze()
}

// initProject initializes the project/workspace manager.
func (b *bootstrapper) initProject() error {
	if b.opts.WorkspacePath == "" {
		// No workspace specified - skip project initialization
		return nil
	}

	proj := project.New(project.WithConfig(project.DefaultConfig()))
	if err := proj.Open(context.Background(), b.opts.WorkspacePath); err != nil {
		// Project open errors are non-fatal - continue without project
		_ = err
		return nil
	}

	b.app.project = proj
	b.initOrder = append(b.initOrder, "project")
	return nil
}

// initLSP initializes the LSP manager.
func (b *bootstrapper) initLSP() error {
	b.app.lsp = lsp.NewManager(
		lsp.WithRequestTimeout(10*time.Second),
		lsp.WithDiagnosticsCallback(b.app.publishDiagnostics),
	)

	// Register default language servers based on detection
	for lang, cfg := range lsp.AutoDetectServers() {
		b.app.lsp.RegisterServer(lang, cfg)
	}

	// Set workspace folders if project is open
	if b.app.project != nil {
		b.app.lsp.SetWorkspaceFolders(lsp.DetectWorkspaceFolders(b.app.project.Root()))
	}

	// The sync scheduler drains each tracked document's commit-pipeline
	// change queue and ships coalesced didChange batches through the
	// manager's per-language servers.
	b.app.docSync = lsp.NewDocumentSync(lsp.NewManagerSink(b.app.lsp))

	b.initOrder = append(b.initOrder, "lsp")
	return nil
}

// initBroker initializes the buffer-sync broker shared by multi-client
// editing sessions. No transport is wired here; a host attaches an
// EventSink (e.g. a websocket transport) once it accepts connections.
func (b *bootstrapper) initBroker() error {
	if b.app.config != nil && !b.app.config.Broker().Enabled {
		return nil
	}
	b.app.broker = broker.New()
	b.initOrder = append(b.initOrder, "broker")
	return nil
}

// initSyntax initializes the background syntax scheduler and the grammar
// loader it parses with, applying any tier budgets from configuration.
func (b *bootstrapper) initSyntax() error {
	cfg := syntax.ManagerCfg{}
	if b.app.config != nil {
		cfg.MaxConcurrency = b.app.config.Syntax().MaxConcurrency
	}
	b.app.syntaxMgr = syntax.NewManager(cfg)
	if b.app.config != nil {
		b.app.syntaxMgr.SetPolicy(syntaxPolicyFromConfig(b.app.config.Syntax()))
	}
	b.app.languages = syntax.NewLanguageLoader()
	b.initOrder = append(b.initOrder, "syntax")
	return nil
}

// syntaxPolicyFromConfig merges the configured tier blocks over the
// built-in defaults.
func syntaxPolicyFromConfig(sc config.SyntaxConfig) syntax.TieredSyntaxPolicy {
	p := syntax.DefaultTieredSyntaxPolicy()
	if sc.SMaxKB > 0 {
		p.SMaxBytesInclusive = uint64(sc.SMaxKB) * 1024
	}
	if sc.MMaxKB > 0 {
		p.MMaxBytesInclusive = uint64(sc.MMaxKB) * 1024
	}
	p.S = syntaxTierFromConfig(sc.S, p.S)
	p.M = syntaxTierFromConfig(sc.M, p.M)
	p.L = syntaxTierFromConfig(sc.L, p.L)
	return p
}

func syntaxTierFromConfig(tc config.SyntaxTierConfig, def syntax.TierCfg) syntax.TierCfg {
	out := def
	if tc.ParseTimeoutMs > 0 {
		out.ParseTimeout = time.Duration(tc.ParseTimeoutMs) * time.Millisecond
	}
	if tc.DebounceMs > 0 {
		out.Debounce = time.Duration(tc.DebounceMs) * time.Millisecond
	}
	if tc.CooldownOnTimeoutMs > 0 {
		out.CooldownOnTimeout = time.Duration(tc.CooldownOnTimeoutMs) * time.Millisecond
	}
	if tc.CooldownOnErrorMs > 0 {
		out.CooldownOnError = time.Duration(tc.CooldownOnErrorMs) * time.Millisecond
	}
	switch tc.Injections {
	case "eager":
		out.Injections = syntax.InjectionEager
	case "disabled":
		out.Injections = syntax.InjectionDisabled
	}
	if retention, ok := retentionFromConfig(tc.RetentionHidden); ok {
		out.RetentionHiddenFull = retention
		out.RetentionHiddenViewport = retention
	}
	out.ParseWhenHidden = tc.ParseWhenHidden
	if tc.ViewportStageBBudgetMs > 0 {
		budget := time.Duration(tc.ViewportStageBBudgetMs) * time.Millisecond
		out.ViewportStageBBudget = &budget
	}
	if tc.ViewportStageBMinStable > 0 {
		out.ViewportStageBMinStable = tc.ViewportStageBMinStable
	}
	return out
}

// retentionFromConfig parses "keep", "drop", or an "Ns" TTL.
func retentionFromConfig(s string) (syntax.RetentionPolicy, bool) {
	switch {
	case s == "keep":
		return syntax.Keep(), true
	case s == "drop":
		return syntax.DropWhenHidden(), true
	case strings.HasSuffix(s, "s"):
		n, err := strconv.Atoi(strings.TrimSuffix(s, "s"))
		if err != nil || n <= 0 {
			return syntax.RetentionPolicy{}, false
		}
		return syntax.DropAfter(time.Duration(n) * time.Second), true
	default:
		return syntax.RetentionPolicy{}, false
	}
}

// initDocuments initializes the document manager and opens initial files.
func (b *bootstrapper) initDocuments() error {
	b.app.documents = NewDocumentManager()

	// Opening a file-backed document registers it with the LSP sync
	// scheduler, which enables the engine Document's pending-change queue.
	b.app.documents.SetOpenHook(func(doc *Document) {
		if b.app.docSync == nil || doc.IsScratch() || doc.LanguageID == "" {
			return
		}
		_ = b.app.docSync.Track(doc.Path, doc.LanguageID, doc.Engine.Document(),
			lsp.TextDocumentSyncKindIncremental, lsp.EncodingUTF16)
	})

	// Closing a document must abort its in-flight parses, drop its syntax
	// state, and untrack it from LSP sync (which emits didClose).
	b.app.documents.SetCloseHook(func(path string) {
		if b.app.syntaxMgr != nil {
			b.app.syntaxMgr.OnDocumentClose(engine.DocumentID(path))
		}
		if b.app.docSync != nil && b.app.docSync.IsTracked(path) {
			_ = b.app.docSync.Untrack(context.Background(), path)
		}
	})

	// Open initial files
	for _, file := range b.opts.Files {
		doc, err := b.app.documents.Open(file)
		if err != nil {
			// File open errors are non-fatal for startup
			continue
		}
		doc.ReadOnly = b.opts.ReadOnly
	}

	// Create scratch buffer if no files opened
	if b.app.documents.Count() == 0 {
		b.app.documents.CreateScratch()
	}

	b.initOrder = append(b.initOrder, "documents")
	return nil
}

// cleanup performs cleanup in reverse initialization order.
// Called when bootstrap fails partway through.
func (b *bootstrapper) cleanup() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	// Cleanup in reverse order
	for i := len(b.initOrder) - 1; i >= 0; i-- {
		component := b.initOrder[i]
		b.cleanupComponent(ctx, component)
	}
}

// cleanupComponent cleans up a single component.
func (b *bootstrapper) cleanupComponent(ctx context.Context, component string) {
	switch component {
	case "eventBus":
		if b.app.eventBus != nil {
			b.app.eventBus.Stop(ctx)
			b.app.eventBus = nil
		}
	case "config":
		if b.app.config != nil {
			b.app.config.Close()
			b.app.config = nil
		}
	case "modeManager":
		b.app.modeManager = nil
	case "dispatcher":
		b.app.dispatcher = nil
	case "project":
		if b.app.project != nil {
			b.app.project.Close(ctx)
			b.app.project = nil
		}
	case "lsp":
		if b.app.lsp != nil {
			b.app.lsp.Shutdown(ctx)
			b.app.lsp = nil
		}
		b.app.docSync = nil
	case "broker":
		b.app.broker = nil
	case "syntax":
		b.app.syntaxMgr = nil
		b.app.languages = nil
	case "documents":
		b.app.documents = nil
	}
}

// WireEventSubscriptions sets up event subscriptions between components.
// Called after bootstrap completes successfully.
// Prerequisites: eventBus must be initialized and started.
func (app *Application) WireEventSubscriptions() error {
	if app.eventBus == nil {
		return nil
	}

	// Create and initialize subscription manager
	app.subscriptions = newSubscriptionManager(app)
	if err := app.subscriptions.setupSubscriptions(); err != nil {
		return &InitError{Component: "subscriptions", Err: err}
	}

	return nil
}

// WireDispatcher connects the dispatcher to active document.
func (app *Application) WireDispatcher() {
	if app.dispatcher == nil {
		return
	}

	doc := app.documents.Active()
	if doc == nil {
		return
	}

	app.wireDispatcherContext(doc)
}

// SwitchDocument changes the active document and re-wires the dispatcher.
func (app *Application) SwitchDocument(doc *Document) {
	if doc == nil {
		return
	}

	app.documents.SetActive(doc)
	app.WireDispatcher()
}
