// Package app provides the main application structure and coordination.
package app

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/dshills/keystorm/internal/config/notify"
	"github.com/dshills/keystorm/internal/event"
	"github.com/dshills/keystorm/internal/event/events"
	"github.com/dshills/keystorm/internal/event/topic"
	"github.com/dshills/keystorm/internal/lsp"
)

// Event topics used throughout the application.
const (
	// Buffer events
	TopicBufferContentInserted topic.Topic = "buffer.content.inserted"
	TopicBufferContentDeleted  topic.Topic = "buffer.content.deleted"
	TopicBufferContentReplaced topic.Topic = "buffer.content.replaced"
	TopicBufferContentChanged  topic.Topic = "buffer.content.*"

	// Config events
	TopicConfigChanged        topic.Topic = "config.changed"
	TopicConfigChangedUI      topic.Topic = "config.changed.ui"
	TopicConfigChangedUITheme topic.Topic = "config.changed.ui.theme"
	TopicConfigChangedKeymaps topic.Topic = "config.changed.keymaps"
	TopicConfigChangedAll     topic.Topic = "config.changed.*"

	// Mode events
	TopicModeChanged topic.Topic = "mode.changed"

	// File events
	TopicFileOpened  topic.Topic = "file.opened"
	TopicFileClosed  topic.Topic = "file.closed"
	TopicFileSaved   topic.Topic = "file.saved"
	TopicFileChanged topic.Topic = "file.*"

	// Document events
	TopicDocumentModified  topic.Topic = "document.modified"
	TopicDocumentActivated topic.Topic = "document.activated"
)

// subscriptionManager manages event bus subscriptions for the application.
type subscriptionManager struct {
	mu            sync.RWMutex
	subscriptions []event.Subscription
	app           *Application
}

// newSubscriptionManager creates a new subscription manager.
func newSubscriptionManager(app *Application) *subscriptionManager {
	return &subscriptionManager{
		subscriptions: make([]event.Subscription, 0),
		app:           app,
	}
}

// setupSubscriptions registers all event subscriptions.
func (sm *subscriptionManager) setupSubscriptions() error {
	if sm.app.eventBus == nil {
		return nil
	}

	// Buffer changes -> redraw notification for the host frontend
	if err := sm.subscribeBufferToRedraw(); err != nil {
		return err
	}

	// Buffer changes -> LSP flush nudge
	if err := sm.subscribeBufferToLSP(); err != nil {
		return err
	}

	// Config changes -> Component updates
	if err := sm.subscribeConfigChanges(); err != nil {
		return err
	}

	// Mode changes -> Status line update
	if err := sm.subscribeModeChanges(); err != nil {
		return err
	}

	// LSP diagnostics -> log + host notification
	if err := sm.subscribeDiagnostics(); err != nil {
		return err
	}

	// File events -> Project refresh
	if err := sm.subscribeFileToProject(); err != nil {
		return err
	}

	return nil
}

// subscribeBufferToRedraw subscribes to buffer changes so a host frontend
// hears about programmatic edits without waiting for the next tick.
func (sm *subscriptionManager) subscribeBufferToRedraw() error {
	sub, err := sm.app.eventBus.SubscribeFunc(
		TopicBufferContentChanged,
		sm.handleBufferChangeForRedraw,
		event.WithPriority(event.PriorityLow),
		event.WithDeliveryMode(event.DeliverySync),
	)
	if err != nil {
		return err
	}
	sm.addSubscription(sub)
	return nil
}

// subscribeBufferToLSP subscribes to buffer changes for LSP sync.
func (sm *subscriptionManager) subscribeBufferToLSP() error {
	sub, err := sm.app.eventBus.SubscribeFunc(
		TopicBufferContentChanged,
		sm.handleBufferChangeForLSP,
		event.WithPriority(event.PriorityNormal),
		event.WithDeliveryMode(event.DeliveryAsync),
	)
	if err != nil {
		return err
	}
	sm.addSubscription(sub)
	return nil
}

// subscribeConfigChanges subscribes to config change events.
func (sm *subscriptionManager) subscribeConfigChanges() error {
	sub, err := sm.app.eventBus.SubscribeFunc(
		TopicConfigChangedAll,
		sm.handleConfigChange,
		event.WithPriority(event.PriorityHigh),
		event.WithDeliveryMode(event.DeliverySync),
	)
	if err != nil {
		return err
	}
	sm.addSubscription(sub)
	return nil
}

// subscribeModeChanges subscribes to mode change events.
func (sm *subscriptionManager) subscribeModeChanges() error {
	sub, err := sm.app.eventBus.SubscribeFunc(
		TopicModeChanged,
		sm.handleModeChange,
		event.WithPriority(event.PriorityNormal),
		event.WithDeliveryMode(event.DeliverySync),
	)
	if err != nil {
		return err
	}
	sm.addSubscription(sub)
	return nil
}

// subscribeDiagnostics subscribes to LSP diagnostic events published by the
// manager's diagnostics callback (wired in bootstrap).
func (sm *subscriptionManager) subscribeDiagnostics() error {
	sub, err := sm.app.eventBus.SubscribeFunc(
		events.TopicLSPDiagnosticsPublished,
		sm.handleDiagnostics,
		event.WithPriority(event.PriorityNormal),
		event.WithDeliveryMode(event.DeliveryAsync),
	)
	if err != nil {
		return err
	}
	sm.addSubscription(sub)
	return nil
}

// subscribeFileToProject subscribes to file events for project refresh.
func (sm *subscriptionManager) subscribeFileToProject() error {
	sub, err := sm.app.eventBus.SubscribeFunc(
		TopicFileChanged,
		sm.handleFileChange,
		event.WithPriority(event.PriorityLow),
		event.WithDeliveryMode(event.DeliveryAsync),
	)
	if err != nil {
		return err
	}
	sm.addSubscription(sub)
	return nil
}

// addSubscription adds a subscription to the managed list.
func (sm *subscriptionManager) addSubscription(sub event.Subscription) {
	sm.mu.Lock()
	defer sm.mu.Unlock()
	sm.subscriptions = append(sm.subscriptions, sub)
}

// cleanup unsubscribes all managed subscriptions.
// Safe to call multiple times (idempotent).
func (sm *subscriptionManager) cleanup() {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	if sm.app == nil || sm.app.eventBus == nil {
		sm.subscriptions = nil
		return
	}

	for _, sub := range sm.subscriptions {
		if sub != nil {
			_ = sm.app.eventBus.Unsubscribe(sub)
		}
	}
	sm.subscriptions = nil
}

// Event Handlers

// handleBufferChangeForRedraw forwards programmatic buffer changes as a
// redraw notification so a host frontend repaints before the next tick.
func (sm *subscriptionManager) handleBufferChangeForRedraw(ctx context.Context, ev any) error {
	if sm.app.eventBus == nil {
		return nil
	}

	payload, ok := ev.(event.Event[BufferChangePayload])
	if !ok {
		return nil
	}

	redraw := events.RendererRedrawNeeded{
		BufferID:   payload.Payload.Path,
		FullRedraw: false,
		Reason:     "edit",
	}
	out := event.NewEvent(events.TopicRendererRedrawNeeded, redraw, "app")
	return sm.app.eventBus.PublishAsync(ctx, out)
}

// handleBufferChangeForLSP nudges the sync scheduler for the changed
// document. Commits already queued their changes on the engine document;
// this just flushes ahead of the tick cadence so the server catches up
// promptly after programmatic edits.
func (sm *subscriptionManager) handleBufferChangeForLSP(ctx context.Context, ev any) error {
	if sm.app.docSync == nil {
		return nil
	}

	path := ""
	if payload, ok := ev.(event.Event[BufferChangePayload]); ok {
		path = payload.Payload.Path
	}
	if path == "" {
		doc := sm.app.documents.Active()
		if doc == nil {
			return nil
		}
		path = doc.Path
	}

	if doc, ok := sm.app.documents.Get(path); ok {
		doc.SetModified(true)
	}

	if !sm.app.docSync.IsTracked(path) {
		return nil
	}

	lspCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	if err := sm.app.docSync.Flush(lspCtx, path); err != nil {
		// Non-fatal; the queue is preserved and the tick loop retries.
		_ = err
	}
	return nil
}

// handleConfigChange handles configuration change events.
func (sm *subscriptionManager) handleConfigChange(_ context.Context, ev any) error {
	// Extract topic from event to determine what changed
	envelope := event.ToEnvelope(ev)
	if envelope.Topic == "" {
		return nil
	}

	// Handle theme changes
	if envelope.Topic.HasPrefix(TopicConfigChangedUITheme) {
		// Theme application is a host frontend concern; nothing to do here.
	}

	// Handle keymap changes
	if envelope.Topic.HasPrefix(TopicConfigChangedKeymaps) {
		// Keymap reload would be triggered here
		// Mode manager would need to reload keybindings
	}

	return nil
}

// handleModeChange handles mode change events.
func (sm *subscriptionManager) handleModeChange(_ context.Context, _ any) error {
	// Mode changes are reflected in the status line through the render cycle
	// This handler could be used for mode-specific setup
	return nil
}

// handleDiagnostics logs received diagnostics. Display is a host frontend
// concern; the payload stays on the bus for any subscribed surface.
func (sm *subscriptionManager) handleDiagnostics(_ context.Context, ev any) error {
	payload, ok := ev.(event.Event[events.LSPDiagnosticsPublished])
	if !ok {
		return nil
	}
	sm.app.Logger().WithComponent("lsp").Debug("diagnostics for %s: %d",
		payload.Payload.URI, len(payload.Payload.Diagnostics))
	return nil
}

// handleFileChange handles file events for project refresh.
func (sm *subscriptionManager) handleFileChange(_ context.Context, _ any) error {
	if sm.app.project == nil {
		return nil
	}

	// The project module watches its own roots; nothing to force here.
	return nil
}

// BufferChangePayload contains data for buffer change events.
type BufferChangePayload struct {
	// Path is the document path.
	Path string

	// StartOffset is the byte offset where the change started.
	StartOffset int

	// EndOffset is the byte offset where the change ended (before edit).
	EndOffset int

	// Text is the new text that was inserted.
	Text string

	// OldText is the text that was replaced (if any).
	OldText string
}

// ConfigChangePayload contains data for config change events.
type ConfigChangePayload struct {
	// Key is the configuration key that changed.
	Key string

	// OldValue is the previous value.
	OldValue any

	// NewValue is the new value.
	NewValue any
}

// ModeChangePayload contains data for mode change events.
type ModeChangePayload struct {
	// PreviousMode is the name of the previous mode.
	PreviousMode string

	// CurrentMode is the name of the new mode.
	CurrentMode string
}

// FileEventPayload contains data for file events.
type FileEventPayload struct {
	// Path is the file path.
	Path string

	// Action is the action that occurred (opened, closed, saved).
	Action string
}

// PublishBufferChange publishes a buffer change event.
func (app *Application) PublishBufferChange(ctx context.Context, topicName topic.Topic, payload BufferChangePayload) error {
	if app.eventBus == nil {
		return nil
	}
	ev := event.NewEvent(topicName, payload, "app")
	return app.eventBus.Publish(ctx, ev)
}

// PublishModeChange publishes a mode change event.
func (app *Application) PublishModeChange(ctx context.Context, previous, current string) error {
	if app.eventBus == nil {
		return nil
	}
	payload := ModeChangePayload{
		PreviousMode: previous,
		CurrentMode:  current,
	}
	ev := event.NewEvent(TopicModeChanged, payload, "app")
	return app.eventBus.PublishSync(ctx, ev)
}

// PublishFileEvent publishes a file event.
func (app *Application) PublishFileEvent(ctx context.Context, topicName topic.Topic, path string) error {
	if app.eventBus == nil {
		return nil
	}
	payload := FileEventPayload{
		Path:   path,
		Action: topicName.Base(),
	}
	ev := event.NewEvent(topicName, payload, "app")
	return app.eventBus.Publish(ctx, ev)
}

// publishConfigChange is the config system's change observer. Changes are
// republished section-scoped ("config.changed.ui", "config.changed.keymaps")
// so subscribers can filter on the segment they care about.
func (app *Application) publishConfigChange(change notify.Change) {
	if app.eventBus == nil {
		return
	}

	t := TopicConfigChanged
	if change.Path != "" {
		section := change.Path
		if i := strings.IndexByte(section, '.'); i >= 0 {
			section = section[:i]
		}
		t = topic.Topic(string(TopicConfigChanged) + "." + section)
	}

	payload := events.ConfigChanged{
		Path:     change.Path,
		OldValue: change.OldValue,
		NewValue: change.NewValue,
		Source:   events.ConfigSource(change.Source),
	}
	ev := event.NewEvent(t, payload, "config")
	_ = app.eventBus.PublishAsync(context.Background(), ev)
}

// publishDiagnostics is the LSP manager's diagnostics callback. It
// converts wire diagnostics to the bus payload shape and publishes them
// for whatever surfaces subscribe.
func (app *Application) publishDiagnostics(uri lsp.DocumentURI, diags []lsp.Diagnostic) {
	if app.eventBus == nil {
		return
	}

	converted := make([]events.Diagnostic, 0, len(diags))
	for _, d := range diags {
		code := ""
		if s, ok := d.Code.(string); ok {
			code = s
		}
		converted = append(converted, events.Diagnostic{
			Range: events.Range{
				Start: events.Position{Line: d.Range.Start.Line, Column: d.Range.Start.Character},
				End:   events.Position{Line: d.Range.End.Line, Column: d.Range.End.Character},
			},
			Severity: events.DiagnosticSeverity(d.Severity),
			Code:     code,
			Source:   d.Source,
			Message:  d.Message,
		})
	}

	langID := ""
	if doc, ok := app.documents.Get(lsp.URIToFilePath(uri)); ok {
		langID = doc.LanguageID
	}

	payload := events.LSPDiagnosticsPublished{
		URI:         string(uri),
		LanguageID:  langID,
		Diagnostics: converted,
	}
	ev := event.NewEvent(events.TopicLSPDiagnosticsPublished, payload, "lsp")
	_ = app.eventBus.PublishAsync(context.Background(), ev)
}
