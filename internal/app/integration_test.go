package app

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/dshills/keystorm/internal/event"
	"github.com/dshills/keystorm/internal/event/events"
	"github.com/dshills/keystorm/internal/input"
	"github.com/dshills/keystorm/internal/lsp"
)

// testApp builds an application with no workspace or files.
func testApp(t *testing.T) *Application {
	t.Helper()
	app, err := New(Options{ConfigPath: t.TempDir()})
	if err != nil {
		t.Fatalf("New() failed: %v", err)
	}
	return app
}

// testAppWithContent builds an application with one open .go file holding
// content, returning the application and the file path.
func testAppWithContent(t *testing.T, content string) (*Application, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.go")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	app, err := New(Options{ConfigPath: t.TempDir(), Files: []string{path}})
	if err != nil {
		t.Fatalf("New() failed: %v", err)
	}
	if app.Documents().Active() == nil {
		t.Fatal("no active document after opening file")
	}
	return app, path
}

// TestEditorActionCommitPipeline drives a real editor action through the
// dispatcher and asserts the commit lands in the engine, the document is
// marked modified, and the buffer-change event reaches subscribers.
func TestEditorActionCommitPipeline(t *testing.T) {
	app, _ := testAppWithContent(t, "world")
	defer app.Shutdown()

	doc := app.Documents().Active()
	versionBefore := doc.Version()

	bufferEvents := 0
	sub, _ := app.EventBus().SubscribeFunc(TopicBufferContentChanged, func(context.Context, any) error {
		bufferEvents++
		return nil
	})
	defer app.EventBus().Unsubscribe(sub)

	app.WireDispatcher()
	if err := app.dispatchAction(&input.Action{
		Name: "editor.insertText",
		Args: input.ActionArgs{Text: "hello "},
	}); err != nil {
		t.Fatalf("dispatchAction() error = %v", err)
	}

	if got := doc.Content(); got != "hello world" {
		t.Errorf("content = %q, want %q", got, "hello world")
	}
	if doc.Version() != versionBefore+1 {
		t.Errorf("version = %d, want %d (exactly one commit)", doc.Version(), versionBefore+1)
	}
	if !doc.IsModified() {
		t.Error("document not marked modified after commit")
	}
	if bufferEvents != 1 {
		t.Errorf("buffer change events = %d, want 1", bufferEvents)
	}
}

// TestActionResultPublished asserts dispatched actions report their
// outcome on the bus.
func TestActionResultPublished(t *testing.T) {
	app, _ := testAppWithContent(t, "x")
	defer app.Shutdown()

	var executed, failed int
	subOK, _ := app.EventBus().SubscribeFunc(events.TopicDispatcherActionExecuted, func(context.Context, any) error {
		executed++
		return nil
	})
	defer app.EventBus().Unsubscribe(subOK)
	subErr, _ := app.EventBus().SubscribeFunc(events.TopicDispatcherActionFailed, func(context.Context, any) error {
		failed++
		return nil
	})
	defer app.EventBus().Unsubscribe(subErr)

	app.WireDispatcher()
	_ = app.dispatchAction(&input.Action{Name: "editor.insertText", Args: input.ActionArgs{Text: "y"}})
	_ = app.dispatchAction(&input.Action{Name: "editor.noSuchAction"})

	if executed != 1 {
		t.Errorf("executed events = %d, want 1", executed)
	}
	if failed != 1 {
		t.Errorf("failed events = %d, want 1", failed)
	}
}

// TestUndoRedoRoundTrip asserts each facade edit is one commit and one
// undo step, and redo restores the undone commit.
func TestUndoRedoRoundTrip(t *testing.T) {
	app, _ := testAppWithContent(t, "base")
	defer app.Shutdown()

	doc := app.Documents().Active()
	eng := doc.Engine

	for _, s := range []string{"A", "B", "C"} {
		if _, err := eng.Insert(0, s); err != nil {
			t.Fatalf("Insert(%q) error = %v", s, err)
		}
	}
	if got := eng.Text(); got != "CBAbase" {
		t.Fatalf("text = %q", got)
	}

	// Each Insert is its own commit and its own undo step.
	for i := 0; i < 3; i++ {
		if err := eng.Undo(); err != nil {
			t.Fatalf("Undo() error = %v", err)
		}
	}
	if got := eng.Text(); got != "base" {
		t.Errorf("text after undo = %q, want %q", got, "base")
	}
	if err := eng.Redo(); err != nil {
		t.Fatalf("Redo() error = %v", err)
	}
	if got := eng.Text(); got != "Abase" {
		t.Errorf("text after redo = %q, want %q", got, "Abase")
	}
}

// TestConfigChangeBridgedToBus asserts runtime Set calls surface as
// section-scoped config events.
func TestConfigChangeBridgedToBus(t *testing.T) {
	app := testApp(t)
	defer app.Shutdown()

	var gotPath string
	sub, _ := app.EventBus().SubscribeFunc(TopicConfigChangedAll, func(_ context.Context, ev any) error {
		if e, ok := ev.(event.Event[events.ConfigChanged]); ok {
			gotPath = e.Payload.Path
		}
		return nil
	})
	defer app.EventBus().Unsubscribe(sub)

	if err := app.Config().Set("ui.theme", "light"); err != nil {
		t.Fatalf("Set() error = %v", err)
	}

	if gotPath != "ui.theme" {
		t.Errorf("config change path = %q, want 'ui.theme'", gotPath)
	}
}

// TestDiagnosticsPublishedToBus asserts the LSP diagnostics callback
// converts and republishes on the events topic.
func TestDiagnosticsPublishedToBus(t *testing.T) {
	app, path := testAppWithContent(t, "package main\n")
	defer app.Shutdown()

	var got events.LSPDiagnosticsPublished
	sub, _ := app.EventBus().SubscribeFunc(events.TopicLSPDiagnosticsPublished, func(_ context.Context, ev any) error {
		if e, ok := ev.(event.Event[events.LSPDiagnosticsPublished]); ok {
			got = e.Payload
		}
		return nil
	})
	defer app.EventBus().Unsubscribe(sub)

	uri := lsp.FilePathToURI(path)
	app.publishDiagnostics(uri, []lsp.Diagnostic{{
		Range:    lsp.Range{Start: lsp.Position{Line: 2, Character: 1}, End: lsp.Position{Line: 2, Character: 5}},
		Severity: lsp.DiagnosticSeverityError,
		Message:  "undefined: x",
	}})

	if got.URI != string(uri) {
		t.Fatalf("URI = %q, want %q", got.URI, uri)
	}
	if got.LanguageID != "go" {
		t.Errorf("LanguageID = %q, want 'go'", got.LanguageID)
	}
	if len(got.Diagnostics) != 1 || got.Diagnostics[0].Message != "undefined: x" {
		t.Errorf("diagnostics = %+v", got.Diagnostics)
	}
	if got.Diagnostics[0].Range.Start.Line != 2 {
		t.Errorf("range start line = %d, want 2", got.Diagnostics[0].Range.Start.Line)
	}
}

// TestSyntaxPollRecordsState asserts the tick-loop poll records a state
// for the active document without blocking.
func TestSyntaxPollRecordsState(t *testing.T) {
	app, path := testAppWithContent(t, "package main\n\nfunc main() {}\n")
	defer app.Shutdown()

	app.driveSyntax()
	app.driveSyntax()

	if _, ok := app.syntaxPollState[path]; !ok {
		t.Error("no poll state recorded for the active document")
	}
}

// TestLSPFlushTickIsSafeWithoutServers asserts the flush tick is a no-op
// when no language server is available.
func TestLSPFlushTickIsSafeWithoutServers(t *testing.T) {
	app, _ := testAppWithContent(t, "package main\n")
	defer app.Shutdown()

	doc := app.Documents().Active()
	if _, err := doc.Engine.Insert(0, "// edit\n"); err != nil {
		t.Fatalf("Insert() error = %v", err)
	}

	app.driveLSPSync()
}
