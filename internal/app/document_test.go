package app

import (
	"os"
	"path/filepath"
	"testing"
)

func TestDocumentVersionFollowsEngineCommits(t *testing.T) {
	doc := NewDocument("/tmp/test.go", []byte("hello"))

	v0 := doc.Version()
	if _, err := doc.Engine.Insert(0, "x"); err != nil {
		t.Fatalf("Insert() error = %v", err)
	}
	if got := doc.Version(); got != v0+1 {
		t.Errorf("Version() = %d after one commit, want %d", got, v0+1)
	}

	// Engine-backed documents version through commits; the legacy bump is
	// a read-through.
	if got := doc.IncrementVersion(); got != v0+1 {
		t.Errorf("IncrementVersion() = %d, want %d", got, v0+1)
	}
}

func TestDocumentLanguageDetection(t *testing.T) {
	doc := NewDocument("/tmp/main.go", nil)
	if doc.LanguageID != "go" {
		t.Errorf("LanguageID = %q, want 'go'", doc.LanguageID)
	}
	if doc.Name != "main.go" {
		t.Errorf("Name = %q", doc.Name)
	}
	if doc.IsScratch() {
		t.Error("file-backed document reported as scratch")
	}
}

func TestScratchDocument(t *testing.T) {
	doc := NewScratchDocument()
	if !doc.IsScratch() {
		t.Error("IsScratch() = false")
	}
	if doc.Name != "Untitled" {
		t.Errorf("Name = %q", doc.Name)
	}
	if doc.Engine == nil {
		t.Fatal("scratch document has no engine")
	}
}

func TestDocumentManagerLifecycle(t *testing.T) {
	dm := NewDocumentManager()

	if dm.Active() != nil {
		t.Error("Active() non-nil on empty manager")
	}

	dir := t.TempDir()
	p1 := filepath.Join(dir, "a.go")
	p2 := filepath.Join(dir, "b.go")
	for _, p := range []string{p1, p2} {
		if err := os.WriteFile(p, []byte("package x\n"), 0o644); err != nil {
			t.Fatal(err)
		}
	}

	d1, err := dm.Open(p1)
	if err != nil {
		t.Fatalf("Open(p1) error = %v", err)
	}
	d2, err := dm.Open(p2)
	if err != nil {
		t.Fatalf("Open(p2) error = %v", err)
	}

	if dm.Count() != 2 {
		t.Errorf("Count() = %d, want 2", dm.Count())
	}
	if dm.Active() != d2 {
		t.Error("Active() is not the most recently opened document")
	}

	dm.SetActive(d1)
	if dm.Active() != d1 {
		t.Error("SetActive() did not switch")
	}

	if next := dm.Next(); next != d2 {
		t.Error("Next() did not cycle forward")
	}
	if prev := dm.Previous(); prev != d1 {
		t.Error("Previous() did not cycle back")
	}

	if err := dm.Close(p1); err != nil {
		t.Fatalf("Close(p1) error = %v", err)
	}
	if dm.Count() != 1 {
		t.Errorf("Count() = %d after close, want 1", dm.Count())
	}
	if _, ok := dm.Get(p1); ok {
		t.Error("closed document still retrievable")
	}
}

func TestDocumentCloseReleasesSyncTracking(t *testing.T) {
	app, path := testAppWithContent(t, "package main\n")
	defer app.Shutdown()

	if !app.DocumentSync().IsTracked(path) {
		t.Fatal("opened .go file is not tracked by the sync scheduler")
	}

	if err := app.Documents().Close(path); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	if app.DocumentSync().IsTracked(path) {
		t.Error("closed document still tracked by the sync scheduler")
	}
}

func TestDirtyDocuments(t *testing.T) {
	dm := NewDocumentManager()
	doc := dm.CreateScratch()

	if dm.HasDirty() {
		t.Error("HasDirty() = true before any edit")
	}

	doc.SetModified(true)
	if !dm.HasDirty() {
		t.Error("HasDirty() = false after SetModified")
	}
	if got := len(dm.DirtyDocuments()); got != 1 {
		t.Errorf("DirtyDocuments() len = %d, want 1", got)
	}
}
