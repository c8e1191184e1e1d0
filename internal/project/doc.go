// Package project provides workspace and file management for Keystorm.
//
// The project package handles workspace roots, file operations, and open
// document tracking. Project-wide crawling, indexing, content search, and
// dependency graphs are external collaborators and are intentionally not
// part of this package.
//
// # Architecture
//
// The package is organized around these core components:
//
//   - Project: Main interface for workspace and file operations
//   - VFS: Virtual file system abstraction for file I/O
//   - FileStore: Open document tracking and disk synchronization
//
// # Quick Start
//
// Open a workspace and work with files:
//
//	proj := project.New()
//	if err := proj.Open(ctx, "/path/to/workspace"); err != nil {
//	    log.Fatal(err)
//	}
//	defer proj.Close(ctx)
//
//	// Open a file
//	doc, err := proj.OpenFile(ctx, "/path/to/workspace/main.go")
//	if err != nil {
//	    log.Fatal(err)
//	}
//
// # Virtual File System
//
// The VFS abstraction allows swapping the underlying file system:
//
//	// Use OS file system (default)
//	osfs := vfs.NewOSFS()
//
//	// Use in-memory file system (for testing)
//	memfs := vfs.NewMemFS()
//	memfs.WriteFile("/test.go", []byte("package main"), 0644)
//
// # Change Events
//
// File mutations performed through the project fan out to registered
// handlers:
//
//	proj.OnFileChange(func(event project.FileChangeEvent) {
//	    switch event.Type {
//	    case project.FileChangeModified:
//	        // Handle save
//	    case project.FileChangeDeleted:
//	        // Handle deletion
//	    }
//	})
//
// # Integration Points
//
// The project package integrates with:
//   - Dispatcher: File/project actions (open, save, rename)
//   - LSP: Workspace folders for language servers
//   - Event Bus: File change notifications
//
// # Thread Safety
//
// The Project interface and its components are safe for concurrent use.
// Individual VFS implementations document their own concurrency guarantees.
package project
