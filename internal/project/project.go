package project

import (
	"context"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/dshills/keystorm/internal/project/vfs"
)

// Project is the main interface for workspace and file operations.
// It provides a unified API for file management around the editor's open
// documents. Heavier project intelligence (indexing, content search,
// dependency graphs) lives behind external collaborators and is not part
// of this module.
type Project interface {
	// Lifecycle
	Open(ctx context.Context, roots ...string) error
	Close(ctx context.Context) error
	IsOpen() bool

	// Workspace info
	Root() string
	Roots() []string
	IsInWorkspace(path string) bool

	// File operations
	CreateFile(ctx context.Context, path string, content []byte) error
	DeleteFile(ctx context.Context, path string) error
	RenameFile(ctx context.Context, oldPath, newPath string) error

	// Directory operations
	CreateDirectory(ctx context.Context, path string) error
	DeleteDirectory(ctx context.Context, path string, recursive bool) error
	ListDirectory(ctx context.Context, path string) ([]vfs.FileInfo, error)

	// Events
	OnFileChange(handler func(FileChangeEvent))
}

// FileChangeEvent describes a file mutation performed through the project.
type FileChangeEvent struct {
	Type      FileChangeType
	Path      string
	OldPath   string // For renames
	Timestamp time.Time
}

// FileChangeType indicates the type of file change.
type FileChangeType int

const (
	FileChangeCreated FileChangeType = iota
	FileChangeModified
	FileChangeDeleted
	FileChangeRenamed
)

// DefaultProject is the standard implementation of Project.
type DefaultProject struct {
	mu sync.RWMutex

	// Core components
	vfs   vfs.VFS
	roots []string

	// State
	open   bool
	config Config

	// Event handlers
	fileChangeHandlers []func(FileChangeEvent)
}

// Config holds project configuration.
type Config struct {
	// MaxFileSize is the maximum file size to open (bytes)
	MaxFileSize int64
}

// DefaultConfig returns sensible default configuration.
func DefaultConfig() Config {
	return Config{
		MaxFileSize: 10 * 1024 * 1024, // 10MB
	}
}

// Option configures a DefaultProject.
type Option func(*DefaultProject)

// WithConfig sets the project configuration.
func WithConfig(cfg Config) Option {
	return func(p *DefaultProject) {
		p.config = cfg
	}
}

// WithVFS sets a custom VFS implementation.
func WithVFS(v vfs.VFS) Option {
	return func(p *DefaultProject) {
		p.vfs = v
	}
}

// New creates a new DefaultProject with the given options.
func New(opts ...Option) *DefaultProject {
	p := &DefaultProject{
		config: DefaultConfig(),
	}

	for _, opt := range opts {
		opt(p)
	}

	// Initialize VFS if not provided
	if p.vfs == nil {
		p.vfs = vfs.NewOSFS()
	}

	return p
}

// Open opens a workspace with the given roots.
func (p *DefaultProject) Open(ctx context.Context, roots ...string) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.open {
		return ErrAlreadyOpen
	}

	if len(roots) == 0 {
		return ErrNotFound
	}

	resolved := make([]string, 0, len(roots))
	for _, root := range roots {
		abs, err := p.vfs.Abs(root)
		if err != nil {
			return &WorkspaceError{Root: root, Err: err}
		}
		if !p.vfs.IsDir(abs) {
			return &WorkspaceError{Root: root, Err: ErrNotDirectory}
		}
		resolved = append(resolved, abs)
	}
	p.roots = resolved
	p.open = true
	return nil
}

// Close closes the workspace.
func (p *DefaultProject) Close(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.open {
		return ErrNotOpen
	}

	p.roots = nil
	p.open = false
	return nil
}

// IsOpen returns true if the workspace is open.
func (p *DefaultProject) IsOpen() bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.open
}

// Root returns the primary workspace root.
func (p *DefaultProject) Root() string {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if len(p.roots) == 0 {
		return ""
	}
	return p.roots[0]
}

// Roots returns all workspace roots.
func (p *DefaultProject) Roots() []string {
	p.mu.RLock()
	defer p.mu.RUnlock()
	out := make([]string, len(p.roots))
	copy(out, p.roots)
	return out
}

// IsInWorkspace returns true if the path falls under any workspace root.
func (p *DefaultProject) IsInWorkspace(path string) bool {
	p.mu.RLock()
	defer p.mu.RUnlock()

	abs, err := p.vfs.Abs(path)
	if err != nil {
		return false
	}
	for _, root := range p.roots {
		if abs == root || strings.HasPrefix(abs, root+string(filepath.Separator)) {
			return true
		}
	}
	return false
}

// CreateFile creates a new file.
func (p *DefaultProject) CreateFile(ctx context.Context, path string, content []byte) error {
	p.mu.RLock()
	if !p.open {
		p.mu.RUnlock()
		return ErrNotOpen
	}
	fs := p.vfs
	p.mu.RUnlock()

	// Check if file exists
	if fs.Exists(path) {
		return NewPathError("create", path, ErrAlreadyExists)
	}

	// Create parent directories
	dir := filepath.Dir(path)
	if err := fs.MkdirAll(dir, 0755); err != nil {
		return NewPathError("create", path, err)
	}

	// Write file
	if err := fs.WriteFile(path, content, 0644); err != nil {
		return NewPathError("create", path, err)
	}

	p.emitFileChange(FileChangeEvent{Type: FileChangeCreated, Path: path, Timestamp: time.Now()})
	return nil
}

// DeleteFile deletes a file.
func (p *DefaultProject) DeleteFile(ctx context.Context, path string) error {
	p.mu.RLock()
	if !p.open {
		p.mu.RUnlock()
		return ErrNotOpen
	}
	fs := p.vfs
	p.mu.RUnlock()

	// Delete file
	if err := fs.Remove(path); err != nil {
		return NewPathError("delete", path, err)
	}

	p.emitFileChange(FileChangeEvent{Type: FileChangeDeleted, Path: path, Timestamp: time.Now()})
	return nil
}

// RenameFile renames a file.
func (p *DefaultProject) RenameFile(ctx context.Context, oldPath, newPath string) error {
	p.mu.RLock()
	if !p.open {
		p.mu.RUnlock()
		return ErrNotOpen
	}
	fs := p.vfs
	p.mu.RUnlock()

	// Rename file
	if err := fs.Rename(oldPath, newPath); err != nil {
		return NewPathError("rename", oldPath, err)
	}

	p.emitFileChange(FileChangeEvent{Type: FileChangeRenamed, Path: newPath, OldPath: oldPath, Timestamp: time.Now()})
	return nil
}

// CreateDirectory creates a directory.
func (p *DefaultProject) CreateDirectory(ctx context.Context, path string) error {
	p.mu.RLock()
	if !p.open {
		p.mu.RUnlock()
		return ErrNotOpen
	}
	fs := p.vfs
	p.mu.RUnlock()

	if err := fs.MkdirAll(path, 0755); err != nil {
		return NewPathError("mkdir", path, err)
	}
	return nil
}

// DeleteDirectory deletes a directory.
func (p *DefaultProject) DeleteDirectory(ctx context.Context, path string, recursive bool) error {
	p.mu.RLock()
	if !p.open {
		p.mu.RUnlock()
		return ErrNotOpen
	}
	fs := p.vfs
	p.mu.RUnlock()

	var err error
	if recursive {
		err = fs.RemoveAll(path)
	} else {
		err = fs.Remove(path)
	}
	if err != nil {
		return NewPathError("rmdir", path, err)
	}
	return nil
}

// ListDirectory lists directory contents.
func (p *DefaultProject) ListDirectory(ctx context.Context, path string) ([]vfs.FileInfo, error) {
	p.mu.RLock()
	if !p.open {
		p.mu.RUnlock()
		return nil, ErrNotOpen
	}
	fs := p.vfs
	p.mu.RUnlock()

	entries, err := fs.ReadDir(path)
	if err != nil {
		return nil, NewPathError("readdir", path, err)
	}
	return entries, nil
}

// OnFileChange registers a handler for file mutations performed through
// the project.
func (p *DefaultProject) OnFileChange(handler func(FileChangeEvent)) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.fileChangeHandlers = append(p.fileChangeHandlers, handler)
}

// emitFileChange fans an event out to registered handlers. Handlers are
// collected under the read lock and invoked after it is released.
func (p *DefaultProject) emitFileChange(event FileChangeEvent) {
	p.mu.RLock()
	handlers := make([]func(FileChangeEvent), len(p.fileChangeHandlers))
	copy(handlers, p.fileChangeHandlers)
	p.mu.RUnlock()

	for _, h := range handlers {
		h(event)
	}
}
