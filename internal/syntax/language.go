package syntax

import (
	"fmt"
	"sync"

	goforest "github.com/alexaandru/go-sitter-forest/go"
	jsforest "github.com/alexaandru/go-sitter-forest/javascript"
	jsonforest "github.com/alexaandru/go-sitter-forest/json"
	pyforest "github.com/alexaandru/go-sitter-forest/python"
	rustforest "github.com/alexaandru/go-sitter-forest/rust"
	sitter "github.com/alexaandru/go-tree-sitter-bare"
)

// LanguageID names a configured tree-sitter grammar. It is the same
// string a Document's LanguageID is set to (e.g. "rust", "json").
type LanguageID string

// LanguageLoader resolves a LanguageID to a tree-sitter grammar, caching
// the *sitter.Language handles it builds. Grammars are registered once at
// construction from the embedded go-sitter-forest grammar set; unlike the
// action registry this has no runtime-mutable layer, since new grammars
// are a build-time concern, not a plugin one.
type LanguageLoader struct {
	mu        sync.Mutex
	grammars  map[LanguageID]func() any
	languages map[LanguageID]sitter.Language
}

// NewLanguageLoader builds a loader over the grammar set embedded in this
// binary.
func NewLanguageLoader() *LanguageLoader {
	return &LanguageLoader{
		grammars: map[LanguageID]func() any{
			"go":         func() any { return goforest.GetLanguage() },
			"javascript": func() any { return jsforest.GetLanguage() },
			"json":       func() any { return jsonforest.GetLanguage() },
			"python":     func() any { return pyforest.GetLanguage() },
			"rust":       func() any { return rustforest.GetLanguage() },
		},
		languages: make(map[LanguageID]sitter.Language),
	}
}

// Supports reports whether a grammar is registered for the given language.
func (l *LanguageLoader) Supports(id LanguageID) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	_, ok := l.grammars[id]
	return ok
}

// Language resolves id to a tree-sitter Language, building and caching it
// on first use.
func (l *LanguageLoader) Language(id LanguageID) (sitter.Language, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if lang, ok := l.languages[id]; ok {
		return lang, nil
	}
	build, ok := l.grammars[id]
	if !ok {
		return sitter.Language{}, fmt.Errorf("syntax: no grammar registered for language %q", id)
	}
	lang := sitter.NewLanguage(build())
	l.languages[id] = lang
	return lang, nil
}

// SupportsIncremental reports whether the installed tree type for id can
// accept Document's Edit projection. All grammars loaded through this
// loader are tree-sitter grammars and support incremental editing.
func (l *LanguageLoader) SupportsIncremental(id LanguageID) bool {
	return l.Supports(id)
}
