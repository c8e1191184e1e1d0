package syntax

import (
	"context"
	"errors"
	"fmt"
	"time"

	sitter "github.com/alexaandru/go-tree-sitter-bare"

	"github.com/dshills/keystorm/internal/engine/transaction"
)

// SyntaxError classifies why a background parse failed to produce an
// installable tree.
type SyntaxError struct {
	Timeout bool
	Err     error
}

func (e *SyntaxError) Error() string {
	if e.Timeout {
		return "syntax: parse timed out"
	}
	return fmt.Sprintf("syntax: parse failed: %v", e.Err)
}

// ErrParserUnavailable is returned when no grammar is registered for a
// document's language.
var ErrParserUnavailable = errors.New("syntax: no parser available for language")

// ViewportMeta describes the byte window a viewport-bounded tree actually
// covers, relative to the full document it was sliced from.
type ViewportMeta struct {
	BaseOffset uint32
	RealLen    uint32
}

// Syntax wraps an installed tree-sitter parse tree together with the
// language, parse options, and content it was built from. It satisfies
// the narrow engine.SyntaxTree interface via Edit, so a *Syntax can be
// installed directly onto a Document.
type Syntax struct {
	tree     *sitter.Tree
	lang     LanguageID
	opts     Options
	content  []byte
	Viewport *ViewportMeta
}

// Options configures a single parse invocation.
type Options struct {
	Injections InjectionPolicy
}

// ParseFull parses the entire content under lang, enforcing timeout.
func ParseFull(ctx context.Context, loader *LanguageLoader, lang LanguageID, content []byte, opts Options, timeout time.Duration) (*Syntax, error) {
	return parse(ctx, loader, lang, content, 0, opts, timeout)
}

// ParseWindow parses only the given window, recording the byte range it
// covers relative to the full document so install decisions and
// syntax_for_viewport can reason about its coverage.
func ParseWindow(ctx context.Context, loader *LanguageLoader, lang LanguageID, window []byte, baseOffset uint32, opts Options, timeout time.Duration) (*Syntax, error) {
	s, err := parse(ctx, loader, lang, window, baseOffset, opts, timeout)
	if err != nil {
		return nil, err
	}
	s.Viewport = &ViewportMeta{BaseOffset: baseOffset, RealLen: uint32(len(window))}
	return s, nil
}

// parse runs one tree-sitter parse of content under lang.
//
// Options.Injections is carried on the resulting Syntax and in every
// cache/opts key, but does not change what this function parses: resolving
// injected-language sublayers needs per-language injection queries, and the
// embedded go-sitter-forest grammar set ships none, so Eager and Disabled
// currently both produce a single-layer tree. Keeping the policy threaded
// through scheduling and install keys means configurations stay distinct
// (an Eager-keyed tree never satisfies a Disabled request or vice versa)
// and the enrichment lane's contract holds unchanged once injection
// queries are available.
func parse(ctx context.Context, loader *LanguageLoader, lang LanguageID, content []byte, baseOffset uint32, opts Options, timeout time.Duration) (*Syntax, error) {
	_ = baseOffset
	langHandle, err := loader.Language(lang)
	if err != nil {
		return nil, &SyntaxError{Err: err}
	}

	parser := sitter.NewParser()
	if err := parser.SetLanguage(langHandle); err != nil {
		return nil, &SyntaxError{Err: err}
	}

	pctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	type result struct {
		tree *sitter.Tree
		err  error
	}
	done := make(chan result, 1)
	go func() {
		tree, perr := parser.ParseString(pctx, nil, content)
		done <- result{tree: tree, err: perr}
	}()

	select {
	case <-pctx.Done():
		parser.Close()
		return nil, &SyntaxError{Timeout: true}
	case r := <-done:
		parser.Close()
		if r.err != nil {
			return nil, &SyntaxError{Err: r.err}
		}
		return &Syntax{tree: r.tree, lang: lang, opts: opts, content: content}, nil
	}
}

// Options reports the parse options this tree was built under.
func (s *Syntax) Options() Options { return s.opts }

// Edit projects a single document-wide Change through this tree, keeping
// the tree's own content buffer in sync so later edits convert correctly.
// It reports false (leaving the tree untouched) when the change lands
// outside a viewport tree's covered window, or when offsets cannot be
// resolved against the tree's content; either case tells the caller to
// treat the tree as stale.
func (s *Syntax) Edit(change transaction.Change) bool {
	if s == nil || s.tree == nil {
		return false
	}
	startByte, ok := charOffsetToByte(s.content, uint64(change.Start))
	if !ok {
		return false
	}
	oldEndByte, ok := charOffsetToByte(s.content, uint64(change.End))
	if !ok {
		return false
	}
	newText := []byte(change.Text())
	newEndByte := startByte + len(newText)

	if s.Viewport != nil {
		lo := int(s.Viewport.BaseOffset)
		hi := lo + int(s.Viewport.RealLen)
		if startByte < lo || oldEndByte > hi {
			return false
		}
	}

	s.tree.Edit(sitter.InputEdit{
		StartIndex:  uint32(startByte),
		OldEndIndex: uint32(oldEndByte),
		NewEndIndex: uint32(newEndByte),
	})

	updated := make([]byte, 0, len(s.content)-(oldEndByte-startByte)+len(newText))
	updated = append(updated, s.content[:startByte]...)
	updated = append(updated, newText...)
	updated = append(updated, s.content[oldEndByte:]...)
	s.content = updated
	if s.Viewport != nil {
		s.Viewport.RealLen = uint32(len(updated))
	}
	return true
}

// charOffsetToByte converts a Unicode scalar value count into a byte
// offset into buf by decoding runes. Offsets at or past the end of buf
// clamp to len(buf).
func charOffsetToByte(buf []byte, chars uint64) (int, bool) {
	if chars == 0 {
		return 0, true
	}
	n := uint64(0)
	i := 0
	for i < len(buf) {
		if n == chars {
			return i, true
		}
		_, size := decodeRune(buf[i:])
		i += size
		n++
	}
	if n == chars {
		return i, true
	}
	return i, i == len(buf)
}

func decodeRune(b []byte) (rune, int) {
	if len(b) == 0 {
		return 0, 0
	}
	c := b[0]
	switch {
	case c < 0x80:
		return rune(c), 1
	case c&0xE0 == 0xC0 && len(b) >= 2:
		return 0, 2
	case c&0xF0 == 0xE0 && len(b) >= 3:
		return 0, 3
	case c&0xF8 == 0xF0 && len(b) >= 4:
		return 0, 4
	default:
		return 0, 1
	}
}

// Language reports which grammar produced this tree.
func (s *Syntax) Language() LanguageID { return s.lang }

// Close releases the underlying tree-sitter tree.
func (s *Syntax) Close() {
	if s.tree != nil {
		s.tree.Close()
		s.tree = nil
	}
}
