package buffer

import (
	"testing"

	"github.com/dshills/keystorm/internal/engine/rope"
)

func snap(text string) *Snapshot {
	return NewSnapshot(rope.FromString(text), 1, LineEndingLF, 4)
}

func TestSnapshotText(t *testing.T) {
	s := snap("Hello")
	if s.Text() != "Hello" {
		t.Errorf("Text() = %q, want %q", s.Text(), "Hello")
	}
	if s.TextRange(1, 4) != "ell" {
		t.Errorf("TextRange(1,4) = %q, want %q", s.TextRange(1, 4), "ell")
	}
}

func TestSnapshotLineOperations(t *testing.T) {
	text := "abc\ndefgh\nij"
	s := snap(text)

	if s.Len() != int64(len(text)) {
		t.Errorf("expected len %d, got %d", len(text), s.Len())
	}

	if s.LineCount() != 3 {
		t.Errorf("expected 3 lines, got %d", s.LineCount())
	}

	if s.LineText(1) != "defgh" {
		t.Errorf("expected 'defgh', got %q", s.LineText(1))
	}

	p := s.OffsetToPoint(7)
	if p.Line != 1 || p.Column != 3 {
		t.Errorf("expected (1:3), got %v", p)
	}

	if off := s.PointToOffset(Point{Line: 1, Column: 3}); off != 7 {
		t.Errorf("PointToOffset = %d, want 7", off)
	}
}

func TestSnapshotUTF16Conversion(t *testing.T) {
	s := snap("a😀b\nxyz")

	p := s.OffsetToPointUTF16(5) // after the emoji
	if p.Line != 0 || p.Column != 3 {
		t.Errorf("OffsetToPointUTF16(5) = %v, want (0:3)", p)
	}

	off := s.PointUTF16ToOffset(PointUTF16{Line: 0, Column: 3})
	if off != 5 {
		t.Errorf("PointUTF16ToOffset = %d, want 5", off)
	}
}

func TestSnapshotMetadata(t *testing.T) {
	s := NewSnapshot(rope.FromString("x"), 42, LineEndingCRLF, 8)
	if s.RevisionID() != 42 {
		t.Errorf("RevisionID = %d, want 42", s.RevisionID())
	}
	if s.LineEnding() != LineEndingCRLF {
		t.Errorf("LineEnding = %v, want CRLF", s.LineEnding())
	}
	if s.TabWidth() != 8 {
		t.Errorf("TabWidth = %d, want 8", s.TabWidth())
	}
	if s.IsEmpty() {
		t.Error("snapshot should not be empty")
	}
}
