package lsp

import (
	"errors"
	"testing"

	"github.com/dshills/keystorm/internal/engine/rope"
)

func TestParseOffsetEncoding(t *testing.T) {
	tests := []struct {
		in   string
		want OffsetEncoding
	}{
		{"utf-8", EncodingUTF8},
		{"utf-16", EncodingUTF16},
		{"utf-32", EncodingUTF32},
		{"", EncodingUTF16},
		{"unknown", EncodingUTF16},
	}
	for _, tt := range tests {
		if got := ParseOffsetEncoding(tt.in); got != tt.want {
			t.Errorf("ParseOffsetEncoding(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestEncodePosition(t *testing.T) {
	// "héllo" line 0: h=1 byte, é=2 bytes, one UTF-16 unit each.
	// "😀x" line 1: 😀 is 4 bytes, 2 UTF-16 units, 1 scalar.
	content := rope.FromString("héllo\n😀x\n")

	tests := []struct {
		name string
		pos  Position
		enc  OffsetEncoding
		want Position
	}{
		{"ascii utf8", Position{Line: 0, Character: 1}, EncodingUTF8, Position{Line: 0, Character: 1}},
		{"after accent utf8", Position{Line: 0, Character: 2}, EncodingUTF8, Position{Line: 0, Character: 3}},
		{"after accent utf16", Position{Line: 0, Character: 2}, EncodingUTF16, Position{Line: 0, Character: 2}},
		{"after emoji utf16", Position{Line: 1, Character: 1}, EncodingUTF16, Position{Line: 1, Character: 2}},
		{"after emoji utf8", Position{Line: 1, Character: 1}, EncodingUTF8, Position{Line: 1, Character: 4}},
		{"utf32 identity", Position{Line: 1, Character: 2}, EncodingUTF32, Position{Line: 1, Character: 2}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := encodePosition(content, tt.pos, tt.enc)
			if err != nil {
				t.Fatalf("encodePosition() error = %v", err)
			}
			if got != tt.want {
				t.Errorf("encodePosition(%v, %v) = %v, want %v", tt.pos, tt.enc, got, tt.want)
			}
		})
	}
}

func TestDecodePosition(t *testing.T) {
	content := rope.FromString("héllo\n😀x\n")

	tests := []struct {
		name string
		pos  Position
		enc  OffsetEncoding
		want Position
	}{
		{"utf8 after accent", Position{Line: 0, Character: 3}, EncodingUTF8, Position{Line: 0, Character: 2}},
		{"utf16 after emoji", Position{Line: 1, Character: 2}, EncodingUTF16, Position{Line: 1, Character: 1}},
		{"utf32 identity", Position{Line: 0, Character: 5}, EncodingUTF32, Position{Line: 0, Character: 5}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := decodePosition(content, tt.pos, tt.enc)
			if err != nil {
				t.Fatalf("decodePosition() error = %v", err)
			}
			if got != tt.want {
				t.Errorf("decodePosition(%v, %v) = %v, want %v", tt.pos, tt.enc, got, tt.want)
			}
		})
	}
}

func TestEncodeDecodeRoundTrip(t *testing.T) {
	content := rope.FromString("abc\ndéf 😀 ghi\n")
	for _, enc := range []OffsetEncoding{EncodingUTF8, EncodingUTF16, EncodingUTF32} {
		for line := 0; line < 2; line++ {
			for char := 0; char <= 3; char++ {
				pos := Position{Line: line, Character: char}
				wire, err := encodePosition(content, pos, enc)
				if err != nil {
					t.Fatalf("encodePosition(%v, %v) error = %v", pos, enc, err)
				}
				back, err := decodePosition(content, wire, enc)
				if err != nil {
					t.Fatalf("decodePosition(%v, %v) error = %v", wire, enc, err)
				}
				if back != pos {
					t.Errorf("round trip %v via %v: got %v", pos, enc, back)
				}
			}
		}
	}
}

func TestEncodePositionInvalid(t *testing.T) {
	content := rope.FromString("short\n")

	tests := []struct {
		name string
		pos  Position
	}{
		{"negative line", Position{Line: -1, Character: 0}},
		{"line beyond document", Position{Line: 5, Character: 0}},
		{"column beyond line", Position{Line: 0, Character: 99}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := encodePosition(content, tt.pos, EncodingUTF16)
			if !errors.Is(err, ErrRangeConversionFailed) {
				t.Errorf("encodePosition(%v) error = %v, want ErrRangeConversionFailed", tt.pos, err)
			}
		})
	}
}

func TestEncodeChangesSequential(t *testing.T) {
	base := rope.FromString("foo bar\n")
	changes := []DocumentChange{
		{Range: Range{Start: Position{0, 4}, End: Position{0, 7}}, NewText: "baz"},
		{Range: Range{Start: Position{0, 7}, End: Position{0, 7}}, NewText: "!"},
	}

	events, shadow, err := encodeChanges(base, changes, EncodingUTF16)
	if err != nil {
		t.Fatalf("encodeChanges() error = %v", err)
	}
	if len(events) != 2 {
		t.Fatalf("len(events) = %d, want 2", len(events))
	}
	if got := shadow.String(); got != "foo baz!\n" {
		t.Errorf("shadow = %q, want %q", got, "foo baz!\n")
	}
	if events[0].Range == nil || events[0].Range.Start.Character != 4 {
		t.Errorf("first event range = %+v", events[0].Range)
	}
}

func TestEncodeChangesFailurePreservesNothing(t *testing.T) {
	base := rope.FromString("ab\n")
	changes := []DocumentChange{
		{Range: Range{Start: Position{9, 0}, End: Position{9, 0}}, NewText: "x"},
	}
	_, _, err := encodeChanges(base, changes, EncodingUTF16)
	if !errors.Is(err, ErrRangeConversionFailed) {
		t.Errorf("encodeChanges() error = %v, want ErrRangeConversionFailed", err)
	}
}

func TestUTF16LenForString(t *testing.T) {
	tests := []struct {
		in   string
		want int
	}{
		{"", 0},
		{"abc", 3},
		{"héllo", 5},
		{"😀", 2},
		{"a😀b", 4},
	}
	for _, tt := range tests {
		if got := utf16LenForString(tt.in); got != tt.want {
			t.Errorf("utf16LenForString(%q) = %d, want %d", tt.in, got, tt.want)
		}
	}
}
