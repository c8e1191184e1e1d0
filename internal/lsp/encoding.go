package lsp

import (
	"errors"
	"fmt"

	"github.com/dshills/keystorm/internal/engine/rope"
)

// OffsetEncoding is the character-offset unit negotiated with a server at
// initialize. LSP defaults to UTF-16; servers that advertise
// positionEncoding may pick UTF-8 or UTF-32 instead.
type OffsetEncoding int

const (
	// EncodingUTF16 counts columns in UTF-16 code units (the LSP default).
	EncodingUTF16 OffsetEncoding = iota
	// EncodingUTF8 counts columns in bytes.
	EncodingUTF8
	// EncodingUTF32 counts columns in Unicode scalar values.
	EncodingUTF32
)

func (e OffsetEncoding) String() string {
	switch e {
	case EncodingUTF8:
		return "utf-8"
	case EncodingUTF32:
		return "utf-32"
	default:
		return "utf-16"
	}
}

// ParseOffsetEncoding maps a positionEncoding capability value to an
// OffsetEncoding, defaulting to UTF-16 for anything unrecognized.
func ParseOffsetEncoding(s string) OffsetEncoding {
	switch s {
	case "utf-8":
		return EncodingUTF8
	case "utf-32":
		return EncodingUTF32
	default:
		return EncodingUTF16
	}
}

// NegotiatedEncoding extracts the offset encoding from server capabilities.
func NegotiatedEncoding(caps ServerCapabilities) OffsetEncoding {
	return ParseOffsetEncoding(caps.PositionEncoding)
}

// ErrRangeConversionFailed indicates a queued change's position does not
// resolve against the scheduler's shadow of the document, aborting the
// flush cycle with the change list preserved for retry.
var ErrRangeConversionFailed = errors.New("lsp: range conversion failed")

// canonicalPosToByte resolves a canonical (line, char-column) position to
// a byte offset in content, validating that the position actually exists.
func canonicalPosToByte(content rope.Rope, pos Position) (rope.ByteOffset, error) {
	if pos.Line < 0 || pos.Character < 0 {
		return 0, fmt.Errorf("%w: negative position %d:%d", ErrRangeConversionFailed, pos.Line, pos.Character)
	}
	lineCount := int(content.LenLines())
	if pos.Line >= lineCount {
		if pos.Line == lineCount && pos.Character == 0 {
			return content.LenBytes(), nil
		}
		return 0, fmt.Errorf("%w: line %d beyond %d lines", ErrRangeConversionFailed, pos.Line, lineCount)
	}

	lineEnd := content.LineEndOffset(uint32(pos.Line))
	lineStartChar := content.LineToChar(uint32(pos.Line))
	lineRunes := int(content.ByteToChar(lineEnd) - lineStartChar)
	if pos.Character > lineRunes {
		return 0, fmt.Errorf("%w: column %d beyond line %d length %d", ErrRangeConversionFailed, pos.Character, pos.Line, lineRunes)
	}
	return content.CharToByte(lineStartChar + rope.CharOffset(pos.Character)), nil
}

// encodePosition converts a canonical position to the server's encoding by
// re-measuring the line prefix in the target unit.
func encodePosition(content rope.Rope, pos Position, enc OffsetEncoding) (Position, error) {
	byteOff, err := canonicalPosToByte(content, pos)
	if err != nil {
		return Position{}, err
	}
	if enc == EncodingUTF32 {
		return pos, nil
	}
	if pos.Line >= int(content.LineCount()) {
		// Past-the-end position: column 0 in every encoding.
		return pos, nil
	}

	lineStart := content.LineStartOffset(uint32(pos.Line))
	prefix := content.Slice(lineStart, byteOff)
	switch enc {
	case EncodingUTF8:
		return Position{Line: pos.Line, Character: len(prefix)}, nil
	default:
		return Position{Line: pos.Line, Character: utf16LenForString(prefix)}, nil
	}
}

// decodePosition converts a server-encoded position into canonical
// (line, char-column) form by walking the line and accumulating the
// encoding's unit until the encoded column is consumed. A column that
// lands inside a code point or beyond the line fails conversion.
func decodePosition(content rope.Rope, pos Position, enc OffsetEncoding) (Position, error) {
	if enc == EncodingUTF32 {
		if _, err := canonicalPosToByte(content, pos); err != nil {
			return Position{}, err
		}
		return pos, nil
	}
	if pos.Line < 0 || pos.Line >= int(content.LineCount()) {
		if pos.Line == int(content.LineCount()) && pos.Character == 0 {
			return pos, nil
		}
		return Position{}, fmt.Errorf("%w: line %d beyond %d lines", ErrRangeConversionFailed, pos.Line, content.LineCount())
	}

	line := content.LineText(uint32(pos.Line))
	units := 0
	chars := 0
	for _, r := range line {
		if units == pos.Character {
			return Position{Line: pos.Line, Character: chars}, nil
		}
		switch enc {
		case EncodingUTF8:
			units += len(string(r))
		default:
			if r > 0xFFFF {
				units += 2
			} else {
				units++
			}
		}
		if units > pos.Character {
			return Position{}, fmt.Errorf("%w: column %d splits a code point on line %d", ErrRangeConversionFailed, pos.Character, pos.Line)
		}
		chars++
	}
	if units == pos.Character {
		return Position{Line: pos.Line, Character: chars}, nil
	}
	return Position{}, fmt.Errorf("%w: column %d beyond line %d", ErrRangeConversionFailed, pos.Character, pos.Line)
}

// applyCanonicalChange applies one canonical change to content, returning
// the post-image.
func applyCanonicalChange(content rope.Rope, change DocumentChange) (rope.Rope, error) {
	start, err := canonicalPosToByte(content, change.Range.Start)
	if err != nil {
		return rope.Rope{}, err
	}
	end, err := canonicalPosToByte(content, change.Range.End)
	if err != nil {
		return rope.Rope{}, err
	}
	if end < start {
		return rope.Rope{}, fmt.Errorf("%w: inverted range", ErrRangeConversionFailed)
	}
	return content.Replace(start, end, change.NewText), nil
}

// encodeChanges converts a sequential canonical change list to wire events
// under enc. Each change's range is encoded against the shadow state the
// server will hold when it applies that change, so the walk applies every
// change to base as it goes. Returns the wire events and the final shadow.
func encodeChanges(base rope.Rope, changes []DocumentChange, enc OffsetEncoding) ([]TextDocumentContentChangeEvent, rope.Rope, error) {
	events := make([]TextDocumentContentChangeEvent, 0, len(changes))
	shadow := base
	for _, change := range changes {
		start, err := encodePosition(shadow, change.Range.Start, enc)
		if err != nil {
			return nil, rope.Rope{}, err
		}
		end, err := encodePosition(shadow, change.Range.End, enc)
		if err != nil {
			return nil, rope.Rope{}, err
		}
		rng := Range{Start: start, End: end}
		events = append(events, TextDocumentContentChangeEvent{Range: &rng, Text: change.NewText})

		shadow, err = applyCanonicalChange(shadow, change)
		if err != nil {
			return nil, rope.Rope{}, err
		}
	}
	return events, shadow, nil
}

// utf16LenForString returns the length of s in UTF-16 code units.
func utf16LenForString(s string) int {
	count := 0
	for _, r := range s {
		if r >= 0x10000 {
			count += 2 // surrogate pair
		} else {
			count++
		}
	}
	return count
}
