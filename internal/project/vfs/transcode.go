package vfs

import (
	"bytes"
	"io"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

// transcoder returns the x/text encoding for enc, or nil when content in
// enc is already valid UTF-8 as stored (UTF-8, ASCII).
func transcoder(enc Encoding) encoding.Encoding {
	switch enc {
	case EncodingUTF16LE:
		return unicode.UTF16(unicode.LittleEndian, unicode.IgnoreBOM)
	case EncodingUTF16BE:
		return unicode.UTF16(unicode.BigEndian, unicode.IgnoreBOM)
	case EncodingLatin1:
		return charmap.ISO8859_1
	default:
		return nil
	}
}

// DecodeToUTF8 converts raw file bytes (already BOM-stripped) from enc
// into UTF-8, which is the only representation the editor's buffers hold.
// UTF-8 and ASCII content passes through untouched.
func DecodeToUTF8(content []byte, enc Encoding) ([]byte, error) {
	t := transcoder(enc)
	if t == nil {
		return content, nil
	}
	decoded, err := io.ReadAll(transform.NewReader(bytes.NewReader(content), t.NewDecoder()))
	if err != nil {
		return nil, err
	}
	return decoded, nil
}

// EncodeFromUTF8 converts UTF-8 buffer content back to enc for saving, so
// a file opened as UTF-16 or Latin-1 round-trips in its original encoding.
func EncodeFromUTF8(content []byte, enc Encoding) ([]byte, error) {
	t := transcoder(enc)
	if t == nil {
		return content, nil
	}
	encoded, err := io.ReadAll(transform.NewReader(bytes.NewReader(content), t.NewEncoder()))
	if err != nil {
		return nil, err
	}
	return encoded, nil
}
