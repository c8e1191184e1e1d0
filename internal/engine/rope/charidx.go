package rope

import "unicode/utf8"

// CharOffset represents an absolute position in Unicode scalar values
// (CharIdx in the editor core's terminology) from the start of the rope.
type CharOffset uint64

// LenChars returns the number of Unicode scalar values in the rope.
func (r Rope) LenChars() CharOffset {
	if r.root == nil {
		return 0
	}
	return CharOffset(r.root.summary.Chars)
}

// LenBytes returns the rope's length in bytes. It is the char-indexed
// API's name for Len, so the query surface reads uniformly alongside
// LenChars and LenLines.
func (r Rope) LenBytes() ByteOffset {
	return r.Len()
}

// LenLines returns the number of lines (newlines + 1).
func (r Rope) LenLines() uint32 {
	return r.LineCount()
}

// CharToLine returns the zero-based line containing the given char offset.
// Offsets at or past the end report the last line.
func (r Rope) CharToLine(c CharOffset) uint32 {
	return r.OffsetToPoint(r.CharToByte(c)).Line
}

// LineToChar returns the char offset of the start of the given line.
// Lines past the end clamp to LenChars.
func (r Rope) LineToChar(line uint32) CharOffset {
	return r.ByteToChar(r.LineStartOffset(line))
}

// CharToByte converts a char offset to the corresponding byte offset.
// Offsets past the end of the rope clamp to LenBytes.
func (r Rope) CharToByte(c CharOffset) ByteOffset {
	if r.root == nil || c == 0 {
		return 0
	}
	if c >= CharOffset(r.root.summary.Chars) {
		return r.root.summary.Bytes
	}
	return r.root.charToByte(c)
}

// ByteToChar converts a byte offset to the corresponding char offset.
// The byte offset must fall on a rune boundary; offsets past the end clamp
// to LenChars.
func (r Rope) ByteToChar(b ByteOffset) CharOffset {
	if r.root == nil || b == 0 {
		return 0
	}
	if b >= r.root.summary.Bytes {
		return CharOffset(r.root.summary.Chars)
	}
	return r.root.byteToChar(b)
}

// CharAt returns the rune at the given char offset.
// Returns utf8.RuneError and false if the offset is out of range.
func (r Rope) CharAt(c CharOffset) (rune, bool) {
	if r.root == nil || c >= CharOffset(r.root.summary.Chars) {
		return utf8.RuneError, false
	}
	b := r.CharToByte(c)
	end := b + 4
	if bytesLen := r.root.summary.Bytes; end > bytesLen {
		end = bytesLen
	}
	s := r.Slice(b, end)
	rn, _ := utf8.DecodeRuneInString(s)
	return rn, rn != utf8.RuneError
}

// SliceChars returns the text in the char range [start, end).
func (r Rope) SliceChars(start, end CharOffset) string {
	if start >= end {
		return ""
	}
	return r.Slice(r.CharToByte(start), r.CharToByte(end))
}

// charToByte descends the tree converting a char offset to a byte offset.
func (n *Node) charToByte(c CharOffset) ByteOffset {
	if n.IsLeaf() {
		return leafCharToByte(n.chunks, c)
	}

	idx, rem := n.findChildByChar(c)
	if idx < 0 {
		return 0
	}

	var byteOffset ByteOffset
	for i := 0; i < idx; i++ {
		byteOffset += n.childSummaries[i].Bytes
	}
	return byteOffset + n.children[idx].charToByte(rem)
}

// byteToChar descends the tree converting a byte offset to a char offset.
func (n *Node) byteToChar(b ByteOffset) CharOffset {
	if n.IsLeaf() {
		return leafByteToChar(n.chunks, b)
	}

	idx, rem := n.findChildByOffset(b)
	if idx < 0 {
		return 0
	}

	var charOffset CharOffset
	for i := 0; i < idx; i++ {
		charOffset += CharOffset(n.childSummaries[i].Chars)
	}
	return charOffset + n.children[idx].byteToChar(rem)
}

// findChildByChar finds the child containing the given char offset.
// Returns the child index and the char offset within that child, mirroring
// findChildByOffset's byte-based descent.
func (n *Node) findChildByChar(c CharOffset) (int, CharOffset) {
	if n.IsLeaf() {
		return -1, 0
	}

	var current CharOffset
	for i, summary := range n.childSummaries {
		chars := CharOffset(summary.Chars)
		if current+chars > c {
			return i, c - current
		}
		current += chars
	}

	lastIdx := len(n.children) - 1
	lastChars := CharOffset(n.childSummaries[lastIdx].Chars)
	return lastIdx, c - (CharOffset(n.summary.Chars) - lastChars)
}

// leafCharToByte scans a leaf's chunks converting a char offset to a byte
// offset within that leaf.
func leafCharToByte(chunks []Chunk, c CharOffset) ByteOffset {
	var byteOffset ByteOffset
	var charOffset CharOffset

	for _, chunk := range chunks {
		s := chunk.String()
		chunkChars := CharOffset(chunk.Summary().Chars)
		if charOffset+chunkChars <= c {
			byteOffset += ByteOffset(len(s))
			charOffset += chunkChars
			continue
		}

		remaining := c - charOffset
		for i, r := range s {
			if remaining == 0 {
				return byteOffset + ByteOffset(i)
			}
			remaining--
			_ = r
		}
		return byteOffset + ByteOffset(len(s))
	}

	return byteOffset
}

// leafByteToChar scans a leaf's chunks converting a byte offset to a char
// offset within that leaf.
func leafByteToChar(chunks []Chunk, b ByteOffset) CharOffset {
	var byteOffset ByteOffset
	var charOffset CharOffset

	for _, chunk := range chunks {
		s := chunk.String()
		chunkLen := ByteOffset(len(s))
		if byteOffset+chunkLen <= b {
			byteOffset += chunkLen
			charOffset += CharOffset(chunk.Summary().Chars)
			continue
		}

		target := int(b - byteOffset)
		for i := range s {
			if i >= target {
				return charOffset
			}
			charOffset++
		}
		return charOffset
	}

	return charOffset
}
