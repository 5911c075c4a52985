package lsp

import (
	"unicode/utf8"

	"github.com/dshills/collabbridge/internal/rope"
)

// Mapper converts between byte offsets and LSP positions over a rope
// snapshot. Line lookup is O(log n) via the rope's newline index; the
// UTF-16 column conversion walks only the target line. Mappers are pure
// and safe for concurrent use.
type Mapper struct {
	text rope.Rope
}

// NewMapper creates a mapper over the given rope snapshot.
func NewMapper(text rope.Rope) *Mapper {
	return &Mapper{text: text}
}

// ByteToPosition converts a byte offset to an LSP position. The
// end-of-buffer offset is valid and maps to the position past the last
// character. Offsets inside a multi-byte sequence map to the column of the
// containing character.
func (m *Mapper) ByteToPosition(offset int) (Position, error) {
	if offset < 0 || offset > m.text.Len() {
		return Position{}, ErrPositionOutOfBounds
	}

	line := m.text.LineForByte(offset)
	lineStart := m.text.LineStart(line)
	lineText := m.text.Line(line)

	return Position{
		Line:      line,
		Character: byteToUTF16Column(lineText, offset-lineStart),
	}, nil
}

// PositionToByte converts an LSP position to a byte offset. Columns past the
// end of the line clamp to the line end, matching common server behavior.
func (m *Mapper) PositionToByte(pos Position) (int, error) {
	if pos.Line < 0 || pos.Character < 0 {
		return 0, ErrPositionOutOfBounds
	}
	if pos.Line >= m.text.LineCount() {
		return 0, ErrPositionOutOfBounds
	}

	lineStart := m.text.LineStart(pos.Line)
	lineText := m.text.Line(pos.Line)

	return lineStart + utf16ColumnToByte(lineText, pos.Character), nil
}

// RangeToByteOffsets converts an LSP range to start and end byte offsets.
func (m *Mapper) RangeToByteOffsets(r Range) (start, end int, err error) {
	if !IsRangeValid(r) {
		return 0, 0, ErrInvalidRange
	}
	start, err = m.PositionToByte(r.Start)
	if err != nil {
		return 0, 0, err
	}
	end, err = m.PositionToByte(r.End)
	if err != nil {
		return 0, 0, err
	}
	return start, end, nil
}

// Len returns the byte length of the underlying snapshot.
func (m *Mapper) Len() int { return m.text.Len() }

// Slice returns the snapshot text in the byte range [start, end).
func (m *Mapper) Slice(start, end int) string { return m.text.Slice(start, end) }

// --- UTF-16 conversion helpers ---

// UTF16Len returns the length of s in UTF-16 code units. Code points above
// U+FFFF encode as surrogate pairs and count as two units.
func UTF16Len(s string) int {
	n := 0
	for _, r := range s {
		if r >= 0x10000 {
			n += 2
		} else {
			n++
		}
	}
	return n
}

// byteToUTF16Column converts a byte offset within a line to a UTF-16 column.
// Only characters that end at or before the offset are counted, so an offset
// inside a multi-byte sequence floors to the containing character.
func byteToUTF16Column(line string, byteOff int) int {
	if byteOff <= 0 {
		return 0
	}
	if byteOff >= len(line) {
		return UTF16Len(line)
	}

	col := 0
	for i, r := range line {
		if i+utf8.RuneLen(r) > byteOff {
			break
		}
		if r >= 0x10000 {
			col += 2
		} else {
			col++
		}
	}
	return col
}

// utf16ColumnToByte converts a UTF-16 column to a byte offset within a line.
// Columns past the end of the line clamp to the line length; a column that
// lands between the halves of a surrogate pair floors to the pair start.
func utf16ColumnToByte(line string, col int) int {
	if col <= 0 {
		return 0
	}

	units := 0
	for i, r := range line {
		if units >= col {
			return i
		}
		if r >= 0x10000 {
			units += 2
		} else {
			units++
		}
		if units > col {
			// col splits a surrogate pair; floor to the pair start.
			return i
		}
	}
	return len(line)
}
