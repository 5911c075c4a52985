package lsp

import (
	"errors"
	"testing"

	"github.com/dshills/collabbridge/internal/rope"
)

func mapperFor(s string) *Mapper {
	return NewMapper(rope.FromString(s))
}

func TestByteToPositionASCII(t *testing.T) {
	m := mapperFor("hello world")

	tests := []struct {
		offset int
		line   int
		char   int
	}{
		{0, 0, 0},
		{6, 0, 6},
		{11, 0, 11}, // end of buffer
	}

	for _, tt := range tests {
		pos, err := m.ByteToPosition(tt.offset)
		if err != nil {
			t.Fatalf("ByteToPosition(%d): unexpected error %v", tt.offset, err)
		}
		if pos.Line != tt.line || pos.Character != tt.char {
			t.Errorf("ByteToPosition(%d): expected (%d,%d), got (%d,%d)",
				tt.offset, tt.line, tt.char, pos.Line, pos.Character)
		}
	}
}

func TestByteToPositionMultiLine(t *testing.T) {
	m := mapperFor("hello\nworld\ntest")

	tests := []struct {
		offset int
		line   int
		char   int
	}{
		{0, 0, 0},
		{5, 0, 5},
		{6, 1, 0},
		{8, 1, 2},
		{12, 2, 0},
		{16, 2, 4},
	}

	for _, tt := range tests {
		pos, err := m.ByteToPosition(tt.offset)
		if err != nil {
			t.Fatalf("ByteToPosition(%d): unexpected error %v", tt.offset, err)
		}
		if pos.Line != tt.line || pos.Character != tt.char {
			t.Errorf("ByteToPosition(%d): expected (%d,%d), got (%d,%d)",
				tt.offset, tt.line, tt.char, pos.Line, pos.Character)
		}
	}
}

func TestByteToPositionMultiByte(t *testing.T) {
	// "héllo\nwörld": é and ö are two UTF-8 bytes but one UTF-16 unit.
	m := mapperFor("héllo\nwörld")

	tests := []struct {
		offset int
		line   int
		char   int
	}{
		{0, 0, 0},
		{1, 0, 1},
		{3, 0, 2}, // after é
		{7, 1, 0},
		{9, 1, 1}, // inside ö floors to its column
		{10, 1, 2},
	}

	for _, tt := range tests {
		pos, err := m.ByteToPosition(tt.offset)
		if err != nil {
			t.Fatalf("ByteToPosition(%d): unexpected error %v", tt.offset, err)
		}
		if pos.Line != tt.line || pos.Character != tt.char {
			t.Errorf("ByteToPosition(%d): expected (%d,%d), got (%d,%d)",
				tt.offset, tt.line, tt.char, pos.Line, pos.Character)
		}
	}
}

func TestByteToPositionSurrogatePair(t *testing.T) {
	// 😀 is four UTF-8 bytes and two UTF-16 units.
	m := mapperFor("a😀b")

	tests := []struct {
		offset int
		char   int
	}{
		{0, 0},
		{1, 1},
		{5, 3}, // after the emoji: 1 + 2 units
		{6, 4},
	}

	for _, tt := range tests {
		pos, err := m.ByteToPosition(tt.offset)
		if err != nil {
			t.Fatalf("ByteToPosition(%d): unexpected error %v", tt.offset, err)
		}
		if pos.Character != tt.char {
			t.Errorf("ByteToPosition(%d): expected character %d, got %d",
				tt.offset, tt.char, pos.Character)
		}
	}
}

func TestByteToPositionOutOfBounds(t *testing.T) {
	m := mapperFor("hello")

	if _, err := m.ByteToPosition(6); !errors.Is(err, ErrPositionOutOfBounds) {
		t.Errorf("Expected ErrPositionOutOfBounds, got %v", err)
	}
	if _, err := m.ByteToPosition(-1); !errors.Is(err, ErrPositionOutOfBounds) {
		t.Errorf("Expected ErrPositionOutOfBounds for negative offset, got %v", err)
	}
}

func TestPositionToByte(t *testing.T) {
	m := mapperFor("héllo\nwörld")

	tests := []struct {
		pos  Position
		want int
	}{
		{Position{0, 0}, 0},
		{Position{0, 1}, 1},
		{Position{0, 2}, 3},
		{Position{1, 0}, 7},
		{Position{1, 1}, 8},
		{Position{1, 5}, 13},
		{Position{1, 99}, 13}, // past line end clamps
	}

	for _, tt := range tests {
		got, err := m.PositionToByte(tt.pos)
		if err != nil {
			t.Fatalf("PositionToByte(%v): unexpected error %v", tt.pos, err)
		}
		if got != tt.want {
			t.Errorf("PositionToByte(%v): expected %d, got %d", tt.pos, tt.want, got)
		}
	}

	if _, err := m.PositionToByte(Position{Line: 5}); !errors.Is(err, ErrPositionOutOfBounds) {
		t.Errorf("Expected ErrPositionOutOfBounds for line past end, got %v", err)
	}
}

func TestPositionByteRoundTrip(t *testing.T) {
	content := "héllo\nwörld\na😀b\nplain"
	m := mapperFor(content)

	for off := 0; off <= len(content); off++ {
		pos, err := m.ByteToPosition(off)
		if err != nil {
			t.Fatalf("ByteToPosition(%d): %v", off, err)
		}
		back, err := m.PositionToByte(pos)
		if err != nil {
			t.Fatalf("PositionToByte(%v): %v", pos, err)
		}
		// Mid-character offsets floor to the character start; everything
		// else round-trips exactly.
		if back > off {
			t.Errorf("Offset %d: round trip moved forward to %d", off, back)
		}
	}
}

func TestRangeToByteOffsets(t *testing.T) {
	m := mapperFor("hello\nworld")

	start, end, err := m.RangeToByteOffsets(Range{
		Start: Position{0, 2},
		End:   Position{1, 3},
	})
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if start != 2 || end != 9 {
		t.Errorf("Expected (2,9), got (%d,%d)", start, end)
	}

	_, _, err = m.RangeToByteOffsets(Range{
		Start: Position{1, 3},
		End:   Position{0, 2},
	})
	if !errors.Is(err, ErrInvalidRange) {
		t.Errorf("Expected ErrInvalidRange, got %v", err)
	}
}

func TestUTF16Len(t *testing.T) {
	tests := []struct {
		input string
		want  int
	}{
		{"", 0},
		{"hello", 5},
		{"héllo", 5},
		{"a😀b", 4},
	}

	for _, tt := range tests {
		if got := UTF16Len(tt.input); got != tt.want {
			t.Errorf("UTF16Len(%q): expected %d, got %d", tt.input, tt.want, got)
		}
	}
}
