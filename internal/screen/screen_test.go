package screen

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCursorOverprint(t *testing.T) {
	s := New(3, 10)
	s.Write([]byte("ABC\rX"))
	text := s.SnapshotText(SnapshotOptions{Normalize: true})
	lines := splitLines(text)
	require.NotEmpty(t, lines)
	assert.Equal(t, "XBC", lines[0])
}

func TestLineFeedDoesNotCarriageReturn(t *testing.T) {
	s := New(3, 10)
	s.Write([]byte("one\ntwo"))
	text := s.SnapshotText(SnapshotOptions{Normalize: true})
	lines := splitLines(text)
	require.Len(t, lines, 3)
	assert.Equal(t, "one", lines[0])
	assert.Equal(t, "   two", lines[1])
}

func TestSnapshotStableAcrossCalls(t *testing.T) {
	s := New(5, 20)
	s.Write([]byte("hello \x1b[31mworld\x1b[0m"))
	first := s.SnapshotText(SnapshotOptions{})
	second := s.SnapshotText(SnapshotOptions{})
	assert.Equal(t, first, second)
}

func TestSnapshotTextNormalizeStripsSGR(t *testing.T) {
	s := New(3, 20)
	s.Write([]byte("\x1b[1;31mred bold\x1b[0m plain"))
	plain := s.SnapshotText(SnapshotOptions{Normalize: true})
	assert.Equal(t, "red bold plain\n\n", plain)

	styled := s.SnapshotText(SnapshotOptions{})
	assert.Contains(t, styled, "\x1b[")
}

func TestAltScreenToggle(t *testing.T) {
	s := New(4, 20)
	s.Write([]byte("primary"))
	assert.False(t, s.IsAltScreen())

	s.Write([]byte("\x1b[?1049h"))
	assert.True(t, s.IsAltScreen())
	s.Write([]byte("alt content"))

	s.Write([]byte("\x1b[?1049l"))
	assert.False(t, s.IsAltScreen())
	text := s.SnapshotText(SnapshotOptions{Normalize: true})
	lines := splitLines(text)
	assert.Equal(t, "primary", lines[0])
}

func TestScrollRegion(t *testing.T) {
	s := New(3, 10)
	s.Write([]byte("\x1b[1;2r")) // rows 1-2 scroll region, cursor resets to (0,0)
	s.Write([]byte("a\r\nb\r\nc\r\nd"))
	text := s.SnapshotText(SnapshotOptions{Normalize: true})
	lines := splitLines(text)
	require.Len(t, lines, 3)
	assert.Equal(t, "c", lines[0])
	assert.Equal(t, "d", lines[1])
	assert.Equal(t, "", lines[2])
}

func TestSavedCursorRoundTrip(t *testing.T) {
	s := New(5, 20)
	s.Write([]byte("abc"))
	s.Write([]byte("\x1b7")) // DECSC
	s.Write([]byte("\x1b[10;10Hzzz"))
	s.Write([]byte("\x1b8")) // DECRC
	row, col := s.Cursor()
	assert.Equal(t, 0, row)
	assert.Equal(t, 3, col)
}

func TestRoundTripCellsToRenderFullScreen(t *testing.T) {
	s := New(4, 16)
	s.Write([]byte("\x1b[1;32mgreen\x1b[0m and plain"))
	s.Write([]byte("\r\n\x1b[4munderline\x1b[0m"))

	original := s.RenderFullScreen()

	grid := s.SnapshotCells()
	reconstructed := NewFromCells(grid)
	replayed := reconstructed.RenderFullScreen()

	assert.Equal(t, original, replayed)
}

func TestMalformedSequenceSwallowed(t *testing.T) {
	s := New(3, 10)
	assert.NotPanics(t, func() {
		s.Write([]byte("\x1b[9999999999999999999;zq garbage"))
		s.Write([]byte("ok"))
	})
}

func splitLines(s string) []string {
	var lines []string
	start := 0
	for i := 0; i < len(s); i++ {
		if s[i] == '\n' {
			lines = append(lines, s[start:i])
			start = i + 1
		}
	}
	lines = append(lines, s[start:])
	return lines
}
