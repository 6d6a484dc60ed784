package screen

import (
	"bytes"
	"fmt"
	"regexp"
	"strings"
)

// Substitution is one regex→replacement rule applied, in order, by
// SnapshotText when Normalize is set (spec §4.2: "a configured list of
// regex→replacement rules (for timestamps/PIDs)").
type Substitution struct {
	Pattern     *regexp.Regexp
	Replacement string
}

// SnapshotOptions controls SnapshotText's output.
type SnapshotOptions struct {
	// Normalize strips SGR color/attribute escapes and runs Substitutions
	// against the resulting plain text. Without it, SnapshotText emits the
	// minimal SGR escapes needed to reproduce each row's styling.
	Normalize     bool
	Substitutions []Substitution
}

// SnapshotText composes the visible grid row-by-row into logical lines,
// trimming trailing blank cells per row.
func (s *Screen) SnapshotText(opts SnapshotOptions) string {
	s.mu.Lock()
	defer s.mu.Unlock()

	g := s.active()
	lines := make([]string, 0, s.rows)
	for _, row := range g {
		lines = append(lines, renderRow(row, opts.Normalize))
	}
	out := strings.Join(lines, "\n")

	if opts.Normalize {
		for _, sub := range opts.Substitutions {
			out = sub.Pattern.ReplaceAllString(out, sub.Replacement)
		}
	}
	return out
}

// renderRow renders one row, trimming trailing blank cells. When stripSGR
// is false, a minimal SGR escape is emitted each time the attributes in
// effect change.
func renderRow(row []Cell, stripSGR bool) string {
	end := len(row)
	for end > 0 && row[end-1].isBlank() {
		end--
	}

	var b strings.Builder
	var cur Cell
	haveCur := false
	for i := 0; i < end; i++ {
		c := row[i]
		if !stripSGR {
			attrOnly := c
			attrOnly.Rune = 0
			curAttrOnly := cur
			curAttrOnly.Rune = 0
			if !haveCur || attrOnly != curAttrOnly {
				b.WriteString(sgrEscape(c))
				cur = c
				haveCur = true
			}
		}
		r := c.Rune
		if r == 0 {
			r = ' '
		}
		b.WriteRune(r)
	}
	if !stripSGR && haveCur {
		b.WriteString("\x1b[0m")
	}
	return b.String()
}

// sgrEscape returns the CSI ... m sequence that sets c's attributes from a
// clean slate.
func sgrEscape(c Cell) string {
	var codes []string
	if c.Bold {
		codes = append(codes, "1")
	}
	if c.Faint {
		codes = append(codes, "2")
	}
	if c.Italic {
		codes = append(codes, "3")
	}
	if c.Underline {
		codes = append(codes, "4")
	}
	if c.Blink {
		codes = append(codes, "5")
	}
	if c.Reverse {
		codes = append(codes, "7")
	}
	if c.Strike {
		codes = append(codes, "9")
	}
	codes = append(codes, colorCodes(c.Fg, true)...)
	codes = append(codes, colorCodes(c.Bg, false)...)
	if len(codes) == 0 {
		return "\x1b[0m"
	}
	return "\x1b[0;" + strings.Join(codes, ";") + "m"
}

func colorCodes(c Color, fg bool) []string {
	base := 30
	ext := 38
	if !fg {
		base = 40
		ext = 48
	}
	switch c.Mode {
	case ColorPalette:
		if c.Index < 8 {
			return []string{fmt.Sprintf("%d", base+int(c.Index))}
		}
		if c.Index < 16 {
			if fg {
				return []string{fmt.Sprintf("%d", 90+int(c.Index)-8)}
			}
			return []string{fmt.Sprintf("%d", 100+int(c.Index)-8)}
		}
		return []string{fmt.Sprintf("%d", ext), "5", fmt.Sprintf("%d", c.Index)}
	case ColorRGB:
		return []string{fmt.Sprintf("%d", ext), "2", fmt.Sprintf("%d", c.R), fmt.Sprintf("%d", c.G), fmt.Sprintf("%d", c.B)}
	default:
		return nil
	}
}

// CellGrid is the structured view returned by SnapshotCells: a deep copy of
// the visible grid plus enough cursor/mode state to reconstruct a screen.
type CellGrid struct {
	Rows, Cols           int
	Cells                [][]Cell
	CursorRow, CursorCol int
	CursorVisible        bool
	AltScreen            bool
}

// SnapshotCells returns a structured, deep-copied view of the visible grid.
func (s *Screen) SnapshotCells() CellGrid {
	s.mu.Lock()
	defer s.mu.Unlock()

	g := s.active()
	cells := make([][]Cell, len(g))
	for r, row := range g {
		cells[r] = append([]Cell(nil), row...)
	}
	return CellGrid{
		Rows:          s.rows,
		Cols:          s.cols,
		Cells:         cells,
		CursorRow:     s.cursorRow,
		CursorCol:     s.cursorCol,
		CursorVisible: s.cursorVisible,
		AltScreen:     s.altScreen,
	}
}

// NewFromCells rebuilds a Screen's visible grid directly from a previously
// captured CellGrid, bypassing the byte parser entirely. Used to verify the
// round-trip property in spec §8 (#5): SnapshotCells -> NewFromCells ->
// RenderFullScreen must reproduce the original RenderFullScreen output.
func NewFromCells(cg CellGrid) *Screen {
	s := New(cg.Rows, cg.Cols)
	s.altScreen = cg.AltScreen
	target := s.active()
	for r := 0; r < cg.Rows && r < len(cg.Cells); r++ {
		copy(target[r], cg.Cells[r])
	}
	s.cursorRow, s.cursorCol = cg.CursorRow, cg.CursorCol
	s.cursorVisible = cg.CursorVisible
	return s
}

// RenderFullScreen emits a self-contained escape sequence that, replayed on
// a fresh terminal of the same size, reproduces the current visible state:
// enter alt-screen if active, clear, cursor-move + SGR per row, final
// cursor position, cursor visibility.
func (s *Screen) RenderFullScreen() []byte {
	s.mu.Lock()
	defer s.mu.Unlock()

	var buf bytes.Buffer
	if s.altScreen {
		buf.WriteString("\x1b[?1049h")
	}
	buf.WriteString("\x1b[2J\x1b[H")

	g := s.active()
	for r, row := range g {
		fmt.Fprintf(&buf, "\x1b[%d;1H", r+1)
		buf.WriteString(renderRow(row, false))
	}

	fmt.Fprintf(&buf, "\x1b[%d;%dH", s.cursorRow+1, s.cursorCol+1)
	if s.cursorVisible {
		buf.WriteString("\x1b[?25h")
	} else {
		buf.WriteString("\x1b[?25l")
	}
	return buf.Bytes()
}
