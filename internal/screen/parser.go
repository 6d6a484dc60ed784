package screen

// step feeds one byte through the VT state machine. The state shape
// (ground / escape / CSI / OSC(+ESC) / DCS(+ESC)) mirrors the scanner in
// dcosson-h2's CapturePlainHistory, extended from "skip and strip" to a
// full cell-grid emulator.
func (s *Screen) step(b byte) {
	switch s.state {
	case stGround:
		s.stepGround(b)
	case stEscape:
		s.stepEscape(b)
	case stCSI:
		s.stepCSI(b)
	case stOSC:
		s.stepOSC(b)
	case stOSCEsc:
		if b == '\\' {
			s.commitOSC()
			s.state = stGround
		} else {
			s.state = stOSC
			s.stepOSC(b)
		}
	case stDCS:
		if b == 0x1B {
			s.state = stDCSEsc
		}
	case stDCSEsc:
		if b == '\\' {
			s.state = stGround
		} else if b != 0x1B {
			s.state = stDCS
		}
	}
}

func (s *Screen) stepGround(b byte) {
	switch b {
	case 0x1B: // ESC
		s.state = stEscape
	case '\r':
		s.cursorCol = 0
	case '\n':
		s.lineFeed()
	case '\b':
		if s.cursorCol > 0 {
			s.cursorCol--
		}
	case '\t':
		next := (s.cursorCol/8 + 1) * 8
		if next >= s.cols {
			next = s.cols - 1
		}
		s.cursorCol = next
	case 0x07: // BEL
		// no-op; OSC title-setting already answers BEL-terminated OSC.
	default:
		if b >= 0x20 {
			s.putRune(rune(b))
		}
	}
}

func (s *Screen) stepEscape(b byte) {
	switch b {
	case '[':
		s.state = stCSI
		s.params = s.params[:0]
		s.curParam = 0
		s.haveParam = false
		s.private = 0
	case ']':
		s.state = stOSC
		s.oscBuf = s.oscBuf[:0]
	case 'P': // DCS
		s.state = stDCS
	case '7': // DECSC save cursor
		s.saveCursor()
		s.state = stGround
	case '8': // DECRC restore cursor
		s.restoreCursor()
		s.state = stGround
	case 'M': // reverse index
		s.reverseLineFeed()
		s.state = stGround
	case 'c': // RIS reset
		s.reset()
		s.state = stGround
	default:
		// Unrecognized two-byte escape: swallow and resume.
		s.state = stGround
	}
}

func (s *Screen) stepOSC(b byte) {
	switch b {
	case 0x07:
		s.commitOSC()
		s.state = stGround
	case 0x1B:
		s.state = stOSCEsc
	default:
		s.oscBuf = append(s.oscBuf, b)
	}
}

func (s *Screen) commitOSC() {
	// OSC 0/2;title  — absorbed per spec, only the title is acted on.
	buf := s.oscBuf
	for i := 0; i < len(buf); i++ {
		if buf[i] == ';' {
			code := string(buf[:i])
			if code == "0" || code == "2" {
				s.title = string(buf[i+1:])
			}
			break
		}
	}
}

func (s *Screen) stepCSI(b byte) {
	switch {
	case b == '?' || b == '>' || b == '!':
		s.private = b
	case b >= '0' && b <= '9':
		s.curParam = s.curParam*10 + int(b-'0')
		s.haveParam = true
	case b == ';':
		s.params = append(s.params, s.curParam)
		s.curParam = 0
		s.haveParam = false
	case b >= 0x40 && b <= 0x7E:
		if s.haveParam || len(s.params) == 0 {
			s.params = append(s.params, s.curParam)
		}
		s.dispatchCSI(b, s.params, s.private)
		s.state = stGround
	default:
		// intermediate bytes (0x20-0x2F) are ignored; final byte still ends it
	}
}

func (s *Screen) param(params []int, i, def int) int {
	if i >= len(params) || params[i] == 0 {
		return def
	}
	return params[i]
}

func (s *Screen) dispatchCSI(final byte, params []int, private byte) {
	switch final {
	case 'A': // CUU
		s.cursorRow -= s.param(params, 0, 1)
		s.clampCursor()
	case 'B', 'e': // CUD
		s.cursorRow += s.param(params, 0, 1)
		s.clampCursor()
	case 'C', 'a': // CUF
		s.cursorCol += s.param(params, 0, 1)
		s.clampCursor()
	case 'D': // CUB
		s.cursorCol -= s.param(params, 0, 1)
		s.clampCursor()
	case 'G', '`': // CHA: column
		s.cursorCol = s.param(params, 0, 1) - 1
		s.clampCursor()
	case 'd': // VPA: row
		s.cursorRow = s.param(params, 0, 1) - 1
		s.clampCursor()
	case 'H', 'f': // CUP/HVP
		s.cursorRow = s.param(params, 0, 1) - 1
		s.cursorCol = s.param(params, 1, 1) - 1
		s.clampCursor()
	case 'J': // ED
		s.eraseDisplay(s.param(params, 0, 0))
	case 'K': // EL
		s.eraseLine(s.param(params, 0, 0))
	case 'm': // SGR
		s.applySGR(params)
	case 'r': // DECSTBM
		top := s.param(params, 0, 1) - 1
		bot := s.param(params, 1, s.rows) - 1
		if top < 0 {
			top = 0
		}
		if bot >= s.rows {
			bot = s.rows - 1
		}
		if top < bot {
			s.scrollTop, s.scrollBottom = top, bot
		} else {
			s.scrollTop, s.scrollBottom = 0, s.rows-1
		}
		s.cursorRow, s.cursorCol = 0, 0
	case 's': // SCOSC (ANSI.SYS save cursor), only when not a private seq
		if private == 0 {
			s.saveCursor()
		}
	case 'u':
		if private == 0 {
			s.restoreCursor()
		}
	case 'h', 'l':
		s.dispatchMode(params, private, final == 'h')
	case 'S': // SU: scroll up n lines
		s.scrollUp(s.param(params, 0, 1))
	case 'T': // SD: scroll down n lines
		s.scrollDown(s.param(params, 0, 1))
	case 'X': // ECH: erase n chars at cursor
		s.eraseChars(s.param(params, 0, 1))
	case 'L': // IL: insert n blank lines at cursor
		s.insertLines(s.param(params, 0, 1))
	case 'M': // DL: delete n lines at cursor
		s.deleteLines(s.param(params, 0, 1))
	case '@': // ICH: insert n blank chars at cursor
		s.insertChars(s.param(params, 0, 1))
	case 'P': // DCH: delete n chars at cursor
		s.deleteChars(s.param(params, 0, 1))
	}
}

func (s *Screen) dispatchMode(params []int, private byte, set bool) {
	if private != '?' {
		return
	}
	for _, p := range params {
		switch p {
		case 1049, 47, 1047: // alt screen (+save/clear on enter, restore on exit for 1049)
			if set {
				if !s.altScreen {
					if p == 1049 {
						s.saveCursor()
					}
					s.altScreen = true
					s.altGrid = newGrid(s.rows, s.cols, blank(Cell{}))
					s.cursorRow, s.cursorCol = 0, 0
				}
			} else if s.altScreen {
				s.altScreen = false
				if p == 1049 {
					s.restoreCursor()
				}
			}
		case 25:
			s.cursorVisible = set
		}
	}
}

func (s *Screen) clampCursor() {
	if s.cursorRow < 0 {
		s.cursorRow = 0
	}
	if s.cursorRow >= s.rows {
		s.cursorRow = s.rows - 1
	}
	if s.cursorCol < 0 {
		s.cursorCol = 0
	}
	if s.cursorCol >= s.cols {
		s.cursorCol = s.cols - 1
	}
}

func (s *Screen) saveCursor() {
	s.savedRow, s.savedCol = s.cursorRow, s.cursorCol
	s.savedAttr = s.curAttr
}

func (s *Screen) restoreCursor() {
	s.cursorRow, s.cursorCol = s.savedRow, s.savedCol
	s.curAttr = s.savedAttr
	s.clampCursor()
}

func (s *Screen) reset() {
	rows, cols := s.rows, s.cols
	*s = *New(rows, cols)
}

// putRune writes a rune at the cursor with the current attributes and
// advances the cursor, wrapping to the next line (and scrolling) at the
// right margin.
func (s *Screen) putRune(r rune) {
	if s.cursorCol >= s.cols {
		s.cursorCol = 0
		s.lineFeed()
	}
	cell := s.curAttr
	cell.Rune = r
	s.active()[s.cursorRow][s.cursorCol] = cell
	s.cursorCol++
}

func (s *Screen) lineFeed() {
	if s.cursorRow == s.scrollBottom {
		s.scrollUp(1)
		return
	}
	if s.cursorRow < s.rows-1 {
		s.cursorRow++
	}
}

func (s *Screen) reverseLineFeed() {
	if s.cursorRow == s.scrollTop {
		s.scrollDown(1)
		return
	}
	if s.cursorRow > 0 {
		s.cursorRow--
	}
}

func (s *Screen) scrollUp(n int) {
	g := s.active()
	for ; n > 0; n-- {
		copy(g[s.scrollTop:s.scrollBottom], g[s.scrollTop+1:s.scrollBottom+1])
		g[s.scrollBottom] = newRow(s.cols, blank(s.curAttr))
	}
}

func (s *Screen) scrollDown(n int) {
	g := s.active()
	for ; n > 0; n-- {
		copy(g[s.scrollTop+1:s.scrollBottom+1], g[s.scrollTop:s.scrollBottom])
		g[s.scrollTop] = newRow(s.cols, blank(s.curAttr))
	}
}

func newRow(cols int, fill Cell) []Cell {
	row := make([]Cell, cols)
	for i := range row {
		row[i] = fill
	}
	return row
}

func (s *Screen) eraseDisplay(mode int) {
	g := s.active()
	blankCell := blank(s.curAttr)
	switch mode {
	case 0: // cursor to end
		s.eraseLine(0)
		for r := s.cursorRow + 1; r < s.rows; r++ {
			g[r] = newRow(s.cols, blankCell)
		}
	case 1: // start to cursor
		s.eraseLine(1)
		for r := 0; r < s.cursorRow; r++ {
			g[r] = newRow(s.cols, blankCell)
		}
	case 2, 3: // entire screen
		for r := 0; r < s.rows; r++ {
			g[r] = newRow(s.cols, blankCell)
		}
	}
}

func (s *Screen) eraseLine(mode int) {
	g := s.active()
	blankCell := blank(s.curAttr)
	row := g[s.cursorRow]
	switch mode {
	case 0: // cursor to end of line
		for c := s.cursorCol; c < s.cols; c++ {
			row[c] = blankCell
		}
	case 1: // start of line to cursor
		for c := 0; c <= s.cursorCol && c < s.cols; c++ {
			row[c] = blankCell
		}
	case 2: // entire line
		for c := 0; c < s.cols; c++ {
			row[c] = blankCell
		}
	}
}

func (s *Screen) eraseChars(n int) {
	row := s.active()[s.cursorRow]
	blankCell := blank(s.curAttr)
	for c := s.cursorCol; c < s.cursorCol+n && c < s.cols; c++ {
		row[c] = blankCell
	}
}

func (s *Screen) insertChars(n int) {
	row := s.active()[s.cursorRow]
	blankCell := blank(s.curAttr)
	if s.cursorCol >= s.cols {
		return
	}
	end := s.cols - n
	if end < s.cursorCol {
		end = s.cursorCol
	}
	copy(row[s.cursorCol+n:], row[s.cursorCol:end])
	for c := s.cursorCol; c < s.cursorCol+n && c < s.cols; c++ {
		row[c] = blankCell
	}
}

func (s *Screen) deleteChars(n int) {
	row := s.active()[s.cursorRow]
	blankCell := blank(s.curAttr)
	if s.cursorCol >= s.cols {
		return
	}
	copy(row[s.cursorCol:], row[s.cursorCol+n:])
	for c := s.cols - n; c < s.cols; c++ {
		if c >= s.cursorCol {
			row[c] = blankCell
		}
	}
}

func (s *Screen) insertLines(n int) {
	if s.cursorRow < s.scrollTop || s.cursorRow > s.scrollBottom {
		return
	}
	top := s.scrollTop
	s.scrollTop = s.cursorRow
	s.scrollDown(n)
	s.scrollTop = top
}

func (s *Screen) deleteLines(n int) {
	if s.cursorRow < s.scrollTop || s.cursorRow > s.scrollBottom {
		return
	}
	top := s.scrollTop
	s.scrollTop = s.cursorRow
	s.scrollUp(n)
	s.scrollTop = top
}
