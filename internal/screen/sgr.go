package screen

// applySGR interprets a CSI ... m parameter list, updating s.curAttr. The
// sequence persists onto every subsequently written cell until changed or
// reset (SGR 0).
func (s *Screen) applySGR(params []int) {
	if len(params) == 0 {
		params = []int{0}
	}
	for i := 0; i < len(params); i++ {
		p := params[i]
		switch {
		case p == 0:
			s.curAttr = Cell{}
		case p == 1:
			s.curAttr.Bold = true
		case p == 2:
			s.curAttr.Faint = true
		case p == 3:
			s.curAttr.Italic = true
		case p == 4:
			s.curAttr.Underline = true
		case p == 5 || p == 6:
			s.curAttr.Blink = true
		case p == 7:
			s.curAttr.Reverse = true
		case p == 9:
			s.curAttr.Strike = true
		case p == 22:
			s.curAttr.Bold, s.curAttr.Faint = false, false
		case p == 23:
			s.curAttr.Italic = false
		case p == 24:
			s.curAttr.Underline = false
		case p == 25:
			s.curAttr.Blink = false
		case p == 27:
			s.curAttr.Reverse = false
		case p == 29:
			s.curAttr.Strike = false
		case p >= 30 && p <= 37:
			s.curAttr.Fg = Color{Mode: ColorPalette, Index: uint8(p - 30)}
		case p == 38:
			consumed := s.applyExtendedColor(params[i:], &s.curAttr.Fg)
			i += consumed
		case p == 39:
			s.curAttr.Fg = Color{}
		case p >= 40 && p <= 47:
			s.curAttr.Bg = Color{Mode: ColorPalette, Index: uint8(p - 40)}
		case p == 48:
			consumed := s.applyExtendedColor(params[i:], &s.curAttr.Bg)
			i += consumed
		case p == 49:
			s.curAttr.Bg = Color{}
		case p >= 90 && p <= 97:
			s.curAttr.Fg = Color{Mode: ColorPalette, Index: uint8(p - 90 + 8)}
		case p >= 100 && p <= 107:
			s.curAttr.Bg = Color{Mode: ColorPalette, Index: uint8(p - 100 + 8)}
		}
	}
}

// applyExtendedColor parses "38;5;N" (256-color) or "38;2;R;G;B" (truecolor)
// starting at rest[0]==38/48, writing into dst. Returns how many extra
// parameter slots beyond rest[0] were consumed.
func (s *Screen) applyExtendedColor(rest []int, dst *Color) int {
	if len(rest) < 2 {
		return 0
	}
	switch rest[1] {
	case 5:
		if len(rest) < 3 {
			return 1
		}
		*dst = Color{Mode: ColorPalette, Index: uint8(rest[2])}
		return 2
	case 2:
		if len(rest) < 5 {
			return len(rest) - 1
		}
		*dst = Color{Mode: ColorRGB, R: uint8(rest[2]), G: uint8(rest[3]), B: uint8(rest[4])}
		return 4
	}
	return 1
}
