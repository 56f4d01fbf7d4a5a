// Package escpos encodes symbolic printer directives into ESC/POS control
// sequences. The directive set is a closed enum; every directive maps to
// exactly one byte sequence, so encoding cannot fail.
package escpos

// Directive is a semantic printer control instruction. The layout engine
// emits Directives; Encode turns them into wire bytes.
type Directive int

const (
	Init Directive = iota
	AlignLeft
	AlignCenter
	AlignRight
	BoldOn
	BoldOff
	UnderlineOn
	UnderlineOff
	FontNormal
	FontDoubleHeight
	FontDoubleWidth
	FontDouble
	LineFeed
	CutPaper
	OpenDrawer
	Beep
)

// codes maps each directive to its ESC/POS byte sequence.
var codes = map[Directive][]byte{
	Init:             {0x1B, 0x40},             // ESC @
	AlignLeft:        {0x1B, 0x61, 0x00},       // ESC a 0
	AlignCenter:      {0x1B, 0x61, 0x01},       // ESC a 1
	AlignRight:       {0x1B, 0x61, 0x02},       // ESC a 2
	BoldOn:           {0x1B, 0x45, 0x01},       // ESC E 1
	BoldOff:          {0x1B, 0x45, 0x00},       // ESC E 0
	UnderlineOn:      {0x1B, 0x2D, 0x01},       // ESC - 1
	UnderlineOff:     {0x1B, 0x2D, 0x00},       // ESC - 0
	FontNormal:       {0x1D, 0x21, 0x00},       // GS ! 0x00
	FontDoubleHeight: {0x1D, 0x21, 0x01},       // GS ! 0x01
	FontDoubleWidth:  {0x1D, 0x21, 0x10},       // GS ! 0x10
	FontDouble:       {0x1D, 0x21, 0x11},       // GS ! 0x11
	LineFeed:         {0x0A},                   // LF
	CutPaper:         {0x1D, 0x56, 0x00},       // GS V 0 (full cut)
	OpenDrawer:       {0x1B, 0x70, 0x00, 0x19, 0x19}, // ESC p 0, 50ms pulse
	Beep:             {0x1B, 0x42, 0x05, 0x05}, // ESC B: 5 beeps, 5x50ms
}

// Encode returns the ESC/POS byte sequence for d. The returned slice is a
// copy; callers may append to it freely.
func Encode(d Directive) []byte {
	seq := codes[d]
	out := make([]byte, len(seq))
	copy(out, seq)
	return out
}

// String returns the directive name, mainly for logs and test failures.
func (d Directive) String() string {
	switch d {
	case Init:
		return "init"
	case AlignLeft:
		return "align-left"
	case AlignCenter:
		return "align-center"
	case AlignRight:
		return "align-right"
	case BoldOn:
		return "bold-on"
	case BoldOff:
		return "bold-off"
	case UnderlineOn:
		return "underline-on"
	case UnderlineOff:
		return "underline-off"
	case FontNormal:
		return "font-normal"
	case FontDoubleHeight:
		return "font-double-height"
	case FontDoubleWidth:
		return "font-double-width"
	case FontDouble:
		return "font-double"
	case LineFeed:
		return "line-feed"
	case CutPaper:
		return "cut-paper"
	case OpenDrawer:
		return "open-drawer"
	case Beep:
		return "beep"
	}
	return "unknown"
}
