package vt

// Flag bits for Cell.Flags, matching the wire format in spec.md §6.
const (
	FlagBold = 1 << iota
	FlagItalic
	FlagUnderline
	FlagStrikethrough
	FlagInverse
	FlagDim
	FlagHidden
	FlagBlink
)

// RGB is a 24-bit color triple.
type RGB struct {
	R, G, B uint8
}

// Cell is the atomic grid unit: one character slot. Width is 0 for the
// continuation half of a wide glyph, 1 for a normal glyph, 2 for the
// leading half of a wide glyph.
type Cell struct {
	Codepoint rune
	Fg        RGB
	Bg        RGB
	Flags     uint8
	Width     uint8
}

// cellSize is the wire size of one cell per spec §6: codepoint(4) + fg(3) +
// bg(3) + flags(1) + width(1) + reserved(4).
const cellSize = 16

// EncodeCell appends the 16-byte little-endian wire record for c to dst.
func EncodeCell(dst []byte, c Cell) []byte {
	var b [cellSize]byte
	cp := uint32(c.Codepoint)
	b[0] = byte(cp)
	b[1] = byte(cp >> 8)
	b[2] = byte(cp >> 16)
	b[3] = byte(cp >> 24)
	b[4], b[5], b[6] = c.Fg.R, c.Fg.G, c.Fg.B
	b[7], b[8], b[9] = c.Bg.R, c.Bg.G, c.Bg.B
	b[10] = c.Flags
	b[11] = c.Width
	// bytes 12-15 reserved, zero
	return append(dst, b[:]...)
}

// DecodeCell reads one 16-byte wire record from src, returning the Cell and
// the number of bytes consumed.
func DecodeCell(src []byte) (Cell, int) {
	if len(src) < cellSize {
		return Cell{}, 0
	}
	cp := uint32(src[0]) | uint32(src[1])<<8 | uint32(src[2])<<16 | uint32(src[3])<<24
	c := Cell{
		Codepoint: rune(cp),
		Fg:        RGB{src[4], src[5], src[6]},
		Bg:        RGB{src[7], src[8], src[9]},
		Flags:     src[10],
		Width:     src[11],
	}
	return c, cellSize
}

// Grid is an ordered sequence of rows; every row holds exactly Cols cells.
type Grid struct {
	Cols, Rows int
	Cells      [][]Cell // len(Cells) == Rows, len(Cells[i]) == Cols
}

// NewGrid allocates a blank grid of the given dimensions, all cells
// space/default-styled.
func NewGrid(cols, rows int) Grid {
	g := Grid{Cols: cols, Rows: rows, Cells: make([][]Cell, rows)}
	for y := range g.Cells {
		row := make([]Cell, cols)
		for x := range row {
			row[x] = Cell{Codepoint: ' ', Width: 1}
		}
		g.Cells[y] = row
	}
	return g
}

// EncodeRow appends the wire encoding of one row (Cols cells) to dst.
func EncodeRow(dst []byte, row []Cell) []byte {
	for _, c := range row {
		dst = EncodeCell(dst, c)
	}
	return dst
}

// EncodeGrid appends the wire encoding of the full grid, row-major, to dst.
func EncodeGrid(dst []byte, g Grid) []byte {
	for _, row := range g.Cells {
		dst = EncodeRow(dst, row)
	}
	return dst
}

// DecodeGrid parses a row-major wire-encoded grid of the given dimensions.
func DecodeGrid(src []byte, cols, rows int) Grid {
	g := Grid{Cols: cols, Rows: rows, Cells: make([][]Cell, rows)}
	off := 0
	for y := 0; y < rows; y++ {
		row := make([]Cell, cols)
		for x := 0; x < cols; x++ {
			c, n := DecodeCell(src[off:])
			row[x] = c
			off += n
		}
		g.Cells[y] = row
	}
	return g
}
