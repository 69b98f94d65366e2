package vt

import "testing"

func TestEncodeDecodeCellRoundTrip(t *testing.T) {
	cases := []Cell{
		{Codepoint: 'A', Fg: RGB{255, 0, 0}, Bg: RGB{0, 0, 0}, Flags: FlagBold, Width: 1},
		{Codepoint: '中', Fg: RGB{10, 20, 30}, Bg: RGB{200, 200, 200}, Flags: FlagBold | FlagUnderline, Width: 2},
		{Codepoint: 0, Width: 0},
		{Codepoint: ' ', Width: 1},
	}

	for _, c := range cases {
		buf := EncodeCell(nil, c)
		if len(buf) != cellSize {
			t.Fatalf("EncodeCell(%v) produced %d bytes, want %d", c, len(buf), cellSize)
		}
		got, n := DecodeCell(buf)
		if n != cellSize {
			t.Fatalf("DecodeCell consumed %d bytes, want %d", n, cellSize)
		}
		if got != c {
			t.Errorf("round trip mismatch: got %+v, want %+v", got, c)
		}
	}
}

func TestDecodeCellShortBuffer(t *testing.T) {
	got, n := DecodeCell([]byte{1, 2, 3})
	if n != 0 {
		t.Errorf("n = %d, want 0 for short buffer", n)
	}
	if got != (Cell{}) {
		t.Errorf("got %+v, want zero value", got)
	}
}

func TestEncodeRowAppendsColsCells(t *testing.T) {
	row := make([]Cell, 5)
	for i := range row {
		row[i] = Cell{Codepoint: rune('a' + i), Width: 1}
	}
	buf := EncodeRow(nil, row)
	if len(buf) != cellSize*len(row) {
		t.Fatalf("EncodeRow produced %d bytes, want %d", len(buf), cellSize*len(row))
	}
}

func TestEncodeDecodeGridRoundTrip(t *testing.T) {
	g := NewGrid(10, 3)
	g.Cells[1][4] = Cell{Codepoint: 'Z', Fg: RGB{1, 2, 3}, Width: 1}

	buf := EncodeGrid(nil, g)
	want := cellSize * g.Cols * g.Rows
	if len(buf) != want {
		t.Fatalf("EncodeGrid produced %d bytes, want %d", len(buf), want)
	}

	got := DecodeGrid(buf, g.Cols, g.Rows)
	if got.Cols != g.Cols || got.Rows != g.Rows {
		t.Fatalf("decoded dims = %dx%d, want %dx%d", got.Cols, got.Rows, g.Cols, g.Rows)
	}
	for y := range g.Cells {
		for x := range g.Cells[y] {
			if got.Cells[y][x] != g.Cells[y][x] {
				t.Errorf("cell[%d][%d] = %+v, want %+v", y, x, got.Cells[y][x], g.Cells[y][x])
			}
		}
	}
}

func TestNewGridDefaultsToBlankCells(t *testing.T) {
	g := NewGrid(4, 2)
	for y := range g.Cells {
		for x, c := range g.Cells[y] {
			if c.Codepoint != ' ' || c.Width != 1 {
				t.Errorf("cell[%d][%d] = %+v, want space/width1", y, x, c)
			}
		}
	}
}
