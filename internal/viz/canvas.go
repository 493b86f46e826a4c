package viz

import (
	"strings"

	"github.com/san-kum/ldpcsim/internal/ldpc"
)

// Braille Patterns: 2x4 dots
// 1 4
// 2 5
// 3 6
// 7 8
//
// Unicode offset 0x2800
var pixelMap = [4][2]int{
	{0x1, 0x8},
	{0x2, 0x10},
	{0x4, 0x20},
	{0x40, 0x80},
}

const brailleBlank = 0x2800

type Canvas struct {
	Width, Height int
	Grid          [][]rune
}

func NewCanvas(w, h int) *Canvas {
	c := &Canvas{
		Width:  w,
		Height: h,
		Grid:   make([][]rune, h),
	}
	for i := range c.Grid {
		c.Grid[i] = make([]rune, w)
	}
	c.Clear()
	return c
}

// Set lights the sub-pixel (x, y). The canvas is (Width*2) x (Height*4)
// sub-pixels; anything outside is ignored.
func (c *Canvas) Set(x, y int) {
	if x < 0 || y < 0 {
		return
	}
	col, row := x/2, y/4
	if col >= c.Width || row >= c.Height {
		return
	}
	c.Grid[row][col] |= rune(pixelMap[y%4][x%2])
}

func (c *Canvas) Clear() {
	for i := range c.Grid {
		for j := range c.Grid[i] {
			c.Grid[i][j] = brailleBlank
		}
	}
}

func (c *Canvas) String() string {
	var b strings.Builder
	for _, row := range c.Grid {
		b.WriteString(string(row))
		b.WriteByte('\n')
	}
	return b.String()
}

// MatrixCanvas draws the sparsity pattern of a packed parity-check matrix,
// one row per bit, scaled onto a canvas of width x height cells. Columns
// run across and rows run down, so the identity block shows as a diagonal
// at the bottom.
func MatrixCanvas(bits []byte, shape ldpc.Shape, width, height int) *Canvas {
	c := NewCanvas(width, height)
	rows, cols := shape.CodewordBits(), shape.ParityBits
	if rows == 0 || cols == 0 {
		return c
	}

	pw, ph := width*2, height*4
	for r := 0; r < rows; r++ {
		y := r * ph / rows
		for col := 0; col < cols; col++ {
			if ldpc.Bit(bits, r*cols+col) {
				c.Set(col*pw/cols, y)
			}
		}
	}
	return c
}
