// File: internal/frame/grid.go
package frame

import (
	"fmt"
	"image"
	"image/color"
	"strconv"
	"strings"
	"unicode"

	"golang.org/x/image/draw"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
)

const (
	DefaultCellSize = 80
	MaxCellSize     = 1000
	// MinLabelledCell is the smallest cell that still fits a legible label.
	MinLabelledCell = 16
)

var (
	gridLineColor  = color.NRGBA{R: 255, A: 128}
	gridLabelColor = color.NRGBA{R: 255, A: 255}
)

// Grid maps pixel positions to cell labels such as "A0", "B7" or "AA3".
// Columns are lettered left to right, rows numbered from 0 top to bottom.
type Grid struct {
	Width    int
	Height   int
	CellSize int
}

// NewGrid builds a grid for a width x height frame. A cell size outside
// [1, MaxCellSize] is replaced by DefaultCellSize.
func NewGrid(width, height, cellSize int) Grid {
	if cellSize < 1 || cellSize > MaxCellSize {
		cellSize = DefaultCellSize
	}
	return Grid{Width: width, Height: height, CellSize: cellSize}
}

// Columns returns the number of (possibly partial) cell columns.
func (g Grid) Columns() int { return ceilDiv(g.Width, g.CellSize) }

// Rows returns the number of (possibly partial) cell rows.
func (g Grid) Rows() int { return ceilDiv(g.Height, g.CellSize) }

// ColumnLabel returns the bijective base-26 letter for a zero-based column:
// 0 -> "A", 25 -> "Z", 26 -> "AA", 701 -> "ZZ", 702 -> "AAA".
func ColumnLabel(col int) string {
	if col < 0 {
		return ""
	}
	var b []byte
	for n := col + 1; n > 0; n = (n - 1) / 26 {
		b = append(b, byte('A'+(n-1)%26))
	}
	for i, j := 0, len(b)-1; i < j; i, j = i+1, j-1 {
		b[i], b[j] = b[j], b[i]
	}
	return string(b)
}

// ParseColumnLabel is the inverse of ColumnLabel.
func ParseColumnLabel(s string) (int, error) {
	if s == "" {
		return 0, fmt.Errorf("empty column label")
	}
	n := 0
	for _, r := range strings.ToUpper(s) {
		if r < 'A' || r > 'Z' {
			return 0, fmt.Errorf("invalid column label %q", s)
		}
		n = n*26 + int(r-'A'+1)
	}
	return n - 1, nil
}

// Label returns the label for the cell at zero-based (col, row).
func (g Grid) Label(col, row int) string {
	return ColumnLabel(col) + strconv.Itoa(row)
}

// ParseLabel splits a label such as "AB12" into zero-based column and row.
func ParseLabel(label string) (col, row int, err error) {
	label = strings.TrimSpace(label)
	i := strings.IndexFunc(label, unicode.IsDigit)
	if i <= 0 {
		return 0, 0, fmt.Errorf("invalid cell label %q", label)
	}
	col, err = ParseColumnLabel(label[:i])
	if err != nil {
		return 0, 0, err
	}
	n, err := strconv.Atoi(label[i:])
	if err != nil || n < 0 {
		return 0, 0, fmt.Errorf("invalid row in cell label %q", label)
	}
	return col, n, nil
}

// LabelAt returns the label of the cell containing pixel (x, y).
func (g Grid) LabelAt(x, y int) (string, error) {
	if x < 0 || y < 0 || x >= g.Width || y >= g.Height {
		return "", fmt.Errorf("point (%d,%d) outside %dx%d grid", x, y, g.Width, g.Height)
	}
	return g.Label(x/g.CellSize, y/g.CellSize), nil
}

// Center returns the pixel center of the labelled cell, clamped to the frame
// for partial cells at the right and bottom edges.
func (g Grid) Center(label string) (image.Point, error) {
	col, row, err := ParseLabel(label)
	if err != nil {
		return image.Point{}, err
	}
	if col >= g.Columns() || row >= g.Rows() {
		return image.Point{}, fmt.Errorf("cell %s outside %dx%d grid", label, g.Columns(), g.Rows())
	}
	cell := g.cellRect(col, row)
	return image.Pt((cell.Min.X+cell.Max.X)/2, (cell.Min.Y+cell.Max.Y)/2), nil
}

// Labels lists every label in row-major order.
func (g Grid) Labels() []string {
	out := make([]string, 0, g.Columns()*g.Rows())
	for row := 0; row < g.Rows(); row++ {
		for col := 0; col < g.Columns(); col++ {
			out = append(out, g.Label(col, row))
		}
	}
	return out
}

func (g Grid) cellRect(col, row int) image.Rectangle {
	r := image.Rect(col*g.CellSize, row*g.CellSize, (col+1)*g.CellSize, (row+1)*g.CellSize)
	return r.Intersect(image.Rect(0, 0, g.Width, g.Height))
}

// Overlay returns a copy of f with grid lines at every cell boundary and a
// label in the top-left corner of each cell large enough to hold one.
// The result depends only on the frame contents, its size and cellSize.
func Overlay(f Frame, cellSize int) (Frame, error) {
	if err := f.validate(); err != nil {
		return f, fmt.Errorf("overlay: %w", err)
	}
	g := NewGrid(f.Width(), f.Height(), cellSize)
	dst := f.Clone()
	line := image.NewUniform(gridLineColor)

	for x := 0; x < g.Width; x += g.CellSize {
		draw.Draw(dst, image.Rect(x, 0, x+1, g.Height), line, image.Point{}, draw.Over)
	}
	for y := 0; y < g.Height; y += g.CellSize {
		draw.Draw(dst, image.Rect(0, y, g.Width, y+1), line, image.Point{}, draw.Over)
	}

	if g.CellSize >= MinLabelledCell {
		face := basicfont.Face7x13
		d := font.Drawer{Dst: dst, Src: image.NewUniform(gridLabelColor), Face: face}
		ascent := face.Metrics().Ascent.Ceil()
		for row := 0; row < g.Rows(); row++ {
			for col := 0; col < g.Columns(); col++ {
				d.Dot = fixed.P(col*g.CellSize+2, row*g.CellSize+2+ascent)
				d.DrawString(g.Label(col, row))
			}
		}
	}
	return wrap(dst), nil
}

func ceilDiv(a, b int) int {
	if a <= 0 || b <= 0 {
		return 0
	}
	return (a + b - 1) / b
}
