// File: internal/frame/region.go
package frame

import (
	"fmt"
	"image"
)

// Region is a rectangular area in frame coordinates, expressed as half-open
// row and column ranges: rows [RowStart, RowEnd), columns [ColStart, ColEnd).
type Region struct {
	RowStart int `mapstructure:"row_start" yaml:"row_start"`
	RowEnd   int `mapstructure:"row_end" yaml:"row_end"`
	ColStart int `mapstructure:"col_start" yaml:"col_start"`
	ColEnd   int `mapstructure:"col_end" yaml:"col_end"`
}

// Validate checks 0 <= start < end on both axes.
func (r Region) Validate() error {
	if r.RowStart < 0 || r.ColStart < 0 {
		return fmt.Errorf("region starts must be non-negative (row_start=%d, col_start=%d)", r.RowStart, r.ColStart)
	}
	if r.RowStart >= r.RowEnd {
		return fmt.Errorf("region row_start (%d) must be less than row_end (%d)", r.RowStart, r.RowEnd)
	}
	if r.ColStart >= r.ColEnd {
		return fmt.Errorf("region col_start (%d) must be less than col_end (%d)", r.ColStart, r.ColEnd)
	}
	return nil
}

// Clamp intersects the region with a width x height frame. The result may be empty.
func (r Region) Clamp(width, height int) Region {
	return Region{
		RowStart: clampInt(r.RowStart, 0, height),
		RowEnd:   clampInt(r.RowEnd, 0, height),
		ColStart: clampInt(r.ColStart, 0, width),
		ColEnd:   clampInt(r.ColEnd, 0, width),
	}
}

// Empty reports whether the region covers no pixels.
func (r Region) Empty() bool {
	return r.RowEnd <= r.RowStart || r.ColEnd <= r.ColStart
}

// Rect converts the region to an image.Rectangle (x = column, y = row).
func (r Region) Rect() image.Rectangle {
	return image.Rect(r.ColStart, r.RowStart, r.ColEnd, r.RowEnd)
}

func (r Region) String() string {
	return fmt.Sprintf("rows[%d:%d] cols[%d:%d]", r.RowStart, r.RowEnd, r.ColStart, r.ColEnd)
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
