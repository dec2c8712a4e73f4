// File: internal/frame/frame.go
package frame

import (
	"errors"
	"fmt"
	"image"
	"image/color"
	"io"

	// Registers the decoders used by screen grabbers and replay fixtures.
	_ "image/jpeg"
	_ "image/png"

	"golang.org/x/image/draw"
)

// ErrMalformedFrame is returned when a frame has no pixels or an inconsistent buffer.
var ErrMalformedFrame = errors.New("malformed frame")

// Frame is an immutable raster snapshot of the screen.
// Every transform in this package returns a new Frame and leaves its input untouched.
type Frame struct {
	img *image.RGBA
}

// New copies any image into a Frame. The copy is rebased so the origin is (0,0).
func New(src image.Image) (Frame, error) {
	if src == nil {
		return Frame{}, fmt.Errorf("%w: nil image", ErrMalformedFrame)
	}
	b := src.Bounds()
	if b.Dx() <= 0 || b.Dy() <= 0 {
		return Frame{}, fmt.Errorf("%w: empty bounds %v", ErrMalformedFrame, b)
	}
	dst := image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(dst, dst.Bounds(), src, b.Min, draw.Src)
	return Frame{img: dst}, nil
}

// Decode reads an encoded image (PNG or JPEG) into a Frame.
func Decode(r io.Reader) (Frame, error) {
	img, _, err := image.Decode(r)
	if err != nil {
		return Frame{}, fmt.Errorf("decoding frame: %w", err)
	}
	return New(img)
}

// Solid returns a frame of the given size filled with a single color.
func Solid(width, height int, c color.Color) (Frame, error) {
	if width <= 0 || height <= 0 {
		return Frame{}, fmt.Errorf("%w: %dx%d", ErrMalformedFrame, width, height)
	}
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	draw.Draw(img, img.Bounds(), image.NewUniform(c), image.Point{}, draw.Src)
	return Frame{img: img}, nil
}

func (f Frame) Width() int {
	if f.img == nil {
		return 0
	}
	return f.img.Rect.Dx()
}

func (f Frame) Height() int {
	if f.img == nil {
		return 0
	}
	return f.img.Rect.Dy()
}

// Bounds returns the frame rectangle, always anchored at (0,0).
func (f Frame) Bounds() image.Rectangle {
	if f.img == nil {
		return image.Rectangle{}
	}
	return f.img.Rect
}

// IsZero reports whether the frame carries no image at all.
func (f Frame) IsZero() bool { return f.img == nil }

// RGBAAt returns the pixel at (x, y).
func (f Frame) RGBAAt(x, y int) color.RGBA {
	if f.img == nil {
		return color.RGBA{}
	}
	return f.img.RGBAAt(x, y)
}

// Image exposes the frame as a read-only image.Image.
func (f Frame) Image() image.Image { return f.img }

// Clone returns a private, writable copy of the pixel buffer.
func (f Frame) Clone() *image.RGBA {
	if f.img == nil {
		return nil
	}
	dst := image.NewRGBA(f.img.Rect)
	copy(dst.Pix, f.img.Pix)
	return dst
}

// validate checks the invariants every transform relies on.
func (f Frame) validate() error {
	if f.img == nil {
		return fmt.Errorf("%w: no image", ErrMalformedFrame)
	}
	r := f.img.Rect
	if r.Dx() <= 0 || r.Dy() <= 0 || r.Min != (image.Point{}) {
		return fmt.Errorf("%w: bounds %v", ErrMalformedFrame, r)
	}
	if f.img.Stride < 4*r.Dx() || len(f.img.Pix) < f.img.Stride*(r.Dy()-1)+4*r.Dx() {
		return fmt.Errorf("%w: pixel buffer too short for %dx%d", ErrMalformedFrame, r.Dx(), r.Dy())
	}
	return nil
}

// wrap is used by transforms that built a fresh buffer.
func wrap(img *image.RGBA) Frame { return Frame{img: img} }
