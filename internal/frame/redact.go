// File: internal/frame/redact.go
package frame

import (
	"errors"
	"fmt"
)

const (
	// DefaultBlurRadius and DefaultBlurPasses together approximate a 51x51 Gaussian kernel.
	DefaultBlurRadius = 25
	DefaultBlurPasses = 3
)

var (
	// ErrEmptyRegion means the redaction region does not intersect the frame.
	// The frame is returned unchanged; this is a configuration problem, not a fault.
	ErrEmptyRegion = errors.New("redaction region does not intersect frame")
	// ErrRedactionDegraded means the filter could not run and the original frame was returned.
	ErrRedactionDegraded = errors.New("redaction degraded")
)

// Redactor obscures a region of a frame with a separable box blur.
type Redactor struct {
	Radius int
	Passes int
}

// NewRedactor returns a Redactor, substituting defaults for non-positive values.
func NewRedactor(radius, passes int) Redactor {
	if radius <= 0 {
		radius = DefaultBlurRadius
	}
	if passes <= 0 {
		passes = DefaultBlurPasses
	}
	return Redactor{Radius: radius, Passes: passes}
}

// Redact blurs region r of f using the default kernel.
func Redact(f Frame, r Region) (Frame, error) {
	return NewRedactor(DefaultBlurRadius, DefaultBlurPasses).Redact(f, r)
}

// Redact returns a new frame whose pixels inside the clamped region are blurred.
// Pixels outside the region are byte-identical to the input.
//
// On any failure the input frame is returned together with an error; callers
// must treat ErrRedactionDegraded as a privacy event and never ignore it.
func (rd Redactor) Redact(f Frame, r Region) (out Frame, err error) {
	defer func() {
		if p := recover(); p != nil {
			out = f
			err = fmt.Errorf("%w: panic during blur: %v", ErrRedactionDegraded, p)
		}
	}()

	if verr := f.validate(); verr != nil {
		return f, fmt.Errorf("%w: %v", ErrRedactionDegraded, verr)
	}

	clamped := r.Clamp(f.Width(), f.Height())
	if clamped.Empty() {
		return f, fmt.Errorf("%w: %s on %dx%d frame", ErrEmptyRegion, r, f.Width(), f.Height())
	}

	radius, passes := rd.Radius, rd.Passes
	if radius <= 0 {
		radius = DefaultBlurRadius
	}
	if passes <= 0 {
		passes = DefaultBlurPasses
	}

	dst := f.Clone()
	rect := clamped.Rect()
	w, h := rect.Dx(), rect.Dy()

	// Work on a tightly packed copy of the region so the blur never reads outside it.
	buf := make([]uint8, w*h*4)
	for y := 0; y < h; y++ {
		srcOff := dst.PixOffset(rect.Min.X, rect.Min.Y+y)
		copy(buf[y*w*4:(y+1)*w*4], dst.Pix[srcOff:srcOff+w*4])
	}

	tmp := make([]uint8, len(buf))
	for i := 0; i < passes; i++ {
		blurHorizontal(buf, tmp, w, h, radius)
		blurVertical(tmp, buf, w, h, radius)
	}

	for y := 0; y < h; y++ {
		dstOff := dst.PixOffset(rect.Min.X, rect.Min.Y+y)
		copy(dst.Pix[dstOff:dstOff+w*4], buf[y*w*4:(y+1)*w*4])
	}
	return wrap(dst), nil
}

// blurHorizontal runs a sliding-window box filter along each row of src into dst.
// Edge pixels are repeated. The alpha channel is copied through.
func blurHorizontal(src, dst []uint8, w, h, radius int) {
	window := 2*radius + 1
	for y := 0; y < h; y++ {
		row := y * w * 4
		for c := 0; c < 3; c++ {
			sum := 0
			for i := -radius; i <= radius; i++ {
				sum += int(src[row+clampInt(i, 0, w-1)*4+c])
			}
			for x := 0; x < w; x++ {
				dst[row+x*4+c] = uint8(sum / window)
				in := clampInt(x+radius+1, 0, w-1)
				out := clampInt(x-radius, 0, w-1)
				sum += int(src[row+in*4+c]) - int(src[row+out*4+c])
			}
		}
		for x := 0; x < w; x++ {
			dst[row+x*4+3] = src[row+x*4+3]
		}
	}
}

func blurVertical(src, dst []uint8, w, h, radius int) {
	window := 2*radius + 1
	stride := w * 4
	for x := 0; x < w; x++ {
		col := x * 4
		for c := 0; c < 3; c++ {
			sum := 0
			for i := -radius; i <= radius; i++ {
				sum += int(src[clampInt(i, 0, h-1)*stride+col+c])
			}
			for y := 0; y < h; y++ {
				dst[y*stride+col+c] = uint8(sum / window)
				in := clampInt(y+radius+1, 0, h-1)
				out := clampInt(y-radius, 0, h-1)
				sum += int(src[in*stride+col+c]) - int(src[out*stride+col+c])
			}
		}
		for y := 0; y < h; y++ {
			dst[y*stride+col+3] = src[y*stride+col+3]
		}
	}
}
