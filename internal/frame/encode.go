// File: internal/frame/encode.go
package frame

import (
	"bytes"
	"fmt"
	"image"
	"image/jpeg"

	"golang.org/x/image/draw"
)

const DefaultJPEGQuality = 85

// Encoded is a compressed frame ready for upload.
type Encoded struct {
	Data     []byte
	MIMEType string
	Width    int
	Height   int
	// Scale converts a coordinate in the encoded image back to screen pixels.
	Scale float64
}

// EncodeJPEG compresses f, downscaling first when maxWidth > 0 and the frame is wider.
func EncodeJPEG(f Frame, quality, maxWidth int) (Encoded, error) {
	if err := f.validate(); err != nil {
		return Encoded{}, fmt.Errorf("encode: %w", err)
	}
	if quality < 1 || quality > 100 {
		quality = DefaultJPEGQuality
	}

	var src image.Image = f.img
	w, h := f.Width(), f.Height()
	scale := 1.0
	if maxWidth > 0 && w > maxWidth {
		nh := h * maxWidth / w
		if nh < 1 {
			nh = 1
		}
		dst := image.NewRGBA(image.Rect(0, 0, maxWidth, nh))
		draw.CatmullRom.Scale(dst, dst.Bounds(), f.img, f.img.Bounds(), draw.Src, nil)
		scale = float64(w) / float64(maxWidth)
		src, w, h = dst, maxWidth, nh
	}

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, src, &jpeg.Options{Quality: quality}); err != nil {
		return Encoded{}, fmt.Errorf("encoding jpeg: %w", err)
	}
	return Encoded{Data: buf.Bytes(), MIMEType: "image/jpeg", Width: w, Height: h, Scale: scale}, nil
}
