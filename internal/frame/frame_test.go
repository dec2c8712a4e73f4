// File: internal/frame/frame_test.go
package frame

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// noisyFrame returns a deterministic high-variance frame.
func noisyFrame(t *testing.T, w, h int) Frame {
	t.Helper()
	rng := rand.New(rand.NewSource(42))
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for i := 0; i < len(img.Pix); i += 4 {
		v := uint8(rng.Intn(2) * 255)
		img.Pix[i], img.Pix[i+1], img.Pix[i+2], img.Pix[i+3] = v, uint8(rng.Intn(256)), 255-v, 255
	}
	f, err := New(img)
	require.NoError(t, err)
	return f
}

func variance(f Frame, r image.Rectangle) float64 {
	var sum, sq float64
	n := 0
	for y := r.Min.Y; y < r.Max.Y; y++ {
		for x := r.Min.X; x < r.Max.X; x++ {
			c := f.RGBAAt(x, y)
			for _, v := range []uint8{c.R, c.G, c.B} {
				sum += float64(v)
				sq += float64(v) * float64(v)
				n++
			}
		}
	}
	mean := sum / float64(n)
	return sq/float64(n) - mean*mean
}

func TestNew(t *testing.T) {
	t.Run("Rebases origin", func(t *testing.T) {
		src := image.NewRGBA(image.Rect(10, 20, 30, 50))
		src.SetRGBA(10, 20, color.RGBA{R: 9, A: 255})
		f, err := New(src)
		require.NoError(t, err)
		assert.Equal(t, image.Rect(0, 0, 20, 30), f.Bounds())
		assert.Equal(t, uint8(9), f.RGBAAt(0, 0).R)
	})

	t.Run("Rejects empty images", func(t *testing.T) {
		_, err := New(image.NewRGBA(image.Rect(0, 0, 0, 5)))
		assert.ErrorIs(t, err, ErrMalformedFrame)
		_, err = New(nil)
		assert.ErrorIs(t, err, ErrMalformedFrame)
	})

	t.Run("Clone is independent", func(t *testing.T) {
		f, err := Solid(4, 4, color.White)
		require.NoError(t, err)
		c := f.Clone()
		c.SetRGBA(0, 0, color.RGBA{A: 255})
		assert.Equal(t, color.RGBA{R: 255, G: 255, B: 255, A: 255}, f.RGBAAt(0, 0))
	})
}

func TestDecode(t *testing.T) {
	src := image.NewRGBA(image.Rect(0, 0, 3, 2))
	src.SetRGBA(2, 1, color.RGBA{G: 200, A: 255})
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, src))

	f, err := Decode(&buf)
	require.NoError(t, err)
	assert.Equal(t, 3, f.Width())
	assert.Equal(t, 2, f.Height())
	assert.Equal(t, uint8(200), f.RGBAAt(2, 1).G)

	_, err = Decode(bytes.NewReader([]byte("not an image")))
	assert.Error(t, err)
}

func TestRegion(t *testing.T) {
	t.Run("Validate", func(t *testing.T) {
		assert.NoError(t, Region{RowStart: 0, RowEnd: 150, ColStart: 0, ColEnd: 400}.Validate())
		assert.Error(t, Region{RowStart: 10, RowEnd: 10, ColStart: 0, ColEnd: 1}.Validate())
		assert.Error(t, Region{RowStart: 0, RowEnd: 1, ColStart: 5, ColEnd: 2}.Validate())
		assert.Error(t, Region{RowStart: -1, RowEnd: 1, ColStart: 0, ColEnd: 2}.Validate())
	})

	t.Run("Clamp", func(t *testing.T) {
		r := Region{RowStart: 0, RowEnd: 150, ColStart: 0, ColEnd: 400}.Clamp(300, 100)
		assert.Equal(t, Region{RowStart: 0, RowEnd: 100, ColStart: 0, ColEnd: 300}, r)
		assert.False(t, r.Empty())

		outside := Region{RowStart: 500, RowEnd: 600, ColStart: 0, ColEnd: 10}.Clamp(300, 100)
		assert.True(t, outside.Empty())
	})
}

func TestRedact(t *testing.T) {
	const w, h = 200, 120
	region := Region{RowStart: 10, RowEnd: 70, ColStart: 20, ColEnd: 150}

	t.Run("Blurs inside and preserves outside", func(t *testing.T) {
		in := noisyFrame(t, w, h)
		before := in.Clone()

		out, err := Redact(in, region)
		require.NoError(t, err)

		assert.Less(t, variance(out, region.Rect()), variance(in, region.Rect())/4)

		inside := region.Rect()
		for y := 0; y < h; y++ {
			for x := 0; x < w; x++ {
				if image.Pt(x, y).In(inside) {
					continue
				}
				require.Equal(t, in.RGBAAt(x, y), out.RGBAAt(x, y), "pixel (%d,%d) outside region changed", x, y)
			}
		}
		assert.Equal(t, before.Pix, in.Clone().Pix, "input frame must not be mutated")
	})

	t.Run("Region larger than frame is clamped", func(t *testing.T) {
		in := noisyFrame(t, 50, 40)
		out, err := Redact(in, Region{RowStart: 0, RowEnd: 150, ColStart: 0, ColEnd: 400})
		require.NoError(t, err)
		assert.Less(t, variance(out, out.Bounds()), variance(in, in.Bounds()))
	})

	t.Run("Empty region returns input unchanged", func(t *testing.T) {
		in := noisyFrame(t, 50, 40)
		out, err := Redact(in, Region{RowStart: 100, RowEnd: 150, ColStart: 0, ColEnd: 10})
		assert.ErrorIs(t, err, ErrEmptyRegion)
		assert.Equal(t, in.Clone().Pix, out.Clone().Pix)
	})

	t.Run("Malformed frame degrades with error", func(t *testing.T) {
		bad := Frame{img: &image.RGBA{Rect: image.Rect(0, 0, 10, 10), Stride: 40, Pix: make([]uint8, 8)}}
		out, err := Redact(bad, region)
		assert.ErrorIs(t, err, ErrRedactionDegraded)
		assert.Equal(t, bad, out)

		_, err = Redact(Frame{}, region)
		assert.ErrorIs(t, err, ErrRedactionDegraded)
	})

	t.Run("Radius wider than region", func(t *testing.T) {
		in := noisyFrame(t, 30, 30)
		out, err := NewRedactor(100, 1).Redact(in, Region{RowStart: 0, RowEnd: 5, ColStart: 0, ColEnd: 5})
		require.NoError(t, err)
		assert.Equal(t, 30, out.Width())
	})
}

func TestColumnLabel(t *testing.T) {
	cases := map[int]string{0: "A", 1: "B", 25: "Z", 26: "AA", 27: "AB", 51: "AZ", 52: "BA", 701: "ZZ", 702: "AAA"}
	for col, want := range cases {
		assert.Equal(t, want, ColumnLabel(col), "column %d", col)
		back, err := ParseColumnLabel(want)
		require.NoError(t, err)
		assert.Equal(t, col, back)
	}
	assert.Equal(t, "", ColumnLabel(-1))
	_, err := ParseColumnLabel("A1")
	assert.Error(t, err)
}

func TestGrid(t *testing.T) {
	t.Run("Cell size normalization", func(t *testing.T) {
		assert.Equal(t, DefaultCellSize, NewGrid(100, 100, 0).CellSize)
		assert.Equal(t, DefaultCellSize, NewGrid(100, 100, 5000).CellSize)
		assert.Equal(t, 1, NewGrid(100, 100, 1).CellSize)
	})

	t.Run("Labels are distinct and follow the alphabet", func(t *testing.T) {
		g := NewGrid(2200, 170, 80)
		assert.Equal(t, 28, g.Columns())
		assert.Equal(t, 3, g.Rows())

		labels := g.Labels()
		seen := make(map[string]bool, len(labels))
		for _, l := range labels {
			assert.False(t, seen[l], "duplicate label %s", l)
			seen[l] = true
		}
		assert.Equal(t, "A0", labels[0])
		assert.Equal(t, "Z0", labels[25])
		assert.Equal(t, "AA0", labels[26])
		assert.Equal(t, "AB2", labels[len(labels)-1])
	})

	t.Run("Rows are numbered from zero", func(t *testing.T) {
		g := NewGrid(800, 600, 80)
		label, err := g.LabelAt(10, 10)
		require.NoError(t, err)
		assert.Equal(t, "A0", label)

		p, err := g.Center("A0")
		require.NoError(t, err)
		assert.Equal(t, image.Pt(40, 40), p)

		label, err = g.LabelAt(90, 170)
		require.NoError(t, err)
		assert.Equal(t, "B2", label)

		col, row, err := ParseLabel("AA0")
		require.NoError(t, err)
		assert.Equal(t, 26, col)
		assert.Equal(t, 0, row)
	})

	t.Run("Center is inverse of LabelAt", func(t *testing.T) {
		g := NewGrid(810, 600, 80)
		for _, label := range g.Labels() {
			p, err := g.Center(label)
			require.NoError(t, err)
			got, err := g.LabelAt(p.X, p.Y)
			require.NoError(t, err)
			assert.Equal(t, label, got)
		}
	})

	t.Run("Rejects unknown cells", func(t *testing.T) {
		g := NewGrid(160, 160, 80)
		_, err := g.Center("C0")
		assert.Error(t, err)
		_, err = g.Center("A2")
		assert.Error(t, err)
		_, err = g.Center("A-1")
		assert.Error(t, err)
		_, err = g.Center("12")
		assert.Error(t, err)
		_, err = g.LabelAt(160, 0)
		assert.Error(t, err)
	})
}

func TestOverlay(t *testing.T) {
	base, err := Solid(240, 160, color.White)
	require.NoError(t, err)

	t.Run("Deterministic", func(t *testing.T) {
		a, err := Overlay(base, 80)
		require.NoError(t, err)
		b, err := Overlay(base, 80)
		require.NoError(t, err)
		assert.Equal(t, a.Clone().Pix, b.Clone().Pix)
	})

	t.Run("Draws lines without mutating input", func(t *testing.T) {
		out, err := Overlay(base, 80)
		require.NoError(t, err)
		line := out.RGBAAt(80, 50)
		assert.Greater(t, line.R, line.G, "boundary pixel should be tinted red")
		assert.Equal(t, color.RGBA{R: 255, G: 255, B: 255, A: 255}, base.RGBAAt(80, 50))
		// Interior pixels far from labels and lines stay untouched.
		assert.Equal(t, color.RGBA{R: 255, G: 255, B: 255, A: 255}, out.RGBAAt(60, 60))
	})

	t.Run("Small cells skip labels", func(t *testing.T) {
		out, err := Overlay(base, 8)
		require.NoError(t, err)
		assert.Equal(t, color.RGBA{R: 255, G: 255, B: 255, A: 255}, out.RGBAAt(4, 4))
	})

	t.Run("Malformed frame", func(t *testing.T) {
		_, err := Overlay(Frame{}, 80)
		assert.ErrorIs(t, err, ErrMalformedFrame)
	})
}

func TestEncodeJPEG(t *testing.T) {
	f := noisyFrame(t, 400, 200)

	t.Run("Native size", func(t *testing.T) {
		enc, err := EncodeJPEG(f, 85, 0)
		require.NoError(t, err)
		assert.Equal(t, "image/jpeg", enc.MIMEType)
		assert.Equal(t, 1.0, enc.Scale)
		decoded, err := Decode(bytes.NewReader(enc.Data))
		require.NoError(t, err)
		assert.Equal(t, 400, decoded.Width())
	})

	t.Run("Downscaled", func(t *testing.T) {
		enc, err := EncodeJPEG(f, 0, 100)
		require.NoError(t, err)
		assert.Equal(t, 100, enc.Width)
		assert.Equal(t, 50, enc.Height)
		assert.Equal(t, 4.0, enc.Scale)
	})
}
