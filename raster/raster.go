// Package raster holds the pixel-buffer type shared by the capture pipeline
// and the alignment engine, plus the PNG codec and crop transform wrapped
// around the standard image stack.
package raster

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/png"
)

// BytesPerPixel is the RGBA stride per pixel.
const BytesPerPixel = 4

// Image is a row-major RGBA pixel buffer. len(Pix) == BytesPerPixel*Width*Height.
type Image struct {
	Width  int
	Height int
	Pix    []byte
}

// New allocates a zeroed (fully transparent) image.
func New(width, height int) *Image {
	return &Image{
		Width:  width,
		Height: height,
		Pix:    make([]byte, BytesPerPixel*width*height),
	}
}

// Row returns the i-th pixel row as a sub-slice of Pix.
func (m *Image) Row(i int) []byte {
	stride := BytesPerPixel * m.Width
	return m.Pix[i*stride : (i+1)*stride]
}

// Equal reports strict equality: height first, then width, then every byte
// of the pixel buffer. A single differing byte means not equal.
func (m *Image) Equal(other *Image) bool {
	if m.Height != other.Height {
		return false
	}
	if m.Width != other.Width {
		return false
	}
	return bytes.Equal(m.Pix, other.Pix)
}

// Decode parses PNG bytes into an Image, normalising to NRGBA byte order.
func Decode(data []byte) (*Image, error) {
	src, err := png.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("raster: decode: %w", err)
	}
	return fromStdImage(src), nil
}

// Encode serialises an Image to PNG bytes.
func Encode(m *Image) ([]byte, error) {
	dst := image.NewNRGBA(image.Rect(0, 0, m.Width, m.Height))
	copy(dst.Pix, m.Pix)
	var buf bytes.Buffer
	if err := png.Encode(&buf, dst); err != nil {
		return nil, fmt.Errorf("raster: encode: %w", err)
	}
	return buf.Bytes(), nil
}

// Box is the crop boundary reported by the harness after rendering an
// example: the example's bounding rectangle within the full screenshot.
type Box struct {
	Width  int `json:"width"`
	Height int `json:"height"`
	Top    int `json:"top"`
	Left   int `json:"left"`
}

// Crop decodes a full-page PNG screenshot and copies out the box. The box
// is clamped to the screenshot bounds; a box fully outside them is an error.
func Crop(data []byte, box Box) (*Image, error) {
	full, err := Decode(data)
	if err != nil {
		return nil, err
	}

	left, top := box.Left, box.Top
	if left < 0 {
		left = 0
	}
	if top < 0 {
		top = 0
	}
	right := min(box.Left+box.Width, full.Width)
	bottom := min(box.Top+box.Height, full.Height)
	if right <= left || bottom <= top {
		return nil, fmt.Errorf("raster: crop box %+v outside screenshot %dx%d", box, full.Width, full.Height)
	}

	out := New(right-left, bottom-top)
	for y := top; y < bottom; y++ {
		src := full.Row(y)[BytesPerPixel*left : BytesPerPixel*right]
		copy(out.Row(y-top), src)
	}
	return out, nil
}

func fromStdImage(src image.Image) *Image {
	b := src.Bounds()
	out := New(b.Dx(), b.Dy())

	// Fast path: already NRGBA with no offset.
	if n, ok := src.(*image.NRGBA); ok && b.Min.X == 0 && b.Min.Y == 0 && n.Stride == BytesPerPixel*b.Dx() {
		copy(out.Pix, n.Pix)
		return out
	}

	// NRGBAModel un-premultiplies, so semi-transparent pixels from 16-bit
	// or paletted sources convert exactly.
	i := 0
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			c := color.NRGBAModel.Convert(src.At(x, y)).(color.NRGBA)
			out.Pix[i] = c.R
			out.Pix[i+1] = c.G
			out.Pix[i+2] = c.B
			out.Pix[i+3] = c.A
			i += BytesPerPixel
		}
	}
	return out
}
