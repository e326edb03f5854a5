// Package favicon produces the 64x64 server icon shown in the status ping.
package favicon

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"image"
	"image/draw"
	_ "image/gif"  // Support GIF icons
	_ "image/jpeg" // Support JPEG icons
	"image/png"
	"os"
	"strings"

	"github.com/fogleman/gg"
	_ "golang.org/x/image/webp" // Support WebP icons
)

// Size is the edge length clients expect.
const Size = 64

// Generate draws the default icon: a rounded tile with the first letter of
// label.
func Generate(label string) image.Image {
	dc := gg.NewContext(Size, Size)
	dc.SetHexColor("#1f6f8b")
	dc.DrawRoundedRectangle(0, 0, Size, Size, 12)
	dc.Fill()

	dc.SetHexColor("#99d8e8")
	dc.DrawCircle(Size/2, Size/2, Size/2-8)
	dc.SetLineWidth(4)
	dc.Stroke()

	initial := "i"
	if label = strings.TrimSpace(label); label != "" {
		initial = strings.ToUpper(string([]rune(label)[0]))
	}
	dc.SetRGB(1, 1, 1)
	dc.DrawStringAnchored(initial, Size/2, Size/2, 0.5, 0.35)
	return dc.Image()
}

// Load decodes an image file, crops it to a centered square and scales it
// to Size.
func Load(path string) (image.Image, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("favicon: %w", err)
	}
	defer f.Close()

	img, _, err := image.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("favicon: decode %s: %w", path, err)
	}
	return Fit(img), nil
}

// Fit crops img to a centered square and scales it to Size.
func Fit(img image.Image) image.Image {
	sq := square(img)
	b := sq.Bounds()
	if b.Dx() == Size && b.Dy() == Size && b.Min == (image.Point{}) {
		return sq
	}
	dc := gg.NewContext(Size, Size)
	scale := float64(Size) / float64(b.Dx())
	dc.Scale(scale, scale)
	dc.DrawImage(sq, -b.Min.X, -b.Min.Y)
	return dc.Image()
}

func square(img image.Image) image.Image {
	b := img.Bounds()
	size := min(b.Dx(), b.Dy())
	x0 := b.Min.X + (b.Dx()-size)/2
	y0 := b.Min.Y + (b.Dy()-size)/2
	r := image.Rect(x0, y0, x0+size, y0+size)

	if sub, ok := img.(interface {
		SubImage(image.Rectangle) image.Image
	}); ok {
		return sub.SubImage(r)
	}
	out := image.NewRGBA(image.Rect(0, 0, size, size))
	draw.Draw(out, out.Bounds(), img, r.Min, draw.Src)
	return out
}

// DataURI encodes img as a base64 PNG data URI.
func DataURI(img image.Image) (string, error) {
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return "", fmt.Errorf("favicon: encode: %w", err)
	}
	return "data:image/png;base64," + base64.StdEncoding.EncodeToString(buf.Bytes()), nil
}

// Resolve returns the data URI for the icon at path, or for a generated
// icon when path is empty.
func Resolve(path, label string) (string, error) {
	img := Generate(label)
	if path != "" {
		loaded, err := Load(path)
		if err != nil {
			return "", err
		}
		img = loaded
	}
	return DataURI(img)
}
