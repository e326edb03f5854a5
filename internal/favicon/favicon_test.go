package favicon

import (
	"bytes"
	"encoding/base64"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

// TestGenerateSize verifies the generated icon dimensions
func TestGenerateSize(t *testing.T) {
	for _, label := range []string{"", "ionic", "  émile"} {
		b := Generate(label).Bounds()
		if b.Dx() != Size || b.Dy() != Size {
			t.Errorf("Generate(%q) = %v", label, b)
		}
	}
}

// TestLoadScalesToSize verifies a wide file is cropped and scaled
func TestLoadScalesToSize(t *testing.T) {
	src := image.NewRGBA(image.Rect(0, 0, 200, 100))
	for y := 0; y < 100; y++ {
		for x := 0; x < 200; x++ {
			src.Set(x, y, color.RGBA{R: 200, A: 255})
		}
	}
	path := filepath.Join(t.TempDir(), "icon.png")
	f, err := os.Create(path)
	if err != nil {
		t.Fatal(err)
	}
	if err := png.Encode(f, src); err != nil {
		t.Fatal(err)
	}
	f.Close()

	img, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if b := img.Bounds(); b.Dx() != Size || b.Dy() != Size {
		t.Errorf("bounds = %v", b)
	}
	if _, _, _, a := img.At(Size/2, Size/2).RGBA(); a == 0 {
		t.Error("center pixel transparent")
	}
}

// TestLoadMissingFile verifies errors are returned
func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "nope.png")); err == nil {
		t.Error("missing file loaded")
	}
	if _, err := Resolve(filepath.Join(t.TempDir(), "nope.png"), "x"); err == nil {
		t.Error("Resolve ignored a bad path")
	}
}

// TestDataURI verifies the encoded form decodes back to a PNG
func TestDataURI(t *testing.T) {
	uri, err := Resolve("", "ionic")
	if err != nil {
		t.Fatal(err)
	}
	const prefix = "data:image/png;base64,"
	if !strings.HasPrefix(uri, prefix) {
		t.Fatalf("uri = %.40s", uri)
	}
	raw, err := base64.StdEncoding.DecodeString(strings.TrimPrefix(uri, prefix))
	if err != nil {
		t.Fatal(err)
	}
	img, err := png.Decode(bytes.NewReader(raw))
	if err != nil {
		t.Fatal(err)
	}
	if img.Bounds().Dx() != Size {
		t.Errorf("width = %d", img.Bounds().Dx())
	}
}
