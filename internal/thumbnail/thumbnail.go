// Package thumbnail renders bounded previews of uploaded images.
package thumbnail

import (
	"bytes"
	"fmt"
	"image"
	_ "image/gif"
	"image/jpeg"
	"image/png"
	"io"
	"path/filepath"
	"strings"

	"golang.org/x/image/draw"
	_ "golang.org/x/image/webp"
)

// DefaultSize is the bounding box edge used when none is configured.
const DefaultSize = 200

// Fit returns the dimensions of a w×h image scaled to fit inside a
// size×size box with its aspect ratio kept. Images that already fit are
// returned unchanged.
func Fit(w, h, size int) (int, int) {
	if w <= size && h <= size {
		return w, h
	}
	if w >= h {
		nh := max(1, h*size/w)
		return size, nh
	}
	nw := max(1, w*size/h)
	return nw, size
}

// Render decodes src and returns an encoded thumbnail no larger than
// size×size. JPEG names are encoded as JPEG; everything else as PNG.
func Render(src io.Reader, name string, size int) ([]byte, error) {
	if size <= 0 {
		size = DefaultSize
	}
	img, _, err := image.Decode(src)
	if err != nil {
		return nil, fmt.Errorf("thumbnail: decode: %w", err)
	}

	b := img.Bounds()
	w, h := Fit(b.Dx(), b.Dy(), size)
	out := img
	if w != b.Dx() || h != b.Dy() {
		dst := image.NewRGBA(image.Rect(0, 0, w, h))
		draw.CatmullRom.Scale(dst, dst.Bounds(), img, b, draw.Over, nil)
		out = dst
	}

	var buf bytes.Buffer
	switch strings.ToLower(filepath.Ext(name)) {
	case ".jpg", ".jpeg":
		err = jpeg.Encode(&buf, out, &jpeg.Options{Quality: 85})
	default:
		err = png.Encode(&buf, out)
	}
	if err != nil {
		return nil, fmt.Errorf("thumbnail: encode: %w", err)
	}
	return buf.Bytes(), nil
}
