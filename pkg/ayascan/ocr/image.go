// Package ocr holds the image preparation shared by the OCR engines.
package ocr

import (
	"bytes"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	"image/png"

	_ "golang.org/x/image/bmp"
	"golang.org/x/image/draw"
	"golang.org/x/image/math/f64"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"

	"github.com/himanishpuri/AyaScan/pkg/ayascan/model"
)

// Decode decodes any registered image format.
func Decode(data []byte) (image.Image, string, error) {
	img, format, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, "", fmt.Errorf("decode image: %w", err)
	}
	return img, format, nil
}

// Upright rotates img clockwise by rotationDegrees, rounded to a quarter turn.
func Upright(img image.Image, rotationDegrees int) image.Image {
	rot := model.NormalizeRotation(rotationDegrees)
	if rot == 0 {
		return img
	}

	sr := img.Bounds()
	w, h := float64(sr.Dx()), float64(sr.Dy())
	ox, oy := float64(sr.Min.X), float64(sr.Min.Y)

	var dst *image.RGBA
	var s2d f64.Aff3
	switch rot {
	case 90:
		dst = image.NewRGBA(image.Rect(0, 0, sr.Dy(), sr.Dx()))
		s2d = f64.Aff3{0, -1, h + oy, 1, 0, -ox}
	case 180:
		dst = image.NewRGBA(image.Rect(0, 0, sr.Dx(), sr.Dy()))
		s2d = f64.Aff3{-1, 0, w + ox, 0, -1, h + oy}
	case 270:
		dst = image.NewRGBA(image.Rect(0, 0, sr.Dy(), sr.Dx()))
		s2d = f64.Aff3{0, 1, -oy, -1, 0, w + ox}
	}
	draw.NearestNeighbor.Transform(dst, s2d, img, sr, draw.Src, nil)
	return dst
}

// Prepare returns image bytes an engine can read with the rotation applied.
// Unrotated input is passed through untouched.
func Prepare(data []byte, rotationDegrees int) ([]byte, error) {
	if model.NormalizeRotation(rotationDegrees) == 0 {
		return data, nil
	}
	img, _, err := Decode(data)
	if err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, Upright(img, rotationDegrees)); err != nil {
		return nil, fmt.Errorf("encode rotated image: %w", err)
	}
	return buf.Bytes(), nil
}

// Size returns the pixel dimensions of encoded image data without decoding
// the pixels.
func Size(data []byte) (width, height int, err error) {
	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return 0, 0, fmt.Errorf("decode image config: %w", err)
	}
	return cfg.Width, cfg.Height, nil
}
