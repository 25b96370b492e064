package compose

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"math"

	"github.com/disintegration/imaging"
	_ "golang.org/x/image/webp"
)

const minShotBox = 64

// decodeScreenshot decodes PNG, JPEG or WebP bytes, honoring EXIF orientation.
func decodeScreenshot(data []byte) (image.Image, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("decode screenshot: empty input")
	}
	img, err := imaging.Decode(bytes.NewReader(data), imaging.AutoOrientation(true))
	if err != nil {
		return nil, fmt.Errorf("decode screenshot: %w", err)
	}
	return img, nil
}

// fitInside scales img to the largest size that fits maxW×maxH, keeping its
// aspect ratio. Smaller images are enlarged.
func fitInside(img image.Image, maxW, maxH int) (*image.NRGBA, error) {
	maxW, maxH = max(minShotBox, maxW), max(minShotBox, maxH)
	b := img.Bounds()
	if b.Dx() <= 0 || b.Dy() <= 0 {
		return nil, fmt.Errorf("screenshot has no pixels")
	}
	ratio := math.Min(float64(maxW)/float64(b.Dx()), float64(maxH)/float64(b.Dy()))
	w := max(1, min(maxW, round(float64(b.Dx())*ratio)))
	h := max(1, min(maxH, round(float64(b.Dy())*ratio)))
	if w < 2 || h < 2 {
		return nil, fmt.Errorf("screenshot aspect ratio %dx%d cannot fit %dx%d", b.Dx(), b.Dy(), maxW, maxH)
	}
	return imaging.Resize(img, w, h, imaging.Lanczos), nil
}

// drawRounded composites src at (x, y) through an anti-aliased rounded-rect mask.
func drawRounded(dst *image.RGBA, src *image.NRGBA, x, y, radius int) {
	sb := src.Bounds()
	mask := image.NewAlpha(image.Rect(0, 0, sb.Dx(), sb.Dy()))
	r := float64(max(12, radius))
	fill(mask, image.NewUniform(color.Alpha{A: 0xff}),
		roundedRect(0, 0, float64(sb.Dx()), float64(sb.Dy()), r))

	target := image.Rect(x, y, x+sb.Dx(), y+sb.Dy())
	draw.DrawMask(dst, target, src, sb.Min, mask, image.Point{}, draw.Over)
}
