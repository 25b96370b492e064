package compose

import (
	"image"
	"image/color"
	"math"

	"appshots/internal/catalog"
)

var white = color.NRGBA{R: 255, G: 255, B: 255, A: 255}

// drawBackground paints the full canvas with the template background.
// Gradients follow CSS angle semantics in bounding-box space.
func drawBackground(dst *image.RGBA, bg catalog.Background) {
	b := dst.Bounds()
	if !bg.IsGradient() {
		c := mustColor(bg.Solid, white)
		fillRGBA(dst, func(_, _ int) color.NRGBA { return c })
		return
	}

	stops := make([]stop, 0, len(bg.Stops))
	for _, s := range bg.Stops {
		stops = append(stops, stop{pos: math.Max(0, math.Min(1, s.Position/100)), c: mustColor(s.Color, white)})
	}
	lut := gradientLUT(stops)

	x1, y1, x2, y2 := gradientAxis(bg.Angle)
	dx, dy := x2-x1, y2-y1
	den := dx*dx + dy*dy
	if den == 0 {
		den = 1
	}
	w, h := float64(b.Dx()), float64(b.Dy())
	fillRGBA(dst, func(x, y int) color.NRGBA {
		u := (float64(x) + 0.5) / w
		v := (float64(y) + 0.5) / h
		return sampleLUT(lut, ((u-x1)*dx+(v-y1)*dy)/den)
	})
}

// gradientAxis returns the start and end of the gradient vector in unit
// bounding-box coordinates.
func gradientAxis(angle float64) (x1, y1, x2, y2 float64) {
	if math.IsNaN(angle) || math.IsInf(angle, 0) {
		angle = 180
	}
	rad := (angle - 90) * math.Pi / 180
	x, y := math.Cos(rad), math.Sin(rad)
	return 0.5 - x*0.5, 0.5 - y*0.5, 0.5 + x*0.5, 0.5 + y*0.5
}

func fillRGBA(dst *image.RGBA, at func(x, y int) color.NRGBA) {
	b := dst.Bounds()
	for y := b.Min.Y; y < b.Max.Y; y++ {
		row := dst.Pix[(y-b.Min.Y)*dst.Stride:]
		for x := b.Min.X; x < b.Max.X; x++ {
			c := at(x-b.Min.X, y-b.Min.Y)
			i := (x - b.Min.X) * 4
			a := uint32(c.A)
			row[i+0] = uint8(uint32(c.R) * a / 255)
			row[i+1] = uint8(uint32(c.G) * a / 255)
			row[i+2] = uint8(uint32(c.B) * a / 255)
			row[i+3] = c.A
		}
	}
}
