package compose

import (
	"image"
	"image/color"
	"image/draw"
	"math"

	"github.com/gogpu/gg"
	"golang.org/x/image/vector"
)

type point struct{ X, Y float64 }

type polygon []point

// flatness is the maximum distance in pixels between a curve and its polyline.
const flatness = 0.25

// flatten turns a single-subpath gg path into a polyline. The closing point
// is dropped when it repeats the start.
func flatten(p *gg.Path) polygon {
	var out polygon
	p.FlattenCallback(flatness, func(q gg.Point) {
		out = append(out, point{q.X, q.Y})
	})
	if n := len(out); n > 2 && out[0] == out[n-1] {
		out = out[:n-1]
	}
	return out
}

// bezier flattens a cubic curve from p0 to p3, including both ends.
func bezier(p0, c1, c2, p3 point) polygon {
	return flatten(gg.BuildPath().
		MoveTo(p0.X, p0.Y).
		CubicTo(c1.X, c1.Y, c2.X, c2.Y, p3.X, p3.Y).
		Build())
}

func circle(cx, cy, r float64) polygon {
	return flatten(gg.BuildPath().Circle(cx, cy, r).Build())
}

func roundedRect(x, y, w, h, r float64) polygon {
	return flatten(gg.BuildPath().RoundRect(x, y, w, h, math.Max(0, r)).Build())
}

// stroke turns a polyline into fillable outlines of the given width. A closed
// polyline yields an outer and a reversed inner ring.
func stroke(pts []point, width float64, closed bool) []polygon {
	n := len(pts)
	if n < 2 {
		return nil
	}
	half := width / 2
	left := make(polygon, n)
	right := make(polygon, n)
	for i := range pts {
		prev, next := i-1, i+1
		if closed {
			prev = (i - 1 + n) % n
			next = (i + 1) % n
		} else {
			prev = max(prev, 0)
			next = min(next, n-1)
		}
		dx := pts[next].X - pts[prev].X
		dy := pts[next].Y - pts[prev].Y
		l := math.Hypot(dx, dy)
		if l == 0 {
			l = 1
		}
		nx, ny := -dy/l*half, dx/l*half
		left[i] = point{pts[i].X + nx, pts[i].Y + ny}
		right[i] = point{pts[i].X - nx, pts[i].Y - ny}
	}
	reverse(right)
	if closed {
		return []polygon{left, right}
	}
	return []polygon{append(left, right...)}
}

func reverse(p polygon) {
	for i, j := 0, len(p)-1; i < j; i, j = i+1, j-1 {
		p[i], p[j] = p[j], p[i]
	}
}

// clipRect clips a closed polygon against an axis-aligned rectangle
// (Sutherland–Hodgman). Coverage of the clipped result is identical inside the rect.
func clipRect(p polygon, minX, minY, maxX, maxY float64) polygon {
	edges := []struct {
		inside func(point) bool
		cross  func(a, b point) point
	}{
		{func(q point) bool { return q.X >= minX }, func(a, b point) point { return lerpX(a, b, minX) }},
		{func(q point) bool { return q.X <= maxX }, func(a, b point) point { return lerpX(a, b, maxX) }},
		{func(q point) bool { return q.Y >= minY }, func(a, b point) point { return lerpY(a, b, minY) }},
		{func(q point) bool { return q.Y <= maxY }, func(a, b point) point { return lerpY(a, b, maxY) }},
	}
	out := p
	for _, e := range edges {
		if len(out) == 0 {
			return nil
		}
		in := out
		out = make(polygon, 0, len(in)+4)
		prev := in[len(in)-1]
		for _, cur := range in {
			switch {
			case e.inside(cur) && e.inside(prev):
				out = append(out, cur)
			case e.inside(cur):
				out = append(out, e.cross(prev, cur), cur)
			case e.inside(prev):
				out = append(out, e.cross(prev, cur))
			}
			prev = cur
		}
	}
	return out
}

func lerpX(a, b point, x float64) point {
	t := (x - a.X) / (b.X - a.X)
	return point{x, a.Y + t*(b.Y-a.Y)}
}

func lerpY(a, b point, y float64) point {
	t := (y - a.Y) / (b.Y - a.Y)
	return point{a.X + t*(b.X-a.X), y}
}

// fill rasterizes polygons onto dst with src composited over, touching only
// their clipped bounding box.
func fill(dst draw.Image, src image.Image, polys ...polygon) {
	b := dst.Bounds()
	clipped := make([]polygon, 0, len(polys))
	minX, minY := math.Inf(1), math.Inf(1)
	maxX, maxY := math.Inf(-1), math.Inf(-1)
	for _, p := range polys {
		c := clipRect(p, float64(b.Min.X), float64(b.Min.Y), float64(b.Max.X), float64(b.Max.Y))
		if len(c) < 3 {
			continue
		}
		for _, q := range c {
			minX, minY = math.Min(minX, q.X), math.Min(minY, q.Y)
			maxX, maxY = math.Max(maxX, q.X), math.Max(maxY, q.Y)
		}
		clipped = append(clipped, c)
	}
	if len(clipped) == 0 {
		return
	}
	box := image.Rect(int(math.Floor(minX)), int(math.Floor(minY)), int(math.Ceil(maxX)), int(math.Ceil(maxY))).Intersect(b)
	if box.Empty() {
		return
	}
	z := vector.NewRasterizer(box.Dx(), box.Dy())
	ox, oy := float64(box.Min.X), float64(box.Min.Y)
	for _, c := range clipped {
		z.MoveTo(float32(c[0].X-ox), float32(c[0].Y-oy))
		for _, q := range c[1:] {
			z.LineTo(float32(q.X-ox), float32(q.Y-oy))
		}
		z.ClosePath()
	}
	z.Draw(dst, box, src, box.Min)
}

type stop struct {
	pos float64 // 0..1
	c   color.NRGBA
}

const lutSize = 1024

// gradientLUT samples a gg linear gradient along its unit axis so per-pixel
// lookups avoid re-searching the stops.
func gradientLUT(stops []stop) []color.NRGBA {
	g := gg.NewLinearGradientBrush(0, 0, 1, 0)
	for _, s := range stops {
		g.AddColorStop(s.pos, gg.RGBA2(
			float64(s.c.R)/255, float64(s.c.G)/255, float64(s.c.B)/255, float64(s.c.A)/255,
		))
	}
	lut := make([]color.NRGBA, lutSize)
	for i := range lut {
		lut[i] = toNRGBA(g.ColorAt(float64(i)/(lutSize-1), 0))
	}
	return lut
}

func toNRGBA(c gg.RGBA) color.NRGBA {
	ch := func(v float64) uint8 { return uint8(math.Round(math.Max(0, math.Min(1, v)) * 255)) }
	return color.NRGBA{R: ch(c.R), G: ch(c.G), B: ch(c.B), A: ch(c.A)}
}

func sampleLUT(lut []color.NRGBA, t float64) color.NRGBA {
	t = math.Max(0, math.Min(1, t))
	return lut[int(math.Round(t*(lutSize-1)))]
}

// horizontalRamp is an image whose color depends only on x.
type horizontalRamp struct {
	x0, x1 float64
	lut    []color.NRGBA
}

func newHorizontalRamp(x0, x1 float64, stops []stop) *horizontalRamp {
	return &horizontalRamp{x0: x0, x1: x1, lut: gradientLUT(stops)}
}

func (h *horizontalRamp) ColorModel() color.Model { return color.NRGBAModel }

func (h *horizontalRamp) Bounds() image.Rectangle {
	return image.Rect(-1<<20, -1<<20, 1<<20, 1<<20)
}

func (h *horizontalRamp) At(x, _ int) color.Color {
	t := 0.0
	if h.x1 != h.x0 {
		t = (float64(x) + 0.5 - h.x0) / (h.x1 - h.x0)
	}
	return sampleLUT(h.lut, t)
}
