package compose

import (
	"image"
	"image/color"
	"math"
	"unicode/utf8"

	"github.com/gogpu/gg"
	"golang.org/x/image/font"
	"golang.org/x/image/math/fixed"

	"appshots/internal/catalog"
)

// drawFlowOverlay draws two faded connector curves and two soft circles laid
// out over a virtual canvas total screenshots wide, shifted to this index.
func (c *Compositor) drawFlowOverlay(dst *image.RGBA, tpl catalog.TemplateConfig, index, total int) {
	w, h := float64(dst.Bounds().Dx()), float64(dst.Bounds().Dy())
	tw := w * float64(max(1, total))
	off := float64(index) * w
	vx := func(f float64) float64 { return tw*f - off }

	strokeColor := withOpacity(tpl.SubtitleColor, 0.26)
	glowColor := withOpacity(tpl.TextColor, 0.16)

	curve := func(start, c1, c2, end point, col color.NRGBA, width float64) {
		pts := bezier(start, c1, c2, end)
		transparent := col
		transparent.A = 0
		ramp := newHorizontalRamp(start.X, end.X, []stop{
			{pos: 0, c: transparent},
			{pos: 0.5, c: col},
			{pos: 1, c: transparent},
		})
		fill(dst, ramp, stroke(pts, width, false)...)
	}

	curve(
		point{vx(0.06), h * 0.8}, point{vx(0.34), h * 0.72}, point{vx(0.62), h * 0.32}, point{vx(0.94), h * 0.2},
		strokeColor, math.Max(3, math.Round(w*0.006)),
	)
	curve(
		point{vx(0.12), h * 0.14}, point{vx(0.38), h * 0.24}, point{vx(0.66), h * 0.64}, point{vx(0.92), h * 0.7},
		glowColor, math.Max(2, math.Round(w*0.0038)),
	)

	fill(dst, image.NewUniform(scaleAlpha(glowColor, 0.18)), circle(vx(0.24), h*0.74, math.Round(w*0.07)))
	fill(dst, image.NewUniform(scaleAlpha(strokeColor, 0.16)), circle(vx(0.78), h*0.22, math.Round(w*0.06)))
}

// drawStoryOverlay draws one diagonal band spanning the whole story group,
// shifted so adjacent screenshots continue the same shape.
func (c *Compositor) drawStoryOverlay(dst *image.RGBA, tpl catalog.TemplateConfig, index, total int) {
	w, h := float64(dst.Bounds().Dx()), float64(dst.Bounds().Dy())
	group := StoryGroup(total)
	vw := w * float64(max(1, group))
	inGroup := 0
	if group > 1 {
		inGroup = index % group
	}
	off := float64(inGroup) * w
	vx := func(f float64) float64 { return vw*f - off }

	start := point{vx(0.04), h * 0.84}
	peak := point{vx(0.98), h * 0.34}
	low := point{vx(0.98), h * 0.56}
	band := flatten(gg.BuildPath().
		MoveTo(start.X, start.Y).
		CubicTo(vx(0.24), h*0.64, vx(0.56), h*0.18, peak.X, peak.Y).
		LineTo(low.X, low.Y).
		CubicTo(vx(0.62), h*0.88, vx(0.34), h*0.92, vx(0.04), h*0.72).
		Close().
		Build())

	primary := scaleAlpha(withOpacity(tpl.TextColor, 0.24), 0.88)
	secondary := scaleAlpha(withOpacity(tpl.SubtitleColor, 0.2), 0.88)
	ramp := newHorizontalRamp(start.X, peak.X, []stop{
		{pos: 0, c: primary},
		{pos: 0.5, c: secondary},
		{pos: 1, c: primary},
	})
	fill(dst, ramp, band)
	fill(dst, image.NewUniform(withOpacity(tpl.SubtitleColor, 0.42)),
		stroke(band, math.Max(2, math.Round(w*0.0025)), true)...)

	size := math.Max(30, math.Round(w*0.08))
	face, err := c.fonts.face(tpl.FontFamily, false, size)
	if err != nil {
		return
	}
	defer face.Close()
	drawCentered(dst, face, withOpacity(tpl.TextColor, 0.22), "STORY ARC",
		vx(0.48), round(h*0.58), round(w*0.008))
}

// drawWatermark draws a pill badge in the bottom-right corner.
func (c *Compositor) drawWatermark(dst *image.RGBA, text string) error {
	if text == "" {
		text = DefaultWatermark
	}
	w, h := dst.Bounds().Dx(), dst.Bounds().Dy()
	fs := max(20, round(float64(min(w, h))*0.024))
	inset := max(22, round(float64(w)*0.024))
	badgeH := round(float64(fs) * 1.7)
	padX := round(float64(fs) * 0.72)
	badgeW := round(float64(utf8.RuneCountInString(text))*float64(fs)*0.62) + padX*2
	x := max(inset, w-inset-badgeW)
	y := max(inset, h-inset-badgeH)

	fill(dst, image.NewUniform(color.NRGBA{R: 0x02, G: 0x06, B: 0x17, A: alpha(0.58)}),
		roundedRect(float64(x), float64(y), float64(badgeW), float64(badgeH), math.Round(float64(badgeH)/2)))

	face, err := c.fonts.face("", true, float64(fs))
	if err != nil {
		return err
	}
	defer face.Close()
	drawCentered(dst, face, color.NRGBA{R: 255, G: 255, B: 255, A: alpha(0.9)}, text,
		float64(x)+float64(badgeW)/2, y+badgeH/2+round(float64(fs)*0.34), 0)
	return nil
}

// drawCentered draws s centered on cx with tracking extra pixels between glyphs.
func drawCentered(dst *image.RGBA, face font.Face, col color.NRGBA, s string, cx float64, baseline, tracking int) {
	d := &font.Drawer{Dst: dst, Src: image.NewUniform(col), Face: face}
	n := utf8.RuneCountInString(s)
	if n == 0 {
		return
	}
	width := d.MeasureString(s) + fixed.I(tracking*(n-1))
	d.Dot = fixed.Point26_6{
		X: fixed.Int26_6(math.Round(cx*64)) - width/2,
		Y: fixed.I(baseline),
	}
	if tracking == 0 {
		d.DrawString(s)
		return
	}
	for _, r := range s {
		d.DrawString(string(r))
		d.Dot.X += fixed.I(tracking)
	}
}
