package compose

import (
	"image"
	"image/color"
	"math"
	"strings"
	"unicode"

	"golang.org/x/image/font"
	"golang.org/x/image/math/fixed"

	"appshots/internal/catalog"
)

const (
	cjkGlyphRatio   = 1.0
	latinGlyphRatio = 0.56
	ellipsis        = "..."
)

// IsCJK reports whether text contains any Han, Kana or Hangul codepoint.
func IsCJK(text string) bool {
	for _, r := range text {
		if unicode.In(r, unicode.Han, unicode.Hiragana, unicode.Katakana, unicode.Hangul) {
			return true
		}
	}
	return false
}

// MaxChars estimates how many glyphs of fontSize fit between the paddings.
func MaxChars(width, paddingX, fontSize int, cjk bool) int {
	drawable := max(120, width-paddingX*2)
	ratio := latinGlyphRatio
	if cjk {
		ratio = cjkGlyphRatio
	}
	return max(6, int(math.Floor(float64(drawable)/(float64(fontSize)*ratio))))
}

// WrapText wraps into at most maxLines lines of maxChars runes. Latin text
// breaks on spaces (overlong words are split); CJK text breaks anywhere.
// Overflowing content truncates the last line with an ellipsis.
func WrapText(text string, maxChars, maxLines int) []string {
	normalized := strings.Join(strings.Fields(text), " ")
	if normalized == "" || maxLines <= 0 {
		return nil
	}
	maxChars = max(1, maxChars)

	var lines []string
	if IsCJK(normalized) {
		lines = chunkRunes(normalized, maxChars)
	} else {
		lines = wrapWords(normalized, maxChars)
	}
	if len(lines) <= maxLines {
		return lines
	}
	lines = lines[:maxLines]
	lines[maxLines-1] = withEllipsis(lines[maxLines-1], maxChars)
	return lines
}

func chunkRunes(s string, n int) []string {
	runes := []rune(s)
	var out []string
	for i := 0; i < len(runes); i += n {
		out = append(out, string(runes[i:min(i+n, len(runes))]))
	}
	return out
}

func wrapWords(s string, maxChars int) []string {
	var lines []string
	var cur []rune
	for _, word := range strings.Split(s, " ") {
		w := []rune(word)
		switch {
		case len(cur) == 0 && len(w) <= maxChars:
			cur = w
		case len(cur) > 0 && len(cur)+1+len(w) <= maxChars:
			cur = append(append(cur, ' '), w...)
		default:
			if len(cur) > 0 {
				lines = append(lines, string(cur))
				cur = nil
			}
			for len(w) > maxChars {
				lines = append(lines, string(w[:maxChars]))
				w = w[maxChars:]
			}
			cur = w
		}
	}
	if len(cur) > 0 {
		lines = append(lines, string(cur))
	}
	return lines
}

func withEllipsis(line string, maxChars int) string {
	r := []rune(line)
	keep := min(len(r), max(1, maxChars-1))
	return strings.TrimRight(string(r[:keep]), " ") + ellipsis
}

type align int

const (
	alignCenter align = iota
	alignLeft
	alignRight
)

// caption describes one text block drawn in a horizontal band of the canvas.
type caption struct {
	top, height      int
	align            align
	paddingX         int
	headlineScale    float64
	subtitleScale    float64
	panel            bool
	panelOpacity     float64
	panelInset       int
	panelRadius      int
	maxHeadlineLines int
	maxSubtitleLines int
}

func (c *Compositor) drawCaption(dst *image.RGBA, in Input, cp caption) error {
	width := dst.Bounds().Dx()
	tpl := in.Template

	if cp.panel {
		x := float64(cp.panelInset)
		y := float64(cp.top + cp.panelInset)
		w := float64(width - cp.panelInset*2)
		h := float64(cp.height - cp.panelInset*2)
		if w > 0 && h > 0 {
			fill(dst, image.NewUniform(scaleAlpha(panelFill(tpl.TextColor), cp.panelOpacity)),
				roundedRect(x, y, w, h, float64(cp.panelRadius)))
		}
	}

	cjk := IsCJK(in.Headline + " " + in.Subtitle)
	family := tpl.FontFamily
	if cjk {
		family = tpl.FontFamilyZh
	}
	headSize := int(math.Round(float64(width) * cp.headlineScale))
	subSize := int(math.Round(float64(width) * cp.subtitleScale))

	heads := WrapText(in.Headline, MaxChars(width, cp.paddingX, headSize, cjk), cp.maxHeadlineLines)
	subs := WrapText(in.Subtitle, MaxChars(width, cp.paddingX, subSize, cjk), cp.maxSubtitleLines)
	if len(heads) == 0 && len(subs) == 0 {
		return nil
	}

	headLH := int(math.Round(float64(headSize) * 1.2))
	subLH := int(math.Round(float64(subSize) * 1.35))
	gap := 0
	if len(heads) > 0 && len(subs) > 0 {
		gap = int(math.Round(float64(subSize) * 0.6))
	}
	block := len(heads)*headLH + gap + len(subs)*subLH
	baseline := cp.top + int(math.Round(float64(cp.height-block)/2)) + headSize

	if len(heads) > 0 {
		face, err := c.fonts.face(family, true, float64(headSize))
		if err != nil {
			return err
		}
		col := mustColor(tpl.TextColor, color.NRGBA{A: 255})
		for i, line := range heads {
			drawLine(dst, face, col, line, cp.align, cp.paddingX, baseline+i*headLH)
		}
		face.Close()
	}
	if len(subs) > 0 {
		face, err := c.fonts.face(family, false, float64(subSize))
		if err != nil {
			return err
		}
		col := mustColor(tpl.SubtitleColor, color.NRGBA{A: 255})
		start := baseline + len(heads)*headLH + gap
		if len(heads) == 0 {
			start -= headSize
		}
		for i, line := range subs {
			drawLine(dst, face, col, line, cp.align, cp.paddingX, start+subSize+i*subLH)
		}
		face.Close()
	}
	return nil
}

func drawLine(dst *image.RGBA, face font.Face, col color.NRGBA, s string, a align, paddingX, baseline int) {
	d := &font.Drawer{Dst: dst, Src: image.NewUniform(col), Face: face}
	width := dst.Bounds().Dx()
	adv := d.MeasureString(s).Ceil()
	x := paddingX
	switch a {
	case alignCenter:
		x = (width - adv) / 2
	case alignRight:
		x = width - paddingX - adv
	}
	d.Dot = fixed.P(x, baseline)
	d.DrawString(s)
}

func alignFor(a catalog.TextAlignment) align {
	if a == catalog.AlignLeft {
		return alignLeft
	}
	return alignCenter
}
