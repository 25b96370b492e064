package compose

import (
	"image/color"
	"math"
	"regexp"
	"strconv"
	"strings"
)

var rgbaPattern = regexp.MustCompile(`^rgba?\(\s*(\d+)\s*,\s*(\d+)\s*,\s*(\d+)\s*(?:,\s*([0-9.]+)\s*)?\)$`)

// parseColor accepts #rgb, #rrggbb, #rrggbbaa, rgb(...) and rgba(...).
func parseColor(s string) (color.NRGBA, bool) {
	s = strings.TrimSpace(strings.ToLower(s))
	if strings.HasPrefix(s, "#") {
		hex := s[1:]
		if len(hex) == 3 {
			hex = string([]byte{hex[0], hex[0], hex[1], hex[1], hex[2], hex[2]})
		}
		if len(hex) != 6 && len(hex) != 8 {
			return color.NRGBA{}, false
		}
		v, err := strconv.ParseUint(hex, 16, 32)
		if err != nil {
			return color.NRGBA{}, false
		}
		if len(hex) == 6 {
			return color.NRGBA{R: uint8(v >> 16), G: uint8(v >> 8), B: uint8(v), A: 0xff}, true
		}
		return color.NRGBA{R: uint8(v >> 24), G: uint8(v >> 16), B: uint8(v >> 8), A: uint8(v)}, true
	}
	m := rgbaPattern.FindStringSubmatch(s)
	if m == nil {
		return color.NRGBA{}, false
	}
	ch := func(v string) uint8 {
		n, _ := strconv.Atoi(v)
		return uint8(min(255, n))
	}
	c := color.NRGBA{R: ch(m[1]), G: ch(m[2]), B: ch(m[3]), A: 0xff}
	if m[4] != "" {
		if a, err := strconv.ParseFloat(m[4], 64); err == nil {
			c.A = alpha(a)
		}
	}
	return c, true
}

// mustColor parses s or returns fallback.
func mustColor(s string, fallback color.NRGBA) color.NRGBA {
	if c, ok := parseColor(s); ok {
		return c
	}
	return fallback
}

// withOpacity keeps the RGB of s and replaces its alpha. Unparseable colors become white.
func withOpacity(s string, opacity float64) color.NRGBA {
	c := mustColor(s, color.NRGBA{R: 255, G: 255, B: 255, A: 255})
	c.A = alpha(opacity)
	return c
}

// scaleAlpha multiplies the alpha channel, the equivalent of an SVG fill-opacity.
func scaleAlpha(c color.NRGBA, opacity float64) color.NRGBA {
	c.A = alpha(float64(c.A) / 255 * opacity)
	return c
}

func alpha(a float64) uint8 {
	return uint8(math.Round(math.Max(0, math.Min(1, a)) * 255))
}

func luma(c color.NRGBA) float64 {
	return float64(c.R)*0.299 + float64(c.G)*0.587 + float64(c.B)*0.114
}

// panelFill picks a translucent caption panel that contrasts with the text color.
func panelFill(textColor string) color.NRGBA {
	dark := color.NRGBA{R: 15, G: 23, B: 42, A: alpha(0.88)}
	c, ok := parseColor(textColor)
	if !ok {
		return color.NRGBA{R: 15, G: 23, B: 42, A: alpha(0.8)}
	}
	if luma(c) > 180 {
		return dark
	}
	return color.NRGBA{R: 248, G: 250, B: 252, A: alpha(0.88)}
}
