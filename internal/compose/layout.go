package compose

import (
	"math"

	"appshots/internal/catalog"
)

// VariantFor picks the layout for the screenshot at index from the template's cycle.
func VariantFor(tpl catalog.TemplateConfig, index int) catalog.LayoutVariant {
	if len(tpl.LayoutCycle) == 0 {
		return catalog.LayoutHeroTop
	}
	return tpl.LayoutCycle[max(0, index)%len(tpl.LayoutCycle)]
}

// Drift is the edge-flow horizontal offset: right, centered, left by index mod 3.
// A single screenshot never drifts.
func Drift(width, index, total int) int {
	if total <= 1 {
		return 0
	}
	switch index % 3 {
	case 0:
		return round(float64(width) * 0.17)
	case 1:
		return 0
	default:
		return -round(float64(width) * 0.17)
	}
}

// StoryGroup is the number of screenshots one story-slice band spans.
func StoryGroup(total int) int {
	if total >= 3 {
		return 3
	}
	return max(0, min(2, total))
}

// StoryPhase is the position of index within its story group; a group of
// one is always the centered phase 1.
func StoryPhase(index, total int) int {
	g := StoryGroup(total)
	if g <= 1 {
		return 1
	}
	return index % g
}

// plan is the resolved geometry of one layout variant.
type plan struct {
	areaTop, areaHeight int
	maxW, maxH          int
	radius              int
	drift               int
	slack               int // how far the screenshot may extend past either canvas edge
	caption             caption
}

func planFor(v catalog.LayoutVariant, tpl catalog.TemplateConfig, w, h, index, total int) plan {
	fw, fh := float64(w), float64(h)
	wide := w >= 1500
	pick := func(large, small float64) float64 {
		if wide {
			return large
		}
		return small
	}
	radius := round(fw * 0.024)

	switch v {
	case catalog.LayoutHeroBottom:
		text := round(fh * 0.2)
		top := round(fh * 0.05)
		area := h - text - top - round(fh*0.03)
		return plan{
			areaTop: top, areaHeight: area,
			maxW: round(fw * clamp(tpl.ScreenshotScale+0.04, 0.65, 0.84)), maxH: area,
			radius: radius,
			caption: caption{
				top: h - text, height: text, align: alignLeft,
				paddingX:      round(fw * 0.1),
				headlineScale: pick(0.049, 0.054), subtitleScale: pick(0.028, 0.031),
				panel: true, panelOpacity: 0.34, panelInset: round(fw * 0.03), panelRadius: round(fw * 0.03),
				maxHeadlineLines: 2, maxSubtitleLines: 2,
			},
		}

	case catalog.LayoutEdgeFlow:
		text := round(fh * 0.21)
		top := text + round(fh*0.02)
		area := h - top - round(fh*0.03)
		drift := Drift(w, index, total)
		a := alignCenter
		switch {
		case drift > 0:
			a = alignLeft
		case drift < 0:
			a = alignRight
		}
		return plan{
			areaTop: top, areaHeight: area,
			maxW: round(fw * clamp(tpl.ScreenshotScale+0.18, 0.78, 0.98)), maxH: area,
			radius: radius, drift: drift, slack: round(fw * 0.26),
			caption: caption{
				top: 0, height: text, align: a,
				paddingX:      round(fw * 0.09),
				headlineScale: pick(0.051, 0.055), subtitleScale: pick(0.029, 0.032),
				maxHeadlineLines: 2, maxSubtitleLines: 2,
			},
		}

	case catalog.LayoutStorySlice:
		text := round(fh * 0.2)
		top := text + round(fh*0.02)
		area := h - top - round(fh*0.04)
		phase := StoryPhase(index, total)
		drift := 0
		switch phase {
		case 0:
			drift = round(fw * 0.14)
		case 2:
			drift = -round(fw * 0.14)
		}
		a := alignLeft
		if phase == 1 {
			a = alignCenter
		}
		return plan{
			areaTop: top, areaHeight: area,
			maxW: round(fw * clamp(tpl.ScreenshotScale+0.12, 0.76, 0.93)), maxH: area,
			radius: radius, drift: drift, slack: round(fw * 0.2),
			caption: caption{
				top: 0, height: text, align: a,
				paddingX:      round(fw * 0.09),
				headlineScale: pick(0.05, 0.054), subtitleScale: pick(0.028, 0.031),
				panel: true, panelOpacity: 0.26, panelInset: round(fw * 0.03), panelRadius: round(fw * 0.026),
				maxHeadlineLines: 2, maxSubtitleLines: 2,
			},
		}

	default:
		text := round(fh * 0.24)
		top := text + round(fh*0.02)
		area := h - top - round(fh*0.05)
		return plan{
			areaTop: top, areaHeight: area,
			maxW: round(fw * clamp(tpl.ScreenshotScale+0.05, 0.66, 0.86)), maxH: round(float64(area) * 0.95),
			radius: radius,
			caption: caption{
				top: 0, height: text, align: alignFor(tpl.TextAlignment),
				paddingX:      round(fw * 0.08),
				headlineScale: pick(0.053, 0.058), subtitleScale: pick(0.03, 0.033),
				maxHeadlineLines: 2, maxSubtitleLines: 2,
			},
		}
	}
}

// position places a sw×sh screenshot inside the plan's area.
func (p plan) position(w, sw, sh int) (x, y int) {
	base := round(float64(w-sw) / 2)
	x = base + p.drift
	if p.drift != 0 {
		x = min(max(x, -p.slack), w-sw+p.slack)
	}
	y = p.areaTop + round(float64(p.areaHeight-sh)/2)
	return x, y
}

func clamp(v, lo, hi float64) float64 {
	return math.Min(hi, math.Max(lo, v))
}

func round(v float64) int {
	return int(math.Round(v))
}
