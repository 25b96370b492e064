package catalog

import (
	"errors"
	"fmt"
	"strings"
)

// TemplateID names one entry of the compiled-in template catalog.
type TemplateID string

const (
	TemplateClean          TemplateID = "clean"
	TemplateTechDark       TemplateID = "tech-dark"
	TemplateVibrant        TemplateID = "vibrant"
	TemplateAurora         TemplateID = "aurora"
	TemplateSunsetGlow     TemplateID = "sunset-glow"
	TemplateForestMist     TemplateID = "forest-mist"
	TemplateRoseGold       TemplateID = "rose-gold"
	TemplateMonochromeBold TemplateID = "monochrome-bold"
	TemplateOceanBreeze    TemplateID = "ocean-breeze"
	TemplateNeonPulse      TemplateID = "neon-pulse"
	TemplateLavenderDream  TemplateID = "lavender-dream"
	TemplateDesertSand     TemplateID = "desert-sand"
	TemplateMidnightPurple TemplateID = "midnight-purple"
	TemplateCandyPop       TemplateID = "candy-pop"
)

// CompositionMode selects the decorative overlay drawn across a screenshot sequence.
type CompositionMode string

const (
	ModeFlowDrift  CompositionMode = "flow-drift"
	ModeStorySlice CompositionMode = "story-slice"
)

// LayoutVariant is one caption/screenshot placement inside a single image.
type LayoutVariant string

const (
	LayoutHeroTop    LayoutVariant = "hero-top"
	LayoutHeroBottom LayoutVariant = "hero-bottom"
	LayoutEdgeFlow   LayoutVariant = "edge-flow"
	LayoutStorySlice LayoutVariant = "story-slice"
)

// TextPosition is the template's declared caption position.
type TextPosition string

const (
	TextTop    TextPosition = "top"
	TextBottom TextPosition = "bottom"
)

// TextAlignment is the horizontal caption alignment.
type TextAlignment string

const (
	AlignLeft   TextAlignment = "left"
	AlignCenter TextAlignment = "center"
)

// ColorStop is one stop of a linear gradient; Position is a percentage in [0,100].
type ColorStop struct {
	Color    string  `json:"color"`
	Position float64 `json:"position"`
}

// Background is either a solid color (Stops empty) or a linear gradient.
type Background struct {
	Solid string      `json:"solid,omitempty"`
	Angle float64     `json:"angle,omitempty"`
	Stops []ColorStop `json:"stops,omitempty"`
}

// IsGradient reports whether the background is a linear gradient.
func (b Background) IsGradient() bool { return len(b.Stops) > 0 }

// TemplateConfig is an immutable template definition.
type TemplateConfig struct {
	ID              TemplateID      `json:"id"`
	Name            string          `json:"name"`
	NameZh          string          `json:"nameZh"`
	Background      Background      `json:"background"`
	TextColor       string          `json:"textColor"`
	SubtitleColor   string          `json:"subtitleColor"`
	FontFamily      string          `json:"fontFamily"`
	FontFamilyZh    string          `json:"fontFamilyZh"`
	TextPosition    TextPosition    `json:"textPosition"`
	TextAlignment   TextAlignment   `json:"textAlignment"`
	ScreenshotScale float64         `json:"screenshotScale"`
	CompositionMode CompositionMode `json:"compositionMode"`
	PaddingTop      int             `json:"paddingTop"`
	PaddingBottom   int             `json:"paddingBottom"`
	LayoutCycle     []LayoutVariant `json:"layoutCycle"`
}

// DefaultLayout is the variant used when the cycled layout cannot be rendered.
func (t TemplateConfig) DefaultLayout() LayoutVariant {
	if t.TextPosition == TextBottom {
		return LayoutHeroBottom
	}
	return LayoutHeroTop
}

// ErrUnknownTemplate is returned for ids outside the catalog.
var ErrUnknownTemplate = errors.New("unknown template")

func linear(angle float64, colors ...string) Background {
	stops := make([]ColorStop, len(colors))
	for i, c := range colors {
		pos := 0.0
		if len(colors) > 1 {
			pos = float64(i) * 100 / float64(len(colors)-1)
		}
		stops[i] = ColorStop{Color: c, Position: pos}
	}
	return Background{Angle: angle, Stops: stops}
}

var (
	cycleTopFlowBottom = []LayoutVariant{LayoutHeroTop, LayoutEdgeFlow, LayoutHeroBottom}
	cycleBottomFlowTop = []LayoutVariant{LayoutHeroBottom, LayoutEdgeFlow, LayoutHeroTop}
	cycleStoryFour     = []LayoutVariant{LayoutStorySlice, LayoutHeroTop, LayoutStorySlice, LayoutHeroBottom}
)

var templates = map[TemplateID]TemplateConfig{
	TemplateClean: {
		ID: TemplateClean, Name: "Clean", NameZh: "简约",
		Background: Background{Solid: "#FFFFFF"},
		TextColor:  "#111827", SubtitleColor: "#6B7280",
		FontFamily: "Inter", FontFamilyZh: "Noto Sans SC",
		TextPosition: TextTop, TextAlignment: AlignCenter,
		ScreenshotScale: 0.72, CompositionMode: ModeFlowDrift,
		PaddingTop: 120, PaddingBottom: 80,
		LayoutCycle: cycleTopFlowBottom,
	},
	TemplateTechDark: {
		ID: TemplateTechDark, Name: "Tech Dark", NameZh: "科技暗黑",
		Background: linear(180, "#0F0F1A", "#1A1A2E"),
		TextColor:  "#FFFFFF", SubtitleColor: "#A5B4FC",
		FontFamily: "SF Pro Display", FontFamilyZh: "Noto Sans SC",
		TextPosition: TextTop, TextAlignment: AlignCenter,
		ScreenshotScale: 0.7, CompositionMode: ModeStorySlice,
		PaddingTop: 120, PaddingBottom: 80,
		LayoutCycle: cycleStoryFour,
	},
	TemplateVibrant: {
		ID: TemplateVibrant, Name: "Vibrant", NameZh: "活力",
		Background: linear(135, "#667EEA", "#764BA2"),
		TextColor:  "#FFFFFF", SubtitleColor: "#E0E7FF",
		FontFamily: "Poppins", FontFamilyZh: "Noto Sans SC",
		TextPosition: TextTop, TextAlignment: AlignCenter,
		ScreenshotScale: 0.7, CompositionMode: ModeFlowDrift,
		PaddingTop: 110, PaddingBottom: 80,
		LayoutCycle: []LayoutVariant{LayoutEdgeFlow, LayoutHeroTop, LayoutEdgeFlow},
	},
	TemplateAurora: {
		ID: TemplateAurora, Name: "Aurora", NameZh: "极光",
		Background: linear(135, "#0B132B", "#1C2541", "#5BC0BE"),
		TextColor:  "#F8FAFC", SubtitleColor: "#9FE7E5",
		FontFamily: "Inter", FontFamilyZh: "Noto Sans SC",
		TextPosition: TextTop, TextAlignment: AlignCenter,
		ScreenshotScale: 0.7, CompositionMode: ModeStorySlice,
		PaddingTop: 120, PaddingBottom: 80,
		LayoutCycle: cycleStoryFour,
	},
	TemplateSunsetGlow: {
		ID: TemplateSunsetGlow, Name: "Sunset Glow", NameZh: "日落暖光",
		Background: linear(135, "#FF9A8B", "#FF6A88", "#FF99AC"),
		TextColor:  "#FFFFFF", SubtitleColor: "#FFF1F2",
		FontFamily: "Poppins", FontFamilyZh: "Noto Sans SC",
		TextPosition: TextBottom, TextAlignment: AlignLeft,
		ScreenshotScale: 0.7, CompositionMode: ModeFlowDrift,
		PaddingTop: 90, PaddingBottom: 120,
		LayoutCycle: cycleBottomFlowTop,
	},
	TemplateForestMist: {
		ID: TemplateForestMist, Name: "Forest Mist", NameZh: "森林薄雾",
		Background: linear(135, "#E6F4EA", "#CDEAD5", "#A8DDB5"),
		TextColor:  "#14532D", SubtitleColor: "#3F6212",
		FontFamily: "Inter", FontFamilyZh: "Noto Sans SC",
		TextPosition: TextTop, TextAlignment: AlignCenter,
		ScreenshotScale: 0.72, CompositionMode: ModeFlowDrift,
		PaddingTop: 120, PaddingBottom: 80,
		LayoutCycle: cycleTopFlowBottom,
	},
	TemplateRoseGold: {
		ID: TemplateRoseGold, Name: "Rose Gold", NameZh: "玫瑰金",
		Background: linear(135, "#FFF6F0", "#FAD4D8", "#E8B4B8"),
		TextColor:  "#7C2D12", SubtitleColor: "#9F5F5F",
		FontFamily: "Playfair Display", FontFamilyZh: "Noto Serif SC",
		TextPosition: TextBottom, TextAlignment: AlignLeft,
		ScreenshotScale: 0.7, CompositionMode: ModeFlowDrift,
		PaddingTop: 90, PaddingBottom: 120,
		LayoutCycle: cycleBottomFlowTop,
	},
	TemplateMonochromeBold: {
		ID: TemplateMonochromeBold, Name: "Monochrome Bold", NameZh: "黑白高对比",
		Background: linear(180, "#0F1115", "#2A2F3A"),
		TextColor:  "#FFFFFF", SubtitleColor: "#D1D5DB",
		FontFamily: "Inter", FontFamilyZh: "Noto Sans SC",
		TextPosition: TextBottom, TextAlignment: AlignLeft,
		ScreenshotScale: 0.7, CompositionMode: ModeStorySlice,
		PaddingTop: 90, PaddingBottom: 120,
		LayoutCycle: []LayoutVariant{LayoutStorySlice, LayoutHeroBottom, LayoutStorySlice},
	},
	TemplateOceanBreeze: {
		ID: TemplateOceanBreeze, Name: "Ocean Breeze", NameZh: "海风",
		Background: linear(135, "#E0F7FA", "#90E0EF", "#48CAE4"),
		TextColor:  "#023E8A", SubtitleColor: "#0077B6",
		FontFamily: "Inter", FontFamilyZh: "Noto Sans SC",
		TextPosition: TextTop, TextAlignment: AlignCenter,
		ScreenshotScale: 0.72, CompositionMode: ModeFlowDrift,
		PaddingTop: 120, PaddingBottom: 80,
		LayoutCycle: cycleTopFlowBottom,
	},
	TemplateNeonPulse: {
		ID: TemplateNeonPulse, Name: "Neon Pulse", NameZh: "霓虹律动",
		Background: linear(135, "#09090F", "#15162B", "#00E5FF"),
		TextColor:  "#F0FDFF", SubtitleColor: "#67E8F9",
		FontFamily: "Space Grotesk", FontFamilyZh: "Noto Sans SC",
		TextPosition: TextTop, TextAlignment: AlignCenter,
		ScreenshotScale: 0.7, CompositionMode: ModeStorySlice,
		PaddingTop: 120, PaddingBottom: 80,
		LayoutCycle: []LayoutVariant{LayoutStorySlice, LayoutEdgeFlow, LayoutHeroTop},
	},
	TemplateLavenderDream: {
		ID: TemplateLavenderDream, Name: "Lavender Dream", NameZh: "薰衣草梦境",
		Background: linear(135, "#F5F3FF", "#E9D5FF", "#D8B4FE"),
		TextColor:  "#4C1D95", SubtitleColor: "#6D28D9",
		FontFamily: "Nunito", FontFamilyZh: "Noto Sans SC",
		TextPosition: TextBottom, TextAlignment: AlignLeft,
		ScreenshotScale: 0.7, CompositionMode: ModeFlowDrift,
		PaddingTop: 90, PaddingBottom: 120,
		LayoutCycle: cycleBottomFlowTop,
	},
	TemplateDesertSand: {
		ID: TemplateDesertSand, Name: "Desert Sand", NameZh: "沙漠暖金",
		Background: linear(135, "#FFF7ED", "#FED7AA", "#FDBA74"),
		TextColor:  "#7C2D12", SubtitleColor: "#9A3412",
		FontFamily: "Merriweather", FontFamilyZh: "Noto Serif SC",
		TextPosition: TextTop, TextAlignment: AlignCenter,
		ScreenshotScale: 0.72, CompositionMode: ModeFlowDrift,
		PaddingTop: 120, PaddingBottom: 80,
		LayoutCycle: cycleTopFlowBottom,
	},
	TemplateMidnightPurple: {
		ID: TemplateMidnightPurple, Name: "Midnight Purple", NameZh: "午夜紫",
		Background: linear(135, "#140A2E", "#2E1065", "#7C3AED"),
		TextColor:  "#FAF5FF", SubtitleColor: "#C4B5FD",
		FontFamily: "Inter", FontFamilyZh: "Noto Sans SC",
		TextPosition: TextTop, TextAlignment: AlignCenter,
		ScreenshotScale: 0.7, CompositionMode: ModeStorySlice,
		PaddingTop: 120, PaddingBottom: 80,
		LayoutCycle: cycleStoryFour,
	},
	TemplateCandyPop: {
		ID: TemplateCandyPop, Name: "Candy Pop", NameZh: "糖果撞色",
		Background: linear(135, "#FF5EA8", "#FF86C8", "#7C9CFF"),
		TextColor:  "#FFFFFF", SubtitleColor: "#FDF2F8",
		FontFamily: "Poppins", FontFamilyZh: "Noto Sans SC",
		TextPosition: TextTop, TextAlignment: AlignCenter,
		ScreenshotScale: 0.7, CompositionMode: ModeFlowDrift,
		PaddingTop: 110, PaddingBottom: 80,
		LayoutCycle: []LayoutVariant{LayoutEdgeFlow, LayoutHeroTop, LayoutHeroBottom},
	},
}

// templateOrder is the display order of the catalog.
var templateOrder = []TemplateID{
	TemplateClean, TemplateTechDark, TemplateVibrant, TemplateAurora,
	TemplateSunsetGlow, TemplateForestMist, TemplateRoseGold, TemplateMonochromeBold,
	TemplateOceanBreeze, TemplateNeonPulse, TemplateLavenderDream, TemplateDesertSand,
	TemplateMidnightPurple, TemplateCandyPop,
}

// ParseTemplateID validates a raw id against the catalog.
func ParseTemplateID(raw string) (TemplateID, error) {
	id := TemplateID(strings.TrimSpace(raw))
	if _, ok := templates[id]; !ok {
		return "", fmt.Errorf("%w: %q", ErrUnknownTemplate, raw)
	}
	return id, nil
}

// Template returns the catalog entry for id.
func Template(id TemplateID) (TemplateConfig, bool) {
	t, ok := templates[id]
	return t, ok
}

// TemplateOrDefault resolves a possibly-empty stored template id, falling back to clean.
func TemplateOrDefault(raw string) TemplateConfig {
	if id, err := ParseTemplateID(raw); err == nil {
		return templates[id]
	}
	return templates[TemplateClean]
}

// Templates lists the whole catalog in display order.
func Templates() []TemplateConfig {
	out := make([]TemplateConfig, 0, len(templateOrder))
	for _, id := range templateOrder {
		out = append(out, templates[id])
	}
	return out
}
