package compose

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
	"strings"
	"testing"

	"appshots/internal/catalog"
)

func testScreenshot(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.RGBA{R: uint8(x * 255 / w), G: uint8(y * 255 / h), B: 200, A: 255})
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("encode png: %v", err)
	}
	return buf.Bytes()
}

func mustTemplate(t *testing.T, id catalog.TemplateID) catalog.TemplateConfig {
	t.Helper()
	tpl, ok := catalog.Template(id)
	if !ok {
		t.Fatalf("template %q missing", id)
	}
	return tpl
}

func TestRenderMatchesDeviceSize(t *testing.T) {
	shot := testScreenshot(t, 90, 195)
	templates := catalog.Templates()
	for di, dev := range catalog.Devices() {
		for ti, tpl := range templates {
			if testing.Short() && ti%len(catalog.Devices()) != di {
				continue
			}
			img, err := New(nil).Render(Input{
				Screenshot:       shot,
				Index:            ti,
				Total:            5,
				Headline:         "Plan your week",
				Subtitle:         "Everything in one place",
				Template:         tpl,
				Device:           dev,
				IncludeWatermark: true,
			})
			if err != nil {
				t.Fatalf("render %s/%s: %v", tpl.ID, dev.ID, err)
			}
			if b := img.Bounds(); b.Dx() != dev.Width || b.Dy() != dev.Height {
				t.Fatalf("render %s/%s = %dx%d, want %dx%d", tpl.ID, dev.ID, b.Dx(), b.Dy(), dev.Width, dev.Height)
			}
		}
	}
}

func TestComposeIsDeterministic(t *testing.T) {
	dev, _ := catalog.Device(catalog.DeviceAndroidPhone)
	in := Input{
		Screenshot:       testScreenshot(t, 60, 120),
		Index:            1,
		Total:            3,
		Headline:         "Focus mode",
		Subtitle:         "专注每一刻",
		Template:         mustTemplate(t, catalog.TemplateAurora),
		Device:           dev,
		IncludeWatermark: true,
		WatermarkText:    "demo",
	}
	a, err := Compose(in)
	if err != nil {
		t.Fatalf("compose: %v", err)
	}
	b, err := Compose(in)
	if err != nil {
		t.Fatalf("compose: %v", err)
	}
	if !bytes.Equal(a, b) {
		t.Fatalf("identical inputs produced different output")
	}
	cfg, err := png.DecodeConfig(bytes.NewReader(a))
	if err != nil {
		t.Fatalf("decode output: %v", err)
	}
	if cfg.Width != dev.Width || cfg.Height != dev.Height {
		t.Fatalf("png = %dx%d, want %dx%d", cfg.Width, cfg.Height, dev.Width, dev.Height)
	}
}

func TestVariantForCyclesClean(t *testing.T) {
	tpl := mustTemplate(t, catalog.TemplateClean)
	want := []catalog.LayoutVariant{
		catalog.LayoutHeroTop, catalog.LayoutEdgeFlow, catalog.LayoutHeroBottom,
		catalog.LayoutHeroTop, catalog.LayoutEdgeFlow,
	}
	for i, w := range want {
		if got := VariantFor(tpl, i); got != w {
			t.Fatalf("VariantFor(clean, %d) = %s, want %s", i, got, w)
		}
	}
}

func TestDriftAndStoryPhase(t *testing.T) {
	if got := Drift(1000, 0, 1); got != 0 {
		t.Fatalf("single screenshot drift = %d, want 0", got)
	}
	for i, want := range []int{170, 0, -170, 170} {
		if got := Drift(1000, i, 4); got != want {
			t.Fatalf("Drift(1000, %d, 4) = %d, want %d", i, got, want)
		}
	}
	if got := StoryPhase(4, 1); got != 1 {
		t.Fatalf("StoryPhase with one screenshot = %d, want 1", got)
	}
	if got := StoryPhase(3, 2); got != 1 {
		t.Fatalf("StoryPhase(3, 2) = %d, want 1", got)
	}
	if got := StoryPhase(5, 6); got != 2 {
		t.Fatalf("StoryPhase(5, 6) = %d, want 2", got)
	}
}

func TestWrapTextTruncatesLatin(t *testing.T) {
	headline := "Track habits and build streaks every day"
	if len(headline) != 40 {
		t.Fatalf("fixture length = %d, want 40", len(headline))
	}
	lines := WrapText(headline, 18, 2)
	if len(lines) != 2 {
		t.Fatalf("lines = %q, want 2 lines", lines)
	}
	if !strings.HasSuffix(lines[1], "...") {
		t.Fatalf("last line %q does not end with ellipsis", lines[1])
	}
	for _, l := range lines {
		if n := len([]rune(strings.TrimSuffix(l, "..."))); n > 18 {
			t.Fatalf("line %q has %d chars, want <= 18", l, n)
		}
	}
}

func TestWrapTextCJKAndShort(t *testing.T) {
	lines := WrapText("一二三四五六七八九十", 4, 2)
	if len(lines) != 2 || lines[0] != "一二三四" || lines[1] != "五六七..." {
		t.Fatalf("cjk wrap = %q", lines)
	}
	if got := WrapText("  short   text ", 18, 2); len(got) != 1 || got[0] != "short text" {
		t.Fatalf("short wrap = %q", got)
	}
	if got := WrapText("   ", 18, 2); got != nil {
		t.Fatalf("blank wrap = %q, want nil", got)
	}
	if got := WrapText("supercalifragilistic", 8, 3); len(got) != 3 || got[0] != "supercal" {
		t.Fatalf("long word wrap = %q", got)
	}
}

func TestMaxCharsAndScript(t *testing.T) {
	if !IsCJK("Hello 世界") || !IsCJK("カタカナ") || !IsCJK("한국어") {
		t.Fatalf("expected CJK detection")
	}
	if IsCJK("Olá mundo") {
		t.Fatalf("latin text detected as CJK")
	}
	// (1290 - 2*103) / (75 * 0.56) = 25.8
	if got := MaxChars(1290, 103, 75, false); got != 25 {
		t.Fatalf("MaxChars latin = %d, want 25", got)
	}
	if got := MaxChars(1290, 103, 75, true); got != 14 {
		t.Fatalf("MaxChars cjk = %d, want 14", got)
	}
	if got := MaxChars(100, 60, 200, false); got != 6 {
		t.Fatalf("MaxChars floor = %d, want 6", got)
	}
}

func TestRenderRejectsMalformedScreenshot(t *testing.T) {
	dev, _ := catalog.Device(catalog.Device55)
	_, err := Compose(Input{
		Screenshot: []byte("not an image"),
		Template:   mustTemplate(t, catalog.TemplateClean),
		Device:     dev,
	})
	if err == nil {
		t.Fatalf("expected error for malformed screenshot")
	}
}

func TestRenderFallsBackToDefaultLayout(t *testing.T) {
	dev, _ := catalog.Device(catalog.Device55)
	tpl := mustTemplate(t, catalog.TemplateSunsetGlow)
	if got := VariantFor(tpl, 2); got != catalog.LayoutHeroTop {
		t.Fatalf("VariantFor(sunset-glow, 2) = %s, want hero-top", got)
	}
	// A 1x1000 strip collapses to one pixel wide in the hero-top box but
	// still fits the taller hero-bottom box.
	shot := testScreenshot(t, 1, 1000)
	p := planFor(catalog.LayoutHeroTop, tpl, dev.Width, dev.Height, 2, 3)
	img, _ := decodeScreenshot(shot)
	if _, err := fitInside(img, p.maxW, p.maxH); err == nil {
		t.Fatalf("expected hero-top placement to fail")
	}

	out, err := New(nil).Render(Input{Screenshot: shot, Index: 2, Total: 3, Template: tpl, Device: dev})
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	if out.Bounds().Dx() != dev.Width || out.Bounds().Dy() != dev.Height {
		t.Fatalf("size = %v, want %dx%d", out.Bounds(), dev.Width, dev.Height)
	}
}

func TestRenderRejectsDegenerateAspect(t *testing.T) {
	dev, _ := catalog.Device(catalog.Device55)
	_, err := New(nil).Render(Input{
		Screenshot: testScreenshot(t, 4000, 1),
		Template:   mustTemplate(t, catalog.TemplateClean),
		Device:     dev,
	})
	if err == nil {
		t.Fatalf("expected error for a 4000x1 screenshot")
	}
}

func TestParseColor(t *testing.T) {
	c, ok := parseColor("#fff")
	if !ok || c != (color.NRGBA{R: 255, G: 255, B: 255, A: 255}) {
		t.Fatalf("parseColor(#fff) = %v, %v", c, ok)
	}
	c, ok = parseColor("rgba(15, 23, 42, 0.5)")
	if !ok || c.R != 15 || c.B != 42 || c.A != 128 {
		t.Fatalf("parseColor(rgba) = %v, %v", c, ok)
	}
	if _, ok := parseColor("teal"); ok {
		t.Fatalf("named colors are not supported")
	}
	if got := panelFill("#FFFFFF"); got.R != 15 {
		t.Fatalf("panel for light text = %v, want dark", got)
	}
	if got := panelFill("#111827"); got.R != 248 {
		t.Fatalf("panel for dark text = %v, want light", got)
	}
}
