package export

import (
	"archive/zip"
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"sort"
	"sync"
	"testing"

	"appshots/internal/catalog"
	"appshots/internal/compose"
	"appshots/internal/models"
)

func pngBytes(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.RGBA{R: 40, G: uint8(x), B: uint8(y), A: 255})
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("encode png: %v", err)
	}
	return buf.Bytes()
}

// stubRenderer returns a tiny payload naming the input, or fails for one screenshot.
type stubRenderer struct {
	mu     sync.Mutex
	failAt int
	seen   []compose.Input
}

func (s *stubRenderer) Compose(in compose.Input) ([]byte, error) {
	s.mu.Lock()
	s.seen = append(s.seen, in)
	s.mu.Unlock()
	if s.failAt >= 0 && in.Index == s.failAt {
		return nil, errors.New("decode screenshot: bad data")
	}
	return []byte(fmt.Sprintf("%s|%s|%s", in.Device.ID, in.Headline, in.Subtitle)), nil
}

func variant(index int, text map[string]string) models.CopyVariant {
	return models.CopyVariant{ScreenshotIndex: index, Text: text}
}

func sampleCopy() models.Copy {
	return models.Copy{
		Headlines: []models.CopyVariant{
			variant(0, map[string]string{"en": "Plan", "zh": "计划"}),
			variant(1, map[string]string{"en": "Track", "zh": "追踪"}),
			variant(2, map[string]string{"en": "Share", "zh": "分享"}),
		},
		Subtitles: []models.CopyVariant{
			variant(0, map[string]string{"en": "Your week"}),
		},
	}
}

func zipNames(t *testing.T, data []byte) []string {
	t.Helper()
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		t.Fatalf("open zip: %v", err)
	}
	names := make([]string, 0, len(zr.File))
	for _, f := range zr.File {
		names = append(names, f.Name)
	}
	sort.Strings(names)
	return names
}

func TestRunProducesEveryCombination(t *testing.T) {
	shot := pngBytes(t, 30, 60)
	req := Request{
		Screenshots:      [][]byte{shot, shot, shot},
		Copy:             sampleCopy(),
		Template:         catalog.TemplateClean,
		Devices:          []catalog.DeviceID{catalog.Device67, catalog.DeviceAndroidPhone},
		Languages:        []string{"en", "zh"},
		IncludeWatermark: true,
		AppName:          "MyApp",
	}
	data, err := Run(context.Background(), req, nil)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	names := zipNames(t, data)
	if len(names) != 12 {
		t.Fatalf("entries = %d, want 12: %v", len(names), names)
	}
	want := map[string]bool{
		"6.7inch/en/MyApp_6.7in_en_1.png":                     false,
		"6.7inch/zh/MyApp_6.7in_zh_3.png":                     false,
		"android-phoneinch/en/MyApp_android-phonein_en_2.png": false,
	}
	for _, n := range names {
		if _, ok := want[n]; ok {
			want[n] = true
		}
	}
	for n, found := range want {
		if !found {
			t.Fatalf("missing entry %s in %v", n, names)
		}
	}

	zr, _ := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	f, err := zr.Open("6.7inch/en/MyApp_6.7in_en_1.png")
	if err != nil {
		t.Fatalf("open entry: %v", err)
	}
	defer f.Close()
	cfg, err := png.DecodeConfig(f)
	if err != nil {
		t.Fatalf("decode entry: %v", err)
	}
	if cfg.Width != 1290 || cfg.Height != 2796 {
		t.Fatalf("entry size = %dx%d, want 1290x2796", cfg.Width, cfg.Height)
	}
}

func TestRunReportsMonotonicProgress(t *testing.T) {
	r := &stubRenderer{failAt: -1}
	req := Request{
		Screenshots: [][]byte{{1}, {2}, {3}, {4}},
		Copy:        sampleCopy(),
		Template:    catalog.TemplateAurora,
		Devices:     []catalog.DeviceID{catalog.Device67, catalog.Device61, catalog.Device55},
		Languages:   []string{"en", "pt-BR"},
		AppName:     "A",
		Workers:     4,
		Renderer:    r,
	}
	var got []Progress
	res, err := RunTo(context.Background(), &bytes.Buffer{}, req, func(p Progress) { got = append(got, p) })
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if res.FileCount != 24 || len(res.Entries) != 24 {
		t.Fatalf("result = %d files, %d entries, want 24", res.FileCount, len(res.Entries))
	}
	if len(got) != 26 {
		t.Fatalf("progress events = %d, want 26", len(got))
	}
	for i := 1; i < len(got); i++ {
		if got[i].Progress < got[i-1].Progress {
			t.Fatalf("progress regressed at %d: %d -> %d", i, got[i-1].Progress, got[i].Progress)
		}
		if got[i].CompletedItems < got[i-1].CompletedItems {
			t.Fatalf("completed regressed at %d", i)
		}
	}
	if last := got[23]; last.Stage != models.StageRendering || last.Progress != 90 || last.CompletedItems != 24 {
		t.Fatalf("last rendering event = %+v", last)
	}
	if got[24].Stage != models.StagePackaging || got[24].Progress != 96 || got[25].Progress != 99 {
		t.Fatalf("packaging events = %+v, %+v", got[24], got[25])
	}
}

func TestRunAbortsOnRenderError(t *testing.T) {
	r := &stubRenderer{failAt: 1}
	req := Request{
		Screenshots: [][]byte{{1}, {2}, {3}},
		Template:    catalog.TemplateClean,
		Devices:     []catalog.DeviceID{catalog.Device67},
		Languages:   []string{"en"},
		Renderer:    r,
	}
	data, err := Run(context.Background(), req, nil)
	if data != nil {
		t.Fatalf("expected no archive on failure")
	}
	var re *RenderError
	if !errors.As(err, &re) {
		t.Fatalf("err = %v, want RenderError", err)
	}
	if re.ScreenshotIndex != 1 || re.DeviceID != catalog.Device67 || re.Language != "en" {
		t.Fatalf("unexpected render error coordinates: %+v", re)
	}
}

func TestRunRejectsMalformedScreenshot(t *testing.T) {
	req := Request{
		Screenshots: [][]byte{[]byte("garbage")},
		Template:    catalog.TemplateClean,
		Devices:     []catalog.DeviceID{catalog.DeviceAndroidPhone},
		Languages:   []string{"en"},
	}
	_, err := Run(context.Background(), req, nil)
	var re *RenderError
	if !errors.As(err, &re) {
		t.Fatalf("err = %v, want RenderError", err)
	}
}

func TestRunValidatesInput(t *testing.T) {
	base := Request{
		Screenshots: [][]byte{{1}},
		Template:    catalog.TemplateClean,
		Devices:     []catalog.DeviceID{catalog.Device67},
		Languages:   []string{"en"},
		Renderer:    &stubRenderer{failAt: -1},
	}
	cases := map[string]func(*Request){
		"no screenshots":   func(r *Request) { r.Screenshots = nil },
		"unknown template": func(r *Request) { r.Template = "glitter" },
		"no devices":       func(r *Request) { r.Devices = nil },
		"unknown device":   func(r *Request) { r.Devices = []catalog.DeviceID{"7.9"} },
		"blank languages":  func(r *Request) { r.Languages = []string{" ", ""} },
	}
	for name, mutate := range cases {
		req := base
		mutate(&req)
		if _, err := Run(context.Background(), req, nil); !errors.Is(err, ErrInvalidInput) {
			t.Fatalf("%s: err = %v, want ErrInvalidInput", name, err)
		}
	}
	if n := len(base.Renderer.(*stubRenderer).seen); n != 0 {
		t.Fatalf("renderer called %d times for invalid input", n)
	}
}

func TestLocalizeFallbackChain(t *testing.T) {
	both := []models.CopyVariant{variant(0, map[string]string{"zh": "你好", "en": "Hello"})}
	if got := Localize(both, 0, "fr"); got != "你好" {
		t.Fatalf("fr with zh+en = %q, want zh", got)
	}
	enOnly := []models.CopyVariant{variant(0, map[string]string{"en": "Hello", "zh": "  "})}
	if got := Localize(enOnly, 0, "fr"); got != "Hello" {
		t.Fatalf("fr with en only = %q, want en", got)
	}
	none := []models.CopyVariant{variant(0, map[string]string{"de": "Hallo"})}
	if got := Localize(none, 0, "fr"); got != "" {
		t.Fatalf("fr with neither = %q, want empty", got)
	}
	regional := []models.CopyVariant{variant(0, map[string]string{"pt": "Olá", "en": "Hello"})}
	if got := Localize(regional, 0, "pt-BR"); got != "Olá" {
		t.Fatalf("pt-BR = %q, want primary subtag", got)
	}
}

func TestLocalizeFindsVariantByIndexThenPosition(t *testing.T) {
	variants := []models.CopyVariant{
		variant(2, map[string]string{"en": "third"}),
		variant(-1, map[string]string{"en": "second"}),
	}
	if got := Localize(variants, 2, "en"); got != "third" {
		t.Fatalf("by index = %q", got)
	}
	if got := Localize(variants, 1, "en"); got != "second" {
		t.Fatalf("by position = %q", got)
	}
	if got := Localize(variants, 5, "en"); got != "" {
		t.Fatalf("missing = %q", got)
	}
}

func TestExpandOrder(t *testing.T) {
	req := Request{Screenshots: [][]byte{{1}, {2}}}
	d67, _ := catalog.Device(catalog.Device67)
	d61, _ := catalog.Device(catalog.Device61)
	tasks := expand(req, []catalog.DeviceSize{d67, d61}, []string{"en", "zh"})
	if len(tasks) != 8 {
		t.Fatalf("tasks = %d, want 8", len(tasks))
	}
	first, last := tasks[0], tasks[7]
	if first.device.ID != catalog.Device67 || first.language != "en" || first.index != 0 {
		t.Fatalf("first task = %+v", first)
	}
	if last.device.ID != catalog.Device61 || last.language != "zh" || last.index != 1 {
		t.Fatalf("last task = %+v", last)
	}
	if tasks[1].index != 1 || tasks[2].language != "zh" {
		t.Fatalf("unexpected order: %+v %+v", tasks[1], tasks[2])
	}
}

func TestPoolSize(t *testing.T) {
	if got := poolSize(1, 0); got != 1 {
		t.Fatalf("poolSize(1) = %d, want 1", got)
	}
	if got := poolSize(100, 0); got < 2 || got > 8 {
		t.Fatalf("poolSize(100) = %d, want 2..8", got)
	}
	if got := poolSize(100, 3); got != 3 {
		t.Fatalf("poolSize(100, 3) = %d, want 3", got)
	}
}
