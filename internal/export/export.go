// Package export renders every screenshot × device × language combination
// of a project and streams the results into a ZIP archive.
package export

import (
	"archive/zip"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"math"
	"runtime"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"appshots/internal/catalog"
	"appshots/internal/compose"
	"appshots/internal/models"
)

// ErrInvalidInput is wrapped by every validation failure; nothing is
// rendered when it is returned.
var ErrInvalidInput = errors.New("invalid export input")

// RenderError reports the task whose rendering aborted the export.
type RenderError struct {
	DeviceID        catalog.DeviceID
	Language        string
	ScreenshotIndex int
	Err             error
}

func (e *RenderError) Error() string {
	return fmt.Sprintf("render %s/%s/#%d: %v", e.DeviceID, e.Language, e.ScreenshotIndex+1, e.Err)
}

func (e *RenderError) Unwrap() error { return e.Err }

// Renderer composes one image. *compose.Compositor satisfies it.
type Renderer interface {
	Compose(in compose.Input) ([]byte, error)
}

// Request describes one export run.
type Request struct {
	Screenshots      [][]byte
	Copy             models.Copy
	Template         catalog.TemplateID
	Devices          []catalog.DeviceID
	Languages        []string
	IncludeWatermark bool
	WatermarkText    string
	AppName          string
	// Workers caps the pool size; zero sizes it from the CPU count.
	Workers int
	// Renderer defaults to the builtin-font compositor.
	Renderer Renderer
}

// Progress is reported after every rendered image and while packaging.
// Task fields are set only for rendering updates.
type Progress struct {
	Stage           models.Stage
	CompletedItems  int
	TotalItems      int
	Progress        int
	DeviceID        catalog.DeviceID
	Language        string
	ScreenshotIndex int
}

// Result summarizes a finished archive.
type Result struct {
	FileCount int
	Entries   []string
}

type task struct {
	index    int
	shot     []byte
	language string
	device   catalog.DeviceSize
	headline string
	subtitle string
}

// Run renders req into an in-memory ZIP archive. On any error no archive
// is returned.
func Run(ctx context.Context, req Request, onProgress func(Progress)) ([]byte, error) {
	var buf bytes.Buffer
	if _, err := RunTo(ctx, &buf, req, onProgress); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// RunTo streams the archive into w. When an error is returned, whatever was
// written to w is incomplete and must be discarded.
func RunTo(ctx context.Context, w io.Writer, req Request, onProgress func(Progress)) (Result, error) {
	tpl, devices, languages, err := validate(req)
	if err != nil {
		return Result{}, err
	}
	if onProgress == nil {
		onProgress = func(Progress) {}
	}
	renderer := req.Renderer
	if renderer == nil {
		renderer = compose.New(nil)
	}
	tasks := expand(req, devices, languages)
	total := len(tasks)
	appName := entryAppName(req.AppName)
	modified := time.Now()

	zw := zip.NewWriter(w)
	var (
		mu        sync.Mutex
		completed int
		entries   = make([]string, 0, total)
		cursor    atomic.Int64
	)

	g, gctx := errgroup.WithContext(ctx)
	for i := 0; i < poolSize(total, req.Workers); i++ {
		g.Go(func() error {
			for {
				if err := gctx.Err(); err != nil {
					return err
				}
				n := int(cursor.Add(1) - 1)
				if n >= total {
					return nil
				}
				t := tasks[n]
				img, err := renderer.Compose(compose.Input{
					Screenshot:       t.shot,
					Index:            t.index,
					Total:            len(req.Screenshots),
					Headline:         t.headline,
					Subtitle:         t.subtitle,
					Template:         tpl,
					Device:           t.device,
					IncludeWatermark: req.IncludeWatermark,
					WatermarkText:    req.WatermarkText,
				})
				if err != nil {
					return &RenderError{DeviceID: t.device.ID, Language: t.language, ScreenshotIndex: t.index, Err: err}
				}

				name := EntryPath(appName, t.device.ID, t.language, t.index)
				mu.Lock()
				err = writeEntry(zw, name, img, modified)
				if err == nil {
					completed++
					entries = append(entries, name)
					onProgress(Progress{
						Stage:           models.StageRendering,
						CompletedItems:  completed,
						TotalItems:      total,
						Progress:        renderingProgress(completed, total),
						DeviceID:        t.device.ID,
						Language:        t.language,
						ScreenshotIndex: t.index,
					})
				}
				mu.Unlock()
				if err != nil {
					return fmt.Errorf("write %s: %w", name, err)
				}
			}
		})
	}
	if err := g.Wait(); err != nil {
		return Result{}, err
	}

	onProgress(Progress{Stage: models.StagePackaging, CompletedItems: completed, TotalItems: total, Progress: 96})
	if err := zw.Close(); err != nil {
		return Result{}, fmt.Errorf("finalize archive: %w", err)
	}
	onProgress(Progress{Stage: models.StagePackaging, CompletedItems: completed, TotalItems: total, Progress: 99})

	return Result{FileCount: completed, Entries: entries}, nil
}

func validate(req Request) (catalog.TemplateConfig, []catalog.DeviceSize, []string, error) {
	if len(req.Screenshots) == 0 {
		return catalog.TemplateConfig{}, nil, nil, fmt.Errorf("%w: no screenshots", ErrInvalidInput)
	}
	tpl, ok := catalog.Template(req.Template)
	if !ok {
		return catalog.TemplateConfig{}, nil, nil, fmt.Errorf("%w: unknown template %q", ErrInvalidInput, req.Template)
	}
	if len(req.Devices) == 0 {
		return catalog.TemplateConfig{}, nil, nil, fmt.Errorf("%w: no device sizes", ErrInvalidInput)
	}
	devices := make([]catalog.DeviceSize, 0, len(req.Devices))
	seenDevice := make(map[catalog.DeviceID]bool, len(req.Devices))
	for _, id := range req.Devices {
		d, ok := catalog.Device(id)
		if !ok {
			return catalog.TemplateConfig{}, nil, nil, fmt.Errorf("%w: unknown device size %q", ErrInvalidInput, id)
		}
		if !seenDevice[id] {
			seenDevice[id] = true
			devices = append(devices, d)
		}
	}
	languages := make([]string, 0, len(req.Languages))
	seenLang := make(map[string]bool, len(req.Languages))
	for _, raw := range req.Languages {
		code := catalog.NormalizeLanguage(raw)
		if code == "" || seenLang[code] {
			continue
		}
		seenLang[code] = true
		languages = append(languages, code)
	}
	if len(languages) == 0 {
		return catalog.TemplateConfig{}, nil, nil, fmt.Errorf("%w: no languages", ErrInvalidInput)
	}
	return tpl, devices, languages, nil
}

// expand builds tasks in device, language, screenshot order.
func expand(req Request, devices []catalog.DeviceSize, languages []string) []task {
	tasks := make([]task, 0, len(devices)*len(languages)*len(req.Screenshots))
	for _, d := range devices {
		for _, lang := range languages {
			for i, shot := range req.Screenshots {
				tasks = append(tasks, task{
					index:    i,
					shot:     shot,
					language: lang,
					device:   d,
					headline: Localize(req.Copy.Headlines, i, lang),
					subtitle: Localize(req.Copy.Subtitles, i, lang),
				})
			}
		}
	}
	return tasks
}

// Localize finds the variant for screenshot index (by ScreenshotIndex, else
// by position) and resolves language through the fallback chain: exact code,
// primary subtag, zh, en. Blank values are skipped.
func Localize(variants []models.CopyVariant, index int, language string) string {
	v, ok := findVariant(variants, index)
	if !ok {
		return ""
	}
	code := catalog.NormalizeLanguage(language)
	for _, key := range []string{code, catalog.PrimarySubtag(code), "zh", "en"} {
		if key == "" {
			continue
		}
		if s := v.Text[key]; strings.TrimSpace(s) != "" {
			return s
		}
	}
	return ""
}

func findVariant(variants []models.CopyVariant, index int) (models.CopyVariant, bool) {
	for _, v := range variants {
		if v.ScreenshotIndex == index {
			return v, true
		}
	}
	if index >= 0 && index < len(variants) {
		return variants[index], true
	}
	return models.CopyVariant{}, false
}

// EntryPath is the archive path of one image, e.g.
// "6.7inch/en/MyApp_6.7in_en_1.png".
func EntryPath(appName string, device catalog.DeviceID, language string, index int) string {
	return fmt.Sprintf("%sinch/%s/%s_%sin_%s_%d.png", device, language, appName, device, language, index+1)
}

func entryAppName(name string) string {
	name = strings.TrimSpace(name)
	name = strings.NewReplacer("/", "_", "\\", "_").Replace(name)
	if name == "" {
		return "app"
	}
	return name
}

func writeEntry(zw *zip.Writer, name string, data []byte, modified time.Time) error {
	f, err := zw.CreateHeader(&zip.FileHeader{Name: name, Method: zip.Deflate, Modified: modified})
	if err != nil {
		return err
	}
	_, err = f.Write(data)
	return err
}

func renderingProgress(done, total int) int {
	if total <= 0 {
		return 90
	}
	return min(95, int(math.Round(float64(done)/float64(total)*90)))
}

func poolSize(tasks, limit int) int {
	n := min(8, max(2, runtime.NumCPU()))
	if limit > 0 {
		n = limit
	}
	return max(1, min(tasks, n))
}
