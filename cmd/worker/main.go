// Command worker is the offline exporter: it renders screenshots from disk
// into a ZIP archive or a folder tree without the HTTP service.
package main

import (
	"archive/zip"
	"bytes"
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"appshots/internal/catalog"
	"appshots/internal/compose"
	"appshots/internal/config"
	"appshots/internal/export"
	"appshots/internal/logx"
	"appshots/internal/models"
	"appshots/internal/storage"
)

type options struct {
	images        string
	imagesDir     string
	copyPath      string
	template      string
	languages     string
	sizes         string
	outDir        string
	appName       string
	watermark     bool
	watermarkText string
	zip           bool
	workers       int
	fontDir       string
}

func main() {
	cfg := config.Load()
	log := logx.Setup(logx.FromConfig("worker", cfg))

	var o options
	flag.StringVar(&o.images, "images", "", "Comma-separated screenshot file paths")
	flag.StringVar(&o.imagesDir, "images-dir", "", "Directory containing screenshots (png/jpg/jpeg/webp)")
	flag.StringVar(&o.copyPath, "copy", "", "Copy JSON (generatedCopy shape or items shape)")
	flag.StringVar(&o.template, "template", string(catalog.TemplateClean), "Template id")
	flag.StringVar(&o.languages, "languages", strings.Join(cfg.DefaultLanguages, ","), "Comma-separated language codes")
	flag.StringVar(&o.sizes, "sizes", string(catalog.Device67), "Comma-separated device size ids")
	flag.StringVar(&o.outDir, "out", "", "Output directory (required)")
	flag.StringVar(&o.appName, "app-name", "appshots", "Output filename prefix")
	flag.BoolVar(&o.watermark, "watermark", true, "Draw the watermark badge")
	flag.StringVar(&o.watermarkText, "watermark-text", cfg.DefaultWatermarkText, "Watermark text")
	flag.BoolVar(&o.zip, "zip", false, "Write a single ZIP archive instead of a folder tree")
	flag.IntVar(&o.workers, "workers", cfg.RenderMaxWorkers, "Parallel renders (0 = by CPU count)")
	flag.StringVar(&o.fontDir, "font-dir", cfg.FontDir, "Directory with TTF/OTF fonts overriding the builtin faces")
	flag.Usage = usage
	flag.Parse()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, o, log); err != nil {
		log.Error().Err(err).Msg("export failed")
		os.Exit(1)
	}
}

func usage() {
	out := flag.CommandLine.Output()
	fmt.Fprintf(out, "Usage: worker -images a.png,b.png -copy copy.json -out ./output [flags]\n\n")
	flag.PrintDefaults()
	ids := make([]string, 0)
	for _, d := range catalog.Devices() {
		ids = append(ids, string(d.ID))
	}
	fmt.Fprintf(out, "\nSize ids: %s\n", strings.Join(ids, ", "))
	ids = ids[:0]
	for _, t := range catalog.Templates() {
		ids = append(ids, string(t.ID))
	}
	fmt.Fprintf(out, "Template ids: %s\n", strings.Join(ids, ", "))
}

func run(ctx context.Context, o options, log zerolog.Logger) error {
	if o.outDir == "" {
		return fmt.Errorf("-out is required")
	}
	tpl, err := catalog.ParseTemplateID(o.template)
	if err != nil {
		return err
	}
	sizes := catalog.ResolveDevices(splitCSV(o.sizes))
	if len(sizes) == 0 {
		return fmt.Errorf("no valid size ids in %q", o.sizes)
	}
	devices := make([]catalog.DeviceID, 0, len(sizes))
	for _, d := range sizes {
		devices = append(devices, d.ID)
	}
	languages := catalog.DedupeLanguages(splitCSV(o.languages))

	paths, err := collectImages(splitCSV(o.images), o.imagesDir)
	if err != nil {
		return err
	}
	shots := make([][]byte, 0, len(paths))
	for _, p := range paths {
		data, err := os.ReadFile(p)
		if err != nil {
			return fmt.Errorf("read screenshot: %w", err)
		}
		shots = append(shots, data)
	}
	texts, err := readCopy(o.copyPath, len(shots))
	if err != nil {
		return err
	}

	fonts, err := compose.LoadFonts(o.fontDir)
	if err != nil {
		return err
	}
	if missing := fonts.MissingCJK(); len(missing) > 0 {
		log.Warn().Strs("families", missing).Msg("no CJK font installed; zh/ja/ko captions will not render, pass -font-dir")
	}

	log.Info().
		Int("screenshots", len(shots)).
		Strs("languages", languages).
		Int("sizes", len(devices)).
		Str("template", string(tpl)).
		Msg("export started")

	start := time.Now()
	var buf bytes.Buffer
	res, err := export.RunTo(ctx, &buf, export.Request{
		Screenshots:      shots,
		Copy:             texts,
		Template:         tpl,
		Devices:          devices,
		Languages:        languages,
		IncludeWatermark: o.watermark,
		WatermarkText:    o.watermarkText,
		AppName:          o.appName,
		Workers:          o.workers,
		Renderer:         compose.New(fonts),
	}, func(p export.Progress) {
		if p.Stage == models.StageRendering {
			log.Debug().Int("done", p.CompletedItems).Int("total", p.TotalItems).Str("device", string(p.DeviceID)).Str("lang", p.Language).Msg("rendered")
		}
	})
	if err != nil {
		return err
	}

	if o.zip {
		name := storage.ExportFilename(o.appName, strconv.FormatInt(time.Now().UnixMilli(), 10))
		obj, err := storage.NewLocal(o.outDir).Put(ctx, name, buf.Bytes(), storage.ZipContentType)
		if err != nil {
			return err
		}
		log.Info().Str("file", filepath.Join(o.outDir, obj.Key)).Int("images", res.FileCount).Dur("took", time.Since(start)).Msg("export written")
		return nil
	}
	if err := extract(buf.Bytes(), o.outDir); err != nil {
		return err
	}
	log.Info().Str("dir", o.outDir).Int("images", res.FileCount).Dur("took", time.Since(start)).Msg("export written")
	return nil
}

func splitCSV(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}

var imageExt = regexp.MustCompile(`(?i)\.(png|jpe?g|webp)$`)

// collectImages keeps explicit files that exist, then appends the sorted
// images of dir. Duplicates are dropped.
func collectImages(files []string, dir string) ([]string, error) {
	var out []string
	seen := make(map[string]bool)
	add := func(p string) {
		abs, err := filepath.Abs(p)
		if err != nil || seen[abs] {
			return
		}
		seen[abs] = true
		out = append(out, abs)
	}
	for _, f := range files {
		if info, err := os.Stat(f); err == nil && info.Mode().IsRegular() {
			add(f)
		}
	}
	if dir != "" {
		entries, err := os.ReadDir(dir)
		if err != nil {
			return nil, fmt.Errorf("images-dir: %w", err)
		}
		var names []string
		for _, e := range entries {
			if !e.IsDir() && imageExt.MatchString(e.Name()) {
				names = append(names, e.Name())
			}
		}
		sort.Strings(names)
		for _, n := range names {
			add(filepath.Join(dir, n))
		}
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("no images found, pass -images or -images-dir")
	}
	return out, nil
}

// extract writes every archive entry under dir, keeping the archive layout.
func extract(data []byte, dir string) error {
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return fmt.Errorf("open archive: %w", err)
	}
	for _, f := range zr.File {
		if !filepath.IsLocal(f.Name) {
			return fmt.Errorf("archive entry %q escapes output dir", f.Name)
		}
		target := filepath.Join(dir, filepath.FromSlash(f.Name))
		if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
			return err
		}
		rc, err := f.Open()
		if err != nil {
			return err
		}
		var b bytes.Buffer
		_, err = b.ReadFrom(rc)
		rc.Close()
		if err != nil {
			return fmt.Errorf("read %s: %w", f.Name, err)
		}
		if err := os.WriteFile(target, b.Bytes(), 0o644); err != nil {
			return err
		}
	}
	return nil
}
