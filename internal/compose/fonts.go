package compose

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"golang.org/x/image/font"
	"golang.org/x/image/font/gofont/gobold"
	"golang.org/x/image/font/gofont/goregular"
	"golang.org/x/image/font/opentype"
	"golang.org/x/image/font/sfnt"

	"appshots/internal/catalog"
)

// Fonts resolves template font families to parsed fonts. Parsed fonts are
// immutable and shared; faces are created per render because they are not
// safe for concurrent use.
type Fonts struct {
	regular *opentype.Font
	bold    *opentype.Font
	byName  map[string]*opentype.Font
}

var (
	builtinOnce  sync.Once
	builtinFonts *Fonts
)

// BuiltinFonts returns the Go font family, used for any family that is not
// installed.
func BuiltinFonts() *Fonts {
	builtinOnce.Do(func() {
		regular, err := opentype.Parse(goregular.TTF)
		if err != nil {
			panic(fmt.Sprintf("parse goregular: %v", err))
		}
		bold, err := opentype.Parse(gobold.TTF)
		if err != nil {
			panic(fmt.Sprintf("parse gobold: %v", err))
		}
		builtinFonts = &Fonts{regular: regular, bold: bold, byName: map[string]*opentype.Font{}}
	})
	return builtinFonts
}

// LoadFonts parses every .ttf/.otf file in dir. A file is addressed by its
// normalized base name, so "NotoSansSC-Bold.otf" serves family "Noto Sans SC"
// in bold. An empty dir yields the builtin fonts.
func LoadFonts(dir string) (*Fonts, error) {
	base := BuiltinFonts()
	if dir == "" {
		return base, nil
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read font dir: %w", err)
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		ext := strings.ToLower(filepath.Ext(e.Name()))
		if e.IsDir() || (ext != ".ttf" && ext != ".otf") {
			continue
		}
		names = append(names, e.Name())
	}
	sort.Strings(names)

	out := &Fonts{regular: base.regular, bold: base.bold, byName: make(map[string]*opentype.Font, len(names))}
	for _, name := range names {
		data, err := os.ReadFile(filepath.Join(dir, name))
		if err != nil {
			return nil, fmt.Errorf("read font %s: %w", name, err)
		}
		f, err := opentype.Parse(data)
		if err != nil {
			return nil, fmt.Errorf("parse font %s: %w", name, err)
		}
		out.byName[fontKey(strings.TrimSuffix(name, filepath.Ext(name)))] = f
	}
	return out, nil
}

func fontKey(name string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(name) {
		if r == ' ' || r == '-' || r == '_' {
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

func (f *Fonts) resolve(family string, bold bool) *opentype.Font {
	key := fontKey(family)
	if bold {
		if ft, ok := f.byName[key+"bold"]; ok {
			return ft
		}
	}
	if ft, ok := f.byName[key]; ok {
		return ft
	}
	if ft, ok := f.byName[key+"regular"]; ok {
		return ft
	}
	if bold {
		return f.bold
	}
	return f.regular
}

// MissingCJK lists the template CJK families whose resolved font has no Han
// glyph. Captions in those families render as boxes.
func (f *Fonts) MissingCJK() []string {
	var buf sfnt.Buffer
	seen := map[string]bool{}
	var missing []string
	for _, tpl := range catalog.Templates() {
		family := tpl.FontFamilyZh
		if family == "" || seen[family] {
			continue
		}
		seen[family] = true
		if idx, err := f.resolve(family, false).GlyphIndex(&buf, '中'); err != nil || idx == 0 {
			missing = append(missing, family)
		}
	}
	sort.Strings(missing)
	return missing
}

// face opens a pixel-sized face; the caller closes it.
func (f *Fonts) face(family string, bold bool, px float64) (font.Face, error) {
	return opentype.NewFace(f.resolve(family, bold), &opentype.FaceOptions{
		Size:    px,
		DPI:     72,
		Hinting: font.HintingNone,
	})
}
