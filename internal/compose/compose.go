// Package compose renders one marketing image from a raw screenshot, a
// template and localized caption text.
package compose

import (
	"bytes"
	"fmt"
	"image"

	"github.com/disintegration/imaging"

	"appshots/internal/catalog"
)

// DefaultWatermark is the badge text used when none is supplied.
const DefaultWatermark = "appshots"

// Input is everything that determines one composed image. Equal inputs
// produce byte-identical output.
type Input struct {
	Screenshot       []byte
	Index            int
	Total            int
	Headline         string
	Subtitle         string
	Template         catalog.TemplateConfig
	Device           catalog.DeviceSize
	IncludeWatermark bool
	WatermarkText    string
}

// Compositor renders images with a fixed font set. It holds no mutable
// state and is safe for concurrent use.
type Compositor struct {
	fonts *Fonts
}

// New returns a Compositor using fonts, or the builtin fonts when nil.
func New(fonts *Fonts) *Compositor {
	if fonts == nil {
		fonts = BuiltinFonts()
	}
	return &Compositor{fonts: fonts}
}

var defaultCompositor = New(nil)

// Compose renders in with the builtin fonts and returns PNG bytes.
func Compose(in Input) ([]byte, error) {
	return defaultCompositor.Compose(in)
}

// Compose renders in and returns PNG bytes of exactly Device.Width×Device.Height.
func (c *Compositor) Compose(in Input) ([]byte, error) {
	img, err := c.Render(in)
	if err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	if err := imaging.Encode(&buf, img, imaging.PNG); err != nil {
		return nil, fmt.Errorf("encode png: %w", err)
	}
	return buf.Bytes(), nil
}

// Render composes the image. If the cycled layout cannot place the
// screenshot, the template's default layout is tried once before failing.
func (c *Compositor) Render(in Input) (*image.RGBA, error) {
	w, h := in.Device.Width, in.Device.Height
	if w <= 0 || h <= 0 {
		return nil, fmt.Errorf("invalid canvas %dx%d", w, h)
	}
	in.Index = max(0, in.Index)
	in.Total = max(1, in.Total)

	shot, decodeErr := decodeScreenshot(in.Screenshot)

	variant := VariantFor(in.Template, in.Index)
	img, err := c.renderVariant(in, shot, decodeErr, variant)
	if err == nil {
		return img, nil
	}
	fallback := in.Template.DefaultLayout()
	img, ferr := c.renderVariant(in, shot, decodeErr, fallback)
	if ferr != nil {
		return nil, fmt.Errorf("render %s (fallback %s): %w", variant, fallback, ferr)
	}
	return img, nil
}

func (c *Compositor) renderVariant(in Input, shot image.Image, decodeErr error, v catalog.LayoutVariant) (*image.RGBA, error) {
	if decodeErr != nil {
		return nil, decodeErr
	}
	w, h := in.Device.Width, in.Device.Height
	p := planFor(v, in.Template, w, h, in.Index, in.Total)

	fitted, err := fitInside(shot, p.maxW, p.maxH)
	if err != nil {
		return nil, err
	}

	dst := image.NewRGBA(image.Rect(0, 0, w, h))
	drawBackground(dst, in.Template.Background)
	if in.Template.CompositionMode == catalog.ModeStorySlice {
		c.drawStoryOverlay(dst, in.Template, in.Index, in.Total)
	} else {
		c.drawFlowOverlay(dst, in.Template, in.Index, in.Total)
	}

	sb := fitted.Bounds()
	x, y := p.position(w, sb.Dx(), sb.Dy())
	drawRounded(dst, fitted, x, y, p.radius)

	if err := c.drawCaption(dst, in, p.caption); err != nil {
		return nil, fmt.Errorf("caption: %w", err)
	}
	if in.IncludeWatermark {
		if err := c.drawWatermark(dst, in.WatermarkText); err != nil {
			return nil, fmt.Errorf("watermark: %w", err)
		}
	}
	return dst, nil
}
