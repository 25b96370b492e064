package main

import (
	"encoding/json"
	"fmt"
	"os"

	"appshots/internal/catalog"
	"appshots/internal/models"
)

// readCopy loads a copy file and lines it up with the screenshots. A missing
// path yields empty copy.
func readCopy(path string, count int) (models.Copy, error) {
	if path == "" {
		return normalizeCopy(nil, count)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return models.Copy{}, fmt.Errorf("read copy: %w", err)
	}
	return normalizeCopy(data, count)
}

// normalizeCopy accepts either the generatedCopy shape
// ({"headlines": [...], "subtitles": [...], "tagline": {...}}) or the items
// shape ({"items": [{"headline": "...", "subtitle": {"en": "..."}}]}). A plain
// string in the items shape is Chinese copy.
func normalizeCopy(data []byte, count int) (models.Copy, error) {
	var raw struct {
		Headlines []json.RawMessage `json:"headlines"`
		Subtitles []json.RawMessage `json:"subtitles"`
		Tagline   map[string]string `json:"tagline"`
		Items     []struct {
			Headline json.RawMessage `json:"headline"`
			Subtitle json.RawMessage `json:"subtitle"`
		} `json:"items"`
	}
	if len(data) > 0 {
		if err := json.Unmarshal(data, &raw); err != nil {
			return models.Copy{}, fmt.Errorf("decode copy: %w", err)
		}
	}

	out := models.Copy{Tagline: raw.Tagline}
	switch {
	case raw.Headlines != nil || raw.Subtitles != nil:
		out.Headlines = alignVariants(byPosition(raw.Headlines), count)
		out.Subtitles = alignVariants(byPosition(raw.Subtitles), count)
	case raw.Items != nil:
		for i := 0; i < count; i++ {
			var h, s models.CopyVariant
			if i < len(raw.Items) {
				h = itemVariant(raw.Items[i].Headline, i)
				s = itemVariant(raw.Items[i].Subtitle, i)
			} else {
				h, s = emptyVariant(i), emptyVariant(i)
			}
			out.Headlines = append(out.Headlines, h)
			out.Subtitles = append(out.Subtitles, s)
		}
	default:
		out.Headlines = alignVariants(nil, count)
		out.Subtitles = alignVariants(nil, count)
	}
	return out, nil
}

func emptyVariant(i int) models.CopyVariant {
	return models.CopyVariant{ScreenshotIndex: i, Text: map[string]string{}}
}

// byPosition decodes variants, defaulting a missing screenshotIndex to the
// array position.
func byPosition(items []json.RawMessage) []models.CopyVariant {
	out := make([]models.CopyVariant, 0, len(items))
	for i, msg := range items {
		v := variantFrom(msg, i)
		out = append(out, v)
	}
	return out
}

func variantFrom(msg json.RawMessage, index int) models.CopyVariant {
	var v models.CopyVariant
	if err := json.Unmarshal(msg, &v); err != nil {
		return emptyVariant(index)
	}
	if v.ScreenshotIndex < 0 {
		v.ScreenshotIndex = index
	}
	text := make(map[string]string, len(v.Text))
	for k, s := range v.Text {
		text[catalog.NormalizeLanguage(k)] = s
	}
	v.Text = text
	return v
}

func itemVariant(msg json.RawMessage, index int) models.CopyVariant {
	var s string
	if err := json.Unmarshal(msg, &s); err == nil {
		return models.CopyVariant{ScreenshotIndex: index, Text: map[string]string{"zh": s}}
	}
	if len(msg) == 0 {
		return emptyVariant(index)
	}
	v := variantFrom(msg, index)
	v.ScreenshotIndex = index
	return v
}

func alignVariants(in []models.CopyVariant, count int) []models.CopyVariant {
	out := make([]models.CopyVariant, count)
	for i := range out {
		out[i] = emptyVariant(i)
		for _, v := range in {
			if v.ScreenshotIndex == i {
				out[i] = v
				break
			}
		}
	}
	return out
}
