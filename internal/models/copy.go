package models

import (
	"encoding/json"
	"fmt"
)

// CopyVariant is the localized text of one screenshot. On the wire it is a
// flat object: {"screenshotIndex": 0, "en": "...", "zh": "..."}.
type CopyVariant struct {
	ScreenshotIndex int
	Text            map[string]string
}

// UnmarshalJSON reads screenshotIndex plus every string-valued language key.
func (v *CopyVariant) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("copy variant: %w", err)
	}
	v.ScreenshotIndex = -1
	v.Text = make(map[string]string, len(raw))
	for k, msg := range raw {
		if k == "screenshotIndex" {
			if err := json.Unmarshal(msg, &v.ScreenshotIndex); err != nil {
				return fmt.Errorf("copy variant screenshotIndex: %w", err)
			}
			continue
		}
		var s string
		if err := json.Unmarshal(msg, &s); err == nil {
			v.Text[k] = s
		}
	}
	return nil
}

// MarshalJSON writes the flat wire shape.
func (v CopyVariant) MarshalJSON() ([]byte, error) {
	out := make(map[string]any, len(v.Text)+1)
	for k, text := range v.Text {
		out[k] = text
	}
	out["screenshotIndex"] = v.ScreenshotIndex
	return json.Marshal(out)
}

// Copy is the generated marketing text of a project.
type Copy struct {
	Headlines []CopyVariant     `json:"headlines"`
	Subtitles []CopyVariant     `json:"subtitles"`
	Tagline   map[string]string `json:"tagline,omitempty"`
}
