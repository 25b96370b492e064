package catalog

import "strings"

// DefaultExportLanguages is used when a request names no language.
var DefaultExportLanguages = []string{"zh", "en", "pt", "ja", "ko"}

var languageLabels = map[string]string{
	"zh": "中文",
	"en": "English",
	"pt": "Português",
	"ja": "日本語",
	"ko": "한국어",
}

// NormalizeLanguage lowercases a code and uses '-' as the subtag separator.
func NormalizeLanguage(code string) string {
	return strings.ReplaceAll(strings.ToLower(strings.TrimSpace(code)), "_", "-")
}

// PrimarySubtag returns "zh" for "zh-cn".
func PrimarySubtag(code string) string {
	if i := strings.IndexByte(code, '-'); i >= 0 {
		return code[:i]
	}
	return code
}

// DedupeLanguages normalizes and dedupes codes preserving order, falling back
// to DefaultExportLanguages when nothing usable remains.
func DedupeLanguages(in []string) []string {
	out := make([]string, 0, len(in))
	seen := make(map[string]bool, len(in))
	for _, raw := range in {
		code := NormalizeLanguage(raw)
		if code == "" || seen[code] {
			continue
		}
		seen[code] = true
		out = append(out, code)
	}
	if len(out) == 0 {
		return append([]string(nil), DefaultExportLanguages...)
	}
	return out
}

// LanguageLabel returns a display label, or the upper-cased code for unknown languages.
func LanguageLabel(code string) string {
	code = NormalizeLanguage(code)
	if l, ok := languageLabels[code]; ok {
		return l
	}
	return strings.ToUpper(code)
}
