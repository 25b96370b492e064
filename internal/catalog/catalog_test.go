package catalog

import (
	"errors"
	"testing"
)

func TestCatalogSizes(t *testing.T) {
	if got := len(Templates()); got != 14 {
		t.Fatalf("templates = %d, want 14", got)
	}
	if got := len(Devices()); got != 8 {
		t.Fatalf("devices = %d, want 8", got)
	}
	for _, tpl := range Templates() {
		if n := len(tpl.LayoutCycle); n < 3 || n > 4 {
			t.Fatalf("%s cycle length = %d, want 3..4", tpl.ID, n)
		}
		if tpl.CompositionMode != ModeFlowDrift && tpl.CompositionMode != ModeStorySlice {
			t.Fatalf("%s has unknown composition mode %q", tpl.ID, tpl.CompositionMode)
		}
	}
}

func TestParseTemplateID(t *testing.T) {
	id, err := ParseTemplateID(" clean ")
	if err != nil || id != TemplateClean {
		t.Fatalf("ParseTemplateID(clean) = %q, %v", id, err)
	}
	if _, err := ParseTemplateID("glitter"); !errors.Is(err, ErrUnknownTemplate) {
		t.Fatalf("expected ErrUnknownTemplate, got %v", err)
	}
	if got := TemplateOrDefault("nope").ID; got != TemplateClean {
		t.Fatalf("TemplateOrDefault fallback = %q, want clean", got)
	}
}

func TestResolveDevices(t *testing.T) {
	got := ResolveDevices(nil)
	if len(got) != 1 || got[0].ID != Device67 {
		t.Fatalf("default devices = %+v", got)
	}
	got = ResolveDevices([]string{"6.1", "bogus", "6.1", "android-10"})
	if len(got) != 2 || got[0].ID != Device61 || got[1].ID != DeviceAndroid10 {
		t.Fatalf("resolved = %+v", got)
	}
	if _, err := ParseDeviceID("7.9"); !errors.Is(err, ErrUnknownDevice) {
		t.Fatalf("expected ErrUnknownDevice, got %v", err)
	}
}

func TestDedupeLanguages(t *testing.T) {
	got := DedupeLanguages([]string{"EN", "zh_CN", "en", " "})
	if len(got) != 2 || got[0] != "en" || got[1] != "zh-cn" {
		t.Fatalf("deduped = %v", got)
	}
	if got := DedupeLanguages(nil); len(got) != len(DefaultExportLanguages) {
		t.Fatalf("fallback = %v", got)
	}
	if PrimarySubtag("zh-cn") != "zh" {
		t.Fatalf("primary subtag mismatch")
	}
	if LanguageLabel("fr") != "FR" || LanguageLabel("ja") != "日本語" {
		t.Fatalf("labels mismatch")
	}
}
