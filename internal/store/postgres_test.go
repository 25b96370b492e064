package store

import (
	"strings"
	"testing"
)

func TestClampLimit(t *testing.T) {
	cases := map[int]int{-1: defaultListLimit, 0: defaultListLimit, 5: 5, 1000: maxListLimit}
	for in, want := range cases {
		if got := clampLimit(in); got != want {
			t.Fatalf("clampLimit(%d) = %d, want %d", in, got, want)
		}
	}
}

func TestMigrationsEmbedded(t *testing.T) {
	entries, err := migrationFiles.ReadDir("migrations")
	if err != nil {
		t.Fatalf("read embedded migrations: %v", err)
	}
	if len(entries) == 0 {
		t.Fatalf("no migrations embedded")
	}
	content, err := migrationFiles.ReadFile("migrations/" + entries[0].Name())
	if err != nil {
		t.Fatalf("read %s: %v", entries[0].Name(), err)
	}
	if !strings.Contains(string(content), "CREATE TABLE IF NOT EXISTS exports") {
		t.Fatalf("first migration does not create exports table")
	}
}
