package menu

import (
	"os"
	"path/filepath"
	"testing"
)

func writeMenu(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "menu.txt")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write menu file: %v", err)
	}
	return path
}

func TestParseFile(t *testing.T) {
	path := writeMenu(t, `Kebaplar;Adana Kebap;250
Kebaplar;Urfa Kebap;240

İçecekler;Ayran;40
bozuk satır
İçecekler;Kola;elli
`)
	entries, err := ParseFile(path)
	if err != nil {
		t.Fatalf("ParseFile: %v", err)
	}
	if len(entries) != 3 {
		t.Fatalf("parsed %d entries, want 3 (malformed lines skipped)", len(entries))
	}
	if entries[0].Category != "Kebaplar" || entries[0].Name != "Adana Kebap" || entries[0].Price != 250 {
		t.Fatalf("first entry wrong: %+v", entries[0])
	}

	m := Group(entries)
	if len(m["Kebaplar"]) != 2 || len(m["İçecekler"]) != 1 {
		t.Fatalf("grouping wrong: %+v", m)
	}
}

func TestLoadFileMissingFallsBack(t *testing.T) {
	m, err := LoadFile(filepath.Join(t.TempDir(), "does-not-exist.txt"))
	if err != nil {
		t.Fatalf("LoadFile: %v", err)
	}
	if len(m) != 1 || len(m["Genel"]) != 1 {
		t.Fatalf("expected the placeholder menu, got %+v", m)
	}
}
