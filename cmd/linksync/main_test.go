package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/andresuchdata/linksync/internal/table"
)

func TestReshape(t *testing.T) {
	dir := t.TempDir()
	in := filepath.Join(dir, "links.csv")
	content := "name,url\nb,https://x.com/b.png\na,https://x.com/a.png\na,https://x.com/a.png\na,https://x.com/a2.png\n"
	if err := os.WriteFile(in, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name     string
		layout   string
		dedup    bool
		wantRows int
		wantCols int
	}{
		{"wide keeps repeats", "wide", false, 2, 4},
		{"wide dedup", "WIDE", true, 2, 3},
		{"long dedup", "long", true, 3, 2},
		{"long", "long", false, 4, 2},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out := filepath.Join(t.TempDir(), "out.csv")
			if err := reshape(in, out, tt.layout, tt.dedup); err != nil {
				t.Fatalf("reshape() error = %v", err)
			}
			sheet, err := table.ReadSheet(out)
			if err != nil {
				t.Fatalf("ReadSheet() error = %v", err)
			}
			if len(sheet.Rows) != tt.wantRows || len(sheet.Header) != tt.wantCols {
				t.Errorf("reshape() wrote %d cols x %d rows, want %d x %d: %v",
					len(sheet.Header), len(sheet.Rows), tt.wantCols, tt.wantRows, sheet)
			}
		})
	}

	if err := reshape(in, filepath.Join(dir, "x.csv"), "tall", false); err == nil {
		t.Error("reshape() accepted an unknown layout")
	}
}
