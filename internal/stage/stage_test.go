package stage

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/andresuchdata/linksync/internal/config"
	"github.com/andresuchdata/linksync/internal/table"
)

func newImageServer(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/ok/pic.png", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("png-bytes"))
	})
	mux.HandleFunc("/ok/noext", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("raw"))
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func TestStage_SkipsFailedRows(t *testing.T) {
	srv := newImageServer(t)
	folder := filepath.Join(t.TempDir(), "staging")

	long := table.LongTable{
		{Name: "missing", URL: srv.URL + "/gone.png"},
		{Name: "A", URL: srv.URL + "/ok/pic.png"},
	}

	var calls int
	s := New(config.FetchConfig{})
	s.OnProgress(func(done, total int, name string) {
		calls++
		if total != 2 {
			t.Errorf("progress total = %d, want 2", total)
		}
	})

	count, err := s.Stage(context.Background(), long, folder)
	if err != nil {
		t.Fatalf("Stage() error = %v", err)
	}
	if count != 1 {
		t.Errorf("Stage() = %d, want 1", count)
	}
	if calls != 2 {
		t.Errorf("progress called %d times, want 2", calls)
	}

	data, err := os.ReadFile(filepath.Join(folder, "A.png"))
	if err != nil {
		t.Fatalf("staged file missing: %v", err)
	}
	if string(data) != "png-bytes" {
		t.Errorf("staged content = %q", data)
	}
	if _, err := os.Stat(filepath.Join(folder, "missing.png")); !os.IsNotExist(err) {
		t.Errorf("failed row was written: %v", err)
	}
}

func TestStage_UnreachableHost(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL + "/a.png"
	srv.Close()

	count, err := New(config.FetchConfig{}).Stage(context.Background(),
		table.LongTable{{Name: "a", URL: url}}, t.TempDir())
	if err != nil {
		t.Fatalf("Stage() error = %v", err)
	}
	if count != 0 {
		t.Errorf("Stage() = %d, want 0", count)
	}
}

func TestStage_NoExtension(t *testing.T) {
	srv := newImageServer(t)
	folder := t.TempDir()

	count, err := New(config.FetchConfig{}).Stage(context.Background(),
		table.LongTable{{Name: "plain", URL: srv.URL + "/ok/noext"}}, folder)
	if err != nil || count != 1 {
		t.Fatalf("Stage() = %d, %v", count, err)
	}
	if _, err := os.Stat(filepath.Join(folder, "plain")); err != nil {
		t.Errorf("expected file without extension: %v", err)
	}
}

func TestStage_RejectsNamesOutsideFolder(t *testing.T) {
	srv := newImageServer(t)
	base := t.TempDir()
	folder := filepath.Join(base, "staging")

	long := table.LongTable{
		{Name: "../escaped", URL: srv.URL + "/ok/pic.png"},
		{Name: "nested/pic", URL: srv.URL + "/ok/pic.png"},
		{Name: `..\win`, URL: srv.URL + "/ok/pic.png"},
		{Name: "..", URL: srv.URL + "/ok/noext"},
		{Name: "kept", URL: srv.URL + "/ok/pic.png"},
	}

	count, err := New(config.FetchConfig{}).Stage(context.Background(), long, folder)
	if err != nil {
		t.Fatalf("Stage() error = %v", err)
	}
	if count != 1 {
		t.Errorf("Stage() = %d, want 1", count)
	}
	if _, err := os.Stat(filepath.Join(base, "escaped.png")); !os.IsNotExist(err) {
		t.Errorf("file written outside the staging folder: %v", err)
	}

	entries, err := os.ReadDir(folder)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 || entries[0].Name() != "kept.png" {
		t.Errorf("staging folder holds %v, want only kept.png", entries)
	}
}

func TestStage_CancelledContext(t *testing.T) {
	srv := newImageServer(t)
	ctx, cancel := context.WithCancel(context.Background())

	s := New(config.FetchConfig{})
	var calls int
	s.OnProgress(func(done, total int, name string) {
		calls++
		cancel()
	})

	long := table.LongTable{
		{Name: "a", URL: srv.URL + "/ok/pic.png"},
		{Name: "b", URL: srv.URL + "/ok/pic.png"},
		{Name: "c", URL: srv.URL + "/ok/pic.png"},
	}
	count, err := s.Stage(ctx, long, t.TempDir())
	if err != nil {
		t.Fatalf("Stage() error = %v, want nil", err)
	}
	if count != 1 || calls != 1 {
		t.Errorf("Stage() = %d after %d rows, want 1 after 1", count, calls)
	}
}

func TestStagingPath(t *testing.T) {
	folder := filepath.Join("tmp", "staging")
	tests := []struct {
		name    string
		wantErr bool
	}{
		{"a.png", false},
		{"..a.png", false},
		{"", true},
		{".", true},
		{"..", true},
		{"../a.png", true},
		{"sub/a.png", true},
		{`sub\a.png`, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dest, err := stagingPath(folder, tt.name)
			if (err != nil) != tt.wantErr {
				t.Fatalf("stagingPath(%q) error = %v, wantErr %v", tt.name, err, tt.wantErr)
			}
			if err == nil && dest != filepath.Join(folder, tt.name) {
				t.Errorf("stagingPath(%q) = %q", tt.name, dest)
			}
		})
	}
}

func TestExtensionOf(t *testing.T) {
	tests := []struct {
		url  string
		want string
	}{
		{"http://x.com/a/b.jpg", ".jpg"},
		{"http://x.com/a/b.jpg?size=large", ".jpg"},
		{"http://x.com/a/b", ""},
		{"http://x.com/", ""},
	}
	for _, tt := range tests {
		if got := extensionOf(tt.url); got != tt.want {
			t.Errorf("extensionOf(%q) = %q, want %q", tt.url, got, tt.want)
		}
	}
}
