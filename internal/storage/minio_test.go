package storage

import (
	"context"
	"encoding/xml"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"
)

// fakeS3 answers the handful of S3 calls MinioBackend makes, for one bucket.
type fakeS3 struct {
	bucket string

	mu           sync.Mutex
	objects      map[string][]byte
	contentTypes map[string]string
}

type fakeListResult struct {
	XMLName        xml.Name          `xml:"ListBucketResult"`
	Name           string            `xml:"Name"`
	Prefix         string            `xml:"Prefix"`
	KeyCount       int               `xml:"KeyCount"`
	IsTruncated    bool              `xml:"IsTruncated"`
	Contents       []fakeListEntry   `xml:"Contents"`
	CommonPrefixes []fakeCommonEntry `xml:"CommonPrefixes"`
}

type fakeListEntry struct {
	Key          string `xml:"Key"`
	Size         int64  `xml:"Size"`
	LastModified string `xml:"LastModified"`
	ETag         string `xml:"ETag"`
}

type fakeCommonEntry struct {
	Prefix string `xml:"Prefix"`
}

func newFakeS3(t *testing.T, bucket string, seed map[string]string) (*fakeS3, string) {
	t.Helper()
	f := &fakeS3{bucket: bucket, objects: map[string][]byte{}, contentTypes: map[string]string{}}
	for key, data := range seed {
		f.objects[key] = []byte(data)
	}
	srv := httptest.NewServer(f)
	t.Cleanup(srv.Close)
	return f, strings.TrimPrefix(srv.URL, "http://")
}

func (f *fakeS3) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	bucket, key, _ := strings.Cut(strings.TrimPrefix(r.URL.Path, "/"), "/")
	if bucket != f.bucket {
		writeS3Error(w, r, http.StatusNotFound, "NoSuchBucket")
		return
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	switch {
	case key == "" && r.Method == http.MethodHead:
		w.WriteHeader(http.StatusOK)
	case key == "" && r.Method == http.MethodGet:
		f.list(w, r.URL.Query())
	case r.Method == http.MethodPut:
		data, _ := io.ReadAll(r.Body)
		f.objects[key] = data
		f.contentTypes[key] = r.Header.Get("Content-Type")
		w.Header().Set("ETag", `"d41d8cd98f00b204e9800998ecf8427e"`)
		w.WriteHeader(http.StatusOK)
	case r.Method == http.MethodGet:
		data, ok := f.objects[key]
		if !ok {
			writeS3Error(w, r, http.StatusNotFound, "NoSuchKey")
			return
		}
		w.Header().Set("Content-Type", "application/octet-stream")
		w.Header().Set("ETag", `"d41d8cd98f00b204e9800998ecf8427e"`)
		w.Header().Set("Last-Modified", time.Now().UTC().Format(http.TimeFormat))
		_, _ = w.Write(data)
	default:
		writeS3Error(w, r, http.StatusNotImplemented, "NotImplemented")
	}
}

func (f *fakeS3) list(w http.ResponseWriter, query url.Values) {
	prefix, delimiter := query.Get("prefix"), query.Get("delimiter")
	keys := make([]string, 0, len(f.objects))
	for key := range f.objects {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	result := fakeListResult{Name: f.bucket, Prefix: prefix}
	seen := map[string]bool{}
	for _, key := range keys {
		if !strings.HasPrefix(key, prefix) {
			continue
		}
		rest := key[len(prefix):]
		if i := strings.Index(rest, delimiter); delimiter != "" && i >= 0 {
			common := prefix + rest[:i+1]
			if !seen[common] {
				seen[common] = true
				result.CommonPrefixes = append(result.CommonPrefixes, fakeCommonEntry{Prefix: common})
			}
			continue
		}
		result.Contents = append(result.Contents, fakeListEntry{
			Key:          key,
			Size:         int64(len(f.objects[key])),
			LastModified: "2024-01-01T00:00:00.000Z",
			ETag:         `"etag"`,
		})
	}
	result.KeyCount = len(result.Contents) + len(result.CommonPrefixes)

	w.Header().Set("Content-Type", "application/xml")
	_ = xml.NewEncoder(w).Encode(result)
}

func writeS3Error(w http.ResponseWriter, r *http.Request, status int, code string) {
	w.Header().Set("Content-Type", "application/xml")
	w.WriteHeader(status)
	if r.Method == http.MethodHead {
		return
	}
	_, _ = io.WriteString(w, `<?xml version="1.0" encoding="UTF-8"?><Error><Code>`+code+`</Code><Message>`+code+`</Message></Error>`)
}

func newTestMinio(t *testing.T, endpoint, publicBaseURL string, expiry time.Duration) *MinioBackend {
	t.Helper()
	backend, err := NewMinioBackend(context.Background(), MinioConfig{
		Endpoint:      endpoint,
		AccessKey:     "minio",
		SecretKey:     "minio-secret",
		Bucket:        "media",
		Region:        "us-east-1",
		PublicBaseURL: publicBaseURL,
		LinkExpiry:    expiry,
	})
	if err != nil {
		t.Fatalf("NewMinioBackend() error = %v", err)
	}
	return backend
}

func TestMinioBackend_ListAndStat(t *testing.T) {
	_, endpoint := newFakeS3(t, "media", map[string]string{
		"photos/a.png":     "a",
		"photos/b.jpg":     "bb",
		"photos/sub/c.png": "c",
		"other/d.gif":      "d",
	})
	backend := newTestMinio(t, endpoint, testBaseURL, 0)
	ctx := context.Background()

	top, err := backend.ListTopLevel(ctx)
	if err != nil {
		t.Fatalf("ListTopLevel() error = %v", err)
	}
	if strings.Join(top, ",") != "other,photos" {
		t.Errorf("ListTopLevel() = %v, want [other photos]", top)
	}

	items, err := backend.List(ctx, "photos")
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	var names []string
	for _, item := range items {
		names = append(names, item.Name)
		if item.Path != "photos/"+item.Name {
			t.Errorf("item path = %q for %q", item.Path, item.Name)
		}
	}
	if strings.Join(names, ",") != "a.png,b.jpg" {
		t.Errorf("List() names = %v, want [a.png b.jpg]", names)
	}

	if err := backend.Stat(ctx, "photos"); err != nil {
		t.Errorf("Stat(photos) error = %v", err)
	}
	if err := backend.Stat(ctx, "ghost"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Stat(ghost) error = %v, want ErrNotFound", err)
	}
}

func TestMinioBackend_PutGet(t *testing.T) {
	fake, endpoint := newFakeS3(t, "media", map[string]string{"photos/seed.png": "seeded"})
	backend := newTestMinio(t, endpoint, testBaseURL, 0)
	ctx := context.Background()

	item, err := backend.Put(ctx, "photos", "new.png", []byte("png"))
	if err != nil {
		t.Fatalf("Put() error = %v", err)
	}
	if item.Name != "new.png" || item.Path != "photos/new.png" {
		t.Errorf("Put() = %+v", item)
	}
	fake.mu.Lock()
	contentType := fake.contentTypes["photos/new.png"]
	fake.mu.Unlock()
	if contentType != "image/png" {
		t.Errorf("stored content type = %q, want image/png", contentType)
	}

	data, err := backend.Get(ctx, "photos", "seed.png")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if string(data) != "seeded" {
		t.Errorf("Get() = %q, want seeded", data)
	}

	if _, err := backend.Get(ctx, "photos", "missing.png"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Get(missing) error = %v, want ErrNotFound", err)
	}
}

func TestMinioBackend_ShareLink(t *testing.T) {
	_, endpoint := newFakeS3(t, "media", nil)
	ctx := context.Background()
	item := Item{Name: "a b.png", Path: "photos/a b.png"}

	public := newTestMinio(t, endpoint, testBaseURL+"/", 0)
	link, err := public.ShareLink(ctx, item)
	if err != nil {
		t.Fatalf("ShareLink() error = %v", err)
	}
	if want := testBaseURL + "/photos/a%20b.png"; link != want {
		t.Errorf("ShareLink() = %q, want %q", link, want)
	}

	presigned := newTestMinio(t, endpoint, "", 30*24*time.Hour)
	link, err = presigned.ShareLink(ctx, item)
	if err != nil {
		t.Fatalf("ShareLink() presigned error = %v", err)
	}
	u, err := url.Parse(link)
	if err != nil {
		t.Fatalf("presigned link %q: %v", link, err)
	}
	if u.Host != endpoint || u.Path != "/media/photos/a b.png" {
		t.Errorf("presigned link = %q", link)
	}
	if got := u.Query().Get("X-Amz-Expires"); got != "604800" {
		t.Errorf("X-Amz-Expires = %q, want the 7 day maximum", got)
	}
}

func TestNewMinioBackend_Validation(t *testing.T) {
	_, endpoint := newFakeS3(t, "media", nil)
	ctx := context.Background()

	tests := []struct {
		name string
		cfg  MinioConfig
	}{
		{"no endpoint", MinioConfig{Bucket: "media"}},
		{"no bucket", MinioConfig{Endpoint: endpoint}},
		{"missing bucket", MinioConfig{Endpoint: endpoint, Bucket: "absent", Region: "us-east-1"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := NewMinioBackend(ctx, tt.cfg); err == nil {
				t.Error("NewMinioBackend() succeeded, want error")
			}
		})
	}
}
