package storage

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/aws/aws-sdk-go/aws/credentials"
	cmstorage "github.com/chartmuseum/storage"
)

// AmazonConfig encapsulates the connection info for an S3-compatible bucket.
type AmazonConfig struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	Region    string
	UseSSL    bool
}

// ObjectStoreBackend implements Backend on top of a chartmuseum storage
// backend. Folders are key prefixes and exist as soon as one object is written
// under them. Links are built from a public base URL.
type ObjectStoreBackend struct {
	backend       cmstorage.Backend
	publicBaseURL string
}

// NewLocalObjectStore keeps objects under dir on the local filesystem.
func NewLocalObjectStore(dir, publicBaseURL string) (*ObjectStoreBackend, error) {
	if dir == "" {
		return nil, fmt.Errorf("object store directory must be provided")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create object store directory %s: %w", dir, err)
	}
	return newObjectStore(cmstorage.NewLocalFilesystemBackend(dir), publicBaseURL)
}

// NewAmazonObjectStore builds an ObjectStoreBackend backed by chartmuseum's
// Amazon storage backend.
func NewAmazonObjectStore(cfg AmazonConfig, publicBaseURL string) (*ObjectStoreBackend, error) {
	if cfg.Endpoint == "" {
		return nil, fmt.Errorf("object store endpoint must be provided")
	}
	if cfg.AccessKey == "" || cfg.SecretKey == "" {
		return nil, fmt.Errorf("object store credentials must be provided")
	}
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("object store bucket must be provided")
	}

	endpoint := cfg.Endpoint
	if !strings.HasPrefix(endpoint, "http://") && !strings.HasPrefix(endpoint, "https://") {
		scheme := "https"
		if !cfg.UseSSL {
			scheme = "http"
		}
		endpoint = fmt.Sprintf("%s://%s", scheme, strings.TrimPrefix(cfg.Endpoint, "//"))
	}

	region := strings.TrimSpace(cfg.Region)
	if region == "" {
		region = "us-east-1"
	}

	// Credentials stay on the client; concurrent runs may hold different keys.
	// A non-empty endpoint also turns on path-style addressing.
	backend := cmstorage.NewAmazonS3BackendWithCredentials(
		cfg.Bucket,
		"", // no prefix
		region,
		endpoint,
		"",
		credentials.NewStaticCredentials(cfg.AccessKey, cfg.SecretKey, ""),
	)

	return newObjectStore(backend, publicBaseURL)
}

func newObjectStore(backend cmstorage.Backend, publicBaseURL string) (*ObjectStoreBackend, error) {
	base := strings.TrimSuffix(strings.TrimSpace(publicBaseURL), "/")
	if base == "" {
		return nil, fmt.Errorf("public base url must be provided for object store links")
	}
	return &ObjectStoreBackend{backend: backend, publicBaseURL: base}, nil
}

// ListTopLevel returns the first path segment of every stored object.
func (b *ObjectStoreBackend) ListTopLevel(ctx context.Context) ([]string, error) {
	objects, err := b.listObjects("")
	if err != nil {
		return nil, fmt.Errorf("object store list failed: %w", err)
	}

	seen := make(map[string]bool)
	var names []string
	for _, object := range objects {
		top := strings.SplitN(object, "/", 2)[0]
		if top == "" || seen[top] {
			continue
		}
		seen[top] = true
		names = append(names, top)
	}
	sort.Strings(names)
	return names, nil
}

func (b *ObjectStoreBackend) Stat(ctx context.Context, folder string) error {
	objects, err := b.listObjects(folder)
	if err != nil {
		return fmt.Errorf("object store stat failed: %w", err)
	}
	if len(objects) == 0 {
		return ErrNotFound
	}
	return nil
}

// EnsureFolder is a no-op: prefixes come into being with their first object.
func (b *ObjectStoreBackend) EnsureFolder(ctx context.Context, folder string) error {
	return nil
}

func (b *ObjectStoreBackend) Put(ctx context.Context, folder, name string, data []byte) (Item, error) {
	key := objectKey(folder, name)
	if err := b.backend.PutObject(key, data); err != nil {
		return Item{}, fmt.Errorf("object store put %s failed: %w", key, err)
	}
	return Item{Name: name, Path: key, ID: key, Size: int64(len(data))}, nil
}

func (b *ObjectStoreBackend) Get(ctx context.Context, folder, name string) ([]byte, error) {
	key := objectKey(folder, name)
	object, err := b.backend.GetObject(key)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%s: %w", key, ErrNotFound)
		}
		return nil, fmt.Errorf("object store get %s failed: %w", key, err)
	}
	return object.Content, nil
}

func (b *ObjectStoreBackend) List(ctx context.Context, folder string) ([]Item, error) {
	objects, err := b.listObjects(folder)
	if err != nil {
		return nil, fmt.Errorf("object store list %s failed: %w", folder, err)
	}

	items := make([]Item, 0, len(objects))
	for _, rel := range objects {
		if strings.Contains(rel, "/") {
			continue
		}
		key := objectKey(folder, rel)
		items = append(items, Item{Name: rel, Path: key, ID: key})
	}
	return items, nil
}

// ShareLink joins the public base URL and the escaped object key.
func (b *ObjectStoreBackend) ShareLink(ctx context.Context, item Item) (string, error) {
	return joinPublicURL(b.publicBaseURL, item.Path), nil
}

// listObjects returns object paths relative to prefix, sorted. A prefix that
// does not exist yet yields no objects.
func (b *ObjectStoreBackend) listObjects(prefix string) ([]string, error) {
	objects, err := b.backend.ListObjects(prefix)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, err
	}

	paths := make([]string, 0, len(objects))
	for _, object := range objects {
		p := strings.TrimPrefix(filepath.ToSlash(object.Path), "/")
		if p != "" {
			paths = append(paths, p)
		}
	}
	sort.Strings(paths)
	return paths, nil
}

func joinPublicURL(base, key string) string {
	segments := strings.Split(key, "/")
	for i, s := range segments {
		segments[i] = url.PathEscape(s)
	}
	return base + "/" + strings.Join(segments, "/")
}

var _ Backend = (*ObjectStoreBackend)(nil)
