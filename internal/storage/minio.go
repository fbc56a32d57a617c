package storage

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"mime"
	"path"
	"sort"
	"strings"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// maxPresignExpiry is the longest validity S3 accepts for a presigned URL.
const maxPresignExpiry = 7 * 24 * time.Hour

// MinioConfig holds the connection settings for a MinIO or S3 endpoint.
type MinioConfig struct {
	Endpoint      string
	AccessKey     string
	SecretKey     string
	Bucket        string
	Region        string
	UseSSL        bool
	PublicBaseURL string
	LinkExpiry    time.Duration
}

// MinioBackend stores each root folder as a key prefix in one bucket.
type MinioBackend struct {
	client        *minio.Client
	bucket        string
	publicBaseURL string
	linkExpiry    time.Duration
}

// NewMinioBackend connects to the endpoint and verifies the bucket exists.
func NewMinioBackend(ctx context.Context, cfg MinioConfig) (*MinioBackend, error) {
	if cfg.Endpoint == "" {
		return nil, fmt.Errorf("minio endpoint must be provided")
	}
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("minio bucket must be provided")
	}

	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
		Region: cfg.Region,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create minio client: %w", err)
	}

	exists, err := client.BucketExists(ctx, cfg.Bucket)
	if err != nil {
		return nil, fmt.Errorf("failed to check bucket %s: %w", cfg.Bucket, err)
	}
	if !exists {
		return nil, fmt.Errorf("bucket %s does not exist", cfg.Bucket)
	}

	expiry := cfg.LinkExpiry
	if expiry <= 0 || expiry > maxPresignExpiry {
		expiry = maxPresignExpiry
	}

	return &MinioBackend{
		client:        client,
		bucket:        cfg.Bucket,
		publicBaseURL: strings.TrimSuffix(cfg.PublicBaseURL, "/"),
		linkExpiry:    expiry,
	}, nil
}

func (b *MinioBackend) ListTopLevel(ctx context.Context) ([]string, error) {
	var names []string
	for object := range b.client.ListObjects(ctx, b.bucket, minio.ListObjectsOptions{Recursive: false}) {
		if object.Err != nil {
			return nil, fmt.Errorf("minio list failed: %w", object.Err)
		}
		name := strings.TrimSuffix(object.Key, "/")
		if name != "" {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return names, nil
}

func (b *MinioBackend) Stat(ctx context.Context, folder string) error {
	// Stopping the listing early requires cancelling it.
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	opts := minio.ListObjectsOptions{Prefix: folder + "/", MaxKeys: 1}
	for object := range b.client.ListObjects(ctx, b.bucket, opts) {
		if object.Err != nil {
			return fmt.Errorf("minio stat failed: %w", object.Err)
		}
		return nil
	}
	return ErrNotFound
}

// EnsureFolder is a no-op: prefixes come into being with their first object.
func (b *MinioBackend) EnsureFolder(ctx context.Context, folder string) error {
	return nil
}

func (b *MinioBackend) Put(ctx context.Context, folder, name string, data []byte) (Item, error) {
	key := objectKey(folder, name)
	contentType := mime.TypeByExtension(path.Ext(name))
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	info, err := b.client.PutObject(ctx, b.bucket, key, bytes.NewReader(data), int64(len(data)), minio.PutObjectOptions{
		ContentType: contentType,
	})
	if err != nil {
		return Item{}, fmt.Errorf("minio put %s failed: %w", key, err)
	}
	return Item{Name: name, Path: key, ID: key, Size: info.Size}, nil
}

func (b *MinioBackend) Get(ctx context.Context, folder, name string) ([]byte, error) {
	key := objectKey(folder, name)
	object, err := b.client.GetObject(ctx, b.bucket, key, minio.GetObjectOptions{})
	if err != nil {
		return nil, fmt.Errorf("minio get %s failed: %w", key, err)
	}
	defer object.Close()

	data, err := io.ReadAll(object)
	if err != nil {
		if minio.ToErrorResponse(err).Code == "NoSuchKey" {
			return nil, fmt.Errorf("%s: %w", key, ErrNotFound)
		}
		return nil, fmt.Errorf("minio read %s failed: %w", key, err)
	}
	return data, nil
}

func (b *MinioBackend) List(ctx context.Context, folder string) ([]Item, error) {
	prefix := folder + "/"
	var items []Item
	for object := range b.client.ListObjects(ctx, b.bucket, minio.ListObjectsOptions{Prefix: prefix}) {
		if object.Err != nil {
			return nil, fmt.Errorf("minio list %s failed: %w", folder, object.Err)
		}
		name := strings.TrimPrefix(object.Key, prefix)
		if name == "" || strings.HasSuffix(name, "/") {
			continue
		}
		items = append(items, Item{Name: name, Path: object.Key, ID: object.Key, Size: object.Size})
	}
	return items, nil
}

// ShareLink uses the public base URL when one is configured and falls back to
// a presigned GET otherwise.
func (b *MinioBackend) ShareLink(ctx context.Context, item Item) (string, error) {
	if b.publicBaseURL != "" {
		return joinPublicURL(b.publicBaseURL, item.Path), nil
	}

	u, err := b.client.PresignedGetObject(ctx, b.bucket, item.Path, b.linkExpiry, nil)
	if err != nil {
		return "", fmt.Errorf("minio presign %s failed: %w", item.Path, err)
	}
	return u.String(), nil
}

var _ Backend = (*MinioBackend)(nil)
