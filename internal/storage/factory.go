package storage

import (
	"context"
	"fmt"
	"strings"

	"github.com/andresuchdata/linksync/internal/config"
)

// NewBackend builds the backend selected by cfg.Backend. credential is the
// opaque secret a caller supplies per run: a Drive token or service account
// key, or "ACCESS:SECRET" for S3-style stores.
func NewBackend(ctx context.Context, cfg config.StorageConfig, credential string) (Backend, error) {
	switch strings.ToLower(strings.TrimSpace(cfg.Backend)) {
	case "", "drive":
		return NewDriveBackend(ctx, credential)

	case "minio":
		access, secret, err := splitKeyPair(credential)
		if err != nil {
			return nil, err
		}
		return NewMinioBackend(ctx, MinioConfig{
			Endpoint:      cfg.Minio.Endpoint,
			AccessKey:     access,
			SecretKey:     secret,
			Bucket:        cfg.Minio.Bucket,
			Region:        cfg.Minio.Region,
			UseSSL:        cfg.Minio.UseSSL,
			PublicBaseURL: cfg.PublicBaseURL,
			LinkExpiry:    cfg.LinkExpiry,
		})

	case "objectstore":
		switch strings.ToLower(cfg.ObjectStore.Kind) {
		case "", "local":
			return NewLocalObjectStore(cfg.ObjectStore.Dir, cfg.PublicBaseURL)
		case "amazon":
			access, secret, err := splitKeyPair(credential)
			if err != nil {
				return nil, err
			}
			return NewAmazonObjectStore(AmazonConfig{
				Endpoint:  cfg.ObjectStore.Endpoint,
				AccessKey: access,
				SecretKey: secret,
				Bucket:    cfg.ObjectStore.Bucket,
				Region:    cfg.ObjectStore.Region,
				UseSSL:    true,
			}, cfg.PublicBaseURL)
		default:
			return nil, fmt.Errorf("unknown object store kind %q", cfg.ObjectStore.Kind)
		}

	default:
		return nil, fmt.Errorf("unknown storage backend %q", cfg.Backend)
	}
}

func splitKeyPair(credential string) (string, string, error) {
	access, secret, ok := strings.Cut(strings.TrimSpace(credential), ":")
	if !ok || access == "" || secret == "" {
		return "", "", fmt.Errorf("credential must have the form ACCESS_KEY:SECRET_KEY")
	}
	return access, secret, nil
}
