package config

import (
	"testing"
	"time"

	"github.com/spf13/viper"
)

func TestBuild_Defaults(t *testing.T) {
	viper.Reset()
	setDefaults()
	viper.AutomaticEnv()

	cfg := build()

	if cfg.Storage.Backend != "drive" {
		t.Errorf("Storage.Backend = %q, want drive", cfg.Storage.Backend)
	}
	if cfg.Fetch.RetryMax != 0 {
		t.Errorf("Fetch.RetryMax = %d, want 0", cfg.Fetch.RetryMax)
	}
	if cfg.Fetch.Timeout != 30*time.Second {
		t.Errorf("Fetch.Timeout = %v, want 30s", cfg.Fetch.Timeout)
	}
	if cfg.Storage.LinkExpiry != 7*24*time.Hour {
		t.Errorf("Storage.LinkExpiry = %v, want 168h", cfg.Storage.LinkExpiry)
	}
	if cfg.Database.Enabled {
		t.Error("Database.Enabled should default to false")
	}
}

func TestBuild_EnvOverrides(t *testing.T) {
	t.Setenv("STORAGE_BACKEND", "objectstore")
	t.Setenv("OBJECTSTORE_DIR", "/tmp/objects")
	t.Setenv("STORAGE_PUBLIC_BASE_URL", "https://cdn.example.com")
	t.Setenv("FETCH_TIMEOUT_SECONDS", "5")
	t.Setenv("MINIO_USE_SSL", "true")

	viper.Reset()
	setDefaults()
	viper.AutomaticEnv()

	cfg := build()

	if cfg.Storage.Backend != "objectstore" {
		t.Errorf("Storage.Backend = %q, want objectstore", cfg.Storage.Backend)
	}
	if cfg.Storage.ObjectStore.Dir != "/tmp/objects" {
		t.Errorf("ObjectStore.Dir = %q", cfg.Storage.ObjectStore.Dir)
	}
	if cfg.Storage.PublicBaseURL != "https://cdn.example.com" {
		t.Errorf("PublicBaseURL = %q", cfg.Storage.PublicBaseURL)
	}
	if cfg.Fetch.Timeout != 5*time.Second {
		t.Errorf("Fetch.Timeout = %v, want 5s", cfg.Fetch.Timeout)
	}
	if !cfg.Storage.Minio.UseSSL {
		t.Error("Minio.UseSSL should be true")
	}
}
