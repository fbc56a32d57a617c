package config

import (
	"log"
	"os"
	"sync"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	App      AppConfig
	Cache    CacheConfig
	Storage  StorageConfig
	Fetch    FetchConfig
}

type ServerConfig struct {
	Port           string
	Mode           string
	ReadTimeout    int
	WriteTimeout   int
	AllowedOrigins []string
}

type DatabaseConfig struct {
	Enabled  bool
	Host     string
	Port     string
	User     string
	Password string
	DBName   string
	SSLMode  string
}

type AppConfig struct {
	LogLevel string
	DataDir  string
}

type CacheConfig struct {
	Enabled       bool
	RedisURL      string
	RedisHost     string
	RedisPort     string
	RedisPassword string
	RedisDB       int
	RunTTLSeconds int
}

// StorageConfig selects and configures the remote store backend.
type StorageConfig struct {
	// Backend is one of "drive", "minio" or "objectstore".
	Backend string

	// PublicBaseURL prefixes object keys to form shareable links on object stores.
	PublicBaseURL string
	LinkExpiry    time.Duration

	Minio       MinioConfig
	ObjectStore ObjectStoreConfig
}

type MinioConfig struct {
	Endpoint string
	Bucket   string
	Region   string
	UseSSL   bool
}

type ObjectStoreConfig struct {
	// Kind is "local" or "amazon".
	Kind     string
	Dir      string
	Bucket   string
	Endpoint string
	Region   string
}

type FetchConfig struct {
	Timeout  time.Duration
	RetryMax int
}

var (
	once     sync.Once
	instance *Config
)

func Load() *Config {
	once.Do(func() {
		// Load .env file if it exists
		_ = godotenv.Load()

		setDefaults()

		// Read from environment variables
		viper.AutomaticEnv()

		ensureDir(viper.GetString("APP_DATA_DIR"))

		instance = build()
	})

	return instance
}

func setDefaults() {
	viper.SetDefault("SERVER_PORT", "8080")
	viper.SetDefault("SERVER_MODE", "debug")
	viper.SetDefault("SERVER_READ_TIMEOUT", 30)
	viper.SetDefault("SERVER_WRITE_TIMEOUT", 60)
	viper.SetDefault("SERVER_ALLOWED_ORIGINS", []string{"*"})
	viper.SetDefault("DB_ENABLED", false)
	viper.SetDefault("DB_HOST", "localhost")
	viper.SetDefault("DB_PORT", "5432")
	viper.SetDefault("DB_USER", "postgres")
	viper.SetDefault("DB_PASSWORD", "postgres")
	viper.SetDefault("DB_NAME", "linksync")
	viper.SetDefault("DB_SSLMODE", "disable")
	viper.SetDefault("APP_LOG_LEVEL", "info")
	viper.SetDefault("APP_DATA_DIR", "./data")
	viper.SetDefault("CACHE_ENABLED", false)
	viper.SetDefault("REDIS_URL", "")
	viper.SetDefault("REDIS_HOST", "127.0.0.1")
	viper.SetDefault("REDIS_PORT", "6379")
	viper.SetDefault("REDIS_PASSWORD", "")
	viper.SetDefault("REDIS_DB", 0)
	viper.SetDefault("CACHE_RUN_TTL_SECONDS", 30)
	viper.SetDefault("STORAGE_BACKEND", "drive")
	viper.SetDefault("STORAGE_PUBLIC_BASE_URL", "")
	viper.SetDefault("STORAGE_LINK_EXPIRY_HOURS", 24*7)
	viper.SetDefault("MINIO_ENDPOINT", "localhost:9000")
	viper.SetDefault("MINIO_BUCKET", "linksync")
	viper.SetDefault("MINIO_REGION", "us-east-1")
	viper.SetDefault("MINIO_USE_SSL", false)
	viper.SetDefault("OBJECTSTORE_KIND", "local")
	viper.SetDefault("OBJECTSTORE_DIR", "./data/objects")
	viper.SetDefault("OBJECTSTORE_BUCKET", "")
	viper.SetDefault("OBJECTSTORE_ENDPOINT", "")
	viper.SetDefault("OBJECTSTORE_REGION", "us-east-1")
	viper.SetDefault("FETCH_TIMEOUT_SECONDS", 30)
	viper.SetDefault("FETCH_RETRY_MAX", 0)
}

func build() *Config {
	return &Config{
		Server: ServerConfig{
			Port:           viper.GetString("SERVER_PORT"),
			Mode:           viper.GetString("SERVER_MODE"),
			ReadTimeout:    viper.GetInt("SERVER_READ_TIMEOUT"),
			WriteTimeout:   viper.GetInt("SERVER_WRITE_TIMEOUT"),
			AllowedOrigins: viper.GetStringSlice("SERVER_ALLOWED_ORIGINS"),
		},
		Database: DatabaseConfig{
			Enabled:  viper.GetBool("DB_ENABLED"),
			Host:     viper.GetString("DB_HOST"),
			Port:     viper.GetString("DB_PORT"),
			User:     viper.GetString("DB_USER"),
			Password: viper.GetString("DB_PASSWORD"),
			DBName:   viper.GetString("DB_NAME"),
			SSLMode:  viper.GetString("DB_SSLMODE"),
		},
		App: AppConfig{
			LogLevel: viper.GetString("APP_LOG_LEVEL"),
			DataDir:  viper.GetString("APP_DATA_DIR"),
		},
		Cache: CacheConfig{
			Enabled:       viper.GetBool("CACHE_ENABLED"),
			RedisURL:      viper.GetString("REDIS_URL"),
			RedisHost:     viper.GetString("REDIS_HOST"),
			RedisPort:     viper.GetString("REDIS_PORT"),
			RedisPassword: viper.GetString("REDIS_PASSWORD"),
			RedisDB:       viper.GetInt("REDIS_DB"),
			RunTTLSeconds: viper.GetInt("CACHE_RUN_TTL_SECONDS"),
		},
		Storage: StorageConfig{
			Backend:       viper.GetString("STORAGE_BACKEND"),
			PublicBaseURL: viper.GetString("STORAGE_PUBLIC_BASE_URL"),
			LinkExpiry:    time.Duration(viper.GetInt("STORAGE_LINK_EXPIRY_HOURS")) * time.Hour,
			Minio: MinioConfig{
				Endpoint: viper.GetString("MINIO_ENDPOINT"),
				Bucket:   viper.GetString("MINIO_BUCKET"),
				Region:   viper.GetString("MINIO_REGION"),
				UseSSL:   viper.GetBool("MINIO_USE_SSL"),
			},
			ObjectStore: ObjectStoreConfig{
				Kind:     viper.GetString("OBJECTSTORE_KIND"),
				Dir:      viper.GetString("OBJECTSTORE_DIR"),
				Bucket:   viper.GetString("OBJECTSTORE_BUCKET"),
				Endpoint: viper.GetString("OBJECTSTORE_ENDPOINT"),
				Region:   viper.GetString("OBJECTSTORE_REGION"),
			},
		},
		Fetch: FetchConfig{
			Timeout:  time.Duration(viper.GetInt("FETCH_TIMEOUT_SECONDS")) * time.Second,
			RetryMax: viper.GetInt("FETCH_RETRY_MAX"),
		},
	}
}

func ensureDir(dir string) {
	if _, err := os.Stat(dir); os.IsNotExist(err) {
		if err := os.MkdirAll(dir, 0755); err != nil {
			log.Fatalf("Failed to create directory %s: %v", dir, err)
		}
	}
}
