package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/molpadia/molpastudio/internal/logging"
)

// Config holds the settings of the API server, read from the environment.
type Config struct {
	Addr     string
	CertFile string
	KeyFile  string

	DBBackend         string // dynamodb, sqlite, postgres, mysql
	DBDSN             string
	DynamoVideoTable  string
	DynamoUserTable   string
	MediaBackend      string // s3, local
	MediaDir          string
	UploadBucket      string
	DeliveryBucket    string
	MediaConvertURL   string
	MediaConvertRole  string
	MediaDeliveryURL  string
	SessionSecret     string
	SessionDuration   time.Duration
	MaxUploadSize     int64
	ShutdownTimeout   time.Duration
	LogStaticRequests bool
}

// LoadConfig reads and validates the configuration.
func LoadConfig() (*Config, error) {
	cfg := &Config{
		Addr:              getEnv("ADDR", ":4443"),
		CertFile:          getEnv("CERT_FILE", ""),
		KeyFile:           getEnv("CERT_KEY", ""),
		DBBackend:         strings.ToLower(getEnv("DB_BACKEND", "sqlite")),
		DBDSN:             getEnv("DB_DSN", "molpastudio.db"),
		DynamoVideoTable:  getEnv("DYNAMODB_TABLE", getEnv("AWS_DB_VOD_NAME", "molpastudio-videos")),
		DynamoUserTable:   getEnv("DYNAMODB_USER_TABLE", "molpastudio-users"),
		MediaBackend:      strings.ToLower(getEnv("MEDIA_BACKEND", "local")),
		MediaDir:          getEnv("MEDIA_DIR", "media"),
		UploadBucket:      getEnv("AWS_S3_VOD_BUCKET", ""),
		DeliveryBucket:    getEnv("AWS_VOD_DELIVERY_BUCKET", ""),
		MediaConvertURL:   getEnv("AWS_VOD_MEDIACONVERT_URL", ""),
		MediaConvertRole:  getEnv("AWS_VOD_ROLE_ARN", ""),
		MediaDeliveryURL:  getEnv("MEDIA_DELIVERY_URL", ""),
		SessionSecret:     getEnv("SESSION_SECRET", ""),
		SessionDuration:   getDurationEnv("SESSION_DURATION", 7*24*time.Hour),
		MaxUploadSize:     getInt64Env("MAX_UPLOAD_SIZE", 100<<20),
		ShutdownTimeout:   getDurationEnv("SHUTDOWN_TIMEOUT", 30*time.Second),
		LogStaticRequests: getBoolEnv("LOG_STATIC_FILES", false),
	}
	// Both media backends deliver through the server's /media/ route.
	if cfg.MediaDeliveryURL == "" {
		cfg.MediaDeliveryURL = "http://localhost" + cfg.Addr + "/media"
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	cfg.log()
	return cfg, nil
}

func (c *Config) Validate() error {
	switch c.DBBackend {
	case "dynamodb", "sqlite", "postgres", "mysql":
	default:
		return fmt.Errorf("unsupported DB_BACKEND %q", c.DBBackend)
	}
	switch c.MediaBackend {
	case "local":
	case "s3":
		if c.UploadBucket == "" {
			return fmt.Errorf("AWS_S3_VOD_BUCKET must be set for the s3 media backend")
		}
	default:
		return fmt.Errorf("unsupported MEDIA_BACKEND %q", c.MediaBackend)
	}
	if c.MediaDeliveryURL == "" {
		return fmt.Errorf("MEDIA_DELIVERY_URL must be set")
	}
	if len(c.SessionSecret) < 16 {
		return fmt.Errorf("SESSION_SECRET must be at least 16 characters")
	}
	if c.MaxUploadSize <= 0 {
		return fmt.Errorf("MAX_UPLOAD_SIZE must be positive")
	}
	return nil
}

func (c *Config) log() {
	logging.Info("  ADDR:               %s", c.Addr)
	logging.Info("  DB_BACKEND:         %s", c.DBBackend)
	logging.Info("  MEDIA_BACKEND:      %s", c.MediaBackend)
	logging.Info("  MEDIA_DELIVERY_URL: %s", c.MediaDeliveryURL)
	logging.Info("  SESSION_DURATION:   %s", c.SessionDuration)
	logging.Info("  MAX_UPLOAD_SIZE:    %d", c.MaxUploadSize)
	logging.Info("  LOG_LEVEL:          %s", logging.GetLevel())
}

func getEnv(key, def string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return def
}

func getBoolEnv(key string, def bool) bool {
	switch strings.ToLower(os.Getenv(key)) {
	case "1", "true", "yes", "on":
		return true
	case "0", "false", "no", "off":
		return false
	}
	return def
}

func getInt64Env(key string, def int64) int64 {
	if n, err := strconv.ParseInt(os.Getenv(key), 10, 64); err == nil {
		return n
	}
	return def
}

func getDurationEnv(key string, def time.Duration) time.Duration {
	val := os.Getenv(key)
	if val == "" {
		return def
	}
	if d, err := time.ParseDuration(val); err == nil {
		return d
	}
	logging.Warn("invalid %s %q, using default %s", key, val, def)
	return def
}
