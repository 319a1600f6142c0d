package config

import (
	"strings"
	"testing"
	"time"
)

func TestLoadConfigDefaults(t *testing.T) {
	t.Setenv("SESSION_SECRET", "0123456789abcdef")
	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig() error = %v", err)
	}
	if cfg.Addr != ":4443" || cfg.DBBackend != "sqlite" || cfg.MediaBackend != "local" {
		t.Errorf("unexpected defaults: %+v", cfg)
	}
	if cfg.MediaDeliveryURL != "http://localhost:4443/media" {
		t.Errorf("expected local delivery URL, got %q", cfg.MediaDeliveryURL)
	}
	if cfg.SessionDuration != 7*24*time.Hour {
		t.Errorf("expected 7 day sessions, got %s", cfg.SessionDuration)
	}
}

func TestLoadConfigErrors(t *testing.T) {
	tests := []struct {
		env  map[string]string
		want string
	}{
		{map[string]string{}, "SESSION_SECRET"},
		{map[string]string{"SESSION_SECRET": "0123456789abcdef", "DB_BACKEND": "oracle"}, "DB_BACKEND"},
		{map[string]string{"SESSION_SECRET": "0123456789abcdef", "MEDIA_BACKEND": "ftp"}, "MEDIA_BACKEND"},
		{map[string]string{"SESSION_SECRET": "0123456789abcdef", "MEDIA_BACKEND": "s3"}, "AWS_S3_VOD_BUCKET"},
	}
	for _, tt := range tests {
		t.Setenv("SESSION_SECRET", "")
		t.Setenv("DB_BACKEND", "")
		t.Setenv("MEDIA_BACKEND", "")
		for k, v := range tt.env {
			t.Setenv(k, v)
		}
		_, err := LoadConfig()
		if err == nil || !strings.Contains(err.Error(), tt.want) {
			t.Errorf("expected error mentioning %s, got %v", tt.want, err)
		}
	}
}

func TestGetDurationEnvFallsBack(t *testing.T) {
	t.Setenv("SESSION_DURATION", "soon")
	if d := getDurationEnv("SESSION_DURATION", time.Hour); d != time.Hour {
		t.Errorf("expected fallback, got %s", d)
	}
}

func TestLoadConfigS3DeliversThroughServer(t *testing.T) {
	t.Setenv("SESSION_SECRET", "0123456789abcdef")
	t.Setenv("MEDIA_BACKEND", "s3")
	t.Setenv("AWS_S3_VOD_BUCKET", "uploads")
	t.Setenv("MEDIA_DELIVERY_URL", "")
	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig() error = %v", err)
	}
	if cfg.MediaDeliveryURL != "http://localhost:4443/media" {
		t.Errorf("expected server delivery URL, got %q", cfg.MediaDeliveryURL)
	}
}
