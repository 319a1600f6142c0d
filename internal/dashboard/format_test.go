package dashboard

import (
	"math"
	"testing"
	"time"

	"github.com/molpadia/molpastudio/internal/domain/entity"
)

func TestFormatDuration(t *testing.T) {
	tests := []struct {
		in   entity.Seconds
		want string
	}{
		{0, "0:00"},
		{5.4, "0:05"},
		{65, "1:05"},
		{59.6, "1:00"},
		{3600, "60:00"},
		{-1, "Unknown"},
		{entity.Seconds(math.NaN()), "Unknown"},
	}
	for _, tt := range tests {
		if got := FormatDuration(tt.in); got != tt.want {
			t.Errorf("FormatDuration(%v) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestFormatSize(t *testing.T) {
	if got := FormatSize(1500000); got != "1.5 MB" {
		t.Errorf("FormatSize(1500000) = %q", got)
	}
	if got := FormatSize(-1); got != "Unknown" {
		t.Errorf("FormatSize(-1) = %q", got)
	}
}

func TestFormatUploaded(t *testing.T) {
	now := time.Now()
	if got := FormatUploaded(now.Add(-72*time.Hour), now); got != "Uploaded 3 days ago" {
		t.Errorf("FormatUploaded() = %q", got)
	}
}

func TestFormatCompression(t *testing.T) {
	v := &entity.Video{OriginalSize: 1000, CompressedSize: 250}
	if got := FormatCompression(v); got != "75%" {
		t.Errorf("FormatCompression() = %q", got)
	}
}
