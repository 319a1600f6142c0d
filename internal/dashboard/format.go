package dashboard

import (
	"fmt"
	"math"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/molpadia/molpastudio/internal/domain/entity"
)

// FormatDuration renders seconds as "m:ss", or "Unknown".
func FormatDuration(d entity.Seconds) string {
	if !d.Known() {
		return "Unknown"
	}
	total := int64(math.Round(float64(d)))
	return fmt.Sprintf("%d:%02d", total/60, total%60)
}

func FormatSize(s entity.Size) string {
	if s < 0 {
		return "Unknown"
	}
	return humanize.Bytes(uint64(s))
}

// FormatUploaded renders the upload time relative to now, e.g. "Uploaded 3 days ago".
func FormatUploaded(t, now time.Time) string {
	return "Uploaded " + humanize.RelTime(t, now, "ago", "from now")
}

func FormatCompression(v *entity.Video) string {
	return fmt.Sprintf("%d%%", v.CompressionPercentage())
}
