package entity

import (
	"bytes"
	"encoding/json"
	"math"
	"strconv"
	"time"
)

const (
	AssetKindVideo = "video"
	AssetKindImage = "image"
)

// UnknownDuration marks a video whose length the media service did not report.
const UnknownDuration Seconds = -1

// The entity of an uploaded video.
type Video struct {
	Id             string    `json:"id"`
	PublicId       string    `json:"publicId"`
	Title          string    `json:"title"`
	Description    string    `json:"description,omitempty"`
	OriginalSize   Size      `json:"originalSize"`
	CompressedSize Size      `json:"compressedSize"`
	Duration       Seconds   `json:"duration"`
	CreatedAt      time.Time `json:"createdAt"`
	UpdatedAt      time.Time `json:"updatedAt"`
}

func NewVideo(id, publicId, title, description string, originalSize, compressedSize int64, duration float64, now time.Time) *Video {
	d := Seconds(duration)
	if !d.Known() {
		d = UnknownDuration
	}
	return &Video{
		Id:             id,
		PublicId:       publicId,
		Title:          title,
		Description:    description,
		OriginalSize:   Size(originalSize),
		CompressedSize: Size(compressedSize),
		Duration:       d,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
}

// Get the percentage saved by compression, rounded to the nearest integer.
// A zero original size yields zero.
func (v *Video) CompressionPercentage() int {
	if v.OriginalSize <= 0 {
		return 0
	}
	return int(math.Round((1 - float64(v.CompressedSize)/float64(v.OriginalSize)) * 100))
}

// Size is a byte count. It is encoded as a JSON string and decoded from
// either a string or a number.
type Size int64

func (s Size) MarshalJSON() ([]byte, error) {
	return json.Marshal(strconv.FormatInt(int64(s), 10))
}

func (s *Size) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if bytes.Equal(b, []byte("null")) {
		*s = 0
		return nil
	}
	if len(b) > 0 && b[0] == '"' {
		var str string
		if err := json.Unmarshal(b, &str); err != nil {
			return err
		}
		if str == "" {
			*s = 0
			return nil
		}
		b = []byte(str)
	}
	n, err := strconv.ParseFloat(string(b), 64)
	if err != nil {
		return err
	}
	*s = Size(n)
	return nil
}

// Seconds is a video duration. Negative or non-numeric values mean unknown.
type Seconds float64

func (d Seconds) Known() bool {
	f := float64(d)
	return !math.IsNaN(f) && !math.IsInf(f, 0) && f >= 0
}

func (d *Seconds) UnmarshalJSON(b []byte) error {
	var v interface{}
	if err := json.Unmarshal(b, &v); err != nil {
		return err
	}
	*d = UnknownDuration
	switch x := v.(type) {
	case float64:
		*d = Seconds(x)
	case string:
		if f, err := strconv.ParseFloat(x, 64); err == nil {
			*d = Seconds(f)
		}
	}
	return nil
}
