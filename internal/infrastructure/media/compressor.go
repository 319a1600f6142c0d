package media

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/service/mediaconvert"
	"github.com/aws/aws-sdk-go/service/mediaconvert/mediaconvertiface"
	"github.com/aws/aws-sdk-go/service/s3"
	"github.com/aws/aws-sdk-go/service/s3/s3iface"

	"github.com/molpadia/molpastudio/internal/logging"
)

// Get URI path for a file stored in S3 bucket.
func S3Path(bucket, key string) string {
	return fmt.Sprintf("s3://%s/%s", bucket, key)
}

// Split an s3:// URI into bucket and key.
func ParseS3Path(uri string) (bucket, key string, err error) {
	rest := strings.TrimPrefix(uri, "s3://")
	if rest == uri {
		return "", "", fmt.Errorf("not an s3 uri: %q", uri)
	}
	i := strings.Index(rest, "/")
	if i <= 0 || i == len(rest)-1 {
		return "", "", fmt.Errorf("invalid s3 uri: %q", uri)
	}
	return rest[:i], rest[i+1:], nil
}

// Load the configuration of mediaconvert job settings.
func LoadJobSettings(path string) (*mediaconvert.JobSettings, error) {
	buf, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to load job setting file: %w", err)
	}
	var js mediaconvert.JobSettings
	if err := json.Unmarshal(buf, &js); err != nil {
		return nil, fmt.Errorf("failed to unmarshal job settings: %w", err)
	}
	if len(js.Inputs) == 0 || len(js.OutputGroups) == 0 {
		return nil, errors.New("job settings need at least one input and one output group")
	}
	return &js, nil
}

// Compressor launches MediaConvert jobs that write a compressed MP4 rendition of
// each upload to the delivery bucket, and reads back the rendition's size.
type Compressor struct {
	mc             mediaconvertiface.MediaConvertAPI
	s3             s3iface.S3API
	role           string
	settings       *mediaconvert.JobSettings
	deliveryBucket string
}

func NewCompressor(mc mediaconvertiface.MediaConvertAPI, s3 s3iface.S3API, role, deliveryBucket string, settings *mediaconvert.JobSettings) *Compressor {
	return &Compressor{mc: mc, s3: s3, role: role, settings: settings, deliveryBucket: deliveryBucket}
}

// Start a compression job for the object uploaded to bucket/key.
func (c *Compressor) Start(ctx context.Context, bucket, key string) (string, error) {
	js, err := c.jobSettings(bucket, key)
	if err != nil {
		return "", err
	}
	out, err := c.mc.CreateJobWithContext(ctx, &mediaconvert.CreateJobInput{
		Role:     aws.String(c.role),
		Settings: js,
		UserMetadata: aws.StringMap(map[string]string{
			"publicId": key,
		}),
	})
	if err != nil {
		return "", fmt.Errorf("failed to launch mediaconvert job: %w", err)
	}
	id := aws.StringValue(out.Job.Id)
	logging.Info("mediaconvert job %s launched for %s", id, key)
	return id, nil
}

// Copy the template settings and point them at the given input and the delivery bucket.
func (c *Compressor) jobSettings(bucket, key string) (*mediaconvert.JobSettings, error) {
	buf, err := json.Marshal(c.settings)
	if err != nil {
		return nil, err
	}
	var js mediaconvert.JobSettings
	if err := json.Unmarshal(buf, &js); err != nil {
		return nil, err
	}
	js.Inputs[0].FileInput = aws.String(S3Path(bucket, key))
	og := js.OutputGroups[0].OutputGroupSettings
	if og == nil || og.FileGroupSettings == nil {
		return nil, errors.New("job settings need a file group output")
	}
	og.FileGroupSettings.Destination = aws.String(S3Path(c.deliveryBucket, key))
	return &js, nil
}

// Size of the compressed rendition at the given s3:// URI.
func (c *Compressor) OutputSize(ctx context.Context, uri string) (int64, error) {
	bucket, key, err := ParseS3Path(uri)
	if err != nil {
		return 0, err
	}
	out, err := c.s3.HeadObjectWithContext(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return 0, fmt.Errorf("failed to head %s: %w", uri, err)
	}
	return aws.Int64Value(out.ContentLength), nil
}

// PublicIdFromOutput maps a rendition URI back to the media reference of its source.
func PublicIdFromOutput(uri string) (string, error) {
	_, key, err := ParseS3Path(uri)
	if err != nil {
		return "", err
	}
	return strings.TrimSuffix(key, ".mp4"), nil
}
