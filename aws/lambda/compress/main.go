package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"os"
	"strings"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-lambda-go/lambda"
	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/mediaconvert"
	"github.com/aws/aws-sdk-go/service/s3"

	"github.com/molpadia/molpastudio/internal/config"
	"github.com/molpadia/molpastudio/internal/domain/repository"
	"github.com/molpadia/molpastudio/internal/infrastructure/media"
	"github.com/molpadia/molpastudio/internal/infrastructure/persistence"
	"github.com/molpadia/molpastudio/internal/logging"
)

const (
	jobSettingPath = "job.json"
	// Only videos are compressed; images share the upload bucket.
	videoPrefix = "video-uploads/"
)

// The detail of a MediaConvert "Job State Change" event.
type jobStateDetail struct {
	Status             string            `json:"status"`
	JobId              string            `json:"jobId"`
	ErrorMessage       string            `json:"errorMessage"`
	UserMetadata       map[string]string `json:"userMetadata"`
	OutputGroupDetails []struct {
		OutputDetails []struct {
			OutputFilePaths []string `json:"outputFilePaths"`
		} `json:"outputDetails"`
	} `json:"outputGroupDetails"`
}

type handler struct {
	compressor *media.Compressor
	videos     repository.VideoRepository
}

// Handle dispatches S3 upload notifications and MediaConvert job state changes.
func (h *handler) Handle(ctx context.Context, raw json.RawMessage) error {
	var envelope struct {
		Records    []json.RawMessage `json:"Records"`
		DetailType string            `json:"detail-type"`
	}
	if err := json.Unmarshal(raw, &envelope); err != nil {
		return fmt.Errorf("cannot parse event: %w", err)
	}
	switch {
	case len(envelope.Records) > 0:
		var event events.S3Event
		if err := json.Unmarshal(raw, &event); err != nil {
			return fmt.Errorf("cannot parse S3 event: %w", err)
		}
		return h.compress(ctx, event)
	case envelope.DetailType != "":
		var event events.CloudWatchEvent
		if err := json.Unmarshal(raw, &event); err != nil {
			return fmt.Errorf("cannot parse job event: %w", err)
		}
		return h.record(ctx, event)
	default:
		logging.Warn("ignoring unrecognised event")
		return nil
	}
}

// Launch a compression job for each uploaded video.
func (h *handler) compress(ctx context.Context, event events.S3Event) error {
	for _, rec := range event.Records {
		key, err := url.QueryUnescape(rec.S3.Object.Key)
		if err != nil {
			return fmt.Errorf("invalid object key %q: %w", rec.S3.Object.Key, err)
		}
		if !strings.HasPrefix(key, videoPrefix) {
			logging.Debug("skipping %s", key)
			continue
		}
		if _, err := h.compressor.Start(ctx, rec.S3.Bucket.Name, key); err != nil {
			return err
		}
	}
	return nil
}

// Record the size of the compressed renditions of a completed job.
func (h *handler) record(ctx context.Context, event events.CloudWatchEvent) error {
	var detail jobStateDetail
	if err := json.Unmarshal(event.Detail, &detail); err != nil {
		return fmt.Errorf("cannot parse job detail: %w", err)
	}
	switch detail.Status {
	case "COMPLETE":
	case "ERROR":
		logging.Error("mediaconvert job %s for %s failed: %s", detail.JobId, detail.UserMetadata["publicId"], detail.ErrorMessage)
		return nil
	default:
		logging.Debug("mediaconvert job %s is %s", detail.JobId, detail.Status)
		return nil
	}
	for _, og := range detail.OutputGroupDetails {
		for _, od := range og.OutputDetails {
			for _, uri := range od.OutputFilePaths {
				if !strings.HasSuffix(uri, ".mp4") {
					logging.Debug("mediaconvert job %s wrote %s", detail.JobId, uri)
					continue
				}
				size, err := h.compressor.OutputSize(ctx, uri)
				if err != nil {
					return err
				}
				publicId, err := media.PublicIdFromOutput(uri)
				if err != nil {
					return err
				}
				if err := h.videos.UpdateCompressedSize(ctx, publicId, size); err != nil {
					return fmt.Errorf("failed to record compressed size of %s: %w", publicId, err)
				}
				logging.Info("video %s compressed to %d bytes", publicId, size)
			}
		}
	}
	return nil
}

// Read the metadata backend from the environment the API server uses.
// DynamoDB is the default.
func repositoryConfig() *config.Config {
	cfg := &config.Config{
		DBBackend:        strings.ToLower(os.Getenv("DB_BACKEND")),
		DBDSN:            os.Getenv("DB_DSN"),
		DynamoVideoTable: os.Getenv("DYNAMODB_TABLE"),
	}
	if cfg.DBBackend == "" {
		cfg.DBBackend = "dynamodb"
	}
	if cfg.DynamoVideoTable == "" {
		cfg.DynamoVideoTable = os.Getenv("AWS_DB_VOD_NAME")
	}
	return cfg
}

func main() {
	js, err := media.LoadJobSettings(jobSettingPath)
	if err != nil {
		logging.Fatal("%v", err)
	}
	sess := session.Must(session.NewSession())
	mc := mediaconvert.New(sess, &aws.Config{
		Endpoint: aws.String(os.Getenv("AWS_VOD_MEDIACONVERT_URL")),
	})
	cfg := repositoryConfig()
	repos, err := persistence.Open(context.Background(), cfg, sess)
	if err != nil {
		logging.Fatal("failed to open %s backend: %v", cfg.DBBackend, err)
	}
	h := &handler{
		compressor: media.NewCompressor(mc, s3.New(sess), os.Getenv("AWS_VOD_ROLE_ARN"), os.Getenv("AWS_VOD_DELIVERY_BUCKET"), js),
		videos:     repos.Videos,
	}
	lambda.Start(h.Handle)
}
