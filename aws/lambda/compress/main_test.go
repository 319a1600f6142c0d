package main

import (
	"context"
	"encoding/json"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/request"
	"github.com/aws/aws-sdk-go/service/mediaconvert"
	"github.com/aws/aws-sdk-go/service/mediaconvert/mediaconvertiface"
	"github.com/aws/aws-sdk-go/service/s3"
	"github.com/aws/aws-sdk-go/service/s3/s3iface"

	"github.com/molpadia/molpastudio/internal/domain/entity"
	"github.com/molpadia/molpastudio/internal/infrastructure/media"
	"github.com/molpadia/molpastudio/internal/infrastructure/persistence"
)

const uploadEvent = `{"Records":[
  {"eventSource":"aws:s3","s3":{"bucket":{"name":"uploads"},"object":{"key":"video-uploads/abc","size":2048}}},
  {"eventSource":"aws:s3","s3":{"bucket":{"name":"uploads"},"object":{"key":"image-uploads/def","size":10}}}
]}`

const completeEvent = `{"detail-type":"MediaConvert Job State Change","source":"aws.mediaconvert","detail":{
  "status":"COMPLETE","jobId":"job-1","userMetadata":{"publicId":"video-uploads/abc"},
  "outputGroupDetails":[{"outputDetails":[
    {"outputFilePaths":["s3://delivery/video-uploads/abc.mp4"]},
    {"outputFilePaths":["s3://delivery/video-uploads/abc_thumbnail.0000000.jpg"]}
  ]}]
}}`

const errorEvent = `{"detail-type":"MediaConvert Job State Change","source":"aws.mediaconvert","detail":{
  "status":"ERROR","jobId":"job-1","errorMessage":"bad input","userMetadata":{"publicId":"video-uploads/abc"}
}}`

func newTestHandler(t *testing.T) (*handler, *mockMediaConvert, *mockVideoRepository) {
	t.Helper()
	js, err := media.LoadJobSettings("job.json")
	if err != nil {
		t.Fatal(err)
	}
	mc := &mockMediaConvert{}
	videos := &mockVideoRepository{sizes: map[string]int64{}}
	return &handler{
		compressor: media.NewCompressor(mc, &mockS3{size: 512}, "arn:role", "delivery", js),
		videos:     videos,
	}, mc, videos
}

func TestHandleUploadEvent(t *testing.T) {
	h, mc, _ := newTestHandler(t)
	if err := h.Handle(context.Background(), json.RawMessage(uploadEvent)); err != nil {
		t.Fatal(err)
	}
	if len(mc.inputs) != 1 {
		t.Fatalf("expected one job for the video upload, got %d", len(mc.inputs))
	}
	if got := aws.StringValue(mc.inputs[0].Settings.Inputs[0].FileInput); got != "s3://uploads/video-uploads/abc" {
		t.Errorf("unexpected job input %q", got)
	}
}

func TestHandleJobEvents(t *testing.T) {
	h, _, videos := newTestHandler(t)
	if err := h.Handle(context.Background(), json.RawMessage(errorEvent)); err != nil {
		t.Fatal(err)
	}
	if len(videos.sizes) != 0 {
		t.Errorf("expected failed job to record nothing, got %v", videos.sizes)
	}
	if err := h.Handle(context.Background(), json.RawMessage(completeEvent)); err != nil {
		t.Fatal(err)
	}
	if len(videos.sizes) != 1 || videos.sizes["video-uploads/abc"] != 512 {
		t.Errorf("expected only the rendition size 512 to be recorded, got %v", videos.sizes)
	}

	videos.err = errors.New("throttled")
	if err := h.Handle(context.Background(), json.RawMessage(completeEvent)); err == nil {
		t.Error("expected repository failure to be returned for retry")
	}
}

func TestHandleUnknownEvent(t *testing.T) {
	h, _, _ := newTestHandler(t)
	if err := h.Handle(context.Background(), json.RawMessage(`{}`)); err != nil {
		t.Errorf("expected unknown events to be ignored, got %v", err)
	}
	if err := h.Handle(context.Background(), json.RawMessage(`[`)); err == nil {
		t.Error("expected malformed event to fail")
	}
}

func TestRepositoryConfig(t *testing.T) {
	t.Setenv("DB_BACKEND", "")
	t.Setenv("DYNAMODB_TABLE", "")
	t.Setenv("AWS_DB_VOD_NAME", "vod")
	if cfg := repositoryConfig(); cfg.DBBackend != "dynamodb" || cfg.DynamoVideoTable != "vod" {
		t.Errorf("unexpected defaults %+v", cfg)
	}
	t.Setenv("DB_BACKEND", "Postgres")
	t.Setenv("DB_DSN", "postgres://db/videos")
	if cfg := repositoryConfig(); cfg.DBBackend != "postgres" || cfg.DBDSN != "postgres://db/videos" {
		t.Errorf("expected the postgres backend, got %+v", cfg)
	}
}

func TestHandleJobEventsWithSQLBackend(t *testing.T) {
	t.Setenv("DB_BACKEND", "sqlite")
	t.Setenv("DB_DSN", filepath.Join(t.TempDir(), "videos.db"))
	ctx := context.Background()
	repos, err := persistence.Open(ctx, repositoryConfig(), nil)
	if err != nil {
		t.Fatal(err)
	}
	defer repos.Close()
	if err := repos.Videos.Save(ctx, entity.NewVideo("1", "video-uploads/abc", "Cat", "", 2048, 2048, 3, time.Now())); err != nil {
		t.Fatal(err)
	}

	h, _, _ := newTestHandler(t)
	h.videos = repos.Videos
	if err := h.Handle(ctx, json.RawMessage(completeEvent)); err != nil {
		t.Fatal(err)
	}
	v, err := repos.Videos.GetById(ctx, "1")
	if err != nil || v == nil || v.CompressedSize != 512 {
		t.Errorf("expected compressed size 512 in the SQL store, got %+v, %v", v, err)
	}
}

type mockMediaConvert struct {
	mediaconvertiface.MediaConvertAPI
	inputs []*mediaconvert.CreateJobInput
}

func (m *mockMediaConvert) CreateJobWithContext(ctx aws.Context, in *mediaconvert.CreateJobInput, opts ...request.Option) (*mediaconvert.CreateJobOutput, error) {
	m.inputs = append(m.inputs, in)
	return &mediaconvert.CreateJobOutput{Job: &mediaconvert.Job{Id: aws.String("job-1")}}, nil
}

type mockS3 struct {
	s3iface.S3API
	size int64
}

func (m *mockS3) HeadObjectWithContext(ctx aws.Context, in *s3.HeadObjectInput, opts ...request.Option) (*s3.HeadObjectOutput, error) {
	return &s3.HeadObjectOutput{ContentLength: aws.Int64(m.size)}, nil
}

type mockVideoRepository struct {
	sizes map[string]int64
	err   error
}

func (m *mockVideoRepository) List(ctx context.Context) ([]*entity.Video, error) { return nil, nil }

func (m *mockVideoRepository) GetById(ctx context.Context, id string) (*entity.Video, error) {
	return nil, nil
}

func (m *mockVideoRepository) Save(ctx context.Context, v *entity.Video) error { return nil }

func (m *mockVideoRepository) Delete(ctx context.Context, id string) error { return nil }

func (m *mockVideoRepository) UpdateCompressedSize(ctx context.Context, publicId string, size int64) error {
	if m.err != nil {
		return m.err
	}
	m.sizes[publicId] = size
	return nil
}
