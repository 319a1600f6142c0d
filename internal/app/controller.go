package app

import (
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/molpadia/molpastudio/internal/auth"
	"github.com/molpadia/molpastudio/internal/domain/entity"
	"github.com/molpadia/molpastudio/internal/domain/repository"
	"github.com/molpadia/molpastudio/internal/logging"
	"github.com/molpadia/molpastudio/internal/mediaurl"
	"github.com/molpadia/molpastudio/internal/metrics"
)

const (
	videoFolder = "video-uploads"
	imageFolder = "image-uploads"
	// Multipart parts above this size are spooled to disk.
	maxFormMemory = 32 << 20
)

type controller struct {
	videos        repository.VideoRepository
	users         repository.UserRepository
	media         repository.MediaStore
	sessions      *auth.Sessions
	resolver      *mediaurl.Resolver
	maxUploadSize int64
	secureCookies bool
	now           func() time.Time
}

// List all videos, newest first.
func (c *controller) listVideos(w http.ResponseWriter, r *http.Request) error {
	videos, err := c.videos.List(r.Context())
	if err != nil {
		logging.Error("failed to list videos: %v", err)
		return &AppError{http.StatusInternalServerError, "Error fetching videos"}
	}
	if videos == nil {
		videos = []*entity.Video{}
	}
	return replyJSON(w, videos, http.StatusOK)
}

// Delete the video by the video ID. The media asset is destroyed before the
// record so a failure never leaves a record pointing at nothing.
func (c *controller) deleteVideo(w http.ResponseWriter, r *http.Request) error {
	var data DeleteVideoRequest
	if err := parseJSON(w, r, &data); err != nil || data.Id == "" {
		return &AppError{http.StatusBadRequest, "Video ID not provided"}
	}

	video, err := c.videos.GetById(r.Context(), data.Id)
	if err != nil {
		logging.Error("failed to get video %s: %v", data.Id, err)
		metrics.VideoDeletesTotal.WithLabelValues("failure").Inc()
		return &AppError{http.StatusInternalServerError, "Failed to delete video"}
	}
	if video == nil {
		metrics.VideoDeletesTotal.WithLabelValues("not_found").Inc()
		return &AppError{http.StatusNotFound, "Video not found"}
	}
	if err := c.media.Destroy(r.Context(), video.PublicId, entity.AssetKindVideo); err != nil {
		logging.Error("failed to destroy asset %s: %v", video.PublicId, err)
		metrics.VideoDeletesTotal.WithLabelValues("failure").Inc()
		return &AppError{http.StatusInternalServerError, "Failed to delete video"}
	}
	if err := c.videos.Delete(r.Context(), video.Id); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			metrics.VideoDeletesTotal.WithLabelValues("not_found").Inc()
			return &AppError{http.StatusNotFound, "Video not found"}
		}
		logging.Error("failed to delete video %s: %v", video.Id, err)
		metrics.VideoDeletesTotal.WithLabelValues("failure").Inc()
		return &AppError{http.StatusInternalServerError, "Failed to delete video"}
	}
	metrics.VideoDeletesTotal.WithLabelValues("success").Inc()
	logging.Info("video %s (%s) deleted by %s", video.Id, video.PublicId, UserId(r))
	return replyJSON(w, MessageResponse{"Video deleted successfully"}, http.StatusOK)
}

// Upload a video and create its record.
func (c *controller) uploadVideo(w http.ResponseWriter, r *http.Request) error {
	if UserId(r) == "" {
		return &AppError{http.StatusUnauthorized, "unauthorized"}
	}
	if err := c.parseForm(w, r); err != nil {
		return err
	}
	defer r.MultipartForm.RemoveAll()

	file, header, err := r.FormFile("file")
	if err != nil {
		return &AppError{http.StatusBadRequest, "file not found"}
	}
	defer file.Close()

	title := strings.TrimSpace(r.FormValue("title"))
	if title == "" {
		return &AppError{http.StatusBadRequest, "title is required"}
	}
	originalSize := header.Size
	if s := r.FormValue("originalSize"); s != "" {
		n, err := strconv.ParseInt(s, 10, 64)
		if err != nil || n < 0 {
			return &AppError{http.StatusBadRequest, "originalSize must be a non-negative integer"}
		}
		originalSize = n
	}

	asset, err := c.media.Upload(r.Context(), videoFolder, entity.AssetKindVideo, header.Filename, file)
	if err != nil {
		logging.Error("failed to upload video %q: %v", header.Filename, err)
		metrics.VideoUploadsTotal.WithLabelValues("failure").Inc()
		return &AppError{http.StatusInternalServerError, "upload video failed"}
	}

	video := entity.NewVideo(uuid.New().String(), asset.PublicId, title, strings.TrimSpace(r.FormValue("description")),
		originalSize, asset.Bytes, asset.Duration, c.now())
	if err := c.videos.Save(r.Context(), video); err != nil {
		logging.Error("failed to save video %s: %v", video.Id, err)
		if derr := c.media.Destroy(r.Context(), asset.PublicId, entity.AssetKindVideo); derr != nil {
			logging.Warn("failed to remove orphaned asset %s: %v", asset.PublicId, derr)
		}
		metrics.VideoUploadsTotal.WithLabelValues("failure").Inc()
		return &AppError{http.StatusInternalServerError, "upload video failed"}
	}

	metrics.VideoUploadsTotal.WithLabelValues("success").Inc()
	metrics.VideoUploadBytes.WithLabelValues("original").Add(float64(originalSize))
	metrics.VideoUploadBytes.WithLabelValues("compressed").Add(float64(asset.Bytes))
	logging.Info("video %s uploaded as %s (%d bytes)", video.Id, video.PublicId, originalSize)
	return replyJSON(w, video, http.StatusOK)
}

// Upload an image and reply its media reference.
func (c *controller) uploadImage(w http.ResponseWriter, r *http.Request) error {
	if UserId(r) == "" {
		return &AppError{http.StatusUnauthorized, "unauthorized"}
	}
	if err := c.parseForm(w, r); err != nil {
		return err
	}
	defer r.MultipartForm.RemoveAll()

	file, header, err := r.FormFile("file")
	if err != nil {
		return &AppError{http.StatusBadRequest, "file not found"}
	}
	defer file.Close()

	asset, err := c.media.Upload(r.Context(), imageFolder, entity.AssetKindImage, header.Filename, file)
	if err != nil {
		logging.Error("failed to upload image %q: %v", header.Filename, err)
		return &AppError{http.StatusInternalServerError, "upload image failed"}
	}
	return replyJSON(w, ImageResponse{asset.PublicId}, http.StatusOK)
}

// Parse a multipart body no larger than the upload limit.
func (c *controller) parseForm(w http.ResponseWriter, r *http.Request) error {
	r.Body = http.MaxBytesReader(w, r.Body, c.maxUploadSize)
	if err := r.ParseMultipartForm(maxFormMemory); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return &AppError{http.StatusRequestEntityTooLarge, "File size too large"}
		}
		return &AppError{http.StatusBadRequest, "file not found"}
	}
	return nil
}
