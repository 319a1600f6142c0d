package media

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/s3"
	"github.com/aws/aws-sdk-go/service/s3/s3iface"
	"github.com/aws/aws-sdk-go/service/s3/s3manager"
	"github.com/aws/aws-sdk-go/service/s3/s3manager/s3manageriface"
	"github.com/google/uuid"

	"github.com/molpadia/molpastudio/internal/domain/entity"
	"github.com/molpadia/molpastudio/internal/domain/repository"
	"github.com/molpadia/molpastudio/internal/logging"
	"github.com/molpadia/molpastudio/internal/mediaurl"
	"github.com/molpadia/molpastudio/internal/metrics"
)

// PresignExpiry is how long a delivery redirect stays valid.
const PresignExpiry = 15 * time.Minute

// S3Store keeps originals in the upload bucket. The compression job writes a
// compressed rendition and a thumbnail frame of each video to the delivery
// bucket, see CompressedKey and ThumbnailKey.
type S3Store struct {
	uploader       s3manageriface.UploaderAPI
	s3             s3iface.S3API
	bucket         string
	deliveryBucket string
}

var _ repository.MediaStore = (*S3Store)(nil)

func NewS3Store(sess *session.Session, bucket, deliveryBucket string) *S3Store {
	return &S3Store{
		uploader:       s3manager.NewUploader(sess),
		s3:             s3.New(sess),
		bucket:         bucket,
		deliveryBucket: deliveryBucket,
	}
}

// Upload an entire file to the upload bucket. The manager splits large bodies
// into a multipart upload.
func (s *S3Store) Upload(ctx context.Context, folder, kind, filename string, body io.Reader) (*entity.Asset, error) {
	start := time.Now()
	defer func() { metrics.MediaServiceDuration.WithLabelValues("upload").Observe(time.Since(start).Seconds()) }()

	publicId := newPublicId(folder)
	cr := &countingReader{r: body}
	input := &s3manager.UploadInput{
		Bucket:   aws.String(s.bucket),
		Key:      aws.String(publicId),
		Body:     cr,
		Metadata: aws.StringMap(map[string]string{"kind": kind, "filename": filename}),
	}
	if ct := contentType(filename); ct != "" {
		input.ContentType = aws.String(ct)
	}
	out, err := s.uploader.UploadWithContext(ctx, input)
	if err != nil {
		return nil, fmt.Errorf("failed to upload %s to S3: %w", publicId, err)
	}
	logging.Debug("uploaded %s (%d bytes) to %s", publicId, cr.n, out.Location)
	return &entity.Asset{
		PublicId: publicId,
		Kind:     kind,
		Bytes:    cr.n, // Replaced by the compressed size once the job completes.
		Duration: float64(entity.UnknownDuration),
		URL:      out.Location,
	}, nil
}

// Destroy the original and the renditions the compression job made of it.
func (s *S3Store) Destroy(ctx context.Context, publicId, kind string) error {
	start := time.Now()
	defer func() { metrics.MediaServiceDuration.WithLabelValues("destroy").Observe(time.Since(start).Seconds()) }()

	_, err := s.s3.DeleteObjectWithContext(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(publicId),
	})
	if err != nil {
		return fmt.Errorf("failed to delete %s from S3: %w", publicId, err)
	}
	if s.deliveryBucket == "" || kind != entity.AssetKindVideo {
		return nil
	}
	for _, key := range []string{CompressedKey(publicId), ThumbnailKey(publicId)} {
		_, err = s.s3.DeleteObjectWithContext(ctx, &s3.DeleteObjectInput{
			Bucket: aws.String(s.deliveryBucket),
			Key:    aws.String(key),
		})
		if err != nil {
			return fmt.Errorf("failed to delete rendition %s: %w", key, err)
		}
	}
	return nil
}

// ServeHTTP redirects a delivery URL to a presigned GET of the object backing
// it: the thumbnail frame for thumbnails, the compressed rendition for preview
// clips and downloads. Until the compression job has written them, the
// original upload is served.
func (s *S3Store) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	ref, intent, ok := mediaurl.Parse(r.URL.Path)
	if !ok {
		http.NotFound(w, r)
		return
	}
	bucket, key := s.deliveryObject(r.Context(), ref, intent)
	req, _ := s.s3.GetObjectRequest(&s3.GetObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	})
	u, err := req.Presign(PresignExpiry)
	if err != nil {
		logging.Error("failed to presign %s/%s: %v", bucket, key, err)
		http.Error(w, "media unavailable", http.StatusInternalServerError)
		return
	}
	http.Redirect(w, r, u, http.StatusFound)
}

// Pick the rendition for the intent if it exists, else the original.
func (s *S3Store) deliveryObject(ctx context.Context, ref string, intent mediaurl.Intent) (string, string) {
	if s.deliveryBucket == "" {
		return s.bucket, ref
	}
	key := CompressedKey(ref)
	if intent == mediaurl.IntentThumbnail {
		key = ThumbnailKey(ref)
	}
	_, err := s.s3.HeadObjectWithContext(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(s.deliveryBucket),
		Key:    aws.String(key),
	})
	if err != nil {
		logging.Debug("serving original of %s: %v", ref, err)
		return s.bucket, ref
	}
	return s.deliveryBucket, key
}

// CompressedKey is the delivery bucket key of a video's compressed rendition.
func CompressedKey(publicId string) string { return publicId + ".mp4" }

// ThumbnailKey is the delivery bucket key of the frame captured from a video.
// MediaConvert names frame captures <name><modifier>.<sequence>.jpg.
func ThumbnailKey(publicId string) string { return publicId + "_thumbnail.0000000.jpg" }

func newPublicId(folder string) string {
	id := uuid.New().String()
	if folder == "" {
		return id
	}
	return folder + "/" + id
}

type countingReader struct {
	r io.Reader
	n int64
}

func (c *countingReader) Read(p []byte) (int, error) {
	n, err := c.r.Read(p)
	c.n += int64(n)
	return n, err
}
