package media

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/molpadia/molpastudio/internal/domain/entity"
	"github.com/molpadia/molpastudio/internal/domain/repository"
	"github.com/molpadia/molpastudio/internal/httprange"
	"github.com/molpadia/molpastudio/internal/logging"
	"github.com/molpadia/molpastudio/internal/mediaurl"
)

// LocalStore keeps assets in a directory. It applies no transformations:
// every delivery URL of a reference serves the stored original.
type LocalStore struct {
	dir string
}

var _ repository.MediaStore = (*LocalStore)(nil)

func NewLocalStore(dir string) (*LocalStore, error) {
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, fmt.Errorf("failed to create media directory: %w", err)
	}
	return &LocalStore{dir: dir}, nil
}

// Resolve a media reference to a path inside the store directory.
func (s *LocalStore) path(publicId string) (string, error) {
	clean := path.Clean("/" + publicId)
	if clean == "/" || strings.Contains(publicId, "\\") {
		return "", fmt.Errorf("invalid media reference %q", publicId)
	}
	return filepath.Join(s.dir, filepath.FromSlash(clean)), nil
}

func (s *LocalStore) Upload(ctx context.Context, folder, kind, filename string, body io.Reader) (*entity.Asset, error) {
	publicId := newPublicId(folder)
	p, err := s.path(publicId)
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(filepath.Dir(p), 0o750); err != nil {
		return nil, err
	}
	f, err := os.OpenFile(p, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o640)
	if err != nil {
		return nil, err
	}
	n, err := io.Copy(f, &contextReader{ctx, body})
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		os.Remove(p)
		return nil, fmt.Errorf("failed to store %s: %w", publicId, err)
	}
	if ct := contentType(filename); ct != "" {
		if err := os.WriteFile(p+".type", []byte(ct), 0o640); err != nil {
			logging.Warn("failed to record content type of %s: %v", publicId, err)
		}
	}
	return &entity.Asset{
		PublicId: publicId,
		Kind:     kind,
		Bytes:    n,
		Duration: float64(entity.UnknownDuration),
	}, nil
}

// Destroy removes the asset. Destroying a missing asset is not an error.
func (s *LocalStore) Destroy(ctx context.Context, publicId, kind string) error {
	p, err := s.path(publicId)
	if err != nil {
		return err
	}
	for _, name := range []string{p, p + ".type"} {
		if err := os.Remove(name); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("failed to destroy %s: %w", publicId, err)
		}
	}
	return nil
}

// ServeHTTP delivers assets addressed by mediaurl URLs, honouring a single
// byte range.
func (s *LocalStore) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	ref, ok := mediaurl.Reference(r.URL.Path)
	if !ok {
		http.NotFound(w, r)
		return
	}
	p, err := s.path(ref)
	if err != nil {
		http.NotFound(w, r)
		return
	}
	f, err := os.Open(p)
	if err != nil {
		http.NotFound(w, r)
		return
	}
	defer f.Close()
	fi, err := f.Stat()
	if err != nil || fi.IsDir() {
		http.NotFound(w, r)
		return
	}

	ct := "application/octet-stream"
	if b, err := os.ReadFile(p + ".type"); err == nil {
		ct = string(b)
	}
	w.Header().Set("Content-Type", ct)
	w.Header().Set("Accept-Ranges", "bytes")

	size := fi.Size()
	ranges, err := httprange.ParseRange(r.Header.Get("Range"), size)
	if err != nil || len(ranges) > 1 {
		w.Header().Set("Content-Range", "bytes */"+strconv.FormatInt(size, 10))
		http.Error(w, "requested range not satisfiable", http.StatusRequestedRangeNotSatisfiable)
		return
	}
	status, start, length := http.StatusOK, int64(0), size
	if len(ranges) == 1 {
		status, start, length = http.StatusPartialContent, ranges[0].Start, ranges[0].Length
		w.Header().Set("Content-Range", fmt.Sprintf("bytes %d-%d/%d", start, start+length-1, size))
	}
	w.Header().Set("Content-Length", strconv.FormatInt(length, 10))
	w.WriteHeader(status)
	if r.Method == http.MethodHead {
		return
	}
	if _, err := f.Seek(start, io.SeekStart); err != nil {
		return
	}
	if _, err := io.CopyN(w, f, length); err != nil {
		logging.Debug("delivery of %s interrupted: %v", ref, err)
	}
}

// Stops a copy once the context is done.
type contextReader struct {
	ctx context.Context
	r   io.Reader
}

func (c *contextReader) Read(p []byte) (int, error) {
	if err := c.ctx.Err(); err != nil {
		return 0, err
	}
	return c.r.Read(p)
}
