package app

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/molpadia/molpastudio/internal/auth"
	"github.com/molpadia/molpastudio/internal/domain/entity"
	"github.com/molpadia/molpastudio/internal/domain/repository"
	"github.com/molpadia/molpastudio/internal/mediaurl"
)

var testTime = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

func newTestController(videos *mockVideoRepository, media *mockMediaStore) *controller {
	return &controller{
		videos:        videos,
		users:         newMockUserRepository(),
		media:         media,
		sessions:      auth.NewSessions("0123456789abcdef", time.Hour),
		resolver:      mediaurl.NewResolver("https://media.example.com/demo"),
		maxUploadSize: 1 << 20,
		now:           func() time.Time { return testTime },
	}
}

// Attach a signed-in user to the request as the gate does.
func signedIn(r *http.Request) *http.Request {
	return r.WithContext(context.WithValue(r.Context(), userIdKey, "user-1"))
}

func appErrorCode(err error) int {
	var e *AppError
	if errors.As(err, &e) {
		return e.Code
	}
	if err != nil {
		return http.StatusInternalServerError
	}
	return http.StatusOK
}

func TestListVideos(t *testing.T) {
	tests := []struct {
		videos   []*entity.Video
		err      error
		code     int
		expected string
	}{
		{nil, nil, http.StatusOK, "[]"},
		{[]*entity.Video{entity.NewVideo("1", "video-uploads/a", "Cat", "", 10, 5, 1.5, testTime)}, nil, http.StatusOK, `"publicId":"video-uploads/a"`},
		{nil, errors.New("db down"), http.StatusInternalServerError, ""},
	}
	for _, tt := range tests {
		c := newTestController(&mockVideoRepository{videos: tt.videos, listErr: tt.err}, &mockMediaStore{})
		w := httptest.NewRecorder()
		err := c.listVideos(w, httptest.NewRequest("GET", "/api/videos", nil))
		if code := appErrorCode(err); code != tt.code {
			t.Errorf("expected code %d, got %d (%v)", tt.code, code, err)
		}
		if tt.expected != "" && !strings.Contains(w.Body.String(), tt.expected) {
			t.Errorf("expected body to contain %s, got %s", tt.expected, w.Body.String())
		}
	}
}

func TestDeleteVideo(t *testing.T) {
	video := entity.NewVideo("1", "video-uploads/a", "Cat", "", 10, 5, 1.5, testTime)
	tests := []struct {
		body       string
		video      *entity.Video
		getErr     error
		destroyErr error
		deleteErr  error
		code       int
		message    string
		calls      string
	}{
		{`{}`, nil, nil, nil, nil, http.StatusBadRequest, "Video ID not provided", ""},
		{`not json`, nil, nil, nil, nil, http.StatusBadRequest, "Video ID not provided", ""},
		{`{"id":"1"}`, nil, nil, nil, nil, http.StatusNotFound, "Video not found", ""},
		{`{"id":"1"}`, nil, errors.New("db down"), nil, nil, http.StatusInternalServerError, "Failed to delete video", ""},
		{`{"id":"1"}`, video, nil, errors.New("media down"), nil, http.StatusInternalServerError, "Failed to delete video", "destroy"},
		{`{"id":"1"}`, video, nil, nil, errors.New("db down"), http.StatusInternalServerError, "Failed to delete video", "destroy,delete"},
		{`{"id":"1"}`, video, nil, nil, repository.ErrNotFound, http.StatusNotFound, "Video not found", "destroy,delete"},
		{`{"id":"1"}`, video, nil, nil, nil, http.StatusOK, "Video deleted successfully", "destroy,delete"},
	}
	for _, tt := range tests {
		var calls []string
		videos := &mockVideoRepository{video: tt.video, getErr: tt.getErr, deleteErr: tt.deleteErr, calls: &calls}
		media := &mockMediaStore{destroyErr: tt.destroyErr, calls: &calls}
		c := newTestController(videos, media)

		w := httptest.NewRecorder()
		r := httptest.NewRequest("DELETE", "/api/video-delete", strings.NewReader(tt.body))
		appHandler(c.deleteVideo).ServeHTTP(w, r)

		if w.Code != tt.code {
			t.Errorf("%s: expected code %d, got %d", tt.body, tt.code, w.Code)
		}
		var out map[string]string
		json.Unmarshal(w.Body.Bytes(), &out)
		if out["error"] != tt.message && out["message"] != tt.message {
			t.Errorf("%s: expected message %q, got %s", tt.body, tt.message, w.Body.String())
		}
		if got := strings.Join(calls, ","); got != tt.calls {
			t.Errorf("%s: expected calls %q, got %q", tt.body, tt.calls, got)
		}
	}
}

func TestUploadVideo(t *testing.T) {
	tests := []struct {
		name     string
		fields   map[string]string
		file     string
		anon     bool
		media    *mockMediaStore
		saveErr  error
		code     int
		original int64
		destroy  bool
	}{
		{"anonymous", map[string]string{"title": "Cat"}, "abc", true, &mockMediaStore{}, nil, http.StatusUnauthorized, 0, false},
		{"no file", map[string]string{"title": "Cat"}, "", false, &mockMediaStore{}, nil, http.StatusBadRequest, 0, false},
		{"no title", map[string]string{"title": " "}, "abc", false, &mockMediaStore{}, nil, http.StatusBadRequest, 0, false},
		{"bad size", map[string]string{"title": "Cat", "originalSize": "x"}, "abc", false, &mockMediaStore{}, nil, http.StatusBadRequest, 0, false},
		{"media failure", map[string]string{"title": "Cat"}, "abc", false, &mockMediaStore{uploadErr: errors.New("boom")}, nil, http.StatusInternalServerError, 0, false},
		{"save failure", map[string]string{"title": "Cat"}, "abc", false, &mockMediaStore{}, errors.New("db down"), http.StatusInternalServerError, 0, true},
		{"declared size", map[string]string{"title": "Cat", "description": "meow", "originalSize": "2048"}, "abc", false, &mockMediaStore{}, nil, http.StatusOK, 2048, false},
		{"measured size", map[string]string{"title": "Cat"}, "abcd", false, &mockMediaStore{}, nil, http.StatusOK, 4, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			videos := &mockVideoRepository{saveErr: tt.saveErr}
			c := newTestController(videos, tt.media)
			r := multipartRequest(t, "/api/video-upload", tt.fields, tt.file)
			if !tt.anon {
				r = signedIn(r)
			}
			w := httptest.NewRecorder()
			err := c.uploadVideo(w, r)
			if code := appErrorCode(err); code != tt.code {
				t.Fatalf("expected code %d, got %d (%v)", tt.code, code, err)
			}
			if tt.destroy != (len(tt.media.destroyed) == 1) {
				t.Errorf("expected orphan cleanup %v, destroyed %v", tt.destroy, tt.media.destroyed)
			}
			if tt.code != http.StatusOK {
				return
			}
			var v entity.Video
			if err := json.Unmarshal(w.Body.Bytes(), &v); err != nil {
				t.Fatal(err)
			}
			if v.Title != "Cat" || int64(v.OriginalSize) != tt.original || int64(v.CompressedSize) != int64(len(tt.file)) {
				t.Errorf("unexpected record %+v", v)
			}
			if !strings.HasPrefix(v.PublicId, "video-uploads/") || tt.media.folder != videoFolder {
				t.Errorf("expected upload to %s, got %s", videoFolder, v.PublicId)
			}
			if len(videos.saved) != 1 || videos.saved[0].Id != v.Id {
				t.Errorf("expected record to be saved, got %v", videos.saved)
			}
		})
	}
}

func TestUploadImage(t *testing.T) {
	tests := []struct {
		file  string
		media *mockMediaStore
		code  int
	}{
		{"", &mockMediaStore{}, http.StatusBadRequest},
		{"png", &mockMediaStore{uploadErr: errors.New("boom")}, http.StatusInternalServerError},
		{"png", &mockMediaStore{}, http.StatusOK},
	}
	for _, tt := range tests {
		c := newTestController(&mockVideoRepository{}, tt.media)
		w := httptest.NewRecorder()
		err := c.uploadImage(w, signedIn(multipartRequest(t, "/api/image-upload", nil, tt.file)))
		if code := appErrorCode(err); code != tt.code {
			t.Errorf("expected code %d, got %d (%v)", tt.code, code, err)
			continue
		}
		if tt.code == http.StatusOK {
			var out ImageResponse
			json.Unmarshal(w.Body.Bytes(), &out)
			if !strings.HasPrefix(out.PublicId, imageFolder+"/") {
				t.Errorf("unexpected reply %s", w.Body.String())
			}
		}
	}
}

func TestHome(t *testing.T) {
	videos := &mockVideoRepository{videos: []*entity.Video{
		entity.NewVideo("1", "video-uploads/a", "Cat", "meow", 1000, 250, 65, testTime.Add(-72*time.Hour)),
	}}
	c := newTestController(videos, &mockMediaStore{})

	w := httptest.NewRecorder()
	if err := c.home(w, signedIn(httptest.NewRequest("GET", "/home", nil))); err != nil {
		t.Fatal(err)
	}
	body := w.Body.String()
	for _, want := range []string{
		"Cat", "meow", "1:05", "Uploaded 3 days ago", "1.0 kB", "250 B", "75%",
		"https://media.example.com/demo/video/upload/c_fill,g_auto,h_225,w_400/f_jpg/q_auto/video-uploads/a",
	} {
		if !strings.Contains(body, want) {
			t.Errorf("expected dashboard to contain %q", want)
		}
	}

	w = httptest.NewRecorder()
	if err := c.home(w, httptest.NewRequest("GET", "/home", nil)); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(w.Body.String(), "Failed to fetch videos") {
		t.Error("expected anonymous dashboard to show the fetch failure")
	}

	c.videos = &mockVideoRepository{}
	w = httptest.NewRecorder()
	c.home(w, signedIn(httptest.NewRequest("GET", "/home", nil)))
	if !strings.Contains(w.Body.String(), "No videos available") {
		t.Error("expected empty dashboard message")
	}
}

func multipartRequest(t *testing.T, path string, fields map[string]string, file string) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for k, v := range fields {
		mw.WriteField(k, v)
	}
	if file != "" {
		fw, err := mw.CreateFormFile("file", "clip.mp4")
		if err != nil {
			t.Fatal(err)
		}
		fw.Write([]byte(file))
	}
	mw.Close()
	r := httptest.NewRequest("POST", path, &buf)
	r.Header.Set("Content-Type", mw.FormDataContentType())
	return r
}

type mockVideoRepository struct {
	videos    []*entity.Video
	video     *entity.Video
	listErr   error
	getErr    error
	saveErr   error
	deleteErr error
	saved     []*entity.Video
	calls     *[]string
}

func (m *mockVideoRepository) List(ctx context.Context) ([]*entity.Video, error) {
	return m.videos, m.listErr
}

func (m *mockVideoRepository) GetById(ctx context.Context, id string) (*entity.Video, error) {
	return m.video, m.getErr
}

func (m *mockVideoRepository) Save(ctx context.Context, v *entity.Video) error {
	if m.saveErr != nil {
		return m.saveErr
	}
	m.saved = append(m.saved, v)
	return nil
}

func (m *mockVideoRepository) Delete(ctx context.Context, id string) error {
	if m.calls != nil {
		*m.calls = append(*m.calls, "delete")
	}
	return m.deleteErr
}

func (m *mockVideoRepository) UpdateCompressedSize(ctx context.Context, publicId string, size int64) error {
	return nil
}

type mockUserRepository struct {
	users map[string]*entity.User
}

func newMockUserRepository() *mockUserRepository {
	return &mockUserRepository{users: map[string]*entity.User{}}
}

func (m *mockUserRepository) GetByEmail(ctx context.Context, email string) (*entity.User, error) {
	return m.users[email], nil
}

func (m *mockUserRepository) Save(ctx context.Context, u *entity.User) error {
	if _, ok := m.users[u.Email]; ok {
		return repository.ErrDuplicate
	}
	m.users[u.Email] = u
	return nil
}

type mockMediaStore struct {
	uploadErr  error
	destroyErr error
	folder     string
	destroyed  []string
	calls      *[]string
}

func (m *mockMediaStore) Upload(ctx context.Context, folder, kind, filename string, body io.Reader) (*entity.Asset, error) {
	if m.uploadErr != nil {
		return nil, m.uploadErr
	}
	n, err := io.Copy(io.Discard, body)
	if err != nil {
		return nil, err
	}
	m.folder = folder
	return &entity.Asset{PublicId: folder + "/" + filename, Kind: kind, Bytes: n, Duration: 12}, nil
}

func (m *mockMediaStore) Destroy(ctx context.Context, publicId, kind string) error {
	if m.calls != nil {
		*m.calls = append(*m.calls, "destroy")
	}
	if m.destroyErr != nil {
		return m.destroyErr
	}
	m.destroyed = append(m.destroyed, publicId)
	return nil
}
