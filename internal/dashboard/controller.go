package dashboard

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/molpadia/molpastudio/internal/domain/entity"
	"github.com/molpadia/molpastudio/internal/httprange"
	"github.com/molpadia/molpastudio/internal/logging"
	"github.com/molpadia/molpastudio/internal/mediaurl"
)

// Remote is the API the controller drives.
type Remote interface {
	Lister
	Delete(ctx context.Context, id string) error
	Get(ctx context.Context, url string, offset int64) (*http.Response, error)
	Probe(ctx context.Context, url string) error
}

type NoticeLevel int

const (
	NoticeInfo NoticeLevel = iota
	NoticeError
)

// Notice is a message shown to the user.
type Notice struct {
	Level   NoticeLevel
	Message string
	Time    time.Time
}

// Controller runs the actions of one dashboard session against a Store. All
// actions are scoped to the session: Close cancels the ones in flight and no
// result arriving afterwards changes the store or the notices.
type Controller struct {
	store    *Store
	remote   Remote
	resolver *mediaurl.Resolver

	ctx    context.Context
	cancel context.CancelFunc

	mu      sync.Mutex
	closed  bool
	notices []Notice
}

func NewController(store *Store, remote Remote, resolver *mediaurl.Resolver) *Controller {
	ctx, cancel := context.WithCancel(context.Background())
	return &Controller{store: store, remote: remote, resolver: resolver, ctx: ctx, cancel: cancel}
}

func (c *Controller) Store() *Store { return c.store }

// Close ends the session.
func (c *Controller) Close() {
	c.mu.Lock()
	c.closed = true
	c.mu.Unlock()
	c.cancel()
	c.store.barrier()
}

// Notices returns the messages raised so far, oldest first.
func (c *Controller) Notices() []Notice {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]Notice(nil), c.notices...)
}

// Derive a context that ends with either ctx or the session.
func (c *Controller) scope(ctx context.Context) (context.Context, context.CancelFunc, error) {
	c.mu.Lock()
	closed := c.closed
	c.mu.Unlock()
	if closed {
		return nil, nil, ErrClosed
	}
	ctx, cancel := context.WithCancel(ctx)
	stop := context.AfterFunc(c.ctx, cancel)
	return ctx, func() { stop(); cancel() }, nil
}

// Run fn and record the notice unless the session is closed.
func (c *Controller) commit(fn func(), level NoticeLevel, format string, args ...interface{}) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return ErrClosed
	}
	if fn != nil {
		fn()
	}
	if format != "" {
		c.notices = append(c.notices, Notice{Level: level, Message: fmt.Sprintf(format, args...), Time: time.Now()})
	}
	return nil
}

// FetchAll loads the list once. A failure is raised as a notice and not retried.
// A load abandoned through ctx leaves the store as it was and raises nothing.
func (c *Controller) FetchAll(ctx context.Context) error {
	ctx, done, err := c.scope(ctx)
	if err != nil {
		return err
	}
	defer done()

	if err := c.store.Load(ctx); err != nil {
		if c.ctx.Err() != nil {
			return ErrClosed
		}
		var lerr *ListLoadError
		if !errors.As(err, &lerr) {
			return err
		}
		logging.Error("%v", err)
		if cerr := c.commit(nil, NoticeError, "Failed to fetch videos"); cerr != nil {
			return cerr
		}
		return err
	}
	return nil
}

// Delete the video remotely, then drop it from the list. An ID missing from the
// list is logged and returns ErrVideoNotFound without a remote call. The list is
// only changed once the API has confirmed the delete.
func (c *Controller) Delete(ctx context.Context, id string) error {
	ctx, done, err := c.scope(ctx)
	if err != nil {
		return err
	}
	defer done()

	v, ok := c.store.Get(id)
	if !ok {
		logging.Warn("video %s not found", id)
		return ErrVideoNotFound
	}
	if err := c.remote.Delete(ctx, id); err != nil {
		if c.ctx.Err() != nil {
			return ErrClosed
		}
		derr := &DeleteError{Id: id, Err: err}
		logging.Error("%v", derr)
		if cerr := c.commit(nil, NoticeError, "Failed to delete video %s", v.Title); cerr != nil {
			return cerr
		}
		return derr
	}
	return c.commit(func() { c.store.Remove(id) }, NoticeInfo, "Video %s deleted successfully", v.Title)
}

// Download the full asset to dir as "<title>.mp4" and return the file path.
// Bytes are written to a ".part" file first; an existing one is resumed when the
// server honours the Range request.
func (c *Controller) Download(ctx context.Context, ref, title, dir string) (string, error) {
	ctx, done, err := c.scope(ctx)
	if err != nil {
		return "", err
	}
	defer done()

	dst := filepath.Join(dir, Filename(title))
	if err := c.fetch(ctx, c.resolver.FullAsset(ref), dst); err != nil {
		if c.ctx.Err() != nil {
			return "", ErrClosed
		}
		derr := &DownloadError{Title: title, Err: err}
		logging.Error("%v", derr)
		if cerr := c.commit(nil, NoticeError, "Failed to download %s", title); cerr != nil {
			return "", cerr
		}
		return "", derr
	}
	return dst, c.commit(nil, NoticeInfo, "Downloaded %s", filepath.Base(dst))
}

func (c *Controller) fetch(ctx context.Context, url, dst string) error {
	part := dst + ".part"
	var offset int64
	if fi, err := os.Stat(part); err == nil {
		offset = fi.Size()
	}

	resp, err := c.remote.Get(ctx, url, offset)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	flags := os.O_CREATE | os.O_WRONLY
	switch resp.StatusCode {
	case http.StatusOK:
		flags |= os.O_TRUNC
	case http.StatusPartialContent:
		cr, err := httprange.ParseContentRange(resp.Header.Get("Content-Range"))
		if err != nil {
			return err
		}
		if cr == nil || !cr.Resumes(offset) {
			return errors.New("server did not resume from the partial download")
		}
		flags |= os.O_APPEND
	case http.StatusRequestedRangeNotSatisfiable:
		cr, err := httprange.ParseContentRange(resp.Header.Get("Content-Range"))
		if err == nil && cr != nil && cr.Size == offset {
			return os.Rename(part, dst)
		}
		os.Remove(part)
		return &RemoteError{Status: resp.StatusCode, Message: "partial download does not match the asset"}
	default:
		return &RemoteError{Status: resp.StatusCode}
	}

	f, err := os.OpenFile(part, flags, 0o644)
	if err != nil {
		return err
	}
	if _, err := io.Copy(f, resp.Body); err != nil {
		f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}
	return os.Rename(part, dst)
}

// Preview hovers over the card of the video and probes its preview clip. The
// returned card is HoverPlaying or HoverError; the caller ends the hover with
// Reduce(card, HoverExit).
func (c *Controller) Preview(ctx context.Context, id string) (Card, error) {
	ctx, done, err := c.scope(ctx)
	if err != nil {
		return Card{}, err
	}
	defer done()

	v, ok := c.store.Get(id)
	if !ok {
		return Card{}, ErrVideoNotFound
	}
	card, effect := Reduce(NewCard(v.Id, v.PublicId), HoverEnter)
	if effect != EffectRequestPreview {
		return card, nil
	}
	event := AssetReady
	if err := c.remote.Probe(ctx, c.resolver.PreviewClip(v.PublicId)); err != nil {
		logging.Debug("preview of %s failed: %v", v.Id, err)
		event = AssetFailed
	}
	card, _ = Reduce(card, event)
	return card, nil
}

// Thumbnail is the URL an idle card displays.
func (c *Controller) Thumbnail(v *entity.Video) string { return c.resolver.Thumbnail(v.PublicId) }

// Filename is the suggested file name for a downloaded video.
func Filename(title string) string {
	name := strings.Map(func(r rune) rune {
		switch {
		case r == '/' || r == '\\' || r == ':' || r < 0x20:
			return '_'
		}
		return r
	}, strings.TrimSpace(title))
	if name == "" || name == "." || name == ".." {
		name = "video"
	}
	return name + ".mp4"
}
