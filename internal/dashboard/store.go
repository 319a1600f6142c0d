package dashboard

import (
	"context"
	"sync"

	"golang.org/x/exp/slices"

	"github.com/molpadia/molpastudio/internal/domain/entity"
	"github.com/molpadia/molpastudio/internal/logging"
)

// Lister fetches the full list of videos.
type Lister interface {
	List(ctx context.Context) ([]*entity.Video, error)
}

// Store owns the videos of one dashboard session. The collection is never
// modified in place: every change swaps in a new slice, so a slice returned by
// Videos stays valid and unchanged.
type Store struct {
	source Lister

	mu      sync.RWMutex
	videos  []*entity.Video
	loading bool
	err     error
}

func NewStore(source Lister) *Store {
	return &Store{source: source, videos: []*entity.Video{}}
}

// Load replaces the collection with the list from the source. On failure the
// previous collection is kept and the error is recorded. The loading flag is
// cleared either way. A result arriving after ctx is done is discarded.
func (s *Store) Load(ctx context.Context) error {
	s.mu.Lock()
	s.loading = true
	s.mu.Unlock()

	videos, err := s.source.List(ctx)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.loading = false
	if ctx.Err() != nil {
		return ctx.Err()
	}
	if err != nil {
		s.err = &ListLoadError{Err: err}
		return s.err
	}
	if videos == nil {
		videos = []*entity.Video{}
	}
	s.videos = videos
	s.err = nil
	return nil
}

// Remove the video with the given ID. It reports whether a video was removed.
func (s *Store) Remove(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if slices.IndexFunc(s.videos, func(v *entity.Video) bool { return v.Id == id }) < 0 {
		logging.Debug("video %s is not in the list, nothing to remove", id)
		return false
	}
	s.videos = slices.DeleteFunc(slices.Clone(s.videos), func(v *entity.Video) bool { return v.Id == id })
	return true
}

// Get the video by the video ID.
func (s *Store) Get(id string) (*entity.Video, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	i := slices.IndexFunc(s.videos, func(v *entity.Video) bool { return v.Id == id })
	if i < 0 {
		return nil, false
	}
	return s.videos[i], true
}

// Videos returns the current collection. Callers must not modify it.
func (s *Store) Videos() []*entity.Video {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.videos
}

func (s *Store) Loading() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.loading
}

// Err is the error of the last failed load, nil after a successful one.
func (s *Store) Err() error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.err
}

// Wait for any commit in progress to finish.
func (s *Store) barrier() {
	s.mu.Lock()
	s.mu.Unlock() //nolint:staticcheck // empty critical section
}
