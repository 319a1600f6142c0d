package dashboard

import (
	"errors"
	"fmt"
)

var (
	// ErrVideoNotFound is returned by Delete when the ID is not in the loaded list.
	// No remote call is made.
	ErrVideoNotFound = errors.New("video not found")
	// ErrClosed is returned by actions started or completed after Close.
	ErrClosed = errors.New("dashboard closed")
	// ErrUnexpectedPayload is returned when the listing endpoint does not reply with an array.
	ErrUnexpectedPayload = errors.New("unexpected response format")
)

// ListLoadError is a failure to load the video list.
type ListLoadError struct {
	Err error
}

func (e *ListLoadError) Error() string { return fmt.Sprintf("failed to fetch videos: %v", e.Err) }

func (e *ListLoadError) Unwrap() error { return e.Err }

// DeleteError is a failed or rejected remote delete. The local list is unchanged.
type DeleteError struct {
	Id  string
	Err error
}

func (e *DeleteError) Error() string {
	return fmt.Sprintf("failed to delete video %s: %v", e.Id, e.Err)
}

func (e *DeleteError) Unwrap() error { return e.Err }

// DownloadError is a failure to retrieve or save a video.
type DownloadError struct {
	Title string
	Err   error
}

func (e *DownloadError) Error() string {
	return fmt.Sprintf("failed to download %q: %v", e.Title, e.Err)
}

func (e *DownloadError) Unwrap() error { return e.Err }

// RemoteError is a non-success reply from the API.
type RemoteError struct {
	Status  int
	Message string
}

func (e *RemoteError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("unexpected status %d", e.Status)
	}
	return fmt.Sprintf("%s (status %d)", e.Message, e.Status)
}
