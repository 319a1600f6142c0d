package dashboard

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/molpadia/molpastudio/internal/domain/entity"
)

// MaxResponseSize bounds JSON replies read from the API.
const MaxResponseSize = 32 << 20

// Client talks to the molpastudio API with a bearer session token.
type Client struct {
	base  string
	http  *http.Client
	media *http.Client
	token string
}

// NewClient returns a client for the API at base. A nil httpClient uses a client
// with a 30 second timeout. API redirects are not followed, so an expired session
// surfaces as an error rather than the sign-in page. Media requests follow
// redirects to wherever the asset is delivered from.
func NewClient(base string, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	c := *httpClient
	c.CheckRedirect = func(*http.Request, []*http.Request) error { return http.ErrUseLastResponse }
	return &Client{base: strings.TrimRight(base, "/"), http: &c, media: httpClient}
}

func (c *Client) SetToken(token string) { c.token = token }

func (c *Client) Token() string { return c.token }

// SignIn exchanges credentials for a session token and keeps it.
func (c *Client) SignIn(ctx context.Context, email, password string) (string, error) {
	var out struct {
		Token string `json:"token"`
	}
	body := map[string]string{"email": email, "password": password}
	if err := c.do(ctx, http.MethodPost, "/sign-in", body, &out); err != nil {
		return "", err
	}
	if out.Token == "" {
		return "", errors.New("sign-in reply carries no token")
	}
	c.token = out.Token
	return out.Token, nil
}

// List the videos. A reply that is not a JSON array is an error.
func (c *Client) List(ctx context.Context) ([]*entity.Video, error) {
	var raw json.RawMessage
	if err := c.do(ctx, http.MethodGet, "/api/videos", nil, &raw); err != nil {
		return nil, err
	}
	if t := bytes.TrimSpace(raw); len(t) == 0 || t[0] != '[' {
		return nil, ErrUnexpectedPayload
	}
	var videos []*entity.Video
	if err := json.Unmarshal(raw, &videos); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnexpectedPayload, err)
	}
	return videos, nil
}

// Delete the video by the video ID.
func (c *Client) Delete(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodDelete, "/api/video-delete", map[string]string{"id": id}, nil)
}

// Get a media URL. A positive offset requests the remainder from that byte.
func (c *Client) Get(ctx context.Context, url string, offset int64) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	if offset > 0 {
		req.Header.Set("Range", fmt.Sprintf("bytes=%d-", offset))
	}
	return c.media.Do(req)
}

// Probe whether a media URL can be played by fetching its first byte.
func (c *Client) Probe(ctx context.Context, url string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Range", "bytes=0-0")
	resp, err := c.media.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, io.LimitReader(resp.Body, 1<<10))
	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusPartialContent {
		return &RemoteError{Status: resp.StatusCode}
	}
	return nil
}

func (c *Client) do(ctx context.Context, method, path string, in, out interface{}) error {
	var body io.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return err
		}
		body = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.base+path, body)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, MaxResponseSize))
	if err != nil {
		return fmt.Errorf("cannot read response body: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		var e struct {
			Error string `json:"error"`
		}
		json.Unmarshal(data, &e)
		if resp.StatusCode == http.StatusFound && e.Error == "" {
			e.Error = "not signed in"
		}
		return &RemoteError{Status: resp.StatusCode, Message: e.Error}
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("cannot parse JSON from response body: %w", err)
	}
	return nil
}
