// Package video wraps the Vimeo API for sermon video hosting.
package video

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"
)

// ErrUnavailable is returned when Vimeo cannot be reached or rejects the
// request for a non-client reason.
var ErrUnavailable = errors.New("video service unavailable")

// ErrNotFound is returned when a video does not exist on Vimeo.
var ErrNotFound = errors.New("video not found")

const apiBase = "https://api.vimeo.com"

// Client talks to the Vimeo REST API with a personal access token.
type Client struct {
	token      string
	httpClient *http.Client
	base       string
}

// NewClient creates a Vimeo API client.
func NewClient(token string) *Client {
	return &Client{
		token:      token,
		httpClient: &http.Client{Timeout: 30 * time.Second},
		base:       apiBase,
	}
}

// NewClientWithBase creates a client pointed at a custom API base, used in tests.
func NewClientWithBase(token, base string) *Client {
	c := NewClient(token)
	c.base = strings.TrimRight(base, "/")
	return c
}

// IsConfigured reports whether an access token is present.
func (c *Client) IsConfigured() bool {
	return c.token != ""
}

// UploadTicket is the tus upload handle returned by Vimeo for a new video.
type UploadTicket struct {
	VideoID   string `json:"video_id"`
	VideoURI  string `json:"video_uri"`
	UploadURL string `json:"upload_url"`
}

// Video is the subset of Vimeo metadata the app cares about.
type Video struct {
	ID           string `json:"id"`
	Title        string `json:"title"`
	Description  string `json:"description"`
	Duration     int    `json:"duration"`
	EmbedHTML    string `json:"embed_html"`
	ThumbnailURL string `json:"thumbnail_url"`
	Status       string `json:"status"`
}

func (c *Client) do(ctx context.Context, method, path string, body any) (*http.Response, error) {
	var rdr *bytes.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("marshal request: %w", err)
		}
		rdr = bytes.NewReader(payload)
	} else {
		rdr = bytes.NewReader(nil)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.base+path, rdr)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("Accept", "application/vnd.vimeo.*+json;version=3.4")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return resp, nil
}

// CreateUpload requests a tus upload ticket for a new video.
func (c *Client) CreateUpload(ctx context.Context, title, description string, size int64) (*UploadTicket, error) {
	if !c.IsConfigured() {
		return nil, ErrUnavailable
	}

	reqBody := map[string]any{
		"name":        title,
		"description": description,
		"upload": map[string]any{
			"approach": "tus",
			"size":     size,
		},
		"privacy": map[string]any{
			"view":  "unlisted",
			"embed": "public",
		},
	}

	resp, err := c.do(ctx, http.MethodPost, "/me/videos", reqBody)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return nil, fmt.Errorf("%w: create upload returned %d", ErrUnavailable, resp.StatusCode)
	}

	var payload struct {
		URI    string `json:"uri"`
		Upload struct {
			UploadLink string `json:"upload_link"`
		} `json:"upload"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("%w: decode create upload: %v", ErrUnavailable, err)
	}

	return &UploadTicket{
		VideoID:   videoIDFromURI(payload.URI),
		VideoURI:  payload.URI,
		UploadURL: payload.Upload.UploadLink,
	}, nil
}

// GetVideo fetches metadata for an uploaded video.
func (c *Client) GetVideo(ctx context.Context, videoID string) (*Video, error) {
	if !c.IsConfigured() {
		return nil, ErrUnavailable
	}

	resp, err := c.do(ctx, http.MethodGet, "/videos/"+videoID, nil)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return nil, ErrNotFound
	case resp.StatusCode != http.StatusOK:
		return nil, fmt.Errorf("%w: get video returned %d", ErrUnavailable, resp.StatusCode)
	}

	var payload struct {
		URI         string `json:"uri"`
		Name        string `json:"name"`
		Description string `json:"description"`
		Duration    int    `json:"duration"`
		Status      string `json:"status"`
		Embed       struct {
			HTML string `json:"html"`
		} `json:"embed"`
		Pictures struct {
			Sizes []struct {
				Width int    `json:"width"`
				Link  string `json:"link"`
			} `json:"sizes"`
		} `json:"pictures"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("%w: decode video: %v", ErrUnavailable, err)
	}

	v := &Video{
		ID:          videoIDFromURI(payload.URI),
		Title:       payload.Name,
		Description: payload.Description,
		Duration:    payload.Duration,
		EmbedHTML:   payload.Embed.HTML,
		Status:      payload.Status,
	}
	// Pick the widest thumbnail available.
	best := 0
	for _, size := range payload.Pictures.Sizes {
		if size.Width > best {
			best = size.Width
			v.ThumbnailURL = size.Link
		}
	}
	return v, nil
}

// DeleteVideo removes a video from Vimeo. Deleting an already-deleted video
// is not an error.
func (c *Client) DeleteVideo(ctx context.Context, videoID string) error {
	if !c.IsConfigured() {
		return ErrUnavailable
	}

	resp, err := c.do(ctx, http.MethodDelete, "/videos/"+videoID, nil)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusNoContent, http.StatusNotFound:
		return nil
	default:
		return fmt.Errorf("%w: delete video returned %d", ErrUnavailable, resp.StatusCode)
	}
}

func videoIDFromURI(uri string) string {
	// URIs look like "/videos/123456789".
	if idx := strings.LastIndex(uri, "/"); idx >= 0 {
		return uri[idx+1:]
	}
	return uri
}
