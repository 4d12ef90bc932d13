// Package gallery talks to the gallery web service that lists published
// artworks.
package gallery

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// Record is the gallery's representation of a published artwork.
type Record struct {
	ArtworkID       string `json:"artwork_id"`
	Title           string `json:"title"`
	ArtistStatement string `json:"artist_statement"`
	Prompt          string `json:"prompt"`
	ImageURL        string `json:"image_url"`
	VideoURL        string `json:"video_url"`
	CreatedAt       string `json:"created_at"`
}

// Client publishes artwork records to the gallery API.
type Client struct {
	baseURL        string
	artworkBaseURL string
	apiToken       string
	httpClient     *http.Client
}

// Option customizes the client.
type Option func(*Client)

// WithHTTPClient overrides the default HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		if client != nil {
			c.httpClient = client
		}
	}
}

// NewClient constructs a gallery client.
func NewClient(baseURL, artworkBaseURL, apiToken string, opts ...Option) *Client {
	c := &Client{
		baseURL:        strings.TrimRight(strings.TrimSpace(baseURL), "/"),
		artworkBaseURL: strings.TrimRight(strings.TrimSpace(artworkBaseURL), "/"),
		apiToken:       strings.TrimSpace(apiToken),
		httpClient:     &http.Client{Timeout: 30 * time.Second},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Upsert creates or replaces the gallery record for an artwork and returns
// the public page URL.
func (c *Client) Upsert(ctx context.Context, record Record) (string, error) {
	if strings.TrimSpace(record.ArtworkID) == "" {
		return "", fmt.Errorf("gallery upsert: artwork id required")
	}

	body, err := json.Marshal(record)
	if err != nil {
		return "", fmt.Errorf("gallery upsert: encode record: %w", err)
	}

	url := fmt.Sprintf("%s/api/artworks/%s", c.baseURL, record.ArtworkID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPut, url, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("gallery upsert: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiToken != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiToken)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("gallery upsert: send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return "", fmt.Errorf("gallery upsert: unexpected status %d: %s", resp.StatusCode, strings.TrimSpace(string(snippet)))
	}
	_, _ = io.Copy(io.Discard, resp.Body)

	return c.ArtworkURL(record.ArtworkID), nil
}

// ArtworkURL returns the public page URL for an artwork.
func (c *Client) ArtworkURL(artworkID string) string {
	base := c.artworkBaseURL
	if base == "" {
		base = c.baseURL + "/artworks"
	}
	return fmt.Sprintf("%s/%s", base, artworkID)
}
