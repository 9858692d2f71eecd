// Package removal wraps the external background-removal collaborator:
// an alpha-matting service that takes an image and returns the same image
// with a foreground alpha channel.
package removal

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"spriteforge/internal/domain"
	"spriteforge/internal/infra"
)

// Remover produces an alpha-matted variant of the given encoded image.
type Remover interface {
	Remove(ctx context.Context, imageData []byte) ([]byte, error)
}

// Options controls how the removal client is configured.
type Options struct {
	BaseURL    string
	HTTPClient *http.Client
	Logger     *infra.Logger
}

// Client calls the matting service over HTTP. Failures wrap ErrRemoval and
// qualify for the pipeline's single transient retry.
type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     *infra.Logger
}

// NewClient constructs a removal client. A nil HTTP client gets a reusable
// one with a generous timeout, since model inference can take a while.
func NewClient(opts Options) (*Client, error) {
	baseURL := strings.TrimRight(strings.TrimSpace(opts.BaseURL), "/")
	if baseURL == "" {
		return nil, fmt.Errorf("removal: base url is required")
	}
	client := opts.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: 120 * time.Second}
	}
	return &Client{baseURL: baseURL, httpClient: client, logger: opts.Logger}, nil
}

// Remove posts the image to the matting endpoint and returns the
// alpha-matted PNG.
func (c *Client) Remove(ctx context.Context, imageData []byte) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/remove", bytes.NewReader(imageData))
	if err != nil {
		return nil, fmt.Errorf("%w: build request: %v", domain.ErrRemoval, err)
	}
	req.Header.Set("Content-Type", "application/octet-stream")
	req.Header.Set("Accept", "image/png")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrRemoval, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 64<<20))
	if err != nil {
		return nil, fmt.Errorf("%w: read response: %v", domain.ErrRemoval, err)
	}
	if resp.StatusCode != http.StatusOK {
		snippet := string(body)
		if len(snippet) > 200 {
			snippet = snippet[:200]
		}
		return nil, fmt.Errorf("%w: status %d: %s", domain.ErrRemoval, resp.StatusCode, snippet)
	}
	if len(body) == 0 {
		return nil, fmt.Errorf("%w: empty response", domain.ErrRemoval)
	}
	if c.logger != nil {
		c.logger.Debug().Int("bytes", len(body)).Msg("removal: matted image received")
	}
	return body, nil
}

// Passthrough returns the input unchanged. It serves inputs that already
// carry a usable alpha channel (generated sheets, pre-matted uploads) and
// local runs without a matting service configured.
type Passthrough struct{}

// Remove implements Remover.
func (Passthrough) Remove(_ context.Context, imageData []byte) ([]byte, error) {
	return imageData, nil
}
