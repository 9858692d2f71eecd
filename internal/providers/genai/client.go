// Package genai wraps the external generation collaborator: the Gemini
// image API, used to produce a sprite sheet from a text prompt.
package genai

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"image/png"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"spriteforge/internal/domain"
	"spriteforge/internal/infra"
)

// Options controls how the Gemini client is configured.
type Options struct {
	APIKey     string
	BaseURL    string
	Model      string
	HTTPClient *http.Client
	Logger     *infra.Logger
}

// Client provides a lightweight facade over the Gemini image API. When no
// API key is configured it renders a deterministic synthetic sprite sheet
// instead, which keeps the rest of the pipeline exercised in local and CI
// environments.
type Client struct {
	apiKey     string
	baseURL    string
	model      string
	httpClient *http.Client
	logger     *infra.Logger
}

// GenerateRequest carries the information required to generate a sheet.
type GenerateRequest struct {
	Prompt    string
	Model     string
	RequestID string
}

type geminiContent struct {
	Role  string       `json:"role,omitempty"`
	Parts []geminiPart `json:"parts,omitempty"`
}

type geminiPart struct {
	Text       string            `json:"text,omitempty"`
	InlineData *geminiInlineData `json:"inlineData,omitempty"`
}

type geminiInlineData struct {
	MimeType string `json:"mimeType,omitempty"`
	Data     string `json:"data,omitempty"`
}

type geminiGenerationConfig struct {
	ResponseModalities []string `json:"responseModalities,omitempty"`
}

type geminiGenerateContentRequest struct {
	Contents         []geminiContent         `json:"contents"`
	GenerationConfig *geminiGenerationConfig `json:"generationConfig,omitempty"`
}

type geminiCandidate struct {
	Content      geminiContent `json:"content"`
	FinishReason string        `json:"finishReason,omitempty"`
}

type geminiGenerateContentResponse struct {
	Candidates []geminiCandidate `json:"candidates"`
}

type geminiErrorResponse struct {
	Error struct {
		Code    int    `json:"code,omitempty"`
		Message string `json:"message,omitempty"`
	} `json:"error"`
}

// NewClient constructs a Gemini client with sane defaults. Callers may
// provide a nil HTTP client; a reusable one with a sensible timeout will be
// created.
func NewClient(opts Options) (*Client, error) {
	client := opts.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: 60 * time.Second}
	}

	baseURL := strings.TrimRight(opts.BaseURL, "/")
	if baseURL == "" {
		baseURL = "https://generativelanguage.googleapis.com/v1beta"
	}

	model := opts.Model
	if model == "" {
		model = "gemini-2.5-flash-image"
	}

	var logger *infra.Logger
	if opts.Logger != nil {
		logger = opts.Logger
	} else {
		discard := zerolog.New(io.Discard)
		l := infra.Logger(discard)
		logger = &l
	}

	return &Client{
		apiKey:     strings.TrimSpace(opts.APIKey),
		baseURL:    baseURL,
		model:      model,
		httpClient: client,
		logger:     logger,
	}, nil
}

// Model returns the configured Gemini model identifier.
func (c *Client) Model() string {
	return c.model
}

// GenerateSheet produces a PNG sprite sheet for the prompt. With no API key
// a deterministic synthetic sheet is rendered; with a key the remote model
// is called, and a response without an inline image fails with
// ErrGeneration.
func (c *Client) GenerateSheet(ctx context.Context, req GenerateRequest) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if strings.TrimSpace(req.Prompt) == "" {
		return nil, fmt.Errorf("%w: prompt is required", domain.ErrGeneration)
	}

	if c.apiKey == "" {
		c.logger.Debug().Str("request_id", req.RequestID).Msg("genai: no api key, rendering synthetic sheet")
		return renderSyntheticSheet(req.RequestID, req.Prompt), nil
	}

	model := c.model
	if req.Model != "" {
		model = req.Model
	}

	payload := geminiGenerateContentRequest{
		Contents: []geminiContent{{
			Role:  "user",
			Parts: []geminiPart{{Text: optimizePromptForSprites(req.Prompt)}},
		}},
		GenerationConfig: &geminiGenerationConfig{
			ResponseModalities: []string{"TEXT", "IMAGE"},
		},
	}

	var response geminiGenerateContentResponse
	endpoint := fmt.Sprintf("/models/%s:generateContent", url.PathEscape(model))
	if err := c.invokeGemini(ctx, endpoint, payload, &response); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrGeneration, err)
	}

	for _, candidate := range response.Candidates {
		for _, part := range candidate.Content.Parts {
			if part.InlineData == nil || part.InlineData.Data == "" {
				continue
			}
			data, err := base64.StdEncoding.DecodeString(part.InlineData.Data)
			if err != nil || len(data) == 0 {
				continue
			}
			return data, nil
		}
	}

	reason := ""
	if len(response.Candidates) > 0 {
		reason = response.Candidates[0].FinishReason
	}
	return nil, fmt.Errorf("%w: no image in response (finish reason %q)", domain.ErrGeneration, reason)
}

func (c *Client) invokeGemini(ctx context.Context, endpoint string, payload, out any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-goog-api-key", c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, 64<<20))
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		var apiErr geminiErrorResponse
		if json.Unmarshal(respBody, &apiErr) == nil && apiErr.Error.Message != "" {
			return fmt.Errorf("gemini status %d: %s", resp.StatusCode, apiErr.Error.Message)
		}
		return fmt.Errorf("gemini status %d", resp.StatusCode)
	}
	return json.Unmarshal(respBody, out)
}

// optimizePromptForSprites nudges the model toward output the extraction
// pipeline handles well: isolated elements over a clean background.
func optimizePromptForSprites(prompt string) string {
	lower := strings.ToLower(prompt)
	var additions []string
	if !strings.Contains(lower, "transparent") && !strings.Contains(lower, "background") {
		additions = append(additions, "with transparent or solid color background")
	}
	if !strings.Contains(lower, "sprite") && !strings.Contains(lower, "game") {
		additions = append(additions, "game sprite style")
	}
	if !strings.Contains(lower, "isolated") && !strings.Contains(lower, "separate") {
		additions = append(additions, "clearly isolated elements")
	}
	if len(additions) == 0 {
		return prompt
	}
	return prompt + ", " + strings.Join(additions, ", ")
}

// renderSyntheticSheet draws a deterministic 512x512 transparent sheet with
// four well-separated opaque squares, enough for the extraction pipeline to
// find real regions downstream.
func renderSyntheticSheet(requestID, prompt string) []byte {
	seed := sha256.Sum256([]byte(requestID + "\x00" + prompt))

	sheet := image.NewNRGBA(image.Rect(0, 0, 512, 512))
	positions := []image.Point{{64, 64}, {320, 64}, {64, 320}, {320, 320}}
	for i, pos := range positions {
		tone := color.NRGBA{
			R: seed[i*3],
			G: seed[i*3+1],
			B: seed[i*3+2],
			A: 255,
		}
		square := image.Rect(pos.X, pos.Y, pos.X+128, pos.Y+128)
		draw.Draw(sheet, square, image.NewUniform(tone), image.Point{}, draw.Src)
	}

	var buf bytes.Buffer
	_ = png.Encode(&buf, sheet)
	return buf.Bytes()
}
