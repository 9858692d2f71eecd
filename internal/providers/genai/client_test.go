package genai

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"image"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"spriteforge/internal/domain"
)

func TestGenerateSheetRequiresPrompt(t *testing.T) {
	client, err := NewClient(Options{})
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	_, err = client.GenerateSheet(context.Background(), GenerateRequest{RequestID: "r1"})
	if !errors.Is(err, domain.ErrGeneration) {
		t.Fatalf("err = %v, want ErrGeneration", err)
	}
}

func TestGenerateSheetSyntheticFallback(t *testing.T) {
	client, err := NewClient(Options{})
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	req := GenerateRequest{Prompt: "a slime", RequestID: "r1"}

	first, err := client.GenerateSheet(context.Background(), req)
	if err != nil {
		t.Fatalf("GenerateSheet: %v", err)
	}
	img, _, err := image.Decode(bytes.NewReader(first))
	if err != nil {
		t.Fatalf("synthetic sheet is not an image: %v", err)
	}
	if b := img.Bounds(); b.Dx() != 512 || b.Dy() != 512 {
		t.Fatalf("sheet = %dx%d, want 512x512", b.Dx(), b.Dy())
	}

	second, err := client.GenerateSheet(context.Background(), req)
	if err != nil {
		t.Fatalf("GenerateSheet: %v", err)
	}
	if !bytes.Equal(first, second) {
		t.Fatalf("same request produced different synthetic sheets")
	}

	other, err := client.GenerateSheet(context.Background(), GenerateRequest{Prompt: "a slime", RequestID: "r2"})
	if err != nil {
		t.Fatalf("GenerateSheet: %v", err)
	}
	if bytes.Equal(first, other) {
		t.Fatalf("different request ids should vary the sheet")
	}
}

func TestGenerateSheetRemote(t *testing.T) {
	png := []byte{0x89, 'P', 'N', 'G', 0, 1, 2, 3}
	var gotPath, gotKey string
	var gotBody geminiGenerateContentRequest

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotKey = r.Header.Get("x-goog-api-key")
		_ = json.NewDecoder(r.Body).Decode(&gotBody)
		_ = json.NewEncoder(w).Encode(geminiGenerateContentResponse{
			Candidates: []geminiCandidate{{
				Content: geminiContent{Parts: []geminiPart{
					{Text: "here you go"},
					{InlineData: &geminiInlineData{MimeType: "image/png", Data: base64.StdEncoding.EncodeToString(png)}},
				}},
			}},
		})
	}))
	defer srv.Close()

	client, err := NewClient(Options{APIKey: "key-1", BaseURL: srv.URL, Model: "gemini-test"})
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	data, err := client.GenerateSheet(context.Background(), GenerateRequest{Prompt: "three coins", RequestID: "r1"})
	if err != nil {
		t.Fatalf("GenerateSheet: %v", err)
	}
	if !bytes.Equal(data, png) {
		t.Fatalf("decoded payload mismatch")
	}
	if gotPath != "/models/gemini-test:generateContent" {
		t.Fatalf("path = %q", gotPath)
	}
	if gotKey != "key-1" {
		t.Fatalf("api key header = %q", gotKey)
	}
	sent := gotBody.Contents[0].Parts[0].Text
	if !strings.Contains(sent, "three coins") || !strings.Contains(sent, "transparent") {
		t.Fatalf("prompt not optimized: %q", sent)
	}
}

func TestGenerateSheetRemoteNoImage(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_ = json.NewEncoder(w).Encode(geminiGenerateContentResponse{
			Candidates: []geminiCandidate{{
				Content:      geminiContent{Parts: []geminiPart{{Text: "sorry"}}},
				FinishReason: "SAFETY",
			}},
		})
	}))
	defer srv.Close()

	client, err := NewClient(Options{APIKey: "key-1", BaseURL: srv.URL})
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	_, err = client.GenerateSheet(context.Background(), GenerateRequest{Prompt: "x", RequestID: "r1"})
	if !errors.Is(err, domain.ErrGeneration) {
		t.Fatalf("err = %v, want ErrGeneration", err)
	}
	if !strings.Contains(err.Error(), "SAFETY") {
		t.Fatalf("finish reason lost: %v", err)
	}
}

func TestGenerateSheetRemoteErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = w.Write([]byte(`{"error": {"code": 429, "message": "quota exceeded"}}`))
	}))
	defer srv.Close()

	client, err := NewClient(Options{APIKey: "key-1", BaseURL: srv.URL})
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	_, err = client.GenerateSheet(context.Background(), GenerateRequest{Prompt: "x", RequestID: "r1"})
	if !errors.Is(err, domain.ErrGeneration) {
		t.Fatalf("err = %v, want ErrGeneration", err)
	}
	if !strings.Contains(err.Error(), "quota exceeded") {
		t.Fatalf("api message lost: %v", err)
	}
}

func TestOptimizePromptForSprites(t *testing.T) {
	cases := []struct {
		name     string
		prompt   string
		contains []string
		absent   []string
	}{
		{
			name:     "bare prompt gets all hints",
			prompt:   "a red dragon",
			contains: []string{"a red dragon", "transparent or solid color background", "game sprite style", "clearly isolated elements"},
		},
		{
			name:   "already covered prompt is untouched",
			prompt: "isolated game sprites on a transparent background",
			absent: []string{","},
		},
		{
			name:     "partial coverage",
			prompt:   "game items on white background",
			contains: []string{"clearly isolated elements"},
			absent:   []string{"transparent or solid color background", "game sprite style"},
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := optimizePromptForSprites(tc.prompt)
			for _, want := range tc.contains {
				if !strings.Contains(got, want) {
					t.Fatalf("%q missing %q", got, want)
				}
			}
			for _, not := range tc.absent {
				if strings.Contains(got, not) {
					t.Fatalf("%q should not contain %q", got, not)
				}
			}
		})
	}
}
