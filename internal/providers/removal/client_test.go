package removal

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"spriteforge/internal/domain"
)

func TestNewClientRequiresBaseURL(t *testing.T) {
	if _, err := NewClient(Options{}); err == nil {
		t.Fatalf("expected error for empty base url")
	}
}

func TestRemove(t *testing.T) {
	input := []byte("raw image bytes")
	matted := []byte("matted png bytes")

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/remove" {
			t.Errorf("path = %q, want /remove", r.URL.Path)
		}
		if ct := r.Header.Get("Content-Type"); ct != "application/octet-stream" {
			t.Errorf("content type = %q", ct)
		}
		body, _ := io.ReadAll(r.Body)
		if !bytes.Equal(body, input) {
			t.Errorf("body mismatch")
		}
		_, _ = w.Write(matted)
	}))
	defer srv.Close()

	client, err := NewClient(Options{BaseURL: srv.URL})
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	got, err := client.Remove(context.Background(), input)
	if err != nil {
		t.Fatalf("Remove: %v", err)
	}
	if !bytes.Equal(got, matted) {
		t.Fatalf("response = %q, want %q", got, matted)
	}
}

func TestRemoveErrorStatusWrapsErrRemoval(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "model crashed", http.StatusInternalServerError)
	}))
	defer srv.Close()

	client, err := NewClient(Options{BaseURL: srv.URL})
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	_, err = client.Remove(context.Background(), []byte("x"))
	if !errors.Is(err, domain.ErrRemoval) {
		t.Fatalf("err = %v, want ErrRemoval", err)
	}
}

func TestRemoveEmptyResponse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	defer srv.Close()

	client, err := NewClient(Options{BaseURL: srv.URL})
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	_, err = client.Remove(context.Background(), []byte("x"))
	if !errors.Is(err, domain.ErrRemoval) {
		t.Fatalf("err = %v, want ErrRemoval", err)
	}
}

func TestRemoveConnectionFailureIsTransient(t *testing.T) {
	client, err := NewClient(Options{BaseURL: "http://127.0.0.1:1"})
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	_, err = client.Remove(context.Background(), []byte("x"))
	if !domain.IsTransient(err) {
		t.Fatalf("connection failure should be transient: %v", err)
	}
}

func TestPassthrough(t *testing.T) {
	input := []byte("unchanged")
	got, err := Passthrough{}.Remove(context.Background(), input)
	if err != nil {
		t.Fatalf("Remove: %v", err)
	}
	if !bytes.Equal(got, input) {
		t.Fatalf("passthrough altered the payload")
	}
}
