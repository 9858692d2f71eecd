package sprite

import (
	"errors"
	"image"
	"image/color"
	"testing"

	"spriteforge/internal/domain"
)

func sheetWithSquares(w, h int, squares ...image.Rectangle) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for _, sq := range squares {
		for y := sq.Min.Y; y < sq.Max.Y; y++ {
			for x := sq.Min.X; x < sq.Max.X; x++ {
				img.SetNRGBA(x, y, color.NRGBA{R: 200, G: 40, B: 40, A: 255})
			}
		}
	}
	return img
}

func TestBuildMaskThresholdRange(t *testing.T) {
	img := image.NewNRGBA(image.Rect(0, 0, 4, 4))
	for _, threshold := range []int{0, 255, -1, 1000} {
		if _, err := BuildMask(img, threshold); !errors.Is(err, domain.ErrConfig) {
			t.Fatalf("threshold %d: expected ErrConfig, got %v", threshold, err)
		}
	}
	if _, err := BuildMask(img, 1); err != nil {
		t.Fatalf("threshold 1 should be accepted: %v", err)
	}
	if _, err := BuildMask(img, 254); err != nil {
		t.Fatalf("threshold 254 should be accepted: %v", err)
	}
}

func TestBuildMaskClassification(t *testing.T) {
	img := image.NewNRGBA(image.Rect(0, 0, 3, 1))
	img.SetNRGBA(0, 0, color.NRGBA{A: 50})  // exactly at threshold: background
	img.SetNRGBA(1, 0, color.NRGBA{A: 51})  // just above: foreground
	img.SetNRGBA(2, 0, color.NRGBA{A: 255}) // opaque: foreground

	m, err := BuildMask(img, 50)
	if err != nil {
		t.Fatalf("BuildMask: %v", err)
	}
	if m.At(0, 0) {
		t.Fatalf("alpha == threshold should be background")
	}
	if !m.At(1, 0) || !m.At(2, 0) {
		t.Fatalf("alpha above threshold should be foreground")
	}
	if got := m.ForegroundPixels(); got != 2 {
		t.Fatalf("foreground pixels = %d, want 2", got)
	}
}

func TestBuildMaskOutOfRangeIsBackground(t *testing.T) {
	img := sheetWithSquares(2, 2, image.Rect(0, 0, 2, 2))
	m, err := BuildMask(img, 50)
	if err != nil {
		t.Fatalf("BuildMask: %v", err)
	}
	if m.At(-1, 0) || m.At(0, -1) || m.At(2, 0) || m.At(0, 2) {
		t.Fatalf("out-of-range coordinates must read as background")
	}
}
