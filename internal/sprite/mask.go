// Package sprite implements the segmentation core: alpha-mask thresholding,
// connected-region detection, proximity merging, grid partitioning and the
// multi-size export stage.
package sprite

import (
	"fmt"
	"image"

	"spriteforge/internal/domain"
)

// Mask is a binary foreground classification of every pixel, stored as a
// flat row-major grid matching the source image dimensions.
type Mask struct {
	W, H int
	Pix  []uint8
}

// BuildMask thresholds the alpha channel of img into a foreground mask.
// A pixel is foreground when alpha > threshold. The threshold must be in
// 1-254; anything else is a configuration error.
func BuildMask(img *image.NRGBA, alphaThreshold int) (*Mask, error) {
	if alphaThreshold < 1 || alphaThreshold > 254 {
		return nil, fmt.Errorf("%w: alpha_threshold %d out of range 1-254", domain.ErrConfig, alphaThreshold)
	}
	bounds := img.Bounds()
	w, h := bounds.Dx(), bounds.Dy()
	m := &Mask{W: w, H: h, Pix: make([]uint8, w*h)}
	cutoff := uint8(alphaThreshold)
	for y := 0; y < h; y++ {
		rowOff := img.PixOffset(bounds.Min.X, bounds.Min.Y+y)
		for x := 0; x < w; x++ {
			if img.Pix[rowOff+x*4+3] > cutoff {
				m.Pix[y*w+x] = 1
			}
		}
	}
	return m, nil
}

// At reports whether (x, y) is foreground. Out-of-range coordinates are
// background.
func (m *Mask) At(x, y int) bool {
	if x < 0 || y < 0 || x >= m.W || y >= m.H {
		return false
	}
	return m.Pix[y*m.W+x] != 0
}

// ForegroundPixels counts foreground pixels.
func (m *Mask) ForegroundPixels() int {
	n := 0
	for _, p := range m.Pix {
		if p != 0 {
			n++
		}
	}
	return n
}
