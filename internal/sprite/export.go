package sprite

import (
	"bytes"
	"image"
	"image/png"

	xdraw "golang.org/x/image/draw"
)

// ExportSprite renders src onto a transparent canvas of exactly
// width x height. The source is scaled down to fit with its aspect ratio
// preserved (never scaled up, never cropped) and centered; remaining canvas
// stays fully transparent. Output is deterministic for identical inputs.
func ExportSprite(src image.Image, width, height int) *image.NRGBA {
	canvas := image.NewNRGBA(image.Rect(0, 0, width, height))

	sb := src.Bounds()
	sw, sh := sb.Dx(), sb.Dy()
	if sw == 0 || sh == 0 {
		return canvas
	}

	nw, nh := sw, sh
	if sw > width || sh > height {
		scaleX := float64(width) / float64(sw)
		scaleY := float64(height) / float64(sh)
		scale := scaleX
		if scaleY < scale {
			scale = scaleY
		}
		nw = int(float64(sw) * scale)
		nh = int(float64(sh) * scale)
		if nw < 1 {
			nw = 1
		}
		if nh < 1 {
			nh = 1
		}
	}

	offX := (width - nw) / 2
	offY := (height - nh) / 2
	dst := image.Rect(offX, offY, offX+nw, offY+nh)

	if nw == sw && nh == sh {
		xdraw.Copy(canvas, dst.Min, src, sb, xdraw.Src, nil)
		return canvas
	}
	xdraw.CatmullRom.Scale(canvas, dst, src, sb, xdraw.Src, nil)
	return canvas
}

// Crop copies the rectangle r out of img into a fresh zero-origin buffer.
func Crop(img *image.NRGBA, r image.Rectangle) *image.NRGBA {
	r = r.Intersect(img.Bounds())
	out := image.NewNRGBA(image.Rect(0, 0, r.Dx(), r.Dy()))
	xdraw.Copy(out, image.Point{}, img, r, xdraw.Src, nil)
	return out
}

// EncodePNG renders img to PNG bytes.
func EncodePNG(img image.Image) ([]byte, error) {
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// DecodePNG parses PNG (or any registered format) bytes into NRGBA.
func DecodePNG(data []byte) (*image.NRGBA, error) {
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	if nrgba, ok := img.(*image.NRGBA); ok {
		return nrgba, nil
	}
	b := img.Bounds()
	out := image.NewNRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	xdraw.Copy(out, image.Point{}, img, b, xdraw.Src, nil)
	return out, nil
}
