package sprite

import (
	"fmt"
	"image"

	"github.com/lucasb-eyer/go-colorful"
	"gonum.org/v1/gonum/stat"

	"spriteforge/internal/domain"
)

// PartitionGrid slices bounds into a rows x cols lattice. Cell edges land on
// i*size/n boundaries, so cell dimensions differ by at most one pixel when
// the image does not divide evenly. Padding pixels are trimmed from every
// cell edge; cells that collapse to nothing after trimming are dropped.
//
// Cells come back in row-major order with row/col indexes and a running
// Index for stable naming.
func PartitionGrid(bounds image.Rectangle, rows, cols, padding int) []GridCell {
	w, h := bounds.Dx(), bounds.Dy()
	cells := make([]GridCell, 0, rows*cols)
	for r := 0; r < rows; r++ {
		y0 := bounds.Min.Y + r*h/rows
		y1 := bounds.Min.Y + (r+1)*h/rows
		for c := 0; c < cols; c++ {
			x0 := bounds.Min.X + c*w/cols
			x1 := bounds.Min.X + (c+1)*w/cols
			cell := image.Rect(x0+padding, y0+padding, x1-padding, y1-padding)
			if cell.Dx() <= 0 || cell.Dy() <= 0 {
				continue
			}
			cells = append(cells, GridCell{Bounds: cell, Row: r, Col: c, Index: len(cells)})
		}
	}
	return cells
}

// DetectGridCells infers the lattice from long straight separator lines:
// full rows or columns of near-uniform color spanning at least
// minLineLengthRatio of the image dimension. Runs of adjacent separator
// lines collapse into one boundary, and the spans between boundaries become
// cells.
//
// Uniformity is judged perceptually: a pixel belongs to the line when its
// Lab-space distance to the line's mean color stays under lineThreshold
// scaled to the unit range. Finding no separators on either axis fails with
// ErrGridDetection; callers should retry with explicit rows/cols.
func DetectGridCells(img *image.NRGBA, lineThreshold int, minLineLengthRatio float64) ([]GridCell, error) {
	bounds := img.Bounds()
	w, h := bounds.Dx(), bounds.Dy()
	if w == 0 || h == 0 {
		return nil, fmt.Errorf("%w: empty image", domain.ErrGridDetection)
	}

	threshold := float64(lineThreshold) / 255.0

	sepRows := make([]bool, h)
	for y := 0; y < h; y++ {
		sepRows[y] = isSeparatorLine(img, bounds, y, true, threshold, minLineLengthRatio)
	}
	sepCols := make([]bool, w)
	for x := 0; x < w; x++ {
		sepCols[x] = isSeparatorLine(img, bounds, x, false, threshold, minLineLengthRatio)
	}

	rowSpans := spansBetween(sepRows)
	colSpans := spansBetween(sepCols)

	if countTrue(sepRows) == 0 && countTrue(sepCols) == 0 {
		return nil, fmt.Errorf("%w: no uniform separator lines detected", domain.ErrGridDetection)
	}
	if len(rowSpans) == 0 || len(colSpans) == 0 {
		return nil, fmt.Errorf("%w: separators leave no cells", domain.ErrGridDetection)
	}

	cells := make([]GridCell, 0, len(rowSpans)*len(colSpans))
	for r, rs := range rowSpans {
		for c, cs := range colSpans {
			cell := image.Rect(
				bounds.Min.X+cs[0], bounds.Min.Y+rs[0],
				bounds.Min.X+cs[1], bounds.Min.Y+rs[1],
			)
			cells = append(cells, GridCell{Bounds: cell, Row: r, Col: c, Index: len(cells)})
		}
	}
	return cells, nil
}

// isSeparatorLine scores one row (horizontal=true) or column of the image.
// The line qualifies when the covered fraction of pixels perceptually close
// to the line's mean color reaches minRatio.
func isSeparatorLine(img *image.NRGBA, bounds image.Rectangle, index int, horizontal bool, threshold, minRatio float64) bool {
	length := bounds.Dx()
	if !horizontal {
		length = bounds.Dy()
	}
	if length == 0 {
		return false
	}

	colors := make([]colorful.Color, length)
	var sumL, sumA, sumB float64
	for i := 0; i < length; i++ {
		var px image.Point
		if horizontal {
			px = image.Pt(bounds.Min.X+i, bounds.Min.Y+index)
		} else {
			px = image.Pt(bounds.Min.X+index, bounds.Min.Y+i)
		}
		c := img.NRGBAAt(px.X, px.Y)
		col := colorful.Color{R: float64(c.R) / 255, G: float64(c.G) / 255, B: float64(c.B) / 255}
		colors[i] = col
		l, a, b := col.Lab()
		sumL += l
		sumA += a
		sumB += b
	}
	mean := colorful.Lab(sumL/float64(length), sumA/float64(length), sumB/float64(length))

	distances := make([]float64, length)
	covered := 0
	for i, col := range colors {
		distances[i] = col.DistanceLab(mean)
		if distances[i] <= threshold {
			covered++
		}
	}
	if float64(covered)/float64(length) < minRatio {
		return false
	}
	// A line of wildly varying color can still pass the coverage test when
	// the threshold is generous; the mean deviation catches that.
	return stat.Mean(distances, nil) <= threshold
}

// spansBetween returns the half-open [start, end) spans of false runs.
func spansBetween(separator []bool) [][2]int {
	var spans [][2]int
	start := -1
	for i, sep := range separator {
		if sep {
			if start >= 0 {
				spans = append(spans, [2]int{start, i})
				start = -1
			}
			continue
		}
		if start < 0 {
			start = i
		}
	}
	if start >= 0 {
		spans = append(spans, [2]int{start, len(separator)})
	}
	return spans
}

func countTrue(bits []bool) int {
	n := 0
	for _, b := range bits {
		if b {
			n++
		}
	}
	return n
}
