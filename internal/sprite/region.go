package sprite

import (
	"image"
	"image/color"
)

var alphaOpaque = color.Alpha{A: 255}

// Region is one connected foreground component. Bounds and PixelCount are
// maintained through merging (union box, summed count); Index is assigned
// after filtering, in reading order.
type Region struct {
	Bounds     image.Rectangle
	PixelCount int
	// Mask holds the component's own pixels as an alpha sub-image with the
	// same bounds as the region.
	Mask  *image.Alpha
	Index int
}

// GridCell is one rectangular slice of the source image, produced by
// lattice partitioning instead of detection.
type GridCell struct {
	Bounds image.Rectangle
	Row    int
	Col    int
	Index  int
}
