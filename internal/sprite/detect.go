package sprite

import "image"

// DetectRegions labels connected foreground components of m and returns one
// Region per component. Connectivity is 8 by default (diagonal neighbors
// join a component); pass 4 for edge-adjacency only.
//
// Regions come back in first-encountered scan order (top-to-bottom rows,
// left-to-right within a row), which keeps results stable for testing. An
// all-background mask yields an empty slice; that is a normal zero-count
// condition, not an error.
func DetectRegions(m *Mask, connectivity int) []Region {
	if connectivity != 4 {
		connectivity = 8
	}

	visited := make([]uint8, len(m.Pix))
	var regions []Region

	for y := 0; y < m.H; y++ {
		for x := 0; x < m.W; x++ {
			idx := y*m.W + x
			if m.Pix[idx] == 0 || visited[idx] != 0 {
				continue
			}
			regions = append(regions, floodComponent(m, visited, x, y, connectivity))
		}
	}
	return regions
}

// floodComponent runs a stack-based flood fill from (startX, startY) over
// unvisited foreground pixels, accumulating bounds, pixel count and the
// component's alpha sub-mask.
func floodComponent(m *Mask, visited []uint8, startX, startY, connectivity int) Region {
	type point struct{ x, y int }
	stack := []point{{startX, startY}}
	visited[startY*m.W+startX] = 1

	minX, minY := startX, startY
	maxX, maxY := startX, startY
	var pixels []point

	for len(stack) > 0 {
		p := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		pixels = append(pixels, p)

		if p.x < minX {
			minX = p.x
		}
		if p.x > maxX {
			maxX = p.x
		}
		if p.y < minY {
			minY = p.y
		}
		if p.y > maxY {
			maxY = p.y
		}

		for _, d := range neighborOffsets(connectivity) {
			nx, ny := p.x+d.x, p.y+d.y
			if nx < 0 || ny < 0 || nx >= m.W || ny >= m.H {
				continue
			}
			nidx := ny*m.W + nx
			if m.Pix[nidx] == 0 || visited[nidx] != 0 {
				continue
			}
			visited[nidx] = 1
			stack = append(stack, point{nx, ny})
		}
	}

	bounds := image.Rect(minX, minY, maxX+1, maxY+1)
	mask := image.NewAlpha(bounds)
	for _, p := range pixels {
		mask.SetAlpha(p.x, p.y, alphaOpaque)
	}
	return Region{Bounds: bounds, PixelCount: len(pixels), Mask: mask}
}

var (
	offsets4 = []struct{ x, y int }{{1, 0}, {-1, 0}, {0, 1}, {0, -1}}
	offsets8 = []struct{ x, y int }{
		{1, 0}, {-1, 0}, {0, 1}, {0, -1},
		{1, 1}, {1, -1}, {-1, 1}, {-1, -1},
	}
)

func neighborOffsets(connectivity int) []struct{ x, y int } {
	if connectivity == 4 {
		return offsets4
	}
	return offsets8
}
