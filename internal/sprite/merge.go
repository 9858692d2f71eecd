package sprite

import (
	"image"
	"math"
	"sort"

	"gonum.org/v1/gonum/stat"
)

// MergeRegions unions every pair of regions whose bounding boxes sit within
// distanceThreshold pixels of each other, measured edge to edge, and returns
// one region per resulting group. Anti-aliased fringes and drop shadows that
// segmented into separate blobs rejoin their sprite here.
//
// Grouping runs over a disjoint-set structure rather than repeated pairwise
// scans, so the result is independent of merge order and re-running the
// merge on its own output changes nothing.
func MergeRegions(regions []Region, distanceThreshold int) []Region {
	if len(regions) < 2 {
		return regions
	}

	ds := newDisjointSet(len(regions))
	limit := float64(distanceThreshold)
	for i := 0; i < len(regions); i++ {
		for j := i + 1; j < len(regions); j++ {
			if boxGap(regions[i].Bounds, regions[j].Bounds) <= limit {
				ds.union(i, j)
			}
		}
	}

	// Collect groups keyed by root, preserving first-member order.
	order := make([]int, 0, len(regions))
	groups := make(map[int][]int, len(regions))
	for i := range regions {
		root := ds.find(i)
		if _, ok := groups[root]; !ok {
			order = append(order, root)
		}
		groups[root] = append(groups[root], i)
	}

	merged := make([]Region, 0, len(order))
	for _, root := range order {
		members := groups[root]
		if len(members) == 1 {
			merged = append(merged, regions[members[0]])
			continue
		}
		merged = append(merged, mergeGroup(regions, members))
	}
	return merged
}

// mergeGroup combines member regions into one: union bounding box, summed
// pixel count, composed alpha mask.
func mergeGroup(regions []Region, members []int) Region {
	bounds := regions[members[0]].Bounds
	count := 0
	for _, i := range members {
		bounds = bounds.Union(regions[i].Bounds)
		count += regions[i].PixelCount
	}
	mask := image.NewAlpha(bounds)
	for _, i := range members {
		src := regions[i].Mask
		if src == nil {
			continue
		}
		b := src.Bounds()
		for y := b.Min.Y; y < b.Max.Y; y++ {
			for x := b.Min.X; x < b.Max.X; x++ {
				if src.AlphaAt(x, y).A != 0 {
					mask.SetAlpha(x, y, alphaOpaque)
				}
			}
		}
	}
	return Region{Bounds: bounds, PixelCount: count, Mask: mask}
}

// boxGap returns the minimum edge-to-edge Euclidean distance between two
// rectangles. Overlapping or touching rectangles have gap 0.
func boxGap(a, b image.Rectangle) float64 {
	dx := axisGap(a.Min.X, a.Max.X, b.Min.X, b.Max.X)
	dy := axisGap(a.Min.Y, a.Max.Y, b.Min.Y, b.Max.Y)
	return math.Hypot(float64(dx), float64(dy))
}

func axisGap(aMin, aMax, bMin, bMax int) int {
	if aMax < bMin {
		return bMin - aMax
	}
	if bMax < aMin {
		return aMin - bMax
	}
	return 0
}

// FilterRegions drops statistical noise and whole-canvas false detections,
// then tags survivors with reading-order indexes.
//
// The area filter keeps regions whose pixel area over imageArea lies inside
// [minAreaRatio, maxAreaRatio]; both bounds are inclusive. The size-ratio
// filter then drops regions whose bounding-box area falls under
// sizeRatioThreshold times the largest remaining box, on the policy that a
// sheet's primary sprites are comparably sized.
//
// Zero survivors is a valid, reportable result.
func FilterRegions(regions []Region, minAreaRatio, maxAreaRatio, sizeRatioThreshold float64, imageArea int) []Region {
	if imageArea <= 0 {
		return nil
	}

	kept := make([]Region, 0, len(regions))
	for _, r := range regions {
		ratio := float64(r.PixelCount) / float64(imageArea)
		if ratio < minAreaRatio || ratio > maxAreaRatio {
			continue
		}
		kept = append(kept, r)
	}
	if len(kept) == 0 {
		return kept
	}

	largest := 0
	for _, r := range kept {
		if a := boxArea(r.Bounds); a > largest {
			largest = a
		}
	}
	cutoff := sizeRatioThreshold * float64(largest)
	final := kept[:0]
	for _, r := range kept {
		if float64(boxArea(r.Bounds)) >= cutoff {
			final = append(final, r)
		}
	}

	sortReadingOrder(final)
	for i := range final {
		final[i].Index = i
	}
	return final
}

// sortReadingOrder orders regions top-to-bottom, left-to-right. Regions
// whose vertical spans overlap by more than half the smaller height count as
// one row and are ordered by x.
func sortReadingOrder(regions []Region) {
	sort.SliceStable(regions, func(i, j int) bool {
		a, b := regions[i].Bounds, regions[j].Bounds
		overlap := min(a.Max.Y, b.Max.Y) - max(a.Min.Y, b.Min.Y)
		smaller := min(a.Dy(), b.Dy())
		if overlap*2 > smaller {
			return a.Min.X < b.Min.X
		}
		return a.Min.Y < b.Min.Y
	})
}

func boxArea(r image.Rectangle) int {
	return r.Dx() * r.Dy()
}

// MedianArea returns the median pixel area across regions, used for merge
// diagnostics. Zero when regions is empty.
func MedianArea(regions []Region) float64 {
	if len(regions) == 0 {
		return 0
	}
	areas := make([]float64, len(regions))
	for i, r := range regions {
		areas[i] = float64(r.PixelCount)
	}
	sort.Float64s(areas)
	return stat.Quantile(0.5, stat.Empirical, areas, nil)
}
