package domain

import (
	"encoding/json"
	"fmt"
	"sort"
)

// Mode selects how the source image is partitioned into sprites.
type Mode string

const (
	// ModeAuto segments the foreground mask into connected regions.
	ModeAuto Mode = "auto"
	// ModeGrid slices the image along a row/column lattice.
	ModeGrid Mode = "grid"
)

// OutputSize is a named target canvas.
type OutputSize struct {
	Name   string `json:"name"`
	Width  int    `json:"width"`
	Height int    `json:"height"`
}

// Params enumerates every recognized pipeline option and its valid range.
// Invalid values are rejected on Validate, before the task is queued.
type Params struct {
	Mode               Mode         `json:"mode"`
	AlphaThreshold     int          `json:"alpha_threshold"`
	Connectivity       int          `json:"connectivity"`
	DistanceThreshold  int          `json:"distance_threshold"`
	SizeRatioThreshold float64      `json:"size_ratio_threshold"`
	MinAreaRatio       float64      `json:"min_area_ratio"`
	MaxAreaRatio       float64      `json:"max_area_ratio"`
	AutoDetect         bool         `json:"auto_detect"`
	Rows               int          `json:"rows"`
	Cols               int          `json:"cols"`
	Padding            int          `json:"padding"`
	LineThreshold      int          `json:"line_threshold"`
	MinLineLengthRatio float64      `json:"min_line_length_ratio"`
	OutputSizes        []OutputSize `json:"-"`
}

// DefaultParams returns the documented defaults: auto mode with the standard
// large/medium/small canvases.
func DefaultParams() Params {
	return Params{
		Mode:               ModeAuto,
		AlphaThreshold:     50,
		Connectivity:       8,
		DistanceThreshold:  80,
		SizeRatioThreshold: 0.4,
		MinAreaRatio:       0.0005,
		MaxAreaRatio:       0.25,
		Rows:               1,
		Cols:               1,
		Padding:            0,
		LineThreshold:      40,
		MinLineLengthRatio: 0.8,
		OutputSizes:        DefaultOutputSizes(),
	}
}

// DefaultOutputSizes returns the fixed default size set.
func DefaultOutputSizes() []OutputSize {
	return []OutputSize{
		{Name: "large", Width: 256, Height: 256},
		{Name: "medium", Width: 128, Height: 128},
		{Name: "small", Width: 64, Height: 64},
	}
}

// Validate checks every option against its documented range. All failures
// wrap ErrConfig.
func (p *Params) Validate() error {
	switch p.Mode {
	case ModeAuto, ModeGrid:
	default:
		return fmt.Errorf("%w: mode %q (want auto or grid)", ErrConfig, p.Mode)
	}
	if p.AlphaThreshold < 1 || p.AlphaThreshold > 254 {
		return fmt.Errorf("%w: alpha_threshold %d out of range 1-254", ErrConfig, p.AlphaThreshold)
	}
	if p.Connectivity != 4 && p.Connectivity != 8 {
		return fmt.Errorf("%w: connectivity %d (want 4 or 8)", ErrConfig, p.Connectivity)
	}
	if p.DistanceThreshold < 10 || p.DistanceThreshold > 500 {
		return fmt.Errorf("%w: distance_threshold %d out of range 10-500", ErrConfig, p.DistanceThreshold)
	}
	if p.SizeRatioThreshold < 0.1 || p.SizeRatioThreshold > 1.0 {
		return fmt.Errorf("%w: size_ratio_threshold %g out of range 0.1-1.0", ErrConfig, p.SizeRatioThreshold)
	}
	if p.MinAreaRatio < 0.0001 || p.MinAreaRatio > 0.1 {
		return fmt.Errorf("%w: min_area_ratio %g out of range 0.0001-0.1", ErrConfig, p.MinAreaRatio)
	}
	if p.MaxAreaRatio < 0.05 || p.MaxAreaRatio > 0.9 {
		return fmt.Errorf("%w: max_area_ratio %g out of range 0.05-0.9", ErrConfig, p.MaxAreaRatio)
	}
	if p.MinAreaRatio > p.MaxAreaRatio {
		return fmt.Errorf("%w: min_area_ratio %g exceeds max_area_ratio %g", ErrConfig, p.MinAreaRatio, p.MaxAreaRatio)
	}
	if p.Mode == ModeGrid {
		if p.AutoDetect {
			if p.LineThreshold < 10 || p.LineThreshold > 200 {
				return fmt.Errorf("%w: line_threshold %d out of range 10-200", ErrConfig, p.LineThreshold)
			}
			if p.MinLineLengthRatio < 0.1 || p.MinLineLengthRatio > 1.0 {
				return fmt.Errorf("%w: min_line_length_ratio %g out of range 0.1-1.0", ErrConfig, p.MinLineLengthRatio)
			}
		} else {
			if p.Rows < 1 {
				return fmt.Errorf("%w: rows %d (want >= 1)", ErrConfig, p.Rows)
			}
			if p.Cols < 1 {
				return fmt.Errorf("%w: cols %d (want >= 1)", ErrConfig, p.Cols)
			}
			if p.Padding < 0 {
				return fmt.Errorf("%w: padding %d (want >= 0)", ErrConfig, p.Padding)
			}
		}
	}
	if len(p.OutputSizes) == 0 {
		return fmt.Errorf("%w: at least one output size is required", ErrConfig)
	}
	seen := make(map[string]struct{}, len(p.OutputSizes))
	for _, size := range p.OutputSizes {
		if size.Name == "" {
			return fmt.Errorf("%w: output size name is required", ErrConfig)
		}
		if _, dup := seen[size.Name]; dup {
			return fmt.Errorf("%w: duplicate output size name %q", ErrConfig, size.Name)
		}
		seen[size.Name] = struct{}{}
		if size.Width < 1 || size.Height < 1 {
			return fmt.Errorf("%w: output size %q has non-positive dimensions", ErrConfig, size.Name)
		}
	}
	return nil
}

// paramsJSON is the wire form: output_sizes maps name to [width, height].
type paramsJSON struct {
	Mode               *Mode            `json:"mode"`
	AlphaThreshold     *int             `json:"alpha_threshold"`
	Connectivity       *int             `json:"connectivity"`
	DistanceThreshold  *int             `json:"distance_threshold"`
	SizeRatioThreshold *float64         `json:"size_ratio_threshold"`
	MinAreaRatio       *float64         `json:"min_area_ratio"`
	MaxAreaRatio       *float64         `json:"max_area_ratio"`
	AutoDetect         *bool            `json:"auto_detect"`
	Rows               *int             `json:"rows"`
	Cols               *int             `json:"cols"`
	Padding            *int             `json:"padding"`
	LineThreshold      *int             `json:"line_threshold"`
	MinLineLengthRatio *float64         `json:"min_line_length_ratio"`
	OutputSizes        map[string][]int `json:"output_sizes"`
}

// UnmarshalJSON decodes the wire form over the documented defaults, so a
// caller only supplies the options they want to change.
func (p *Params) UnmarshalJSON(data []byte) error {
	*p = DefaultParams()
	var wire paramsJSON
	if err := json.Unmarshal(data, &wire); err != nil {
		return fmt.Errorf("%w: %v", ErrConfig, err)
	}
	if wire.Mode != nil {
		p.Mode = *wire.Mode
	}
	if wire.AlphaThreshold != nil {
		p.AlphaThreshold = *wire.AlphaThreshold
	}
	if wire.Connectivity != nil {
		p.Connectivity = *wire.Connectivity
	}
	if wire.DistanceThreshold != nil {
		p.DistanceThreshold = *wire.DistanceThreshold
	}
	if wire.SizeRatioThreshold != nil {
		p.SizeRatioThreshold = *wire.SizeRatioThreshold
	}
	if wire.MinAreaRatio != nil {
		p.MinAreaRatio = *wire.MinAreaRatio
	}
	if wire.MaxAreaRatio != nil {
		p.MaxAreaRatio = *wire.MaxAreaRatio
	}
	if wire.AutoDetect != nil {
		p.AutoDetect = *wire.AutoDetect
	}
	if wire.Rows != nil {
		p.Rows = *wire.Rows
	}
	if wire.Cols != nil {
		p.Cols = *wire.Cols
	}
	if wire.Padding != nil {
		p.Padding = *wire.Padding
	}
	if wire.LineThreshold != nil {
		p.LineThreshold = *wire.LineThreshold
	}
	if wire.MinLineLengthRatio != nil {
		p.MinLineLengthRatio = *wire.MinLineLengthRatio
	}
	if wire.OutputSizes != nil {
		sizes := make([]OutputSize, 0, len(wire.OutputSizes))
		for name, dims := range wire.OutputSizes {
			if len(dims) != 2 {
				return fmt.Errorf("%w: output size %q wants [width, height]", ErrConfig, name)
			}
			sizes = append(sizes, OutputSize{Name: name, Width: dims[0], Height: dims[1]})
		}
		// Map iteration order is random; keep size order stable for naming.
		sort.Slice(sizes, func(i, j int) bool { return sizes[i].Name < sizes[j].Name })
		p.OutputSizes = sizes
	}
	return nil
}

// MarshalJSON encodes the wire form.
func (p Params) MarshalJSON() ([]byte, error) {
	sizes := make(map[string][]int, len(p.OutputSizes))
	for _, size := range p.OutputSizes {
		sizes[size.Name] = []int{size.Width, size.Height}
	}
	return json.Marshal(paramsJSON{
		Mode:               &p.Mode,
		AlphaThreshold:     &p.AlphaThreshold,
		Connectivity:       &p.Connectivity,
		DistanceThreshold:  &p.DistanceThreshold,
		SizeRatioThreshold: &p.SizeRatioThreshold,
		MinAreaRatio:       &p.MinAreaRatio,
		MaxAreaRatio:       &p.MaxAreaRatio,
		AutoDetect:         &p.AutoDetect,
		Rows:               &p.Rows,
		Cols:               &p.Cols,
		Padding:            &p.Padding,
		LineThreshold:      &p.LineThreshold,
		MinLineLengthRatio: &p.MinLineLengthRatio,
		OutputSizes:        sizes,
	})
}

// SizeNames returns the output size names in declaration order.
func (p Params) SizeNames() []string {
	names := make([]string, len(p.OutputSizes))
	for i, size := range p.OutputSizes {
		names[i] = size.Name
	}
	return names
}
