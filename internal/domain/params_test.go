package domain

import (
	"encoding/json"
	"errors"
	"testing"
)

func TestValidateDefaults(t *testing.T) {
	p := DefaultParams()
	if err := p.Validate(); err != nil {
		t.Fatalf("defaults should validate: %v", err)
	}
}

func TestValidateRejectsOutOfRange(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Params)
	}{
		{"unknown mode", func(p *Params) { p.Mode = "diagonal" }},
		{"alpha threshold low", func(p *Params) { p.AlphaThreshold = 0 }},
		{"alpha threshold high", func(p *Params) { p.AlphaThreshold = 255 }},
		{"connectivity", func(p *Params) { p.Connectivity = 6 }},
		{"distance low", func(p *Params) { p.DistanceThreshold = 9 }},
		{"distance high", func(p *Params) { p.DistanceThreshold = 501 }},
		{"size ratio low", func(p *Params) { p.SizeRatioThreshold = 0.05 }},
		{"size ratio high", func(p *Params) { p.SizeRatioThreshold = 1.5 }},
		{"min area low", func(p *Params) { p.MinAreaRatio = 0.00001 }},
		{"min area high", func(p *Params) { p.MinAreaRatio = 0.2 }},
		{"max area low", func(p *Params) { p.MaxAreaRatio = 0.01 }},
		{"max area high", func(p *Params) { p.MaxAreaRatio = 0.95 }},
		{"min above max", func(p *Params) { p.MinAreaRatio = 0.09; p.MaxAreaRatio = 0.05 }},
		{"grid zero rows", func(p *Params) { p.Mode = ModeGrid; p.Rows = 0 }},
		{"grid zero cols", func(p *Params) { p.Mode = ModeGrid; p.Cols = 0 }},
		{"grid negative padding", func(p *Params) { p.Mode = ModeGrid; p.Padding = -1 }},
		{"auto-detect line threshold", func(p *Params) { p.Mode = ModeGrid; p.AutoDetect = true; p.LineThreshold = 5 }},
		{"auto-detect line length", func(p *Params) { p.Mode = ModeGrid; p.AutoDetect = true; p.MinLineLengthRatio = 0.01 }},
		{"no output sizes", func(p *Params) { p.OutputSizes = nil }},
		{"unnamed output size", func(p *Params) { p.OutputSizes = []OutputSize{{Width: 64, Height: 64}} }},
		{"duplicate output size", func(p *Params) {
			p.OutputSizes = []OutputSize{{Name: "a", Width: 1, Height: 1}, {Name: "a", Width: 2, Height: 2}}
		}},
		{"zero dimension", func(p *Params) { p.OutputSizes = []OutputSize{{Name: "a", Width: 0, Height: 64}} }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			p := DefaultParams()
			tc.mutate(&p)
			err := p.Validate()
			if err == nil {
				t.Fatalf("expected validation error")
			}
			if !errors.Is(err, ErrConfig) {
				t.Fatalf("error %v does not wrap ErrConfig", err)
			}
		})
	}
}

func TestValidateGridSkipsUnusedBranch(t *testing.T) {
	// Fixed-lattice grid ignores the auto-detect knobs and vice versa.
	p := DefaultParams()
	p.Mode = ModeGrid
	p.Rows, p.Cols = 2, 3
	p.LineThreshold = 1000
	if err := p.Validate(); err != nil {
		t.Fatalf("line_threshold should be ignored without auto_detect: %v", err)
	}

	p = DefaultParams()
	p.Mode = ModeGrid
	p.AutoDetect = true
	p.Rows = 0
	if err := p.Validate(); err != nil {
		t.Fatalf("rows should be ignored with auto_detect: %v", err)
	}
}

func TestUnmarshalAppliesDefaults(t *testing.T) {
	var p Params
	if err := json.Unmarshal([]byte(`{"alpha_threshold": 100}`), &p); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if p.AlphaThreshold != 100 {
		t.Fatalf("alpha_threshold = %d, want 100", p.AlphaThreshold)
	}
	if p.DistanceThreshold != 80 {
		t.Fatalf("distance_threshold = %d, want default 80", p.DistanceThreshold)
	}
	if p.Mode != ModeAuto {
		t.Fatalf("mode = %q, want default auto", p.Mode)
	}
	if len(p.OutputSizes) != 3 {
		t.Fatalf("output sizes = %d, want default 3", len(p.OutputSizes))
	}
}

func TestUnmarshalOutputSizes(t *testing.T) {
	var p Params
	raw := `{"output_sizes": {"thumb": [32, 32], "banner": [512, 128]}}`
	if err := json.Unmarshal([]byte(raw), &p); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	want := []OutputSize{
		{Name: "banner", Width: 512, Height: 128},
		{Name: "thumb", Width: 32, Height: 32},
	}
	if len(p.OutputSizes) != len(want) {
		t.Fatalf("sizes = %d, want %d", len(p.OutputSizes), len(want))
	}
	for i, size := range want {
		if p.OutputSizes[i] != size {
			t.Fatalf("size[%d] = %+v, want %+v", i, p.OutputSizes[i], size)
		}
	}
	if got := p.SizeNames(); got[0] != "banner" || got[1] != "thumb" {
		t.Fatalf("size names = %v, want [banner thumb]", got)
	}
}

func TestUnmarshalRejectsMalformedSize(t *testing.T) {
	var p Params
	err := json.Unmarshal([]byte(`{"output_sizes": {"thumb": [32]}}`), &p)
	if err == nil {
		t.Fatalf("expected error for one-element size")
	}
	if !errors.Is(err, ErrConfig) {
		t.Fatalf("error %v does not wrap ErrConfig", err)
	}
}

func TestMarshalRoundTrip(t *testing.T) {
	p := DefaultParams()
	p.Mode = ModeGrid
	p.Rows, p.Cols = 4, 5
	p.OutputSizes = []OutputSize{{Name: "icon", Width: 16, Height: 16}}

	data, err := json.Marshal(p)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var back Params
	if err := json.Unmarshal(data, &back); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if back.Mode != ModeGrid || back.Rows != 4 || back.Cols != 5 {
		t.Fatalf("round trip lost grid settings: %+v", back)
	}
	if len(back.OutputSizes) != 1 || back.OutputSizes[0] != p.OutputSizes[0] {
		t.Fatalf("round trip lost output sizes: %+v", back.OutputSizes)
	}
}

func TestIsTransient(t *testing.T) {
	if !IsTransient(ErrRemoval) || !IsTransient(ErrGeneration) {
		t.Fatalf("removal and generation failures should be transient")
	}
	for _, err := range []error{ErrConfig, ErrGridDetection, ErrNoSpritesFound, ErrPackaging, ErrNotFound} {
		if IsTransient(err) {
			t.Fatalf("%v should not be transient", err)
		}
	}
}
