// Package pipeline sequences the sprite extraction stages for one task:
// mask, detect, merge, export in auto mode, or partition, export in grid
// mode, followed by archive packaging.
package pipeline

import (
	"context"
	"fmt"
	"image"
	"os"
	"path/filepath"
	"sync"

	"spriteforge/internal/domain"
	"spriteforge/internal/infra"
	"spriteforge/internal/providers/removal"
	"spriteforge/internal/sprite"
	"spriteforge/internal/storage"
	"spriteforge/pkg/zip"
)

// Progress checkpoints. Coarse on purpose; progress only ever moves forward.
const (
	ProgressGenerated = 10
	ProgressMatted    = 25
	ProgressDetected  = 50
	ProgressExported  = 75
	ProgressPackaged  = 90
	ProgressDone      = 100
)

// Pipeline executes one task's extraction run. A fresh value is constructed
// per task from the task's own parameters; nothing here is shared mutable
// state across tasks.
type Pipeline struct {
	Store   *storage.FileStore
	Remover removal.Remover
	Logger  infra.Logger
}

// Result captures a finished run.
type Result struct {
	SpriteCount int
	SizeNames   []string
	ArchiveKey  string
}

// Notify receives lifecycle checkpoints as the run advances.
type Notify func(status domain.TaskStatus, progress int)

// Run executes the full pipeline for task: load input, segment, export every
// size variant into the task's scratch directory, archive the tree, store
// the archive. The scratch directory is released on every exit path,
// including errors; only the archive persists.
//
// A run in which zero regions survive filtering still writes its (empty)
// archive and returns ErrNoSpritesFound alongside the result: a
// successful-but-empty terminal condition, not a crash.
func (p *Pipeline) Run(ctx context.Context, task *domain.Task, notify Notify) (Result, error) {
	if notify == nil {
		notify = func(domain.TaskStatus, int) {}
	}

	scratch, err := p.Store.CreateScratch(task.ID)
	if err != nil {
		return Result{}, fmt.Errorf("acquire scratch: %w", err)
	}
	defer func() {
		if rmErr := p.Store.RemoveScratch(task.ID); rmErr != nil {
			p.Logger.Error().Err(rmErr).Str("task_id", task.ID).Msg("pipeline: scratch cleanup failed")
		}
	}()

	input, err := p.Store.Read(ctx, task.InputKey)
	if err != nil {
		return Result{}, fmt.Errorf("load input: %w", err)
	}

	crops, err := p.Segment(ctx, input, task.Params, notify)
	if err != nil {
		return Result{}, err
	}
	notify(domain.StatusProcessing, ProgressDetected)

	if err := WriteSizeTree(scratch, crops, task.Params.OutputSizes); err != nil {
		return Result{}, err
	}
	notify(domain.StatusPackaging, ProgressExported)

	archive, err := zip.ArchiveDir(scratch)
	if err != nil {
		return Result{}, fmt.Errorf("%w: %v", domain.ErrPackaging, err)
	}
	archiveKey, err := p.Store.Write(ctx, "results/sprites_"+task.ID+".zip", archive)
	if err != nil {
		return Result{}, fmt.Errorf("%w: %v", domain.ErrPackaging, err)
	}
	notify(domain.StatusPackaging, ProgressPackaged)

	result := Result{
		SpriteCount: len(crops),
		SizeNames:   task.Params.SizeNames(),
		ArchiveKey:  archiveKey,
	}
	if len(crops) == 0 {
		return result, domain.ErrNoSpritesFound
	}
	p.Logger.Info().
		Str("task_id", task.ID).
		Int("sprites", result.SpriteCount).
		Strs("sizes", result.SizeNames).
		Msg("pipeline: run complete")
	return result, nil
}

// Segment turns the encoded source image into cropped sprite images
// according to params: connected-region detection in auto mode, lattice
// slicing in grid mode.
func (p *Pipeline) Segment(ctx context.Context, input []byte, params domain.Params, notify Notify) ([]*image.NRGBA, error) {
	if notify == nil {
		notify = func(domain.TaskStatus, int) {}
	}

	if params.Mode == domain.ModeGrid {
		img, err := sprite.DecodePNG(input)
		if err != nil {
			return nil, fmt.Errorf("decode source: %w", err)
		}
		var cells []sprite.GridCell
		if params.AutoDetect {
			cells, err = sprite.DetectGridCells(img, params.LineThreshold, params.MinLineLengthRatio)
			if err != nil {
				return nil, err
			}
		} else {
			cells = sprite.PartitionGrid(img.Bounds(), params.Rows, params.Cols, params.Padding)
		}
		crops := make([]*image.NRGBA, len(cells))
		for i, cell := range cells {
			crops[i] = sprite.Crop(img, cell.Bounds)
		}
		return crops, nil
	}

	matted, err := p.Remover.Remove(ctx, input)
	if err != nil {
		return nil, err
	}
	notify(domain.StatusProcessing, ProgressMatted)

	img, err := sprite.DecodePNG(matted)
	if err != nil {
		return nil, fmt.Errorf("decode matted image: %w", err)
	}

	mask, err := sprite.BuildMask(img, params.AlphaThreshold)
	if err != nil {
		return nil, err
	}

	regions := sprite.DetectRegions(mask, params.Connectivity)
	p.Logger.Debug().
		Int("components", len(regions)).
		Float64("median_area", sprite.MedianArea(regions)).
		Msg("pipeline: components detected")

	merged := sprite.MergeRegions(regions, params.DistanceThreshold)
	imageArea := img.Bounds().Dx() * img.Bounds().Dy()
	final := sprite.FilterRegions(merged, params.MinAreaRatio, params.MaxAreaRatio, params.SizeRatioThreshold, imageArea)

	crops := make([]*image.NRGBA, len(final))
	for i, region := range final {
		crops[i] = sprite.Crop(img, region.Bounds)
	}
	return crops, nil
}

// WriteSizeTree renders every crop at every output size under dir, laid out
// as one directory per size name containing sprite_NNN.png files. Crops are
// disjoint and read-only by this point, so each is exported on its own
// goroutine.
func WriteSizeTree(dir string, crops []*image.NRGBA, sizes []domain.OutputSize) error {
	for _, size := range sizes {
		if err := os.MkdirAll(filepath.Join(dir, size.Name), 0o755); err != nil {
			return fmt.Errorf("%w: create size dir %s: %v", domain.ErrPackaging, size.Name, err)
		}
	}

	errs := make([]error, len(crops))
	var wg sync.WaitGroup
	for i, crop := range crops {
		wg.Add(1)
		go func(idx int, crop *image.NRGBA) {
			defer wg.Done()
			for _, size := range sizes {
				canvas := sprite.ExportSprite(crop, size.Width, size.Height)
				data, err := sprite.EncodePNG(canvas)
				if err != nil {
					errs[idx] = fmt.Errorf("encode sprite %d at %s: %w", idx, size.Name, err)
					return
				}
				name := filepath.Join(dir, size.Name, fmt.Sprintf("sprite_%03d.png", idx))
				if err := os.WriteFile(name, data, 0o644); err != nil {
					errs[idx] = fmt.Errorf("write sprite %d at %s: %w", idx, size.Name, err)
					return
				}
			}
		}(i, crop)
	}
	wg.Wait()

	for _, err := range errs {
		if err != nil {
			return err
		}
	}
	return nil
}
