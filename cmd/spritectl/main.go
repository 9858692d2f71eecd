// Command spritectl extracts sprites from sheets on the local filesystem,
// without the API or the task queue: one-shot runs, whole directories, or a
// watched hot folder.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/cobra"

	"spriteforge/internal/domain"
	"spriteforge/internal/infra"
	"spriteforge/internal/pipeline"
	"spriteforge/internal/providers/removal"
)

type extractFlags struct {
	mode               string
	alphaThreshold     int
	connectivity       int
	distanceThreshold  int
	sizeRatioThreshold float64
	minAreaRatio       float64
	maxAreaRatio       float64
	rows               int
	cols               int
	padding            int
	autoDetect         bool
	lineThreshold      int
	minLineLengthRatio float64
	sizes              []string
}

func (f *extractFlags) register(cmd *cobra.Command) {
	defaults := domain.DefaultParams()
	cmd.Flags().StringVar(&f.mode, "mode", string(defaults.Mode), "extraction mode: auto or grid")
	cmd.Flags().IntVar(&f.alphaThreshold, "alpha-threshold", defaults.AlphaThreshold, "alpha cutoff for foreground pixels (1-254)")
	cmd.Flags().IntVar(&f.connectivity, "connectivity", defaults.Connectivity, "pixel connectivity: 4 or 8")
	cmd.Flags().IntVar(&f.distanceThreshold, "distance", defaults.DistanceThreshold, "max gap in pixels for region merging")
	cmd.Flags().Float64Var(&f.sizeRatioThreshold, "size-ratio", defaults.SizeRatioThreshold, "keep regions whose bounding box is at least this fraction of the largest")
	cmd.Flags().Float64Var(&f.minAreaRatio, "min-area", defaults.MinAreaRatio, "min region area as a fraction of the image")
	cmd.Flags().Float64Var(&f.maxAreaRatio, "max-area", defaults.MaxAreaRatio, "max region area as a fraction of the image")
	cmd.Flags().IntVar(&f.rows, "rows", defaults.Rows, "grid rows (grid mode)")
	cmd.Flags().IntVar(&f.cols, "cols", defaults.Cols, "grid columns (grid mode)")
	cmd.Flags().IntVar(&f.padding, "padding", defaults.Padding, "pixels trimmed from each cell edge (grid mode)")
	cmd.Flags().BoolVar(&f.autoDetect, "auto-detect", defaults.AutoDetect, "detect separator lines instead of fixed rows/cols (grid mode)")
	cmd.Flags().IntVar(&f.lineThreshold, "line-threshold", defaults.LineThreshold, "max color distance for separator line pixels (grid mode)")
	cmd.Flags().Float64Var(&f.minLineLengthRatio, "min-line-length", defaults.MinLineLengthRatio, "min separator coverage as a fraction of the axis (grid mode)")
	cmd.Flags().StringArrayVar(&f.sizes, "size", nil, "output size as name=WxH, repeatable (default large=256x256, medium=128x128, small=64x64)")
}

func (f *extractFlags) params() (domain.Params, error) {
	p := domain.DefaultParams()
	p.Mode = domain.Mode(f.mode)
	p.AlphaThreshold = f.alphaThreshold
	p.Connectivity = f.connectivity
	p.DistanceThreshold = f.distanceThreshold
	p.SizeRatioThreshold = f.sizeRatioThreshold
	p.MinAreaRatio = f.minAreaRatio
	p.MaxAreaRatio = f.maxAreaRatio
	p.Rows = f.rows
	p.Cols = f.cols
	p.Padding = f.padding
	p.AutoDetect = f.autoDetect
	p.LineThreshold = f.lineThreshold
	p.MinLineLengthRatio = f.minLineLengthRatio

	if len(f.sizes) > 0 {
		sizes := make([]domain.OutputSize, 0, len(f.sizes))
		for _, spec := range f.sizes {
			size, err := parseSizeSpec(spec)
			if err != nil {
				return domain.Params{}, err
			}
			sizes = append(sizes, size)
		}
		p.OutputSizes = sizes
	}

	if err := p.Validate(); err != nil {
		return domain.Params{}, err
	}
	return p, nil
}

func parseSizeSpec(spec string) (domain.OutputSize, error) {
	name, dims, ok := strings.Cut(spec, "=")
	if !ok {
		return domain.OutputSize{}, fmt.Errorf("invalid size %q, expected name=WxH", spec)
	}
	ws, hs, ok := strings.Cut(dims, "x")
	if !ok {
		return domain.OutputSize{}, fmt.Errorf("invalid size %q, expected name=WxH", spec)
	}
	w, err := strconv.Atoi(ws)
	if err != nil {
		return domain.OutputSize{}, fmt.Errorf("invalid width in %q", spec)
	}
	h, err := strconv.Atoi(hs)
	if err != nil {
		return domain.OutputSize{}, fmt.Errorf("invalid height in %q", spec)
	}
	return domain.OutputSize{Name: name, Width: w, Height: h}, nil
}

func main() {
	logger := infra.NewLogger(os.Getenv("APP_ENV"))

	rootCmd := &cobra.Command{
		Use:           "spritectl",
		Short:         "Extract game sprites from sprite sheets",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.AddCommand(newProcessCmd(logger))
	rootCmd.AddCommand(newBatchCmd(logger))
	rootCmd.AddCommand(newWatchCmd(logger))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		logger.Fatal().Err(err).Msg("spritectl failed")
	}
}

func newProcessCmd(logger infra.Logger) *cobra.Command {
	var flags extractFlags
	var output string

	cmd := &cobra.Command{
		Use:   "process <sheet.png>",
		Short: "Extract sprites from a single sheet",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			params, err := flags.params()
			if err != nil {
				return err
			}
			if output == "" {
				output = strings.TrimSuffix(args[0], filepath.Ext(args[0])) + "_sprites"
			}
			return extractFile(cmd.Context(), logger, args[0], output, params)
		},
	}
	flags.register(cmd)
	cmd.Flags().StringVarP(&output, "output", "o", "", "output directory (default <sheet>_sprites)")
	return cmd
}

func newBatchCmd(logger infra.Logger) *cobra.Command {
	var flags extractFlags
	var output string

	cmd := &cobra.Command{
		Use:   "batch <directory>",
		Short: "Extract sprites from every PNG under a directory",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			params, err := flags.params()
			if err != nil {
				return err
			}
			if output == "" {
				output = filepath.Join(args[0], "sprites")
			}

			var processed, failed int
			walkErr := filepath.WalkDir(args[0], func(path string, d os.DirEntry, err error) error {
				if err != nil {
					return err
				}
				if d.IsDir() || !strings.EqualFold(filepath.Ext(path), ".png") {
					return nil
				}
				dest := filepath.Join(output, strings.TrimSuffix(filepath.Base(path), filepath.Ext(path)))
				if err := extractFile(cmd.Context(), logger, path, dest, params); err != nil {
					failed++
					logger.Error().Err(err).Str("sheet", path).Msg("batch: sheet failed")
					return nil
				}
				processed++
				return nil
			})
			if walkErr != nil {
				return walkErr
			}
			logger.Info().Int("processed", processed).Int("failed", failed).Msg("batch: done")
			if failed > 0 {
				return fmt.Errorf("%d of %d sheets failed", failed, processed+failed)
			}
			return nil
		},
	}
	flags.register(cmd)
	cmd.Flags().StringVarP(&output, "output", "o", "", "output root (default <directory>/sprites)")
	return cmd
}

func newWatchCmd(logger infra.Logger) *cobra.Command {
	var flags extractFlags
	var output string
	var settle time.Duration

	cmd := &cobra.Command{
		Use:   "watch <directory>",
		Short: "Watch a hot folder and extract sprites from new PNG sheets",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			params, err := flags.params()
			if err != nil {
				return err
			}
			if output == "" {
				output = filepath.Join(args[0], "sprites")
			}

			watcher, err := fsnotify.NewWatcher()
			if err != nil {
				return err
			}
			defer watcher.Close()
			if err := watcher.Add(args[0]); err != nil {
				return err
			}
			logger.Info().Str("dir", args[0]).Msg("watch: watching for sheets")

			for {
				select {
				case <-cmd.Context().Done():
					return nil
				case event, ok := <-watcher.Events:
					if !ok {
						return nil
					}
					if !event.Has(fsnotify.Create) && !event.Has(fsnotify.Write) {
						continue
					}
					if !strings.EqualFold(filepath.Ext(event.Name), ".png") {
						continue
					}
					// Editors and copies fire several events per file; give
					// the writer a moment to finish.
					time.Sleep(settle)
					dest := filepath.Join(output, strings.TrimSuffix(filepath.Base(event.Name), filepath.Ext(event.Name)))
					if err := extractFile(cmd.Context(), logger, event.Name, dest, params); err != nil {
						logger.Error().Err(err).Str("sheet", event.Name).Msg("watch: sheet failed")
					}
				case err, ok := <-watcher.Errors:
					if !ok {
						return nil
					}
					logger.Error().Err(err).Msg("watch: watcher error")
				}
			}
		},
	}
	flags.register(cmd)
	cmd.Flags().StringVarP(&output, "output", "o", "", "output root (default <directory>/sprites)")
	cmd.Flags().DurationVar(&settle, "settle", 500*time.Millisecond, "delay before reading a changed file")
	return cmd
}

// extractFile runs the segmentation stages directly against local files and
// writes the per-size sprite tree under dest.
func extractFile(ctx context.Context, logger infra.Logger, path, dest string, params domain.Params) error {
	input, err := os.ReadFile(path)
	if err != nil {
		return err
	}

	pipe := &pipeline.Pipeline{Remover: removal.Passthrough{}, Logger: logger}
	crops, err := pipe.Segment(ctx, input, params, nil)
	if err != nil {
		return err
	}
	if len(crops) == 0 {
		return errors.New("no sprites found in " + path)
	}

	if err := os.MkdirAll(dest, 0o755); err != nil {
		return err
	}
	if err := pipeline.WriteSizeTree(dest, crops, params.OutputSizes); err != nil {
		return err
	}
	logger.Info().Str("sheet", path).Str("output", dest).Int("sprites", len(crops)).Msg("extracted")
	return nil
}
