// Package tiling rasterizes PDF pages and stacks consecutive pages vertically
// into PNG tiles.
package tiling

import (
	"context"
	"errors"
	"fmt"
	"image"
	"image/draw"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"sort"

	"github.com/Lllllllleong/visionocrbatch/internal/imageio"
	"github.com/Lllllllleong/visionocrbatch/internal/models"
)

const (
	DefaultDPI       = 300
	DefaultBatch     = 10
	DefaultOutputDir = "pngs"
)

// Resolutions are the supported rasterization resolutions in dots per inch.
var Resolutions = []int{100, 150, 200, 300, 400, 500, 600}

// PageSource is an open multi-page document. Page numbers are zero-based.
type PageSource interface {
	NumPage() int
	ImageDPI(pageNumber int, dpi float64) (*image.RGBA, error)
	Close() error
}

// Opener opens the document at path.
type Opener func(path string) (PageSource, error)

type Tiler struct {
	DPI       int
	Batch     int
	OutputDir string
	logger    *slog.Logger
}

func New(dpi, batch int, outputDir string, logger *slog.Logger) (*Tiler, error) {
	if !slices.Contains(Resolutions, dpi) {
		return nil, fmt.Errorf("unsupported resolution %d, want one of %v", dpi, Resolutions)
	}
	if batch < 1 {
		return nil, fmt.Errorf("batch must be at least 1, got %d", batch)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Tiler{DPI: dpi, Batch: batch, OutputDir: outputDir, logger: logger}, nil
}

// TileDir tiles every PDF in dir, in name order. A file that fails is logged
// and the rest are still processed.
func (t *Tiler) TileDir(ctx context.Context, dir string, open Opener) ([]string, error) {
	matches, err := filepath.Glob(filepath.Join(dir, "*.pdf"))
	if err != nil {
		return nil, fmt.Errorf("failed to list PDFs in %s: %w", dir, err)
	}
	sort.Strings(matches)
	if err := os.MkdirAll(t.OutputDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create output directory: %w", err)
	}

	var written []string
	var errs []error
	for _, path := range matches {
		if err := ctx.Err(); err != nil {
			return written, err
		}
		logCtx := t.logger.With("file", path)
		logCtx.Info("Processing PDF.")

		src, err := open(path)
		if err != nil {
			logCtx.Error("Failed to open PDF.", "error", err)
			errs = append(errs, fmt.Errorf("%s: %w", path, err))
			continue
		}
		tiles, err := t.TileFile(src, models.BaseName(path))
		_ = src.Close()
		written = append(written, tiles...)
		if err != nil {
			logCtx.Error("Failed to tile PDF.", "error", err)
			errs = append(errs, fmt.Errorf("%s: %w", path, err))
		}
	}
	return written, errors.Join(errs...)
}

// TileFile renders every page of src and writes one tile per Batch pages,
// named <baseName>-<dpi>-<from>-<to>.png with one-based page numbers. Slot
// size comes from the first page of each tile.
func (t *Tiler) TileFile(src PageSource, baseName string) ([]string, error) {
	count := src.NumPage()
	var written []string
	var canvas *image.RGBA
	var slotW, slotH int
	from := 1

	for i := 0; i < count; i++ {
		pno := i + 1
		page, err := src.ImageDPI(i, float64(t.DPI))
		if err != nil {
			return written, fmt.Errorf("failed to render page %d: %w", pno, err)
		}
		t.logger.Debug("Rendered page.", "page", pno, "pages", count)

		if canvas == nil {
			slotW, slotH = page.Bounds().Dx(), page.Bounds().Dy()
			slots := min(t.Batch, count-pno+1)
			canvas = image.NewRGBA(image.Rect(0, 0, slotW, slotH*slots))
			draw.Draw(canvas, canvas.Bounds(), image.Black, image.Point{}, draw.Src)
		}
		y := slotH * (i % t.Batch)
		draw.Draw(canvas, image.Rect(0, y, slotW, y+slotH), page, page.Bounds().Min, draw.Src)

		if pno%t.Batch == 0 || pno == count {
			name := filepath.Join(t.OutputDir, fmt.Sprintf("%s-%d-%d-%d.png", baseName, t.DPI, from, pno))
			if err := imageio.SavePNG(name, canvas); err != nil {
				return written, err
			}
			t.logger.Info("Wrote tile.", "output", name)
			written = append(written, name)
			canvas = nil
			from = pno + 1
		}
	}
	return written, nil
}
