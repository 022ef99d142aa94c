package services

import (
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"math"

	"github.com/Lllllllleong/visionocrbatch/internal/models"
	"golang.org/x/image/vector"
)

const defaultStrokeWidth = 2

// Layer is one set of regions outlined in its granularity's color.
type Layer struct {
	Granularity models.Granularity
	Regions     []models.BoundingPoly
}

// LayersFor collects the regions of doc at each granularity, in the order given.
func LayersFor(doc *models.Document, granularities ...models.Granularity) []Layer {
	layers := make([]Layer, 0, len(granularities))
	for _, g := range granularities {
		layers = append(layers, Layer{Granularity: g, Regions: doc.Bounds(g)})
	}
	return layers
}

// LayerColor is the outline color of a granularity.
func LayerColor(g models.Granularity) (color.RGBA, error) {
	switch g {
	case models.GranularityPage:
		return color.RGBA{R: 0xff, G: 0xff, A: 0xff}, nil
	case models.GranularityBlock:
		return color.RGBA{B: 0xff, A: 0xff}, nil
	case models.GranularityParagraph:
		return color.RGBA{R: 0xff, A: 0xff}, nil
	case models.GranularityWord:
		return color.RGBA{G: 0xff, A: 0xff}, nil
	case models.GranularitySymbol:
		return color.RGBA{R: 0xff, B: 0xff, A: 0xff}, nil
	}
	return color.RGBA{}, fmt.Errorf("no color for %s", g)
}

// Annotator outlines recognized regions on a copy of the source image.
type Annotator struct {
	// StrokeWidth is the outline thickness in pixels.
	StrokeWidth float32
}

func NewAnnotator() *Annotator {
	return &Annotator{StrokeWidth: defaultStrokeWidth}
}

// Render draws the outlines of every layer, in order, onto a copy of img.
// Normalized vertices are scaled to the image size; absolute vertices are
// used as they are. img is not modified.
func (a *Annotator) Render(img image.Image, layers ...Layer) (*image.RGBA, error) {
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	dst := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.Draw(dst, dst.Bounds(), img, b.Min, draw.Src)
	if w == 0 || h == 0 {
		return dst, nil
	}

	stroke := a.StrokeWidth
	if stroke <= 0 {
		stroke = defaultStrokeWidth
	}
	z := vector.NewRasterizer(w, h)
	for _, layer := range layers {
		c, err := LayerColor(layer.Granularity)
		if err != nil {
			return nil, err
		}
		src := image.NewUniform(c)
		for i, region := range layer.Regions {
			points, err := toPixels(region, w, h)
			if err != nil {
				return nil, fmt.Errorf("%s region %d: %w", layer.Granularity, i, err)
			}
			for j := range points {
				z.Reset(w, h)
				strokeEdge(z, points[j], points[(j+1)%len(points)], stroke)
				z.Draw(dst, dst.Bounds(), src, image.Point{})
			}
		}
	}
	return dst, nil
}

type point struct{ x, y float32 }

func toPixels(region models.BoundingPoly, w, h int) ([]point, error) {
	var points []point
	if region.IsNormalized() {
		for _, v := range region.NormalizedVertices {
			points = append(points, point{x: float32(v.X * float64(w)), y: float32(v.Y * float64(h))})
		}
	} else {
		for _, v := range region.Vertices {
			points = append(points, point{x: float32(v.X), y: float32(v.Y)})
		}
	}
	if len(points) < 4 {
		return nil, fmt.Errorf("%w: %d vertices", ErrInvalidRegion, len(points))
	}
	return points, nil
}

// strokeEdge adds the quadrilateral covering the segment p0-p1 at the given
// thickness. Degenerate segments become a square dot.
func strokeEdge(z *vector.Rasterizer, p0, p1 point, width float32) {
	half := width / 2
	dx, dy := p1.x-p0.x, p1.y-p0.y
	length := float32(math.Hypot(float64(dx), float64(dy)))
	var nx, ny float32
	if length == 0 {
		nx, ny = half, 0
		p0.y -= half
		p1.y += half
	} else {
		nx, ny = -dy/length*half, dx/length*half
	}
	size := z.Size()
	clamp := func(x, y float32) (float32, float32) {
		return clampTo(x, float32(size.X)), clampTo(y, float32(size.Y))
	}
	z.MoveTo(clamp(p0.x+nx, p0.y+ny))
	z.LineTo(clamp(p1.x+nx, p1.y+ny))
	z.LineTo(clamp(p1.x-nx, p1.y-ny))
	z.LineTo(clamp(p0.x-nx, p0.y-ny))
	z.ClosePath()
}

func clampTo(v, limit float32) float32 {
	return min(max(v, 0), limit)
}
