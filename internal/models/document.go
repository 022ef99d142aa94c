package models

import "strings"

// Vertex is a point in absolute pixel coordinates.
type Vertex struct {
	X int32 `json:"x"`
	Y int32 `json:"y"`
}

// NormalizedVertex is a point in resolution-independent [0,1] coordinates.
type NormalizedVertex struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// BoundingPoly delimits a detected text element. The synchronous image path fills
// Vertices, the asynchronous file path fills NormalizedVertices.
type BoundingPoly struct {
	Vertices           []Vertex           `json:"vertices,omitempty"`
	NormalizedVertices []NormalizedVertex `json:"normalizedVertices,omitempty"`
}

// IsNormalized reports whether the polygon carries normalized vertices.
func (b BoundingPoly) IsNormalized() bool {
	return len(b.NormalizedVertices) > 0
}

type Symbol struct {
	Text        string       `json:"text"`
	Confidence  float64      `json:"confidence"`
	BoundingBox BoundingPoly `json:"boundingBox"`
}

type Word struct {
	Symbols     []Symbol     `json:"symbols"`
	Confidence  float64      `json:"confidence"`
	BoundingBox BoundingPoly `json:"boundingBox"`
}

// Text concatenates the word's symbols.
func (w Word) Text() string {
	var sb strings.Builder
	for _, s := range w.Symbols {
		sb.WriteString(s.Text)
	}
	return sb.String()
}

type Paragraph struct {
	Words       []Word       `json:"words"`
	Confidence  float64      `json:"confidence"`
	BoundingBox BoundingPoly `json:"boundingBox"`
}

type Block struct {
	BlockType   string       `json:"blockType,omitempty"`
	Paragraphs  []Paragraph  `json:"paragraphs"`
	Confidence  float64      `json:"confidence"`
	BoundingBox BoundingPoly `json:"boundingBox"`
}

type Page struct {
	Width      int32   `json:"width"`
	Height     int32   `json:"height"`
	Confidence float64 `json:"confidence"`
	Blocks     []Block `json:"blocks"`
}

// Document is the decoded recognition result for one input file.
type Document struct {
	Text  string `json:"text"`
	Pages []Page `json:"pages"`
}

// BlockCount returns the number of blocks across all pages.
func (d *Document) BlockCount() int {
	n := 0
	for _, p := range d.Pages {
		n += len(p.Blocks)
	}
	return n
}

// Confidence is the mean per-block confidence across all pages. A document
// without blocks scores 0. The result is clamped to [0,1].
func (d *Document) Confidence() float64 {
	if d == nil {
		return 0
	}
	var sum float64
	n := 0
	for _, p := range d.Pages {
		for _, b := range p.Blocks {
			sum += b.Confidence
			n++
		}
	}
	if n == 0 {
		return 0
	}
	mean := sum / float64(n)
	switch {
	case mean < 0:
		return 0
	case mean > 1:
		return 1
	}
	return mean
}

// Bounds collects the bounding polygons of every element at granularity g,
// in document order. An unknown granularity yields nil.
func (d *Document) Bounds(g Granularity) []BoundingPoly {
	var bounds []BoundingPoly
	switch g {
	case GranularityPage:
		for range d.Pages {
			bounds = append(bounds, PageOutline())
		}
	case GranularityBlock:
		d.eachBlock(func(b Block) {
			bounds = append(bounds, b.BoundingBox)
		})
	case GranularityParagraph:
		d.eachParagraph(func(p Paragraph) {
			bounds = append(bounds, p.BoundingBox)
		})
	case GranularityWord:
		d.eachWord(func(w Word) {
			bounds = append(bounds, w.BoundingBox)
		})
	case GranularitySymbol:
		d.eachWord(func(w Word) {
			for _, s := range w.Symbols {
				bounds = append(bounds, s.BoundingBox)
			}
		})
	}
	return bounds
}

func (d *Document) eachBlock(fn func(Block)) {
	for _, page := range d.Pages {
		for _, block := range page.Blocks {
			fn(block)
		}
	}
}

func (d *Document) eachParagraph(fn func(Paragraph)) {
	d.eachBlock(func(b Block) {
		for _, p := range b.Paragraphs {
			fn(p)
		}
	})
}

func (d *Document) eachWord(fn func(Word)) {
	d.eachParagraph(func(p Paragraph) {
		for _, w := range p.Words {
			fn(w)
		}
	})
}

// PageOutline is the normalized unit square, which covers the whole image
// regardless of the unit the recognizer reported page dimensions in.
func PageOutline() BoundingPoly {
	return BoundingPoly{NormalizedVertices: []NormalizedVertex{
		{X: 0, Y: 0}, {X: 1, Y: 0}, {X: 1, Y: 1}, {X: 0, Y: 1},
	}}
}
