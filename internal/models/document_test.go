package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func box(x0, y0, x1, y1 float64) BoundingPoly {
	return BoundingPoly{NormalizedVertices: []NormalizedVertex{
		{X: x0, Y: y0}, {X: x1, Y: y0}, {X: x1, Y: y1}, {X: x0, Y: y1},
	}}
}

func sampleDocument() *Document {
	return &Document{
		Text: "ab c",
		Pages: []Page{{
			Width: 100, Height: 100,
			Blocks: []Block{
				{
					Confidence:  0.9,
					BoundingBox: box(0, 0, 0.5, 0.5),
					Paragraphs: []Paragraph{{
						BoundingBox: box(0, 0, 0.4, 0.4),
						Words: []Word{{
							BoundingBox: box(0, 0, 0.2, 0.2),
							Symbols: []Symbol{
								{Text: "a", BoundingBox: box(0, 0, 0.1, 0.1)},
								{Text: "b", BoundingBox: box(0.1, 0, 0.2, 0.1)},
							},
						}},
					}},
				},
				{
					Confidence:  0.7,
					BoundingBox: box(0.5, 0.5, 1, 1),
					Paragraphs: []Paragraph{{
						BoundingBox: box(0.5, 0.5, 0.9, 0.9),
						Words: []Word{{
							BoundingBox: box(0.5, 0.5, 0.6, 0.6),
							Symbols:     []Symbol{{Text: "c", BoundingBox: box(0.5, 0.5, 0.6, 0.6)}},
						}},
					}},
				},
			},
		}},
	}
}

func TestDocumentConfidence(t *testing.T) {
	tests := []struct {
		name string
		doc  *Document
		want float64
	}{
		{name: "mean of blocks", doc: sampleDocument(), want: 0.8},
		{name: "no pages", doc: &Document{}, want: 0},
		{name: "pages without blocks", doc: &Document{Pages: []Page{{}, {}}}, want: 0},
		{name: "nil document", doc: nil, want: 0},
		{
			name: "across pages",
			doc: &Document{Pages: []Page{
				{Blocks: []Block{{Confidence: 1}}},
				{Blocks: []Block{{Confidence: 0.5}, {Confidence: 0}}},
			}},
			want: 0.5,
		},
		{
			name: "clamped above one",
			doc:  &Document{Pages: []Page{{Blocks: []Block{{Confidence: 3}}}}},
			want: 1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := tt.doc.Confidence()
			assert.InDelta(t, tt.want, got, 1e-9)
			assert.GreaterOrEqual(t, got, 0.0)
			assert.LessOrEqual(t, got, 1.0)
		})
	}
}

func TestDocumentBounds(t *testing.T) {
	doc := sampleDocument()

	assert.Len(t, doc.Bounds(GranularityPage), 1)
	assert.Equal(t, []BoundingPoly{box(0, 0, 0.5, 0.5), box(0.5, 0.5, 1, 1)}, doc.Bounds(GranularityBlock))
	assert.Len(t, doc.Bounds(GranularityParagraph), 2)
	assert.Len(t, doc.Bounds(GranularityWord), 2)
	assert.Len(t, doc.Bounds(GranularitySymbol), 3)
	assert.Nil(t, doc.Bounds(Granularity(42)))
	assert.Equal(t, 2, doc.BlockCount())
}

func TestWordText(t *testing.T) {
	w := sampleDocument().Pages[0].Blocks[0].Paragraphs[0].Words[0]
	assert.Equal(t, "ab", w.Text())
}

func TestParseGranularity(t *testing.T) {
	for _, g := range Granularities {
		got, err := ParseGranularity(g.String())
		assert.NoError(t, err)
		assert.Equal(t, g, got)
	}

	got, err := ParseGranularity("BLOCK")
	assert.NoError(t, err)
	assert.Equal(t, GranularityBlock, got)

	_, err = ParseGranularity("line")
	assert.Error(t, err)
}
