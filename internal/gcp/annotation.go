package gcp

import (
	"fmt"

	"cloud.google.com/go/vision/v2/apiv1/visionpb"
	"github.com/Lllllllleong/visionocrbatch/internal/models"
	"google.golang.org/protobuf/encoding/protojson"
)

var unmarshalOptions = protojson.UnmarshalOptions{DiscardUnknown: true}

// ParseAnnotateFileResponse decodes one result object written by an
// asynchronous file annotation.
func ParseAnnotateFileResponse(data []byte) (*visionpb.AnnotateFileResponse, error) {
	var resp visionpb.AnnotateFileResponse
	if err := unmarshalOptions.Unmarshal(data, &resp); err != nil {
		return nil, fmt.Errorf("failed to unmarshal annotate file response: %w", err)
	}
	return &resp, nil
}

// DocumentFromAnnotation converts a full-text annotation into the document
// tree. A nil annotation yields an empty document.
func DocumentFromAnnotation(a *visionpb.TextAnnotation) *models.Document {
	doc := &models.Document{}
	if a == nil {
		return doc
	}
	doc.Text = a.GetText()
	for _, p := range a.GetPages() {
		page := models.Page{
			Width:      p.GetWidth(),
			Height:     p.GetHeight(),
			Confidence: float64(p.GetConfidence()),
		}
		for _, b := range p.GetBlocks() {
			page.Blocks = append(page.Blocks, convertBlock(b))
		}
		doc.Pages = append(doc.Pages, page)
	}
	return doc
}

func convertBlock(b *visionpb.Block) models.Block {
	block := models.Block{
		BlockType:   b.GetBlockType().String(),
		Confidence:  float64(b.GetConfidence()),
		BoundingBox: convertPoly(b.GetBoundingBox()),
	}
	for _, p := range b.GetParagraphs() {
		para := models.Paragraph{
			Confidence:  float64(p.GetConfidence()),
			BoundingBox: convertPoly(p.GetBoundingBox()),
		}
		for _, w := range p.GetWords() {
			word := models.Word{
				Confidence:  float64(w.GetConfidence()),
				BoundingBox: convertPoly(w.GetBoundingBox()),
			}
			for _, s := range w.GetSymbols() {
				word.Symbols = append(word.Symbols, models.Symbol{
					Text:        s.GetText(),
					Confidence:  float64(s.GetConfidence()),
					BoundingBox: convertPoly(s.GetBoundingBox()),
				})
			}
			para.Words = append(para.Words, word)
		}
		block.Paragraphs = append(block.Paragraphs, para)
	}
	return block
}

func convertPoly(p *visionpb.BoundingPoly) models.BoundingPoly {
	var poly models.BoundingPoly
	for _, v := range p.GetVertices() {
		poly.Vertices = append(poly.Vertices, models.Vertex{X: v.GetX(), Y: v.GetY()})
	}
	for _, v := range p.GetNormalizedVertices() {
		poly.NormalizedVertices = append(poly.NormalizedVertices, models.NormalizedVertex{
			X: float64(v.GetX()),
			Y: float64(v.GetY()),
		})
	}
	return poly
}
