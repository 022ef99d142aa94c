package services

import (
	"context"
	"fmt"

	"github.com/Lllllllleong/visionocrbatch/internal/gcp"
	"github.com/Lllllllleong/visionocrbatch/internal/models"
)

// ResultDecoder fetches and parses the result a recognition job left under
// its output prefix.
type ResultDecoder struct {
	store ObjectStore
}

func NewResultDecoder(store ObjectStore) *ResultDecoder {
	return &ResultDecoder{store: store}
}

// Decode reads the first result object under prefix. A response without a
// full-text annotation decodes to an empty document.
func (d *ResultDecoder) Decode(ctx context.Context, bucket, prefix string) (*models.Document, error) {
	objects, err := d.store.List(ctx, bucket, prefix)
	if err != nil {
		return nil, fmt.Errorf("failed to list recognition output: %w", err)
	}
	if len(objects) == 0 {
		return nil, fmt.Errorf("%w under gs://%s/%s", ErrNoOutput, bucket, prefix)
	}

	name := objects[0].Name
	data, err := d.store.Download(ctx, bucket, name)
	if err != nil {
		return nil, fmt.Errorf("failed to download recognition output: %w", err)
	}

	resp, err := gcp.ParseAnnotateFileResponse(data)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrMalformedOutput, name, err)
	}
	if err := gcp.StatusError(resp.GetError()); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrRecognitionFailed, err)
	}

	doc := &models.Document{}
	for _, r := range resp.GetResponses() {
		if err := gcp.StatusError(r.GetError()); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrRecognitionFailed, err)
		}
		part := gcp.DocumentFromAnnotation(r.GetFullTextAnnotation())
		doc.Text += part.Text
		doc.Pages = append(doc.Pages, part.Pages...)
	}
	return doc, nil
}
