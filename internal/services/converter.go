package services

import (
	"bytes"
	"fmt"
	"image"
	"image/png"
	"io"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/types"
)

// Converter wraps an image in a document format the recognizer accepts for
// asynchronous file requests.
type Converter interface {
	ConvertToPDF(img image.Image, dst io.Writer) error
}

// PDFConverter produces a one-page PDF whose page matches the image size.
type PDFConverter struct {
	imp  *pdfcpu.Import
	conf *model.Configuration
}

func NewPDFConverter() (*PDFConverter, error) {
	imp, err := api.Import("pos:full", types.POINTS)
	if err != nil {
		return nil, fmt.Errorf("failed to build image import config: %w", err)
	}
	conf := model.NewDefaultConfiguration()
	conf.ValidationMode = model.ValidationRelaxed
	return &PDFConverter{imp: imp, conf: conf}, nil
}

// ConvertToPDF encodes img losslessly and embeds it as the single page of a
// new PDF written to dst.
func (c *PDFConverter) ConvertToPDF(img image.Image, dst io.Writer) error {
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return fmt.Errorf("failed to encode page image: %w", err)
	}
	if err := api.ImportImages(nil, dst, []io.Reader{&buf}, c.imp, c.conf); err != nil {
		return fmt.Errorf("failed to build PDF from image: %w", err)
	}
	return nil
}
