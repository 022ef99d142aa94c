package services

import (
	"encoding/json"
	"fmt"
	"image"
	"os"
	"path/filepath"

	"github.com/Lllllllleong/visionocrbatch/internal/imageio"
	"github.com/Lllllllleong/visionocrbatch/internal/models"
)

// annotatedLevels are outlined on every annotated image, outermost first.
var annotatedLevels = []models.Granularity{
	models.GranularityBlock,
	models.GranularityParagraph,
	models.GranularityWord,
}

// Artifacts are the output files produced for one input.
type Artifacts struct {
	Image string
	Text  string
	JSON  string
}

// ArtifactsFor names the outputs of inputPath inside outputDir.
func ArtifactsFor(outputDir, inputPath string) Artifacts {
	base := filepath.Join(outputDir, models.BaseName(inputPath))
	return Artifacts{
		Image: base + ".png",
		Text:  base + ".txt",
		JSON:  base + ".json",
	}
}

// Exists reports whether the annotated image is already present.
func (a Artifacts) Exists() bool {
	info, err := os.Stat(a.Image)
	return err == nil && info.Mode().IsRegular()
}

// Write persists the annotated image, the plain text and the document tree.
func (a Artifacts) Write(annotated image.Image, doc *models.Document) error {
	if err := os.MkdirAll(filepath.Dir(a.Image), 0o755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}
	if err := imageio.SavePNG(a.Image, annotated); err != nil {
		return err
	}
	if err := os.WriteFile(a.Text, []byte(doc.Text), 0o644); err != nil {
		return fmt.Errorf("failed to write %s: %w", a.Text, err)
	}
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal document: %w", err)
	}
	if err := os.WriteFile(a.JSON, data, 0o644); err != nil {
		return fmt.Errorf("failed to write %s: %w", a.JSON, err)
	}
	return nil
}
