package services

import (
	"context"
	"fmt"
	"time"

	"github.com/Lllllllleong/visionocrbatch/internal/imageio"
	"github.com/Lllllllleong/visionocrbatch/internal/logsink"
	"github.com/Lllllllleong/visionocrbatch/internal/models"
	"github.com/Lllllllleong/visionocrbatch/internal/retry"
)

type InlineConfig struct {
	OutputDir     string
	Overwrite     bool
	LanguageHints []string
	// Timeout bounds one synchronous detection call.
	Timeout time.Duration
	Retry   retry.Policy
}

// InlineProcessor sends image bytes straight to synchronous detection. It
// needs no staging bucket.
type InlineProcessor struct {
	detector  DocumentDetector
	annotator *Annotator
	config    InlineConfig
}

const defaultInlineTimeout = 300 * time.Second

func NewInlineProcessor(detector DocumentDetector, config InlineConfig) *InlineProcessor {
	if config.Timeout <= 0 {
		config.Timeout = defaultInlineTimeout
	}
	return &InlineProcessor{detector: detector, annotator: NewAnnotator(), config: config}
}

// Process recognizes inputPath. The bucket argument is ignored.
func (p *InlineProcessor) Process(ctx context.Context, inputPath, _ string) (*models.PipelineResult, error) {
	start := time.Now()
	logCtx := logsink.FromContext(ctx).With("file", inputPath)

	artifacts := ArtifactsFor(p.config.OutputDir, inputPath)
	if !p.config.Overwrite && artifacts.Exists() {
		logCtx.Info("Output exists. Skipping.", "output", artifacts.Image)
		return nil, nil
	}

	result := &models.PipelineResult{}
	fail := func(err error) (*models.PipelineResult, error) {
		result.Duration = time.Since(start)
		logCtx.Error("Failed to process file.", "attempts", result.Attempts, "error", err)
		return result, err
	}

	img, content, err := imageio.Load(inputPath)
	if err != nil {
		return fail(err)
	}

	out := retry.Do(ctx, p.config.Retry,
		func(ctx context.Context, attempt int) (*models.Document, error) {
			callCtx, cancel := context.WithTimeout(ctx, p.config.Timeout)
			defer cancel()
			logCtx.Debug("Detecting document text.", "attempt", attempt, "bytes", len(content))
			return p.detector.DetectDocument(callCtx, content, p.config.LanguageHints)
		},
		IsRetryable,
		func(err error, attempt int, wait time.Duration) {
			logCtx.Warn("Detection failed, will retry.",
				"retry", attempt, "maxRetries", p.config.Retry.MaxAttempts-1, "backoff", wait, "error", err)
		})
	result.Attempts, result.Retries = out.Attempts, out.Retries()
	if out.Err != nil {
		return fail(fmt.Errorf("failed to recognize %s: %w", inputPath, out.Err))
	}

	doc := out.Value
	annotated, err := p.annotator.Render(img, LayersFor(doc, annotatedLevels...)...)
	if err != nil {
		return fail(fmt.Errorf("failed to render annotations: %w", err))
	}
	if err := artifacts.Write(annotated, doc); err != nil {
		return fail(err)
	}

	result.OutputPath = artifacts.Image
	result.Confidence = doc.Confidence()
	result.Duration = time.Since(start)
	logCtx.Info("File processed.", "output", result.OutputPath, "confidence", result.Confidence,
		"blocks", doc.BlockCount(), "duration", result.Duration)
	return result, nil
}
