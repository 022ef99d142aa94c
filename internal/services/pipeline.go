package services

import (
	"context"
	"errors"
	"fmt"
	"image"
	"log/slog"
	"os"
	"time"

	"github.com/Lllllllleong/visionocrbatch/internal/gcp"
	"github.com/Lllllllleong/visionocrbatch/internal/imageio"
	"github.com/Lllllllleong/visionocrbatch/internal/logsink"
	"github.com/Lllllllleong/visionocrbatch/internal/models"
	"github.com/Lllllllleong/visionocrbatch/internal/retry"
)

const (
	cleanupTimeout          = time.Minute
	defaultOperationTimeout = 600 * time.Second
)

type PipelineConfig struct {
	OutputDir        string
	Overwrite        bool
	LanguageHints    []string
	OperationTimeout time.Duration
	Retry            retry.Policy
}

// Pipeline runs one input file through staging, asynchronous recognition,
// decoding and rendering.
type Pipeline struct {
	store      ObjectStore
	recognizer Recognizer
	converter  Converter
	decoder    *ResultDecoder
	annotator  *Annotator
	config     PipelineConfig
}

func NewPipeline(store ObjectStore, recognizer Recognizer, converter Converter, config PipelineConfig) *Pipeline {
	if config.OperationTimeout <= 0 {
		config.OperationTimeout = defaultOperationTimeout
	}
	return &Pipeline{
		store:      store,
		recognizer: recognizer,
		converter:  converter,
		decoder:    NewResultDecoder(store),
		annotator:  NewAnnotator(),
		config:     config,
	}
}

// Process recognizes inputPath using bucket for staging. It returns a nil
// result and nil error when the output already exists and overwriting is off.
// On failure the returned result carries the duration and attempt counts with
// zero confidence.
func (p *Pipeline) Process(ctx context.Context, inputPath, bucket string) (*models.PipelineResult, error) {
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
		result.Confidence = 0
		logCtx.Error("Failed to process file.", "attempts", result.Attempts, "error", err)
		return result, err
	}

	key, err := models.NewStagingKey(inputPath)
	if err != nil {
		return fail(err)
	}
	img, _, err := imageio.Load(inputPath)
	if err != nil {
		return fail(err)
	}
	logCtx = logCtx.With("stagingKey", string(key))

	out := retry.Do(ctx, p.config.Retry,
		func(ctx context.Context, attempt int) (*models.Document, error) {
			return p.attempt(ctx, logCtx.With("attempt", attempt), bucket, key, img)
		},
		IsRetryable,
		func(err error, attempt int, wait time.Duration) {
			logCtx.Warn("Recognition attempt failed, will retry.",
				"retry", attempt, "maxRetries", p.config.Retry.MaxAttempts-1, "backoff", wait, "error", err)
		})
	result.Attempts, result.Retries = out.Attempts, out.Retries()
	if out.Err != nil {
		return fail(fmt.Errorf("failed to recognize %s: %w", inputPath, out.Err))
	}

	doc := out.Value
	if err := p.persist(artifacts, img, doc); err != nil {
		return fail(err)
	}

	result.OutputPath = artifacts.Image
	result.Confidence = doc.Confidence()
	result.Duration = time.Since(start)
	logCtx.Info("File processed.", "output", result.OutputPath, "confidence", result.Confidence,
		"blocks", doc.BlockCount(), "retries", result.Retries, "duration", result.Duration)
	return result, nil
}

func (p *Pipeline) persist(artifacts Artifacts, img image.Image, doc *models.Document) error {
	annotated, err := p.annotator.Render(img, LayersFor(doc, annotatedLevels...)...)
	if err != nil {
		return fmt.Errorf("failed to render annotations: %w", err)
	}
	return artifacts.Write(annotated, doc)
}

// attempt runs stage, submit, await and decode once. Staged objects are
// removed whatever the outcome.
func (p *Pipeline) attempt(ctx context.Context, logCtx *slog.Logger, bucket string, key models.StagingKey, img image.Image) (*models.Document, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	if err := p.stage(ctx, bucket, key, img); err != nil {
		return nil, err
	}
	logCtx.Debug("Staged input.", "object", key.InputObject())

	job, err := p.recognizer.Submit(ctx, models.RecognitionRequest{
		InputURI:        gcp.URI(bucket, key.InputObject()),
		OutputURIPrefix: gcp.URI(bucket, key.OutputPrefix()),
		LanguageHints:   p.config.LanguageHints,
		BatchSize:       1,
	})
	if err != nil {
		p.removeInput(ctx, logCtx, bucket, key)
		return nil, err
	}
	logCtx.Debug("Submitted recognition job.", "job", job.Name())

	awaitErr := job.Await(ctx, p.config.OperationTimeout)
	elapsed := time.Since(job.Submitted())
	p.removeInput(ctx, logCtx, bucket, key)
	defer p.purgeOutputs(ctx, logCtx, bucket, key)
	if awaitErr != nil {
		logCtx.Debug("Recognition job failed.", "job", job.Name(), "elapsed", elapsed, "error", awaitErr)
		return nil, fmt.Errorf("job %s failed after %s: %w", job.Name(), elapsed.Round(time.Millisecond), awaitErr)
	}
	logCtx.Debug("Recognition job finished.", "job", job.Name(), "elapsed", elapsed)

	doc, err := p.decoder.Decode(ctx, bucket, key.OutputPrefix())
	if err != nil {
		return nil, err
	}
	logCtx.Debug("Decoded recognition output.", "pages", len(doc.Pages))
	return doc, nil
}

// stage converts img into a private temporary PDF and uploads it.
func (p *Pipeline) stage(ctx context.Context, bucket string, key models.StagingKey, img image.Image) error {
	tmp, err := os.CreateTemp("", "ocr-input-*.pdf")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	convErr := p.converter.ConvertToPDF(img, tmp)
	closeErr := tmp.Close()
	if convErr != nil {
		return fmt.Errorf("%w: %v", models.ErrInvalidInput, convErr)
	}
	if closeErr != nil {
		return fmt.Errorf("failed to finalize temp file: %w", closeErr)
	}

	if err := p.store.Upload(ctx, bucket, tmp.Name(), key.InputObject()); err != nil {
		return fmt.Errorf("failed to stage input: %w", err)
	}
	return nil
}

func (p *Pipeline) removeInput(ctx context.Context, logCtx *slog.Logger, bucket string, key models.StagingKey) {
	cleanupCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), cleanupTimeout)
	defer cancel()
	if err := p.store.Delete(cleanupCtx, bucket, key.InputObject()); err != nil {
		logCtx.Warn("Failed to delete staged input.", "object", key.InputObject(), "error", err)
	}
}

func (p *Pipeline) purgeOutputs(ctx context.Context, logCtx *slog.Logger, bucket string, key models.StagingKey) {
	cleanupCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), cleanupTimeout)
	defer cancel()
	if err := purgePrefix(cleanupCtx, p.store, bucket, key.OutputPrefix()); err != nil {
		logCtx.Warn("Failed to delete recognition output.", "prefix", key.OutputPrefix(), "error", err)
	}
}

// purgePrefix deletes every object under prefix.
func purgePrefix(ctx context.Context, store ObjectStore, bucket, prefix string) error {
	objects, err := store.List(ctx, bucket, prefix)
	if err != nil {
		return err
	}
	var errs []error
	for _, o := range objects {
		if err := store.Delete(ctx, bucket, o.Name); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// IsRetryable reports whether a failed attempt may succeed when repeated.
// Local input problems and cancellation are final.
func IsRetryable(err error) bool {
	return !errors.Is(err, models.ErrInvalidInput) && !errors.Is(err, context.Canceled)
}
