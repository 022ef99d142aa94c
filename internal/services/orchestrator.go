package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/Lllllllleong/visionocrbatch/internal/gcp"
	"github.com/Lllllllleong/visionocrbatch/internal/logsink"
	"github.com/Lllllllleong/visionocrbatch/internal/models"
	"github.com/Lllllllleong/visionocrbatch/internal/retry"
	"golang.org/x/sync/errgroup"
)

const (
	DefaultPattern = "*.png"
	DefaultWorkers = 10

	bucketCreateAttempts = 3
)

type OrchestratorConfig struct {
	InputDir string
	// Pattern is matched against file names in InputDir.
	Pattern string
	Workers int
	// Bucket is an existing staging bucket. When empty and a BucketManager is
	// configured, a bucket is created for the run and deleted afterwards.
	Bucket string
}

// Orchestrator discovers the input batch and runs it through a fixed pool of
// workers. Reports come back in discovery order.
type Orchestrator struct {
	processor FileProcessor
	buckets   BucketManager
	recorder  ResultRecorder
	progress  Progress
	config    OrchestratorConfig
	logger    *slog.Logger
}

type OrchestratorOption func(*Orchestrator)

// WithRecorder persists every file report.
func WithRecorder(r ResultRecorder) OrchestratorOption {
	return func(o *Orchestrator) { o.recorder = r }
}

// WithProgress reports progress as files finish.
func WithProgress(p Progress) OrchestratorOption {
	return func(o *Orchestrator) { o.progress = p }
}

// NewOrchestrator builds an orchestrator. buckets may be nil when the
// processor needs no staging bucket.
func NewOrchestrator(processor FileProcessor, buckets BucketManager, config OrchestratorConfig, logger *slog.Logger, opts ...OrchestratorOption) *Orchestrator {
	if config.Pattern == "" {
		config.Pattern = DefaultPattern
	}
	if config.Workers < 1 {
		config.Workers = DefaultWorkers
	}
	if logger == nil {
		logger = slog.Default()
	}
	o := &Orchestrator{processor: processor, buckets: buckets, config: config, logger: logger}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Discover lists the regular files in the input directory matching the
// pattern, sorted by path. Run rejects any file whose base name repeats an
// earlier one.
func (o *Orchestrator) Discover() ([]string, error) {
	info, err := os.Stat(o.config.InputDir)
	if err != nil {
		return nil, fmt.Errorf("failed to read input directory: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("input path %s is not a directory", o.config.InputDir)
	}

	matches, err := filepath.Glob(filepath.Join(o.config.InputDir, o.config.Pattern))
	if err != nil {
		return nil, fmt.Errorf("invalid pattern %q: %w", o.config.Pattern, err)
	}
	var files []string
	for _, m := range matches {
		fi, err := os.Stat(m)
		if err != nil || !fi.Mode().IsRegular() {
			continue
		}
		files = append(files, m)
	}
	sort.Strings(files)
	return files, nil
}

// Run processes the whole batch. It fails only when setup fails; per-file
// errors are carried in the report.
func (o *Orchestrator) Run(ctx context.Context) (*models.RunReport, error) {
	report := &models.RunReport{Started: time.Now()}

	files, err := o.Discover()
	if err != nil {
		return nil, err
	}
	report.Files = make([]models.FileReport, len(files))
	if len(files) == 0 {
		o.logger.Warn("No input files found.", "dir", o.config.InputDir, "pattern", o.config.Pattern)
		report.Finished = time.Now()
		return report, nil
	}

	bucket, auto, err := o.setupBucket(ctx)
	if err != nil {
		return nil, err
	}
	report.Bucket, report.AutoBucket = bucket, auto

	o.runWorkers(ctx, files, bucket, report)

	if auto {
		o.teardownBucket(ctx, bucket)
	}
	report.Finished = time.Now()
	o.summarize(report)
	return report, nil
}

func (o *Orchestrator) runWorkers(ctx context.Context, files []string, bucket string, report *models.RunReport) {
	if o.progress != nil {
		o.progress.Start(len(files))
	}

	var pending []int
	owners := make(map[string]string, len(files))
	for idx, path := range files {
		base := models.BaseName(path)
		if first, ok := owners[base]; ok {
			report.Files[idx] = o.rejectDuplicate(ctx, path, first)
			continue
		}
		owners[base] = path
		pending = append(pending, idx)
	}
	workers := min(o.config.Workers, len(pending))
	o.logger.Info("Starting workers.", "workers", workers, "files", len(pending), "bucket", bucket)

	tasks := make(chan int)
	var g errgroup.Group
	for i := 0; i < workers; i++ {
		logCtx := o.logger.With(logsink.WorkerKey, fmt.Sprintf("worker-%d", i))
		g.Go(func() error {
			for idx := range tasks {
				report.Files[idx] = o.runOne(ctx, logCtx, files[idx], bucket)
			}
			return nil
		})
	}

	sent := 0
feed:
	for ; sent < len(pending); sent++ {
		select {
		case tasks <- pending[sent]:
		case <-ctx.Done():
			break feed
		}
	}
	close(tasks)
	_ = g.Wait()

	for _, idx := range pending[sent:] {
		report.Files[idx] = o.notStarted(ctx, o.logger, files[idx])
	}
}

// rejectDuplicate fails an input whose base name matches an earlier input,
// since both would write the same output files.
func (o *Orchestrator) rejectDuplicate(ctx context.Context, path, first string) models.FileReport {
	fr := models.FileReport{
		InputPath: path,
		Result:    &models.PipelineResult{},
		Err:       fmt.Errorf("%w: %s writes the same outputs as %s", ErrDuplicateOutput, path, first),
	}
	o.logger.Error("Input shares its output name with an earlier input.", "file", path, "first", first)
	o.finish(ctx, o.logger, fr)
	return fr
}

func (o *Orchestrator) runOne(ctx context.Context, logCtx *slog.Logger, path, bucket string) models.FileReport {
	if ctx.Err() != nil {
		return o.notStarted(ctx, logCtx, path)
	}

	fr := models.FileReport{InputPath: path}
	res, err := o.processor.Process(logsink.NewContext(ctx, logCtx), path, bucket)
	switch {
	case err != nil:
		if res == nil {
			res = &models.PipelineResult{}
		}
		fr.Result, fr.Err = res, err
	case res == nil:
		fr.Skipped = true
	default:
		fr.Result = res
	}
	o.finish(ctx, logCtx, fr)
	return fr
}

func (o *Orchestrator) notStarted(ctx context.Context, logCtx *slog.Logger, path string) models.FileReport {
	fr := models.FileReport{
		InputPath: path,
		Result:    &models.PipelineResult{},
		Err:       fmt.Errorf("not started: %w", context.Cause(ctx)),
	}
	o.finish(ctx, logCtx, fr)
	return fr
}

func (o *Orchestrator) finish(ctx context.Context, logCtx *slog.Logger, fr models.FileReport) {
	if o.recorder != nil {
		recordCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), cleanupTimeout)
		if err := o.recorder.Record(recordCtx, fr); err != nil {
			logCtx.Warn("Failed to record file outcome.", "file", fr.InputPath, "error", err)
		}
		cancel()
	}
	if o.progress != nil {
		o.progress.Done(fr)
	}
}

// setupBucket returns the bucket to stage into and whether it was created
// for this run.
func (o *Orchestrator) setupBucket(ctx context.Context) (string, bool, error) {
	if o.config.Bucket != "" || o.buckets == nil {
		return o.config.Bucket, false, nil
	}

	out := retry.Do(ctx,
		retry.Policy{MaxAttempts: bucketCreateAttempts, InitialBackoff: 100 * time.Millisecond},
		func(ctx context.Context, _ int) (string, error) {
			return o.buckets.CreateBucket(ctx)
		},
		func(err error) bool { return errors.Is(err, gcp.ErrBucketConflict) },
		func(err error, attempt int, _ time.Duration) {
			o.logger.Warn("Bucket name taken, retrying with a new name.", "attempt", attempt, "error", err)
		})
	if out.Err != nil {
		return "", false, fmt.Errorf("failed to create staging bucket: %w", out.Err)
	}
	o.logger.Info("Created staging bucket.", "bucket", out.Value)
	return out.Value, true, nil
}

// teardownBucket empties and deletes a bucket created by setupBucket.
func (o *Orchestrator) teardownBucket(ctx context.Context, bucket string) {
	cleanupCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), cleanupTimeout)
	defer cancel()

	logCtx := o.logger.With("bucket", bucket)
	if err := purgePrefix(cleanupCtx, o.buckets, bucket, ""); err != nil {
		logCtx.Warn("Failed to purge staging bucket.", "error", err)
	}
	if err := o.buckets.DeleteBucket(cleanupCtx, bucket); err != nil {
		logCtx.Warn("Failed to delete staging bucket.", "error", err)
		return
	}
	logCtx.Info("Deleted staging bucket.")
}

func (o *Orchestrator) summarize(report *models.RunReport) {
	for _, fr := range report.Files {
		o.logger.Info(fr.Summary())
	}
	succeeded, failed, skipped := report.Counts()
	o.logger.Info("Run finished.", "succeeded", succeeded, "failed", failed, "skipped", skipped,
		"duration", report.Finished.Sub(report.Started))
}
