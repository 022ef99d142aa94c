package models

import (
	"fmt"
	"time"
)

// PipelineResult is the outcome of processing one input file.
type PipelineResult struct {
	// OutputPath is the annotated image, empty when processing failed.
	OutputPath string
	Duration   time.Duration
	// Confidence is the mean block confidence in [0,1], 0 on failure.
	Confidence float64
	Attempts   int
	Retries    int
}

// FileReport accounts for one discovered input. Exactly one of Skipped,
// Err != nil, or a successful Result holds.
type FileReport struct {
	InputPath string
	Result    *PipelineResult
	Skipped   bool
	Err       error
}

// Succeeded reports whether the file produced its artifacts.
func (r FileReport) Succeeded() bool {
	return !r.Skipped && r.Err == nil && r.Result != nil
}

// Summary is the single human-readable line reported for the file.
func (r FileReport) Summary() string {
	switch {
	case r.Skipped:
		return fmt.Sprintf("%s: skipped (output exists)", r.InputPath)
	case r.Err != nil:
		var d time.Duration
		if r.Result != nil {
			d = r.Result.Duration
		}
		return fmt.Sprintf("%s: failed after %.1fs, confidence 0.0000: %v", r.InputPath, d.Seconds(), r.Err)
	case r.Result == nil:
		return fmt.Sprintf("%s: no result", r.InputPath)
	}
	return fmt.Sprintf("%s: %s, %.1fs, confidence %.4f",
		r.InputPath, r.Result.OutputPath, r.Result.Duration.Seconds(), r.Result.Confidence)
}

// RunReport aggregates the per-file reports of one batch run, in discovery order.
type RunReport struct {
	Bucket     string
	AutoBucket bool
	Files      []FileReport
	Started    time.Time
	Finished   time.Time
}

// Counts returns how many files succeeded, failed and were skipped.
func (r *RunReport) Counts() (succeeded, failed, skipped int) {
	for _, f := range r.Files {
		switch {
		case f.Skipped:
			skipped++
		case f.Succeeded():
			succeeded++
		default:
			failed++
		}
	}
	return succeeded, failed, skipped
}
