package models

import (
	"context"
	"time"
)

// ObjectInfo describes one object in the staging bucket.
type ObjectInfo struct {
	Name    string
	Size    int64
	Updated time.Time
}

// RecognitionRequest is one asynchronous document-recognition submission.
type RecognitionRequest struct {
	InputURI        string
	OutputURIPrefix string
	LanguageHints   []string
	// BatchSize is the number of source pages per output object.
	BatchSize int
}

// RecognitionJob is a submitted asynchronous recognition request. It is
// awaited once; a retry submits a new job.
type RecognitionJob interface {
	Name() string
	// Submitted is when the recognizer accepted the job.
	Submitted() time.Time
	// Await blocks until the job finishes, fails, or timeout elapses.
	Await(ctx context.Context, timeout time.Duration) error
}
