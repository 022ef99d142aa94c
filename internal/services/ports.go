package services

import (
	"context"

	"github.com/Lllllllleong/visionocrbatch/internal/models"
)

// ObjectStore is the subset of the object store the pipeline stages through.
type ObjectStore interface {
	Upload(ctx context.Context, bucket, localPath, key string) error
	Download(ctx context.Context, bucket, key string) ([]byte, error)
	List(ctx context.Context, bucket, prefix string) ([]models.ObjectInfo, error)
	Delete(ctx context.Context, bucket, key string) error
}

// BucketManager creates and removes the run's staging bucket.
type BucketManager interface {
	ObjectStore
	CreateBucket(ctx context.Context) (string, error)
	DeleteBucket(ctx context.Context, bucket string) error
}

// Recognizer submits asynchronous document recognition jobs.
type Recognizer interface {
	Submit(ctx context.Context, req models.RecognitionRequest) (models.RecognitionJob, error)
}

// DocumentDetector recognizes an image synchronously.
type DocumentDetector interface {
	DetectDocument(ctx context.Context, content []byte, hints []string) (*models.Document, error)
}

// FileProcessor turns one input file into its output artifacts. A nil result
// with a nil error means the file was skipped.
type FileProcessor interface {
	Process(ctx context.Context, inputPath, bucket string) (*models.PipelineResult, error)
}

// ResultRecorder persists the outcome of each file.
type ResultRecorder interface {
	Record(ctx context.Context, report models.FileReport) error
}

// Progress observes a run.
type Progress interface {
	Start(total int)
	Done(report models.FileReport)
}
