package gcp

import (
	"context"
	"errors"
	"fmt"
	"time"

	vision "cloud.google.com/go/vision/v2/apiv1"
	"cloud.google.com/go/vision/v2/apiv1/visionpb"
	"github.com/Lllllllleong/visionocrbatch/internal/models"
	"google.golang.org/api/option"
	spb "google.golang.org/genproto/googleapis/rpc/status"
	"google.golang.org/grpc/status"
)

const pdfMimeType = "application/pdf"

// ErrJobTimeout reports that a recognition job did not finish in time.
var ErrJobTimeout = errors.New("recognition job timed out")

// VisionClient submits document-text-detection requests. It is safe for
// concurrent use.
type VisionClient struct {
	client *vision.ImageAnnotatorClient
}

func NewVisionClient(ctx context.Context, opts ...option.ClientOption) (*VisionClient, error) {
	client, err := vision.NewImageAnnotatorClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create Vision client: %w", err)
	}
	return &VisionClient{client: client}, nil
}

func (c *VisionClient) Close() error {
	return c.client.Close()
}

// Submit starts an asynchronous annotation of one staged PDF.
func (c *VisionClient) Submit(ctx context.Context, req models.RecognitionRequest) (models.RecognitionJob, error) {
	batchSize := req.BatchSize
	if batchSize < 1 {
		batchSize = 1
	}
	op, err := c.client.AsyncBatchAnnotateFiles(ctx, &visionpb.AsyncBatchAnnotateFilesRequest{
		Requests: []*visionpb.AsyncAnnotateFileRequest{{
			InputConfig: &visionpb.InputConfig{
				GcsSource: &visionpb.GcsSource{Uri: req.InputURI},
				MimeType:  pdfMimeType,
			},
			Features:     []*visionpb.Feature{{Type: visionpb.Feature_DOCUMENT_TEXT_DETECTION}},
			ImageContext: &visionpb.ImageContext{LanguageHints: req.LanguageHints},
			OutputConfig: &visionpb.OutputConfig{
				GcsDestination: &visionpb.GcsDestination{Uri: req.OutputURIPrefix},
				BatchSize:      int32(batchSize),
			},
		}},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to submit annotation of %s: %w", req.InputURI, err)
	}
	return &JobHandle{op: op, submitted: time.Now()}, nil
}

// JobHandle wraps the long-running operation of one submission.
type JobHandle struct {
	op        *vision.AsyncBatchAnnotateFilesOperation
	submitted time.Time
}

func (j *JobHandle) Name() string {
	return j.op.Name()
}

// Submitted is when the job was accepted.
func (j *JobHandle) Submitted() time.Time {
	return j.submitted
}

// Await polls the operation until it completes. It returns ErrJobTimeout when
// timeout elapses first and ctx's error when ctx is done.
func (j *JobHandle) Await(ctx context.Context, timeout time.Duration) error {
	waitCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	if _, err := j.op.Wait(waitCtx); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if waitCtx.Err() != nil {
			return fmt.Errorf("%w: %s after %s", ErrJobTimeout, j.Name(), timeout)
		}
		return fmt.Errorf("recognition job %s failed: %w", j.Name(), err)
	}
	return nil
}

// DetectDocument runs synchronous document text detection on image bytes.
// The returned document carries absolute pixel vertices.
func (c *VisionClient) DetectDocument(ctx context.Context, content []byte, hints []string) (*models.Document, error) {
	resp, err := c.client.BatchAnnotateImages(ctx, &visionpb.BatchAnnotateImagesRequest{
		Requests: []*visionpb.AnnotateImageRequest{{
			Image:        &visionpb.Image{Content: content},
			Features:     []*visionpb.Feature{{Type: visionpb.Feature_DOCUMENT_TEXT_DETECTION}},
			ImageContext: &visionpb.ImageContext{LanguageHints: hints},
		}},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to annotate image: %w", err)
	}
	if len(resp.GetResponses()) == 0 {
		return &models.Document{}, nil
	}
	r := resp.GetResponses()[0]
	if err := StatusError(r.GetError()); err != nil {
		return nil, fmt.Errorf("image annotation failed: %w", err)
	}
	return DocumentFromAnnotation(r.GetFullTextAnnotation()), nil
}

// StatusError converts an rpc status embedded in a response into an error.
// A nil or OK status yields nil.
func StatusError(st *spb.Status) error {
	if st == nil {
		return nil
	}
	return status.FromProto(st).Err()
}
