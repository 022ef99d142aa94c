package gcp

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"os"
	"path/filepath"
	"sort"

	"cloud.google.com/go/storage"
	"github.com/Lllllllleong/visionocrbatch/internal/models"
	"github.com/google/uuid"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"
)

// BucketPrefix starts the name of every bucket the tool creates.
const BucketPrefix = "ocr-staging-"

// ErrBucketConflict reports that a generated bucket name is already taken.
var ErrBucketConflict = errors.New("bucket name already in use")

// Store is the object-store client used for staging. It does not retry;
// callers own the retry policy.
type Store struct {
	client    *storage.Client
	projectID string
	location  string
}

// NewStore creates a storage client bound to projectID. New buckets are
// created in location.
func NewStore(ctx context.Context, projectID, location string, opts ...option.ClientOption) (*Store, error) {
	client, err := storage.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create Storage client: %w", err)
	}
	return &Store{client: client, projectID: projectID, location: location}, nil
}

func (s *Store) Close() error {
	return s.client.Close()
}

// Upload copies the local file at localPath to gs://bucket/key.
func (s *Store) Upload(ctx context.Context, bucket, localPath, key string) error {
	f, err := os.Open(localPath)
	if err != nil {
		return fmt.Errorf("could not open local file %s: %w", localPath, err)
	}
	defer f.Close()

	w := s.client.Bucket(bucket).Object(key).NewWriter(ctx)
	if ct := mime.TypeByExtension(filepath.Ext(localPath)); ct != "" {
		w.ContentType = ct
	}
	if _, err := io.Copy(w, f); err != nil {
		_ = w.Close()
		return fmt.Errorf("failed to copy %s to gs://%s/%s: %w", localPath, bucket, key, err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("failed to finalize upload of gs://%s/%s: %w", bucket, key, err)
	}
	return nil
}

// Download returns the full content of gs://bucket/key.
func (s *Store) Download(ctx context.Context, bucket, key string) ([]byte, error) {
	r, err := s.client.Bucket(bucket).Object(key).NewReader(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get GCS object reader for gs://%s/%s: %w", bucket, key, err)
	}
	defer r.Close()

	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read gs://%s/%s: %w", bucket, key, err)
	}
	return data, nil
}

// List returns the objects under prefix, ordered by name.
func (s *Store) List(ctx context.Context, bucket, prefix string) ([]models.ObjectInfo, error) {
	it := s.client.Bucket(bucket).Objects(ctx, &storage.Query{Prefix: prefix})
	var objects []models.ObjectInfo
	for {
		attrs, err := it.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to list gs://%s/%s: %w", bucket, prefix, err)
		}
		objects = append(objects, models.ObjectInfo{Name: attrs.Name, Size: attrs.Size, Updated: attrs.Updated})
	}
	sort.Slice(objects, func(i, j int) bool { return objects[i].Name < objects[j].Name })
	return objects, nil
}

// Delete removes gs://bucket/key. A missing object is not an error.
func (s *Store) Delete(ctx context.Context, bucket, key string) error {
	err := s.client.Bucket(bucket).Object(key).Delete(ctx)
	if err != nil && !errors.Is(err, storage.ErrObjectNotExist) {
		return fmt.Errorf("failed to delete gs://%s/%s: %w", bucket, key, err)
	}
	return nil
}

// CreateBucket creates a bucket with a freshly generated name and returns it.
func (s *Store) CreateBucket(ctx context.Context) (string, error) {
	name := BucketPrefix + uuid.NewString()
	err := s.client.Bucket(name).Create(ctx, s.projectID, &storage.BucketAttrs{Location: s.location})
	if err != nil {
		var gerr *googleapi.Error
		if errors.As(err, &gerr) && gerr.Code == http.StatusConflict {
			return "", fmt.Errorf("%w: %s", ErrBucketConflict, name)
		}
		return "", fmt.Errorf("failed to create bucket %s: %w", name, err)
	}
	return name, nil
}

// DeleteBucket removes an empty bucket.
func (s *Store) DeleteBucket(ctx context.Context, bucket string) error {
	if err := s.client.Bucket(bucket).Delete(ctx); err != nil {
		return fmt.Errorf("failed to delete bucket %s: %w", bucket, err)
	}
	return nil
}

// URI formats a gs:// URI.
func URI(bucket, key string) string {
	return "gs://" + bucket + "/" + key
}
