package services

import (
	"context"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"cloud.google.com/go/vision/v2/apiv1/visionpb"
	"github.com/Lllllllleong/visionocrbatch/internal/gcp"
	"github.com/Lllllllleong/visionocrbatch/internal/models"
	"github.com/Lllllllleong/visionocrbatch/internal/retry"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	spb "google.golang.org/genproto/googleapis/rpc/status"
	"google.golang.org/protobuf/encoding/protojson"
)

// memStore is an in-memory BucketManager that records the order of bucket
// lifecycle events relative to object traffic.
type memStore struct {
	mu      sync.Mutex
	buckets map[string]map[string][]byte
	events  []string

	conflicts      int
	creates        int
	bucketDeletes  int
	leftAtDelete   int
	uploadFailures map[string]int
}

func newMemStore() *memStore {
	return &memStore{buckets: map[string]map[string][]byte{}, uploadFailures: map[string]int{}}
}

func (s *memStore) addBucket(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.buckets[name] = map[string][]byte{}
}

func (s *memStore) bucket(name string) (map[string][]byte, error) {
	b, ok := s.buckets[name]
	if !ok {
		return nil, fmt.Errorf("bucket %s does not exist", name)
	}
	return b, nil
}

func (s *memStore) Upload(_ context.Context, bucket, localPath, key string) error {
	data, err := os.ReadFile(localPath)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	b, err := s.bucket(bucket)
	if err != nil {
		return err
	}
	if s.uploadFailures[key] > 0 {
		s.uploadFailures[key]--
		return fmt.Errorf("upload of %s: 503 backend unavailable", key)
	}
	b[key] = data
	s.events = append(s.events, "upload")
	return nil
}

func (s *memStore) Download(_ context.Context, bucket, key string) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, err := s.bucket(bucket)
	if err != nil {
		return nil, err
	}
	data, ok := b[key]
	if !ok {
		return nil, fmt.Errorf("object %s not found", key)
	}
	return data, nil
}

func (s *memStore) List(_ context.Context, bucket, prefix string) ([]models.ObjectInfo, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, err := s.bucket(bucket)
	if err != nil {
		return nil, err
	}
	var objects []models.ObjectInfo
	for name, data := range b {
		if strings.HasPrefix(name, prefix) {
			objects = append(objects, models.ObjectInfo{Name: name, Size: int64(len(data))})
		}
	}
	sort.Slice(objects, func(i, j int) bool { return objects[i].Name < objects[j].Name })
	return objects, nil
}

func (s *memStore) Delete(_ context.Context, bucket, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, err := s.bucket(bucket)
	if err != nil {
		return err
	}
	delete(b, key)
	return nil
}

func (s *memStore) CreateBucket(context.Context) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.creates++
	name := gcp.BucketPrefix + uuid.NewString()
	if s.conflicts > 0 {
		s.conflicts--
		return "", fmt.Errorf("%w: %s", gcp.ErrBucketConflict, name)
	}
	s.buckets[name] = map[string][]byte{}
	s.events = append(s.events, "create")
	return name, nil
}

func (s *memStore) DeleteBucket(_ context.Context, bucket string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, err := s.bucket(bucket)
	if err != nil {
		return err
	}
	s.bucketDeletes++
	s.leftAtDelete = len(b)
	if len(b) > 0 {
		return fmt.Errorf("bucket %s is not empty", bucket)
	}
	delete(s.buckets, bucket)
	s.events = append(s.events, "delete")
	return nil
}

func (s *memStore) objectCount(bucket string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.buckets[bucket])
}

func (s *memStore) eventLog() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.events...)
}

// scenario scripts how the fake recognizer treats one input base name.
type scenario struct {
	// failures is how many submissions time out before one succeeds. A
	// negative value fails every submission.
	failures   int
	blocks     []float32
	noText     bool
	remoteCode int32
}

// fakeRecognizer plays the remote recognizer: awaiting a job reads the staged
// input and writes a result object under the requested output prefix.
type fakeRecognizer struct {
	store *memStore

	mu        sync.Mutex
	scenarios map[string]*scenario
	submits   map[string]int
}

func newFakeRecognizer(store *memStore) *fakeRecognizer {
	return &fakeRecognizer{store: store, scenarios: map[string]*scenario{}, submits: map[string]int{}}
}

func (r *fakeRecognizer) script(base string, sc scenario) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.scenarios[base] = &sc
}

func (r *fakeRecognizer) submitCount(base string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.submits[base]
}

func (r *fakeRecognizer) Submit(_ context.Context, req models.RecognitionRequest) (models.RecognitionJob, error) {
	bucket, input := splitURI(req.InputURI)
	outBucket, prefix := splitURI(req.OutputURIPrefix)
	if bucket != outBucket {
		return nil, fmt.Errorf("input and output buckets differ")
	}
	key := strings.TrimSuffix(input, "/input.pdf")
	base := key[:strings.LastIndex(key, "-")]

	r.mu.Lock()
	defer r.mu.Unlock()
	r.submits[base]++
	sc := r.scenarios[base]
	if sc == nil {
		sc = &scenario{}
	}
	fail := sc.failures < 0 || r.submits[base] <= sc.failures
	return &fakeJob{name: "operations/" + key, submitted: time.Now(), store: r.store, bucket: bucket, input: input, prefix: prefix, sc: *sc, fail: fail}, nil
}

type fakeJob struct {
	name                  string
	submitted             time.Time
	store                 *memStore
	bucket, input, prefix string
	sc                    scenario
	fail                  bool
}

func (j *fakeJob) Name() string { return j.name }

func (j *fakeJob) Submitted() time.Time { return j.submitted }

func (j *fakeJob) Await(ctx context.Context, timeout time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if _, err := j.store.Download(ctx, j.bucket, j.input); err != nil {
		return fmt.Errorf("staged input missing: %w", err)
	}
	if j.fail {
		return fmt.Errorf("%w: %s after %s", gcp.ErrJobTimeout, j.name, timeout)
	}
	data, err := protojson.Marshal(annotateFileResponse(j.sc))
	if err != nil {
		return err
	}
	j.store.mu.Lock()
	defer j.store.mu.Unlock()
	j.store.buckets[j.bucket][j.prefix+"output-1-to-1.json"] = data
	return nil
}

func splitURI(uri string) (bucket, key string) {
	rest := strings.TrimPrefix(uri, "gs://")
	bucket, key, _ = strings.Cut(rest, "/")
	return bucket, key
}

func normalizedBox(x0, y0, x1, y1 float32) *visionpb.BoundingPoly {
	return &visionpb.BoundingPoly{NormalizedVertices: []*visionpb.NormalizedVertex{
		{X: x0, Y: y0}, {X: x1, Y: y0}, {X: x1, Y: y1}, {X: x0, Y: y1},
	}}
}

func annotateFileResponse(sc scenario) *visionpb.AnnotateFileResponse {
	resp := &visionpb.AnnotateFileResponse{TotalPages: 1}
	if sc.remoteCode != 0 {
		resp.Error = &spb.Status{Code: sc.remoteCode, Message: "Bad image data."}
		return resp
	}
	imgResp := &visionpb.AnnotateImageResponse{}
	if !sc.noText {
		page := &visionpb.Page{Width: 612, Height: 792}
		var text strings.Builder
		for i, c := range sc.blocks {
			y := float32(i) * 0.1
			page.Blocks = append(page.Blocks, &visionpb.Block{
				Confidence:  c,
				BlockType:   visionpb.Block_TEXT,
				BoundingBox: normalizedBox(0.1, y, 0.9, y+0.08),
				Paragraphs: []*visionpb.Paragraph{{
					Confidence:  c,
					BoundingBox: normalizedBox(0.12, y+0.01, 0.8, y+0.07),
					Words: []*visionpb.Word{{
						Confidence:  c,
						BoundingBox: normalizedBox(0.12, y+0.01, 0.3, y+0.07),
						Symbols: []*visionpb.Symbol{{
							Text:        "A",
							Confidence:  c,
							BoundingBox: normalizedBox(0.12, y+0.01, 0.15, y+0.07),
						}},
					}},
				}},
			})
			text.WriteString("A\n")
		}
		imgResp.FullTextAnnotation = &visionpb.TextAnnotation{Text: text.String(), Pages: []*visionpb.Page{page}}
	}
	resp.Responses = []*visionpb.AnnotateImageResponse{imgResp}
	return resp
}

// stubConverter writes a placeholder document instead of a real PDF.
type stubConverter struct{}

func (stubConverter) ConvertToPDF(img image.Image, dst io.Writer) error {
	_, err := fmt.Fprintf(dst, "%%PDF-stub %v\n", img.Bounds())
	return err
}

func writePNG(t *testing.T, dir, name string) string {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 60, 40))
	for y := 0; y < 40; y++ {
		for x := 0; x < 60; x++ {
			img.Set(x, y, color.White)
		}
	}
	path := filepath.Join(dir, name)
	f, err := os.Create(path)
	require.NoError(t, err)
	require.NoError(t, png.Encode(f, img))
	require.NoError(t, f.Close())
	return path
}

func fastRetry(attempts int) retry.Policy {
	return retry.Policy{MaxAttempts: attempts, InitialBackoff: time.Millisecond, MaxBackoff: 2 * time.Millisecond}
}
