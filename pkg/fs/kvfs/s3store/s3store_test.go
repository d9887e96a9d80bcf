package s3store_test

import (
	"bytes"
	"context"
	"io"
	"sort"
	"strings"
	"sync"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"go.opentelemetry.io/otel/trace/noop"

	"github.com/marmos91/fsdelegate/internal/telemetry"
	"github.com/marmos91/fsdelegate/pkg/fs"
	"github.com/marmos91/fsdelegate/pkg/fs/kvfs"
	"github.com/marmos91/fsdelegate/pkg/fs/kvfs/s3store"
	"github.com/marmos91/fsdelegate/pkg/fs/kvfs/storetest"
)

// fakeS3 is an in-memory bucket returning at most pageSize keys per list
// call, so the store's paginated scan is exercised.
type fakeS3 struct {
	mu       sync.Mutex
	objects  map[string][]byte
	pageSize int
}

func newFakeS3() *fakeS3 {
	return &fakeS3{objects: make(map[string][]byte), pageSize: 2}
}

func (f *fakeS3) GetObject(_ context.Context, in *s3.GetObjectInput, _ ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	data, ok := f.objects[aws.ToString(in.Key)]
	if !ok {
		return nil, &types.NoSuchKey{}
	}
	return &s3.GetObjectOutput{Body: io.NopCloser(bytes.NewReader(append([]byte(nil), data...)))}, nil
}

func (f *fakeS3) PutObject(_ context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	data, err := io.ReadAll(in.Body)
	if err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.objects[aws.ToString(in.Key)] = data
	return &s3.PutObjectOutput{}, nil
}

func (f *fakeS3) DeleteObject(_ context.Context, in *s3.DeleteObjectInput, _ ...func(*s3.Options)) (*s3.DeleteObjectOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.objects, aws.ToString(in.Key))
	return &s3.DeleteObjectOutput{}, nil
}

func (f *fakeS3) ListObjectsV2(_ context.Context, in *s3.ListObjectsV2Input, _ ...func(*s3.Options)) (*s3.ListObjectsV2Output, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	var keys []string
	for k := range f.objects {
		if strings.HasPrefix(k, aws.ToString(in.Prefix)) && k > aws.ToString(in.ContinuationToken) {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)

	out := &s3.ListObjectsV2Output{IsTruncated: aws.Bool(false)}
	if len(keys) > f.pageSize {
		keys = keys[:f.pageSize]
		out.IsTruncated = aws.Bool(true)
		out.NextContinuationToken = aws.String(keys[len(keys)-1])
	}
	for _, k := range keys {
		out.Contents = append(out.Contents, types.Object{Key: aws.String(k)})
	}
	return out, nil
}

func TestConformance(t *testing.T) {
	storetest.RunConformanceSuite(t, func(t *testing.T) kvfs.Store {
		return s3store.New(newFakeS3(), "bucket", "volumes/test/")
	})
}

func TestKeysCarryPrefix(t *testing.T) {
	api := newFakeS3()
	s := s3store.New(api, "bucket", "volumes/warehouse/")

	require.NoError(t, s.Update(t.Context(), func(txn kvfs.Txn) error {
		return txn.Put("cfg:root", []byte("id"))
	}))

	assert.Contains(t, api.objects, "volumes/warehouse/cfg:root")
}

func TestClosedStore(t *testing.T) {
	s := s3store.New(newFakeS3(), "bucket", "")
	require.NoError(t, s.Close())

	_, err := s.Get(t.Context(), "k")
	code, ok := fs.CodeOf(err)
	require.True(t, ok)
	assert.Equal(t, fs.ErrClosed, code)
}

func TestRequiresBucket(t *testing.T) {
	opts := &s3store.Options{}
	_, err := opts.Open(t.Context())
	require.ErrorIs(t, err, fs.ErrInvalidOptions)
}

func TestObjectCallsAreTraced(t *testing.T) {
	recorder := tracetest.NewSpanRecorder()
	telemetry.UseTracerProvider(sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder)), "test")
	t.Cleanup(func() { telemetry.UseTracerProvider(noop.NewTracerProvider(), "fsdelegate") })

	s := s3store.New(newFakeS3(), "warehouse", "volumes/w/")
	require.NoError(t, s.Update(t.Context(), func(txn kvfs.Txn) error {
		return txn.Put("cfg:root", []byte("id"))
	}))
	_, err := s.Get(t.Context(), "missing")
	require.ErrorIs(t, err, kvfs.ErrKeyNotFound)

	attrs := make(map[string]map[string]string)
	for _, span := range recorder.Ended() {
		kv := make(map[string]string)
		for _, a := range span.Attributes() {
			kv[string(a.Key)] = a.Value.Emit()
		}
		attrs[span.Name()] = kv
	}

	require.Contains(t, attrs, "s3.update")
	require.Contains(t, attrs, "s3.get")
	assert.Equal(t, "warehouse", attrs["s3.get"]["storage.bucket"])
	assert.Equal(t, "volumes/w/missing", attrs["s3.get"]["storage.key"])
	assert.Equal(t, "volumes/w/", attrs["s3.update"]["storage.key"])
}
