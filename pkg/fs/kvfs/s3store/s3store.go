// Package s3store keeps a kvfs volume as objects in an S3 bucket, one
// object per key below an optional prefix.
//
// It registers the "s3" filesystem type. Writes of one operation are
// applied object by object; S3 offers no multi-object transaction, so a
// failed commit can leave part of an operation applied.
package s3store

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"go.opentelemetry.io/otel/trace"

	"github.com/marmos91/fsdelegate/internal/logger"
	"github.com/marmos91/fsdelegate/internal/telemetry"
	"github.com/marmos91/fsdelegate/pkg/fs"
	"github.com/marmos91/fsdelegate/pkg/fs/kvfs"
)

func init() {
	fs.Register("s3", kvfs.NewFactory("s3", func() kvfs.Backend {
		return &Options{Options: kvfs.DefaultOptions(), Region: "us-east-1"}
	}))
}

// Options configures an S3 volume.
type Options struct {
	kvfs.Options `mapstructure:",squash"`

	Bucket string `mapstructure:"bucket"`
	Region string `mapstructure:"region"`

	// Endpoint selects an S3-compatible service (MinIO, Localstack) and
	// switches to path-style addressing.
	Endpoint string `mapstructure:"endpoint"`

	// KeyPrefix is prepended to every object key, e.g. "volumes/warehouse/".
	KeyPrefix string `mapstructure:"key_prefix"`

	AccessKeyID     string `mapstructure:"access_key_id"`
	SecretAccessKey string `mapstructure:"secret_access_key"`
}

func (o *Options) Open(ctx context.Context) (kvfs.Store, error) {
	if o.Bucket == "" {
		return nil, fmt.Errorf("%w: s3 filesystem requires bucket", fs.ErrInvalidOptions)
	}

	var loadOpts []func(*awsconfig.LoadOptions) error
	if o.Region != "" {
		loadOpts = append(loadOpts, awsconfig.WithRegion(o.Region))
	}
	if o.AccessKeyID != "" && o.SecretAccessKey != "" {
		loadOpts = append(loadOpts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(o.AccessKeyID, o.SecretAccessKey, ""),
		))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	var client *s3.Client
	if o.Endpoint != "" {
		client = s3.NewFromConfig(awsCfg, func(so *s3.Options) {
			so.BaseEndpoint = aws.String(o.Endpoint)
			so.UsePathStyle = true
		})
	} else {
		client = s3.NewFromConfig(awsCfg)
	}

	s := New(client, o.Bucket, o.KeyPrefix)
	s.log.Debug("S3 store configured", "prefix", o.KeyPrefix)
	return s, nil
}

// API is the subset of the S3 client the store uses.
type API interface {
	GetObject(ctx context.Context, in *s3.GetObjectInput, opts ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	PutObject(ctx context.Context, in *s3.PutObjectInput, opts ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	DeleteObject(ctx context.Context, in *s3.DeleteObjectInput, opts ...func(*s3.Options)) (*s3.DeleteObjectOutput, error)
	ListObjectsV2(ctx context.Context, in *s3.ListObjectsV2Input, opts ...func(*s3.Options)) (*s3.ListObjectsV2Output, error)
}

// Store is a kvfs.Store over an S3 bucket.
type Store struct {
	client    API
	bucket    string
	keyPrefix string
	log       *slog.Logger

	// mu makes Update exclusive within the process.
	mu     sync.Mutex
	closed bool
}

var _ kvfs.Store = (*Store)(nil)

func New(client API, bucket, keyPrefix string) *Store {
	return &Store{
		client:    client,
		bucket:    bucket,
		keyPrefix: keyPrefix,
		log:       logger.With("component", "s3_store", logger.KeyBucket, bucket),
	}
}

func (s *Store) startSpan(ctx context.Context, name, key string) (context.Context, trace.Span) {
	return telemetry.StartSpan(ctx, name,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(telemetry.Bucket(s.bucket), telemetry.StorageKey(s.objectKey(key))),
	)
}

func (s *Store) objectKey(key string) string {
	return s.keyPrefix + key
}

func (s *Store) isClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

func (s *Store) Get(ctx context.Context, key string) ([]byte, error) {
	if s.isClosed() {
		return nil, fs.NewError(fs.ErrClosed, "get", key, "store closed")
	}
	return s.get(ctx, key)
}

func (s *Store) get(ctx context.Context, key string) ([]byte, error) {
	ctx, span := s.startSpan(ctx, "s3.get", key)
	defer span.End()

	resp, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.objectKey(key)),
	})
	if err != nil {
		if isNotFound(err) {
			return nil, kvfs.ErrKeyNotFound
		}
		telemetry.RecordError(ctx, err)
		return nil, fmt.Errorf("s3 get object: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read s3 object body: %w", err)
	}
	return data, nil
}

func (s *Store) Scan(ctx context.Context, prefix string, fn func(key string, value []byte) bool) error {
	if s.isClosed() {
		return fs.NewError(fs.ErrClosed, "scan", prefix, "store closed")
	}

	ctx, span := s.startSpan(ctx, "s3.scan", prefix)
	defer span.End()

	paginator := s3.NewListObjectsV2Paginator(s.client, &s3.ListObjectsV2Input{
		Bucket: aws.String(s.bucket),
		Prefix: aws.String(s.objectKey(prefix)),
	})

	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			telemetry.RecordError(ctx, err)
			return fmt.Errorf("s3 list objects: %w", err)
		}
		for _, obj := range page.Contents {
			key := strings.TrimPrefix(aws.ToString(obj.Key), s.keyPrefix)
			value, err := s.get(ctx, key)
			if errors.Is(err, kvfs.ErrKeyNotFound) {
				continue
			}
			if err != nil {
				return err
			}
			if !fn(key, value) {
				return nil
			}
		}
	}
	return nil
}

func (s *Store) Update(ctx context.Context, fn func(txn kvfs.Txn) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return fs.NewError(fs.ErrClosed, "update", "", "store closed")
	}

	ctx, span := s.startSpan(ctx, "s3.update", "")
	defer span.End()

	txn := kvfs.NewStagedTxn(func(key string) ([]byte, error) {
		return s.get(ctx, key)
	})
	if err := fn(txn); err != nil {
		return err
	}

	var puts, deletes int
	err := txn.Apply(
		func(key string, value []byte) error {
			puts++
			_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
				Bucket: aws.String(s.bucket),
				Key:    aws.String(s.objectKey(key)),
				Body:   bytes.NewReader(value),
			})
			if err != nil {
				return fmt.Errorf("s3 put object: %w", err)
			}
			return nil
		},
		func(key string) error {
			deletes++
			_, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
				Bucket: aws.String(s.bucket),
				Key:    aws.String(s.objectKey(key)),
			})
			if err != nil && !isNotFound(err) {
				return fmt.Errorf("s3 delete object: %w", err)
			}
			return nil
		},
	)
	if err != nil {
		telemetry.RecordError(ctx, err)
		s.log.Warn("S3 commit failed", "puts", puts, "deletes", deletes, logger.KeyError, err)
		return err
	}
	s.log.Debug("S3 commit applied", "puts", puts, "deletes", deletes)
	return nil
}

func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

func isNotFound(err error) bool {
	var noSuchKey *types.NoSuchKey
	if errors.As(err, &noSuchKey) {
		return true
	}
	var notFound *types.NotFound
	return errors.As(err, &notFound)
}
