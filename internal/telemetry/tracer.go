package telemetry

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// Attribute keys. Filesystem keys use the "fs." prefix.
const (
	AttrOperation = "fs.operation" // Delegate operation name
	AttrPath      = "fs.path"      // Target path
	AttrSrc       = "fs.src"       // Source path for rename/copy
	AttrDst       = "fs.dst"       // Destination path for rename/copy
	AttrRecursive = "fs.recursive" // Recursive delete flag
	AttrFSType    = "fs.type"      // Filesystem backend
	AttrVolume    = "fs.volume"    // Volume URI
	AttrEntries   = "fs.entries"   // Number of entries listed

	AttrUsername  = "user.name"      // Impersonated end user
	AttrRealUser  = "user.real_name" // Identity the end user is proxied through
	AttrAuth      = "auth.method"
	AttrSessionID = "delegate.session_id"
	AttrAttempts  = "delegate.attempts" // Attempts spent by the executor
	AttrRetryable = "delegate.retryable"

	AttrClientAddr = "client.address"
	AttrRequestID  = "http.request_id"

	AttrBucket = "storage.bucket"
	AttrKey    = "storage.key"
)

// Span names.
const (
	SpanDelegatePrefix = "delegate." // delegate.<operation>
	SpanHTTPRequest    = "http.request"
)

// FSOperation returns an attribute for the delegate operation name.
func FSOperation(op string) attribute.KeyValue {
	return attribute.String(AttrOperation, op)
}

// FSPath returns an attribute for the target path.
func FSPath(path string) attribute.KeyValue {
	return attribute.String(AttrPath, path)
}

func Src(path string) attribute.KeyValue {
	return attribute.String(AttrSrc, path)
}

func Dst(path string) attribute.KeyValue {
	return attribute.String(AttrDst, path)
}

func Recursive(r bool) attribute.KeyValue {
	return attribute.Bool(AttrRecursive, r)
}

// FSType returns an attribute for the filesystem backend type.
func FSType(t string) attribute.KeyValue {
	return attribute.String(AttrFSType, t)
}

// Volume returns an attribute for the volume URI.
func Volume(uri string) attribute.KeyValue {
	return attribute.String(AttrVolume, uri)
}

func Entries(n int) attribute.KeyValue {
	return attribute.Int(AttrEntries, n)
}

// Username returns an attribute for the impersonated user name.
func Username(name string) attribute.KeyValue {
	return attribute.String(AttrUsername, name)
}

func RealUser(name string) attribute.KeyValue {
	return attribute.String(AttrRealUser, name)
}

// AuthMethod returns an attribute for authentication method
func AuthMethod(method string) attribute.KeyValue {
	return attribute.String(AttrAuth, method)
}

func SessionID(id string) attribute.KeyValue {
	return attribute.String(AttrSessionID, id)
}

// Attempts returns an attribute for the number of executor attempts.
func Attempts(n int) attribute.KeyValue {
	return attribute.Int(AttrAttempts, n)
}

func Retryable(r bool) attribute.KeyValue {
	return attribute.Bool(AttrRetryable, r)
}

// ClientAddr returns an attribute for full client address
func ClientAddr(addr string) attribute.KeyValue {
	return attribute.String(AttrClientAddr, addr)
}

func RequestID(id string) attribute.KeyValue {
	return attribute.String(AttrRequestID, id)
}

// Bucket returns an attribute for S3 bucket name
func Bucket(name string) attribute.KeyValue {
	return attribute.String(AttrBucket, name)
}

// StorageKey returns an attribute for a store key
func StorageKey(key string) attribute.KeyValue {
	return attribute.String(AttrKey, key)
}

// StartOperationSpan starts a span named delegate.<operation> carrying the
// operation and user attributes.
func StartOperationSpan(ctx context.Context, operation, username string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	allAttrs := []attribute.KeyValue{
		FSOperation(operation),
		Username(username),
	}
	allAttrs = append(allAttrs, attrs...)

	return StartSpan(ctx, SpanDelegatePrefix+operation, trace.WithAttributes(allAttrs...))
}
