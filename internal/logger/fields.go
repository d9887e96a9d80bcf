package logger

import (
	"log/slog"
)

// Standard field keys for structured logging.
// Use these keys consistently across all log statements so delegate logs can
// be aggregated and queried by user, session and operation.
const (
	// ========================================================================
	// Distributed Tracing
	// ========================================================================
	KeyTraceID = "trace_id" // OpenTelemetry trace ID for request correlation
	KeySpanID  = "span_id"  // OpenTelemetry span ID for operation tracking

	// ========================================================================
	// Identity
	// ========================================================================
	KeyUsername   = "username"    // Impersonated end user
	KeyRealUser   = "real_user"   // Login identity the user is proxied through
	KeyAuth       = "auth"        // Authentication method: SIMPLE, KERBEROS, ...
	KeyGroups     = "groups"      // Group memberships resolved for a user
	KeyPrincipal  = "principal"   // Kerberos principal
	KeySessionID  = "session_id"  // Delegate session identifier
	KeyRequestID  = "request_id"  // HTTP request identifier
	KeyRemoteAddr = "remote_addr" // HTTP client address

	// ========================================================================
	// Filesystem Operations
	// ========================================================================
	KeyOperation  = "operation"  // Delegate operation: list, stat, rename, ...
	KeyPath       = "path"       // Full file/directory path
	KeySrc        = "src"        // Source path for rename/copy
	KeyDst        = "dst"        // Destination path for rename/copy
	KeyPermission = "permission" // Symbolic permission string
	KeyRecursive  = "recursive"  // Recursive delete flag
	KeySize       = "size"       // File size in bytes
	KeyEntries    = "entries"    // Number of directory entries

	// ========================================================================
	// Filesystem Backend
	// ========================================================================
	KeyFSType = "fs_type" // Filesystem backend: memory, badger, s3
	KeyVolume = "volume"  // Volume name/URI
	KeyBucket = "bucket"  // S3 bucket
	KeyKey    = "key"     // Store key

	// ========================================================================
	// Retry & Outcome
	// ========================================================================
	KeyAttempt     = "attempt"      // Attempt number (1-based)
	KeyMaxAttempts = "max_attempts" // Attempt bound
	KeyBackoff     = "backoff"      // Delay before the next attempt
	KeyDurationMs  = "duration_ms"  // Operation duration in milliseconds
	KeyError       = "error"        // Error message
	KeyErrorCode   = "error_code"   // Error code name
)

// ============================================================================
// Field constructors for type safety
// ============================================================================

// TraceID returns a slog.Attr for OpenTelemetry trace ID
func TraceID(id string) slog.Attr {
	return slog.String(KeyTraceID, id)
}

// Username returns a slog.Attr for the impersonated user
func Username(name string) slog.Attr {
	return slog.String(KeyUsername, name)
}

// RealUser returns a slog.Attr for the login identity
func RealUser(name string) slog.Attr {
	return slog.String(KeyRealUser, name)
}

// Auth returns a slog.Attr for an authentication method name
func Auth(method string) slog.Attr {
	return slog.String(KeyAuth, method)
}

func Groups(groups []string) slog.Attr {
	return slog.Any(KeyGroups, groups)
}

func SessionID(id string) slog.Attr {
	return slog.String(KeySessionID, id)
}

// Operation returns a slog.Attr for the delegate operation name
func Operation(op string) slog.Attr {
	return slog.String(KeyOperation, op)
}

// Path returns a slog.Attr for file/directory path
func Path(p string) slog.Attr {
	return slog.String(KeyPath, p)
}

func Src(p string) slog.Attr {
	return slog.String(KeySrc, p)
}

func Dst(p string) slog.Attr {
	return slog.String(KeyDst, p)
}

// FSType returns a slog.Attr for the filesystem backend type
func FSType(t string) slog.Attr {
	return slog.String(KeyFSType, t)
}

// Attempt returns a slog.Attr for retry attempt number
func Attempt(n int) slog.Attr {
	return slog.Int(KeyAttempt, n)
}

// DurationMs returns a slog.Attr for duration in milliseconds
func DurationMs(ms float64) slog.Attr {
	return slog.Float64(KeyDurationMs, ms)
}

// Err returns a slog.Attr for an error
func Err(err error) slog.Attr {
	if err == nil {
		return slog.Attr{}
	}
	return slog.String(KeyError, err.Error())
}
