package fs

import (
	"errors"
	"fmt"
)

// ErrorCode classifies filesystem failures.
type ErrorCode int

const (
	// ErrIO is the generic I/O failure category. It is the only category
	// the delegate considers for retry.
	ErrIO ErrorCode = iota
	ErrNotFound
	ErrPermissionDenied
	ErrAlreadyExists
	ErrNotDirectory
	ErrIsDirectory
	ErrNotEmpty
	ErrNoSpace
	ErrInvalidArgument
	ErrClosed
)

func (c ErrorCode) String() string {
	switch c {
	case ErrIO:
		return "io error"
	case ErrNotFound:
		return "not found"
	case ErrPermissionDenied:
		return "permission denied"
	case ErrAlreadyExists:
		return "already exists"
	case ErrNotDirectory:
		return "not a directory"
	case ErrIsDirectory:
		return "is a directory"
	case ErrNotEmpty:
		return "directory not empty"
	case ErrNoSpace:
		return "quota exceeded"
	case ErrInvalidArgument:
		return "invalid argument"
	case ErrClosed:
		return "filesystem closed"
	default:
		return fmt.Sprintf("ErrorCode(%d)", int(c))
	}
}

// Error is a filesystem failure with a category, the operation and path it
// concerns, and an optional underlying cause.
type Error struct {
	Code    ErrorCode
	Op      string
	Path    string
	Message string
	Err     error
}

func (e *Error) Error() string {
	msg := e.Message
	if msg == "" && e.Err != nil {
		msg = e.Err.Error()
	}
	if e.Path == "" {
		return fmt.Sprintf("%s: %s", e.Code, msg)
	}
	return fmt.Sprintf("%s: %s (path: %s)", e.Code, msg, e.Path)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Configuration errors returned by Get.
var (
	ErrUnsupportedType = errors.New("fs: unsupported filesystem type")
	ErrInvalidOptions  = errors.New("fs: invalid filesystem options")
)

// NewError builds an *Error.
func NewError(code ErrorCode, op, path, message string) *Error {
	return &Error{Code: code, Op: op, Path: path, Message: message}
}

// WrapIOError wraps a lower-level failure (store, network) as an I/O error.
func WrapIOError(op, path string, err error) *Error {
	return &Error{Code: ErrIO, Op: op, Path: path, Err: err}
}

func NewNotFoundError(op, path string) *Error {
	return NewError(ErrNotFound, op, path, "File does not exist: "+path)
}

// NewPermissionError formats the message the way HDFS access-control
// failures read, e.g. "Permission denied: user=bob, access=WRITE, inode=...".
func NewPermissionError(op, path, message string) *Error {
	return NewError(ErrPermissionDenied, op, path, message)
}

// CodeOf returns the code of the first *Error in err's chain.
func CodeOf(err error) (ErrorCode, bool) {
	var fe *Error
	if errors.As(err, &fe) {
		return fe.Code, true
	}
	return 0, false
}

func hasCode(err error, code ErrorCode) bool {
	c, ok := CodeOf(err)
	return ok && c == code
}

// IsIOError reports whether err is in the I/O failure category.
func IsIOError(err error) bool { return hasCode(err, ErrIO) }

func IsNotFound(err error) bool { return hasCode(err, ErrNotFound) }

func IsPermissionDenied(err error) bool { return hasCode(err, ErrPermissionDenied) }

func IsAlreadyExists(err error) bool { return hasCode(err, ErrAlreadyExists) }
