package fs_test

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/marmos91/fsdelegate/pkg/fs"
)

func TestErrorFormatting(t *testing.T) {
	err := fs.NewNotFoundError("getFileStatus", "/missing")
	assert.Equal(t, "not found: File does not exist: /missing (path: /missing)", err.Error())

	cause := errors.New("connection reset")
	wrapped := fs.WrapIOError("open", "", cause)
	assert.Equal(t, "io error: connection reset", wrapped.Error())
	assert.ErrorIs(t, wrapped, cause)
}

func TestErrorClassification(t *testing.T) {
	err := fmt.Errorf("listing: %w", fs.NewError(fs.ErrIO, "open", "/f", "Cannot obtain block length for LocatedBlock{}"))

	code, ok := fs.CodeOf(err)
	assert.True(t, ok)
	assert.Equal(t, fs.ErrIO, code)
	assert.True(t, fs.IsIOError(err))
	assert.False(t, fs.IsNotFound(err))

	_, ok = fs.CodeOf(errors.New("plain"))
	assert.False(t, ok)
	assert.False(t, fs.IsIOError(errors.New("plain")))
	assert.False(t, fs.IsIOError(nil))

	assert.True(t, fs.IsPermissionDenied(fs.NewPermissionError("create", "/x", "Permission denied")))
	assert.True(t, fs.IsAlreadyExists(fs.NewError(fs.ErrAlreadyExists, "create", "/x", "exists")))
	assert.Equal(t, "quota exceeded", fs.ErrNoSpace.String())
	assert.Equal(t, "ErrorCode(99)", fs.ErrorCode(99).String())
}
