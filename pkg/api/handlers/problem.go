// Package handlers provides HTTP handlers for the fsdelegate API.
package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/marmos91/fsdelegate/internal/logger"
	"github.com/marmos91/fsdelegate/pkg/delegate"
	"github.com/marmos91/fsdelegate/pkg/fs"
)

// Problem represents an RFC 7807 "problem details" response.
// https://tools.ietf.org/html/rfc7807
type Problem struct {
	// Type is a URI reference that identifies the problem type.
	// If not set, defaults to "about:blank".
	Type string `json:"type,omitempty"`

	// Title is a short, human-readable summary of the problem type.
	Title string `json:"title"`

	// Status is the HTTP status code for this occurrence of the problem.
	Status int `json:"status"`

	// Detail is a human-readable explanation specific to this occurrence.
	Detail string `json:"detail,omitempty"`

	// Instance is a URI reference that identifies the specific occurrence.
	Instance string `json:"instance,omitempty"`

	// Code is the filesystem error category, when there is one.
	Code string `json:"code,omitempty"`
}

// ContentTypeProblemJSON is the Content-Type for RFC 7807 problem responses.
const ContentTypeProblemJSON = "application/problem+json"

// Problem type URIs for delegate failures.
const (
	ProblemTypeConfiguration = "urn:fsdelegate:problem:configuration"
	ProblemTypeConnection    = "urn:fsdelegate:problem:connection"
)

func writeProblem(w http.ResponseWriter, p *Problem) {
	if p.Type == "" {
		p.Type = "about:blank"
	}
	w.Header().Set("Content-Type", ContentTypeProblemJSON)
	w.WriteHeader(p.Status)
	_ = json.NewEncoder(w).Encode(p)
}

// WriteProblem writes an RFC 7807 problem response.
func WriteProblem(w http.ResponseWriter, status int, title, detail string) {
	writeProblem(w, &Problem{Title: title, Status: status, Detail: detail})
}

// BadRequest writes a 400 Bad Request problem response.
func BadRequest(w http.ResponseWriter, detail string) {
	WriteProblem(w, http.StatusBadRequest, "Bad Request", detail)
}

// Unauthorized writes a 401 Unauthorized problem response.
func Unauthorized(w http.ResponseWriter, detail string) {
	WriteProblem(w, http.StatusUnauthorized, "Unauthorized", detail)
}

// InternalServerError writes a 500 Internal Server Error problem response.
func InternalServerError(w http.ResponseWriter, detail string) {
	WriteProblem(w, http.StatusInternalServerError, "Internal Server Error", detail)
}

// WriteError maps a delegate or filesystem error to a problem response.
// The instance is the request path.
func WriteError(w http.ResponseWriter, r *http.Request, err error) {
	p := problemFor(err)
	p.Instance = r.URL.Path
	if p.Status >= http.StatusInternalServerError {
		logger.ErrorCtx(r.Context(), "API request failed", logger.KeyPath, r.URL.Path, logger.KeyError, err)
	} else {
		logger.DebugCtx(r.Context(), "API request rejected", logger.KeyPath, r.URL.Path, logger.KeyError, err)
	}
	writeProblem(w, p)
}

func problemFor(err error) *Problem {
	var (
		cfgErr  *delegate.ConfigurationError
		connErr *delegate.ConnectionError
	)
	switch {
	case errors.As(err, &cfgErr):
		return &Problem{
			Type:   ProblemTypeConfiguration,
			Title:  "Configuration Error",
			Status: http.StatusInternalServerError,
			Detail: cfgErr.Error(),
		}
	case errors.As(err, &connErr):
		return &Problem{
			Type:   ProblemTypeConnection,
			Title:  "Connection Error",
			Status: http.StatusInternalServerError,
			Detail: connErr.Error(),
		}
	case errors.Is(err, context.DeadlineExceeded):
		return &Problem{Title: "Gateway Timeout", Status: http.StatusGatewayTimeout, Detail: err.Error()}
	}

	code, ok := fs.CodeOf(err)
	if !ok {
		return &Problem{Title: "Internal Server Error", Status: http.StatusInternalServerError, Detail: err.Error()}
	}

	p := &Problem{Detail: err.Error(), Code: code.String()}
	switch code {
	case fs.ErrNotFound:
		p.Status = http.StatusNotFound
	case fs.ErrPermissionDenied:
		p.Status = http.StatusForbidden
	case fs.ErrAlreadyExists, fs.ErrNotEmpty:
		p.Status = http.StatusConflict
	case fs.ErrInvalidArgument, fs.ErrNotDirectory, fs.ErrIsDirectory:
		p.Status = http.StatusBadRequest
	case fs.ErrNoSpace:
		p.Status = http.StatusInsufficientStorage
	default:
		p.Status = http.StatusInternalServerError
	}
	p.Title = http.StatusText(p.Status)
	return p
}

// WriteJSON writes a JSON response with the given status code.
func WriteJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

// WriteJSONOK writes a 200 OK JSON response.
func WriteJSONOK(w http.ResponseWriter, data any) {
	WriteJSON(w, http.StatusOK, data)
}

// WriteNoContent writes a 204 No Content response.
func WriteNoContent(w http.ResponseWriter) {
	w.WriteHeader(http.StatusNoContent)
}
