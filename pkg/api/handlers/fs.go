package handlers

import (
	"context"
	"io"
	"net/http"

	"github.com/marmos91/fsdelegate/internal/logger"
	"github.com/marmos91/fsdelegate/pkg/auth"
	"github.com/marmos91/fsdelegate/pkg/delegate"
)

// Sessions resolves the delegate session of an authenticated user.
type Sessions interface {
	Session(ctx context.Context, username string) (*delegate.Session, error)
}

// FSHandler exposes delegate operations over HTTP. Every request runs as
// the user named by the authenticated identity in its context.
type FSHandler struct {
	sessions Sessions
}

// NewFSHandler creates a new FSHandler.
func NewFSHandler(sessions Sessions) *FSHandler {
	return &FSHandler{sessions: sessions}
}

// PathRequest is the body of POST /mkdir and POST /trash/move.
type PathRequest struct {
	Path string `json:"path"`
}

// MoveRequest is the body of POST /rename and POST /copy.
type MoveRequest struct {
	Src string `json:"src"`
	Dst string `json:"dst"`
}

// ChmodRequest is the body of POST /chmod.
type ChmodRequest struct {
	Path       string `json:"path"`
	Permission string `json:"permission"`
}

// BooleanResponse carries the result of operations that report success as
// a boolean.
type BooleanResponse struct {
	Boolean bool `json:"boolean"`
}

// PathResponse carries a single path.
type PathResponse struct {
	Path string `json:"path"`
}

// TrashResponse describes the trash directory of the user.
type TrashResponse struct {
	// URI is the qualified trash directory.
	URI string `json:"uri"`

	// Path is URI without scheme and authority.
	Path string `json:"path"`
}

// UploadResponse is returned by PUT /content.
type UploadResponse struct {
	Path  string `json:"path"`
	Bytes int64  `json:"bytes"`
}

func (h *FSHandler) session(w http.ResponseWriter, r *http.Request) (*delegate.Session, bool) {
	id := auth.IdentityFromContext(r.Context())
	if id == nil {
		Unauthorized(w, "Authentication required")
		return nil, false
	}
	s, err := h.sessions.Session(r.Context(), id.Username)
	if err != nil {
		WriteError(w, r, err)
		return nil, false
	}
	return s, true
}

// List handles GET /list?path=.
func (h *FSHandler) List(w http.ResponseWriter, r *http.Request) {
	path, ok := requiredQuery(w, r, "path")
	if !ok {
		return
	}
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	sts, err := s.ListDir(r.Context(), path)
	if err != nil {
		WriteError(w, r, err)
		return
	}
	WriteJSONOK(w, s.FileStatusesToRecords(sts))
}

// Status handles GET /status?path=.
func (h *FSHandler) Status(w http.ResponseWriter, r *http.Request) {
	path, ok := requiredQuery(w, r, "path")
	if !ok {
		return
	}
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	st, err := s.GetFileStatus(r.Context(), path)
	if err != nil {
		WriteError(w, r, err)
		return
	}
	WriteJSONOK(w, s.FileStatusToRecord(st))
}

// Exists handles GET /exists?path=.
func (h *FSHandler) Exists(w http.ResponseWriter, r *http.Request) {
	path, ok := requiredQuery(w, r, "path")
	if !ok {
		return
	}
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	exists, err := s.Exists(r.Context(), path)
	if err != nil {
		WriteError(w, r, err)
		return
	}
	WriteJSONOK(w, BooleanResponse{Boolean: exists})
}

// Mkdir handles POST /mkdir.
func (h *FSHandler) Mkdir(w http.ResponseWriter, r *http.Request) {
	var req PathRequest
	if !decodeJSONBody(w, r, &req) || !required(w, "path", req.Path) {
		return
	}
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	created, err := s.Mkdir(r.Context(), req.Path)
	if err != nil {
		WriteError(w, r, err)
		return
	}
	WriteJSONOK(w, BooleanResponse{Boolean: created})
}

// Rename handles POST /rename.
func (h *FSHandler) Rename(w http.ResponseWriter, r *http.Request) {
	var req MoveRequest
	if !decodeJSONBody(w, r, &req) || !required(w, "src", req.Src) || !required(w, "dst", req.Dst) {
		return
	}
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	renamed, err := s.Rename(r.Context(), req.Src, req.Dst)
	if err != nil {
		WriteError(w, r, err)
		return
	}
	WriteJSONOK(w, BooleanResponse{Boolean: renamed})
}

// Delete handles DELETE /?path=&recursive=.
func (h *FSHandler) Delete(w http.ResponseWriter, r *http.Request) {
	path, ok := requiredQuery(w, r, "path")
	if !ok {
		return
	}
	recursive, ok := boolQuery(w, r, "recursive")
	if !ok {
		return
	}
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	deleted, err := s.Delete(r.Context(), path, recursive)
	if err != nil {
		WriteError(w, r, err)
		return
	}
	WriteJSONOK(w, BooleanResponse{Boolean: deleted})
}

// Download handles GET /content?path=, streaming the file body.
func (h *FSHandler) Download(w http.ResponseWriter, r *http.Request) {
	path, ok := requiredQuery(w, r, "path")
	if !ok {
		return
	}
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	rc, err := s.Open(r.Context(), path)
	if err != nil {
		WriteError(w, r, err)
		return
	}
	defer func() { _ = rc.Close() }()

	w.Header().Set("Content-Type", "application/octet-stream")
	w.WriteHeader(http.StatusOK)
	if n, err := io.Copy(w, rc); err != nil {
		// Headers are sent; the client sees a truncated body.
		logger.WarnCtx(r.Context(), "Content download interrupted",
			logger.KeyPath, path, logger.KeySize, n, logger.KeyError, err)
	}
}

// Upload handles PUT /content?path=&overwrite=, storing the request body.
func (h *FSHandler) Upload(w http.ResponseWriter, r *http.Request) {
	path, ok := requiredQuery(w, r, "path")
	if !ok {
		return
	}
	overwrite, ok := boolQuery(w, r, "overwrite")
	if !ok {
		return
	}
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	wc, err := s.Create(r.Context(), path, overwrite)
	if err != nil {
		WriteError(w, r, err)
		return
	}
	n, err := io.Copy(wc, r.Body)
	if closeErr := wc.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		WriteError(w, r, err)
		return
	}
	WriteJSON(w, http.StatusCreated, UploadResponse{Path: path, Bytes: n})
}

// Chmod handles POST /chmod.
func (h *FSHandler) Chmod(w http.ResponseWriter, r *http.Request) {
	var req ChmodRequest
	if !decodeJSONBody(w, r, &req) || !required(w, "path", req.Path) || !required(w, "permission", req.Permission) {
		return
	}
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	changed, err := s.Chmod(r.Context(), req.Path, req.Permission)
	if err != nil {
		WriteError(w, r, err)
		return
	}
	WriteJSONOK(w, BooleanResponse{Boolean: changed})
}

// Copy handles POST /copy.
func (h *FSHandler) Copy(w http.ResponseWriter, r *http.Request) {
	var req MoveRequest
	if !decodeJSONBody(w, r, &req) || !required(w, "src", req.Src) || !required(w, "dst", req.Dst) {
		return
	}
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	if err := s.Copy(r.Context(), req.Src, req.Dst); err != nil {
		WriteError(w, r, err)
		return
	}
	WriteNoContent(w)
}

// Home handles GET /home.
func (h *FSHandler) Home(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	home, err := s.HomeDir(r.Context())
	if err != nil {
		WriteError(w, r, err)
		return
	}
	WriteJSONOK(w, PathResponse{Path: home})
}

// FsStatus handles GET /fsstatus.
func (h *FSHandler) FsStatus(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	st, err := s.Status(r.Context())
	if err != nil {
		WriteError(w, r, err)
		return
	}
	WriteJSONOK(w, st)
}

// Trash handles GET /trash.
func (h *FSHandler) Trash(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	uri, err := s.TrashDir(r.Context())
	if err != nil {
		WriteError(w, r, err)
		return
	}
	path, err := s.TrashDirPath(r.Context())
	if err != nil {
		WriteError(w, r, err)
		return
	}
	WriteJSONOK(w, TrashResponse{URI: uri, Path: path})
}

// TrashEnabled handles GET /trash/enabled.
func (h *FSHandler) TrashEnabled(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	enabled, err := s.TrashEnabled(r.Context())
	if err != nil {
		WriteError(w, r, err)
		return
	}
	WriteJSONOK(w, BooleanResponse{Boolean: enabled})
}

// TrashPath handles GET /trash/path?file=.
func (h *FSHandler) TrashPath(w http.ResponseWriter, r *http.Request) {
	file, ok := requiredQuery(w, r, "file")
	if !ok {
		return
	}
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	path, err := s.TrashDirPathFor(r.Context(), file)
	if err != nil {
		WriteError(w, r, err)
		return
	}
	WriteJSONOK(w, PathResponse{Path: path})
}

// MoveToTrash handles POST /trash/move.
func (h *FSHandler) MoveToTrash(w http.ResponseWriter, r *http.Request) {
	var req PathRequest
	if !decodeJSONBody(w, r, &req) || !required(w, "path", req.Path) {
		return
	}
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	moved, err := s.MoveToTrash(r.Context(), req.Path)
	if err != nil {
		WriteError(w, r, err)
		return
	}
	WriteJSONOK(w, BooleanResponse{Boolean: moved})
}

// EmptyTrash handles DELETE /trash.
func (h *FSHandler) EmptyTrash(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	if err := s.EmptyTrash(r.Context()); err != nil {
		WriteError(w, r, err)
		return
	}
	WriteNoContent(w)
}
