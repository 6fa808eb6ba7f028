package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/dmitrijs2005/driveingest/internal/common"
	"github.com/dmitrijs2005/driveingest/internal/logging"
	"github.com/dmitrijs2005/driveingest/internal/server/models"
	"github.com/dmitrijs2005/driveingest/internal/server/services"
)

const (
	maxJSONBody   = 64 << 10
	formMemory    = 32 << 20
	formOverhead  = 1 << 20
	bearerPrefix  = "Bearer "
	formFileField = "file"
)

// Authenticator resolves the "i" credential to its user.
type Authenticator interface {
	Authenticate(ctx context.Context, credential string) (*models.User, error)
}

// Uploads is the resumable upload protocol.
type Uploads interface {
	Preflight(ctx context.Context, user *models.User, p services.PreflightParams) (*services.PreflightResult, error)
	AppendPart(ctx context.Context, token string, body []byte) (*services.PartResult, error)
	Finish(ctx context.Context, token string) (*services.PackedFile, error)
	Abort(ctx context.Context, token string) error
}

// Creator stores a file received in a single request.
type Creator interface {
	Create(ctx context.Context, user *models.User, p services.CreateParams) (*services.PackedFile, error)
}

// HealthChecker reports whether the gateway's dependencies are reachable.
type HealthChecker interface {
	Check(ctx context.Context) error
}

// Handler serves the drive upload API.
type Handler struct {
	auth            Authenticator
	uploads         Uploads
	creator         Creator
	health          HealthChecker
	partMaxSize     int64
	fullUploadLimit int64
	logger          logging.Logger
}

// HandlerDeps groups the collaborators of a Handler.
type HandlerDeps struct {
	Auth            Authenticator
	Uploads         Uploads
	Creator         Creator
	Health          HealthChecker
	PartMaxSize     int64
	FullUploadLimit int64
	Logger          logging.Logger
}

func NewHandler(d HandlerDeps) *Handler {
	return &Handler{
		auth:            d.Auth,
		uploads:         d.Uploads,
		creator:         d.Creator,
		health:          d.Health,
		partMaxSize:     d.PartMaxSize,
		fullUploadLimit: d.FullUploadLimit,
		logger:          d.Logger.With("module", "http"),
	}
}

type preflightRequest struct {
	I             string  `json:"i"`
	ContentLength *int64  `json:"content_length"`
	FolderID      *string `json:"folderId"`
	Name          *string `json:"name"`
	IsSensitive   bool    `json:"isSensitive"`
	Comment       *string `json:"comment"`
	Force         bool    `json:"force"`
}

// Preflight opens a multipart upload session.
func (h *Handler) Preflight(w http.ResponseWriter, r *http.Request) {
	var req preflightRequest
	if err := json.NewDecoder(io.LimitReader(r.Body, maxJSONBody)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, CodeBadRequest, "malformed request body")
		return
	}

	user, ok := h.authenticate(w, r, req.I)
	if !ok {
		return
	}

	p := services.PreflightParams{
		FolderID:    req.FolderID,
		Name:        req.Name,
		IsSensitive: req.IsSensitive,
		Comment:     req.Comment,
		Force:       req.Force,
	}
	if req.ContentLength != nil {
		p.ContentLength = *req.ContentLength
	}

	res, err := h.uploads.Preflight(r.Context(), user, p)
	if err != nil {
		h.fail(w, r, "preflight", err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// PartialUpload appends the request body as the next part.
func (h *Handler) PartialUpload(w http.ResponseWriter, r *http.Request) {
	token, ok := bearer(w, r)
	if !ok {
		return
	}

	// One byte past the limit is enough for the part to be refused.
	body, err := io.ReadAll(io.LimitReader(r.Body, h.partMaxSize+1))
	if err != nil {
		writeError(w, http.StatusBadRequest, CodeBadRequest, "failed to read body")
		return
	}

	res, err := h.uploads.AppendPart(r.Context(), token, body)
	if err != nil {
		h.fail(w, r, "partial upload", err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// FinishUpload commits the session and returns the registered file.
func (h *Handler) FinishUpload(w http.ResponseWriter, r *http.Request) {
	token, ok := bearer(w, r)
	if !ok {
		return
	}

	file, err := h.uploads.Finish(r.Context(), token)
	if err != nil {
		h.fail(w, r, "finish upload", err)
		return
	}
	writeJSON(w, http.StatusOK, file)
}

// Abort discards the session.
func (h *Handler) Abort(w http.ResponseWriter, r *http.Request) {
	token, ok := bearer(w, r)
	if !ok {
		return
	}

	if err := h.uploads.Abort(r.Context(), token); err != nil {
		h.fail(w, r, "abort", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Create handles a single-shot multipart/form-data upload.
func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, h.fullUploadLimit+formOverhead)
	if err := r.ParseMultipartForm(formMemory); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeServiceError(w, tooLarge)
			return
		}
		writeError(w, http.StatusBadRequest, CodeBadRequest, "malformed multipart form")
		return
	}
	defer func() { _ = r.MultipartForm.RemoveAll() }()

	user, ok := h.authenticate(w, r, r.FormValue("i"))
	if !ok {
		return
	}

	f, hdr, err := r.FormFile(formFileField)
	if err != nil {
		writeError(w, http.StatusBadRequest, CodeBadRequest, "file is required")
		return
	}
	defer f.Close()

	if hdr.Size > h.fullUploadLimit {
		writeServiceError(w, &http.MaxBytesError{Limit: h.fullUploadLimit})
		return
	}
	data, err := io.ReadAll(f)
	if err != nil {
		writeError(w, http.StatusBadRequest, CodeBadRequest, "failed to read file")
		return
	}

	p := services.CreateParams{
		Data:        data,
		Name:        formString(r, "name"),
		Ext:         formString(r, "ext"),
		FolderID:    formString(r, "folderId", "folder_id"),
		Comment:     formString(r, "comment"),
		IsSensitive: formBool(r, "isSensitive"),
		Force:       formBool(r, "force"),
	}
	if p.Name == nil && hdr.Filename != "" {
		p.Name = &hdr.Filename
	}

	file, err := h.creator.Create(r.Context(), user, p)
	if err != nil {
		h.fail(w, r, "create", err)
		return
	}
	writeJSON(w, http.StatusOK, file)
}

// Healthz answers 200 while every dependency is reachable.
func (h *Handler) Healthz(w http.ResponseWriter, r *http.Request) {
	if h.health != nil {
		if err := h.health.Check(r.Context()); err != nil {
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable", "error": err.Error()})
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *Handler) authenticate(w http.ResponseWriter, r *http.Request, credential string) (*models.User, bool) {
	if credential == "" {
		writeError(w, http.StatusUnauthorized, CodeUnauthorized, "credential required")
		return nil, false
	}
	user, err := h.auth.Authenticate(r.Context(), credential)
	if err != nil {
		if errors.Is(err, common.ErrorUnauthorized) {
			writeError(w, http.StatusUnauthorized, CodeUnauthorized, "invalid credential")
			return nil, false
		}
		h.fail(w, r, "authenticate", err)
		return nil, false
	}
	return user, true
}

func (h *Handler) fail(w http.ResponseWriter, r *http.Request, op string, err error) {
	if errors.Is(err, common.ErrorInternal) || errors.Is(err, common.ErrorStorage) {
		h.logger.Error(r.Context(), op+" failed", "error", err)
	} else {
		h.logger.Debug(r.Context(), op+" refused", "error", err)
	}
	writeServiceError(w, err)
}

// bearer extracts the session token from the Authorization header. A
// missing or malformed header answers 400.
func bearer(w http.ResponseWriter, r *http.Request) (string, bool) {
	v := r.Header.Get("Authorization")
	if !strings.HasPrefix(v, bearerPrefix) {
		writeError(w, http.StatusBadRequest, CodeBadRequest, "bearer token required")
		return "", false
	}
	token := strings.TrimSpace(v[len(bearerPrefix):])
	if token == "" {
		writeError(w, http.StatusBadRequest, CodeBadRequest, "bearer token required")
		return "", false
	}
	return token, true
}

// formString returns the first non-empty value among keys.
func formString(r *http.Request, keys ...string) *string {
	for _, k := range keys {
		if v := r.FormValue(k); v != "" {
			return &v
		}
	}
	return nil
}

func formBool(r *http.Request, key string) bool {
	b, _ := strconv.ParseBool(r.FormValue(key))
	return b
}
