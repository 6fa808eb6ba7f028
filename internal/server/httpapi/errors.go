package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/dmitrijs2005/driveingest/internal/common"
	"github.com/dmitrijs2005/driveingest/internal/server/sessions"
)

const headerErrorStatus = "X-ErrorStatus"

// Machine readable error codes.
const (
	CodeBadRequest   = "BAD_REQUEST"
	CodeUnauthorized = "UNAUTHORIZED"
	CodeForbidden    = "FORBIDDEN"
	CodeNotFound     = "NOT_FOUND"
	CodeConflict     = "CONFLICT"
	CodeTooLarge     = "PAYLOAD_TOO_LARGE"
	CodeStorage      = "STORAGE_ERROR"
	CodeInternal     = "INTERNAL_ERROR"
)

type errorBody struct {
	Error errorDetail `json:"error"`
}

type errorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// statusError is implemented by errors that carry a reason for the
// X-ErrorStatus header.
type statusError interface {
	error
	ErrorStatus() string
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, errorBody{Error: errorDetail{Code: code, Message: message}})
}

// writeServiceError maps err to a response. Session tokens that are
// unknown or consumed answer 403; missing actor credentials are handled
// by the caller with 401.
func writeServiceError(w http.ResponseWriter, err error) {
	var se statusError
	if errors.As(err, &se) {
		w.Header().Set(headerErrorStatus, se.ErrorStatus())
		if errors.Is(err, common.ErrorInternal) {
			writeError(w, http.StatusInternalServerError, CodeInternal, se.ErrorStatus())
			return
		}
		writeError(w, http.StatusBadRequest, CodeBadRequest, se.ErrorStatus())
		return
	}

	var tooLarge *http.MaxBytesError
	switch {
	case errors.As(err, &tooLarge):
		writeError(w, http.StatusRequestEntityTooLarge, CodeTooLarge, "request body too large")
	case errors.Is(err, sessions.ErrCorrupt):
		writeError(w, http.StatusInternalServerError, CodeInternal, "upload session is corrupt")
	case errors.Is(err, common.ErrorUnauthorized):
		writeError(w, http.StatusForbidden, CodeForbidden, "unknown upload session")
	case errors.Is(err, common.ErrorConflict):
		writeError(w, http.StatusConflict, CodeConflict, "upload session is busy")
	case errors.Is(err, common.ErrorValidation), errors.Is(err, common.ErrorQuotaExceeded):
		writeError(w, http.StatusBadRequest, CodeBadRequest, err.Error())
	case errors.Is(err, common.ErrorNotFound):
		writeError(w, http.StatusNotFound, CodeNotFound, "not found")
	case errors.Is(err, common.ErrorStorage):
		writeError(w, http.StatusBadGateway, CodeStorage, "object storage unavailable")
	default:
		writeError(w, http.StatusInternalServerError, CodeInternal, "internal error")
	}
}
