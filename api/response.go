package api

import (
	"errors"
	"net/http"

	jsoniter "github.com/json-iterator/go"

	domainerrors "library-circulation/internal/errors"
	"library-circulation/internal/logger"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Envelope provides a consistent JSON response structure.
type Envelope struct {
	Data    any    `json:"data,omitempty"`
	Error   string `json:"error,omitempty"`
	Code    string `json:"code,omitempty"`
	Details any    `json:"details,omitempty"`
	Success bool   `json:"success"`
}

// writeJSON writes an envelope with the given status code.
func writeJSON(w http.ResponseWriter, status int, env Envelope, log *logger.Logger) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(env); err != nil && log != nil {
		log.Error("Failed to encode JSON response", "error", err)
	}
}

func success(w http.ResponseWriter, data any, log *logger.Logger) {
	writeJSON(w, http.StatusOK, Envelope{Success: true, Data: data}, log)
}

func created(w http.ResponseWriter, data any, log *logger.Logger) {
	writeJSON(w, http.StatusCreated, Envelope{Success: true, Data: data}, log)
}

func errorResponse(w http.ResponseWriter, status int, code domainerrors.Code, message string, log *logger.Logger) {
	writeJSON(w, status, Envelope{Error: message, Code: string(code)}, log)
}

// handleError maps coded domain errors to their HTTP status. Store failures
// and unknown errors are logged and reported as 500 without their cause.
func handleError(w http.ResponseWriter, err error, log *logger.Logger) {
	var de *domainerrors.Error
	if !errors.As(err, &de) {
		log.Error("Unhandled error", "error", err)
		errorResponse(w, http.StatusInternalServerError, domainerrors.CodeInternal, "internal server error", log)
		return
	}

	status := de.HTTPStatus()
	if status >= http.StatusInternalServerError {
		log.Error("Request failed", "code", de.Code, "error", err)
		errorResponse(w, status, de.Code, de.Message, log)
		return
	}
	writeJSON(w, status, Envelope{Error: de.Message, Code: string(de.Code), Details: de.Details}, log)
}

// decode reads a JSON body into dst.
func decode(r *http.Request, dst any) error {
	if r.Body == nil || r.ContentLength == 0 {
		return domainerrors.Validation("request body is required")
	}
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		return domainerrors.Validationf("invalid JSON body: %v", err)
	}
	return nil
}
