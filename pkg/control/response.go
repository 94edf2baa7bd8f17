package control

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/chatpilot/chatpilot/pkg/contacts"
	"github.com/chatpilot/chatpilot/pkg/session"
	"github.com/chatpilot/chatpilot/pkg/store"
)

const maxRequestBodyBytes = 1 << 20

const (
	errorCodeInvalidRequest = "invalid_request"
	errorCodeNotFound       = "not_found"
	errorCodeConflict       = "conflict"
	errorCodeUnavailable    = "unavailable"
	errorCodeInternal       = "internal_error"
)

type apiError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type apiErrorResponse struct {
	Error apiError `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, apiErrorResponse{Error: apiError{Code: code, Message: message}})
}

func writeMappedError(w http.ResponseWriter, err error) {
	status, code := mapError(err)
	writeError(w, status, code, err.Error())
}

func mapError(err error) (int, string) {
	switch {
	case errors.Is(err, session.ErrSessionNotFound), errors.Is(err, contacts.ErrContactNotFound):
		return http.StatusNotFound, errorCodeNotFound
	case errors.Is(err, session.ErrDuplicateSession):
		return http.StatusConflict, errorCodeConflict
	case errors.Is(err, store.ErrStoreUnavailable), errors.Is(err, session.ErrManagerClosed):
		return http.StatusServiceUnavailable, errorCodeUnavailable
	default:
		return http.StatusInternalServerError, errorCodeInternal
	}
}

func decodeJSONBody(r *http.Request, dst any) error {
	if r.Body == nil {
		return errors.New("request body is required")
	}
	decoder := json.NewDecoder(io.LimitReader(r.Body, maxRequestBodyBytes))
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return errors.New("request body is required")
		}
		return fmt.Errorf("invalid JSON body: %w", err)
	}
	if err := decoder.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		return errors.New("request body must contain exactly one JSON object")
	}
	return nil
}
