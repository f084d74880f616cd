package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"mlops-pipeline/internal/state"
	"mlops-pipeline/pkg/api"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/gorilla/schema"
	"gorm.io/gorm"
)

// httpError carries the status and the client facing message of a failed
// request. The cause, if any, is only logged.
type httpError struct {
	status  int
	message string
	cause   error
}

func (e *httpError) Error() string {
	if e.cause == nil {
		return e.message
	}
	return e.message + ": " + e.cause.Error()
}

func (e *httpError) Unwrap() error {
	return e.cause
}

func badRequest(format string, args ...any) error {
	return &httpError{status: http.StatusBadRequest, message: fmt.Sprintf(format, args...)}
}

func notFound(format string, args ...any) error {
	return &httpError{status: http.StatusNotFound, message: fmt.Sprintf(format, args...)}
}

func unavailable(format string, args ...any) error {
	return &httpError{status: http.StatusServiceUnavailable, message: fmt.Sprintf(format, args...)}
}

func internalError(cause error, format string, args ...any) error {
	return &httpError{status: http.StatusInternalServerError, message: fmt.Sprintf(format, args...), cause: cause}
}

// errorResponse maps err to a status code. A missing state document or ledger
// row that reaches the handler unwrapped is a 404.
func errorResponse(err error) api.ErrorResponse {
	var herr *httpError
	switch {
	case errors.As(err, &herr):
		return api.ErrorResponse{Status: herr.status, Message: herr.message}
	case errors.Is(err, gorm.ErrRecordNotFound), errors.Is(err, state.ErrConfigMissing):
		return api.ErrorResponse{Status: http.StatusNotFound, Message: err.Error()}
	default:
		return api.ErrorResponse{Status: http.StatusInternalServerError, Message: "internal server error"}
	}
}

func jsonHandler(handler func(r *http.Request) (any, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		res, err := handler(r)
		if err != nil {
			body := errorResponse(err)
			if body.Status >= http.StatusInternalServerError {
				slog.Error("request failed", "method", r.Method, "path", r.URL.Path, "status", body.Status, "error", err)
			}
			writeJSON(w, body.Status, body)
			return
		}

		if res == nil {
			res = struct{}{}
		}
		writeJSON(w, http.StatusOK, res)
	}
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	body, err := json.Marshal(data)
	if err != nil {
		slog.Error("error serializing response body", "error", err)
		http.Error(w, "error serializing response body", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if _, err := w.Write(body); err != nil {
		slog.Error("error writing response body", "error", err)
	}
}

var queryDecoder = func() *schema.Decoder {
	d := schema.NewDecoder()
	d.IgnoreUnknownKeys(true)
	return d
}()

func decodeQuery[T any](r *http.Request) (T, error) {
	var params T
	if err := queryDecoder.Decode(&params, r.URL.Query()); err != nil {
		return params, &httpError{status: http.StatusBadRequest, message: "invalid query parameters", cause: err}
	}
	return params, nil
}

func uuidParam(r *http.Request, key string) (uuid.UUID, error) {
	raw := chi.URLParam(r, key)
	if raw == "" {
		return uuid.Nil, badRequest("missing {%s} url parameter", key)
	}

	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, badRequest("{%s} is not a valid uuid: '%s'", key, raw)
	}
	return id, nil
}
