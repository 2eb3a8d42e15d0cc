package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	appErrors "github.com/unclebandit/outreach-backend/internal/errors"
)

// WriteJSON writes v with the given status.
func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// StatusFor maps a service error to its HTTP status.
func StatusFor(err error) int {
	var (
		validation  *appErrors.ErrValidationFailed
		notLaunched *appErrors.ErrNotLaunched
		launched    *appErrors.ErrAlreadyLaunched
		locked      *appErrors.ErrDraftLocked
		duplicate   *appErrors.ErrDuplicateLead
		generation  *appErrors.ErrGenerationFailed
	)
	switch {
	case errors.As(err, &validation):
		return http.StatusBadRequest
	case appErrors.IsNotFound(err):
		return http.StatusNotFound
	case errors.As(err, &notLaunched), errors.As(err, &launched),
		errors.As(err, &locked), errors.As(err, &duplicate):
		return http.StatusConflict
	case errors.As(err, &generation):
		return http.StatusBadGateway
	}
	return http.StatusInternalServerError
}

// WriteError writes err as {"error": ...}. Internal errors are logged and
// their text is not returned.
func WriteError(w http.ResponseWriter, log *zap.Logger, err error) {
	status := StatusFor(err)
	msg := err.Error()
	if status == http.StatusInternalServerError {
		if log != nil {
			log.Error("request failed", zap.Error(err))
		}
		msg = "internal error"
	}
	WriteJSON(w, status, map[string]string{"error": msg})
}

// ParseID reads a positive int64 URL parameter.
func ParseID(r *http.Request, name string) (int64, error) {
	id, err := strconv.ParseInt(chi.URLParam(r, name), 10, 64)
	if err != nil || id <= 0 {
		return 0, appErrors.NewValidationFailed(name, fmt.Sprintf("invalid id %q", chi.URLParam(r, name)))
	}
	return id, nil
}

// DecodeJSON reads the request body into v. An empty body leaves v as is.
func DecodeJSON(r *http.Request, v any) error {
	if r.Body == nil {
		return nil
	}
	if err := json.NewDecoder(r.Body).Decode(v); err != nil && !errors.Is(err, io.EOF) {
		return appErrors.NewValidationFailed("body", "invalid request body: "+err.Error())
	}
	return nil
}

// Page reads page and page_size query parameters; bad values become 0 and
// are defaulted by the service.
func Page(r *http.Request) (int, int) {
	page, _ := strconv.Atoi(r.URL.Query().Get("page"))
	pageSize, _ := strconv.Atoi(r.URL.Query().Get("page_size"))
	return page, pageSize
}
