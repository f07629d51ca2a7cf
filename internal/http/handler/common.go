package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/stroyteh/kanban-service/internal/domain"
	"github.com/stroyteh/kanban-service/internal/http/middleware"
	"github.com/stroyteh/kanban-service/internal/repository"
	"github.com/stroyteh/kanban-service/internal/service"
	"go.uber.org/zap"
)

var validate = domain.NewValidator()

func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		_ = json.NewEncoder(w).Encode(data)
	}
}

// respondWithError sends {"detail": message}
func respondWithError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, domain.ErrorResponse{Detail: message})
}

// respondValidationError sends field errors as {field: [message]}
func respondValidationError(w http.ResponseWriter, verr *domain.ValidationError) {
	respondJSON(w, http.StatusBadRequest, verr.Fields)
}

// respondError maps a service error onto a status code. Unexpected errors
// are logged with the request id, which is returned as correlation_id.
func respondError(w http.ResponseWriter, r *http.Request, logger *zap.Logger, err error, action string) {
	var verr *domain.ValidationError
	switch {
	case errors.As(err, &verr):
		respondValidationError(w, verr)
	case errors.Is(err, service.ErrInvalidInput):
		respondWithError(w, http.StatusBadRequest, detail(err, service.ErrInvalidInput))
	case errors.Is(err, service.ErrNotFound):
		respondWithError(w, http.StatusNotFound, detail(err, service.ErrNotFound))
	case errors.Is(err, service.ErrUnauthorized):
		respondWithError(w, http.StatusUnauthorized, "Authentication credentials were not provided.")
	case errors.Is(err, service.ErrForbidden):
		respondWithError(w, http.StatusForbidden, "You do not have permission to perform this action.")
	case errors.Is(err, service.ErrConflict):
		respondWithError(w, http.StatusConflict, detail(err, service.ErrConflict))
	default:
		requestID := middleware.RequestID(r.Context())
		logger.Error("failed to "+action,
			zap.Error(err),
			zap.String("request_id", requestID),
			zap.String("path", r.URL.Path),
		)
		respondJSON(w, http.StatusInternalServerError, domain.ErrorResponse{
			Detail:        "internal error",
			CorrelationID: requestID,
		})
	}
}

// detail strips the sentinel prefix from a wrapped service error
func detail(err, sentinel error) string {
	msg := strings.TrimPrefix(err.Error(), sentinel.Error()+": ")
	if msg == "" {
		return sentinel.Error()
	}
	return strings.ToUpper(msg[:1]) + msg[1:] + "."
}

// decodeJSON reads and validates a request body. It writes the 400 response
// itself and returns false on failure.
func decodeJSON(w http.ResponseWriter, r *http.Request, target interface{}) bool {
	if err := json.NewDecoder(r.Body).Decode(target); err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid request body: malformed JSON")
		return false
	}
	if err := validate.Struct(target); err != nil {
		var verr *domain.ValidationError
		if errors.As(domain.FromValidatorError(err), &verr) {
			respondValidationError(w, verr)
			return false
		}
		respondWithError(w, http.StatusBadRequest, err.Error())
		return false
	}
	return true
}

// pathID parses a positive integer URL parameter
func pathID(w http.ResponseWriter, r *http.Request, name string) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, name), 10, 64)
	if err != nil || id <= 0 {
		respondWithError(w, http.StatusBadRequest, fmt.Sprintf("Invalid %s: must be a positive integer", name))
		return 0, false
	}
	return id, true
}

// queryID parses an optional positive integer query parameter
func queryID(w http.ResponseWriter, r *http.Request, name string) (*int64, bool) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return nil, true
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		respondValidationError(w, domain.NewValidationError(name, "A valid integer is required."))
		return nil, false
	}
	return &id, true
}

// pageFromQuery reads page and page_size
func pageFromQuery(r *http.Request) repository.Page {
	page, _ := strconv.Atoi(r.URL.Query().Get("page"))
	size, _ := strconv.Atoi(r.URL.Query().Get("page_size"))
	return repository.NewPage(page, size)
}

func queryBool(r *http.Request, name string) bool {
	b, _ := strconv.ParseBool(r.URL.Query().Get(name))
	return b
}
