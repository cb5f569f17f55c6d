package handler

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"profilevault/internal/domain"
)

type errorResponse struct {
	Code  string `json:"code"`
	Error string `json:"error"`

	// Заполняется только для превышения квоты
	Quota *domain.QuotaExceededError `json:"quota,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if body != nil {
		if err := json.NewEncoder(w).Encode(body); err != nil {
			log.Printf("[Handler] failed to encode response: %v", err)
		}
	}
}

// writeError переводит символические ошибки подсистемы в HTTP-статусы.
func writeError(w http.ResponseWriter, err error) {
	var quotaErr *domain.QuotaExceededError
	if errors.As(err, &quotaErr) {
		writeJSON(w, http.StatusConflict, errorResponse{
			Code:  "STORAGE_QUOTA_EXCEEDED",
			Error: quotaErr.Error(),
			Quota: quotaErr,
		})
		return
	}

	var (
		status int
		code   string
	)
	switch {
	case errors.Is(err, domain.ErrProfileNotFound):
		status, code = http.StatusNotFound, "PROFILE_NOT_FOUND"
	case errors.Is(err, domain.ErrSectionNotFound):
		status, code = http.StatusNotFound, "SECTION_NOT_FOUND"
	case errors.Is(err, domain.ErrUserNotFound):
		status, code = http.StatusNotFound, "USER_NOT_FOUND"
	case errors.Is(err, domain.ErrNoFiles):
		status, code = http.StatusBadRequest, "NO_FILES"
	case errors.Is(err, domain.ErrEmptyInput):
		status, code = http.StatusBadRequest, "EMPTY_INPUT"
	case errors.Is(err, domain.ErrInvalidImageType):
		status, code = http.StatusBadRequest, "INVALID_IMAGE_TYPE"
	case errors.Is(err, domain.ErrEmptyFile):
		status, code = http.StatusBadRequest, "EMPTY_FILE"
	case errors.Is(err, domain.ErrSectionLimitExceeded):
		status, code = http.StatusConflict, "SECTION_LIMIT_EXCEEDED"
	case errors.Is(err, domain.ErrAccessDenied):
		status, code = http.StatusForbidden, "ACCESS_DENIED"
	default:
		status, code = http.StatusInternalServerError, "INTERNAL_ERROR"
	}

	writeJSON(w, status, errorResponse{Code: code, Error: err.Error()})
}
