package web

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-playground/validator/v10"
)

func RespondJSON(w http.ResponseWriter, logger *slog.Logger, status int, payload any) {
	// Handle nil payload
	if payload == nil {
		w.WriteHeader(status)
		return
	}

	response, err := json.Marshal(payload)
	if err != nil {
		logger.Error("Error encoding response to JSON", "error", err)
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(response)
}

func RespondError(w http.ResponseWriter, logger *slog.Logger, status int, message string) {
	RespondJSON(w, logger, status, map[string]string{"error": message})
}

// RespondValidationErrors writes a 400 response listing the failed rule per field.
// Returns false if err does not carry validator field errors and nothing was written.
func RespondValidationErrors(w http.ResponseWriter, logger *slog.Logger, err error) bool {
	var validationErrors validator.ValidationErrors
	if !errors.As(err, &validationErrors) {
		return false
	}
	errorResponse := make(map[string]string)
	for _, fieldErr := range validationErrors {
		// fieldErr.Tag() returns "required", "gt", etc.
		errorResponse[fieldErr.Field()] = "failed on rule: " + fieldErr.Tag()
	}
	logger.Warn("Validation errors occurred", "errors", errorResponse)
	RespondJSON(w, logger, http.StatusBadRequest, map[string]any{"validation_errors": errorResponse})
	return true
}

// ParseID extracts and validates the positive integer ID from the request path.
// Returns the ID and a boolean indicating success.
func ParseID(w http.ResponseWriter, r *http.Request, logger *slog.Logger) (int, bool) {
	pathValueID := r.PathValue("id")
	id, err := strconv.Atoi(pathValueID)
	if err != nil || id <= 0 {
		RespondError(w, logger, http.StatusBadRequest, fmt.Sprintf("Invalid ID: %s", pathValueID))
		return 0, false
	}
	return id, true
}
