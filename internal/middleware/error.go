package middleware

import (
	"encoding/json"
	"net/http"
	"time"

	"go.uber.org/zap"
)

// ErrorResponse is the envelope returned for every failed request
type ErrorResponse struct {
	Timestamp string            `json:"timestamp"`
	Status    int               `json:"status"`
	Error     string            `json:"error"`
	Message   string            `json:"message"`
	Details   []ValidationError `json:"details,omitempty"`
}

// RespondWithError sends a structured error response
func RespondWithError(w http.ResponseWriter, statusCode int, message string) {
	respond(w, statusCode, ErrorResponse{
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Status:    statusCode,
		Error:     http.StatusText(statusCode),
		Message:   message,
	})
}

// RespondWithValidationErrors sends a 400 response listing field errors
func RespondWithValidationErrors(w http.ResponseWriter, errors []ValidationError) {
	respond(w, http.StatusBadRequest, ErrorResponse{
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Status:    http.StatusBadRequest,
		Error:     http.StatusText(http.StatusBadRequest),
		Message:   "validation failed",
		Details:   errors,
	})
}

// RespondWithJSON sends a JSON response
func RespondWithJSON(w http.ResponseWriter, statusCode int, payload interface{}) {
	respond(w, statusCode, payload)
}

func respond(w http.ResponseWriter, statusCode int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(payload)
}

// ErrorHandlingMiddleware catches panics and converts them to 500 errors
func ErrorHandlingMiddleware(logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if err := recover(); err != nil {
					logger.Error("Panic recovered",
						zap.Any("error", err),
						zap.String("path", r.URL.Path),
						zap.String("method", r.Method),
					)

					RespondWithError(w, http.StatusInternalServerError, "internal server error")
				}
			}()

			next.ServeHTTP(w, r)
		})
	}
}
