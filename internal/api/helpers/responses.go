package helpers

import (
	"encoding/json"
	"log/slog"
	"net/http"
)

// RespondJSON writes a JSON response with the given status code.
func RespondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		slog.Error("Failed to encode JSON response", "error", err)
	}
}

// RespondError writes an error response in the detail envelope.
func RespondError(w http.ResponseWriter, status int, message string) {
	RespondJSON(w, status, map[string]string{
		"detail": message,
	})
}

// RespondFieldErrors writes per-field validation or conflict errors in the
// detail envelope.
func RespondFieldErrors(w http.ResponseWriter, status int, fields map[string]string) {
	RespondJSON(w, status, map[string]any{
		"detail": fields,
	})
}
