package middleware

import (
	"encoding/json"
	"net/http"
)

// writeJSONError emits a minimal JSON error body. Middleware rejections never
// reuse the handler envelope helpers to avoid an import cycle.
func writeJSONError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": msg})
}
