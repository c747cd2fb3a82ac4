package middleware

import (
	"encoding/json"
	"net/http"
)

// writeJSONError writes the API error envelope for responses produced by
// middleware, which cannot depend on the api package.
func writeJSONError(w http.ResponseWriter, status int, code, message string) {
	if rec, ok := w.(errorCodeRecorder); ok {
		rec.recordErrorCode(code)
	}
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]map[string]string{
		"error": {"code": code, "message": message},
	})
}
