// Package handlers serves the trust engine HTTP API.
package handlers

import (
	"net/http"
)

// TestHandler answers with a fixed message once admission lets the request through.
func TestHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"message": "Request successful"})
}

// HealthHandler reports liveness.
func HealthHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
