// Package handler carries the engine's operational HTTP surface: health,
// cache inspection, job inspection and the manual verification triggers.
// This is an operator API, not the player-facing chat surface.
package handler

import (
	"encoding/json"
	"net/http"

	"github.com/rs/zerolog"
)

func respondJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func respondError(w http.ResponseWriter, status int, msg string) {
	respondJSON(w, status, map[string]string{"error": msg})
}

type base struct {
	logger zerolog.Logger
}
