package handler

import (
	"net/http"

	"github.com/rs/zerolog"

	"github.com/hedgeledger/engine/chain"
	"github.com/hedgeledger/engine/poolcache"
)

// SystemHandler serves liveness, readiness and chain health.
type SystemHandler struct {
	base
	cache  *poolcache.Cache
	chains *chain.Registry
}

// NewSystemHandler creates the system handler.
func NewSystemHandler(cache *poolcache.Cache, chains *chain.Registry, logger zerolog.Logger) *SystemHandler {
	return &SystemHandler{base: base{logger: logger}, cache: cache, chains: chains}
}

// Healthz is plain process liveness.
func (h *SystemHandler) Healthz(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// Ready reports whether the engine can serve premium work: the pool cache
// must be warm.
func (h *SystemHandler) Ready(w http.ResponseWriter, r *http.Request) {
	if !h.cache.IsReady() {
		respondJSON(w, http.StatusServiceUnavailable, map[string]any{
			"status": "warming",
		})
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"status":      "ready",
		"lastUpdated": h.cache.LastUpdated(),
	})
}

// Chains returns the cached per-chain health.
func (h *SystemHandler) Chains(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, h.chains.Health())
}
