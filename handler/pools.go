package handler

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/hedgeledger/engine/poolcache"
)

// PoolsHandler serves the pool cache inspection routes.
type PoolsHandler struct {
	base
	cache *poolcache.Cache
}

// NewPoolsHandler creates the pools handler.
func NewPoolsHandler(cache *poolcache.Cache, logger zerolog.Logger) *PoolsHandler {
	return &PoolsHandler{base: base{logger: logger}, cache: cache}
}

// List returns the full pool snapshot.
func (h *PoolsHandler) List(w http.ResponseWriter, r *http.Request) {
	pools, err := h.cache.GetAll()
	if errors.Is(err, poolcache.ErrNotReady) {
		respondError(w, http.StatusServiceUnavailable, "pool cache not ready")
		return
	}
	if err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"lastUpdated": h.cache.LastUpdated(),
		"pools":       pools,
	})
}

// Search matches pools by pair name.
func (h *PoolsHandler) Search(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query().Get("q")
	if q == "" {
		respondError(w, http.StatusBadRequest, "missing query parameter q")
		return
	}
	pools, err := h.cache.Search(q)
	if errors.Is(err, poolcache.ErrNotReady) {
		respondError(w, http.StatusServiceUnavailable, "pool cache not ready")
		return
	}
	if err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"pools": pools})
}

// Get returns one pool by chain and pid.
func (h *PoolsHandler) Get(w http.ResponseWriter, r *http.Request) {
	pid, err := strconv.ParseUint(chi.URLParam(r, "pid"), 10, 64)
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid pid")
		return
	}
	pool, err := h.cache.Get(chi.URLParam(r, "chain"), pid)
	if errors.Is(err, poolcache.ErrNotReady) {
		respondError(w, http.StatusServiceUnavailable, "pool cache not ready")
		return
	}
	if err != nil {
		respondError(w, http.StatusNotFound, err.Error())
		return
	}
	respondJSON(w, http.StatusOK, pool)
}
