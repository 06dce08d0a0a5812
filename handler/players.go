package handler

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/hedgeledger/engine/store"
)

// PlayersHandler serves player and ledger inspection.
type PlayersHandler struct {
	base
	st *store.Store
}

// NewPlayersHandler creates the players handler.
func NewPlayersHandler(st *store.Store, logger zerolog.Logger) *PlayersHandler {
	return &PlayersHandler{base: base{logger: logger}, st: st}
}

// Get returns one player with their ledger row.
func (h *PlayersHandler) Get(w http.ResponseWriter, r *http.Request) {
	player, err := h.st.GetPlayerByChatID(r.Context(), chi.URLParam(r, "chatID"))
	if errors.Is(err, store.ErrPlayerNotFound) {
		respondError(w, http.StatusNotFound, "player not found")
		return
	}
	if err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}

	balance, err := h.st.GetBalance(r.Context(), player.ID)
	if err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}

	respondJSON(w, http.StatusOK, map[string]any{
		"player":  player,
		"balance": balance,
	})
}

// Snapshots returns a wallet's snapshot history.
func (h *PlayersHandler) Snapshots(w http.ResponseWriter, r *http.Request) {
	limit := 30
	if raw := r.URL.Query().Get("limit"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 && n <= 365 {
			limit = n
		}
	}
	snaps, err := h.st.ListSnapshots(r.Context(), chi.URLParam(r, "wallet"), limit)
	if err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"snapshots": snaps})
}
