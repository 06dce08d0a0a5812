package handler

import (
	"errors"
	"net/http"

	"github.com/rs/zerolog"

	"github.com/hedgeledger/engine/store"
)

// PricingHandler serves the stored pricing configuration.
type PricingHandler struct {
	base
	st *store.Store
}

// NewPricingHandler creates the pricing handler.
func NewPricingHandler(st *store.Store, logger zerolog.Logger) *PricingHandler {
	return &PricingHandler{base: base{logger: logger}, st: st}
}

// Get returns both pricing rows; a missing row reports as unset rather than
// erroring, since the engine runs on defaults until rows exist.
func (h *PricingHandler) Get(w http.ResponseWriter, r *http.Request) {
	out := make(map[string]any, 2)
	for _, key := range []string{store.PricingBaseRates, store.PricingModifiers} {
		row, err := h.st.GetPricingConfig(r.Context(), key)
		if errors.Is(err, store.ErrConfigNotFound) {
			out[key] = nil
			continue
		}
		if err != nil {
			respondError(w, http.StatusInternalServerError, err.Error())
			return
		}
		out[key] = row
	}
	respondJSON(w, http.StatusOK, out)
}
