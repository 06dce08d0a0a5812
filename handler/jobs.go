package handler

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/hedgeledger/engine/payments"
	"github.com/hedgeledger/engine/store"
)

// JobsHandler serves payment job inspection and the manual verify triggers.
type JobsHandler struct {
	base
	st      *store.Store
	scanner *payments.Scanner
}

// NewJobsHandler creates the jobs handler.
func NewJobsHandler(st *store.Store, scanner *payments.Scanner, logger zerolog.Logger) *JobsHandler {
	return &JobsHandler{base: base{logger: logger}, st: st, scanner: scanner}
}

// Get returns one payment job row.
func (h *JobsHandler) Get(w http.ResponseWriter, r *http.Request) {
	job, err := h.st.GetJob(r.Context(), chi.URLParam(r, "id"))
	if errors.Is(err, store.ErrJobNotFound) {
		respondError(w, http.StatusNotFound, "job not found")
		return
	}
	if err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	respondJSON(w, http.StatusOK, job)
}

// Verify runs the manual fast-track scan for one job.
func (h *JobsHandler) Verify(w http.ResponseWriter, r *http.Request) {
	jobID := chi.URLParam(r, "id")
	err := h.scanner.VerifyNow(r.Context(), jobID)
	switch {
	case errors.Is(err, payments.ErrVerifyInProgress):
		respondError(w, http.StatusConflict, "a manual verification is already running")
	case errors.Is(err, store.ErrJobNotPending):
		respondError(w, http.StatusConflict, "job is not open")
	case err != nil:
		respondError(w, http.StatusBadGateway, err.Error())
	default:
		job, err := h.st.GetJob(r.Context(), jobID)
		if err != nil {
			respondError(w, http.StatusInternalServerError, err.Error())
			return
		}
		respondJSON(w, http.StatusOK, job)
	}
}

type verifyTxRequest struct {
	TxHash string `json:"txHash"`
}

// VerifyTx checks one specific transaction hash against a job.
func (h *JobsHandler) VerifyTx(w http.ResponseWriter, r *http.Request) {
	var req verifyTxRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.TxHash == "" {
		respondError(w, http.StatusBadRequest, "body must carry txHash")
		return
	}

	job, err := h.st.GetJob(r.Context(), chi.URLParam(r, "id"))
	if errors.Is(err, store.ErrJobNotFound) {
		respondError(w, http.StatusNotFound, "job not found")
		return
	}
	if err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}

	already, err := h.scanner.VerifyTxHash(r.Context(), job, req.TxHash)
	if err != nil {
		// Validation failures surface with their specific reason.
		respondError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"jobId":            job.ID,
		"alreadyProcessed": already,
	})
}
