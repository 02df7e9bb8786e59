package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"leadgen/logging"
	"leadgen/merger"
	"leadgen/orchestrator"
	"leadgen/plan"
	"leadgen/repository"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

const (
	defaultCampaignLimit = 20
	maxPlanBytes         = 1 << 20
)

type StorageStatus struct {
	Backend string `json:"backend"`
	Online  bool   `json:"online"`
}

type StartResponse struct {
	Status   string                `json:"status"`
	Estimate orchestrator.Estimate `json:"estimate"`
}

type RunStatus struct {
	Running bool                 `json:"running"`
	Stage   orchestrator.Stage   `json:"stage"`
	Last    *orchestrator.Report `json:"last,omitempty"`
	Error   string               `json:"error,omitempty"`
}

type errorResponse struct {
	Error string `json:"error"`
}

func (s *Server) storageStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, StorageStatus{
		Backend: s.backend,
		Online:  s.runner.StorageOnline(r.Context()),
	})
}

func (s *Server) stats(w http.ResponseWriter, r *http.Request) {
	if s.store == nil {
		writeError(w, http.StatusServiceUnavailable, repository.ErrStoreOffline)
		return
	}
	st, err := s.store.Stats(r.Context())
	if err != nil {
		s.storeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, st)
}

func (s *Server) listCampaigns(w http.ResponseWriter, r *http.Request) {
	if s.store == nil {
		writeError(w, http.StatusServiceUnavailable, repository.ErrStoreOffline)
		return
	}

	limit := defaultCampaignLimit
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			writeError(w, http.StatusBadRequest, fmt.Errorf("invalid limit %q", v))
			return
		}
		limit = n
	}

	campaigns, err := s.store.ListCampaigns(r.Context(), limit)
	if err != nil {
		s.storeError(w, r, err)
		return
	}
	if campaigns == nil {
		campaigns = []repository.Campaign{}
	}
	writeJSON(w, http.StatusOK, campaigns)
}

func (s *Server) campaignResults(w http.ResponseWriter, r *http.Request) {
	if s.store == nil {
		writeError(w, http.StatusServiceUnavailable, repository.ErrStoreOffline)
		return
	}

	id := chi.URLParam(r, "id")
	records, err := s.store.GetResults(r.Context(), id, 0)
	if err != nil {
		s.storeError(w, r, err)
		return
	}

	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", id+".csv"))
	if err := merger.WriteCSV(w, records); err != nil {
		logging.FromContext(r.Context(), s.logger).Error("Failed to write results CSV", zap.Error(err))
	}
}

func (s *Server) startCampaign(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxPlanBytes))
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	p, err := plan.Parse(body)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	if err := s.tryStart(p, logging.RequestID(r.Context())); err != nil {
		writeError(w, http.StatusConflict, err)
		return
	}
	writeJSON(w, http.StatusAccepted, StartResponse{
		Status:   "accepted",
		Estimate: orchestrator.EstimateCalls(p),
	})
}

func (s *Server) currentRun(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	status := RunStatus{
		Running: s.running,
		Stage:   s.runner.Stage(),
		Last:    s.last,
	}
	if s.lastErr != nil {
		status.Error = s.lastErr.Error()
	}
	s.mu.Unlock()
	writeJSON(w, http.StatusOK, status)
}

func (s *Server) storeError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, repository.ErrCampaignNotFound):
		writeError(w, http.StatusNotFound, err)
	case errors.Is(err, repository.ErrStoreOffline):
		writeError(w, http.StatusServiceUnavailable, err)
	default:
		logging.FromContext(r.Context(), s.logger).Error("Campaign store error", zap.Error(err))
		writeError(w, http.StatusInternalServerError, err)
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, errorResponse{Error: err.Error()})
}
