package http

import (
	"encoding/json"
	"errors"
	"net/http"

	"go.uber.org/zap"

	"speaking-assessment-service/internal/app"
	"speaking-assessment-service/internal/domain"
)

// ResultsHandler exposes the aggregator side of result reporting and ranking.
type ResultsHandler struct {
	service *app.SessionService
	log     *zap.Logger
}

func NewResultsHandler(service *app.SessionService, log *zap.Logger) *ResultsHandler {
	if log == nil {
		log = zap.NewNop()
	}
	return &ResultsHandler{service: service, log: log}
}

// Register mounts the handlers on mux.
func (h *ResultsHandler) Register(mux *http.ServeMux) {
	mux.HandleFunc("POST /results", h.submit)
	mux.HandleFunc("GET /results", h.list)
	mux.HandleFunc("GET /ranking", h.ranking)
}

func (h *ResultsHandler) submit(w http.ResponseWriter, r *http.Request) {
	var submission domain.ResultSubmission
	if err := json.NewDecoder(r.Body).Decode(&submission); err != nil {
		http.Error(w, "invalid submission", http.StatusBadRequest)
		return
	}
	if err := h.service.RecordResult(r.Context(), submission); err != nil {
		if errors.Is(err, domain.ErrInvalidSubmission) {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		h.log.Error("record result", zap.String("session_id", submission.SessionID), zap.Error(err))
		http.Error(w, "failed to record result", http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *ResultsHandler) list(w http.ResponseWriter, r *http.Request) {
	sessionID := r.URL.Query().Get("sessionId")
	if sessionID == "" {
		http.Error(w, "missing sessionId", http.StatusBadRequest)
		return
	}
	results, err := h.service.Results(r.Context(), sessionID)
	if err != nil {
		h.log.Error("load results", zap.String("session_id", sessionID), zap.Error(err))
		http.Error(w, "failed to load results", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, results)
}

func (h *ResultsHandler) ranking(w http.ResponseWriter, r *http.Request) {
	sessionID, name := r.URL.Query().Get("sessionId"), r.URL.Query().Get("name")
	if sessionID == "" || name == "" {
		http.Error(w, "missing sessionId or name", http.StatusBadRequest)
		return
	}
	snap, err := h.service.Ranking(r.Context(), sessionID, name)
	switch {
	case errors.Is(err, domain.ErrRankingGateClosed):
		http.Error(w, err.Error(), http.StatusConflict)
	case errors.Is(err, domain.ErrStudentNotRanked):
		http.Error(w, err.Error(), http.StatusNotFound)
	case err != nil:
		h.log.Error("resolve ranking", zap.String("session_id", sessionID), zap.Error(err))
		http.Error(w, "failed to resolve ranking", http.StatusInternalServerError)
	default:
		writeJSON(w, http.StatusOK, snap)
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
