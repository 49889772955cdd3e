package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/FairForge/multicloud-dr/internal/config"
	"github.com/FairForge/multicloud-dr/internal/ha"
	"github.com/FairForge/multicloud-dr/internal/provider"
)

const (
	defaultEventLimit = 50
	maxEventLimit     = 1000
)

type FailoverRequest struct {
	Target provider.ID `json:"target"`
	Reason string      `json:"reason,omitempty"`
}

type FailoverResponse struct {
	Switched bool           `json:"switched"`
	Active   ha.ActiveState `json:"active"`
}

type SimulateRequest struct {
	Scenario string `json:"scenario"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":          "healthy",
		"active_provider": s.failover.ActiveProvider().Current,
		"uptime":          time.Since(s.startTime).Seconds(),
	})
}

func (s *Server) handleActive(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.failover.ActiveProvider())
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.failover.Status())
}

func (s *Server) handleScores(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.failover.Scores())
}

func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	limit := defaultEventLimit
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			writeError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = min(n, maxEventLimit)
	}

	events, err := s.failover.RecentFailoverEvents(r.Context(), limit)
	if err != nil {
		s.logger.Error("failed to read failover events", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to read events")
		return
	}
	writeJSON(w, http.StatusOK, events)
}

func (s *Server) handleManualFailover(w http.ResponseWriter, r *http.Request) {
	var req FailoverRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request")
		return
	}
	if req.Target == "" {
		writeError(w, http.StatusBadRequest, "target is required")
		return
	}

	switched, err := s.failover.ManualFailover(r.Context(), req.Target, req.Reason)
	if err != nil {
		var cerr *config.ConfigError
		if errors.As(err, &cerr) {
			writeError(w, http.StatusBadRequest, cerr.Error())
			return
		}
		s.logger.Error("manual failover failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failover failed")
		return
	}

	writeJSON(w, http.StatusOK, FailoverResponse{Switched: switched, Active: s.failover.ActiveProvider()})
}

func (s *Server) handleCheck(w http.ResponseWriter, r *http.Request) {
	switched, err := s.failover.CheckAndFailover(r.Context())
	if errors.Is(err, ha.ErrNoEligibleTarget) {
		writeError(w, http.StatusConflict, err.Error())
		return
	}
	if err != nil {
		s.logger.Error("failover check failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failover check failed")
		return
	}

	writeJSON(w, http.StatusOK, FailoverResponse{Switched: switched, Active: s.failover.ActiveProvider()})
}

func (s *Server) handleSimulate(w http.ResponseWriter, r *http.Request) {
	var req SimulateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request")
		return
	}

	scenario, err := ha.ParseScenario(req.Scenario)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	// a missing failover target is reported in the result, not as an HTTP error
	result, err := s.simulator.Execute(r.Context(), scenario)
	if err != nil && !errors.Is(err, ha.ErrNoEligibleTarget) {
		s.logger.Error("simulation failed", zap.String("scenario", req.Scenario), zap.Error(err))
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (s *Server) handleSimulations(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.simulator.GenerateReport())
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
