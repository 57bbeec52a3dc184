package server

import (
	"encoding/json"
	"net/http"

	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/mem"
)

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

// healthResponse reports process liveness plus coarse host resource use, so
// an operator can tell "up" from "up but starved."
type healthResponse struct {
	Status      string  `json:"status"`
	CPUPercent  float64 `json:"cpu_percent"`
	MemPercent  float64 `json:"mem_percent"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	resp := healthResponse{Status: "ok"}

	if pct, err := cpu.PercentWithContext(r.Context(), 0, false); err == nil && len(pct) > 0 {
		resp.CPUPercent = pct[0]
	}
	if vm, err := mem.VirtualMemoryWithContext(r.Context()); err == nil {
		resp.MemPercent = vm.UsedPercent
	}

	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleSnapshot(w http.ResponseWriter, r *http.Request) {
	if s.deps.Snapshot == nil {
		writeError(w, http.StatusNotImplemented, errNotWired("snapshot"))
		return
	}
	writeJSON(w, http.StatusOK, s.deps.Snapshot())
}

func (s *Server) handleJournalStats(w http.ResponseWriter, r *http.Request) {
	if s.deps.JournalStats == nil {
		writeError(w, http.StatusNotImplemented, errNotWired("journal stats"))
		return
	}
	stats, err := s.deps.JournalStats()
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

func (s *Server) handleJournalExport(w http.ResponseWriter, r *http.Request) {
	if s.deps.ExportJournal == nil {
		writeError(w, http.StatusNotImplemented, errNotWired("journal export"))
		return
	}
	key, err := s.deps.ExportJournal(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"key": key})
}

func (s *Server) handleLatestDecisions(w http.ResponseWriter, r *http.Request) {
	if s.deps.LatestDecisions == nil {
		writeError(w, http.StatusNotImplemented, errNotWired("latest decisions"))
		return
	}
	writeJSON(w, http.StatusOK, s.deps.LatestDecisions())
}

type setModelRequest struct {
	Model string `json:"model"`
}

func (s *Server) handleSetModel(w http.ResponseWriter, r *http.Request) {
	if s.deps.Models == nil {
		writeError(w, http.StatusNotImplemented, errNotWired("model override"))
		return
	}
	var req setModelRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if req.Model == "" {
		writeError(w, http.StatusBadRequest, errEmptyModel)
		return
	}
	s.deps.Models.Set(req.Model)
	writeJSON(w, http.StatusOK, map[string]string{"model": req.Model})
}
