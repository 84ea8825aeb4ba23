package server

import (
	"encoding/json"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"perfwatch.sh/internal/compression"
	"perfwatch.sh/internal/metrics"
)

type recordRequest struct {
	Subject     string  `json:"subject"`
	DurationMs  float64 `json:"duration_ms"`
	Fingerprint string  `json:"fingerprint"`
}

func (s *Server) handleRecord(w http.ResponseWriter, r *http.Request) {
	var req recordRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if req.Subject == "" {
		http.Error(w, "subject is required", http.StatusBadRequest)
		return
	}

	s.collector.Record(req.Subject, req.DurationMs, req.Fingerprint)

	metrics.SamplesIngestedTotal.Inc()
	if req.DurationMs > s.collector.AnomalyThreshold() {
		metrics.SamplesAnomalousTotal.Inc()
	}
	w.WriteHeader(http.StatusAccepted)
}

func (s *Server) handleQuery(w http.ResponseWriter, r *http.Request) {
	samples := s.collector.Query(r.URL.Query().Get("subject"))
	s.writeJSON(w, samples)
}

func (s *Server) handleInsights(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, s.collector.Insights())
}

func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	data, err := s.collector.Export()
	if err != nil {
		s.logger.Error("snapshot export failed", zap.Error(err))
		http.Error(w, "export failed", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	for _, coding := range []string{"zstd", "gzip"} {
		if !acceptsEncoding(r, coding) {
			continue
		}
		codec, err := compression.ForEncoding(coding)
		if err != nil {
			continue
		}
		compressed, err := codec.Compress(data)
		if err != nil {
			s.logger.Warn("snapshot compression failed, sending identity", zap.Error(err))
			break
		}
		w.Header().Set("Content-Encoding", codec.Encoding())
		data = compressed
		break
	}
	w.Write(data)
}

func (s *Server) handleClear(w http.ResponseWriter, r *http.Request) {
	s.collector.Clear()
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleOptimize(w http.ResponseWriter, r *http.Request) {
	s.collector.OptimizeMemory()
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, map[string]string{
		"status":     "ok",
		"session_id": s.collector.SessionID(),
	})
}

func (s *Server) writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Error("response encoding failed", zap.Error(err))
	}
}

// acceptsEncoding reports whether the request allows a content coding.
// A coding listed with q=0 is an explicit refusal.
func acceptsEncoding(r *http.Request, coding string) bool {
	for _, part := range strings.Split(r.Header.Get("Accept-Encoding"), ",") {
		name, params, _ := strings.Cut(part, ";")
		if strings.TrimSpace(name) != coding {
			continue
		}
		q := strings.TrimSpace(params)
		if strings.HasPrefix(q, "q=") && refusedQValue(q[2:]) {
			return false
		}
		return true
	}
	return false
}

func refusedQValue(v string) bool {
	switch strings.TrimSpace(v) {
	case "0", "0.", "0.0", "0.00", "0.000":
		return true
	}
	return false
}
