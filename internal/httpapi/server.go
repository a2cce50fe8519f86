// Package httpapi serves a read-only JSON view of the synced data: the
// instrument universe, daily bars, computed indicators, and the latest
// pass summaries. Writes happen only through the gatherers.
package httpapi

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"sort"
	"sync"

	"github.com/wateryu2030/newhigh-zh/internal/gather"
	"github.com/wateryu2030/newhigh-zh/internal/store"
	"github.com/wateryu2030/newhigh-zh/internal/util"
)

// Server serves the query API over a storage backend.
type Server struct {
	db  store.DB
	log *slog.Logger

	mu     sync.Mutex
	passes map[string]*gather.Summary // latest summary per gatherer
}

// NewServer creates the API server over db.
func NewServer(db store.DB, log *slog.Logger) *Server {
	return &Server{
		db:     db,
		log:    log.With("component", "httpapi"),
		passes: make(map[string]*gather.Summary),
	}
}

// Record stores the latest summary for its gatherer, replacing the
// previous one.
func (s *Server) Record(sum *gather.Summary) {
	if sum == nil {
		return
	}
	s.mu.Lock()
	s.passes[sum.Gatherer] = sum
	s.mu.Unlock()
}

// RegisterRoutes registers all API routes on the given mux.
func (s *Server) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/instruments", s.handleInstruments)
	mux.HandleFunc("GET /api/bars/{code}", s.handleBars)
	mux.HandleFunc("GET /api/indicators/{code}", s.handleIndicators)
	mux.HandleFunc("GET /api/summary", s.handleSummary)
	mux.HandleFunc("GET /healthz", s.handleHealth)
}

// Handler returns the complete HTTP handler with CORS headers applied.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	s.RegisterRoutes(mux)
	return corsMiddleware(mux)
}

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, code int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(ErrorResponse{Error: msg})
}

// dateRange extracts and validates the start/end query parameters,
// defaulting to an open range.
func dateRange(r *http.Request) (start, end string, ok bool) {
	start = r.URL.Query().Get("start")
	end = r.URL.Query().Get("end")
	if start == "" {
		start = "1990-01-01"
	}
	if end == "" {
		end = "2999-12-31"
	}
	if !util.ValidDate(start) || !util.ValidDate(end) || start > end {
		return "", "", false
	}
	return start, end, true
}

func (s *Server) handleInstruments(w http.ResponseWriter, r *http.Request) {
	recs, err := s.db.QueryInstruments(r.Context())
	if err != nil {
		s.log.Error("query instruments", "error", err)
		writeError(w, http.StatusInternalServerError, "query failed")
		return
	}
	writeJSON(w, InstrumentsResponse{Count: len(recs), Instruments: recs})
}

func (s *Server) handleBars(w http.ResponseWriter, r *http.Request) {
	code := r.PathValue("code")
	start, end, ok := dateRange(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid date range")
		return
	}
	bars, err := s.db.QueryBars(r.Context(), code, start, end)
	if err != nil {
		s.log.Error("query bars", "code", code, "error", err)
		writeError(w, http.StatusInternalServerError, "query failed")
		return
	}
	writeJSON(w, BarsResponse{Code: code, Start: start, End: end, Count: len(bars), Bars: bars})
}

func (s *Server) handleIndicators(w http.ResponseWriter, r *http.Request) {
	code := r.PathValue("code")
	start, end, ok := dateRange(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid date range")
		return
	}
	rows, err := s.db.QueryIndicators(r.Context(), code, start, end)
	if err != nil {
		s.log.Error("query indicators", "code", code, "error", err)
		writeError(w, http.StatusInternalServerError, "query failed")
		return
	}
	writeJSON(w, IndicatorsResponse{Code: code, Start: start, End: end, Count: len(rows), Indicators: rows})
}

func (s *Server) handleSummary(w http.ResponseWriter, _ *http.Request) {
	s.mu.Lock()
	passes := make([]*gather.Summary, 0, len(s.passes))
	for _, p := range s.passes {
		passes = append(passes, p)
	}
	s.mu.Unlock()
	sort.Slice(passes, func(i, j int) bool { return passes[i].Gatherer < passes[j].Gatherer })
	writeJSON(w, SummaryResponse{Passes: passes})
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("ok"))
}
