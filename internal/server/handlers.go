package server

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	json "github.com/goccy/go-json"

	"bingx-relay/internal/core"
)

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{
		"status":   "ok",
		"exchange": s.ex.Name(),
	})
}

func (s *Server) handleBalance(w http.ResponseWriter, r *http.Request) {
	raw, err := s.ex.AccountBalance(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeRaw(w, http.StatusOK, raw)
}

func (s *Server) handlePositions(w http.ResponseWriter, r *http.Request) {
	raw, err := s.ex.OpenPositions(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeRaw(w, http.StatusOK, raw)
}

func (s *Server) handlePrice(w http.ResponseWriter, r *http.Request) {
	symbol := core.NormalizeSymbol(chi.URLParam(r, "symbol"))
	raw, err := s.ex.GetPrice(r.Context(), core.SymbolParams{Symbol: symbol})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeRaw(w, http.StatusOK, raw)
}

// handleTrade answers null when the price has not moved.
func (s *Server) handleTrade(w http.ResponseWriter, r *http.Request) {
	res, err := s.trigger.Run(r.Context(), chi.URLParam(r, "symbol"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if res == nil {
		s.writeRaw(w, http.StatusOK, nil)
		return
	}
	s.writeRaw(w, http.StatusOK, res.Order)
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		s.log.Error().Err(err).Msg("Failed to encode JSON response")
	}
}

// writeRaw passes an exchange payload through byte for byte.
func (s *Server) writeRaw(w http.ResponseWriter, status int, raw json.RawMessage) {
	if len(raw) == 0 {
		raw = json.RawMessage("null")
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if _, err := w.Write(raw); err != nil {
		s.log.Error().Err(err).Msg("Failed to write response")
	}
}
