package handler

import (
	"net/http"

	"github.com/rs/zerolog/log"

	"github.com/saharat-dev/coffee-shop-backend/internal/stats"
)

type StatsHandler struct {
	svc stats.Service
}

func NewStatsHandler(svc stats.Service) *StatsHandler {
	return &StatsHandler{svc: svc}
}

func (h *StatsHandler) Dashboard(w http.ResponseWriter, r *http.Request) {
	dashboard, err := h.svc.Dashboard(r.Context())
	if err != nil {
		log.Error().Err(err).Msg("handler: failed to build dashboard")
		respondWithError(w, http.StatusInternalServerError, "Internal server error.")
		return
	}

	respondWithJSON(w, http.StatusOK, dashboard)
}
