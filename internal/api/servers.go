package api

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/gswatch-io/gswatch/internal/db"
	"github.com/gswatch-io/gswatch/internal/repositories"
)

// ServerHandler serves monitored-server rows and their metric samples.
// Every row passes through the secret filter before leaving the process.
type ServerHandler struct {
	servers       repositories.ServerRepository
	metrics       repositories.MetricRepository
	metricsEnable bool
	logger        *zap.Logger
}

func NewServerHandler(servers repositories.ServerRepository, metrics repositories.MetricRepository, metricsEnable bool, logger *zap.Logger) *ServerHandler {
	return &ServerHandler{
		servers:       servers,
		metrics:       metrics,
		metricsEnable: metricsEnable,
		logger:        logger,
	}
}

// Counts returns the number of monitored rows per game id.
func (h *ServerHandler) Counts(w http.ResponseWriter, r *http.Request) {
	counts, err := h.servers.CountPerGame(r.Context())
	if err != nil {
		h.logger.Error("servers: count per game", zap.Error(err))
		ErrInternal(w)
		return
	}
	Ok(w, counts)
}

// ListByGame returns the rows monitoring the given game, secrets stripped.
func (h *ServerHandler) ListByGame(w http.ResponseWriter, r *http.Request) {
	gameID := chi.URLParam(r, "game_id")

	servers, err := h.servers.AllServers(r.Context(), repositories.ServerFilter{
		GameID:       gameID,
		FilterSecret: true,
	})
	if err != nil {
		h.logger.Error("servers: list by game", zap.String("game_id", gameID), zap.Error(err))
		ErrInternal(w)
		return
	}
	Ok(w, servers)
}

// Samples returns the metric ring of one endpoint, oldest first. Endpoints
// with a non-empty query_extra select their ring via the optional
// query_extra URL parameter, a JSON object matching the stored tuple.
func (h *ServerHandler) Samples(w http.ResponseWriter, r *http.Request) {
	if !h.metricsEnable {
		ErrNotFound(w)
		return
	}

	gameID := chi.URLParam(r, "game_id")
	address := chi.URLParam(r, "address")
	queryPort, err := strconv.Atoi(chi.URLParam(r, "query_port"))
	if err != nil {
		ErrBadRequest(w, "invalid query port")
		return
	}

	queryExtra := db.JSONMap{}
	if raw := r.URL.Query().Get("query_extra"); raw != "" {
		if err := json.Unmarshal([]byte(raw), &queryExtra); err != nil {
			ErrBadRequest(w, "invalid query extra")
			return
		}
	}

	samples, err := h.metrics.Samples(r.Context(), gameID, address, queryPort, queryExtra)
	if err != nil {
		h.logger.Error("servers: load samples",
			zap.String("game_id", gameID),
			zap.String("address", address),
			zap.Int("query_port", queryPort),
			zap.Error(err))
		ErrInternal(w)
		return
	}
	Ok(w, samples)
}
