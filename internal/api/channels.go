package api

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/gswatch-io/gswatch/internal/repositories"
)

// ChannelHandler serves the per-channel view of monitored servers.
type ChannelHandler struct {
	servers repositories.ServerRepository
	logger  *zap.Logger
}

func NewChannelHandler(servers repositories.ServerRepository, logger *zap.Logger) *ChannelHandler {
	return &ChannelHandler{servers: servers, logger: logger}
}

// Counts returns the number of monitored rows per channel id.
func (h *ChannelHandler) Counts(w http.ResponseWriter, r *http.Request) {
	counts, err := h.servers.CountPerChannel(r.Context())
	if err != nil {
		h.logger.Error("channels: count per channel", zap.Error(err))
		ErrInternal(w)
		return
	}
	Ok(w, counts)
}

// ListByChannel returns the rows of one channel in display order, secrets
// stripped.
func (h *ChannelHandler) ListByChannel(w http.ResponseWriter, r *http.Request) {
	channelID, err := strconv.ParseInt(chi.URLParam(r, "channel_id"), 10, 64)
	if err != nil {
		ErrBadRequest(w, "invalid channel id")
		return
	}

	servers, err := h.servers.AllServers(r.Context(), repositories.ServerFilter{
		ChannelID:    channelID,
		FilterSecret: true,
	})
	if err != nil {
		h.logger.Error("channels: list by channel", zap.Int64("channel_id", channelID), zap.Error(err))
		ErrInternal(w)
		return
	}
	Ok(w, servers)
}
