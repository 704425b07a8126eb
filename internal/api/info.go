package api

import (
	"net/http"

	"go.uber.org/zap"

	"github.com/gswatch-io/gswatch/internal/repositories"
)

// InfoHandler serves the instance summary: version, invite link and the
// aggregate monitoring statistics.
type InfoHandler struct {
	servers    repositories.ServerRepository
	version    string
	inviteLink string
	logger     *zap.Logger
}

func NewInfoHandler(servers repositories.ServerRepository, version, inviteLink string, logger *zap.Logger) *InfoHandler {
	return &InfoHandler{
		servers:    servers,
		version:    version,
		inviteLink: inviteLink,
		logger:     logger,
	}
}

type infoResponse struct {
	Version    string                  `json:"version"`
	InviteLink string                  `json:"invite_link"`
	Statistics repositories.Statistics `json:"statistics"`
}

func (h *InfoHandler) Get(w http.ResponseWriter, r *http.Request) {
	stats, err := h.servers.Statistics(r.Context())
	if err != nil {
		h.logger.Error("info: load statistics", zap.Error(err))
		ErrInternal(w)
		return
	}

	Ok(w, infoResponse{
		Version:    h.version,
		InviteLink: h.inviteLink,
		Statistics: stats,
	})
}
