package api

import (
	"net/http"

	"go.uber.org/zap"

	"github.com/gswatch-io/gswatch/internal/catalog"
)

// GameHandler serves the supported-game catalog.
type GameHandler struct {
	games  *catalog.Catalog
	logger *zap.Logger
}

func NewGameHandler(games *catalog.Catalog, logger *zap.Logger) *GameHandler {
	return &GameHandler{games: games, logger: logger}
}

// List returns every supported game in catalog file order.
func (h *GameHandler) List(w http.ResponseWriter, _ *http.Request) {
	Ok(w, h.games.All())
}
