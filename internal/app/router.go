package app

import (
	"github.com/gin-gonic/gin"

	"github.com/gamescout/gamescout-backend/internal/server"
)

func wireRouter(cfg Config, handlerset Handlers) *gin.Engine {
	return server.NewRouter(server.RouterConfig{
		ServiceName:       "gamescout",
		AllowedOrigins:    cfg.AllowedOrigins,
		GameHandler:       handlerset.Game,
		SuggestionHandler: handlerset.Suggestion,
		SimilarityHandler: handlerset.Similarity,
	})
}
