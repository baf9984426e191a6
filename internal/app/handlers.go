package app

import (
	"github.com/gamescout/gamescout-backend/internal/handlers"
	"github.com/gamescout/gamescout-backend/internal/pkg/logger"
)

type Handlers struct {
	Game       *handlers.GameHandler
	Suggestion *handlers.SuggestionHandler
	Similarity *handlers.SimilarityHandler
}

func wireHandlers(log *logger.Logger, serviceset Services) Handlers {
	log.Info("Wiring handlers...")
	return Handlers{
		Game:       handlers.NewGameHandler(log, serviceset.Ingestion),
		Suggestion: handlers.NewSuggestionHandler(log, serviceset.Suggestions, serviceset.AutoIngest),
		Similarity: handlers.NewSimilarityHandler(log, serviceset.Similarity),
	}
}
