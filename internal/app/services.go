package app

import (
	"github.com/gamescout/gamescout-backend/internal/pkg/logger"
	"github.com/gamescout/gamescout-backend/internal/services"
)

type Services struct {
	Embedding   services.EmbeddingService
	Ingestion   services.IngestionService
	Similarity  services.SimilarityService
	Suggestions services.SuggestionService
	AutoIngest  services.AutoIngestService
}

func wireServices(log *logger.Logger, reposet Repos, clients Clients) Services {
	log.Info("Wiring services...")

	var locks services.LockManager
	if clients.Locks != nil {
		locks = clients.Locks
	} else {
		locks = services.NewMemoryLockManager(log)
	}

	embedding := services.NewEmbeddingService(clients.Openai, reposet.Games, log)
	ingestion := services.NewIngestionService(clients.Steam, reposet.Games, locks, embedding, log)
	similarity := services.NewSimilarityService(reposet.Games, log)
	suggestions := services.NewSuggestionService(clients.Openai, clients.Steam, reposet.Games, log)
	autoIngest := services.NewAutoIngestService(ingestion, suggestions, log)

	return Services{
		Embedding:   embedding,
		Ingestion:   ingestion,
		Similarity:  similarity,
		Suggestions: suggestions,
		AutoIngest:  autoIngest,
	}
}
