package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/pgvector/pgvector-go"

	"github.com/gamescout/gamescout-backend/internal/data/repos/games"
	"github.com/gamescout/gamescout-backend/internal/domain"
	apperrors "github.com/gamescout/gamescout-backend/internal/pkg/errors"
	"github.com/gamescout/gamescout-backend/internal/pkg/logger"
)

// EmbeddingProvider is the slice of the model client the embedder needs.
type EmbeddingProvider interface {
	Embed(ctx context.Context, inputs []string) ([][]float32, error)
}

type EmbeddingService interface {
	// EmbedFacet recomputes one facet for one game. Empty extracted text
	// records a no-signal state instead of a vector. A provider failure
	// leaves whatever was stored before untouched.
	EmbedFacet(ctx context.Context, game *domain.Game, facet domain.Facet) error
	// EmbedAll runs every facet, isolating failures per facet.
	EmbedAll(ctx context.Context, game *domain.Game) error
	// NeedsRecompute reports whether a facet is stale: never computed, or
	// computed under an older extraction rule revision.
	NeedsRecompute(game *domain.Game, facet domain.Facet) bool
}

type embeddingService struct {
	provider EmbeddingProvider
	gameRepo games.GameRepo
	log      *logger.Logger
}

func NewEmbeddingService(provider EmbeddingProvider, gameRepo games.GameRepo, baseLog *logger.Logger) EmbeddingService {
	return &embeddingService{
		provider: provider,
		gameRepo: gameRepo,
		log:      baseLog.With("service", "EmbeddingService"),
	}
}

func (s *embeddingService) EmbedFacet(ctx context.Context, game *domain.Game, facet domain.Facet) error {
	if game == nil || game.AppID == 0 {
		return apperrors.ErrInvalidArgument
	}
	if !facet.Valid() {
		return fmt.Errorf("%w: facet %q", apperrors.ErrInvalidArgument, facet)
	}

	state := domain.FacetState{
		RuleVersion: facet.RuleVersion(),
		UpdatedAt:   time.Now().UTC(),
	}

	text := facet.ExtractText(game)
	if text == "" {
		state.State = domain.FacetStateNoSignal
		return s.gameRepo.UpdateFacetEmbedding(ctx, nil, game.AppID, facet, nil, state)
	}

	vecs, err := s.provider.Embed(ctx, []string{text})
	if err != nil {
		s.log.Warn("Facet embedding failed, keeping prior vector",
			"app_id", game.AppID, "facet", string(facet), "error", err)
		return fmt.Errorf("embed facet %s for app %d: %w", facet, game.AppID, err)
	}
	if len(vecs) != 1 || len(vecs[0]) != domain.EmbeddingDim {
		return fmt.Errorf("%w: expected 1 vector of dim %d", apperrors.ErrMalformedResponse, domain.EmbeddingDim)
	}

	vec := pgvector.NewVector(vecs[0])
	state.State = domain.FacetStateComputed
	return s.gameRepo.UpdateFacetEmbedding(ctx, nil, game.AppID, facet, &vec, state)
}

func (s *embeddingService) EmbedAll(ctx context.Context, game *domain.Game) error {
	if game == nil {
		return apperrors.ErrInvalidArgument
	}
	var errs []error
	for _, facet := range domain.AllFacets() {
		if err := ctx.Err(); err != nil {
			errs = append(errs, err)
			break
		}
		if err := s.EmbedFacet(ctx, game, facet); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (s *embeddingService) NeedsRecompute(game *domain.Game, facet domain.Facet) bool {
	if game == nil || !facet.Valid() {
		return false
	}
	state, ok := game.FacetStates()[facet]
	if !ok {
		return true
	}
	if state.RuleVersion != facet.RuleVersion() {
		return true
	}
	return state.State == domain.FacetStateComputed && game.EmbeddingFor(facet) == nil
}
