package services

import (
	"context"
	"fmt"
	"time"

	"github.com/gamescout/gamescout-backend/internal/clients/steam"
	"github.com/gamescout/gamescout-backend/internal/data/repos/games"
	"github.com/gamescout/gamescout-backend/internal/domain"
	apperrors "github.com/gamescout/gamescout-backend/internal/pkg/errors"
	"github.com/gamescout/gamescout-backend/internal/pkg/logger"
	"github.com/gamescout/gamescout-backend/internal/utils"
)

// CatalogClient is the slice of the store client ingestion depends on.
type CatalogClient interface {
	AppDetails(ctx context.Context, appID int64) (*steam.AppDetails, error)
	Search(ctx context.Context, term string) ([]steam.SearchResult, error)
}

type IngestOptions struct {
	// Force refreshes catalog fields even when a full record already
	// exists. Embeddings and suggestions are never clobbered by it.
	Force bool
	// SkipEmbeddings suppresses the post-ingest embedding pass, for
	// callers that run a recompute of their own afterwards.
	SkipEmbeddings bool
}

type IngestionService interface {
	// Ingest resolves one app id against the external catalog and persists
	// it. Re-ingesting a known game without Force is a read, not a fetch.
	// A concurrent ingest of the same id is waited out for a bounded
	// window; past it the call fails with ErrBusy.
	Ingest(ctx context.Context, appID int64, opts IngestOptions) (*domain.Game, error)
	// IngestRef accepts either a bare numeric id or a store page URL.
	IngestRef(ctx context.Context, ref string, opts IngestOptions) (*domain.Game, error)
	// Get reads a stored game without touching the external catalog.
	Get(ctx context.Context, appID int64) (*domain.Game, error)
}

type ingestionService struct {
	catalog  CatalogClient
	gameRepo games.GameRepo
	locks    LockManager
	embedder EmbeddingService
	log      *logger.Logger

	lockTTL      time.Duration
	waitAttempts int
	waitInterval time.Duration
	embedTimeout time.Duration
}

func NewIngestionService(
	catalog CatalogClient,
	gameRepo games.GameRepo,
	locks LockManager,
	embedder EmbeddingService,
	baseLog *logger.Logger,
) IngestionService {
	svcLog := baseLog.With("service", "IngestionService")
	return &ingestionService{
		catalog:      catalog,
		gameRepo:     gameRepo,
		locks:        locks,
		embedder:     embedder,
		log:          svcLog,
		lockTTL:      time.Duration(utils.GetEnvAsInt("INGEST_LOCK_TTL_SECONDS", 60, svcLog)) * time.Second,
		waitAttempts: utils.GetEnvAsInt("INGEST_LOCK_WAIT_ATTEMPTS", 10, svcLog),
		waitInterval: time.Duration(utils.GetEnvAsInt("INGEST_LOCK_WAIT_INTERVAL_MS", 500, svcLog)) * time.Millisecond,
		embedTimeout: time.Duration(utils.GetEnvAsInt("INGEST_EMBED_TIMEOUT_SECONDS", 180, svcLog)) * time.Second,
	}
}

func ingestLockKey(appID int64) string {
	return fmt.Sprintf("ingest:%d", appID)
}

func (s *ingestionService) Get(ctx context.Context, appID int64) (*domain.Game, error) {
	return s.gameRepo.GetByAppID(ctx, nil, appID)
}

func (s *ingestionService) IngestRef(ctx context.Context, ref string, opts IngestOptions) (*domain.Game, error) {
	appID, err := steam.ParseAppID(ref)
	if err != nil {
		return nil, err
	}
	return s.Ingest(ctx, appID, opts)
}

func (s *ingestionService) Ingest(ctx context.Context, appID int64, opts IngestOptions) (*domain.Game, error) {
	if appID <= 0 {
		return nil, fmt.Errorf("%w: app id %d", apperrors.ErrInvalidArgument, appID)
	}

	// Fast path: a full record already exists and nobody asked for a
	// refresh.
	if !opts.Force {
		if existing, err := s.gameRepo.GetByAppID(ctx, nil, appID); err == nil && existing.HasFullRecord() {
			return existing, nil
		}
	}

	token, ok, err := s.locks.Acquire(ctx, ingestLockKey(appID), s.lockTTL)
	if err != nil {
		return nil, fmt.Errorf("acquire ingest lock for app %d: %w", appID, err)
	}
	if !ok {
		return s.awaitInFlight(ctx, appID, opts)
	}
	return s.ingestLocked(ctx, appID, opts, token)
}

// ingestLocked runs the fetch-and-persist pipeline while holding the
// ingestion lock, releasing it on the way out.
func (s *ingestionService) ingestLocked(ctx context.Context, appID int64, opts IngestOptions, token string) (*domain.Game, error) {
	defer func() {
		releaseCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := s.locks.Release(releaseCtx, ingestLockKey(appID), token); err != nil {
			s.log.Warn("Failed to release ingest lock", "app_id", appID, "error", err)
		}
	}()

	// Someone may have completed the ingest between the fast path and the
	// lock grant.
	if !opts.Force {
		if existing, err := s.gameRepo.GetByAppID(ctx, nil, appID); err == nil && existing.HasFullRecord() {
			return existing, nil
		}
	}

	details, err := s.catalog.AppDetails(ctx, appID)
	if err != nil {
		return nil, err
	}

	game, err := s.gameRepo.Upsert(ctx, nil, gameFromDetails(details))
	if err != nil {
		return nil, fmt.Errorf("persist app %d: %w", appID, err)
	}
	s.log.Info("Ingested game", "app_id", game.AppID, "title", game.Title)

	if s.embedder != nil && !opts.SkipEmbeddings {
		// Embeddings ride behind the response. A provider outage degrades
		// similarity, not ingestion.
		go func(snapshot domain.Game) {
			embedCtx, cancel := context.WithTimeout(context.Background(), s.embedTimeout)
			defer cancel()
			if err := s.embedder.EmbedAll(embedCtx, &snapshot); err != nil {
				s.log.Warn("Post-ingest embedding incomplete", "app_id", snapshot.AppID, "error", err)
			}
		}(*game)
	}

	return game, nil
}

// awaitInFlight polls for the result of an ingest some other caller holds the
// lock for. It returns the converged record if that ingest completes inside
// the wait budget and ErrBusy otherwise.
func (s *ingestionService) awaitInFlight(ctx context.Context, appID int64, opts IngestOptions) (*domain.Game, error) {
	for attempt := 0; attempt < s.waitAttempts; attempt++ {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(s.waitInterval):
		}

		if game, err := s.gameRepo.GetByAppID(ctx, nil, appID); err == nil && game.HasFullRecord() {
			return game, nil
		}

		// The holder may have failed and expired the lock. Take over if
		// the slot has opened up.
		token, ok, err := s.locks.Acquire(ctx, ingestLockKey(appID), s.lockTTL)
		if err != nil {
			return nil, err
		}
		if ok {
			return s.ingestLocked(ctx, appID, opts, token)
		}
	}
	return nil, fmt.Errorf("%w: ingest of app %d already in flight", apperrors.ErrBusy, appID)
}

func gameFromDetails(d *steam.AppDetails) *domain.Game {
	return &domain.Game{
		AppID:            d.AppID,
		Title:            d.Name,
		ShortDescription: d.ShortDescription,
		Description:      d.DetailedDescription,
		MediaURLs:        domain.EncodeJSON(d.MediaURLs),
		Developers:       domain.EncodeJSON(d.Developers),
		Tags:             domain.EncodeJSON(d.Tags),
		RawPayload:       domain.EncodeJSON(d.Raw),
		Released:         !d.ComingSoon,
		ReleaseDate:      d.ReleaseDate,
		ReleaseDateText:  d.ReleaseDateText,
	}
}
