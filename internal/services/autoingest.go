package services

import (
	"context"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"golang.org/x/sync/errgroup"

	"github.com/gamescout/gamescout-backend/internal/pkg/logger"
	"github.com/gamescout/gamescout-backend/internal/utils"
)

// AutoIngestService pulls dangling suggestion targets into the catalog in
// the background. The cascade is bounded two ways: at most cap ids per
// trigger, and an id is never requested twice while it sits in the recently
// requested set, so a refresh that fans out cannot snowball through the
// suggestion graph.
type AutoIngestService interface {
	// Enqueue schedules ingestion for the given missing targets and
	// returns the ids actually accepted after capping and dedup.
	Enqueue(ctx context.Context, appIDs []int64) []int64
	// Wait blocks until every accepted ingest so far has finished. Test
	// and shutdown hook.
	Wait()
}

type autoIngestService struct {
	ingester    IngestionService
	suggestions SuggestionService
	log         *logger.Logger

	cap         int
	concurrency int
	eager       bool
	timeout     time.Duration

	requested *lru.Cache[int64, time.Time]
	wg        sync.WaitGroup
}

func NewAutoIngestService(
	ingester IngestionService,
	suggestions SuggestionService,
	baseLog *logger.Logger,
) AutoIngestService {
	svcLog := baseLog.With("service", "AutoIngestService")
	requested, _ := lru.New[int64, time.Time](utils.GetEnvAsInt("AUTO_INGEST_REQUESTED_SET_SIZE", 4096, svcLog))
	return &autoIngestService{
		ingester:    ingester,
		suggestions: suggestions,
		log:         svcLog,
		cap:         utils.GetEnvAsInt("AUTO_INGEST_CAP", 6, svcLog),
		concurrency: utils.GetEnvAsInt("AUTO_INGEST_CONCURRENCY", 3, svcLog),
		eager:       utils.GetEnvAsBool("AUTO_INGEST_EAGER_SUGGESTIONS", false, svcLog),
		timeout:     time.Duration(utils.GetEnvAsInt("AUTO_INGEST_TIMEOUT_SECONDS", 300, svcLog)) * time.Second,
		requested:   requested,
	}
}

func (s *autoIngestService) Enqueue(ctx context.Context, appIDs []int64) []int64 {
	accepted := make([]int64, 0, s.cap)
	for _, id := range appIDs {
		if len(accepted) >= s.cap {
			break
		}
		if id <= 0 {
			continue
		}
		if _, seen := s.requested.Get(id); seen {
			continue
		}
		s.requested.Add(id, time.Now())
		accepted = append(accepted, id)
	}
	if len(accepted) == 0 {
		return nil
	}

	s.log.Info("Auto-ingest scheduled", "count", len(accepted), "dropped", len(appIDs)-len(accepted))

	s.wg.Add(1)
	go func(ids []int64) {
		defer s.wg.Done()
		s.run(ids)
	}(accepted)

	return accepted
}

// run ingests the batch detached from the triggering request. Each id fails
// or succeeds on its own; one dead store page never sinks the batch.
func (s *autoIngestService) run(ids []int64) {
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.concurrency)
	for _, id := range ids {
		id := id
		g.Go(func() error {
			game, err := s.ingester.Ingest(gctx, id, IngestOptions{})
			if err != nil {
				s.log.Warn("Auto-ingest failed", "app_id", id, "error", err)
				return nil
			}
			if s.eager && s.suggestions != nil {
				// Eager mode primes the new game's own suggestion list.
				// The requested set keeps the recursion from fanning out.
				if _, err := s.suggestions.Refresh(gctx, game.AppID, false); err != nil {
					s.log.Warn("Eager suggestion refresh failed", "app_id", id, "error", err)
				}
			}
			return nil
		})
	}
	_ = g.Wait()
}

func (s *autoIngestService) Wait() {
	s.wg.Wait()
}
