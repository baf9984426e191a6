package services

import (
	"context"
	"fmt"
	"sort"

	"github.com/gamescout/gamescout-backend/internal/data/repos/games"
	"github.com/gamescout/gamescout-backend/internal/domain"
	apperrors "github.com/gamescout/gamescout-backend/internal/pkg/errors"
	"github.com/gamescout/gamescout-backend/internal/pkg/logger"
	"github.com/gamescout/gamescout-backend/internal/utils"
)

// Match is one ranked similarity result.
type Match struct {
	AppID int64   `json:"app_id"`
	Title string  `json:"title"`
	Score float64 `json:"score"`
}

type SimilarityService interface {
	// FindSimilar ranks stored games against a source game over one facet,
	// or over every facet when facet is "all". The weighted combination
	// renormalizes over the facets both games actually have vectors for,
	// so a sparsely embedded pair is compared on shared evidence rather
	// than dragged down by missing facets. limit <= 0 and threshold < 0
	// fall back to configured defaults. Ordering is score descending with
	// app id ascending as the tie break.
	FindSimilar(ctx context.Context, appID int64, facet string, limit int, threshold float64) ([]Match, error)
}

type similarityService struct {
	gameRepo games.GameRepo
	log      *logger.Logger

	defaultLimit     int
	defaultThreshold float64
}

func NewSimilarityService(gameRepo games.GameRepo, baseLog *logger.Logger) SimilarityService {
	svcLog := baseLog.With("service", "SimilarityService")
	return &similarityService{
		gameRepo:         gameRepo,
		log:              svcLog,
		defaultLimit:     utils.GetEnvAsInt("SIMILARITY_DEFAULT_LIMIT", 10, svcLog),
		defaultThreshold: utils.GetEnvAsFloat("SIMILARITY_DEFAULT_THRESHOLD", 0.0, svcLog),
	}
}

func (s *similarityService) FindSimilar(ctx context.Context, appID int64, facet string, limit int, threshold float64) ([]Match, error) {
	if limit <= 0 {
		limit = s.defaultLimit
	}
	if threshold < 0 {
		threshold = s.defaultThreshold
	}

	source, err := s.gameRepo.GetByAppID(ctx, nil, appID)
	if err != nil {
		return nil, err
	}

	var matches []Match
	switch {
	case facet == "" || facet == domain.FacetAll:
		matches, err = s.weightedMatches(ctx, source, limit, threshold)
	case domain.Facet(facet).Valid():
		matches, err = s.singleFacetMatches(ctx, source, domain.Facet(facet), limit, threshold)
	default:
		return nil, fmt.Errorf("%w: facet %q", apperrors.ErrInvalidArgument, facet)
	}
	if err != nil {
		return nil, err
	}
	return s.withTitles(ctx, matches), nil
}

func (s *similarityService) singleFacetMatches(ctx context.Context, source *domain.Game, facet domain.Facet, limit int, threshold float64) ([]Match, error) {
	rows, err := s.gameRepo.SimilarByFacet(ctx, nil, source, facet, limit, threshold)
	if err != nil {
		return nil, err
	}
	matches := make([]Match, 0, len(rows))
	for _, row := range rows {
		matches = append(matches, Match{AppID: row.AppID, Score: row.Score})
	}
	return matches, nil
}

func (s *similarityService) weightedMatches(ctx context.Context, source *domain.Game, limit int, threshold float64) ([]Match, error) {
	rows, err := s.gameRepo.FacetScoresAgainst(ctx, nil, source)
	if err != nil {
		return nil, err
	}

	matches := make([]Match, 0, len(rows))
	for _, row := range rows {
		score, ok := CombineFacetScores(row.Scores)
		if !ok || score < threshold {
			continue
		}
		matches = append(matches, Match{AppID: row.AppID, Score: score})
	}

	sort.Slice(matches, func(i, j int) bool {
		if matches[i].Score != matches[j].Score {
			return matches[i].Score > matches[j].Score
		}
		return matches[i].AppID < matches[j].AppID
	})
	if len(matches) > limit {
		matches = matches[:limit]
	}
	return matches, nil
}

// CombineFacetScores folds per-facet similarities into one weighted score,
// renormalizing the weights over the facets present. With mechanics 0.8 and
// narrative 0.4 at equal weight the combined score is 0.6, not the 0.3 a
// fixed denominator over all five facets would produce.
func CombineFacetScores(scores map[domain.Facet]float64) (float64, bool) {
	// Fixed facet order keeps the float sums, and with them exact-tie
	// ordering, identical across calls.
	var num, den float64
	for _, facet := range domain.AllFacets() {
		score, ok := scores[facet]
		if !ok {
			continue
		}
		w := domain.FacetWeights[facet]
		num += w * score
		den += w
	}
	if den == 0 {
		return 0, false
	}
	return num / den, true
}

// withTitles decorates matches with stored titles. A lookup failure leaves
// titles blank rather than failing the ranking.
func (s *similarityService) withTitles(ctx context.Context, matches []Match) []Match {
	if len(matches) == 0 {
		return matches
	}
	ids := make([]int64, 0, len(matches))
	for _, m := range matches {
		ids = append(ids, m.AppID)
	}
	found, err := s.gameRepo.GetByAppIDs(ctx, nil, ids)
	if err != nil {
		s.log.Warn("Title decoration failed", "error", err)
		return matches
	}
	titles := make(map[int64]string, len(found))
	for _, g := range found {
		titles[g.AppID] = g.Title
	}
	for i := range matches {
		matches[i].Title = titles[matches[i].AppID]
	}
	return matches
}
