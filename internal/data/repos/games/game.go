package games

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/pgvector/pgvector-go"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/gamescout/gamescout-backend/internal/domain"
	apperrors "github.com/gamescout/gamescout-backend/internal/pkg/errors"
	"github.com/gamescout/gamescout-backend/internal/pkg/logger"
)

// FacetMatch is one ranked candidate from a single-facet similarity query.
type FacetMatch struct {
	AppID int64   `gorm:"column:app_id"`
	Score float64 `gorm:"column:score"`
}

// FacetScores carries per-facet cosine similarities between a source game
// and one candidate. Only facets where both sides hold a vector appear.
type FacetScores struct {
	AppID  int64
	Scores map[domain.Facet]float64
}

type GameRepo interface {
	Upsert(ctx context.Context, tx *gorm.DB, game *domain.Game) (*domain.Game, error)
	GetByAppID(ctx context.Context, tx *gorm.DB, appID int64) (*domain.Game, error)
	GetByAppIDs(ctx context.Context, tx *gorm.DB, appIDs []int64) ([]*domain.Game, error)
	ExistsByAppID(ctx context.Context, tx *gorm.DB, appID int64) (bool, error)
	MissingAppIDs(ctx context.Context, tx *gorm.DB, appIDs []int64) ([]int64, error)
	SearchByTitle(ctx context.Context, tx *gorm.DB, title string, limit int) ([]*domain.Game, error)
	UpdateFields(ctx context.Context, tx *gorm.DB, appID int64, updates map[string]interface{}) error
	UpdateFacetEmbedding(ctx context.Context, tx *gorm.DB, appID int64, facet domain.Facet, vec *pgvector.Vector, state domain.FacetState) error
	CompareAndSwapSuggestions(ctx context.Context, tx *gorm.DB, appID int64, expectedVersion int, suggestions []domain.Suggestion, refreshedAt time.Time) (bool, error)
	SimilarByFacet(ctx context.Context, tx *gorm.DB, source *domain.Game, facet domain.Facet, limit int, threshold float64) ([]FacetMatch, error)
	FacetScoresAgainst(ctx context.Context, tx *gorm.DB, source *domain.Game) ([]FacetScores, error)
}

type gameRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewGameRepo(db *gorm.DB, baseLog *logger.Logger) GameRepo {
	repoLog := baseLog.With("repo", "GameRepo")
	return &gameRepo{db: db, log: repoLog}
}

// catalogColumns are the fields re-ingestion is allowed to overwrite.
// Embeddings and suggestions are owned by their own operations and survive
// an upsert untouched.
var catalogColumns = []string{
	"title",
	"short_description",
	"description",
	"media_urls",
	"developers",
	"tags",
	"raw_payload",
	"released",
	"release_date",
	"release_date_text",
	"updated_at",
}

func (r *gameRepo) Upsert(ctx context.Context, tx *gorm.DB, game *domain.Game) (*domain.Game, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	if game == nil || game.AppID == 0 {
		return nil, apperrors.ErrInvalidArgument
	}

	game.UpdatedAt = time.Now().UTC()
	if err := transaction.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "app_id"}},
			DoUpdates: clause.AssignmentColumns(catalogColumns),
		}).
		Create(game).Error; err != nil {
		return nil, err
	}

	// Re-read so callers observe the converged row, including fields the
	// conflict path did not touch.
	return r.GetByAppID(ctx, transaction, game.AppID)
}

func (r *gameRepo) GetByAppID(ctx context.Context, tx *gorm.DB, appID int64) (*domain.Game, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	var result domain.Game
	if err := transaction.WithContext(ctx).
		Where("app_id = ?", appID).
		First(&result).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrNotFound
		}
		return nil, err
	}
	return &result, nil
}

func (r *gameRepo) GetByAppIDs(ctx context.Context, tx *gorm.DB, appIDs []int64) ([]*domain.Game, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	var results []*domain.Game
	if len(appIDs) == 0 {
		return results, nil
	}
	if err := transaction.WithContext(ctx).
		Where("app_id IN ?", appIDs).
		Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}

func (r *gameRepo) ExistsByAppID(ctx context.Context, tx *gorm.DB, appID int64) (bool, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	var count int64
	if err := transaction.WithContext(ctx).
		Model(&domain.Game{}).
		Where("app_id = ?", appID).
		Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

func (r *gameRepo) MissingAppIDs(ctx context.Context, tx *gorm.DB, appIDs []int64) ([]int64, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	if len(appIDs) == 0 {
		return nil, nil
	}
	var present []int64
	if err := transaction.WithContext(ctx).
		Model(&domain.Game{}).
		Where("app_id IN ?", appIDs).
		Pluck("app_id", &present).Error; err != nil {
		return nil, err
	}
	known := make(map[int64]bool, len(present))
	for _, id := range present {
		known[id] = true
	}
	var missing []int64
	for _, id := range appIDs {
		if !known[id] {
			missing = append(missing, id)
		}
	}
	return missing, nil
}

func (r *gameRepo) SearchByTitle(ctx context.Context, tx *gorm.DB, title string, limit int) ([]*domain.Game, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	title = strings.TrimSpace(title)
	if title == "" {
		return nil, nil
	}
	if limit <= 0 {
		limit = 5
	}

	// Exact (case-insensitive) match wins outright.
	var exact []*domain.Game
	if err := transaction.WithContext(ctx).
		Where("lower(title) = lower(?)", title).
		Order("app_id ASC").
		Limit(limit).
		Find(&exact).Error; err != nil {
		return nil, err
	}
	if len(exact) > 0 {
		return exact, nil
	}

	var fuzzy []*domain.Game
	if err := transaction.WithContext(ctx).
		Where("title ILIKE ?", "%"+title+"%").
		Order("length(title) ASC, app_id ASC").
		Limit(limit).
		Find(&fuzzy).Error; err != nil {
		return nil, err
	}
	return fuzzy, nil
}

func (r *gameRepo) UpdateFields(ctx context.Context, tx *gorm.DB, appID int64, updates map[string]interface{}) error {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	if appID == 0 {
		return nil
	}
	if updates == nil {
		updates = map[string]interface{}{}
	}
	if _, ok := updates["updated_at"]; !ok {
		updates["updated_at"] = time.Now().UTC()
	}
	return transaction.WithContext(ctx).
		Model(&domain.Game{}).
		Where("app_id = ?", appID).
		Updates(updates).Error
}

func (r *gameRepo) UpdateFacetEmbedding(ctx context.Context, tx *gorm.DB, appID int64, facet domain.Facet, vec *pgvector.Vector, state domain.FacetState) error {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	if !facet.Valid() {
		return apperrors.ErrInvalidArgument
	}

	stateJSON := domain.EncodeJSON(state)

	// Vector and status move in one statement so a failure never leaves
	// the pair half-applied.
	sql := fmt.Sprintf(
		`UPDATE game
		 SET %s = ?,
		     facet_status = jsonb_set(coalesce(facet_status, '{}'::jsonb), ?, ?::jsonb, true),
		     updated_at = now()
		 WHERE app_id = ?`,
		facet.Column(),
	)
	res := transaction.WithContext(ctx).Exec(sql, vec, fmt.Sprintf("{%s}", facet), string(stateJSON), appID)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return apperrors.ErrNotFound
	}
	return nil
}

func (r *gameRepo) CompareAndSwapSuggestions(ctx context.Context, tx *gorm.DB, appID int64, expectedVersion int, suggestions []domain.Suggestion, refreshedAt time.Time) (bool, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	if suggestions == nil {
		suggestions = []domain.Suggestion{}
	}

	res := transaction.WithContext(ctx).
		Model(&domain.Game{}).
		Where("app_id = ? AND suggestions_version = ?", appID, expectedVersion).
		Updates(map[string]interface{}{
			"suggestions":              domain.EncodeJSON(suggestions),
			"suggestions_version":      expectedVersion + 1,
			"suggestions_refreshed_at": refreshedAt,
			"updated_at":               time.Now().UTC(),
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

func (r *gameRepo) SimilarByFacet(ctx context.Context, tx *gorm.DB, source *domain.Game, facet domain.Facet, limit int, threshold float64) ([]FacetMatch, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	if source == nil {
		return nil, apperrors.ErrInvalidArgument
	}
	if !facet.Valid() {
		return nil, apperrors.ErrInvalidArgument
	}
	vec := source.EmbeddingFor(facet)
	if vec == nil {
		// No vector on the source side: nothing is comparable.
		return nil, nil
	}
	if limit <= 0 {
		limit = 10
	}

	col := facet.Column()
	// Cosine similarity via pgvector's cosine-distance operator, computed
	// in the store. Candidates without a vector are excluded, not scored
	// as zero. Ties break on app_id ascending for reproducible output.
	sql := fmt.Sprintf(
		`SELECT app_id, 1 - (%s <=> ?) AS score
		 FROM game
		 WHERE app_id <> ?
		   AND %s IS NOT NULL
		   AND 1 - (%s <=> ?) >= ?
		 ORDER BY score DESC, app_id ASC
		 LIMIT ?`,
		col, col, col,
	)

	var matches []FacetMatch
	if err := transaction.WithContext(ctx).
		Raw(sql, *vec, source.AppID, *vec, threshold, limit).
		Scan(&matches).Error; err != nil {
		return nil, err
	}
	return matches, nil
}

type allFacetRow struct {
	AppID       int64    `gorm:"column:app_id"`
	SAesthetic  *float64 `gorm:"column:s_aesthetic"`
	SAtmosphere *float64 `gorm:"column:s_atmosphere"`
	SMechanics  *float64 `gorm:"column:s_mechanics"`
	SNarrative  *float64 `gorm:"column:s_narrative"`
	SDynamics   *float64 `gorm:"column:s_dynamics"`
}

func (row *allFacetRow) score(f domain.Facet) *float64 {
	switch f {
	case domain.FacetAesthetic:
		return row.SAesthetic
	case domain.FacetAtmosphere:
		return row.SAtmosphere
	case domain.FacetMechanics:
		return row.SMechanics
	case domain.FacetNarrative:
		return row.SNarrative
	case domain.FacetDynamics:
		return row.SDynamics
	}
	return nil
}

// FacetScoresAgainst computes, for every other stored game, the per-facet
// cosine similarity against the source for each facet the source has a
// vector for. Weighting happens in the matcher; this query only produces
// the raw shared-facet scores.
func (r *gameRepo) FacetScoresAgainst(ctx context.Context, tx *gorm.DB, source *domain.Game) ([]FacetScores, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	if source == nil {
		return nil, apperrors.ErrInvalidArgument
	}

	selects := []string{"app_id"}
	var presence []string
	var args []interface{}
	var present []domain.Facet
	for _, f := range domain.AllFacets() {
		vec := source.EmbeddingFor(f)
		if vec == nil {
			continue
		}
		present = append(present, f)
		col := f.Column()
		selects = append(selects, fmt.Sprintf(
			"CASE WHEN %s IS NOT NULL THEN 1 - (%s <=> ?) END AS s_%s", col, col, string(f),
		))
		presence = append(presence, col+" IS NOT NULL")
		args = append(args, *vec)
	}
	if len(present) == 0 {
		return nil, nil
	}

	sql := fmt.Sprintf(
		`SELECT %s FROM game WHERE app_id <> ? AND (%s)`,
		strings.Join(selects, ", "),
		strings.Join(presence, " OR "),
	)
	args = append(args, source.AppID)

	var rows []allFacetRow
	if err := transaction.WithContext(ctx).
		Raw(sql, args...).
		Scan(&rows).Error; err != nil {
		return nil, err
	}

	out := make([]FacetScores, 0, len(rows))
	for i := range rows {
		scores := map[domain.Facet]float64{}
		for _, f := range present {
			if s := rows[i].score(f); s != nil {
				scores[f] = *s
			}
		}
		if len(scores) == 0 {
			continue
		}
		out = append(out, FacetScores{AppID: rows[i].AppID, Scores: scores})
	}
	return out, nil
}
