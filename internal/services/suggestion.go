package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/gamescout/gamescout-backend/internal/data/repos/games"
	"github.com/gamescout/gamescout-backend/internal/domain"
	"github.com/gamescout/gamescout-backend/internal/normalization"
	apperrors "github.com/gamescout/gamescout-backend/internal/pkg/errors"
	"github.com/gamescout/gamescout-backend/internal/pkg/logger"
)

// SuggestionModel is the slice of the model client the suggestion generator
// needs: one multimodal completion per refresh.
type SuggestionModel interface {
	GenerateText(ctx context.Context, system, user string) (string, error)
	GenerateTextWithImage(ctx context.Context, system, user, imageURL string) (string, error)
}

// RefreshResult reports one suggestion refresh: the converged list, how many
// targets the refresh added, and which suggested targets are not in the
// store yet (handed to auto-ingest by the caller).
type RefreshResult struct {
	Suggestions []domain.Suggestion `json:"suggestions"`
	RefreshedAt *time.Time          `json:"refreshed_at,omitempty"`
	NewTargets  []int64             `json:"new_targets,omitempty"`
	Missing     []int64             `json:"missing,omitempty"`
	FromCache   bool                `json:"from_cache"`
}

type SuggestionService interface {
	// Refresh returns the cached suggestion list, generating a fresh batch
	// first when the cache is empty or force is set. Generated candidates
	// are resolved to app ids, merged into the cached list without ever
	// dropping or reordering prior entries, and written back under a
	// version check. A response the parser rejects degrades to zero new
	// suggestions, never an error.
	Refresh(ctx context.Context, appID int64, force bool) (*RefreshResult, error)
	// Get reads the cached list without generating.
	Get(ctx context.Context, appID int64) (*RefreshResult, error)
	// Clear drops the cached list. The next Refresh regenerates from
	// scratch.
	Clear(ctx context.Context, appID int64) error
}

type suggestionService struct {
	model    SuggestionModel
	catalog  CatalogClient
	gameRepo games.GameRepo
	log      *logger.Logger
}

func NewSuggestionService(
	model SuggestionModel,
	catalog CatalogClient,
	gameRepo games.GameRepo,
	baseLog *logger.Logger,
) SuggestionService {
	return &suggestionService{
		model:    model,
		catalog:  catalog,
		gameRepo: gameRepo,
		log:      baseLog.With("service", "SuggestionService"),
	}
}

func (s *suggestionService) Get(ctx context.Context, appID int64) (*RefreshResult, error) {
	game, err := s.gameRepo.GetByAppID(ctx, nil, appID)
	if err != nil {
		return nil, err
	}
	list := game.SuggestionList()
	missing, err := s.missingTargets(ctx, list)
	if err != nil {
		s.log.Warn("Missing-target scan failed", "app_id", appID, "error", err)
	}
	return &RefreshResult{
		Suggestions: list,
		RefreshedAt: game.SuggestionsRefreshedAt,
		Missing:     missing,
		FromCache:   true,
	}, nil
}

func (s *suggestionService) Refresh(ctx context.Context, appID int64, force bool) (*RefreshResult, error) {
	game, err := s.gameRepo.GetByAppID(ctx, nil, appID)
	if err != nil {
		return nil, err
	}
	if !game.HasFullRecord() {
		return nil, fmt.Errorf("%w: app %d has no catalog record", apperrors.ErrNotFound, appID)
	}

	// Cache hit: a previous refresh already produced a list and nobody is
	// forcing regeneration.
	if !force && game.SuggestionsRefreshedAt != nil && len(game.SuggestionList()) > 0 {
		return s.Get(ctx, appID)
	}

	candidates := s.generate(ctx, game)
	fresh := s.resolve(ctx, game, candidates)

	merged, added, err := s.writeMerged(ctx, game, fresh)
	if err != nil {
		return nil, err
	}
	now := time.Now().UTC()

	s.linkBack(ctx, game, added)

	missing, err := s.missingTargets(ctx, merged)
	if err != nil {
		s.log.Warn("Missing-target scan failed", "app_id", appID, "error", err)
	}

	return &RefreshResult{
		Suggestions: merged,
		RefreshedAt: &now,
		NewTargets:  added,
		Missing:     missing,
	}, nil
}

func (s *suggestionService) Clear(ctx context.Context, appID int64) error {
	if _, err := s.gameRepo.GetByAppID(ctx, nil, appID); err != nil {
		return err
	}
	return s.gameRepo.UpdateFields(ctx, nil, appID, map[string]interface{}{
		"suggestions":              domain.EncodeJSON([]domain.Suggestion{}),
		"suggestions_version":      gorm.Expr("suggestions_version + 1"),
		"suggestions_refreshed_at": nil,
	})
}

const suggestionSystemPrompt = `You are a curator for an indie game discovery site. ` +
	`Given one game, suggest other indie games a fan of it would enjoy. ` +
	`Answer with a JSON array only, each element {"title": string, "reason": string}, ` +
	`where reason is one sentence naming what the two games share. ` +
	`Suggest 5 to 8 games. Do not suggest the given game itself.`

// generate runs one model completion for the game and parses it. Model or
// parse failures degrade to zero candidates; refreshing must never lose the
// cached list over a flaky upstream.
func (s *suggestionService) generate(ctx context.Context, game *domain.Game) []Candidate {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Title: %s\n", game.Title)
	if game.ShortDescription != "" {
		fmt.Fprintf(&sb, "Description: %s\n", game.ShortDescription)
	}
	if tags := game.TagList(); len(tags) > 0 {
		fmt.Fprintf(&sb, "Tags: %s\n", strings.Join(tags, ", "))
	}
	if devs := game.DeveloperList(); len(devs) > 0 {
		fmt.Fprintf(&sb, "Developers: %s\n", strings.Join(devs, ", "))
	}

	var raw string
	var err error
	if img := game.PrimaryImageURL(); img != "" {
		raw, err = s.model.GenerateTextWithImage(ctx, suggestionSystemPrompt, sb.String(), img)
	} else {
		raw, err = s.model.GenerateText(ctx, suggestionSystemPrompt, sb.String())
	}
	if err != nil {
		s.log.Warn("Suggestion generation failed", "app_id", game.AppID, "error", err)
		return nil
	}

	res := ParseSuggestionResponse(raw)
	if res.Kind == ParseMalformed {
		s.log.Warn("Suggestion response unparsable", "app_id", game.AppID, "sample", sample(raw))
	}
	return res.Candidates
}

// resolve maps parsed candidates to store app ids: exact or fuzzy title
// match against the store first, external catalog search as the fallback.
// Candidates that resolve nowhere, or resolve to the source game, are
// dropped.
func (s *suggestionService) resolve(ctx context.Context, source *domain.Game, candidates []Candidate) []domain.Suggestion {
	var out []domain.Suggestion
	for _, c := range candidates {
		appID := c.AppID
		if appID == 0 {
			appID = s.resolveTitle(ctx, c.Title)
		}
		if appID == 0 {
			s.log.Debug("Suggestion candidate unresolved", "source", source.AppID, "title", c.Title)
			continue
		}
		if appID == source.AppID {
			continue
		}
		out = append(out, domain.Suggestion{
			TargetAppID: appID,
			Title:       c.Title,
			Reason:      c.Reason,
			AddedAt:     time.Now().UTC(),
		})
	}
	return out
}

func (s *suggestionService) resolveTitle(ctx context.Context, title string) int64 {
	local, err := s.gameRepo.SearchByTitle(ctx, nil, title, 3)
	if err == nil {
		for _, g := range local {
			if normalization.TitlesMatch(g.Title, title) {
				return g.AppID
			}
		}
	}

	hits, err := s.catalog.Search(ctx, title)
	if err != nil || len(hits) == 0 {
		if len(local) > 0 {
			return local[0].AppID
		}
		return 0
	}
	for _, h := range hits {
		if normalization.TitlesMatch(h.Name, title) {
			return h.AppID
		}
	}
	return hits[0].AppID
}

// writeMerged merges fresh suggestions into the stored list under the
// version guard, retrying once against a concurrent writer. Returns the
// converged list and the targets this refresh introduced.
func (s *suggestionService) writeMerged(ctx context.Context, game *domain.Game, fresh []domain.Suggestion) ([]domain.Suggestion, []int64, error) {
	current := game
	for attempt := 0; attempt < 2; attempt++ {
		merged, added := domain.MergeSuggestions(current.SuggestionList(), fresh)

		swapped, err := s.gameRepo.CompareAndSwapSuggestions(
			ctx, nil, current.AppID, current.SuggestionsVersion, merged, time.Now().UTC())
		if err != nil {
			return nil, nil, err
		}
		if swapped {
			return merged, added, nil
		}

		// Lost the race: remerge against what the other writer produced.
		current, err = s.gameRepo.GetByAppID(ctx, nil, current.AppID)
		if err != nil {
			return nil, nil, err
		}
	}
	return nil, nil, fmt.Errorf("%w: suggestion write for app %d kept conflicting", apperrors.ErrBusy, game.AppID)
}

// linkBack appends the reciprocal suggestion on every newly added target
// already present in the store. The backlink reuses the forward reason
// rather than spending another generation; targets not yet ingested get
// their link when their own refresh runs. Failures here are logged, never
// propagated, the forward refresh already succeeded.
func (s *suggestionService) linkBack(ctx context.Context, source *domain.Game, added []int64) {
	if len(added) == 0 {
		return
	}
	for _, targetID := range added {
		target, err := s.gameRepo.GetByAppID(ctx, nil, targetID)
		if err != nil {
			continue
		}
		if domain.ContainsTarget(target.SuggestionList(), source.AppID) {
			continue
		}
		back := []domain.Suggestion{{
			TargetAppID: source.AppID,
			Title:       source.Title,
			Reason:      fmt.Sprintf("Suggested alongside %s.", target.Title),
			AddedAt:     time.Now().UTC(),
		}}
		if _, _, err := s.writeMerged(ctx, target, back); err != nil {
			s.log.Warn("Reciprocal suggestion write failed",
				"source", source.AppID, "target", targetID, "error", err)
		}
	}
}

func (s *suggestionService) missingTargets(ctx context.Context, list []domain.Suggestion) ([]int64, error) {
	if len(list) == 0 {
		return nil, nil
	}
	ids := make([]int64, 0, len(list))
	for _, sg := range list {
		ids = append(ids, sg.TargetAppID)
	}
	return s.gameRepo.MissingAppIDs(ctx, nil, ids)
}

func sample(s string) string {
	if len(s) > 120 {
		return s[:120] + "..."
	}
	return s
}
