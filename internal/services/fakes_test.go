package services

import (
	"context"
	"encoding/json"
	"math"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/pgvector/pgvector-go"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/gamescout/gamescout-backend/internal/clients/steam"
	"github.com/gamescout/gamescout-backend/internal/data/repos/games"
	"github.com/gamescout/gamescout-backend/internal/domain"
	apperrors "github.com/gamescout/gamescout-backend/internal/pkg/errors"
	"github.com/gamescout/gamescout-backend/internal/pkg/logger"
)

func testLogger() *logger.Logger {
	log, _ := logger.New("test")
	return log
}

// fakeGameRepo mirrors the store semantics the services lean on: catalog
// upserts that never touch embeddings or suggestions, versioned suggestion
// swaps, and in-memory cosine scoring.
type fakeGameRepo struct {
	mu    sync.Mutex
	games map[int64]*domain.Game
}

func newFakeGameRepo() *fakeGameRepo {
	return &fakeGameRepo{games: map[int64]*domain.Game{}}
}

func (r *fakeGameRepo) put(g *domain.Game) {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *g
	r.games[g.AppID] = &cp
}

func (r *fakeGameRepo) Upsert(_ context.Context, _ *gorm.DB, game *domain.Game) (*domain.Game, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if game == nil || game.AppID == 0 {
		return nil, apperrors.ErrInvalidArgument
	}
	existing, ok := r.games[game.AppID]
	if !ok {
		cp := *game
		r.games[game.AppID] = &cp
		out := cp
		return &out, nil
	}
	existing.Title = game.Title
	existing.ShortDescription = game.ShortDescription
	existing.Description = game.Description
	existing.MediaURLs = game.MediaURLs
	existing.Developers = game.Developers
	existing.Tags = game.Tags
	existing.RawPayload = game.RawPayload
	existing.Released = game.Released
	existing.ReleaseDate = game.ReleaseDate
	existing.ReleaseDateText = game.ReleaseDateText
	out := *existing
	return &out, nil
}

func (r *fakeGameRepo) GetByAppID(_ context.Context, _ *gorm.DB, appID int64) (*domain.Game, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	g, ok := r.games[appID]
	if !ok {
		return nil, apperrors.ErrNotFound
	}
	out := *g
	return &out, nil
}

func (r *fakeGameRepo) GetByAppIDs(_ context.Context, _ *gorm.DB, appIDs []int64) ([]*domain.Game, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*domain.Game
	for _, id := range appIDs {
		if g, ok := r.games[id]; ok {
			cp := *g
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (r *fakeGameRepo) ExistsByAppID(_ context.Context, _ *gorm.DB, appID int64) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.games[appID]
	return ok, nil
}

func (r *fakeGameRepo) MissingAppIDs(_ context.Context, _ *gorm.DB, appIDs []int64) ([]int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var missing []int64
	for _, id := range appIDs {
		if _, ok := r.games[id]; !ok {
			missing = append(missing, id)
		}
	}
	return missing, nil
}

func (r *fakeGameRepo) SearchByTitle(_ context.Context, _ *gorm.DB, title string, limit int) ([]*domain.Game, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	title = strings.TrimSpace(title)
	if limit <= 0 {
		limit = 5
	}
	var exact, fuzzy []*domain.Game
	for _, g := range r.games {
		cp := *g
		switch {
		case strings.EqualFold(g.Title, title):
			exact = append(exact, &cp)
		case strings.Contains(strings.ToLower(g.Title), strings.ToLower(title)):
			fuzzy = append(fuzzy, &cp)
		}
	}
	pick := exact
	if len(pick) == 0 {
		pick = fuzzy
	}
	sort.Slice(pick, func(i, j int) bool { return pick[i].AppID < pick[j].AppID })
	if len(pick) > limit {
		pick = pick[:limit]
	}
	return pick, nil
}

func (r *fakeGameRepo) UpdateFields(_ context.Context, _ *gorm.DB, appID int64, updates map[string]interface{}) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	g, ok := r.games[appID]
	if !ok {
		return nil
	}
	for key, val := range updates {
		switch key {
		case "suggestions":
			if raw, ok := val.(datatypes.JSON); ok {
				g.Suggestions = raw
			}
		case "suggestions_version":
			// The SQL expression form always increments here.
			g.SuggestionsVersion++
		case "suggestions_refreshed_at":
			if val == nil {
				g.SuggestionsRefreshedAt = nil
			}
		}
	}
	return nil
}

func (r *fakeGameRepo) UpdateFacetEmbedding(_ context.Context, _ *gorm.DB, appID int64, facet domain.Facet, vec *pgvector.Vector, state domain.FacetState) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	g, ok := r.games[appID]
	if !ok {
		return apperrors.ErrNotFound
	}
	states := map[domain.Facet]domain.FacetState{}
	if len(g.FacetStatus) > 0 {
		_ = json.Unmarshal(g.FacetStatus, &states)
	}
	states[facet] = state
	g.FacetStatus = domain.EncodeJSON(states)
	switch facet {
	case domain.FacetAesthetic:
		g.EmbeddingAesthetic = vec
	case domain.FacetAtmosphere:
		g.EmbeddingAtmosphere = vec
	case domain.FacetMechanics:
		g.EmbeddingMechanics = vec
	case domain.FacetNarrative:
		g.EmbeddingNarrative = vec
	case domain.FacetDynamics:
		g.EmbeddingDynamics = vec
	}
	return nil
}

func (r *fakeGameRepo) CompareAndSwapSuggestions(_ context.Context, _ *gorm.DB, appID int64, expectedVersion int, suggestions []domain.Suggestion, refreshedAt time.Time) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	g, ok := r.games[appID]
	if !ok {
		return false, nil
	}
	if g.SuggestionsVersion != expectedVersion {
		return false, nil
	}
	g.Suggestions = domain.EncodeJSON(suggestions)
	g.SuggestionsVersion = expectedVersion + 1
	at := refreshedAt
	g.SuggestionsRefreshedAt = &at
	return true, nil
}

func (r *fakeGameRepo) SimilarByFacet(_ context.Context, _ *gorm.DB, source *domain.Game, facet domain.Facet, limit int, threshold float64) ([]games.FacetMatch, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	src := source.EmbeddingFor(facet)
	if src == nil {
		return nil, nil
	}
	if limit <= 0 {
		limit = 10
	}
	var out []games.FacetMatch
	for _, g := range r.games {
		if g.AppID == source.AppID {
			continue
		}
		cand := g.EmbeddingFor(facet)
		if cand == nil {
			continue
		}
		score := cosine(src.Slice(), cand.Slice())
		if score >= threshold {
			out = append(out, games.FacetMatch{AppID: g.AppID, Score: score})
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Score != out[j].Score {
			return out[i].Score > out[j].Score
		}
		return out[i].AppID < out[j].AppID
	})
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r *fakeGameRepo) FacetScoresAgainst(_ context.Context, _ *gorm.DB, source *domain.Game) ([]games.FacetScores, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []games.FacetScores
	for _, g := range r.games {
		if g.AppID == source.AppID {
			continue
		}
		scores := map[domain.Facet]float64{}
		for _, f := range domain.AllFacets() {
			src, cand := source.EmbeddingFor(f), g.EmbeddingFor(f)
			if src == nil || cand == nil {
				continue
			}
			scores[f] = cosine(src.Slice(), cand.Slice())
		}
		if len(scores) > 0 {
			out = append(out, games.FacetScores{AppID: g.AppID, Scores: scores})
		}
	}
	return out, nil
}

func cosine(a, b []float32) float64 {
	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}

// basisVec builds a unit embedding with weight on two axes, enough to make
// cosine scores land where a test wants them.
func basisVec(i, j int, wi, wj float32) *pgvector.Vector {
	data := make([]float32, domain.EmbeddingDim)
	data[i] = wi
	data[j] = wj
	v := pgvector.NewVector(data)
	return &v
}

type fakeCatalog struct {
	mu       sync.Mutex
	details  map[int64]*steam.AppDetails
	searches map[string][]steam.SearchResult
	errs     map[int64]error

	detailCalls []int64
	searchCalls []string
}

func newFakeCatalog() *fakeCatalog {
	return &fakeCatalog{
		details:  map[int64]*steam.AppDetails{},
		searches: map[string][]steam.SearchResult{},
		errs:     map[int64]error{},
	}
}

func (c *fakeCatalog) addGame(appID int64, name string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.details[appID] = &steam.AppDetails{
		AppID:            appID,
		Name:             name,
		ShortDescription: "short for " + name,
		Tags:             []string{"Indie"},
		MediaURLs:        []string{"https://cdn.example/" + name + ".jpg"},
	}
}

func (c *fakeCatalog) AppDetails(_ context.Context, appID int64) (*steam.AppDetails, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.detailCalls = append(c.detailCalls, appID)
	if err, ok := c.errs[appID]; ok {
		return nil, err
	}
	d, ok := c.details[appID]
	if !ok {
		return nil, apperrors.ErrNotFound
	}
	cp := *d
	return &cp, nil
}

func (c *fakeCatalog) Search(_ context.Context, term string) ([]steam.SearchResult, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.searchCalls = append(c.searchCalls, term)
	return c.searches[strings.ToLower(term)], nil
}

type fakeModel struct {
	mu        sync.Mutex
	response  string
	err       error
	textCalls int
}

func (m *fakeModel) GenerateText(_ context.Context, _, _ string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.textCalls++
	return m.response, m.err
}

func (m *fakeModel) GenerateTextWithImage(_ context.Context, _, _, _ string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.textCalls++
	return m.response, m.err
}

func (m *fakeModel) calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.textCalls
}

type fakeEmbedProvider struct {
	mu     sync.Mutex
	vec    []float32
	err    error
	inputs []string
}

func (p *fakeEmbedProvider) Embed(_ context.Context, inputs []string) ([][]float32, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.inputs = append(p.inputs, inputs...)
	if p.err != nil {
		return nil, p.err
	}
	out := make([][]float32, len(inputs))
	for i := range inputs {
		vec := p.vec
		if vec == nil {
			vec = make([]float32, domain.EmbeddingDim)
			vec[0] = 1
		}
		out[i] = vec
	}
	return out, nil
}
