package services

import (
	"context"
	"testing"

	"github.com/gamescout/gamescout-backend/internal/clients/steam"
	"github.com/gamescout/gamescout-backend/internal/domain"
)

// Walks the whole discovery loop: ingest one game, refresh its suggestions,
// let the cascade pull a dangling target in, and check the pair ends up
// cross-linked with exactly one generation per game.
func TestDiscoveryLoopCrossLinksPair(t *testing.T) {
	t.Setenv("AUTO_INGEST_CAP", "6")
	t.Setenv("AUTO_INGEST_EAGER_SUGGESTIONS", "true")

	catalog := newFakeCatalog()
	catalog.addGame(100, "Gloom Harvest")
	catalog.addGame(332200, "Axiom Verge")
	catalog.searches["axiom verge"] = []steam.SearchResult{{AppID: 332200, Name: "Axiom Verge"}}

	repo := newFakeGameRepo()
	model := &fakeModel{response: `[
		{"title": "Axiom Verge", "reason": "Interconnected map."},
		{"title": "Gloom Harvest", "reason": "Shared mood."}
	]`}

	ingester := newTestIngestion(t, catalog, repo, nil)
	suggestions := NewSuggestionService(model, catalog, repo, testLogger())
	auto := NewAutoIngestService(ingester, suggestions, testLogger())

	ctx := context.Background()
	if _, err := ingester.Ingest(ctx, 100, IngestOptions{}); err != nil {
		t.Fatalf("ingest: %v", err)
	}

	res, err := suggestions.Refresh(ctx, 100, false)
	if err != nil {
		t.Fatalf("refresh: %v", err)
	}
	if len(res.Missing) != 1 || res.Missing[0] != 332200 {
		t.Fatalf("missing = %v, want the dangling target", res.Missing)
	}

	if accepted := auto.Enqueue(ctx, res.Missing); len(accepted) != 1 {
		t.Fatalf("cascade accepted %v", accepted)
	}
	auto.Wait()

	source, _ := repo.GetByAppID(ctx, nil, 100)
	target, _ := repo.GetByAppID(ctx, nil, 332200)
	if !target.HasFullRecord() {
		t.Fatal("cascade did not ingest the target")
	}
	if !domain.ContainsTarget(source.SuggestionList(), 332200) {
		t.Fatalf("source does not list target: %+v", source.SuggestionList())
	}
	if !domain.ContainsTarget(target.SuggestionList(), 100) {
		t.Fatalf("target does not list source back: %+v", target.SuggestionList())
	}

	// One generation for each side, nothing extra for the link itself.
	if model.calls() != 2 {
		t.Fatalf("model calls = %d, want 2", model.calls())
	}

	// The dangling set is drained.
	after, err := suggestions.Get(ctx, 100)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if len(after.Missing) != 0 {
		t.Fatalf("missing after cascade = %v", after.Missing)
	}
}
