package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/gamescout/gamescout-backend/internal/domain"
	apperrors "github.com/gamescout/gamescout-backend/internal/pkg/errors"
)

func newTestIngestion(t *testing.T, catalog CatalogClient, repo *fakeGameRepo, locks LockManager) IngestionService {
	t.Helper()
	t.Setenv("INGEST_LOCK_WAIT_ATTEMPTS", "3")
	t.Setenv("INGEST_LOCK_WAIT_INTERVAL_MS", "10")
	if locks == nil {
		locks = NewMemoryLockManager(testLogger())
	}
	return NewIngestionService(catalog, repo, locks, nil, testLogger())
}

func TestIngestFetchesAndPersists(t *testing.T) {
	catalog := newFakeCatalog()
	catalog.addGame(440, "Gloom Harvest")
	repo := newFakeGameRepo()
	svc := newTestIngestion(t, catalog, repo, nil)

	game, err := svc.Ingest(context.Background(), 440, IngestOptions{})
	if err != nil {
		t.Fatalf("Ingest: %v", err)
	}
	if game.Title != "Gloom Harvest" {
		t.Fatalf("title = %q", game.Title)
	}

	stored, err := repo.GetByAppID(context.Background(), nil, 440)
	if err != nil {
		t.Fatalf("stored game missing: %v", err)
	}
	if !stored.HasFullRecord() {
		t.Fatal("stored record incomplete")
	}
	if len(stored.TagList()) == 0 {
		t.Fatal("tags not persisted")
	}
}

func TestIngestKnownGameIsReadNotFetch(t *testing.T) {
	catalog := newFakeCatalog()
	catalog.addGame(440, "Gloom Harvest")
	repo := newFakeGameRepo()
	svc := newTestIngestion(t, catalog, repo, nil)

	if _, err := svc.Ingest(context.Background(), 440, IngestOptions{}); err != nil {
		t.Fatalf("first ingest: %v", err)
	}
	if _, err := svc.Ingest(context.Background(), 440, IngestOptions{}); err != nil {
		t.Fatalf("second ingest: %v", err)
	}
	if got := len(catalog.detailCalls); got != 1 {
		t.Fatalf("catalog fetched %d times, want 1", got)
	}
}

func TestIngestForceRefetchesButKeepsDerivedState(t *testing.T) {
	catalog := newFakeCatalog()
	catalog.addGame(440, "Gloom Harvest")
	repo := newFakeGameRepo()
	svc := newTestIngestion(t, catalog, repo, nil)

	if _, err := svc.Ingest(context.Background(), 440, IngestOptions{}); err != nil {
		t.Fatalf("ingest: %v", err)
	}

	// Derived state lands after ingest via its own paths.
	if err := repo.UpdateFacetEmbedding(context.Background(), nil, 440, domain.FacetMechanics,
		basisVec(0, 1, 1, 0), domain.FacetState{State: domain.FacetStateComputed}); err != nil {
		t.Fatalf("seed embedding: %v", err)
	}

	catalog.addGame(440, "Gloom Harvest: Definitive Edition")
	game, err := svc.Ingest(context.Background(), 440, IngestOptions{Force: true})
	if err != nil {
		t.Fatalf("forced ingest: %v", err)
	}
	if game.Title != "Gloom Harvest: Definitive Edition" {
		t.Fatalf("title after force = %q", game.Title)
	}

	stored, _ := repo.GetByAppID(context.Background(), nil, 440)
	if stored.EmbeddingMechanics == nil {
		t.Fatal("forced re-ingest dropped the stored embedding")
	}
}

func TestIngestUnknownAppID(t *testing.T) {
	svc := newTestIngestion(t, newFakeCatalog(), newFakeGameRepo(), nil)
	if _, err := svc.Ingest(context.Background(), 999, IngestOptions{}); !errors.Is(err, apperrors.ErrNotFound) {
		t.Fatalf("got %v, want ErrNotFound", err)
	}
}

func TestIngestInvalidAppID(t *testing.T) {
	svc := newTestIngestion(t, newFakeCatalog(), newFakeGameRepo(), nil)
	if _, err := svc.Ingest(context.Background(), 0, IngestOptions{}); !errors.Is(err, apperrors.ErrInvalidArgument) {
		t.Fatalf("got %v, want ErrInvalidArgument", err)
	}
}

func TestIngestBusyWhenLockHeld(t *testing.T) {
	catalog := newFakeCatalog()
	catalog.addGame(440, "Gloom Harvest")
	repo := newFakeGameRepo()
	locks := NewMemoryLockManager(testLogger())
	svc := newTestIngestion(t, catalog, repo, locks)

	// A foreign holder sits on the lock for longer than the wait budget.
	if _, ok, _ := locks.Acquire(context.Background(), ingestLockKey(440), time.Minute); !ok {
		t.Fatal("could not seed the held lock")
	}

	_, err := svc.Ingest(context.Background(), 440, IngestOptions{})
	if !errors.Is(err, apperrors.ErrBusy) {
		t.Fatalf("got %v, want ErrBusy", err)
	}
	if len(catalog.detailCalls) != 0 {
		t.Fatal("busy ingest must not hit the catalog")
	}
}

func TestIngestWaitsOutInFlightIngest(t *testing.T) {
	catalog := newFakeCatalog()
	catalog.addGame(440, "Gloom Harvest")
	repo := newFakeGameRepo()
	locks := NewMemoryLockManager(testLogger())
	svc := newTestIngestion(t, catalog, repo, locks)

	token, ok, _ := locks.Acquire(context.Background(), ingestLockKey(440), time.Minute)
	if !ok {
		t.Fatal("could not seed the held lock")
	}

	// The in-flight holder finishes shortly after this caller starts
	// waiting.
	go func() {
		time.Sleep(15 * time.Millisecond)
		repo.put(&domain.Game{AppID: 440, Title: "Gloom Harvest"})
		_ = locks.Release(context.Background(), ingestLockKey(440), token)
	}()

	game, err := svc.Ingest(context.Background(), 440, IngestOptions{})
	if err != nil {
		t.Fatalf("Ingest: %v", err)
	}
	if game.Title != "Gloom Harvest" {
		t.Fatalf("title = %q", game.Title)
	}
	if len(catalog.detailCalls) != 0 {
		t.Fatal("waiter should adopt the in-flight result, not refetch")
	}
}

func TestIngestSkipEmbeddingsSuppressesProviderPass(t *testing.T) {
	catalog := newFakeCatalog()
	catalog.addGame(440, "Gloom Harvest")
	repo := newFakeGameRepo()
	provider := &fakeEmbedProvider{}
	embedder := NewEmbeddingService(provider, repo, testLogger())
	svc := NewIngestionService(catalog, repo, NewMemoryLockManager(testLogger()), embedder, testLogger())

	if _, err := svc.Ingest(context.Background(), 440, IngestOptions{SkipEmbeddings: true}); err != nil {
		t.Fatalf("Ingest: %v", err)
	}

	// The post-ingest pass runs detached; give a wrongly scheduled one
	// room to land before asserting.
	time.Sleep(30 * time.Millisecond)

	provider.mu.Lock()
	calls := len(provider.inputs)
	provider.mu.Unlock()
	if calls != 0 {
		t.Fatalf("provider called %d times, want 0", calls)
	}

	stored, err := repo.GetByAppID(context.Background(), nil, 440)
	if err != nil {
		t.Fatalf("stored game missing: %v", err)
	}
	if states := stored.FacetStates(); len(states) != 0 {
		t.Fatalf("facet states written: %v", states)
	}
}

func TestIngestRefParsesStoreURL(t *testing.T) {
	catalog := newFakeCatalog()
	catalog.addGame(367520, "Hollow Knight")
	repo := newFakeGameRepo()
	svc := newTestIngestion(t, catalog, repo, nil)

	game, err := svc.IngestRef(context.Background(), "https://store.steampowered.com/app/367520/Hollow_Knight/", IngestOptions{})
	if err != nil {
		t.Fatalf("IngestRef: %v", err)
	}
	if game.AppID != 367520 {
		t.Fatalf("app id = %d", game.AppID)
	}

	if _, err := svc.IngestRef(context.Background(), "not a ref", IngestOptions{}); !errors.Is(err, apperrors.ErrInvalidArgument) {
		t.Fatalf("got %v, want ErrInvalidArgument", err)
	}
}
