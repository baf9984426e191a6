package services

import (
	"context"
	"fmt"
	"testing"

	apperrors "github.com/gamescout/gamescout-backend/internal/pkg/errors"
)

func newTestAutoIngest(t *testing.T, catalog *fakeCatalog, repo *fakeGameRepo, suggestions SuggestionService) AutoIngestService {
	t.Helper()
	t.Setenv("AUTO_INGEST_CAP", "6")
	ingester := newTestIngestion(t, catalog, repo, nil)
	return NewAutoIngestService(ingester, suggestions, testLogger())
}

func TestEnqueueCapsTheCascade(t *testing.T) {
	catalog := newFakeCatalog()
	repo := newFakeGameRepo()
	var dangling []int64
	for i := int64(1); i <= 20; i++ {
		catalog.addGame(i, fmt.Sprintf("Game %d", i))
		dangling = append(dangling, i)
	}

	svc := newTestAutoIngest(t, catalog, repo, nil)
	accepted := svc.Enqueue(context.Background(), dangling)
	if len(accepted) != 6 {
		t.Fatalf("accepted %d ids, want 6", len(accepted))
	}
	svc.Wait()

	for _, id := range accepted {
		if ok, _ := repo.ExistsByAppID(context.Background(), nil, id); !ok {
			t.Fatalf("accepted id %d was not ingested", id)
		}
	}
	stored := 0
	for i := int64(1); i <= 20; i++ {
		if ok, _ := repo.ExistsByAppID(context.Background(), nil, i); ok {
			stored++
		}
	}
	if stored != 6 {
		t.Fatalf("%d games stored, want exactly the capped 6", stored)
	}
}

func TestEnqueueNeverRequestsAnIDTwice(t *testing.T) {
	catalog := newFakeCatalog()
	repo := newFakeGameRepo()
	catalog.addGame(1, "Game 1")
	catalog.addGame(2, "Game 2")

	svc := newTestAutoIngest(t, catalog, repo, nil)
	if got := svc.Enqueue(context.Background(), []int64{1, 2}); len(got) != 2 {
		t.Fatalf("first enqueue accepted %d, want 2", len(got))
	}
	svc.Wait()

	if got := svc.Enqueue(context.Background(), []int64{1, 2}); len(got) != 0 {
		t.Fatalf("repeat enqueue accepted %v, want nothing", got)
	}
}

func TestEnqueueIsolatesPerIDFailures(t *testing.T) {
	catalog := newFakeCatalog()
	repo := newFakeGameRepo()
	catalog.addGame(1, "Game 1")
	catalog.errs[2] = apperrors.ErrTransient
	catalog.addGame(3, "Game 3")

	svc := newTestAutoIngest(t, catalog, repo, nil)
	accepted := svc.Enqueue(context.Background(), []int64{1, 2, 3})
	if len(accepted) != 3 {
		t.Fatalf("accepted %d, want 3", len(accepted))
	}
	svc.Wait()

	for _, id := range []int64{1, 3} {
		if ok, _ := repo.ExistsByAppID(context.Background(), nil, id); !ok {
			t.Fatalf("id %d should have survived the batch", id)
		}
	}
	if ok, _ := repo.ExistsByAppID(context.Background(), nil, 2); ok {
		t.Fatal("failed id must not be stored")
	}

	// The failed id burned its slot: it is not retried on a later
	// trigger.
	if got := svc.Enqueue(context.Background(), []int64{2}); len(got) != 0 {
		t.Fatalf("failed id was re-accepted: %v", got)
	}
}

func TestEnqueueSkipsInvalidIDs(t *testing.T) {
	svc := newTestAutoIngest(t, newFakeCatalog(), newFakeGameRepo(), nil)
	if got := svc.Enqueue(context.Background(), []int64{0, -5}); len(got) != 0 {
		t.Fatalf("invalid ids accepted: %v", got)
	}
}
