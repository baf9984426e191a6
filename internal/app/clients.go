package app

import (
	"fmt"
	"os"
	"strings"

	"github.com/gamescout/gamescout-backend/internal/clients/openai"
	"github.com/gamescout/gamescout-backend/internal/clients/redis"
	"github.com/gamescout/gamescout-backend/internal/clients/steam"
	"github.com/gamescout/gamescout-backend/internal/pkg/logger"
)

type Clients struct {
	Steam  steam.Client
	Openai openai.Client
	Locks  *redis.LockClient
}

func wireClients(log *logger.Logger) (Clients, error) {
	log.Info("Wiring clients...")

	steamClient, err := steam.NewClient(log)
	if err != nil {
		return Clients{}, fmt.Errorf("init steam client: %w", err)
	}

	openaiClient, err := openai.NewClient(log)
	if err != nil {
		return Clients{}, fmt.Errorf("init openai client: %w", err)
	}

	// Redis is optional: without it the in-memory lock manager takes over,
	// which is fine for a single instance.
	var locks *redis.LockClient
	if addr := strings.TrimSpace(os.Getenv("REDIS_ADDR")); addr != "" {
		locks, err = redis.NewLockClient(log, addr)
		if err != nil {
			return Clients{}, fmt.Errorf("init redis lock client: %w", err)
		}
	}

	return Clients{
		Steam:  steamClient,
		Openai: openaiClient,
		Locks:  locks,
	}, nil
}
