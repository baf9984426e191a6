package app

import (
	"gorm.io/gorm"

	"github.com/gamescout/gamescout-backend/internal/data/repos"
	"github.com/gamescout/gamescout-backend/internal/pkg/logger"
)

type Repos = repos.Set

func wireRepos(db *gorm.DB, log *logger.Logger) Repos {
	log.Info("Wiring repos...")
	return repos.Wire(db, log)
}
