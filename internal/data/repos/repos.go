package repos

import (
	"gorm.io/gorm"

	"github.com/gamescout/gamescout-backend/internal/data/repos/games"
	"github.com/gamescout/gamescout-backend/internal/pkg/logger"
)

type Set struct {
	Games games.GameRepo
}

func Wire(db *gorm.DB, baseLog *logger.Logger) Set {
	return Set{
		Games: games.NewGameRepo(db, baseLog),
	}
}
