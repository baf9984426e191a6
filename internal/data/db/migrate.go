package db

import (
	"fmt"

	"gorm.io/gorm"

	"github.com/gamescout/gamescout-backend/internal/domain"
)

func AutoMigrateAll(gdb *gorm.DB) error {
	if err := gdb.AutoMigrate(
		&domain.Game{},
	); err != nil {
		return err
	}

	// Approximate-NN indexes for each facet column. IVFFlat needs rows to
	// train on; creation is best-effort and retried on the next boot once
	// data exists. Exact scans stay correct without them.
	for _, f := range domain.AllFacets() {
		idx := fmt.Sprintf(
			`CREATE INDEX IF NOT EXISTS idx_game_%s ON game USING ivfflat (%s vector_cosine_ops) WITH (lists = 100);`,
			f.Column(), f.Column(),
		)
		if err := gdb.Exec(idx).Error; err != nil {
			// Index creation failure is not fatal for correctness.
			continue
		}
	}
	return nil
}
