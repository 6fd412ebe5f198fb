package bootstrap

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jmoiron/sqlx"

	"github.com/m3rciful/gatebot/app/store"
	corebootstrap "github.com/m3rciful/gatebot/core/bootstrap"
	"github.com/m3rciful/gatebot/core/logger"
)

// SeedChannels inserts the configured gating channels that are not stored yet.
func SeedChannels(channels []string) corebootstrap.Seeder {
	return corebootstrap.SeederFunc(func(ctx context.Context, db *sqlx.DB) error {
		if len(channels) == 0 {
			return nil
		}
		st := store.New(db)
		added := 0
		for _, ch := range channels {
			isNew, err := st.Channels.Add(ctx, ch)
			if err != nil {
				return fmt.Errorf("seed channel %s: %w", ch, err)
			}
			if isNew {
				added++
			}
		}
		logger.SEED.Info("gating channels seeded",
			slog.String("event", "db.seed"),
			slog.Int("configured", len(channels)),
			slog.Int("added", added),
		)
		return nil
	})
}
