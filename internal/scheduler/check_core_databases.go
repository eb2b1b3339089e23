package scheduler

import (
	"context"
	"fmt"

	"github.com/aristath/quoteflow/internal/store"
	"github.com/rs/zerolog"
)

// IntegrityCheckJob verifies the store's SQLite file isn't corrupted.
type IntegrityCheckJob struct {
	store *store.Store
	log   zerolog.Logger
}

func NewIntegrityCheckJob(s *store.Store, log zerolog.Logger) *IntegrityCheckJob {
	return &IntegrityCheckJob{store: s, log: log.With().Str("job", "integrity_check").Logger()}
}

func (j *IntegrityCheckJob) Name() string { return "integrity_check" }

func (j *IntegrityCheckJob) Run(ctx context.Context) error {
	var result string
	if err := j.store.DB().Conn().QueryRowContext(ctx, "PRAGMA integrity_check").Scan(&result); err != nil {
		return fmt.Errorf("integrity check query: %w", err)
	}
	if result != "ok" {
		j.log.Error().Str("result", result).Msg("store integrity check failed")
		return fmt.Errorf("store integrity_check returned: %s", result)
	}
	j.log.Debug().Msg("integrity check passed")
	return nil
}
