package scheduler

import (
	"context"

	"github.com/aristath/quoteflow/internal/store"
	"github.com/rs/zerolog"
)

// WALCheckpointJob runs a passive WAL checkpoint against the store so the
// write-ahead log doesn't grow unbounded between writes.
type WALCheckpointJob struct {
	store *store.Store
	log   zerolog.Logger
}

func NewWALCheckpointJob(s *store.Store, log zerolog.Logger) *WALCheckpointJob {
	return &WALCheckpointJob{store: s, log: log.With().Str("job", "wal_checkpoint").Logger()}
}

func (j *WALCheckpointJob) Name() string { return "wal_checkpoint" }

func (j *WALCheckpointJob) Run(ctx context.Context) error {
	var busy, log, checkpointed int
	err := j.store.DB().Conn().QueryRowContext(ctx, "PRAGMA wal_checkpoint(PASSIVE)").Scan(&busy, &log, &checkpointed)
	if err != nil {
		return err
	}
	j.log.Debug().Int("busy", busy).Int("log_frames", log).Int("checkpointed", checkpointed).Msg("wal checkpoint")
	return nil
}
