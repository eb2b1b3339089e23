// Package scheduler implements §6's scheduler_config: named, independently
// triggered, cron-scheduled jobs running against one Store.
package scheduler

import "context"

// Job is one named unit of scheduled work.
type Job interface {
	Name() string
	Run(ctx context.Context) error
}
