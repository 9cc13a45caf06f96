package storage

import (
	"context"

	"poolCollector/internal/model"
)

// Storage is the durable sink for pool records and their history.
type Storage interface {
	// SavePools records the current pool list.
	SavePools(ctx context.Context, pools []model.Pool) error
	// SavePoolsPolling appends one status snapshot taken at timestamp.
	SavePoolsPolling(ctx context.Context, timestamp int64, pools []model.Pool) error
	// SavePoolsBlocks appends the recent blocks of every pool, stamped with
	// the time of the call.
	SavePoolsBlocks(ctx context.Context, pools []model.Pool) error
	// CleanPollingHistory removes status and block history older than cutoff.
	CleanPollingHistory(ctx context.Context, cutoff int64) error
}
