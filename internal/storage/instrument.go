package storage

import (
	"context"
	"time"

	"gitlab.com/tapfield/rfid-tag-logger/internal/observer"
	"gitlab.com/tapfield/rfid-tag-logger/pkg/utils"
)

// run executes operation under the retry policy and records its duration.
func (r *PostgresRepo) run(ctx context.Context, opName, entity string, maxElapsed time.Duration, operation func() error) error {
	startTime := utils.Now()
	err := retryableOperation(ctx, newRetryPolicy(ctx, maxElapsed), opName, operation)
	observer.ObserveDbOperationDuration(opName, entity, time.Since(startTime), err)
	return err
}

func normalizePage(limit, offset, defaultLimit, maxLimit int) (int, int) {
	if limit <= 0 {
		limit = defaultLimit
	}
	if limit > maxLimit {
		limit = maxLimit
	}
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}
