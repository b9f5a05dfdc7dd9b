package database

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"messengerhub/internal/constants"
	"messengerhub/internal/retry"

	"github.com/mattn/go-sqlite3"
)

var dbBackoff = retry.NewBackoff(retry.BackoffConfig{
	InitialDelay: time.Duration(constants.DefaultRetryBackoffMs) * time.Millisecond / 5,
	MaxDelay:     time.Duration(constants.DefaultMaxBackoffMs) * time.Millisecond,
	Multiplier:   2.0,
	MaxAttempts:  constants.DefaultDatabaseRetryAttempts,
	Jitter:       true,
})

// retryableDBOperation runs a write that may hit a locked database
func retryableDBOperation(ctx context.Context, operationName string, operation func() error) error {
	if err := dbBackoff.RetryWithPredicate(ctx, operation, isRetryableDBError); err != nil {
		return fmt.Errorf("%s failed: %w", operationName, err)
	}
	return nil
}

// isRetryableDBError determines if a database error is worth retrying
func isRetryableDBError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}

	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) {
		switch sqliteErr.Code {
		case sqlite3.ErrBusy, sqlite3.ErrLocked:
			return true
		case sqlite3.ErrIoErr:
			return true
		default:
			return false
		}
	}

	errStr := err.Error()
	return strings.Contains(errStr, "database is locked") || strings.Contains(errStr, "disk I/O error")
}
