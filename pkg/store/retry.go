// pkg/store/retry.go
package store

import (
	"context"
	"database/sql/driver"
	"errors"
	"strings"
	"time"

	"github.com/jackc/pgconn"
	"go.uber.org/zap"
)

// IsRetryable reports whether a warehouse error is transient. Postgres
// errors are classified by SQLSTATE: connection exceptions (08) and
// transaction rollbacks such as serialization failures (40).
func IsRetryable(err error) bool {
	if err == nil || errors.Is(err, context.Canceled) {
		return false
	}
	if errors.Is(err, driver.ErrBadConn) {
		return true
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return strings.HasPrefix(pgErr.Code, "08") || strings.HasPrefix(pgErr.Code, "40")
	}

	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "connection reset") ||
		strings.Contains(msg, "connection refused") ||
		strings.Contains(msg, "broken pipe") ||
		strings.Contains(msg, "try again")
}

// withRetry runs op until it succeeds, fails permanently or has been retried
// maxRetries times. The wait grows linearly with each attempt.
func (s *SQLStore) withRetry(ctx context.Context, operation string, op func() error) error {
	for attempt := 0; ; attempt++ {
		err := op()
		if err == nil || attempt >= s.maxRetries || !IsRetryable(err) {
			return err
		}

		s.logger.Warn("Transient warehouse error, retrying",
			zap.String("operation", operation),
			zap.Int("retry", attempt+1),
			zap.Int("maxRetries", s.maxRetries),
			zap.Error(err))

		select {
		case <-ctx.Done():
			return err
		case <-time.After(s.backoff * time.Duration(attempt+1)):
		}
	}
}
