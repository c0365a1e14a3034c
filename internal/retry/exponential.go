package retry

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/segmentio/kafka-go"
)

// ExponentialBackoffStrategy retries recoverable failures, doubling the wait
// after every attempt up to maxDelay
type ExponentialBackoffStrategy struct {
	maxRetries   int
	initialDelay time.Duration
	maxDelay     time.Duration
}

// NewExponentialBackoffStrategy creates a new ExponentialBackoffStrategy
func NewExponentialBackoffStrategy(maxRetries int, initialDelay, maxDelay time.Duration) *ExponentialBackoffStrategy {
	return &ExponentialBackoffStrategy{
		maxRetries:   maxRetries,
		initialDelay: initialDelay,
		maxDelay:     maxDelay,
	}
}

// Execute runs operation up to maxRetries+1 times. Non-recoverable errors and
// context cancellation stop immediately.
func (s *ExponentialBackoffStrategy) Execute(ctx context.Context, name string, operation Operation) error {
	attempts := s.maxRetries + 1
	delay := s.initialDelay

	for attempt := 1; ; attempt++ {
		err := operation(ctx)
		switch {
		case err == nil:
			if attempt > 1 {
				slog.Info("🔁 Recovered after retry", "operation", name, "attempt", attempt)
			}
			return nil
		case !IsRecoverable(err):
			slog.Error("Non-recoverable error, giving up", "operation", name, "attempt", attempt, "error", err)
			return err
		case attempt >= attempts:
			return fmt.Errorf("%s failed after %d attempts: %w", name, attempts, err)
		}

		slog.Warn("Transient failure, backing off",
			"operation", name,
			"attempt", attempt,
			"max_attempts", attempts,
			"retry_in", delay,
			"error", err,
		)

		if err := sleep(ctx, delay); err != nil {
			return fmt.Errorf("%s interrupted during backoff: %w", name, err)
		}
		delay = min(delay*2, s.maxDelay)
	}
}

// Name returns the strategy name
func (s *ExponentialBackoffStrategy) Name() string {
	return "ExponentialBackoff"
}

func sleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// Lowercase fragments of transient network and broker failures
var recoverablePatterns = []string{
	"connection reset by peer",
	"connection refused",
	"timeout",
	"temporary failure",
	"network is unreachable",
	"broken pipe",
	"eof",
	"no such host",
	"connection timed out",
	"dial tcp",
	"leader not available",
	"not leader for partition",
}

// IsRecoverable reports whether err is a transient infrastructure failure:
// an unreachable database or broker, a kafka error flagged temporary, or a
// network timeout. Domain errors are never recoverable.
func IsRecoverable(err error) bool {
	if err == nil || errors.Is(err, context.Canceled) {
		return false
	}

	var kafkaErr kafka.Error
	if errors.As(err, &kafkaErr) {
		return kafkaErr.Temporary()
	}

	var connectErr *pgconn.ConnectError
	if errors.As(err, &connectErr) {
		return true
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		// Class 08 is connection exceptions, 57P03 is "cannot connect now"
		return strings.HasPrefix(pgErr.Code, "08") || pgErr.Code == "57P03"
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}

	msg := strings.ToLower(err.Error())
	for _, pattern := range recoverablePatterns {
		if strings.Contains(msg, pattern) {
			return true
		}
	}
	return false
}
