// Package readiness waits for a freshly handed out test database to accept connections.
// The pooling service may report a database before it is visible to new sessions,
// the Poller bridges this gap by retrying a dial for a bounded number of attempts.
package readiness

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/allaboutapps/integresql-client-go/pkg/util"
)

var ErrNotReady = errors.New("database did not become ready")

const (
	DefaultAttempts = 100
	DefaultInterval = 100 * time.Millisecond
)

type Config struct {
	Attempts int
	Interval time.Duration

	// Strict turns exhausting all attempts into ErrNotReady. Otherwise a warning is logged
	// and the database is assumed to be ready, leaving the failure to the first real query.
	Strict bool
}

func DefaultConfigFromEnv() Config {
	return Config{
		Attempts: util.GetEnvAsInt("INTEGRESQL_CLIENT_READINESS_ATTEMPTS", DefaultAttempts),
		Interval: util.GetEnvAsDuration("INTEGRESQL_CLIENT_READINESS_INTERVAL_MS", DefaultInterval),
		Strict:   util.GetEnvAsBool("INTEGRESQL_CLIENT_READINESS_STRICT", false),
	}
}

type Poller struct {
	Config

	// Dial performs a single readiness probe, e.g. opening a connection and pinging it.
	Dial func(ctx context.Context) error
	// Retryable reports whether the error returned by Dial means "not visible yet".
	// All other errors are returned immediately. A nil Retryable retries every error.
	Retryable func(err error) bool
}

// Poll dials until it succeeds, fails with a non retryable error or runs out of attempts.
func (p Poller) Poll(ctx context.Context) error {
	attempts := p.Attempts
	if attempts <= 0 {
		attempts = DefaultAttempts
	}

	interval := p.Interval
	if interval <= 0 {
		interval = DefaultInterval
	}

	log := util.LogFromContext(ctx)

	err := util.Retry(ctx, attempts, interval, p.Retryable, func(attempt int) error {
		err := p.Dial(ctx)
		if err != nil {
			log.Trace().Err(err).Int("attempt", attempt).Msg("Database not ready yet")
			return err
		}

		if attempt > 1 {
			log.Debug().Int("attempt", attempt).Msg("Database became ready")
		}

		return nil
	})
	if err == nil || !errors.Is(err, util.ErrRetriesExhausted) {
		return err
	}

	if p.Strict {
		return fmt.Errorf("%w: %w", ErrNotReady, err)
	}

	log.Warn().Err(err).Int("attempts", attempts).Msg("Database did not become ready, continuing anyway")

	return nil
}
