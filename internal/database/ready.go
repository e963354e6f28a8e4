package database

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"
)

const (
	readyAttempts = 5
	readyTimeout  = 5 * time.Second
	readyBackoff  = time.Second
)

// waitReady pings a dependency until it answers. Containers started together
// often come up after the service, so a few refusals are expected.
func waitReady(ctx context.Context, name string, ping func(context.Context) error, log zerolog.Logger) error {
	wait := readyBackoff
	var err error
	for attempt := 1; attempt <= readyAttempts; attempt++ {
		pingCtx, cancel := context.WithTimeout(ctx, readyTimeout)
		err = ping(pingCtx)
		cancel()
		if err == nil {
			return nil
		}
		if attempt == readyAttempts {
			break
		}
		log.Warn().Err(err).Int("attempt", attempt).Dur("retry_in", wait).Msgf("%s not ready", name)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(wait):
		}
		wait *= 2
	}
	return fmt.Errorf("%s unreachable after %d attempts: %w", name, readyAttempts, err)
}
