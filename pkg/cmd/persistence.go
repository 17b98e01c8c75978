// Package cmd provides common initialization for the command-line binaries.
package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/threadlinehq/threadline/pkg/persistence"
	"github.com/threadlinehq/threadline/pkg/persistence/memory"
	"github.com/threadlinehq/threadline/pkg/persistence/postgres"
)

// NewPersistence creates a persistence backend from a database URL. Postgres
// URLs get the durable store; anything else falls back to the in-memory store
// for local development.
func NewPersistence(ctx context.Context, logger *slog.Logger, databaseURL string) persistence.Persistence {
	if strings.HasPrefix(databaseURL, "postgres://") || strings.HasPrefix(databaseURL, "postgresql://") {
		store, err := postgres.NewPersistence(ctx, logger, databaseURL)
		if err != nil {
			panic(fmt.Errorf("failed to create postgres persistence: %w", err))
		}

		return store
	}

	logger.WarnContext(ctx, "Using in-memory persistence, state is not durable")

	return memory.NewPersistence()
}
