// Package postgres provides the PostgreSQL persistence implementation.
package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	_ "github.com/lib/pq" // postgres driver

	"github.com/threadlinehq/threadline/pkg/persistence"
	"github.com/threadlinehq/threadline/pkg/persistence/sqlbase"
)

// Persistence implements the persistence layer for PostgreSQL.
type Persistence struct {
	db         *sql.DB
	logger     *slog.Logger
	messages   *MessageRepository
	optOuts    *OptOutRepository
	consents   *ConsentRepository
	workflows  *WorkflowRepository
	executions *ExecutionRepository
}

// NewPersistence connects, migrates and wires the repositories.
func NewPersistence(ctx context.Context, logger *slog.Logger, databaseURL string) (*Persistence, error) {
	database, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to PostgreSQL database: %w", err)
	}

	err = database.PingContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	migrationManager := sqlbase.NewMigrationManager(logger, database, migrations())

	err = migrationManager.RunMigrations(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return &Persistence{
		db:         database,
		logger:     logger,
		messages:   &MessageRepository{db: database},
		optOuts:    &OptOutRepository{db: database},
		consents:   &ConsentRepository{db: database},
		workflows:  &WorkflowRepository{db: database, logger: logger},
		executions: &ExecutionRepository{db: database, logger: logger},
	}, nil
}

func (p *Persistence) Messages() persistence.MessageRepository     { return p.messages }
func (p *Persistence) OptOuts() persistence.OptOutRepository       { return p.optOuts }
func (p *Persistence) Consents() persistence.ConsentRepository     { return p.consents }
func (p *Persistence) Workflows() persistence.WorkflowRepository   { return p.workflows }
func (p *Persistence) Executions() persistence.ExecutionRepository { return p.executions }

// HealthCheck verifies the database connection is healthy.
func (p *Persistence) HealthCheck(ctx context.Context) error {
	err := p.db.PingContext(ctx)
	if err != nil {
		return fmt.Errorf("failed to ping database: %w", err)
	}

	return nil
}

// Close closes the database connection.
func (p *Persistence) Close(_ context.Context) error {
	if p.db != nil {
		err := p.db.Close()
		if err != nil {
			return fmt.Errorf("failed to close database connection: %w", err)
		}
	}

	return nil
}
