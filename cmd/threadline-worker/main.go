package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/google/uuid"
	cli "github.com/urfave/cli/v3"

	"github.com/threadlinehq/threadline/pkg/cmd"
	"github.com/threadlinehq/threadline/pkg/consent"
	"github.com/threadlinehq/threadline/pkg/conversation"
	"github.com/threadlinehq/threadline/pkg/integrations"
	"github.com/threadlinehq/threadline/pkg/log"
	"github.com/threadlinehq/threadline/pkg/monitoring"
	"github.com/threadlinehq/threadline/pkg/processor"
	"github.com/threadlinehq/threadline/pkg/protocol"
	"github.com/threadlinehq/threadline/pkg/workflow"
)

func main() {
	command := &cli.Command{
		Name:                  "threadline-worker",
		Usage:                 "Process inbound messages from the event bus",
		EnableShellCompletion: true,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "worker-id",
				Aliases: []string{"id"},
				Usage:   "Custom worker ID (auto-generated if not provided)",
				Value:   "",
				Sources: cli.EnvVars("WORKER_ID"),
			},
			&cli.StringFlag{
				Name:     "database-url",
				Usage:    "Database connection URL for persistence",
				Required: true,
				Sources:  cli.EnvVars("DATABASE_URL"),
			},
			&cli.StringFlag{
				Name:     "event-bus",
				Usage:    "Event bus provider (kafka, gochannel)",
				Required: true,
				Sources:  cli.EnvVars("EVENT_BUS_TYPE"),
			},
			&cli.StringFlag{
				Name:    "redis-url",
				Usage:   "Redis URL for cross-process contact locking",
				Sources: cli.EnvVars("REDIS_URL"),
			},
			&cli.StringFlag{
				Name:    "ai-service-url",
				Usage:   "Base URL of the AI completion service",
				Sources: cli.EnvVars("AI_SERVICE_URL"),
			},
			&cli.StringFlag{
				Name:    "ai-api-key",
				Usage:   "API key for the AI completion service",
				Sources: cli.EnvVars("AI_API_KEY"),
			},
			&cli.StringFlag{
				Name:    "carrier-url",
				Usage:   "Base URL of the messaging carrier API",
				Sources: cli.EnvVars("CARRIER_URL"),
			},
			&cli.StringFlag{
				Name:    "carrier-api-key",
				Usage:   "API key for the messaging carrier",
				Sources: cli.EnvVars("CARRIER_API_KEY"),
			},
			&cli.StringFlag{
				Name:    "ticketing-url",
				Usage:   "Base URL of the ticketing API (ticketing disabled when unset)",
				Sources: cli.EnvVars("TICKETING_URL"),
			},
			&cli.StringFlag{
				Name:    "ticketing-api-key",
				Usage:   "API key for the ticketing API",
				Sources: cli.EnvVars("TICKETING_API_KEY"),
			},
			&cli.StringFlag{
				Name:    "log-level",
				Usage:   "Log level (debug, info, warn, error)",
				Value:   "info",
				Sources: cli.EnvVars("LOG_LEVEL"),
			},
		},
		Action: func(ctx context.Context, command *cli.Command) error {
			log.Setup(command.String("log-level"))

			workerID := command.String("worker-id")
			if workerID == "" {
				workerID = "worker-" + uuid.New().String()[:8]
			}

			logger := log.WithModule("worker").With("worker_id", workerID)

			logger.InfoContext(ctx, "Initializing Threadline Worker")

			ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			store := cmd.NewPersistence(ctx, logger, command.String("database-url"))
			defer func() {
				err := store.Close(ctx)
				if err != nil {
					logger.ErrorContext(ctx, "Failed to close persistence", "error", err)
				}
			}()

			eventBus := cmd.NewEventBus(command.String("event-bus"), logger)
			defer func() {
				err := eventBus.Close()
				if err != nil {
					logger.ErrorContext(ctx, "Failed to close event bus", "error", err)
				}
			}()

			var ticketer protocol.Ticketer = protocol.UnavailableTicketer{}
			if url := command.String("ticketing-url"); url != "" {
				ticketer = integrations.NewHTTPTicketer(url, command.String("ticketing-api-key"))
			}

			reg := cmd.NewRegistry(logger, cmd.HandlerDeps{
				AI:        integrations.NewHTTPAIClient(command.String("ai-service-url"), command.String("ai-api-key")),
				Messenger: integrations.NewHTTPMessenger(command.String("carrier-url"), command.String("carrier-api-key")),
				Ticketer:  ticketer,
			})

			locker := cmd.NewLocker(command.String("redis-url"))

			monitor := monitoring.NewMonitor(nil, logger,
				monitoring.NewLogSink(logger),
				monitoring.NewEventBusSink(eventBus),
			)

			guard := consent.NewGuard(store.OptOuts(), store.Consents(), logger)
			threader := conversation.NewThreader(store.Messages(), locker, conversation.DefaultInactivityWindow, logger)
			executor := workflow.NewExecutor(store.Executions(), reg, eventBus, logger, workflow.DefaultConfig())
			proc := processor.NewProcessor(guard, threader, store.Workflows(), executor, monitor, locker, logger)

			worker := NewWorker(workerID, eventBus, proc, logger)

			err := worker.Start(ctx)
			if err != nil {
				logger.ErrorContext(ctx, "Failed to start worker", "error", err)
			}

			return nil
		},
	}

	err := command.Run(context.Background(), os.Args)
	if err != nil {
		panic(err)
	}
}
